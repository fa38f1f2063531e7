package hub

import (
	"context"
	"fmt"
	"time"

	"github.com/aquamarinepk/aqm"
	"github.com/aquamarinepk/aqm/seed"
	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/venueops/opssync/pkg/enums/alerttype"
	"github.com/venueops/opssync/pkg/enums/deliverystatus"
	"github.com/venueops/opssync/pkg/enums/department"
)

// Seeds returns all seeds for the hub service
func Seeds(db *mongo.Database) []seed.Seed {
	return []seed.Seed{
		{
			ID:          "demo_tickets_v1",
			Description: "Create demo delivery requests and one emergency alert",
			Run: func(ctx context.Context) error {
				return seedDemoTickets(ctx, db)
			},
		},
	}
}

func seedDemoTickets(ctx context.Context, db *mongo.Database) error {
	if db == nil {
		return fmt.Errorf("mongo database not initialized")
	}

	deliveriesCollection := db.Collection("deliveries")
	emergenciesCollection := db.Collection("emergencies")

	now := time.Now().UTC()
	stands := []uuid.UUID{uuid.New(), uuid.New(), uuid.New()}
	requester := uuid.New()
	runner := uuid.New()

	type demoDelivery struct {
		stand       uuid.UUID
		dept        string
		priority    string
		status      string
		description string
		age         time.Duration
		eta         *int
	}

	eta := 10
	demos := []demoDelivery{
		{stands[0], department.Departments.Warehouse.Code(), "normal", deliverystatus.Statuses.Requested.Code(), "Napkins and cup lids", 5 * time.Minute, nil},
		{stands[0], department.Departments.Kitchen.Code(), "emergency", deliverystatus.Statuses.Acknowledged.Code(), "Fryer oil running out", 12 * time.Minute, nil},
		{stands[1], department.Departments.Bar.Code(), "normal", deliverystatus.Statuses.OnTheWay.Code(), "Keg swap, tap 3", 25 * time.Minute, &eta},
		{stands[2], department.Departments.IT.Code(), "normal", deliverystatus.Statuses.Delivered.Code(), "Replacement card reader", 90 * time.Minute, nil},
	}

	for _, demo := range demos {
		id := uuid.New()
		createdAt := now.Add(-demo.age)

		doc := bson.M{
			"_id":           id,
			"stand_id":      demo.stand,
			"requester_id":  requester,
			"department":    demo.dept,
			"priority":      demo.priority,
			"status":        demo.status,
			"description":   demo.description,
			"created_at":    createdAt,
			"updated_at":    now.Add(-demo.age / 2),
			"model_version": 1,
			"created_by":    "demo-seed",
		}
		if demo.eta != nil {
			doc["eta_minutes"] = *demo.eta
		}

		_, err := deliveriesCollection.UpdateOne(
			ctx,
			bson.M{"_id": id},
			bson.M{"$setOnInsert": doc},
			options.Update().SetUpsert(true),
		)
		if err != nil {
			return fmt.Errorf("cannot create demo delivery %q: %w", demo.description, err)
		}
	}

	alertID := uuid.New()
	alert := bson.M{
		"_id":           alertID,
		"alert_type":    alerttype.Types.Equipment.Code(),
		"title":         "Walk-in freezer above temperature",
		"description":   "Stand 2 freezer reading -4C, should be -18C",
		"stand_id":      stands[1],
		"reporter_id":   runner,
		"is_active":     true,
		"created_at":    now.Add(-8 * time.Minute),
		"model_version": 1,
		"created_by":    "demo-seed",
	}

	_, err := emergenciesCollection.UpdateOne(
		ctx,
		bson.M{"_id": alertID},
		bson.M{"$setOnInsert": alert},
		options.Update().SetUpsert(true),
	)
	if err != nil {
		return fmt.Errorf("cannot create demo emergency: %w", err)
	}

	return nil
}

// ApplyDemoSeeds applies demo seeds if enabled via config
func ApplyDemoSeeds(ctx context.Context, config *aqm.Config, dbFn func() *mongo.Database, logger aqm.Logger) error {
	enabled, _ := config.GetString("seed.demo.enabled")
	if enabled != "true" {
		return nil
	}

	logger.Info("Demo seeding enabled, applying demo tickets...")
	db := dbFn()
	if db == nil {
		return fmt.Errorf("cannot seed: mongo database not initialized")
	}
	tracker := seed.NewMongoTracker(db)
	seeds := Seeds(db)

	if err := seed.Apply(ctx, tracker, seeds, "hub"); err != nil {
		return fmt.Errorf("demo seed failed: %w", err)
	}

	logger.Info("Demo tickets seeded successfully")
	return nil
}
