package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aquamarinepk/aqm"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/venueops/opssync/internal/ticket"
)

type EmergencyRepo struct {
	client     *mongo.Client
	db         *mongo.Database
	collection *mongo.Collection
	logger     aqm.Logger
	config     *aqm.Config
}

func NewEmergencyRepo(config *aqm.Config, logger aqm.Logger) *EmergencyRepo {
	return &EmergencyRepo{
		logger: logger,
		config: config,
	}
}

func (r *EmergencyRepo) Start(ctx context.Context) error {
	mongoURL, _ := r.config.GetString("db.mongo.url")
	if mongoURL == "" {
		mongoURL = "mongodb://localhost:27017"
	}

	dbName, _ := r.config.GetString("db.mongo.name")
	if dbName == "" {
		dbName = "opssync_hub"
	}

	clientOptions := options.Client().ApplyURI(mongoURL).
		SetConnectTimeout(10 * time.Second).
		SetServerSelectionTimeout(10 * time.Second)

	client, err := mongo.Connect(ctx, clientOptions)
	if err != nil {
		return fmt.Errorf("cannot connect to MongoDB: %w", err)
	}

	if err := client.Ping(ctx, nil); err != nil {
		return fmt.Errorf("cannot ping MongoDB: %w", err)
	}

	r.client = client
	r.db = client.Database(dbName)
	r.collection = r.db.Collection("emergencies")

	activeIndexModel := mongo.IndexModel{
		Keys: bson.D{{Key: "is_active", Value: 1}},
	}
	if _, err := r.collection.Indexes().CreateOne(ctx, activeIndexModel); err != nil {
		return fmt.Errorf("cannot create is_active index: %w", err)
	}

	r.logger.Infof("Connected to MongoDB: %s, database: %s, collection: emergencies", mongoURL, dbName)
	return nil
}

func (r *EmergencyRepo) Stop(ctx context.Context) error {
	if r.client != nil {
		if err := r.client.Disconnect(ctx); err != nil {
			return fmt.Errorf("cannot disconnect from MongoDB: %w", err)
		}
		r.logger.Info("Disconnected from MongoDB")
	}
	return nil
}

func (r *EmergencyRepo) Create(ctx context.Context, a *ticket.EmergencyAlert) error {
	a.ModelVersion = 1

	_, err := r.collection.InsertOne(ctx, a)
	if err != nil {
		return fmt.Errorf("cannot insert emergency: %w", err)
	}
	return nil
}

func (r *EmergencyRepo) FindByID(ctx context.Context, id ticket.AlertID) (*ticket.EmergencyAlert, error) {
	var a ticket.EmergencyAlert
	err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&a)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ticket.ErrNotFound
		}
		return nil, fmt.Errorf("cannot find emergency: %w", err)
	}
	return &a, nil
}

func (r *EmergencyRepo) List(ctx context.Context, filter ticket.EmergencyFilter) ([]ticket.EmergencyAlert, error) {
	query := bson.M{}

	if filter.StandID != nil {
		query["stand_id"] = *filter.StandID
	}

	if filter.ActiveOnly {
		query["is_active"] = true
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}})

	if filter.Limit > 0 {
		opts.SetLimit(int64(filter.Limit))
	}

	if filter.Offset > 0 {
		opts.SetSkip(int64(filter.Offset))
	}

	cursor, err := r.collection.Find(ctx, query, opts)
	if err != nil {
		return nil, fmt.Errorf("cannot find emergencies: %w", err)
	}
	defer cursor.Close(ctx)

	var alerts []ticket.EmergencyAlert
	if err := cursor.All(ctx, &alerts); err != nil {
		return nil, fmt.Errorf("cannot decode emergencies: %w", err)
	}

	return alerts, nil
}

// SetAcknowledged writes a only while the stored alert has no acknowledger
// yet. Losing the race to another responder returns ErrAlreadyAcknowledged
// so the caller can report who got there first.
func (r *EmergencyRepo) SetAcknowledged(ctx context.Context, a *ticket.EmergencyAlert) error {
	filter := bson.M{"_id": a.ID, "acknowledged_at": nil}
	update := bson.M{"$set": a}

	result, err := r.collection.UpdateOne(ctx, filter, update)
	if err != nil {
		return fmt.Errorf("cannot update emergency: %w", err)
	}

	if result.MatchedCount == 0 {
		current, err := r.FindByID(ctx, a.ID)
		if err != nil {
			return err
		}
		if current.Resolved() {
			return fmt.Errorf("%w: emergency %s already resolved", ticket.ErrInvalidTransition, a.ID)
		}
		return fmt.Errorf("%w: emergency %s", ticket.ErrAlreadyAcknowledged, a.ID)
	}

	return nil
}

// SetResolved writes a only while the stored alert is acknowledged and not
// yet resolved.
func (r *EmergencyRepo) SetResolved(ctx context.Context, a *ticket.EmergencyAlert) error {
	filter := bson.M{
		"_id":             a.ID,
		"acknowledged_at": bson.M{"$ne": nil},
		"resolved_at":     nil,
	}
	update := bson.M{"$set": a}

	result, err := r.collection.UpdateOne(ctx, filter, update)
	if err != nil {
		return fmt.Errorf("cannot update emergency: %w", err)
	}

	if result.MatchedCount == 0 {
		current, err := r.FindByID(ctx, a.ID)
		if err != nil {
			return err
		}
		if current.Resolved() {
			return fmt.Errorf("%w: emergency %s already resolved", ticket.ErrInvalidTransition, a.ID)
		}
		return fmt.Errorf("%w: emergency %s", ticket.ErrNotAcknowledged, a.ID)
	}

	return nil
}

var _ ticket.EmergencyRepository = (*EmergencyRepo)(nil)
