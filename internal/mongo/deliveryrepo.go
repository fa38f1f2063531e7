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

type DeliveryRepo struct {
	client     *mongo.Client
	db         *mongo.Database
	collection *mongo.Collection
	logger     aqm.Logger
	config     *aqm.Config
}

func NewDeliveryRepo(config *aqm.Config, logger aqm.Logger) *DeliveryRepo {
	return &DeliveryRepo{
		logger: logger,
		config: config,
	}
}

func (r *DeliveryRepo) Start(ctx context.Context) error {
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
	r.collection = r.db.Collection("deliveries")

	standIndexModel := mongo.IndexModel{
		Keys: bson.D{{Key: "stand_id", Value: 1}},
	}
	if _, err := r.collection.Indexes().CreateOne(ctx, standIndexModel); err != nil {
		return fmt.Errorf("cannot create stand_id index: %w", err)
	}

	statusIndexModel := mongo.IndexModel{
		Keys: bson.D{{Key: "status", Value: 1}},
	}
	if _, err := r.collection.Indexes().CreateOne(ctx, statusIndexModel); err != nil {
		return fmt.Errorf("cannot create status index: %w", err)
	}

	r.logger.Infof("Connected to MongoDB: %s, database: %s, collection: deliveries", mongoURL, dbName)
	return nil
}

func (r *DeliveryRepo) GetDatabase() *mongo.Database {
	return r.db
}

func (r *DeliveryRepo) Stop(ctx context.Context) error {
	if r.client != nil {
		if err := r.client.Disconnect(ctx); err != nil {
			return fmt.Errorf("cannot disconnect from MongoDB: %w", err)
		}
		r.logger.Info("Disconnected from MongoDB")
	}
	return nil
}

func (r *DeliveryRepo) Create(ctx context.Context, d *ticket.DeliveryRequest) error {
	d.ModelVersion = 1

	_, err := r.collection.InsertOne(ctx, d)
	if err != nil {
		return fmt.Errorf("cannot insert delivery: %w", err)
	}
	return nil
}

func (r *DeliveryRepo) FindByID(ctx context.Context, id ticket.DeliveryID) (*ticket.DeliveryRequest, error) {
	var d ticket.DeliveryRequest
	err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&d)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ticket.ErrNotFound
		}
		return nil, fmt.Errorf("cannot find delivery: %w", err)
	}
	return &d, nil
}

func (r *DeliveryRepo) List(ctx context.Context, filter ticket.DeliveryFilter) ([]ticket.DeliveryRequest, error) {
	query := bson.M{}

	if filter.StandID != nil {
		query["stand_id"] = *filter.StandID
	}

	if filter.Status != nil {
		query["status"] = *filter.Status
	}

	if filter.Department != nil {
		query["department"] = *filter.Department
	}

	if filter.Priority != nil {
		query["priority"] = *filter.Priority
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "updated_at", Value: -1}})

	if filter.Limit > 0 {
		opts.SetLimit(int64(filter.Limit))
	}

	if filter.Offset > 0 {
		opts.SetSkip(int64(filter.Offset))
	}

	cursor, err := r.collection.Find(ctx, query, opts)
	if err != nil {
		return nil, fmt.Errorf("cannot find deliveries: %w", err)
	}
	defer cursor.Close(ctx)

	var deliveries []ticket.DeliveryRequest
	if err := cursor.All(ctx, &deliveries); err != nil {
		return nil, fmt.Errorf("cannot decode deliveries: %w", err)
	}

	return deliveries, nil
}

// UpdateStatusFrom writes d only if the stored document still carries
// fromStatus. A matched count of zero means the ticket is gone or another
// actor advanced it first; a follow-up read decides which.
func (r *DeliveryRepo) UpdateStatusFrom(ctx context.Context, d *ticket.DeliveryRequest, fromStatus string) error {
	filter := bson.M{"_id": d.ID, "status": fromStatus}
	update := bson.M{"$set": d}

	result, err := r.collection.UpdateOne(ctx, filter, update)
	if err != nil {
		return fmt.Errorf("cannot update delivery: %w", err)
	}

	if result.MatchedCount == 0 {
		if _, err := r.FindByID(ctx, d.ID); err != nil {
			return err
		}
		return fmt.Errorf("%w: delivery %s no longer in status %s", ticket.ErrInvalidTransition, d.ID, fromStatus)
	}

	return nil
}

var _ ticket.DeliveryRepository = (*DeliveryRepo)(nil)
