package mongodb

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/mamadbah2/relaybot/internal/domain/models"
)

// Repository defines the activation journal storage operations.
type Repository interface {
	Record(ctx context.Context, activation models.Activation) error
	ListActivations(ctx context.Context, start, end time.Time) ([]models.Activation, error)
}

// MongoDBRepository implements the Repository interface for MongoDB.
type MongoDBRepository struct {
	client   *mongo.Client
	dbName   string
	collName string
}

// NewMongoDBRepository creates a new MongoDB repository.
func NewMongoDBRepository(ctx context.Context, uri string, dbName string) (*MongoDBRepository, error) {
	clientOptions := options.Client().ApplyURI(uri)
	client, err := mongo.Connect(ctx, clientOptions)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to mongodb: %w", err)
	}

	if err := client.Ping(ctx, nil); err != nil {
		return nil, fmt.Errorf("failed to ping mongodb: %w", err)
	}

	repo := &MongoDBRepository{
		client:   client,
		dbName:   dbName,
		collName: "activations",
	}

	index := mongo.IndexModel{Keys: bson.D{{Key: "created_at", Value: 1}}}
	if _, err := repo.collection().Indexes().CreateOne(ctx, index); err != nil {
		return nil, fmt.Errorf("failed to create activations index: %w", err)
	}

	return repo, nil
}

func (r *MongoDBRepository) collection() *mongo.Collection {
	return r.client.Database(r.dbName).Collection(r.collName)
}

// Record saves one activation.
func (r *MongoDBRepository) Record(ctx context.Context, activation models.Activation) error {
	if _, err := r.collection().InsertOne(ctx, activation); err != nil {
		return fmt.Errorf("failed to insert activation: %w", err)
	}
	return nil
}

// ListActivations returns activations created in [start, end), oldest first.
func (r *MongoDBRepository) ListActivations(ctx context.Context, start, end time.Time) ([]models.Activation, error) {
	filter := bson.M{"created_at": bson.M{"$gte": start.UTC(), "$lt": end.UTC()}}
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}})

	cursor, err := r.collection().Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to query activations: %w", err)
	}

	var activations []models.Activation
	if err := cursor.All(ctx, &activations); err != nil {
		return nil, fmt.Errorf("failed to decode activations: %w", err)
	}
	return activations, nil
}

// Close closes the MongoDB connection.
func (r *MongoDBRepository) Close(ctx context.Context) error {
	return r.client.Disconnect(ctx)
}
