package mongodb

import (
	"context"
	"fmt"
	"time"

	"ridepool/internal/models"
	"ridepool/internal/repositories/interfaces"
	"ridepool/internal/utils"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type chatMessageRepository struct {
	collection *mongo.Collection
}

func NewChatMessageRepository(db *mongo.Database) interfaces.ChatMessageRepository {
	return &chatMessageRepository{
		collection: db.Collection("chat_messages"),
	}
}

func (r *chatMessageRepository) Create(ctx context.Context, message *models.ChatMessage) error {
	// The server timestamp is authoritative; whatever the client sent is
	// overwritten here.
	message.ID = primitive.NewObjectID()
	message.CreatedAt = time.Now()

	_, err := r.collection.InsertOne(ctx, message)
	if err != nil {
		return fmt.Errorf("failed to insert chat message: %w", err)
	}

	return nil
}

func (r *chatMessageRepository) GetLatestByRide(ctx context.Context, rideID primitive.ObjectID, limit int) ([]*models.ChatMessage, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}}).
		SetLimit(int64(limit))

	cursor, err := r.collection.Find(ctx, bson.M{"ride_id": rideID}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to find latest messages: %w", err)
	}
	defer cursor.Close(ctx)

	return decodeMessages(ctx, cursor)
}

func (r *chatMessageRepository) GetByRide(ctx context.Context, rideID primitive.ObjectID, params *utils.PaginationParams) ([]*models.ChatMessage, int64, error) {
	filter := bson.M{"ride_id": rideID}

	total, err := r.collection.CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to count messages: %w", err)
	}

	cursor, err := r.collection.Find(ctx, filter, params.GetSortOptions())
	if err != nil {
		return nil, 0, fmt.Errorf("failed to find messages: %w", err)
	}
	defer cursor.Close(ctx)

	messages, err := decodeMessages(ctx, cursor)
	if err != nil {
		return nil, 0, err
	}

	return messages, total, nil
}

func (r *chatMessageRepository) DeleteByRide(ctx context.Context, rideID primitive.ObjectID) error {
	_, err := r.collection.DeleteMany(ctx, bson.M{"ride_id": rideID})
	if err != nil {
		return fmt.Errorf("failed to delete ride messages: %w", err)
	}

	return nil
}

func decodeMessages(ctx context.Context, cursor *mongo.Cursor) ([]*models.ChatMessage, error) {
	var messages []*models.ChatMessage
	for cursor.Next(ctx) {
		var message models.ChatMessage
		if err := cursor.Decode(&message); err != nil {
			return nil, fmt.Errorf("failed to decode message: %w", err)
		}
		messages = append(messages, &message)
	}

	return messages, nil
}
