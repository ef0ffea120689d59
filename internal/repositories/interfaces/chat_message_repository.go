package interfaces

import (
	"context"

	"ridepool/internal/models"
	"ridepool/internal/utils"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type ChatMessageRepository interface {
	Create(ctx context.Context, message *models.ChatMessage) error

	// GetLatestByRide returns up to limit messages, newest first.
	GetLatestByRide(ctx context.Context, rideID primitive.ObjectID, limit int) ([]*models.ChatMessage, error)

	// GetByRide returns one page of messages, newest first, plus the total count.
	GetByRide(ctx context.Context, rideID primitive.ObjectID, params *utils.PaginationParams) ([]*models.ChatMessage, int64, error)

	// DeleteByRide removes every message for the ride. Invoked by the
	// ride-deletion workflow as a cascade.
	DeleteByRide(ctx context.Context, rideID primitive.ObjectID) error
}
