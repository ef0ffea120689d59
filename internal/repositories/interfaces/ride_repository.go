package interfaces

import (
	"context"

	"ridepool/internal/models"
	"ridepool/internal/utils"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type RideRepository interface {
	// Basic CRUD operations
	Create(ctx context.Context, ride *models.Ride) error
	GetByID(ctx context.Context, id primitive.ObjectID) (*models.Ride, error)
	Update(ctx context.Context, id primitive.ObjectID, updates map[string]interface{}) error
	Delete(ctx context.Context, id primitive.ObjectID) error

	// Passenger list mutations
	AddPassenger(ctx context.Context, rideID, userID primitive.ObjectID) error
	SetPassengerStatus(ctx context.Context, rideID, userID primitive.ObjectID, status models.PassengerStatus) error

	// Search and filtering
	GetByPoster(ctx context.Context, posterID primitive.ObjectID, params *utils.PaginationParams) ([]*models.Ride, int64, error)
	GetByCohort(ctx context.Context, cohortKey string, params *utils.PaginationParams) ([]*models.Ride, int64, error)
}
