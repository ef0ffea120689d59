package realtime

import (
	"context"
	"errors"
	"fmt"

	"ridepool/internal/models"
	"ridepool/internal/services"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

// RideSource is the read-only view of ride state the guard needs.
type RideSource interface {
	GetByID(ctx context.Context, id primitive.ObjectID) (*models.Ride, error)
}

// Guard decides whether a user may participate in a ride's chat. The answer
// is recomputed on every call: passenger status can change between a join
// and the next send, and a stale yes would let a removed passenger keep
// posting.
type Guard struct {
	rides RideSource
}

func NewGuard(rides RideSource) *Guard {
	return &Guard{rides: rides}
}

// Authorize returns nil iff the user is the ride's poster or a passenger
// with status "joined". A passenger who left is denied until they re-join.
func (g *Guard) Authorize(ctx context.Context, userID, rideID primitive.ObjectID) error {
	ride, err := g.rides.GetByID(ctx, rideID)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return services.ErrRideNotFound
		}
		return fmt.Errorf("failed to load ride for authorization: %w", err)
	}

	if ride.PosterID == userID || ride.HasJoinedPassenger(userID) {
		return nil
	}

	return services.ErrNotParticipant
}
