package realtime

import (
	"context"
	"errors"
	"testing"

	"ridepool/internal/models"
	"ridepool/internal/services"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestGuardAuthorize(t *testing.T) {
	posterID := primitive.NewObjectID()
	joinedID := primitive.NewObjectID()
	leftID := primitive.NewObjectID()
	strangerID := primitive.NewObjectID()

	ride := testRide(posterID, joinedID)
	ride.Passengers = append(ride.Passengers, models.Passenger{
		UserID: leftID,
		Status: models.PassengerStatusLeft,
	})

	guard := NewGuard(newFakeRideSource(ride))

	tests := []struct {
		name    string
		userID  primitive.ObjectID
		rideID  primitive.ObjectID
		wantErr error
	}{
		{"poster allowed", posterID, ride.ID, nil},
		{"joined passenger allowed", joinedID, ride.ID, nil},
		{"left passenger denied", leftID, ride.ID, services.ErrNotParticipant},
		{"stranger denied", strangerID, ride.ID, services.ErrNotParticipant},
		{"unknown ride", posterID, primitive.NewObjectID(), services.ErrRideNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := guard.Authorize(context.Background(), tt.userID, tt.rideID)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Authorize() = %v, want %v", err, tt.wantErr)
			}
		})
	}
}
