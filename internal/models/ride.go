package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type RideStatus string
type PassengerStatus string

const (
	RideStatusOpen      RideStatus = "open"
	RideStatusFull      RideStatus = "full"
	RideStatusDeparted  RideStatus = "departed"
	RideStatusCompleted RideStatus = "completed"
	RideStatusCancelled RideStatus = "cancelled"

	PassengerStatusJoined PassengerStatus = "joined"
	PassengerStatusLeft   PassengerStatus = "left"
)

// Passenger is one entry on a ride's passenger list. A passenger who leaves
// keeps their entry with status "left"; re-joining flips it back to "joined".
type Passenger struct {
	UserID   primitive.ObjectID `json:"user_id" bson:"user_id"`
	Status   PassengerStatus    `json:"status" bson:"status"`
	JoinedAt time.Time          `json:"joined_at" bson:"joined_at"`
	LeftAt   *time.Time         `json:"left_at" bson:"left_at"`
}

type Ride struct {
	ID          primitive.ObjectID `json:"id" bson:"_id,omitempty"`
	PosterID    primitive.ObjectID `json:"poster_id" bson:"poster_id" validate:"required"`
	CohortKey   string             `json:"cohort_key" bson:"cohort_key"`
	Origin      string             `json:"origin" bson:"origin" validate:"required"`
	Destination string             `json:"destination" bson:"destination" validate:"required"`
	DepartAt    time.Time          `json:"depart_at" bson:"depart_at" validate:"required"`
	Seats       int                `json:"seats" bson:"seats" validate:"required,min=1"`
	Notes       string             `json:"notes" bson:"notes"`
	Status      RideStatus         `json:"status" bson:"status" default:"open"`
	Passengers  []Passenger        `json:"passengers" bson:"passengers"`
	CreatedAt   time.Time          `json:"created_at" bson:"created_at"`
	UpdatedAt   time.Time          `json:"updated_at" bson:"updated_at"`
}

// HasJoinedPassenger reports whether userID is on the passenger list with
// status "joined".
func (r *Ride) HasJoinedPassenger(userID primitive.ObjectID) bool {
	for _, p := range r.Passengers {
		if p.UserID == userID && p.Status == PassengerStatusJoined {
			return true
		}
	}
	return false
}

// JoinedSeats counts currently joined passengers.
func (r *Ride) JoinedSeats() int {
	n := 0
	for _, p := range r.Passengers {
		if p.Status == PassengerStatusJoined {
			n++
		}
	}
	return n
}
