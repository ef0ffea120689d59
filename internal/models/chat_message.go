package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// MaxChatMessageLength is the hard cap on chat message text.
const MaxChatMessageLength = 500

// ChatMessage is a persisted chat line in a ride's chat. Messages are never
// mutated after creation and are bulk-deleted when the owning ride is deleted.
type ChatMessage struct {
	ID        primitive.ObjectID `json:"id" bson:"_id,omitempty"`
	RideID    primitive.ObjectID `json:"ride_id" bson:"ride_id" validate:"required"`
	SenderID  primitive.ObjectID `json:"sender_id" bson:"sender_id" validate:"required"`
	Text      string             `json:"text" bson:"text" validate:"required,max=500"`
	CreatedAt time.Time          `json:"created_at" bson:"created_at"`
}
