package realtime

import (
	"encoding/json"
	"fmt"

	"ridepool/internal/models"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Wire event names. These string tags exist only at the transport edge; the
// engine itself dispatches on the typed events below.
const (
	EventJoinRideTopic  = "join-ride-topic"
	EventLeaveRideTopic = "leave-ride-topic"
	EventJoinRideChat   = "join-ride-chat"
	EventLeaveRideChat  = "leave-ride-chat"
	EventSendMessage    = "send-message"
	EventTypingStart    = "typing-start"
	EventTypingStop     = "typing-stop"

	EventJoinedChat            = "joined-chat"
	EventChatError             = "chat-error"
	EventNewMessage            = "new-message"
	EventMessageError          = "message-error"
	EventUserTyping            = "user-typing"
	EventUserStoppedTyping     = "user-stopped-typing"
	EventNewRide               = "new-ride"
	EventRideParticipantUpdate = "ride-participant-update"
	EventRideDeleted           = "ride-deleted"
)

// Envelope is the JSON frame exchanged on the socket.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// Inbound is the sum of client-to-server events.
type Inbound interface {
	Event() string
	isInbound()
}

type JoinRideTopic struct {
	RideID primitive.ObjectID `json:"ride_id"`
}

type LeaveRideTopic struct {
	RideID primitive.ObjectID `json:"ride_id"`
}

type JoinRideChat struct {
	RideID primitive.ObjectID `json:"ride_id"`
}

type LeaveRideChat struct {
	RideID primitive.ObjectID `json:"ride_id"`
}

type SendMessage struct {
	RideID        primitive.ObjectID `json:"ride_id"`
	Text          string             `json:"text"`
	CorrelationID string             `json:"correlation_id"`
}

type TypingStart struct {
	RideID primitive.ObjectID `json:"ride_id"`
}

type TypingStop struct {
	RideID primitive.ObjectID `json:"ride_id"`
}

func (JoinRideTopic) Event() string  { return EventJoinRideTopic }
func (LeaveRideTopic) Event() string { return EventLeaveRideTopic }
func (JoinRideChat) Event() string   { return EventJoinRideChat }
func (LeaveRideChat) Event() string  { return EventLeaveRideChat }
func (SendMessage) Event() string    { return EventSendMessage }
func (TypingStart) Event() string    { return EventTypingStart }
func (TypingStop) Event() string     { return EventTypingStop }

func (JoinRideTopic) isInbound()  {}
func (LeaveRideTopic) isInbound() {}
func (JoinRideChat) isInbound()   {}
func (LeaveRideChat) isInbound()  {}
func (SendMessage) isInbound()    {}
func (TypingStart) isInbound()    {}
func (TypingStop) isInbound()     {}

// Outbound is the sum of server-to-client events.
type Outbound interface {
	Event() string
}

type JoinedChat struct {
	RideID primitive.ObjectID `json:"ride_id"`
	// Messages seeds the joining client's view, oldest first.
	Messages []*models.ChatMessage `json:"messages"`
}

type ChatError struct {
	RideID primitive.ObjectID `json:"ride_id"`
	Reason string             `json:"reason"`
}

type NewMessage struct {
	Message *models.ChatMessage `json:"message"`
	// CorrelationID is echoed back so the sender can reconcile its
	// optimistic copy. Other recipients ignore it.
	CorrelationID string `json:"correlation_id,omitempty"`
}

type MessageError struct {
	CorrelationID string `json:"correlation_id"`
	Reason        string `json:"reason"`
}

type UserTyping struct {
	RideID primitive.ObjectID `json:"ride_id"`
	UserID primitive.ObjectID `json:"user_id"`
}

type UserStoppedTyping struct {
	RideID primitive.ObjectID `json:"ride_id"`
	UserID primitive.ObjectID `json:"user_id"`
}

type NewRide struct {
	Ride *models.Ride `json:"ride"`
}

type RideParticipantUpdate struct {
	RideID primitive.ObjectID `json:"ride_id"`
	UserID primitive.ObjectID `json:"user_id"`
	Action string             `json:"action"` // "joined" or "left"
}

type RideDeleted struct {
	RideID primitive.ObjectID `json:"ride_id"`
}

func (JoinedChat) Event() string            { return EventJoinedChat }
func (ChatError) Event() string             { return EventChatError }
func (NewMessage) Event() string            { return EventNewMessage }
func (MessageError) Event() string          { return EventMessageError }
func (UserTyping) Event() string            { return EventUserTyping }
func (UserStoppedTyping) Event() string     { return EventUserStoppedTyping }
func (NewRide) Event() string               { return EventNewRide }
func (RideParticipantUpdate) Event() string { return EventRideParticipantUpdate }
func (RideDeleted) Event() string           { return EventRideDeleted }

// DecodeInbound parses one wire frame into its typed event.
func DecodeInbound(data []byte) (Inbound, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("malformed frame: %w", err)
	}

	var ev Inbound
	switch env.Event {
	case EventJoinRideTopic:
		ev = &JoinRideTopic{}
	case EventLeaveRideTopic:
		ev = &LeaveRideTopic{}
	case EventJoinRideChat:
		ev = &JoinRideChat{}
	case EventLeaveRideChat:
		ev = &LeaveRideChat{}
	case EventSendMessage:
		ev = &SendMessage{}
	case EventTypingStart:
		ev = &TypingStart{}
	case EventTypingStop:
		ev = &TypingStop{}
	default:
		return nil, fmt.Errorf("unknown event %q", env.Event)
	}

	if len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, ev); err != nil {
			return nil, fmt.Errorf("malformed %s payload: %w", env.Event, err)
		}
	}

	return ev, nil
}

// DecodeOutbound parses a server frame; used by the Go client.
func DecodeOutbound(data []byte) (Outbound, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("malformed frame: %w", err)
	}

	var ev Outbound
	switch env.Event {
	case EventJoinedChat:
		ev = &JoinedChat{}
	case EventChatError:
		ev = &ChatError{}
	case EventNewMessage:
		ev = &NewMessage{}
	case EventMessageError:
		ev = &MessageError{}
	case EventUserTyping:
		ev = &UserTyping{}
	case EventUserStoppedTyping:
		ev = &UserStoppedTyping{}
	case EventNewRide:
		ev = &NewRide{}
	case EventRideParticipantUpdate:
		ev = &RideParticipantUpdate{}
	case EventRideDeleted:
		ev = &RideDeleted{}
	default:
		return nil, fmt.Errorf("unknown event %q", env.Event)
	}

	if len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, ev); err != nil {
			return nil, fmt.Errorf("malformed %s payload: %w", env.Event, err)
		}
	}

	return ev, nil
}

// Encode wraps a typed event in its wire envelope.
func Encode(event string, payload interface{}) ([]byte, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %s payload: %w", event, err)
	}

	return json.Marshal(Envelope{Event: event, Data: data})
}

// EncodeInbound serializes a client-to-server event.
func EncodeInbound(ev Inbound) ([]byte, error) {
	return Encode(ev.Event(), ev)
}

// EncodeOutbound serializes a server-to-client event.
func EncodeOutbound(ev Outbound) ([]byte, error) {
	return Encode(ev.Event(), ev)
}
