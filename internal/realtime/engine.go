package realtime

import (
	"context"
	"errors"

	"ridepool/internal/models"
	"ridepool/internal/services"
	"ridepool/internal/utils"
	"ridepool/pkg/logger"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Wire-level error reasons sent with chat-error and message-error.
const (
	ReasonRideNotFound   = "ride-not-found"
	ReasonNotAuthorized  = "not-authorized"
	ReasonEmptyMessage   = "empty-message"
	ReasonMessageTooLong = "message-too-long"
	ReasonInternal       = "internal-error"
)

// Participant update actions carried by ride-participant-update.
const (
	ActionJoined = "joined"
	ActionLeft   = "left"
)

// Engine is the fan-out orchestrator. All room and presence mutation goes
// through it: inbound socket events arrive via Handle, ride lifecycle
// notifications arrive from the HTTP layer via the Notify methods, and both
// funnel into the one registry.
//
// Handlers run on the calling session's read goroutine, so events from one
// connection never interleave with each other. Events from different
// connections may interleave around the chat store round trip, which is why
// authorization is re-checked immediately before each append rather than
// remembered from join time.
type Engine struct {
	registry *Registry
	guard    *Guard
	chats    services.ChatService
	log      *logger.Logger
}

func NewEngine(registry *Registry, guard *Guard, chats services.ChatService, log *logger.Logger) *Engine {
	return &Engine{
		registry: registry,
		guard:    guard,
		chats:    chats,
		log:      log,
	}
}

// Connect registers an authenticated session and performs the automatic room
// assignment: the personal room, plus exactly one cohort room (the identity's
// named cohort, or the shared fallback). This runs synchronously before any
// client-initiated event is processed.
func (e *Engine) Connect(sess Session) {
	e.registry.Register(sess)
	e.registry.Join(sess.ID(), RoomForUser(sess.UserID()))
	e.registry.Join(sess.ID(), RoomForCohort(sess.CohortKey()))

	e.log.WithConnID(sess.ID()).WithUserID(sess.UserID()).Info("Session connected")
}

// Disconnect tears the session out of every room and clears presence. Called
// on voluntary close and on network failure alike; it is a normal terminal
// transition, not an error path.
func (e *Engine) Disconnect(sessionID string) {
	e.registry.Disconnect(sessionID)
	e.log.WithConnID(sessionID).Info("Session disconnected")
}

// Handle dispatches one inbound event for an active session. Per-action
// failures are reported only to the initiating session and never escape this
// method.
func (e *Engine) Handle(ctx context.Context, sess Session, ev Inbound) {
	switch ev := ev.(type) {
	case *JoinRideTopic:
		e.registry.Join(sess.ID(), RoomForRideTopic(ev.RideID))

	case *LeaveRideTopic:
		e.registry.Leave(sess.ID(), RoomForRideTopic(ev.RideID))

	case *JoinRideChat:
		e.handleJoinRideChat(ctx, sess, ev)

	case *LeaveRideChat:
		e.registry.Leave(sess.ID(), RoomForRideChat(ev.RideID))

	case *SendMessage:
		e.handleSendMessage(ctx, sess, ev)

	case *TypingStart:
		if e.registry.InRoom(sess.ID(), RoomForRideChat(ev.RideID)) {
			e.registry.BroadcastExcept(RoomForRideChat(ev.RideID), sess.ID(), &UserTyping{
				RideID: ev.RideID,
				UserID: sess.UserID(),
			})
		}

	case *TypingStop:
		if e.registry.InRoom(sess.ID(), RoomForRideChat(ev.RideID)) {
			e.registry.BroadcastExcept(RoomForRideChat(ev.RideID), sess.ID(), &UserStoppedTyping{
				RideID: ev.RideID,
				UserID: sess.UserID(),
			})
		}
	}
}

func (e *Engine) handleJoinRideChat(ctx context.Context, sess Session, ev *JoinRideChat) {
	if err := e.guard.Authorize(ctx, sess.UserID(), ev.RideID); err != nil {
		e.log.WithUserID(sess.UserID()).WithRideID(ev.RideID).WithError(err).Warn("Chat join denied")
		sess.Send(&ChatError{RideID: ev.RideID, Reason: reasonFor(err)})
		return
	}

	e.registry.Join(sess.ID(), RoomForRideChat(ev.RideID))

	history, err := e.chats.Latest(ctx, ev.RideID, utils.ChatHistorySeedLimit)
	if err != nil {
		// The member is in the room either way; they just start without
		// seeded history.
		e.log.WithRideID(ev.RideID).WithError(err).Error("Failed to load chat history")
		history = nil
	}

	sess.Send(&JoinedChat{RideID: ev.RideID, Messages: history})
}

func (e *Engine) handleSendMessage(ctx context.Context, sess Session, ev *SendMessage) {
	// Authorization runs fresh on every send, right before the append. The
	// append suspends on store I/O, so a check cached from join time could
	// be stale by now.
	if err := e.guard.Authorize(ctx, sess.UserID(), ev.RideID); err != nil {
		e.log.WithUserID(sess.UserID()).WithRideID(ev.RideID).WithError(err).Warn("Message send denied")
		sess.Send(&MessageError{CorrelationID: ev.CorrelationID, Reason: reasonFor(err)})
		return
	}

	message, err := e.chats.Append(ctx, ev.RideID, sess.UserID(), ev.Text)
	if err != nil {
		e.log.WithUserID(sess.UserID()).WithRideID(ev.RideID).WithError(err).Warn("Message rejected")
		sess.Send(&MessageError{CorrelationID: ev.CorrelationID, Reason: reasonFor(err)})
		return
	}

	// Everyone in the chat room gets the confirmed message, the sender
	// included. The sender's copy carries the correlation id so the client
	// can swap out its optimistic placeholder.
	e.registry.Broadcast(RoomForRideChat(ev.RideID), &NewMessage{
		Message:       message,
		CorrelationID: ev.CorrelationID,
	})
}

// NotifyRideCreated fans a new ride out to the poster's cohort room. Called
// by the HTTP layer after the ride is persisted.
func (e *Engine) NotifyRideCreated(ride *models.Ride) {
	e.registry.Broadcast(RoomForCohort(ride.CohortKey), &NewRide{Ride: ride})
	e.log.WithRideID(ride.ID).Info("Ride created broadcast")
}

// NotifyParticipantUpdate announces a passenger joining or leaving, both to
// the ride's topic room and to the poster's personal room.
func (e *Engine) NotifyParticipantUpdate(rideID, posterID, userID primitive.ObjectID, action string) {
	ev := &RideParticipantUpdate{RideID: rideID, UserID: userID, Action: action}
	e.registry.Broadcast(RoomForRideTopic(rideID), ev)
	e.registry.Broadcast(RoomForUser(posterID), ev)
}

// NotifyRideDeleted tells current chat members (and topic watchers) that the
// ride is gone. The HTTP layer calls this before it purges persisted chat
// history, so members hear about the closure while the room still exists.
func (e *Engine) NotifyRideDeleted(rideID primitive.ObjectID) {
	ev := &RideDeleted{RideID: rideID}
	e.registry.Broadcast(RoomForRideChat(rideID), ev)
	e.registry.Broadcast(RoomForRideTopic(rideID), ev)
	e.log.WithRideID(rideID).Info("Ride deleted broadcast")
}

// Registry exposes the engine's registry for presence queries.
func (e *Engine) Registry() *Registry {
	return e.registry
}

func reasonFor(err error) string {
	switch {
	case errors.Is(err, services.ErrRideNotFound):
		return ReasonRideNotFound
	case errors.Is(err, services.ErrNotParticipant):
		return ReasonNotAuthorized
	case errors.Is(err, services.ErrEmptyMessage):
		return ReasonEmptyMessage
	case errors.Is(err, services.ErrMessageTooLong):
		return ReasonMessageTooLong
	default:
		return ReasonInternal
	}
}
