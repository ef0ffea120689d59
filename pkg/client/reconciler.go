// Package client holds the client-side chat state machine: it mirrors the
// server's per-ride chat stream, shows locally-sent messages immediately, and
// reconciles them against server confirmations by correlation id.
package client

import (
	"sync"
	"time"

	"ridepool/internal/models"
	"ridepool/internal/realtime"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Message is the client's view of one chat line. A pending message has no
// server id yet; a failed one was rejected by the server and stays flagged so
// the UI can offer a retry.
type Message struct {
	ID            primitive.ObjectID
	RideID        primitive.ObjectID
	SenderID      primitive.ObjectID
	Text          string
	CreatedAt     time.Time
	CorrelationID string
	Pending       bool
	Failed        bool
	FailReason    string
}

type rideLog struct {
	messages []*Message
	pending  map[string]*Message
	seen     map[primitive.ObjectID]bool
	loading  bool
}

func newRideLog() *rideLog {
	return &rideLog{
		pending: make(map[string]*Message),
		seen:    make(map[primitive.ObjectID]bool),
	}
}

// Reconciler tracks chat state for the rides this client participates in.
// Safe for concurrent use; the socket read loop and the UI may touch it from
// different goroutines.
type Reconciler struct {
	mu     sync.Mutex
	selfID primitive.ObjectID
	rides  map[primitive.ObjectID]*rideLog

	// newCorrelationID is swappable for deterministic tests.
	newCorrelationID func() string
}

func NewReconciler(selfID primitive.ObjectID) *Reconciler {
	return &Reconciler{
		selfID:           selfID,
		rides:            make(map[primitive.ObjectID]*rideLog),
		newCorrelationID: uuid.NewString,
	}
}

func (r *Reconciler) log(rideID primitive.ObjectID) *rideLog {
	l, ok := r.rides[rideID]
	if !ok {
		l = newRideLog()
		r.rides[rideID] = l
	}
	return l
}

// BeginLoading marks a ride's history as loading, typically right before
// emitting join-ride-chat.
func (r *Reconciler) BeginLoading(rideID primitive.ObjectID) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.log(rideID).loading = true
}

// Loading reports whether the ride's history is still being fetched.
func (r *Reconciler) Loading(rideID primitive.ObjectID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if l, ok := r.rides[rideID]; ok {
		return l.loading
	}
	return false
}

// Send registers an optimistic local message and returns the typed event to
// emit on the socket. The message shows up in Messages immediately, before
// any server confirmation.
func (r *Reconciler) Send(rideID primitive.ObjectID, text string) *realtime.SendMessage {
	r.mu.Lock()
	defer r.mu.Unlock()

	correlationID := r.newCorrelationID()
	local := &Message{
		RideID:        rideID,
		SenderID:      r.selfID,
		Text:          text,
		CreatedAt:     time.Now(),
		CorrelationID: correlationID,
		Pending:       true,
	}

	l := r.log(rideID)
	l.messages = append(l.messages, local)
	l.pending[correlationID] = local

	return &realtime.SendMessage{
		RideID:        rideID,
		Text:          text,
		CorrelationID: correlationID,
	}
}

// Apply feeds one server event into the reconciler. Events that do not
// concern chat state are ignored, so the socket loop can hand everything
// through.
func (r *Reconciler) Apply(ev realtime.Outbound) {
	switch ev := ev.(type) {
	case *realtime.JoinedChat:
		r.applyHistory(ev.RideID, ev.Messages)
	case *realtime.NewMessage:
		r.applyNewMessage(ev.Message, ev.CorrelationID)
	case *realtime.MessageError:
		r.applyMessageError(ev.CorrelationID, ev.Reason)
	}
}

// applyHistory seeds the ride's log with server history (already
// oldest-first). Local pending messages survive the reseed, re-appended
// after the confirmed history.
func (r *Reconciler) applyHistory(rideID primitive.ObjectID, history []*models.ChatMessage) {
	r.mu.Lock()
	defer r.mu.Unlock()

	l := r.log(rideID)
	l.loading = false

	var kept []*Message
	for _, m := range l.messages {
		if m.Pending || m.Failed {
			kept = append(kept, m)
		}
	}

	l.messages = nil
	l.seen = make(map[primitive.ObjectID]bool)
	for _, m := range history {
		l.messages = append(l.messages, confirmedMessage(m))
		l.seen[m.ID] = true
	}
	l.messages = append(l.messages, kept...)
}

func (r *Reconciler) applyNewMessage(msg *models.ChatMessage, correlationID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	l := r.log(msg.RideID)

	if correlationID != "" {
		if local, ok := l.pending[correlationID]; ok {
			// Replace the optimistic copy in place so the message keeps
			// its position in the list.
			local.ID = msg.ID
			local.SenderID = msg.SenderID
			local.Text = msg.Text
			local.CreatedAt = msg.CreatedAt
			local.Pending = false
			delete(l.pending, correlationID)
			l.seen[msg.ID] = true
			return
		}
	}

	// Duplicate delivery of an already-applied message is a no-op.
	if l.seen[msg.ID] {
		return
	}

	l.messages = append(l.messages, confirmedMessage(msg))
	l.seen[msg.ID] = true
}

// applyMessageError flags the optimistic copy as failed. The entry stays in
// the list (so the UI can show it and offer retry) but is no longer pending.
func (r *Reconciler) applyMessageError(correlationID, reason string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, l := range r.rides {
		if local, ok := l.pending[correlationID]; ok {
			local.Pending = false
			local.Failed = true
			local.FailReason = reason
			delete(l.pending, correlationID)
			return
		}
	}
}

// Messages returns a snapshot of the ride's message list in display order.
func (r *Reconciler) Messages(rideID primitive.ObjectID) []Message {
	r.mu.Lock()
	defer r.mu.Unlock()

	l, ok := r.rides[rideID]
	if !ok {
		return nil
	}

	out := make([]Message, len(l.messages))
	for i, m := range l.messages {
		out[i] = *m
	}
	return out
}

// PendingCount reports how many messages await confirmation for a ride.
func (r *Reconciler) PendingCount(rideID primitive.ObjectID) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	if l, ok := r.rides[rideID]; ok {
		return len(l.pending)
	}
	return 0
}

func confirmedMessage(m *models.ChatMessage) *Message {
	return &Message{
		ID:        m.ID,
		RideID:    m.RideID,
		SenderID:  m.SenderID,
		Text:      m.Text,
		CreatedAt: m.CreatedAt,
	}
}
