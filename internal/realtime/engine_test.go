package realtime

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"ridepool/internal/models"
	"ridepool/internal/services"
	"ridepool/internal/utils"
	"ridepool/pkg/logger"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

type fakeSession struct {
	mu        sync.Mutex
	id        string
	userID    primitive.ObjectID
	cohortKey string
	events    []Outbound
}

func newFakeSession(id string, userID primitive.ObjectID, cohortKey string) *fakeSession {
	return &fakeSession{id: id, userID: userID, cohortKey: cohortKey}
}

func (s *fakeSession) ID() string                 { return s.id }
func (s *fakeSession) UserID() primitive.ObjectID { return s.userID }
func (s *fakeSession) CohortKey() string          { return s.cohortKey }

func (s *fakeSession) Send(ev Outbound) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, ev)
}

func (s *fakeSession) received() []Outbound {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Outbound, len(s.events))
	copy(out, s.events)
	return out
}

func (s *fakeSession) countEvent(name string) int {
	n := 0
	for _, ev := range s.received() {
		if ev.Event() == name {
			n++
		}
	}
	return n
}

func (s *fakeSession) lastEvent() Outbound {
	evs := s.received()
	if len(evs) == 0 {
		return nil
	}
	return evs[len(evs)-1]
}

type fakeRideSource struct {
	mu    sync.Mutex
	rides map[primitive.ObjectID]*models.Ride
}

func newFakeRideSource(rides ...*models.Ride) *fakeRideSource {
	src := &fakeRideSource{rides: make(map[primitive.ObjectID]*models.Ride)}
	for _, r := range rides {
		src.rides[r.ID] = r
	}
	return src
}

func (f *fakeRideSource) GetByID(ctx context.Context, id primitive.ObjectID) (*models.Ride, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	ride, ok := f.rides[id]
	if !ok {
		return nil, mongo.ErrNoDocuments
	}
	return ride, nil
}

func (f *fakeRideSource) setPassengerStatus(rideID, userID primitive.ObjectID, status models.PassengerStatus) {
	f.mu.Lock()
	defer f.mu.Unlock()
	ride := f.rides[rideID]
	for i := range ride.Passengers {
		if ride.Passengers[i].UserID == userID {
			ride.Passengers[i].Status = status
		}
	}
}

type fakeChatStore struct {
	mu      sync.Mutex
	history []*models.ChatMessage
	nextSeq int
}

func (f *fakeChatStore) Append(ctx context.Context, rideID, senderID primitive.ObjectID, text string) (*models.ChatMessage, error) {
	if text == "" {
		return nil, services.ErrEmptyMessage
	}
	if len([]rune(text)) > models.MaxChatMessageLength {
		return nil, services.ErrMessageTooLong
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextSeq++
	message := &models.ChatMessage{
		ID:        primitive.NewObjectID(),
		RideID:    rideID,
		SenderID:  senderID,
		Text:      text,
		CreatedAt: time.Now().Add(time.Duration(f.nextSeq) * time.Millisecond),
	}
	f.history = append(f.history, message)
	return message, nil
}

func (f *fakeChatStore) Latest(ctx context.Context, rideID primitive.ObjectID, limit int) ([]*models.ChatMessage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*models.ChatMessage
	for _, m := range f.history {
		if m.RideID == rideID {
			out = append(out, m)
		}
	}
	if len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out, nil
}

func (f *fakeChatStore) Page(ctx context.Context, rideID primitive.ObjectID, params *utils.PaginationParams) ([]*models.ChatMessage, int64, error) {
	messages, err := f.Latest(ctx, rideID, len(f.history))
	return messages, int64(len(messages)), err
}

func (f *fakeChatStore) DeleteAllForRide(ctx context.Context, rideID primitive.ObjectID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	var kept []*models.ChatMessage
	for _, m := range f.history {
		if m.RideID != rideID {
			kept = append(kept, m)
		}
	}
	f.history = kept
	return nil
}

func newTestEngine(rides *fakeRideSource) (*Engine, *fakeChatStore) {
	chats := &fakeChatStore{}
	registry := NewRegistry()
	return NewEngine(registry, NewGuard(rides), chats, logger.Discard()), chats
}

func testRide(poster primitive.ObjectID, passengers ...primitive.ObjectID) *models.Ride {
	ride := &models.Ride{
		ID:       primitive.NewObjectID(),
		PosterID: poster,
		Seats:    4,
		Status:   models.RideStatusOpen,
	}
	for _, p := range passengers {
		ride.Passengers = append(ride.Passengers, models.Passenger{
			UserID:   p,
			Status:   models.PassengerStatusJoined,
			JoinedAt: time.Now(),
		})
	}
	return ride
}

func connect(e *Engine, seq int, userID primitive.ObjectID, cohortKey string) *fakeSession {
	sess := newFakeSession(fmt.Sprintf("conn-%d", seq), userID, cohortKey)
	e.Connect(sess)
	return sess
}

func TestConnectJoinsPersonalAndCohortRooms(t *testing.T) {
	userID := primitive.NewObjectID()
	engine, _ := newTestEngine(newFakeRideSource())

	sess := connect(engine, 1, userID, "acme")

	if !engine.Registry().InRoom(sess.ID(), RoomForUser(userID)) {
		t.Error("expected session in personal room")
	}
	if !engine.Registry().InRoom(sess.ID(), RoomForCohort("acme")) {
		t.Error("expected session in cohort room")
	}
	if !engine.Registry().IsOnline(userID) {
		t.Error("expected user online after connect")
	}
}

func TestConnectWithoutCohortUsesFallbackRoom(t *testing.T) {
	engine, _ := newTestEngine(newFakeRideSource())

	sess := connect(engine, 1, primitive.NewObjectID(), "")

	if !engine.Registry().InRoom(sess.ID(), FallbackCohortRoom) {
		t.Error("expected session in fallback cohort room")
	}
}

func TestSendMessageReachesEveryChatMemberOnce(t *testing.T) {
	posterID := primitive.NewObjectID()
	passengerID := primitive.NewObjectID()
	ride := testRide(posterID, passengerID)
	engine, chats := newTestEngine(newFakeRideSource(ride))
	ctx := context.Background()

	poster := connect(engine, 1, posterID, "")
	passenger := connect(engine, 2, passengerID, "")

	engine.Handle(ctx, poster, &JoinRideChat{RideID: ride.ID})
	engine.Handle(ctx, passenger, &JoinRideChat{RideID: ride.ID})

	engine.Handle(ctx, passenger, &SendMessage{RideID: ride.ID, Text: "hello", CorrelationID: "c-1"})

	if got := len(chats.history); got != 1 {
		t.Errorf("persisted %d messages, want 1", got)
	}

	for _, sess := range []*fakeSession{poster, passenger} {
		if got := sess.countEvent(EventNewMessage); got != 1 {
			t.Errorf("session %s: got %d new-message events, want 1", sess.ID(), got)
		}
	}

	last, ok := passenger.lastEvent().(*NewMessage)
	if !ok {
		t.Fatalf("expected NewMessage, got %T", passenger.lastEvent())
	}
	if last.CorrelationID != "c-1" {
		t.Errorf("correlation id = %q, want c-1", last.CorrelationID)
	}
	if last.Message.Text != "hello" {
		t.Errorf("text = %q, want hello", last.Message.Text)
	}
	if last.Message.SenderID != passengerID {
		t.Error("message attributed to the wrong author")
	}
	if last.Message.ID.IsZero() {
		t.Error("confirmed message has no server id")
	}
}

func TestJoinRideChatSeedsHistory(t *testing.T) {
	posterID := primitive.NewObjectID()
	passengerID := primitive.NewObjectID()
	ride := testRide(posterID, passengerID)
	engine, _ := newTestEngine(newFakeRideSource(ride))
	ctx := context.Background()

	poster := connect(engine, 1, posterID, "")
	engine.Handle(ctx, poster, &JoinRideChat{RideID: ride.ID})
	engine.Handle(ctx, poster, &SendMessage{RideID: ride.ID, Text: "first", CorrelationID: "c-1"})
	engine.Handle(ctx, poster, &SendMessage{RideID: ride.ID, Text: "second", CorrelationID: "c-2"})

	passenger := connect(engine, 2, passengerID, "")
	engine.Handle(ctx, passenger, &JoinRideChat{RideID: ride.ID})

	var joined *JoinedChat
	for _, ev := range passenger.received() {
		if jc, ok := ev.(*JoinedChat); ok {
			joined = jc
		}
	}
	if joined == nil {
		t.Fatal("expected joined-chat event")
	}
	if len(joined.Messages) != 2 {
		t.Fatalf("got %d seeded messages, want 2", len(joined.Messages))
	}
	if joined.Messages[0].Text != "first" || joined.Messages[1].Text != "second" {
		t.Errorf("history out of order: %q, %q", joined.Messages[0].Text, joined.Messages[1].Text)
	}
}

func TestOutsiderDeniedChatJoinAndSend(t *testing.T) {
	posterID := primitive.NewObjectID()
	outsiderID := primitive.NewObjectID()
	ride := testRide(posterID)
	engine, _ := newTestEngine(newFakeRideSource(ride))
	ctx := context.Background()

	outsider := connect(engine, 1, outsiderID, "")

	engine.Handle(ctx, outsider, &JoinRideChat{RideID: ride.ID})

	chatErr, ok := outsider.lastEvent().(*ChatError)
	if !ok {
		t.Fatalf("expected ChatError, got %T", outsider.lastEvent())
	}
	if chatErr.Reason != ReasonNotAuthorized {
		t.Errorf("reason = %q, want %q", chatErr.Reason, ReasonNotAuthorized)
	}
	if engine.Registry().InRoom(outsider.ID(), RoomForRideChat(ride.ID)) {
		t.Error("denied session must not be in the chat room")
	}

	engine.Handle(ctx, outsider, &SendMessage{RideID: ride.ID, Text: "hi", CorrelationID: "c-9"})

	msgErr, ok := outsider.lastEvent().(*MessageError)
	if !ok {
		t.Fatalf("expected MessageError, got %T", outsider.lastEvent())
	}
	if msgErr.CorrelationID != "c-9" {
		t.Errorf("correlation id = %q, want c-9", msgErr.CorrelationID)
	}
	if msgErr.Reason != ReasonNotAuthorized {
		t.Errorf("reason = %q, want %q", msgErr.Reason, ReasonNotAuthorized)
	}
}

func TestUnknownRideReportsRideNotFound(t *testing.T) {
	engine, _ := newTestEngine(newFakeRideSource())
	ctx := context.Background()

	sess := connect(engine, 1, primitive.NewObjectID(), "")
	engine.Handle(ctx, sess, &JoinRideChat{RideID: primitive.NewObjectID()})

	chatErr, ok := sess.lastEvent().(*ChatError)
	if !ok {
		t.Fatalf("expected ChatError, got %T", sess.lastEvent())
	}
	if chatErr.Reason != ReasonRideNotFound {
		t.Errorf("reason = %q, want %q", chatErr.Reason, ReasonRideNotFound)
	}
}

// A passenger whose status flips to "left" after joining the room is still
// rejected on the next send. Authorization is never cached.
func TestLeftPassengerRejectedOnNextSend(t *testing.T) {
	posterID := primitive.NewObjectID()
	passengerID := primitive.NewObjectID()
	ride := testRide(posterID, passengerID)
	rides := newFakeRideSource(ride)
	engine, _ := newTestEngine(rides)
	ctx := context.Background()

	passenger := connect(engine, 1, passengerID, "")
	engine.Handle(ctx, passenger, &JoinRideChat{RideID: ride.ID})
	engine.Handle(ctx, passenger, &SendMessage{RideID: ride.ID, Text: "before", CorrelationID: "c-1"})

	if passenger.countEvent(EventMessageError) != 0 {
		t.Fatal("send before leaving must succeed")
	}

	rides.setPassengerStatus(ride.ID, passengerID, models.PassengerStatusLeft)

	engine.Handle(ctx, passenger, &SendMessage{RideID: ride.ID, Text: "after", CorrelationID: "c-2"})

	msgErr, ok := passenger.lastEvent().(*MessageError)
	if !ok {
		t.Fatalf("expected MessageError, got %T", passenger.lastEvent())
	}
	if msgErr.Reason != ReasonNotAuthorized {
		t.Errorf("reason = %q, want %q", msgErr.Reason, ReasonNotAuthorized)
	}
}

func TestSendMessageValidationErrors(t *testing.T) {
	posterID := primitive.NewObjectID()
	ride := testRide(posterID)
	engine, _ := newTestEngine(newFakeRideSource(ride))
	ctx := context.Background()

	poster := connect(engine, 1, posterID, "")
	engine.Handle(ctx, poster, &JoinRideChat{RideID: ride.ID})

	long := make([]rune, models.MaxChatMessageLength+1)
	for i := range long {
		long[i] = 'x'
	}

	tests := []struct {
		name   string
		text   string
		reason string
	}{
		{"empty", "", ReasonEmptyMessage},
		{"too long", string(long), ReasonMessageTooLong},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			engine.Handle(ctx, poster, &SendMessage{RideID: ride.ID, Text: tt.text, CorrelationID: "c-x"})

			msgErr, ok := poster.lastEvent().(*MessageError)
			if !ok {
				t.Fatalf("expected MessageError, got %T", poster.lastEvent())
			}
			if msgErr.Reason != tt.reason {
				t.Errorf("reason = %q, want %q", msgErr.Reason, tt.reason)
			}
		})
	}

	if got := poster.countEvent(EventNewMessage); got != 0 {
		t.Errorf("rejected sends must not broadcast, got %d new-message events", got)
	}
}

func TestTypingExcludesOriginatorAndRequiresMembership(t *testing.T) {
	posterID := primitive.NewObjectID()
	passengerID := primitive.NewObjectID()
	ride := testRide(posterID, passengerID)
	engine, _ := newTestEngine(newFakeRideSource(ride))
	ctx := context.Background()

	poster := connect(engine, 1, posterID, "")
	passenger := connect(engine, 2, passengerID, "")
	engine.Handle(ctx, poster, &JoinRideChat{RideID: ride.ID})

	// Not yet in the chat room: typing signal is dropped.
	engine.Handle(ctx, passenger, &TypingStart{RideID: ride.ID})
	if poster.countEvent(EventUserTyping) != 0 {
		t.Error("typing from a non-member must not be relayed")
	}

	engine.Handle(ctx, passenger, &JoinRideChat{RideID: ride.ID})
	engine.Handle(ctx, passenger, &TypingStart{RideID: ride.ID})
	engine.Handle(ctx, passenger, &TypingStop{RideID: ride.ID})

	if poster.countEvent(EventUserTyping) != 1 {
		t.Errorf("poster got %d user-typing events, want 1", poster.countEvent(EventUserTyping))
	}
	if poster.countEvent(EventUserStoppedTyping) != 1 {
		t.Errorf("poster got %d user-stopped-typing events, want 1", poster.countEvent(EventUserStoppedTyping))
	}
	if passenger.countEvent(EventUserTyping) != 0 {
		t.Error("typing signal must not echo back to its originator")
	}
}

func TestLeaveRideChatStopsDelivery(t *testing.T) {
	posterID := primitive.NewObjectID()
	passengerID := primitive.NewObjectID()
	ride := testRide(posterID, passengerID)
	engine, _ := newTestEngine(newFakeRideSource(ride))
	ctx := context.Background()

	poster := connect(engine, 1, posterID, "")
	passenger := connect(engine, 2, passengerID, "")
	engine.Handle(ctx, poster, &JoinRideChat{RideID: ride.ID})
	engine.Handle(ctx, passenger, &JoinRideChat{RideID: ride.ID})

	engine.Handle(ctx, passenger, &LeaveRideChat{RideID: ride.ID})
	engine.Handle(ctx, poster, &SendMessage{RideID: ride.ID, Text: "anyone there", CorrelationID: "c-1"})

	if got := passenger.countEvent(EventNewMessage); got != 0 {
		t.Errorf("departed member got %d new-message events, want 0", got)
	}
	if got := poster.countEvent(EventNewMessage); got != 1 {
		t.Errorf("poster got %d new-message events, want 1", got)
	}
}

func TestNotifyRideCreatedReachesCohortOnly(t *testing.T) {
	posterID := primitive.NewObjectID()
	engine, _ := newTestEngine(newFakeRideSource())

	sameCohort := connect(engine, 1, primitive.NewObjectID(), "acme")
	otherCohort := connect(engine, 2, primitive.NewObjectID(), "globex")

	ride := testRide(posterID)
	ride.CohortKey = "acme"
	engine.NotifyRideCreated(ride)

	if got := sameCohort.countEvent(EventNewRide); got != 1 {
		t.Errorf("cohort member got %d new-ride events, want 1", got)
	}
	if got := otherCohort.countEvent(EventNewRide); got != 0 {
		t.Errorf("other cohort got %d new-ride events, want 0", got)
	}
}

func TestNotifyParticipantUpdateReachesTopicAndPoster(t *testing.T) {
	posterID := primitive.NewObjectID()
	watcherID := primitive.NewObjectID()
	joinerID := primitive.NewObjectID()
	ride := testRide(posterID)
	engine, _ := newTestEngine(newFakeRideSource(ride))
	ctx := context.Background()

	poster := connect(engine, 1, posterID, "")
	watcher := connect(engine, 2, watcherID, "")
	engine.Handle(ctx, watcher, &JoinRideTopic{RideID: ride.ID})

	engine.NotifyParticipantUpdate(ride.ID, posterID, joinerID, ActionJoined)

	update, ok := watcher.lastEvent().(*RideParticipantUpdate)
	if !ok {
		t.Fatalf("expected RideParticipantUpdate, got %T", watcher.lastEvent())
	}
	if update.Action != ActionJoined || update.UserID != joinerID {
		t.Errorf("got action=%q user=%s", update.Action, update.UserID.Hex())
	}

	// Poster hears it through their personal room without watching the topic.
	if got := poster.countEvent(EventRideParticipantUpdate); got != 1 {
		t.Errorf("poster got %d participant updates, want 1", got)
	}
}

func TestNotifyRideDeletedReachesChatAndTopicMembers(t *testing.T) {
	posterID := primitive.NewObjectID()
	passengerID := primitive.NewObjectID()
	watcherID := primitive.NewObjectID()
	ride := testRide(posterID, passengerID)
	engine, _ := newTestEngine(newFakeRideSource(ride))
	ctx := context.Background()

	passenger := connect(engine, 1, passengerID, "")
	watcher := connect(engine, 2, watcherID, "")
	engine.Handle(ctx, passenger, &JoinRideChat{RideID: ride.ID})
	engine.Handle(ctx, watcher, &JoinRideTopic{RideID: ride.ID})

	engine.NotifyRideDeleted(ride.ID)

	if got := passenger.countEvent(EventRideDeleted); got != 1 {
		t.Errorf("chat member got %d ride-deleted events, want 1", got)
	}
	if got := watcher.countEvent(EventRideDeleted); got != 1 {
		t.Errorf("topic watcher got %d ride-deleted events, want 1", got)
	}
}

func TestDisconnectStopsAllDelivery(t *testing.T) {
	posterID := primitive.NewObjectID()
	passengerID := primitive.NewObjectID()
	ride := testRide(posterID, passengerID)
	engine, _ := newTestEngine(newFakeRideSource(ride))
	ctx := context.Background()

	poster := connect(engine, 1, posterID, "")
	passenger := connect(engine, 2, passengerID, "")
	engine.Handle(ctx, poster, &JoinRideChat{RideID: ride.ID})
	engine.Handle(ctx, passenger, &JoinRideChat{RideID: ride.ID})

	engine.Disconnect(passenger.ID())

	if engine.Registry().IsOnline(passengerID) {
		t.Error("disconnected user still marked online")
	}

	engine.Handle(ctx, poster, &SendMessage{RideID: ride.ID, Text: "gone?", CorrelationID: "c-1"})

	if got := passenger.countEvent(EventNewMessage); got != 0 {
		t.Errorf("disconnected session got %d new-message events, want 0", got)
	}
}
