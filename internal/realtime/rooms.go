package realtime

import (
	"sync"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// FallbackCohortRoom receives ride-creation broadcasts for users whose
// identity carries no cohort key.
const FallbackCohortRoom = "group:public"

// Room name constructors. Rooms have no storage of their own; a room is just
// the set of sessions currently joined under its name.
func RoomForUser(userID primitive.ObjectID) string {
	return "user:" + userID.Hex()
}

func RoomForCohort(cohortKey string) string {
	if cohortKey == "" {
		return FallbackCohortRoom
	}
	return "group:" + cohortKey
}

func RoomForRideTopic(rideID primitive.ObjectID) string {
	return "ride-topic:" + rideID.Hex()
}

func RoomForRideChat(rideID primitive.ObjectID) string {
	return "ride-chat:" + rideID.Hex()
}

// Session is one authenticated socket connection. Send must not block; the
// transport buffers outbound frames per connection.
type Session interface {
	ID() string
	UserID() primitive.ObjectID
	CohortKey() string
	Send(ev Outbound)
}

// Registry tracks which sessions are in which rooms, plus user presence. It
// is an explicit object handed to the engine, never a package-level
// singleton, so tests can run several registries side by side.
//
// Membership is kept in a dual index (room to sessions, session to rooms) so
// disconnect cleanup is proportional to the session's own rooms.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]Session
	rooms    map[string]map[string]Session
	joined   map[string]map[string]bool
	presence map[primitive.ObjectID]string
}

func NewRegistry() *Registry {
	return &Registry{
		sessions: make(map[string]Session),
		rooms:    make(map[string]map[string]Session),
		joined:   make(map[string]map[string]bool),
		presence: make(map[primitive.ObjectID]string),
	}
}

// Register adds an authenticated session and marks its user online. A user
// with multiple open connections keeps only the most recent one in the
// presence map; last write wins, there is no multi-tab fan-out.
func (r *Registry) Register(sess Session) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.sessions[sess.ID()] = sess
	r.joined[sess.ID()] = make(map[string]bool)
	r.presence[sess.UserID()] = sess.ID()
}

// Join adds the session to a room. Idempotent; joining a room twice is the
// same as joining once. Unknown session ids are ignored, which keeps room
// membership a subset of live sessions.
func (r *Registry) Join(sessionID, room string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	sess, ok := r.sessions[sessionID]
	if !ok {
		return
	}

	if r.rooms[room] == nil {
		r.rooms[room] = make(map[string]Session)
	}
	r.rooms[room][sessionID] = sess
	r.joined[sessionID][room] = true
}

// Leave removes the session from a room. Idempotent.
func (r *Registry) Leave(sessionID, room string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.leaveLocked(sessionID, room)
}

func (r *Registry) leaveLocked(sessionID, room string) {
	if members, ok := r.rooms[room]; ok {
		delete(members, sessionID)
		if len(members) == 0 {
			delete(r.rooms, room)
		}
	}
	if rooms, ok := r.joined[sessionID]; ok {
		delete(rooms, room)
	}
}

// InRoom reports whether the session is currently a member of the room.
func (r *Registry) InRoom(sessionID, room string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.joined[sessionID][room]
}

// MemberCount returns the number of sessions in a room.
func (r *Registry) MemberCount(room string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.rooms[room])
}

// Broadcast delivers the event to every current member of the room. Within
// one room, successive broadcasts reach each member in emission order.
func (r *Registry) Broadcast(room string, ev Outbound) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, sess := range r.rooms[room] {
		sess.Send(ev)
	}
}

// BroadcastExcept delivers to every member of the room except one session,
// typically the originator of a typing signal.
func (r *Registry) BroadcastExcept(room, exceptSessionID string, ev Outbound) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for id, sess := range r.rooms[room] {
		if id == exceptSessionID {
			continue
		}
		sess.Send(ev)
	}
}

// Disconnect removes the session from every room it was in, from the session
// table, and from presence. All removal funnels through here, so no dead
// session can linger in a room.
func (r *Registry) Disconnect(sessionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	sess, ok := r.sessions[sessionID]
	if !ok {
		return
	}

	for room := range r.joined[sessionID] {
		if members, ok := r.rooms[room]; ok {
			delete(members, sessionID)
			if len(members) == 0 {
				delete(r.rooms, room)
			}
		}
	}
	delete(r.joined, sessionID)
	delete(r.sessions, sessionID)

	// A newer connection may have overwritten presence; only clear it if it
	// still points at this session.
	if r.presence[sess.UserID()] == sessionID {
		delete(r.presence, sess.UserID())
	}
}

// IsOnline reports whether the user has a tracked connection.
func (r *Registry) IsOnline(userID primitive.ObjectID) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, ok := r.presence[userID]
	return ok
}

// ConnectionOf returns the user's primary session id, if any.
func (r *Registry) ConnectionOf(userID primitive.ObjectID) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.presence[userID]
	return id, ok
}
