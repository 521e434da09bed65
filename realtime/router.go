package realtime

import (
	"sync"

	"github.com/yeremiapane/gaming-portal/models"
)

// Member is one open channel as seen by the router and hub.
type Member interface {
	ID() string
	Principal() models.Principal
	// Enqueue hands a frame to the channel without blocking. It returns false
	// when the channel is closed or its buffer is full.
	Enqueue(frame []byte) bool
	Close()
}

// RoomRouter is the live membership table. It holds no durable state; a
// reconnecting client simply joins again.
type RoomRouter struct {
	mu       sync.RWMutex
	channels map[string]joined
	rooms    map[RoomID]map[string]Member
}

type joined struct {
	member Member
	rooms  []RoomID
}

func NewRoomRouter() *RoomRouter {
	return &RoomRouter{
		channels: make(map[string]joined),
		rooms:    make(map[RoomID]map[string]Member),
	}
}

// Join adds the channel to the rooms its principal belongs to and returns them.
// Joining twice is a no-op.
func (r *RoomRouter) Join(m Member) []RoomID {
	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, ok := r.channels[m.ID()]; ok {
		return existing.rooms
	}

	rooms := []RoomID{RoomFor(m.Principal())}
	for _, room := range rooms {
		members, ok := r.rooms[room]
		if !ok {
			members = make(map[string]Member)
			r.rooms[room] = members
		}
		members[m.ID()] = m
	}
	r.channels[m.ID()] = joined{member: m, rooms: rooms}
	return rooms
}

// Leave removes the channel from every room. It reports whether the channel
// was still joined.
func (r *RoomRouter) Leave(channelID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	j, ok := r.channels[channelID]
	if !ok {
		return false
	}
	for _, room := range j.rooms {
		members := r.rooms[room]
		delete(members, channelID)
		if len(members) == 0 {
			delete(r.rooms, room)
		}
	}
	delete(r.channels, channelID)
	return true
}

// MembersOf returns a snapshot of the room's channels.
func (r *RoomRouter) MembersOf(room RoomID) []Member {
	r.mu.RLock()
	defer r.mu.RUnlock()

	members := r.rooms[room]
	out := make([]Member, 0, len(members))
	for _, m := range members {
		out = append(out, m)
	}
	return out
}

// IsOnline reports whether the user has at least one open channel.
func (r *RoomRouter) IsOnline(userID uint) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.rooms[UserRoom(userID)]) > 0
}

func (r *RoomRouter) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.channels)
}
