package realtime

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/yeremiapane/gaming-portal/models"
)

type fakeMember struct {
	id        string
	principal models.Principal
	capacity  int

	mu     sync.Mutex
	frames [][]byte
	closed bool
}

func newFakeMember(id string, p models.Principal) *fakeMember {
	return &fakeMember{id: id, principal: p, capacity: 1000}
}

func (m *fakeMember) ID() string                  { return m.id }
func (m *fakeMember) Principal() models.Principal { return m.principal }

func (m *fakeMember) Enqueue(frame []byte) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed || len(m.frames) >= m.capacity {
		return false
	}
	m.frames = append(m.frames, frame)
	return true
}

func (m *fakeMember) Close() {
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()
}

func (m *fakeMember) received() [][]byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([][]byte, len(m.frames))
	copy(out, m.frames)
	return out
}

func (m *fakeMember) isClosed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

var (
	alice = models.Principal{ID: 1, Role: models.RoleUser, DisplayName: "Alice"}
	bob   = models.Principal{ID: 2, Role: models.RoleUser, DisplayName: "Bob"}
	agent = models.Principal{ID: 99, Role: models.RoleAdmin, DisplayName: "Agent"}
)

func TestRoomIDString(t *testing.T) {
	assert.Equal(t, "user:42", UserRoom(42).String())
	assert.Equal(t, "admins", AdminRoom.String())
	assert.Equal(t, AdminRoom, RoomFor(agent))
	assert.Equal(t, UserRoom(1), RoomFor(alice))
	assert.NotEqual(t, UserRoom(1), UserRoom(2))
}

func TestRouterJoinAndLeave(t *testing.T) {
	r := NewRoomRouter()
	phone := newFakeMember("phone", alice)
	laptop := newFakeMember("laptop", alice)
	staff := newFakeMember("staff", agent)

	assert.Equal(t, []RoomID{UserRoom(1)}, r.Join(phone))
	r.Join(laptop)
	assert.Equal(t, []RoomID{AdminRoom}, r.Join(staff))

	// joining again changes nothing
	r.Join(phone)
	assert.Equal(t, 3, r.Count())
	assert.Len(t, r.MembersOf(UserRoom(1)), 2)
	assert.Len(t, r.MembersOf(AdminRoom), 1)
	assert.Empty(t, r.MembersOf(UserRoom(2)))

	assert.True(t, r.IsOnline(1))
	assert.False(t, r.IsOnline(2))

	assert.True(t, r.Leave("phone"))
	assert.False(t, r.Leave("phone"))
	assert.True(t, r.IsOnline(1))

	r.Leave("laptop")
	assert.False(t, r.IsOnline(1))
	assert.Empty(t, r.MembersOf(UserRoom(1)))
	assert.Equal(t, 1, r.Count())
}

func TestRouterConcurrentJoinLeave(t *testing.T) {
	r := NewRoomRouter()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			m := newFakeMember(string(rune('a'+i%26))+string(rune('0'+i/26)), bob)
			r.Join(m)
			r.MembersOf(UserRoom(2))
			r.Leave(m.ID())
		}(i)
	}
	wg.Wait()
	assert.Zero(t, r.Count())
	assert.False(t, r.IsOnline(2))
}
