package realtime

import (
	"encoding/json"
	"sync"

	"github.com/sirupsen/logrus"
	"github.com/yeremiapane/gaming-portal/utils"
)

// Hub is the process-wide Broadcaster. Events for one conversation go through
// a FIFO drained by a single goroutine, so members see them in publish order.
// Different conversations drain independently.
type Hub struct {
	router *RoomRouter

	mu     sync.Mutex
	queues map[uint]*eventQueue
	closed bool
	wg     sync.WaitGroup
}

type eventQueue struct {
	items []queuedFrame
}

type queuedFrame struct {
	event EventType
	frame []byte
	rooms []RoomID
}

func NewHub(router *RoomRouter) *Hub {
	return &Hub{
		router: router,
		queues: make(map[uint]*eventQueue),
	}
}

// Publish encodes the event once and queues it behind earlier events of the
// same conversation. It returns immediately.
func (h *Hub) Publish(evt Event) {
	frame, err := json.Marshal(Envelope{Event: evt.Type, Data: evt.Data})
	if err != nil {
		utils.ErrorLogger.Errorf("Error marshaling %s event: %v", evt.Type, err)
		return
	}
	item := queuedFrame{event: evt.Type, frame: frame, rooms: evt.Rooms()}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		utils.InfoLogger.WithField("event", evt.Type).Debug("Hub closed, event dropped")
		return
	}
	q, running := h.queues[evt.UserID]
	if !running {
		q = &eventQueue{}
		h.queues[evt.UserID] = q
		h.wg.Add(1)
	}
	q.items = append(q.items, item)
	h.mu.Unlock()

	if !running {
		go h.drain(evt.UserID, q)
	}
}

// Wait blocks until every queued event has been handed to its members.
func (h *Hub) Wait() {
	h.wg.Wait()
}

// Close stops accepting events. Events already queued are still delivered;
// call Wait afterwards to let them drain.
func (h *Hub) Close() {
	h.mu.Lock()
	h.closed = true
	h.mu.Unlock()
}

// drain owns q until it is empty; the queue leaves the map in the same
// critical section that observes it empty, so at most one drainer exists per
// conversation.
func (h *Hub) drain(userID uint, q *eventQueue) {
	defer h.wg.Done()
	for {
		h.mu.Lock()
		if len(q.items) == 0 {
			delete(h.queues, userID)
			h.mu.Unlock()
			return
		}
		item := q.items[0]
		q.items[0] = queuedFrame{}
		q.items = q.items[1:]
		h.mu.Unlock()

		h.deliver(item)
	}
}

func (h *Hub) deliver(item queuedFrame) {
	seen := make(map[string]struct{})
	delivered := 0
	for _, room := range item.rooms {
		for _, m := range h.router.MembersOf(room) {
			if _, dup := seen[m.ID()]; dup {
				continue
			}
			seen[m.ID()] = struct{}{}

			if m.Enqueue(item.frame) {
				delivered++
				continue
			}
			h.evict(m)
		}
	}

	utils.InfoLogger.WithFields(logrus.Fields{
		"event":     item.event,
		"delivered": delivered,
	}).Debug("Broadcast event")
}

// evict drops a channel whose buffer is full or already closed. The client
// catches up through history after reconnecting.
func (h *Hub) evict(m Member) {
	if h.router.Leave(m.ID()) {
		utils.ErrorLogger.WithFields(logrus.Fields{
			"channel_id": m.ID(),
			"user_id":    m.Principal().ID,
		}).Warn("Dropping slow channel")
	}
	m.Close()
}
