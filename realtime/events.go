package realtime

import (
	"encoding/json"

	"github.com/yeremiapane/gaming-portal/models"
)

type EventType string

// Outbound events
const (
	EventMessageCreated       EventType = "message:created"
	EventMessageStatusChanged EventType = "message:status"
	EventNotificationCreated  EventType = "notification:created"
	EventConnected            EventType = "connected"
	EventHistory              EventType = "history"
	EventError                EventType = "error"
)

// Inbound events
const (
	InboundSendMessage      = "message:send"
	InboundOpenConversation = "conversation:open"
	InboundSetStatus        = "message:status"
	InboundSyncHistory      = "history:sync"
)

// Envelope is the wire frame for every server push.
type Envelope struct {
	Event EventType   `json:"event"`
	Data  interface{} `json:"data,omitempty"`
}

// InboundFrame is what clients send over the socket.
type InboundFrame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// Event is a persistence-confirmed domain event addressed to one conversation.
type Event struct {
	Type   EventType
	UserID uint
	Data   interface{}
}

// Rooms returns the routing targets: message events reach both the user and
// staff, notifications only the user.
func (e Event) Rooms() []RoomID {
	switch e.Type {
	case EventMessageCreated, EventMessageStatusChanged:
		return []RoomID{UserRoom(e.UserID), AdminRoom}
	default:
		return []RoomID{UserRoom(e.UserID)}
	}
}

// Broadcaster pushes events to connected members. Publish never blocks on
// recipients and never fails the caller.
type Broadcaster interface {
	Publish(evt Event)
}

type StatusChangedPayload struct {
	UserID   uint                         `json:"user_id"`
	Status   models.MessageStatus         `json:"status"`
	Messages []models.ConversationMessage `json:"messages"`
}

type NotificationPayload struct {
	Notification models.Notification `json:"notification"`
	UnreadCount  int64               `json:"unread_count"`
}

type ConnectedPayload struct {
	ChannelID string           `json:"channel_id"`
	Principal models.Principal `json:"principal"`
	Rooms     []RoomID         `json:"rooms"`
}

// HistoryPayload answers conversation:open and history:sync.
type HistoryPayload struct {
	UserID   uint                         `json:"user_id"`
	Messages []models.ConversationMessage `json:"messages"`
	HasMore  bool                         `json:"has_more"`
}

type ErrorPayload struct {
	Message string `json:"message"`
}

func MessageCreated(msg models.ConversationMessage) Event {
	return Event{Type: EventMessageCreated, UserID: msg.UserID, Data: msg}
}

func MessageStatusChanged(userID uint, status models.MessageStatus, msgs []models.ConversationMessage) Event {
	return Event{
		Type:   EventMessageStatusChanged,
		UserID: userID,
		Data:   StatusChangedPayload{UserID: userID, Status: status, Messages: msgs},
	}
}

func NotificationCreated(n models.Notification, unread int64) Event {
	return Event{
		Type:   EventNotificationCreated,
		UserID: n.UserID,
		Data:   NotificationPayload{Notification: n, UnreadCount: unread},
	}
}
