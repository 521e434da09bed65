package models

import (
	"errors"
	"strings"
	"time"
	"unicode/utf8"
)

type SenderType string

const (
	SenderUser  SenderType = "user"
	SenderAdmin SenderType = "admin"
)

func (s SenderType) Valid() bool {
	return s == SenderUser || s == SenderAdmin
}

// Counterpart returns the other side of the conversation.
func (s SenderType) Counterpart() SenderType {
	if s == SenderAdmin {
		return SenderUser
	}
	return SenderAdmin
}

type MessageStatus string

const (
	MessageUnread   MessageStatus = "unread"
	MessageRead     MessageStatus = "read"
	MessageResolved MessageStatus = "resolved"
)

func (s MessageStatus) Valid() bool {
	switch s {
	case MessageUnread, MessageRead, MessageResolved:
		return true
	}
	return false
}

// Predecessors lists the statuses a message may move to s from. Status only
// moves forward, so unread has none.
func (s MessageStatus) Predecessors() []MessageStatus {
	switch s {
	case MessageRead:
		return []MessageStatus{MessageUnread}
	case MessageResolved:
		return []MessageStatus{MessageUnread, MessageRead}
	}
	return nil
}

// CanTransition reports whether from -> to is a forward move.
func CanTransition(from, to MessageStatus) bool {
	for _, p := range to.Predecessors() {
		if p == from {
			return true
		}
	}
	return false
}

const MaxMessageLength = 4000

var (
	ErrEmptyMessage    = errors.New("message text is empty")
	ErrMessageTooLong  = errors.New("message text is too long")
	ErrEmptyAttachment = errors.New("attachment reference is empty")
)

// MessageBody is the payload of a conversation message: either a
// TextMessage or an AttachmentMessage, never both.
type MessageBody interface {
	Validate() error
	isMessageBody()
}

type TextMessage struct {
	Text string
}

func (TextMessage) isMessageBody() {}

func (m TextMessage) Validate() error {
	text := strings.TrimSpace(m.Text)
	if text == "" {
		return ErrEmptyMessage
	}
	if utf8.RuneCountInString(text) > MaxMessageLength {
		return ErrMessageTooLong
	}
	return nil
}

type AttachmentMessage struct {
	Ref string
}

func (AttachmentMessage) isMessageBody() {}

func (m AttachmentMessage) Validate() error {
	if strings.TrimSpace(m.Ref) == "" {
		return ErrEmptyAttachment
	}
	return nil
}

// ConversationMessage is one entry in a user's support conversation. Rows are
// append-only; only Status and UpdatedAt change after insert.
type ConversationMessage struct {
	ID            uint          `gorm:"primaryKey" json:"id"`
	UserID        uint          `gorm:"not null;index:idx_conversation_user_created,priority:1" json:"user_id"`
	SenderType    SenderType    `gorm:"type:varchar(10);not null" json:"sender_type"`
	Text          *string       `gorm:"type:text" json:"text,omitempty"`
	AttachmentRef *string       `gorm:"type:varchar(255)" json:"attachment_ref,omitempty"`
	Status        MessageStatus `gorm:"type:varchar(10);not null;default:'unread';index" json:"status"`
	CreatedAt     time.Time     `gorm:"not null;index:idx_conversation_user_created,priority:2" json:"created_at"`
	UpdatedAt     time.Time     `gorm:"not null" json:"updated_at"`
}

// NewConversationMessage builds an unread message from a validated body.
func NewConversationMessage(userID uint, sender SenderType, body MessageBody, now time.Time) ConversationMessage {
	msg := ConversationMessage{
		UserID:     userID,
		SenderType: sender,
		Status:     MessageUnread,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	switch b := body.(type) {
	case TextMessage:
		text := strings.TrimSpace(b.Text)
		msg.Text = &text
	case AttachmentMessage:
		ref := b.Ref
		msg.AttachmentRef = &ref
	}
	return msg
}

// Body rebuilds the tagged payload from the stored columns.
func (m ConversationMessage) Body() MessageBody {
	if m.AttachmentRef != nil {
		return AttachmentMessage{Ref: *m.AttachmentRef}
	}
	if m.Text != nil {
		return TextMessage{Text: *m.Text}
	}
	return nil
}
