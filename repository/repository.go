package repository

import (
	"context"
	"errors"
	"time"

	"github.com/yeremiapane/gaming-portal/models"
	"gorm.io/gorm"
)

// ErrNotFound is returned when a lookup by id matches no row.
var ErrNotFound = errors.New("record not found")

type MessageStore interface {
	Create(ctx context.Context, msg *models.ConversationMessage) error
	FindByID(ctx context.Context, id uint) (*models.ConversationMessage, error)
	// Recent returns up to limit messages of a conversation, newest first.
	// beforeID > 0 restricts the page to messages older than that id.
	Recent(ctx context.Context, userID uint, limit int, beforeID uint) ([]models.ConversationMessage, error)
	// TransitionStatus moves a message to status only if its current status is
	// one of from. It reports whether the row changed.
	TransitionStatus(ctx context.Context, id uint, to models.MessageStatus, from []models.MessageStatus, at time.Time) (bool, error)
	FindUnreadFrom(ctx context.Context, userID uint, sender models.SenderType) ([]models.ConversationMessage, error)
	Summaries(ctx context.Context) ([]ConversationSummary, error)
}

// ConversationSummary is one row of the admin inbox.
type ConversationSummary struct {
	UserID         uint                        `json:"user_id"`
	LastMessage    *models.ConversationMessage `json:"last_message"`
	UnreadForStaff int64                       `json:"unread_for_staff"`
}

// DedupKey identifies a reminder of one kind about one record for one user.
type DedupKey struct {
	UserID     uint
	Title      string
	SourceType string
	SourceID   uint
}

type NotificationStore interface {
	Create(ctx context.Context, n *models.Notification) error
	FindByID(ctx context.Context, id uint) (*models.Notification, error)
	ListByUser(ctx context.Context, userID uint, limit, offset int) ([]models.Notification, error)
	// MarkRead flips one unread notification owned by userID. It reports
	// whether a row changed.
	MarkRead(ctx context.Context, userID, id uint, at time.Time) (bool, error)
	MarkAllRead(ctx context.Context, userID uint, at time.Time) (int64, error)
	CountUnread(ctx context.Context, userID uint) (int64, error)
	// ExistsSince reports whether a notification matching key was created at
	// or after since. A zero since matches any creation time.
	ExistsSince(ctx context.Context, key DedupKey, since time.Time) (bool, error)
}

type NoticeStore interface {
	Create(ctx context.Context, n *models.BroadcastNotice) error
	FindByID(ctx context.Context, id uint) (*models.BroadcastNotice, error)
	// SetActive flips is_active and reports whether the row changed.
	SetActive(ctx context.Context, id uint, active bool, at time.Time) (bool, error)
	ListActive(ctx context.Context, now time.Time, limit int) ([]models.BroadcastNotice, error)
}

type LoanStore interface {
	// FindActiveDueBetween returns ACTIVE loans with from <= due_at <= to.
	FindActiveDueBetween(ctx context.Context, from, to time.Time) ([]models.Loan, error)
	// FindActivePastDue returns ACTIVE loans with due_at < now.
	FindActivePastDue(ctx context.Context, now time.Time) ([]models.Loan, error)
	FindOverdue(ctx context.Context) ([]models.Loan, error)
	// MarkOverdue moves an ACTIVE loan to OVERDUE and reports whether this
	// call performed the transition.
	MarkOverdue(ctx context.Context, id uint, at time.Time) (bool, error)
}

type UserStore interface {
	FindByID(ctx context.Context, id uint) (*models.User, error)
	ListActiveUsers(ctx context.Context) ([]models.User, error)
	IsActive(ctx context.Context, id uint, role string) (bool, error)
}

func notFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}
