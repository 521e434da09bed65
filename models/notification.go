package models

import (
	"time"
)

type NotificationKind string

const (
	NotificationInfo    NotificationKind = "info"
	NotificationWarning NotificationKind = "warning"
	NotificationSuccess NotificationKind = "success"
	NotificationError   NotificationKind = "error"
)

func (k NotificationKind) Valid() bool {
	switch k {
	case NotificationInfo, NotificationWarning, NotificationSuccess, NotificationError:
		return true
	}
	return false
}

// Source types for Notification.SourceType.
const (
	SourceLoan   = "loan"
	SourceNotice = "notice"
)

// Notification is one item in a user's inbox. Only IsRead/ReadAt ever change
// after creation, and ReadAt is set exactly when IsRead is true.
type Notification struct {
	ID         uint             `gorm:"primaryKey" json:"id"`
	UserID     uint             `gorm:"not null;index;index:idx_notification_dedup,priority:1" json:"user_id"`
	Title      string           `gorm:"type:varchar(150);not null;index:idx_notification_dedup,priority:4" json:"title"`
	Body       string           `gorm:"type:text;not null" json:"body"`
	Kind       NotificationKind `gorm:"type:varchar(10);not null;default:'info'" json:"kind"`
	Link       *string          `gorm:"type:varchar(255)" json:"link,omitempty"`
	SourceType *string          `gorm:"type:varchar(20);index:idx_notification_dedup,priority:2" json:"source_type,omitempty"`
	SourceID   *uint            `gorm:"index:idx_notification_dedup,priority:3" json:"source_id,omitempty"`
	IsRead     bool             `gorm:"not null;default:false;index" json:"is_read"`
	ReadAt     *time.Time       `json:"read_at,omitempty"`
	CreatedAt  time.Time        `gorm:"not null;index:idx_notification_dedup,priority:5" json:"created_at"`
}
