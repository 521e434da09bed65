package models

import "time"

// BroadcastNotice is an admin-authored announcement. Activating it fans out
// one Notification per active user.
type BroadcastNotice struct {
	ID        uint             `gorm:"primaryKey" json:"id"`
	Title     string           `gorm:"type:varchar(150);not null" json:"title"`
	Message   string           `gorm:"type:text;not null" json:"message"`
	Severity  NotificationKind `gorm:"type:varchar(10);not null;default:'info'" json:"severity"`
	IsActive  bool             `gorm:"not null;default:false;index" json:"is_active"`
	Priority  int              `gorm:"not null;default:1" json:"priority"`
	ExpiresAt *time.Time       `json:"expires_at,omitempty"`
	CreatedAt time.Time        `gorm:"not null" json:"created_at"`
	UpdatedAt time.Time        `gorm:"not null" json:"updated_at"`
}

const (
	MinNoticePriority = 1
	MaxNoticePriority = 3
)

// Expired reports whether the notice has passed its expiry at now.
func (n BroadcastNotice) Expired(now time.Time) bool {
	return n.ExpiresAt != nil && !n.ExpiresAt.After(now)
}
