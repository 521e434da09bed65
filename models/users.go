package models

import "time"

// Roles carried by accounts and resolved principals.
const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// User is the slice of the portal account that the messaging subsystem reads.
// Accounts are created and owned by the registration side of the portal.
type User struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Name      string    `gorm:"type:varchar(255);not null" json:"name"`
	Email     string    `gorm:"type:varchar(255);unique;not null" json:"email"`
	Role      string    `gorm:"type:varchar(20);not null;default:'user';index" json:"role"`
	IsActive  bool      `gorm:"not null;default:true" json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Principal is the identity bound to one open channel or request.
type Principal struct {
	ID          uint   `json:"id"`
	Role        string `json:"role"`
	DisplayName string `json:"display_name"`
}

func (p Principal) IsAdmin() bool {
	return p.Role == RoleAdmin
}
