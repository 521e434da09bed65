package models

import "time"

// Status loan
const (
	LoanStatusActive  = "ACTIVE"
	LoanStatusOverdue = "OVERDUE"
	LoanStatusRepaid  = "REPAID"
)

type Loan struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	UserID    uint      `gorm:"not null;index" json:"user_id"`
	Amount    float64   `gorm:"type:decimal(12,2);not null" json:"amount"`
	Status    string    `gorm:"type:varchar(10);not null;default:'ACTIVE';index:idx_loan_status_due,priority:1" json:"status"`
	DueAt     time.Time `gorm:"not null;index:idx_loan_status_due,priority:2" json:"due_at"`
	CreatedAt time.Time `gorm:"not null" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null" json:"updated_at"`
}
