package repository

import (
	"context"
	"time"

	"github.com/yeremiapane/gaming-portal/models"
	"gorm.io/gorm"
)

type LoanRepository struct {
	db *gorm.DB
}

func NewLoanRepository(db *gorm.DB) *LoanRepository {
	return &LoanRepository{db: db}
}

func (r *LoanRepository) FindActiveDueBetween(ctx context.Context, from, to time.Time) ([]models.Loan, error) {
	var loans []models.Loan
	err := r.db.WithContext(ctx).
		Where("status = ? AND due_at >= ? AND due_at <= ?", models.LoanStatusActive, from, to).
		Order("due_at ASC").
		Find(&loans).Error
	return loans, err
}

func (r *LoanRepository) FindActivePastDue(ctx context.Context, now time.Time) ([]models.Loan, error) {
	var loans []models.Loan
	err := r.db.WithContext(ctx).
		Where("status = ? AND due_at < ?", models.LoanStatusActive, now).
		Order("due_at ASC").
		Find(&loans).Error
	return loans, err
}

func (r *LoanRepository) FindOverdue(ctx context.Context) ([]models.Loan, error) {
	var loans []models.Loan
	err := r.db.WithContext(ctx).
		Where("status = ?", models.LoanStatusOverdue).
		Order("due_at ASC").
		Find(&loans).Error
	return loans, err
}

func (r *LoanRepository) MarkOverdue(ctx context.Context, id uint, at time.Time) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.Loan{}).
		Where("id = ? AND status = ?", id, models.LoanStatusActive).
		Updates(map[string]interface{}{"status": models.LoanStatusOverdue, "updated_at": at})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}
