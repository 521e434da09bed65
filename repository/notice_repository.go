package repository

import (
	"context"
	"time"

	"github.com/yeremiapane/gaming-portal/models"
	"gorm.io/gorm"
)

type NoticeRepository struct {
	db *gorm.DB
}

func NewNoticeRepository(db *gorm.DB) *NoticeRepository {
	return &NoticeRepository{db: db}
}

func (r *NoticeRepository) Create(ctx context.Context, n *models.BroadcastNotice) error {
	return r.db.WithContext(ctx).Create(n).Error
}

func (r *NoticeRepository) FindByID(ctx context.Context, id uint) (*models.BroadcastNotice, error) {
	var n models.BroadcastNotice
	if err := r.db.WithContext(ctx).First(&n, id).Error; err != nil {
		return nil, notFound(err)
	}
	return &n, nil
}

func (r *NoticeRepository) SetActive(ctx context.Context, id uint, active bool, at time.Time) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.BroadcastNotice{}).
		Where("id = ? AND is_active = ?", id, !active).
		Updates(map[string]interface{}{"is_active": active, "updated_at": at})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *NoticeRepository) ListActive(ctx context.Context, now time.Time, limit int) ([]models.BroadcastNotice, error) {
	var list []models.BroadcastNotice
	err := r.db.WithContext(ctx).
		Where("is_active = ?", true).
		Where("expires_at IS NULL OR expires_at > ?", now).
		Order("priority DESC").Order("created_at DESC").Order("id DESC").
		Limit(limit).
		Find(&list).Error
	return list, err
}
