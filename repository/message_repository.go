package repository

import (
	"context"
	"sort"
	"time"

	"github.com/yeremiapane/gaming-portal/models"
	"gorm.io/gorm"
)

type MessageRepository struct {
	db *gorm.DB
}

func NewMessageRepository(db *gorm.DB) *MessageRepository {
	return &MessageRepository{db: db}
}

func (r *MessageRepository) Create(ctx context.Context, msg *models.ConversationMessage) error {
	return r.db.WithContext(ctx).Create(msg).Error
}

func (r *MessageRepository) FindByID(ctx context.Context, id uint) (*models.ConversationMessage, error) {
	var msg models.ConversationMessage
	if err := r.db.WithContext(ctx).First(&msg, id).Error; err != nil {
		return nil, notFound(err)
	}
	return &msg, nil
}

func (r *MessageRepository) Recent(ctx context.Context, userID uint, limit int, beforeID uint) ([]models.ConversationMessage, error) {
	q := r.db.WithContext(ctx).Where("user_id = ?", userID)
	if beforeID > 0 {
		q = q.Where("id < ?", beforeID)
	}

	var msgs []models.ConversationMessage
	err := q.Order("created_at DESC").Order("id DESC").Limit(limit).Find(&msgs).Error
	return msgs, err
}

func (r *MessageRepository) TransitionStatus(ctx context.Context, id uint, to models.MessageStatus, from []models.MessageStatus, at time.Time) (bool, error) {
	if len(from) == 0 {
		return false, nil
	}
	res := r.db.WithContext(ctx).
		Model(&models.ConversationMessage{}).
		Where("id = ? AND status IN ?", id, from).
		Updates(map[string]interface{}{
			"status":     to,
			"updated_at": at,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *MessageRepository) FindUnreadFrom(ctx context.Context, userID uint, sender models.SenderType) ([]models.ConversationMessage, error) {
	var msgs []models.ConversationMessage
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND sender_type = ? AND status = ?", userID, sender, models.MessageUnread).
		Order("id ASC").
		Find(&msgs).Error
	return msgs, err
}

func (r *MessageRepository) Summaries(ctx context.Context) ([]ConversationSummary, error) {
	var rows []struct {
		UserID uint
		LastID uint
		Unread int64
	}
	err := r.db.WithContext(ctx).
		Model(&models.ConversationMessage{}).
		Select("user_id, MAX(id) AS last_id, SUM(CASE WHEN status = ? AND sender_type = ? THEN 1 ELSE 0 END) AS unread",
			models.MessageUnread, models.SenderUser).
		Group("user_id").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return []ConversationSummary{}, nil
	}

	// newest conversation activity first
	sort.Slice(rows, func(i, j int) bool { return rows[i].LastID > rows[j].LastID })

	ids := make([]uint, 0, len(rows))
	for _, row := range rows {
		ids = append(ids, row.LastID)
	}
	var last []models.ConversationMessage
	if err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&last).Error; err != nil {
		return nil, err
	}
	byID := make(map[uint]*models.ConversationMessage, len(last))
	for i := range last {
		byID[last[i].ID] = &last[i]
	}

	summaries := make([]ConversationSummary, 0, len(rows))
	for _, row := range rows {
		summaries = append(summaries, ConversationSummary{
			UserID:         row.UserID,
			LastMessage:    byID[row.LastID],
			UnreadForStaff: row.Unread,
		})
	}
	return summaries, nil
}
