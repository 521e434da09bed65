package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/yeremiapane/gaming-portal/models"
	"github.com/yeremiapane/gaming-portal/repository"
	"github.com/yeremiapane/gaming-portal/utils"
)

// ActiveNoticeLimit is how many notices the public banner shows.
const ActiveNoticeLimit = 3

type NoticeInput struct {
	Title     string                  `json:"title" binding:"required"`
	Message   string                  `json:"message" binding:"required"`
	Severity  models.NotificationKind `json:"severity"`
	Priority  int                     `json:"priority"`
	ExpiresAt *time.Time              `json:"expires_at"`
	Active    bool                    `json:"is_active"`
}

type NoticeService struct {
	store  repository.NoticeStore
	ledger *NotificationLedger

	Now func() time.Time
}

func NewNoticeService(store repository.NoticeStore, ledger *NotificationLedger) *NoticeService {
	return &NoticeService{
		store:  store,
		ledger: ledger,
		Now:    func() time.Time { return time.Now().UTC() },
	}
}

// Create stores a notice. An active notice is fanned out right away; the
// result is nil otherwise.
func (s *NoticeService) Create(ctx context.Context, in NoticeInput) (*models.BroadcastNotice, *FanOutResult, error) {
	in.Title = strings.TrimSpace(in.Title)
	if in.Title == "" || strings.TrimSpace(in.Message) == "" {
		return nil, nil, fmt.Errorf("%w: title and message are required", ErrValidation)
	}
	if in.Severity == "" {
		in.Severity = models.NotificationInfo
	}
	if !in.Severity.Valid() {
		return nil, nil, fmt.Errorf("%w: unknown severity %q", ErrValidation, in.Severity)
	}
	if in.Priority == 0 {
		in.Priority = models.MinNoticePriority
	}
	if in.Priority < models.MinNoticePriority || in.Priority > models.MaxNoticePriority {
		return nil, nil, fmt.Errorf("%w: priority must be between %d and %d", ErrValidation, models.MinNoticePriority, models.MaxNoticePriority)
	}

	now := s.Now()
	if in.ExpiresAt != nil {
		exp := in.ExpiresAt.UTC()
		if !exp.After(now) {
			return nil, nil, fmt.Errorf("%w: expires_at is in the past", ErrValidation)
		}
		in.ExpiresAt = &exp
	}

	notice := models.BroadcastNotice{
		Title:     in.Title,
		Message:   in.Message,
		Severity:  in.Severity,
		Priority:  in.Priority,
		ExpiresAt: in.ExpiresAt,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.store.Create(ctx, &notice); err != nil {
		utils.ErrorLogger.Errorf("Error saving notice: %v", err)
		return nil, nil, fmt.Errorf("%w: %v", ErrPersistence, err)
	}

	if !in.Active {
		return &notice, nil, nil
	}
	return s.Activate(ctx, notice.ID)
}

// Activate switches a notice on and fans it out. Activating an active notice
// does nothing and returns a nil result.
func (s *NoticeService) Activate(ctx context.Context, id uint) (*models.BroadcastNotice, *FanOutResult, error) {
	notice, err := s.find(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	if notice.Expired(s.Now()) {
		return nil, nil, fmt.Errorf("%w: notice %d has expired", ErrValidation, id)
	}

	changed, err := s.store.SetActive(ctx, id, true, s.Now())
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	if notice, err = s.find(ctx, id); err != nil {
		return nil, nil, err
	}
	if !changed {
		return notice, nil, nil
	}

	result, err := s.ledger.FanOutBroadcastNotice(ctx, *notice)
	if err != nil {
		return notice, nil, err
	}
	return notice, result, nil
}

func (s *NoticeService) Deactivate(ctx context.Context, id uint) (*models.BroadcastNotice, error) {
	if _, err := s.find(ctx, id); err != nil {
		return nil, err
	}
	if _, err := s.store.SetActive(ctx, id, false, s.Now()); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	return s.find(ctx, id)
}

// FanOut re-runs the fan-out of an active notice. Users already notified are
// skipped, so this only fills gaps left by earlier failures.
func (s *NoticeService) FanOut(ctx context.Context, id uint) (*FanOutResult, error) {
	notice, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}
	if !notice.IsActive || notice.Expired(s.Now()) {
		return nil, fmt.Errorf("%w: notice %d is not active", ErrValidation, id)
	}
	return s.ledger.FanOutBroadcastNotice(ctx, *notice)
}

// ActiveNotices returns the top notices by priority, then recency.
func (s *NoticeService) ActiveNotices(ctx context.Context) ([]models.BroadcastNotice, error) {
	list, err := s.store.ListActive(ctx, s.Now(), ActiveNoticeLimit)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	return list, nil
}

func (s *NoticeService) find(ctx context.Context, id uint) (*models.BroadcastNotice, error) {
	notice, err := s.store.FindByID(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("%w: notice %d", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	return notice, nil
}
