package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/yeremiapane/gaming-portal/models"
	"github.com/yeremiapane/gaming-portal/realtime"
	"github.com/yeremiapane/gaming-portal/repository"
	"github.com/yeremiapane/gaming-portal/utils"
)

const (
	DefaultHistoryLimit = 50
	MaxHistoryLimit     = 200
)

type HistoryQuery struct {
	Limit    int  `form:"limit"`
	BeforeID uint `form:"before_id"`
}

// HistoryPage holds messages in display order, oldest first.
type HistoryPage struct {
	Messages []models.ConversationMessage `json:"messages"`
	HasMore  bool                         `json:"has_more"`
}

// MessageService owns the conversation message lifecycle. Writes to one
// conversation are serialized and published while the lock is held, so the
// hub queues events in commit order.
type MessageService struct {
	store       repository.MessageStore
	broadcaster realtime.Broadcaster
	locks       *keyedMutex

	Now func() time.Time
}

func NewMessageService(store repository.MessageStore, broadcaster realtime.Broadcaster) *MessageService {
	return &MessageService{
		store:       store,
		broadcaster: broadcaster,
		locks:       newKeyedMutex(),
		Now:         func() time.Time { return time.Now().UTC() },
	}
}

// PostMessage stores a new unread message in the user's conversation and
// publishes MessageCreated.
func (s *MessageService) PostMessage(ctx context.Context, userID uint, sender models.SenderType, body models.MessageBody) (*models.ConversationMessage, error) {
	if userID == 0 {
		return nil, fmt.Errorf("%w: conversation user is required", ErrValidation)
	}
	if !sender.Valid() {
		return nil, fmt.Errorf("%w: unknown sender type %q", ErrValidation, sender)
	}
	if body == nil {
		return nil, fmt.Errorf("%w: %v", ErrValidation, models.ErrEmptyMessage)
	}
	if err := body.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidation, err)
	}

	unlock := s.locks.Lock(userID)
	defer unlock()

	msg := models.NewConversationMessage(userID, sender, body, s.Now())
	if err := s.store.Create(ctx, &msg); err != nil {
		utils.ErrorLogger.Errorf("Error saving message for user %d: %v", userID, err)
		return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
	}

	s.broadcaster.Publish(realtime.MessageCreated(msg))
	return &msg, nil
}

// SetStatus moves one message forward. A repeated or backward transition
// returns the stored record unchanged and publishes nothing.
func (s *MessageService) SetStatus(ctx context.Context, id uint, status models.MessageStatus) (*models.ConversationMessage, error) {
	if !status.Valid() {
		return nil, fmt.Errorf("%w: unknown status %q", ErrValidation, status)
	}

	current, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}

	unlock := s.locks.Lock(current.UserID)
	defer unlock()

	msg, changed, err := s.transition(ctx, current.UserID, id, status)
	if err != nil {
		return nil, err
	}
	if changed {
		s.broadcaster.Publish(realtime.MessageStatusChanged(msg.UserID, status, []models.ConversationMessage{*msg}))
	}
	return msg, nil
}

// SetStatusBatch applies SetStatus to every id. Unknown ids are skipped. One
// MessageStatusChanged is published per conversation that had changes.
func (s *MessageService) SetStatusBatch(ctx context.Context, ids []uint, status models.MessageStatus) ([]models.ConversationMessage, error) {
	if !status.Valid() {
		return nil, fmt.Errorf("%w: unknown status %q", ErrValidation, status)
	}
	if len(ids) == 0 {
		return nil, fmt.Errorf("%w: no message ids", ErrValidation)
	}

	byUser := make(map[uint][]uint)
	var order []uint
	seen := make(map[uint]bool)
	for _, id := range ids {
		if seen[id] {
			continue
		}
		seen[id] = true

		msg, err := s.find(ctx, id)
		if errors.Is(err, ErrNotFound) {
			utils.InfoLogger.Debugf("Skipping unknown message %d in batch", id)
			continue
		}
		if err != nil {
			return nil, err
		}
		if _, ok := byUser[msg.UserID]; !ok {
			order = append(order, msg.UserID)
		}
		byUser[msg.UserID] = append(byUser[msg.UserID], id)
	}

	var result []models.ConversationMessage
	for _, userID := range order {
		msgs, _, err := s.transitionConversation(ctx, userID, byUser[userID], status)
		result = append(result, msgs...)
		if err != nil {
			return result, err
		}
	}
	return result, nil
}

// MarkConversationRead marks every unread message written by the other side
// as read. It runs when reader opens the conversation.
func (s *MessageService) MarkConversationRead(ctx context.Context, userID uint, reader models.SenderType) ([]models.ConversationMessage, error) {
	if !reader.Valid() {
		return nil, fmt.Errorf("%w: unknown sender type %q", ErrValidation, reader)
	}

	unread, err := s.store.FindUnreadFrom(ctx, userID, reader.Counterpart())
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	if len(unread) == 0 {
		return nil, nil
	}

	ids := make([]uint, 0, len(unread))
	for _, m := range unread {
		ids = append(ids, m.ID)
	}
	_, changed, err := s.transitionConversation(ctx, userID, ids, models.MessageRead)
	return changed, err
}

// History returns one page of a conversation, oldest first. BeforeID pages
// backwards from an earlier page.
func (s *MessageService) History(ctx context.Context, userID uint, q HistoryQuery) (*HistoryPage, error) {
	limit := q.Limit
	switch {
	case limit <= 0:
		limit = DefaultHistoryLimit
	case limit > MaxHistoryLimit:
		limit = MaxHistoryLimit
	}

	recent, err := s.store.Recent(ctx, userID, limit+1, q.BeforeID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
	}

	page := &HistoryPage{Messages: make([]models.ConversationMessage, 0, limit)}
	if len(recent) > limit {
		page.HasMore = true
		recent = recent[:limit]
	}
	for i := len(recent) - 1; i >= 0; i-- {
		page.Messages = append(page.Messages, recent[i])
	}
	return page, nil
}

func (s *MessageService) Conversations(ctx context.Context) ([]repository.ConversationSummary, error) {
	summaries, err := s.store.Summaries(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	return summaries, nil
}

func (s *MessageService) find(ctx context.Context, id uint) (*models.ConversationMessage, error) {
	msg, err := s.store.FindByID(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("%w: message %d", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	return msg, nil
}

// transition must run under the conversation lock.
func (s *MessageService) transition(ctx context.Context, userID, id uint, status models.MessageStatus) (*models.ConversationMessage, bool, error) {
	at := s.Now()
	changed, err := s.store.TransitionStatus(ctx, id, status, status.Predecessors(), at)
	if err != nil {
		utils.ErrorLogger.Errorf("Error updating message %d to %s: %v", id, status, err)
		return nil, false, fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	msg, err := s.find(ctx, id)
	if err != nil && changed {
		// the update is committed; report it from what is known
		utils.ErrorLogger.Warnf("Message %d moved to %s but reload failed: %v", id, status, err)
		return &models.ConversationMessage{ID: id, UserID: userID, Status: status, UpdatedAt: at}, true, nil
	}
	if err != nil {
		return nil, false, err
	}
	if !changed {
		utils.InfoLogger.WithFields(logrus.Fields{
			"message_id": id,
			"status":     msg.Status,
			"requested":  status,
		}).Debug("Status transition ignored")
	}
	return msg, changed, nil
}

// transitionConversation returns every touched record and the subset that
// actually changed.
func (s *MessageService) transitionConversation(ctx context.Context, userID uint, ids []uint, status models.MessageStatus) (all, changed []models.ConversationMessage, err error) {
	unlock := s.locks.Lock(userID)
	defer unlock()

	for _, id := range ids {
		msg, ok, terr := s.transition(ctx, userID, id, status)
		if terr != nil {
			err = terr
			break
		}
		all = append(all, *msg)
		if ok {
			changed = append(changed, *msg)
		}
	}

	// earlier rows are already committed, so they are published even if a
	// later one failed
	if len(changed) > 0 {
		s.broadcaster.Publish(realtime.MessageStatusChanged(userID, status, changed))
	}
	return all, changed, err
}
