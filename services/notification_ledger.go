package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/yeremiapane/gaming-portal/models"
	"github.com/yeremiapane/gaming-portal/realtime"
	"github.com/yeremiapane/gaming-portal/repository"
	"github.com/yeremiapane/gaming-portal/utils"
)

const (
	DefaultNotificationLimit = 20
	MaxNotificationLimit     = 100

	fanOutConcurrency = 8
	pushTimeout       = 5 * time.Second
)

// Presence tells whether a user currently has a live channel.
type Presence interface {
	IsOnline(userID uint) bool
}

type NewNotification struct {
	UserID     uint
	Title      string
	Body       string
	Kind       models.NotificationKind
	Link       string
	SourceType string
	SourceID   uint
}

type FanOutFailure struct {
	UserID uint   `json:"user_id"`
	Error  string `json:"error"`
}

// FanOutResult summarizes one broadcast notice fan-out. Failures are per user;
// the rest of the batch still ran.
type FanOutResult struct {
	NoticeID uint            `json:"notice_id"`
	Targeted int             `json:"targeted"`
	Created  int             `json:"created"`
	Skipped  int             `json:"skipped"`
	Failed   []FanOutFailure `json:"failed"`
}

// NotificationLedger is the per-user inbox. Every created notification is
// published to the user's room; users without a live channel also get a
// best-effort push.
type NotificationLedger struct {
	store       repository.NotificationStore
	users       repository.UserStore
	broadcaster realtime.Broadcaster
	presence    Presence
	push        PushGateway

	Now func() time.Time
}

func NewNotificationLedger(store repository.NotificationStore, users repository.UserStore, broadcaster realtime.Broadcaster, presence Presence, push PushGateway) *NotificationLedger {
	if push == nil {
		push = NoopPushGateway{}
	}
	return &NotificationLedger{
		store:       store,
		users:       users,
		broadcaster: broadcaster,
		presence:    presence,
		push:        push,
		Now:         func() time.Time { return time.Now().UTC() },
	}
}

func (l *NotificationLedger) Create(ctx context.Context, in NewNotification) (*models.Notification, error) {
	in.Title = strings.TrimSpace(in.Title)
	if in.UserID == 0 {
		return nil, fmt.Errorf("%w: user is required", ErrValidation)
	}
	if in.Title == "" {
		return nil, fmt.Errorf("%w: title is required", ErrValidation)
	}
	if in.Kind == "" {
		in.Kind = models.NotificationInfo
	}
	if !in.Kind.Valid() {
		return nil, fmt.Errorf("%w: unknown kind %q", ErrValidation, in.Kind)
	}

	n := models.Notification{
		UserID:    in.UserID,
		Title:     in.Title,
		Body:      in.Body,
		Kind:      in.Kind,
		CreatedAt: l.Now(),
	}
	if in.Link != "" {
		link := in.Link
		n.Link = &link
	}
	if in.SourceType != "" {
		st := in.SourceType
		n.SourceType = &st
	}
	if in.SourceID != 0 {
		sid := in.SourceID
		n.SourceID = &sid
	}

	if err := l.store.Create(ctx, &n); err != nil {
		utils.ErrorLogger.Errorf("Error saving notification for user %d: %v", in.UserID, err)
		return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
	}

	unread, err := l.store.CountUnread(ctx, n.UserID)
	if err != nil {
		// the row is stored; clients refetch the count on reconnect
		utils.ErrorLogger.Warnf("Error counting unread notifications for user %d: %v", n.UserID, err)
	}
	l.broadcaster.Publish(realtime.NotificationCreated(n, unread))

	if l.presence != nil && !l.presence.IsOnline(n.UserID) {
		l.pushOffline(ctx, n)
	}
	return &n, nil
}

func (l *NotificationLedger) pushOffline(ctx context.Context, n models.Notification) {
	ctx, cancel := context.WithTimeout(ctx, pushTimeout)
	defer cancel()
	if err := l.push.Notify(ctx, n.UserID, n.Title, n.Body); err != nil {
		utils.ErrorLogger.WithFields(logrus.Fields{
			"user_id":         n.UserID,
			"notification_id": n.ID,
		}).Warnf("Push delivery failed: %v", err)
	}
}

func (l *NotificationLedger) List(ctx context.Context, userID uint, limit, offset int) ([]models.Notification, error) {
	switch {
	case limit <= 0:
		limit = DefaultNotificationLimit
	case limit > MaxNotificationLimit:
		limit = MaxNotificationLimit
	}
	if offset < 0 {
		offset = 0
	}
	list, err := l.store.ListByUser(ctx, userID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	return list, nil
}

// MarkRead marks one of the user's notifications read. Already-read
// notifications are returned unchanged. Another user's notification is
// reported as not found.
func (l *NotificationLedger) MarkRead(ctx context.Context, userID, id uint) (*models.Notification, error) {
	n, err := l.store.FindByID(ctx, id)
	if errors.Is(err, repository.ErrNotFound) || (err == nil && n.UserID != userID) {
		return nil, fmt.Errorf("%w: notification %d", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	if n.IsRead {
		return n, nil
	}

	if _, err := l.store.MarkRead(ctx, userID, id, l.Now()); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	n, err = l.store.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	return n, nil
}

// MarkAllRead returns how many notifications changed.
func (l *NotificationLedger) MarkAllRead(ctx context.Context, userID uint) (int64, error) {
	updated, err := l.store.MarkAllRead(ctx, userID, l.Now())
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	return updated, nil
}

func (l *NotificationLedger) UnreadCount(ctx context.Context, userID uint) (int64, error) {
	count, err := l.store.CountUnread(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	return count, nil
}

// ExistsSince is the dedup lookup used by the reminder sweeps.
func (l *NotificationLedger) ExistsSince(ctx context.Context, key repository.DedupKey, since time.Time) (bool, error) {
	found, err := l.store.ExistsSince(ctx, key, since)
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	return found, nil
}

// FanOutBroadcastNotice creates the notice's notification for every active
// user. Users that already hold it are skipped, so a partially failed run can
// simply be repeated. Only a failure to list users fails the whole call.
func (l *NotificationLedger) FanOutBroadcastNotice(ctx context.Context, notice models.BroadcastNotice) (*FanOutResult, error) {
	users, err := l.users.ListActiveUsers(ctx)
	if err != nil {
		utils.ErrorLogger.Errorf("Error listing users for notice %d: %v", notice.ID, err)
		return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
	}

	result := &FanOutResult{NoticeID: notice.ID, Targeted: len(users)}
	var mu sync.Mutex
	record := func(fn func()) {
		mu.Lock()
		fn()
		mu.Unlock()
	}

	var g errgroup.Group
	g.SetLimit(fanOutConcurrency)
	for _, u := range users {
		userID := u.ID
		g.Go(func() error {
			created, err := l.deliverNotice(ctx, userID, notice)
			record(func() {
				switch {
				case err != nil:
					result.Failed = append(result.Failed, FanOutFailure{UserID: userID, Error: err.Error()})
				case created:
					result.Created++
				default:
					result.Skipped++
				}
			})
			if err != nil {
				utils.ErrorLogger.WithFields(logrus.Fields{
					"notice_id": notice.ID,
					"user_id":   userID,
				}).Warnf("Notice fan-out failed for user: %v", err)
			}
			return nil
		})
	}
	g.Wait()

	utils.InfoLogger.WithFields(logrus.Fields{
		"notice_id": notice.ID,
		"targeted":  result.Targeted,
		"created":   result.Created,
		"skipped":   result.Skipped,
		"failed":    len(result.Failed),
	}).Info("Notice fan-out finished")
	return result, nil
}

func (l *NotificationLedger) deliverNotice(ctx context.Context, userID uint, notice models.BroadcastNotice) (bool, error) {
	key := repository.DedupKey{UserID: userID, Title: notice.Title, SourceType: models.SourceNotice, SourceID: notice.ID}
	exists, err := l.ExistsSince(ctx, key, time.Time{})
	if err != nil {
		return false, err
	}
	if exists {
		return false, nil
	}

	_, err = l.Create(ctx, NewNotification{
		UserID:     userID,
		Title:      notice.Title,
		Body:       notice.Message,
		Kind:       notice.Severity,
		SourceType: models.SourceNotice,
		SourceID:   notice.ID,
	})
	return err == nil, err
}
