package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/yeremiapane/gaming-portal/utils"
)

// PushGateway delivers a best-effort device notification.
type PushGateway interface {
	Notify(ctx context.Context, userID uint, title, body string) error
}

// HTTPPushGateway posts notifications as JSON to a webhook.
type HTTPPushGateway struct {
	URL    string
	Client *http.Client
}

func NewHTTPPushGateway(url string) *HTTPPushGateway {
	return &HTTPPushGateway{
		URL:    url,
		Client: &http.Client{Timeout: 10 * time.Second},
	}
}

type pushRequest struct {
	UserID uint   `json:"user_id"`
	Title  string `json:"title"`
	Body   string `json:"body"`
}

func (g *HTTPPushGateway) Notify(ctx context.Context, userID uint, title, body string) error {
	payload, err := json.Marshal(pushRequest{UserID: userID, Title: title, Body: body})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.URL, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.Client.Do(req)
	if err != nil {
		return fmt.Errorf("push gateway: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("push gateway: unexpected status %d", resp.StatusCode)
	}
	return nil
}

// NoopPushGateway is used when no gateway is configured.
type NoopPushGateway struct{}

func (NoopPushGateway) Notify(_ context.Context, userID uint, title, _ string) error {
	utils.InfoLogger.Debugf("Push skipped for user %d: %s", userID, title)
	return nil
}
