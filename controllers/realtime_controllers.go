package controllers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
	"github.com/yeremiapane/gaming-portal/models"
	"github.com/yeremiapane/gaming-portal/realtime"
	"github.com/yeremiapane/gaming-portal/repository"
	"github.com/yeremiapane/gaming-portal/services"
	"github.com/yeremiapane/gaming-portal/utils"
)

// RealtimeController upgrades authenticated requests to channels and executes
// the frames they send.
type RealtimeController struct {
	Router   *realtime.RoomRouter
	Messages *services.MessageService
	Users    repository.UserStore
	upgrader websocket.Upgrader
}

func NewRealtimeController(router *realtime.RoomRouter, messages *services.MessageService, users repository.UserStore, allowedOrigin string) *RealtimeController {
	return &RealtimeController{
		Router:   router,
		Messages: messages,
		Users:    users,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				return origin == "" || allowedOrigin == "*" || origin == allowedOrigin
			},
		},
	}
}

// ServeWs -> GET /ws. WebSocketAuthMiddleware has already resolved the
// principal, so a rejected credential never gets here.
func (rc *RealtimeController) ServeWs(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}

	conn, err := rc.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		utils.ErrorLogger.Warnf("Websocket upgrade failed: %v", err)
		return
	}

	realtime.NewClient(conn, p, rc.Router, rc).Serve()
}

type sendFrame struct {
	UserID uint   `json:"user_id"`
	Text   string `json:"text"`
}

type conversationFrame struct {
	UserID   uint `json:"user_id"`
	Limit    int  `json:"limit"`
	BeforeID uint `json:"before_id"`
}

type statusFrame struct {
	MessageID  uint                 `json:"message_id"`
	MessageIDs []uint               `json:"message_ids"`
	Status     models.MessageStatus `json:"status"`
}

// HandleInbound implements realtime.InboundHandler. Results reach the sender
// through the normal event stream; failures come back as an error frame.
func (rc *RealtimeController) HandleInbound(ctx context.Context, c *realtime.Client, frame realtime.InboundFrame) {
	p := c.Principal()

	var err error
	switch frame.Event {
	case realtime.InboundSendMessage:
		err = rc.handleSend(ctx, p, frame.Data)
	case realtime.InboundOpenConversation:
		err = rc.handleHistory(ctx, c, frame.Data, true)
	case realtime.InboundSyncHistory:
		err = rc.handleHistory(ctx, c, frame.Data, false)
	case realtime.InboundSetStatus:
		err = rc.handleStatus(ctx, p, frame.Data)
	default:
		c.ReplyError("unknown event " + frame.Event)
		return
	}

	if err != nil {
		utils.InfoLogger.WithFields(logrus.Fields{
			"channel_id": c.ID(),
			"event":      frame.Event,
		}).Debugf("Inbound frame failed: %v", err)
		c.ReplyError(clientMessage(err))
	}
}

func (rc *RealtimeController) handleSend(ctx context.Context, p models.Principal, data json.RawMessage) error {
	var in sendFrame
	if err := decodeFrame(data, &in); err != nil {
		return err
	}

	userID, sender := p.ID, models.SenderUser
	if p.IsAdmin() {
		if in.UserID == 0 {
			return errInvalidFrame
		}
		if err := lookupUser(ctx, rc.Users, in.UserID); err != nil {
			return err
		}
		userID, sender = in.UserID, models.SenderAdmin
	}
	_, err := rc.Messages.PostMessage(ctx, userID, sender, models.TextMessage{Text: in.Text})
	return err
}

// handleHistory replies with one page of the conversation. Opening also marks
// the other side's messages read.
func (rc *RealtimeController) handleHistory(ctx context.Context, c *realtime.Client, data json.RawMessage, open bool) error {
	var in conversationFrame
	if err := decodeFrame(data, &in); err != nil {
		return err
	}

	p := c.Principal()
	userID, reader := p.ID, models.SenderUser
	if p.IsAdmin() {
		userID, reader = in.UserID, models.SenderAdmin
	}
	if userID == 0 {
		return errInvalidFrame
	}

	if open {
		if _, err := rc.Messages.MarkConversationRead(ctx, userID, reader); err != nil {
			return err
		}
	}

	page, err := rc.Messages.History(ctx, userID, services.HistoryQuery{Limit: in.Limit, BeforeID: in.BeforeID})
	if err != nil {
		return err
	}
	c.Reply(realtime.EventHistory, realtime.HistoryPayload{UserID: userID, Messages: page.Messages, HasMore: page.HasMore})
	return nil
}

func (rc *RealtimeController) handleStatus(ctx context.Context, p models.Principal, data json.RawMessage) error {
	if !p.IsAdmin() {
		return errForbidden
	}
	var in statusFrame
	if err := decodeFrame(data, &in); err != nil {
		return err
	}

	if len(in.MessageIDs) > 0 {
		_, err := rc.Messages.SetStatusBatch(ctx, in.MessageIDs, in.Status)
		return err
	}
	if in.MessageID == 0 {
		return errInvalidFrame
	}
	_, err := rc.Messages.SetStatus(ctx, in.MessageID, in.Status)
	return err
}

var (
	errInvalidFrame = errors.New("invalid frame data")
	errForbidden    = errors.New("admin access required")
)

func decodeFrame(data json.RawMessage, v interface{}) error {
	if len(data) == 0 {
		return errInvalidFrame
	}
	if err := json.Unmarshal(data, v); err != nil {
		return errInvalidFrame
	}
	return nil
}

// clientMessage hides store details from socket clients.
func clientMessage(err error) string {
	switch {
	case errors.Is(err, services.ErrPersistence):
		return services.ErrPersistence.Error()
	case errors.Is(err, services.ErrValidation), errors.Is(err, services.ErrNotFound),
		errors.Is(err, errInvalidFrame), errors.Is(err, errForbidden):
		return err.Error()
	}
	return "internal error"
}
