package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yeremiapane/gaming-portal/config"
	"github.com/yeremiapane/gaming-portal/identity"
	"github.com/yeremiapane/gaming-portal/models"
	"github.com/yeremiapane/gaming-portal/realtime"
	"github.com/yeremiapane/gaming-portal/testutil"
	"github.com/yeremiapane/gaming-portal/utils"
)

type frame struct {
	Event realtime.EventType `json:"event"`
	Data  json.RawMessage    `json:"data"`
}

type portal struct {
	t      *testing.T
	server *httptest.Server
	cfg    *config.Config
}

func newPortal(t *testing.T) (*portal, models.User, models.User) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	utils.SilenceLoggers()

	cfg := &config.Config{
		AllowedOrigin:  "*",
		JWTSecret:      "user-secret",
		StaffJWTSecret: "staff-secret",
		UploadDir:      t.TempDir(),
		Reminders: config.ReminderConfig{
			OverdueInterval:   time.Hour,
			DueSoonInterval:   6 * time.Hour,
			DueSoonLookahead:  24 * time.Hour,
			RecurringInterval: 24 * time.Hour,
		},
	}
	db := testutil.NewTestDB(t)
	user := testutil.SeedUser(t, db, "Player", models.RoleUser, true)
	agent := testutil.SeedUser(t, db, "Agent", models.RoleAdmin, true)

	a, err := newApp(cfg, db)
	require.NoError(t, err)
	server := httptest.NewServer(a.engine)
	t.Cleanup(func() {
		server.Close()
		a.close()
	})
	return &portal{t: t, server: server, cfg: cfg}, user, agent
}

func (p *portal) token(secret, issuer string, u models.User) string {
	p.t.Helper()
	token, err := identity.NewJWTValidator(secret, issuer).
		GenerateToken(models.Principal{ID: u.ID, Role: u.Role, DisplayName: u.Name}, time.Hour)
	require.NoError(p.t, err)
	return token
}

func (p *portal) dial(query string) (*websocket.Conn, *http.Response, error) {
	url := "ws" + strings.TrimPrefix(p.server.URL, "http") + "/ws?" + query
	return websocket.DefaultDialer.Dial(url, nil)
}

func (p *portal) connect(query string) *websocket.Conn {
	p.t.Helper()
	conn, _, err := p.dial(query)
	require.NoError(p.t, err)
	p.t.Cleanup(func() { conn.Close() })

	// membership is in place once the ack arrives
	f := readFrame(p.t, conn)
	require.Equal(p.t, realtime.EventConnected, f.Event)
	return conn
}

func readFrame(t *testing.T, conn *websocket.Conn) frame {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var f frame
	require.NoError(t, conn.ReadJSON(&f))
	return f
}

func expectSilence(t *testing.T, conn *websocket.Conn) {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(200*time.Millisecond)))
	var f frame
	err := conn.ReadJSON(&f)
	require.Error(t, err, "unexpected %s frame", f.Event)
}

func TestSupportConversationEndToEnd(t *testing.T) {
	p, user, agent := newPortal(t)
	userToken := p.token(p.cfg.JWTSecret, identity.UserIssuer, user)
	staffToken := p.token(p.cfg.StaffJWTSecret, identity.StaffIssuer, agent)

	userConn := p.connect("token=" + userToken)
	staffConn := p.connect("staff_token=" + staffToken)

	require.NoError(t, userConn.WriteJSON(map[string]interface{}{
		"event": realtime.InboundSendMessage,
		"data":  map[string]string{"text": "withdrawal stuck"},
	}))

	var created models.ConversationMessage
	for _, conn := range []*websocket.Conn{userConn, staffConn} {
		f := readFrame(t, conn)
		require.Equal(t, realtime.EventMessageCreated, f.Event)
		require.NoError(t, json.Unmarshal(f.Data, &created))
		assert.Equal(t, user.ID, created.UserID)
		assert.Equal(t, models.SenderUser, created.SenderType)
	}

	setStatus := func() *http.Response {
		body, _ := json.Marshal(map[string]string{"status": "resolved"})
		req, err := http.NewRequest(http.MethodPatch, fmt.Sprintf("%s/admin/messages/%d/status", p.server.URL, created.ID), bytes.NewReader(body))
		require.NoError(t, err)
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set(identity.StaffHeader, staffToken)
		resp, err := http.DefaultClient.Do(req)
		require.NoError(t, err)
		resp.Body.Close()
		return resp
	}

	resp := setStatus()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	for _, conn := range []*websocket.Conn{userConn, staffConn} {
		f := readFrame(t, conn)
		require.Equal(t, realtime.EventMessageStatusChanged, f.Event)
		var payload realtime.StatusChangedPayload
		require.NoError(t, json.Unmarshal(f.Data, &payload))
		assert.Equal(t, models.MessageResolved, payload.Status)
		require.Len(t, payload.Messages, 1)
		assert.Equal(t, created.ID, payload.Messages[0].ID)
	}

	resp = setStatus()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	expectSilence(t, userConn)
	expectSilence(t, staffConn)
}

func TestStaffReplyAndOpenConversation(t *testing.T) {
	p, user, agent := newPortal(t)
	userConn := p.connect("token=" + p.token(p.cfg.JWTSecret, identity.UserIssuer, user))
	staffToken := p.token(p.cfg.StaffJWTSecret, identity.StaffIssuer, agent)
	staffConn := p.connect("staff_token=" + staffToken)

	require.NoError(t, staffConn.WriteJSON(map[string]interface{}{
		"event": realtime.InboundSendMessage,
		"data":  map[string]interface{}{"user_id": user.ID, "text": "fixed, try again"},
	}))

	f := readFrame(t, userConn)
	require.Equal(t, realtime.EventMessageCreated, f.Event)
	var msg models.ConversationMessage
	require.NoError(t, json.Unmarshal(f.Data, &msg))
	assert.Equal(t, models.SenderAdmin, msg.SenderType)

	f = readFrame(t, staffConn)
	assert.Equal(t, realtime.EventMessageCreated, f.Event)

	// the user opens the conversation and gets history back
	require.NoError(t, userConn.WriteJSON(map[string]interface{}{
		"event": realtime.InboundOpenConversation,
		"data":  map[string]interface{}{},
	}))
	statusSeen, historySeen := false, false
	for i := 0; i < 2; i++ {
		f = readFrame(t, userConn)
		switch f.Event {
		case realtime.EventMessageStatusChanged:
			statusSeen = true
		case realtime.EventHistory:
			var h realtime.HistoryPayload
			require.NoError(t, json.Unmarshal(f.Data, &h))
			require.Len(t, h.Messages, 1)
			assert.Equal(t, models.MessageRead, h.Messages[0].Status)
			historySeen = true
		}
	}
	assert.True(t, statusSeen)
	assert.True(t, historySeen)
}

func TestHandshakeRejected(t *testing.T) {
	p, user, _ := newPortal(t)

	_, resp, err := p.dial("")
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	forged := identity.NewJWTValidator("wrong", identity.UserIssuer)
	token, _ := forged.GenerateToken(models.Principal{ID: user.ID, Role: models.RoleUser}, time.Hour)
	_, resp, err = p.dial("token=" + token)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestLongestTextPostsOverSocket(t *testing.T) {
	p, user, _ := newPortal(t)
	conn := p.connect("token=" + p.token(p.cfg.JWTSecret, identity.UserIssuer, user))

	// four bytes per rune, and the escaped form is twelve
	text := strings.Repeat("😀", models.MaxMessageLength)
	require.NoError(t, models.TextMessage{Text: text}.Validate())

	escaped := strings.Repeat(`\ud83d\ude00`, models.MaxMessageLength)
	raw := `{"event":"` + realtime.InboundSendMessage + `","data":{"text":"` + escaped + `"}}`
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(raw)))

	f := readFrame(t, conn)
	require.Equal(t, realtime.EventMessageCreated, f.Event)
	var msg models.ConversationMessage
	require.NoError(t, json.Unmarshal(f.Data, &msg))
	require.NotNil(t, msg.Text)
	assert.Equal(t, text, *msg.Text)

	require.NoError(t, conn.WriteJSON(map[string]interface{}{
		"event": realtime.InboundSendMessage,
		"data":  map[string]string{"text": text},
	}))
	f = readFrame(t, conn)
	assert.Equal(t, realtime.EventMessageCreated, f.Event)
}

func TestStaffSendToUnknownUserGetsErrorFrame(t *testing.T) {
	p, _, agent := newPortal(t)
	staffConn := p.connect("staff_token=" + p.token(p.cfg.StaffJWTSecret, identity.StaffIssuer, agent))

	require.NoError(t, staffConn.WriteJSON(map[string]interface{}{
		"event": realtime.InboundSendMessage,
		"data":  map[string]interface{}{"user_id": 4242, "text": "anyone there?"},
	}))

	f := readFrame(t, staffConn)
	require.Equal(t, realtime.EventError, f.Event)
	var payload realtime.ErrorPayload
	require.NoError(t, json.Unmarshal(f.Data, &payload))
	assert.Contains(t, payload.Message, "not found")
}
