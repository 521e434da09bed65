package controllers_test

import (
	"bytes"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/yeremiapane/gaming-portal/config"
	"github.com/yeremiapane/gaming-portal/identity"
	"github.com/yeremiapane/gaming-portal/models"
	"github.com/yeremiapane/gaming-portal/realtime"
	"github.com/yeremiapane/gaming-portal/repository"
	"github.com/yeremiapane/gaming-portal/router"
	"github.com/yeremiapane/gaming-portal/services"
	"github.com/yeremiapane/gaming-portal/testutil"
	"github.com/yeremiapane/gaming-portal/utils"
)

type fixture struct {
	t      *testing.T
	db     *gorm.DB
	engine *gin.Engine
	events *testutil.RecordingBroadcaster
	uploads string
	rooms  *realtime.RoomRouter

	userTokens  *identity.JWTValidator
	staffTokens *identity.JWTValidator

	alice models.User
	bob   models.User
	agent models.User
}

type envelope struct {
	Status  bool            `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	gin.SetMode(gin.TestMode)
	utils.SilenceLoggers()

	db := testutil.NewTestDB(t)
	f := &fixture{
		t:           t,
		db:          db,
		events:      &testutil.RecordingBroadcaster{},
		uploads:     t.TempDir(),
		rooms:       realtime.NewRoomRouter(),
		userTokens:  identity.NewJWTValidator("user-secret", identity.UserIssuer),
		staffTokens: identity.NewJWTValidator("staff-secret", identity.StaffIssuer),
	}
	f.alice = testutil.SeedUser(t, db, "Alice", models.RoleUser, true)
	f.bob = testutil.SeedUser(t, db, "Bob", models.RoleUser, true)
	f.agent = testutil.SeedUser(t, db, "Agent", models.RoleAdmin, true)

	users := repository.NewUserRepository(db)
	messages := services.NewMessageService(repository.NewMessageRepository(db), f.events)
	ledger := services.NewNotificationLedger(repository.NewNotificationRepository(db), users, f.events, f.rooms, nil)
	scheduler := services.NewReminderScheduler(repository.NewLoanRepository(db), users, ledger, services.LogMailer{}, nil, config.ReminderConfig{
		OverdueInterval:   time.Hour,
		DueSoonInterval:   6 * time.Hour,
		DueSoonLookahead:  24 * time.Hour,
		RecurringInterval: 24 * time.Hour,
	})

	f.engine = router.SetupRouter(router.Deps{
		Resolver:      identity.NewResolver(f.userTokens, f.staffTokens, users),
		Rooms:         f.rooms,
		Messages:      messages,
		Ledger:        ledger,
		Notices:       services.NewNoticeService(repository.NewNoticeRepository(db), ledger),
		Scheduler:     scheduler,
		Users:         users,
		Attachments:   services.NewDiskAttachmentStore(f.uploads),
		AllowedOrigin: "*",
	})
	return f
}

func (f *fixture) userToken(u models.User) string {
	f.t.Helper()
	token, err := f.userTokens.GenerateToken(models.Principal{ID: u.ID, Role: models.RoleUser, DisplayName: u.Name}, time.Hour)
	require.NoError(f.t, err)
	return token
}

func (f *fixture) staffToken(u models.User) string {
	f.t.Helper()
	token, err := f.staffTokens.GenerateToken(models.Principal{ID: u.ID, Role: models.RoleAdmin, DisplayName: u.Name}, time.Hour)
	require.NoError(f.t, err)
	return token
}

type asUser struct{ token string }
type asStaff struct{ token string }

// do sends a JSON request. auth is nil, asUser or asStaff.
func (f *fixture) do(method, path string, body interface{}, auth interface{}) *httptest.ResponseRecorder {
	f.t.Helper()
	var r io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(f.t, err)
		r = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, r)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	f.authorize(req, auth)

	w := httptest.NewRecorder()
	f.engine.ServeHTTP(w, req)
	return w
}

// upload posts one file as the multipart "file" field.
func (f *fixture) upload(path, filename string, content []byte, auth interface{}) *httptest.ResponseRecorder {
	f.t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", filename)
	require.NoError(f.t, err)
	_, err = part.Write(content)
	require.NoError(f.t, err)
	require.NoError(f.t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, path, &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	f.authorize(req, auth)
	w := httptest.NewRecorder()
	f.engine.ServeHTTP(w, req)
	return w
}

func (f *fixture) authorize(req *http.Request, auth interface{}) {
	switch a := auth.(type) {
	case asUser:
		req.Header.Set("Authorization", "Bearer "+a.token)
	case asStaff:
		req.Header.Set(identity.StaffHeader, a.token)
	}
}

func decode(t *testing.T, w *httptest.ResponseRecorder, data interface{}) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	if data != nil {
		require.NoError(t, json.Unmarshal(env.Data, data))
	}
	return env
}
