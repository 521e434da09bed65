package middlewares

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yeremiapane/gaming-portal/identity"
	"github.com/yeremiapane/gaming-portal/models"
	"github.com/yeremiapane/gaming-portal/utils"
)

// stubResolver accepts exactly one bearer token.
type stubResolver struct {
	token     string
	principal models.Principal
	seen      identity.Credentials
}

func (s *stubResolver) Resolve(_ context.Context, creds identity.Credentials) (models.Principal, error) {
	s.seen = creds
	if creds.UserToken != s.token && creds.StaffToken != s.token {
		return models.Principal{}, identity.ErrAuthRejected
	}
	return s.principal, nil
}

func setupEngine() *gin.Engine {
	gin.SetMode(gin.TestMode)
	utils.SilenceLoggers()
	return gin.New()
}

func serve(r *gin.Engine, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestAuthMiddleware(t *testing.T) {
	resolver := &stubResolver{token: "good", principal: models.Principal{ID: 7, Role: models.RoleUser}}
	r := setupEngine()
	r.GET("/me", AuthMiddleware(resolver), func(c *gin.Context) {
		p, ok := CurrentPrincipal(c)
		require.True(t, ok)
		c.JSON(http.StatusOK, gin.H{"id": p.ID, "user_id": c.GetUint(UserIDKey)})
	})

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer good")
	w := serve(r, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"id":7,"user_id":7}`, w.Body.String())

	req = httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer bad")
	w = serve(r, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.JSONEq(t, `{"status":false,"message":"authentication rejected"}`, w.Body.String())
}

func TestRequireRole(t *testing.T) {
	r := setupEngine()
	withRole := func(role string) gin.HandlerFunc {
		return func(c *gin.Context) {
			if role != "" {
				setPrincipal(c, models.Principal{ID: 1, Role: role})
			}
			c.Next()
		}
	}
	ok := func(c *gin.Context) { c.Status(http.StatusNoContent) }

	r.GET("/none", withRole(""), RequireRole(models.RoleAdmin), ok)
	r.GET("/user", withRole(models.RoleUser), RequireRole(models.RoleAdmin), ok)
	r.GET("/admin", withRole(models.RoleAdmin), RequireRole(models.RoleAdmin), ok)

	assert.Equal(t, http.StatusUnauthorized, serve(r, httptest.NewRequest(http.MethodGet, "/none", nil)).Code)
	assert.Equal(t, http.StatusForbidden, serve(r, httptest.NewRequest(http.MethodGet, "/user", nil)).Code)
	assert.Equal(t, http.StatusNoContent, serve(r, httptest.NewRequest(http.MethodGet, "/admin", nil)).Code)
}

func TestWebSocketAuthMiddlewareReadsQueryTokens(t *testing.T) {
	resolver := &stubResolver{token: "staff", principal: models.Principal{ID: 1, Role: models.RoleAdmin}}
	r := setupEngine()
	r.GET("/ws", WebSocketAuthMiddleware(resolver), func(c *gin.Context) {
		p, _ := CurrentPrincipal(c)
		assert.True(t, p.IsAdmin())
		c.Status(http.StatusNoContent)
	})

	w := serve(r, httptest.NewRequest(http.MethodGet, "/ws?staff_token=staff", nil))
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "staff", resolver.seen.StaffToken)

	w = serve(r, httptest.NewRequest(http.MethodGet, "/ws?token=other", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Empty(t, w.Body.String())
}

func TestRateLimiterPerIP(t *testing.T) {
	rl := NewRateLimiter(3, time.Minute)
	now := time.Now()

	for i := 0; i < 3; i++ {
		assert.True(t, rl.allow("10.0.0.1", now), "request %d", i)
	}
	assert.False(t, rl.allow("10.0.0.1", now))
	assert.True(t, rl.allow("10.0.0.2", now), "other clients keep their budget")

	// one token refills every 20s
	assert.True(t, rl.allow("10.0.0.1", now.Add(21*time.Second)))

	// idle visitors are forgotten
	rl.allow("10.0.0.3", now.Add(10*time.Minute))
	rl.mu.Lock()
	_, kept := rl.ips["10.0.0.1"]
	rl.mu.Unlock()
	assert.False(t, kept)
}

func TestRateLimitMiddleware(t *testing.T) {
	r := setupEngine()
	r.Use(NewRateLimiter(1, time.Minute).RateLimit())
	r.GET("/x", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	assert.Equal(t, http.StatusNoContent, serve(r, httptest.NewRequest(http.MethodGet, "/x", nil)).Code)
	w := serve(r, httptest.NewRequest(http.MethodGet, "/x", nil))
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
}
