package identity

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yeremiapane/gaming-portal/models"
)

type stubAccounts struct {
	active map[uint]bool
	err    error
	calls  int
}

func (s *stubAccounts) IsActive(_ context.Context, id uint, _ string) (bool, error) {
	s.calls++
	if s.err != nil {
		return false, s.err
	}
	return s.active[id], nil
}

func newTestResolver(accounts AccountChecker) (*Resolver, *JWTValidator, *JWTValidator) {
	users := NewJWTValidator("user-secret", UserIssuer)
	staff := NewJWTValidator("staff-secret", StaffIssuer)
	return NewResolver(users, staff, accounts), users, staff
}

func TestResolveUserToken(t *testing.T) {
	accounts := &stubAccounts{active: map[uint]bool{7: true}}
	r, users, _ := newTestResolver(accounts)

	token, err := users.GenerateToken(models.Principal{ID: 7, Role: models.RoleUser, DisplayName: "Alice"}, time.Hour)
	require.NoError(t, err)

	p, err := r.Resolve(context.Background(), Credentials{UserToken: token})
	require.NoError(t, err)
	assert.Equal(t, models.Principal{ID: 7, Role: models.RoleUser, DisplayName: "Alice"}, p)
}

func TestResolveStaffTokenWinsOverUserToken(t *testing.T) {
	accounts := &stubAccounts{active: map[uint]bool{1: true, 7: true}}
	r, users, staff := newTestResolver(accounts)

	userToken, _ := users.GenerateToken(models.Principal{ID: 7, Role: models.RoleUser}, time.Hour)
	staffToken, _ := staff.GenerateToken(models.Principal{ID: 1, Role: models.RoleAdmin, DisplayName: "Agent"}, time.Hour)

	p, err := r.Resolve(context.Background(), Credentials{UserToken: userToken, StaffToken: staffToken})
	require.NoError(t, err)
	assert.Equal(t, uint(1), p.ID)
	assert.True(t, p.IsAdmin())
}

func TestResolveRejects(t *testing.T) {
	users := NewJWTValidator("user-secret", UserIssuer)
	staff := NewJWTValidator("staff-secret", StaffIssuer)
	forged := NewJWTValidator("other-secret", UserIssuer)

	expired, _ := users.GenerateToken(models.Principal{ID: 7, Role: models.RoleUser}, -time.Minute)
	wrongSig, _ := forged.GenerateToken(models.Principal{ID: 7, Role: models.RoleUser}, time.Hour)
	userAsAdmin, _ := users.GenerateToken(models.Principal{ID: 7, Role: models.RoleAdmin}, time.Hour)
	userInStaffSlot, _ := users.GenerateToken(models.Principal{ID: 7, Role: models.RoleUser}, time.Hour)
	inactive, _ := users.GenerateToken(models.Principal{ID: 8, Role: models.RoleUser}, time.Hour)

	tests := []struct {
		name  string
		creds Credentials
	}{
		{name: "no credential", creds: Credentials{}},
		{name: "garbage", creds: Credentials{UserToken: "not-a-jwt"}},
		{name: "expired", creds: Credentials{UserToken: expired}},
		{name: "wrong signature", creds: Credentials{UserToken: wrongSig}},
		{name: "user token claiming admin", creds: Credentials{UserToken: userAsAdmin}},
		{name: "user token as staff session", creds: Credentials{StaffToken: userInStaffSlot}},
		{name: "inactive account", creds: Credentials{UserToken: inactive}},
	}

	r := NewResolver(users, staff, &stubAccounts{active: map[uint]bool{7: true}})
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := r.Resolve(context.Background(), tt.creds)
			assert.ErrorIs(t, err, ErrAuthRejected)
			assert.Equal(t, models.Principal{}, p)
		})
	}
}

func TestResolveFailsClosedOnLookupError(t *testing.T) {
	accounts := &stubAccounts{err: errors.New("db down")}
	r, users, _ := newTestResolver(accounts)

	token, _ := users.GenerateToken(models.Principal{ID: 7, Role: models.RoleUser}, time.Hour)
	_, err := r.Resolve(context.Background(), Credentials{UserToken: token})
	assert.ErrorIs(t, err, ErrAuthRejected)
	assert.Equal(t, 1, accounts.calls)
}

func TestCredentialsFromRequest(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/ws?token=query-user&staff_token=query-staff", nil)
	creds := CredentialsFromRequest(req)
	assert.Equal(t, Credentials{UserToken: "query-user", StaffToken: "query-staff"}, creds)

	req = httptest.NewRequest(http.MethodGet, "/api/me?token=query-user", nil)
	req.Header.Set("Authorization", "Bearer header-user")
	req.Header.Set(StaffHeader, "header-staff")
	creds = CredentialsFromRequest(req)
	assert.Equal(t, Credentials{UserToken: "header-user", StaffToken: "header-staff"}, creds)

	req = httptest.NewRequest(http.MethodGet, "/api/me", nil)
	req.AddCookie(&http.Cookie{Name: StaffCookie, Value: "cookie-staff"})
	creds = CredentialsFromRequest(req)
	assert.Equal(t, "cookie-staff", creds.StaffToken)
	assert.True(t, Credentials{}.Empty())
}
