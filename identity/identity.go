package identity

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/yeremiapane/gaming-portal/models"
)

// ErrAuthRejected is returned for every credential problem. Callers must not
// join any room or record anything when they see it.
var ErrAuthRejected = errors.New("authentication rejected")

// Credentials are the raw tokens a client presents. A staff session token
// takes precedence; when it is present the user token is ignored.
type Credentials struct {
	UserToken  string
	StaffToken string
}

func (c Credentials) Empty() bool {
	return c.UserToken == "" && c.StaffToken == ""
}

// CredentialValidator verifies one credential format.
type CredentialValidator interface {
	Verify(token string) (models.Principal, error)
}

// AccountChecker reports whether the account behind a principal may connect.
type AccountChecker interface {
	IsActive(ctx context.Context, id uint, role string) (bool, error)
}

type Resolver struct {
	users    CredentialValidator
	staff    CredentialValidator
	accounts AccountChecker
}

// NewResolver builds a Resolver. accounts may be nil, in which case the
// token alone decides.
func NewResolver(users, staff CredentialValidator, accounts AccountChecker) *Resolver {
	return &Resolver{users: users, staff: staff, accounts: accounts}
}

// Resolve turns credentials into a principal or ErrAuthRejected.
func (r *Resolver) Resolve(ctx context.Context, creds Credentials) (models.Principal, error) {
	var (
		validator CredentialValidator
		token     string
		wantRole  string
	)
	switch {
	case creds.StaffToken != "":
		validator, token, wantRole = r.staff, creds.StaffToken, models.RoleAdmin
	case creds.UserToken != "":
		validator, token, wantRole = r.users, creds.UserToken, models.RoleUser
	default:
		return models.Principal{}, fmt.Errorf("%w: no credential", ErrAuthRejected)
	}

	p, err := validator.Verify(token)
	if err != nil {
		return models.Principal{}, fmt.Errorf("%w: %v", ErrAuthRejected, err)
	}
	if p.Role != wantRole || p.ID == 0 {
		return models.Principal{}, fmt.Errorf("%w: credential does not carry a %s identity", ErrAuthRejected, wantRole)
	}

	if r.accounts != nil {
		active, err := r.accounts.IsActive(ctx, p.ID, p.Role)
		if err != nil {
			return models.Principal{}, fmt.Errorf("%w: account lookup: %v", ErrAuthRejected, err)
		}
		if !active {
			return models.Principal{}, fmt.Errorf("%w: account inactive", ErrAuthRejected)
		}
	}
	return p, nil
}

const (
	StaffHeader = "X-Staff-Session"
	StaffCookie = "staff_session"
)

// CredentialsFromRequest collects tokens from headers, cookies and query
// parameters. Browsers cannot set headers on a websocket handshake, hence
// the query fallbacks.
func CredentialsFromRequest(r *http.Request) Credentials {
	var creds Credentials

	if auth := r.Header.Get("Authorization"); auth != "" {
		if token, ok := strings.CutPrefix(auth, "Bearer "); ok {
			creds.UserToken = strings.TrimSpace(token)
		}
	}
	if creds.UserToken == "" {
		creds.UserToken = r.URL.Query().Get("token")
	}

	creds.StaffToken = r.Header.Get(StaffHeader)
	if creds.StaffToken == "" {
		if cookie, err := r.Cookie(StaffCookie); err == nil {
			creds.StaffToken = cookie.Value
		}
	}
	if creds.StaffToken == "" {
		creds.StaffToken = r.URL.Query().Get("staff_token")
	}
	return creds
}
