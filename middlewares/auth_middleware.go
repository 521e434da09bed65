package middlewares

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/yeremiapane/gaming-portal/identity"
	"github.com/yeremiapane/gaming-portal/models"
	"github.com/yeremiapane/gaming-portal/utils"
)

// Context keys set by the auth middlewares.
const (
	PrincipalKey = "principal"
	UserIDKey    = "user_id"
	RoleKey      = "role"
)

type PrincipalResolver interface {
	Resolve(ctx context.Context, creds identity.Credentials) (models.Principal, error)
}

// AuthMiddleware resolves the request credential and stores the principal on
// the context. Any rejection ends the request with 401.
func AuthMiddleware(resolver PrincipalResolver) gin.HandlerFunc {
	return func(c *gin.Context) {
		p, err := resolver.Resolve(c.Request.Context(), identity.CredentialsFromRequest(c.Request))
		if err != nil {
			utils.ErrorLogger.Debugf("Rejected %s %s: %v", c.Request.Method, c.Request.URL.Path, err)
			utils.RespondError(c, http.StatusUnauthorized, identity.ErrAuthRejected)
			c.Abort()
			return
		}

		setPrincipal(c, p)
		c.Next()
	}
}

func setPrincipal(c *gin.Context, p models.Principal) {
	c.Set(PrincipalKey, p)
	c.Set(UserIDKey, p.ID)
	c.Set(RoleKey, p.Role)
}

// CurrentPrincipal returns the principal stored by the auth middlewares.
func CurrentPrincipal(c *gin.Context) (models.Principal, bool) {
	v, ok := c.Get(PrincipalKey)
	if !ok {
		return models.Principal{}, false
	}
	p, ok := v.(models.Principal)
	return p, ok
}
