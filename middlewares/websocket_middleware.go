package middlewares

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/yeremiapane/gaming-portal/identity"
	"github.com/yeremiapane/gaming-portal/utils"
)

// WebSocketAuthMiddleware resolves the credential before the upgrade, so a
// rejected handshake never reaches the room router. Browsers cannot set
// headers on a websocket request, so query tokens are accepted too.
func WebSocketAuthMiddleware(resolver PrincipalResolver) gin.HandlerFunc {
	return func(c *gin.Context) {
		p, err := resolver.Resolve(c.Request.Context(), identity.CredentialsFromRequest(c.Request))
		if err != nil {
			utils.ErrorLogger.Debugf("Websocket handshake rejected from %s: %v", c.ClientIP(), err)
			c.AbortWithStatus(http.StatusUnauthorized)
			return
		}

		setPrincipal(c, p)
		c.Next()
	}
}
