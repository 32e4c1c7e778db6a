package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"store_engine/internal/domain"
)

// actorHeader carries the caller's operator identity. How that identity was
// authenticated is the fronting collaborator's job; the engine only checks
// the capability level.
const actorHeader = "X-Actor-ID"

// RequireLevel guards operator routes with the Authorizer capability check.
func RequireLevel(auth domain.Authorizer, minLevel int, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		actorID := c.GetHeader(actorHeader)
		if actorID == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing actor identity"})
			return
		}

		ok, err := auth.IsAuthorized(c.Request.Context(), actorID, minLevel)
		if err != nil {
			logger.Error("authorization check failed", zap.String("actor_id", actorID), zap.Error(err))
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "authorization check failed"})
			return
		}
		if !ok {
			logger.Warn("unauthorized operator action",
				zap.String("actor_id", actorID),
				zap.Int("required_level", minLevel),
				zap.String("path", c.FullPath()))
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "insufficient privileges"})
			return
		}

		c.Next()
	}
}
