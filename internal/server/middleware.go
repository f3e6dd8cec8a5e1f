package server

import (
	"strings"

	"github.com/gin-gonic/gin"
	obscontext "github.com/smallbiznis/storefront/internal/observability/context"
	"github.com/smallbiznis/storefront/internal/observability/logger"
)

const bearerPrefix = "bearer "

// Authenticate resolves the bearer token to a configured actor. Requests
// without a token continue anonymously; an unknown token is rejected.
func (s *Server) Authenticate() gin.HandlerFunc {
	return func(c *gin.Context) {
		header := strings.TrimSpace(c.GetHeader("Authorization"))
		if header == "" {
			c.Next()
			return
		}
		if len(header) <= len(bearerPrefix) || !strings.EqualFold(header[:len(bearerPrefix)], bearerPrefix) {
			AbortWithError(c, ErrUnauthorized)
			return
		}

		token := strings.TrimSpace(header[len(bearerPrefix):])
		actor, ok := s.cfg.AuthTokens[token]
		if !ok || token == "" {
			logger.FromContext(c.Request.Context()).Debug("unknown bearer token")
			AbortWithError(c, ErrUnauthorized)
			return
		}

		c.Request = c.Request.WithContext(
			obscontext.WithActor(c.Request.Context(), obscontext.Actor{Name: actor.Name, Role: actor.Role}),
		)
		c.Next()
	}
}
