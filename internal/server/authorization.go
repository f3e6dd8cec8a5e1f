package server

import (
	"strings"

	"github.com/gin-gonic/gin"
	obscontext "github.com/smallbiznis/storefront/internal/observability/context"
)

func (s *Server) authorize(object string, action string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := s.authorizeWithContext(c, object, action); err != nil {
			AbortWithError(c, err)
			return
		}
		c.Next()
	}
}

// authorizeWithContext checks the request actor; anonymous requests are
// unauthorized rather than forbidden.
func (s *Server) authorizeWithContext(c *gin.Context, object string, action string) error {
	actor, ok := obscontext.ActorFromContext(c.Request.Context())
	if !ok {
		return ErrUnauthorized
	}
	if s.authzSvc == nil {
		return ErrForbidden
	}
	return s.authzSvc.Authorize(
		c.Request.Context(),
		actor.Subject(),
		actor.Role,
		strings.TrimSpace(object),
		strings.TrimSpace(action),
	)
}
