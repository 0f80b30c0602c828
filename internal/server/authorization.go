package server

import (
	"github.com/gin-gonic/gin"
)

// authorizeAction gates a route on the caller's role.
func (s *Server) authorizeAction(object, action string) gin.HandlerFunc {
	return func(c *gin.Context) {
		a, ok := actorFromContext(c)
		if !ok {
			AbortWithError(c, ErrUnauthorized)
			return
		}
		if err := s.authzSvc.Authorize(c.Request.Context(), a, object, action); err != nil {
			AbortWithError(c, err)
			return
		}
		c.Next()
	}
}

// allowed reports whether the caller holds an optional wider permission, as
// used by routes that serve both owners and staff.
func (s *Server) allowed(c *gin.Context, object, action string) bool {
	a, ok := actorFromContext(c)
	if !ok {
		return false
	}
	return s.authzSvc.Authorize(c.Request.Context(), a, object, action) == nil
}
