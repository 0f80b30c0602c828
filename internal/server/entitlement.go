package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	entitlementdomain "github.com/smallbiznis/coursepay/internal/entitlement/domain"
)

// GetEntitlement reports whether the caller can open a course.
func (s *Server) GetEntitlement(c *gin.Context) {
	a, ok := actorFromContext(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	courseID := strings.TrimSpace(c.Param("course_id"))
	if courseID == "" {
		AbortWithError(c, newValidationError("course_id", "required", "course_id is required"))
		return
	}

	entitled, access, err := s.entitlements.HasEntitlement(c.Request.Context(), a.UserID, courseID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	state := entitlementdomain.StateNone
	if entitled {
		state = entitlementdomain.StateEntitled
	}
	resp := gin.H{"course_id": courseID, "state": state}
	if entitled && access != nil {
		resp["access"] = access
	}
	c.JSON(http.StatusOK, gin.H{"data": resp})
}
