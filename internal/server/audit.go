package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	auditdomain "github.com/smallbiznis/coursepay/internal/audit/domain"
)

const (
	defaultAuditLimit = 50
	maxAuditLimit     = 250
)

func (s *Server) ListAuditLogs(c *gin.Context) {
	if s.auditSvc == nil {
		AbortWithError(c, ErrServiceUnavailable)
		return
	}

	limit, err := parseLimit(c.Query("limit"), defaultAuditLimit, maxAuditLimit)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	startAt, err := parseOptionalTime(c.Query("start_at"))
	if err != nil {
		AbortWithError(c, newValidationError("start_at", "invalid_start_at", "invalid start_at"))
		return
	}
	endAt, err := parseOptionalTime(c.Query("end_at"))
	if err != nil {
		AbortWithError(c, newValidationError("end_at", "invalid_end_at", "invalid end_at"))
		return
	}

	logs, err := s.auditSvc.List(c.Request.Context(), auditdomain.ListFilter{
		Action:     strings.TrimSpace(c.Query("action")),
		TargetType: strings.TrimSpace(c.Query("target_type")),
		TargetID:   strings.TrimSpace(c.Query("target_id")),
		ActorID:    strings.TrimSpace(c.Query("actor_id")),
		StartAt:    startAt,
		EndAt:      endAt,
		Limit:      limit,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": logs})
}
