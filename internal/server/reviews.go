package server

import (
	"net/http"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
)

const (
	defaultReviewLimit = 50
	maxReviewLimit     = 200
)

func (s *Server) ListReviews(c *gin.Context) {
	limit, err := parseLimit(c.Query("limit"), defaultReviewLimit, maxReviewLimit)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	items, err := s.reviewSvc.ListOpen(c.Request.Context(), limit)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": items})
}

type resolveReviewRequest struct {
	Note string `json:"note"`
}

// ResolveReview closes a queue item and releases a blocked settlement so the
// next event or sweep can retry it.
func (s *Server) ResolveReview(c *gin.Context) {
	a, ok := actorFromContext(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	id, err := snowflake.ParseString(c.Param("id"))
	if err != nil {
		AbortWithError(c, newValidationError("id", "invalid_id", "invalid review id"))
		return
	}

	var req resolveReviewRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			AbortWithError(c, invalidRequestError())
			return
		}
	}

	item, err := s.reconciler.ResolveReview(c.Request.Context(), a, id, req.Note)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": item})
}
