package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"classwork/internal/ai"
)

type breakdownRequest struct {
	Title       string `json:"title"`
	Description string `json:"description"`
}

type orderRequest struct {
	Tasks    []ai.StudentTask `json:"tasks"`
	Workload string           `json:"workload"`
}

// handleSuggestBreakdown proposes seed tasks for a project being drafted.
func (s *Server) handleSuggestBreakdown(c *gin.Context) {
	author, ok := s.author(c)
	if !ok {
		return
	}
	var req breakdownRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.respondError(c, http.StatusBadRequest, err)
		return
	}
	titles, err := author.SuggestBreakdown(c.Request.Context(), req.Title, req.Description)
	if err != nil {
		s.fail(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, gin.H{"tasks": titles})
}

// handleSuggestPriorities proposes priorities across the lecturer's open projects.
func (s *Server) handleSuggestPriorities(c *gin.Context) {
	author, ok := s.author(c)
	if !ok {
		return
	}
	suggestions, err := author.SuggestPriorities(c.Request.Context())
	if err != nil {
		s.fail(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, gin.H{"suggestions": suggestions})
}

// handleSuggestOrder proposes a working order for a student.
func (s *Server) handleSuggestOrder(c *gin.Context) {
	sub, ok := s.submitter(c)
	if !ok {
		return
	}
	var req orderRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			s.respondError(c, http.StatusBadRequest, err)
			return
		}
	}
	order, err := sub.SuggestOrder(c.Request.Context(), req.Tasks, req.Workload)
	if err != nil {
		s.fail(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, gin.H{"order": order})
}
