package server

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"classwork/internal/lifecycle"
	"classwork/internal/models"
)

// handleRegisterUser stores the profile of a freshly signed up user.
func (s *Server) handleRegisterUser(c *gin.Context) {
	var req lifecycle.NewUser
	if err := c.ShouldBindJSON(&req); err != nil {
		s.respondError(c, http.StatusBadRequest, err)
		return
	}

	ctx := c.Request.Context()
	id, err := s.deps.Manager.RegisterUser(ctx, req)
	if err != nil {
		s.fail(c, err)
		return
	}
	user, err := s.deps.Manager.GetUser(ctx, id)
	if err != nil {
		s.fail(c, err)
		return
	}
	respondSuccess(c, http.StatusCreated, gin.H{"user": user})
}

// handleMe returns the acting user's profile.
func (s *Server) handleMe(c *gin.Context) {
	respondSuccess(c, http.StatusOK, gin.H{"user": currentViewer(c).Profile()})
}

// handleListUsers lists users, optionally narrowed by ?role=.
func (s *Server) handleListUsers(c *gin.Context) {
	role := models.Role(c.Query("role"))
	if role != "" && !role.Valid() {
		s.respondError(c, http.StatusBadRequest, fmt.Errorf("unknown role %q", role))
		return
	}
	users, err := s.deps.Manager.ListUsers(c.Request.Context(), role)
	if err != nil {
		s.fail(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, gin.H{"users": users})
}
