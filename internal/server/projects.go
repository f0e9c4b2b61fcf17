package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"classwork/internal/lifecycle"
	"classwork/internal/models"
)

type statusRequest struct {
	Status models.Status `json:"status"`
}

// handleListProjects returns the projects visible to the caller.
func (s *Server) handleListProjects(c *gin.Context) {
	cards, err := currentViewer(c).Projects(c.Request.Context())
	if err != nil {
		s.fail(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, gin.H{"projects": cards})
}

// handleGetProject returns a single project card.
func (s *Server) handleGetProject(c *gin.Context) {
	s.respondProject(c, http.StatusOK, c.Param("id"))
}

// handleCreateProject creates a project, with optional seed tasks, for a lecturer.
func (s *Server) handleCreateProject(c *gin.Context) {
	author, ok := s.author(c)
	if !ok {
		return
	}

	var req lifecycle.NewProject
	if err := c.ShouldBindJSON(&req); err != nil {
		s.respondError(c, http.StatusBadRequest, err)
		return
	}

	id, err := author.CreateProject(c.Request.Context(), req)
	if err != nil {
		s.fail(c, err)
		return
	}
	s.respondProject(c, http.StatusCreated, id)
}

// handleDeleteProject removes a project with its tasks, comments and activity.
func (s *Server) handleDeleteProject(c *gin.Context) {
	author, ok := s.author(c)
	if !ok {
		return
	}
	if err := author.DeleteProject(c.Request.Context(), c.Param("id")); err != nil {
		s.fail(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, gin.H{"status": "deleted"})
}

// handleSetProjectStatus overwrites a project's status. If-Match makes it conditional.
func (s *Server) handleSetProjectStatus(c *gin.Context) {
	author, ok := s.author(c)
	if !ok {
		return
	}
	opts, ok := writeOptions(c)
	if !ok {
		return
	}

	var req statusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.respondError(c, http.StatusBadRequest, err)
		return
	}

	id := c.Param("id")
	if err := author.SetProjectStatus(c.Request.Context(), id, req.Status, opts...); err != nil {
		s.fail(c, err)
		return
	}
	s.respondProject(c, http.StatusOK, id)
}

// handleSubmitProject hands in a project whose tasks are all Completed.
func (s *Server) handleSubmitProject(c *gin.Context) {
	sub, ok := s.submitter(c)
	if !ok {
		return
	}
	id := c.Param("id")
	if err := sub.SubmitProject(c.Request.Context(), id); err != nil {
		s.fail(c, err)
		return
	}
	s.respondProject(c, http.StatusOK, id)
}

// handleListActivity returns the project's activity log.
func (s *Server) handleListActivity(c *gin.Context) {
	entries, err := currentViewer(c).Activity(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.fail(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, gin.H{"activity": entries})
}

// handleWorkloads reports each student's open project count.
func (s *Server) handleWorkloads(c *gin.Context) {
	author, ok := s.author(c)
	if !ok {
		return
	}
	workloads, err := author.Workloads(c.Request.Context())
	if err != nil {
		s.fail(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, gin.H{"workloads": workloads})
}

func (s *Server) respondProject(c *gin.Context, status int, id string) {
	card, err := currentViewer(c).Project(c.Request.Context(), id)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.Header("ETag", etag(card.Version))
	respondSuccess(c, status, gin.H{"project": card})
}
