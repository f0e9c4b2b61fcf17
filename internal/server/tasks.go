package server

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"classwork/internal/lifecycle"
)

type taskRequest struct {
	Title    string     `json:"title"`
	DueDate  *time.Time `json:"dueDate"`
	ParentID string     `json:"parentId"`
}

type commentRequest struct {
	Text string `json:"text"`
}

// handleListTasks returns the project's tasks with subtasks nested.
func (s *Server) handleListTasks(c *gin.Context) {
	tasks, err := currentViewer(c).Tasks(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.fail(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, gin.H{"tasks": tasks})
}

// handleCreateTask adds a task or subtask to a project.
func (s *Server) handleCreateTask(c *gin.Context) {
	var req taskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.respondError(c, http.StatusBadRequest, err)
		return
	}

	ctx := c.Request.Context()
	id, err := currentViewer(c).AddTask(ctx, lifecycle.NewTask{
		ProjectID: c.Param("id"),
		Title:     req.Title,
		DueDate:   req.DueDate,
		ParentID:  req.ParentID,
	})
	if err != nil {
		s.fail(c, err)
		return
	}
	s.respondTask(c, http.StatusCreated, id)
}

// handleSetTaskStatus overwrites a task's status. If-Match makes it conditional.
func (s *Server) handleSetTaskStatus(c *gin.Context) {
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
	if err := currentViewer(c).SetTaskStatus(c.Request.Context(), id, req.Status, opts...); err != nil {
		s.fail(c, err)
		return
	}
	s.respondTask(c, http.StatusOK, id)
}

// handleListComments returns a task's comments oldest first.
func (s *Server) handleListComments(c *gin.Context) {
	comments, err := currentViewer(c).Comments(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.fail(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, gin.H{"comments": comments})
}

// handleAddComment appends a comment as the acting user.
func (s *Server) handleAddComment(c *gin.Context) {
	var req commentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.respondError(c, http.StatusBadRequest, err)
		return
	}

	ctx := c.Request.Context()
	v := currentViewer(c)
	taskID := c.Param("id")
	id, err := v.Comment(ctx, taskID, req.Text)
	if err != nil {
		s.fail(c, err)
		return
	}
	comments, err := v.Comments(ctx, taskID)
	if err != nil {
		s.fail(c, err)
		return
	}
	for _, comment := range comments {
		if comment.ID == id {
			respondSuccess(c, http.StatusCreated, gin.H{"comment": comment})
			return
		}
	}
	respondSuccess(c, http.StatusCreated, gin.H{"comment": gin.H{"id": id}})
}

// respondTask answers with a task the caller was just allowed to touch.
func (s *Server) respondTask(c *gin.Context, status int, id string) {
	task, err := s.deps.Manager.GetTask(c.Request.Context(), id)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.Header("ETag", etag(task.Version))
	respondSuccess(c, status, gin.H{"task": task})
}
