package server

import (
	"io"
	"log/slog"

	"github.com/gin-gonic/gin"

	"classwork/internal/lifecycle"
	"classwork/internal/models"
	"classwork/internal/realtime"
	"classwork/internal/viewer"
)

type event struct {
	name string
	data any
}

// latest keeps only the newest snapshot for a slow client.
type latest chan event

func (l latest) offer(ev event) {
	for {
		select {
		case l <- ev:
			return
		default:
		}
		select {
		case <-l:
		default:
		}
	}
}

func snapshotEvent(name string, data any, err error) event {
	if err != nil {
		return event{name: "error", data: gin.H{"error": err.Error()}}
	}
	return event{name: name, data: data}
}

// handleProjectStream pushes the caller's project cards on every change.
func (s *Server) handleProjectStream(c *gin.Context) {
	events := make(latest, 1)
	sub := currentViewer(c).WatchProjects(c.Request.Context(), func(cards []viewer.ProjectCard, err error) {
		events.offer(snapshotEvent("projects", cards, err))
	})
	s.stream(c, sub, events)
}

// handleTaskStream pushes a project's task tree on every change.
func (s *Server) handleTaskStream(c *gin.Context) {
	events := make(latest, 1)
	sub, err := currentViewer(c).WatchTasks(c.Request.Context(), c.Param("id"), func(nodes []lifecycle.TaskNode, err error) {
		events.offer(snapshotEvent("tasks", nodes, err))
	})
	if err != nil {
		s.fail(c, err)
		return
	}
	s.stream(c, sub, events)
}

// handleCommentStream pushes a task's comments on every change.
func (s *Server) handleCommentStream(c *gin.Context) {
	events := make(latest, 1)
	sub, err := currentViewer(c).WatchComments(c.Request.Context(), c.Param("id"), func(comments []models.Comment, err error) {
		events.offer(snapshotEvent("comments", comments, err))
	})
	if err != nil {
		s.fail(c, err)
		return
	}
	s.stream(c, sub, events)
}

func (s *Server) stream(c *gin.Context, sub *realtime.Subscription, events latest) {
	defer sub.Close()
	c.Header("Cache-Control", "no-cache")
	c.Header("X-Accel-Buffering", "no")

	ctx := c.Request.Context()
	s.logger.Debug("stream opened", slog.String("path", c.FullPath()))
	c.Stream(func(io.Writer) bool {
		select {
		case <-ctx.Done():
			return false
		case <-sub.Done():
			return false
		case ev := <-events:
			c.SSEvent(ev.name, ev.data)
			return true
		}
	})
	s.logger.Debug("stream closed", slog.String("path", c.FullPath()))
}
