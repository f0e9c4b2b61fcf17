package server

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"classwork/internal/ai"
	"classwork/internal/lifecycle"
	"classwork/internal/viewer"
)

// UserHeader carries the id issued by the identity provider.
const UserHeader = "X-User-ID"

const viewerKey = "viewer"

// Server provides HTTP handlers for the classwork backend.
type Server struct {
	engine    *gin.Engine
	deps      viewer.Deps
	logger    *slog.Logger
	staticDir string
}

// New constructs the HTTP server with routes and middleware configured.
func New(deps viewer.Deps, logger *slog.Logger, staticDir string) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	if deps.Suggester == nil {
		deps.Suggester = ai.Disabled{}
	}

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(gin.LoggerWithWriter(gin.DefaultWriter, "/api"))

	srv := &Server{
		engine:    router,
		deps:      deps,
		logger:    logger,
		staticDir: staticDir,
	}

	srv.registerRoutes()
	return srv
}

// Engine exposes the underlying Gin engine.
func (s *Server) Engine() *gin.Engine {
	return s.engine
}

// registerRoutes wires all API and static handlers together.
func (s *Server) registerRoutes() {
	api := s.engine.Group("/api")
	{
		api.GET("/healthz", s.handleHealth)
		api.POST("/users", s.handleRegisterUser)

		authed := api.Group("", s.identify)
		authed.GET("/me", s.handleMe)
		authed.GET("/users", s.handleListUsers)

		projects := authed.Group("/projects")
		{
			projects.GET("", s.handleListProjects)
			projects.POST("", s.handleCreateProject)
			projects.GET("/stream", s.handleProjectStream)
			projects.GET("/:id", s.handleGetProject)
			projects.DELETE("/:id", s.handleDeleteProject)
			projects.PUT("/:id/status", s.handleSetProjectStatus)
			projects.POST("/:id/submit", s.handleSubmitProject)
			projects.GET("/:id/tasks", s.handleListTasks)
			projects.POST("/:id/tasks", s.handleCreateTask)
			projects.GET("/:id/tasks/stream", s.handleTaskStream)
			projects.GET("/:id/activity", s.handleListActivity)
		}

		tasks := authed.Group("/tasks")
		{
			tasks.PUT("/:id/status", s.handleSetTaskStatus)
			tasks.GET("/:id/comments", s.handleListComments)
			tasks.POST("/:id/comments", s.handleAddComment)
			tasks.GET("/:id/comments/stream", s.handleCommentStream)
		}

		authed.GET("/workloads", s.handleWorkloads)

		suggestions := authed.Group("/suggestions")
		{
			suggestions.POST("/breakdown", s.handleSuggestBreakdown)
			suggestions.POST("/priorities", s.handleSuggestPriorities)
			suggestions.POST("/order", s.handleSuggestOrder)
		}
	}

	s.mountStatic()
}

// handleHealth provides a basic readiness endpoint.
func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// identify resolves the acting user and attaches their view to the request.
func (s *Server) identify(c *gin.Context) {
	id := strings.TrimSpace(c.GetHeader(UserHeader))
	if id == "" {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing " + UserHeader + " header"})
		return
	}
	user, err := s.deps.Manager.GetUser(c.Request.Context(), id)
	if errors.Is(err, lifecycle.ErrNotFound) {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unknown user"})
		return
	}
	if err != nil {
		s.fail(c, err)
		c.Abort()
		return
	}
	v, err := viewer.For(user, s.deps)
	if err != nil {
		s.fail(c, err)
		c.Abort()
		return
	}
	c.Set(viewerKey, v)
	c.Next()
}

func currentViewer(c *gin.Context) viewer.Viewer {
	return c.MustGet(viewerKey).(viewer.Viewer)
}

// author returns the caller's ProjectAuthor capability or answers 403.
func (s *Server) author(c *gin.Context) (viewer.ProjectAuthor, bool) {
	a, ok := currentViewer(c).(viewer.ProjectAuthor)
	if !ok {
		s.respondError(c, http.StatusForbidden, errors.New("only lecturers can do this"))
	}
	return a, ok
}

// submitter returns the caller's Submitter capability or answers 403.
func (s *Server) submitter(c *gin.Context) (viewer.Submitter, bool) {
	sub, ok := currentViewer(c).(viewer.Submitter)
	if !ok {
		s.respondError(c, http.StatusForbidden, errors.New("only students can do this"))
	}
	return sub, ok
}

// writeOptions turns an If-Match header into a conditional write.
func writeOptions(c *gin.Context) ([]lifecycle.WriteOption, bool) {
	raw := strings.TrimSpace(c.GetHeader("If-Match"))
	raw = strings.Trim(strings.TrimPrefix(raw, "W/"), `"`)
	if raw == "" || raw == "*" {
		return nil, true
	}
	version, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || version < 1 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid If-Match version"})
		return nil, false
	}
	return []lifecycle.WriteOption{lifecycle.IfVersion(version)}, true
}

func etag(version int64) string {
	return `"` + strconv.FormatInt(version, 10) + `"`
}

// fail maps a domain error onto a status code.
func (s *Server) fail(c *gin.Context, err error) {
	var (
		verr *lifecycle.ValidationError
		aerr *ai.Error
		serr *lifecycle.StoreError
	)
	switch {
	case errors.As(err, &verr):
		fields := make(map[string]string, len(verr.Fields))
		for _, f := range verr.Fields {
			fields[f.Field] = f.Error
		}
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": verr.Err.Error(), "fields": fields})
	case errors.Is(err, lifecycle.ErrNotFound):
		s.respondError(c, http.StatusNotFound, err)
	case errors.Is(err, lifecycle.ErrVersionConflict), errors.Is(err, lifecycle.ErrInvalidTransition),
		errors.Is(err, lifecycle.ErrAlreadyExists):
		s.respondError(c, http.StatusConflict, err)
	case errors.Is(err, viewer.ErrForbidden):
		s.respondError(c, http.StatusForbidden, err)
	case errors.As(err, &aerr):
		s.logger.Warn("suggestion failed", slog.String("path", c.FullPath()), slog.String("error", err.Error()))
		c.JSON(http.StatusBadGateway, gin.H{"error": "could not generate suggestions"})
	case errors.As(err, &serr):
		s.respondError(c, http.StatusInternalServerError, serr)
	default:
		s.respondError(c, http.StatusInternalServerError, err)
	}
}

// respondError logs the error and returns a JSON payload.
func (s *Server) respondError(c *gin.Context, status int, err error) {
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed", slog.String("path", c.FullPath()), slog.String("error", err.Error()))
	} else {
		s.logger.Debug("request rejected", slog.String("path", c.FullPath()), slog.Int("status", status), slog.String("error", err.Error()))
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

// respondSuccess wraps a payload in a JSON envelope for consistency.
func respondSuccess(c *gin.Context, status int, payload any) {
	if payload == nil {
		c.Status(status)
		return
	}
	c.JSON(status, payload)
}
