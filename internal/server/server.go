package server

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	"sprintboard/internal/apperr"
	"sprintboard/internal/service"
	"sprintboard/internal/storage/sqlstore"
)

// Options configures the HTTP surface.
type Options struct {
	Services  *service.Services
	Store     *sqlstore.Store
	Logger    *slog.Logger
	StaticDir string
	// BlobDir is served under BlobURL when both are set and BlobURL is a path.
	BlobDir     string
	BlobURL     string
	CORSOrigins []string
	// LoginLimiter guards POST /api/auth/login; nil disables limiting.
	LoginLimiter gin.HandlerFunc
}

// Server provides HTTP handlers for the sprint board backend.
type Server struct {
	engine       *gin.Engine
	svc          *service.Services
	store        *sqlstore.Store
	logger       *slog.Logger
	staticDir    string
	blobDir      string
	blobURL      string
	loginLimiter gin.HandlerFunc
}

// New constructs the HTTP server with routes and middleware configured.
func New(opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(gin.LoggerWithWriter(gin.DefaultWriter, "/api/healthz"))
	if len(opts.CORSOrigins) > 0 {
		router.Use(cors.New(cors.Config{
			AllowOrigins:     opts.CORSOrigins,
			AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete, http.MethodOptions},
			AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
			AllowCredentials: true,
			MaxAge:           12 * time.Hour,
		}))
	}

	srv := &Server{
		engine:       router,
		svc:          opts.Services,
		store:        opts.Store,
		logger:       logger,
		staticDir:    opts.StaticDir,
		blobDir:      opts.BlobDir,
		blobURL:      opts.BlobURL,
		loginLimiter: opts.LoginLimiter,
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
	api.GET("/healthz", s.handleHealth)

	login := []gin.HandlerFunc{}
	if s.loginLimiter != nil {
		login = append(login, s.loginLimiter)
	}
	api.POST("/auth/login", append(login, s.handleLogin)...)

	authed := api.Group("", s.authenticate)
	{
		tasks := authed.Group("/tasks")
		{
			tasks.GET("", s.handleListTasks)
			tasks.POST("", s.handleCreateTask)
			tasks.GET(":id", s.handleGetTask)
			tasks.PATCH(":id", s.handleUpdateTask)
			tasks.DELETE(":id", s.handleDeleteTask)
			tasks.GET(":id/status-log", s.handleStatusLog)
			tasks.POST(":id/comments", s.handleAddComment)
			tasks.POST(":id/attachments", s.handleAddAttachment)
		}

		authed.DELETE("/comments/:id", s.handleDeleteComment)
		authed.GET("/attachments/:id", s.handleGetAttachment)
		authed.DELETE("/attachments/:id", s.handleDeleteAttachment)

		sprints := authed.Group("/sprints")
		{
			sprints.GET("", s.handleListSprints)
			sprints.POST("", s.handleCreateSprint)
			sprints.GET(":id", s.handleGetSprint)
			sprints.PATCH(":id", s.handleUpdateSprint)
			sprints.DELETE(":id", s.handleDeleteSprint)
		}

		users := authed.Group("/users")
		{
			users.GET("", s.handleListUsers)
			users.POST("", s.handleCreateUser)
			users.PATCH(":id", s.handleUpdateUser)
			users.DELETE(":id", s.handleDeleteUser)
		}

		authed.GET("/account", s.handleGetAccount)
		authed.PATCH("/account", s.handleChangePassword)
		authed.GET("/dashboard", s.handleDashboard)
	}

	s.mountBlobs()
	s.mountStatic()
}

// handleHealth reports readiness, including database reachability.
func (s *Server) handleHealth(c *gin.Context) {
	if s.store != nil {
		if err := s.store.Ping(c.Request.Context()); err != nil {
			s.logger.Error("health check failed", slog.String("error", err.Error()))
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// bindJSON decodes the body into dst, turning binding failures into
// validation errors. It writes the response itself on failure.
func (s *Server) bindJSON(c *gin.Context, dst any) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		s.respondError(c, bindingError(err))
		return false
	}
	return true
}

func bindingError(err error) error {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		msgs := make([]string, 0, len(verrs))
		for _, fe := range verrs {
			field := lowerFirst(fe.Field())
			if fe.Tag() == "required" {
				msgs = append(msgs, field+" is required")
			} else {
				msgs = append(msgs, fmt.Sprintf("%s is invalid", field))
			}
		}
		return apperr.Validation(strings.Join(msgs, "; "))
	}
	return apperr.Validation("malformed request body")
}

func lowerFirst(s string) string {
	if s == "" {
		return s
	}
	return strings.ToLower(s[:1]) + s[1:]
}

// respondError logs the error and writes the single {"error": ...} body.
// Internal failures are reported without detail.
func (s *Server) respondError(c *gin.Context, err error) {
	status := apperr.HTTPStatus(err)
	attrs := []any{
		slog.String("method", c.Request.Method),
		slog.String("path", c.FullPath()),
		slog.Int("status", status),
		slog.String("error", err.Error()),
	}
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed", attrs...)
	} else {
		s.logger.Debug("request rejected", attrs...)
	}
	c.AbortWithStatusJSON(status, gin.H{"error": apperr.PublicMessage(err)})
}

// respondSuccess wraps a payload in a JSON envelope for consistency.
func respondSuccess(c *gin.Context, status int, payload any) {
	if payload == nil {
		c.Status(status)
		return
	}
	c.JSON(status, payload)
}
