// Package dashboard serves the JSON API behind the community dashboard.
package dashboard

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"community-bot/internal/config"
	"community-bot/internal/service"
)

const shutdownTimeout = 5 * time.Second

// Status reports the gateway connection.
type Status interface {
	Ready() bool
}

// WelcomeWagon is the onboarding program the dashboard drives.
type WelcomeWagon interface {
	NewMembers(ctx context.Context) ([]service.NewMember, error)
	Enqueue(ctx context.Context, userID int64) (bool, error)
}

// Pinger checks the database connection.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Deps are the dashboard's collaborators. Status and Welcome are nil when
// the Discord modules are not running.
type Deps struct {
	Status        Status
	Welcome       WelcomeWagon
	DB            Pinger
	MissingConfig []string
}

// Server is the dashboard HTTP server.
type Server struct {
	engine *gin.Engine
	addr   string
	deps   Deps
}

// New creates the server and registers its routes.
func New(cfg config.DashboardConfig, deps Deps) *Server {
	engine := gin.New()
	engine.Use(gin.Recovery(), requestLogger())
	if len(cfg.AllowedOrigins) > 0 {
		engine.Use(cors.New(cors.Config{
			AllowOrigins:     cfg.AllowedOrigins,
			AllowMethods:     []string{"GET", "POST", "OPTIONS"},
			AllowHeaders:     []string{"Origin", "Content-Type", "Accept"},
			ExposeHeaders:    []string{"Content-Length"},
			AllowCredentials: true,
			MaxAge:           12 * time.Hour,
		}))
	}

	s := &Server{engine: engine, addr: cfg.Addr, deps: deps}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.engine.GET("/", s.index)
	s.engine.GET("/healthz", s.health)
	s.engine.POST("/graduate/:user_id", s.requireBot(), s.graduateForm)

	api := s.engine.Group("/api")
	{
		api.GET("/status", s.status)

		wagon := api.Group("/welcome-wagon", s.requireBot())
		wagon.GET("/new-members", s.newMembers)
		wagon.POST("/graduate/:user_id", s.graduate)
	}
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Run serves until ctx ends, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", s.addr).Msg("Dashboard listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("Dashboard shutdown error")
		return err
	}
	log.Info().Msg("Dashboard stopped")
	return nil
}

// requestLogger logs each request through zerolog.
func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		evt := log.Debug()
		if c.Writer.Status() >= http.StatusInternalServerError {
			evt = log.Error()
		}
		evt.Str("method", c.Request.Method).
			Str("path", c.FullPath()).
			Int("status", c.Writer.Status()).
			Dur("took", time.Since(start)).
			Str("client_ip", c.ClientIP()).
			Msg("Dashboard request")
	}
}

// requireBot rejects requests while the Discord modules are not running.
func (s *Server) requireBot() gin.HandlerFunc {
	return func(c *gin.Context) {
		if s.deps.Welcome == nil {
			c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"error": "Bot is not ready yet."})
			return
		}
		c.Next()
	}
}

func (s *Server) index(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"service": "community-bot",
		"endpoints": []string{
			"GET /api/status",
			"GET /api/welcome-wagon/new-members",
			"POST /api/welcome-wagon/graduate/:user_id",
		},
	})
}

func (s *Server) health(c *gin.Context) {
	if s.deps.DB == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "error": "no database"})
		return
	}
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()
	if err := s.deps.DB.Ping(ctx); err != nil {
		log.Warn().Err(err).Msg("Database health check failed")
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) status(c *gin.Context) {
	missing := s.deps.MissingConfig
	if missing == nil {
		missing = []string{}
	}
	c.JSON(http.StatusOK, gin.H{
		"logged_in":      s.deps.Status != nil && s.deps.Status.Ready(),
		"missing_config": missing,
	})
}

func (s *Server) newMembers(c *gin.Context) {
	members, err := s.deps.Welcome.NewMembers(c.Request.Context())
	if err != nil {
		log.Error().Err(err).Msg("Failed to list new members")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list new members"})
		return
	}
	if members == nil {
		members = []service.NewMember{}
	}
	c.JSON(http.StatusOK, members)
}

func (s *Server) enqueue(c *gin.Context) (bool, bool) {
	userID, err := strconv.ParseInt(c.Param("user_id"), 10, 64)
	if err != nil || userID <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid user id"})
		return false, false
	}
	log.Info().Int64("user_id", userID).Msg("Received web request to graduate user")
	added, err := s.deps.Welcome.Enqueue(c.Request.Context(), userID)
	if err != nil {
		log.Error().Err(err).Int64("user_id", userID).Msg("Failed to queue graduation")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to queue graduation"})
		return false, false
	}
	return added, true
}

func (s *Server) graduate(c *gin.Context) {
	added, ok := s.enqueue(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{"queued": added})
}

func (s *Server) graduateForm(c *gin.Context) {
	if _, ok := s.enqueue(c); !ok {
		return
	}
	c.Redirect(http.StatusSeeOther, "/")
}
