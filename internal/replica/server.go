package replica

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/colonyops/taskrelay/internal/core/eventbus"
	"github.com/colonyops/taskrelay/internal/core/inbox"
	"github.com/colonyops/taskrelay/internal/core/logging"
	"github.com/colonyops/taskrelay/internal/core/task"
	"github.com/colonyops/taskrelay/internal/metrics"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// ServerOptions configures a Server.
type ServerOptions struct {
	Addr            string
	Token           string // empty disables auth
	ShutdownTimeout time.Duration
	Location        *time.Location
	Bus             *eventbus.EventBus // optional
}

// Server exposes the sync protocol and the inbox over HTTP.
type Server struct {
	store   task.Store
	inbox   inbox.Store
	opts    ServerOptions
	metrics *metrics.Metrics
	log     zerolog.Logger
	router  *gin.Engine
	now     func() time.Time
}

type errorResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

type inboxRequest struct {
	Chat string `json:"chat"`
	Text string `json:"text"`
}

// NewServer creates the HTTP server. inboxStore and m may be nil, which
// disables the matching routes.
func NewServer(store task.Store, inboxStore inbox.Store, m *metrics.Metrics, opts ServerOptions, log zerolog.Logger) *Server {
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	if opts.ShutdownTimeout <= 0 {
		opts.ShutdownTimeout = 10 * time.Second
	}

	router := gin.New()

	s := &Server{
		store:   store,
		inbox:   inboxStore,
		opts:    opts,
		metrics: m,
		log:     log,
		router:  router,
		now:     time.Now,
	}

	router.Use(gin.Recovery(), s.requestID(), s.accessLog())

	router.GET("/", s.handleIndex)

	sync := router.Group("/sync")
	{
		sync.GET("/health", s.handleHealth)
		sync.GET("/tasks", s.auth(), s.handleGetTasks)
		sync.POST("/tasks", s.auth(), s.handlePostTasks)
	}

	if inboxStore != nil {
		router.POST("/inbox", s.auth(), s.handleInbox)
	}
	if m != nil {
		router.GET("/metrics", gin.WrapH(m.Handler()))
	}

	return s
}

// Handler returns the router for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.opts.Addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info().Str("addr", s.opts.Addr).Msg("sync server listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("listen: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.opts.ShutdownTimeout)
	defer cancel()

	s.log.Info().Msg("sync server shutting down")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

func (s *Server) requestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(RequestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		c.Header(RequestIDHeader, id)
		c.Request = c.Request.WithContext(logging.WithRequestID(c.Request.Context(), id))
		c.Next()
	}
}

func (s *Server) accessLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		s.log.Debug().Ctx(c.Request.Context()).
			Str("method", c.Request.Method).
			Str("path", c.FullPath()).
			Int("status", c.Writer.Status()).
			Dur("elapsed", time.Since(start)).
			Msg("request")
	}
}

func (s *Server) auth() gin.HandlerFunc {
	return func(c *gin.Context) {
		if s.opts.Token == "" {
			c.Next()
			return
		}

		got, ok := strings.CutPrefix(c.GetHeader("Authorization"), "Bearer ")
		if !ok || subtle.ConstantTimeCompare([]byte(got), []byte(s.opts.Token)) != 1 {
			c.AbortWithStatusJSON(http.StatusUnauthorized, errorResponse{Status: "error", Message: "unauthorized"})
			return
		}
		c.Next()
	}
}

func (s *Server) handleIndex(c *gin.Context) {
	endpoints := gin.H{
		"get_tasks":  "GET /sync/tasks",
		"sync_tasks": "POST /sync/tasks",
		"health":     "GET /sync/health",
	}
	if s.inbox != nil {
		endpoints["inbox"] = "POST /inbox"
	}
	if s.metrics != nil {
		endpoints["metrics"] = "GET /metrics"
	}

	c.JSON(http.StatusOK, gin.H{
		"status":    "active",
		"service":   "taskrelay sync server",
		"endpoints": endpoints,
	})
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) handleGetTasks(c *gin.Context) {
	snap, err := Export(c.Request.Context(), s.store, s.now())
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, snap)
}

func (s *Server) handlePostTasks(c *gin.Context) {
	ctx := c.Request.Context()

	snap, err := decodeSnapshot(c.Request.Body)
	if err == nil {
		var n int
		n, err = Apply(ctx, s.store, snap, s.opts.Location, s.now())
		if err == nil {
			s.metrics.Sync("receive", nil)
			s.log.Info().Ctx(ctx).Int("tasks", n).Msg("applied snapshot")
			s.opts.Bus.PublishSnapshotApplied(eventbus.SnapshotAppliedPayload{
				Count:     n,
				RequestID: logging.GetRequestID(ctx),
			})
			c.JSON(http.StatusOK, Ack{
				Status:    "success",
				Count:     n,
				Message:   fmt.Sprintf("synced %d tasks", n),
				RequestID: logging.GetRequestID(ctx),
			})
			return
		}
	}

	s.metrics.Sync("receive", err)
	s.fail(c, err)
}

func (s *Server) handleInbox(c *gin.Context) {
	var req inboxRequest
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.Text) == "" {
		c.JSON(http.StatusBadRequest, errorResponse{Status: "error", Message: "expected {\"text\": \"...\"}"})
		return
	}

	id, err := s.inbox.Append(c.Request.Context(), inbox.Message{
		Chat:       req.Chat,
		Text:       req.Text,
		ReceivedAt: s.now(),
	})
	if err != nil {
		s.fail(c, err)
		return
	}

	s.opts.Bus.PublishInboxReceived(eventbus.InboxReceivedPayload{MessageID: id})
	c.JSON(http.StatusAccepted, gin.H{"status": "accepted", "id": id})
}

// fail maps err to a status code: 400 for rejected input, 500 otherwise.
func (s *Server) fail(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	if errors.Is(err, ErrSync) || errors.Is(err, task.ErrInvalid) {
		status = http.StatusBadRequest
	}

	if status == http.StatusInternalServerError {
		s.log.Error().Ctx(c.Request.Context()).Err(err).Str("path", c.FullPath()).Msg("request failed")
	} else {
		s.log.Warn().Ctx(c.Request.Context()).Err(err).Str("path", c.FullPath()).Msg("request rejected")
	}

	c.JSON(status, errorResponse{Status: "error", Message: err.Error()})
}

// decodeSnapshot requires a JSON object with a tasks array. A missing tasks
// key is rejected so that an empty body cannot wipe the store.
func decodeSnapshot(r io.Reader) (Snapshot, error) {
	var snap Snapshot
	if err := json.NewDecoder(r).Decode(&snap); err != nil {
		if errors.Is(err, io.EOF) {
			return Snapshot{}, &SyncError{Index: -1, Reason: "no JSON data received"}
		}
		return Snapshot{}, &SyncError{Index: -1, Reason: "malformed JSON: " + err.Error()}
	}
	if snap.Tasks == nil {
		return Snapshot{}, &SyncError{Index: -1, Reason: `missing "tasks" array`}
	}
	return snap, nil
}
