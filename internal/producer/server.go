package producer

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

// AnalyzePath is the route the real backend exposes.
const AnalyzePath = "/api/analyze-face"

// Call records one accepted request.
type Call struct {
	Image    string
	UserData map[string]any
}

// Server replays a Script for every valid analysis request.
// Safe for concurrent use.
type Server struct {
	script Script
	delay  time.Duration

	failStatus  int
	failMessage string

	engine *gin.Engine

	mu    sync.Mutex
	calls []Call
}

// New creates a Server that streams script.
func New(script Script) *Server {
	gin.SetMode(gin.ReleaseMode)
	s := &Server{script: script}

	s.engine = gin.New()
	s.engine.Use(gin.Recovery())
	s.engine.POST(AnalyzePath, s.handleAnalyze)
	return s
}

// WithDelay sets the wait before each step that has no delay of its own.
func (s *Server) WithDelay(d time.Duration) *Server {
	s.delay = d
	return s
}

// WithFailure makes valid requests fail with status and an {error} body
// instead of streaming.
func (s *Server) WithFailure(status int, message string) *Server {
	s.failStatus = status
	s.failMessage = message
	return s
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Calls returns the accepted requests so far.
func (s *Server) Calls() []Call {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Call, len(s.calls))
	copy(out, s.calls)
	return out
}

type analyzeRequest struct {
	Image    string         `json:"image"`
	UserData map[string]any `json:"userData"`
}

func (s *Server) handleAnalyze(c *gin.Context) {
	var req analyzeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "No se recibieron datos"})
		return
	}
	if req.Image == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "No se recibió imagen"})
		return
	}

	s.mu.Lock()
	s.calls = append(s.calls, Call{Image: req.Image, UserData: req.UserData})
	s.mu.Unlock()

	if s.failStatus != 0 {
		c.JSON(s.failStatus, gin.H{"error": s.failMessage})
		return
	}

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("X-Accel-Buffering", "no")
	c.Status(http.StatusOK)
	c.Writer.Flush()

	log.Info().Int("steps", len(s.script)).Msg("streaming scripted analysis")

	ctx := c.Request.Context()
	for i, step := range s.script {
		delay := step.Delay
		if delay == 0 {
			delay = s.delay
		}
		if delay > 0 {
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				log.Info().Int("step", i).Msg("client went away")
				return
			}
		}

		chunk, err := step.encode()
		if err != nil {
			log.Error().Err(err).Int("step", i).Msg("skipping step")
			continue
		}
		if _, err := c.Writer.WriteString(chunk); err != nil {
			log.Warn().Err(err).Int("step", i).Msg("failed to write step")
			return
		}
		c.Writer.Flush()
	}
}
