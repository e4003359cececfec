// Package web serves live run status over HTTP and WebSocket.
package web

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/websocket/v2"

	"github.com/fluxfuzzer/statefuzz/internal/engine"
	"github.com/fluxfuzzer/statefuzz/internal/metrics"
	"github.com/fluxfuzzer/statefuzz/internal/report"
	"github.com/fluxfuzzer/statefuzz/internal/ui"
	"github.com/fluxfuzzer/statefuzz/pkg/types"
)

// FindingSource supplies findings collected so far
type FindingSource interface {
	Findings() []report.Finding
}

// Server exposes a run's progress to HTTP clients
type Server struct {
	app    *fiber.App
	logger *slog.Logger

	stats    *ui.Stats
	findings FindingSource
	target   string
	cancel   context.CancelFunc

	mu       sync.RWMutex
	recent   []CaseLog
	capacity int
	plan     []engine.PlanEntry
	running  bool

	clients   map[*websocket.Conn]bool
	clientsMu sync.Mutex
	broadcast chan []byte
	done      chan struct{}
	closeOnce sync.Once
}

// StatsResponse is the JSON form of a stats snapshot
type StatsResponse struct {
	Running         bool    `json:"running"`
	Target          string  `json:"target"`
	TotalCases      int64   `json:"totalCases"`
	Planned         int64   `json:"planned"`
	OK              int64   `json:"ok"`
	NoResponse      int64   `json:"noResponse"`
	ProtocolErrors  int64   `json:"protocolErrors"`
	TransportErrors int64   `json:"transportErrors"`
	CasesPerSec     float64 `json:"casesPerSec"`
	Progress        float64 `json:"progress"`
	ElapsedTime     string  `json:"elapsedTime"`
	LastIndex       int     `json:"lastIndex"`
	LastPath        string  `json:"lastPath"`
	LastField       string  `json:"lastField"`
}

// CaseLog represents one executed case
type CaseLog struct {
	Index        int       `json:"index"`
	Timestamp    time.Time `json:"timestamp"`
	Path         string    `json:"path"`
	Field        string    `json:"field"`
	MutantIndex  int       `json:"mutantIndex"`
	Status       string    `json:"status"`
	StatusCode   int       `json:"statusCode,omitempty"`
	ResponseTime int64     `json:"responseTime"` // milliseconds
	RequestLen   int       `json:"requestLength"`
	ResponseLen  int       `json:"responseLength"`
	Error        string    `json:"error,omitempty"`
}

// Option configures a Server
type Option func(*Server)

// WithLogger sets the logger
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) { s.logger = l }
}

// WithFindings exposes findings at /api/findings
func WithFindings(src FindingSource) Option {
	return func(s *Server) { s.findings = src }
}

// WithCancel lets POST /api/stop cancel the run
func WithCancel(cancel context.CancelFunc) Option {
	return func(s *Server) { s.cancel = cancel }
}

// WithTarget sets the target shown in stats
func WithTarget(target string) Option {
	return func(s *Server) { s.target = target }
}

// WithHistory sets how many recent cases are kept
func WithHistory(n int) Option {
	return func(s *Server) {
		if n > 0 {
			s.capacity = n
		}
	}
}

// NewServer creates a status server over stats
func NewServer(stats *ui.Stats, opts ...Option) *Server {
	if stats == nil {
		stats = ui.NewStats()
	}

	s := &Server{
		app: fiber.New(fiber.Config{
			DisableStartupMessage: true,
		}),
		logger:    slog.Default(),
		stats:     stats,
		capacity:  200,
		running:   true,
		clients:   make(map[*websocket.Conn]bool),
		broadcast: make(chan []byte, 100),
		done:      make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.setupRoutes()
	go s.handleBroadcast()

	return s
}

func (s *Server) setupRoutes() {
	s.app.Use(cors.New())

	api := s.app.Group("/api")
	api.Get("/stats", s.handleStats)
	api.Get("/cases", s.handleCases)
	api.Get("/findings", s.handleFindings)
	api.Get("/plan", s.handlePlan)
	api.Post("/stop", s.handleStop)

	s.app.Get("/metrics", adaptor.HTTPHandler(metrics.Handler()))

	s.app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	s.app.Get("/ws", websocket.New(s.handleWebSocket))
}

func (s *Server) statsResponse() StatsResponse {
	snap := s.stats.Snapshot()

	s.mu.RLock()
	running := s.running
	s.mu.RUnlock()

	return StatsResponse{
		Running:         running,
		Target:          s.target,
		TotalCases:      snap.TotalCases,
		Planned:         snap.Planned,
		OK:              snap.OKCount,
		NoResponse:      snap.NoResponseCount,
		ProtocolErrors:  snap.ProtocolErrors,
		TransportErrors: snap.TransportErrors,
		CasesPerSec:     snap.CPS,
		Progress:        snap.Progress,
		ElapsedTime:     snap.ElapsedTime.Round(time.Second).String(),
		LastIndex:       snap.LastIndex,
		LastPath:        snap.LastPath,
		LastField:       snap.LastField,
	}
}

func (s *Server) handleStats(c *fiber.Ctx) error {
	return c.JSON(s.statsResponse())
}

// handleCases returns recent cases, newest last. ?status= filters by outcome.
func (s *Server) handleCases(c *fiber.Ctx) error {
	limit := c.QueryInt("limit", 50)
	if limit <= 0 {
		limit = 50
	}
	status := c.Query("status")

	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]CaseLog, 0, limit)
	for i := len(s.recent) - 1; i >= 0 && len(out) < limit; i-- {
		if status != "" && s.recent[i].Status != status {
			continue
		}
		out = append(out, s.recent[i])
	}
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return c.JSON(out)
}

func (s *Server) handleFindings(c *fiber.Ctx) error {
	if s.findings == nil {
		return c.JSON([]report.Finding{})
	}
	return c.JSON(s.findings.Findings())
}

func (s *Server) handlePlan(c *fiber.Ctx) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.plan == nil {
		return c.JSON([]engine.PlanEntry{})
	}
	return c.JSON(s.plan)
}

func (s *Server) handleStop(c *fiber.Ctx) error {
	if s.cancel == nil {
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": "run cannot be stopped from here"})
	}
	s.cancel()
	s.logger.Info("stop requested over http", slog.String("remote", c.IP()))
	return c.JSON(fiber.Map{"status": "stopping"})
}

func (s *Server) handleWebSocket(c *websocket.Conn) {
	s.clientsMu.Lock()
	s.clients[c] = true
	s.clientsMu.Unlock()

	defer func() {
		s.clientsMu.Lock()
		delete(s.clients, c)
		s.clientsMu.Unlock()
		c.Close()
	}()

	if data, err := encode("stats", s.statsResponse()); err == nil {
		c.WriteMessage(websocket.TextMessage, data)
	}

	for {
		if _, _, err := c.ReadMessage(); err != nil {
			break
		}
	}
}

func (s *Server) handleBroadcast() {
	for {
		select {
		case <-s.done:
			return
		case msg := <-s.broadcast:
			s.clientsMu.Lock()
			for client := range s.clients {
				if err := client.WriteMessage(websocket.TextMessage, msg); err != nil {
					client.Close()
					delete(s.clients, client)
				}
			}
			s.clientsMu.Unlock()
		}
	}
}

func encode(kind string, v any) ([]byte, error) {
	return json.Marshal(map[string]any{
		"type": kind,
		"data": v,
	})
}

func (s *Server) send(kind string, v any) {
	data, err := encode(kind, v)
	if err != nil {
		s.logger.Debug("encode broadcast", slog.String("type", kind), slog.Any("error", err))
		return
	}
	select {
	case s.broadcast <- data:
	default:
		// Slow clients drop updates
	}
}

// SetPlan publishes the run plan at /api/plan
func (s *Server) SetPlan(entries []engine.PlanEntry) {
	s.mu.Lock()
	s.plan = entries
	s.mu.Unlock()
}

// SetRunning marks the run as running or finished and notifies clients
func (s *Server) SetRunning(running bool) {
	s.mu.Lock()
	s.running = running
	s.mu.Unlock()
	s.send("stats", s.statsResponse())
}

// OnCase records a case and pushes it to WebSocket clients
func (s *Server) OnCase(res *types.CaseResult) {
	code, _ := engine.StatusCode(res.Response)
	entry := CaseLog{
		Index:        res.Index,
		Timestamp:    time.Now(),
		Path:         strings.Join(res.Path, " -> "),
		Field:        res.Field,
		MutantIndex:  res.MutantIndex,
		Status:       string(res.Status),
		StatusCode:   code,
		ResponseTime: res.Duration.Milliseconds(),
		RequestLen:   len(res.Request),
		ResponseLen:  len(res.Response),
	}
	if res.Error != nil {
		entry.Error = res.Error.Error()
	}

	s.mu.Lock()
	s.recent = append(s.recent, entry)
	if len(s.recent) > s.capacity {
		s.recent = s.recent[len(s.recent)-s.capacity:]
	}
	s.mu.Unlock()

	s.send("case", entry)
}

// Start listens on addr and blocks until the server stops
func (s *Server) Start(addr string) error {
	s.logger.Info("status server listening", slog.String("addr", addr))
	return s.app.Listen(addr)
}

// Stop shuts the server down
func (s *Server) Stop() error {
	s.closeOnce.Do(func() { close(s.done) })
	return s.app.Shutdown()
}
