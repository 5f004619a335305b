// Package server provides HTTP and WebSocket handlers
package server

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/GriffinCanCode/game-translator/internal/config"
	apperrors "github.com/GriffinCanCode/game-translator/internal/errors"
	"github.com/GriffinCanCode/game-translator/internal/history"
	"github.com/GriffinCanCode/game-translator/internal/language"
	"github.com/GriffinCanCode/game-translator/internal/pipeline"
	"github.com/GriffinCanCode/game-translator/internal/resilience"
	"github.com/GriffinCanCode/game-translator/internal/screen"
	"github.com/GriffinCanCode/game-translator/internal/trace"
)

// Pipeline is the scheduler surface the server drives.
type Pipeline interface {
	Events() <-chan pipeline.Message
	Status() pipeline.Status
	Start(ctx context.Context) error
	Stop()
	Toggle(ctx context.Context) (pipeline.State, error)
	SetRegion(r screen.Region) error
	Options() config.Options
	SetOptions(o config.Options) error
	Preview() (pipeline.Preview, bool)
}

// HealthReporter exposes the circuit breaker of an external collaborator.
type HealthReporter interface {
	Health() resilience.Snapshot
}

// HealthResponse lists breaker states and whether any is open.
type HealthResponse struct {
	Degraded bool                  `json:"degraded"`
	Breakers []resilience.Snapshot `json:"breakers"`
}

// Command is an inbound WebSocket message.
type Command struct {
	Type string `json:"type"` // toggle, start, stop, status
}

// ErrorMessage is sent to a WebSocket client whose command failed.
type ErrorMessage struct {
	Type    string `json:"type"`
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

// LanguagesResponse lists recognisable sources and translation targets.
type LanguagesResponse struct {
	Sources []language.Info   `json:"sources"`
	Targets []language.Target `json:"targets"`
}

// rateLimiter tracks message timestamps using a sliding window.
type rateLimiter struct {
	timestamps []time.Time
	mu         sync.Mutex
}

// allow checks if a message is allowed and records the timestamp if so.
func (r *rateLimiter) allow() bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	cutoff := now.Add(-RateLimitWindow)

	valid := r.timestamps[:0]
	for _, t := range r.timestamps {
		if t.After(cutoff) {
			valid = append(valid, t)
		}
	}
	r.timestamps = valid

	if len(r.timestamps) >= RateLimitMessages {
		return false
	}

	r.timestamps = append(r.timestamps, now)
	return true
}

// client is one WebSocket connection with its outbound queue.
type client struct {
	send  chan any
	limit rateLimiter
}

// Server handles HTTP and WebSocket connections.
type Server struct {
	pipe    Pipeline
	history *history.Log
	sources []language.Info
	targets []language.Target
	health  []HealthReporter

	mu      sync.RWMutex
	clients map[*websocket.Conn]*client
}

// New creates a new server. sources is the list of recognisable languages
// offered to clients, usually the installed subset of the table.
func New(pipe Pipeline, hist *history.Log, langs *language.Table, sources []language.Info) *Server {
	if len(sources) == 0 {
		sources = langs.Sources()
	}
	return &Server{
		pipe:    pipe,
		history: hist,
		sources: sources,
		targets: langs.Targets(),
		clients: make(map[*websocket.Conn]*client),
	}
}

// ReportHealth adds collaborators to GET /api/health. Call before serving.
func (s *Server) ReportHealth(reporters ...HealthReporter) {
	s.health = append(s.health, reporters...)
}

// Run forwards pipeline messages to every connected client until ctx ends.
func (s *Server) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg := <-s.pipe.Events():
			s.broadcast(msg)
		}
	}
}

func (s *Server) broadcast(msg any) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, c := range s.clients {
		select {
		case c.send <- msg:
		default:
		}
	}
}

// ClientCount returns the number of connected WebSocket clients.
func (s *Server) ClientCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.clients)
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	// WebSocket endpoint
	mux.HandleFunc("/ws", s.handleWebSocket)

	// REST API
	mux.HandleFunc("GET /api/status", s.handleStatus)
	mux.HandleFunc("POST /api/capture/toggle", s.handleToggle)
	mux.HandleFunc("POST /api/capture/start", s.handleStart)
	mux.HandleFunc("POST /api/capture/stop", s.handleStop)
	mux.HandleFunc("PUT /api/region", s.handleRegion)
	mux.HandleFunc("GET /api/options", s.handleGetOptions)
	mux.HandleFunc("PUT /api/options", s.handlePutOptions)
	mux.HandleFunc("GET /api/history", s.handleHistory)
	mux.HandleFunc("DELETE /api/history", s.handleClearHistory)
	mux.HandleFunc("GET /api/stats", s.handleStats)
	mux.HandleFunc("GET /api/languages", s.handleLanguages)
	mux.HandleFunc("GET /api/preview", s.handlePreview)
	mux.HandleFunc("GET /api/health", s.handleHealth)

	// Apply middleware: trace -> CORS
	return corsMiddleware(trace.Middleware(mux))
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "*")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		trace.Logger(r.Context()).Error("websocket accept error", "error", err)
		return
	}
	defer func() { _ = conn.Close(websocket.StatusNormalClosure, "") }()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()
	log := trace.Logger(ctx)

	c := &client{send: make(chan any, ClientSendBuffer)}
	c.send <- pipeline.Message{Kind: pipeline.KindStatus, Time: time.Now(), Status: ptr(s.pipe.Status())}

	s.mu.Lock()
	s.clients[conn] = c
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		delete(s.clients, conn)
		s.mu.Unlock()
	}()

	go s.writeLoop(ctx, cancel, conn, c)
	log.Info("websocket connected", "remote", r.RemoteAddr)

	for {
		var cmd Command
		if err := wsjson.Read(ctx, conn, &cmd); err != nil {
			log.Debug("websocket read error", "error", err)
			return
		}

		if !c.limit.allow() {
			log.Warn("rate limit exceeded", "remote", r.RemoteAddr)
			s.enqueue(c, ErrorMessage{Type: "error", Message: "rate limit exceeded"})
			continue
		}
		s.handleCommand(ctx, c, cmd)
	}
}

func (s *Server) writeLoop(ctx context.Context, cancel context.CancelFunc, conn *websocket.Conn, c *client) {
	defer cancel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg := <-c.send:
			wctx, wcancel := context.WithTimeout(ctx, WriteTimeout)
			err := wsjson.Write(wctx, conn, msg)
			wcancel()
			if err != nil {
				trace.Logger(ctx).Debug("websocket write error", "error", err)
				return
			}
		}
	}
}

func (s *Server) handleCommand(ctx context.Context, c *client, cmd Command) {
	ctx, span := trace.StartSpan(ctx, "ws_command")
	defer span.End()
	span.SetAttr("type", cmd.Type)

	var err error
	switch cmd.Type {
	case "toggle":
		_, err = s.pipe.Toggle(ctx)
	case "start":
		err = s.pipe.Start(ctx)
	case "stop":
		s.pipe.Stop()
	case "status":
		s.enqueue(c, pipeline.Message{Kind: pipeline.KindStatus, Time: time.Now(), Status: ptr(s.pipe.Status())})
	default:
		s.enqueue(c, ErrorMessage{Type: "error", Message: "unknown command: " + cmd.Type})
		return
	}
	if err != nil {
		span.SetAttr("error", err.Error())
		s.enqueue(c, errorMessage(err))
	}
}

func (s *Server) enqueue(c *client, msg any) {
	select {
	case c.send <- msg:
	default:
	}
}

func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.pipe.Status())
}

func (s *Server) handleToggle(w http.ResponseWriter, r *http.Request) {
	state, err := s.pipe.Toggle(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]pipeline.State{"state": state})
}

func (s *Server) handleStart(w http.ResponseWriter, r *http.Request) {
	if err := s.pipe.Start(r.Context()); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]pipeline.State{"state": pipeline.Running})
}

func (s *Server) handleStop(w http.ResponseWriter, _ *http.Request) {
	s.pipe.Stop()
	writeJSON(w, http.StatusOK, map[string]pipeline.State{"state": pipeline.Idle})
}

func (s *Server) handleRegion(w http.ResponseWriter, r *http.Request) {
	var region screen.Region
	if err := decodeJSON(w, r, &region); err != nil {
		writeError(w, err)
		return
	}
	if err := s.pipe.SetRegion(region); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, region)
}

func (s *Server) handleGetOptions(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.pipe.Options())
}

// handlePutOptions applies a partial update: omitted fields keep their
// current values.
func (s *Server) handlePutOptions(w http.ResponseWriter, r *http.Request) {
	opts := s.pipe.Options()
	if err := decodeJSON(w, r, &opts); err != nil {
		writeError(w, err)
		return
	}
	if err := s.pipe.SetOptions(opts); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s.pipe.Options())
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	entries := s.history.Search(q.Get("q"))
	if lang := q.Get("lang"); lang != "" {
		kept := entries[:0]
		for _, e := range entries {
			if e.SourceLanguage == lang {
				kept = append(kept, e)
			}
		}
		entries = kept
	}
	if entries == nil {
		entries = []history.Event{}
	}
	writeJSON(w, http.StatusOK, entries)
}

func (s *Server) handleClearHistory(w http.ResponseWriter, r *http.Request) {
	s.history.Clear()
	trace.Logger(r.Context()).Info("history cleared")
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleStats(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.history.Stats(time.Now()))
}

func (s *Server) handleLanguages(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, LanguagesResponse{Sources: s.sources, Targets: s.targets})
}

func (s *Server) handlePreview(w http.ResponseWriter, _ *http.Request) {
	p, ok := s.pipe.Preview()
	if !ok {
		writeJSON(w, http.StatusNotFound, ErrorMessage{Type: "error", Message: "no frame captured yet"})
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-store")
	_, _ = w.Write(p.PNG)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	resp := HealthResponse{Breakers: make([]resilience.Snapshot, 0, len(s.health))}
	for _, h := range s.health {
		snap := h.Health()
		resp.Degraded = resp.Degraded || snap.State != resilience.Closed
		resp.Breakers = append(resp.Breakers, snap)
	}
	writeJSON(w, http.StatusOK, resp)
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, MaxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return apperrors.Wrap(err, apperrors.InvalidArgument, "invalid request body")
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, err error) {
	writeJSON(w, httpStatus(err), errorMessage(err))
}

func errorMessage(err error) ErrorMessage {
	msg := ErrorMessage{Type: "error", Message: err.Error()}
	if code := errorCode(err); code != "" {
		msg.Code = string(code)
	}
	return msg
}

func errorCode(err error) apperrors.Code {
	for _, c := range []apperrors.Code{
		apperrors.RegionInvalid, apperrors.ConfigInvalid, apperrors.InvalidArgument,
		apperrors.Unavailable, apperrors.CaptureFailed,
	} {
		if apperrors.IsCode(err, c) {
			return c
		}
	}
	return ""
}

func httpStatus(err error) int {
	switch errorCode(err) {
	case apperrors.RegionInvalid, apperrors.ConfigInvalid, apperrors.InvalidArgument:
		return http.StatusBadRequest
	case apperrors.Unavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func ptr[T any](v T) *T { return &v }
