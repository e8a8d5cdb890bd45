package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"html"
	"io"
	"io/fs"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/jpalmerr/gnos/internal/actor"
	"github.com/jpalmerr/gnos/internal/query"
	"github.com/jpalmerr/gnos/internal/samples"
	"github.com/jpalmerr/gnos/internal/stream"
)

const (
	// sseWriteTimeout bounds a single SSE write so a stalled viewer cannot
	// pin its handler goroutine. Must be <= the shutdown timeout.
	sseWriteTimeout = 5 * time.Second

	// exchangeTimeout bounds one-shot exchanges with the models.
	exchangeTimeout = 5 * time.Second

	// maxReportSize caps modeler reports pushed to /api/modeler.
	maxReportSize = 4 << 20

	// maxQueries is the number of expr parameters a query stream accepts.
	maxQueries = 9

	defaultStore = "primary"
	defaultTitle = "gnos"

	titlePlaceholder = "{{.Title}}"
)

// FactModel is the fact model as seen by the HTTP handlers.
type FactModel interface {
	stream.QueryModel
	Get(ctx context.Context, store, text string) (query.ResultSet, error)
}

// SampleModel is the sample model as seen by the HTTP handlers.
type SampleModel interface {
	stream.SampleModel
	GetSamples(ctx context.Context, owner, name string) (samples.Snapshot, error)
}

// Ingester applies modeler reports.
type Ingester interface {
	Ingest(source string, body []byte) error
}

// Options configures a [Server].
type Options struct {
	Port int

	// Title replaces {{.Title}} in the dashboard page.
	Title string

	// Assets holds assets/index.html.
	Assets fs.FS

	// RefreshInterval is how often every open stream re-sends its last
	// payload. Zero disables refreshes.
	RefreshInterval time.Duration

	Logger *slog.Logger
}

// Server serves the dashboard, the one-shot JSON API, the SSE streams and the
// modeler endpoint.
type Server struct {
	facts      FactModel
	samples    SampleModel
	ingester   Ingester
	opts       Options
	httpServer *http.Server
	logger     *slog.Logger
}

// NewServer creates a [Server]. It does not listen until [Server.Start].
func NewServer(facts FactModel, samples SampleModel, ingester Ingester, opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		facts:    facts,
		samples:  samples,
		ingester: ingester,
		opts:     opts,
		logger:   logger,
	}
}

// Handler returns the request router.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/query", s.handleQuery)
	mux.HandleFunc("GET /api/samples", s.handleSamples)
	mux.HandleFunc("GET /api/sse/query", s.handleQueryStream)
	mux.HandleFunc("GET /api/sse/samples", s.handleSampleStream)
	mux.HandleFunc("PUT /api/modeler", s.handleModeler)
	mux.HandleFunc("GET /{$}", s.handleDashboard)
	return mux
}

// Start listens on the configured port and serves in the background until
// ctx is cancelled, then shuts down with a 5-second grace period.
//
// Returns an error if the port cannot be bound.
func (s *Server) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", fmt.Sprintf(":%d", s.opts.Port))
	if err != nil {
		return fmt.Errorf("failed to bind to port %d: %w", s.opts.Port, err)
	}

	s.httpServer = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		// request contexts derive from ctx, so cancelling it also ends
		// long-running streams
		BaseContext: func(_ net.Listener) context.Context {
			return ctx
		},
	}

	go func() {
		if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("http server error", "error", err)
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			s.logger.Error("http server shutdown error", "error", err)
		}
	}()

	return nil
}

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	if s.opts.Assets == nil {
		http.Error(w, "Dashboard not found", http.StatusInternalServerError)
		return
	}
	content, err := fs.ReadFile(s.opts.Assets, "assets/index.html")
	if err != nil {
		http.Error(w, "Dashboard not found", http.StatusInternalServerError)
		return
	}

	title := s.opts.Title
	if title == "" {
		title = defaultTitle
	}
	rendered := strings.ReplaceAll(string(content), titlePlaceholder, html.EscapeString(title))

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if _, err := io.WriteString(w, rendered); err != nil {
		s.logger.Error("failed to write dashboard response", "error", err)
	}
}

// handleQuery evaluates one query: GET /api/query?name=<store>&expr=<query>.
func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	expr := r.URL.Query().Get("expr")
	if expr == "" {
		http.Error(w, "missing expr parameter", http.StatusBadRequest)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), exchangeTimeout)
	defer cancel()

	rs, err := s.facts.Get(ctx, storeParam(r), expr)
	if err != nil {
		s.exchangeError(w, err)
		return
	}
	s.writeJSON(w, rs)
}

type samplesResponse struct {
	Values []float64 `json:"values"`
	Adds   uint64    `json:"adds"`
}

// handleSamples returns one sample set: GET /api/samples?owner=&name=.
func (s *Server) handleSamples(w http.ResponseWriter, r *http.Request) {
	owner, name := r.URL.Query().Get("owner"), r.URL.Query().Get("name")
	if owner == "" || name == "" {
		http.Error(w, "owner and name parameters are required", http.StatusBadRequest)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), exchangeTimeout)
	defer cancel()

	snap, err := s.samples.GetSamples(ctx, owner, name)
	if err != nil {
		s.exchangeError(w, err)
		return
	}
	s.writeJSON(w, samplesResponse{Values: snap.Values, Adds: snap.Adds})
}

// handleModeler ingests a pushed report. Modelers always get 200 once the
// body has been read: ingestion problems are only logged.
func (s *Server) handleModeler(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxReportSize))
	if err != nil {
		http.Error(w, "failed to read report", http.StatusBadRequest)
		return
	}

	source := r.Header.Get("X-Modeler")
	if source == "" {
		source = r.RemoteAddr
	}
	_ = s.ingester.Ingest(source, body)

	w.WriteHeader(http.StatusOK)
}

// handleQueryStream streams query solutions:
// GET /api/sse/query?name=<store>&expr=<q1>&expr2=<q2>...&expr9=<q9>.
func (s *Server) handleQueryStream(w http.ResponseWriter, r *http.Request) {
	queries := queryParams(r)
	if len(queries) == 0 {
		http.Error(w, "missing expr parameter", http.StatusBadRequest)
		return
	}

	b := stream.NewQueryBridge(s.facts, storeParam(r), queries, s.logger)
	s.serveStream(w, r, b.Key(), b.Run)
}

// handleSampleStream streams the sample details of one owner:
// GET /api/sse/samples?owner=<owner>.
func (s *Server) handleSampleStream(w http.ResponseWriter, r *http.Request) {
	owner := r.URL.Query().Get("owner")
	if owner == "" {
		http.Error(w, "missing owner parameter", http.StatusBadRequest)
		return
	}

	b := stream.NewSampleBridge(s.samples, owner, s.logger)
	s.serveStream(w, r, b.Key(), b.Run)
}

type runFunc func(ctx context.Context, control <-chan stream.Control, out stream.Emitter) error

// serveStream runs a bridge on the request goroutine until the viewer goes
// away, a write fails or the server shuts down.
func (s *Server) serveStream(w http.ResponseWriter, r *http.Request, key string, run runFunc) {
	if _, ok := w.(http.Flusher); !ok {
		http.Error(w, "SSE not supported", http.StatusInternalServerError)
		return
	}

	rc := http.NewResponseController(w)
	deadlinesSupported := true
	headersSent := false

	writeAndFlush := func(frame []byte) error {
		if !headersSent {
			w.Header().Set("Content-Type", "text/event-stream")
			w.Header().Set("Cache-Control", "no-cache")
			w.Header().Set("Connection", "keep-alive")
			w.Header().Set("Access-Control-Allow-Origin", "*")
			headersSent = true
		}
		if deadlinesSupported {
			if err := rc.SetWriteDeadline(time.Now().Add(sseWriteTimeout)); err != nil {
				s.logger.Debug("sse write deadlines not supported", "error", err)
				deadlinesSupported = false
			}
		}
		if _, err := w.Write(frame); err != nil {
			return err
		}
		return rc.Flush()
	}

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	control := make(chan stream.Control)
	if s.opts.RefreshInterval > 0 {
		go s.refresh(ctx, control)
	}

	err := run(ctx, control, stream.EmitterFunc(writeAndFlush))
	switch {
	case errors.Is(err, stream.ErrNotRegistered) && !headersSent:
		http.Error(w, "model unavailable", http.StatusServiceUnavailable)
	case err != nil:
		s.logger.Debug("stream ended", "key", key, "error", err)
	}
}

// refresh sends RefreshNow every interval until ctx ends.
func (s *Server) refresh(ctx context.Context, control chan<- stream.Control) {
	ticker := time.NewTicker(s.opts.RefreshInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			select {
			case control <- stream.RefreshNow:
			case <-ctx.Done():
				return
			}
		}
	}
}

func (s *Server) exchangeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, actor.ErrStopped):
		http.Error(w, "model unavailable", http.StatusServiceUnavailable)
	case errors.Is(err, context.DeadlineExceeded):
		http.Error(w, "model did not answer in time", http.StatusGatewayTimeout)
	default:
		// the viewer has gone away; nobody is listening
		s.logger.Debug("exchange abandoned", "error", err)
	}
}

func (s *Server) writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-cache")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("failed to encode response", "error", err)
	}
}

func storeParam(r *http.Request) string {
	if name := r.URL.Query().Get("name"); name != "" {
		return name
	}
	return defaultStore
}

// queryParams collects expr followed by whichever of expr2 ... expr9 are
// present. Without expr there are no queries.
func queryParams(r *http.Request) []string {
	values := r.URL.Query()
	first := values.Get("expr")
	if first == "" {
		return nil
	}
	out := []string{first}
	for i := 2; i <= maxQueries; i++ {
		if q := values.Get("expr" + strconv.Itoa(i)); q != "" {
			out = append(out, q)
		}
	}
	return out
}
