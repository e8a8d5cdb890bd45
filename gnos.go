package gnos

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/jpalmerr/gnos/dashboard"
	"github.com/jpalmerr/gnos/internal/ingest"
	"github.com/jpalmerr/gnos/internal/model"
	"github.com/jpalmerr/gnos/internal/query"
	"github.com/jpalmerr/gnos/internal/samples"
	"github.com/jpalmerr/gnos/internal/server"
)

const (
	defaultPollingInterval = 15 * time.Second
	defaultRefreshInterval = 30 * time.Second
	defaultSampleCapacity  = 60
	defaultPort            = 8080
	defaultMaxConcurrency  = 10
)

// Gnos owns the fact and sample models, feeds them from modelers and serves
// the dashboard and its streams.
//
// The typical lifecycle is:
//
//	g, err := gnos.New(gnos.WithModeler(m), gnos.WithSeedFile("network.yaml"))
//	if err != nil {
//	    slog.Error("failed to create gnos", "error", err)
//	    os.Exit(1)
//	}
//
//	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
//	defer cancel()
//
//	g.Start(ctx) // blocks until context cancelled
type Gnos struct {
	title           string
	modelers        []Modeler
	pollingInterval time.Duration
	refreshInterval time.Duration
	sampleCapacity  int
	port            int
	maxConcurrency  int
	seed            *ingest.Seed
	logger          *slog.Logger
	pollCallbacks   []func(PollResult)
}

// New creates a [Gnos] instance with the given options.
//
// Defaults:
//   - Polling interval: 15 seconds
//   - Refresh interval: 30 seconds
//   - Sample capacity: 60
//   - Port: 8080
//   - Max concurrency: 10
//
// Returns an error if an option is invalid, modeler names repeat or the seed
// file cannot be loaded.
func New(opts ...Option) (*Gnos, error) {
	cfg := &gnosConfig{
		modelers:        []Modeler{},
		pollingInterval: defaultPollingInterval,
		refreshInterval: defaultRefreshInterval,
		sampleCapacity:  defaultSampleCapacity,
		port:            defaultPort,
		maxConcurrency:  defaultMaxConcurrency,
	}

	for _, opt := range opts {
		if err := opt(cfg); err != nil {
			return nil, err
		}
	}

	// names identify modelers in the scheduler and in ingested reports
	seen := make(map[string]bool, len(cfg.modelers))
	for _, m := range cfg.modelers {
		if seen[m.name] {
			return nil, fmt.Errorf("duplicate modeler name: %q", m.name)
		}
		seen[m.name] = true
	}

	if cfg.port < 1 || cfg.port > 65535 {
		return nil, fmt.Errorf("port must be between 1 and 65535, got %d", cfg.port)
	}

	var seed *ingest.Seed
	if cfg.seedFile != "" {
		var err error
		if seed, err = ingest.LoadSeed(cfg.seedFile); err != nil {
			return nil, fmt.Errorf("seed: %w", err)
		}
	}

	logger := cfg.logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Gnos{
		title:           cfg.title,
		modelers:        cfg.modelers,
		pollingInterval: cfg.pollingInterval,
		refreshInterval: cfg.refreshInterval,
		sampleCapacity:  cfg.sampleCapacity,
		port:            cfg.port,
		maxConcurrency:  cfg.maxConcurrency,
		seed:            seed,
		logger:          logger,
		pollCallbacks:   cfg.pollCallbacks,
	}, nil
}

// Start runs the models, the modeler scheduler and the HTTP server until ctx
// is cancelled.
//
// Returns nil on graceful shutdown. Returns an error if the HTTP server fails
// to start or if one of the models stops on its own, which only happens when
// an update panics.
func (g *Gnos) Start(ctx context.Context) error {
	g.logger.Info("gnos starting", "modeler_count", len(g.modelers))
	g.logger.Info("dashboard available", "url", fmt.Sprintf("http://localhost:%d", g.port))

	if ctx.Err() != nil {
		return nil
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	facts := model.NewManager(query.NewCache(), g.logger.With("model", "facts"))
	sampleModel := samples.NewManager(g.logger.With("model", "samples"))
	facts.Start()
	sampleModel.Start()

	if g.seed != nil {
		facts.Update(g.seed.Store, g.seed.Update(), "")
		g.logger.Info("seed loaded", "store", g.seed.Store, "fact_count", len(g.seed.Facts))
	}

	ingester := ingest.NewIngester(facts, sampleModel, g.sampleCapacity, g.logger)

	scheduler := ingest.NewScheduler(g.toIngestModelers(), g.pollingInterval, g.maxConcurrency, g.logger)
	scheduler.Start(ctx)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for poll := range scheduler.Results() {
			g.handlePoll(ingester, poll)
		}
	}()

	// the scheduler drains first so no report reaches a stopped model
	cleanup := func() {
		scheduler.Stop()
		wg.Wait()
		facts.Exit()
		sampleModel.Exit()
	}

	httpServer := server.NewServer(facts, sampleModel, ingester, server.Options{
		Port:            g.port,
		Title:           g.title,
		Assets:          dashboard.Assets,
		RefreshInterval: g.refreshInterval,
		Logger:          g.logger,
	})
	if err := httpServer.Start(ctx); err != nil {
		cleanup()
		return fmt.Errorf("failed to start HTTP server: %w", err)
	}

	var err error
	select {
	case <-ctx.Done():
	case <-facts.Done():
		err = modelStopped("fact", facts.Err())
	case <-sampleModel.Done():
		err = modelStopped("sample", sampleModel.Err())
	}

	cancel()
	cleanup()
	g.logger.Info("gnos stopped")
	return err
}

func modelStopped(name string, err error) error {
	if err == nil {
		err = errors.New("exited")
	}
	return fmt.Errorf("%s model stopped: %w", name, err)
}

// handlePoll ingests one fetched report, then runs the poll callbacks.
func (g *Gnos) handlePoll(ingester *ingest.Ingester, poll ingest.Poll) {
	err := poll.Err
	if err == nil {
		err = ingester.Ingest(poll.Modeler, poll.Body)
	}

	logAttrs := []any{
		"modeler", poll.Modeler,
		"url", poll.URL,
		"latency_ms", poll.Latency.Milliseconds(),
	}
	if poll.Err != nil {
		g.logger.Warn("modeler poll failed", append(logAttrs, "error", poll.Err.Error())...)
	} else {
		g.logger.Debug("modeler polled", logAttrs...)
	}

	if len(g.pollCallbacks) == 0 {
		return
	}
	result := PollResult{
		Modeler:   poll.Modeler,
		URL:       poll.URL,
		Latency:   poll.Latency,
		CheckedAt: poll.CheckedAt,
		Err:       err,
		RawReport: copyBytes(poll.Body),
	}
	for _, cb := range g.pollCallbacks {
		invokeCallbackSafe(cb, result, g.logger)
	}
}

// toIngestModelers converts the public modelers for the scheduler.
func (g *Gnos) toIngestModelers() []ingest.Modeler {
	result := make([]ingest.Modeler, len(g.modelers))
	for i, m := range g.modelers {
		result[i] = ingest.Modeler{
			Name:     m.name,
			URL:      m.url,
			Headers:  copyMap(m.headers),
			Timeout:  m.timeout,
			Interval: m.interval,
		}
	}
	return result
}

// Modelers returns a copy of the configured modelers.
func (g *Gnos) Modelers() []Modeler {
	cp := make([]Modeler, len(g.modelers))
	copy(cp, g.modelers)
	return cp
}

// Port returns the configured HTTP port.
func (g *Gnos) Port() int {
	return g.port
}

// PollingInterval returns the global modeler polling interval.
func (g *Gnos) PollingInterval() time.Duration {
	return g.pollingInterval
}

func copyBytes(b []byte) []byte {
	if b == nil {
		return nil
	}
	return append([]byte(nil), b...)
}

// invokeCallbackSafe calls a poll callback, logging any panic.
func invokeCallbackSafe(cb func(PollResult), result PollResult, logger *slog.Logger) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("poll callback panicked",
				"panic", r,
				"modeler", result.Modeler,
			)
		}
	}()
	cb(result)
}
