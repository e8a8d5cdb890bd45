package gnos

import (
	"errors"
	"log/slog"
	"time"
)

// gnosConfig holds mutable state during Gnos construction.
type gnosConfig struct {
	title           string
	modelers        []Modeler
	pollingInterval time.Duration
	refreshInterval time.Duration
	sampleCapacity  int
	port            int
	maxConcurrency  int
	seedFile        string
	logger          *slog.Logger
	pollCallbacks   []func(PollResult)
}

// Option configures a [Gnos] instance during construction.
//
// Options return an error if validation fails.
type Option func(*gnosConfig) error

// WithModeler adds a modeler to poll. Modelers may also push reports to
// PUT /api/modeler, so none are required.
func WithModeler(m Modeler) Option {
	return func(cfg *gnosConfig) error {
		cfg.modelers = append(cfg.modelers, m)
		return nil
	}
}

// WithModelers adds several modelers at once.
func WithModelers(modelers ...Modeler) Option {
	return func(cfg *gnosConfig) error {
		cfg.modelers = append(cfg.modelers, modelers...)
		return nil
	}
}

// WithPollingInterval sets how often modelers without their own interval are
// polled. Defaults to 15 seconds.
//
// Returns an error if the duration is zero or negative.
func WithPollingInterval(d time.Duration) Option {
	return func(cfg *gnosConfig) error {
		if d <= 0 {
			return errors.New("polling interval must be positive")
		}
		cfg.pollingInterval = d
		return nil
	}
}

// WithRefreshInterval sets how often every open stream re-sends its last
// payload to the browser. Defaults to 30 seconds; 0 disables refreshes.
func WithRefreshInterval(d time.Duration) Option {
	return func(cfg *gnosConfig) error {
		if d < 0 {
			return errors.New("refresh interval cannot be negative")
		}
		cfg.refreshInterval = d
		return nil
	}
}

// WithSampleCapacity sets the capacity of new sample sets. Sets keep the
// capacity they were created with. Defaults to 60.
func WithSampleCapacity(n int) Option {
	return func(cfg *gnosConfig) error {
		if n < 0 {
			return errors.New("sample capacity cannot be negative")
		}
		cfg.sampleCapacity = n
		return nil
	}
}

// WithPort sets the HTTP port. Defaults to 8080.
//
// Returns an error if the port is outside the valid range (1-65535).
func WithPort(port int) Option {
	return func(cfg *gnosConfig) error {
		if port < 1 || port > 65535 {
			return errors.New("port must be between 1 and 65535")
		}
		cfg.port = port
		return nil
	}
}

// WithMaxConcurrency sets the maximum number of concurrent modeler fetches.
// Defaults to 10.
func WithMaxConcurrency(n int) Option {
	return func(cfg *gnosConfig) error {
		if n <= 0 {
			return errors.New("max concurrency must be positive")
		}
		cfg.maxConcurrency = n
		return nil
	}
}

// WithSeedFile loads facts from a YAML file into a store at startup. The file
// is read by [New] so a broken seed fails early.
func WithSeedFile(path string) Option {
	return func(cfg *gnosConfig) error {
		if path == "" {
			return errors.New("seed file path cannot be empty")
		}
		cfg.seedFile = path
		return nil
	}
}

// WithLogger sets the [slog.Logger] used by every component. If not
// specified, [slog.Default] is used.
//
// Returns an error if the logger is nil.
func WithLogger(logger *slog.Logger) Option {
	return func(cfg *gnosConfig) error {
		if logger == nil {
			return errors.New("logger cannot be nil")
		}
		cfg.logger = logger
		return nil
	}
}

// WithPollCallback registers a function called after every modeler poll,
// once the report has been ingested.
//
// Callbacks run synchronously, in registration order, on the goroutine that
// feeds the models; they must not block. Panics are recovered and logged.
// Nil callbacks are ignored.
//
// Example:
//
//	g, err := gnos.New(
//	    gnos.WithModeler(m),
//	    gnos.WithPollCallback(func(r gnos.PollResult) {
//	        if !r.OK() {
//	            log.Printf("modeler %s: %v", r.Modeler, r.Err)
//	        }
//	    }),
//	)
func WithPollCallback(cb func(PollResult)) Option {
	return func(cfg *gnosConfig) error {
		if cb == nil {
			return nil
		}
		cfg.pollCallbacks = append(cfg.pollCallbacks, cb)
		return nil
	}
}

// WithTitle sets the dashboard title. Defaults to "gnos".
func WithTitle(title string) Option {
	return func(cfg *gnosConfig) error {
		cfg.title = title
		return nil
	}
}
