package gnos

import (
	"errors"
	"net/url"
	"time"
)

const defaultModelerTimeout = 10 * time.Second

// Modeler is an external process that publishes device reports over HTTP.
//
// Modeler is immutable after creation via [NewModeler]. Getters return copies
// of mutable data.
type Modeler struct {
	name     string
	url      string
	headers  map[string]string
	timeout  time.Duration
	interval time.Duration
}

// Name returns the modeler's name. Reports fetched from it are logged and
// ingested under this name.
func (m Modeler) Name() string {
	return m.name
}

// URL returns the URL the report is fetched from.
func (m Modeler) URL() string {
	return m.url
}

// Headers returns a copy of the HTTP headers sent with every fetch.
func (m Modeler) Headers() map[string]string {
	return copyMap(m.headers)
}

// Timeout returns the fetch timeout. Defaults to 10 seconds.
func (m Modeler) Timeout() time.Duration {
	return m.timeout
}

// Interval returns the modeler's own polling interval, or 0 when the global
// interval from [WithPollingInterval] applies.
func (m Modeler) Interval() time.Duration {
	return m.interval
}

// NewModeler creates a [Modeler] polled at rawURL.
//
// Returns an error if the name is empty or the URL has no http(s) scheme.
//
// Example:
//
//	m, err := gnos.NewModeler("snmp", "http://localhost:9001/report",
//	    gnos.WithHeaders("Authorization", "Bearer token"),
//	    gnos.WithInterval(30 * time.Second),
//	)
func NewModeler(name, rawURL string, opts ...ModelerOption) (Modeler, error) {
	if name == "" {
		return Modeler{}, errors.New("modeler name cannot be empty")
	}

	parsedURL, err := url.Parse(rawURL)
	if err != nil {
		return Modeler{}, errors.New("invalid URL: " + err.Error())
	}
	if parsedURL.Scheme != "http" && parsedURL.Scheme != "https" {
		return Modeler{}, errors.New("URL must have a scheme (http:// or https://)")
	}

	cfg := &modelerConfig{
		headers: make(map[string]string),
		timeout: defaultModelerTimeout,
	}
	for _, opt := range opts {
		if err := opt(cfg); err != nil {
			return Modeler{}, err
		}
	}

	return Modeler{
		name:     name,
		url:      rawURL,
		headers:  cfg.headers,
		timeout:  cfg.timeout,
		interval: cfg.interval,
	}, nil
}

// modelerConfig holds mutable state during modeler construction.
type modelerConfig struct {
	headers  map[string]string
	timeout  time.Duration
	interval time.Duration
}

// ModelerOption configures a [Modeler] during construction.
type ModelerOption func(*modelerConfig) error

// WithHeaders adds HTTP headers sent with every fetch, as key-value pairs.
//
// Returns an error if an odd number of arguments is provided.
func WithHeaders(keyValues ...string) ModelerOption {
	return func(cfg *modelerConfig) error {
		if len(keyValues)%2 != 0 {
			return errors.New("WithHeaders requires an even number of arguments (key-value pairs)")
		}
		for i := 0; i < len(keyValues); i += 2 {
			cfg.headers[keyValues[i]] = keyValues[i+1]
		}
		return nil
	}
}

// WithTimeout sets the fetch timeout. A modeler that does not answer in time
// is skipped until its next interval.
func WithTimeout(d time.Duration) ModelerOption {
	return func(cfg *modelerConfig) error {
		if d <= 0 {
			return errors.New("timeout must be positive")
		}
		cfg.timeout = d
		return nil
	}
}

// WithInterval polls this modeler at d instead of the global polling
// interval. The interval must be between 1 second and 1 hour.
func WithInterval(d time.Duration) ModelerOption {
	return func(cfg *modelerConfig) error {
		if d < time.Second {
			return errors.New("interval must be at least 1 second")
		}
		if d > time.Hour {
			return errors.New("interval must not exceed 1 hour")
		}
		cfg.interval = d
		return nil
	}
}

func copyMap(m map[string]string) map[string]string {
	if m == nil {
		return nil
	}
	cp := make(map[string]string, len(m))
	for k, v := range m {
		cp[k] = v
	}
	return cp
}
