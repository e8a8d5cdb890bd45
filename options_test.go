package gnos

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func mustModeler(t *testing.T, name string) Modeler {
	t.Helper()
	m, err := NewModeler(name, "http://localhost:9001/"+name)
	if err != nil {
		t.Fatalf("NewModeler() error = %v", err)
	}
	return m
}

func TestNew_Defaults(t *testing.T) {
	g, err := New()
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	if g.Port() != defaultPort {
		t.Errorf("Port() = %d, want %d", g.Port(), defaultPort)
	}
	if g.PollingInterval() != defaultPollingInterval {
		t.Errorf("PollingInterval() = %v, want %v", g.PollingInterval(), defaultPollingInterval)
	}
	if g.refreshInterval != defaultRefreshInterval {
		t.Errorf("refreshInterval = %v, want %v", g.refreshInterval, defaultRefreshInterval)
	}
	if g.sampleCapacity != defaultSampleCapacity {
		t.Errorf("sampleCapacity = %d, want %d", g.sampleCapacity, defaultSampleCapacity)
	}
	if g.maxConcurrency != defaultMaxConcurrency {
		t.Errorf("maxConcurrency = %d, want %d", g.maxConcurrency, defaultMaxConcurrency)
	}
	if g.logger != slog.Default() {
		t.Error("logger should default to slog.Default()")
	}
	if len(g.Modelers()) != 0 {
		t.Error("no modelers are required")
	}
}

func TestNew_DuplicateModelerNames(t *testing.T) {
	_, err := New(WithModelers(mustModeler(t, "snmp"), mustModeler(t, "lldp"), mustModeler(t, "snmp")))
	if err == nil {
		t.Fatal("expected error for duplicate modeler names")
	}
	if !strings.Contains(err.Error(), `"snmp"`) {
		t.Errorf("error should name the duplicate, got: %v", err)
	}
}

func TestWithModeler(t *testing.T) {
	g, err := New(WithModeler(mustModeler(t, "snmp")), WithModeler(mustModeler(t, "lldp")))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	var names []string
	for _, m := range g.Modelers() {
		names = append(names, m.Name())
	}
	if diff := cmp.Diff([]string{"snmp", "lldp"}, names); diff != "" {
		t.Errorf("modelers mismatch (-want +got):\n%s", diff)
	}
}

func TestModelers_Immutability(t *testing.T) {
	g, err := New(WithModeler(mustModeler(t, "snmp")))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	modelers := g.Modelers()
	modelers[0] = mustModeler(t, "other")

	if g.Modelers()[0].Name() != "snmp" {
		t.Error("Modelers() must return a copy")
	}
}

func TestToIngestModelers_HeadersCopied(t *testing.T) {
	m, err := NewModeler("snmp", "https://modeler.example.com",
		WithHeaders("Authorization", "Bearer token"),
		WithInterval(5*time.Second),
	)
	if err != nil {
		t.Fatalf("NewModeler() error = %v", err)
	}
	g, err := New(WithModeler(m))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	converted := g.toIngestModelers()
	if len(converted) != 1 {
		t.Fatalf("expected 1 modeler, got %d", len(converted))
	}
	if converted[0].Interval != 5*time.Second || converted[0].Timeout != defaultModelerTimeout {
		t.Errorf("unexpected conversion: %+v", converted[0])
	}

	converted[0].Headers["Authorization"] = "modified"
	if m.Headers()["Authorization"] != "Bearer token" {
		t.Error("mutation affected the original modeler")
	}
}

func TestOptions_Invalid(t *testing.T) {
	tests := []struct {
		name string
		opt  Option
	}{
		{"zero polling interval", WithPollingInterval(0)},
		{"negative polling interval", WithPollingInterval(-time.Second)},
		{"negative refresh interval", WithRefreshInterval(-time.Second)},
		{"negative sample capacity", WithSampleCapacity(-1)},
		{"port zero", WithPort(0)},
		{"port too high", WithPort(65536)},
		{"zero concurrency", WithMaxConcurrency(0)},
		{"nil logger", WithLogger(nil)},
		{"empty seed path", WithSeedFile("")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := New(tt.opt); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestOptions_Valid(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	g, err := New(
		WithPollingInterval(30*time.Second),
		WithRefreshInterval(0),
		WithSampleCapacity(0),
		WithPort(65535),
		WithMaxConcurrency(3),
		WithLogger(logger),
		WithTitle("Lab Network"),
	)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	if g.PollingInterval() != 30*time.Second {
		t.Errorf("PollingInterval() = %v", g.PollingInterval())
	}
	if g.refreshInterval != 0 {
		t.Errorf("refreshInterval = %v, want 0", g.refreshInterval)
	}
	if g.sampleCapacity != 0 {
		t.Errorf("sampleCapacity = %d, want 0", g.sampleCapacity)
	}
	if g.Port() != 65535 {
		t.Errorf("Port() = %d", g.Port())
	}
	if g.maxConcurrency != 3 {
		t.Errorf("maxConcurrency = %d", g.maxConcurrency)
	}
	if g.logger != logger {
		t.Error("logger not set")
	}
	if g.title != "Lab Network" {
		t.Errorf("title = %q", g.title)
	}
}

func TestWithSeedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "seed.yaml")
	seed := "subjects:\n  - subject: devices:10.0.0.1\n    facts:\n      snmp:sysName: core\n"
	if err := os.WriteFile(path, []byte(seed), 0o600); err != nil {
		t.Fatal(err)
	}

	g, err := New(WithSeedFile(path))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if g.seed == nil || len(g.seed.Facts) != 1 {
		t.Fatalf("seed not loaded: %+v", g.seed)
	}
}

func TestWithSeedFile_Missing(t *testing.T) {
	_, err := New(WithSeedFile(filepath.Join(t.TempDir(), "missing.yaml")))
	if err == nil {
		t.Fatal("a missing seed file should fail New")
	}
	if !strings.HasPrefix(err.Error(), "seed:") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestWithPollCallback_NilIgnored(t *testing.T) {
	g, err := New(WithPollCallback(nil))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if len(g.pollCallbacks) != 0 {
		t.Error("nil callback should be ignored")
	}
}
