package ingest

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestScheduler_StopBeforeStart(t *testing.T) {
	s := NewScheduler([]Modeler{{Name: "net", URL: "http://example.com"}}, time.Minute, 1, testLogger())
	s.Stop()

	if _, ok := <-s.Results(); ok {
		t.Error("results should be closed")
	}
}

func TestScheduler_StopTwice(t *testing.T) {
	s := NewScheduler([]Modeler{{Name: "net", URL: "http://127.0.0.1:1"}}, time.Minute, 1, testLogger())
	s.Start(context.Background())
	go func() {
		for range s.Results() {
		}
	}()

	s.Stop()
	s.Stop()
}

func TestScheduler_ConcurrentStartStop(t *testing.T) {
	modelers := []Modeler{{Name: "net", URL: "http://127.0.0.1:1", Timeout: time.Second}}

	for i := 0; i < 50; i++ {
		s := NewScheduler(modelers, time.Minute, 1, testLogger())

		var wg sync.WaitGroup
		wg.Add(2)
		go func() {
			defer wg.Done()
			s.Start(context.Background())
		}()
		go func() {
			defer wg.Done()
			s.Stop()
		}()
		wg.Wait()

		s.Stop()
		for range s.Results() {
		}
	}
}

func TestScheduler_PollsAllModelersImmediately(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		_, _ = w.Write([]byte(`{"devices":{"10.0.0.1":{"facts":{"uptime":5}}}}`))
	}))
	defer server.Close()

	modelers := []Modeler{
		{Name: "net", URL: server.URL + "/net", Timeout: time.Second},
		{Name: "snmp", URL: server.URL + "/snmp", Timeout: time.Second},
		{Name: "ping", URL: server.URL + "/ping", Timeout: time.Second},
	}
	s := NewScheduler(modelers, time.Hour, 2, testLogger())
	s.Start(context.Background())
	defer s.Stop()

	seen := make(map[string]bool)
	timeout := time.After(2 * time.Second)
	for len(seen) < len(modelers) {
		select {
		case p := <-s.Results():
			if p.Err != nil {
				t.Fatalf("poll %s failed: %v", p.Modeler, p.Err)
			}
			if len(p.Body) == 0 {
				t.Errorf("poll %s returned an empty body", p.Modeler)
			}
			seen[p.Modeler] = true
		case <-timeout:
			t.Fatalf("only saw %v", seen)
		}
	}

	if got := hits.Load(); got != 3 {
		t.Errorf("hits = %d, want 3", got)
	}
}

func TestScheduler_ReportsFetchErrors(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "down", http.StatusInternalServerError)
	}))
	defer server.Close()

	s := NewScheduler([]Modeler{{Name: "net", URL: server.URL, Timeout: time.Second}}, time.Hour, 1, testLogger())
	s.Start(context.Background())
	defer s.Stop()

	select {
	case p := <-s.Results():
		if p.Err == nil {
			t.Error("expected an error for a 500 response")
		}
		if p.Modeler != "net" || p.URL != server.URL {
			t.Errorf("poll = %+v", p)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no poll result")
	}
}

func TestScheduler_TickInterval(t *testing.T) {
	tests := []struct {
		name      string
		interval  time.Duration
		intervals []time.Duration
		want      time.Duration
	}{
		{"no modelers", 10 * time.Second, nil, 10 * time.Second},
		{"global only", 15 * time.Second, []time.Duration{0, 0}, 15 * time.Second},
		{"gcd", time.Minute, []time.Duration{10 * time.Second, 15 * time.Second}, 5 * time.Second},
		{"mixed with global", 20 * time.Second, []time.Duration{0, 30 * time.Second}, 10 * time.Second},
		{"floored", time.Minute, []time.Duration{1500 * time.Millisecond, 2 * time.Second}, time.Second},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var modelers []Modeler
			for i, d := range tt.intervals {
				modelers = append(modelers, Modeler{Name: string(rune('a' + i)), Interval: d})
			}
			s := NewScheduler(modelers, tt.interval, 1, testLogger())
			if got := s.tickInterval(); got != tt.want {
				t.Errorf("tickInterval() = %v, want %v", got, tt.want)
			}
		})
	}
}
