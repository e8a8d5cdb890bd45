package ingest

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Modeler is an external process publishing reports over HTTP.
type Modeler struct {
	Name    string
	URL     string
	Headers map[string]string
	Timeout time.Duration

	// Interval overrides the scheduler interval when non-zero.
	Interval time.Duration
}

// Poll is the outcome of fetching one modeler.
type Poll struct {
	Modeler   string
	URL       string
	Body      []byte
	Latency   time.Duration
	CheckedAt time.Time
	Err       error
}

// Scheduler polls modelers periodically with a bounded worker pool.
//
// All modelers are polled at start, then the scheduler ticks at the GCD of
// their intervals and polls the ones that are due. Results are delivered on
// [Scheduler.Results] until [Scheduler.Stop].
type Scheduler struct {
	modelers       []Modeler
	interval       time.Duration
	maxConcurrency int
	client         *Client
	results        chan Poll
	logger         *slog.Logger
	cancel         context.CancelFunc
	wg             sync.WaitGroup

	mu        sync.Mutex
	started   bool
	stopped   bool
	closeOnce sync.Once

	lastPolledAt map[string]time.Time
	baseInterval time.Duration
}

// NewScheduler creates a scheduler. It does nothing until [Scheduler.Start].
func NewScheduler(modelers []Modeler, interval time.Duration, maxConcurrency int, logger *slog.Logger) *Scheduler {
	if maxConcurrency < 1 {
		maxConcurrency = 1
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		modelers:       modelers,
		interval:       interval,
		maxConcurrency: maxConcurrency,
		client:         NewClient(),
		results:        make(chan Poll, len(modelers)),
		logger:         logger,
	}
}

// Results is closed once the scheduler has stopped.
func (s *Scheduler) Results() <-chan Poll {
	return s.results
}

func (s *Scheduler) intervalOf(m Modeler) time.Duration {
	if m.Interval > 0 {
		return m.Interval
	}
	return s.interval
}

// tickInterval is the GCD of all modeler intervals, at least one second.
func (s *Scheduler) tickInterval() time.Duration {
	if len(s.modelers) == 0 {
		return max(s.interval, time.Second)
	}

	result := s.intervalOf(s.modelers[0])
	for _, m := range s.modelers[1:] {
		result = gcdDuration(result, s.intervalOf(m))
	}
	return max(result, time.Second)
}

func gcdDuration(a, b time.Duration) time.Duration {
	for b != 0 {
		a, b = b, a%b
	}
	return a
}

// Start begins polling in the background. It is a no-op after the first
// call or after [Scheduler.Stop].
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	if s.started || s.stopped {
		s.mu.Unlock()
		return
	}
	s.started = true
	s.lastPolledAt = make(map[string]time.Time, len(s.modelers))
	s.baseInterval = s.tickInterval()

	pollCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.wg.Add(1)
	s.mu.Unlock()

	go func() {
		defer s.wg.Done()
		defer s.closeOnce.Do(func() { close(s.results) })

		s.pollDue(pollCtx, true)

		ticker := time.NewTicker(s.baseInterval)
		defer ticker.Stop()

		for {
			select {
			case <-pollCtx.Done():
				return
			case <-ticker.C:
				s.pollDue(pollCtx, false)
			}
		}
	}()
}

// Stop cancels polling, waits for in-flight fetches and closes
// [Scheduler.Results]. Safe to call more than once, and before Start.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.stopped {
		s.stopped = true
		if s.cancel != nil {
			s.cancel()
		}
	}
	s.mu.Unlock()

	s.wg.Wait()
	s.client.Close()
	s.closeOnce.Do(func() { close(s.results) })
}

// pollDue polls the modelers whose interval has elapsed, or all of them when
// immediate is set. A modeler counts as polled when its fetch starts.
func (s *Scheduler) pollDue(ctx context.Context, immediate bool) {
	now := time.Now()
	due := make([]Modeler, 0, len(s.modelers))

	s.mu.Lock()
	for _, m := range s.modelers {
		last, seen := s.lastPolledAt[m.Name]
		if immediate || !seen || now.Sub(last) >= s.intervalOf(m) {
			due = append(due, m)
			s.lastPolledAt[m.Name] = now
		}
	}
	s.mu.Unlock()

	if len(due) > 0 {
		s.pollAll(ctx, due)
	}
}

func (s *Scheduler) pollAll(ctx context.Context, modelers []Modeler) {
	jobs := make(chan Modeler, len(modelers))
	for _, m := range modelers {
		jobs <- m
	}
	close(jobs)

	var wg sync.WaitGroup
	for i := 0; i < min(s.maxConcurrency, len(modelers)); i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for m := range jobs {
				resp := s.client.Fetch(ctx, m.URL, m.Headers, m.Timeout)
				poll := Poll{
					Modeler:   m.Name,
					URL:       m.URL,
					Body:      resp.Body,
					Latency:   resp.Latency,
					CheckedAt: time.Now(),
					Err:       resp.Err,
				}
				select {
				case s.results <- poll:
				case <-ctx.Done():
					return
				}
			}
		}()
	}
	wg.Wait()
}
