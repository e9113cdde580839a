package poller

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jpalmerr/channelboard/internal/oie"
)

// Fetcher loads the channel list of one backend.
//
// *oie.Client implements Fetcher.
type Fetcher interface {
	AuthenticatedChannels(ctx context.Context) ([]oie.Channel, error)
	Close()
}

// BackendInfo contains what the scheduler needs to refresh one backend.
type BackendInfo struct {
	// Name is the unique display name of the backend.
	Name string

	// URL is the backend base URL, reported in results.
	URL string

	// Labels contains key-value metadata for the backend.
	Labels map[string]string

	// Interval is the custom refresh interval for this backend.
	// If 0, the scheduler's global interval is used.
	Interval time.Duration

	// Fetcher performs the refresh.
	Fetcher Fetcher
}

// Result holds the outcome of refreshing one backend.
type Result struct {
	// BackendName is the display name of the backend.
	BackendName string

	// URL is the backend base URL.
	URL string

	// Labels contains the key-value metadata of the backend.
	Labels map[string]string

	// Channels is the fetched channel list, nil when Error is set.
	Channels []oie.Channel

	// Latency is the time taken by the fetch, retries included.
	Latency time.Duration

	// FetchedAt is when the fetch completed.
	FetchedAt time.Time

	// Error contains any error that occurred during the refresh.
	Error error
}

// Scheduler manages periodic refreshes of multiple backends.
//
// The scheduler refreshes all backends immediately on start, then ticks at
// the GCD of all backend intervals and refreshes only backends that are due.
// Results are emitted on the channel returned by [Scheduler.Results].
//
// All lifecycle methods (Start, Stop, Refresh) are safe for concurrent use.
type Scheduler struct {
	backends       []BackendInfo
	interval       time.Duration // global default interval
	maxConcurrency int
	results        chan Result
	refresh        chan struct{}
	logger         *slog.Logger
	ctx            context.Context
	cancel         context.CancelFunc
	wg             sync.WaitGroup

	mu        sync.Mutex
	started   bool
	stopped   bool
	closeOnce sync.Once

	// per-backend timing for tick-and-check pattern
	lastPolledAt map[string]time.Time
	baseInterval time.Duration
}

// NewScheduler creates a new refresh [Scheduler].
//
// The scheduler must be started with [Scheduler.Start] and stopped with
// [Scheduler.Stop]. Results are available via [Scheduler.Results].
func NewScheduler(backends []BackendInfo, interval time.Duration, maxConcurrency int, logger *slog.Logger) *Scheduler {
	if maxConcurrency < 1 {
		maxConcurrency = 1
	}
	return &Scheduler{
		backends:       backends,
		interval:       interval,
		maxConcurrency: maxConcurrency,
		results:        make(chan Result, len(backends)),
		refresh:        make(chan struct{}, 1),
		logger:         logger,
	}
}

// Results returns a receive-only channel that emits [Result] values.
//
// The channel is closed when the scheduler stops. Consumers should read from
// it until it is closed.
func (s *Scheduler) Results() <-chan Result {
	return s.results
}

// calculateBaseInterval returns the GCD of all backend intervals, floored
// at one second.
func (s *Scheduler) calculateBaseInterval() time.Duration {
	if len(s.backends) == 0 {
		return s.interval
	}

	result := s.effectiveInterval(s.backends[0])
	for _, b := range s.backends[1:] {
		result = gcdDuration(result, s.effectiveInterval(b))
	}

	if result < time.Second {
		result = time.Second
	}
	return result
}

func (s *Scheduler) effectiveInterval(b BackendInfo) time.Duration {
	if b.Interval > 0 {
		return b.Interval
	}
	return s.interval
}

// gcdDuration calculates the greatest common divisor of two durations.
func gcdDuration(a, b time.Duration) time.Duration {
	for b != 0 {
		a, b = b, a%b
	}
	return a
}

// Start begins the refresh loop in a background goroutine.
//
// Start is non-blocking. The scheduler refreshes every backend immediately,
// then ticks at the GCD of all intervals until [Scheduler.Stop] is called
// or ctx is cancelled.
//
// If ctx is nil, context.Background() is used. Start is idempotent, and a
// no-op after Stop.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	if s.started || s.stopped {
		s.mu.Unlock()
		return
	}
	s.started = true
	s.lastPolledAt = make(map[string]time.Time, len(s.backends))
	s.baseInterval = s.calculateBaseInterval()

	if ctx == nil {
		ctx = context.Background()
	}
	s.ctx, s.cancel = context.WithCancel(ctx)
	pollCtx := s.ctx
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
			case <-s.refresh:
				s.pollDue(pollCtx, true)
			}
		}
	}()
}

// Refresh requests an immediate refresh of every backend.
//
// Requests made while a refresh is already queued are coalesced. Refresh
// returns false when the scheduler is not running.
func (s *Scheduler) Refresh() bool {
	s.mu.Lock()
	running := s.started && !s.stopped
	s.mu.Unlock()
	if !running {
		return false
	}

	select {
	case s.refresh <- struct{}{}:
	default:
		// already queued
	}
	return true
}

// Stop halts the scheduler and waits for all goroutines to complete.
//
// Stop is idempotent. Calling Stop before Start is a safe no-op that still
// closes the results channel.
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

	for _, b := range s.backends {
		if b.Fetcher != nil {
			b.Fetcher.Close()
		}
	}

	s.closeOnce.Do(func() { close(s.results) })
}

// pollDue refreshes the backends that are due. If immediate is true, every
// backend is due.
//
// lastPolledAt is updated when a refresh STARTS, so the effective interval
// of a slow backend is its interval plus the fetch duration.
func (s *Scheduler) pollDue(ctx context.Context, immediate bool) {
	now := time.Now()
	due := make([]BackendInfo, 0, len(s.backends))

	s.mu.Lock()
	for _, b := range s.backends {
		last, seen := s.lastPolledAt[b.Name]
		if immediate || !seen || now.Sub(last) >= s.effectiveInterval(b) {
			due = append(due, b)
			s.lastPolledAt[b.Name] = now
		}
	}
	s.mu.Unlock()

	if len(due) == 0 {
		return
	}
	s.pollBackends(ctx, due)
}

// pollBackends refreshes backends concurrently, respecting maxConcurrency.
func (s *Scheduler) pollBackends(ctx context.Context, backends []BackendInfo) {
	jobs := make(chan BackendInfo, len(backends))

	var wg sync.WaitGroup
	for i := 0; i < min(s.maxConcurrency, len(backends)); i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for b := range jobs {
				result := s.pollBackend(ctx, b)
				select {
				case s.results <- result:
				case <-ctx.Done():
					return
				}
			}
		}()
	}

	for _, b := range backends {
		jobs <- b
	}
	close(jobs)

	wg.Wait()
}

// pollBackend refreshes a single backend.
func (s *Scheduler) pollBackend(ctx context.Context, b BackendInfo) Result {
	start := time.Now()
	channels, err := s.safeFetch(ctx, b)

	return Result{
		BackendName: b.Name,
		URL:         b.URL,
		Labels:      b.Labels,
		Channels:    channels,
		Latency:     time.Since(start),
		FetchedAt:   time.Now(),
		Error:       err,
	}
}

// safeFetch calls the fetcher with panic recovery.
// A panic is logged with its stack trace under a correlation ID, and
// reported as an error carrying the same ID.
func (s *Scheduler) safeFetch(ctx context.Context, b BackendInfo) (channels []oie.Channel, err error) {
	if b.Fetcher == nil {
		return nil, fmt.Errorf("backend %q has no fetcher", b.Name)
	}

	defer func() {
		if r := recover(); r != nil {
			correlationID := uuid.NewString()
			s.logger.Error("fetcher panic",
				"correlation_id", correlationID,
				"backend", b.Name,
				"panic", fmt.Sprintf("%v", r),
				"stack", string(debug.Stack()),
			)
			channels = nil
			err = fmt.Errorf("fetcher panic (correlation_id: %s)", correlationID)
		}
	}()

	channels, err = b.Fetcher.AuthenticatedChannels(ctx)
	if err != nil {
		return nil, err
	}
	return channels, nil
}
