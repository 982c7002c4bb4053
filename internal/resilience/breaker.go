// Package resilience guards calls to external services with circuit breakers.
package resilience

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/sony/gobreaker/v2"

	"github.com/lukerenner/PR-Volume-Spike-Bot/internal/observability"
)

// Breaker names for external services.
const (
	BreakerYahoo = "yahoo"
	BreakerREST  = "rest"
	BreakerFMP   = "fmp"
	BreakerEDGAR = "edgar"
	BreakerWiki  = "wikipedia"
)

// FeedBreaker returns the breaker name for a PR feed source.
func FeedBreaker(source string) string { return "feed:" + source }

// ErrUnavailable is returned when a breaker rejects a call.
var ErrUnavailable = errors.New("circuit breaker open")

// Config holds breaker settings.
type Config struct {
	MaxRequests uint32        // max requests allowed in half-open state
	Interval    time.Duration // cyclic period of the closed state to clear counts
	Timeout     time.Duration // period of the open state before half-open
	MinRequests uint32        // requests needed before the failure ratio can trip
}

// DefaultConfig trips at a 50% failure ratio over at least five requests.
var DefaultConfig = Config{
	MaxRequests: 2,
	Interval:    time.Minute,
	Timeout:     30 * time.Second,
	MinRequests: 5,
}

// Registry lazily creates one breaker per named service.
type Registry struct {
	mu       sync.RWMutex
	breakers map[string]*gobreaker.CircuitBreaker[any]
	config   Config
	logger   zerolog.Logger
	metrics  *observability.Metrics
}

// NewRegistry creates a registry. metrics may be nil.
func NewRegistry(cfg Config, logger zerolog.Logger, metrics *observability.Metrics) *Registry {
	return &Registry{
		breakers: make(map[string]*gobreaker.CircuitBreaker[any]),
		config:   cfg,
		logger:   logger,
		metrics:  metrics,
	}
}

// Breaker returns (or creates) the breaker for name.
func (r *Registry) Breaker(name string) *gobreaker.CircuitBreaker[any] {
	r.mu.RLock()
	cb, ok := r.breakers[name]
	r.mu.RUnlock()
	if ok {
		return cb
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if cb, ok = r.breakers[name]; ok {
		return cb
	}

	minReq := r.config.MinRequests
	settings := gobreaker.Settings{
		Name:        name,
		MaxRequests: r.config.MaxRequests,
		Interval:    r.config.Interval,
		Timeout:     r.config.Timeout,
		ReadyToTrip: func(c gobreaker.Counts) bool {
			if c.Requests < minReq || c.Requests == 0 {
				return false
			}
			return float64(c.TotalFailures)/float64(c.Requests) >= 0.5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			r.logger.Warn().Str("breaker", name).Str("from", from.String()).Str("to", to.String()).
				Msg("circuit breaker state change")
			r.metrics.SetCircuitBreakerState(name, stateToInt(to))
			if to == gobreaker.StateOpen {
				r.metrics.RecordCircuitBreakerTrip(name)
			}
		},
	}
	cb = gobreaker.NewCircuitBreaker[any](settings)
	r.breakers[name] = cb
	return cb
}

// permanentError marks a failure of the request itself (unknown symbol,
// bad payload) rather than of the service.
type permanentError struct{ err error }

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Permanent wraps err so that it is returned to the caller without counting
// against the breaker.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

func unwrapPermanent(err error) (error, bool) {
	var p *permanentError
	if errors.As(err, &p) {
		return p.err, true
	}
	return err, false
}

// Execute runs fn through the named breaker. Rejections wrap ErrUnavailable.
func (r *Registry) Execute(ctx context.Context, name string, fn func() (any, error)) (any, error) {
	var permErr error
	res, err := r.Breaker(name).Execute(func() (any, error) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		v, err := fn()
		if inner, ok := unwrapPermanent(err); ok {
			permErr = inner
			return nil, nil
		}
		return v, err
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return nil, fmt.Errorf("service %s unavailable: %w", name, ErrUnavailable)
	}
	if permErr != nil {
		return nil, permErr
	}
	return res, err
}

// Do is the typed form of Registry.Execute. A nil registry calls fn directly.
func Do[T any](ctx context.Context, r *Registry, name string, fn func() (T, error)) (T, error) {
	if r == nil {
		v, err := fn()
		if inner, ok := unwrapPermanent(err); ok {
			return v, inner
		}
		return v, err
	}
	res, err := r.Execute(ctx, name, func() (any, error) { return fn() })
	if err != nil {
		var zero T
		return zero, err
	}
	v, _ := res.(T)
	return v, nil
}

// Status describes one breaker.
type Status struct {
	Name             string `json:"name"`
	State            string `json:"state"`
	Requests         uint32 `json:"requests"`
	TotalSuccesses   uint32 `json:"total_successes"`
	TotalFailures    uint32 `json:"total_failures"`
	ConsecutiveFails uint32 `json:"consecutive_failures"`
}

// Status returns all breakers sorted by name.
func (r *Registry) Status() []Status {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Status, 0, len(r.breakers))
	for name, cb := range r.breakers {
		c := cb.Counts()
		out = append(out, Status{
			Name:             name,
			State:            cb.State().String(),
			Requests:         c.Requests,
			TotalSuccesses:   c.TotalSuccesses,
			TotalFailures:    c.TotalFailures,
			ConsecutiveFails: c.ConsecutiveFailures,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// 0=closed, 1=half-open, 2=open
func stateToInt(s gobreaker.State) int {
	switch s {
	case gobreaker.StateClosed:
		return 0
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return -1
	}
}
