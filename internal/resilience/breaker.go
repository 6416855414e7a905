// Package resilience provides the failure-handling primitives the assistant
// wraps around external collaborators: a circuit breaker, a provider fallback
// group, and a bounded retry helper.
//
// All types are safe for concurrent use.
package resilience

import (
	"errors"
	"log/slog"
	"sync"
	"time"
)

// ErrCircuitOpen is returned by [Breaker.Execute] when the breaker is open
// and the cooldown has not yet elapsed.
var ErrCircuitOpen = errors.New("circuit breaker is open")

// BreakerConfig holds tuning knobs for a [Breaker].
type BreakerConfig struct {
	// Name labels the breaker in log messages.
	Name string

	// MaxFailures is the number of consecutive failures before the breaker
	// opens. Default: 5.
	MaxFailures int

	// Cooldown is how long the breaker stays open before allowing a probe
	// call. Default: 30s.
	Cooldown time.Duration
}

// Breaker is a circuit breaker with a single-probe half-open phase: after the
// cooldown, exactly one call is let through; success closes the breaker,
// failure re-opens it for another cooldown.
type Breaker struct {
	name        string
	maxFailures int
	cooldown    time.Duration

	mu       sync.Mutex
	open     bool
	probing  bool
	failures int
	openedAt time.Time
}

// NewBreaker creates a [Breaker]. Zero-value config fields get defaults.
func NewBreaker(cfg BreakerConfig) *Breaker {
	if cfg.MaxFailures <= 0 {
		cfg.MaxFailures = 5
	}
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = 30 * time.Second
	}
	return &Breaker{
		name:        cfg.Name,
		maxFailures: cfg.MaxFailures,
		cooldown:    cfg.Cooldown,
	}
}

// Execute runs fn if the breaker allows it, otherwise returns
// [ErrCircuitOpen] without calling fn.
func (b *Breaker) Execute(fn func() error) error {
	b.mu.Lock()
	if b.open {
		if time.Since(b.openedAt) < b.cooldown || b.probing {
			b.mu.Unlock()
			return ErrCircuitOpen
		}
		b.probing = true
		slog.Info("circuit breaker probing", "name", b.name)
	}
	b.mu.Unlock()

	err := fn()

	b.mu.Lock()
	defer b.mu.Unlock()
	if err != nil {
		b.failures++
		if b.probing || b.failures >= b.maxFailures {
			if !b.open {
				slog.Warn("circuit breaker opened", "name", b.name, "consecutive_failures", b.failures)
			}
			b.open = true
			b.openedAt = time.Now()
		}
		b.probing = false
		return err
	}

	if b.open {
		slog.Info("circuit breaker closed after successful probe", "name", b.name)
	}
	b.open = false
	b.probing = false
	b.failures = 0
	return nil
}

// Open reports whether the breaker currently rejects calls.
func (b *Breaker) Open() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.open && time.Since(b.openedAt) < b.cooldown
}

// Reset forces the breaker closed, clearing all failure state.
func (b *Breaker) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.open = false
	b.probing = false
	b.failures = 0
}
