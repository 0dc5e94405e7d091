package providers

import (
	"sync"
	"time"
)

// State is the state of a circuit breaker.
type State int

const (
	StateClosed State = iota
	StateOpen
	StateHalfOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// BreakerConfig configures every provider's breaker.
type BreakerConfig struct {
	// FailureThreshold is the number of consecutive failures that opens
	// the circuit.
	FailureThreshold int
	// Cooldown is how long the circuit stays open before one trial call
	// is let through.
	Cooldown time.Duration
}

// DefaultBreakerConfig returns the defaults used when config leaves them unset.
func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{
		FailureThreshold: 3,
		Cooldown:         60 * time.Second,
	}
}

// Breaker tracks consecutive failures of one provider. While closed every
// call is allowed. After FailureThreshold failures it opens and rejects
// calls until Cooldown has passed; then it goes half-open and allows a
// single trial. The trial's outcome closes or reopens it.
type Breaker struct {
	mu  sync.Mutex
	cfg BreakerConfig
	now func() time.Time

	state       State
	failures    int
	probing     bool
	openedAt    time.Time
	lastError   string
	lastFailure time.Time
}

// NewBreaker creates a closed breaker.
func NewBreaker(cfg BreakerConfig) *Breaker {
	if cfg.FailureThreshold < 1 {
		cfg.FailureThreshold = DefaultBreakerConfig().FailureThreshold
	}
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = DefaultBreakerConfig().Cooldown
	}
	return &Breaker{cfg: cfg, now: time.Now}
}

// Allow returns nil when a call may proceed and ErrCircuitOpen otherwise.
// A nil return must be followed by exactly one of Success, Failure or Cancel.
func (b *Breaker) Allow() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case StateOpen:
		if b.now().Sub(b.openedAt) < b.cfg.Cooldown {
			return ErrCircuitOpen
		}
		b.state = StateHalfOpen
		b.probing = true
		return nil
	case StateHalfOpen:
		if b.probing {
			return ErrCircuitOpen
		}
		b.probing = true
		return nil
	default:
		return nil
	}
}

// Success records a successful call and closes the circuit.
func (b *Breaker) Success() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.state = StateClosed
	b.failures = 0
	b.probing = false
}

// Failure records a failed call.
func (b *Breaker) Failure(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.failures++
	b.probing = false
	b.lastFailure = b.now()
	if err != nil {
		b.lastError = err.Error()
	}

	if b.state == StateHalfOpen || b.failures >= b.cfg.FailureThreshold {
		b.state = StateOpen
		b.openedAt = b.now()
	}
}

// Cancel releases an allowed call that ended without telling us anything
// about the provider (the caller went away, or the request was invalid).
func (b *Breaker) Cancel() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.probing = false
}

// Reset force-closes the circuit and clears the failure history.
func (b *Breaker) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.state = StateClosed
	b.failures = 0
	b.probing = false
	b.lastError = ""
	b.lastFailure = time.Time{}
}

// BreakerSnapshot is a point-in-time copy of a breaker's state.
type BreakerSnapshot struct {
	State       State
	Failures    int
	LastError   string
	LastFailure time.Time
	RetryAt     time.Time // zero unless open
}

// Snapshot returns the current state. An open breaker whose cooldown has
// passed is reported as half-open.
func (b *Breaker) Snapshot() BreakerSnapshot {
	b.mu.Lock()
	defer b.mu.Unlock()

	s := BreakerSnapshot{
		State:       b.state,
		Failures:    b.failures,
		LastError:   b.lastError,
		LastFailure: b.lastFailure,
	}
	if b.state == StateOpen {
		retryAt := b.openedAt.Add(b.cfg.Cooldown)
		if !b.now().Before(retryAt) {
			s.State = StateHalfOpen
		} else {
			s.RetryAt = retryAt
		}
	}
	return s
}
