package storage

import (
	"context"
	"errors"
	"io"
	"sync"
	"time"

	"quick-share/internal/share"
)

// CircuitState represents the current state of a circuit breaker.
type CircuitState int

const (
	// StateClosed: requests flow normally
	StateClosed CircuitState = iota
	// StateOpen: requests fail fast
	StateOpen
	// StateHalfOpen: one probe request is let through
	StateHalfOpen
)

func (s CircuitState) String() string {
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

var (
	ErrCircuitOpen     = errors.New("circuit breaker is open")
	ErrTooManyRequests = errors.New("too many requests while circuit is half-open")
)

// CircuitBreaker stops calling the object store after repeated failures
// and lets a single probe through once the timeout has elapsed.
type CircuitBreaker struct {
	mu sync.Mutex

	maxFailures uint32
	timeout     time.Duration

	state           CircuitState
	failures        uint32
	lastFailureTime time.Time
	probing         bool

	// OnStateChange, when set, is called with the lock released.
	OnStateChange func(from, to CircuitState)

	now func() time.Time
}

func NewCircuitBreaker(maxFailures uint32, timeout time.Duration) *CircuitBreaker {
	if maxFailures == 0 {
		maxFailures = 5
	}
	return &CircuitBreaker{maxFailures: maxFailures, timeout: timeout, now: time.Now}
}

// Execute runs fn unless the circuit is open. Errors for which counts
// returns false pass through without affecting the circuit.
func (cb *CircuitBreaker) Execute(fn func() error, counts func(error) bool) error {
	if err := cb.before(); err != nil {
		return err
	}
	err := fn()
	cb.after(err != nil && counts(err))
	return err
}

func (cb *CircuitBreaker) before() error {
	cb.mu.Lock()
	var from CircuitState
	changed := false
	switch cb.state {
	case StateOpen:
		if cb.now().Sub(cb.lastFailureTime) <= cb.timeout {
			cb.mu.Unlock()
			return ErrCircuitOpen
		}
		from, changed = cb.state, true
		cb.state = StateHalfOpen
		cb.probing = true
	case StateHalfOpen:
		if cb.probing {
			cb.mu.Unlock()
			return ErrTooManyRequests
		}
		cb.probing = true
	}
	cb.mu.Unlock()
	if changed {
		cb.notify(from, StateHalfOpen)
	}
	return nil
}

func (cb *CircuitBreaker) after(failed bool) {
	cb.mu.Lock()
	from := cb.state
	if cb.state == StateHalfOpen {
		cb.probing = false
	}
	if failed {
		cb.failures++
		cb.lastFailureTime = cb.now()
		if cb.state == StateHalfOpen || cb.failures >= cb.maxFailures {
			cb.state = StateOpen
		}
	} else {
		cb.failures = 0
		cb.state = StateClosed
	}
	to := cb.state
	cb.mu.Unlock()
	if from != to {
		cb.notify(from, to)
	}
}

func (cb *CircuitBreaker) notify(from, to CircuitState) {
	if cb.OnStateChange != nil {
		cb.OnStateChange(from, to)
	}
}

// State returns the current circuit state.
func (cb *CircuitBreaker) State() CircuitState {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

// GuardedStore wraps an object store with a circuit breaker so that an
// unreachable backend fails requests fast instead of timing each one out.
type GuardedStore struct {
	store   *MinioStore
	breaker *CircuitBreaker
}

var (
	_ share.ObjectStore   = (*GuardedStore)(nil)
	_ share.PrefixRemover = (*GuardedStore)(nil)
)

func NewGuardedStore(store *MinioStore, breaker *CircuitBreaker) *GuardedStore {
	return &GuardedStore{store: store, breaker: breaker}
}

// transient errors trip the breaker; missing keys do not.
func transient(err error) bool {
	return !IsNotFound(err) && !errors.Is(err, context.Canceled)
}

func (g *GuardedStore) Put(ctx context.Context, key, contentType string, size int64, r io.Reader, tags map[string]string) error {
	return g.breaker.Execute(func() error {
		return g.store.Put(ctx, key, contentType, size, r, tags)
	}, transient)
}

func (g *GuardedStore) Get(ctx context.Context, key string) (rc io.ReadCloser, size int64, err error) {
	err = g.breaker.Execute(func() error {
		rc, size, err = g.store.Get(ctx, key)
		return err
	}, transient)
	return rc, size, err
}

func (g *GuardedStore) Stat(ctx context.Context, key string) (size int64, err error) {
	err = g.breaker.Execute(func() error {
		size, err = g.store.Stat(ctx, key)
		return err
	}, transient)
	return size, err
}

// PresignGet signs locally and never trips the breaker.
func (g *GuardedStore) PresignGet(ctx context.Context, key string, ttl time.Duration) (string, error) {
	return g.store.PresignGet(ctx, key, ttl)
}

func (g *GuardedStore) Remove(ctx context.Context, key string) error {
	return g.breaker.Execute(func() error {
		return g.store.Remove(ctx, key)
	}, transient)
}

func (g *GuardedStore) RemovePrefix(ctx context.Context, prefix string) (n int, err error) {
	err = g.breaker.Execute(func() error {
		n, err = g.store.RemovePrefix(ctx, prefix)
		return err
	}, transient)
	return n, err
}

func (g *GuardedStore) BucketExists(ctx context.Context) (bool, error) {
	return g.store.BucketExists(ctx)
}

// CircuitState reports the breaker state for health checks.
func (g *GuardedStore) CircuitState() string { return g.breaker.State().String() }
