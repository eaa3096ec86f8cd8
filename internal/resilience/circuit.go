package resilience

import (
	"context"
	"errors"
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/trace"
)

var nopBreakerLogger = zerolog.Nop()

// ErrOpenCircuit is returned when a request is refused because the guarded
// dependency is considered down.
var ErrOpenCircuit = errors.New("resilience: circuit breaker open")

// State is the breaker position. A closed breaker passes traffic, an open one
// sheds it, and a half-open one admits a single request to see whether the
// dependency recovered.
type State string

const (
	StateClosed   State = "closed"
	StateOpen     State = "open"
	StateHalfOpen State = "half_open"
)

// Breaker sheds load to a failing dependency, typically the cart event sink.
// It trips once the failure ratio reaches the threshold over at least
// minRequests outcomes, rejects everything for the cool-off window, then
// probes through half-open.
type Breaker struct {
	minRequests  int
	failureRatio float64
	coolOff      time.Duration

	mu        sync.Mutex
	state     State
	failures  int
	successes int
	openedAt  time.Time
	target    string
	logger    *zerolog.Logger
}

// NewBreaker builds a closed breaker. Out-of-range arguments are clamped to
// sane values rather than rejected.
func NewBreaker(minRequests int, failureRatio float64, coolOff time.Duration) *Breaker {
	if minRequests <= 0 {
		minRequests = 1
	}
	if failureRatio <= 0 {
		failureRatio = 0.5
	}
	if failureRatio > 1 {
		failureRatio = 1
	}
	if coolOff <= 0 {
		coolOff = 30 * time.Second
	}
	return &Breaker{
		state:        StateClosed,
		minRequests:  minRequests,
		failureRatio: failureRatio,
		coolOff:      coolOff,
	}
}

// WithTarget names the guarded dependency for metric labels and log fields.
func (b *Breaker) WithTarget(target string) *Breaker {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.target = strings.TrimSpace(target)
	BreakerState.WithLabelValues(b.label()).Set(gaugeValue(b.state))
	return b
}

// WithLogger sets the logger used for state-change events when the request
// context carries none.
func (b *Breaker) WithLogger(logger zerolog.Logger) *Breaker {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.logger = &logger
	return b
}

// Allow reports whether a request may proceed. An open breaker refuses until
// the cool-off elapses, then flips to half-open and admits the caller as the
// recovery probe.
func (b *Breaker) Allow(ctx context.Context) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state != StateOpen {
		return true
	}
	if time.Since(b.openedAt) < b.coolOff {
		return false
	}
	b.transition(ctx, StateHalfOpen)
	return true
}

// Report feeds an outcome into the state machine. A half-open breaker settles
// on the first report; outcomes arriving while open are discarded.
func (b *Breaker) Report(ctx context.Context, success bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case StateOpen:
		return
	case StateHalfOpen:
		if success {
			b.transition(ctx, StateClosed)
		} else {
			b.transition(ctx, StateOpen)
		}
		return
	}

	if success {
		b.successes++
	} else {
		b.failures++
	}
	seen := b.successes + b.failures
	if seen < b.minRequests {
		return
	}
	if float64(b.failures)/float64(seen) >= b.failureRatio {
		b.transition(ctx, StateOpen)
		return
	}
	// Age out history so an old burst of failures cannot trip the breaker
	// long after the dependency recovered.
	if seen >= b.minRequests*2 {
		b.successes /= 2
		b.failures /= 2
	}
}

// Backoff computes the exponential delay before retry number attempt, with
// optional proportional jitter in either direction (0.2 means ±20%).
func Backoff(base time.Duration, attempt int, jitter float64) time.Duration {
	if base <= 0 {
		base = 100 * time.Millisecond
	}
	if attempt < 1 {
		attempt = 1
	}
	d := base << uint(attempt-1)
	if jitter <= 0 {
		return d
	}
	spread := (rand.Float64()*2 - 1) * jitter
	return d + time.Duration(float64(d)*spread)
}

func (b *Breaker) transition(ctx context.Context, next State) {
	prev := b.state
	b.state = next
	b.failures = 0
	b.successes = 0
	switch next {
	case StateOpen:
		b.openedAt = time.Now()
	case StateClosed:
		b.openedAt = time.Time{}
	}

	label := b.label()
	BreakerState.WithLabelValues(label).Set(gaugeValue(next))
	BreakerTransitions.WithLabelValues(label, string(prev), string(next)).Inc()
	if next == StateOpen {
		BreakerOpenedTotal.WithLabelValues(label).Inc()
	}

	evt := b.log(ctx).Info().
		Str("target", label).
		Str("from", string(prev)).
		Str("to", string(next))
	if span := trace.SpanContextFromContext(ctx); span.IsValid() {
		evt = evt.Str("trace_id", span.TraceID().String())
	}
	evt.Msg("circuit breaker state change")
}

func (b *Breaker) label() string {
	if b.target == "" {
		return "default"
	}
	return b.target
}

func (b *Breaker) log(ctx context.Context) *zerolog.Logger {
	if l := zerolog.Ctx(ctx); l != nil && l.GetLevel() != zerolog.Disabled {
		return l
	}
	if b.logger != nil {
		return b.logger
	}
	return &nopBreakerLogger
}

func gaugeValue(s State) float64 {
	switch s {
	case StateClosed:
		return 0
	case StateOpen:
		return 1
	case StateHalfOpen:
		return 2
	}
	return -1
}
