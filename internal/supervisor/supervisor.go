// Package supervisor owns the lifecycle of the remote change-stream
// subscription: it opens it, watches it and reopens it with an exponential
// backoff when it drops.
package supervisor

import (
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// Backoff parameters.
const (
	// Base is the delay before the first retry.
	Base = time.Second
	// Cap bounds the backoff delay.
	Cap = 10 * time.Second
	// MaxAttempts is the number of stream failures tolerated before the
	// supervisor gives up. The counter is cumulative over the process
	// lifetime; a successful resubscription does not reset it.
	MaxAttempts = 5
)

// A State is a lifecycle phase of the supervised subscription.
type State int

// Lifecycle phases.
const (
	Idle State = iota
	Subscribing
	Live
	Failed
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Subscribing:
		return "subscribing"
	case Live:
		return "live"
	case Failed:
		return "failed"
	}
	return "unknown"
}

// A Stream is a remote subscription the supervisor can open and tear down.
type Stream interface {
	// Subscribe opens the stream. failed is invoked at most once, from any
	// goroutine, when the open stream drops. The returned function tears
	// the subscription down.
	Subscribe(failed func(error)) (stop func(), err error)
}

// A Supervisor drives a Stream through Idle, Subscribing, Live and Failed.
// At most one subscription is live at any time; a resubscription always
// tears the previous one down first.
type Supervisor struct {
	log    logrus.FieldLogger
	stream Stream

	// Backoff knobs, defaulted from the package constants. Only mutated
	// before Start.
	Backoff     time.Duration
	BackoffCap  time.Duration
	MaxFailures int

	mu      sync.Mutex
	state   State
	attempt int
	stop    func()
	timer   *time.Timer
	closed  bool
}

// New returns an idle supervisor for the given stream.
func New(log logrus.FieldLogger, stream Stream) *Supervisor {
	return &Supervisor{
		log:         log,
		stream:      stream,
		Backoff:     Base,
		BackoffCap:  Cap,
		MaxFailures: MaxAttempts,
	}
}

// NextDelay returns the backoff delay scheduled after the given failure
// count (1-based): min(Base << (attempt-1), Cap).
func NextDelay(attempt int) time.Duration {
	return delayFor(attempt, Base, Cap)
}

func delayFor(attempt int, base, cap time.Duration) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	delay := base << uint(attempt-1)
	if delay <= 0 || delay > cap {
		return cap
	}
	return delay
}

// Start opens the subscription. It returns immediately; progress is
// observable through State.
func (s *Supervisor) Start() {
	s.mu.Lock()
	if s.closed || s.state != Idle {
		s.mu.Unlock()
		return
	}
	s.state = Subscribing
	s.mu.Unlock()

	s.subscribe()
}

// Stop tears down the subscription and any pending retry.
func (s *Supervisor) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.closed = true
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	if s.stop != nil {
		s.stop()
		s.stop = nil
	}
	s.state = Idle
}

// State returns the current lifecycle phase.
func (s *Supervisor) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Attempts returns the cumulative failure count.
func (s *Supervisor) Attempts() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.attempt
}

func (s *Supervisor) subscribe() {
	s.mu.Lock()
	if s.closed || s.state == Failed {
		s.mu.Unlock()
		return
	}
	if s.stop != nil {
		s.stop()
		s.stop = nil
	}
	s.state = Subscribing
	s.mu.Unlock()

	stop, err := s.stream.Subscribe(s.failed)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		if stop != nil {
			stop()
		}
		return
	}
	if err != nil {
		s.log.WithError(err).Warn("could not subscribe to the change stream")
		s.schedule()
		return
	}

	s.stop = stop
	s.state = Live
	s.log.WithField("attempt", s.attempt).Info("change stream live")
}

// failed is handed to the stream; it reports the live subscription dropping.
func (s *Supervisor) failed(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed || s.state != Live {
		return
	}
	if s.stop != nil {
		s.stop()
		s.stop = nil
	}
	s.log.WithError(err).Warn("change stream dropped")
	s.schedule()
}

// schedule books the next subscribe attempt. Callers hold the lock.
func (s *Supervisor) schedule() {
	s.attempt++
	if s.attempt >= s.MaxFailures {
		s.state = Failed
		s.log.WithField("attempt", s.attempt).Error("change stream supervisor gave up")
		return
	}

	s.state = Subscribing
	delay := delayFor(s.attempt, s.Backoff, s.BackoffCap)
	s.log.WithFields(logrus.Fields{"attempt": s.attempt, "delay": delay}).Info("change stream retry scheduled")
	s.timer = time.AfterFunc(delay, s.subscribe)
}
