package chat

import (
	"fmt"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Session is one live client connection. It is created by Gateway.Connect and
// destroyed by Gateway.Disconnect; outbound frames are queued on a bounded
// buffer drained by the transport.
type Session struct {
	id          string
	sender      Sender
	connectedAt time.Time
	limiter     *rate.Limiter

	mu     sync.Mutex
	closed bool
	out    chan []byte
}

func newSession(id string, sender Sender, buffer int, limiter *rate.Limiter) *Session {
	if buffer <= 0 {
		buffer = 1
	}
	return &Session{
		id:          id,
		sender:      sender,
		connectedAt: time.Now().UTC(),
		limiter:     limiter,
		out:         make(chan []byte, buffer),
	}
}

func (s *Session) ID() string { return s.id }

func (s *Session) Sender() Sender { return s.sender }

// Outbound yields queued frames. It is closed when the session is discarded.
func (s *Session) Outbound() <-chan []byte { return s.out }

// Deliver queues frame without blocking. A full buffer or a closed session
// is reported as ErrDelivery.
func (s *Session) Deliver(frame []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return fmt.Errorf("%w: session %s: %w", ErrDelivery, s.id, ErrSessionClosed)
	}
	select {
	case s.out <- frame:
		return nil
	default:
		return fmt.Errorf("%w: session %s: outbound buffer full", ErrDelivery, s.id)
	}
}

// Closed reports whether the session has been disconnected.
func (s *Session) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// close marks the session closed and ends Outbound. It reports false if the
// session was already closed.
func (s *Session) close() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	s.closed = true
	close(s.out)
	return true
}

func (s *Session) allow() bool {
	return s.limiter == nil || s.limiter.Allow()
}

// whileOpen runs fn with the session held open, so a concurrent Disconnect
// either happens entirely before fn (and fn is skipped) or entirely after.
func (s *Session) whileOpen(fn func()) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrSessionClosed
	}
	fn()
	return nil
}
