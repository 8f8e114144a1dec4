package minecraft

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"
)

const (
	// DefaultTimeout bounds a whole query, from dial to close.
	DefaultTimeout = 3000 * time.Millisecond
	// DefaultTick is how often the receive loop wakes to check the deadline.
	DefaultTick = 50 * time.Millisecond

	readChunk = 4096
)

// State is the lifecycle position of a QuerySession.
type State int

const (
	StateConnecting State = iota
	StateConnected
	StateReceiving
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateReceiving:
		return "receiving"
	case StateClosed:
		return "closed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// transitions lists the states each state may move to.
var transitions = map[State][]State{
	StateConnecting: {StateConnected, StateClosed},
	StateConnected:  {StateReceiving, StateClosed},
	StateReceiving:  {StateClosed},
}

// CanTransition reports whether a session may move from one state to another.
func CanTransition(from, to State) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// Dialer opens the outbound connection for a session. *net.Dialer satisfies it.
type Dialer interface {
	DialContext(ctx context.Context, network, address string) (net.Conn, error)
}

// QuerySession is one short-lived connection to a game server. Messages are
// written in order as soon as the connection is established, then every byte
// the server sends is collected until it closes the connection or Timeout
// elapses. A session is single use and not safe for concurrent use.
type QuerySession struct {
	Endpoint Endpoint
	Messages [][]byte

	Timeout time.Duration
	Tick    time.Duration
	Dialer  Dialer

	state    State
	recv     []byte
	done     bool
	success  bool
	timedOut bool
	err      error
	elapsed  time.Duration
}

// NewQuerySession creates a session that will send messages to ep.
func NewQuerySession(ep Endpoint, messages ...[]byte) *QuerySession {
	return &QuerySession{
		Endpoint: ep,
		Messages: messages,
		Timeout:  DefaultTimeout,
		Tick:     DefaultTick,
	}
}

func (s *QuerySession) State() State           { return s.state }
func (s *QuerySession) Done() bool             { return s.done }
func (s *QuerySession) Success() bool          { return s.success }
func (s *QuerySession) TimedOut() bool         { return s.timedOut }
func (s *QuerySession) Received() []byte       { return s.recv }
func (s *QuerySession) Elapsed() time.Duration { return s.elapsed }

// Err explains why the session did not succeed. It is nil after a successful
// session.
func (s *QuerySession) Err() error {
	if s.success {
		return nil
	}
	if s.err != nil {
		return s.err
	}
	if s.timedOut {
		return ErrTransportTimeout
	}
	if s.done {
		return ErrTransportClosedEmpty
	}
	return nil
}

func (s *QuerySession) transition(to State) {
	if !CanTransition(s.state, to) {
		panic(fmt.Sprintf("minecraft: invalid session transition %s -> %s", s.state, to))
	}
	s.state = to
}

// Run drives the session to completion. It blocks for at most Timeout plus one
// tick and may only be called once.
func (s *QuerySession) Run() {
	if s.done {
		return
	}
	timeout := s.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	tick := s.Tick
	if tick <= 0 {
		tick = DefaultTick
	}
	dialer := s.Dialer
	if dialer == nil {
		dialer = &net.Dialer{}
	}

	start := time.Now()
	deadline := start.Add(timeout)
	defer func() { s.elapsed = time.Since(start) }()

	ctx, cancel := context.WithDeadline(context.Background(), deadline)
	defer cancel()

	conn, err := dialer.DialContext(ctx, "tcp", s.Endpoint.Address())
	if err != nil {
		if isTimeout(err) || ctx.Err() != nil {
			s.timedOut = true
		} else {
			s.err = fmt.Errorf("%w: %v", ErrDial, err)
		}
		s.close()
		return
	}
	defer conn.Close()

	s.transition(StateConnected)
	_ = conn.SetWriteDeadline(deadline)
	for _, msg := range s.Messages {
		if _, err := conn.Write(msg); err != nil {
			if isTimeout(err) {
				s.timedOut = true
			}
			s.close()
			return
		}
	}

	s.transition(StateReceiving)
	chunk := make([]byte, readChunk)
	for {
		now := time.Now()
		if !now.Before(deadline) {
			s.timedOut = true
			break
		}
		wait := tick
		if rem := deadline.Sub(now); rem < wait {
			wait = rem
		}
		_ = conn.SetReadDeadline(now.Add(wait))
		n, err := conn.Read(chunk)
		if n > 0 {
			s.recv = append(s.recv, chunk[:n]...)
		}
		if err != nil {
			if isTimeout(err) {
				continue
			}
			// EOF or reset: the server is done talking.
			s.success = len(s.recv) > 0
			break
		}
	}
	s.close()
}

func (s *QuerySession) close() {
	s.transition(StateClosed)
	s.done = true
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}
