package mocks

import (
	"sync"

	"chat-sync/internal/presence"
	"chat-sync/internal/protocol"
)

// Session records frames pushed to a live session.
type Session struct {
	mu     sync.Mutex
	frames []protocol.Frame
	closed bool
	// Fail makes every Send fail as if the queue were full.
	Fail bool
}

func NewSession() *Session {
	return &Session{}
}

func (s *Session) Send(frame protocol.Frame) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return presence.ErrSessionClosed
	}
	if s.Fail {
		return presence.ErrSendQueueFull
	}
	s.frames = append(s.frames, frame)
	return nil
}

func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
}

func (s *Session) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// Frames returns a copy of everything sent so far.
func (s *Session) Frames() []protocol.Frame {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]protocol.Frame(nil), s.frames...)
}

// FramesOf returns the sent frames of one type.
func (s *Session) FramesOf(t protocol.Type) []protocol.Frame {
	var out []protocol.Frame
	for _, f := range s.Frames() {
		if f.Type == t {
			out = append(out, f)
		}
	}
	return out
}

// Reset forgets recorded frames.
func (s *Session) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.frames = nil
}
