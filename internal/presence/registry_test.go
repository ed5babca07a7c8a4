package presence

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chat-sync/internal/logx"
	"chat-sync/internal/models"
	"chat-sync/internal/protocol"
)

type fakeSession struct {
	mu     sync.Mutex
	frames []protocol.Frame
	closed bool
	fail   bool
}

func (s *fakeSession) Send(frame protocol.Frame) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrSessionClosed
	}
	if s.fail {
		return ErrSendQueueFull
	}
	s.frames = append(s.frames, frame)
	return nil
}

func (s *fakeSession) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
}

func (s *fakeSession) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

func (s *fakeSession) received() []protocol.Frame {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]protocol.Frame(nil), s.frames...)
}

func TestRegisterEvictsOtherClientInstance(t *testing.T) {
	logx.Discard()
	reg := NewRegistry()
	first, second := &fakeSession{}, &fakeSession{}

	reg.Register(1, first, "tab-a")
	reg.Register(1, second, "tab-b")

	assert.True(t, first.isClosed())
	assert.False(t, second.isClosed())
	assert.Equal(t, 1, reg.Count())

	got, ok := reg.Route(1)
	require.True(t, ok)
	assert.Same(t, second, got)
}

func TestRegisterSameClientReplacesWithoutClosing(t *testing.T) {
	logx.Discard()
	reg := NewRegistry()
	first, second := &fakeSession{}, &fakeSession{}

	reg.Register(1, first, "tab-a")
	reg.Register(1, second, "tab-a")

	assert.False(t, first.isClosed())
	got, _ := reg.Route(1)
	assert.Same(t, second, got)
}

func TestStaleUnregisterKeepsNewerSession(t *testing.T) {
	logx.Discard()
	reg := NewRegistry()
	first, second := &fakeSession{}, &fakeSession{}

	reg.Register(1, first, "tab-a")
	reg.Register(1, second, "tab-b")

	assert.False(t, reg.Unregister(1, first))
	assert.True(t, reg.IsReachable(1))

	assert.True(t, reg.Unregister(1, second))
	assert.False(t, reg.IsReachable(1))
	assert.False(t, reg.Unregister(1, second))
}

func TestConcurrentRegistrationLeavesOneEntry(t *testing.T) {
	logx.Discard()
	reg := NewRegistry()

	sessions := make([]*fakeSession, 20)
	var wg sync.WaitGroup
	for i := range sessions {
		sessions[i] = &fakeSession{}
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			reg.Register(5, sessions[i], string(rune('a'+i)))
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 1, reg.Count())
	live, ok := reg.Route(5)
	require.True(t, ok)

	open := 0
	for _, s := range sessions {
		if !s.isClosed() {
			open++
			assert.Same(t, s, live)
		}
	}
	assert.Equal(t, 1, open)
}

func TestBroadcastPresenceSkipsFailingSessions(t *testing.T) {
	logx.Discard()
	reg := NewRegistry()
	ok1, broken, ok2 := &fakeSession{}, &fakeSession{fail: true}, &fakeSession{}
	reg.Register(1, ok1, "a")
	reg.Register(2, broken, "b")
	reg.Register(3, ok2, "c")

	reg.BroadcastPresence(9, models.PresenceOnline)

	for _, s := range []*fakeSession{ok1, ok2} {
		frames := s.received()
		require.Len(t, frames, 1)
		assert.Equal(t, protocol.TypeUserStatus, frames[0].Type)
		assert.Equal(t, protocol.UserStatusPayload{UserID: 9, Status: models.PresenceOnline}, frames[0].Payload)
	}
	assert.Empty(t, broken.received())
	assert.Equal(t, []int{1, 2, 3}, reg.Online())
}

func TestShutdownClosesEverySession(t *testing.T) {
	logx.Discard()
	reg := NewRegistry()
	a, b := &fakeSession{}, &fakeSession{}
	reg.Register(1, a, "a")
	reg.Register(2, b, "b")

	reg.Shutdown()

	assert.True(t, a.isClosed())
	assert.True(t, b.isClosed())
}

func TestLockUserSerializesSameUser(t *testing.T) {
	reg := NewRegistry()

	unlock := reg.LockUser(7)
	acquired := make(chan struct{})
	go func() {
		release := reg.LockUser(7)
		close(acquired)
		release()
	}()

	select {
	case <-acquired:
		t.Fatal("second lock acquired while the first is held")
	case <-time.After(50 * time.Millisecond):
	}

	other := reg.LockUser(8)
	other()

	unlock()
	select {
	case <-acquired:
	case <-time.After(time.Second):
		t.Fatal("second lock never acquired")
	}

	require.Eventually(t, func() bool {
		reg.locksMu.Lock()
		defer reg.locksMu.Unlock()
		return len(reg.locks) == 0
	}, time.Second, 5*time.Millisecond)
}
