package domain

import "sync"

// Signal is a one-shot cancellation signal.
type Signal struct {
	done chan struct{}
	once sync.Once
}

func newSignal() *Signal {
	return &Signal{done: make(chan struct{})}
}

// Done returns a channel that is closed when the signal fires.
func (s *Signal) Done() <-chan struct{} {
	return s.done
}

// Fired reports whether the signal has fired.
func (s *Signal) Fired() bool {
	select {
	case <-s.done:
		return true
	default:
		return false
	}
}

func (s *Signal) fire() {
	s.once.Do(func() { close(s.done) })
}

// CancellationRegistry holds one pending cancellation signal per session.
// Concurrent streams for the same session share the slot, and the slot stays
// registered until its last holder releases it.
type CancellationRegistry struct {
	mu    sync.Mutex
	slots map[string]*slot
}

type slot struct {
	signal  *Signal
	holders int
}

// NewCancellationRegistry creates an empty registry.
func NewCancellationRegistry() *CancellationRegistry {
	return &CancellationRegistry{
		mu:    sync.Mutex{},
		slots: make(map[string]*slot),
	}
}

// SignalFor returns the session's signal, creating it on first use. Every
// call takes a hold on the slot that Release gives back.
func (r *CancellationRegistry) SignalFor(sessionID string) *Signal {
	r.mu.Lock()
	defer r.mu.Unlock()

	current, ok := r.slots[sessionID]
	if !ok {
		current = &slot{signal: newSignal()}
		r.slots[sessionID] = current
	}
	current.holders++
	return current.signal
}

// Cancel fires and removes the session's signal. It reports whether a
// signal was registered; cancelling an unknown session does nothing.
func (r *CancellationRegistry) Cancel(sessionID string) bool {
	r.mu.Lock()
	current, ok := r.slots[sessionID]
	delete(r.slots, sessionID)
	r.mu.Unlock()

	if !ok {
		return false
	}

	current.signal.fire()
	return true
}

// Release gives back one hold on signal. The slot is dropped once no
// holder is left; a slot that has since been replaced is untouched.
func (r *CancellationRegistry) Release(sessionID string, signal *Signal) {
	r.mu.Lock()
	defer r.mu.Unlock()

	current, ok := r.slots[sessionID]
	if !ok || current.signal != signal {
		return
	}
	current.holders--
	if current.holders <= 0 {
		delete(r.slots, sessionID)
	}
}

// Active returns the number of registered slots.
func (r *CancellationRegistry) Active() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	return len(r.slots)
}
