package app

import (
	"sync"
	"time"
)

// TimerManager keeps at most one pending auto-transition timer per session.
// Schedule has cancel-then-set semantics; Cancel is idempotent. Stopping a
// timer here is best-effort — a callback that already fired is neutralised by
// the session's timer generation check, not by this type.
type TimerManager struct {
	mu     sync.Mutex
	timers map[int64]*time.Timer
}

func NewTimerManager() *TimerManager {
	return &TimerManager{timers: make(map[int64]*time.Timer)}
}

// Schedule replaces any pending timer for the session with a new one.
func (m *TimerManager) Schedule(sessionID int64, delay time.Duration, fn func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if t, ok := m.timers[sessionID]; ok {
		t.Stop()
	}
	var t *time.Timer
	t = time.AfterFunc(delay, func() {
		m.mu.Lock()
		if m.timers[sessionID] == t {
			delete(m.timers, sessionID)
		}
		m.mu.Unlock()
		fn()
	})
	m.timers[sessionID] = t
}

// Cancel clears the session's pending timer if one exists.
func (m *TimerManager) Cancel(sessionID int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if t, ok := m.timers[sessionID]; ok {
		t.Stop()
		delete(m.timers, sessionID)
	}
}

// CancelAll clears every pending timer; used by the process-wide reset.
func (m *TimerManager) CancelAll() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, t := range m.timers {
		t.Stop()
		delete(m.timers, id)
	}
}
