package session

import "time"

// Status is the save indicator shown next to the form.
type Status string

const (
	StatusIdle   Status = "idle"
	StatusSaving Status = "saving"
	StatusSaved  Status = "saved"
)

// Timing holds the status indicator delays. The write itself is never
// delayed: every mutation persists before it returns.
type Timing struct {
	// SavedAfter is how long "saving" shows before "saved".
	SavedAfter time.Duration `yaml:"saved_after"`
	// IdleAfter is how long "saved" shows before "idle".
	IdleAfter time.Duration `yaml:"idle_after"`
}

func DefaultTiming() Timing {
	return Timing{SavedAfter: 500 * time.Millisecond, IdleAfter: 2 * time.Second}
}

func (t Timing) withDefaults() Timing {
	def := DefaultTiming()
	if t.SavedAfter <= 0 {
		t.SavedAfter = def.SavedAfter
	}
	if t.IdleAfter <= 0 {
		t.IdleAfter = def.IdleAfter
	}
	return t
}

// Status returns the current save indicator.
func (s *Store) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// OnStatus registers fn for status transitions. fn runs outside the store
// lock, possibly on a timer goroutine. The returned func unregisters it.
func (s *Store) OnStatus(fn func(Status)) func() {
	if fn == nil {
		return func() {}
	}
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.listeners[id] = fn
	s.mu.Unlock()
	return func() {
		s.mu.Lock()
		delete(s.listeners, id)
		s.mu.Unlock()
	}
}

func (s *Store) setStatusLocked(status Status) Status {
	s.status = status
	return status
}

// scheduleLocked restarts the saving -> saved -> idle chain. Callbacks of a
// superseded chain see a stale generation and do nothing.
func (s *Store) scheduleLocked() {
	s.stopTimersLocked()
	gen := s.gen
	s.timers = append(s.timers, time.AfterFunc(s.timing.SavedAfter, func() {
		s.advance(gen, StatusSaved)
	}))
}

func (s *Store) advance(gen uint64, status Status) {
	s.mu.Lock()
	if s.gen != gen {
		s.mu.Unlock()
		return
	}
	s.setStatusLocked(status)
	if status == StatusSaved {
		s.timers = append(s.timers, time.AfterFunc(s.timing.IdleAfter, func() {
			s.advance(gen, StatusIdle)
		}))
	}
	listeners := s.listenersLocked()
	s.mu.Unlock()
	notify(listeners, status)
}

func (s *Store) stopTimersLocked() {
	s.gen++
	for _, timer := range s.timers {
		timer.Stop()
	}
	s.timers = nil
}

func (s *Store) listenersLocked() []func(Status) {
	out := make([]func(Status), 0, len(s.listeners))
	for _, fn := range s.listeners {
		out = append(out, fn)
	}
	return out
}

func notify(listeners []func(Status), statuses ...Status) {
	for _, status := range statuses {
		for _, fn := range listeners {
			fn(status)
		}
	}
}
