// Package session holds the active referral session, persists every change
// to a storage slot and reports save status the way the wizard displays it.
package session

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	rased "github.com/goliatone/go-rased"
	"github.com/goliatone/go-rased/internal/hydrate"
	"github.com/goliatone/go-rased/pkg/activity"
	"github.com/goliatone/go-rased/pkg/state"
)

// DefaultSlot is the storage key used when none is configured.
const DefaultSlot = "rased-session-v1"

// Logger is the subset of internal/logger.Logger the store writes to.
type Logger interface {
	Debug(msg string, keysAndValues ...any)
	Warn(msg string, keysAndValues ...any)
	Error(msg string, keysAndValues ...any)
}

type nopLogger struct{}

func (nopLogger) Debug(string, ...any) {}
func (nopLogger) Warn(string, ...any)  {}
func (nopLogger) Error(string, ...any) {}

// Option configures a Store.
type Option func(*Store)

func WithLogger(logger Logger) Option {
	return func(s *Store) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithTiming overrides the save status delays.
func WithTiming(timing Timing) Option {
	return func(s *Store) {
		s.timing = timing.withDefaults()
	}
}

// WithGate adds configured rules to forward navigation.
func WithGate(gate *rased.Gate) Option {
	return func(s *Store) {
		s.gate = gate
	}
}

func WithEmitter(emitter *activity.Emitter) Option {
	return func(s *Store) {
		s.emitter = emitter
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// WithActor tags emitted events with the signed-in user.
func WithActor(userID string) Option {
	return func(s *Store) {
		s.actor = userID
	}
}

// Store mediates every read and write of the session. It is safe for
// concurrent use. Reads return deep copies.
type Store struct {
	mu      sync.Mutex
	backend state.Store
	ref     state.Ref
	session rased.Session
	step    int
	lastErr error

	status    Status
	timing    Timing
	gen       uint64
	timers    []*time.Timer
	listeners map[int]func(Status)
	nextID    int

	gate    *rased.Gate
	emitter *activity.Emitter
	logger  Logger
	now     func() time.Time
	actor   string
}

// Open loads the document stored under ref. A missing or unreadable document
// yields a fresh default session; the store never fails on content.
func Open(ctx context.Context, backend state.Store, ref state.Ref, opts ...Option) (*Store, error) {
	if backend == nil {
		return nil, fmt.Errorf("session: storage backend is required")
	}
	if _, err := ref.Identifier(); err != nil {
		return nil, fmt.Errorf("session: %w", err)
	}
	s := &Store{
		backend:   backend,
		ref:       ref,
		status:    StatusIdle,
		timing:    DefaultTiming(),
		listeners: map[int]func(Status){},
		logger:    nopLogger{},
		now:       time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	s.session = s.load(ctx)
	return s, nil
}

func (s *Store) load(ctx context.Context) rased.Session {
	slot := s.ref.Slot
	data, _, ok, err := s.backend.Load(ctx, s.ref)
	if err != nil {
		s.lastErr = err
		s.logger.Error("session load failed, starting fresh", "slot", slot, "error", err)
		return rased.NewSession(s.now())
	}
	if !ok {
		s.logger.Debug("no stored session, starting fresh", "slot", slot)
		return rased.NewSession(s.now())
	}
	session, err := hydrate.StoredSession().DecodeBytes(hydrate.Context{Source: slot, Now: s.now()}, data)
	if err != nil {
		s.logger.Warn("stored session unreadable, starting fresh", "slot", slot, "error", err)
		return rased.NewSession(s.now())
	}
	return session
}

// Ref returns the storage slot of the store.
func (s *Store) Ref() state.Ref {
	return s.ref
}

// Snapshot returns a deep copy of the session.
func (s *Store) Snapshot() rased.Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.session.Clone()
}

// Current returns a deep copy of the current record.
func (s *Store) Current() rased.StudentRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, _ := s.session.Current()
	return rec.Clone()
}

// LastError returns the most recent storage failure, nil once a save succeeds.
func (s *Store) LastError() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastErr
}

// Close stops pending status timers.
func (s *Store) Close() {
	s.mu.Lock()
	s.stopTimersLocked()
	s.mu.Unlock()
}

// persistLocked writes the session synchronously and starts the status
// timers. It returns the statuses listeners must be told about.
func (s *Store) persistLocked(ctx context.Context) []Status {
	notes := []Status{s.setStatusLocked(StatusSaving)}
	s.session.Meta.LastSaved = s.now().UTC().Format(time.RFC3339Nano)

	data, err := json.Marshal(s.session)
	if err == nil {
		meta := state.Meta{Extra: map[string]string{"students": fmt.Sprint(len(s.session.Students))}}
		_, err = s.backend.Save(ctx, s.ref, data, meta)
	}
	if err != nil {
		s.lastErr = err
		s.logger.Error("session save failed", "slot", s.ref.Slot, "error", err)
		s.stopTimersLocked()
		return append(notes, s.setStatusLocked(StatusIdle))
	}
	s.lastErr = nil
	s.scheduleLocked()
	return notes
}

// apply runs fn under the lock. When fn reports a change the session is
// replaced and persisted, then listeners and hooks are notified.
func (s *Store) apply(ctx context.Context, fn func(rased.Session) (rased.Session, *activity.Event, bool)) bool {
	s.mu.Lock()
	next, event, changed := fn(s.session)
	if !changed {
		s.mu.Unlock()
		return false
	}
	s.session = next
	notes := s.persistLocked(ctx)
	listeners := s.listenersLocked()
	s.mu.Unlock()

	notify(listeners, notes...)
	if event != nil {
		s.emit(ctx, *event)
	}
	return true
}

func (s *Store) emit(ctx context.Context, event activity.Event) {
	if !s.emitter.Enabled() {
		return
	}
	if event.UserID == "" {
		event.UserID = s.actor
	}
	if err := s.emitter.Emit(ctx, event); err != nil {
		s.logger.Warn("activity hook failed", "verb", event.Verb, "error", err)
	}
}

func (s *Store) studentEvent(verb, studentID string) *activity.Event {
	event := activity.BuildStudentEvent(verb, activity.SessionEventInput{
		StudentID:  studentID,
		OccurredAt: s.now(),
	})
	return &event
}

func (s *Store) sessionEvent(verb string, session rased.Session) *activity.Event {
	event := activity.BuildSessionEvent(verb, activity.SessionEventInput{
		SessionID:  s.ref.Slot,
		StudentID:  session.CurrentStudentID,
		Metadata:   map[string]any{"students": len(session.Students)},
		OccurredAt: s.now(),
	})
	return &event
}

// Record emits a session event for actions taken outside the store, such as
// an export or a print.
func (s *Store) Record(ctx context.Context, verb string, metadata map[string]any) {
	s.mu.Lock()
	event := s.sessionEvent(verb, s.session)
	s.mu.Unlock()
	for key, value := range metadata {
		event.Metadata[key] = value
	}
	s.emit(ctx, *event)
}
