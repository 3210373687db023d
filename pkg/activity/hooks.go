package activity

import (
	"context"
	"errors"
	"maps"
	"strings"
	"time"
)

// Event records one change to the referral session: a student added,
// a field edited, a step reached, an import applied.
type Event struct {
	Verb       string
	ActorID    string
	UserID     string
	ObjectType string
	ObjectID   string
	Channel    string
	Metadata   map[string]any
	OccurredAt time.Time
}

// Routable reports whether the event names a verb and the object it
// happened to. Sinks never see events that are not routable.
func (e Event) Routable() bool {
	return e.Verb != "" && e.ObjectType != "" && e.ObjectID != ""
}

// Hook is a sink for session events.
type Hook interface {
	Notify(ctx context.Context, event Event) error
}

// HookFunc turns a closure into a Hook.
type HookFunc func(ctx context.Context, event Event) error

func (fn HookFunc) Notify(ctx context.Context, event Event) error {
	if fn == nil {
		return nil
	}
	return fn(ctx, event)
}

// Hooks delivers each event to every sink in order.
type Hooks []Hook

// Notify normalizes event once and hands the same copy to every sink. A
// failing sink does not stop delivery to the next; all failures come back
// joined.
func (h Hooks) Notify(ctx context.Context, event Event) error {
	if len(h) == 0 {
		return nil
	}
	event = NormalizeEvent(event)
	if !event.Routable() {
		return nil
	}
	if ctx == nil {
		ctx = context.Background()
	}

	var errs []error
	for _, sink := range h {
		if sink == nil {
			continue
		}
		if err := sink.Notify(ctx, event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// NormalizeEvent returns a copy of event with its identifiers trimmed, its
// metadata detached from the caller's map and OccurredAt stamped when unset.
func NormalizeEvent(event Event) Event {
	out := event
	for _, s := range []*string{
		&out.Verb, &out.ActorID, &out.UserID,
		&out.ObjectType, &out.ObjectID, &out.Channel,
	} {
		*s = strings.TrimSpace(*s)
	}
	out.Metadata = nil
	if len(event.Metadata) > 0 {
		out.Metadata = maps.Clone(event.Metadata)
	}
	if out.OccurredAt.IsZero() {
		out.OccurredAt = time.Now()
	}
	return out
}
