package usersink_test

import (
	"context"
	"testing"
	"time"

	usertypes "github.com/goliatone/go-users/pkg/types"
	"github.com/google/uuid"

	"github.com/goliatone/go-rased/pkg/activity"
	"github.com/goliatone/go-rased/pkg/activity/usersink"
)

type recordingSink struct {
	records []usertypes.ActivityRecord
	err     error
}

func (s *recordingSink) Log(_ context.Context, record usertypes.ActivityRecord) error {
	s.records = append(s.records, record)
	return s.err
}

func TestHookNotifyMapsEvent(t *testing.T) {
	sink := &recordingSink{}
	tenantID := uuid.New()
	hook := usersink.Hook{Sink: sink, TenantID: tenantID}

	now := time.Date(2024, 9, 16, 9, 30, 0, 0, time.UTC)
	actorID := uuid.New()
	userID := uuid.New()
	studentID := uuid.New().String()
	step := 1

	event := activity.BuildStudentEvent(activity.VerbStudentUpdated, activity.SessionEventInput{
		ActorID:    actorID.String(),
		UserID:     userID.String(),
		StudentID:  studentID,
		Field:      "famille.responsable1_tel",
		Step:       &step,
		OccurredAt: now,
	})
	event.Channel = "rased"

	if err := hook.Notify(context.Background(), event); err != nil {
		t.Fatalf("notify: %v", err)
	}

	if len(sink.records) != 1 {
		t.Fatalf("expected 1 record, got %d", len(sink.records))
	}
	record := sink.records[0]
	if record.ActorID != actorID || record.UserID != userID || record.TenantID != tenantID {
		t.Fatalf("unexpected identities: %+v", record)
	}
	if record.Verb != activity.VerbStudentUpdated || record.ObjectType != "rased.student" || record.ObjectID != studentID {
		t.Fatalf("unexpected record payload: %+v", record)
	}
	if record.Channel != "rased" {
		t.Fatalf("expected channel rased got %q", record.Channel)
	}
	if !record.OccurredAt.Equal(now) {
		t.Fatalf("expected occurred_at %v got %v", now, record.OccurredAt)
	}
	if record.Data["field"] != "famille.responsable1_tel" || record.Data["step"] != 1 {
		t.Fatalf("expected metadata passthrough got %v", record.Data)
	}
}

func TestHookNotifyFallsBackToUserAsActor(t *testing.T) {
	sink := &recordingSink{}
	hook := usersink.Hook{Sink: sink}
	userID := uuid.New()

	err := hook.Notify(context.Background(), activity.Event{
		Verb:       activity.VerbSessionExported,
		UserID:     userID.String(),
		ActorID:    "not-a-uuid",
		ObjectType: activity.ObjectSession,
		ObjectID:   "rased-session-v1",
	})
	if err != nil {
		t.Fatalf("notify: %v", err)
	}
	if sink.records[0].ActorID != userID {
		t.Fatalf("expected actor to fall back to user, got %s", sink.records[0].ActorID)
	}
	if sink.records[0].OccurredAt.IsZero() {
		t.Fatalf("expected occurred_at to be defaulted")
	}
}

func TestHookNotifySkipsMissingVerb(t *testing.T) {
	sink := &recordingSink{}
	hook := usersink.Hook{Sink: sink}

	_ = hook.Notify(context.Background(), activity.Event{})

	if len(sink.records) != 0 {
		t.Fatalf("expected no records for empty event, got %d", len(sink.records))
	}
}

func TestHookWithoutSinkIsNoop(t *testing.T) {
	if err := (usersink.Hook{}).Notify(context.Background(), activity.Event{Verb: "x", ObjectType: "y", ObjectID: "z"}); err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
}
