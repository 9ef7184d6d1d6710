package history

import (
	"testing"
	"time"

	"taskmanager/internal/models"
)

func ptr[T any](v T) *T { return &v }

func baseTask() models.Task {
	return models.Task{
		ID:          7,
		ProjectID:   1,
		Title:       "Fix bug",
		Description: "crash on save",
		Priority:    models.PriorityMedium,
		CreatedByID: 1,
	}
}

func TestTrack_NoChangesNoRecords(t *testing.T) {
	task := baseTask()
	if got := Track(task, task, nil, time.Now()); len(got) != 0 {
		t.Fatalf("expected no records, got %d", len(got))
	}
}

func TestTrack_AssignmentFromNone(t *testing.T) {
	old := baseTask()
	updated := old
	updated.AssignedToID = ptr(int64(2))
	updated.AssigneeEmail = "alice@x.com"

	actor := &models.User{ID: 1, Email: "owner@x.com"}
	now := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)
	got := Track(old, updated, actor, now)
	if len(got) != 1 {
		t.Fatalf("expected 1 record, got %d: %+v", len(got), got)
	}
	rec := got[0]
	if rec.Field != models.FieldAssignedTo || rec.OldValue != "None" || rec.NewValue != "alice@x.com" {
		t.Fatalf("unexpected record: %+v", rec)
	}
	if rec.UserID == nil || *rec.UserID != 1 {
		t.Fatalf("expected acting user 1, got %v", rec.UserID)
	}
	if rec.TaskID != 7 || !rec.Timestamp.Equal(now) {
		t.Fatalf("unexpected task or timestamp: %+v", rec)
	}
}

func TestTrack_OneRecordPerChangedField(t *testing.T) {
	old := baseTask()
	updated := old
	updated.Title = "Fix the bug"
	updated.Priority = models.PriorityHigh
	updated.StatusID = ptr(int64(3))
	updated.StatusName = "In Progress"
	updated.EstimatedHours = 2.5
	updated.StoryPoints = ptr(int64(5))
	updated.Deadline = ptr(time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC))

	got := Track(old, updated, nil, time.Now())
	want := map[string][2]string{
		models.FieldTitle:          {"Fix bug", "Fix the bug"},
		models.FieldPriority:       {"medium", "high"},
		models.FieldStatus:         {"None", "In Progress"},
		models.FieldEstimatedHours: {"0.0", "2.5"},
		models.FieldStoryPoints:    {"None", "5"},
		models.FieldDeadline:       {"None", "2024-06-01 12:00:00+00:00"},
	}
	if len(got) != len(want) {
		t.Fatalf("got %d records want %d: %+v", len(got), len(want), got)
	}
	for _, rec := range got {
		w, ok := want[rec.Field]
		if !ok {
			t.Fatalf("unexpected field %q", rec.Field)
		}
		if rec.OldValue != w[0] || rec.NewValue != w[1] {
			t.Fatalf("%s: got %q -> %q want %q -> %q", rec.Field, rec.OldValue, rec.NewValue, w[0], w[1])
		}
		if rec.UserID != nil {
			t.Fatalf("unknown actor must be recorded as nil")
		}
	}
}

func TestTrack_DeadlineComparedAsUTC(t *testing.T) {
	old := baseTask()
	old.Deadline = ptr(time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC))
	updated := old
	updated.Deadline = ptr(old.Deadline.In(time.FixedZone("CEST", 2*60*60)))

	if got := Track(old, updated, nil, time.Now()); len(got) != 0 {
		t.Fatalf("same instant in another zone must not register: %+v", got)
	}
}

func TestTrack_UntrackedFieldsIgnored(t *testing.T) {
	old := baseTask()
	updated := old
	updated.ParentTaskID = ptr(int64(99))
	updated.UpdatedAt = time.Now()

	if got := Track(old, updated, nil, time.Now()); len(got) != 0 {
		t.Fatalf("untracked fields must not record history: %+v", got)
	}
}

func TestValues_Formatting(t *testing.T) {
	task := baseTask()
	task.ActualHours = 3
	task.Deadline = ptr(time.Date(2024, 6, 1, 12, 0, 0, 250000000, time.UTC))
	v := Values(task)
	if v[models.FieldActualHours] != "3.0" {
		t.Fatalf("actual hours: got %q", v[models.FieldActualHours])
	}
	if v[models.FieldDeadline] != "2024-06-01 12:00:00.250000+00:00" {
		t.Fatalf("deadline: got %q", v[models.FieldDeadline])
	}
	if v[models.FieldSprint] != "None" || v[models.FieldAssignedTo] != "None" {
		t.Fatalf("null references must render as None: %v", v)
	}
}
