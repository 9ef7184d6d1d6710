package notify

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"taskmanager/internal/models"
)

type fakeDueSource struct {
	tasks    []models.Task
	from, to time.Time
	err      error
}

// TasksDueBetween mimics the store query so the window bounds are exercised.
func (f *fakeDueSource) TasksDueBetween(_ context.Context, from, to time.Time) ([]models.Task, error) {
	f.from, f.to = from, to
	if f.err != nil {
		return nil, f.err
	}
	var out []models.Task
	for _, t := range f.tasks {
		if t.AssignedToID == nil || t.Deadline == nil {
			continue
		}
		if !t.Deadline.Before(from) && t.Deadline.Before(to) {
			out = append(out, t)
		}
	}
	return out, nil
}

type enqueued struct {
	kind      Kind
	taskID    int64
	recipient string
}

type fakeEnqueuer struct {
	got []enqueued
	err error
}

func (f *fakeEnqueuer) Submit(_ context.Context, kind Kind, taskID int64, recipient string) error {
	if f.err != nil {
		return f.err
	}
	f.got = append(f.got, enqueued{kind, taskID, recipient})
	return nil
}

func task(id int64, deadline time.Time, assignee string) models.Task {
	t := models.Task{ID: id, Deadline: &deadline}
	if assignee != "" {
		uid := id * 10
		t.AssignedToID = &uid
		t.AssigneeEmail = assignee
	}
	return t
}

func TestScanner_WindowAndAssignee(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	source := &fakeDueSource{tasks: []models.Task{
		task(1, now, "a@x.com"),
		task(2, now.Add(23*time.Hour+59*time.Minute), "b@x.com"),
		task(3, now.Add(24*time.Hour), "c@x.com"),
		task(4, now.Add(-time.Second), "d@x.com"),
		task(5, now.Add(time.Hour), ""),
	}}
	q := &fakeEnqueuer{}
	s := NewScanner(source, q, func() time.Time { return now }, discardLogger())

	n, err := s.Scan(context.Background())
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	if n != 2 || len(q.got) != 2 {
		t.Fatalf("got %d reminders (%+v), want 2", n, q.got)
	}
	if q.got[0] != (enqueued{KindReminder, 1, "a@x.com"}) || q.got[1] != (enqueued{KindReminder, 2, "b@x.com"}) {
		t.Fatalf("unexpected reminders: %+v", q.got)
	}
	if !source.from.Equal(now) || !source.to.Equal(now.Add(24*time.Hour)) {
		t.Fatalf("window: got [%v, %v)", source.from, source.to)
	}
}

func TestScanner_RepeatedScansRemindAgain(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	source := &fakeDueSource{tasks: []models.Task{task(1, now.Add(time.Hour), "a@x.com")}}
	q := &fakeEnqueuer{}
	s := NewScanner(source, q, func() time.Time { return now }, discardLogger())

	for i := 0; i < 2; i++ {
		if _, err := s.Scan(context.Background()); err != nil {
			t.Fatalf("scan: %v", err)
		}
	}
	if len(q.got) != 2 {
		t.Fatalf("got %d reminders want 2", len(q.got))
	}
}

func TestScanner_SourceError(t *testing.T) {
	q := &fakeEnqueuer{}
	s := NewScanner(&fakeDueSource{err: errors.New("db locked")}, q, nil, discardLogger())
	if _, err := s.Scan(context.Background()); err == nil {
		t.Fatalf("expected error")
	}
	if len(q.got) != 0 {
		t.Fatalf("nothing must be enqueued on error")
	}
}

func TestScanner_RunRejectsBadInterval(t *testing.T) {
	s := NewScanner(&fakeDueSource{}, &fakeEnqueuer{}, nil, discardLogger())
	if err := s.Run(context.Background(), 0); err == nil {
		t.Fatalf("expected error for zero interval")
	}
}

func TestScanner_RunStopsOnCancel(t *testing.T) {
	s := NewScanner(&fakeDueSource{}, &fakeEnqueuer{}, nil, discardLogger())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := s.Run(ctx, time.Hour); err != nil {
		t.Fatalf("run: %v", err)
	}
}

func TestScanner_SubmitErrorStopsScan(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	source := &fakeDueSource{tasks: []models.Task{task(1, now.Add(time.Hour), "a@x.com")}}
	s := NewScanner(source, &fakeEnqueuer{err: ErrClosed}, func() time.Time { return now }, discardLogger())

	n, err := s.Scan(context.Background())
	if !errors.Is(err, ErrClosed) || n != 0 {
		t.Fatalf("got n=%d err=%v, want 0 and ErrClosed", n, err)
	}
}

// More due tasks than the queue holds must all be delivered when workers
// run alongside the scan.
func TestScanner_MoreTasksThanQueueCapacity(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	const total = 300

	source := &fakeDueSource{}
	details := fakeLoader{}
	for i := int64(1); i <= total; i++ {
		source.tasks = append(source.tasks, task(i, now.Add(time.Hour), fmt.Sprintf("user%d@x.com", i)))
		details[i] = models.TaskDetail{Task: models.Task{ID: i, Title: "T"}, ProjectName: "Apollo"}
	}

	mailer := &recordingMailer{}
	d := NewDispatcher(details, mailer, Config{Workers: 2, QueueSize: 8}, discardLogger())
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	stopped := make(chan error, 1)
	go func() { stopped <- d.Run(ctx) }()

	n, err := NewScanner(source, d, func() time.Time { return now }, discardLogger()).Scan(ctx)
	if err != nil || n != total {
		t.Fatalf("scan: n=%d err=%v", n, err)
	}
	d.Close()
	if err := <-stopped; err != nil {
		t.Fatalf("run: %v", err)
	}

	sent, _ := mailer.snapshot()
	if len(sent) != total || d.Sent() != total || d.Pending() != 0 {
		t.Fatalf("sent %d (counter %d), pending %d, want %d sent", len(sent), d.Sent(), d.Pending(), total)
	}
}
