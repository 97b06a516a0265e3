package scheduler

import (
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/thereayou/pulse/internal/models"
)

type fakeTaskStore struct {
	tasks []models.Task

	overdueErr error
	marked     map[uuid.UUID][]string
}

func newFakeTaskStore(tasks ...models.Task) *fakeTaskStore {
	return &fakeTaskStore{tasks: tasks, marked: make(map[uuid.UUID][]string)}
}

func (f *fakeTaskStore) GetOverdueTasks(now time.Time) ([]models.Task, error) {
	if f.overdueErr != nil {
		return nil, f.overdueErr
	}
	var out []models.Task
	for _, t := range f.tasks {
		if t.DueDate.Before(now) && t.Status != "done" && !t.NotifiedOverdue {
			out = append(out, t)
		}
	}
	return out, nil
}

func (f *fakeTaskStore) GetApproachingTasks(now time.Time, window time.Duration) ([]models.Task, error) {
	var out []models.Task
	for _, t := range f.tasks {
		due := t.DueDate
		if due.After(now) && due.Before(now.Add(window)) && t.Status != "done" && !t.NotifiedDeadline {
			out = append(out, t)
		}
	}
	return out, nil
}

func (f *fakeTaskStore) MarkTaskNotified(id uuid.UUID, column string) error {
	f.marked[id] = append(f.marked[id], column)
	for i := range f.tasks {
		if f.tasks[i].ID != id {
			continue
		}
		switch column {
		case "notified_overdue":
			f.tasks[i].NotifiedOverdue = true
		case "notified_deadline":
			f.tasks[i].NotifiedDeadline = true
		}
	}
	return nil
}

type recordingNotifier struct {
	sent []*models.Notification
	err  error
}

func (r *recordingNotifier) NotifyUser(n *models.Notification) error {
	if r.err != nil {
		return r.err
	}
	r.sent = append(r.sent, n)
	return nil
}

func task(due time.Time) models.Task {
	return models.Task{
		ID:         uuid.New(),
		Title:      "ship release",
		AssigneeID: uuid.New(),
		Status:     "open",
		DueDate:    due,
	}
}

func TestScanNotifiesOverdueOnce(t *testing.T) {
	now := time.Now()
	overdue := task(now.Add(-2 * time.Hour))
	store := newFakeTaskStore(overdue)
	notifier := &recordingNotifier{}
	s := NewScanner(store, notifier, time.Minute)

	s.Scan(now)
	s.Scan(now.Add(time.Minute)) // второй проход не дублирует

	if len(notifier.sent) != 1 {
		t.Fatalf("expected 1 notification, got %d", len(notifier.sent))
	}
	n := notifier.sent[0]
	if n.Type != models.NotificationTaskOverdue {
		t.Errorf("type = %s, want task-overdue", n.Type)
	}
	if n.Priority != models.PriorityHigh {
		t.Errorf("priority = %s, want high", n.Priority)
	}
	if n.UserID != overdue.AssigneeID {
		t.Error("notification addressed to wrong user")
	}
	if got := store.marked[overdue.ID]; len(got) != 1 || got[0] != "notified_overdue" {
		t.Errorf("marked = %v, want single notified_overdue", got)
	}
}

func TestScanNotifiesApproachingDeadline(t *testing.T) {
	now := time.Now()
	soon := task(now.Add(3 * time.Hour))
	farAway := task(now.Add(72 * time.Hour))
	store := newFakeTaskStore(soon, farAway)
	notifier := &recordingNotifier{}
	s := NewScanner(store, notifier, time.Minute)

	s.Scan(now)

	if len(notifier.sent) != 1 {
		t.Fatalf("expected 1 notification, got %d", len(notifier.sent))
	}
	n := notifier.sent[0]
	if n.Type != models.NotificationDeadlineApproaching {
		t.Errorf("type = %s, want deadline-approaching", n.Type)
	}
	if n.Priority != models.PriorityMedium {
		t.Errorf("priority = %s, want medium", n.Priority)
	}
	if n.TaskID == nil || *n.TaskID != soon.ID {
		t.Error("notification does not reference the due task")
	}
}

func TestScanSkipsMarkWhenNotifyFails(t *testing.T) {
	now := time.Now()
	overdue := task(now.Add(-time.Hour))
	store := newFakeTaskStore(overdue)
	notifier := &recordingNotifier{err: errors.New("dispatcher down")}
	s := NewScanner(store, notifier, time.Minute)

	s.Scan(now)

	// Флаг не выставлен — следующий проход повторит попытку
	if len(store.marked) != 0 {
		t.Errorf("task marked despite failed notify: %v", store.marked)
	}

	notifier.err = nil
	s.Scan(now.Add(time.Minute))
	if len(notifier.sent) != 1 {
		t.Fatalf("retry pass did not deliver, sent = %d", len(notifier.sent))
	}
}

func TestScanSurvivesOverdueQueryFailure(t *testing.T) {
	now := time.Now()
	soon := task(now.Add(time.Hour))
	store := newFakeTaskStore(soon)
	store.overdueErr = errors.New("storage down")
	notifier := &recordingNotifier{}
	s := NewScanner(store, notifier, time.Minute)

	s.Scan(now)

	// Падение первого запроса не мешает обработке приближающихся
	if len(notifier.sent) != 1 {
		t.Fatalf("approaching pass skipped, sent = %d", len(notifier.sent))
	}
	if notifier.sent[0].Type != models.NotificationDeadlineApproaching {
		t.Errorf("type = %s, want deadline-approaching", notifier.sent[0].Type)
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	store := newFakeTaskStore()
	s := NewScanner(store, &recordingNotifier{}, time.Millisecond)

	done := make(chan struct{})
	go func() {
		s.Run()
		close(done)
	}()

	time.Sleep(5 * time.Millisecond)
	s.Stop()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("scanner did not stop after cancel")
	}
}
