package scheduler

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/thereayou/pulse/internal/models"
)

// Окно предупреждения о приближающемся дедлайне.
const deadlineWindow = 24 * time.Hour

// TaskStore — запросы по дедлайнам задач.
type TaskStore interface {
	GetOverdueTasks(now time.Time) ([]models.Task, error)
	GetApproachingTasks(now time.Time, window time.Duration) ([]models.Task, error)
	MarkTaskNotified(id uuid.UUID, column string) error
}

// Notifier — единственная точка связи сканера с ядром соединений.
type Notifier interface {
	NotifyUser(n *models.Notification) error
}

// Scanner периодически обходит задачи с истекшими и приближающимися
// дедлайнами и отдает уведомления диспетчеру. С hub общих структур нет.
type Scanner struct {
	db       TaskStore
	notifier Notifier
	interval time.Duration

	ctx    context.Context
	cancel context.CancelFunc
}

func NewScanner(db TaskStore, notifier Notifier, interval time.Duration) *Scanner {
	ctx, cancel := context.WithCancel(context.Background())
	return &Scanner{
		db:       db,
		notifier: notifier,
		interval: interval,
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Run запускает цикл сканирования до остановки.
func (s *Scanner) Run() {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
			s.Scan(time.Now())
		}
	}
}

func (s *Scanner) Stop() {
	s.cancel()
}

// Scan выполняет один проход. Флаги notified_* на задаче гарантируют,
// что по каждой задаче уведомление уходит не более одного раза.
func (s *Scanner) Scan(now time.Time) {
	overdue, err := s.db.GetOverdueTasks(now)
	if err != nil {
		log.Printf("Deadline scan: overdue query failed: %v", err)
	} else {
		for _, task := range overdue {
			s.notifyTask(task, models.NotificationTaskOverdue, "notified_overdue",
				fmt.Sprintf("Task %q is overdue", task.Title), models.PriorityHigh)
		}
	}

	approaching, err := s.db.GetApproachingTasks(now, deadlineWindow)
	if err != nil {
		log.Printf("Deadline scan: approaching query failed: %v", err)
		return
	}
	for _, task := range approaching {
		s.notifyTask(task, models.NotificationDeadlineApproaching, "notified_deadline",
			fmt.Sprintf("Task %q is due %s", task.Title, task.DueDate.Format("2006-01-02 15:04")),
			models.PriorityMedium)
	}
}

func (s *Scanner) notifyTask(task models.Task, t models.NotificationType, column, text, priority string) {
	taskID := task.ID
	n := &models.Notification{
		UserID:    task.AssigneeID,
		Type:      t,
		Title:     task.Title,
		Message:   text,
		TaskID:    &taskID,
		Priority:  priority,
		CompanyID: task.CompanyID,
	}

	if err := s.notifier.NotifyUser(n); err != nil {
		log.Printf("Deadline scan: notify failed for task %s: %v", task.ID, err)
		return
	}

	if err := s.db.MarkTaskNotified(task.ID, column); err != nil {
		log.Printf("Deadline scan: failed to mark task %s: %v", task.ID, err)
	}
}
