package database

import (
	"time"

	"github.com/google/uuid"
	"github.com/thereayou/pulse/internal/models"
)

// GetOverdueTasks возвращает незакрытые задачи с истекшим дедлайном,
// по которым еще не отправлялось уведомление.
func (d *Database) GetOverdueTasks(now time.Time) ([]models.Task, error) {
	var tasks []models.Task
	err := d.db.
		Where("status != 'done' AND due_date < ? AND notified_overdue = false", now).
		Find(&tasks).Error
	return tasks, err
}

// GetApproachingTasks возвращает задачи с дедлайном внутри окна.
func (d *Database) GetApproachingTasks(now time.Time, window time.Duration) ([]models.Task, error) {
	var tasks []models.Task
	err := d.db.
		Where("status != 'done' AND due_date >= ? AND due_date < ? AND notified_deadline = false",
			now, now.Add(window)).
		Find(&tasks).Error
	return tasks, err
}

func (d *Database) MarkTaskNotified(id uuid.UUID, column string) error {
	return d.db.
		Model(&models.Task{}).
		Where("id = ?", id).
		Update(column, true).Error
}
