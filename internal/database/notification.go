package database

import (
	"github.com/google/uuid"
	"github.com/thereayou/pulse/internal/models"
)

func (d *Database) CreateNotification(n *models.Notification) error {
	return d.db.Create(n).Error
}

// GetUserNotifications получает уведомления пользователя с пагинацией,
// новые первыми.
func (d *Database) GetUserNotifications(userID uuid.UUID, limit, offset int) ([]models.Notification, error) {
	var notifications []models.Notification
	err := d.db.
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&notifications).Error
	return notifications, err
}

func (d *Database) CountUnreadNotifications(userID uuid.UUID) (int64, error) {
	var count int64
	err := d.db.
		Model(&models.Notification{}).
		Where("user_id = ? AND read = false", userID).
		Count(&count).Error
	return count, err
}

func (d *Database) MarkNotificationRead(id, userID uuid.UUID) error {
	return d.db.
		Model(&models.Notification{}).
		Where("id = ? AND user_id = ?", id, userID).
		Update("read", true).Error
}

func (d *Database) MarkAllNotificationsRead(userID uuid.UUID) error {
	return d.db.
		Model(&models.Notification{}).
		Where("user_id = ? AND read = false", userID).
		Update("read", true).Error
}

func (d *Database) DeleteNotification(id, userID uuid.UUID) error {
	return d.db.
		Delete(&models.Notification{}, "id = ? AND user_id = ?", id, userID).Error
}

// DeleteReadNotifications массово удаляет только уже прочитанные.
func (d *Database) DeleteReadNotifications(userID uuid.UUID) error {
	return d.db.
		Delete(&models.Notification{}, "user_id = ? AND read = true", userID).Error
}
