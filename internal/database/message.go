package database

import (
	"time"

	"github.com/google/uuid"
	"github.com/thereayou/pulse/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

func (d *Database) SaveMessage(message *models.Message) error {
	return d.db.Create(message).Error
}

func (d *Database) GetMessage(id string) (*models.Message, error) {
	var message models.Message
	err := d.db.
		Preload("Sender").
		Preload("Attachments").
		Preload("Receipts").
		Preload("Reactions").
		First(&message, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &message, nil
}

// GetChatMessages получает историю чата с пагинацией. Сообщения, скрытые
// запрашивающим пользователем (deleted for self), отфильтрованы всегда,
// независимо от глобального tombstone.
func (d *Database) GetChatMessages(chatID string, userID uuid.UUID, limit int, beforeID *uuid.UUID) ([]models.Message, error) {
	var messages []models.Message

	query := d.db.
		Where("chat_id = ?", chatID).
		Where("id NOT IN (?)", d.db.
			Model(&models.MessageHide{}).
			Select("message_id").
			Where("user_id = ?", userID))

	// Если указан beforeID, получаем сообщения до него
	if beforeID != nil {
		var beforeMsg models.Message
		if err := d.db.First(&beforeMsg, "id = ?", beforeID).Error; err == nil {
			query = query.Where("created_at < ?", beforeMsg.CreatedAt)
		}
	}

	err := query.
		Order("created_at DESC").
		Limit(limit).
		Preload("Sender").
		Preload("Attachments").
		Preload("Receipts").
		Preload("Reactions").
		Find(&messages).Error

	if err != nil {
		return nil, err
	}

	// Разворачиваем порядок, чтобы старые сообщения были первыми
	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}

	return messages, nil
}

// UpsertReceipt вставляет квитанцию delivered/read. Повторная вставка —
// no-op: первая временная метка сохраняется, квитанции монотонны.
func (d *Database) UpsertReceipt(messageID, userID uuid.UUID, kind string, at time.Time) error {
	receipt := models.MessageReceipt{
		MessageID: messageID,
		UserID:    userID,
		Kind:      kind,
		At:        at,
	}
	return d.db.
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&receipt).Error
}

// MarkChatRead ставит квитанции read на все чужие сообщения чата
// и обнуляет счетчик непрочитанных.
func (d *Database) MarkChatRead(chatID, userID uuid.UUID, at time.Time) error {
	return d.db.Transaction(func(tx *gorm.DB) error {
		var ids []uuid.UUID
		err := tx.
			Model(&models.Message{}).
			Where("chat_id = ? AND sender_id != ?", chatID, userID).
			Pluck("id", &ids).Error
		if err != nil {
			return err
		}

		for _, id := range ids {
			receipt := models.MessageReceipt{
				MessageID: id,
				UserID:    userID,
				Kind:      models.ReceiptRead,
				At:        at,
			}
			if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&receipt).Error; err != nil {
				return err
			}
		}

		return tx.
			Model(&models.ChatParticipant{}).
			Where("chat_id = ? AND user_id = ?", chatID, userID).
			Update("unread", 0).Error
	})
}

// SetReaction ставит реакцию пользователя, заменяя предыдущую.
func (d *Database) SetReaction(messageID, userID uuid.UUID, emoji string) error {
	reaction := models.MessageReaction{
		MessageID: messageID,
		UserID:    userID,
		Emoji:     emoji,
		At:        time.Now(),
	}
	return d.db.
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "message_id"}, {Name: "user_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"emoji", "at"}),
		}).
		Create(&reaction).Error
}

func (d *Database) RemoveReaction(messageID, userID uuid.UUID) error {
	return d.db.
		Delete(&models.MessageReaction{}, "message_id = ? AND user_id = ?", messageID, userID).Error
}

// HideMessage скрывает сообщение для одного пользователя, необратимо.
func (d *Database) HideMessage(messageID, userID uuid.UUID) error {
	hide := models.MessageHide{
		MessageID: messageID,
		UserID:    userID,
		At:        time.Now(),
	}
	return d.db.
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&hide).Error
}

// TombstoneMessage удаляет сообщение для всех: контент заменяется
// плейсхолдером, вложения удаляются, запись остается. Идемпотентно.
func (d *Database) TombstoneMessage(messageID uuid.UUID) error {
	return d.db.Transaction(func(tx *gorm.DB) error {
		err := tx.
			Model(&models.Message{}).
			Where("id = ?", messageID).
			Updates(map[string]interface{}{
				"is_deleted": true,
				"content":    models.DeletedPlaceholder,
			}).Error
		if err != nil {
			return err
		}

		return tx.Delete(&models.MessageAttachment{}, "message_id = ?", messageID).Error
	})
}

// EditMessage сохраняет прежний контент в историю и записывает новый.
func (d *Database) EditMessage(messageID uuid.UUID, oldContent, newContent string) error {
	return d.db.Transaction(func(tx *gorm.DB) error {
		edit := models.MessageEdit{
			MessageID: messageID,
			Content:   oldContent,
			EditedAt:  time.Now(),
		}
		if err := tx.Create(&edit).Error; err != nil {
			return err
		}

		return tx.
			Model(&models.Message{}).
			Where("id = ?", messageID).
			Updates(map[string]interface{}{
				"content": newContent,
				"edited":  true,
			}).Error
	})
}

func (d *Database) GetMessageEdits(messageID uuid.UUID) ([]models.MessageEdit, error) {
	var edits []models.MessageEdit
	err := d.db.
		Where("message_id = ?", messageID).
		Order("edited_at ASC").
		Find(&edits).Error
	return edits, err
}
