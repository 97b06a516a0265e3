package database

import (
	"time"

	"github.com/google/uuid"
	"github.com/thereayou/pulse/internal/models"
	"gorm.io/gorm"
)

// CreateChat создает чат вместе с участниками, создатель становится админом.
func (d *Database) CreateChat(chat *models.Chat, participantIDs []uuid.UUID) error {
	return d.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(chat).Error; err != nil {
			return err
		}

		seen := map[uuid.UUID]bool{}
		for _, userID := range append([]uuid.UUID{chat.CreatedBy}, participantIDs...) {
			if seen[userID] {
				continue
			}
			seen[userID] = true

			p := models.ChatParticipant{
				ChatID:   chat.ID,
				UserID:   userID,
				IsAdmin:  userID == chat.CreatedBy,
				JoinedAt: time.Now(),
			}
			if err := tx.Create(&p).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

func (d *Database) GetChat(id string) (*models.Chat, error) {
	var chat models.Chat
	err := d.db.
		Preload("Participants").
		Preload("Participants.User").
		First(&chat, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &chat, nil
}

func (d *Database) GetUserChats(userID uuid.UUID) ([]models.Chat, error) {
	var chats []models.Chat
	err := d.db.
		Joins("JOIN chat_participants cp ON cp.chat_id = chats.id").
		Where("cp.user_id = ?", userID).
		Preload("Participants").
		Preload("Participants.User").
		Find(&chats).Error
	return chats, err
}

// GetUserChatIDs перечисляет чаты пользователя для авто-подписки в hub.
func (d *Database) GetUserChatIDs(userID uuid.UUID) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	err := d.db.
		Model(&models.ChatParticipant{}).
		Where("user_id = ?", userID).
		Pluck("chat_id", &ids).Error
	return ids, err
}

// GetOrCreateDirectChat находит или создает личный чат пары пользователей.
// Уникальный индекс по нормализованному ключу пары гарантирует не более
// одного direct чата на пару даже при конкурентных вызовах: проигравший
// гонку получает ошибку уникальности и забирает чат победителя.
func (d *Database) GetOrCreateDirectChat(user1ID, user2ID uuid.UUID) (*models.Chat, error) {
	key := models.DirectChatKey(user1ID, user2ID)

	var chat models.Chat
	err := d.db.First(&chat, "direct_key = ?", key).Error
	if err == nil {
		return d.GetChat(chat.ID.String())
	}
	if err != gorm.ErrRecordNotFound {
		return nil, err
	}

	chat = models.Chat{
		Type:      models.ChatTypeDirect,
		CreatedBy: user1ID,
		DirectKey: &key,
		CreatedAt: time.Now(),
	}

	if err := d.CreateChat(&chat, []uuid.UUID{user2ID}); err != nil {
		var existing models.Chat
		if ferr := d.db.First(&existing, "direct_key = ?", key).Error; ferr == nil {
			return d.GetChat(existing.ID.String())
		}
		return nil, err
	}

	return d.GetChat(chat.ID.String())
}

func (d *Database) UpdateChat(chat *models.Chat) error {
	return d.db.Omit("Participants", "Messages").Save(chat).Error
}

func (d *Database) AddParticipant(chatID, userID uuid.UUID, admin bool) error {
	p := models.ChatParticipant{
		ChatID:   chatID,
		UserID:   userID,
		IsAdmin:  admin,
		JoinedAt: time.Now(),
	}
	return d.db.Create(&p).Error
}

func (d *Database) RemoveParticipant(chatID, userID uuid.UUID) error {
	return d.db.
		Delete(&models.ChatParticipant{}, "chat_id = ? AND user_id = ?", chatID, userID).Error
}

func (d *Database) SetAdmin(chatID, userID uuid.UUID, admin bool) error {
	return d.db.
		Model(&models.ChatParticipant{}).
		Where("chat_id = ? AND user_id = ?", chatID, userID).
		Update("is_admin", admin).Error
}

// IncrementUnread увеличивает счетчик всем участникам, кроме отправителя.
// Одиночный UPDATE, без read-modify-write.
func (d *Database) IncrementUnread(chatID, exceptUserID uuid.UUID) error {
	return d.db.
		Model(&models.ChatParticipant{}).
		Where("chat_id = ? AND user_id != ?", chatID, exceptUserID).
		Update("unread", gorm.Expr("unread + 1")).Error
}

func (d *Database) DecrementUnread(chatID, userID uuid.UUID) error {
	return d.db.
		Model(&models.ChatParticipant{}).
		Where("chat_id = ? AND user_id = ?", chatID, userID).
		Update("unread", gorm.Expr("GREATEST(unread - 1, 0)")).Error
}

func (d *Database) ResetUnread(chatID, userID uuid.UUID) error {
	return d.db.
		Model(&models.ChatParticipant{}).
		Where("chat_id = ? AND user_id = ?", chatID, userID).
		Update("unread", 0).Error
}
