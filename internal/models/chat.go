package models

import (
	"bytes"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	ChatTypeDirect = "direct"
	ChatTypeGroup  = "group"
)

type Chat struct {
	ID          uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	Type        string    `gorm:"not null;check:type IN ('direct','group')"`
	Name        string
	Description string
	AvatarURL   string
	CreatedBy   uuid.UUID

	// Нормализованная пара участников direct чата; уникальный индекс
	// гарантирует не более одного direct чата на пару. Для групп NULL.
	DirectKey *string `gorm:"uniqueIndex"`

	CreatedAt time.Time

	// Связи
	Participants []ChatParticipant `gorm:"foreignKey:ChatID"`
	Messages     []Message         `gorm:"foreignKey:ChatID"`
}

func (c *Chat) BeforeCreate(tx *gorm.DB) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	return nil
}

// DirectChatKey строит ключ пары независимо от порядка аргументов.
func DirectChatKey(a, b uuid.UUID) string {
	if bytes.Compare(a[:], b[:]) > 0 {
		a, b = b, a
	}
	return a.String() + ":" + b.String()
}

// ChatParticipant хранит членство вместе со счетчиком непрочитанных
// и признаком админа (актуален только для групповых чатов).
type ChatParticipant struct {
	ChatID   uuid.UUID `gorm:"type:uuid;primaryKey"`
	UserID   uuid.UUID `gorm:"type:uuid;primaryKey"`
	IsAdmin  bool      `gorm:"not null;default:false"`
	Unread   int       `gorm:"not null;default:0"`
	JoinedAt time.Time

	// Связи
	User User `gorm:"foreignKey:UserID"`
}

// HasParticipant проверяет, состоит ли пользователь в чате.
func (c *Chat) HasParticipant(userID uuid.UUID) bool {
	for _, p := range c.Participants {
		if p.UserID == userID {
			return true
		}
	}
	return false
}

// IsAdmin проверяет, является ли пользователь админом группового чата.
func (c *Chat) IsAdmin(userID uuid.UUID) bool {
	for _, p := range c.Participants {
		if p.UserID == userID {
			return p.IsAdmin
		}
	}
	return false
}

// AdminCount возвращает число админов в чате.
func (c *Chat) AdminCount() int {
	n := 0
	for _, p := range c.Participants {
		if p.IsAdmin {
			n++
		}
	}
	return n
}
