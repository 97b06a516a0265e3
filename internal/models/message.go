package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// DeletedPlaceholder подставляется вместо содержимого при удалении для всех.
const DeletedPlaceholder = "This message was deleted"

const (
	ReceiptDelivered = "delivered"
	ReceiptRead      = "read"
)

type Message struct {
	ID        uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	ChatID    uuid.UUID `gorm:"type:uuid;not null;index"`
	SenderID  uuid.UUID `gorm:"type:uuid;not null"`
	Content   string
	Type      string     `gorm:"default:'text'"`
	ReplyToID *uuid.UUID `gorm:"type:uuid"`
	IsDeleted bool       `gorm:"not null;default:false"`
	Edited    bool       `gorm:"not null;default:false"`
	CreatedAt time.Time

	// Связи
	Sender      User                `gorm:"foreignKey:SenderID"`
	Attachments []MessageAttachment `gorm:"foreignKey:MessageID"`
	Receipts    []MessageReceipt    `gorm:"foreignKey:MessageID"`
	Reactions   []MessageReaction   `gorm:"foreignKey:MessageID"`
}

func (m *Message) BeforeCreate(tx *gorm.DB) error {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	return nil
}

// MessageReceipt — отметка delivered/read, не более одной на пользователя и вид.
// Строка никогда не обновляется после вставки: квитанции монотонны.
type MessageReceipt struct {
	MessageID uuid.UUID `gorm:"type:uuid;primaryKey"`
	UserID    uuid.UUID `gorm:"type:uuid;primaryKey"`
	Kind      string    `gorm:"primaryKey;check:kind IN ('delivered','read')"`
	At        time.Time
}

// MessageReaction — не более одной реакции на пользователя,
// новая реакция заменяет предыдущую.
type MessageReaction struct {
	MessageID uuid.UUID `gorm:"type:uuid;primaryKey"`
	UserID    uuid.UUID `gorm:"type:uuid;primaryKey"`
	Emoji     string    `gorm:"not null"`
	At        time.Time
}

// MessageHide — удаление "для себя": сообщение скрыто только для этого
// пользователя, запись необратима.
type MessageHide struct {
	MessageID uuid.UUID `gorm:"type:uuid;primaryKey"`
	UserID    uuid.UUID `gorm:"type:uuid;primaryKey"`
	At        time.Time
}

// MessageEdit — снимок предыдущего содержимого перед редактированием.
type MessageEdit struct {
	ID        uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	MessageID uuid.UUID `gorm:"type:uuid;not null;index"`
	Content   string
	EditedAt  time.Time
}

func (e *MessageEdit) BeforeCreate(tx *gorm.DB) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	return nil
}

type MessageAttachment struct {
	ID        uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	MessageID uuid.UUID `gorm:"type:uuid;not null;index"`
	URL       string    `gorm:"not null"`
	Name      string
	Size      int64
}

func (a *MessageAttachment) BeforeCreate(tx *gorm.DB) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	return nil
}

// ReadBy возвращает пользователей с квитанцией read.
func (m *Message) ReadBy() map[uuid.UUID]time.Time {
	return m.receiptsOf(ReceiptRead)
}

// DeliveredTo возвращает пользователей с квитанцией delivered.
func (m *Message) DeliveredTo() map[uuid.UUID]time.Time {
	return m.receiptsOf(ReceiptDelivered)
}

func (m *Message) receiptsOf(kind string) map[uuid.UUID]time.Time {
	out := make(map[uuid.UUID]time.Time)
	for _, r := range m.Receipts {
		if r.Kind == kind {
			out[r.UserID] = r.At
		}
	}
	return out
}
