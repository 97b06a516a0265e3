package notify

import (
	"log"

	"github.com/google/uuid"
	"github.com/thereayou/pulse/internal/models"
	"github.com/thereayou/pulse/internal/ws"
)

// Условная длина превью контента в message_notification.
const summaryLimit = 100

// Presence — то, что диспетчеру нужно знать о живых соединениях.
type Presence interface {
	IsOnline(userID uuid.UUID) bool
	IsUserInRoom(userID, roomID uuid.UUID) bool
	SendToUser(userID uuid.UUID, message []byte)
}

// Store — персистентная часть уведомлений.
type Store interface {
	CreateNotification(n *models.Notification) error
	CountUnreadNotifications(userID uuid.UUID) (int64, error)
}

// Dispatcher решает судьбу события для каждого участника: комнатная
// рассылка уже покрыла его, нужен легкий пуш в персональный канал
// или персистентное уведомление для офлайна.
type Dispatcher struct {
	hub Presence
	db  Store
}

func NewDispatcher(hub Presence, db Store) *Dispatcher {
	return &Dispatcher{hub: hub, db: db}
}

// MessageSummary — усеченное событие для участников вне комнаты:
// бейдж на клиенте без перезапроса всей комнаты.
type MessageSummary struct {
	MessageID uuid.UUID `json:"message_id"`
	ChatID    uuid.UUID `json:"chat_id"`
	SenderID  uuid.UUID `json:"sender_id"`
	Content   string    `json:"content"`
	Type      string    `json:"type"`
	CreatedAt int64     `json:"created_at"`
}

// DispatchMessage маршрутизирует новое сообщение каждому участнику,
// кроме автора. Любая ошибка здесь best-effort: сообщение уже
// сохранено, статус доставки не откатывается.
func (d *Dispatcher) DispatchMessage(chat *models.Chat, msg *models.Message) {
	summary := MessageSummary{
		MessageID: msg.ID,
		ChatID:    msg.ChatID,
		SenderID:  msg.SenderID,
		Content:   truncate(msg.Content, summaryLimit),
		Type:      msg.Type,
		CreatedAt: msg.CreatedAt.Unix(),
	}

	for _, p := range chat.Participants {
		if p.UserID == msg.SenderID {
			continue
		}

		switch {
		case d.hub.IsUserInRoom(p.UserID, chat.ID):
			// Комнатная рассылка уже дошла, дубль не нужен

		case d.hub.IsOnline(p.UserID):
			data, err := ws.Marshal(ws.EventMessageNotification, &chat.ID, msg.SenderID, summary)
			if err != nil {
				continue
			}
			d.hub.SendToUser(p.UserID, data)

		default:
			senderID := msg.SenderID
			chatID := chat.ID
			messageID := msg.ID
			n := &models.Notification{
				UserID:       p.UserID,
				Type:         models.NotificationNewMessage,
				Title:        "New message",
				Message:      summary.Content,
				ChatID:       &chatID,
				MessageID:    &messageID,
				SourceUserID: &senderID,
				Priority:     models.PriorityMedium,
			}
			if err := d.db.CreateNotification(n); err != nil {
				log.Printf("Failed to persist notification for %s: %v", p.UserID, err)
			}
		}
	}
}

// NotifyUser сохраняет уведомление и, если получатель онлайн, сразу
// пушит его вместе со счетчиком непрочитанных. Используется сканером
// дедлайнов и внешними задачными событиями.
func (d *Dispatcher) NotifyUser(n *models.Notification) error {
	if err := d.db.CreateNotification(n); err != nil {
		return err
	}

	if !d.hub.IsOnline(n.UserID) {
		return nil
	}

	if data, err := ws.Marshal(ws.EventNotification, n.ChatID, n.UserID, n); err == nil {
		d.hub.SendToUser(n.UserID, data)
	}

	d.PushUnreadCount(n.UserID)

	return nil
}

// PushUnreadCount отправляет пользователю число непрочитанных уведомлений.
func (d *Dispatcher) PushUnreadCount(userID uuid.UUID) {
	count, err := d.db.CountUnreadNotifications(userID)
	if err != nil {
		log.Printf("Failed to count unread notifications for %s: %v", userID, err)
		return
	}

	data, err := ws.Marshal(ws.EventUnreadNotifications, nil, userID, map[string]int64{"count": count})
	if err != nil {
		return
	}
	d.hub.SendToUser(userID, data)
}

func truncate(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit]) + "…"
}
