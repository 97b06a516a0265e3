package ws

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// EventType определяет замкнутый словарь событий. Обработчики обязаны
// разбирать типы исчерпывающим switch, неизвестный тип — ошибка протокола.
type EventType string

// Клиент → сервер.
const (
	EventJoin           EventType = "join"
	EventLeave          EventType = "leave"
	EventSendMessage    EventType = "send_message"
	EventTyping         EventType = "typing"
	EventStopTyping     EventType = "stop_typing"
	EventMessageRead    EventType = "message_read"
	EventReadAll        EventType = "read_all"
	EventAddReaction    EventType = "add_reaction"
	EventRemoveReaction EventType = "remove_reaction"
	EventDeleteMessage  EventType = "delete_message"
	EventGetPresence    EventType = "get_presence"
	EventPong           EventType = "pong"
)

// Сервер → клиент.
const (
	EventNotification        EventType = "notification"
	EventUserStatus          EventType = "user_status"
	EventNewMessage          EventType = "new_message"
	EventMessageDelivered    EventType = "message_delivered"
	EventMessageNotification EventType = "message_notification"
	EventUserTyping          EventType = "user_typing"
	EventUserStoppedTyping   EventType = "user_stopped_typing"
	EventMessageReadBy       EventType = "message_read_by"
	EventMessageReaction     EventType = "message_reaction"
	EventReactionRemoved     EventType = "reaction_removed"
	EventMessageDeleted      EventType = "message_deleted"
	EventMessageEdited       EventType = "message_edited"
	EventPresenceInfo        EventType = "presence_info"
	EventUnreadNotifications EventType = "unread_notifications"
	EventError               EventType = "error"
	EventPing                EventType = "ping"
)

const (
	StatusOnline  = "online"
	StatusOffline = "offline"
)

// Event — конверт для обоих направлений. ChatID задан для событий,
// привязанных к комнате, UserID проставляется сервером из соединения.
type Event struct {
	Type      EventType       `json:"type"`
	ChatID    *uuid.UUID      `json:"chat_id,omitempty"`
	UserID    uuid.UUID       `json:"user_id,omitempty"`
	Data      json.RawMessage `json:"data,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
}

// Marshal собирает событие с полезной нагрузкой в JSON для отправки.
func Marshal(t EventType, chatID *uuid.UUID, userID uuid.UUID, payload interface{}) ([]byte, error) {
	ev := Event{
		Type:      t,
		ChatID:    chatID,
		UserID:    userID,
		Timestamp: time.Now(),
	}

	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, err
		}
		ev.Data = data
	}

	return json.Marshal(ev)
}
