package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/thereayou/pulse/internal/handlers/dto"
	"github.com/thereayou/pulse/internal/models"
	"github.com/thereayou/pulse/internal/notify"
	"github.com/thereayou/pulse/internal/ws"
)

// notFoundOr переводит отсутствие записи в NotFound. Любая другая ошибка
// хранилища — транзиентная, уходит вызывающему как есть, не маскируясь
// под отсутствие данных.
func notFoundOr(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ws.ErrNotFound
	}
	return fmt.Errorf("storage: %w", err)
}

// ChatStore — персистентные операции движка сообщений.
type ChatStore interface {
	GetChat(id string) (*models.Chat, error)
	GetMessage(id string) (*models.Message, error)
	SaveMessage(message *models.Message) error
	UpsertReceipt(messageID, userID uuid.UUID, kind string, at time.Time) error
	MarkChatRead(chatID, userID uuid.UUID, at time.Time) error
	IncrementUnread(chatID, exceptUserID uuid.UUID) error
	DecrementUnread(chatID, userID uuid.UUID) error
	SetReaction(messageID, userID uuid.UUID, emoji string) error
	RemoveReaction(messageID, userID uuid.UUID) error
	HideMessage(messageID, userID uuid.UUID) error
	TombstoneMessage(messageID uuid.UUID) error
	EditMessage(messageID uuid.UUID, oldContent, newContent string) error
	GetUser(id string) (*models.User, error)
	UpdateLastSeen(id string) error
}

// Broadcaster — рассылочная часть hub, нужная движку.
type Broadcaster interface {
	SendToUser(userID uuid.UUID, message []byte)
	SendToRoom(roomID uuid.UUID, message []byte)
	BroadcastToRoomExcept(roomID, excludeID uuid.UUID, message []byte)
	IsOnline(userID uuid.UUID) bool
	Presence(userIDs []uuid.UUID) map[uuid.UUID]string
}

// EventHandler — движок жизненного цикла сообщения. Порядок всегда один:
// проверка участия, запись в хранилище, затем best-effort рассылка.
// Если запись упала, рассылки нет и клиент получает явную ошибку.
type EventHandler struct {
	db         ChatStore
	hub        Broadcaster
	dispatcher *notify.Dispatcher
}

func NewEventHandler(db ChatStore, hub Broadcaster, dispatcher *notify.Dispatcher) *EventHandler {
	return &EventHandler{
		db:         db,
		hub:        hub,
		dispatcher: dispatcher,
	}
}

func (h *EventHandler) HandleEvent(client *ws.Client, ev *ws.Event) error {
	switch ev.Type {
	case ws.EventJoin:
		return h.handleJoin(client, ev)

	case ws.EventLeave:
		if ev.ChatID == nil {
			return ws.ErrInvalidEvent
		}
		client.Hub.LeaveRoom(client, *ev.ChatID)
		return nil

	case ws.EventSendMessage:
		return h.handleSendMessage(client, ev)

	case ws.EventTyping:
		return h.handleTyping(client, ev, ws.EventUserTyping)

	case ws.EventStopTyping:
		return h.handleTyping(client, ev, ws.EventUserStoppedTyping)

	case ws.EventMessageRead:
		return h.handleMessageRead(client, ev)

	case ws.EventReadAll:
		return h.handleReadAll(client, ev)

	case ws.EventAddReaction:
		return h.handleAddReaction(client, ev)

	case ws.EventRemoveReaction:
		return h.handleRemoveReaction(client, ev)

	case ws.EventDeleteMessage:
		return h.handleDeleteMessage(client, ev)

	case ws.EventGetPresence:
		return h.handleGetPresence(client, ev)

	case ws.EventPong:
		return nil

	default:
		log.Printf("Unknown event type: %s", ev.Type)
		return ws.ErrInvalidEvent
	}
}

func (h *EventHandler) handleJoin(client *ws.Client, ev *ws.Event) error {
	if ev.ChatID == nil {
		return ws.ErrInvalidEvent
	}

	chat, err := h.db.GetChat(ev.ChatID.String())
	if err != nil {
		return notFoundOr(err)
	}
	if !chat.HasParticipant(client.UserID) {
		return ws.ErrForbidden
	}

	client.Hub.JoinRoom(client, chat.ID)
	return nil
}

func (h *EventHandler) handleSendMessage(client *ws.Client, ev *ws.Event) error {
	if ev.ChatID == nil {
		return ws.ErrInvalidEvent
	}

	chat, err := h.db.GetChat(ev.ChatID.String())
	if err != nil {
		return notFoundOr(err)
	}
	if !chat.HasParticipant(client.UserID) {
		return ws.ErrForbidden
	}

	var payload dto.MessagePayload
	if err := json.Unmarshal(ev.Data, &payload); err != nil {
		return err
	}

	if payload.Content == "" && len(payload.Attachments) == 0 {
		return ws.ErrValidation
	}

	// Ответ должен ссылаться на живое сообщение этого же чата
	if payload.ReplyTo != nil {
		ref, err := h.db.GetMessage(payload.ReplyTo.String())
		if err != nil {
			return notFoundOr(err)
		}
		if ref.ChatID != chat.ID {
			return ws.ErrNotFound
		}
	}

	msgType := "text"
	if payload.Type != "" {
		msgType = payload.Type
	}

	message := &models.Message{
		ChatID:    chat.ID,
		SenderID:  client.UserID,
		Content:   payload.Content,
		Type:      msgType,
		ReplyToID: payload.ReplyTo,
		CreatedAt: time.Now(),
	}
	for _, a := range payload.Attachments {
		message.Attachments = append(message.Attachments, models.MessageAttachment{
			URL:  a.URL,
			Name: a.Name,
			Size: a.Size,
		})
	}

	// Сначала персистентная запись: если она упала, рассылки не будет
	// и отправитель получит явную ошибку для повтора.
	if err := h.db.SaveMessage(message); err != nil {
		log.Printf("Failed to save message: %v", err)
		return fmt.Errorf("failed to save message: %w", err)
	}

	now := time.Now()

	// Отправитель сразу считается прочитавшим и получившим свое сообщение
	if err := h.db.UpsertReceipt(message.ID, client.UserID, models.ReceiptDelivered, now); err != nil {
		log.Printf("Failed to mark own delivery: %v", err)
	}
	if err := h.db.UpsertReceipt(message.ID, client.UserID, models.ReceiptRead, now); err != nil {
		log.Printf("Failed to mark own read: %v", err)
	}

	if err := h.db.IncrementUnread(chat.ID, client.UserID); err != nil {
		log.Printf("Failed to bump unread counters: %v", err)
	}

	response := dto.NewMessageResponse(message)
	if user, err := h.db.GetUser(client.UserID.String()); err == nil {
		response.Sender = dto.UserInfo{
			ID:        user.ID,
			Username:  user.Username,
			AvatarURL: user.AvatarURL,
		}
	}

	if data, err := ws.Marshal(ws.EventNewMessage, &chat.ID, client.UserID, response); err == nil {
		h.hub.BroadcastToRoomExcept(chat.ID, client.ID, data)
	}
	// Отправителю — его же сообщение как подтверждение с присвоенным id
	client.SendEvent(ws.EventNewMessage, &chat.ID, response)

	h.deliverToOnline(chat, message, client.UserID)

	h.dispatcher.DispatchMessage(chat, message)

	go h.db.UpdateLastSeen(client.UserID.String())

	return nil
}

type deliveredEntry struct {
	UserID      uuid.UUID `json:"user_id"`
	DeliveredAt time.Time `json:"delivered_at"`
}

// deliverToOnline ставит квитанции delivered всем участникам онлайн
// и шлет отправителю delivery receipt. Без повторов: участник, ушедший
// в офлайн посреди обхода, просто пропускается.
func (h *EventHandler) deliverToOnline(chat *models.Chat, message *models.Message, sender uuid.UUID) {
	var delivered []deliveredEntry
	now := time.Now()

	for _, p := range chat.Participants {
		if p.UserID == sender || !h.hub.IsOnline(p.UserID) {
			continue
		}
		if err := h.db.UpsertReceipt(message.ID, p.UserID, models.ReceiptDelivered, now); err != nil {
			log.Printf("Failed to mark delivery for %s: %v", p.UserID, err)
			continue
		}
		delivered = append(delivered, deliveredEntry{UserID: p.UserID, DeliveredAt: now})
	}

	if len(delivered) == 0 {
		return
	}

	data, err := ws.Marshal(ws.EventMessageDelivered, &chat.ID, sender, map[string]interface{}{
		"message_id":   message.ID,
		"chat_id":      chat.ID,
		"delivered_to": delivered,
	})
	if err != nil {
		return
	}
	h.hub.SendToUser(sender, data)
}

func (h *EventHandler) handleTyping(client *ws.Client, ev *ws.Event, out ws.EventType) error {
	if ev.ChatID == nil {
		return ws.ErrInvalidEvent
	}
	if !client.IsInRoom(*ev.ChatID) {
		return ws.ErrNotInRoom
	}

	data, err := ws.Marshal(out, ev.ChatID, client.UserID, map[string]interface{}{
		"user_id": client.UserID,
		"chat_id": ev.ChatID,
	})
	if err != nil {
		return err
	}
	h.hub.BroadcastToRoomExcept(*ev.ChatID, client.ID, data)
	return nil
}

func (h *EventHandler) handleMessageRead(client *ws.Client, ev *ws.Event) error {
	var payload struct {
		MessageID uuid.UUID `json:"message_id"`
	}
	if err := json.Unmarshal(ev.Data, &payload); err != nil {
		return err
	}

	message, err := h.db.GetMessage(payload.MessageID.String())
	if err != nil {
		return notFoundOr(err)
	}

	chat, err := h.db.GetChat(message.ChatID.String())
	if err != nil {
		return notFoundOr(err)
	}
	if !chat.HasParticipant(client.UserID) {
		return ws.ErrForbidden
	}

	// Повторное прочтение — no-op, первая метка сохраняется
	if _, already := message.ReadBy()[client.UserID]; already {
		return nil
	}

	now := time.Now()
	if err := h.db.UpsertReceipt(message.ID, client.UserID, models.ReceiptRead, now); err != nil {
		return err
	}

	if err := h.db.DecrementUnread(chat.ID, client.UserID); err != nil {
		log.Printf("Failed to decrement unread: %v", err)
	}

	data, err := ws.Marshal(ws.EventMessageReadBy, &chat.ID, client.UserID, map[string]interface{}{
		"message_id": message.ID,
		"chat_id":    chat.ID,
		"user_id":    client.UserID,
		"read_at":    now,
	})
	if err != nil {
		return err
	}
	h.hub.SendToRoom(chat.ID, data)
	return nil
}

func (h *EventHandler) handleReadAll(client *ws.Client, ev *ws.Event) error {
	if ev.ChatID == nil {
		return ws.ErrInvalidEvent
	}

	chat, err := h.db.GetChat(ev.ChatID.String())
	if err != nil {
		return notFoundOr(err)
	}
	if !chat.HasParticipant(client.UserID) {
		return ws.ErrForbidden
	}

	now := time.Now()
	if err := h.db.MarkChatRead(chat.ID, client.UserID, now); err != nil {
		return err
	}

	data, err := ws.Marshal(ws.EventMessageReadBy, &chat.ID, client.UserID, map[string]interface{}{
		"chat_id": chat.ID,
		"user_id": client.UserID,
		"read_at": now,
	})
	if err != nil {
		return err
	}
	h.hub.SendToRoom(chat.ID, data)
	return nil
}

func (h *EventHandler) handleAddReaction(client *ws.Client, ev *ws.Event) error {
	var payload struct {
		MessageID uuid.UUID `json:"message_id"`
		Emoji     string    `json:"emoji"`
	}
	if err := json.Unmarshal(ev.Data, &payload); err != nil {
		return err
	}
	if payload.Emoji == "" {
		return ws.ErrValidation
	}

	message, chat, err := h.messageWithChat(payload.MessageID, client.UserID)
	if err != nil {
		return err
	}

	// Замена: у пользователя остается ровно одна реакция
	if err := h.db.SetReaction(message.ID, client.UserID, payload.Emoji); err != nil {
		return err
	}

	data, err := ws.Marshal(ws.EventMessageReaction, &chat.ID, client.UserID, map[string]interface{}{
		"chat_id":    chat.ID,
		"message_id": message.ID,
		"reaction": dto.ReactionInfo{
			UserID: client.UserID,
			Emoji:  payload.Emoji,
		},
	})
	if err != nil {
		return err
	}
	h.hub.SendToRoom(chat.ID, data)
	return nil
}

func (h *EventHandler) handleRemoveReaction(client *ws.Client, ev *ws.Event) error {
	var payload struct {
		MessageID uuid.UUID `json:"message_id"`
	}
	if err := json.Unmarshal(ev.Data, &payload); err != nil {
		return err
	}

	message, chat, err := h.messageWithChat(payload.MessageID, client.UserID)
	if err != nil {
		return err
	}

	if err := h.db.RemoveReaction(message.ID, client.UserID); err != nil {
		return err
	}

	data, err := ws.Marshal(ws.EventReactionRemoved, &chat.ID, client.UserID, map[string]interface{}{
		"chat_id":    chat.ID,
		"message_id": message.ID,
		"user_id":    client.UserID,
	})
	if err != nil {
		return err
	}
	h.hub.SendToRoom(chat.ID, data)
	return nil
}

func (h *EventHandler) handleDeleteMessage(client *ws.Client, ev *ws.Event) error {
	var payload struct {
		MessageID   uuid.UUID `json:"message_id"`
		ForEveryone bool      `json:"for_everyone"`
	}
	if err := json.Unmarshal(ev.Data, &payload); err != nil {
		return err
	}

	message, chat, err := h.messageWithChat(payload.MessageID, client.UserID)
	if err != nil {
		return err
	}

	if payload.ForEveryone {
		// Удалить для всех может только автор
		if message.SenderID != client.UserID {
			return ws.ErrForbidden
		}

		if err := h.db.TombstoneMessage(message.ID); err != nil {
			return err
		}

		data, err := ws.Marshal(ws.EventMessageDeleted, &chat.ID, client.UserID, map[string]interface{}{
			"chat_id":      chat.ID,
			"message_id":   message.ID,
			"for_everyone": true,
		})
		if err != nil {
			return err
		}
		h.hub.SendToRoom(chat.ID, data)
		return nil
	}

	// Удаление для себя — чисто локальная видимость, без рассылки
	if err := h.db.HideMessage(message.ID, client.UserID); err != nil {
		return err
	}

	return client.SendEvent(ws.EventMessageDeleted, &chat.ID, map[string]interface{}{
		"chat_id":      chat.ID,
		"message_id":   message.ID,
		"for_everyone": false,
	})
}

func (h *EventHandler) handleGetPresence(client *ws.Client, ev *ws.Event) error {
	var payload struct {
		UserIDs []uuid.UUID `json:"user_ids"`
	}
	if err := json.Unmarshal(ev.Data, &payload); err != nil {
		return err
	}

	statuses := h.hub.Presence(payload.UserIDs)
	return client.SendEvent(ws.EventPresenceInfo, nil, statuses)
}

// EditMessage — переход Edited, вызывается из HTTP-слоя. Прежний контент
// уходит в историю правок, реакции и квитанции не трогаются.
func (h *EventHandler) EditMessage(userID, messageID uuid.UUID, content string) (*models.Message, error) {
	if content == "" {
		return nil, ws.ErrValidation
	}

	message, err := h.db.GetMessage(messageID.String())
	if err != nil {
		return nil, notFoundOr(err)
	}
	if message.SenderID != userID {
		return nil, ws.ErrForbidden
	}
	if message.IsDeleted {
		return nil, ws.ErrNotFound
	}

	if err := h.db.EditMessage(message.ID, message.Content, content); err != nil {
		return nil, err
	}

	message.Content = content
	message.Edited = true

	if data, err := ws.Marshal(ws.EventMessageEdited, &message.ChatID, userID, map[string]interface{}{
		"chat_id":    message.ChatID,
		"message_id": message.ID,
		"content":    content,
		"edited":     true,
	}); err == nil {
		h.hub.SendToRoom(message.ChatID, data)
	}

	return message, nil
}

func (h *EventHandler) messageWithChat(messageID, userID uuid.UUID) (*models.Message, *models.Chat, error) {
	message, err := h.db.GetMessage(messageID.String())
	if err != nil {
		return nil, nil, notFoundOr(err)
	}

	chat, err := h.db.GetChat(message.ChatID.String())
	if err != nil {
		return nil, nil, notFoundOr(err)
	}
	if !chat.HasParticipant(userID) {
		return nil, nil, ws.ErrForbidden
	}

	return message, chat, nil
}
