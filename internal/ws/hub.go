package ws

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// ChatSource перечисляет чаты пользователя для авто-подписки при подключении.
type ChatSource interface {
	GetUserChatIDs(userID uuid.UUID) ([]uuid.UUID, error)
}

// PresenceMirror зеркалит статус в долговременное хранилище.
// Все вызовы best-effort: ошибка логируется и не влияет на соединение.
type PresenceMirror interface {
	SetStatus(ctx context.Context, userID uuid.UUID, status string) error
}

type Client struct {
	ID     uuid.UUID
	UserID uuid.UUID
	Conn   *websocket.Conn
	Send   chan []byte
	Rooms  map[uuid.UUID]bool
	Hub    *Hub

	// closed выставляется под mu при закрытии Send; все записи в канал
	// идут через trySend под тем же mu, паника на закрытом канале
	// исключена даже при гонке с остановкой hub.
	closed bool
	mu     sync.RWMutex
}

// Hub хранит все живые соединения: клиенты, клиенты по пользователю
// и составы комнат. Это единственные разделяемые изменяемые структуры
// процесса, все мутации сериализуются одним mutex.
type Hub struct {
	clients map[uuid.UUID]*Client

	// Соединения по UserID: пользователь может держать несколько вкладок,
	// рассылка уходит на каждое соединение
	userClients map[uuid.UUID]map[uuid.UUID]*Client

	// Клиенты в комнатах
	rooms map[uuid.UUID]map[uuid.UUID]*Client

	register   chan *Client
	unregister chan *Client

	chats    ChatSource
	presence PresenceMirror

	mu sync.RWMutex

	// Контекст для graceful shutdown
	ctx    context.Context
	cancel context.CancelFunc
}

// NewHub создает новый Hub
func NewHub(chats ChatSource, presence PresenceMirror) *Hub {
	ctx, cancel := context.WithCancel(context.Background())
	return &Hub{
		clients:     make(map[uuid.UUID]*Client),
		userClients: make(map[uuid.UUID]map[uuid.UUID]*Client),
		rooms:       make(map[uuid.UUID]map[uuid.UUID]*Client),
		register:    make(chan *Client),
		unregister:  make(chan *Client),
		chats:       chats,
		presence:    presence,
		ctx:         ctx,
		cancel:      cancel,
	}
}

// Run запускает hub
func (h *Hub) Run() {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-h.ctx.Done():
			return

		case client := <-h.register:
			h.registerClient(client)

		case client := <-h.unregister:
			h.unregisterClient(client)

		case <-ticker.C:
			h.ping()
		}
	}
}

// Stop останавливает hub, принудительно закрывая все соединения.
func (h *Hub) Stop() {
	h.cancel()

	h.mu.Lock()
	defer h.mu.Unlock()

	for _, client := range h.clients {
		client.closeSend()
		if client.Conn != nil {
			client.Conn.Close()
		}
	}
	h.clients = make(map[uuid.UUID]*Client)
	h.userClients = make(map[uuid.UUID]map[uuid.UUID]*Client)
	h.rooms = make(map[uuid.UUID]map[uuid.UUID]*Client)
}

// Register регистрирует нового клиента. После остановки hub — no-op,
// чтобы читающие горутины не зависали на канале без получателя.
func (h *Hub) Register(client *Client) {
	select {
	case h.register <- client:
	case <-h.ctx.Done():
	}
}

// Unregister отменяет регистрацию клиента. После остановки hub — no-op.
func (h *Hub) Unregister(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.ctx.Done():
	}
}

func (h *Hub) registerClient(client *Client) {
	// Список чатов для авто-подписки берем из хранилища до захвата lock.
	// Ошибка не прерывает подключение: клиент остается только
	// с персональной комнатой.
	var chatIDs []uuid.UUID
	if h.chats != nil {
		var err error
		chatIDs, err = h.chats.GetUserChatIDs(client.UserID)
		if err != nil {
			log.Printf("Failed to load chats for %s, joining personal room only: %v", client.UserID, err)
			chatIDs = nil
		}
	}

	h.mu.Lock()

	h.clients[client.ID] = client

	first := false
	if _, ok := h.userClients[client.UserID]; !ok {
		h.userClients[client.UserID] = make(map[uuid.UUID]*Client)
		first = true
	}
	h.userClients[client.UserID][client.ID] = client

	// Персональная комната: room id == user id
	h.joinRoomLocked(client, client.UserID)
	for _, chatID := range chatIDs {
		h.joinRoomLocked(client, chatID)
	}

	log.Printf("Client registered: %s (User: %s, rooms: %d)", client.ID, client.UserID, len(chatIDs)+1)

	if first {
		h.notifyUserStatusLocked(client.UserID, StatusOnline)
	}

	h.mu.Unlock()

	if first {
		h.mirrorStatus(client.UserID, StatusOnline)
	}
}

func (h *Hub) unregisterClient(client *Client) {
	h.mu.Lock()

	last := false
	if _, ok := h.clients[client.ID]; ok {
		// Удаляем из всех комнат
		for roomID := range client.Rooms {
			h.leaveRoomLocked(client, roomID)
		}

		if userClients, ok := h.userClients[client.UserID]; ok {
			delete(userClients, client.ID)
			if len(userClients) == 0 {
				delete(h.userClients, client.UserID)
				last = true
				h.notifyUserStatusLocked(client.UserID, StatusOffline)
			}
		}

		delete(h.clients, client.ID)
		client.closeSend()

		log.Printf("Client unregistered: %s (User: %s)", client.ID, client.UserID)
	}

	h.mu.Unlock()

	if last {
		h.mirrorStatus(client.UserID, StatusOffline)
	}
}

// JoinRoom добавляет клиента в комнату, повторный вызов — no-op.
func (h *Hub) JoinRoom(client *Client, roomID uuid.UUID) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.joinRoomLocked(client, roomID)
}

// LeaveRoom удаляет клиента из комнаты, повторный вызов — no-op.
func (h *Hub) LeaveRoom(client *Client, roomID uuid.UUID) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.leaveRoomLocked(client, roomID)
}

func (h *Hub) joinRoomLocked(client *Client, roomID uuid.UUID) {
	if _, ok := h.rooms[roomID]; !ok {
		h.rooms[roomID] = make(map[uuid.UUID]*Client)
	}

	h.rooms[roomID][client.ID] = client
	client.mu.Lock()
	client.Rooms[roomID] = true
	client.mu.Unlock()
}

func (h *Hub) leaveRoomLocked(client *Client, roomID uuid.UUID) {
	if room, ok := h.rooms[roomID]; ok {
		if _, ok := room[client.ID]; ok {
			delete(room, client.ID)
			client.mu.Lock()
			delete(client.Rooms, roomID)
			client.mu.Unlock()

			if len(room) == 0 {
				delete(h.rooms, roomID)
			}
		}
	}
}

// SendToUser отправляет событие на все соединения пользователя.
func (h *Hub) SendToUser(userID uuid.UUID, message []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if clients, ok := h.userClients[userID]; ok {
		for _, client := range clients {
			if err := client.trySend(message); err != nil {
				log.Printf("Client %s dropped message: %v", client.ID, err)
			}
		}
	}
}

// SendToRoom отправляет событие всем в комнате.
func (h *Hub) SendToRoom(roomID uuid.UUID, message []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	h.sendToRoomLocked(roomID, message, uuid.Nil)
}

// BroadcastToRoomExcept отправляет событие всем в комнате,
// кроме соединения-отправителя.
func (h *Hub) BroadcastToRoomExcept(roomID uuid.UUID, excludeID uuid.UUID, message []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	h.sendToRoomLocked(roomID, message, excludeID)
}

func (h *Hub) sendToRoomLocked(roomID uuid.UUID, message []byte, excludeID uuid.UUID) {
	if room, ok := h.rooms[roomID]; ok {
		for _, client := range room {
			if client.ID != excludeID {
				if err := client.trySend(message); err != nil {
					log.Printf("Client %s dropped message: %v", client.ID, err)
				}
			}
		}
	}
}

// notifyUserStatusLocked рассылает смену статуса всем соединениям
// других пользователей.
func (h *Hub) notifyUserStatusLocked(userID uuid.UUID, status string) {
	data, err := Marshal(EventUserStatus, nil, userID, map[string]interface{}{
		"user_id": userID,
		"status":  status,
	})
	if err != nil {
		return
	}

	for _, client := range h.clients {
		if client.UserID == userID {
			continue
		}
		client.trySend(data)
	}
}

func (h *Hub) mirrorStatus(userID uuid.UUID, status string) {
	if h.presence == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := h.presence.SetStatus(ctx, userID, status); err != nil {
		log.Printf("Failed to mirror presence for %s: %v", userID, err)
	}
}

func (h *Hub) ping() {
	h.mu.RLock()
	defer h.mu.RUnlock()

	data, err := Marshal(EventPing, nil, uuid.Nil, nil)
	if err != nil {
		return
	}

	for _, client := range h.clients {
		client.trySend(data)
	}
}

// IsOnline сообщает, есть ли у пользователя хоть одно живое соединение.
func (h *Hub) IsOnline(userID uuid.UUID) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()

	return len(h.userClients[userID]) > 0
}

// IsUserInRoom сообщает, подписано ли хоть одно соединение пользователя
// на комнату.
func (h *Hub) IsUserInRoom(userID uuid.UUID, roomID uuid.UUID) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()

	room, ok := h.rooms[roomID]
	if !ok {
		return false
	}
	for _, client := range room {
		if client.UserID == userID {
			return true
		}
	}
	return false
}

// OnlineUsers возвращает список онлайн пользователей
func (h *Hub) OnlineUsers() []uuid.UUID {
	h.mu.RLock()
	defer h.mu.RUnlock()

	users := make([]uuid.UUID, 0, len(h.userClients))
	for userID := range h.userClients {
		users = append(users, userID)
	}
	return users
}

// Presence отвечает online/offline по множеству пользователей,
// только из памяти, без обращения к хранилищу.
func (h *Hub) Presence(userIDs []uuid.UUID) map[uuid.UUID]string {
	h.mu.RLock()
	defer h.mu.RUnlock()

	statuses := make(map[uuid.UUID]string, len(userIDs))
	for _, id := range userIDs {
		if len(h.userClients[id]) > 0 {
			statuses[id] = StatusOnline
		} else {
			statuses[id] = StatusOffline
		}
	}
	return statuses
}

// RoomUsers возвращает список пользователей в комнате
func (h *Hub) RoomUsers(roomID uuid.UUID) []uuid.UUID {
	h.mu.RLock()
	defer h.mu.RUnlock()

	userMap := make(map[uuid.UUID]bool)
	if room, ok := h.rooms[roomID]; ok {
		for _, client := range room {
			userMap[client.UserID] = true
		}
	}

	users := make([]uuid.UUID, 0, len(userMap))
	for userID := range userMap {
		users = append(users, userID)
	}
	return users
}
