package ws

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
)

type stubChats struct {
	ids []uuid.UUID
	err error
}

func (s *stubChats) GetUserChatIDs(userID uuid.UUID) ([]uuid.UUID, error) {
	return s.ids, s.err
}

type stubMirror struct {
	statuses map[uuid.UUID]string
}

func (s *stubMirror) SetStatus(ctx context.Context, userID uuid.UUID, status string) error {
	if s.statuses == nil {
		s.statuses = make(map[uuid.UUID]string)
	}
	s.statuses[userID] = status
	return nil
}

func startHub(t *testing.T, chats ChatSource) *Hub {
	t.Helper()
	hub := NewHub(chats, nil)
	go hub.Run()
	t.Cleanup(hub.Stop)
	return hub
}

func registerAndWait(t *testing.T, hub *Hub, client *Client) {
	t.Helper()
	hub.Register(client)
	deadline := time.Now().Add(time.Second)
	for !hub.IsOnline(client.UserID) {
		if time.Now().After(deadline) {
			t.Fatalf("client %s never registered", client.ID)
		}
		time.Sleep(time.Millisecond)
	}
}

func unregisterAndWait(t *testing.T, hub *Hub, client *Client) {
	t.Helper()
	hub.Unregister(client)
	deadline := time.Now().Add(time.Second)
	for hub.IsOnline(client.UserID) {
		if time.Now().After(deadline) {
			t.Fatalf("client %s never unregistered", client.ID)
		}
		time.Sleep(time.Millisecond)
	}
}

// recvEvent вычитывает события клиента, пока не встретит нужный тип.
func recvEvent(t *testing.T, client *Client, want EventType) *Event {
	t.Helper()
	for {
		select {
		case data := <-client.Send:
			var ev Event
			if err := json.Unmarshal(data, &ev); err != nil {
				t.Fatalf("bad event payload: %v", err)
			}
			if ev.Type == want {
				return &ev
			}
		case <-time.After(time.Second):
			t.Fatalf("no %s event received", want)
		}
	}
}

func TestRegisterJoinsPersonalAndChatRooms(t *testing.T) {
	chatID := uuid.New()
	hub := startHub(t, &stubChats{ids: []uuid.UUID{chatID}})

	client := NewClient(hub, nil, uuid.New())
	registerAndWait(t, hub, client)

	if !client.IsInRoom(client.UserID) {
		t.Error("client is not in its personal room")
	}
	if !client.IsInRoom(chatID) {
		t.Error("client is not auto-joined to its chat room")
	}
	if !hub.IsUserInRoom(client.UserID, chatID) {
		t.Error("hub does not see the client in the chat room")
	}
}

func TestRegisterSurvivesChatEnumerationFailure(t *testing.T) {
	hub := startHub(t, &stubChats{err: errors.New("storage down")})

	client := NewClient(hub, nil, uuid.New())
	registerAndWait(t, hub, client)

	if !hub.IsOnline(client.UserID) {
		t.Fatal("client must stay registered when chat enumeration fails")
	}
	if got := len(client.GetRooms()); got != 1 {
		t.Errorf("expected only the personal room, got %d rooms", got)
	}
}

func TestBroadcastExceptSkipsSender(t *testing.T) {
	chatID := uuid.New()
	hub := startHub(t, &stubChats{ids: []uuid.UUID{chatID}})

	sender := NewClient(hub, nil, uuid.New())
	receiver := NewClient(hub, nil, uuid.New())
	registerAndWait(t, hub, sender)
	registerAndWait(t, hub, receiver)

	data, err := Marshal(EventNewMessage, &chatID, sender.UserID, map[string]string{"content": "hi"})
	if err != nil {
		t.Fatal(err)
	}
	hub.BroadcastToRoomExcept(chatID, sender.ID, data)

	recvEvent(t, receiver, EventNewMessage)

	// Отправитель не должен получить собственную рассылку
	for {
		select {
		case raw := <-sender.Send:
			var ev Event
			json.Unmarshal(raw, &ev)
			if ev.Type == EventNewMessage {
				t.Fatal("sender received its own broadcast")
			}
		default:
			return
		}
	}
}

func TestDisconnectRevokesRoomMembership(t *testing.T) {
	chatID := uuid.New()
	hub := startHub(t, &stubChats{ids: []uuid.UUID{chatID}})

	gone := NewClient(hub, nil, uuid.New())
	stay := NewClient(hub, nil, uuid.New())
	registerAndWait(t, hub, gone)
	registerAndWait(t, hub, stay)

	unregisterAndWait(t, hub, gone)

	if hub.IsUserInRoom(gone.UserID, chatID) {
		t.Error("disconnected client still counted as room member")
	}

	data, _ := Marshal(EventNewMessage, &chatID, stay.UserID, nil)
	hub.BroadcastToRoomExcept(chatID, stay.ID, data)

	// Канал закрыт при unregister: рассылка не должна дойти
	select {
	case raw, ok := <-gone.Send:
		if ok && len(raw) > 0 {
			var ev Event
			json.Unmarshal(raw, &ev)
			if ev.Type == EventNewMessage {
				t.Error("broadcast reached a disconnected client")
			}
		}
	default:
	}
}

func TestUserStatusBroadcastOnConnectAndDisconnect(t *testing.T) {
	hub := startHub(t, &stubChats{})

	watcher := NewClient(hub, nil, uuid.New())
	registerAndWait(t, hub, watcher)

	other := NewClient(hub, nil, uuid.New())
	registerAndWait(t, hub, other)

	ev := recvEvent(t, watcher, EventUserStatus)
	var payload struct {
		UserID uuid.UUID `json:"user_id"`
		Status string    `json:"status"`
	}
	if err := json.Unmarshal(ev.Data, &payload); err != nil {
		t.Fatal(err)
	}
	if payload.UserID != other.UserID || payload.Status != StatusOnline {
		t.Errorf("unexpected status payload: %+v", payload)
	}

	unregisterAndWait(t, hub, other)

	ev = recvEvent(t, watcher, EventUserStatus)
	if err := json.Unmarshal(ev.Data, &payload); err != nil {
		t.Fatal(err)
	}
	if payload.Status != StatusOffline {
		t.Errorf("expected offline status, got %q", payload.Status)
	}
}

func TestSecondConnectionKeepsUserOnline(t *testing.T) {
	hub := startHub(t, &stubChats{})

	userID := uuid.New()
	first := NewClient(hub, nil, userID)
	second := NewClient(hub, nil, userID)
	registerAndWait(t, hub, first)
	registerAndWait(t, hub, second)

	unregisterAndWait2 := func(c *Client) {
		hub.Unregister(c)
		time.Sleep(20 * time.Millisecond)
	}
	unregisterAndWait2(first)

	if !hub.IsOnline(userID) {
		t.Fatal("user went offline while a second connection is still alive")
	}

	// Рассылка на пользователя уходит на оставшееся соединение
	data, _ := Marshal(EventNotification, nil, userID, nil)
	hub.SendToUser(userID, data)
	recvEvent(t, second, EventNotification)
}

func TestPresenceAnswersFromMemory(t *testing.T) {
	hub := startHub(t, &stubChats{})

	online := NewClient(hub, nil, uuid.New())
	registerAndWait(t, hub, online)
	offlineID := uuid.New()

	statuses := hub.Presence([]uuid.UUID{online.UserID, offlineID})
	if statuses[online.UserID] != StatusOnline {
		t.Errorf("expected %s online", online.UserID)
	}
	if statuses[offlineID] != StatusOffline {
		t.Errorf("expected %s offline", offlineID)
	}
}

func TestPresenceMirrorOnConnect(t *testing.T) {
	mirror := &stubMirror{}
	hub := NewHub(&stubChats{}, mirror)
	go hub.Run()
	t.Cleanup(hub.Stop)

	client := NewClient(hub, nil, uuid.New())
	registerAndWait(t, hub, client)

	deadline := time.Now().Add(time.Second)
	for mirror.statuses[client.UserID] != StatusOnline {
		if time.Now().After(deadline) {
			t.Fatalf("mirror never saw online status, got %q", mirror.statuses[client.UserID])
		}
		time.Sleep(time.Millisecond)
	}
}

func TestJoinAndLeaveAreIdempotent(t *testing.T) {
	hub := startHub(t, &stubChats{})

	client := NewClient(hub, nil, uuid.New())
	registerAndWait(t, hub, client)

	roomID := uuid.New()
	hub.JoinRoom(client, roomID)
	hub.JoinRoom(client, roomID)

	if users := hub.RoomUsers(roomID); len(users) != 1 {
		t.Fatalf("expected 1 room member, got %d", len(users))
	}

	hub.LeaveRoom(client, roomID)
	hub.LeaveRoom(client, roomID)

	if users := hub.RoomUsers(roomID); len(users) != 0 {
		t.Fatalf("expected empty room, got %d members", len(users))
	}
}

func TestStopIsPanicFreeForInFlightSenders(t *testing.T) {
	hub := NewHub(&stubChats{}, nil)
	go hub.Run()

	client := NewClient(hub, nil, uuid.New())
	registerAndWait(t, hub, client)

	hub.Stop()

	// Очередь закрыта: отправка возвращает ошибку вместо паники
	if err := client.SendEvent(EventPing, nil, nil); err != ErrClientClosed {
		t.Fatalf("expected ErrClientClosed, got %v", err)
	}

	// Отложенный Unregister из ReadPump не зависает без получателя
	done := make(chan struct{})
	go func() {
		hub.Unregister(client)
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Unregister blocked after Stop")
	}
}
