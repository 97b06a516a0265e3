package database

import (
	"testing"

	"github.com/google/uuid"

	"github.com/thereayou/pulse/internal/models"
)

func TestGetOrCreateDirectChatSinglePerPair(t *testing.T) {
	d := newTestStore(t)
	alice, bob := uuid.New(), uuid.New()

	first, err := d.GetOrCreateDirectChat(alice, bob)
	if err != nil {
		t.Fatal(err)
	}
	if first.Type != models.ChatTypeDirect {
		t.Fatalf("chat type = %q", first.Type)
	}
	if !first.HasParticipant(alice) || !first.HasParticipant(bob) {
		t.Fatal("both users must be participants")
	}

	// Обратный порядок аргументов возвращает тот же чат
	second, err := d.GetOrCreateDirectChat(bob, alice)
	if err != nil {
		t.Fatal(err)
	}
	if second.ID != first.ID {
		t.Fatalf("pair produced two chats: %s and %s", first.ID, second.ID)
	}

	var count int64
	if err := d.db.Model(&models.Chat{}).Count(&count).Error; err != nil {
		t.Fatal(err)
	}
	if count != 1 {
		t.Fatalf("chats in store = %d, want 1", count)
	}
}

// Проигравший гонку создания упирается в уникальный индекс
// и забирает чат победителя.
func TestGetOrCreateDirectChatSurvivesLostRace(t *testing.T) {
	d := newTestStore(t)
	alice, bob := uuid.New(), uuid.New()

	winner, err := d.GetOrCreateDirectChat(alice, bob)
	if err != nil {
		t.Fatal(err)
	}

	// Чат победителя уже в базе, вторая вставка с тем же ключом
	// нарушает уникальность — ровно то, что видит проигравший
	key := models.DirectChatKey(alice, bob)
	dup := models.Chat{
		Type:      models.ChatTypeDirect,
		CreatedBy: bob,
		DirectKey: &key,
	}
	if err := d.CreateChat(&dup, []uuid.UUID{alice}); err == nil {
		t.Fatal("duplicate direct key must be rejected by the unique index")
	}

	got, err := d.GetOrCreateDirectChat(bob, alice)
	if err != nil {
		t.Fatal(err)
	}
	if got.ID != winner.ID {
		t.Fatalf("loser got chat %s, want winner's %s", got.ID, winner.ID)
	}
}
