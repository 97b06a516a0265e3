package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	gormdb "gorm.io/gorm"

	"github.com/thereayou/pulse/internal/database"
	"github.com/thereayou/pulse/internal/middleware"
	"github.com/thereayou/pulse/internal/models"
	"github.com/thereayou/pulse/internal/ws"
)

type fakeUserPresence struct {
	online map[uuid.UUID]bool
}

func (f *fakeUserPresence) IsOnline(userID uuid.UUID) bool { return f.online[userID] }

func newUserHandlerFixture(t *testing.T) (*UserHandler, *database.Database, *fakeUserPresence) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	gdb, err := gormdb.Open(sqlite.Open(":memory:"), &gormdb.Config{})
	if err != nil {
		t.Fatalf("sqlite open failed: %v", err)
	}
	ddl := []string{
		`CREATE TABLE users (
			id TEXT PRIMARY KEY, username TEXT UNIQUE, email TEXT UNIQUE,
			password_hash TEXT, avatar_url TEXT, last_seen_at DATETIME,
			created_at DATETIME)`,
		`CREATE TABLE notifications (
			id TEXT PRIMARY KEY, user_id TEXT, type TEXT, title TEXT,
			message TEXT, task_id TEXT, chat_id TEXT, message_id TEXT,
			source_user_id TEXT, read BOOLEAN DEFAULT 0, priority TEXT,
			company_id TEXT, created_at DATETIME)`,
	}
	for _, stmt := range ddl {
		if err := gdb.Exec(stmt).Error; err != nil {
			t.Fatalf("schema setup failed: %v", err)
		}
	}

	db := database.NewDatabase(gdb)
	presence := &fakeUserPresence{online: make(map[uuid.UUID]bool)}
	return NewUserHandler(db, presence), db, presence
}

func seedUser(t *testing.T, db *database.Database, username string) *models.User {
	t.Helper()
	user := &models.User{
		ID:         uuid.New(),
		Username:   username,
		Email:      username + "@local.test",
		LastSeenAt: time.Date(2026, 8, 1, 9, 0, 0, 0, time.UTC),
		CreatedAt:  time.Date(2026, 8, 1, 9, 0, 0, 0, time.UTC),
	}
	if err := db.SaveUser(user); err != nil {
		t.Fatalf("user setup failed: %v", err)
	}
	return user
}

func getJSON(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("bad response body: %v", err)
	}
	return body
}

func TestGetUserCarriesLiveStatus(t *testing.T) {
	h, db, presence := newUserHandlerFixture(t)
	user := seedUser(t, db, "alice")
	presence.online[user.ID] = true

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Params = gin.Params{{Key: "id", Value: user.ID.String()}}

	h.GetUser(c)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
	}
	body := getJSON(t, w)
	if body["status"] != ws.StatusOnline {
		t.Errorf("status = %v, want online", body["status"])
	}
	if _, leaked := body["email"]; leaked {
		t.Error("public profile must not expose email")
	}
	if body["last_seen_at"] == nil {
		t.Error("public profile must carry last_seen_at")
	}
}

func TestGetMeIncludesUnreadNotifications(t *testing.T) {
	h, db, _ := newUserHandlerFixture(t)
	user := seedUser(t, db, "bob")

	n := &models.Notification{
		ID:      uuid.New(),
		UserID:  user.ID,
		Type:    models.NotificationNewMessage,
		Message: "hello",
	}
	if err := db.CreateNotification(n); err != nil {
		t.Fatal(err)
	}

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Set(middleware.UserIDKey, user.ID)

	h.GetMe(c)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
	}
	body := getJSON(t, w)
	if body["unread_notifications"] != float64(1) {
		t.Errorf("unread_notifications = %v, want 1", body["unread_notifications"])
	}
	userBody, ok := body["user"].(map[string]interface{})
	if !ok {
		t.Fatal("user payload missing")
	}
	for _, key := range []string{"PasswordHash", "password_hash"} {
		if _, leaked := userBody[key]; leaked {
			t.Error("password hash leaked into the response")
		}
	}
}

func TestSearchUsersExcludesRequester(t *testing.T) {
	h, db, presence := newUserHandlerFixture(t)
	me := seedUser(t, db, "carol")
	other := seedUser(t, db, "caroline")
	presence.online[other.ID] = true

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Set(middleware.UserIDKey, me.ID)
	c.Request = httptest.NewRequest(http.MethodGet, "/api/v1/users/search?q=caro", nil)

	h.SearchUsers(c)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", w.Code, w.Body.String())
	}
	body := getJSON(t, w)
	users, ok := body["users"].([]interface{})
	if !ok || len(users) != 1 {
		t.Fatalf("users = %v, want exactly the other match", body["users"])
	}
	found := users[0].(map[string]interface{})
	if found["username"] != "caroline" {
		t.Errorf("username = %v", found["username"])
	}
	if found["status"] != ws.StatusOnline {
		t.Errorf("status = %v, want online", found["status"])
	}
}
