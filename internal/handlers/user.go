package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/thereayou/pulse/internal/database"
	"github.com/thereayou/pulse/internal/middleware"
	"github.com/thereayou/pulse/internal/models"
	"github.com/thereayou/pulse/internal/ws"
)

// UserPresence — живой статус соединений для пользовательских ответов.
type UserPresence interface {
	IsOnline(userID uuid.UUID) bool
}

type UserHandler struct {
	db  *database.Database
	hub UserPresence
}

func NewUserHandler(db *database.Database, hub UserPresence) *UserHandler {
	return &UserHandler{db: db, hub: hub}
}

func (h *UserHandler) status(userID uuid.UUID) string {
	if h.hub != nil && h.hub.IsOnline(userID) {
		return ws.StatusOnline
	}
	return ws.StatusOffline
}

// GetMe возвращает профиль текущего пользователя вместе со счетчиком
// непрочитанных уведомлений.
func (h *UserHandler) GetMe(c *gin.Context) {
	userID := c.MustGet(middleware.UserIDKey).(uuid.UUID)

	user, err := h.db.GetUser(userID.String())
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "user not found"})
		return
	}

	unread, err := h.db.CountUnreadNotifications(userID)
	if err != nil {
		unread = 0
	}

	c.JSON(http.StatusOK, gin.H{
		"user":                 user,
		"unread_notifications": unread,
	})
}

// UpdateMe обновляет только переданные поля профиля.
func (h *UserHandler) UpdateMe(c *gin.Context) {
	userID := c.MustGet(middleware.UserIDKey).(uuid.UUID)

	var req struct {
		Username  string `json:"username" binding:"omitempty,min=3,max=50"`
		AvatarURL string `json:"avatar_url"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	user, err := h.db.GetUser(userID.String())
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "user not found"})
		return
	}

	if req.Username != "" {
		user.Username = req.Username
	}
	if req.AvatarURL != "" {
		user.AvatarURL = req.AvatarURL
	}

	if err := h.db.UpdateUser(user); err != nil {
		c.JSON(http.StatusConflict, gin.H{"error": "username already taken"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"user": user})
}

// GetUser возвращает чужой профиль: без email, но с живым статусом.
func (h *UserHandler) GetUser(c *gin.Context) {
	userID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid user id"})
		return
	}

	user, err := h.db.GetUser(userID.String())
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "user not found"})
		return
	}

	c.JSON(http.StatusOK, h.publicProfile(user))
}

// SearchUsers ищет пользователей по username, не включая самого
// запрашивающего.
func (h *UserHandler) SearchUsers(c *gin.Context) {
	userID := c.MustGet(middleware.UserIDKey).(uuid.UUID)

	query := c.Query("q")
	if query == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "query parameter is required"})
		return
	}

	users, err := h.db.SearchUsersByUsername(query)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to search users"})
		return
	}

	result := make([]gin.H, 0, len(users))
	for i := range users {
		if users[i].ID == userID {
			continue
		}
		result = append(result, h.publicProfile(&users[i]))
	}

	c.JSON(http.StatusOK, gin.H{"users": result})
}

func (h *UserHandler) publicProfile(user *models.User) gin.H {
	return gin.H{
		"id":           user.ID,
		"username":     user.Username,
		"avatar_url":   user.AvatarURL,
		"status":       h.status(user.ID),
		"last_seen_at": user.LastSeenAt,
	}
}
