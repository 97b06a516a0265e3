package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/thereayou/pulse/internal/database"
	"github.com/thereayou/pulse/internal/handlers/dto"
	"github.com/thereayou/pulse/internal/middleware"
	"github.com/thereayou/pulse/internal/models"
	"github.com/thereayou/pulse/internal/ws"
)

type ChatHandler struct {
	db     *database.Database
	hub    *ws.Hub
	engine *EventHandler
}

func NewChatHandler(db *database.Database, hub *ws.Hub, engine *EventHandler) *ChatHandler {
	return &ChatHandler{db: db, hub: hub, engine: engine}
}

// CreateChat создает групповой чат, создатель становится админом
func (h *ChatHandler) CreateChat(c *gin.Context) {
	userID := c.MustGet(middleware.UserIDKey).(uuid.UUID)

	var req struct {
		Name           string   `json:"name" binding:"required"`
		Description    string   `json:"description"`
		AvatarURL      string   `json:"avatar_url"`
		ParticipantIDs []string `json:"participant_ids"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var participantIDs []uuid.UUID
	for _, raw := range req.ParticipantIDs {
		id, err := uuid.Parse(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid participant id"})
			return
		}
		participantIDs = append(participantIDs, id)
	}

	chat := &models.Chat{
		Type:        models.ChatTypeGroup,
		Name:        req.Name,
		Description: req.Description,
		AvatarURL:   req.AvatarURL,
		CreatedBy:   userID,
		CreatedAt:   time.Now(),
	}

	if err := h.db.CreateChat(chat, participantIDs); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create chat"})
		return
	}

	fullChat, _ := h.db.GetChat(chat.ID.String())

	c.JSON(http.StatusCreated, formatChatResponse(fullChat))
}

// CreateDirectChat создает или получает личный чат двух пользователей
func (h *ChatHandler) CreateDirectChat(c *gin.Context) {
	userID := c.MustGet(middleware.UserIDKey).(uuid.UUID)

	var req struct {
		UserID string `json:"user_id" binding:"required"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	targetUserID, err := uuid.Parse(req.UserID)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid user id"})
		return
	}

	if userID == targetUserID {
		c.JSON(http.StatusBadRequest, gin.H{"error": "cannot create direct chat with yourself"})
		return
	}

	chat, err := h.db.GetOrCreateDirectChat(userID, targetUserID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create direct chat"})
		return
	}

	c.JSON(http.StatusOK, formatChatResponse(chat))
}

// GetMyChats возвращает чаты пользователя со счетчиком непрочитанных
// и последним сообщением
func (h *ChatHandler) GetMyChats(c *gin.Context) {
	userID := c.MustGet(middleware.UserIDKey).(uuid.UUID)

	chats, err := h.db.GetUserChats(userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to get chats"})
		return
	}

	chatsResponse := make([]gin.H, len(chats))
	for i, chat := range chats {
		chatResponse := formatChatResponse(&chat)

		for _, p := range chat.Participants {
			if p.UserID == userID {
				chatResponse["unread"] = p.Unread
				break
			}
		}

		messages, _ := h.db.GetChatMessages(chat.ID.String(), userID, 1, nil)
		if len(messages) > 0 {
			chatResponse["last_message"] = gin.H{
				"id":         messages[0].ID,
				"content":    messages[0].Content,
				"sender_id":  messages[0].SenderID,
				"created_at": messages[0].CreatedAt,
			}
		}

		chatResponse["online_count"] = len(h.hub.RoomUsers(chat.ID))

		chatsResponse[i] = chatResponse
	}

	c.JSON(http.StatusOK, gin.H{"chats": chatsResponse})
}

// GetChat возвращает один чат
func (h *ChatHandler) GetChat(c *gin.Context) {
	userID := c.MustGet(middleware.UserIDKey).(uuid.UUID)

	chat, ok := h.participantChat(c, userID)
	if !ok {
		return
	}

	response := formatChatResponse(chat)
	response["online_users"] = h.hub.RoomUsers(chat.ID)

	c.JSON(http.StatusOK, response)
}

// UpdateChat обновляет метаданные группового чата, только для админов
func (h *ChatHandler) UpdateChat(c *gin.Context) {
	userID := c.MustGet(middleware.UserIDKey).(uuid.UUID)

	chat, ok := h.participantChat(c, userID)
	if !ok {
		return
	}

	if chat.Type != models.ChatTypeGroup {
		c.JSON(http.StatusBadRequest, gin.H{"error": "cannot update direct chat"})
		return
	}
	if !chat.IsAdmin(userID) {
		c.JSON(http.StatusForbidden, gin.H{"error": "only admins can update chat"})
		return
	}

	var req struct {
		Name        string `json:"name"`
		Description string `json:"description"`
		AvatarURL   string `json:"avatar_url"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	// Обновляем только переданные поля
	if req.Name != "" {
		chat.Name = req.Name
	}
	if req.Description != "" {
		chat.Description = req.Description
	}
	if req.AvatarURL != "" {
		chat.AvatarURL = req.AvatarURL
	}

	if err := h.db.UpdateChat(chat); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to update chat"})
		return
	}

	c.JSON(http.StatusOK, formatChatResponse(chat))
}

// AddParticipant добавляет участника в групповой чат, только для админов
func (h *ChatHandler) AddParticipant(c *gin.Context) {
	userID := c.MustGet(middleware.UserIDKey).(uuid.UUID)

	chat, ok := h.participantChat(c, userID)
	if !ok {
		return
	}

	if chat.Type != models.ChatTypeGroup {
		c.JSON(http.StatusBadRequest, gin.H{"error": "cannot add participants to direct chat"})
		return
	}
	if !chat.IsAdmin(userID) {
		c.JSON(http.StatusForbidden, gin.H{"error": "only admins can add participants"})
		return
	}

	var req struct {
		UserID string `json:"user_id" binding:"required"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	newUserID, err := uuid.Parse(req.UserID)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid user id"})
		return
	}

	if chat.HasParticipant(newUserID) {
		c.JSON(http.StatusOK, gin.H{"message": "already a participant"})
		return
	}

	if err := h.db.AddParticipant(chat.ID, newUserID, false); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to add participant"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "participant added"})
}

// RemoveParticipant удаляет участника, только для админов.
// Последнего админа удалить нельзя.
func (h *ChatHandler) RemoveParticipant(c *gin.Context) {
	userID := c.MustGet(middleware.UserIDKey).(uuid.UUID)

	chat, ok := h.participantChat(c, userID)
	if !ok {
		return
	}

	if chat.Type != models.ChatTypeGroup {
		c.JSON(http.StatusBadRequest, gin.H{"error": "cannot remove participants from direct chat"})
		return
	}
	if !chat.IsAdmin(userID) {
		c.JSON(http.StatusForbidden, gin.H{"error": "only admins can remove participants"})
		return
	}

	targetID, err := uuid.Parse(c.Param("userId"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid user id"})
		return
	}

	if chat.IsAdmin(targetID) && chat.AdminCount() == 1 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "cannot remove the last admin"})
		return
	}

	if err := h.db.RemoveParticipant(chat.ID, targetID); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to remove participant"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "participant removed"})
}

// LeaveChat — выход из группового чата. Единственный админ не может
// уйти, пока в чате есть другие участники.
func (h *ChatHandler) LeaveChat(c *gin.Context) {
	userID := c.MustGet(middleware.UserIDKey).(uuid.UUID)

	chat, ok := h.participantChat(c, userID)
	if !ok {
		return
	}

	if chat.Type != models.ChatTypeGroup {
		c.JSON(http.StatusBadRequest, gin.H{"error": "cannot leave direct chat"})
		return
	}

	if chat.IsAdmin(userID) && chat.AdminCount() == 1 && len(chat.Participants) > 1 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "promote another admin before leaving"})
		return
	}

	if err := h.db.RemoveParticipant(chat.ID, userID); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to leave chat"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "left chat successfully"})
}

// SetAdmin назначает или снимает админа, только для админов
func (h *ChatHandler) SetAdmin(c *gin.Context) {
	userID := c.MustGet(middleware.UserIDKey).(uuid.UUID)

	chat, ok := h.participantChat(c, userID)
	if !ok {
		return
	}

	if chat.Type != models.ChatTypeGroup || !chat.IsAdmin(userID) {
		c.JSON(http.StatusForbidden, gin.H{"error": "only group admins can manage admins"})
		return
	}

	var req struct {
		UserID string `json:"user_id" binding:"required"`
		Admin  *bool  `json:"admin" binding:"required"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	targetID, err := uuid.Parse(req.UserID)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid user id"})
		return
	}
	if !chat.HasParticipant(targetID) {
		c.JSON(http.StatusNotFound, gin.H{"error": "user is not a participant"})
		return
	}

	if !*req.Admin && chat.IsAdmin(targetID) && chat.AdminCount() == 1 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "cannot demote the last admin"})
		return
	}

	if err := h.db.SetAdmin(chat.ID, targetID, *req.Admin); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to update admin"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "admin updated"})
}

// GetChatMessages возвращает историю чата с пагинацией. Сообщения,
// удаленные запрашивающим для себя, в выдачу не попадают.
func (h *ChatHandler) GetChatMessages(c *gin.Context) {
	userID := c.MustGet(middleware.UserIDKey).(uuid.UUID)

	chat, ok := h.participantChat(c, userID)
	if !ok {
		return
	}

	// Параметры пагинации
	limit := 50
	if l := c.Query("limit"); l != "" {
		if parsed, err := strconv.Atoi(l); err == nil && parsed > 0 && parsed <= 100 {
			limit = parsed
		}
	}

	var beforeID *uuid.UUID
	if before := c.Query("before"); before != "" {
		if id, err := uuid.Parse(before); err == nil {
			beforeID = &id
		}
	}

	messages, err := h.db.GetChatMessages(chat.ID.String(), userID, limit, beforeID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to get messages"})
		return
	}

	result := make([]dto.MessageResponse, len(messages))
	for i := range messages {
		result[i] = dto.NewMessageResponse(&messages[i])
	}

	c.JSON(http.StatusOK, gin.H{
		"messages": result,
		"has_more": len(messages) == limit,
	})
}

// EditMessage редактирует сообщение через движок: прежний контент
// сохраняется в историю правок, комната получает message_edited
func (h *ChatHandler) EditMessage(c *gin.Context) {
	userID := c.MustGet(middleware.UserIDKey).(uuid.UUID)

	messageID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid message id"})
		return
	}

	var req struct {
		Content string `json:"content" binding:"required"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	message, err := h.engine.EditMessage(userID, messageID, req.Content)
	if err != nil {
		switch err {
		case ws.ErrNotFound:
			c.JSON(http.StatusNotFound, gin.H{"error": "message not found"})
		case ws.ErrForbidden:
			c.JSON(http.StatusForbidden, gin.H{"error": "you can only edit your own messages"})
		case ws.ErrValidation:
			c.JSON(http.StatusBadRequest, gin.H{"error": "content is required"})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to edit message"})
		}
		return
	}

	c.JSON(http.StatusOK, dto.NewMessageResponse(message))
}

// GetMessageEdits возвращает историю правок сообщения
func (h *ChatHandler) GetMessageEdits(c *gin.Context) {
	userID := c.MustGet(middleware.UserIDKey).(uuid.UUID)

	messageID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid message id"})
		return
	}

	message, err := h.db.GetMessage(messageID.String())
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "message not found"})
		return
	}

	chat, err := h.db.GetChat(message.ChatID.String())
	if err != nil || !chat.HasParticipant(userID) {
		c.JSON(http.StatusForbidden, gin.H{"error": "you are not a member of this chat"})
		return
	}

	edits, err := h.db.GetMessageEdits(messageID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to get edit history"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"edits": edits})
}

// participantChat загружает чат из :id и проверяет членство
func (h *ChatHandler) participantChat(c *gin.Context, userID uuid.UUID) (*models.Chat, bool) {
	chat, err := h.db.GetChat(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "chat not found"})
		return nil, false
	}

	if !chat.HasParticipant(userID) {
		c.JSON(http.StatusForbidden, gin.H{"error": "you are not a member of this chat"})
		return nil, false
	}

	return chat, true
}

// formatChatResponse форматирует ответ для чата
func formatChatResponse(chat *models.Chat) gin.H {
	participants := make([]gin.H, len(chat.Participants))
	for i, p := range chat.Participants {
		participants[i] = gin.H{
			"id":         p.UserID,
			"username":   p.User.Username,
			"avatar_url": p.User.AvatarURL,
			"is_admin":   p.IsAdmin,
		}
	}

	return gin.H{
		"id":           chat.ID,
		"type":         chat.Type,
		"name":         chat.Name,
		"description":  chat.Description,
		"avatar_url":   chat.AvatarURL,
		"created_by":   chat.CreatedBy,
		"created_at":   chat.CreatedAt,
		"participants": participants,
	}
}
