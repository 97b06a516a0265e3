package dto

import (
	"time"

	"github.com/google/uuid"
	"github.com/thereayou/pulse/internal/models"
)

// MessagePayload — входящее сообщение из send_message.
type MessagePayload struct {
	Content     string              `json:"content"`
	Type        string              `json:"type,omitempty"` // text, image, file
	ReplyTo     *uuid.UUID          `json:"reply_to,omitempty"`
	Attachments []AttachmentPayload `json:"attachments,omitempty"`
}

type AttachmentPayload struct {
	URL  string `json:"url"`
	Name string `json:"name,omitempty"`
	Size int64  `json:"size,omitempty"`
}

// MessageResponse — исходящее представление сообщения.
type MessageResponse struct {
	ID          uuid.UUID               `json:"id"`
	ChatID      uuid.UUID               `json:"chat_id"`
	SenderID    uuid.UUID               `json:"sender_id"`
	Content     string                  `json:"content"`
	Type        string                  `json:"type"`
	ReplyTo     *uuid.UUID              `json:"reply_to,omitempty"`
	IsDeleted   bool                    `json:"is_deleted"`
	Edited      bool                    `json:"edited"`
	CreatedAt   time.Time               `json:"created_at"`
	Sender      UserInfo                `json:"sender"`
	Attachments []AttachmentPayload     `json:"attachments,omitempty"`
	Reactions   []ReactionInfo          `json:"reactions,omitempty"`
	ReadBy      map[uuid.UUID]time.Time `json:"read_by,omitempty"`
	DeliveredTo map[uuid.UUID]time.Time `json:"delivered_to,omitempty"`
}

type ReactionInfo struct {
	UserID uuid.UUID `json:"user_id"`
	Emoji  string    `json:"emoji"`
}

type UserInfo struct {
	ID        uuid.UUID `json:"id"`
	Username  string    `json:"username"`
	AvatarURL string    `json:"avatar_url,omitempty"`
}

// NewMessageResponse собирает представление из модели и ее связей.
func NewMessageResponse(msg *models.Message) MessageResponse {
	resp := MessageResponse{
		ID:          msg.ID,
		ChatID:      msg.ChatID,
		SenderID:    msg.SenderID,
		Content:     msg.Content,
		Type:        msg.Type,
		ReplyTo:     msg.ReplyToID,
		IsDeleted:   msg.IsDeleted,
		Edited:      msg.Edited,
		CreatedAt:   msg.CreatedAt,
		ReadBy:      msg.ReadBy(),
		DeliveredTo: msg.DeliveredTo(),
	}

	if msg.Sender.ID != uuid.Nil {
		resp.Sender = UserInfo{
			ID:        msg.Sender.ID,
			Username:  msg.Sender.Username,
			AvatarURL: msg.Sender.AvatarURL,
		}
	}

	for _, a := range msg.Attachments {
		resp.Attachments = append(resp.Attachments, AttachmentPayload{
			URL:  a.URL,
			Name: a.Name,
			Size: a.Size,
		})
	}

	for _, r := range msg.Reactions {
		resp.Reactions = append(resp.Reactions, ReactionInfo{
			UserID: r.UserID,
			Emoji:  r.Emoji,
		})
	}

	return resp
}
