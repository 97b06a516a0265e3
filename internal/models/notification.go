package models

import (
	"github.com/google/uuid"
	"time"
)

type NotificationType string

const (
	NotificationTaskAssigned        NotificationType = "task-assigned"
	NotificationTaskUpdated         NotificationType = "task-updated"
	NotificationTaskCompleted       NotificationType = "task-completed"
	NotificationTaskOverdue         NotificationType = "task-overdue"
	NotificationDeadlineApproaching NotificationType = "deadline-approaching"
	NotificationCommentAdded        NotificationType = "comment-added"
	NotificationStatusChanged       NotificationType = "status-changed"
	NotificationReviewRequested     NotificationType = "review-requested"
	NotificationNewMessage          NotificationType = "new-message"
)

const (
	PriorityLow    = "low"
	PriorityMedium = "medium"
	PriorityHigh   = "high"
)

// Notification — персистентное уведомление для офлайн-получателей,
// живет независимо от чатов и задач.
type Notification struct {
	ID           uuid.UUID        `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	UserID       uuid.UUID        `gorm:"type:uuid;not null;index" json:"user_id"`
	Type         NotificationType `gorm:"not null" json:"type"`
	Title        string           `json:"title"`
	Message      string           `json:"message"`
	TaskID       *uuid.UUID       `gorm:"type:uuid" json:"task_id,omitempty"`
	ChatID       *uuid.UUID       `gorm:"type:uuid" json:"chat_id,omitempty"`
	MessageID    *uuid.UUID       `gorm:"type:uuid" json:"message_id,omitempty"`
	SourceUserID *uuid.UUID       `gorm:"type:uuid" json:"source_user_id,omitempty"`
	Read         bool             `gorm:"not null;default:false" json:"read"`
	Priority     string           `gorm:"default:'medium'" json:"priority"`
	CompanyID    *uuid.UUID       `gorm:"type:uuid" json:"company_id,omitempty"`
	CreatedAt    time.Time        `json:"created_at"`
}
