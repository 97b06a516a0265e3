package models

import (
	"github.com/google/uuid"
	"time"
)

// Task — минимальная проекция задачи, достаточная для сканера дедлайнов.
// Полноценный CRUD задач живет во внешнем сервисе.
type Task struct {
	ID               uuid.UUID  `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	Title            string     `gorm:"not null"`
	AssigneeID       uuid.UUID  `gorm:"type:uuid;not null;index"`
	CreatedBy        uuid.UUID  `gorm:"type:uuid"`
	Status           string     `gorm:"default:'open'"`
	Priority         string     `gorm:"default:'medium'"`
	DueDate          time.Time  `gorm:"index"`
	NotifiedOverdue  bool       `gorm:"not null;default:false"`
	NotifiedDeadline bool       `gorm:"not null;default:false"`
	CompanyID        *uuid.UUID `gorm:"type:uuid"`
	CreatedAt        time.Time
}
