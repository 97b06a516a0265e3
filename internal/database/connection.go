package database

import (
	"errors"
	"os"

	"github.com/thereayou/pulse/internal/models"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

type Database struct {
	db *gorm.DB
}

func NewDatabase(db *gorm.DB) *Database {
	return &Database{db: db}
}

// Connect открывает соединение, прогоняет миграции всех таблиц
// и возвращает готовое хранилище.
func Connect() (*Database, error) {
	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		return nil, errors.New("DATABASE_URL is not set")
	}

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, err
	}

	err = db.AutoMigrate(
		&models.User{},
		&models.Chat{},
		&models.ChatParticipant{},
		&models.Message{},
		&models.MessageAttachment{},
		&models.MessageReceipt{},
		&models.MessageReaction{},
		&models.MessageHide{},
		&models.MessageEdit{},
		&models.Notification{},
		&models.Task{},
	)
	if err != nil {
		return nil, err
	}

	return NewDatabase(db), nil
}
