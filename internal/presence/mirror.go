package presence

import (
	"context"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
)

const keyPrefix = "presence:"

// RedisMirror дублирует онлайн-статус в Redis. Живые запросы статуса
// отвечает hub из памяти, зеркало читают внешние сервисы.
type RedisMirror struct {
	rdb *redis.Client
}

func NewRedisMirror(rdb *redis.Client) *RedisMirror {
	return &RedisMirror{rdb: rdb}
}

func (m *RedisMirror) SetStatus(ctx context.Context, userID uuid.UUID, status string) error {
	return m.rdb.HSet(ctx, keyPrefix+userID.String(),
		"status", status,
		"last_active", time.Now().UTC().Format(time.RFC3339),
	).Err()
}
