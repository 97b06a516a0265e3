package models

import (
	"testing"

	"github.com/google/uuid"
)

func TestDirectChatKeyOrderIndependent(t *testing.T) {
	a, b := uuid.New(), uuid.New()

	if DirectChatKey(a, b) != DirectChatKey(b, a) {
		t.Fatal("pair key must not depend on argument order")
	}

	c := uuid.New()
	if DirectChatKey(a, b) == DirectChatKey(a, c) {
		t.Fatal("different pairs must get different keys")
	}
}
