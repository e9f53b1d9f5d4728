package cache

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewRedis_InvalidURL(t *testing.T) {
	r, err := NewRedis(context.Background(), "http://localhost:6379")
	assert.Error(t, err)
	assert.Nil(t, r)
}

func TestRedis_UnlockWithoutLock(t *testing.T) {
	r := &Redis{tokens: make(map[string]string)}
	assert.NoError(t, r.Unlock(context.Background(), "bulk-generate:school-1:202401"))
}
