package logging

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWithTickID(t *testing.T) {
	ctx := WithTickID(context.Background())
	first := GetTickID(ctx)
	assert.Len(t, first, 36)

	second := GetTickID(WithTickID(context.Background()))
	assert.NotEqual(t, first, second, "each tick gets its own id")
}

func TestWithRequestID(t *testing.T) {
	ctx := WithRequestID(context.Background(), "req-1")
	assert.Equal(t, "req-1", GetRequestID(ctx))
}

func TestIDs_NotPresent(t *testing.T) {
	ctx := context.Background()
	assert.Empty(t, GetTickID(ctx))
	assert.Empty(t, GetRequestID(ctx))
}
