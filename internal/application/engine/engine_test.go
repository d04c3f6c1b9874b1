package engine_test

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/alejandrodnm/rotabot/internal/application/engine"
)

func TestSleep_Elapses(t *testing.T) {
	assert.NoError(t, engine.Sleep(context.Background(), time.Millisecond))
	assert.NoError(t, engine.Sleep(context.Background(), 0))
}

func TestSleep_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	start := time.Now()
	err := engine.Sleep(ctx, time.Hour)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Less(t, time.Since(start), time.Second)
}

func TestClientOrderID(t *testing.T) {
	valid := regexp.MustCompile(`^[.A-Z:/a-z0-9_-]{1,36}$`)

	a := engine.ClientOrderID("rb")
	b := engine.ClientOrderID("rb")
	assert.Len(t, a, 34)
	assert.Regexp(t, valid, a)
	assert.NotEqual(t, a, b)
}
