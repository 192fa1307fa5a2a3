package observability

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNoopMetrics(t *testing.T) {
	m := NoopMetrics{}
	ctx := context.Background()
	assert.NotPanics(t, func() {
		m.RecordDispatch(ctx, "t", "s")
		m.RecordListener(ctx, "c", time.Millisecond, errors.New("x"))
		m.RecordSharedState(ctx, "c", "standard", "set")
		m.RecordResponseTimeout(ctx)
	})
}

func TestNoopSpanManager(t *testing.T) {
	sm := NoopSpanManager{}
	ctx := context.Background()

	newCtx, span := sm.StartDispatchSpan(ctx, "id", "t", "s", 1)
	assert.Equal(t, ctx, newCtx)
	assert.False(t, span.IsRecording())

	newCtx, span = sm.StartListenerSpan(ctx, "c", "id")
	assert.Equal(t, ctx, newCtx)
	assert.NotPanics(t, func() {
		sm.AddSpanEvent(ctx, "x")
		sm.EndSpanWithError(span, errors.New("x"))
	})
}
