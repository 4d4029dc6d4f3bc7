package audit_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/eiichimorimoto/ai-consulting.zero-sub004/pkg/audit"
)

type mockWriter struct {
	mock.Mock
}

func (m *mockWriter) Store(ctx context.Context, event audit.Event) error {
	args := m.Called(ctx, event)
	return args.Error(0)
}

type ctxKey string

func fromCtx(key ctxKey) func(context.Context) (string, bool) {
	return func(ctx context.Context) (string, bool) {
		v, ok := ctx.Value(key).(string)
		return v, ok
	}
}

func TestLogger_Log(t *testing.T) {
	t.Parallel()

	fixed := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	w := &mockWriter{}
	w.On("Store", mock.Anything, mock.MatchedBy(func(e audit.Event) bool {
		return e.Action == "subscription.suspend" &&
			e.UserID == "user-1" &&
			e.ActorID == "admin-1" &&
			e.RequestID == "req-1" &&
			e.Resource == "subscription" &&
			e.ResourceID == "user-1" &&
			e.Result == audit.ResultSuccess &&
			e.Metadata["reason"] == "fraud" &&
			e.CreatedAt.Equal(fixed) &&
			e.ID != ""
	})).Return(nil).Once()

	l := audit.NewLogger(w,
		audit.WithUserIDExtractor(fromCtx("user")),
		audit.WithActorIDExtractor(fromCtx("actor")),
		audit.WithRequestIDExtractor(fromCtx("req")),
		audit.WithClock(func() time.Time { return fixed }),
	)

	ctx := context.WithValue(context.Background(), ctxKey("user"), "user-1")
	ctx = context.WithValue(ctx, ctxKey("actor"), "admin-1")
	ctx = context.WithValue(ctx, ctxKey("req"), "req-1")

	err := l.Log(ctx, "subscription.suspend",
		audit.WithResource("subscription", "user-1"),
		audit.WithMetadata("reason", "fraud"),
	)
	require.NoError(t, err)
	w.AssertExpectations(t)
}

func TestLogger_LogError(t *testing.T) {
	t.Parallel()

	w := &mockWriter{}
	w.On("Store", mock.Anything, mock.MatchedBy(func(e audit.Event) bool {
		return e.Result == audit.ResultFailure && e.Error == "boom" && e.ActorID == "system" && e.UserID == "u"
	})).Return(nil).Once()

	l := audit.NewLogger(w)
	err := l.LogError(context.Background(), "subscription.cancel", errors.New("boom"),
		audit.WithUser("u"), audit.WithActor("system"))
	require.NoError(t, err)
	w.AssertExpectations(t)
}

func TestLogger_Validation(t *testing.T) {
	t.Parallel()

	w := &mockWriter{}
	l := audit.NewLogger(w)

	err := l.Log(context.Background(), "")
	assert.ErrorIs(t, err, audit.ErrEventValidation)

	err = l.Log(context.Background(), "x", audit.WithResult("maybe"))
	assert.ErrorIs(t, err, audit.ErrEventValidation)
	w.AssertNotCalled(t, "Store", mock.Anything, mock.Anything)
}

func TestLogger_WriterError(t *testing.T) {
	t.Parallel()

	storeErr := errors.New("db down")
	l := audit.NewLogger(audit.WriterFunc(func(context.Context, audit.Event) error { return storeErr }))
	assert.ErrorIs(t, l.Log(context.Background(), "x"), storeErr)
}

func TestNewLogger_NilWriterPanics(t *testing.T) {
	t.Parallel()
	assert.Panics(t, func() { audit.NewLogger(nil) })
}
