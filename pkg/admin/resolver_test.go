package admin_test

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/eiichimorimoto/ai-consulting.zero-sub004/pkg/admin"
	"github.com/eiichimorimoto/ai-consulting.zero-sub004/pkg/logger"
)

type mockProfiles struct {
	mock.Mock
}

func (m *mockProfiles) IsAdmin(ctx context.Context, userID uuid.UUID) (bool, error) {
	args := m.Called(ctx, userID)
	return args.Bool(0), args.Error(1)
}

func TestResolver_Resolve(t *testing.T) {
	t.Parallel()

	listed := uuid.New()
	cfg := admin.Config{UserIDs: []string{" " + listed.String() + " ", "not-a-uuid"}}

	t.Run("profile flag", func(t *testing.T) {
		t.Parallel()
		id := uuid.New()
		p := &mockProfiles{}
		p.On("IsAdmin", mock.Anything, id).Return(true, nil)

		r := admin.NewResolver(cfg, admin.WithProfiles(p), admin.WithLogger(logger.Discard()))
		d, err := r.Resolve(context.Background(), id)
		require.NoError(t, err)
		assert.Equal(t, admin.Decision{Admin: true, Source: admin.SourceProfile}, d)
		p.AssertExpectations(t)
	})

	t.Run("lookup error falls back to allowlist", func(t *testing.T) {
		t.Parallel()
		p := &mockProfiles{}
		p.On("IsAdmin", mock.Anything, listed).Return(false, errors.New("db down"))

		r := admin.NewResolver(cfg, admin.WithProfiles(p), admin.WithLogger(logger.Discard()))
		d, err := r.Resolve(context.Background(), listed)
		require.NoError(t, err)
		assert.Equal(t, admin.SourceAllowlist, d.Source)
		assert.True(t, d.Admin)
	})

	t.Run("not admin", func(t *testing.T) {
		t.Parallel()
		id := uuid.New()
		p := &mockProfiles{}
		p.On("IsAdmin", mock.Anything, id).Return(false, nil)

		r := admin.NewResolver(cfg, admin.WithProfiles(p), admin.WithLogger(logger.Discard()))
		d, err := r.Resolve(context.Background(), id)
		require.NoError(t, err)
		assert.Equal(t, admin.Decision{Source: admin.SourceNone}, d)
	})

	t.Run("allowlist only", func(t *testing.T) {
		t.Parallel()
		r := admin.NewResolver(cfg)
		d, err := r.Resolve(context.Background(), listed)
		require.NoError(t, err)
		assert.True(t, d.Admin)

		d, err = r.Resolve(context.Background(), uuid.Nil)
		require.NoError(t, err)
		assert.False(t, d.Admin)
	})
}

func TestConfig_Validate(t *testing.T) {
	t.Parallel()

	assert.NoError(t, admin.Config{}.Validate())
	assert.NoError(t, admin.Config{UserIDs: []string{uuid.NewString(), ""}}.Validate())
	assert.ErrorIs(t, admin.Config{UserIDs: []string{"nope"}}.Validate(), admin.ErrInvalidUserID)
}
