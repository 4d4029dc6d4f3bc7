package statemachine_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eiichimorimoto/ai-consulting.zero-sub004/pkg/statemachine"
)

type doorState string
type doorEvent string

const (
	closed doorState = "closed"
	open   doorState = "open"
	locked doorState = "locked"

	push   doorEvent = "push"
	pull   doorEvent = "pull"
	lock   doorEvent = "lock"
	unlock doorEvent = "unlock"
)

type door struct {
	hasKey bool
	log    []string
}

func newTable(t *testing.T) *statemachine.Table[doorState, doorEvent, *door] {
	t.Helper()
	record := func(ctx context.Context, from, to doorState, ev doorEvent, d *door) error {
		d.log = append(d.log, string(from)+"->"+string(to))
		return nil
	}
	hasKey := func(ctx context.Context, from doorState, ev doorEvent, d *door) bool { return d.hasKey }

	table, err := statemachine.New(
		statemachine.WithTransition[doorState, doorEvent, *door](closed, open, push,
			statemachine.WithAction(record)),
		statemachine.WithTransition[doorState, doorEvent, *door](open, closed, pull,
			statemachine.WithAction(record)),
		statemachine.WithTransition[doorState, doorEvent, *door](closed, locked, lock,
			statemachine.WithGuard(hasKey), statemachine.WithAction(record)),
		statemachine.WithTransitionFrom[doorState, doorEvent, *door]([]doorState{locked}, closed, unlock,
			statemachine.WithGuard(hasKey)),
	)
	require.NoError(t, err)
	return table
}

func TestTable_Fire(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("runs actions and returns target", func(t *testing.T) {
		t.Parallel()
		table := newTable(t)
		d := &door{}

		next, err := table.Fire(ctx, closed, push, d)
		require.NoError(t, err)
		assert.Equal(t, open, next)
		assert.Equal(t, []string{"closed->open"}, d.log)
	})

	t.Run("undefined transition", func(t *testing.T) {
		t.Parallel()
		table := newTable(t)

		next, err := table.Fire(ctx, open, lock, &door{hasKey: true})
		assert.Equal(t, open, next)
		assert.True(t, statemachine.IsNoTransitionAvailableError(err))
	})

	t.Run("guard rejects", func(t *testing.T) {
		t.Parallel()
		table := newTable(t)
		d := &door{}

		_, err := table.Fire(ctx, closed, lock, d)
		assert.True(t, statemachine.IsTransitionRejectedError(err))
		assert.Empty(t, d.log)
		assert.False(t, table.CanFire(ctx, closed, lock, d))
	})

	t.Run("action error aborts", func(t *testing.T) {
		t.Parallel()
		boom := errors.New("boom")
		table := statemachine.MustNew(
			statemachine.WithTransition[doorState, doorEvent, *door](closed, open, push,
				statemachine.WithAction(func(context.Context, doorState, doorState, doorEvent, *door) error { return boom })),
		)

		next, err := table.Fire(ctx, closed, push, &door{})
		assert.Equal(t, closed, next)
		assert.ErrorIs(t, err, boom)
	})

	t.Run("first passing guard wins", func(t *testing.T) {
		t.Parallel()
		table := statemachine.MustNew(
			statemachine.WithTransition[doorState, doorEvent, *door](closed, locked, push,
				statemachine.WithGuard(func(_ context.Context, _ doorState, _ doorEvent, d *door) bool { return d.hasKey })),
			statemachine.WithTransition[doorState, doorEvent, *door](closed, open, push),
		)

		next, err := table.Next(ctx, closed, push, &door{hasKey: true})
		require.NoError(t, err)
		assert.Equal(t, locked, next)

		next, err = table.Next(ctx, closed, push, &door{})
		require.NoError(t, err)
		assert.Equal(t, open, next)
	})
}

func TestTable_Construction(t *testing.T) {
	t.Parallel()

	_, err := statemachine.New[doorState, doorEvent, *door]()
	assert.ErrorIs(t, err, statemachine.ErrEmptyTable)

	_, err = statemachine.New(
		statemachine.WithTransitionFrom[doorState, doorEvent, *door](nil, open, push),
	)
	assert.ErrorIs(t, err, statemachine.ErrInvalidTransition)

	assert.Panics(t, func() { statemachine.MustNew[doorState, doorEvent, *door]() })

	table := newTable(t)
	assert.ElementsMatch(t, []doorEvent{push, lock}, table.Events(closed))
}
