package plan_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eiichimorimoto/ai-consulting.zero-sub004/pkg/plan"
)

func TestRegistry_Resolve(t *testing.T) {
	t.Parallel()
	reg := plan.DefaultRegistry()

	tests := []struct {
		name string
		id   string
		want plan.ID
	}{
		{"free", "free", plan.Free},
		{"pro", "pro", plan.Pro},
		{"enterprise", "enterprise", plan.Enterprise},
		{"empty falls back to free", "", plan.Free},
		{"unknown falls back to free", "platinum", plan.Free},
		{"case sensitive", "PRO", plan.Free},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, reg.Resolve(tt.id).ID)
		})
	}
}

func TestRegistry_Levels(t *testing.T) {
	t.Parallel()
	reg := plan.DefaultRegistry()

	assert.Equal(t, 0, reg.Level("free"))
	assert.Equal(t, 1, reg.Level("pro"))
	assert.Equal(t, 2, reg.Level("enterprise"))
	assert.Equal(t, 0, reg.Level("legacy"))

	ids := []string{"free", "pro", "enterprise", "legacy"}
	for _, held := range ids {
		for _, required := range ids {
			assert.Equal(t, reg.Level(held) >= reg.Level(required), reg.Covers(held, required), "%s covers %s", held, required)
		}
	}

	assert.True(t, reg.IsPaid("pro"))
	assert.False(t, reg.IsPaid("free"))
	assert.False(t, reg.IsPaid("legacy"))

	all := reg.All()
	require.Len(t, all, 3)
	assert.Equal(t, []plan.ID{plan.Free, plan.Pro, plan.Enterprise}, []plan.ID{all[0].ID, all[1].ID, all[2].ID})
}

func TestNewRegistry_Validation(t *testing.T) {
	t.Parallel()

	_, err := plan.NewRegistry(plan.Plan{ID: plan.Pro, Level: 1})
	assert.ErrorIs(t, err, plan.ErrInvalidPlanConfiguration)

	_, err = plan.NewRegistry(plan.Plan{ID: plan.Free}, plan.Plan{ID: plan.Free})
	assert.ErrorIs(t, err, plan.ErrInvalidPlanConfiguration)

	_, err = plan.NewRegistry(plan.Plan{ID: plan.Free, Level: 1})
	assert.ErrorIs(t, err, plan.ErrInvalidPlanConfiguration)

	_, err = plan.NewRegistry(plan.Plan{ID: ""})
	assert.ErrorIs(t, err, plan.ErrInvalidPlanConfiguration)

	assert.Panics(t, func() { plan.MustNewRegistry() })
}

func TestLimits(t *testing.T) {
	t.Parallel()
	reg := plan.DefaultRegistry()

	free := reg.Resolve("free").Limits
	assert.Equal(t, 45, free.MaxTotalTurns)
	assert.True(t, free.AllowsSessions(2))
	assert.False(t, free.AllowsSessions(3))
	assert.True(t, free.AllowsTurns(14, 44))
	assert.False(t, free.AllowsTurns(15, 20))
	assert.False(t, free.AllowsTurns(1, 45))

	ent := reg.Resolve("enterprise")
	assert.True(t, ent.Limits.IsUnlimited())
	assert.True(t, ent.Limits.AllowsSessions(10_000))
	assert.True(t, ent.Limits.AllowsTurns(10_000, 1_000_000))
	assert.Equal(t, "Unlimited sessions", ent.SessionsLabel())
	assert.Equal(t, "30 sessions per month (30 turns each)", reg.Resolve("pro").SessionsLabel())
}
