package reminder

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestState_InCooldown(t *testing.T) {
	st := State{}.Clone()
	st.Warnings[1] = t0

	assert.True(t, st.InCooldown(1, t0.Add(59*time.Minute), time.Hour))
	assert.False(t, st.InCooldown(1, t0.Add(time.Hour), time.Hour))
	assert.False(t, st.InCooldown(2, t0, time.Hour))
}

func TestState_Prune(t *testing.T) {
	st := State{}.Clone()
	st.Warnings[1] = t0
	st.Warnings[2] = t0.Add(-2 * time.Hour)
	st.Warnings[3] = t0

	changed := st.prune(map[int64]struct{}{1: {}, 2: {}}, t0.Add(10*time.Minute), time.Hour)
	assert.True(t, changed)
	assert.Equal(t, map[int64]time.Time{1: t0}, st.Warnings)

	assert.False(t, st.prune(map[int64]struct{}{1: {}}, t0.Add(10*time.Minute), time.Hour))
}

func TestStateStore_RoundTrip(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	store := NewStateStore(f.kv)

	st, err := store.Load(ctx)
	require.NoError(t, err)
	assert.NotNil(t, st.Warnings)
	assert.Nil(t, st.LastAlertAt)

	st.Warnings[7] = t0
	st.LastAlertAt = &t0
	require.NoError(t, store.Save(ctx, st))

	got, err := store.Load(ctx)
	require.NoError(t, err)
	assert.True(t, got.Warnings[7].Equal(t0))
	require.NotNil(t, got.LastAlertAt)
	assert.True(t, got.LastAlertAt.Equal(t0))

	keys, err := f.kv.ListKeys(ctx, "reminder:")
	require.NoError(t, err)
	assert.Equal(t, []string{"reminder:state"}, keys)

	require.NoError(t, store.Reset(ctx))
	got, err = store.Load(ctx)
	require.NoError(t, err)
	assert.Empty(t, got.Warnings)
}
