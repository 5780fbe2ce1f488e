package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/geo-orchestrator/internal/model"
)

func TestWait_UnlimitedProviderNeverBlocks(t *testing.T) {
	l := New(Limits{})
	start := time.Now()
	for i := 0; i < 20; i++ {
		require.NoError(t, l.Wait(context.Background(), model.ProviderHERE))
	}
	assert.Less(t, time.Since(start), 200*time.Millisecond)
}

func TestWait_OSMFloorAppliedEvenWhenUnconfigured(t *testing.T) {
	l := New(Limits{})
	require.NoError(t, l.Wait(context.Background(), model.ProviderOSM))
	start := time.Now()
	require.NoError(t, l.Wait(context.Background(), model.ProviderOSM))
	assert.GreaterOrEqual(t, time.Since(start), 900*time.Millisecond)
}

func TestWait_OSMFloorClampsLowerConfiguredRate(t *testing.T) {
	l := New(Limits{model.ProviderOSM: 0.1})
	require.NoError(t, l.Wait(context.Background(), model.ProviderOSM))
	start := time.Now()
	require.NoError(t, l.Wait(context.Background(), model.ProviderOSM))
	elapsed := time.Since(start)
	assert.GreaterOrEqual(t, elapsed, 900*time.Millisecond)
	assert.Less(t, elapsed, 2*time.Second, "floor clamps to 1rps, should not wait the slower configured 0.1rps")
}

func TestWait_CancellationAborts(t *testing.T) {
	l := New(Limits{model.ProviderOSM: 1})
	require.NoError(t, l.Wait(context.Background(), model.ProviderOSM))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := l.Wait(ctx, model.ProviderOSM)
	assert.Error(t, err)
}
