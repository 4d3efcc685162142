package telephony

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestChannelPoolAcquireRespectsGlobalLimit(t *testing.T) {
	cp := newChannelPool(2, 10)
	require.True(t, cp.Acquire("trunk-a"))
	require.True(t, cp.Acquire("trunk-b"))
	require.False(t, cp.Acquire("trunk-c"))
}

func TestChannelPoolAcquireRespectsPerTrunkLimit(t *testing.T) {
	cp := newChannelPool(10, 1)
	require.True(t, cp.Acquire("trunk-a"))
	require.False(t, cp.Acquire("trunk-a"))
	require.True(t, cp.Acquire("trunk-b"))
}

func TestChannelPoolReleaseFreesCapacity(t *testing.T) {
	cp := newChannelPool(1, 1)
	require.True(t, cp.Acquire("trunk-a"))
	require.False(t, cp.Acquire("trunk-a"))
	cp.Release("trunk-a")
	require.True(t, cp.Acquire("trunk-a"))
}

func TestChannelPoolReleaseNeverGoesNegative(t *testing.T) {
	cp := newChannelPool(1, 1)
	cp.Release("trunk-a")
	cp.Release("trunk-a")
	require.Equal(t, 1, cp.Available())
}

func TestChannelPoolAvailable(t *testing.T) {
	cp := newChannelPool(3, 10)
	require.Equal(t, 3, cp.Available())
	cp.Acquire("trunk-a")
	require.Equal(t, 2, cp.Available())
}

func TestChannelPoolAcquireIsRaceSafe(t *testing.T) {
	cp := newChannelPool(5, 100)
	var wg sync.WaitGroup
	results := make([]bool, 20)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			results[idx] = cp.Acquire("shared-trunk")
		}(i)
	}
	wg.Wait()

	granted := 0
	for _, ok := range results {
		if ok {
			granted++
		}
	}
	require.Equal(t, 5, granted)
}
