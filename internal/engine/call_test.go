package engine

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestCallRegistry_OnceIsolatedPerCallerFeature(t *testing.T) {
	reg := NewCallRegistry()
	var counter int32

	run := func() (any, error) {
		atomic.AddInt32(&counter, 1)
		return "ok", nil
	}

	var wg sync.WaitGroup
	// Two parallel "features" (callers) each running two scenarios that
	// callonce the same helper+args; helper should execute once per feature.
	for _, callerID := range []string{"featureA", "featureB"} {
		callerID := callerID
		for i := 0; i < 2; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				key := CallKey{FeatureIdentity: "helper.feature", Mode: "once", ArgHash: "{}"}
				_, err := reg.Call(context.Background(), callerID, key, func(context.Context) (any, error) {
					return run()
				})
				require.NoError(t, err)
			}()
		}
	}
	wg.Wait()
	require.EqualValues(t, 2, counter)
}

func TestCallRegistry_SingleSuiteScopedIdentity(t *testing.T) {
	reg := NewCallRegistry()
	var counter int32
	type handle struct{ id int32 }

	key := CallKey{FeatureIdentity: "bootstrap.feature", Mode: "single", ArgHash: "{}"}
	results := make([]*handle, 5)
	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		i := i
		wg.Add(1)
		go func() {
			defer wg.Done()
			v, err := reg.Call(context.Background(), "anyFeature", key, func(context.Context) (any, error) {
				time.Sleep(5 * time.Millisecond)
				n := atomic.AddInt32(&counter, 1)
				return &handle{id: n}, nil
			})
			require.NoError(t, err)
			results[i] = v.(*handle)
		}()
	}
	wg.Wait()
	require.EqualValues(t, 1, counter)
	for _, r := range results[1:] {
		require.Same(t, results[0], r)
	}
}

func TestCallRegistry_FailedCallIsNotCached(t *testing.T) {
	reg := NewCallRegistry()
	key := CallKey{FeatureIdentity: "flaky.feature", Mode: "once", ArgHash: "{}"}

	_, err := reg.Call(context.Background(), "featureA", key, func(context.Context) (any, error) {
		return nil, assertErr{"boom"}
	})
	require.Error(t, err)

	v, err := reg.Call(context.Background(), "featureA", key, func(context.Context) (any, error) {
		return "recovered", nil
	})
	require.NoError(t, err)
	require.Equal(t, "recovered", v)
}

func TestCallRegistry_CycleDetected(t *testing.T) {
	reg := NewCallRegistry()
	key := CallKey{FeatureIdentity: "self.feature", Mode: "single", ArgHash: "{}"}

	var run func(ctx context.Context) (any, error)
	run = func(ctx context.Context) (any, error) {
		return reg.Call(ctx, "self.feature", key, run)
	}
	_, err := reg.Call(context.Background(), "self.feature", key, run)
	require.Error(t, err)
}

func TestCallRegistry_FeatureFinishedClearsOnceCache(t *testing.T) {
	reg := NewCallRegistry()
	key := CallKey{FeatureIdentity: "helper.feature", Mode: "once", ArgHash: "{}"}
	var counter int32
	run := func(context.Context) (any, error) {
		atomic.AddInt32(&counter, 1)
		return "ok", nil
	}

	_, _ = reg.Call(context.Background(), "featureA", key, run)
	_, _ = reg.Call(context.Background(), "featureA", key, run)
	require.EqualValues(t, 1, counter)

	reg.FeatureFinished("featureA")
	_, _ = reg.Call(context.Background(), "featureA", key, run)
	require.EqualValues(t, 2, counter)
}

type assertErr struct{ msg string }

func (e assertErr) Error() string { return e.msg }
