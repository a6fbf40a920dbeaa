package inmemorylivestore_test

import (
	"context"
	"sync"
	"testing"
	"time"

	inmemorylivestore "github.com/ephesafe/ephesafed/internal/infrastructure/live-store/inmemory"
	"github.com/stretchr/testify/require"
)

func TestSafeLocks(t *testing.T) {
	ctx := context.Background()
	store := inmemorylivestore.NewLiveStore()
	locks := store.SafeLocks()

	require.NoError(t, locks.Lock(ctx, 1))

	// a different safe id never contends
	require.NoError(t, locks.Lock(ctx, 2))
	locks.Unlock(ctx, 2)

	// the same id blocks until released
	timeoutCtx, cancel := context.WithTimeout(ctx, 50*time.Millisecond)
	defer cancel()
	err := locks.Lock(timeoutCtx, 1)
	require.ErrorIs(t, err, context.DeadlineExceeded)

	locks.Unlock(ctx, 1)
	require.NoError(t, locks.Lock(ctx, 1))
	locks.Unlock(ctx, 1)
}

func TestSafeLocksSerialize(t *testing.T) {
	ctx := context.Background()
	locks := inmemorylivestore.NewSafeLockStore()

	counter := 0
	wg := sync.WaitGroup{}
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			require.NoError(t, locks.Lock(ctx, 7))
			defer locks.Unlock(ctx, 7)
			counter++
		}()
	}
	wg.Wait()

	require.Equal(t, 50, counter)
}
