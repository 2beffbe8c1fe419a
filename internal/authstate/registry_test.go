package authstate

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go-dishlens-backend/internal/domain"
	"go-dishlens-backend/pkg/supabase"
)

// closableSource is a session source with resources of its own, like
// the SessionManager and its refresh loop.
type closableSource struct {
	fakeSource
	closed atomic.Bool
}

func (c *closableSource) Close() { c.closed.Store(true) }

func anonymousSource() fakeSource {
	return fakeSource{
		resolve: func(ctx context.Context) (*supabase.Session, error) { return nil, nil },
		events:  make(chan supabase.Event),
	}
}

func nilFetcher() fakeFetcher {
	return fakeFetcher(func(ctx context.Context, userID string) (*domain.Client, error) {
		return nil, nil
	})
}

func TestMachineStopClosesSource(t *testing.T) {
	source := &closableSource{fakeSource: anonymousSource()}
	m := New(fastConfig(), source, nilFetcher(), testLogger())
	m.Start(context.Background())

	m.Stop()
	assert.True(t, source.closed.Load())

	// Idempotent: Logout closes the manager itself before detaching.
	m.Stop()
}

func TestRegistryDetachReleasesSource(t *testing.T) {
	r := NewRegistry(fastConfig(), nilFetcher(), testLogger())

	var mu sync.Mutex
	var evicted []string
	r.OnEvict(func(userID string) {
		mu.Lock()
		evicted = append(evicted, userID)
		mu.Unlock()
	})

	source := &closableSource{fakeSource: anonymousSource()}
	r.Attach(context.Background(), "u1", source)
	require.NotNil(t, r.Get("u1"))

	r.Detach("u1")

	assert.Nil(t, r.Get("u1"))
	assert.True(t, source.closed.Load())
	mu.Lock()
	assert.Equal(t, []string{"u1"}, evicted)
	mu.Unlock()

	// Detaching an unknown user fires nothing.
	r.Detach("ghost")
	mu.Lock()
	assert.Len(t, evicted, 1)
	mu.Unlock()
}

func TestRegistrySweepReleasesIdleSources(t *testing.T) {
	r := NewRegistry(fastConfig(), nilFetcher(), testLogger())

	var mu sync.Mutex
	var evicted []string
	r.OnEvict(func(userID string) {
		mu.Lock()
		evicted = append(evicted, userID)
		mu.Unlock()
	})

	idle := &closableSource{fakeSource: anonymousSource()}
	active := &closableSource{fakeSource: anonymousSource()}
	r.Attach(context.Background(), "idle", idle)
	r.Attach(context.Background(), "active", active)

	// Touch "active" after the cutoff we sweep with, so only "idle"
	// is past expiry.
	cutoff := time.Now()
	time.Sleep(time.Millisecond)
	require.NotNil(t, r.Get("active"))

	r.sweep(cutoff)

	assert.Nil(t, r.Get("idle"))
	assert.True(t, idle.closed.Load())
	assert.NotNil(t, r.Get("active"))
	assert.False(t, active.closed.Load())
	mu.Lock()
	assert.Equal(t, []string{"idle"}, evicted)
	mu.Unlock()
}

func TestRegistryAttachReplacementClosesOldSource(t *testing.T) {
	r := NewRegistry(fastConfig(), nilFetcher(), testLogger())

	var hookCalls atomic.Int32
	r.OnEvict(func(string) { hookCalls.Add(1) })

	first := &closableSource{fakeSource: anonymousSource()}
	second := &closableSource{fakeSource: anonymousSource()}

	r.Attach(context.Background(), "u1", first)
	m2 := r.Attach(context.Background(), "u1", second)

	assert.True(t, first.closed.Load())
	assert.False(t, second.closed.Load())
	assert.Same(t, m2, r.Get("u1"))
	// Replacement is not an eviction: the fresh login already swapped
	// in its own manager, the hook must not drop it.
	assert.Zero(t, hookCalls.Load())

	r.Detach("u1")
	assert.True(t, second.closed.Load())
	assert.Equal(t, int32(1), hookCalls.Load())
}
