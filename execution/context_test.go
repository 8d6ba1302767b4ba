package execution

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"simkernel/config"
)

type testOwner string

func (o testOwner) String() string { return string(o) }

var backends = []string{config.FactoryCoroutine, config.FactoryGoroutine, config.FactoryThread}

func forEachBackend(t *testing.T, f func(t *testing.T, factory Factory)) {
	for _, name := range backends {
		t.Run(name, func(t *testing.T) {
			factory, err := NewFactory(name, false)
			require.NoError(t, err)
			require.Equal(t, name, factory.Name())
			f(t, factory)
		})
	}
}

func TestUnknownFactory(t *testing.T) {
	_, err := NewFactory("fibers", false)
	var cfgErr *config.ConfigurationError
	require.True(t, errors.As(err, &cfgErr))
	assert.Equal(t, config.KeyFactory, cfgErr.Key)
}

func TestHandOver(t *testing.T) {
	forEachBackend(t, func(t *testing.T, factory Factory) {
		log := []string{}
		var ctx Context
		ctx = factory.Create(func() {
			log = append(log, "a1")
			ctx.Suspend()
			log = append(log, "a2")
			ctx.Suspend()
			log = append(log, "a3")
		}, func() { log = append(log, "cleanup") }, testOwner("a"), 0)

		assert.Equal(t, Created, ctx.Status())
		ctx.Start()
		log = append(log, "m1")
		assert.Equal(t, Suspended, ctx.Status())
		ctx.Resume()
		log = append(log, "m2")
		ctx.Resume()
		log = append(log, "m3")

		assert.Equal(t, Terminated, ctx.Status())
		assert.NoError(t, ctx.Err())
		assert.Equal(t, []string{"a1", "m1", "a2", "m2", "a3", "cleanup", "m3"}, log)

		// Resuming a terminated context does nothing
		ctx.Resume()
		ctx.Stop()
		assert.Len(t, log, 7)
	})
}

func TestStopNeverStarted(t *testing.T) {
	forEachBackend(t, func(t *testing.T, factory Factory) {
		entered, cleaned := false, false
		ctx := factory.Create(func() { entered = true }, func() { cleaned = true }, testOwner("a"), 0)
		ctx.Stop()
		assert.False(t, entered)
		assert.True(t, cleaned)
		assert.Equal(t, Terminated, ctx.Status())
	})
}

func TestStopSuspended(t *testing.T) {
	forEachBackend(t, func(t *testing.T, factory Factory) {
		after, cleaned := false, false
		var ctx Context
		ctx = factory.Create(func() {
			ctx.Suspend()
			after = true
		}, func() { cleaned = true }, testOwner("a"), 0)
		ctx.Start()
		ctx.Stop()
		assert.False(t, after, "actor code must not run after the context has been stopped")
		assert.True(t, cleaned)
		assert.Equal(t, Terminated, ctx.Status())
		assert.NoError(t, ctx.Err())
	})
}

func TestUnwind(t *testing.T) {
	forEachBackend(t, func(t *testing.T, factory Factory) {
		after := false
		ctx := factory.Create(func() {
			Unwind()
			after = true
		}, nil, testOwner("a"), 0)
		ctx.Start()
		assert.False(t, after)
		assert.Equal(t, Terminated, ctx.Status())
		assert.NoError(t, ctx.Err())
	})
}

func TestPanicIsReported(t *testing.T) {
	forEachBackend(t, func(t *testing.T, factory Factory) {
		ctx := factory.Create(func() { panic("boom") }, nil, testOwner("a"), 0)
		ctx.Start()
		var pErr *PanicError
		require.True(t, errors.As(ctx.Err(), &pErr))
		assert.Equal(t, "boom", pErr.Value)
		assert.Equal(t, "a", pErr.Owner)
		assert.NotEmpty(t, pErr.Stack)
	})
}

func recurse(ctx Context, n int) int {
	if n == 0 {
		ctx.CheckStack()
		return 0
	}
	return recurse(ctx, n-1) + 1
}

func TestStackOverflow(t *testing.T) {
	forEachBackend(t, func(t *testing.T, factory Factory) {
		cleaned := false
		var ctx Context
		ctx = factory.Create(func() {
			recurse(ctx, 1000)
		}, func() { cleaned = true }, testOwner("deep"), config.MinStackSize)
		ctx.Start()

		var soErr *StackOverflowError
		require.True(t, errors.As(ctx.Err(), &soErr), "got %v", ctx.Err())
		assert.Equal(t, "deep", soErr.Owner)
		assert.Equal(t, config.MinStackSize, soErr.StackSize)
		assert.Greater(t, soErr.Frames, soErr.Budget)
		assert.True(t, cleaned)
		assert.Equal(t, Terminated, ctx.Status())
	})
}

func TestStackWithinBudget(t *testing.T) {
	forEachBackend(t, func(t *testing.T, factory Factory) {
		var ctx Context
		ctx = factory.Create(func() {
			recurse(ctx, 1000)
			ctx.Suspend()
		}, nil, testOwner("deep"), config.DefaultStackSize)
		ctx.Start()
		assert.NoError(t, ctx.Err())
		assert.Equal(t, Suspended, ctx.Status())
		ctx.Stop()
	})
}
