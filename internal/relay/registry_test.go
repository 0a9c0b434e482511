package relay

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memoryCoordinator links registries the way Redis does across instances
type memoryCoordinator struct {
	mu          sync.Mutex
	owners      map[string]string
	registries  []*Registry
	failPublish bool
}

func newMemoryCoordinator() *memoryCoordinator {
	return &memoryCoordinator{owners: make(map[string]string)}
}

func (c *memoryCoordinator) Announce(_ context.Context, id, owner string, _ time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.owners[id] = owner
	return nil
}

func (c *memoryCoordinator) Forget(_ context.Context, id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.owners, id)
	return nil
}

func (c *memoryCoordinator) Owner(_ context.Context, id string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	owner, ok := c.owners[id]
	if !ok {
		return "", ErrGenerationNotFound
	}
	return owner, nil
}

func (c *memoryCoordinator) PublishStop(_ context.Context, id, owner string) error {
	if c.failPublish {
		return errors.New("publish failed")
	}
	c.mu.Lock()
	regs := append([]*Registry(nil), c.registries...)
	c.mu.Unlock()
	for _, r := range regs {
		r.CancelLocal(id, owner)
	}
	return nil
}

func TestRegistryStartAndRelease(t *testing.T) {
	var observed []int
	r := NewRegistry(0, time.Minute, nil)
	r.OnChange = func(n int) { observed = append(observed, n) }

	ctx, id, release, err := r.Start(context.Background(), "alice")
	require.NoError(t, err)
	assert.NotEmpty(t, id)
	assert.Equal(t, 1, r.Active())
	assert.Equal(t, 1, r.ActiveFor("alice"))

	release()
	release()

	assert.ErrorIs(t, ctx.Err(), context.Canceled)
	assert.Equal(t, 0, r.Active())
	assert.Equal(t, 0, r.ActiveFor("alice"))
	assert.Equal(t, []int{1, 0}, observed)
}

func TestRegistryStopByOwner(t *testing.T) {
	r := NewRegistry(0, time.Minute, nil)
	ctx, id, release, err := r.Start(context.Background(), "alice")
	require.NoError(t, err)
	defer release()

	_, err = r.Stop(context.Background(), id, "mallory")
	assert.ErrorIs(t, err, ErrNotOwner)
	assert.NoError(t, ctx.Err())

	res, err := r.Stop(context.Background(), id, "alice")
	require.NoError(t, err)
	assert.Equal(t, StopLocal, res)
	assert.ErrorIs(t, context.Cause(ctx), ErrStopped)

	_, err = r.Stop(context.Background(), "unknown", "alice")
	assert.ErrorIs(t, err, ErrGenerationNotFound)
}

func TestRegistryPerOwnerLimit(t *testing.T) {
	r := NewRegistry(2, time.Minute, nil)

	_, _, release1, err := r.Start(context.Background(), "alice")
	require.NoError(t, err)
	_, _, release2, err := r.Start(context.Background(), "alice")
	require.NoError(t, err)

	_, _, _, err = r.Start(context.Background(), "alice")
	assert.ErrorIs(t, err, ErrTooManyGenerations)

	_, _, releaseBob, err := r.Start(context.Background(), "bob")
	require.NoError(t, err, "limit is per user")
	releaseBob()

	release1()
	_, _, release3, err := r.Start(context.Background(), "alice")
	require.NoError(t, err)

	release2()
	release3()
	assert.Equal(t, 0, r.Active())
}

func TestRegistryParentCancellationPropagates(t *testing.T) {
	parent, cancel := context.WithCancel(context.Background())
	r := NewRegistry(0, time.Minute, nil)
	ctx, _, release, err := r.Start(parent, "alice")
	require.NoError(t, err)
	defer release()

	cancel()
	assert.ErrorIs(t, ctx.Err(), context.Canceled)
	assert.False(t, errors.Is(context.Cause(ctx), ErrStopped))
}

func TestRegistryStopForwardedAcrossInstances(t *testing.T) {
	coord := newMemoryCoordinator()
	a := NewRegistry(0, time.Minute, coord)
	b := NewRegistry(0, time.Minute, coord)
	coord.registries = []*Registry{a, b}

	ctx, id, release, err := a.Start(context.Background(), "alice")
	require.NoError(t, err)

	_, err = b.Stop(context.Background(), id, "mallory")
	assert.ErrorIs(t, err, ErrNotOwner)

	res, err := b.Stop(context.Background(), id, "alice")
	require.NoError(t, err)
	assert.Equal(t, StopForwarded, res)
	assert.ErrorIs(t, context.Cause(ctx), ErrStopped)

	release()
	_, err = b.Stop(context.Background(), id, "alice")
	assert.ErrorIs(t, err, ErrGenerationNotFound, "released generations are forgotten")
}

func TestRegistryPublishFailure(t *testing.T) {
	coord := newMemoryCoordinator()
	coord.failPublish = true
	a := NewRegistry(0, time.Minute, coord)
	b := NewRegistry(0, time.Minute, coord)

	_, id, release, err := a.Start(context.Background(), "alice")
	require.NoError(t, err)
	defer release()

	_, err = b.Stop(context.Background(), id, "alice")
	assert.Error(t, err)
}

func TestRegistryShutdown(t *testing.T) {
	r := NewRegistry(0, time.Minute, nil)
	ctx1, _, release1, _ := r.Start(context.Background(), "a")
	ctx2, _, release2, _ := r.Start(context.Background(), "b")
	defer release1()
	defer release2()

	r.Shutdown()
	assert.Error(t, ctx1.Err())
	assert.Error(t, ctx2.Err())
}
