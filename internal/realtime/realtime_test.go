package realtime

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWatchDeliversSnapshots(t *testing.T) {
	hub := NewHub(nil)
	var version atomic.Int64
	snapshots := make(chan int64, 8)

	sub := Watch(context.Background(), hub, []string{CollectionProjects},
		func(context.Context) (int64, error) { return version.Load(), nil },
		func(v int64, err error) {
			assert.NoError(t, err)
			snapshots <- v
		})
	defer sub.Close()

	assert.Equal(t, int64(0), receive(t, snapshots))

	version.Store(1)
	hub.Publish(Change{Collection: CollectionProjects, Op: OpUpdated, ID: "p1"})
	assert.Equal(t, int64(1), receive(t, snapshots))

	// unrelated collections do not trigger a reload
	hub.Publish(Change{Collection: CollectionComments, Op: OpCreated, ID: "c1"})
	select {
	case v := <-snapshots:
		t.Fatalf("unexpected snapshot %d", v)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestSubscriptionCloseIsDeterministic(t *testing.T) {
	hub := NewHub(nil)
	var calls atomic.Int32

	sub := Watch(context.Background(), hub, []string{CollectionTasks},
		func(context.Context) (struct{}, error) { return struct{}{}, nil },
		func(struct{}, error) { calls.Add(1) })

	require.Eventually(t, func() bool { return calls.Load() == 1 }, time.Second, 5*time.Millisecond)
	require.NoError(t, sub.Close())
	require.NoError(t, sub.Close())

	assert.Equal(t, 0, hub.Listeners())
	hub.Publish(Change{Collection: CollectionTasks, Op: OpCreated, ID: "t1"})
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, int32(1), calls.Load())
}

func TestWatchStopsOnContextCancel(t *testing.T) {
	hub := NewHub(nil)
	ctx, cancel := context.WithCancel(context.Background())

	sub := Watch(ctx, hub, []string{CollectionUsers},
		func(context.Context) (int, error) { return 0, nil },
		func(int, error) {})
	cancel()

	select {
	case <-sub.Done():
	case <-time.After(time.Second):
		t.Fatal("subscription did not stop")
	}
	assert.Equal(t, 0, hub.Listeners())
}

func TestJoinClosesEverySubscription(t *testing.T) {
	hub := NewHub(nil)
	noop := func(int, error) {}
	load := func(context.Context) (int, error) { return 0, nil }

	joined := Join(
		Watch(context.Background(), hub, []string{CollectionProjects}, load, noop),
		Watch(context.Background(), hub, []string{CollectionUsers}, load, noop),
	)
	require.Eventually(t, func() bool { return hub.Listeners() == 2 }, time.Second, 5*time.Millisecond)

	require.NoError(t, joined.Close())
	require.NoError(t, joined.Close())
	select {
	case <-joined.Done():
	default:
		t.Fatal("joined subscription still running after Close")
	}
	assert.Equal(t, 0, hub.Listeners())
}

func TestPublishForwards(t *testing.T) {
	hub := NewHub(nil)
	var forwarded []Change
	hub.SetForwarder(func(changes []Change) { forwarded = append(forwarded, changes...) })

	hub.Publish(Change{Collection: CollectionProjects, Op: OpDeleted, ID: "p1"})
	hub.Deliver(Change{Collection: CollectionProjects, Op: OpDeleted, ID: "p2"})

	require.Len(t, forwarded, 1)
	assert.Equal(t, "p1", forwarded[0].ID)
}

func TestRedisBridgeEnvelope(t *testing.T) {
	hub := NewHub(nil)
	client := redis.NewClient(&redis.Options{Addr: "127.0.0.1:0"})
	defer client.Close()

	local := NewRedisBridge(client, "", hub, nil)
	remote := NewRedisBridge(client, "", NewHub(nil), nil)
	assert.Equal(t, DefaultRedisChannel, local.channel)

	batch := []Change{{Collection: CollectionTasks, Op: OpCreated, ID: "t1"}}
	payload, err := local.encode(batch)
	require.NoError(t, err)

	changes, isRemote, err := local.decode(payload)
	require.NoError(t, err)
	assert.False(t, isRemote)
	assert.Equal(t, batch, changes)

	_, isRemote, err = remote.decode(payload)
	require.NoError(t, err)
	assert.True(t, isRemote)

	_, _, err = local.decode([]byte("not json"))
	assert.Error(t, err)
}

func receive[T any](t *testing.T, ch <-chan T) T {
	t.Helper()
	select {
	case v := <-ch:
		return v
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for snapshot")
	}
	var zero T
	return zero
}
