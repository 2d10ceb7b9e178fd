package queue

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xelth-com/eckposgo/internal/models"
	"github.com/xelth-com/eckposgo/internal/testutil"
	"gorm.io/gorm"
)

type payload struct {
	N int `json:"n"`
}

func newQueue(t *testing.T) (*Queue, *gorm.DB) {
	db := testutil.NewDB(t)
	q := New(db.DB, testutil.Log())
	base := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	var tick int64
	q.now = func() time.Time {
		return base.Add(time.Duration(atomic.AddInt64(&tick, 1)) * time.Millisecond)
	}
	return q, db.DB
}

func TestDrainAllSucceedEmptiesQueue(t *testing.T) {
	ctx := context.Background()
	q, _ := newQueue(t)

	for i := 0; i < 5; i++ {
		q.Enqueue(ctx, "push.menu", payload{N: i})
	}
	require.Equal(t, 5, q.Len(ctx))

	var order []string
	res, err := q.Drain(ctx, func(_ context.Context, e models.MutationQueueEntry) error {
		order = append(order, string(e.Payload))
		return nil
	})
	require.NoError(t, err)

	assert.Equal(t, DrainResult{Attempted: 5, Succeeded: 5, Remaining: 0}, res)
	assert.Equal(t, 0, q.Len(ctx))
	assert.Equal(t, []string{`{"n":0}`, `{"n":1}`, `{"n":2}`, `{"n":3}`, `{"n":4}`}, order)
}

func TestDrainKeepsFailuresInOrder(t *testing.T) {
	ctx := context.Background()
	q, _ := newQueue(t)

	ids := make([]string, 6)
	for i := range ids {
		ids[i] = q.Enqueue(ctx, "push.stock", payload{N: i}).ID
	}
	failing := map[string]bool{ids[1]: true, ids[3]: true, ids[4]: true}

	res, err := q.Drain(ctx, func(_ context.Context, e models.MutationQueueEntry) error {
		if failing[e.ID] {
			return errors.New("remote unavailable")
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, res.Failed)
	assert.Equal(t, 3, res.Remaining)

	left, err := q.Entries(ctx)
	require.NoError(t, err)
	require.Len(t, left, 3)
	assert.Equal(t, []string{ids[1], ids[3], ids[4]}, []string{left[0].ID, left[1].ID, left[2].ID})
	for _, e := range left {
		assert.Equal(t, 1, e.RetryCount)
		assert.Equal(t, "remote unavailable", e.LastError)
	}

	// Second pass succeeds and empties the queue.
	res, err = q.Drain(ctx, func(context.Context, models.MutationQueueEntry) error { return nil })
	require.NoError(t, err)
	assert.Equal(t, 3, res.Succeeded)
	assert.Equal(t, 0, q.Len(ctx))
}

func TestDrainStopsWhenContextDone(t *testing.T) {
	q, _ := newQueue(t)
	ctx, cancel := context.WithCancel(context.Background())
	for i := 0; i < 3; i++ {
		q.Enqueue(ctx, "push.audit", payload{N: i})
	}

	res, err := q.Drain(ctx, func(context.Context, models.MutationQueueEntry) error {
		cancel()
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Attempted)
	assert.Equal(t, 2, q.Len(context.Background()))
}

func TestEnqueueNeverFails(t *testing.T) {
	ctx := context.Background()
	q, db := newQueue(t)

	var refuse atomic.Bool
	require.NoError(t, db.Callback().Create().Before("gorm:create").Register("test:refuse", func(tx *gorm.DB) {
		if refuse.Load() && tx.Statement.Table == "mutation_queue" {
			_ = tx.AddError(errors.New("disk full"))
		}
	}))

	q.Enqueue(ctx, "push.users", payload{N: 0})
	refuse.Store(true)
	held := q.Enqueue(ctx, "push.users", payload{N: 1})
	assert.NotEmpty(t, held.ID)
	q.Enqueue(ctx, "push.users", payload{N: 2})

	assert.Equal(t, 3, q.Len(ctx), "in-memory entries count toward the backlog")

	var seen []string
	_, err := q.Drain(ctx, func(_ context.Context, e models.MutationQueueEntry) error {
		seen = append(seen, string(e.Payload))
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []string{`{"n":0}`, `{"n":1}`, `{"n":2}`}, seen)
	assert.Equal(t, 0, q.Len(ctx))

	refuse.Store(false)
	q.Enqueue(ctx, "push.users", payload{N: 3})
	var stored int64
	require.NoError(t, db.Model(&models.MutationQueueEntry{}).Count(&stored).Error)
	assert.EqualValues(t, 1, stored)
}

func TestOverflowFlushedOnNextCall(t *testing.T) {
	ctx := context.Background()
	q, db := newQueue(t)

	var refuse atomic.Bool
	refuse.Store(true)
	require.NoError(t, db.Callback().Create().Before("gorm:create").Register("test:refuse", func(tx *gorm.DB) {
		if refuse.Load() && tx.Statement.Table == "mutation_queue" {
			_ = tx.AddError(fmt.Errorf("locked"))
		}
	}))

	q.Enqueue(ctx, "push.menu", payload{N: 1})
	refuse.Store(false)
	q.Enqueue(ctx, "push.menu", payload{N: 2})

	entries, err := q.Entries(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	for _, e := range entries {
		assert.NotZero(t, e.Seq, "entry should be persisted after flush")
	}
	assert.Equal(t, `{"n":1}`, string(entries[0].Payload))
}

func TestEnqueueAndLenDoNotWaitOnReplay(t *testing.T) {
	ctx := context.Background()
	q, _ := newQueue(t)
	q.Enqueue(ctx, "push.stock", payload{N: 0})

	entered := make(chan struct{})
	release := make(chan struct{})
	drained := make(chan DrainResult, 1)
	go func() {
		res, _ := q.Drain(ctx, func(context.Context, models.MutationQueueEntry) error {
			close(entered)
			<-release
			return nil
		})
		drained <- res
	}()
	<-entered

	done := make(chan int, 1)
	go func() {
		q.Enqueue(ctx, "push.stock", payload{N: 1})
		done <- q.Len(ctx)
	}()

	select {
	case n := <-done:
		assert.Equal(t, 2, n)
	case <-time.After(time.Second):
		close(release)
		t.Fatal("Enqueue/Len blocked while a replay was in flight")
	}

	close(release)
	res := <-drained
	assert.Equal(t, 1, res.Succeeded)
	assert.Equal(t, 1, res.Remaining, "entry enqueued during the drain stays for the next pass")
	assert.Equal(t, 1, q.Len(ctx))
}
