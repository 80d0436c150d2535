package job

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func jobDueIn(d time.Duration) *Job {
	j := New(uuid.New(), 0, time.Now())
	j.RunAt = time.Now().Add(d)
	return j
}

func TestDelayQueue_DispatchesInRunAtOrder(t *testing.T) {
	t.Parallel()

	d := NewDelayQueue()
	late := jobDueIn(120 * time.Millisecond)
	early := jobDueIn(40 * time.Millisecond)
	now := jobDueIn(-time.Second)

	d.Schedule(late)
	d.Schedule(early)
	d.Schedule(now)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var mu sync.Mutex
	var order []uuid.UUID
	done := make(chan struct{})

	go d.Run(ctx, func(j *Job) {
		mu.Lock()
		order = append(order, j.ID)
		n := len(order)
		mu.Unlock()
		if n == 3 {
			close(done)
		}
	})

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for dispatch")
	}

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []uuid.UUID{now.ID, early.ID, late.ID}, order)
	assert.Equal(t, 0, d.Len())
}

func TestDelayQueue_HoldsUntilDue(t *testing.T) {
	t.Parallel()

	d := NewDelayQueue()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	dispatched := make(chan time.Time, 1)
	go d.Run(ctx, func(j *Job) { dispatched <- time.Now() })

	j := jobDueIn(150 * time.Millisecond)
	d.Schedule(j)

	select {
	case at := <-dispatched:
		assert.False(t, at.Before(j.RunAt), "dispatched before RunAt")
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for dispatch")
	}
}

func TestDelayQueue_EarlierJobPreemptsTimer(t *testing.T) {
	t.Parallel()

	d := NewDelayQueue()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	got := make(chan uuid.UUID, 2)
	go d.Run(ctx, func(j *Job) { got <- j.ID })

	d.Schedule(jobDueIn(time.Hour))
	time.Sleep(20 * time.Millisecond)
	soon := jobDueIn(10 * time.Millisecond)
	d.Schedule(soon)

	select {
	case id := <-got:
		assert.Equal(t, soon.ID, id)
	case <-time.After(2 * time.Second):
		t.Fatal("new earlier job did not preempt the long timer")
	}
	assert.Equal(t, 1, d.Len())
}

func TestDelayQueue_StopsOnCancel(t *testing.T) {
	t.Parallel()

	d := NewDelayQueue()
	d.Schedule(jobDueIn(time.Hour))

	ctx, cancel := context.WithCancel(context.Background())
	finished := make(chan struct{})
	go func() {
		d.Run(ctx, func(*Job) {})
		close(finished)
	}()

	cancel()
	select {
	case <-finished:
	case <-time.After(time.Second):
		require.Fail(t, "Run did not return after cancel")
	}
}
