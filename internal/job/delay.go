package job

import (
	"container/heap"
	"context"
	"sync"
	"time"
)

// jobHeap is a min-heap of jobs ordered by RunAt.
type jobHeap []*Job

func (h jobHeap) Len() int { return len(h) }

func (h jobHeap) Less(i, j int) bool {
	if h[i].RunAt.Equal(h[j].RunAt) {
		return h[i].CreatedAt.Before(h[j].CreatedAt)
	}
	return h[i].RunAt.Before(h[j].RunAt)
}

func (h jobHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *jobHeap) Push(x any) { *h = append(*h, x.(*Job)) }

func (h *jobHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return item
}

// DelayQueue holds jobs until their RunAt instant. A single timer tracks the
// earliest job, so waiting jobs do not occupy workers.
type DelayQueue struct {
	mu     sync.Mutex
	items  jobHeap
	notify chan struct{}
}

// NewDelayQueue creates an empty DelayQueue.
func NewDelayQueue() *DelayQueue {
	return &DelayQueue{notify: make(chan struct{}, 1)}
}

// Schedule adds a job. It may be called before or while Run is active.
func (d *DelayQueue) Schedule(job *Job) {
	d.mu.Lock()
	heap.Push(&d.items, job)
	d.mu.Unlock()

	select {
	case d.notify <- struct{}{}:
	default:
	}
}

// Len returns the number of jobs still waiting.
func (d *DelayQueue) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.items.Len()
}

// Run calls dispatch for every job as it becomes due, in RunAt order,
// until ctx is cancelled.
func (d *DelayQueue) Run(ctx context.Context, dispatch func(*Job)) {
	timer := time.NewTimer(time.Hour)
	defer timer.Stop()

	for {
		d.mu.Lock()

		if d.items.Len() == 0 {
			d.mu.Unlock()
			select {
			case <-ctx.Done():
				return
			case <-d.notify:
				continue
			}
		}

		next := d.items[0]
		wait := time.Until(next.RunAt)
		if wait <= 0 {
			heap.Pop(&d.items)
			d.mu.Unlock()
			dispatch(next)
			continue
		}

		if !timer.Stop() {
			select {
			case <-timer.C:
			default:
			}
		}
		timer.Reset(wait)
		d.mu.Unlock()

		select {
		case <-ctx.Done():
			return
		case <-timer.C:
		case <-d.notify:
		}
	}
}
