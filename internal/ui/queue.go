package ui

import "sync"

// updateQueue hands work to the tview event loop without ever blocking the
// caller, so it is safe from the UI goroutine, from transport callbacks and
// after the loop has exited. Posted functions run on the UI goroutine in
// the order they were posted.
type updateQueue struct {
	// draw is tview's QueueUpdateDraw, which waits for the loop.
	draw func(func())

	mu       sync.Mutex
	pending  []func()
	wake     chan struct{}
	stopped  chan struct{}
	stopOnce sync.Once
}

func newUpdateQueue(draw func(func())) *updateQueue {
	q := &updateQueue{
		draw:    draw,
		wake:    make(chan struct{}, 1),
		stopped: make(chan struct{}),
	}
	go q.pump()
	return q
}

// Post schedules f. Once Stop has been called f is dropped.
func (q *updateQueue) Post(f func()) {
	select {
	case <-q.stopped:
		return
	default:
	}
	q.mu.Lock()
	q.pending = append(q.pending, f)
	q.mu.Unlock()
	select {
	case q.wake <- struct{}{}:
	default:
	}
}

// Stop drops everything posted from now on. A batch already handed to a
// loop that has exited stays parked with the pump goroutine.
func (q *updateQueue) Stop() {
	q.stopOnce.Do(func() { close(q.stopped) })
}

func (q *updateQueue) pump() {
	for {
		select {
		case <-q.stopped:
			return
		case <-q.wake:
		}
		q.mu.Lock()
		batch := q.pending
		q.pending = nil
		q.mu.Unlock()
		if len(batch) == 0 {
			continue
		}
		q.draw(func() {
			for _, f := range batch {
				select {
				case <-q.stopped:
					return
				default:
				}
				f()
			}
		})
	}
}
