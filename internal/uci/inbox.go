package uci

import (
	"context"
	"sync"
)

// inbox is an unbounded single-consumer queue of parsed engine events. The
// reader goroutine never blocks on push, so a slow consumer cannot stall the
// engine's stdout.
type inbox struct {
	mu     sync.Mutex
	events []Event
	closed bool
	err    error

	notify chan struct{}
	done   chan struct{}
}

func newInbox() *inbox {
	return &inbox{
		notify: make(chan struct{}, 1),
		done:   make(chan struct{}),
	}
}

func (q *inbox) push(ev Event) {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.events = append(q.events, ev)
	q.mu.Unlock()

	select {
	case q.notify <- struct{}{}:
	default:
	}
}

// close marks end of stream. Events already queued are still delivered.
func (q *inbox) close(err error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return
	}
	q.closed = true
	q.err = err
	close(q.done)
}

func (q *inbox) poll() (Event, bool, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.events) > 0 {
		ev := q.events[0]
		q.events[0] = Event{}
		q.events = q.events[1:]
		return ev, true, nil
	}
	if q.closed {
		return Event{}, false, q.err
	}
	return Event{}, false, nil
}

func (q *inbox) next(ctx context.Context) (Event, error) {
	for {
		ev, ok, err := q.poll()
		if ok {
			return ev, nil
		}
		if err != nil {
			return Event{}, err
		}

		select {
		case <-q.notify:
		case <-q.done:
		case <-ctx.Done():
			return Event{}, ctx.Err()
		}
	}
}

// failure returns the close error, if closed.
func (q *inbox) failure() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.err
}
