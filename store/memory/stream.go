package memory

import (
	"context"
	"sync"

	"github.com/xraph/warden/waitlist"
)

// stream is an unbounded in-memory change stream.
type stream struct {
	owner *Store

	mu     sync.Mutex
	queue  []waitlist.ChangeEvent
	signal chan struct{}
	done   bool
	err    error

	current waitlist.ChangeEvent
}

func newStream(owner *Store) *stream {
	return &stream{owner: owner, signal: make(chan struct{}, 1)}
}

func (st *stream) push(ev waitlist.ChangeEvent) {
	st.mu.Lock()
	st.queue = append(st.queue, ev)
	st.mu.Unlock()
	st.wake()
}

func (st *stream) fail(err error) {
	st.mu.Lock()
	if !st.done {
		st.done = true
		st.err = err
	}
	st.mu.Unlock()
	st.wake()
}

func (st *stream) wake() {
	select {
	case st.signal <- struct{}{}:
	default:
	}
}

func (st *stream) Next(ctx context.Context) bool {
	for {
		st.mu.Lock()
		if len(st.queue) > 0 {
			st.current = st.queue[0]
			st.queue = st.queue[1:]
			st.mu.Unlock()
			return true
		}
		if st.done {
			st.mu.Unlock()
			return false
		}
		st.mu.Unlock()

		select {
		case <-ctx.Done():
			st.fail(ctx.Err())
			return false
		case <-st.signal:
		}
	}
}

func (st *stream) Event() waitlist.ChangeEvent { return st.current }

func (st *stream) Err() error {
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.err
}

func (st *stream) Close(_ context.Context) error {
	st.owner.mu.Lock()
	delete(st.owner.streams, st)
	st.owner.mu.Unlock()

	st.mu.Lock()
	st.done = true
	st.mu.Unlock()
	st.wake()
	return nil
}
