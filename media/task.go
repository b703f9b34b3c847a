package media

import (
	"context"
	"sync"
)

// Task runs a streaming loop on its own goroutine.
type Task struct {
	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// Start runs loop in a new goroutine. Loop must return when context is
// done. Starting a running task does nothing.
func (t *Task) Start(loop func(context.Context)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.cancel != nil {
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	t.cancel = cancel
	t.done = done
	go func() {
		defer close(done)
		loop(ctx)
	}()
}

// Stop cancels the loop and waits for it to return. Release is called
// after cancel to wake up the loop if it's parked.
func (t *Task) Stop(release func()) {
	t.mu.Lock()
	cancel, done := t.cancel, t.done
	t.cancel, t.done = nil, nil
	t.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	if release != nil {
		release()
	}
	<-done
}

// Running returns true if task is started.
func (t *Task) Running() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.cancel != nil
}
