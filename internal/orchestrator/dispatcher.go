package orchestrator

import "sync"

// Dispatcher runs callbacks one at a time in submission order.
// Implementations must not block the caller of Dispatch.
type Dispatcher interface {
	Dispatch(fn func())
}

// serialDispatcher is the default Dispatcher: one goroutine draining an
// unbounded FIFO, so callbacks may call back into the orchestrator.
type serialDispatcher struct {
	mu      sync.Mutex
	queue   []func()
	stopped bool
	wake    chan struct{}
	done    chan struct{}
}

func newSerialDispatcher() *serialDispatcher {
	d := &serialDispatcher{
		wake: make(chan struct{}, 1),
		done: make(chan struct{}),
	}
	go d.loop()
	return d
}

func (d *serialDispatcher) Dispatch(fn func()) {
	d.mu.Lock()
	if d.stopped {
		d.mu.Unlock()
		return
	}
	d.queue = append(d.queue, fn)
	d.mu.Unlock()
	d.signal()
}

func (d *serialDispatcher) signal() {
	select {
	case d.wake <- struct{}{}:
	default:
	}
}

func (d *serialDispatcher) loop() {
	defer close(d.done)
	for {
		d.mu.Lock()
		batch := d.queue
		d.queue = nil
		stopped := d.stopped
		d.mu.Unlock()

		for _, fn := range batch {
			fn()
		}
		if len(batch) > 0 {
			continue
		}
		if stopped {
			return
		}
		<-d.wake
	}
}

// Stop drains queued callbacks and waits for the loop to exit.
// It must not be called from inside a dispatched callback.
func (d *serialDispatcher) Stop() {
	d.mu.Lock()
	d.stopped = true
	d.mu.Unlock()
	d.signal()
	<-d.done
}
