package worker

import (
	"runtime"

	"github.com/getsentry/sentry-go"
	"github.com/sirupsen/logrus"
	"go.uber.org/atomic"
)

// Dispatcher is a fixed set of background goroutines fed by a single channel,
// used for fire-and-forget outbound work (effect batches, hit confirmations)
// that must never block the game thread. No goroutine is ever spawned per task.
type Dispatcher struct {
	log *logrus.Logger

	queue  chan func()
	closed chan struct{}

	dropped atomic.Int64
}

// NewDispatcher starts size worker goroutines. A size of 0 or below defaults to
// the amount of CPUs.
func NewDispatcher(log *logrus.Logger, size int) *Dispatcher {
	if size <= 0 {
		size = runtime.NumCPU()
	}

	d := &Dispatcher{
		log:    log,
		queue:  make(chan func(), size*4),
		closed: make(chan struct{}),
	}
	for i := 0; i < size; i++ {
		go d.work()
	}

	return d
}

func (d *Dispatcher) work() {
	defer sentry.Recover()

	for {
		select {
		case <-d.closed:
			return
		case f := <-d.queue:
			f()
		}
	}
}

// Submit queues f for execution on one of the dispatcher's goroutines. It never
// blocks: when every worker is busy and the queue is full, f is dropped with a
// warning and false is returned.
func (d *Dispatcher) Submit(f func()) bool {
	select {
	case d.queue <- f:
		return true
	default:
		d.dropped.Inc()
		d.log.Warn("dispatch queue full, dropping task")
		return false
	}
}

// Dropped returns the amount of tasks discarded because the queue was full.
func (d *Dispatcher) Dropped() int64 {
	return d.dropped.Load()
}

// Close stops the dispatcher's goroutines. Queued work that has not started yet
// is discarded.
func (d *Dispatcher) Close() {
	close(d.closed)
}
