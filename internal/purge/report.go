package purge

import (
	"sync"
	"sync/atomic"
)

// Reporter receives human-readable progress.  Report must not block for
// long, use Notifier to decouple a slow consumer.
type Reporter interface {
	Report(text string)
}

// ReporterFunc is an adapter to use an ordinary function as a Reporter.
type ReporterFunc func(text string)

func (f ReporterFunc) Report(text string) {
	f(text)
}

type nopReporter struct{}

func (nopReporter) Report(string) {}

const defNotifierBuf = 16

// Notifier is a Reporter that never blocks the caller.  Messages are queued
// in a bounded buffer and delivered to the sink in order by a single
// goroutine.  If the buffer is full, the oldest queued message is dropped, so
// the most recent message, which is the final summary at the end of the run,
// is always delivered.
type Notifier struct {
	sink func(string)
	ch   chan string
	done chan struct{}

	mu      sync.RWMutex
	closed  bool
	dropped atomic.Int64
}

// NewNotifier starts the delivery goroutine.  buf is the queue size, if it's
// less than 1, the default is used.  Close must be called to release it.
func NewNotifier(sink func(string), buf int) *Notifier {
	if buf < 1 {
		buf = defNotifierBuf
	}
	n := &Notifier{
		sink: sink,
		ch:   make(chan string, buf),
		done: make(chan struct{}),
	}
	go n.deliver()
	return n
}

func (n *Notifier) deliver() {
	defer close(n.done)
	for text := range n.ch {
		n.sink(text)
	}
}

// Report queues the text for delivery.  Calls after Close are ignored.
func (n *Notifier) Report(text string) {
	n.mu.RLock()
	defer n.mu.RUnlock()
	if n.closed {
		return
	}
	for {
		select {
		case n.ch <- text:
			return
		default:
		}
		// full, make room by discarding the oldest message.
		select {
		case <-n.ch:
			n.dropped.Add(1)
		default:
		}
	}
}

// Dropped returns the number of messages discarded so far.
func (n *Notifier) Dropped() int {
	return int(n.dropped.Load())
}

// Close stops accepting messages and waits until the queued ones are
// delivered.
func (n *Notifier) Close() {
	n.mu.Lock()
	if !n.closed {
		n.closed = true
		close(n.ch)
	}
	n.mu.Unlock()
	<-n.done
}
