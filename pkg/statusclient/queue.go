package statusclient

import (
	"sync"

	"github.com/courtside/camstatus-go/pkg/transport"
)

type eventKind uint8

const (
	// evOpened: dial succeeded.
	evOpened eventKind = iota
	// evOpenFailed: the open could not be started (no retry).
	evOpenFailed
	// evMessage: one inbound frame.
	evMessage
	// evClosed: the connection or dial ended; code drives the retry decision.
	evClosed
	// evRetry: a backoff timer fired.
	evRetry
	// evDisconnected: Disconnect ended an open connection.
	evDisconnected
	// evStop ends the loop.
	evStop
)

// event is one unit of work for the loop. gen is the connection generation
// for evOpened/evMessage/evClosed and the timer generation for evRetry.
type event struct {
	kind   eventKind
	gen    uint64
	connID string
	conn   transport.Conn
	data   []byte
	code   int
	reason string
	err    error
}

// eventQueue is an unbounded FIFO. push never blocks, so owner calls made
// from inside a callback cannot deadlock against the loop.
type eventQueue struct {
	mu     sync.Mutex
	items  []event
	signal chan struct{}
}

func newEventQueue() *eventQueue {
	return &eventQueue{signal: make(chan struct{}, 1)}
}

func (q *eventQueue) push(ev event) {
	q.mu.Lock()
	q.items = append(q.items, ev)
	q.mu.Unlock()

	select {
	case q.signal <- struct{}{}:
	default:
	}
}

// drain removes and returns everything queued.
func (q *eventQueue) drain() []event {
	q.mu.Lock()
	defer q.mu.Unlock()
	items := q.items
	q.items = nil
	return items
}
