package connection

import (
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/rickgao/position-relay/internal/buffer"
)

type writeDeadliner interface {
	SetWriteDeadline(t time.Time) error
}

// writeQueue serializes outbound frames onto one transport. Only run writes, so
// at most one WriteMessage is in flight.
type writeQueue struct {
	conn     Transport
	frames   *buffer.GrowableBuffer[[]byte]
	timeout  time.Duration
	inFlight atomic.Bool
	done     chan struct{}
}

func newWriteQueue(conn Transport, capacity int, timeout time.Duration) *writeQueue {
	return &writeQueue{
		conn:    conn,
		frames:  buffer.NewGrowableBuffer[[]byte](capacity),
		timeout: timeout,
		done:    make(chan struct{}),
	}
}

// enqueue appends frame. Returns false once the queue is closed.
func (q *writeQueue) enqueue(frame []byte) bool {
	return q.frames.Send(frame)
}

// run writes frames in FIFO order until the queue is closed or a write fails.
// The failed frame is dropped and onError receives the wrapped cause.
func (q *writeQueue) run(onError func(error)) {
	defer close(q.done)

	for {
		frame, ok := q.frames.Receive()
		if !ok {
			return
		}

		q.inFlight.Store(true)
		if q.timeout > 0 {
			if d, ok := q.conn.(writeDeadliner); ok {
				d.SetWriteDeadline(time.Now().Add(q.timeout))
			}
		}
		err := q.conn.WriteMessage(websocket.BinaryMessage, frame)
		q.inFlight.Store(false)

		if err != nil {
			onError(&TransportError{Op: "write", Err: err})
			return
		}
	}
}

// close stops the queue and drops anything not yet written.
func (q *writeQueue) close() int {
	q.frames.Close()
	return q.frames.Discard()
}

func (q *writeQueue) pending() int {
	return q.frames.Len()
}
