package node

import (
	"errors"
	"io"
	"log/slog"
	"net"
	"sync"

	"flownode/internal/logging"
	"flownode/internal/transport"
)

// recvBuffer bounds how many undelivered events the stream holds before the
// reader goroutine stops pulling from the connection.
const recvBuffer = 32

// EventStream delivers the events addressed to one node, in arrival order.
// Recv is the node's sole blocking operation: it suspends the caller until
// an event arrives or the stream is permanently closed.
type EventStream struct {
	conn   *transport.Conn
	ch     chan *Event
	done   chan struct{}
	exited chan struct{}

	closeOnce sync.Once
	logger    *slog.Logger
}

func newEventStream(conn *transport.Conn) *EventStream {
	s := &EventStream{
		conn:   conn,
		ch:     make(chan *Event, recvBuffer),
		done:   make(chan struct{}),
		exited: make(chan struct{}),
		logger: logging.New("eventstream"),
	}
	go s.run()
	return s
}

// Recv blocks until the next event arrives. It returns nil once the stream
// is permanently closed, and keeps returning nil on further calls. A nil
// return is the signal to leave the processing loop; it is not an error.
func (s *EventStream) Recv() *Event {
	ev, ok := <-s.ch
	if !ok {
		return nil
	}
	return ev
}

// Close tears the stream down: it stops delivery, closes the underlying
// connection, waits for the reader to exit and releases every event the
// caller never received. Exactly-once; further calls are no-ops.
func (s *EventStream) Close() {
	s.closeOnce.Do(func() {
		close(s.done)
		if err := s.conn.Close(); err != nil {
			s.logger.Error("closing connection", "error", err)
		}
		<-s.exited
		for ev := range s.ch {
			ev.Release()
		}
	})
}

// run is the reader loop. It owns the receive side of the connection and is
// the only goroutine that closes s.ch.
func (s *EventStream) run() {
	defer close(s.exited)
	for {
		msg, err := s.conn.Recv()
		if err != nil {
			if !isStreamEnd(err) {
				s.logger.Error("reading event", "error", err)
			}
			close(s.ch)
			return
		}

		ev := eventFromMessage(msg)
		select {
		case s.ch <- ev:
		case <-s.done:
			ev.Release()
		}
	}
}

// isStreamEnd reports whether err is an expected end-of-stream condition
// rather than a protocol failure.
func isStreamEnd(err error) bool {
	return errors.Is(err, io.EOF) ||
		errors.Is(err, io.ErrUnexpectedEOF) ||
		errors.Is(err, net.ErrClosed) ||
		errors.Is(err, io.ErrClosedPipe)
}
