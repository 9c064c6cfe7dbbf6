package transport

import (
	"fmt"
	"net"
	"sync"

	"github.com/apache/arrow-go/v18/arrow/memory"
)

// Conn wraps a net.Conn with message framing, a write lock so multiple
// goroutines may send through it, and exactly-once close semantics.
type Conn struct {
	c   net.Conn
	mem memory.Allocator

	wmu sync.Mutex

	closeOnce sync.Once
	closeErr  error
}

// NewConn wraps an established connection. Arrow buffers for received data
// payloads are allocated from mem.
func NewConn(c net.Conn, mem memory.Allocator) *Conn {
	return &Conn{c: c, mem: mem}
}

// Dial connects to the daemon at addr.
func Dial(addr string, mem memory.Allocator) (*Conn, error) {
	c, err := net.Dial("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("dialing daemon at %s: %w", addr, err)
	}
	return NewConn(c, mem), nil
}

// Send frames msg onto the connection. Safe for concurrent use.
func (c *Conn) Send(msg *Message) error {
	c.wmu.Lock()
	defer c.wmu.Unlock()
	return Write(c.c, msg)
}

// Recv blocks until the next message arrives or the connection is closed.
// Only one goroutine may call Recv at a time.
func (c *Conn) Recv() (*Message, error) {
	return Read(c.c, c.mem)
}

// Close closes the underlying connection. Subsequent calls return the
// result of the first.
func (c *Conn) Close() error {
	c.closeOnce.Do(func() {
		c.closeErr = c.c.Close()
	})
	return c.closeErr
}

// RemoteAddr reports the peer address, for diagnostics.
func (c *Conn) RemoteAddr() net.Addr {
	return c.c.RemoteAddr()
}
