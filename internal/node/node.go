// Package node implements the runtime side of one dataflow node: the
// connection to the daemon, the stream of incoming events and the sending
// of typed outputs.
package node

import (
	"fmt"
	"log/slog"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/memory"

	"flownode/internal/config"
	"flownode/internal/logging"
	"flownode/internal/transport"
)

// Node is one registered dataflow participant. It is exclusively owned by
// its creator and not safe for concurrent use from multiple goroutines
// without external synchronization.
type Node struct {
	id       string
	dataflow string
	conn     *transport.Conn
	logger   *slog.Logger
}

// InitFromEnv initializes a node from the configuration the coordinator
// placed in the environment.
func InitFromEnv() (*Node, *EventStream, error) {
	cfg, err := config.FromEnv()
	if err != nil {
		return nil, nil, err
	}
	return Init(cfg)
}

// Init dials the daemon, registers the node and returns the node handle
// together with its event stream. The two share one connection; tear them
// down by closing the stream first, then the node.
func Init(cfg config.Config) (*Node, *EventStream, error) {
	return InitWithAllocator(cfg, memory.DefaultAllocator)
}

// InitWithAllocator is Init with an explicit Arrow allocator for received
// payloads. Tests use a checked allocator to assert that teardown leaves no
// Arrow memory behind.
func InitWithAllocator(cfg config.Config, mem memory.Allocator) (*Node, *EventStream, error) {
	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}

	conn, err := transport.Dial(cfg.DaemonAddr, mem)
	if err != nil {
		return nil, nil, err
	}

	err = conn.Send(&transport.Message{
		Kind:     transport.KindRegister,
		Node:     cfg.NodeID,
		Dataflow: cfg.DataflowID,
	})
	if err != nil {
		conn.Close()
		return nil, nil, fmt.Errorf("registering node %q: %w", cfg.NodeID, err)
	}

	ack, err := conn.Recv()
	if err != nil {
		conn.Close()
		return nil, nil, fmt.Errorf("awaiting registration ack for node %q: %w", cfg.NodeID, err)
	}
	if ack.Kind != transport.KindRegistered {
		conn.Close()
		return nil, nil, fmt.Errorf("unexpected reply %q to registration of node %q", ack.Kind, cfg.NodeID)
	}
	if ack.Error != "" {
		conn.Close()
		return nil, nil, fmt.Errorf("daemon rejected node %q: %s", cfg.NodeID, ack.Error)
	}

	n := &Node{
		id:       cfg.NodeID,
		dataflow: cfg.DataflowID,
		conn:     conn,
		logger:   logging.New("node").With(slog.String("node", cfg.NodeID)),
	}
	return n, newEventStream(conn), nil
}

// ID returns the node's identifier within the dataflow.
func (n *Node) ID() string {
	return n.id
}

// SendOutput transmits one typed array on the named output channel. The
// identifier is copied; data is not consumed, the caller keeps its
// reference and releases it when done.
func (n *Node) SendOutput(id string, meta Metadata, data arrow.Array) error {
	if id == "" {
		return fmt.Errorf("output id must not be empty")
	}
	err := n.conn.Send(&transport.Message{
		Kind:     transport.KindData,
		Node:     n.id,
		ID:       id,
		Metadata: meta,
		Data:     data,
	})
	if err != nil {
		return fmt.Errorf("sending output %q from node %q: %w", id, n.id, err)
	}
	return nil
}

// Close releases the node's connection. Exactly-once by contract; call it
// after closing the event stream.
func (n *Node) Close() error {
	return n.conn.Close()
}
