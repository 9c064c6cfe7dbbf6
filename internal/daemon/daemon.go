// Package daemon implements a minimal message router for one dataflow.
//
// Nodes dial in, register under an id declared in the dataflow descriptor,
// and from then on every data message they emit is forwarded to the inputs
// wired to that output. When a node disconnects, the daemon tells each
// downstream input that it is closed. Scheduling, discovery and multi-
// dataflow coordination are deliberately absent; this is just enough
// routing for nodes to talk to each other.
package daemon

import (
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"

	"github.com/apache/arrow-go/v18/arrow/memory"
	"golang.org/x/sync/errgroup"

	"flownode/internal/descriptor"
	"flownode/internal/logging"
	"flownode/internal/transport"
)

// Daemon routes messages between the nodes of a single dataflow.
type Daemon struct {
	flowID string
	flow   *descriptor.Dataflow
	mem    memory.Allocator
	logger *slog.Logger

	ln net.Listener
	g  errgroup.Group

	mu     sync.Mutex
	nodes  map[string]*transport.Conn
	closed bool
}

// New creates a daemon for the given dataflow. Arrow buffers for payloads
// passing through the daemon are allocated from mem.
func New(flowID string, flow *descriptor.Dataflow, mem memory.Allocator) *Daemon {
	return &Daemon{
		flowID: flowID,
		flow:   flow,
		mem:    mem,
		logger: logging.New("daemon").With(slog.String("dataflow", flowID)),
		nodes:  make(map[string]*transport.Conn),
	}
}

// Start begins listening on addr (use port 0 to pick a free port) and
// serving node connections in the background.
func (d *Daemon) Start(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", addr, err)
	}
	d.ln = ln
	d.logger.Info("daemon listening", "addr", ln.Addr().String())

	d.g.Go(d.acceptLoop)
	return nil
}

// Addr returns the listen address, valid after Start.
func (d *Daemon) Addr() string {
	return d.ln.Addr().String()
}

// StopDataflow broadcasts a stop request to every registered node. Nodes
// are expected to finish their work and disconnect.
func (d *Daemon) StopDataflow() {
	d.mu.Lock()
	defer d.mu.Unlock()
	for id, conn := range d.nodes {
		if err := conn.Send(&transport.Message{Kind: transport.KindStop}); err != nil {
			d.logger.Error("sending stop", "node", id, "error", err)
		}
	}
}

// Close shuts the daemon down: it stops accepting, closes every node
// connection and waits for the serving goroutines to drain.
func (d *Daemon) Close() error {
	d.mu.Lock()
	d.closed = true
	conns := make([]*transport.Conn, 0, len(d.nodes))
	for _, conn := range d.nodes {
		conns = append(conns, conn)
	}
	d.mu.Unlock()

	var errs []error
	if d.ln != nil {
		if err := d.ln.Close(); err != nil {
			errs = append(errs, fmt.Errorf("closing listener: %w", err))
		}
	}
	for _, conn := range conns {
		if err := conn.Close(); err != nil {
			errs = append(errs, fmt.Errorf("closing node connection: %w", err))
		}
	}
	if err := d.g.Wait(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

func (d *Daemon) acceptLoop() error {
	for {
		c, err := d.ln.Accept()
		if err != nil {
			// Listener closed during shutdown.
			return nil
		}
		conn := transport.NewConn(c, d.mem)
		d.g.Go(func() error {
			d.serve(conn)
			return nil
		})
	}
}

// serve handles one node connection from registration to disconnect.
func (d *Daemon) serve(conn *transport.Conn) {
	nodeID, err := d.register(conn)
	if err != nil {
		d.logger.Warn("registration failed", "remote", conn.RemoteAddr(), "error", err)
		conn.Close()
		return
	}
	logger := d.logger.With(slog.String("node", nodeID))
	logger.Info("node registered")

	for {
		msg, err := conn.Recv()
		if err != nil {
			break
		}
		switch msg.Kind {
		case transport.KindData:
			d.route(nodeID, msg)
			if msg.Data != nil {
				msg.Data.Release()
			}
		default:
			logger.Warn("ignoring unexpected message", "kind", msg.Kind)
		}
	}

	d.unregister(nodeID)
	conn.Close()
	logger.Info("node disconnected")
}

// register performs the handshake on a fresh connection and returns the
// node id it now serves.
func (d *Daemon) register(conn *transport.Conn) (string, error) {
	msg, err := conn.Recv()
	if err != nil {
		return "", fmt.Errorf("reading registration: %w", err)
	}
	if msg.Kind != transport.KindRegister {
		return "", fmt.Errorf("expected %q message, got %q", transport.KindRegister, msg.Kind)
	}

	reject := func(reason string) (string, error) {
		if err := conn.Send(&transport.Message{Kind: transport.KindRegistered, Error: reason}); err != nil {
			d.logger.Error("sending rejection", "error", err)
		}
		return "", errors.New(reason)
	}

	if msg.Dataflow != d.flowID {
		return reject(fmt.Sprintf("unknown dataflow %q, this daemon serves %q", msg.Dataflow, d.flowID))
	}
	if _, ok := d.flow.Node(msg.Node); !ok {
		return reject(fmt.Sprintf("node %q is not part of dataflow %q", msg.Node, d.flowID))
	}

	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return reject("daemon is shutting down")
	}
	if _, dup := d.nodes[msg.Node]; dup {
		d.mu.Unlock()
		return reject(fmt.Sprintf("node %q is already registered", msg.Node))
	}
	d.nodes[msg.Node] = conn
	d.mu.Unlock()

	if err := conn.Send(&transport.Message{Kind: transport.KindRegistered}); err != nil {
		d.unregister(msg.Node)
		return "", fmt.Errorf("acknowledging registration of %q: %w", msg.Node, err)
	}
	return msg.Node, nil
}

// route forwards one output message to every input wired to it.
func (d *Daemon) route(nodeID string, msg *transport.Message) {
	targets := d.flow.Subscribers(nodeID, msg.ID)
	if len(targets) == 0 {
		d.logger.Debug("output has no subscribers", "node", nodeID, "output", msg.ID)
		return
	}

	for _, target := range targets {
		d.mu.Lock()
		dest := d.nodes[target.Node]
		d.mu.Unlock()
		if dest == nil {
			d.logger.Warn("subscriber not connected, dropping message",
				"node", target.Node, "input", target.Input)
			continue
		}
		err := dest.Send(&transport.Message{
			Kind:     transport.KindData,
			Node:     target.Node,
			ID:       target.Input,
			Metadata: msg.Metadata,
			Data:     msg.Data,
		})
		if err != nil {
			d.logger.Error("forwarding message", "node", target.Node, "input", target.Input, "error", err)
		}
	}
}

// unregister removes a node and signals input closure downstream.
func (d *Daemon) unregister(nodeID string) {
	d.mu.Lock()
	delete(d.nodes, nodeID)
	shuttingDown := d.closed
	d.mu.Unlock()

	if shuttingDown {
		return
	}

	for _, target := range d.flow.InputsFrom(nodeID) {
		d.mu.Lock()
		dest := d.nodes[target.Node]
		d.mu.Unlock()
		if dest == nil {
			continue
		}
		err := dest.Send(&transport.Message{
			Kind: transport.KindInputClosed,
			Node: target.Node,
			ID:   target.Input,
		})
		if err != nil {
			d.logger.Error("signaling input closure", "node", target.Node, "input", target.Input, "error", err)
		}
	}
}
