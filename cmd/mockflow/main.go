// mockflow runs a self-contained dataflow in one process: an in-memory
// daemon, a talker node publishing float32 poses, and a listener node
// printing what it receives. It exists to exercise the runtime end to end
// without any C code involved.
package main

import (
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/apache/arrow-go/v18/arrow/memory"
	"golang.org/x/sync/errgroup"

	"flownode/internal/arrowconv"
	"flownode/internal/config"
	"flownode/internal/daemon"
	"flownode/internal/descriptor"
	"flownode/internal/logging"
	"flownode/internal/node"
)

const flowYAML = `
nodes:
  - id: talker
    outputs: [pose]
  - id: listener
    inputs:
      pose: talker/pose
`

var (
	addr     = flag.String("addr", "127.0.0.1:0", "daemon listen address")
	count    = flag.Int("count", 10, "number of pose messages to send")
	interval = flag.Duration("interval", 100*time.Millisecond, "delay between messages")
	logLevel = flag.String("log-level", "info", "log level (debug, info, warn, error)")
)

func main() {
	flag.Parse()

	var level slog.Level
	if err := level.UnmarshalText([]byte(*logLevel)); err != nil {
		log.Fatalf("Error: invalid log level %q", *logLevel)
	}
	logging.Init(level, "text")

	if err := run(); err != nil {
		log.Fatalf("Error: %v", err)
	}
}

func run() error {
	flow, err := descriptor.Parse([]byte(flowYAML))
	if err != nil {
		return fmt.Errorf("parsing dataflow descriptor: %w", err)
	}

	d := daemon.New("mockflow", flow, memory.DefaultAllocator)
	if err := d.Start(*addr); err != nil {
		return fmt.Errorf("starting daemon: %w", err)
	}
	defer d.Close()

	stopSig := make(chan os.Signal, 1)
	signal.Notify(stopSig, syscall.SIGINT, syscall.SIGTERM)

	var g errgroup.Group
	g.Go(func() error { return talk(d.Addr()) })
	g.Go(func() error { return listen(d.Addr()) })
	g.Go(func() error {
		<-stopSig
		signal.Stop(stopSig)
		d.StopDataflow()
		return nil
	})

	return g.Wait()
}

// talk publishes float32 poses on the "pose" output, then detaches. Its
// disconnect is what closes the listener's input.
func talk(daemonAddr string) error {
	n, events, err := node.Init(config.Config{
		NodeID:     "talker",
		DataflowID: "mockflow",
		DaemonAddr: daemonAddr,
	})
	if err != nil {
		return fmt.Errorf("initializing talker: %w", err)
	}
	defer n.Close()
	defer events.Close()

	// The talker has no inputs. Its stream only ever carries a stop
	// request or the end-of-stream nil.
	stopped := make(chan struct{})
	go func() {
		defer close(stopped)
		for {
			ev := events.Recv()
			if ev == nil {
				return
			}
			kind := ev.Kind
			ev.Release()
			if kind == node.EventStop {
				return
			}
		}
	}()

	tick := time.NewTicker(*interval)
	defer tick.Stop()

	for i := 0; i < *count; i++ {
		pose := arrowconv.FromSlice(memory.DefaultAllocator,
			[]float32{float32(i), float32(i) * 2, float32(i) * 3})
		err := n.SendOutput("pose", node.Metadata{"seq": fmt.Sprint(i)}, pose)
		pose.Release()
		if err != nil {
			return fmt.Errorf("sending pose %d: %w", i, err)
		}

		select {
		case <-tick.C:
		case <-stopped:
			return nil
		}
	}
	return nil
}

// listen prints every received event until the stream ends.
func listen(daemonAddr string) error {
	n, events, err := node.Init(config.Config{
		NodeID:     "listener",
		DataflowID: "mockflow",
		DaemonAddr: daemonAddr,
	})
	if err != nil {
		return fmt.Errorf("initializing listener: %w", err)
	}
	defer n.Close()
	defer events.Close()

	for {
		ev := events.Recv()
		if ev == nil {
			return nil
		}

		switch ev.Kind {
		case node.EventInput:
			vals, err := arrowconv.Values[float32](ev.Data)
			if err != nil {
				fmt.Printf("input %s: unreadable: %v\n", ev.ID, err)
			} else {
				fmt.Printf("input %s seq=%s values=%v\n", ev.ID, ev.Metadata["seq"], vals)
			}
		case node.EventInputClosed:
			fmt.Printf("input %s closed\n", ev.ID)
		case node.EventStop:
			fmt.Println("stop requested")
			ev.Release()
			return nil
		default:
			fmt.Printf("event %s\n", ev.Kind)
		}
		ev.Release()
	}
}
