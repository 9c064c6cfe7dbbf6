package capi

import (
	"fmt"
	"os"
	"os/exec"
	"runtime/cgo"
	"strings"
	"testing"

	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"flownode/internal/arrowconv"
	"flownode/internal/node"
)

// mismatchPairEnv selects which (declared, requested) pairing the child
// process exercises, e.g. "f32:i32".
const mismatchPairEnv = "FLOWNODE_MISMATCH_PAIR"

// runMismatch builds an input event carrying one declared element type and
// performs a typed read with another. It only ever runs in the child
// process and is expected to abort.
func runMismatch(pair string) {
	declared, requested, _ := strings.Cut(pair, ":")
	mem := memory.DefaultAllocator

	ev := &node.Event{Kind: node.EventInput, ID: "pose"}
	switch declared {
	case "u8":
		ev.Data = arrowconv.FromSlice(mem, []uint8{1})
	case "i32":
		ev.Data = arrowconv.FromSlice(mem, []int32{1})
	case "f32":
		ev.Data = arrowconv.FromSlice(mem, []float32{1})
	case "u64":
		ev.Data = arrowconv.FromSlice(mem, []uint64{1})
	}
	h := uintptr(cgo.NewHandle(newEventBox(ev)))

	switch requested {
	case "u8":
		readInputData[uint8](h)
	case "i32":
		readInputData[int32](h)
	case "f32":
		readInputData[float32](h)
	case "u64":
		readInputData[uint64](h)
	}
}

// TestTypedRead_MismatchAborts re-execs the test binary for every
// mismatched pairing and checks that the child dies with a diagnostic
// naming both types.
func TestTypedRead_MismatchAborts(t *testing.T) {
	if pair := os.Getenv(mismatchPairEnv); pair != "" {
		runMismatch(pair)
		// Reaching this line means the typed read did not abort.
		os.Exit(0)
	}

	types := []string{"u8", "i32", "f32", "u64"}
	for _, declared := range types {
		for _, requested := range types {
			if declared == requested {
				continue
			}
			pair := declared + ":" + requested
			t.Run(pair, func(t *testing.T) {
				cmd := exec.Command(os.Args[0], "-test.run=TestTypedRead_MismatchAborts$")
				cmd.Env = append(os.Environ(), fmt.Sprintf("%s=%s", mismatchPairEnv, pair))
				out, err := cmd.CombinedOutput()

				var exitErr *exec.ExitError
				require.ErrorAs(t, err, &exitErr, "child survived a mismatched read: %s", out)
				assert.Contains(t, string(out), "requested")
			})
		}
	}
}
