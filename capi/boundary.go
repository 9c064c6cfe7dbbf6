// Package capi exposes the node runtime to C callers.
//
// The C surface is declared in flownode.h. Contexts and events cross the
// boundary as opaque uintptr handles backed by the process-wide cgo handle
// registry, so no Go pointer is ever held by C code. Pointers written by
// the read functions alias event-owned memory that stays pinned until the
// event is freed.
//
// This file holds the boundary logic on plain Go types; the cgo shims in
// exports.go only translate argument and result types.
package capi

import (
	"errors"
	"runtime"
	"runtime/cgo"
	"unicode/utf8"
	"unsafe"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/memory"

	"flownode/internal/arrowconv"
	"flownode/internal/logging"
	"flownode/internal/node"
)

// Status codes returned by the send functions.
const (
	statusOK      = 0
	statusFailure = -1
)

var logger = logging.New("capi")

// dataflowContext bundles a node handle with its event stream. The C caller
// holds it as one opaque capability.
type dataflowContext struct {
	node   *node.Node
	events *node.EventStream
}

// eventBox owns one delivered event together with the pins that keep its
// identifier bytes and value buffer in place while C code holds pointers
// into them.
type eventBox struct {
	ev  *node.Event
	id  []byte
	pin runtime.Pinner
}

func newEventBox(ev *node.Event) *eventBox {
	box := &eventBox{ev: ev}
	if ev.Kind != node.EventInput {
		return box
	}
	if ev.ID != "" {
		box.id = []byte(ev.ID)
		box.pin.Pin(&box.id[0])
	}
	if buf := valueBuffer(ev.Data); buf != nil && len(buf.Bytes()) > 0 {
		box.pin.Pin(&buf.Bytes()[0])
	}
	return box
}

// free releases the pins and the event. Exactly once.
func (b *eventBox) free() {
	b.pin.Unpin()
	b.ev.Release()
}

// valueBuffer returns the array's value buffer, or nil when the array has
// none (nil arrays, Null-typed arrays).
func valueBuffer(arr arrow.Array) *memory.Buffer {
	if arr == nil {
		return nil
	}
	bufs := arr.Data().Buffers()
	if len(bufs) < 2 {
		return nil
	}
	return bufs[1]
}

// initFromEnv builds a context from the coordinator-provided environment.
// Returns 0 on failure; initialization problems are logged, never fatal.
func initFromEnv() uintptr {
	n, events, err := node.InitFromEnv()
	if err != nil {
		logger.Error("failed to initialize node", "error", err)
		return 0
	}
	return uintptr(cgo.NewHandle(&dataflowContext{node: n, events: events}))
}

// contextFree consumes a context handle: the event stream is released
// first, then the node.
func contextFree(context uintptr) {
	h := cgo.Handle(context)
	c := h.Value().(*dataflowContext)
	c.events.Close()
	if err := c.node.Close(); err != nil {
		logger.Error("closing node", "error", err)
	}
	h.Delete()
}

// nextEvent blocks until an event arrives. Returns 0 once the stream is
// permanently closed.
func nextEvent(context uintptr) uintptr {
	c := cgo.Handle(context).Value().(*dataflowContext)
	ev := c.events.Recv()
	if ev == nil {
		return 0
	}
	return uintptr(cgo.NewHandle(newEventBox(ev)))
}

// eventFree consumes an event handle and invalidates all views into it.
func eventFree(event uintptr) {
	h := cgo.Handle(event)
	h.Value().(*eventBox).free()
	h.Delete()
}

// readEventType classifies the event. Pure; never fails.
func readEventType(event uintptr) int {
	box := cgo.Handle(event).Value().(*eventBox)
	return int(box.ev.Kind)
}

// readInputID yields a view of the input's identifier bytes, or (nil, 0)
// for events that are not inputs.
func readInputID(event uintptr) (unsafe.Pointer, int) {
	box := cgo.Handle(event).Value().(*eventBox)
	if box.ev.Kind != node.EventInput || len(box.id) == 0 {
		return nil, 0
	}
	return unsafe.Pointer(&box.id[0]), len(box.id)
}

// readInputData yields the input's values as a slice aliasing the event's
// pinned buffer. A non-input event or an input without data yields nil. A
// typed read against a mismatched element type aborts the process: the
// caller asked to reinterpret memory at the wrong width, and there is no
// way to honor that request safely.
func readInputData[T arrowconv.Scalar](event uintptr) []T {
	box := cgo.Handle(event).Value().(*eventBox)
	if box.ev.Kind != node.EventInput {
		return nil
	}
	vals, err := arrowconv.Values[T](box.ev.Data)
	if err != nil {
		if errors.Is(err, arrowconv.ErrNoData) {
			return nil
		}
		logger.Error("typed read violates the input's declared type",
			"input", box.ev.ID, "error", err)
		panic(err)
	}
	return vals
}

// sendOutput validates the identifier, copies identifier and data into
// owned values and forwards them through the node. Returns statusOK or
// statusFailure; failures are logged, never fatal.
func sendOutput[T arrowconv.Scalar](context uintptr, id []byte, vals []T) int {
	c := cgo.Handle(context).Value().(*dataflowContext)
	if !utf8.Valid(id) {
		logger.Error("output id is not valid UTF-8", "node", c.node.ID())
		return statusFailure
	}

	arr := arrowconv.FromSlice(memory.DefaultAllocator, vals)
	defer arr.Release()

	if err := c.node.SendOutput(string(id), nil, arr); err != nil {
		logger.Error("sending output failed", "error", err)
		return statusFailure
	}
	return statusOK
}

// goBytes views n bytes of C memory as a Go slice, without copying.
func goBytes(p unsafe.Pointer, n int) []byte {
	if p == nil || n == 0 {
		return nil
	}
	return unsafe.Slice((*byte)(p), n)
}

// goSlice views n elements of C memory as a Go slice, without copying.
func goSlice[T arrowconv.Scalar](p unsafe.Pointer, n int) []T {
	if p == nil || n == 0 {
		return nil
	}
	return unsafe.Slice((*T)(p), n)
}
