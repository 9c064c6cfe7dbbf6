package node

import (
	"github.com/apache/arrow-go/v18/arrow"

	"flownode/internal/transport"
)

// EventKind classifies an event into a small closed set. The numbering is
// part of the C ABI (see capi/flownode.h) and must not be reordered.
type EventKind int

const (
	// EventStop asks the node to shut down.
	EventStop EventKind = iota
	// EventInput carries data for one of the node's inputs.
	EventInput
	// EventInputClosed signals that an input will receive no more data.
	EventInputClosed
	// EventError reports a daemon-side failure.
	EventError
	// EventUnknown covers message variants this version does not know.
	EventUnknown
)

func (k EventKind) String() string {
	switch k {
	case EventStop:
		return "stop"
	case EventInput:
		return "input"
	case EventInputClosed:
		return "input-closed"
	case EventError:
		return "error"
	default:
		return "unknown"
	}
}

// Metadata carries optional key/value annotations on an output.
type Metadata map[string]string

// Event is one occurrence delivered to the node. The receiver owns it and
// must call Release exactly once; views into ID and Data are valid only
// until then.
type Event struct {
	Kind EventKind
	// ID names the input the event concerns (EventInput, EventInputClosed).
	ID string
	// Data is the input payload. May be nil even for EventInput.
	Data arrow.Array
	// Metadata carries the sender's annotations, if any.
	Metadata Metadata
	// Err is the failure description of an EventError.
	Err string
}

// Release frees the event's payload. Further use of previously obtained
// views is invalid.
func (e *Event) Release() {
	if e.Data != nil {
		e.Data.Release()
		e.Data = nil
	}
}

// eventFromMessage classifies one wire message. Ownership of msg.Data moves
// into the returned event.
func eventFromMessage(msg *transport.Message) *Event {
	switch msg.Kind {
	case transport.KindData:
		return &Event{Kind: EventInput, ID: msg.ID, Data: msg.Data, Metadata: msg.Metadata}
	case transport.KindInputClosed:
		return &Event{Kind: EventInputClosed, ID: msg.ID}
	case transport.KindStop:
		return &Event{Kind: EventStop}
	case transport.KindError:
		return &Event{Kind: EventError, Err: msg.Error}
	default:
		return &Event{Kind: EventUnknown}
	}
}
