// Package transport frames the messages exchanged between a node and the
// daemon.
//
// Each frame is a fixed 8-byte prefix (big-endian header length and payload
// length) followed by a JSON header and, for data messages, an Arrow IPC
// stream carrying a single record with a single column. Shipping payloads in
// IPC form means the receiving side ends up with a refcounted Arrow array it
// can hand out without further copies.
package transport

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/ipc"
	"github.com/apache/arrow-go/v18/arrow/memory"
)

// Kind discriminates message variants on the wire.
type Kind string

const (
	// KindRegister announces a node to the daemon.
	KindRegister Kind = "register"
	// KindRegistered acknowledges (or rejects) a registration.
	KindRegistered Kind = "registered"
	// KindData carries one output (node to daemon) or one input (daemon
	// to node) together with an Arrow payload.
	KindData Kind = "data"
	// KindInputClosed tells a node that one of its inputs will receive
	// no further data.
	KindInputClosed Kind = "input-closed"
	// KindStop asks a node to shut down.
	KindStop Kind = "stop"
	// KindError reports a daemon-side failure to a node.
	KindError Kind = "error"
)

// Frame size limits. A header is a small JSON document; payloads are capped
// to keep a corrupted length prefix from provoking a huge allocation.
const (
	maxHeaderLen  = 1 << 20
	maxPayloadLen = 1 << 30
)

// Message is one framed unit on the node/daemon connection.
type Message struct {
	Kind     Kind
	Node     string
	Dataflow string
	// ID names the output (node to daemon) or input (daemon to node)
	// the message concerns.
	ID       string
	Error    string
	Metadata map[string]string
	// Data is the Arrow payload of a KindData message, nil otherwise.
	// Receivers own one reference and must Release it.
	Data arrow.Array
}

type header struct {
	Kind     Kind              `json:"kind"`
	Node     string            `json:"node,omitempty"`
	Dataflow string            `json:"dataflow,omitempty"`
	ID       string            `json:"id,omitempty"`
	Error    string            `json:"error,omitempty"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// Write frames msg onto w as a single Write call. It does not take
// ownership of msg.Data.
func Write(w io.Writer, msg *Message) error {
	hdr, err := json.Marshal(header{
		Kind:     msg.Kind,
		Node:     msg.Node,
		Dataflow: msg.Dataflow,
		ID:       msg.ID,
		Error:    msg.Error,
		Metadata: msg.Metadata,
	})
	if err != nil {
		return fmt.Errorf("encoding message header: %w", err)
	}

	var payload bytes.Buffer
	if msg.Data != nil {
		if err := writeIPC(&payload, msg.Data); err != nil {
			return err
		}
	}

	frame := make([]byte, 0, 8+len(hdr)+payload.Len())
	frame = binary.BigEndian.AppendUint32(frame, uint32(len(hdr)))
	frame = binary.BigEndian.AppendUint32(frame, uint32(payload.Len()))
	frame = append(frame, hdr...)
	frame = append(frame, payload.Bytes()...)

	if _, err := w.Write(frame); err != nil {
		return fmt.Errorf("writing frame: %w", err)
	}
	return nil
}

// Read decodes the next frame from r. Arrow buffers for data payloads are
// allocated from mem; the caller must Release msg.Data when done with it.
func Read(r io.Reader, mem memory.Allocator) (*Message, error) {
	var prefix [8]byte
	if _, err := io.ReadFull(r, prefix[:]); err != nil {
		// EOF here is a clean end of stream; let the caller decide.
		return nil, err
	}
	hdrLen := binary.BigEndian.Uint32(prefix[:4])
	payloadLen := binary.BigEndian.Uint32(prefix[4:])
	if hdrLen == 0 || hdrLen > maxHeaderLen {
		return nil, fmt.Errorf("frame header length %d out of range", hdrLen)
	}
	if payloadLen > maxPayloadLen {
		return nil, fmt.Errorf("frame payload length %d out of range", payloadLen)
	}

	buf := make([]byte, int(hdrLen)+int(payloadLen))
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, fmt.Errorf("reading frame body: %w", err)
	}

	var hdr header
	if err := json.Unmarshal(buf[:hdrLen], &hdr); err != nil {
		return nil, fmt.Errorf("decoding message header: %w", err)
	}

	msg := &Message{
		Kind:     hdr.Kind,
		Node:     hdr.Node,
		Dataflow: hdr.Dataflow,
		ID:       hdr.ID,
		Error:    hdr.Error,
		Metadata: hdr.Metadata,
	}
	if payloadLen > 0 {
		data, err := readIPC(buf[hdrLen:], mem)
		if err != nil {
			return nil, err
		}
		msg.Data = data
	}
	return msg, nil
}

// writeIPC encodes arr as an Arrow IPC stream holding one single-column
// record.
func writeIPC(w io.Writer, arr arrow.Array) error {
	schema := arrow.NewSchema([]arrow.Field{{Name: "data", Type: arr.DataType()}}, nil)
	rec := array.NewRecord(schema, []arrow.Array{arr}, int64(arr.Len()))
	defer rec.Release()

	wr := ipc.NewWriter(w, ipc.WithSchema(schema))
	if err := wr.Write(rec); err != nil {
		wr.Close()
		return fmt.Errorf("encoding data payload: %w", err)
	}
	if err := wr.Close(); err != nil {
		return fmt.Errorf("finishing data payload: %w", err)
	}
	return nil
}

// readIPC decodes the single column of the single record in an Arrow IPC
// stream. The returned array holds its own reference.
func readIPC(payload []byte, mem memory.Allocator) (arrow.Array, error) {
	rd, err := ipc.NewReader(bytes.NewReader(payload), ipc.WithAllocator(mem))
	if err != nil {
		return nil, fmt.Errorf("opening data payload: %w", err)
	}
	defer rd.Release()

	if !rd.Next() {
		if err := rd.Err(); err != nil {
			return nil, fmt.Errorf("decoding data payload: %w", err)
		}
		return nil, fmt.Errorf("data payload holds no record")
	}
	rec := rd.Record()
	if rec.NumCols() != 1 {
		return nil, fmt.Errorf("data payload holds %d columns, want 1", rec.NumCols())
	}

	col := rec.Column(0)
	col.Retain()
	return col, nil
}
