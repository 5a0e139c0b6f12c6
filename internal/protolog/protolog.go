// Package protolog records protocol traffic as a stream of CBOR records so
// a session can be inspected or replayed after the fact.
package protolog

import (
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/fxamacker/cbor/v2"
)

// Direction of a frame relative to the server.
type Direction uint8

const (
	Inbound Direction = iota + 1
	Outbound
)

func (d Direction) String() string {
	switch d {
	case Inbound:
		return "in"
	case Outbound:
		return "out"
	default:
		return "unknown"
	}
}

// Record is one protocol frame. Payload holds the raw JSON text.
type Record struct {
	Time      time.Time `cbor:"1,keyasint"`
	ConnID    string    `cbor:"2,keyasint"`
	Direction Direction `cbor:"3,keyasint"`
	Method    string    `cbor:"4,keyasint,omitempty"`
	Payload   []byte    `cbor:"5,keyasint"`
}

// Recorder receives protocol frames. Implementations must be safe for
// concurrent use and must not block for long.
type Recorder interface {
	Record(Record)
}

// NoopRecorder discards everything.
type NoopRecorder struct{}

// Record discards the record.
func (NoopRecorder) Record(Record) {}

var encMode cbor.EncMode
var decMode cbor.DecMode

func init() {
	var err error
	encMode, err = cbor.EncOptions{
		Sort:        cbor.SortCanonical,
		IndefLength: cbor.IndefLengthForbidden,
		Time:        cbor.TimeRFC3339Nano,
	}.EncMode()
	if err != nil {
		panic(fmt.Sprintf("protolog: encoder mode: %v", err))
	}
	decMode, err = cbor.DecOptions{
		DupMapKey: cbor.DupMapKeyQuiet,
	}.DecMode()
	if err != nil {
		panic(fmt.Sprintf("protolog: decoder mode: %v", err))
	}
}

// FileRecorder appends records to a file.
type FileRecorder struct {
	mu      sync.Mutex
	file    *os.File
	encoder *cbor.Encoder
	closed  bool
}

// NewFileRecorder opens path for appending, creating it if needed.
func NewFileRecorder(path string) (*FileRecorder, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return nil, fmt.Errorf("open traffic log: %w", err)
	}
	return &FileRecorder{file: f, encoder: encMode.NewEncoder(f)}, nil
}

// Record appends r. Encoding errors are dropped; recording never disrupts
// the protocol.
func (l *FileRecorder) Record(r Record) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return
	}
	_ = l.encoder.Encode(r)
}

// Close closes the file. Later records are ignored.
func (l *FileRecorder) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return nil
	}
	l.closed = true
	return l.file.Close()
}

// ReadAll decodes every record from r.
func ReadAll(r io.Reader) ([]Record, error) {
	dec := decMode.NewDecoder(r)
	var out []Record
	for {
		var rec Record
		if err := dec.Decode(&rec); err != nil {
			if errors.Is(err, io.EOF) {
				return out, nil
			}
			return out, fmt.Errorf("decode record %d: %w", len(out), err)
		}
		out = append(out, rec)
	}
}

var (
	_ Recorder = NoopRecorder{}
	_ Recorder = (*FileRecorder)(nil)
)
