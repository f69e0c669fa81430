// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package capture records decoded frames to a CBOR stream and reads them back.
//
// A capture file is a sequence of CBOR-encoded Records. Each Record carries the
// recording session ID, the receive time and the frame in wire format, so a
// replay sees exactly the bytes that were on the link.
package capture

import (
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/fxamacker/cbor/v2"
	"github.com/google/uuid"

	"github.com/Thermoquad/crsfscope/pkg/crsf"
)

// Record is a single captured frame
type Record struct {
	Session     string `cbor:"0,keyasint"`
	TimestampNS int64  `cbor:"1,keyasint"`
	Frame       []byte `cbor:"2,keyasint"`
}

// Time returns the receive time of the record
func (r Record) Time() time.Time {
	return time.Unix(0, r.TimestampNS)
}

// Parse validates and decodes the recorded frame bytes. The returned frame
// carries the recorded receive time.
func (r Record) Parse() (*crsf.Frame, error) {
	f, err := crsf.ParseFrame(r.Frame)
	if err != nil {
		return nil, err
	}
	f.SetTimestamp(r.Time())
	return f, nil
}

// Recorder appends frames to a capture stream. It is safe for concurrent use.
type Recorder struct {
	mu      sync.Mutex
	w       io.Writer
	enc     *cbor.Encoder
	session uuid.UUID
	count   uint64
}

// NewRecorder creates a recorder writing to w with a fresh session ID
func NewRecorder(w io.Writer) *Recorder {
	return &Recorder{
		w:       w,
		enc:     cbor.NewEncoder(w),
		session: uuid.New(),
	}
}

// Create opens path for appending and returns a recorder writing to it
func Create(path string) (*Recorder, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open capture %s: %w", path, err)
	}
	return NewRecorder(f), nil
}

// Session returns the ID stamped on every record from this recorder
func (r *Recorder) Session() uuid.UUID {
	return r.session
}

// Count returns the number of records written
func (r *Recorder) Count() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.count
}

// Record writes f to the stream
func (r *Recorder) Record(f *crsf.Frame) error {
	rec := Record{
		Session:     r.session.String(),
		TimestampNS: f.Timestamp().UnixNano(),
		Frame:       f.Bytes(),
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.enc.Encode(rec); err != nil {
		return fmt.Errorf("encode record: %w", err)
	}
	r.count++
	return nil
}

// Publish implements monitor.Sink
func (r *Recorder) Publish(f *crsf.Frame, _ crsf.Message) error {
	return r.Record(f)
}

// Close closes the underlying writer when it is an io.Closer
func (r *Recorder) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if c, ok := r.w.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

// Reader reads records from a capture stream
type Reader struct {
	r   io.Reader
	dec *cbor.Decoder
}

// NewReader creates a reader over a capture stream
func NewReader(r io.Reader) *Reader {
	return &Reader{r: r, dec: cbor.NewDecoder(r)}
}

// Open opens a capture file for reading
func Open(path string) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open capture %s: %w", path, err)
	}
	return NewReader(f), nil
}

// Next returns the next record, or io.EOF at the end of the stream
func (r *Reader) Next() (Record, error) {
	var rec Record
	if err := r.dec.Decode(&rec); err != nil {
		if errors.Is(err, io.EOF) {
			return Record{}, io.EOF
		}
		return Record{}, fmt.Errorf("decode record: %w", err)
	}
	return rec, nil
}

// Close closes the underlying reader when it is an io.Closer
func (r *Reader) Close() error {
	if c, ok := r.r.(io.Closer); ok {
		return c.Close()
	}
	return nil
}
