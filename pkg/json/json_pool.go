// Package json provides go-json serialization with pooled buffers for the
// exporters and the CLI.
package json

import (
	"bytes"
	"io"

	gojson "github.com/goccy/go-json"

	"github.com/ajitpratap0/ctfkit/pkg/pool"
)

// maxPooledBuffer caps the capacity of buffers returned to the pool.
const maxPooledBuffer = 1 << 20

var bufferPool = pool.New(
	func() *bytes.Buffer { return bytes.NewBuffer(make([]byte, 0, 4096)) },
	func(b *bytes.Buffer) { b.Reset() },
)

// GetBuffer gets an empty pooled bytes.Buffer.
func GetBuffer() *bytes.Buffer {
	return bufferPool.Get()
}

// PutBuffer returns a buffer to the pool.
func PutBuffer(buf *bytes.Buffer) {
	if buf == nil || buf.Cap() > maxPooledBuffer {
		return
	}
	bufferPool.Put(buf)
}

// Marshal is a drop-in replacement for encoding/json.Marshal.
func Marshal(v interface{}) ([]byte, error) {
	return gojson.Marshal(v)
}

// MarshalIndent is a drop-in replacement for encoding/json.MarshalIndent.
func MarshalIndent(v interface{}, prefix, indent string) ([]byte, error) {
	return gojson.MarshalIndent(v, prefix, indent)
}

// StreamingEncoder writes a sequence of values either as JSON Lines or as a
// single JSON array. Values are staged in a pooled buffer so a failed encode
// never leaves a partial value in w.
type StreamingEncoder struct {
	writer  io.Writer
	buf     *bytes.Buffer
	encoder *gojson.Encoder
	isArray bool
	count   int
	closed  bool
}

// NewStreamingEncoder creates a new streaming encoder. With isArray the
// output is a JSON array, otherwise one value per line.
func NewStreamingEncoder(w io.Writer, isArray bool) *StreamingEncoder {
	buf := GetBuffer()
	enc := gojson.NewEncoder(buf)
	enc.SetEscapeHTML(false)
	return &StreamingEncoder{
		writer:  w,
		buf:     buf,
		encoder: enc,
		isArray: isArray,
	}
}

// Encode writes a single value.
func (se *StreamingEncoder) Encode(v interface{}) error {
	se.buf.Reset()
	if se.isArray {
		if se.count == 0 {
			se.buf.WriteByte('[')
		} else {
			se.buf.WriteByte(',')
		}
	}
	if err := se.encoder.Encode(v); err != nil {
		return err
	}
	if se.isArray {
		// Encode terminates every value with a newline
		se.buf.Truncate(se.buf.Len() - 1)
	}
	if _, err := se.writer.Write(se.buf.Bytes()); err != nil {
		return err
	}
	se.count++
	return nil
}

// Count returns the number of values written.
func (se *StreamingEncoder) Count() int {
	return se.count
}

// Close finalizes the encoding. It does not close the underlying writer.
func (se *StreamingEncoder) Close() error {
	if se.closed {
		return nil
	}
	se.closed = true
	defer PutBuffer(se.buf)

	if !se.isArray {
		return nil
	}
	closing := "]\n"
	if se.count == 0 {
		closing = "[]\n"
	}
	_, err := io.WriteString(se.writer, closing)
	return err
}
