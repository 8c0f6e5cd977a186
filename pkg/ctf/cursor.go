package ctf

import (
	"io"
	"os"

	"github.com/ajitpratap0/ctfkit/pkg/compression"
	"github.com/ajitpratap0/ctfkit/pkg/errors"
	"github.com/ajitpratap0/ctfkit/pkg/mmap"
	"github.com/ajitpratap0/ctfkit/pkg/pool"
)

// DefaultWindowSize is the size of the in-memory read window.
const DefaultWindowSize = 1 << 20

// CursorOptions configures a Cursor.
type CursorOptions struct {
	// WindowSize is the number of bytes read from the input per refill.
	WindowSize int
	// Compression selects the input decoder; Auto picks it from the path.
	Compression compression.Algorithm
	// Mmap maps the file into memory instead of reading it through a file
	// handle. Only Open honours it.
	Mmap bool
}

func (o CursorOptions) normalized() CursorOptions {
	if o.WindowSize <= 0 {
		o.WindowSize = DefaultWindowSize
	}
	if o.Compression == "" {
		o.Compression = compression.Auto
	}
	return o
}

// Mark is a backtracking point returned by Cursor.Mark.
type Mark struct {
	journal int
	offset  int64
	line    int
}

// Cursor is a buffered byte source over one input. It keeps a fixed-size
// window in memory, refilled transparently, and offers single byte
// peek/consume plus two ways back: RewindOne for one byte and Mark/Reset for
// a whole failed rule. Bytes consumed while a mark is open are journaled, so
// a reset is exact even when the window was refilled in between.
//
// A Cursor is not safe for concurrent use.
type Cursor struct {
	path   string
	file   io.Closer
	src    io.ReadCloser
	size   int64
	window []byte
	pos    int
	n      int
	eof    bool
	err    error

	// pushback is a stack; its last element is delivered next.
	pushback []byte
	journal  []byte
	// bases holds the journal length at each open mark, innermost last.
	bases []int

	last      byte
	canRewind bool

	offset    int64
	line      int
	bytesRead int64
	closed    bool
}

// Open opens path for reading. The file handle is owned by the cursor and
// released by Close; on error nothing is left open.
func Open(path string, opts CursorOptions) (*Cursor, error) {
	opts = opts.normalized()
	if opts.Mmap {
		return openMapped(path, opts)
	}

	f, err := os.Open(path) //nolint:gosec // G304: path is supplied by the caller
	if err != nil {
		return nil, ioError(err, path, "failed to open CTF file")
	}

	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, ioError(err, path, "failed to stat CTF file")
	}

	src, err := compression.NewReader(opts.Compression.Resolve(path), f)
	if err != nil {
		_ = f.Close()
		return nil, ioError(err, path, "failed to open CTF decoder")
	}

	c := newCursor(path, src, info.Size(), opts)
	c.file = f
	return c, nil
}

func openMapped(path string, opts CursorOptions) (*Cursor, error) {
	m, err := mmap.Open(path)
	if err != nil {
		return nil, ioError(err, path, "failed to map CTF file")
	}

	src, err := compression.NewReader(opts.Compression.Resolve(path), m.Reader())
	if err != nil {
		_ = m.Close()
		return nil, ioError(err, path, "failed to open CTF decoder")
	}

	c := newCursor(path, src, m.Size(), opts)
	c.file = m
	return c, nil
}

// NewCursor reads from r. size is informational and may be -1 when unknown.
// With Auto compression the input is read as plain text.
func NewCursor(r io.Reader, size int64, opts CursorOptions) (*Cursor, error) {
	opts = opts.normalized()
	algo := opts.Compression
	if algo == compression.Auto {
		algo = compression.None
	}
	src, err := compression.NewReader(algo, r)
	if err != nil {
		return nil, ioError(err, "", "failed to open CTF decoder")
	}
	return newCursor("", src, size, opts), nil
}

func newCursor(path string, src io.ReadCloser, size int64, opts CursorOptions) *Cursor {
	window := pool.Windows.Get(opts.WindowSize)
	return &Cursor{
		path:   path,
		src:    src,
		size:   size,
		window: window,
		line:   1,
	}
}

// Path returns the opened path, if any.
func (c *Cursor) Path() string {
	return c.path
}

// Size returns the input size in bytes as reported at open time.
func (c *Cursor) Size() int64 {
	return c.size
}

// BytesRead returns the number of decoded bytes pulled into the window.
func (c *Cursor) BytesRead() int64 {
	return c.bytesRead
}

// Position returns the location of the next byte to be consumed.
func (c *Cursor) Position() Position {
	return Position{Offset: c.offset, Line: c.line}
}

// Err returns the first read error encountered, if any.
func (c *Cursor) Err() error {
	return c.err
}

// CanRead reports whether another byte is available. It may refill the
// window; a read failure makes it return false and is reported by Err.
func (c *Cursor) CanRead() bool {
	if len(c.pushback) > 0 || c.pos < c.n {
		return true
	}
	if c.eof || c.closed {
		return false
	}
	if err := c.refill(); err != nil {
		return false
	}
	return c.pos < c.n
}

// Peek returns the next byte without consuming it. It returns io.EOF at the
// end of input.
func (c *Cursor) Peek() (byte, error) {
	if k := len(c.pushback); k > 0 {
		return c.pushback[k-1], nil
	}
	if c.pos >= c.n {
		if err := c.refill(); err != nil {
			return 0, err
		}
		if c.pos >= c.n {
			return 0, io.EOF
		}
	}
	return c.window[c.pos], nil
}

// Consume returns the next byte and advances past it. It returns io.EOF at
// the end of input.
func (c *Cursor) Consume() (byte, error) {
	var b byte
	if k := len(c.pushback); k > 0 {
		b = c.pushback[k-1]
		c.pushback = c.pushback[:k-1]
	} else {
		if c.pos >= c.n {
			if err := c.refill(); err != nil {
				return 0, err
			}
			if c.pos >= c.n {
				return 0, io.EOF
			}
		}
		b = c.window[c.pos]
		c.pos++
	}

	if len(c.bases) > 0 {
		c.journal = append(c.journal, b)
	}
	c.last = b
	c.canRewind = true
	c.offset++
	if b == '\n' {
		c.line++
	}
	return b, nil
}

// RewindOne un-consumes the byte returned by the last Consume. It is single
// level: a second call without an intervening Consume fails. It also fails
// when the byte was consumed before the innermost open mark.
func (c *Cursor) RewindOne() error {
	if !c.canRewind {
		return errors.New(errors.ErrorTypeInternal, "cursor rewind without a preceding consume")
	}
	if k := len(c.bases); k > 0 {
		if len(c.journal) <= c.bases[k-1] {
			return errors.New(errors.ErrorTypeInternal, "cursor rewind across an open mark")
		}
		c.journal = c.journal[:len(c.journal)-1]
	}
	c.canRewind = false
	c.pushback = append(c.pushback, c.last)
	c.offset--
	if c.last == '\n' {
		c.line--
	}
	return nil
}

// Mark opens a backtracking point. Every Mark must be closed by exactly one
// Reset or Commit, innermost first.
func (c *Cursor) Mark() Mark {
	c.bases = append(c.bases, len(c.journal))
	return Mark{journal: len(c.journal), offset: c.offset, line: c.line}
}

// Reset moves the cursor back to m and closes it.
func (c *Cursor) Reset(m Mark) {
	for i := len(c.journal) - 1; i >= m.journal; i-- {
		c.pushback = append(c.pushback, c.journal[i])
	}
	c.journal = c.journal[:m.journal]
	c.offset = m.offset
	c.line = m.line
	c.canRewind = false
	c.release()
}

// Commit keeps everything consumed since m and closes it.
func (c *Cursor) Commit(Mark) {
	c.release()
}

func (c *Cursor) release() {
	k := len(c.bases)
	if k == 0 {
		return
	}
	c.bases = c.bases[:k-1]
	if k == 1 {
		c.journal = c.journal[:0]
	}
}

// refill reads the next chunk once the window is exhausted. A short read
// marks the end of input; only genuine read failures are errors.
func (c *Cursor) refill() error {
	if c.pos < c.n || c.eof {
		return nil
	}
	if c.closed {
		return c.fail(errors.New(errors.ErrorTypeIO, "read from closed cursor"))
	}

	n, err := io.ReadFull(c.src, c.window)
	c.pos = 0
	c.n = n
	c.bytesRead += int64(n)

	switch err {
	case nil:
		return nil
	case io.EOF, io.ErrUnexpectedEOF:
		c.eof = true
		return nil
	default:
		c.eof = true
		return c.fail(ioError(err, c.path, "failed to read CTF input").
			WithDetail("offset", c.bytesRead))
	}
}

func (c *Cursor) fail(err error) error {
	if c.err == nil {
		c.err = err
	}
	return c.err
}

// Close releases the window and the underlying file. It is safe to call
// more than once.
func (c *Cursor) Close() error {
	if c.closed {
		return nil
	}
	c.closed = true

	if c.window != nil {
		pool.Windows.Put(c.window)
		c.window = nil
		c.pos, c.n = 0, 0
	}

	var firstErr error
	if c.src != nil {
		firstErr = c.src.Close()
	}
	if c.file != nil {
		if err := c.file.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if firstErr != nil {
		return ioError(firstErr, c.path, "failed to close CTF input")
	}
	return nil
}
