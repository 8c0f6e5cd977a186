package ctf

import (
	"errors"
	"io"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/ctfkit/pkg/compression"
	"github.com/ajitpratap0/ctfkit/pkg/testutil"
)

func newTestCursor(t *testing.T, input string, window int) *Cursor {
	t.Helper()
	c, err := NewCursor(strings.NewReader(input), int64(len(input)), CursorOptions{WindowSize: window})
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func drain(t *testing.T, c *Cursor) string {
	t.Helper()
	var sb strings.Builder
	for c.CanRead() {
		b, err := c.Consume()
		require.NoError(t, err)
		sb.WriteByte(b)
	}
	return sb.String()
}

func TestCursorReadsAcrossWindows(t *testing.T) {
	input := "0 |a 1 2\n|a 3 4\n1 |b 5:1 |# done\n"
	for _, window := range []int{1, 2, 3, 7, 4096} {
		c := newTestCursor(t, input, window)
		assert.Equal(t, input, drain(t, c), "window %d", window)
		assert.False(t, c.CanRead())

		_, err := c.Peek()
		assert.Equal(t, io.EOF, err)
		_, err = c.Consume()
		assert.Equal(t, io.EOF, err)
		assert.NoError(t, c.Err())
		assert.Equal(t, int64(len(input)), c.BytesRead())
	}
}

func TestCursorPeekDoesNotAdvance(t *testing.T) {
	c := newTestCursor(t, "xy", 1)

	b, err := c.Peek()
	require.NoError(t, err)
	assert.Equal(t, byte('x'), b)
	b, err = c.Peek()
	require.NoError(t, err)
	assert.Equal(t, byte('x'), b)

	b, err = c.Consume()
	require.NoError(t, err)
	assert.Equal(t, byte('x'), b)

	b, err = c.Peek()
	require.NoError(t, err)
	assert.Equal(t, byte('y'), b)
}

func TestCursorRewindOneIsSingleLevel(t *testing.T) {
	c := newTestCursor(t, "abc", 1)

	_, err := c.Consume()
	require.NoError(t, err)
	b, err := c.Consume()
	require.NoError(t, err)
	require.Equal(t, byte('b'), b)

	require.NoError(t, c.RewindOne())
	assert.Error(t, c.RewindOne())
	assert.Equal(t, int64(1), c.Position().Offset)

	b, err = c.Consume()
	require.NoError(t, err)
	assert.Equal(t, byte('b'), b)
	b, err = c.Consume()
	require.NoError(t, err)
	assert.Equal(t, byte('c'), b)
}

func TestCursorRewindWithoutConsume(t *testing.T) {
	c := newTestCursor(t, "a", 4)
	assert.Error(t, c.RewindOne())
}

func TestCursorMarkResetAcrossRefills(t *testing.T) {
	c := newTestCursor(t, "abcdef", 2)

	_, err := c.Consume()
	require.NoError(t, err)

	m := c.Mark()
	for i := 0; i < 3; i++ {
		_, err := c.Consume()
		require.NoError(t, err)
	}
	assert.Equal(t, int64(4), c.Position().Offset)

	c.Reset(m)
	assert.Equal(t, int64(1), c.Position().Offset)
	assert.Equal(t, "bcdef", drain(t, c))
}

func TestCursorNestedMarks(t *testing.T) {
	c := newTestCursor(t, "abcd", 1)

	outer := c.Mark()
	_, err := c.Consume()
	require.NoError(t, err)

	inner := c.Mark()
	_, err = c.Consume()
	require.NoError(t, err)
	c.Reset(inner)
	c.Commit(outer)

	assert.Equal(t, int64(1), c.Position().Offset)
	assert.Equal(t, "bcd", drain(t, c))
}

func TestCursorResetAfterRewind(t *testing.T) {
	c := newTestCursor(t, "abc", 1)

	m := c.Mark()
	_, err := c.Consume()
	require.NoError(t, err)
	_, err = c.Consume()
	require.NoError(t, err)
	require.NoError(t, c.RewindOne())
	c.Reset(m)

	assert.Equal(t, "abc", drain(t, c))
}

func TestCursorRewindRefusesToCrossMark(t *testing.T) {
	c := newTestCursor(t, "abc", 1)

	outer := c.Mark()
	_, err := c.Consume()
	require.NoError(t, err)

	inner := c.Mark()
	assert.Error(t, c.RewindOne())
	assert.Equal(t, int64(1), c.Position().Offset)

	c.Reset(inner)
	c.Reset(outer)
	assert.Equal(t, int64(0), c.Position().Offset)
	assert.Equal(t, "abc", drain(t, c))
	assert.Equal(t, int64(3), c.Position().Offset)
}

func TestCursorTracksLines(t *testing.T) {
	c := newTestCursor(t, "a\nb\n", 1)
	assert.Equal(t, Position{Offset: 0, Line: 1}, c.Position())

	_, _ = c.Consume()
	_, _ = c.Consume()
	assert.Equal(t, Position{Offset: 2, Line: 2}, c.Position())

	require.NoError(t, c.RewindOne())
	assert.Equal(t, Position{Offset: 1, Line: 1}, c.Position())

	drain(t, c)
	assert.Equal(t, Position{Offset: 4, Line: 3}, c.Position())
}

type failingReader struct {
	data []byte
	err  error
	done bool
}

func (r *failingReader) Read(p []byte) (int, error) {
	if !r.done {
		r.done = true
		return copy(p, r.data), nil
	}
	return 0, r.err
}

func TestCursorReadErrorIsSticky(t *testing.T) {
	disk := errors.New("disk failure")
	c, err := NewCursor(&failingReader{data: []byte("ab"), err: disk}, -1, CursorOptions{WindowSize: 8})
	require.NoError(t, err)
	defer c.Close()

	_, err = c.Peek()
	require.Error(t, err)
	assert.True(t, IsIOError(err))
	assert.ErrorIs(t, err, disk)

	assert.False(t, c.CanRead())
	assert.ErrorIs(t, c.Err(), disk)
}

func TestCursorCloseIsIdempotent(t *testing.T) {
	c, err := NewCursor(strings.NewReader("abc"), 3, CursorOptions{WindowSize: 2})
	require.NoError(t, err)

	require.NoError(t, c.Close())
	require.NoError(t, c.Close())
	assert.False(t, c.CanRead())
}

func TestOpenMissingFile(t *testing.T) {
	_, err := Open(filepath.Join(t.TempDir(), "missing.ctf"), CursorOptions{})
	require.Error(t, err)
	assert.True(t, IsIOError(err))
}

func TestOpenRecordsSize(t *testing.T) {
	content := "0 |a 1\n"
	path := testutil.WriteCTF(t, "plain.ctf", content)

	c, err := Open(path, CursorOptions{})
	require.NoError(t, err)
	defer c.Close()

	assert.Equal(t, int64(len(content)), c.Size())
	assert.Equal(t, path, c.Path())
	assert.Equal(t, content, drain(t, c))
}

func TestOpenDecompressesByExtension(t *testing.T) {
	content := "0 |a 1 2\n1 |a 3\n"
	cases := map[string]compression.Algorithm{
		"train.ctf.gz":  compression.Gzip,
		"train.ctf.zst": compression.Zstd,
		"train.ctf.lz4": compression.LZ4,
		"train.ctf.sz":  compression.Snappy,
		"train.ctf.s2":  compression.S2,
	}
	for name, algo := range cases {
		t.Run(name, func(t *testing.T) {
			path := testutil.WriteCompressedCTF(t, name, algo, content)

			c, err := Open(path, CursorOptions{WindowSize: 3})
			require.NoError(t, err)
			defer c.Close()

			assert.Equal(t, content, drain(t, c))
		})
	}
}

func TestNewCursorForcedCompression(t *testing.T) {
	path := testutil.WriteCompressedCTF(t, "data.bin", compression.Zstd, "0 |a 1\n")

	c, err := Open(path, CursorOptions{Compression: compression.Zstd})
	require.NoError(t, err)
	defer c.Close()

	assert.Equal(t, "0 |a 1\n", drain(t, c))
}
