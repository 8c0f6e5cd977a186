package json

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testRecord struct {
	ID      uint64    `json:"id"`
	Comment string    `json:"comment,omitempty"`
	Values  []float32 `json:"values"`
}

func testRecords(n int) []testRecord {
	records := make([]testRecord, n)
	for i := range records {
		records[i] = testRecord{ID: uint64(i), Values: []float32{float32(i) * 1.5, 2}}
	}
	return records
}

func TestMarshalMatchesStdlib(t *testing.T) {
	rec := testRecord{ID: 7, Comment: "<a|b>", Values: []float32{0.5, -1}}

	got, err := Marshal(rec)
	require.NoError(t, err)
	want, err := json.Marshal(rec)
	require.NoError(t, err)
	assert.JSONEq(t, string(want), string(got))

	var back testRecord
	require.NoError(t, json.Unmarshal(got, &back))
	assert.Equal(t, rec, back)
}

func TestStreamingEncoderLines(t *testing.T) {
	var buf bytes.Buffer
	enc := NewStreamingEncoder(&buf, false)
	for _, r := range testRecords(2) {
		require.NoError(t, enc.Encode(r))
	}
	require.NoError(t, enc.Close())

	assert.Equal(t, 2, enc.Count())
	assert.Equal(t, `{"id":0,"values":[0,2]}`+"\n"+`{"id":1,"values":[1.5,2]}`+"\n", buf.String())
}

func TestStreamingEncoderArray(t *testing.T) {
	var buf bytes.Buffer
	enc := NewStreamingEncoder(&buf, true)
	for _, r := range testRecords(3) {
		require.NoError(t, enc.Encode(r))
	}
	require.NoError(t, enc.Close())
	require.NoError(t, enc.Close())

	var back []testRecord
	require.NoError(t, json.Unmarshal(buf.Bytes(), &back))
	assert.Equal(t, testRecords(3), back)
}

func TestStreamingEncoderEmptyArray(t *testing.T) {
	var buf bytes.Buffer
	enc := NewStreamingEncoder(&buf, true)
	require.NoError(t, enc.Close())
	assert.Equal(t, "[]\n", buf.String())
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) { return 0, errors.New("disk full") }

func TestStreamingEncoderReportsWriteErrors(t *testing.T) {
	enc := NewStreamingEncoder(failingWriter{}, false)
	assert.EqualError(t, enc.Encode(testRecord{}), "disk full")
	assert.Equal(t, 0, enc.Count())
}

func TestBufferPool(t *testing.T) {
	buf := GetBuffer()
	buf.WriteString("data")
	PutBuffer(buf)

	again := GetBuffer()
	assert.Equal(t, 0, again.Len())
	PutBuffer(again)
	PutBuffer(nil)
}

func BenchmarkStreamingEncoder(b *testing.B) {
	records := testRecords(100)
	var buf bytes.Buffer
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		buf.Reset()
		enc := NewStreamingEncoder(&buf, false)
		for _, r := range records {
			_ = enc.Encode(r)
		}
		_ = enc.Close()
	}
}
