package ctf

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestParser(t *testing.T, input string, window int) *parser {
	t.Helper()
	return newParser(newTestCursor(t, input, window))
}

func rest(t *testing.T, p *parser) string {
	t.Helper()
	return drain(t, p.cur)
}

func requireKind(t *testing.T, err error, kind FormatKind) {
	t.Helper()
	require.Error(t, err)
	require.True(t, IsFormatError(err), "expected format error, got %v", err)
	got, ok := FormatKindOf(err)
	require.True(t, ok)
	assert.Equal(t, kind, got, "error: %v", err)
}

func TestSequenceID(t *testing.T) {
	tests := []struct {
		name   string
		input  string
		id     uint64
		ok     bool
		remain string
	}{
		{"with delimiter", "12 |a 1", 12, true, "|a 1"},
		{"without delimiter", "0|a 1", 0, true, "|a 1"},
		{"tabs", "7\t\t|a 1", 7, true, "|a 1"},
		{"no name prefix", "12 a", 0, false, "12 a"},
		{"digits then eol", "12\n", 0, false, "12\n"},
		{"not a digit", "|a 1", 0, false, "|a 1"},
		{"empty", "", 0, false, ""},
	}

	for _, tt := range tests {
		for _, window := range []int{1, 64} {
			t.Run(tt.name, func(t *testing.T) {
				p := newTestParser(t, tt.input, window)
				id, ok, err := p.sequenceID()
				require.NoError(t, err)
				assert.Equal(t, tt.ok, ok)
				if ok {
					assert.Equal(t, tt.id, id)
				}
				assert.Equal(t, tt.remain, rest(t, p))
			})
		}
	}
}

func TestSequenceIDOverflow(t *testing.T) {
	p := newTestParser(t, "18446744073709551616 |a 1", 4)
	_, _, err := p.sequenceID()
	requireKind(t, err, KindMalformedSequenceID)

	p = newTestParser(t, "18446744073709551615 |a 1", 4)
	id, ok, err := p.sequenceID()
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, uint64(18446744073709551615), id)
}

func TestSequenceIDNotesMissingDelimiter(t *testing.T) {
	p := newTestParser(t, "12 x", 2)
	_, ok, err := p.sequenceID()
	require.NoError(t, err)
	require.False(t, ok)

	require.True(t, p.miss.set)
	assert.Equal(t, KindMissingNameDelimiter, p.miss.kind)
	assert.Equal(t, int64(3), p.miss.pos.Offset)
	assert.Equal(t, int64(0), p.cur.Position().Offset)
}

func TestName(t *testing.T) {
	tests := []struct {
		name   string
		input  string
		want   string
		ok     bool
		remain string
	}{
		{"simple", "|abc 1", "abc", true, "1"},
		{"many delimiters", "|x1 \t 2", "x1", true, "2"},
		{"sign start", "|a -1", "a", true, "-1"},
		{"no delimiter", "|a-1", "a", true, "-1"},
		{"comment", "|# hi", "", false, "|# hi"},
		{"no values", "|abc\n", "", false, "|abc\n"},
		{"no values at eof", "|abc", "", false, "|abc"},
		{"letter after name", "|a x", "", false, "|a x"},
		{"no prefix", "abc 1", "", false, "abc 1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := newTestParser(t, tt.input, 1)
			name, ok, err := p.name()
			require.NoError(t, err)
			assert.Equal(t, tt.ok, ok)
			if ok {
				assert.Equal(t, tt.want, name)
			}
			assert.Equal(t, tt.remain, rest(t, p))
		})
	}
}

func TestNameInternsStreamNames(t *testing.T) {
	p := newTestParser(t, "|feat 1|feat 2", 64)
	first, ok, err := p.name()
	require.NoError(t, err)
	require.True(t, ok)
	_, err = p.cur.Consume()
	require.NoError(t, err)

	second, ok, err := p.name()
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, first, second)
	assert.Len(t, p.names, 1)
}

func TestValue(t *testing.T) {
	tests := []struct {
		name   string
		input  string
		want   Value
		remain string
	}{
		{"integer", "42 ", Value{Type: Integer, Value: 42, Index: NoIndex}, ""},
		{"negative", "-3|b", Value{Type: Integer, Value: -3, Index: NoIndex}, "|b"},
		{"positive sign", "+3\n", Value{Type: Integer, Value: 3, Index: NoIndex}, "\n"},
		{"floating", "0.25 7", Value{Type: Floating, Value: 0.25, Index: NoIndex}, "7"},
		{"trailing point", "1.", Value{Type: Floating, Value: 1, Index: NoIndex}, ""},
		{"sparse", "3:1.5\t|#c", Value{Type: Floating, Value: 1.5, Index: 3}, "|#c"},
		{"sparse negative", "10:-2", Value{Type: Integer, Value: -2, Index: 10}, ""},
		{"sparse integer", "234:1 ", Value{Type: Integer, Value: 1, Index: 234}, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := newTestParser(t, tt.input, 2)
			v, ok, err := p.value()
			require.NoError(t, err)
			require.True(t, ok)
			assert.Equal(t, tt.want, v)
			assert.Equal(t, tt.remain, rest(t, p))
		})
	}
}

func TestValueRejectsMalformedTokens(t *testing.T) {
	inputs := map[string]string{
		"second decimal point":  "1.2.3",
		"second sign":           "+-1",
		"sign in the middle":    "1-2",
		"second index":          "1:2:3",
		"letter after value":    "1a",
		"floating index":        "1.5:2",
		"signed index":          "-1:2",
		"sign only":             "-",
		"index without a value": "3:",
		"out of range":          "1" + strings.Repeat("0", 400),
	}

	for name, input := range inputs {
		t.Run(name, func(t *testing.T) {
			p := newTestParser(t, input, 3)
			_, _, err := p.value()
			requireKind(t, err, KindMalformedValue)
		})
	}
}

func TestValueDoesNotMatchNonNumbers(t *testing.T) {
	p := newTestParser(t, "|a 1", 1)
	_, ok, err := p.value()
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, "|a 1", rest(t, p))
}

func TestValueList(t *testing.T) {
	p := newTestParser(t, "1 2 3\r\n|b 4", 2)
	values, atEnd, err := p.valueList()
	require.NoError(t, err)
	assert.True(t, atEnd)
	require.Len(t, values, 3)
	assert.Equal(t, 3.0, values[2].Value)
	assert.Equal(t, "|b 4", rest(t, p))

	p = newTestParser(t, "1 2 |b 4", 2)
	values, atEnd, err = p.valueList()
	require.NoError(t, err)
	assert.False(t, atEnd)
	assert.Len(t, values, 2)
	assert.Equal(t, "|b 4", rest(t, p))

	p = newTestParser(t, "5", 2)
	values, atEnd, err = p.valueList()
	require.NoError(t, err)
	assert.True(t, atEnd)
	assert.Len(t, values, 1)
}

func TestSample(t *testing.T) {
	p := newTestParser(t, "|word 234:1 123:1 |class 3:1\n", 4)
	s, atEnd, ok, err := p.sample()
	require.NoError(t, err)
	require.True(t, ok)
	assert.False(t, atEnd)
	assert.Equal(t, "word", s.Name)
	require.Len(t, s.Values, 2)
	assert.Equal(t, int64(123), s.Values[1].Index)

	s, atEnd, ok, err = p.sample()
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, atEnd)
	assert.Equal(t, "class", s.Name)
}

func TestSampleFailureRestoresCursor(t *testing.T) {
	p := newTestParser(t, "|#comment\n", 1)
	_, _, ok, err := p.sample()
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, int64(0), p.cur.Position().Offset)
	assert.Equal(t, "|#comment\n", rest(t, p))
}

func TestComment(t *testing.T) {
	tests := []struct {
		name   string
		input  string
		text   string
		atEnd  bool
		remain string
	}{
		{"to end of line", "|# hello world\n0 |a 1", " hello world", true, "0 |a 1"},
		{"to end of input", "|#tail", "tail", true, ""},
		{"empty", "|#\r\n", "", true, ""},
		{"ended by sample", "|#a|b 1", "a", false, "|b 1"},
		{"double quoted bar", `|#say "a|b" done` + "\n", `say "a|b" done`, true, ""},
		{"single quoted bar", "|#q 'x|y' |b 1", "q 'x|y' ", false, "|b 1"},
		{"balanced quotes", "|#q 'x' |b 1", "q 'x' ", false, "|b 1"},
		{"odd quotes swallow bar", "|#it's |b 1\n", "it's |b 1", true, ""},
		{"mixed quotes count together", `|#q"it's" |b 1`, `q"it's" |b 1`, true, ""},
		{"leading quote not counted", "|#'a' |b 1", "'a' |b 1", true, ""},
		{"leading quote alone", `|#"|b 1`, `"`, false, "|b 1"},
		{"leading bar kept", "|#|b 1", "|b 1", true, ""},
		{"hash inside", "|##tag\n", "#tag", true, ""},
	}

	for _, tt := range tests {
		for _, window := range []int{1, 3, 128} {
			t.Run(tt.name, func(t *testing.T) {
				p := newTestParser(t, tt.input, window)
				text, atEnd, ok, err := p.comment()
				require.NoError(t, err)
				require.True(t, ok)
				assert.Equal(t, tt.text, text)
				assert.Equal(t, tt.atEnd, atEnd)
				assert.Equal(t, tt.remain, rest(t, p))
			})
		}
	}
}

func TestCommentRejectsNUL(t *testing.T) {
	p := newTestParser(t, "|#bad\x00byte\n", 4)
	_, _, _, err := p.comment()
	requireKind(t, err, KindMalformedComment)

	pos, ok := PositionOf(err)
	require.True(t, ok)
	assert.Equal(t, int64(5), pos.Offset)
}

func TestCommentDoesNotMatchSamples(t *testing.T) {
	p := newTestParser(t, "|a 1", 1)
	_, _, ok, err := p.comment()
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, "|a 1", rest(t, p))
}
