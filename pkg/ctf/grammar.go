package ctf

import (
	"io"
	"math"
	"strconv"

	"github.com/ajitpratap0/ctfkit/pkg/pool"
	stringpool "github.com/ajitpratap0/ctfkit/pkg/strings"
)

// CTF token characters.
const (
	namePrefix     = '|'
	commentEscape  = '#'
	indexDelimiter = ':'
	decimalPoint   = '.'
)

func isDigit(b byte) bool {
	return b >= '0' && b <= '9'
}

func isAlpha(b byte) bool {
	return (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z')
}

func isAlnum(b byte) bool {
	return isDigit(b) || isAlpha(b)
}

func isSign(b byte) bool {
	return b == '+' || b == '-'
}

func isValueStart(b byte) bool {
	return isDigit(b) || isSign(b)
}

func isValueDelimiter(b byte) bool {
	return b == ' ' || b == '\t'
}

func isEOL(b byte) bool {
	return b == '\r' || b == '\n'
}

func isQuote(b byte) bool {
	return b == '"' || b == '\''
}

// miss is the deepest non-fatal rule failure seen on the current line. It
// explains an unrecognized record better than the position where the record
// started.
type miss struct {
	kind FormatKind
	pos  Position
	msg  string
	set  bool
}

// parser applies the CTF grammar rules to a cursor. Every rule either
// commits its match or leaves the cursor where it found it; the returned
// error is reserved for fatal conditions that abort the whole parse.
type parser struct {
	cur     *Cursor
	scratch *[]byte
	buf     []byte
	names   map[string]string
	miss    miss
}

func newParser(cur *Cursor) *parser {
	scratch := pool.GetScratch()
	return &parser{
		cur:     cur,
		scratch: scratch,
		buf:     *scratch,
		names:   make(map[string]string),
	}
}

// release hands the token scratch buffer back to its pool.
func (p *parser) release() {
	if p.scratch == nil {
		return
	}
	*p.scratch = p.buf[:0]
	pool.PutScratch(p.scratch)
	p.scratch, p.buf = nil, nil
}

// attempt runs rule under a cursor mark and rolls back unless it matched.
func (p *parser) attempt(rule func() (bool, error)) (bool, error) {
	m := p.cur.Mark()
	ok, err := rule()
	if err != nil || !ok {
		p.cur.Reset(m)
		return false, err
	}
	p.cur.Commit(m)
	return true, nil
}

// peek returns the next byte; ok is false at the end of input.
func (p *parser) peek() (b byte, ok bool, err error) {
	b, err = p.cur.Peek()
	if err == io.EOF {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	return b, true, nil
}

func (p *parser) consume() error {
	_, err := p.cur.Consume()
	return err
}

func (p *parser) noteMiss(kind FormatKind, msg string) {
	pos := p.cur.Position()
	if p.miss.set && pos.Offset <= p.miss.pos.Offset {
		return
	}
	p.miss = miss{kind: kind, pos: pos, msg: msg, set: true}
}

func (p *parser) resetMiss() {
	p.miss = miss{}
}

func (p *parser) fatal(kind FormatKind, format string, args ...interface{}) error {
	return formatError(kind, p.cur.Position(), format, args...)
}

// skipDelimiters discards a run of value delimiters.
func (p *parser) skipDelimiters() error {
	for {
		b, ok, err := p.peek()
		if err != nil || !ok || !isValueDelimiter(b) {
			return err
		}
		if err := p.consume(); err != nil {
			return err
		}
	}
}

// skipEOL discards a run of end-of-line characters. atEnd reports whether
// the current line is over, either because an end-of-line run was consumed
// or because the input is exhausted.
func (p *parser) skipEOL() (atEnd bool, err error) {
	for {
		b, ok, err := p.peek()
		if err != nil {
			return false, err
		}
		if !ok {
			return true, nil
		}
		if !isEOL(b) {
			return atEnd, nil
		}
		if err := p.consume(); err != nil {
			return false, err
		}
		atEnd = true
	}
}

// sequenceID matches a leading decimal id followed by optional delimiters
// and a name prefix lookahead.
func (p *parser) sequenceID() (id uint64, ok bool, err error) {
	ok, err = p.attempt(func() (bool, error) {
		b, ok, err := p.peek()
		if err != nil || !ok || !isDigit(b) {
			return false, err
		}

		var v uint64
		for ok && isDigit(b) {
			d := uint64(b - '0')
			if v > (math.MaxUint64-d)/10 {
				return false, p.fatal(KindMalformedSequenceID, "sequence id does not fit in 64 bits")
			}
			v = v*10 + d
			if err := p.consume(); err != nil {
				return false, err
			}
			if b, ok, err = p.peek(); err != nil {
				return false, err
			}
		}

		if err := p.skipDelimiters(); err != nil {
			return false, err
		}
		if b, ok, err = p.peek(); err != nil {
			return false, err
		}
		if !ok || b != namePrefix {
			p.noteMiss(KindMissingNameDelimiter, "expected '|' after sequence id")
			return false, nil
		}
		id = v
		return true, nil
	})
	return id, ok, err
}

// name matches '|' followed by an alphanumeric stream name, optional
// delimiters and a value start lookahead.
func (p *parser) name() (name string, ok bool, err error) {
	ok, err = p.attempt(func() (bool, error) {
		b, ok, err := p.peek()
		if err != nil {
			return false, err
		}
		if !ok || b != namePrefix {
			p.noteMiss(KindMissingNameDelimiter, "expected '|' before stream name")
			return false, nil
		}
		if err := p.consume(); err != nil {
			return false, err
		}

		p.buf = p.buf[:0]
		for {
			b, ok, err = p.peek()
			if err != nil {
				return false, err
			}
			if !ok || !isAlnum(b) {
				break
			}
			p.buf = append(p.buf, b)
			if err := p.consume(); err != nil {
				return false, err
			}
		}
		if len(p.buf) == 0 {
			if !ok || b != commentEscape {
				p.noteMiss(KindMissingNameDelimiter, "expected stream name after '|'")
			}
			return false, nil
		}
		name = p.intern(p.buf)

		if err := p.skipDelimiters(); err != nil {
			return false, err
		}
		if b, ok, err = p.peek(); err != nil {
			return false, err
		}
		if !ok || !isValueStart(b) {
			p.noteMiss(KindMissingNameDelimiter, stringpool.Sprintf("expected a value after stream %q", name))
			return false, nil
		}
		return true, nil
	})
	return name, ok, err
}

func (p *parser) intern(b []byte) string {
	if s, ok := p.names[string(b)]; ok {
		return s
	}
	s := string(b)
	p.names[s] = s
	return s
}

// value matches one numeric token, optionally prefixed by a sparse index.
// Malformed tokens are fatal.
func (p *parser) value() (v Value, ok bool, err error) {
	ok, err = p.attempt(func() (bool, error) {
		b, ok, err := p.peek()
		if err != nil || !ok || !isValueStart(b) {
			return false, err
		}

		start := p.cur.Position()
		var signs, points, colons int
		colonAt := -1
		p.buf = p.buf[:0]
	scan:
		for ok {
			switch {
			case isDigit(b):
			case isSign(b):
				if signs++; signs > 1 {
					return false, p.fatal(KindMalformedValue, "more than one sign in value")
				}
			case b == decimalPoint:
				if points++; points > 1 {
					return false, p.fatal(KindMalformedValue, "more than one decimal point in value")
				}
			case b == indexDelimiter:
				if colons++; colons > 1 {
					return false, p.fatal(KindMalformedValue, "more than one index delimiter in value")
				}
				colonAt = len(p.buf)
			default:
				break scan
			}
			p.buf = append(p.buf, b)
			if err := p.consume(); err != nil {
				return false, err
			}
			if b, ok, err = p.peek(); err != nil {
				return false, err
			}
		}

		v = Value{Type: Integer, Index: NoIndex}
		if points > 0 {
			v.Type = Floating
		}

		number := p.buf
		if colonAt >= 0 {
			index, err := parseIndex(p.buf[:colonAt])
			if err != nil {
				return false, formatError(KindMalformedValue, start, "invalid sparse index %q", string(p.buf[:colonAt]))
			}
			v.Index = index
			number = p.buf[colonAt+1:]
		}
		f, err := strconv.ParseFloat(stringpool.BytesToString(number), 64)
		if err != nil {
			return false, formatError(KindMalformedValue, start, "invalid number %q", string(number))
		}
		v.Value = f

		if err := p.skipDelimiters(); err != nil {
			return false, err
		}
		b, ok, err = p.peek()
		if err != nil {
			return false, err
		}
		if ok && !isValueStart(b) && b != namePrefix && !isEOL(b) {
			return false, p.fatal(KindMalformedValue, "unexpected character %q after value", b)
		}
		return true, nil
	})
	return v, ok, err
}

func parseIndex(b []byte) (int64, error) {
	if len(b) == 0 {
		return 0, strconv.ErrSyntax
	}
	for _, c := range b {
		if !isDigit(c) {
			return 0, strconv.ErrSyntax
		}
	}
	return strconv.ParseInt(stringpool.BytesToString(b), 10, 64)
}

// valueList matches values until a name prefix, an end of line or the end
// of input, then discards any end-of-line run.
func (p *parser) valueList() (values []Value, atEnd bool, err error) {
	for {
		b, ok, err := p.peek()
		if err != nil {
			return nil, false, err
		}
		if !ok || b == namePrefix || isEOL(b) {
			break
		}
		v, matched, err := p.value()
		if err != nil {
			return nil, false, err
		}
		if !matched {
			return nil, false, p.fatal(KindMalformedValue, "unexpected character %q in value list", b)
		}
		values = append(values, v)
	}
	atEnd, err = p.skipEOL()
	if err != nil {
		return nil, false, err
	}
	return values, atEnd, nil
}

// sample matches a stream name followed by its value list.
func (p *parser) sample() (s Sample, atEnd bool, ok bool, err error) {
	ok, err = p.attempt(func() (bool, error) {
		name, ok, err := p.name()
		if err != nil || !ok {
			return false, err
		}
		values, end, err := p.valueList()
		if err != nil {
			return false, err
		}
		s = Sample{Name: name, Values: values}
		atEnd = end
		return true, nil
	})
	return s, atEnd, ok, err
}

// comment matches "|#" and the text after it. The text runs to the end of
// the line; a '|' ends it early only when an even number of quote
// characters has been seen, so quoted text may contain '|'. The first text
// byte is always kept and never counted as a quote.
func (p *parser) comment() (text string, atEnd bool, ok bool, err error) {
	ok, err = p.attempt(func() (bool, error) {
		b, ok, err := p.peek()
		if err != nil {
			return false, err
		}
		if !ok || b != namePrefix {
			p.noteMiss(KindMalformedComment, "expected '|#' comment")
			return false, nil
		}
		if err := p.consume(); err != nil {
			return false, err
		}
		if b, ok, err = p.peek(); err != nil {
			return false, err
		}
		if !ok || b != commentEscape {
			return false, nil
		}
		if err := p.consume(); err != nil {
			return false, err
		}

		quotes := 0
		first := true
		p.buf = p.buf[:0]
		for {
			if b, ok, err = p.peek(); err != nil {
				return false, err
			}
			if !ok || isEOL(b) {
				break
			}
			if b == 0 {
				return false, p.fatal(KindMalformedComment, "NUL byte in comment")
			}
			if !first {
				if isQuote(b) {
					quotes++
				} else if b == namePrefix && quotes%2 == 0 {
					break
				}
			}
			first = false
			p.buf = append(p.buf, b)
			if err := p.consume(); err != nil {
				return false, err
			}
		}
		text = string(p.buf)

		end, err := p.skipEOL()
		if err != nil {
			return false, err
		}
		atEnd = end
		return true, nil
	})
	return text, atEnd, ok, err
}
