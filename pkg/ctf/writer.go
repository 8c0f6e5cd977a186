package ctf

import (
	"bufio"
	"io"
	"math"

	"github.com/ajitpratap0/ctfkit/pkg/errors"
	stringpool "github.com/ajitpratap0/ctfkit/pkg/strings"
)

// WriteDataset serialises ds as CTF text, one line per sequence in ascending
// id order. Parsing the output yields an equal dataset.
func WriteDataset(w io.Writer, ds *Dataset) error {
	bw := bufio.NewWriter(w)
	line := stringpool.GetBuilder(stringpool.Medium)
	defer stringpool.PutBuilder(line, stringpool.Medium)

	for _, seq := range ds.Sequences() {
		line.Reset()
		line.AppendUint(seq.ID)
		for _, s := range seq.Samples {
			if err := appendName(line, seq.ID, s.Name, len(s.Values)); err != nil {
				return err
			}
			for _, v := range s.Values {
				_ = line.WriteByte(' ')
				if v.HasIndex() {
					if v.Index < 0 {
						return errors.Newf(errors.ErrorTypeValidation, "sequence %d stream %q: negative sparse index %d", seq.ID, s.Name, v.Index)
					}
					line.AppendInt(v.Index)
					_ = line.WriteByte(indexDelimiter)
				}
				if err := appendValue(line, v.Value, v.Type == Floating, 64); err != nil {
					return withSequence(err, seq.ID, s.Name)
				}
			}
		}
		if err := appendComment(line, seq, len(seq.Samples) == 0); err != nil {
			return err
		}
		if _, err := bw.Write(line.Bytes()); err != nil {
			return errors.Wrap(err, errors.ErrorTypeFile, "failed to write CTF output")
		}
	}
	if err := bw.Flush(); err != nil {
		return errors.Wrap(err, errors.ErrorTypeFile, "failed to flush CTF output")
	}
	return nil
}

// WriteTyped serialises a typed dataset as CTF text. Sparse records become
// one sample of index:value pairs; dense records one sample per row.
// Parsing the output with the same schema yields an equal typed dataset.
func WriteTyped[T Number](w io.Writer, ds *TypedDataset[T]) error {
	bw := bufio.NewWriter(w)
	line := stringpool.GetBuilder(stringpool.Medium)
	defer stringpool.PutBuilder(line, stringpool.Medium)
	conv := newConverter[T]()

	for _, seq := range ds.Sequences {
		line.Reset()
		line.AppendUint(seq.ID)
		empty := true
		for _, rec := range seq.Records {
			if rec.Len() == 0 {
				continue
			}
			empty = false
			switch rec.Storage {
			case Sparse:
				if len(rec.Indices) != len(rec.Values) {
					return errors.Newf(errors.ErrorTypeValidation, "sequence %d stream %q: %d indices for %d values",
						seq.ID, rec.Stream, len(rec.Indices), len(rec.Values))
				}
				if err := appendName(line, seq.ID, rec.Stream, rec.Len()); err != nil {
					return err
				}
				for i, v := range rec.Values {
					_ = line.WriteByte(' ')
					line.AppendUint(rec.Indices[i])
					_ = line.WriteByte(indexDelimiter)
					if err := conv.append(line, v); err != nil {
						return withSequence(err, seq.ID, rec.Stream)
					}
				}
			case Dense:
				if rec.Dimension <= 0 || len(rec.Values)%rec.Dimension != 0 {
					return errors.Newf(errors.ErrorTypeValidation, "sequence %d stream %q: %d values do not fill rows of %d",
						seq.ID, rec.Stream, len(rec.Values), rec.Dimension)
				}
				for _, row := range rec.Rows() {
					if err := appendName(line, seq.ID, rec.Stream, len(row)); err != nil {
						return err
					}
					for _, v := range row {
						_ = line.WriteByte(' ')
						if err := conv.append(line, v); err != nil {
							return withSequence(err, seq.ID, rec.Stream)
						}
					}
				}
			default:
				return errors.Newf(errors.ErrorTypeValidation, "sequence %d stream %q: unknown storage", seq.ID, rec.Stream)
			}
		}
		if err := appendComment(line, &Sequence{ID: seq.ID, Comment: seq.Comment}, empty); err != nil {
			return err
		}
		if _, err := bw.Write(line.Bytes()); err != nil {
			return errors.Wrap(err, errors.ErrorTypeFile, "failed to write CTF output")
		}
	}
	if err := bw.Flush(); err != nil {
		return errors.Wrap(err, errors.ErrorTypeFile, "failed to flush CTF output")
	}
	return nil
}

func appendName(line *stringpool.Builder, seqID uint64, name string, values int) error {
	if !isStreamName(name) {
		return errors.Newf(errors.ErrorTypeValidation, "sequence %d: invalid stream name %q", seqID, name)
	}
	if values == 0 {
		return errors.Newf(errors.ErrorTypeValidation, "sequence %d stream %q: sample has no values", seqID, name)
	}
	line.WriteString(" |")
	line.WriteString(name)
	return nil
}

// appendValue writes f so that it parses back to the same float64. Floating
// values always carry a decimal point so their type survives a round trip.
func appendValue(line *stringpool.Builder, f float64, floating bool, bitSize int) error {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return errors.Newf(errors.ErrorTypeValidation, "value %v cannot be written as CTF", f)
	}
	if !floating && math.Trunc(f) != f {
		floating = true
	}
	start := line.Len()
	line.AppendFloat(f, bitSize)
	if floating {
		hasPoint := false
		for _, c := range line.Bytes()[start:] {
			if c == decimalPoint {
				hasPoint = true
				break
			}
		}
		if !hasPoint {
			line.WriteString(".0")
		}
	}
	return nil
}

// appendComment writes the sequence comment and the line terminator. A
// sequence with nothing else to write gets an empty comment so the id still
// parses.
func appendComment(line *stringpool.Builder, seq *Sequence, empty bool) error {
	if seq.Comment != "" || empty {
		if err := checkComment(seq.ID, seq.Comment); err != nil {
			return err
		}
		line.WriteString(" |#")
		line.WriteString(seq.Comment)
	}
	_ = line.WriteByte('\n')
	return nil
}

// checkComment rejects comment text that would not read back verbatim. The
// first byte is exempt from the quote rule, as in the parser.
func checkComment(seqID uint64, text string) error {
	quotes := 0
	for i := 0; i < len(text); i++ {
		c := text[i]
		switch {
		case isEOL(c) || c == 0:
			return errors.Newf(errors.ErrorTypeValidation, "sequence %d: comment contains byte %q", seqID, c)
		case i == 0:
		case c == namePrefix && quotes%2 == 0:
			return errors.Newf(errors.ErrorTypeValidation, "sequence %d: comment has an unquoted '|' at %d", seqID, i)
		case isQuote(c):
			quotes++
		}
	}
	return nil
}

func withSequence(err error, seqID uint64, stream string) error {
	var e *errors.Error
	if errors.As(err, &e) {
		return e.WithDetail("sequence_id", seqID).WithDetail("stream", stream)
	}
	return err
}

func (c converter[T]) append(line *stringpool.Builder, v T) error {
	if c.integer {
		line.AppendInt(int64(v))
		return nil
	}
	return appendValue(line, float64(v), false, c.bitSize)
}
