package ctf

import (
	"github.com/ajitpratap0/ctfkit/pkg/errors"
	stringpool "github.com/ajitpratap0/ctfkit/pkg/strings"
)

// FormatKind identifies which rule of the CTF grammar or projection failed.
type FormatKind string

const (
	KindMalformedSequenceID  FormatKind = "malformed_sequence_id"
	KindMissingNameDelimiter FormatKind = "missing_name_delimiter"
	KindMalformedValue       FormatKind = "malformed_value"
	KindMalformedComment     FormatKind = "malformed_comment"
	KindDimensionMismatch    FormatKind = "dimension_mismatch"
	KindIndexOutOfRange      FormatKind = "index_out_of_range"
	KindUnrecognizedRecord   FormatKind = "unrecognized_record"
)

// Position locates a byte in the input. Line is 1-based.
type Position struct {
	Offset int64
	Line   int
}

// formatError builds a fatal format error located at pos.
func formatError(kind FormatKind, pos Position, format string, args ...interface{}) *errors.Error {
	msg := stringpool.Sprintf(format, args...)
	return errors.Newf(errors.ErrorTypeFormat, "line %d (offset %d): %s", pos.Line, pos.Offset, msg).
		WithDetail("kind", kind).
		WithDetail("offset", pos.Offset).
		WithDetail("line", pos.Line)
}

// projectionError builds a fatal format error raised while projecting a
// sequence; it has no file position.
func projectionError(kind FormatKind, seqID uint64, stream string, format string, args ...interface{}) *errors.Error {
	msg := stringpool.Sprintf(format, args...)
	return errors.Newf(errors.ErrorTypeFormat, "sequence %d stream %q: %s", seqID, stream, msg).
		WithDetail("kind", kind).
		WithDetail("sequence_id", seqID).
		WithDetail("stream", stream)
}

func ioError(err error, path, message string) *errors.Error {
	return errors.Wrap(err, errors.ErrorTypeIO, message).WithDetail("path", path)
}

// IsFormatError reports whether err is a CTF format error.
func IsFormatError(err error) bool {
	return errors.IsType(err, errors.ErrorTypeFormat)
}

// IsIOError reports whether err is an input I/O error.
func IsIOError(err error) bool {
	return errors.IsType(err, errors.ErrorTypeIO)
}

// FormatKindOf returns the FormatKind carried by err.
func FormatKindOf(err error) (FormatKind, bool) {
	var e *errors.Error
	if !errors.As(err, &e) || e.Type != errors.ErrorTypeFormat {
		return "", false
	}
	v, ok := e.Detail("kind")
	if !ok {
		return "", false
	}
	kind, ok := v.(FormatKind)
	return kind, ok
}

// PositionOf returns the input position carried by err.
func PositionOf(err error) (Position, bool) {
	var e *errors.Error
	if !errors.As(err, &e) {
		return Position{}, false
	}
	offset, ok := e.Detail("offset")
	if !ok {
		return Position{}, false
	}
	line, _ := e.Detail("line")
	pos := Position{}
	pos.Offset, _ = offset.(int64)
	pos.Line, _ = line.(int)
	return pos, true
}
