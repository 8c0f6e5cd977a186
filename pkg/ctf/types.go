package ctf

import (
	"sort"
)

// ValueType tags how a numeric token was written in the source file.
type ValueType uint8

const (
	// Integer marks a token without a decimal point
	Integer ValueType = iota + 1
	// Floating marks a token with a decimal point
	Floating
)

// String returns the value type name.
func (t ValueType) String() string {
	switch t {
	case Integer:
		return "integer"
	case Floating:
		return "floating"
	default:
		return "unknown"
	}
}

// NoIndex is the Index of a positional (dense) value.
const NoIndex = -1

// Value is a single numeric token. The payload is always kept at double
// precision; Type only records how it was written.
type Value struct {
	Type  ValueType
	Value float64
	// Index is the sparse index written before ':' or NoIndex.
	Index int64
}

// HasIndex reports whether the value carried an explicit sparse index.
func (v Value) HasIndex() bool {
	return v.Index != NoIndex
}

// Sample is the run of values recorded for one named stream in one record.
// Values keep file order.
type Sample struct {
	Name   string
	Values []Value
}

// Sequence groups every sample and the comment recorded under one id.
type Sequence struct {
	ID      uint64
	Samples []Sample
	Comment string
}

// Dataset is the untyped result of a parse, keyed by sequence id.
// It is immutable once returned by Parse or NewDataset.
type Dataset struct {
	sequences map[uint64]*Sequence
	ids       []uint64
	sorted    bool
	stats     ParseStats
}

func newDataset() *Dataset {
	return &Dataset{sequences: make(map[uint64]*Sequence)}
}

// NewDataset builds a dataset from already materialised sequences. A later
// sequence with a duplicate id replaces the earlier one.
func NewDataset(sequences ...Sequence) *Dataset {
	ds := newDataset()
	for i := range sequences {
		seq := sequences[i]
		ds.put(&seq)
	}
	ds.seal()
	return ds
}

func (d *Dataset) put(seq *Sequence) {
	if _, exists := d.sequences[seq.ID]; !exists {
		d.ids = append(d.ids, seq.ID)
		d.sorted = false
	}
	d.sequences[seq.ID] = seq
}

// ensure returns the sequence for id, creating it on first use.
func (d *Dataset) ensure(id uint64) *Sequence {
	seq, ok := d.sequences[id]
	if !ok {
		seq = &Sequence{ID: id}
		d.sequences[id] = seq
		d.ids = append(d.ids, id)
		d.sorted = false
	}
	return seq
}

// seal orders ids once building is done; readers never mutate the dataset.
func (d *Dataset) seal() {
	if !d.sorted {
		sort.Slice(d.ids, func(i, j int) bool { return d.ids[i] < d.ids[j] })
		d.sorted = true
	}
}

// Len returns the number of sequences.
func (d *Dataset) Len() int {
	if d == nil {
		return 0
	}
	return len(d.ids)
}

// Stats returns the counters of the parse that produced the dataset.
func (d *Dataset) Stats() ParseStats {
	if d == nil {
		return ParseStats{}
	}
	return d.stats
}

// IDs returns the sequence ids in ascending order.
func (d *Dataset) IDs() []uint64 {
	if d == nil {
		return nil
	}
	out := make([]uint64, len(d.ids))
	copy(out, d.ids)
	return out
}

// Sequence returns the sequence stored under id.
func (d *Dataset) Sequence(id uint64) (*Sequence, bool) {
	if d == nil {
		return nil, false
	}
	seq, ok := d.sequences[id]
	return seq, ok
}

// Sequences returns every sequence ordered by ascending id.
func (d *Dataset) Sequences() []*Sequence {
	if d == nil {
		return nil
	}
	out := make([]*Sequence, 0, len(d.ids))
	for _, id := range d.ids {
		out = append(out, d.sequences[id])
	}
	return out
}

// Number is the set of element types a typed dataset can be materialised as.
type Number interface {
	~float32 | ~float64 | ~int8 | ~int16 | ~int32 | ~int64
}

// TypedRecord holds the values of one schema stream within one sequence.
// Storage selects which fields are meaningful: Sparse records use parallel
// Indices/Values, Dense records hold Dimension values per sample in Values.
type TypedRecord[T Number] struct {
	Stream    string
	Storage   Storage
	Dimension int
	Indices   []uint64
	Values    []T
}

// Len returns the number of stored values.
func (r TypedRecord[T]) Len() int {
	return len(r.Values)
}

// Rows splits a dense record into per-sample rows of Dimension values.
// Sparse records and empty dense records yield nil.
func (r TypedRecord[T]) Rows() [][]T {
	if r.Storage != Dense || r.Dimension <= 0 || len(r.Values) == 0 {
		return nil
	}
	rows := make([][]T, 0, len(r.Values)/r.Dimension)
	for start := 0; start+r.Dimension <= len(r.Values); start += r.Dimension {
		rows = append(rows, r.Values[start:start+r.Dimension])
	}
	return rows
}

// TypedSequence is one sequence projected through a schema. Records follow
// schema order.
type TypedSequence[T Number] struct {
	ID      uint64
	Comment string
	Records []TypedRecord[T]
}

// Record returns the record for the schema stream named name (or its alias).
func (s TypedSequence[T]) Record(schema Schema, name string) (TypedRecord[T], bool) {
	idx := schema.Index(name)
	if idx < 0 || idx >= len(s.Records) {
		return TypedRecord[T]{}, false
	}
	return s.Records[idx], true
}

// TypedDataset is the schema-typed result of a load, ordered by sequence id.
type TypedDataset[T Number] struct {
	Schema    Schema
	Sequences []TypedSequence[T]
}

// Len returns the number of sequences.
func (d *TypedDataset[T]) Len() int {
	if d == nil {
		return 0
	}
	return len(d.Sequences)
}
