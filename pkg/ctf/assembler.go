package ctf

// ParseStats counts what one parse saw.
type ParseStats struct {
	Records   int64
	Samples   int64
	Values    int64
	Comments  int64
	Sequences int64
	Bytes     int64
}

// assembleState is the sequence id bookkeeping of a single parse.
type assembleState struct {
	previousID uint64
	started    bool
}

// resolve picks the sequence id of a line. An id-less line continues the
// previous sequence; when it is the very first record it opens sequence 1.
func (s *assembleState) resolve(id uint64, explicit bool) uint64 {
	switch {
	case explicit:
		s.previousID = id
	case !s.started:
		s.previousID++
	}
	s.started = true
	return s.previousID
}

// assembler folds the records of one input into a Dataset.
type assembler struct {
	p     *parser
	ds    *Dataset
	state assembleState
	stats ParseStats
}

func newAssembler(cur *Cursor) *assembler {
	return &assembler{
		p:  newParser(cur),
		ds: newDataset(),
	}
}

// run parses the whole input. On error the partially built dataset is
// dropped.
func (a *assembler) run() (*Dataset, error) {
	defer a.p.release()
	cur := a.p.cur
	for {
		if _, err := a.p.skipEOL(); err != nil {
			a.ds = nil
			return nil, err
		}
		if !cur.CanRead() {
			break
		}
		if err := a.record(); err != nil {
			a.ds = nil
			return nil, err
		}
	}
	if err := cur.Err(); err != nil {
		a.ds = nil
		return nil, err
	}

	a.ds.seal()
	a.stats.Sequences = int64(a.ds.Len())
	a.stats.Bytes = cur.BytesRead()
	a.ds.stats = a.stats
	ds := a.ds
	a.ds = nil
	return ds, nil
}

// record parses one physical line: an optional sequence id followed by one
// or more samples or comments.
func (a *assembler) record() error {
	p := a.p
	p.resetMiss()
	start := p.cur.Position()

	id, explicit, err := p.sequenceID()
	if err != nil {
		return err
	}
	seq := a.ds.ensure(a.state.resolve(id, explicit))
	a.stats.Records++

	for {
		s, atEnd, ok, err := p.sample()
		if err != nil {
			return err
		}
		if ok {
			seq.Samples = append(seq.Samples, s)
			a.stats.Samples++
			a.stats.Values += int64(len(s.Values))
		} else {
			text, end, ok, err := p.comment()
			if err != nil {
				return err
			}
			if !ok {
				return a.unrecognized(start)
			}
			if text != "" {
				seq.Comment = text
			}
			a.stats.Comments++
			atEnd = end
		}
		if atEnd {
			return nil
		}
	}
}

func (a *assembler) unrecognized(start Position) error {
	m := a.p.miss
	if !m.set || m.pos.Offset == start.Offset {
		return formatError(KindUnrecognizedRecord, start, "record is neither a sample nor a comment")
	}
	return formatError(m.kind, m.pos, "unrecognized record starting at line %d: %s", start.Line, m.msg)
}
