package ctf

import (
	"fmt"
	"strings"

	"github.com/ajitpratap0/ctfkit/pkg/errors"
)

// StreamKind tells whether a stream is model input or target.
type StreamKind uint8

const (
	// Feature marks an input stream
	Feature StreamKind = iota + 1
	// Label marks a target stream
	Label
)

// String returns the kind name.
func (k StreamKind) String() string {
	switch k {
	case Feature:
		return "feature"
	case Label:
		return "label"
	default:
		return "unknown"
	}
}

// MarshalText implements encoding.TextMarshaler.
func (k StreamKind) MarshalText() ([]byte, error) {
	if k != Feature && k != Label {
		return nil, fmt.Errorf("unknown stream kind %d", k)
	}
	return []byte(k.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (k *StreamKind) UnmarshalText(text []byte) error {
	switch strings.ToLower(strings.TrimSpace(string(text))) {
	case "feature", "features", "input":
		*k = Feature
	case "label", "labels", "target":
		*k = Label
	default:
		return fmt.Errorf("unknown stream kind %q", text)
	}
	return nil
}

// Storage tells how a stream's values are laid out in the file.
type Storage uint8

const (
	// Sparse streams are written as index:value pairs
	Sparse Storage = iota + 1
	// Dense streams are written positionally, Dimension values per sample
	Dense
)

// String returns the storage name.
func (s Storage) String() string {
	switch s {
	case Sparse:
		return "sparse"
	case Dense:
		return "dense"
	default:
		return "unknown"
	}
}

// MarshalText implements encoding.TextMarshaler.
func (s Storage) MarshalText() ([]byte, error) {
	if s != Sparse && s != Dense {
		return nil, fmt.Errorf("unknown storage %d", s)
	}
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *Storage) UnmarshalText(text []byte) error {
	switch strings.ToLower(strings.TrimSpace(string(text))) {
	case "sparse":
		*s = Sparse
	case "dense":
		*s = Dense
	default:
		return fmt.Errorf("unknown storage %q", text)
	}
	return nil
}

// StreamSchemaEntry describes one expected stream. Dimension 0 on a sparse
// stream disables index bounds checking.
type StreamSchemaEntry struct {
	ID        int        `yaml:"id" json:"id"`
	Name      string     `yaml:"name" json:"name"`
	Alias     string     `yaml:"alias" json:"alias"`
	Dimension int        `yaml:"dimension" json:"dimension"`
	Kind      StreamKind `yaml:"kind" json:"kind"`
	Storage   Storage    `yaml:"storage" json:"storage"`
}

// Matches reports whether a sample recorded under name belongs to the entry.
func (e StreamSchemaEntry) Matches(name string) bool {
	return name == e.Name || (e.Alias != "" && name == e.Alias)
}

// Schema is the caller supplied, ordered list of expected streams.
type Schema []StreamSchemaEntry

// Index returns the position of the entry matching name, or -1.
func (s Schema) Index(name string) int {
	for i, e := range s {
		if e.Matches(name) {
			return i
		}
	}
	return -1
}

// Validate checks that the schema can drive a projection.
func (s Schema) Validate() error {
	if len(s) == 0 {
		return errors.New(errors.ErrorTypeConfig, "schema has no streams")
	}

	seen := make(map[string]int, len(s)*2)
	claim := func(name string, i int) error {
		if prev, ok := seen[name]; ok && prev != i {
			return errors.Newf(errors.ErrorTypeConfig, "stream name %q is used by entries %d and %d", name, prev, i).
				WithDetail("stream", name)
		}
		seen[name] = i
		return nil
	}

	for i, e := range s {
		if !isStreamName(e.Name) {
			return errors.Newf(errors.ErrorTypeConfig, "schema entry %d: invalid stream name %q", i, e.Name).
				WithDetail("stream", e.Name)
		}
		if e.Alias != "" && !isStreamName(e.Alias) {
			return errors.Newf(errors.ErrorTypeConfig, "schema entry %d: invalid alias %q", i, e.Alias).
				WithDetail("stream", e.Name)
		}
		if e.Kind != Feature && e.Kind != Label {
			return errors.Newf(errors.ErrorTypeConfig, "stream %q: unknown kind", e.Name).
				WithDetail("stream", e.Name)
		}
		switch e.Storage {
		case Sparse:
			if e.Dimension < 0 {
				return errors.Newf(errors.ErrorTypeConfig, "stream %q: negative dimension %d", e.Name, e.Dimension).
					WithDetail("stream", e.Name)
			}
		case Dense:
			if e.Dimension <= 0 {
				return errors.Newf(errors.ErrorTypeConfig, "stream %q: dense storage needs dimension > 0", e.Name).
					WithDetail("stream", e.Name)
			}
		default:
			return errors.Newf(errors.ErrorTypeConfig, "stream %q: unknown storage", e.Name).
				WithDetail("stream", e.Name)
		}
		if err := claim(e.Name, i); err != nil {
			return err
		}
		if e.Alias != "" {
			if err := claim(e.Alias, i); err != nil {
				return err
			}
		}
	}
	return nil
}

func isStreamName(name string) bool {
	if name == "" {
		return false
	}
	for i := 0; i < len(name); i++ {
		if !isAlnum(name[i]) {
			return false
		}
	}
	return true
}
