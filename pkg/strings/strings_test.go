package strings

import (
	"testing"
)

func TestBytesToString(t *testing.T) {
	b := []byte("|a 1 2")
	s := BytesToString(b)

	if s != "|a 1 2" {
		t.Errorf("expected '|a 1 2', got '%s'", s)
	}

	empty := BytesToString([]byte{})
	if empty != "" {
		t.Errorf("expected empty string, got '%s'", empty)
	}
}

func TestBuilder(t *testing.T) {
	builder := NewBuilder(32)

	builder.AppendUint(100)
	builder.WriteString(" |a ")
	builder.AppendUint(3)
	_ = builder.WriteByte(':')
	builder.AppendFloat(1.5, 64)
	_ = builder.WriteByte(' ')
	builder.AppendInt(-7)

	result := builder.String()
	if result != "100 |a 3:1.5 -7" {
		t.Errorf("expected '100 |a 3:1.5 -7', got '%s'", result)
	}

	if builder.Len() != len("100 |a 3:1.5 -7") {
		t.Errorf("unexpected length %d", builder.Len())
	}

	builder.Reset()
	if builder.Len() != 0 {
		t.Errorf("expected empty builder after reset, got %d", builder.Len())
	}
}

func TestAppendFloatNeverUsesExponent(t *testing.T) {
	tests := []struct {
		value    float64
		bitSize  int
		expected string
	}{
		{1, 64, "1"},
		{-0.25, 64, "-0.25"},
		{1e20, 64, "100000000000000000000"},
		{0.1, 32, "0.1"},
	}

	for _, tt := range tests {
		b := NewBuilder(8)
		b.AppendFloat(tt.value, tt.bitSize)
		if got := b.String(); got != tt.expected {
			t.Errorf("AppendFloat(%v, %d) = %q, want %q", tt.value, tt.bitSize, got, tt.expected)
		}
	}
}

func TestPooledBuilders(t *testing.T) {
	for _, size := range []BuilderSize{Small, Medium, Large} {
		b := GetBuilder(size)
		if b.Len() != 0 {
			t.Errorf("pooled builder not reset for size %d", size)
		}
		b.WriteString("dirty")
		PutBuilder(b, size)

		again := GetBuilder(size)
		if again.Len() != 0 {
			t.Errorf("builder returned dirty from pool for size %d", size)
		}
		PutBuilder(again, size)
	}

	PutBuilder(nil, Small)
}

func TestSprintf(t *testing.T) {
	if got := Sprintf("no args"); got != "no args" {
		t.Errorf("expected passthrough, got %q", got)
	}

	got := Sprintf("sequence %d stream %q", 7, "b")
	if got != `sequence 7 stream "b"` {
		t.Errorf("unexpected result %q", got)
	}

	first := Sprintf("%s", "one")
	second := Sprintf("%s", "two")
	if first != "one" || second != "two" {
		t.Errorf("pooled results must not alias: %q %q", first, second)
	}
}

func TestClone(t *testing.T) {
	buf := []byte("abc")
	shared := BytesToString(buf)
	cloned := Clone(shared)
	buf[0] = 'x'

	if cloned != "abc" {
		t.Errorf("clone must not share memory, got %q", cloned)
	}
	if Clone("") != "" {
		t.Error("expected empty clone")
	}
}
