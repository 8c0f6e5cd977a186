package errors_test

import (
	"fmt"
	"io"
	"os"

	"github.com/ajitpratap0/ctfkit/pkg/errors"
)

// Example demonstrates basic error creation with details.
func Example() {
	err := errors.New(errors.ErrorTypeFormat, "value has more than one decimal point")

	err = err.WithDetail("offset", 42).
		WithDetail("line", 3)

	fmt.Println(err.Error())

	// Output:
	// format: value has more than one decimal point
}

// ExampleWrap shows how to wrap an I/O failure.
func ExampleWrap() {
	err := errors.Wrap(io.ErrUnexpectedEOF, errors.ErrorTypeIO, "failed to read CTF window").
		WithDetail("file", "train.ctf")

	if errors.IsType(err, errors.ErrorTypeIO) {
		fmt.Println("This is an io error")
	}

	if errors.Is(err, io.ErrUnexpectedEOF) {
		fmt.Println("Cause is preserved")
	}

	// Output:
	// This is an io error
	// Cause is preserved
}

// ExampleNewf demonstrates formatted messages.
func ExampleNewf() {
	err := errors.Newf(errors.ErrorTypeConfig, "stream %q: dense storage needs dimension > 0", "features")
	fmt.Println(err)

	// Output:
	// config: stream "features": dense storage needs dimension > 0
}

// ExampleError_Detail demonstrates reading structured details back.
func ExampleError_Detail() {
	_, openErr := os.Open("/does/not/exist.ctf")
	err := errors.Wrap(openErr, errors.ErrorTypeIO, "failed to open CTF file").
		WithDetail("path", "/does/not/exist.ctf")

	if path, ok := err.Detail("path"); ok {
		fmt.Println(path)
	}

	// Output:
	// /does/not/exist.ctf
}
