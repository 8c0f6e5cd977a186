//go:build !linux && !darwin

package mmap

import (
	"errors"
)

var errUnsupported = errors.New("memory mapping is not supported on this platform")

func mapFile(int, int) ([]byte, error) {
	return nil, errUnsupported
}

func unmap([]byte) error {
	return nil
}

func adviseSequential([]byte) error {
	return nil
}
