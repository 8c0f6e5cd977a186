// Package testutil provides testing utilities for ctfkit
package testutil

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"

	"github.com/ajitpratap0/ctfkit/pkg/compression"
)

// TestLogger creates a test logger that writes to the test output.
func TestLogger(t *testing.T) *zap.Logger {
	return zaptest.NewLogger(t)
}

// TestContext creates a test context with a 30-second timeout.
// The caller must call the returned cancel function to avoid leaks.
func TestContext(_ *testing.T) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), 30*time.Second)
}

// WriteCTF writes content to name inside a per-test temp directory and
// returns the path.
func WriteCTF(t *testing.T, name, content string) string {
	t.Helper()
	return writeFile(t, t.TempDir(), name, content, compression.None)
}

// WriteCompressedCTF is WriteCTF with content compressed by algo.
func WriteCompressedCTF(t *testing.T, name string, algo compression.Algorithm, content string) string {
	t.Helper()
	return writeFile(t, t.TempDir(), name, content, algo)
}

func writeFile(t *testing.T, dir, name, content string, algo compression.Algorithm) string {
	t.Helper()

	path := filepath.Join(dir, name)
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()

	w, err := compression.NewWriter(algo, compression.Default, f)
	require.NoError(t, err)
	_, err = w.Write([]byte(content))
	require.NoError(t, err)
	require.NoError(t, w.Close())
	return path
}

// Suite is a base testify suite owning a temp directory and a bounded
// context for tests that read and write several files.
type Suite struct {
	suite.Suite
	ctx       context.Context
	cancel    context.CancelFunc
	tempDir   string
	startTime time.Time
}

// SetupSuite runs before all tests in the suite
func (s *Suite) SetupSuite() {
	s.ctx, s.cancel = context.WithTimeout(context.Background(), 5*time.Minute)
	s.startTime = time.Now()
	s.tempDir = s.T().TempDir()
}

// TearDownSuite runs after all tests in the suite
func (s *Suite) TearDownSuite() {
	s.cancel()
	s.T().Logf("suite completed in %v", time.Since(s.startTime))
}

// Context returns the suite context
func (s *Suite) Context() context.Context {
	return s.ctx
}

// TempDir returns the suite temp directory
func (s *Suite) TempDir() string {
	return s.tempDir
}

// Path joins name onto the suite temp directory.
func (s *Suite) Path(name string) string {
	return filepath.Join(s.tempDir, name)
}

// WriteCTF writes content to name inside the suite temp directory.
func (s *Suite) WriteCTF(name, content string) string {
	return writeFile(s.T(), s.tempDir, name, content, compression.None)
}
