package onnx

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolvePrefersOverride(t *testing.T) {
	assert.Equal(t, "/custom/libonnxruntime.so", Resolve("/custom/libonnxruntime.so", []string{"/usr/lib/libonnxruntime.so"}))
}

func TestResolveFirstExistingCandidate(t *testing.T) {
	dir := t.TempDir()
	missing := filepath.Join(dir, "missing.so")
	present := filepath.Join(dir, "libonnxruntime.so")
	require.NoError(t, os.WriteFile(present, []byte{0}, 0o644))

	assert.Equal(t, present, Resolve("", []string{missing, present}))
}

func TestResolveNothingFound(t *testing.T) {
	assert.Empty(t, Resolve("", []string{filepath.Join(t.TempDir(), "absent.so")}))
	assert.Empty(t, Resolve("", nil))
}

func TestCandidates(t *testing.T) {
	assert.NotEmpty(t, candidates("linux"))
	assert.NotEmpty(t, candidates("darwin"))
	assert.Nil(t, candidates("plan9"))
}
