package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReportCommandWritesPDF(t *testing.T) {
	dir := t.TempDir()
	snap := filepath.Join(dir, "progress_20240101_120000.json")
	require.NoError(t, os.WriteFile(snap, []byte(`{
  "user_data": {"name": "Anna", "age": 61, "superfoods": ["Ginger"]},
  "conversation_history": [],
  "timestamp": "20240101_120000"
}`), 0o600))

	t.Setenv("SESSION_SECRET", "cli-test")
	t.Setenv("OPENAI_API_KEY", "")

	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"report", "--env-file", "", "--snapshot", snap, "--out", dir})
	require.NoError(t, cmd.Execute())

	path := strings.TrimSpace(out.String())
	assert.Equal(t, dir, filepath.Dir(path))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(data, []byte("%PDF-")))
}

func TestReportCommandRequiresSnapshot(t *testing.T) {
	cmd := newRootCmd()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"report"})
	assert.Error(t, cmd.Execute())
}
