package main

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/joshuapare/autorunkit/internal/regtext"
	"github.com/joshuapare/autorunkit/pkg/configstore"
	"github.com/joshuapare/autorunkit/pkg/types"
)

const runKey = `HKCU\Software\Microsoft\Windows\CurrentVersion\Run`

// env is an isolated store, configuration store and config file.
type env struct {
	dir     string
	config  string
	base    string
	entries *configstore.FileStore
	metrics string
}

func newEnv(t *testing.T) *env {
	t.Helper()
	dir := t.TempDir()
	e := &env{
		dir:     dir,
		config:  filepath.Join(dir, "autorunkit.yaml"),
		base:    filepath.Join(dir, "tx"),
		metrics: filepath.Join(dir, "autorunkit.prom"),
	}
	entriesPath := filepath.Join(dir, "entries.json")
	cfg := "store:\n" +
		"  base_dir: " + e.base + "\n" +
		"  flush: none\n" +
		"metrics:\n" +
		"  textfile: " + e.metrics + "\n" +
		"configstore:\n" +
		"  backend: file\n" +
		"  file: " + entriesPath + "\n"
	require.NoError(t, os.WriteFile(e.config, []byte(cfg), 0o644))

	fs, err := configstore.NewFileStore(entriesPath)
	require.NoError(t, err)
	e.entries = fs
	return e
}

func (e *env) setValue(t *testing.T, key, name string, v types.Value) {
	t.Helper()
	require.NoError(t, e.entries.SetValue(context.Background(), key, name, v))
}

// run executes autorunctl with args against e and returns stdout.
func (e *env) run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	resetFlags()
	rootCmd.SetArgs(append([]string{"--config", e.config}, args...))
	return captureOutput(t, func() error {
		return rootCmd.ExecuteContext(context.Background())
	})
}

// resetFlags restores every flag variable to its default, since the
// command tree is shared between runs.
func resetFlags() {
	verbose = false
	quiet = false
	jsonOut = false
	configPath = ""
	listLimit = 0
	showReg = false
	showEncoding = regtext.EncodingUTF16LE
	showOutput = ""
	abandonReason = "abandoned by operator"
	purgeMaxAge = -1
	purgeMaxCount = -1
	entryKind = 0
	entryScope = scopeFlag(types.ScopeCurrentUser)
	entryPath = ""
	entryName = ""
	entryID = ""
	entryDisplayName = ""
}

// captureOutput captures stdout while running a function
func captureOutput(t *testing.T, fn func() error) (string, error) {
	t.Helper()

	origStdout := os.Stdout
	r, w, err := os.Pipe()
	require.NoError(t, err)
	os.Stdout = w

	done := make(chan []byte)
	go func() {
		var buf bytes.Buffer
		_, _ = io.Copy(&buf, r)
		done <- buf.Bytes()
	}()

	fnErr := fn()

	w.Close()
	os.Stdout = origStdout

	select {
	case out := <-done:
		return string(out), fnErr
	case <-time.After(10 * time.Second):
		t.Fatal("timed out reading captured output")
		return "", fnErr
	}
}
