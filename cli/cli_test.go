package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stevemurr/xapi-server/config"
	"github.com/stevemurr/xapi-server/handler"
	"github.com/stevemurr/xapi-server/sample"
	"github.com/stevemurr/xapi-server/store"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	buf := &bytes.Buffer{}
	cmd := NewRootCommand()
	cmd.SetOut(buf)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), err
}

func TestRootHasCommands(t *testing.T) {
	cmd := NewRootCommand()
	for _, name := range []string{"serve", "generate", "validate", "version"} {
		sub, _, err := cmd.Find([]string{name})
		require.NoError(t, err, name)
		assert.Equal(t, name, sub.Name())
	}
	for _, flag := range []string{"config", "format"} {
		assert.NotNil(t, cmd.PersistentFlags().Lookup(flag), flag)
	}
	for _, flag := range []string{"host", "port", "store-backend", "seed-dir", "reject-duplicate-ids", "log-level", "log-format"} {
		assert.NotNil(t, cmd.Flags().Lookup(flag), flag)
	}
}

func TestInvalidFormat(t *testing.T) {
	_, err := execute(t, "version", "--format", "yaml")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "invalid format")
}

func TestVersion(t *testing.T) {
	out, err := execute(t, "version")
	require.NoError(t, err)
	assert.Equal(t, handler.Version+"\n", out)

	out, err = execute(t, "version", "--format", "json")
	require.NoError(t, err)
	var resp CLIResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, map[string]any{"version": handler.Version}, resp.Data)
}

func TestGenerate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "statements.jsonld")
	out, err := execute(t, "generate", "--count", "3", "--out", path)
	require.NoError(t, err)
	assert.Contains(t, out, "Wrote 3 example statement(s)")

	docs, err := store.ReadDocuments(path)
	require.NoError(t, err)
	require.Len(t, docs, 3)
	for _, doc := range docs {
		assert.Equal(t, sample.DefaultContext, doc["@context"])
	}
}

func TestGenerateDefaultOut(t *testing.T) {
	t.Chdir(t.TempDir())
	_, err := execute(t, "generate")
	require.NoError(t, err)

	docs, err := store.ReadDocuments(DefaultGenerateOut)
	require.NoError(t, err)
	assert.Len(t, docs, 1)
}

func TestGenerateBadCount(t *testing.T) {
	_, err := execute(t, "generate", "--count", "0", "--out", filepath.Join(t.TempDir(), "x.json"))
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestValidateGenerated(t *testing.T) {
	path := filepath.Join(t.TempDir(), "statements.jsonld")
	_, err := execute(t, "generate", "--count", "4", "--out", path)
	require.NoError(t, err)

	out, err := execute(t, "validate", path)
	require.NoError(t, err)
	assert.Contains(t, out, "built-in statement shapes")
	assert.Contains(t, out, "Validation successful!")
}

func TestValidateNonconforming(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.json")
	require.NoError(t, os.WriteFile(path, []byte(`[{"id":"s1","verb":{"id":"http://example.org/v"}}]`), 0o644))

	out, err := execute(t, "validate", path)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "FAIL  s1")
	assert.Contains(t, out, "Validation failed.")
}

func TestValidateJSONReport(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mixed.json")
	docs := `[
		{"id":"good","actor":{"mbox":"mailto:a@example.org"},"verb":{"id":"http://example.org/v"},"object":{"id":"http://example.org/o"}},
		{"id":"bad","actor":{"name":"nobody"}}
	]`
	require.NoError(t, os.WriteFile(path, []byte(docs), 0o644))

	out, err := execute(t, "validate", path, "--format", "json")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	var resp struct {
		Status string         `json:"status"`
		Error  string         `json:"error"`
		Data   ValidateReport `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "error", resp.Status)
	assert.False(t, resp.Data.Conforms)
	require.Len(t, resp.Data.Results, 2)
	assert.True(t, resp.Data.Results[0].Valid)
	assert.Equal(t, "bad", resp.Data.Results[1].ID)
	assert.False(t, resp.Data.Results[1].Valid)
	assert.NotEmpty(t, resp.Data.Results[1].Errors)
}

func TestValidateCustomShapes(t *testing.T) {
	dir := t.TempDir()
	docs := filepath.Join(dir, "verbs.json")
	shapes := filepath.Join(dir, "verb.schema.json")
	require.NoError(t, os.WriteFile(docs, []byte(`{"id":"http://example.org/v","display":{"en":"did"}}`), 0o644))
	require.NoError(t, os.WriteFile(shapes, []byte(`{"type":"object","required":["display"]}`), 0o644))

	out, err := execute(t, "validate", docs, "--shapes", shapes)
	require.NoError(t, err)
	assert.Contains(t, out, "Validation successful!")
}

func TestValidateCommandErrors(t *testing.T) {
	dir := t.TempDir()

	_, err := execute(t, "validate", filepath.Join(dir, "missing.json"))
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))

	docs := filepath.Join(dir, "docs.json")
	require.NoError(t, os.WriteFile(docs, []byte(`[]`), 0o644))
	bad := filepath.Join(dir, "bad-shapes.json")
	require.NoError(t, os.WriteFile(bad, []byte(`{nope`), 0o644))

	_, err = execute(t, "validate", docs, "--shapes", bad)
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))

	_, err = execute(t, "validate")
	require.Error(t, err)
}

// syncBuffer is written by the serving goroutine while the test reads it.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func runServeUntilCancel(t *testing.T, args ...string) (string, error) {
	t.Helper()
	t.Chdir(t.TempDir())

	logs := &syncBuffer{}
	cmd := NewRootCommand()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(logs)
	cmd.SetArgs(args)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- cmd.ExecuteContext(ctx) }()

	require.Eventually(t, func() bool {
		return strings.Contains(logs.String(), "xAPI reference server started")
	}, 5*time.Second, 10*time.Millisecond)
	cancel()

	select {
	case err := <-done:
		return logs.String(), err
	case <-time.After(10 * time.Second):
		t.Fatal("serve did not stop")
		return "", nil
	}
}

func TestServeStartsAndStops(t *testing.T) {
	logs, err := runServeUntilCancel(t, "serve", "--host", "127.0.0.1", "--port", "0")
	require.NoError(t, err)
	assert.Contains(t, logs, "xAPI reference server started")
	assert.Contains(t, logs, "shutting down")
}

func TestServeIsDefault(t *testing.T) {
	logs, err := runServeUntilCancel(t, "--host", "127.0.0.1", "--port", "0", "--store-backend", "sqlite", "--log-format", "json")
	require.NoError(t, err)
	assert.Contains(t, logs, `"msg":"xAPI reference server started"`)
	assert.Contains(t, logs, `"store":"sqlite"`)
}

func TestServeSeeds(t *testing.T) {
	seed := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(seed, "verbs.json"),
		[]byte(`[{"id":"http://example.org/v1"},{"id":"http://example.org/v2"}]`), 0o644))

	logs, err := runServeUntilCancel(t, "serve", "--host", "127.0.0.1", "--port", "0", "--seed-dir", seed)
	require.NoError(t, err)
	assert.Contains(t, logs, "seeded")
	assert.Contains(t, logs, "kind=verbs")
	assert.Contains(t, logs, "count=2")
}

func TestServeErrors(t *testing.T) {
	t.Chdir(t.TempDir())

	_, err := execute(t, "serve", "--store-backend", "postgres")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))

	_, err = execute(t, "serve", "--config", "missing.yaml")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))

	seed := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(seed, "agents.json"), []byte(`[{"name":"no id"}]`), 0o644))
	_, err = execute(t, "serve", "--host", "127.0.0.1", "--port", "0", "--seed-dir", seed)
	require.Error(t, err)
	assert.ErrorIs(t, err, store.ErrMissingID)
}

type stubServer struct {
	done    chan error
	stopErr error
	stopped bool
}

func (s *stubServer) Done() <-chan error { return s.done }

func (s *stubServer) Stop(context.Context) error {
	s.stopped = true
	return s.stopErr
}

func TestWaitForShutdownExitCodes(t *testing.T) {
	logger := newLogger(config.LogConfig{Level: "error", Format: "text"}, &bytes.Buffer{})

	failed := &stubServer{done: make(chan error, 1)}
	failed.done <- errors.New("accept: too many open files")
	err := waitForShutdown(context.Background(), failed, logger)
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.False(t, failed.stopped)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	stuck := &stubServer{done: make(chan error), stopErr: context.DeadlineExceeded}
	err = waitForShutdown(ctx, stuck, logger)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.True(t, stuck.stopped)

	clean := &stubServer{done: make(chan error)}
	assert.NoError(t, waitForShutdown(ctx, clean, logger))
	assert.True(t, clean.stopped)
}

func TestGetExitCode(t *testing.T) {
	assert.Equal(t, ExitSuccess, GetExitCode(nil))
	assert.Equal(t, ExitFailure, GetExitCode(assert.AnError))
	assert.Equal(t, ExitCommandError, GetExitCode(WrapExitError(ExitCommandError, "x", assert.AnError)))
}
