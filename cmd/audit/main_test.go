package main

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRun(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "docs.ndjson")
	out := filepath.Join(dir, "out.ndjson")
	require.NoError(t, os.WriteFile(in, []byte(
		`{"id":"faq","content":"## FAQ\n\nWhat do we do? We answer questions for local customers."}`+"\n"+
			`{"id":"blank","content":"   "}`+"\n"), 0o644))

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	require.NoError(t, run(context.Background(), logger, in, out, "", 2))

	f, err := os.Open(out)
	require.NoError(t, err)
	defer f.Close()

	var records []map[string]any
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 1<<20)
	for sc.Scan() {
		var rec map[string]any
		require.NoError(t, json.Unmarshal(sc.Bytes(), &rec))
		records = append(records, rec)
	}
	require.NoError(t, sc.Err())
	require.Len(t, records, 2)

	assert.Equal(t, "faq", records[0]["id"])
	assert.Contains(t, records[0], "overall_score")
	assert.Contains(t, records[0], "result")

	assert.Equal(t, "blank", records[1]["id"])
	assert.NotEmpty(t, records[1]["error"])
}

func TestRunErrors(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	dir := t.TempDir()

	t.Run("missing input", func(t *testing.T) {
		err := run(context.Background(), logger, filepath.Join(dir, "missing.csv"), "", "", 1)
		assert.ErrorIs(t, err, os.ErrNotExist)
	})

	t.Run("bad config", func(t *testing.T) {
		cfg := filepath.Join(dir, "bad.yaml")
		require.NoError(t, os.WriteFile(cfg, []byte("profile: unknown\n"), 0o644))
		err := run(context.Background(), logger, filepath.Join(dir, "missing.csv"), "", cfg, 1)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "load analysis config")
	})

	t.Run("cancelled", func(t *testing.T) {
		in := filepath.Join(dir, "one.md")
		require.NoError(t, os.WriteFile(in, []byte("# Title\n\nSome text."), 0o644))

		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		err := run(ctx, logger, in, filepath.Join(dir, "out.ndjson"), "", 1)
		assert.ErrorIs(t, err, context.Canceled)
	})
}
