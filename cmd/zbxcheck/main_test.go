package main

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func check(args ...string) (string, int) {
	var out bytes.Buffer
	code := run(context.Background(), args, &out)
	return out.String(), code
}

func TestRun_HTTP(t *testing.T) {
	ok := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	defer ok.Close()
	down := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer down.Close()

	out, code := check("http", ok.URL)
	assert.Equal(t, "1\n", out)
	assert.Equal(t, 0, code)

	out, code = check("http", down.URL)
	assert.Equal(t, "0\n", out)
	assert.Equal(t, 1, code)
}

func TestRun_LogSize(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.log"), make([]byte, 3<<19), 0o644))

	out, code := check("log_size", dir)
	assert.Equal(t, "1.50\n", out)
	assert.Equal(t, 0, code)

	out, code = check("log_size", dir, "1")
	assert.Equal(t, "0\n", out)
	assert.Equal(t, 0, code)

	out, code = check("log_size", dir, "100")
	assert.Equal(t, "1\n", out)
	assert.Equal(t, 0, code)

	out, code = check("log_size", filepath.Join(dir, "missing"))
	assert.Equal(t, "0\n", out)
	assert.Equal(t, 1, code)
}

func TestRun_UsageErrors(t *testing.T) {
	for _, args := range [][]string{
		nil,
		{"http"},
		{"log_size"},
		{"log_size", ".", "lots"},
		{"disk"},
		{"http", "a", "b"},
	} {
		out, code := check(args...)
		assert.Equal(t, "0\n", out, "%v", args)
		assert.Equal(t, 1, code, "%v", args)
	}
}
