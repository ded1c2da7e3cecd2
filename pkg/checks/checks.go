// Package checks implements the agent health checks. Each check prints a
// single value for the agent to collect and sets the process exit code.
package checks

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"
)

// HTTPTimeout bounds the single request of the http check.
const HTTPTimeout = 5 * time.Second

// Result is what a check prints and the exit code it ends with.
type Result struct {
	Output string
	Code   int
}

// Failed is printed by every check that cannot produce a value.
var Failed = Result{Output: "0", Code: 1}

// OK is printed by checks that pass.
var OK = Result{Output: "1", Code: 0}

// HTTP issues one GET to url and passes only on status 200. Transport errors
// count as failures.
func HTTP(ctx context.Context, url string, timeout time.Duration) Result {
	client := retryablehttp.NewClient()
	client.RetryMax = 0
	client.Logger = nil
	client.HTTPClient.Timeout = timeout

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return Failed
	}
	resp, err := client.Do(req)
	if err != nil {
		return Failed
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return Failed
	}
	return OK
}

// ErrPathNotFound is returned when the log directory does not exist.
var ErrPathNotFound = errors.New("path not found")

// LogSize returns the total size in MiB of the regular files under root whose
// names end in ".log".
func LogSize(root string) (float64, error) {
	if _, err := os.Stat(root); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return 0, fmt.Errorf("%s: %w", root, ErrPathNotFound)
		}
		return 0, err
	}

	var total int64
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.Type().IsRegular() || !strings.HasSuffix(d.Name(), ".log") {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		total += info.Size()
		return nil
	})
	if err != nil {
		return 0, err
	}
	return float64(total) / (1024 * 1024), nil
}

// LogSizeValue prints the log size with two decimals.
func LogSizeValue(root string) Result {
	size, err := LogSize(root)
	if err != nil {
		return Failed
	}
	return Result{Output: fmt.Sprintf("%.2f", size)}
}

// LogSizeWithin prints 1 when the log size is at most maxMiB and 0 otherwise.
// Both outcomes exit 0; only an unreadable path fails.
func LogSizeWithin(root string, maxMiB float64) Result {
	size, err := LogSize(root)
	if err != nil {
		return Failed
	}
	if size > maxMiB {
		return Result{Output: "0"}
	}
	return Result{Output: "1"}
}
