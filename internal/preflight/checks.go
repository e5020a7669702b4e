package preflight

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"strings"
	"time"

	"golang.org/x/sys/unix"

	"reelkeep/internal/emby"
	"reelkeep/internal/services"
)

// CheckEmby verifies media server connectivity and authentication.
func CheckEmby(ctx context.Context, baseURL, apiKey string) Result {
	const name = "Emby"

	if strings.TrimSpace(baseURL) == "" {
		return Result{Name: name, Detail: "missing url"}
	}
	if strings.TrimSpace(apiKey) == "" {
		return Result{Name: name, Detail: "missing api key"}
	}

	checkCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	client, err := emby.New(baseURL, apiKey, "", 5*time.Second)
	if err != nil {
		return Result{Name: name, Detail: err.Error()}
	}
	if err := client.Ping(checkCtx); err != nil {
		return Result{Name: name, Detail: summarizeEmbyError(err)}
	}
	return Result{Name: name, Passed: true, Detail: "Reachable"}
}

// CheckTMDBKey reports whether a TMDB key is configured. The key is not
// exercised here; reconcile surfaces provider failures per title.
func CheckTMDBKey(apiKey string) Result {
	const name = "TMDB"
	if strings.TrimSpace(apiKey) == "" {
		return Result{Name: name, Detail: "api key missing (reconcile disabled)"}
	}
	return Result{Name: name, Passed: true, Detail: "api key configured"}
}

// CheckDirectoryAccess verifies that the directory exists and is readable/writable.
func CheckDirectoryAccess(name, path string) Result {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: does not exist)", path)}
		}
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: stat: %v)", path, err)}
	}
	if !info.IsDir() {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: is not a directory)", path)}
	}
	if err := unix.Access(path, unix.R_OK|unix.W_OK|unix.X_OK); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: insufficient permissions: %v)", path, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (read/write ok)", path)}
}

func summarizeEmbyError(err error) string {
	if errors.Is(err, context.DeadlineExceeded) {
		return "health check timed out (server unresponsive)"
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return "health check timed out (server unreachable)"
	}
	switch {
	case errors.Is(err, services.ErrNotFound):
		return "endpoint not found (check the url)"
	case errors.Is(err, services.ErrExternalTool):
		return "auth failed (invalid api key)"
	case errors.Is(err, services.ErrTransient):
		return fmt.Sprintf("unreachable (%v)", err)
	}
	return err.Error()
}
