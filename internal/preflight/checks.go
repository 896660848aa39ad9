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

	"beatshop/internal/config"
	"beatshop/internal/deps"
	"beatshop/internal/services"
	"beatshop/internal/storage"
)

const storageCheckTimeout = 10 * time.Second

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

// CheckStorage lists one category to confirm the backend answers. Listing
// never provisions anything.
func CheckStorage(ctx context.Context, backend storage.Backend, category string) Result {
	if backend == nil {
		return Result{Name: "Storage", Detail: "not configured"}
	}
	name := fmt.Sprintf("Storage (%s)", backend.Name())

	checkCtx, cancel := context.WithTimeout(ctx, storageCheckTimeout)
	defer cancel()

	refs, err := backend.List(checkCtx, category)
	if err != nil {
		return Result{Name: name, Detail: summarizeStorageError(err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("reachable (%d beats in %s)", len(refs), category)}
}

// CheckNotifications reports which transports are configured. It does not
// send anything; `beatshop test-notify` does that.
func CheckNotifications(cfg *config.Config) Result {
	const name = "Notifications"

	if cfg == nil {
		return Result{Name: name, Detail: "Unknown"}
	}
	var transports []string
	if strings.TrimSpace(cfg.Notifications.NtfyTopic) != "" {
		transports = append(transports, "ntfy")
	}
	if cfg.Notifications.Email.Enabled {
		transports = append(transports, "email")
	}
	if len(transports) == 0 {
		return Result{Name: name, Passed: true, Detail: "Disabled"}
	}
	return Result{Name: name, Passed: true, Detail: strings.Join(transports, ", ")}
}

// CheckSystemDeps evaluates the external binaries for the given config.
// Both the server and the CLI status command report through here.
func CheckSystemDeps(ctx context.Context, cfg *config.Config) []deps.Status {
	if cfg == nil {
		return nil
	}
	return deps.Check(ctx, cfg)
}

func summarizeStorageError(err error) string {
	if errors.Is(err, context.DeadlineExceeded) {
		return "check timed out (backend unresponsive)"
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return "check timed out (backend unreachable)"
	}
	return fmt.Sprintf("%s: %v", services.Kind(err), err)
}
