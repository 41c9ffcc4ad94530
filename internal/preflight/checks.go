package preflight

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"strings"
	"syscall"

	"golang.org/x/sys/unix"

	"unitgo/internal/shm"
)

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

// CheckSharedMemory maps and releases a segment of the configured size and
// confirms it holds at least one chunk.
func CheckSharedMemory(size, chunkSize int) Result {
	const name = "Shared memory"

	seg, err := shm.Map(size)
	if err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("map %d bytes failed (%v)", size, err)}
	}
	defer seg.Close()

	pool, err := shm.NewPool(seg, chunkSize)
	if err != nil {
		return Result{Name: name, Detail: err.Error()}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%d KiB, %d chunks of %d KiB", size>>10, pool.Chunks(), chunkSize>>10)}
}

// CheckBindAvailable listens on addr and closes the listener immediately.
func CheckBindAvailable(ctx context.Context, addr string) Result {
	const name = "Dev bind"

	addr = strings.TrimSpace(addr)
	if addr == "" {
		return Result{Name: name, Detail: "no bind address configured"}
	}
	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", addr)
	if err != nil {
		return Result{Name: name, Detail: summarizeListenError(addr, err)}
	}
	_ = ln.Close()
	return Result{Name: name, Passed: true, Detail: addr + " (available)"}
}

func summarizeListenError(addr string, err error) string {
	switch {
	case errors.Is(err, syscall.EADDRINUSE):
		return addr + " (error: already in use)"
	case errors.Is(err, syscall.EACCES):
		return addr + " (error: permission denied; use a port above 1024)"
	default:
		return fmt.Sprintf("%s (error: %v)", addr, err)
	}
}
