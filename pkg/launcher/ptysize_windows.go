//go:build windows
// +build windows

package launcher

import "os"

// startPTYResizeWatcher is a no-op on Windows: there is no SIGWINCH, and
// referencing it in a Windows build fails compilation. Initial PTY sizing is
// handled at session start; live resize propagation is skipped.
func startPTYResizeWatcher(_ *os.File) func() {
	return func() {}
}
