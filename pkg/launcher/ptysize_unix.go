//go:build !windows
// +build !windows

package launcher

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/creack/pty"
	"golang.org/x/term"
)

// startPTYResizeWatcher keeps the PTY size in sync with the current terminal
// size for the lifetime of the session. Best-effort: if stdout is not a TTY
// or size queries fail, resize events are simply dropped.
//
// The returned func stops the watcher; call it when the session ends.
func startPTYResizeWatcher(ptmx *os.File) func() {
	if ptmx == nil {
		return func() {}
	}

	winchCh := make(chan os.Signal, 1)
	signal.Notify(winchCh, syscall.SIGWINCH)

	go func() {
		for range winchCh {
			if term.IsTerminal(int(os.Stdout.Fd())) {
				if cols, rows, err := term.GetSize(int(os.Stdout.Fd())); err == nil && rows > 0 && cols > 0 {
					_ = pty.Setsize(ptmx, &pty.Winsize{
						Rows: uint16(rows),
						Cols: uint16(cols),
					})
				}
			}
		}
	}()

	return func() {
		signal.Stop(winchCh)
		close(winchCh)
	}
}
