//go:build !windows
// +build !windows

package launcher

import (
	"os"
	"time"

	"golang.org/x/sys/unix"
)

// flushTTYInput best-effort drops any pending unread bytes queued on the
// controlling terminal. Terminal integrations emit OSC/DSR replies that would
// otherwise be consumed as typed characters by the next interactive program,
// so this runs right before the PTY session starts.
//
// It never returns an error; with no /dev/tty (non-interactive) it is a no-op.
func flushTTYInput() {
	tty, err := os.OpenFile("/dev/tty", os.O_RDONLY, 0)
	if err != nil {
		return
	}
	defer func() { _ = tty.Close() }()

	fd := int(tty.Fd())
	if fd < 0 {
		return
	}

	// tcflush(fd, TCIFLUSH) via ioctl(TCFLSH). TCFLSH is 0x540B on both Linux
	// (asm-generic/ioctls.h) and Darwin (sys/ttycom.h); TCIFLUSH arg is 0.
	const TCFLSH = 0x540B
	_, _, _ = unix.Syscall(unix.SYS_IOCTL, uintptr(fd), uintptr(TCFLSH), uintptr(unix.TCIFLUSH))

	// Replies can land right after the flush; drain a short non-blocking
	// window to catch the tail of a burst.
	_ = unix.SetNonblock(fd, true)
	defer func() { _ = unix.SetNonblock(fd, false) }()

	deadline := time.Now().Add(200 * time.Millisecond)
	buf := make([]byte, 512)

	for time.Now().Before(deadline) {
		n, rerr := unix.Read(fd, buf)
		if n > 0 {
			deadline = time.Now().Add(75 * time.Millisecond)
			continue
		}
		if rerr == unix.EAGAIN || rerr == unix.EWOULDBLOCK {
			break
		}
		break
	}
}
