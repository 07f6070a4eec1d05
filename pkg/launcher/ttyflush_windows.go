//go:build windows
// +build windows

package launcher

// flushTTYInput is a no-op on Windows; console input queues do not carry the
// OSC/DSR reply bursts this guards against on Unix terminals.
func flushTTYInput() {}
