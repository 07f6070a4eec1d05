package launcher

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"regexp"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/creack/pty"
	"golang.org/x/term"
)

// The connection driver spawns the OpenSSH client under a PTY, watches its
// output for authentication prompts, answers them with a session-cached
// password, and hands the terminal over once a live shell appears.
//
// It is deliberately a thin watch-and-react loop: ssh/sftp do all protocol,
// crypto, and terminal work. The driver only matches a handful of prompt
// shapes on the most recent output line:
//
//   - host-key confirmation  -> answer "yes"
//   - password prompt        -> answer the cached password (once per prompt,
//     bounded; a chain of jump hosts re-prompts and gets the same answer)
//   - forced password-change -> stop driving, let the user take over
//   - shell / sftp prompt    -> authentication is done; hand off and start
//     injecting keepalive bytes
//
// If the client exits before a shell prompt was ever seen, the captured
// output tail is returned in the error.

// Sentinel errors reported by Dial.
var (
	// ErrAuthFailed means the remote kept re-prompting for a password past the
	// allowed attempts; the session-cached credential is dropped when this is
	// returned.
	ErrAuthFailed = errors.New("authentication failed")

	// ErrClosedBeforeShell means the connection ended before a live shell was
	// detected.
	ErrClosedBeforeShell = errors.New("connection closed before shell")
)

// Prompt patterns. These match the trailing line of output, after ANSI
// escapes are stripped and CR is normalized to NL.
var (
	hostKeyPromptRe = regexp.MustCompile(`(?i)are you sure you want to continue connecting`)

	passwordPromptRe = regexp.MustCompile(`(?i)(password|passphrase|passcode)[^:\n]*:\s*$`)

	// Forced password-change dialogs. Checked before the generic password
	// prompt so "New password:" is never auto-answered with the old secret.
	passwordChangeRe = regexp.MustCompile(`(?i)((current|old)\s+password|you must change your password|password (has )?expired|new password|retype new)`)

	// A live interactive prompt: "user@host:~$ ", "# ", "router> ", etc.
	shellPromptRe = regexp.MustCompile(`[$#%>]\s?$`)

	// sftp's own prompt.
	sftpPromptRe = regexp.MustCompile(`(?i)^sftp>\s?$`)

	ansiEscapeRe = regexp.MustCompile(`\x1b(?:\[[0-9;?]*[a-zA-Z]|\][^\x07\x1b]*(?:\x07|\x1b\\)?)`)
)

// scanEvent is what the prompt scanner saw in the latest output.
type scanEvent int

const (
	scanNone scanEvent = iota
	scanHostKey
	scanPassword
	scanPasswordChange
	scanShell
)

const maxScanTail = 2048

// promptScanner keeps a rolling tail of subprocess output and classifies the
// most recent line. It is a plain sequential matcher; no goroutines, no state
// beyond the tail buffer.
type promptScanner struct {
	tail  strings.Builder
	proto string
}

func newPromptScanner(proto string) *promptScanner {
	return &promptScanner{proto: normalizeProto(proto)}
}

// feed appends a chunk of raw subprocess output and reports the event the
// updated tail implies. After a non-none event the current line is consumed
// so the same prompt text does not fire twice.
func (sc *promptScanner) feed(chunk []byte) scanEvent {
	for _, b := range chunk {
		if b == 0 {
			continue
		}
		// Normalize CR to a line boundary so prompts without a newline still
		// terminate the previous line.
		if b == '\r' {
			sc.tail.WriteByte('\n')
		} else {
			sc.tail.WriteByte(b)
		}
		if sc.tail.Len() > maxScanTail {
			s := sc.tail.String()
			sc.tail.Reset()
			sc.tail.WriteString(s[len(s)-maxScanTail:])
		}
	}

	ev := sc.classify()
	if ev != scanNone {
		// Consume the line so the event fires once per prompt occurrence.
		sc.tail.WriteByte('\n')
	}
	return ev
}

// lastLine returns the trailing line of the tail, ANSI-stripped and trimmed.
func (sc *promptScanner) lastLine() string {
	s := sc.tail.String()
	if idx := strings.LastIndexByte(s, '\n'); idx >= 0 {
		s = s[idx+1:]
	}
	s = ansiEscapeRe.ReplaceAllString(s, "")
	return strings.TrimSpace(s)
}

// tailExcerpt returns the most recent output for error reporting.
func (sc *promptScanner) tailExcerpt() string {
	s := ansiEscapeRe.ReplaceAllString(sc.tail.String(), "")
	s = strings.TrimSpace(s)
	const max = 512
	if len(s) > max {
		s = s[len(s)-max:]
	}
	return s
}

func (sc *promptScanner) classify() scanEvent {
	line := sc.lastLine()
	if line == "" {
		return scanNone
	}
	if hostKeyPromptRe.MatchString(line) {
		return scanHostKey
	}
	if passwordChangeRe.MatchString(line) {
		return scanPasswordChange
	}
	if passwordPromptRe.MatchString(line) {
		return scanPassword
	}
	if sc.proto == ProtoSFTP {
		if sftpPromptRe.MatchString(line) {
			return scanShell
		}
		// sftp may still route through a login shell banner; fall through.
	}
	if shellPromptRe.MatchString(line) {
		return scanShell
	}
	return scanNone
}

// authAction is what the driver should do in response to the latest output.
type authAction int

const (
	authNone authAction = iota
	authReply
	authHandoff
	authHandoffChange
	authFail
)

// authDirector holds the prompt-driving policy for one session: which prompt
// gets which reply, how many password attempts are allowed, and the hard rule
// that nothing is auto-answered past the deadline. A password prompt that
// shows up late (a sudo/su dialog after an unrecognized shell, a stalled hop)
// must never receive the ssh secret.
type authDirector struct {
	sc         *promptScanner
	password   string
	deadline   time.Time
	maxPrompts int
	prompts    int
}

func newAuthDirector(proto, password string, deadline time.Time, maxPrompts int) *authDirector {
	return &authDirector{
		sc:         newPromptScanner(proto),
		password:   password,
		deadline:   deadline,
		maxPrompts: maxPrompts,
	}
}

// observe classifies the next output chunk and returns the action to take,
// with the reply to write for authReply.
func (a *authDirector) observe(chunk []byte, now time.Time) (authAction, string) {
	if now.After(a.deadline) {
		// Keep the tail current for error excerpts, but stop driving.
		a.sc.feed(chunk)
		return authHandoff, ""
	}
	switch a.sc.feed(chunk) {
	case scanHostKey:
		return authReply, "yes\r"
	case scanPassword:
		a.prompts++
		if a.prompts > a.maxPrompts {
			return authFail, ""
		}
		return authReply, a.password + "\r"
	case scanPasswordChange:
		return authHandoffChange, ""
	case scanShell:
		return authHandoff, ""
	}
	return authNone, ""
}

// DriverOptions tunes the connection driver.
type DriverOptions struct {
	// Proto selects the client binary: ProtoSSH (default) or ProtoSFTP.
	Proto string

	// User, when set, scopes credential lookup (targets like user@host
	// already carry it).
	User string

	// AuthTimeout bounds the prompt-driving phase. After it passes without a
	// recognized shell prompt, the driver assumes the session is live and
	// hands over anyway. Default 30s.
	AuthTimeout time.Duration

	// KeepaliveInterval is how often a NUL byte is written to the PTY after
	// handoff, to suppress idle disconnects. 0 disables. Default 60s.
	KeepaliveInterval time.Duration

	// MaxPasswordPrompts is how many password prompts may be answered before
	// the attempt is declared failed. Default 3.
	MaxPasswordPrompts int

	// ExtraArgs are appended to the client argv before the destination.
	ExtraArgs []string
}

func (o *DriverOptions) applyDefaults() {
	o.Proto = normalizeProto(o.Proto)
	if o.AuthTimeout <= 0 {
		o.AuthTimeout = 30 * time.Second
	}
	if o.KeepaliveInterval < 0 {
		o.KeepaliveInterval = 0
	}
	if o.MaxPasswordPrompts <= 0 {
		o.MaxPasswordPrompts = 3
	}
}

// Driver runs interactive ssh/sftp sessions with cached-password automation.
type Driver struct {
	creds  *CredentialStore
	logger *log.Logger
}

// NewDriver returns a driver using the given credential store and logger.
func NewDriver(creds *CredentialStore, logger *log.Logger) *Driver {
	if logger == nil {
		logger = log.New(io.Discard)
	}
	return &Driver{creds: creds, logger: logger}
}

// ClientArgv constructs the argv the driver runs for target; exposed so
// callers can print it (--dry-run) or exec it without the driver.
func ClientArgv(opts DriverOptions, target string) []string {
	opts.applyDefaults()
	bin := "ssh"
	if opts.Proto == ProtoSFTP {
		bin = "sftp"
	}
	argv := []string{bin}
	argv = append(argv, opts.ExtraArgs...)
	argv = append(argv, target)
	return argv
}

// Dial connects to target and runs the full session: prompt automation,
// interactive handoff, keepalive injection. It blocks until the client
// exits and returns its exit error (if any).
func (d *Driver) Dial(ctx context.Context, target string, opts DriverOptions) error {
	target = strings.TrimSpace(target)
	if target == "" {
		return errors.New("empty target")
	}
	opts.applyDefaults()

	// Resolve the password first, outside raw mode, so any interactive prompt
	// behaves like a normal terminal read. One resolution covers every hop.
	password, err := d.creds.Password(target, opts.User)
	if err != nil {
		return err
	}

	argv := ClientArgv(opts, target)
	d.logger.Debug("starting client", "argv", strings.Join(argv, " "))

	cmd := exec.Command(argv[0], argv[1:]...)
	ptmx, err := pty.Start(cmd)
	if err != nil {
		return fmt.Errorf("pty start %s: %w", argv[0], err)
	}
	defer func() { _ = ptmx.Close() }()

	// Kill the child if the caller gives up.
	dialDone := make(chan struct{})
	defer close(dialDone)
	go func() {
		select {
		case <-ctx.Done():
			if cmd.Process != nil {
				_ = cmd.Process.Kill()
			}
		case <-dialDone:
		}
	}()

	// Seed the PTY size from the terminal the user is looking at; a 0x0 PTY
	// breaks full-screen programs on the remote side.
	if term.IsTerminal(int(os.Stdout.Fd())) {
		if cols, rows, sizeErr := term.GetSize(int(os.Stdout.Fd())); sizeErr == nil && rows > 0 && cols > 0 {
			_ = pty.Setsize(ptmx, &pty.Winsize{Rows: uint16(rows), Cols: uint16(cols)})
		}
	}
	stopResize := startPTYResizeWatcher(ptmx)
	defer stopResize()

	// Drop any queued terminal-integration replies so they are not consumed
	// by the remote shell as typed input.
	flushTTYInput()

	// Raw mode for the handoff; restored on exit along with the cursor.
	if fd := int(os.Stdin.Fd()); term.IsTerminal(fd) {
		oldState, sErr := term.MakeRaw(fd)
		if sErr == nil {
			defer func() {
				_ = term.Restore(fd, oldState)
				_, _ = fmt.Fprint(os.Stdout, "\x1b[?25h\x1b[0m")
			}()
		}
	}

	// User input flows to the client for the whole session; during the auth
	// phase this lets the user answer anything the driver does not recognize.
	go func() {
		_, _ = io.Copy(ptmx, os.Stdin)
	}()

	dir := newAuthDirector(opts.Proto, password, time.Now().Add(opts.AuthTimeout), opts.MaxPasswordPrompts)

	handedOff := false
	authFailed := false

	stopKeepalive := make(chan struct{})
	keepaliveStarted := false
	startKeepalive := func() {
		if keepaliveStarted || opts.KeepaliveInterval <= 0 {
			keepaliveStarted = true
			return
		}
		keepaliveStarted = true
		go func() {
			ticker := time.NewTicker(opts.KeepaliveInterval)
			defer ticker.Stop()
			for {
				select {
				case <-ticker.C:
					// A NUL is forwarded by ssh but ignored by line editors,
					// so the session stays busy without visible effect.
					if _, werr := ptmx.Write([]byte{0}); werr != nil {
						return
					}
				case <-stopKeepalive:
					return
				}
			}
		}()
	}
	defer close(stopKeepalive)

	// Output is pumped through a channel so the auth deadline fires even while
	// the client is silent: blocking in ptmx.Read directly would delay the
	// handoff (and the keepalive ticker) until the next byte arrives.
	type ptyChunk struct {
		data []byte
		err  error
	}
	reads := make(chan ptyChunk)
	go func() {
		buf := make([]byte, 4096)
		for {
			n, rerr := ptmx.Read(buf)
			out := append([]byte(nil), buf[:n]...)
			select {
			case reads <- ptyChunk{data: out, err: rerr}:
			case <-dialDone:
				return
			}
			if rerr != nil {
				return
			}
		}
	}()

	authTimer := time.NewTimer(opts.AuthTimeout)
	defer authTimer.Stop()

readLoop:
	for {
		select {
		case c := <-reads:
			if len(c.data) > 0 {
				_, _ = os.Stdout.Write(c.data)

				if !handedOff {
					switch action, reply := dir.observe(c.data, time.Now()); action {
					case authReply:
						d.logger.Debug("answering prompt", "target", target, "attempt", dir.prompts)
						_, _ = ptmx.Write([]byte(reply))

					case authHandoff:
						d.logger.Debug("auth phase over; handing over", "target", target)
						handedOff = true
						startKeepalive()

					case authHandoffChange:
						// Never feed the cached secret into a change dialog;
						// the user finishes this by hand.
						d.logger.Warn("remote requires a password change; handing over", "target", target)
						handedOff = true
						startKeepalive()

					case authFail:
						d.logger.Warn("too many password prompts; giving up", "target", target, "prompts", dir.prompts)
						authFailed = true
						handedOff = true
						if cmd.Process != nil {
							_ = cmd.Process.Kill()
						}
					}
				}
			}
			if c.err != nil {
				break readLoop
			}

		case <-authTimer.C:
			if !handedOff {
				// No recognized prompt within the window; assume the session
				// is live rather than holding the user hostage.
				d.logger.Debug("auth window elapsed; assuming live session", "target", target)
				handedOff = true
				startKeepalive()
			}
		}
	}

	waitErr := cmd.Wait()

	if authFailed {
		d.creds.Invalidate(target, opts.User)
		return fmt.Errorf("%w: %s rejected the password %d times", ErrAuthFailed, target, dir.prompts-1)
	}
	if !handedOff {
		// The client exited while the driver was still watching for prompts.
		if excerpt := dir.sc.tailExcerpt(); excerpt != "" {
			return fmt.Errorf("%w: %s\n%s", ErrClosedBeforeShell, target, excerpt)
		}
		if waitErr != nil {
			return fmt.Errorf("%w: %s: %v", ErrClosedBeforeShell, target, waitErr)
		}
		return fmt.Errorf("%w: %s", ErrClosedBeforeShell, target)
	}
	return waitErr
}
