package launcher

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/zalando/go-keyring"
	"golang.org/x/term"
)

// Credential handling for the connection driver.
//
// Lookup order for a password:
//  1. in-process session cache (so a chain of hops, or several connects in
//     one launcher run, asks the user at most once)
//  2. OS keyring (service "viperssh", managed via `viperssh cred`)
//  3. interactive no-echo prompt on the controlling terminal, which then
//     primes the session cache
//
// The keyring is never written implicitly; only `cred set` persists.

const keyringService = "viperssh"

// ErrCredentialNotFound is returned by non-interactive lookups when neither
// the session cache nor the keyring has a secret for the key.
var ErrCredentialNotFound = errors.New("credential not found")

// Keyring is the minimal keyring surface used here; it exists so tests can
// substitute an in-memory implementation.
type Keyring interface {
	Get(service, account string) (string, error)
	Set(service, account, secret string) error
	Delete(service, account string) error
}

type osKeyring struct{}

func (osKeyring) Get(service, account string) (string, error) {
	return keyring.Get(service, account)
}

func (osKeyring) Set(service, account, secret string) error {
	return keyring.Set(service, account, secret)
}

func (osKeyring) Delete(service, account string) error {
	return keyring.Delete(service, account)
}

// CredentialStore caches passwords for the lifetime of the process and
// falls back to the OS keyring and, lastly, an interactive prompt.
type CredentialStore struct {
	mu      sync.Mutex
	session map[string]string

	ring     Keyring
	promptFn func(label string) (string, error)
}

// NewCredentialStore returns a store backed by the OS keyring and the
// controlling terminal.
func NewCredentialStore() *CredentialStore {
	return &CredentialStore{
		session:  make(map[string]string),
		ring:     osKeyring{},
		promptFn: promptPassword,
	}
}

// credKey builds the cache/keyring account key. The user part is optional;
// targets like "admin@web01.prod" already carry it.
func credKey(target, user string) string {
	target = strings.TrimSpace(target)
	user = strings.TrimSpace(user)
	if user == "" || strings.Contains(target, "@") {
		return target
	}
	return user + "@" + target
}

// Password resolves a password for target, prompting interactively as a last
// resort. The prompt result is cached for the session but not persisted.
func (s *CredentialStore) Password(target, user string) (string, error) {
	key := credKey(target, user)
	if key == "" {
		return "", errors.New("empty credential key")
	}

	s.mu.Lock()
	if pw, ok := s.session[key]; ok {
		s.mu.Unlock()
		return pw, nil
	}
	s.mu.Unlock()

	if pw, err := s.ring.Get(keyringService, key); err == nil && pw != "" {
		s.mu.Lock()
		s.session[key] = pw
		s.mu.Unlock()
		return pw, nil
	}

	pw, err := s.promptFn(fmt.Sprintf("Password for %s: ", key))
	if err != nil {
		return "", fmt.Errorf("read password: %w", err)
	}
	if pw == "" {
		return "", errors.New("empty password")
	}
	s.mu.Lock()
	s.session[key] = pw
	s.mu.Unlock()
	return pw, nil
}

// Cached reports whether a session-cached password exists for target.
func (s *CredentialStore) Cached(target, user string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.session[credKey(target, user)]
	return ok
}

// Invalidate drops the session-cached password for target, e.g. after the
// remote rejected it. The keyring copy (if any) is left alone.
func (s *CredentialStore) Invalidate(target, user string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.session, credKey(target, user))
}

// Set stores a password in the keyring (and primes the session cache).
func (s *CredentialStore) Set(target, user, password string) error {
	key := credKey(target, user)
	if key == "" {
		return errors.New("empty credential key")
	}
	if password == "" {
		return errors.New("empty password")
	}
	if err := s.ring.Set(keyringService, key, password); err != nil {
		return fmt.Errorf("keyring set %s: %w", key, err)
	}
	s.mu.Lock()
	s.session[key] = password
	s.mu.Unlock()
	return nil
}

// Verify checks that a credential exists without revealing it.
func (s *CredentialStore) Verify(target, user string) error {
	key := credKey(target, user)
	if key == "" {
		return errors.New("empty credential key")
	}
	s.mu.Lock()
	_, cached := s.session[key]
	s.mu.Unlock()
	if cached {
		return nil
	}
	if _, err := s.ring.Get(keyringService, key); err != nil {
		return fmt.Errorf("%w: %s", ErrCredentialNotFound, key)
	}
	return nil
}

// Delete removes a credential from the keyring and the session cache.
func (s *CredentialStore) Delete(target, user string) error {
	key := credKey(target, user)
	if key == "" {
		return errors.New("empty credential key")
	}
	s.mu.Lock()
	delete(s.session, key)
	s.mu.Unlock()
	if err := s.ring.Delete(keyringService, key); err != nil {
		return fmt.Errorf("keyring delete %s: %w", key, err)
	}
	return nil
}

// ReadPassword prompts on the controlling terminal without echo. Exposed for
// the `cred set` CLI path; the driver itself goes through Password.
func ReadPassword(label string) (string, error) {
	return promptPassword(label)
}

// promptPassword reads a secret from the controlling terminal without echo.
// It prefers /dev/tty so it works even when stdin is redirected.
func promptPassword(label string) (string, error) {
	tty, err := os.OpenFile("/dev/tty", os.O_RDWR, 0)
	if err != nil {
		// Non-interactive fallback: stdin must be a terminal.
		if !term.IsTerminal(int(os.Stdin.Fd())) {
			return "", errors.New("no terminal available for password prompt")
		}
		fmt.Fprint(os.Stderr, label)
		b, rerr := term.ReadPassword(int(os.Stdin.Fd()))
		fmt.Fprintln(os.Stderr)
		if rerr != nil {
			return "", rerr
		}
		return string(b), nil
	}
	defer tty.Close()

	fmt.Fprint(tty, label)
	b, err := term.ReadPassword(int(tty.Fd()))
	fmt.Fprintln(tty)
	if err != nil {
		return "", err
	}
	return string(b), nil
}
