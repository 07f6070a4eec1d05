package launcher

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// exampleConfig is written next to hosts.yaml on first run so the expected
// shape is always one `cp` away.
const exampleConfig = `# viperssh host inventory.
#
# Each top-level key under "environments" is a panel in the picker, in file
# order. "suffix" is appended to bare host tokens; tokens already containing
# "." or "@" are used as-is.
#
# A host is either a plain string (display name == ssh token) or a
# "display: token" pair.
environments:
  production:
    suffix: .prod.example.com
    hosts:
      - web1
      - web2
      - db primary: db1
  staging:
    suffix: .stage.example.com
    hosts:
      - web1
      - admin@jump.example.com
`

// EnsureConfigDir creates the config directory (0700) and returns its path.
func EnsureConfigDir(explicitDir string) (string, error) {
	dir := strings.TrimSpace(explicitDir)
	if dir == "" {
		var err error
		dir, err = DefaultConfigDir()
		if err != nil {
			return "", err
		}
	}
	dir = expandPath(dir)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", fmt.Errorf("create config dir: %w", err)
	}
	return dir, nil
}

// WriteExampleConfig writes hosts.yaml.example into dir. An existing example
// file is left alone; the real hosts.yaml is never touched.
func WriteExampleConfig(dir string) (string, error) {
	path := filepath.Join(dir, configFilename+".example")
	if _, err := os.Lstat(path); err == nil {
		return path, nil
	} else if !os.IsNotExist(err) {
		return "", err
	}
	if err := os.WriteFile(path, []byte(exampleConfig), 0o644); err != nil {
		return "", fmt.Errorf("write example config: %w", err)
	}
	return path, nil
}

// InstallSymlink links the running binary into the first of ~/bin or
// ~/.local/bin that exists (creating ~/.local/bin when neither does), so the
// launcher lands on $PATH without a package manager.
//
// An existing entry is only replaced when it is a symlink that already points
// at a viperssh binary; anything else is left alone and reported.
func InstallSymlink(binPath, name string) (string, error) {
	binPath = strings.TrimSpace(binPath)
	if binPath == "" {
		var err error
		binPath, err = os.Executable()
		if err != nil {
			return "", fmt.Errorf("resolve executable: %w", err)
		}
	}
	if resolved, err := filepath.EvalSymlinks(binPath); err == nil {
		binPath = resolved
	}
	if name == "" {
		name = "viperssh"
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	dir := ""
	for _, cand := range []string{filepath.Join(home, "bin"), filepath.Join(home, ".local", "bin")} {
		if fi, statErr := os.Stat(cand); statErr == nil && fi.IsDir() {
			dir = cand
			break
		}
	}
	if dir == "" {
		dir = filepath.Join(home, ".local", "bin")
		if mkErr := os.MkdirAll(dir, 0o755); mkErr != nil {
			return "", fmt.Errorf("create %s: %w", dir, mkErr)
		}
	}

	link := filepath.Join(dir, name)
	if fi, lerr := os.Lstat(link); lerr == nil {
		if fi.Mode()&os.ModeSymlink == 0 {
			return "", fmt.Errorf("%s exists and is not a symlink; not replacing", link)
		}
		dest, rerr := os.Readlink(link)
		if rerr != nil {
			return "", rerr
		}
		if !strings.Contains(filepath.Base(dest), name) {
			return "", fmt.Errorf("%s points at %s; not replacing", link, dest)
		}
		if dest == binPath {
			return link, nil
		}
		if rmErr := os.Remove(link); rmErr != nil {
			return "", rmErr
		}
	} else if !os.IsNotExist(lerr) {
		return "", lerr
	}

	if err := os.Symlink(binPath, link); err != nil {
		return "", fmt.Errorf("symlink %s: %w", link, err)
	}
	return link, nil
}
