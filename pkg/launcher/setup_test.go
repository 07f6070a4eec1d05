package launcher

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestEnsureConfigDirCreates(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "conf", "viperssh")
	got, err := EnsureConfigDir(dir)
	if err != nil {
		t.Fatalf("EnsureConfigDir: %v", err)
	}
	if got != dir {
		t.Fatalf("dir = %q, want %q", got, dir)
	}
	fi, err := os.Stat(dir)
	if err != nil || !fi.IsDir() {
		t.Fatalf("stat: %v", err)
	}
}

func TestWriteExampleConfig(t *testing.T) {
	dir := t.TempDir()
	path, err := WriteExampleConfig(dir)
	if err != nil {
		t.Fatalf("WriteExampleConfig: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	// The example must itself be a valid inventory.
	cfg, err := ParseConfig(data)
	if err != nil {
		t.Fatalf("example does not parse: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("example does not validate: %v", err)
	}

	// Second run leaves an edited example alone.
	if err := os.WriteFile(path, []byte("edited"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := WriteExampleConfig(dir); err != nil {
		t.Fatalf("second WriteExampleConfig: %v", err)
	}
	data, _ = os.ReadFile(path)
	if string(data) != "edited" {
		t.Fatal("existing example file was overwritten")
	}
}

func TestInstallSymlink(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	bin := filepath.Join(t.TempDir(), "viperssh")
	if err := os.WriteFile(bin, []byte("#!/bin/sh\n"), 0o755); err != nil {
		t.Fatal(err)
	}

	link, err := InstallSymlink(bin, "viperssh")
	if err != nil {
		t.Fatalf("InstallSymlink: %v", err)
	}
	if !strings.HasPrefix(link, filepath.Join(home, ".local", "bin")) {
		t.Fatalf("link = %q, want under ~/.local/bin", link)
	}
	dest, err := os.Readlink(link)
	if err != nil {
		t.Fatalf("readlink: %v", err)
	}
	if filepath.Base(dest) != "viperssh" {
		t.Fatalf("dest = %q", dest)
	}

	// Idempotent.
	if _, err := InstallSymlink(bin, "viperssh"); err != nil {
		t.Fatalf("second InstallSymlink: %v", err)
	}
}

func TestInstallSymlinkPrefersExistingHomeBin(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	if err := os.MkdirAll(filepath.Join(home, "bin"), 0o755); err != nil {
		t.Fatal(err)
	}

	bin := filepath.Join(t.TempDir(), "viperssh")
	if err := os.WriteFile(bin, nil, 0o755); err != nil {
		t.Fatal(err)
	}

	link, err := InstallSymlink(bin, "viperssh")
	if err != nil {
		t.Fatalf("InstallSymlink: %v", err)
	}
	if filepath.Dir(link) != filepath.Join(home, "bin") {
		t.Fatalf("link = %q, want under ~/bin", link)
	}
}

func TestInstallSymlinkRefusesForeignFiles(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	binDir := filepath.Join(home, "bin")
	if err := os.MkdirAll(binDir, 0o755); err != nil {
		t.Fatal(err)
	}

	bin := filepath.Join(t.TempDir(), "viperssh")
	if err := os.WriteFile(bin, nil, 0o755); err != nil {
		t.Fatal(err)
	}

	// A regular file in the way is never replaced.
	if err := os.WriteFile(filepath.Join(binDir, "viperssh"), []byte("mine"), 0o755); err != nil {
		t.Fatal(err)
	}
	if _, err := InstallSymlink(bin, "viperssh"); err == nil || !strings.Contains(err.Error(), "not a symlink") {
		t.Fatalf("err = %v, want refusal", err)
	}

	// A symlink pointing at some unrelated binary is not replaced either.
	if err := os.Remove(filepath.Join(binDir, "viperssh")); err != nil {
		t.Fatal(err)
	}
	other := filepath.Join(t.TempDir(), "othertool")
	if err := os.WriteFile(other, nil, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.Symlink(other, filepath.Join(binDir, "viperssh")); err != nil {
		t.Fatal(err)
	}
	if _, err := InstallSymlink(bin, "viperssh"); err == nil || !strings.Contains(err.Error(), "not replacing") {
		t.Fatalf("err = %v, want refusal", err)
	}
}
