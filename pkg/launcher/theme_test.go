package launcher

import (
	"os"
	"path/filepath"
	"testing"
)

func TestThemeByNameFallsBackToDefault(t *testing.T) {
	if got := ThemeByName("dracula"); got.Name != "dracula" {
		t.Fatalf("got %q", got.Name)
	}
	if got := ThemeByName("nonesuch"); got.Name != "viper" {
		t.Fatalf("unknown name should fall back to default, got %q", got.Name)
	}
	// Case and whitespace are forgiven.
	if got := ThemeByName("  Nord "); got.Name != "nord" {
		t.Fatalf("got %q", got.Name)
	}
}

func TestThemesCatalogComplete(t *testing.T) {
	all := Themes()
	if len(all) != 13 {
		t.Fatalf("themes = %d, want 13", len(all))
	}
	seen := map[string]bool{}
	for _, th := range all {
		if th.Name == "" || th.Display == "" {
			t.Fatalf("incomplete theme %+v", th)
		}
		if seen[th.Name] {
			t.Fatalf("duplicate theme %q", th.Name)
		}
		seen[th.Name] = true
	}
}

func TestLoadThemePrecedence(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("VIPERSSH_CONFIG", dir)
	t.Setenv("VIPERSSH_THEME", "")

	// 4. Nothing configured: default.
	if got := LoadTheme(""); got.Name != "viper" {
		t.Fatalf("default = %q", got.Name)
	}

	// 3. Persisted selection.
	if err := SaveThemeName("gruvbox"); err != nil {
		t.Fatalf("SaveThemeName: %v", err)
	}
	if got := LoadTheme(""); got.Name != "gruvbox" {
		t.Fatalf("persisted = %q", got.Name)
	}

	// 2. Env var beats the persisted file.
	t.Setenv("VIPERSSH_THEME", "ocean")
	if got := LoadTheme(""); got.Name != "ocean" {
		t.Fatalf("env = %q", got.Name)
	}

	// 1. Explicit name beats everything.
	if got := LoadTheme("matrix"); got.Name != "matrix" {
		t.Fatalf("explicit = %q", got.Name)
	}
}

func TestSaveThemeNameWritesFile(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("VIPERSSH_CONFIG", dir)

	if err := SaveThemeName("Tokyonight"); err != nil {
		t.Fatalf("SaveThemeName: %v", err)
	}
	data, err := os.ReadFile(filepath.Join(dir, "theme"))
	if err != nil {
		t.Fatalf("read theme file: %v", err)
	}
	if string(data) != "tokyonight\n" {
		t.Fatalf("file = %q", string(data))
	}
}

func TestDisabledThemePassesTextThrough(t *testing.T) {
	th := DefaultTheme()
	th.Enabled = false
	if got := th.AccentText("hello"); got != "hello" {
		t.Fatalf("disabled styling altered text: %q", got)
	}
	if got := th.SelectedLine(true, "row"); got == "" {
		t.Fatal("selected line should still render text")
	}
}
