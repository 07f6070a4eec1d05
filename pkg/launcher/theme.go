package launcher

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Theme provides colorized rendering for the TUI via lipgloss.
//
// Configuration sources (in priority order):
// 1) Explicit name passed to LoadTheme(name)
// 2) Env var VIPERSSH_THEME
// 3) Persisted selection in <configdir>/theme
// 4) Default ("viper")
//
// NO_COLOR and dumb terminals disable styling entirely.
type Theme struct {
	Name    string
	Display string
	Enabled bool

	Bg     lipgloss.Color
	Panel  lipgloss.Color
	Env    lipgloss.Color // environments panel border/title
	Host   lipgloss.Color // hosts panel border/title
	Accent lipgloss.Color // status/target highlight
}

const themeFilename = "theme"

// themeCatalog holds the built-in palettes, in menu order.
var themeCatalog = []Theme{
	{Name: "viper", Display: "Viper (Default)", Bg: "#0a0a0a", Panel: "#0d0d0d", Env: "#00ff00", Host: "#ff0000", Accent: "#ff00ff"},
	{Name: "ocean", Display: "Ocean", Bg: "#0a1628", Panel: "#0d1e36", Env: "#00bfff", Host: "#7fffd4", Accent: "#ff6b9d"},
	{Name: "sunset", Display: "Sunset", Bg: "#1a0a0a", Panel: "#2d0d0d", Env: "#ff6600", Host: "#ffcc00", Accent: "#ff0066"},
	{Name: "matrix", Display: "Matrix", Bg: "#000000", Panel: "#001100", Env: "#00ff00", Host: "#00dd00", Accent: "#00ff00"},
	{Name: "frost", Display: "Frost", Bg: "#0a1a2a", Panel: "#102030", Env: "#88ccff", Host: "#aaddff", Accent: "#ff88cc"},
	{Name: "dracula", Display: "Dracula", Bg: "#282a36", Panel: "#44475a", Env: "#50fa7b", Host: "#ff79c6", Accent: "#f1fa8c"},
	{Name: "onedark", Display: "One Dark", Bg: "#282c34", Panel: "#3e4451", Env: "#98c379", Host: "#e06c75", Accent: "#61afef"},
	{Name: "monokai", Display: "Monokai", Bg: "#272822", Panel: "#3e3d32", Env: "#a6e22e", Host: "#f92672", Accent: "#e6db74"},
	{Name: "nord", Display: "Nord", Bg: "#2e3440", Panel: "#3b4252", Env: "#a3be8c", Host: "#bf616a", Accent: "#88c0d0"},
	{Name: "gruvbox", Display: "Gruvbox", Bg: "#282828", Panel: "#3c3836", Env: "#b8bb26", Host: "#fb4934", Accent: "#fabd2f"},
	{Name: "solarized", Display: "Solarized Dark", Bg: "#002b36", Panel: "#073642", Env: "#859900", Host: "#dc322f", Accent: "#268bd2"},
	{Name: "tokyonight", Display: "Tokyo Night", Bg: "#1a1b26", Panel: "#24283b", Env: "#9ece6a", Host: "#f7768e", Accent: "#7aa2f7"},
	{Name: "catppuccin", Display: "Catppuccin", Bg: "#1e1e2e", Panel: "#313244", Env: "#a6e3a1", Host: "#f38ba8", Accent: "#cba6f7"},
}

// Themes returns the built-in palettes in menu order.
func Themes() []Theme {
	out := make([]Theme, len(themeCatalog))
	copy(out, themeCatalog)
	for i := range out {
		out[i].Enabled = terminalSupportsColor()
	}
	return out
}

// ThemeByName returns the named theme, falling back to the default palette
// for unknown names.
func ThemeByName(name string) Theme {
	name = strings.ToLower(strings.TrimSpace(name))
	for _, t := range themeCatalog {
		if t.Name == name {
			t.Enabled = terminalSupportsColor()
			return t
		}
	}
	return DefaultTheme()
}

// DefaultTheme returns the "viper" palette.
func DefaultTheme() Theme {
	t := themeCatalog[0]
	t.Enabled = terminalSupportsColor()
	return t
}

// LoadTheme resolves the active theme: explicit name, then VIPERSSH_THEME,
// then the persisted selection, then the default.
func LoadTheme(explicitName string) Theme {
	if n := strings.TrimSpace(explicitName); n != "" {
		return ThemeByName(n)
	}
	if n := strings.TrimSpace(os.Getenv("VIPERSSH_THEME")); n != "" {
		return ThemeByName(n)
	}
	if dir, err := DefaultConfigDir(); err == nil {
		if data, err := os.ReadFile(filepath.Join(dir, themeFilename)); err == nil {
			if n := strings.TrimSpace(string(data)); n != "" {
				return ThemeByName(n)
			}
		}
	}
	return DefaultTheme()
}

// SaveThemeName persists the selected theme name under the config dir.
func SaveThemeName(name string) error {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		return fmt.Errorf("empty theme name")
	}
	dir, err := DefaultConfigDir()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(dir, themeFilename), []byte(name+"\n"), 0o600)
}

// ---------- Style hooks for the TUI ----------

func (t Theme) EnvPanelStyle() lipgloss.Style {
	if !t.Enabled {
		return lipgloss.NewStyle().Border(lipgloss.ThickBorder()).Padding(0, 1)
	}
	return lipgloss.NewStyle().
		Border(lipgloss.ThickBorder()).
		BorderForeground(t.Env).
		Background(t.Panel).
		Padding(0, 1)
}

func (t Theme) HostPanelStyle() lipgloss.Style {
	if !t.Enabled {
		return lipgloss.NewStyle().Border(lipgloss.ThickBorder()).Padding(0, 1)
	}
	return lipgloss.NewStyle().
		Border(lipgloss.ThickBorder()).
		BorderForeground(t.Host).
		Background(t.Panel).
		Padding(0, 1)
}

func (t Theme) EnvTitle(s string) string {
	if !t.Enabled {
		return s
	}
	return lipgloss.NewStyle().Bold(true).Foreground(t.Env).Render(s)
}

func (t Theme) HostTitle(s string) string {
	if !t.Enabled {
		return s
	}
	return lipgloss.NewStyle().Bold(true).Foreground(t.Host).Render(s)
}

func (t Theme) AccentText(s string) string {
	if !t.Enabled {
		return s
	}
	return lipgloss.NewStyle().Bold(true).Foreground(t.Accent).Render(s)
}

func (t Theme) DimText(s string) string {
	if !t.Enabled {
		return s
	}
	return lipgloss.NewStyle().Faint(true).Render(s)
}

// SelectedLine renders a highlighted list row ("> name") or a plain one.
func (t Theme) SelectedLine(selected bool, s string) string {
	if !selected {
		return "  " + s
	}
	if !t.Enabled {
		return "> " + s
	}
	return lipgloss.NewStyle().Bold(true).Foreground(t.Accent).Render("> " + s)
}

// ActiveMark renders the "current theme" bullet in the theme picker.
func (t Theme) ActiveMark(on bool) string {
	if !on {
		return "  "
	}
	if !t.Enabled {
		return "* "
	}
	return lipgloss.NewStyle().Bold(true).Foreground(t.Env).Render("● ")
}

func terminalSupportsColor() bool {
	// Respect NO_COLOR https://no-color.org/
	if _, ok := os.LookupEnv("NO_COLOR"); ok {
		return false
	}
	term := strings.ToLower(strings.TrimSpace(os.Getenv("TERM")))
	if term == "" || term == "dumb" {
		return false
	}
	return true
}
