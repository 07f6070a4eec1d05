package launcher

import (
	"strings"
	"testing"
	"unicode/utf8"

	tea "github.com/charmbracelet/bubbletea"
)

func testConfig() *Config {
	return &Config{
		Environments: []Environment{
			{
				Name:   "production",
				Suffix: ".prod.example.com",
				Hosts: []HostEntry{
					{Display: "web1", Target: "web1"},
					{Display: "web2", Target: "web2"},
					{Display: "db primary", Target: "db1"},
				},
			},
			{
				Name:   "staging",
				Suffix: ".stage.example.com",
				Hosts: []HostEntry{
					{Display: "web1", Target: "web1"},
				},
			},
		},
	}
}

func keyMsg(s string) tea.KeyMsg {
	switch s {
	case "enter":
		return tea.KeyMsg{Type: tea.KeyEnter}
	case "tab":
		return tea.KeyMsg{Type: tea.KeyTab}
	case "esc":
		return tea.KeyMsg{Type: tea.KeyEsc}
	default:
		return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
	}
}

func press(t *testing.T, m model, keys ...string) model {
	t.Helper()
	var tm tea.Model = m
	for _, k := range keys {
		tm, _ = tm.(model).Update(keyMsg(k))
	}
	return tm.(model)
}

func TestModelEnterPicksSSHTarget(t *testing.T) {
	m := newModel(testConfig(), UIOptions{})
	m = press(t, m, "j", "j", "enter")

	if m.result == nil {
		t.Fatal("no result after enter")
	}
	if m.result.Target != "db1.prod.example.com" || m.result.Proto != ProtoSSH {
		t.Fatalf("result = %+v", m.result)
	}
}

func TestModelSPicksSFTP(t *testing.T) {
	m := newModel(testConfig(), UIOptions{})
	m = press(t, m, "s")

	if m.result == nil || m.result.Proto != ProtoSFTP {
		t.Fatalf("result = %+v", m.result)
	}
	if m.result.Target != "web1.prod.example.com" {
		t.Fatalf("target = %q", m.result.Target)
	}
}

func TestModelTabSwitchesEnvironment(t *testing.T) {
	m := newModel(testConfig(), UIOptions{})
	m = press(t, m, "tab", "j", "enter")

	// enter on the env panel moves focus to hosts, not out of the picker.
	if m.result != nil {
		t.Fatalf("unexpected result %+v", m.result)
	}
	if m.envIdx != 1 || m.focus != focusHosts {
		t.Fatalf("envIdx=%d focus=%v", m.envIdx, m.focus)
	}

	m = press(t, m, "enter")
	if m.result == nil || m.result.Target != "web1.stage.example.com" {
		t.Fatalf("result = %+v", m.result)
	}
}

func TestModelSearchFiltersAndConnects(t *testing.T) {
	m := newModel(testConfig(), UIOptions{})
	m = press(t, m, "/", "d", "b", "enter")

	if m.result == nil {
		t.Fatal("no result")
	}
	if m.result.Target != "db1.prod.example.com" {
		t.Fatalf("target = %q", m.result.Target)
	}
}

func TestModelEscStepsBackBeforeQuitting(t *testing.T) {
	m := newModel(testConfig(), UIOptions{InitialQuery: "web"})
	if len(m.filtered) != 2 {
		t.Fatalf("initial filter = %d, want 2", len(m.filtered))
	}

	m = press(t, m, "esc")
	if m.quitting {
		t.Fatal("first esc should clear the query, not quit")
	}
	if len(m.filtered) != 3 {
		t.Fatalf("filter after clear = %d, want 3", len(m.filtered))
	}

	// From the hosts panel, esc backs out to the environments panel.
	m = press(t, m, "esc")
	if m.quitting {
		t.Fatal("esc on the hosts panel must not quit")
	}
	if m.focus != focusEnvs {
		t.Fatalf("focus = %v, want focusEnvs", m.focus)
	}

	// Only from the environments panel does esc leave the picker.
	m = press(t, m, "esc")
	if !m.quitting || m.result != nil {
		t.Fatalf("final esc should quit with no result; quitting=%v result=%+v", m.quitting, m.result)
	}
}

func TestModelRightSelectsHost(t *testing.T) {
	m := newModel(testConfig(), UIOptions{})
	m = press(t, m, "j", "l")

	if m.result == nil || m.result.Target != "web2.prod.example.com" || m.result.Proto != ProtoSSH {
		t.Fatalf("result = %+v", m.result)
	}
}

func TestModelCellTruncatesOnRunes(t *testing.T) {
	cfg := &Config{
		Environments: []Environment{
			{
				Name: "lab",
				Hosts: []HostEntry{
					{Display: "データベースサーバー一号機", Target: "db01.lab"},
				},
			},
		},
	}
	m := newModel(cfg, UIOptions{})

	got := m.cell(0, 8)
	if !utf8.ValidString(got) {
		t.Fatalf("cell output is not valid UTF-8: %q", got)
	}
	if strings.ContainsRune(got, utf8.RuneError) {
		t.Fatalf("cell output contains a replacement rune: %q", got)
	}
	if !strings.Contains(got, "…") {
		t.Fatalf("long alias should be truncated with an ellipsis: %q", got)
	}
}

func TestModelHistoryOverlayReconnect(t *testing.T) {
	hist := &History{}
	hist.Add("old01.prod.example.com", "sftp")
	m := newModel(testConfig(), UIOptions{History: hist})

	m = press(t, m, "r")
	if !m.showHistory {
		t.Fatal("history overlay should open")
	}
	m = press(t, m, "enter")
	if m.result == nil || m.result.Target != "old01.prod.example.com" || m.result.Proto != ProtoSFTP {
		t.Fatalf("result = %+v", m.result)
	}
}

func TestModelThemeOverlaySelection(t *testing.T) {
	m := newModel(testConfig(), UIOptions{Theme: DefaultTheme()})
	t.Setenv("VIPERSSH_CONFIG", t.TempDir())

	m = press(t, m, "t")
	if !m.showThemes {
		t.Fatal("theme overlay should open")
	}
	m = press(t, m, "j", "enter")
	if m.showThemes {
		t.Fatal("overlay should close on enter")
	}
	if m.theme.Name != Themes()[1].Name {
		t.Fatalf("theme = %q, want %q", m.theme.Name, Themes()[1].Name)
	}
}

func TestModelHelpOverlaySwallowsKeys(t *testing.T) {
	m := newModel(testConfig(), UIOptions{})
	m = press(t, m, "?")
	if !m.showHelp {
		t.Fatal("help should open")
	}
	// q inside the overlay closes it instead of quitting the picker.
	m = press(t, m, "q")
	if m.showHelp || m.quitting {
		t.Fatalf("showHelp=%v quitting=%v", m.showHelp, m.quitting)
	}
}
