package launcher

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// UIOptions tunes the host picker.
type UIOptions struct {
	// InitialQuery pre-fills the search box.
	InitialQuery string

	// Theme controls all picker colors; use LoadTheme to resolve one.
	Theme Theme

	// History is shown in the history overlay and used for recents. Optional.
	History *History

	// HistoryPath is where theme/history changes made inside the picker are
	// persisted. Optional.
	HistoryPath string

	// Version is shown in the header.
	Version string
}

// RunTUI shows the environment/host picker and blocks until the user picks a
// destination or quits. A nil request with a nil error means the user backed
// out.
func RunTUI(cfg *Config, opts UIOptions) (*ConnectionRequest, error) {
	if cfg == nil {
		return nil, fmt.Errorf("nil config")
	}
	if len(cfg.Environments) == 0 {
		return nil, fmt.Errorf("no environments configured")
	}

	m := newModel(cfg, opts)
	p := tea.NewProgram(m, tea.WithAltScreen())
	final, err := p.Run()
	if err != nil {
		return nil, err
	}
	fm, ok := final.(model)
	if !ok {
		return nil, fmt.Errorf("unexpected final model %T", final)
	}
	return fm.result, nil
}

// Panel focus. Tab moves between the environment list and the host grid;
// "/" jumps into the search box.
type focusArea int

const (
	focusEnvs focusArea = iota
	focusHosts
	focusSearch
)

type model struct {
	cfg  *Config
	opts UIOptions

	input      textinput.Model
	envIdx     int
	focus      focusArea
	candidates []candidate
	filtered   []candidate
	selected   int
	scroll     int

	// overlays
	showHelp    bool
	showThemes  bool
	showHistory bool
	themeSel    int
	histSel     int

	history *History
	theme   Theme

	status      string
	statusUntil time.Time

	width    int
	height   int
	ready    bool
	quitting bool

	result *ConnectionRequest
}

func newModel(cfg *Config, opts UIOptions) model {
	ti := textinput.New()
	ti.Prompt = "/ "
	ti.Placeholder = "search..."
	ti.CharLimit = 256
	ti.Cursor.Style = ti.Cursor.Style.Bold(true)
	ti.PromptStyle = ti.PromptStyle.Bold(true)
	ti.SetValue(strings.TrimSpace(opts.InitialQuery))

	hist := opts.History
	if hist == nil {
		hist = &History{}
	}

	theme := opts.Theme
	if theme.Name == "" {
		theme = DefaultTheme()
	}

	m := model{
		cfg:     cfg,
		opts:    opts,
		input:   ti,
		focus:   focusHosts,
		history: hist,
		theme:   theme,
	}
	m.setEnvironment(0)
	if q := ti.Value(); q != "" {
		m.filtered = rankMatches(m.candidates, q)
	}
	for i, t := range Themes() {
		if t.Name == theme.Name {
			m.themeSel = i
			break
		}
	}
	return m
}

func (m *model) setEnvironment(idx int) {
	if idx < 0 {
		idx = 0
	}
	if idx >= len(m.cfg.Environments) {
		idx = len(m.cfg.Environments) - 1
	}
	m.envIdx = idx
	m.candidates = buildCandidates(&m.cfg.Environments[idx])
	m.filtered = rankMatches(m.candidates, m.input.Value())
	m.selected = 0
	m.scroll = 0
}

func (m *model) refilter() {
	m.filtered = rankMatches(m.candidates, m.input.Value())
	if m.selected >= len(m.filtered) {
		m.selected = len(m.filtered) - 1
	}
	if m.selected < 0 {
		m.selected = 0
	}
	m.scroll = 0
}

func (m *model) current() *candidate {
	if m.selected < 0 || m.selected >= len(m.filtered) {
		return nil
	}
	return &m.filtered[m.selected]
}

func (m *model) setStatus(s string, ttlMs int) {
	m.status = s
	m.statusUntil = time.Now().Add(time.Duration(ttlMs) * time.Millisecond)
}

func (m model) Init() tea.Cmd {
	return tea.Batch(tea.EnterAltScreen, textinput.Blink)
}

// pick resolves the currently selected host into a connection request and
// quits the picker.
func (m model) pick(proto string) (tea.Model, tea.Cmd) {
	sel := m.current()
	if sel == nil {
		m2 := m
		m2.setStatus("no host selected", 2000)
		return m2, nil
	}
	env := &m.cfg.Environments[m.envIdx]
	m2 := m
	m2.result = &ConnectionRequest{
		Target: env.BuildTarget(sel.Host.Target),
		Proto:  normalizeProto(proto),
	}
	m2.quitting = true
	return m2, tea.Quit
}

func (m model) quit() (tea.Model, tea.Cmd) {
	m2 := m
	m2.quitting = true
	return m2, tea.Quit
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.ready = true
		return m, nil

	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC {
			return m.quit()
		}

		// Overlays swallow keys while open.
		if m.showHelp {
			switch msg.String() {
			case "esc", "q", "?", "enter":
				m.showHelp = false
			}
			return m, nil
		}
		if m.showThemes {
			return m.updateThemeOverlay(msg)
		}
		if m.showHistory {
			return m.updateHistoryOverlay(msg)
		}

		if m.focus == focusSearch {
			return m.updateSearch(msg)
		}
		return m.updateBrowse(msg)
	}

	return m, nil
}

func (m model) updateSearch(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		m.input.SetValue("")
		m.input.Blur()
		m.focus = focusHosts
		m.refilter()
		return m, nil
	case "enter":
		if len(m.filtered) > 0 {
			return m.pick(ProtoSSH)
		}
		m.input.Blur()
		m.focus = focusHosts
		return m, nil
	case "tab", "down":
		m.input.Blur()
		m.focus = focusHosts
		return m, nil
	case "up":
		m.input.Blur()
		m.focus = focusHosts
		m.moveSelection(-1)
		return m, nil
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	m.refilter()
	return m, cmd
}

func (m model) updateBrowse(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	key := msg.String()

	switch key {
	case "q":
		return m.quit()

	case "esc":
		if m.input.Value() != "" {
			m.input.SetValue("")
			m.refilter()
			return m, nil
		}
		// Step back one level: hosts -> environments, environments -> out.
		if m.focus == focusHosts {
			m.focus = focusEnvs
			return m, nil
		}
		return m.quit()

	case "tab":
		if m.focus == focusEnvs {
			m.focus = focusHosts
		} else {
			m.focus = focusEnvs
		}
		return m, nil

	case "/":
		m.focus = focusSearch
		m.input.Focus()
		return m, textinput.Blink

	case "?":
		m.showHelp = true
		return m, nil

	case "t":
		m.showThemes = true
		return m, nil

	case "r":
		m.showHistory = true
		m.histSel = 0
		return m, nil
	}

	if m.focus == focusEnvs {
		switch key {
		case "j", "down":
			m.setEnvironment(m.envIdx + 1)
		case "k", "up":
			m.setEnvironment(m.envIdx - 1)
		case "g":
			m.setEnvironment(0)
		case "G":
			m.setEnvironment(len(m.cfg.Environments) - 1)
		case "enter", "l", "right":
			m.focus = focusHosts
		}
		return m, nil
	}

	switch key {
	case "j", "down":
		m.moveSelection(1)
	case "k", "up":
		m.moveSelection(-1)
	case "g":
		m.selected = 0
		m.scroll = 0
	case "G":
		m.selected = len(m.filtered) - 1
		if m.selected < 0 {
			m.selected = 0
		}
		m.clampScroll()
	case "h", "left":
		m.focus = focusEnvs
	case "enter", "l", "right":
		return m.pick(ProtoSSH)
	case "s":
		return m.pick(ProtoSFTP)
	}
	return m, nil
}

func (m *model) moveSelection(delta int) {
	if len(m.filtered) == 0 {
		m.selected = 0
		return
	}
	m.selected += delta
	if m.selected < 0 {
		m.selected = 0
	}
	if m.selected >= len(m.filtered) {
		m.selected = len(m.filtered) - 1
	}
	m.clampScroll()
}

// hostRows is how many rows the two-column host grid can show.
func (m *model) hostRows() int {
	rows := m.height - 10
	if rows < 4 {
		rows = 4
	}
	return rows
}

func (m *model) clampScroll() {
	rows := m.hostRows()
	row := m.selected % maxInt(1, gridRows(len(m.filtered)))
	if gridRows(len(m.filtered)) <= rows {
		m.scroll = 0
		return
	}
	if row < m.scroll {
		m.scroll = row
	}
	if row >= m.scroll+rows {
		m.scroll = row - rows + 1
	}
}

// gridRows is the row count of a mid-split two-column layout.
func gridRows(n int) int {
	return (n + 1) / 2
}

func (m model) updateThemeOverlay(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	all := Themes()
	switch msg.String() {
	case "esc", "q", "t":
		m.showThemes = false
	case "j", "down":
		if m.themeSel < len(all)-1 {
			m.themeSel++
		}
	case "k", "up":
		if m.themeSel > 0 {
			m.themeSel--
		}
	case "enter":
		m.theme = all[m.themeSel]
		m.showThemes = false
		if err := SaveThemeName(m.theme.Name); err != nil {
			m.setStatus("theme not saved: "+err.Error(), 3000)
		} else {
			m.setStatus("theme: "+m.theme.Display, 2000)
		}
	}
	return m, nil
}

func (m model) updateHistoryOverlay(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	n := len(m.history.Entries)
	switch msg.String() {
	case "esc", "q", "r":
		m.showHistory = false
	case "j", "down":
		if m.histSel < n-1 {
			m.histSel++
		}
	case "k", "up":
		if m.histSel > 0 {
			m.histSel--
		}
	case "d":
		if m.histSel >= 0 && m.histSel < n {
			m.history.Remove(m.history.Entries[m.histSel].Target)
			if m.opts.HistoryPath != "" {
				_ = SaveHistory(m.opts.HistoryPath, m.history)
			}
			if m.histSel >= len(m.history.Entries) && m.histSel > 0 {
				m.histSel--
			}
		}
	case "enter":
		if m.histSel >= 0 && m.histSel < n {
			e := m.history.Entries[m.histSel]
			m2 := m
			m2.result = &ConnectionRequest{Target: e.Target, Proto: normalizeProto(e.Proto)}
			m2.quitting = true
			return m2, tea.Quit
		}
	}
	return m, nil
}

// --- View ---

func (m model) View() string {
	if m.quitting {
		return ""
	}
	if !m.ready {
		return "viperssh: loading...\n"
	}

	if m.showHelp {
		return m.viewHelp()
	}
	if m.showThemes {
		return m.viewThemes()
	}
	if m.showHistory {
		return m.viewHistory()
	}

	var b strings.Builder

	version := strings.TrimSpace(m.opts.Version)
	header := m.theme.AccentText("VIPERSSH")
	if version != "" {
		header += " " + m.theme.DimText("v"+version)
	}
	header += m.theme.DimText("  [" + m.theme.Display + "]")
	b.WriteString(header + "\n\n")

	envPanel := m.viewEnvPanel()
	hostPanel := m.viewHostPanel()
	b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, envPanel, " ", hostPanel))
	b.WriteString("\n")

	b.WriteString(m.input.View() + "\n")

	if m.status != "" && time.Now().Before(m.statusUntil) {
		b.WriteString(m.theme.AccentText(m.status) + "\n")
	} else {
		b.WriteString(m.theme.DimText("enter ssh • s sftp • tab panels • / search • r history • t theme • ? help • q quit") + "\n")
	}
	return b.String()
}

const envPanelWidth = 24

func (m model) viewEnvPanel() string {
	var b strings.Builder
	b.WriteString(m.theme.EnvTitle("Environments") + "\n")
	for i := range m.cfg.Environments {
		env := &m.cfg.Environments[i]
		label := fmt.Sprintf("%s %-14s %3d", m.theme.ActiveMark(i == m.envIdx), DisplayName(env.Name), len(env.Hosts))
		b.WriteString(m.theme.SelectedLine(i == m.envIdx && m.focus == focusEnvs, label) + "\n")
	}
	style := m.theme.EnvPanelStyle().Width(envPanelWidth)
	if m.focus == focusEnvs {
		style = style.BorderForeground(m.theme.Accent)
	}
	return style.Render(strings.TrimRight(b.String(), "\n"))
}

func (m model) viewHostPanel() string {
	env := &m.cfg.Environments[m.envIdx]
	width := m.width - envPanelWidth - 6
	if width < 24 {
		width = 24
	}
	colWidth := (width - 4) / 2

	var b strings.Builder
	title := DisplayName(env.Name)
	if q := strings.TrimSpace(m.input.Value()); q != "" {
		title += fmt.Sprintf("  (%d/%d match %q)", len(m.filtered), len(m.candidates), q)
	}
	b.WriteString(m.theme.HostTitle(title) + "\n")

	if len(m.filtered) == 0 {
		b.WriteString(m.theme.DimText("no hosts match") + "\n")
	} else {
		rows := gridRows(len(m.filtered))
		visible := m.hostRows()
		end := m.scroll + visible
		if end > rows {
			end = rows
		}
		for row := m.scroll; row < end; row++ {
			left := m.cell(row, colWidth)
			right := m.cell(row+rows, colWidth)
			b.WriteString(left + "  " + right + "\n")
		}
		if rows > visible {
			b.WriteString(m.theme.DimText(fmt.Sprintf("… %d more", (rows-end)*2)) + "\n")
		}
	}

	style := m.theme.HostPanelStyle().Width(width)
	if m.focus == focusHosts {
		style = style.BorderForeground(m.theme.Accent)
	}
	return style.Render(strings.TrimRight(b.String(), "\n"))
}

// cell renders one grid cell; idx addresses m.filtered linearly down the left
// column then down the right.
func (m model) cell(idx, colWidth int) string {
	if idx < 0 || idx >= len(m.filtered) {
		return strings.Repeat(" ", colWidth)
	}
	name := m.filtered[idx].Host.Display
	if runes := []rune(name); len(runes) > colWidth-2 {
		name = string(runes[:colWidth-3]) + "…"
	}
	label := fmt.Sprintf("%-*s", colWidth, " "+name)
	return m.theme.SelectedLine(idx == m.selected && m.focus == focusHosts, label)
}

func (m model) viewHelp() string {
	var b strings.Builder
	b.WriteString(m.theme.AccentText("VIPERSSH — Keys") + "\n\n")
	b.WriteString("  j/k, arrows   move selection\n")
	b.WriteString("  g/G           first/last\n")
	b.WriteString("  tab, h/l      switch panel\n")
	b.WriteString("  /             search (esc clears)\n")
	b.WriteString("  enter         connect (ssh)\n")
	b.WriteString("  s             connect (sftp)\n")
	b.WriteString("  r             connection history\n")
	b.WriteString("  t             themes\n")
	b.WriteString("  q, esc        quit\n")
	b.WriteString("\n")
	b.WriteString(m.theme.DimText("Keys: Esc/q/? close") + "\n")
	return b.String()
}

func (m model) viewThemes() string {
	var b strings.Builder
	b.WriteString(m.theme.AccentText("Themes") + "\n\n")
	for i, t := range Themes() {
		label := fmt.Sprintf("%s %s", m.theme.ActiveMark(t.Name == m.theme.Name), t.Display)
		b.WriteString(m.theme.SelectedLine(i == m.themeSel, label) + "\n")
	}
	b.WriteString("\n")
	b.WriteString(m.theme.DimText("Keys: j/k move • Enter apply • Esc close") + "\n")
	return b.String()
}

func (m model) viewHistory() string {
	var b strings.Builder
	b.WriteString(m.theme.AccentText("Connection History") + "\n\n")
	if len(m.history.Entries) == 0 {
		b.WriteString(m.theme.DimText("no connections yet") + "\n")
	} else {
		now := time.Now()
		for i, e := range m.history.Entries {
			label := fmt.Sprintf("%-5s %-40s %s", e.Proto, e.Target, RelativeTime(e.TS, now))
			b.WriteString(m.theme.SelectedLine(i == m.histSel, label) + "\n")
		}
	}
	b.WriteString("\n")
	b.WriteString(m.theme.DimText("Keys: j/k move • Enter reconnect • d delete • Esc close") + "\n")
	return b.String()
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
