// Package tui provides the interactive check selector shown by `kpimon run`
// when neither a mode nor a check list was given on a terminal.
package tui

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/dreschagin/dlp-kpi-monitor/internal/application/dto"
	"github.com/dreschagin/dlp-kpi-monitor/internal/domain/valueobject"
)

// ErrCancelled is returned when the user leaves the menu without choosing.
var ErrCancelled = errors.New("selection cancelled")

// Selection is what the menu hands back to the run command.
type Selection struct {
	Mode   string
	Checks []string
}

type screen int

const (
	modeScreen screen = iota
	checkScreen
)

// KeyMap defines keybindings
type KeyMap struct {
	Up     key.Binding
	Down   key.Binding
	Toggle key.Binding
	Enter  key.Binding
	Back   key.Binding
	Quit   key.Binding
}

// DefaultKeyMap returns the default keybindings
func DefaultKeyMap() KeyMap {
	return KeyMap{
		Up: key.NewBinding(
			key.WithKeys("up", "k"),
			key.WithHelp("↑/k", "up"),
		),
		Down: key.NewBinding(
			key.WithKeys("down", "j"),
			key.WithHelp("↓/j", "down"),
		),
		Toggle: key.NewBinding(
			key.WithKeys(" ", "x"),
			key.WithHelp("space", "toggle"),
		),
		Enter: key.NewBinding(
			key.WithKeys("enter"),
			key.WithHelp("enter", "run"),
		),
		Back: key.NewBinding(
			key.WithKeys("esc", "backspace"),
			key.WithHelp("esc", "back"),
		),
		Quit: key.NewBinding(
			key.WithKeys("q", "ctrl+c"),
			key.WithHelp("q", "quit"),
		),
	}
}

var (
	titleStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	cursorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("10")).Bold(true)
	dimStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	helpStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	errorStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	selectedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
)

type modeItem struct {
	mode   valueobject.MonitoringMode
	checks []string
}

// Model is the bubbletea model of the selector.
type Model struct {
	keys   KeyMap
	screen screen

	modes      []modeItem
	modeCursor int

	checks      []*dto.CheckInfoDTO
	checkCursor int
	picked      map[string]bool

	message   string
	done      bool
	cancelled bool
}

// New builds the selector from the catalog description. Modes are listed in
// their fixed order followed by "custom".
func New(checks []*dto.CheckInfoDTO) Model {
	byMode := make(map[string][]string)
	for _, c := range checks {
		for _, m := range c.Modes {
			byMode[m] = append(byMode[m], c.Name)
		}
	}

	modes := make([]modeItem, 0, len(valueobject.PredefinedModes())+1)
	for _, m := range valueobject.PredefinedModes() {
		item := modeItem{mode: m, checks: byMode[m.String()]}
		if len(item.checks) == 0 {
			continue
		}
		modes = append(modes, item)
	}
	modes = append(modes, modeItem{mode: valueobject.ModeCustom})

	return Model{
		keys:   DefaultKeyMap(),
		modes:  modes,
		checks: checks,
		picked: make(map[string]bool),
	}
}

// Init initializes the model.
func (m Model) Init() tea.Cmd {
	return nil
}

// Update handles key presses.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	keyMsg, ok := msg.(tea.KeyMsg)
	if !ok {
		return m, nil
	}
	m.message = ""

	if key.Matches(keyMsg, m.keys.Quit) {
		m.cancelled = true
		return m, tea.Quit
	}

	switch m.screen {
	case modeScreen:
		return m.updateModes(keyMsg)
	default:
		return m.updateChecks(keyMsg)
	}
}

func (m Model) updateModes(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Up):
		if m.modeCursor > 0 {
			m.modeCursor--
		}
	case key.Matches(msg, m.keys.Down):
		if m.modeCursor < len(m.modes)-1 {
			m.modeCursor++
		}
	case key.Matches(msg, m.keys.Enter):
		if m.modes[m.modeCursor].mode == valueobject.ModeCustom {
			m.screen = checkScreen
			return m, nil
		}
		m.done = true
		return m, tea.Quit
	case key.Matches(msg, m.keys.Back):
		m.cancelled = true
		return m, tea.Quit
	}
	return m, nil
}

func (m Model) updateChecks(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Up):
		if m.checkCursor > 0 {
			m.checkCursor--
		}
	case key.Matches(msg, m.keys.Down):
		if m.checkCursor < len(m.checks)-1 {
			m.checkCursor++
		}
	case key.Matches(msg, m.keys.Toggle):
		if len(m.checks) > 0 {
			name := m.checks[m.checkCursor].Name
			m.picked[name] = !m.picked[name]
		}
	case key.Matches(msg, m.keys.Enter):
		if len(m.pickedChecks()) == 0 {
			m.message = "select at least one check"
			return m, nil
		}
		m.done = true
		return m, tea.Quit
	case key.Matches(msg, m.keys.Back):
		m.screen = modeScreen
	}
	return m, nil
}

// pickedChecks keeps catalog order regardless of toggle order.
func (m Model) pickedChecks() []string {
	var out []string
	for _, c := range m.checks {
		if m.picked[c.Name] {
			out = append(out, c.Name)
		}
	}
	return out
}

// View renders the current screen.
func (m Model) View() string {
	var b strings.Builder
	switch m.screen {
	case modeScreen:
		b.WriteString(titleStyle.Render("Select monitoring mode") + "\n\n")
		for i, item := range m.modes {
			line := item.mode.String()
			if item.mode == valueobject.ModeCustom {
				line += dimStyle.Render("  pick checks manually")
			} else {
				line += dimStyle.Render(fmt.Sprintf("  %d checks", len(item.checks)))
			}
			b.WriteString(m.row(i == m.modeCursor, line))
		}
		b.WriteString("\n" + helpStyle.Render("↑/↓ move · enter select · q quit"))
	case checkScreen:
		b.WriteString(titleStyle.Render("Select checks") + "\n\n")
		for i, c := range m.checks {
			box := "[ ]"
			if m.picked[c.Name] {
				box = selectedStyle.Render("[x]")
			}
			line := fmt.Sprintf("%s %s%s", box, c.Name, dimStyle.Render(fmt.Sprintf("  %s %s %g %s", c.Threshold, directionSign(c.Direction), c.Limit, c.Unit)))
			b.WriteString(m.row(i == m.checkCursor, line))
		}
		b.WriteString("\n" + helpStyle.Render("space toggle · enter run · esc back · q quit"))
	}
	if m.message != "" {
		b.WriteString("\n" + errorStyle.Render(m.message))
	}
	return b.String() + "\n"
}

func (m Model) row(active bool, line string) string {
	if active {
		return cursorStyle.Render("> ") + line + "\n"
	}
	return "  " + line + "\n"
}

func directionSign(direction string) string {
	if direction == valueobject.GreaterThanIsGood.String() {
		return ">"
	}
	return "<"
}

// Selection returns the final choice once the program has exited.
func (m Model) Selection() (Selection, error) {
	if m.cancelled || !m.done {
		return Selection{}, ErrCancelled
	}
	if m.screen == checkScreen {
		return Selection{Mode: valueobject.ModeCustom.String(), Checks: m.pickedChecks()}, nil
	}
	item := m.modes[m.modeCursor]
	return Selection{Mode: item.mode.String()}, nil
}

// Run shows the selector on the given terminal streams.
func Run(ctx context.Context, checks []*dto.CheckInfoDTO, in io.Reader, out io.Writer) (Selection, error) {
	p := tea.NewProgram(New(checks), tea.WithContext(ctx), tea.WithInput(in), tea.WithOutput(out))
	final, err := p.Run()
	if err != nil {
		return Selection{}, fmt.Errorf("check selector: %w", err)
	}
	model, ok := final.(Model)
	if !ok {
		return Selection{}, fmt.Errorf("check selector: unexpected model %T", final)
	}
	return model.Selection()
}
