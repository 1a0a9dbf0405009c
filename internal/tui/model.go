// Package tui is the terminal face of the settings screen: it turns key
// presses into encoder and button input for the menu controller and draws
// every render request.
package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/icco/urack/internal/config"
	"github.com/icco/urack/internal/menu"
	"github.com/icco/urack/internal/midi"
	"github.com/icco/urack/internal/processor"
	"github.com/icco/urack/internal/transport"
	"github.com/sirupsen/logrus"
)

// TickInterval is how often learn capture runs without input.
const TickInterval = 50 * time.Millisecond

// Gate is the transport state shown on the Bluetooth and USB pages.
type Gate interface {
	menu.Transports
	IsEnabled(k transport.Kind) bool
	IsConnected(k transport.Kind) bool
}

// Outputs reports live output values.
type Outputs interface {
	Snapshot() []processor.Output
}

// Stats reports router traffic per transport.
type Stats interface {
	Stats(src transport.Kind) midi.Stats
}

// tickMsg drives learn capture between key presses.
type tickMsg time.Time

// Styles
var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4")).
			Padding(0, 1)

	pageStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#888888")).
			Padding(0, 1)

	currentPageStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("#7D56F4")).
				Bold(true).
				Padding(0, 1)

	focusPageStyle = currentPageStyle.
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4"))

	labelStyle = lipgloss.NewStyle().
			Width(10)

	fieldStyle = lipgloss.NewStyle().
			Width(7)

	selectedStyle = fieldStyle.
			Foreground(lipgloss.Color("#7D56F4")).
			Bold(true)

	editStyle = fieldStyle.
			Foreground(lipgloss.Color("#000000")).
			Background(lipgloss.Color("#FFD700")).
			Bold(true)

	valueStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#00FF00"))

	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#626262"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF0000")).
			Bold(true)
)

// Model is the bubbletea model of the settings screen.
type Model struct {
	ctrl    *menu.Controller
	store   menu.Store
	gate    Gate
	outputs Outputs
	stats   Stats

	render   menu.Render
	snapshot []processor.Output
	keys     keyMap
	help     help.Model
	width    int
	quitting bool
}

// New builds the screen. outputs and stats may be nil.
func New(store menu.Store, gate Gate, sampler menu.Sampler, outputs Outputs, stats Stats, log logrus.FieldLogger) *Model {
	m := &Model{
		store:   store,
		gate:    gate,
		outputs: outputs,
		stats:   stats,
		keys:    newKeyMap(),
		help:    help.New(),
	}
	m.ctrl = menu.New(store, gate, sampler, m, log)
	m.render = m.ctrl.Enter()
	return m
}

// Escape leaves the screen; it is called by the controller on back at the
// outermost level.
func (m *Model) Escape() {
	m.quitting = true
}

func tick() tea.Cmd {
	return tea.Tick(TickInterval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m *Model) Init() tea.Cmd {
	return tick()
}

func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.help.Width = msg.Width
		return m, nil

	case tickMsg:
		m.step(menu.Input{})
		return m, tick()

	case tea.KeyMsg:
		if key.Matches(msg, m.keys.Quit) {
			m.quitting = true
			return m, tea.Quit
		}
		in, ok := m.input(msg)
		if !ok {
			return m, nil
		}
		m.step(in)
		if m.quitting {
			return m, tea.Quit
		}
	}
	return m, nil
}

func (m *Model) input(msg tea.KeyMsg) (menu.Input, bool) {
	switch {
	case key.Matches(msg, m.keys.Prev):
		return menu.Input{Encoder: -1}, true
	case key.Matches(msg, m.keys.Next):
		return menu.Input{Encoder: 1}, true
	case key.Matches(msg, m.keys.PrevFast):
		return menu.Input{Encoder: -fastStep}, true
	case key.Matches(msg, m.keys.NextFast):
		return menu.Input{Encoder: fastStep}, true
	case key.Matches(msg, m.keys.Confirm):
		return menu.Input{Confirm: true}, true
	case key.Matches(msg, m.keys.Back):
		return menu.Input{Back: true}, true
	}
	return menu.Input{}, false
}

func (m *Model) step(in menu.Input) {
	m.render = m.ctrl.Update(in)
	if m.outputs != nil {
		m.snapshot = m.outputs.Snapshot()
	}
}

// Cursor exposes the controller focus.
func (m *Model) Cursor() menu.Cursor { return m.render.Cursor }

func (m *Model) View() string {
	if m.quitting {
		return ""
	}
	var b strings.Builder

	b.WriteString(titleStyle.Render("URACK MIDI Settings") + "\n\n")
	b.WriteString(m.viewPaginator() + "\n\n")

	switch m.render.Page {
	case menu.PageOutputs:
		b.WriteString(m.viewOutputs())
	case menu.PageBluetooth:
		b.WriteString(m.viewTransport(transport.BLE))
	case menu.PageUSB:
		b.WriteString(m.viewTransport(transport.USB))
	}

	b.WriteString("\n" + m.help.View(m.keys))
	return b.String()
}

func (m *Model) viewPaginator() string {
	var tabs []string
	for _, p := range menu.Pages() {
		style := pageStyle
		if p == m.render.Page {
			style = currentPageStyle
			if m.render.Paginator {
				style = focusPageStyle
			}
		}
		tabs = append(tabs, style.Render(p.String()))
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, tabs...)
}

// field renders column col of row i with the cursor applied.
func (m *Model) field(i, col int, text string) string {
	r := m.render
	if r.Paginator || r.Item != i || r.Column != col {
		return fieldStyle.Render(text)
	}
	if r.Editing {
		return editStyle.Render(text)
	}
	return selectedStyle.Render(text)
}

func (m *Model) viewOutputs() string {
	var b strings.Builder
	for i, it := range m.render.Layout {
		b.WriteString(labelStyle.Render(it.Label))
		switch it.Setting {
		case menu.SettingChannel:
			b.WriteString(m.field(i, 0, m.store.MidiChannel().String()))
		case menu.SettingClock:
			b.WriteString(m.field(i, 0, m.store.ClockMode().String()))
		case menu.SettingOutput:
			b.WriteString(m.field(i, menu.ColumnType, m.store.OutType(it.Output).String()))
			b.WriteString(m.field(i, menu.ColumnChannel, m.store.OutChannel(it.Output).String()))
			if it.Output < len(m.snapshot) {
				b.WriteString(valueStyle.Render(outputValue(m.snapshot[it.Output])))
			}
		}
		b.WriteString("\n")
	}
	if m.render.Editing {
		b.WriteString(dimStyle.Render("move a controller or the pitch wheel to learn") + "\n")
	}
	return b.String()
}

func (m *Model) viewTransport(k transport.Kind) string {
	var b strings.Builder
	on := m.store.BluetoothEnabled()
	if k == transport.USB {
		on = m.store.USBEnabled()
	}
	for i, it := range m.render.Layout {
		b.WriteString(labelStyle.Render(it.Label) + m.field(i, 0, config.OnOff(on)) + "\n")
	}

	b.WriteString("\n")
	switch {
	case on && !m.gate.IsEnabled(k):
		b.WriteString(errorStyle.Render("unavailable") + "\n")
	case k == transport.BLE && m.gate.IsConnected(k):
		b.WriteString(valueStyle.Render("● connected") + "\n")
	case m.gate.IsEnabled(k):
		b.WriteString(dimStyle.Render("○ waiting") + "\n")
	default:
		b.WriteString(dimStyle.Render("off") + "\n")
	}
	if m.stats != nil {
		st := m.stats.Stats(k)
		b.WriteString(dimStyle.Render(fmt.Sprintf("routed %d  dropped %d  invalid %d", st.Routed, st.Dropped, st.Invalid)) + "\n")
	}
	return b.String()
}

func outputValue(o processor.Output) string {
	switch o.Type {
	case config.OutNone:
		return ""
	case config.OutGate, config.OutClock:
		if o.Value > 0 {
			return "■"
		}
		return "□"
	case config.OutPitch:
		return midi.NoteName(uint8(o.Value))
	case config.OutPitchBend:
		return fmt.Sprintf("%+d", o.Value)
	}
	return fmt.Sprintf("%d", o.Value)
}
