package tui

import (
	"github.com/charmbracelet/bubbles/key"
)

// keyMap maps the keyboard onto the module's encoder and two buttons.
type keyMap struct {
	Prev     key.Binding
	Next     key.Binding
	PrevFast key.Binding
	NextFast key.Binding
	Confirm  key.Binding
	Back     key.Binding
	Quit     key.Binding
}

// fastStep is the encoder delta of a page key.
const fastStep = 5

func newKeyMap() keyMap {
	return keyMap{
		Prev:     key.NewBinding(key.WithKeys("up", "left", "k", "h"), key.WithHelp("↑/←", "turn left")),
		Next:     key.NewBinding(key.WithKeys("down", "right", "j", "l"), key.WithHelp("↓/→", "turn right")),
		PrevFast: key.NewBinding(key.WithKeys("pgup"), key.WithHelp("pgup", "-5")),
		NextFast: key.NewBinding(key.WithKeys("pgdown"), key.WithHelp("pgdn", "+5")),
		Confirm:  key.NewBinding(key.WithKeys("enter", " ", "space"), key.WithHelp("enter", "select")),
		Back:     key.NewBinding(key.WithKeys("esc", "backspace"), key.WithHelp("esc", "back")),
		Quit:     key.NewBinding(key.WithKeys("ctrl+c", "q"), key.WithHelp("q", "quit")),
	}
}

func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Prev, k.Next, k.Confirm, k.Back, k.Quit}
}

func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Prev, k.Next, k.PrevFast, k.NextFast},
		{k.Confirm, k.Back, k.Quit},
	}
}
