package ui

import "github.com/charmbracelet/bubbles/key"

// keyMap defines the [key.Binding] mapping for the TUI.
type keyMap struct {
	next   key.Binding
	submit key.Binding
	up     key.Binding
	down   key.Binding
	review key.Binding
	back   key.Binding
	quit   key.Binding
	exit   key.Binding
}

func newKeyMap() keyMap {
	return keyMap{
		next:   key.NewBinding(key.WithKeys("tab", "shift+tab"), key.WithHelp("tab", "next field")),
		submit: key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "open")),
		up:     key.NewBinding(key.WithKeys("up", "k"), key.WithHelp("↑/k", "up")),
		down:   key.NewBinding(key.WithKeys("down", "j"), key.WithHelp("↓/j", "down")),
		review: key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "review")),
		back:   key.NewBinding(key.WithKeys("esc"), key.WithHelp("esc", "close")),
		quit:   key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
		exit:   key.NewBinding(key.WithKeys("ctrl+c"), key.WithHelp("ctrl+c", "quit")),
	}
}

func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.quit}
}

func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.next, k.submit},
		{k.up, k.down, k.review},
		{k.back, k.quit},
	}
}
