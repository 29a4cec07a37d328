package chat

import "github.com/charmbracelet/bubbles/key"

type keyMap struct {
	Send      key.Binding
	Scroll    key.Binding
	ToggleLog key.Binding
	Reconnect key.Binding
	Quit      key.Binding
	Accept    key.Binding
	Dismiss   key.Binding
}

func newKeyMap() keyMap {
	return keyMap{
		Send: key.NewBinding(
			key.WithKeys("enter"),
			key.WithHelp("enter", "send"),
		),
		Scroll: key.NewBinding(
			key.WithKeys("pgup", "pgdown"),
			key.WithHelp("pgup/pgdn", "scroll"),
		),
		ToggleLog: key.NewBinding(
			key.WithKeys("ctrl+l"),
			key.WithHelp("ctrl+l", "logs"),
		),
		Reconnect: key.NewBinding(
			key.WithKeys("ctrl+r"),
			key.WithHelp("ctrl+r", "reconnect"),
		),
		Quit: key.NewBinding(
			key.WithKeys("ctrl+c"),
			key.WithHelp("ctrl+c", "quit"),
		),
		Accept: key.NewBinding(
			key.WithKeys("enter", "y"),
			key.WithHelp("enter/y", "ok"),
		),
		Dismiss: key.NewBinding(
			key.WithKeys("esc", "n"),
			key.WithHelp("esc/n", "cancel"),
		),
	}
}

func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Send, k.Scroll, k.ToggleLog, k.Reconnect, k.Quit}
}

func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Send, k.Scroll},
		{k.ToggleLog, k.Reconnect, k.Quit},
	}
}

// modalHelp is shown while a notification waits for an answer.
type modalHelp struct {
	keys    keyMap
	confirm bool
}

func (h modalHelp) ShortHelp() []key.Binding {
	if h.confirm {
		return []key.Binding{h.keys.Accept, h.keys.Dismiss}
	}
	return []key.Binding{h.keys.Accept}
}

func (h modalHelp) FullHelp() [][]key.Binding {
	return [][]key.Binding{h.ShortHelp()}
}
