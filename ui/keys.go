package ui

import "github.com/charmbracelet/bubbles/key"

type keyMap struct {
	Play       key.Binding
	Stop       key.Binding
	Next       key.Binding
	Previous   key.Binding
	Restart    key.Binding
	RateUp     key.Binding
	RateDown   key.Binding
	PitchUp    key.Binding
	PitchDown  key.Binding
	VolumeUp   key.Binding
	VolumeDown key.Binding
	Voice      key.Binding
	Copy       key.Binding
	Edit       key.Binding
	Reload     key.Binding
	Help       key.Binding
	Quit       key.Binding
}

func newKeyMap() keyMap {
	return keyMap{
		Play:       key.NewBinding(key.WithKeys(" "), key.WithHelp("space", "play/pause")),
		Stop:       key.NewBinding(key.WithKeys("s"), key.WithHelp("s", "stop")),
		Next:       key.NewBinding(key.WithKeys("n"), key.WithHelp("n", "next sentence")),
		Previous:   key.NewBinding(key.WithKeys("p"), key.WithHelp("p", "previous sentence")),
		Restart:    key.NewBinding(key.WithKeys("R"), key.WithHelp("R", "restart sentence")),
		RateUp:     key.NewBinding(key.WithKeys("+", "="), key.WithHelp("+", "faster")),
		RateDown:   key.NewBinding(key.WithKeys("-", "_"), key.WithHelp("-", "slower")),
		PitchUp:    key.NewBinding(key.WithKeys("]"), key.WithHelp("]", "pitch up")),
		PitchDown:  key.NewBinding(key.WithKeys("["), key.WithHelp("[", "pitch down")),
		VolumeUp:   key.NewBinding(key.WithKeys(">", "."), key.WithHelp(">", "louder")),
		VolumeDown: key.NewBinding(key.WithKeys("<", ","), key.WithHelp("<", "quieter")),
		Voice:      key.NewBinding(key.WithKeys("v"), key.WithHelp("v", "next voice")),
		Copy:       key.NewBinding(key.WithKeys("c"), key.WithHelp("c", "copy sentence")),
		Edit:       key.NewBinding(key.WithKeys("e"), key.WithHelp("e", "edit document")),
		Reload:     key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "reload")),
		Help:       key.NewBinding(key.WithKeys("?"), key.WithHelp("?", "help")),
		Quit:       key.NewBinding(key.WithKeys("q", "esc", "ctrl+c"), key.WithHelp("q", "quit")),
	}
}

// ShortHelp implements help.KeyMap.
func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Play, k.Stop, k.Next, k.Previous, k.Help, k.Quit}
}

// FullHelp implements help.KeyMap.
func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Play, k.Stop, k.Next, k.Previous, k.Restart},
		{k.RateUp, k.RateDown, k.PitchUp, k.PitchDown, k.VolumeUp, k.VolumeDown},
		{k.Voice, k.Copy, k.Edit, k.Reload, k.Help, k.Quit},
	}
}
