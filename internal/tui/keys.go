package tui

import "github.com/charmbracelet/bubbles/key"

type keyMap struct {
	Quit     key.Binding
	NextTab  key.Binding
	PrevTab  key.Binding
	Up       key.Binding
	Down     key.Binding
	Select   key.Binding
	Refresh  key.Binding
	Dismiss  key.Binding
	Start    key.Binding
	Undo     key.Binding
	TurnOn   key.Binding
	Reject   key.Binding
	Close    key.Binding
	Force    key.Binding
	ShowHelp key.Binding
}

func defaultKeys() keyMap {
	return keyMap{
		Quit:     key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
		NextTab:  key.NewBinding(key.WithKeys("tab", "l"), key.WithHelp("tab", "next tab")),
		PrevTab:  key.NewBinding(key.WithKeys("shift+tab", "h"), key.WithHelp("shift+tab", "prev tab")),
		Up:       key.NewBinding(key.WithKeys("up", "k"), key.WithHelp("↑/k", "up")),
		Down:     key.NewBinding(key.WithKeys("down", "j"), key.WithHelp("↓/j", "down")),
		Select:   key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "select")),
		Refresh:  key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "refresh")),
		Dismiss:  key.NewBinding(key.WithKeys("x"), key.WithHelp("x", "dismiss")),
		Start:    key.NewBinding(key.WithKeys("s"), key.WithHelp("s", "start round")),
		Undo:     key.NewBinding(key.WithKeys("u"), key.WithHelp("u", "undo start")),
		TurnOn:   key.NewBinding(key.WithKeys("t"), key.WithHelp("t", "turn on accounts")),
		Reject:   key.NewBinding(key.WithKeys("d"), key.WithHelp("d", "reject")),
		Close:    key.NewBinding(key.WithKeys("esc"), key.WithHelp("esc", "close")),
		Force:    key.NewBinding(key.WithKeys("F"), key.WithHelp("F", "go anyway")),
		ShowHelp: key.NewBinding(key.WithKeys("?"), key.WithHelp("?", "help")),
	}
}

// tabKeys returns the bindings shown in the footer for a tab.
func (k keyMap) tabKeys(t tab) []key.Binding {
	common := []key.Binding{k.NextTab, k.Refresh, k.Dismiss, k.Quit}
	switch t {
	case tabSetup:
		return append([]key.Binding{k.Up, k.Down, k.Select, k.Force}, common...)
	case tabRounds:
		return append([]key.Binding{k.Start, k.Undo}, common...)
	case tabLogin:
		return append([]key.Binding{k.TurnOn, k.Up, k.Down, k.Select, k.Reject}, common...)
	default:
		return common
	}
}

// ShortHelp and FullHelp let help.Model render the current tab.
type tabHelp struct {
	keys keyMap
	tab  tab
}

func (h tabHelp) ShortHelp() []key.Binding { return h.keys.tabKeys(h.tab) }

func (h tabHelp) FullHelp() [][]key.Binding {
	return [][]key.Binding{h.keys.tabKeys(h.tab), {h.keys.PrevTab, h.keys.ShowHelp, h.keys.Close}}
}
