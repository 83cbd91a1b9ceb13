package tui

import "github.com/charmbracelet/bubbles/key"

// KeyMap defines the ledger browser shortcuts.
type KeyMap struct {
	NextPage key.Binding
	PrevPage key.Binding
	Filter   key.Binding
	Clear    key.Binding
	Delete   key.Binding
	Refresh  key.Binding
	Quit     key.Binding

	// Filter form
	NextField key.Binding
	Submit    key.Binding
	Cancel    key.Binding
}

// DefaultKeyMap returns the default key bindings.
func DefaultKeyMap() KeyMap {
	return KeyMap{
		NextPage: key.NewBinding(
			key.WithKeys("n", "right"),
			key.WithHelp("n", "próxima página"),
		),
		PrevPage: key.NewBinding(
			key.WithKeys("p", "left"),
			key.WithHelp("p", "página anterior"),
		),
		Filter: key.NewBinding(
			key.WithKeys("/"),
			key.WithHelp("/", "filtrar"),
		),
		Clear: key.NewBinding(
			key.WithKeys("c"),
			key.WithHelp("c", "limpar filtros"),
		),
		Delete: key.NewBinding(
			key.WithKeys("d"),
			key.WithHelp("d", "excluir"),
		),
		Refresh: key.NewBinding(
			key.WithKeys("r"),
			key.WithHelp("r", "recarregar"),
		),
		Quit: key.NewBinding(
			key.WithKeys("q", "ctrl+c"),
			key.WithHelp("q", "sair"),
		),
		NextField: key.NewBinding(
			key.WithKeys("tab", "shift+tab"),
			key.WithHelp("tab", "próximo campo"),
		),
		Submit: key.NewBinding(
			key.WithKeys("enter"),
			key.WithHelp("enter", "aplicar"),
		),
		Cancel: key.NewBinding(
			key.WithKeys("esc"),
			key.WithHelp("esc", "cancelar"),
		),
	}
}

func (k KeyMap) browseHelp() []key.Binding {
	return []key.Binding{k.NextPage, k.PrevPage, k.Filter, k.Clear, k.Delete, k.Refresh, k.Quit}
}

func (k KeyMap) filterHelp() []key.Binding {
	return []key.Binding{k.NextField, k.Submit, k.Cancel}
}
