// Package keys contains keybinding definitions.
package keys

import "github.com/charmbracelet/bubbles/key"

// AppKeyMap holds the bindings handled by the root model.
type AppKeyMap struct {
	Send       key.Binding
	Stop       key.Binding
	Palette    key.Binding
	NewTask    key.Binding
	ScrollUp   key.Binding
	ScrollDown key.Binding
	Logs       key.Binding
	Quit       key.Binding
}

// CommonKeyMap holds bindings shared by modal components.
type CommonKeyMap struct {
	Enter  key.Binding
	Escape key.Binding
}

// ComponentKeyMap holds list navigation bindings that do not collide with typing.
type ComponentKeyMap struct {
	Next key.Binding
	Prev key.Binding
}

// App is the root model's keymap.
var App = AppKeyMap{
	Send: key.NewBinding(
		key.WithKeys("enter"),
		key.WithHelp("enter", "send"),
	),
	Stop: key.NewBinding(
		key.WithKeys("ctrl+x"),
		key.WithHelp("ctrl+x", "stop session"),
	),
	Palette: key.NewBinding(
		key.WithKeys("ctrl+k"),
		key.WithHelp("ctrl+k", "commands"),
	),
	NewTask: key.NewBinding(
		key.WithKeys("ctrl+n"),
		key.WithHelp("ctrl+n", "new task"),
	),
	ScrollUp: key.NewBinding(
		key.WithKeys("pgup"),
		key.WithHelp("pgup", "scroll up"),
	),
	ScrollDown: key.NewBinding(
		key.WithKeys("pgdown"),
		key.WithHelp("pgdn", "scroll down"),
	),
	Logs: key.NewBinding(
		key.WithKeys("ctrl+l"),
		key.WithHelp("ctrl+l", "logs"),
	),
	Quit: key.NewBinding(
		key.WithKeys("ctrl+c"),
		key.WithHelp("ctrl+c", "quit"),
	),
}

// Common bindings for modals.
var Common = CommonKeyMap{
	Enter: key.NewBinding(
		key.WithKeys("enter"),
		key.WithHelp("enter", "select"),
	),
	Escape: key.NewBinding(
		key.WithKeys("esc"),
		key.WithHelp("esc", "close"),
	),
}

// Component bindings for list navigation inside modals.
var Component = ComponentKeyMap{
	Next: key.NewBinding(
		key.WithKeys("ctrl+n"),
		key.WithHelp("ctrl+n", "next"),
	),
	Prev: key.NewBinding(
		key.WithKeys("ctrl+p"),
		key.WithHelp("ctrl+p", "previous"),
	),
}

// ShortHelp returns the bindings shown in the footer.
func (k AppKeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Send, k.Stop, k.Palette, k.Quit}
}

// FullHelp returns all app bindings grouped by row.
func (k AppKeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Send, k.Stop, k.NewTask},
		{k.Palette, k.ScrollUp, k.ScrollDown, k.Logs, k.Quit},
	}
}
