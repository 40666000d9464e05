package dashboard

import "github.com/charmbracelet/bubbles/key"

// listKeys holds key bindings for list mode.
type listKeys struct {
	Up       key.Binding
	Down     key.Binding
	Nodes    key.Binding
	Links    key.Binding
	Locate   key.Binding
	Map      key.Binding
	Tab      key.Binding
	Simulate key.Binding
	Quit     key.Binding
}

// ShortHelp returns the list mode bindings for the help bar.
func (k listKeys) ShortHelp() []key.Binding {
	return []key.Binding{k.Up, k.Down, k.Nodes, k.Links, k.Locate, k.Map, k.Tab, k.Simulate, k.Quit}
}

// FullHelp returns the list mode bindings grouped for expanded help.
func (k listKeys) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Up, k.Down, k.Locate},
		{k.Nodes, k.Links, k.Map},
		{k.Tab, k.Simulate, k.Quit},
	}
}

// mapKeys holds key bindings for map mode.
type mapKeys struct {
	Up       key.Binding
	Down     key.Binding
	Left     key.Binding
	Right    key.Binding
	Inspect  key.Binding
	List     key.Binding
	Tab      key.Binding
	Simulate key.Binding
	Quit     key.Binding
}

// ShortHelp returns the map mode bindings for the help bar.
func (k mapKeys) ShortHelp() []key.Binding {
	return []key.Binding{k.Up, k.Down, k.Left, k.Right, k.Inspect, k.List, k.Simulate, k.Quit}
}

// FullHelp returns the map mode bindings grouped for expanded help.
func (k mapKeys) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Up, k.Down, k.Left, k.Right},
		{k.Inspect, k.List, k.Tab},
		{k.Simulate, k.Quit},
	}
}

// ListKeyMap returns the key bindings for list mode.
func ListKeyMap() listKeys {
	return listKeys{
		Up: key.NewBinding(
			key.WithKeys("up", "k"),
			key.WithHelp("↑/k", "up"),
		),
		Down: key.NewBinding(
			key.WithKeys("down", "j"),
			key.WithHelp("↓/j", "down"),
		),
		Nodes: key.NewBinding(
			key.WithKeys("n"),
			key.WithHelp("n", "nodes"),
		),
		Links: key.NewBinding(
			key.WithKeys("l"),
			key.WithHelp("l", "links"),
		),
		Locate: key.NewBinding(
			key.WithKeys("enter"),
			key.WithHelp("enter", "show on map"),
		),
		Map: key.NewBinding(
			key.WithKeys("m"),
			key.WithHelp("m", "map"),
		),
		Tab: key.NewBinding(
			key.WithKeys("tab"),
			key.WithHelp("tab", "switch pane"),
		),
		Simulate: key.NewBinding(
			key.WithKeys("r"),
			key.WithHelp("r", "simulate"),
		),
		Quit: key.NewBinding(
			key.WithKeys("q", "ctrl+c"),
			key.WithHelp("q", "quit"),
		),
	}
}

// MapKeyMap returns the key bindings for map mode.
func MapKeyMap() mapKeys {
	return mapKeys{
		Up: key.NewBinding(
			key.WithKeys("up", "k"),
			key.WithHelp("↑/k", "up"),
		),
		Down: key.NewBinding(
			key.WithKeys("down", "j"),
			key.WithHelp("↓/j", "down"),
		),
		Left: key.NewBinding(
			key.WithKeys("left", "h"),
			key.WithHelp("←/h", "left"),
		),
		Right: key.NewBinding(
			key.WithKeys("right"),
			key.WithHelp("→", "right"),
		),
		Inspect: key.NewBinding(
			key.WithKeys("enter"),
			key.WithHelp("enter", "inspect"),
		),
		List: key.NewBinding(
			key.WithKeys("m"),
			key.WithHelp("m", "list"),
		),
		Tab: key.NewBinding(
			key.WithKeys("tab"),
			key.WithHelp("tab", "switch pane"),
		),
		Simulate: key.NewBinding(
			key.WithKeys("r"),
			key.WithHelp("r", "simulate"),
		),
		Quit: key.NewBinding(
			key.WithKeys("q", "ctrl+c"),
			key.WithHelp("q", "quit"),
		),
	}
}
