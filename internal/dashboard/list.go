package dashboard

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
)

// CursorMarker is the prefix shown on the selected row.
const CursorMarker = "▸ "

// listState manages the node and link lists and one cursor per list.
type listState struct {
	kind    ListKind
	nodes   []string
	links   []string
	cursors [2]int
}

func newListState(nodes, links []string) listState {
	return listState{
		nodes: append([]string(nil), nodes...),
		links: append([]string(nil), links...),
	}
}

func (ls listState) items() []string {
	if ls.kind == ListLinks {
		return ls.links
	}
	return ls.nodes
}

// Update processes key messages for the list.
func (ls listState) Update(msg tea.Msg) (listState, tea.Cmd) {
	key, ok := msg.(tea.KeyMsg)
	if !ok {
		return ls, nil
	}
	n := len(ls.items())
	cur := &ls.cursors[ls.kind]

	switch key.String() {
	case "up", "k":
		if n > 0 {
			*cur--
			if *cur < 0 {
				*cur = n - 1
			}
		}
	case "down", "j":
		if n > 0 {
			*cur++
			if *cur >= n {
				*cur = 0
			}
		}
	case "n":
		ls.kind = ListNodes
	case "l":
		ls.kind = ListLinks
	}
	return ls, nil
}

// SelectedID returns the ID at the cursor of the current list, or "" if
// the list is empty.
func (ls listState) SelectedID() string {
	items := ls.items()
	cur := ls.cursors[ls.kind]
	if cur < 0 || cur >= len(items) {
		return ""
	}
	return items[cur]
}

// View renders a window of the current list that keeps the cursor visible.
func (ls listState) View(height int) string {
	items := ls.items()
	title := headerText.Render(fmt.Sprintf("%s (%d)", ls.kind, len(items)))
	if len(items) == 0 {
		return title + "\n" + mutedText.Render("none")
	}

	rows := height - 1
	if rows < 1 {
		rows = 1
	}
	cur := ls.cursors[ls.kind]
	start := 0
	if cur >= rows {
		start = cur - rows + 1
	}
	end := min(start+rows, len(items))

	var b strings.Builder
	b.WriteString(title)
	for i := start; i < end; i++ {
		b.WriteByte('\n')
		if i == cur {
			b.WriteString(CursorMarker)
		} else {
			b.WriteString("  ")
		}
		fmt.Fprintf(&b, "%3d %s", i+1, items[i])
	}
	return b.String()
}
