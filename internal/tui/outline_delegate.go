package tui

import (
	"fmt"
	"io"
	"strings"

	"studio-cli/internal/xblock"

	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	xansi "github.com/charmbracelet/x/ansi"
)

type outlineRowItem struct {
	row outlineRow
}

func (i outlineRowItem) FilterValue() string { return i.row.node.DisplayName }
func (i outlineRowItem) Title() string       { return i.row.node.DisplayName }

type outlineItemDelegate struct {
	normal   lipgloss.Style
	selected lipgloss.Style
}

func newOutlineItemDelegate() outlineItemDelegate {
	return outlineItemDelegate{
		normal: lipgloss.NewStyle(),
		selected: lipgloss.NewStyle().
			Foreground(colorSelectedFg).
			Background(colorSelectedBg).
			Bold(true),
	}
}

func (d outlineItemDelegate) Height() int                             { return 1 }
func (d outlineItemDelegate) Spacing() int                            { return 0 }
func (d outlineItemDelegate) Update(_ tea.Msg, _ *list.Model) tea.Cmd { return nil }

func (d outlineItemDelegate) Render(w io.Writer, m list.Model, index int, item list.Item) {
	contentW := m.Width()
	if contentW < 4 {
		return
	}
	it, ok := item.(outlineRowItem)
	if !ok {
		fmt.Fprint(w, d.renderRow(contentW, d.normal, fmt.Sprint(item)))
		return
	}
	base := d.normal
	if index == m.Index() {
		base = d.selected
	}
	fmt.Fprint(w, d.renderOutlineRow(contentW, base, it.row))
}

func (d outlineItemDelegate) renderOutlineRow(width int, base lipgloss.Style, row outlineRow) string {
	n := row.node
	indent := strings.Repeat("  ", row.depth)
	twisty := " "
	if row.hasChildren {
		if row.collapsed {
			twisty = glyphTwistyCollapsed()
		} else {
			twisty = glyphTwistyExpanded()
		}
	}
	bg := base.GetBackground()
	seg := func(st lipgloss.Style, s string) string {
		return st.Background(bg).Render(s)
	}

	label := n.Kind().Label()
	out := seg(base, indent+twisty+" ") +
		seg(kindStyle(label).Bold(base.GetBold()), label) +
		seg(base, " "+n.DisplayName)

	var badges []string
	if xblock.BoolValue(n.HasChanges) {
		badges = append(badges, seg(lipgloss.NewStyle().Foreground(colorChanged), glyphChanged()))
	}
	if xblock.BoolValue(n.VisibleToStaffOnly) {
		badges = append(badges, seg(lipgloss.NewStyle().Foreground(colorStaff), glyphStaffOnly()))
	}
	if f := xblock.StringValue(n.Format); f != "" {
		badges = append(badges, seg(styleMuted(), f))
	}
	if len(badges) > 0 {
		out += seg(base, "  ") + strings.Join(badges, seg(base, " "))
	}

	// Fill to full width so the selection background covers the row.
	curW := xansi.StringWidth(out)
	if curW < width {
		out += base.Render(strings.Repeat(" ", width-curW))
	} else if curW > width {
		out = xansi.Cut(out, 0, width) + "\x1b[0m"
	}
	return out
}

func (d outlineItemDelegate) renderRow(width int, style lipgloss.Style, line string) string {
	plainW := xansi.StringWidth(line)
	if plainW < width {
		line += strings.Repeat(" ", width-plainW)
	} else if plainW > width {
		line = xansi.Cut(line, 0, width)
	}
	return style.Render(line)
}

func newOutlineList() list.Model {
	l := list.New([]list.Item{}, newOutlineItemDelegate(), 0, 0)
	l.SetShowTitle(false)
	l.SetShowHelp(false)
	l.SetShowStatusBar(false)
	l.SetShowPagination(false)
	l.SetFilteringEnabled(false)
	// ESC is "cancel" here, not quit.
	l.KeyMap.Quit.SetKeys("q")
	l.KeyMap.CursorUp.SetKeys(append(l.KeyMap.CursorUp.Keys(), "ctrl+p")...)
	l.KeyMap.CursorDown.SetKeys(append(l.KeyMap.CursorDown.Keys(), "ctrl+n")...)
	return l
}
