package tui

import (
	"fmt"
	"strings"

	"studio-cli/internal/xblock"
)

// nodeSummaryMarkdown renders the selected block's state for the detail pane.
func nodeSummaryMarkdown(n *xblock.Node) string {
	if n == nil {
		return ""
	}
	var b strings.Builder
	fmt.Fprintf(&b, "## %s\n\n", mdEscape(n.DisplayName))
	fmt.Fprintf(&b, "*%s* · `%s`\n\n", n.Kind().Label(), n.ID)

	row := func(k, v string) {
		if strings.TrimSpace(v) == "" {
			return
		}
		fmt.Fprintf(&b, "- **%s:** %s\n", k, mdEscape(v))
	}

	rel := xblock.StringValue(n.ReleaseDate)
	if from := xblock.StringValue(n.ReleaseDateFrom); rel != "" && from != "" {
		rel += " (from " + from + ")"
	}
	row("Release", rel)
	row("Due", xblock.StringValue(n.DueDate))
	if f := xblock.StringValue(n.Format); f != "" {
		row("Grading", f)
	} else if n.Graded != nil {
		row("Grading", "not graded")
	}
	row("Status", publishState(n))
	if xblock.BoolValue(n.VisibleToStaffOnly) {
		row("Visibility", "staff only")
	} else if n.CurrentlyVisibleToStudents != nil {
		if *n.CurrentlyVisibleToStudents {
			row("Visibility", "visible to students")
		} else {
			row("Visibility", "not yet visible to students")
		}
	}
	if on := xblock.StringValue(n.EditedOn); on != "" {
		by := xblock.StringValue(n.EditedBy)
		if by != "" {
			on += " by " + by
		}
		row("Edited", on)
	}
	if on := xblock.StringValue(n.PublishedOn); on != "" {
		by := xblock.StringValue(n.PublishedBy)
		if by != "" {
			on += " by " + by
		}
		row("Published", on)
	}

	if kids := n.Children(); len(kids) > 0 {
		label := "Children"
		if n.ChildInfo != nil && n.ChildInfo.DisplayName != "" {
			label = n.ChildInfo.DisplayName
		}
		fmt.Fprintf(&b, "\n**%s (%d)**\n\n", mdEscape(label), len(kids))
		for _, ch := range kids {
			fmt.Fprintf(&b, "- %s\n", mdEscape(ch.DisplayName))
		}
	}
	return b.String()
}

func publishState(n *xblock.Node) string {
	switch {
	case xblock.BoolValue(n.Published) && xblock.BoolValue(n.HasChanges):
		return "published, unpublished changes"
	case xblock.BoolValue(n.Published):
		return "published"
	case n.Published != nil:
		return "draft"
	}
	return ""
}

var mdEscaper = strings.NewReplacer(
	`\`, `\\`,
	"*", `\*`,
	"_", `\_`,
	"`", "\\`",
	"[", `\[`,
	"]", `\]`,
	"<", `\<`,
	"#", `\#`,
)

// mdEscape keeps display names literal when rendered through glamour.
func mdEscape(s string) string { return mdEscaper.Replace(s) }
