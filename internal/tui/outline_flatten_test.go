package tui

import (
	"strings"
	"testing"

	"studio-cli/internal/xblock"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
)

func testTree() *xblock.Node {
	unit := &xblock.Node{ID: "u1", Category: xblock.CategoryVertical, DisplayName: "Unit"}
	seq := &xblock.Node{ID: "s1", Category: xblock.CategorySequential, DisplayName: "Lesson", ChildInfo: &xblock.ChildInfo{Children: []*xblock.Node{unit}}}
	ch1 := &xblock.Node{ID: "c1", Category: xblock.CategoryChapter, DisplayName: "Week 1", ChildInfo: &xblock.ChildInfo{Children: []*xblock.Node{seq}}}
	ch2 := &xblock.Node{ID: "c2", Category: xblock.CategoryChapter, DisplayName: "Week 2", ChildInfo: &xblock.ChildInfo{Children: []*xblock.Node{}}}
	return &xblock.Node{ID: "root", Category: xblock.CategoryCourse, DisplayName: "Course", ChildInfo: &xblock.ChildInfo{Children: []*xblock.Node{ch1, ch2}}}
}

func TestFlattenOutline_DepthAndCollapse(t *testing.T) {
	rows := flattenOutline(testTree(), nil)
	var got []string
	for _, r := range rows {
		got = append(got, strings.Repeat(".", r.depth)+r.node.ID)
	}
	if strings.Join(got, " ") != "c1 .s1 ..u1 c2" {
		t.Fatalf("unexpected rows: %v", got)
	}
	if !rows[0].hasChildren || rows[3].hasChildren {
		t.Fatalf("unexpected hasChildren flags")
	}

	rows = flattenOutline(testTree(), map[string]bool{"c1": true})
	if len(rows) != 2 || !rows[0].collapsed {
		t.Fatalf("expected collapsed c1 to hide its subtree, got %d rows", len(rows))
	}

	// A non-course root is listed itself.
	rows = flattenOutline(testTree().Children()[0], nil)
	if len(rows) != 3 || rows[0].node.ID != "c1" {
		t.Fatalf("expected chapter root listed, got %d rows", len(rows))
	}
	if flattenOutline(nil, nil) != nil {
		t.Fatalf("expected nil for nil root")
	}
}

func TestOutlineDelegate_RowFitsWidthAndShowsBadges(t *testing.T) {
	lipgloss.SetColorProfile(termenv.Ascii)
	setGlyphs(glyphSetASCII)
	defer setGlyphs(glyphSetUnicode)

	tr := true
	f := "Homework"
	n := &xblock.Node{ID: "s1", Category: xblock.CategorySequential, DisplayName: "Homework 1", HasChanges: &tr, Format: &f}
	d := newOutlineItemDelegate()
	out := d.renderOutlineRow(40, d.normal, outlineRow{node: n, depth: 1, hasChildren: true, collapsed: true})

	if !strings.HasPrefix(out, "  > Subsection Homework 1") {
		t.Fatalf("unexpected row %q", out)
	}
	if !strings.Contains(out, "*") || !strings.Contains(out, "Homework") {
		t.Fatalf("expected badges in %q", out)
	}
	if w := lipgloss.Width(out); w != 40 {
		t.Fatalf("expected width 40, got %d", w)
	}
}

func TestNodeSummaryMarkdown(t *testing.T) {
	rd := "Jan 02, 2026 at 00:00 UTC"
	from := "Course"
	pub := true
	n := testTree().Children()[0]
	n.DisplayName = "Week_1 *intro*"
	n.ReleaseDate = &rd
	n.ReleaseDateFrom = &from
	n.Published = &pub

	md := nodeSummaryMarkdown(n)
	for _, want := range []string{`Week\_1 \*intro\*`, "Release:** " + rd + " (from Course)", "published", "Lesson"} {
		if !strings.Contains(md, want) {
			t.Fatalf("expected %q in:\n%s", want, md)
		}
	}
	if nodeSummaryMarkdown(nil) != "" {
		t.Fatalf("expected empty summary for nil")
	}
}
