package tui

import (
	"studio-cli/internal/xblock"
)

type outlineRow struct {
	node        *xblock.Node
	depth       int
	hasChildren bool
	collapsed   bool
}

// flattenOutline walks root depth-first, skipping the subtrees of collapsed
// nodes. The course root itself is not listed; its chapters are depth 0.
func flattenOutline(root *xblock.Node, collapsed map[string]bool) []outlineRow {
	if root == nil {
		return nil
	}
	var out []outlineRow
	var walk func(n *xblock.Node, depth int)
	walk = func(n *xblock.Node, depth int) {
		row := outlineRow{
			node:        n,
			depth:       depth,
			hasChildren: n.HasChildren(),
			collapsed:   collapsed[n.ID],
		}
		out = append(out, row)
		if row.collapsed {
			return
		}
		for _, ch := range n.Children() {
			walk(ch, depth+1)
		}
	}
	if root.IsCourse() {
		for _, ch := range root.Children() {
			walk(ch, 0)
		}
		return out
	}
	walk(root, 0)
	return out
}
