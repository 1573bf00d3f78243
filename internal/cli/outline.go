package cli

import (
	"fmt"
	"io"
	"strings"

	"studio-cli/internal/xblock"

	"github.com/spf13/cobra"
)

// outlineView is a node rendered as an indented tree in text mode and as the
// node itself in json/edn.
type outlineView struct {
	*xblock.Node
	depth int
}

func (v outlineView) WriteText(w io.Writer) error {
	var err error
	v.Node.Walk(func(n *xblock.Node, depth int) bool {
		if v.depth >= 0 && depth > v.depth {
			return false
		}
		if err != nil {
			return false
		}
		_, err = fmt.Fprintln(w, textLine(n, depth))
		return true
	})
	return err
}

func textLine(n *xblock.Node, depth int) string {
	var b strings.Builder
	b.WriteString(strings.Repeat("  ", depth))
	b.WriteString(n.Kind().Label())
	b.WriteString(": ")
	b.WriteString(n.DisplayName)

	var tags []string
	if rd := xblock.StringValue(n.ReleaseDate); rd != "" && n.ReleaseDateFrom == nil {
		tags = append(tags, "release "+rd)
	}
	if due := xblock.StringValue(n.DueDate); due != "" {
		tags = append(tags, "due "+due)
	}
	if f := xblock.StringValue(n.Format); f != "" {
		tags = append(tags, f)
	}
	if xblock.BoolValue(n.HasChanges) {
		tags = append(tags, "changed")
	}
	if xblock.BoolValue(n.VisibleToStaffOnly) {
		tags = append(tags, "staff only")
	}
	if len(tags) > 0 {
		b.WriteString(" [" + strings.Join(tags, ", ") + "]")
	}
	b.WriteString("  " + n.ID)
	return b.String()
}

func newOutlineCmd(app *App) *cobra.Command {
	var depth int
	cmd := &cobra.Command{
		Use:   "outline [block-id]",
		Short: "Print a block and its descendants (default: the course)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			n, err := fetchNode(cmd, app, args)
			if err != nil {
				return err
			}
			return writeOut(cmd, app, outlineView{Node: n, depth: depth})
		},
	}
	cmd.Flags().IntVar(&depth, "depth", -1, "Limit text output to this depth (-1: unlimited)")
	return cmd
}

func newShowCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "show <block-id>",
		Short: "Print one block",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			n, err := fetchNode(cmd, app, args)
			if err != nil {
				return err
			}
			return writeOut(cmd, app, outlineView{Node: n, depth: 0})
		},
	}
}

func fetchNode(cmd *cobra.Command, app *App, args []string) (*xblock.Node, error) {
	st, closeFn, _, err := app.openStore(cmd.Context())
	if err != nil {
		return nil, err
	}
	defer closeFn()
	id, err := app.resolveID(cmd.Context(), st, args)
	if err != nil {
		return nil, err
	}
	ctx, cancel := app.requestContext(cmd.Context())
	defer cancel()
	return st.Fetch(ctx, id)
}
