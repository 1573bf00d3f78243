package cli

import (
	"fmt"
	"io"
	"strings"

	"studio-cli/internal/fieldedit"
	"studio-cli/internal/remote"
	"studio-cli/internal/sectionmodal"
	"studio-cli/internal/xblock"

	"github.com/spf13/cobra"
)

func newRenameCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "rename <block-id> <display-name>",
		Short: "Change a block's display name (write, then re-read)",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			st, closeFn, _, err := app.openStore(cmd.Context())
			if err != nil {
				return err
			}
			defer closeFn()

			ctx, cancel := app.requestContext(cmd.Context())
			n, err := st.Fetch(ctx, strings.TrimSpace(args[0]))
			cancel()
			if err != nil {
				return err
			}

			ed := fieldedit.New(n, "display_name", "Display name", st,
				fieldedit.WithTimeout(app.Timeout),
				fieldedit.WithLogger(app.log),
			)
			if err := ed.Activate(); err != nil {
				return err
			}
			changed := false
			for _, msg := range ed.Settle(ed.Confirm(args[1])) {
				switch msg := msg.(type) {
				case fieldedit.SavedMsg:
					changed = true
				case fieldedit.FailedMsg:
					return msg.Err
				}
			}
			return writeOutMeta(cmd, app, outlineView{Node: n, depth: 0}, map[string]any{"changed": changed})
		},
	}
}

func newScheduleCmd(app *App) *cobra.Command {
	var release, due, grading string
	cmd := &cobra.Command{
		Use:   "schedule <block-id>",
		Short: "Set a section's or subsection's release date, due date and grading format",
		Long: strings.TrimSpace(`
Sends one update with the release date, due date and grading format, the way
the section settings dialog does. Flags that are not given keep the block's
current values.

Dates are "MM/DD/YY [HH:MM]" in UTC; pass "" or "none" to clear. The grading
format is one of the course's grader types or "notgraded".
`),
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			st, closeFn, _, err := app.openStore(cmd.Context())
			if err != nil {
				return err
			}
			defer closeFn()

			ctx, cancel := app.requestContext(cmd.Context())
			n, err := st.Fetch(ctx, strings.TrimSpace(args[0]))
			cancel()
			if err != nil {
				return err
			}
			if sectionmodal.Title(n) == "" {
				return notSchedulableError{id: n.ID, category: n.Category}
			}

			modal := sectionmodal.New(st,
				sectionmodal.WithTimeout(app.Timeout),
				sectionmodal.WithLogger(app.log),
			)
			modal.Open(n, sectionmodal.GradersFor(n))

			rd, rt, dd, dt := modal.Values()
			flags := cmd.Flags()
			if flags.Changed("release") {
				if rd, rt, err = splitFlagDate("release", release); err != nil {
					return err
				}
			}
			if flags.Changed("due") {
				if dd, dt, err = splitFlagDate("due", due); err != nil {
					return err
				}
			}
			modal.SetValues(rd, rt, dd, dt)
			if flags.Changed("grading") && !modal.SelectFormat(strings.TrimSpace(grading)) {
				return errInvalidFlag("grading", "%q is not a grader type of this course", grading)
			}

			save := modal.Save()
			if save == nil {
				return modal.Err()
			}
			if failed, ok := save().(sectionmodal.SaveFailedMsg); ok {
				return failed.Err
			}

			ctx, cancel = app.requestContext(cmd.Context())
			defer cancel()
			fresh, err := st.Fetch(ctx, n.ID)
			if err != nil {
				return err
			}
			return writeOut(cmd, app, outlineView{Node: fresh, depth: 0})
		},
	}
	cmd.Flags().StringVar(&release, "release", "", `Release date "MM/DD/YY [HH:MM]" (UTC)`)
	cmd.Flags().StringVar(&due, "due", "", `Due date "MM/DD/YY [HH:MM]" (UTC)`)
	cmd.Flags().StringVar(&grading, "grading", "", "Grading format (grader type or notgraded)")
	return cmd
}

// splitFlagDate turns "MM/DD/YY [HH:MM]" into picker strings.
func splitFlagDate(flag, v string) (string, string, error) {
	v = strings.TrimSpace(v)
	if v == "" || strings.EqualFold(v, "none") {
		return "", "", nil
	}
	parts := strings.Fields(v)
	if len(parts) > 2 {
		return "", "", errInvalidFlag(flag, "expected \"MM/DD/YY [HH:MM]\", got %q", v)
	}
	date, clock := parts[0], ""
	if len(parts) == 2 {
		clock = parts[1]
	}
	if _, err := sectionmodal.ResolveDateTime(date, clock); err != nil {
		return "", "", errInvalidFlag(flag, "%v", err)
	}
	return date, clock, nil
}

func newPublishCmd(app *App) *cobra.Command {
	var discard bool
	cmd := &cobra.Command{
		Use:   "publish <block-id>",
		Short: "Publish a block and its descendants (or discard unpublished changes)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			st, closeFn, _, err := app.openStore(cmd.Context())
			if err != nil {
				return err
			}
			defer closeFn()

			action := remote.PublishMakePublic
			if discard {
				action = remote.PublishDiscardChanges
			}
			id := strings.TrimSpace(args[0])
			ctx, cancel := app.requestContext(cmd.Context())
			defer cancel()
			if err := st.UpdateFields(ctx, id, remote.Update{Publish: action}); err != nil {
				return err
			}
			n, err := st.Fetch(ctx, id)
			if err != nil {
				return err
			}
			return writeOut(cmd, app, publishView{outlineView{Node: n, depth: 0}})
		},
	}
	cmd.Flags().BoolVar(&discard, "discard", false, "Discard unpublished changes instead of publishing")
	return cmd
}

type publishView struct{ outlineView }

// WriteText prints the block's publish state.
func (v publishView) WriteText(w io.Writer) error {
	state := "draft"
	if xblock.BoolValue(v.Published) {
		state = "published"
		if xblock.BoolValue(v.HasChanges) {
			state = "published with unpublished changes"
		}
	}
	_, err := fmt.Fprintf(w, "%s: %s\n", v.DisplayName, state)
	return err
}
