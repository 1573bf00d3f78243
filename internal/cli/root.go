package cli

import (
	"context"
	"fmt"
	"strings"
	"time"

	"studio-cli/internal/config"
	"studio-cli/internal/format"
	"studio-cli/internal/logging"
	"studio-cli/internal/remote"
	"studio-cli/internal/store"
	"studio-cli/internal/tui"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

type App struct {
	URL        string
	DB         string
	Course     string
	Format     string
	PrettyJSON bool
	Timeout    time.Duration
	LogFile    string

	cfg *config.Config
	log *zap.Logger
}

func NewRootCmd() *cobra.Command {
	app := &App{}

	cmd := &cobra.Command{
		Use:          "studio",
		Short:        "Course outline editor (CLI + TUI) for Studio-compatible servers",
		SilenceUsage: true,
		Example: strings.TrimSpace(`
  # Create a local demo course and open it
  studio seed --use
  studio

  # Scriptable commands
  studio outline --format text
  studio rename <block-id> "Week 1: Getting Started"
  studio schedule <block-id> --release "04/01/26 09:00" --grading Homework

  # Direct block lookup (shortcut for: studio show <block-id>)
  studio block-v1:Demo+CS101+2026+type@chapter+block@intro

  # Talk to a server instead of the local store
  studio --url http://127.0.0.1:8010 outline
`),
		RunE: func(cmd *cobra.Command, args []string) error {
			// No subcommand => interactive TUI.
			if len(args) == 0 {
				return runTUI(cmd, app, "")
			}
			return cmd.Help()
		},
	}

	cmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		return app.init(cmd)
	}
	cmd.PersistentPostRunE = func(cmd *cobra.Command, args []string) error {
		if app.log != nil {
			_ = app.log.Sync()
		}
		return nil
	}

	pf := cmd.PersistentFlags()
	pf.StringVar(&app.URL, "url", "", "Studio-compatible server URL (default: the local course store)")
	pf.StringVar(&app.DB, "db", "", "Path to the local SQLite course store")
	pf.StringVar(&app.Course, "course", "", "Course root block id")
	pf.StringVar(&app.Format, "format", "json", "Output format (json|edn|text)")
	pf.BoolVar(&app.PrettyJSON, "pretty", false, "Pretty-print JSON output")
	pf.DurationVar(&app.Timeout, "timeout", 0, "Timeout for each request (default 30s)")
	pf.StringVar(&app.LogFile, "log-file", "", "Write JSON logs to this file")

	cmd.AddCommand(newOutlineCmd(app))
	cmd.AddCommand(newShowCmd(app))
	cmd.AddCommand(newRenameCmd(app))
	cmd.AddCommand(newScheduleCmd(app))
	cmd.AddCommand(newPublishCmd(app))
	cmd.AddCommand(newSeedCmd(app))
	cmd.AddCommand(newPullCmd(app))
	cmd.AddCommand(newServeCmd(app))
	cmd.AddCommand(newTUICmd(app))
	cmd.AddCommand(newConfigCmd(app))
	cmd.AddCommand(newDocsCmd(app))

	return cmd
}

// init resolves config then lets explicitly set flags win.
func (app *App) init(cmd *cobra.Command) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	flags := cmd.Flags()
	if !flags.Changed("url") {
		app.URL = cfg.URL
	}
	if !flags.Changed("db") {
		app.DB = cfg.DB
	}
	if !flags.Changed("course") {
		app.Course = cfg.Course
	}
	if !flags.Changed("timeout") || app.Timeout <= 0 {
		app.Timeout = cfg.Timeout
	}
	if !flags.Changed("log-file") {
		app.LogFile = cfg.LogFile
	}
	app.cfg = cfg

	log, err := logging.New(app.LogFile, cfg.Debug)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	app.log = log
	return nil
}

// openStore returns the store commands read and write through. closeFn must
// be called when done; watchPath is set for the local store.
func (app *App) openStore(ctx context.Context) (st remote.Store, closeFn func(), watchPath string, err error) {
	if strings.TrimSpace(app.URL) != "" {
		hs, err := remote.NewHTTPStore(app.URL, remote.WithLogger(app.log))
		if err != nil {
			return nil, nil, "", err
		}
		return hs, func() {}, "", nil
	}
	cs, err := app.openLocal(ctx)
	if err != nil {
		return nil, nil, "", err
	}
	return cs, func() { _ = cs.Close() }, cs.Path(), nil
}

func (app *App) openLocal(ctx context.Context) (*store.CourseStore, error) {
	actor := "studio"
	if app.cfg != nil && app.cfg.Actor != "" {
		actor = app.cfg.Actor
	}
	return store.Open(ctx, app.DB, store.WithActor(actor), store.WithLogger(app.log))
}

// resolveID picks the block to operate on: the argument, then --course, then
// the only course in the local store.
func (app *App) resolveID(ctx context.Context, st remote.Store, args []string) (string, error) {
	if len(args) > 0 && strings.TrimSpace(args[0]) != "" {
		return strings.TrimSpace(args[0]), nil
	}
	if strings.TrimSpace(app.Course) != "" {
		return strings.TrimSpace(app.Course), nil
	}
	if cs, ok := st.(*store.CourseStore); ok {
		roots, err := cs.Roots(ctx)
		if err != nil {
			return "", err
		}
		if len(roots) == 1 {
			return roots[0].ID, nil
		}
		if len(roots) > 1 {
			return "", ambiguousCourseError{count: len(roots)}
		}
	}
	return "", noCourseError{}
}

func (app *App) requestContext(parent context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(parent, app.Timeout)
}

func runTUI(cmd *cobra.Command, app *App, id string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	st, closeFn, watch, err := app.openStore(ctx)
	if err != nil {
		return err
	}
	defer closeFn()
	var args []string
	if id != "" {
		args = []string{id}
	}
	rootID, err := app.resolveID(ctx, st, args)
	if err != nil {
		return err
	}
	glyphs := ""
	if app.cfg != nil {
		glyphs = app.cfg.Glyphs
	}
	return tui.Run(tui.Options{
		Store:     st,
		RootID:    rootID,
		WatchPath: watch,
		Timeout:   app.Timeout,
		Logger:    app.log,
		Glyphs:    glyphs,
	})
}

func newTUICmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "tui [block-id]",
		Short: "Open the interactive outline",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id := ""
			if len(args) > 0 {
				id = args[0]
			}
			return runTUI(cmd, app, id)
		},
	}
}

// writeOut wraps data in the {"data": ...} envelope for json/edn. The text
// format renders data itself when it knows how, and falls back to JSON.
func writeOut(cmd *cobra.Command, app *App, data any) error {
	return writeOutMeta(cmd, app, data, nil)
}

func writeOutMeta(cmd *cobra.Command, app *App, data any, meta map[string]any) error {
	outFormat := app.Format
	if outFormat == "text" {
		if t, ok := data.(format.Texter); ok {
			return t.WriteText(cmd.OutOrStdout())
		}
		outFormat = "json"
	}
	env := map[string]any{"data": data}
	if len(meta) > 0 {
		env["meta"] = meta
	}
	return format.Write(cmd.OutOrStdout(), env, outFormat, app.PrettyJSON)
}
