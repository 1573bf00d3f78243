package cli

import (
	"context"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"studio-cli/internal/config"
	"studio-cli/internal/remote"
	"studio-cli/internal/server"
	"studio-cli/internal/store"
	"studio-cli/internal/xblock"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newSeedCmd(app *App) *cobra.Command {
	var courseKey, title string
	var use bool
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Create a demo course in the local store",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			key, err := store.ParseCourseKey(courseKey)
			if err != nil {
				return errInvalidFlag("course-key", "%v", err)
			}
			cs, err := app.openLocal(cmd.Context())
			if err != nil {
				return err
			}
			defer cs.Close()

			id, err := cs.Seed(cmd.Context(), key, title)
			if err != nil {
				return err
			}
			if use {
				if err := config.Set("course", id); err != nil {
					return err
				}
			}
			return writeOut(cmd, app, map[string]any{"id": id, "db": cs.Path(), "current": use})
		},
	}
	cmd.Flags().StringVar(&courseKey, "course-key", "course-v1:Demo+CS101+2026", "Course key (org+number+run)")
	cmd.Flags().StringVar(&title, "title", "", "Course title (default: Demo Course)")
	cmd.Flags().BoolVar(&use, "use", false, "Save the new course as the default --course")
	return cmd
}

func newPullCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "pull <block-id>",
		Short: "Copy a block and its descendants from --url into the local store",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if strings.TrimSpace(app.URL) == "" {
				return errInvalidFlag("url", "pull needs a server to copy from")
			}
			hs, err := remote.NewHTTPStore(app.URL, remote.WithLogger(app.log))
			if err != nil {
				return err
			}
			ctx, cancel := app.requestContext(cmd.Context())
			n, err := hs.Fetch(ctx, strings.TrimSpace(args[0]))
			cancel()
			if err != nil {
				return err
			}

			cs, err := app.openLocal(cmd.Context())
			if err != nil {
				return err
			}
			defer cs.Close()
			if err := cs.Import(cmd.Context(), n); err != nil {
				return err
			}
			count := 0
			n.Walk(func(*xblock.Node, int) bool { count++; return true })
			return writeOut(cmd, app, map[string]any{"id": n.ID, "db": cs.Path(), "blocks": count})
		},
	}
}

func newServeCmd(app *App) *cobra.Command {
	var addr string
	var quiet bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the local course store over HTTP (GET/POST /xblock/:id)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cs, err := app.openLocal(cmd.Context())
			if err != nil {
				return err
			}
			defer cs.Close()

			srv, err := server.New(server.Options{
				Address:        strings.TrimSpace(addr),
				Store:          cs,
				Logger:         app.log,
				DisableReqLogs: quiet,
			})
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			errCh := make(chan error, 1)
			go func() { errCh <- srv.Start() }()
			app.log.Info("serving course store", zap.String("addr", addr), zap.String("db", cs.Path()))
			cmd.PrintErrf("serving %s on http://%s\n", cs.Path(), addr)

			select {
			case err := <-errCh:
				return err
			case <-ctx.Done():
			}
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return srv.Stop(shutdownCtx)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "127.0.0.1:8010", "Listen address")
	cmd.Flags().BoolVar(&quiet, "quiet", false, "Disable request logging")
	return cmd
}

func newConfigCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Show or change ~/.studio/config.json",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Print the resolved configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := config.Path()
			if err != nil {
				return err
			}
			// Effective values: config file and env, then flags.
			return writeOutMeta(cmd, app, map[string]any{
				"url":     app.URL,
				"db":      app.DB,
				"course":  app.Course,
				"actor":   app.cfg.Actor,
				"timeout": app.Timeout.String(),
				"logFile": app.LogFile,
				"debug":   app.cfg.Debug,
				"glyphs":  app.cfg.Glyphs,
			}, map[string]any{"path": path})
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "set <key> <value>",
		Short: "Set one key (url, db, course, actor, timeout, logFile, debug, glyphs); an empty value clears it",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := config.Set(args[0], args[1]); err != nil {
				return err
			}
			return writeOut(cmd, app, map[string]any{"key": args[0], "value": args[1]})
		},
	})
	return cmd
}
