package tui

import (
	"time"

	"studio-cli/internal/remote"

	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap"
)

type Options struct {
	Store  remote.Store
	RootID string
	// WatchPath is the local SQLite file to watch for outside edits. Empty
	// disables watching (remote stores).
	WatchPath string
	Timeout   time.Duration
	Logger    *zap.Logger
	Glyphs    string
}

func Run(opts Options) error {
	applyColorProfilePreference()
	applyThemePreference()
	applyGlyphPreference(opts.Glyphs)

	m := newAppModel(opts)
	if opts.WatchPath != "" {
		w, err := newStoreWatcher(opts.WatchPath, m.log)
		if err != nil {
			m.log.Warn("store watch disabled", zap.String("path", opts.WatchPath), zap.Error(err))
		} else {
			defer w.Close()
			m.watcher = w
		}
	}
	_, err := tea.NewProgram(m, tea.WithAltScreen()).Run()
	return err
}
