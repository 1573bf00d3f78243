package fieldedit

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"studio-cli/internal/remote"
	"studio-cli/internal/xblock"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"go.uber.org/zap"
)

type State int

const (
	Display State = iota
	Editing
	Saving
)

func (s State) String() string {
	switch s {
	case Editing:
		return "editing"
	case Saving:
		return "saving"
	default:
		return "display"
	}
}

// ErrBusy is returned by Activate while a save is in flight.
var ErrBusy = errors.New("save in progress")

type FailureKind int

const (
	WriteFailed FailureKind = iota + 1
	ReadFailed
)

func (k FailureKind) String() string {
	switch k {
	case WriteFailed:
		return "write failed"
	case ReadFailed:
		return "refresh failed"
	default:
		return "failed"
	}
}

// SaveError is a non-fatal failure of one save round-trip.
type SaveError struct {
	Kind  FailureKind
	ID    string
	Field string
	Err   error
}

func (e *SaveError) Error() string {
	return fmt.Sprintf("%s: %s %s: %v", e.Kind, e.Field, e.ID, e.Err)
}

func (e *SaveError) Unwrap() error { return e.Err }

// SavedMsg is emitted after the refreshed value has been committed.
type SavedMsg struct {
	ID    string
	Field string
	Value string
}

// FailedMsg is emitted when a save fails. The host decides how to show it.
type FailedMsg struct {
	Err *SaveError
}

type writeDoneMsg struct {
	editor uint64
	seq    int
	value  string
	err    error
}

type fetchDoneMsg struct {
	editor  uint64
	seq     int
	written string
	node    *xblock.Node
	err     error
}

const DefaultTimeout = 30 * time.Second

var lastEditorID atomic.Uint64

var (
	labelStyle  = lipgloss.NewStyle().Bold(true)
	valueStyle  = lipgloss.NewStyle()
	savingStyle = lipgloss.NewStyle().Faint(true).Italic(true)
)

// Editor binds one string attribute of a node to an editable field.
type Editor struct {
	id      uint64
	node    *xblock.Node
	field   string
	label   string
	store   remote.Store
	timeout time.Duration
	log     *zap.Logger

	state State
	input textinput.Model
	seq   int
	err   *SaveError
}

type Option func(*Editor)

func WithTimeout(d time.Duration) Option {
	return func(e *Editor) {
		if d > 0 {
			e.timeout = d
		}
	}
}

func WithLogger(l *zap.Logger) Option {
	return func(e *Editor) {
		if l != nil {
			e.log = l
		}
	}
}

func New(node *xblock.Node, field, label string, st remote.Store, opts ...Option) *Editor {
	in := textinput.New()
	in.Prompt = ""
	in.CharLimit = 0
	e := &Editor{
		id:      lastEditorID.Add(1),
		node:    node,
		field:   field,
		label:   label,
		store:   st,
		timeout: DefaultTimeout,
		log:     zap.NewNop(),
		input:   in,
	}
	for _, o := range opts {
		o(e)
	}
	return e
}

func (e *Editor) State() State       { return e.state }
func (e *Editor) Node() *xblock.Node { return e.node }
func (e *Editor) Field() string      { return e.field }

// Err returns the failure of the last save, if any.
func (e *Editor) Err() *SaveError { return e.err }

// Value is the committed value from the model.
func (e *Editor) Value() string {
	v, _ := e.node.Get(e.field)
	return v
}

// InputValue is the current contents of the input box.
func (e *Editor) InputValue() string { return e.input.Value() }

func (e *Editor) Activate() error {
	switch e.state {
	case Saving:
		return ErrBusy
	case Editing:
		return nil
	}
	e.err = nil
	e.input.SetValue(e.Value())
	e.input.CursorEnd()
	e.input.Focus()
	e.state = Editing
	return nil
}

func (e *Editor) Cancel() {
	if e.state != Editing {
		return
	}
	e.toDisplay()
}

func (e *Editor) toDisplay() {
	e.input.Blur()
	e.input.SetValue(e.Value())
	e.state = Display
}

// Confirm saves value. Empty or unchanged input returns to Display without
// issuing a request.
func (e *Editor) Confirm(value string) tea.Cmd {
	if e.state == Saving {
		return nil
	}
	value = strings.TrimSpace(value)
	if value == "" || value == e.Value() {
		e.toDisplay()
		return nil
	}
	e.input.Blur()
	e.input.SetValue(value)
	e.state = Saving
	e.seq++
	e.log.Debug("field save", zap.String("id", e.node.ID), zap.String("field", e.field), zap.Int("seq", e.seq))
	return e.writeCmd(e.seq, value)
}

func (e *Editor) writeCmd(seq int, value string) tea.Cmd {
	st, id, field, timeout, editor := e.store, e.node.ID, e.field, e.timeout, e.id
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		err := st.UpdateFields(ctx, id, remote.FieldUpdate(field, value))
		return writeDoneMsg{editor: editor, seq: seq, value: value, err: err}
	}
}

func (e *Editor) fetchCmd(seq int, written string) tea.Cmd {
	st, id, timeout, editor := e.store, e.node.ID, e.timeout, e.id
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		n, err := st.Fetch(ctx, id)
		return fetchDoneMsg{editor: editor, seq: seq, written: written, node: n, err: err}
	}
}

func (e *Editor) fail(kind FailureKind, err error) tea.Cmd {
	e.err = &SaveError{Kind: kind, ID: e.node.ID, Field: e.field, Err: err}
	e.log.Warn("field save failed",
		zap.String("id", e.node.ID),
		zap.String("field", e.field),
		zap.Stringer("kind", kind),
		zap.Error(err),
	)
	se := e.err
	return func() tea.Msg { return FailedMsg{Err: se} }
}

func (e *Editor) Update(msg tea.Msg) tea.Cmd {
	switch msg := msg.(type) {
	case writeDoneMsg:
		if msg.editor != e.id || msg.seq != e.seq || e.state != Saving {
			return nil
		}
		if msg.err != nil {
			e.toDisplay()
			return e.fail(WriteFailed, msg.err)
		}
		return e.fetchCmd(msg.seq, msg.value)

	case fetchDoneMsg:
		if msg.editor != e.id || msg.seq != e.seq || e.state != Saving {
			return nil
		}
		if msg.err != nil {
			// The write was acknowledged; keep it rather than revert.
			e.node.Set(e.field, msg.written)
			e.toDisplay()
			return e.fail(ReadFailed, msg.err)
		}
		e.node.Replace(msg.node)
		e.toDisplay()
		saved := SavedMsg{ID: e.node.ID, Field: e.field, Value: e.Value()}
		return func() tea.Msg { return saved }

	case tea.KeyMsg:
		if e.state != Editing {
			return nil
		}
		switch msg.String() {
		case "enter":
			return e.Confirm(e.input.Value())
		case "esc":
			e.Cancel()
			return nil
		}
		var cmd tea.Cmd
		e.input, cmd = e.input.Update(msg)
		return cmd
	}
	return nil
}

// Owns reports whether msg is an internal result addressed to this editor.
func (e *Editor) Owns(msg tea.Msg) bool {
	switch m := msg.(type) {
	case writeDoneMsg:
		return m.editor == e.id
	case fetchDoneMsg:
		return m.editor == e.id
	}
	return false
}

func (e *Editor) View() string {
	label := labelStyle.Render(e.label + ":")
	switch e.state {
	case Editing:
		return label + " " + e.input.View()
	case Saving:
		return label + " " + valueStyle.Render(e.input.Value()) + " " + savingStyle.Render("saving…")
	default:
		return label + " " + valueStyle.Render(e.Value())
	}
}

// Settle runs cmd and feeds the editor's own results back into it until the
// round-trip ends, returning the messages meant for the host. It is the
// synchronous driver used outside a tea.Program.
func (e *Editor) Settle(cmd tea.Cmd) []tea.Msg {
	var out []tea.Msg
	for cmd != nil {
		msg := cmd()
		cmd = nil
		if msg == nil {
			continue
		}
		if e.Owns(msg) {
			cmd = e.Update(msg)
			continue
		}
		out = append(out, msg)
	}
	return out
}
