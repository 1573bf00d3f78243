package sectionmodal

import (
	"context"
	"strings"
	"time"

	"studio-cli/internal/remote"
	"studio-cli/internal/xblock"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	xansi "github.com/charmbracelet/x/ansi"
	"go.uber.org/zap"
)

// Title is the modal heading for a block's category.
func Title(n *xblock.Node) string {
	if n == nil {
		return ""
	}
	switch n.Kind() {
	case xblock.KindChapter:
		return "Section Settings"
	case xblock.KindSequential:
		return "Subsection Settings"
	default:
		return ""
	}
}

// GradersFor returns the course graders visible from n: its own, or the
// first ancestor that carries them.
func GradersFor(n *xblock.Node) []xblock.Grader {
	if n == nil {
		return nil
	}
	if gs, err := n.Graders(); err == nil && len(gs) > 0 {
		return gs
	}
	for _, a := range n.Ancestors() {
		if gs, err := a.Graders(); err == nil && len(gs) > 0 {
			return gs
		}
	}
	return nil
}

// SavedMsg reports that the settings update was accepted.
type SavedMsg struct {
	ID string
}

// SaveFailedMsg reports a failed update. The modal is already hidden when
// this arrives, so the host is responsible for showing it.
type SaveFailedMsg struct {
	ID  string
	Err error
}

type field int

const (
	fieldReleaseDate field = iota
	fieldReleaseTime
	fieldDueDate
	fieldDueTime
	fieldFormat
	fieldCount
)

var fieldLabels = [...]string{
	fieldReleaseDate: "Release date",
	fieldReleaseTime: "Release time (UTC)",
	fieldDueDate:     "Due date",
	fieldDueTime:     "Due time (UTC)",
	fieldFormat:      "Grading format",
}

var (
	boxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.AdaptiveColor{Light: "240", Dark: "243"}).
			Padding(0, 1)
	titleStyle   = lipgloss.NewStyle().Bold(true)
	labelStyle   = lipgloss.NewStyle().Width(20)
	focusStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.AdaptiveColor{Light: "235", Dark: "255"})
	mutedStyle   = lipgloss.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "240", Dark: "245"})
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "160", Dark: "203"})
	formatActive = lipgloss.NewStyle().Reverse(true).Padding(0, 1)
)

// Modal edits a section's or subsection's release date, due date and
// grading format.
type Modal struct {
	store   remote.Store
	timeout time.Duration
	log     *zap.Logger
	onSave  func(id string) tea.Cmd

	visible bool
	node    *xblock.Node
	inputs  [fieldFormat]textinput.Model
	focus   field
	formats []string
	format  int
	err     error
	width   int
}

type Option func(*Modal)

func WithTimeout(d time.Duration) Option {
	return func(m *Modal) {
		if d > 0 {
			m.timeout = d
		}
	}
}

func WithLogger(l *zap.Logger) Option {
	return func(m *Modal) {
		if l != nil {
			m.log = l
		}
	}
}

// WithOnSave sets the callback run after a successful save, typically a
// refresh of the outline.
func WithOnSave(fn func(id string) tea.Cmd) Option {
	return func(m *Modal) { m.onSave = fn }
}

func New(st remote.Store, opts ...Option) *Modal {
	m := &Modal{
		store:   st,
		timeout: 30 * time.Second,
		log:     zap.NewNop(),
		width:   60,
	}
	for i := range m.inputs {
		in := textinput.New()
		in.Prompt = ""
		switch field(i) {
		case fieldReleaseDate, fieldDueDate:
			in.Placeholder = "MM/DD/YY"
			in.CharLimit = 10
		default:
			in.Placeholder = "HH:MM"
			in.CharLimit = 5
		}
		m.inputs[i] = in
	}
	for _, o := range opts {
		o(m)
	}
	return m
}

func (m *Modal) Visible() bool      { return m.visible }
func (m *Modal) Node() *xblock.Node { return m.node }
func (m *Modal) Err() error         { return m.err }
func (m *Modal) SetWidth(w int)     { m.width = w }

// Open shows the modal for n, seeding the pickers from its current values.
func (m *Modal) Open(n *xblock.Node, graders []xblock.Grader) {
	m.node = n
	m.err = nil
	rd, rt := SplitDateTime(xblock.StringValue(n.ReleaseDate))
	if n.ReleaseDateFrom != nil {
		// Inherited dates belong to the ancestor; leave the pickers blank.
		rd, rt = "", ""
	}
	dd, dt := SplitDateTime(xblock.StringValue(n.DueDate))
	m.inputs[fieldReleaseDate].SetValue(rd)
	m.inputs[fieldReleaseTime].SetValue(rt)
	m.inputs[fieldDueDate].SetValue(dd)
	m.inputs[fieldDueTime].SetValue(dt)

	m.formats = []string{remote.NotGraded}
	for _, g := range graders {
		if strings.TrimSpace(g.Type) != "" {
			m.formats = append(m.formats, g.Type)
		}
	}
	m.format = 0
	if cur := xblock.StringValue(n.Format); cur != "" {
		found := false
		for i, f := range m.formats {
			if f == cur {
				m.format, found = i, true
				break
			}
		}
		if !found {
			m.formats = append(m.formats, cur)
			m.format = len(m.formats) - 1
		}
	}
	m.setFocus(fieldReleaseDate)
	m.visible = true
}

func (m *Modal) Hide() {
	m.visible = false
	for i := range m.inputs {
		m.inputs[i].Blur()
	}
}

func (m *Modal) Title() string { return Title(m.node) }

// Format is the selected grading format.
func (m *Modal) Format() string {
	if m.format < 0 || m.format >= len(m.formats) {
		return remote.NotGraded
	}
	return m.formats[m.format]
}

// Values returns the raw picker strings.
func (m *Modal) Values() (releaseDate, releaseTime, dueDate, dueTime string) {
	return m.inputs[fieldReleaseDate].Value(), m.inputs[fieldReleaseTime].Value(),
		m.inputs[fieldDueDate].Value(), m.inputs[fieldDueTime].Value()
}

// SetValues fills the pickers directly.
func (m *Modal) SetValues(releaseDate, releaseTime, dueDate, dueTime string) {
	m.inputs[fieldReleaseDate].SetValue(releaseDate)
	m.inputs[fieldReleaseTime].SetValue(releaseTime)
	m.inputs[fieldDueDate].SetValue(dueDate)
	m.inputs[fieldDueTime].SetValue(dueTime)
}

// SelectFormat picks a grading format by name. It reports false if the
// course has no such grader.
func (m *Modal) SelectFormat(name string) bool {
	for i, f := range m.formats {
		if strings.EqualFold(f, name) {
			m.format = i
			return true
		}
	}
	return false
}

func (m *Modal) ClearRelease() {
	m.inputs[fieldReleaseDate].SetValue("")
	m.inputs[fieldReleaseTime].SetValue("")
}

func (m *Modal) ClearDue() {
	m.inputs[fieldDueDate].SetValue("")
	m.inputs[fieldDueTime].SetValue("")
}

func (m *Modal) setFocus(f field) {
	m.focus = (f + fieldCount) % fieldCount
	for i := range m.inputs {
		if field(i) == m.focus {
			m.inputs[i].Focus()
		} else {
			m.inputs[i].Blur()
		}
	}
}

// BuildUpdate resolves the pickers into the single update Save sends.
func (m *Modal) BuildUpdate() (remote.Update, error) {
	rd, rt, dd, dt := m.Values()
	release, err := ResolveDateTime(rd, rt)
	if err != nil {
		return remote.Update{}, err
	}
	due, err := ResolveDateTime(dd, dt)
	if err != nil {
		return remote.Update{}, err
	}
	format := m.Format()
	return remote.Update{
		Metadata: xblock.PreprocessFieldNames(map[string]any{
			"release_date": isoOrNil(release),
			"due_date":     isoOrNil(due),
		}),
		GraderType: &format,
	}, nil
}

func isoOrNil(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC().Format(time.RFC3339)
}

// Save hides the modal and returns the command that sends the update. The
// command's result arrives after the modal is gone. Unresolvable dates keep
// the modal open with an inline error and send nothing.
func (m *Modal) Save() tea.Cmd {
	if !m.visible || m.node == nil {
		return nil
	}
	u, err := m.BuildUpdate()
	if err != nil {
		m.err = err
		return nil
	}
	m.err = nil
	m.Hide()

	st, id, timeout, log := m.store, m.node.ID, m.timeout, m.log
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		if err := st.UpdateFields(ctx, id, u); err != nil {
			log.Warn("section settings save failed", zap.String("id", id), zap.Error(err))
			return SaveFailedMsg{ID: id, Err: err}
		}
		log.Debug("section settings saved", zap.String("id", id))
		return SavedMsg{ID: id}
	}
}

func (m *Modal) Update(msg tea.Msg) tea.Cmd {
	switch msg := msg.(type) {
	case SavedMsg:
		// Runs whether or not the modal is still showing.
		if m.onSave != nil {
			return m.onSave(msg.ID)
		}
		return nil

	case tea.WindowSizeMsg:
		m.width = msg.Width

	case tea.KeyMsg:
		if !m.visible {
			return nil
		}
		switch msg.String() {
		case "esc", "ctrl+g":
			m.Hide()
			return nil
		case "ctrl+s":
			return m.Save()
		case "tab", "down":
			m.setFocus(m.focus + 1)
			return nil
		case "shift+tab", "up":
			m.setFocus(m.focus - 1)
			return nil
		case "ctrl+r":
			m.ClearRelease()
			return nil
		case "ctrl+d":
			m.ClearDue()
			return nil
		}
		if m.focus == fieldFormat {
			switch msg.String() {
			case "left", "h":
				m.format = (m.format - 1 + len(m.formats)) % len(m.formats)
			case "right", "l", " ":
				m.format = (m.format + 1) % len(m.formats)
			}
			return nil
		}
		var cmd tea.Cmd
		m.inputs[m.focus], cmd = m.inputs[m.focus].Update(msg)
		return cmd
	}
	return nil
}

func (m *Modal) View() string {
	if !m.visible {
		return ""
	}
	bodyW := m.width - 6
	if bodyW < 30 {
		bodyW = 30
	}
	label := func(f field) string {
		if f == m.focus {
			return focusStyle.Inherit(labelStyle).Render(fieldLabels[f])
		}
		return labelStyle.Render(fieldLabels[f])
	}

	lines := []string{titleStyle.Render(m.Title()), ""}
	for i := range m.inputs {
		f := field(i)
		line := label(f) + " " + strings.ReplaceAll(m.inputs[i].View(), "\n", " ")
		if xansi.StringWidth(line) > bodyW {
			line = xansi.Cut(line, 0, bodyW) + "\x1b[0m"
		}
		lines = append(lines, line)
	}
	var opts []string
	for i, f := range m.formats {
		if i == m.format {
			opts = append(opts, formatActive.Render(f))
		} else {
			opts = append(opts, mutedStyle.Render(f))
		}
	}
	lines = append(lines, label(fieldFormat)+" "+strings.Join(opts, " "))
	if m.node != nil && m.node.ReleaseDateFrom != nil {
		lines = append(lines, "", mutedStyle.Render("Release date inherited from "+*m.node.ReleaseDateFrom))
	}
	if m.err != nil {
		lines = append(lines, "", errorStyle.Render(m.err.Error()))
	}
	lines = append(lines, "", mutedStyle.Width(bodyW).Render("tab: next   ctrl+r/ctrl+d: clear release/due   ctrl+s: save   esc: cancel"))
	return boxStyle.Render(strings.Join(lines, "\n"))
}
