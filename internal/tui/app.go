package tui

import (
	"context"
	"errors"
	"strings"
	"time"

	"studio-cli/internal/fieldedit"
	"studio-cli/internal/remote"
	"studio-cli/internal/sectionmodal"
	"studio-cli/internal/xblock"

	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"go.uber.org/zap"
)

type outlineLoadedMsg struct {
	seq  int
	root *xblock.Node
	err  error
}

type minibufferTickMsg struct{}

// reloadRequestedMsg asks the model for a sequenced reload.
type reloadRequestedMsg struct{}

const minibufferAutoClearAfter = 4 * time.Second

type appModel struct {
	store   remote.Store
	rootID  string
	timeout time.Duration
	log     *zap.Logger
	watcher *storeWatcher

	width  int
	height int

	root      *xblock.Node
	loadSeq   int
	loading   bool
	collapsed map[string]bool
	list      list.Model

	// One editor per block; an editor outlives a reload while it is saving.
	editors map[string]*fieldedit.Editor
	editing string
	modal   *sectionmodal.Modal

	minibufferText  string
	minibufferErr   bool
	minibufferSetAt time.Time
}

func newAppModel(opts Options) appModel {
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = fieldedit.DefaultTimeout
	}
	m := appModel{
		store:     opts.Store,
		rootID:    strings.TrimSpace(opts.RootID),
		timeout:   timeout,
		log:       log,
		collapsed: map[string]bool{},
		list:      newOutlineList(),
		editors:   map[string]*fieldedit.Editor{},
	}
	m.modal = sectionmodal.New(opts.Store,
		sectionmodal.WithTimeout(timeout),
		sectionmodal.WithLogger(log),
		sectionmodal.WithOnSave(func(string) tea.Cmd {
			return func() tea.Msg { return reloadRequestedMsg{} }
		}),
	)
	return m
}

func (m appModel) Init() tea.Cmd {
	cmds := []tea.Cmd{m.loadCmd(m.loadSeq), tickMinibuffer()}
	if m.watcher != nil {
		cmds = append(cmds, m.watcher.next())
	}
	return tea.Batch(cmds...)
}

func tickMinibuffer() tea.Cmd {
	return tea.Tick(time.Second, func(time.Time) tea.Msg { return minibufferTickMsg{} })
}

// loadCmd fetches the whole outline. Results whose seq is not the latest
// are dropped.
func (m appModel) loadCmd(seq int) tea.Cmd {
	st, id, timeout := m.store, m.rootID, m.timeout
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		root, err := st.Fetch(ctx, id)
		return outlineLoadedMsg{seq: seq, root: root, err: err}
	}
}

func (m *appModel) reload() tea.Cmd {
	m.loadSeq++
	m.loading = true
	return m.loadCmd(m.loadSeq)
}

func (m *appModel) showMinibuffer(text string) {
	m.minibufferText = text
	m.minibufferErr = false
	m.minibufferSetAt = time.Now()
}

func (m *appModel) showError(text string) {
	m.showMinibuffer(text)
	m.minibufferErr = true
}

func (m appModel) selected() *xblock.Node {
	it, ok := m.list.SelectedItem().(outlineRowItem)
	if !ok {
		return nil
	}
	return it.row.node
}

func (m *appModel) refreshRows() {
	selID := ""
	if n := m.selected(); n != nil {
		selID = n.ID
	}
	rows := flattenOutline(m.root, m.collapsed)
	items := make([]list.Item, 0, len(rows))
	idx := 0
	for i, r := range rows {
		items = append(items, outlineRowItem{row: r})
		if r.node.ID == selID {
			idx = i
		}
	}
	m.list.SetItems(items)
	if len(items) > 0 {
		m.list.Select(idx)
	}
}

func (m *appModel) applyLoaded(root *xblock.Node) {
	m.root = root
	// Idle editors are bound to nodes of the old tree; drop them.
	for id, ed := range m.editors {
		if ed.State() == fieldedit.Display {
			delete(m.editors, id)
		}
	}
	m.refreshRows()
}

func (m *appModel) resize() {
	listW, _ := m.paneWidths()
	h := m.height - 4
	if h < 1 {
		h = 1
	}
	m.list.SetSize(listW, h)
	m.modal.SetWidth(min(m.width-4, 72))
}

func (m appModel) paneWidths() (int, int) {
	if m.width < 80 {
		return m.width, 0
	}
	listW := m.width * 11 / 20
	return listW, m.width - listW - 1
}

func (m *appModel) startEdit() tea.Cmd {
	n := m.selected()
	if n == nil {
		return nil
	}
	if n.IsCourse() {
		m.showMinibuffer("Course name is edited in course settings")
		return nil
	}
	ed, ok := m.editors[n.ID]
	if !ok {
		ed = fieldedit.New(n, "display_name", "Display name", m.store,
			fieldedit.WithTimeout(m.timeout),
			fieldedit.WithLogger(m.log),
		)
		m.editors[n.ID] = ed
	}
	if err := ed.Activate(); err != nil {
		if errors.Is(err, fieldedit.ErrBusy) {
			m.showMinibuffer("Still saving " + n.DisplayName)
			return nil
		}
		m.showError(err.Error())
		return nil
	}
	m.editing = n.ID
	return nil
}

func (m *appModel) openSettings() {
	n := m.selected()
	if n == nil {
		return
	}
	if !n.IsChapter() && !n.IsSequential() {
		m.showMinibuffer("Settings are available for sections and subsections")
		return
	}
	graders := sectionmodal.GradersFor(n)
	if len(graders) == 0 && m.root != nil {
		graders, _ = m.root.Graders()
	}
	m.modal.Open(n, graders)
}

func (m appModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.resize()
		return m, nil

	case outlineLoadedMsg:
		if msg.seq != m.loadSeq {
			return m, nil
		}
		m.loading = false
		if msg.err != nil {
			m.log.Warn("outline load failed", zap.String("id", m.rootID), zap.Error(msg.err))
			m.showError("Load failed: " + msg.err.Error())
			return m, nil
		}
		m.applyLoaded(msg.root)
		return m, nil

	case reloadRequestedMsg:
		return m, m.reload()

	case storeChangedMsg:
		var cmds []tea.Cmd
		if m.watcher != nil {
			cmds = append(cmds, m.watcher.next())
		}
		cmds = append(cmds, m.reload())
		return m, tea.Batch(cmds...)

	case minibufferTickMsg:
		if m.minibufferText != "" && time.Since(m.minibufferSetAt) > minibufferAutoClearAfter {
			m.minibufferText = ""
			m.minibufferErr = false
		}
		return m, tickMinibuffer()

	case fieldedit.SavedMsg:
		m.showMinibuffer("Saved: " + msg.Value)
		if ed := m.editors[msg.ID]; ed != nil && m.root != nil {
			// The tree was replaced while saving; the committed value lives on
			// the old node.
			if n, ok := m.root.Find(msg.ID); ok && n != ed.Node() {
				return m, m.reload()
			}
		}
		m.refreshRows()
		return m, nil

	case fieldedit.FailedMsg:
		switch msg.Err.Kind {
		case fieldedit.ReadFailed:
			m.showError("Saved, but refresh failed: " + msg.Err.Err.Error())
		default:
			m.showError("Save failed: " + msg.Err.Err.Error())
		}
		m.refreshRows()
		return m, nil

	case sectionmodal.SavedMsg:
		m.showMinibuffer("Settings saved")
		return m, m.modal.Update(msg)

	case sectionmodal.SaveFailedMsg:
		m.showError("Settings not saved: " + msg.Err.Error())
		return m, nil

	case tea.KeyMsg:
		return m.updateKey(msg)
	}

	for _, ed := range m.editors {
		if ed.Owns(msg) {
			cmd := ed.Update(msg)
			if ed.State() == fieldedit.Display && m.editing == ed.Node().ID {
				m.editing = ""
			}
			return m, cmd
		}
	}
	return m, nil
}

func (m appModel) updateKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.String() == "ctrl+c" {
		return m, tea.Quit
	}
	if m.modal.Visible() {
		return m, m.modal.Update(msg)
	}
	if m.editing != "" {
		ed := m.editors[m.editing]
		if ed == nil {
			m.editing = ""
			return m, nil
		}
		cmd := ed.Update(msg)
		if ed.State() != fieldedit.Editing {
			m.editing = ""
		}
		return m, cmd
	}

	switch msg.String() {
	case "q":
		return m, tea.Quit
	case "r":
		m.showMinibuffer("Reloading…")
		return m, m.reload()
	case "e", "enter":
		return m, m.startEdit()
	case "s":
		m.openSettings()
		return m, nil
	case " ", "tab":
		if n := m.selected(); n != nil && n.HasChildren() {
			m.collapsed[n.ID] = !m.collapsed[n.ID]
			m.refreshRows()
		}
		return m, nil
	}
	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)
	return m, cmd
}

func (m appModel) View() string {
	if m.width == 0 {
		return ""
	}
	header := m.headerView()
	body := m.bodyView()
	footer := []string{m.editorLine(), m.minibufferLine(), m.helpLine()}
	return lipgloss.JoinVertical(lipgloss.Left, header, body, strings.Join(footer, "\n"))
}

func (m appModel) headerView() string {
	title := "Course outline"
	if m.root != nil {
		title = m.root.DisplayName
		for _, a := range m.root.Ancestors() {
			title = a.DisplayName + glyphSep() + title
		}
	}
	if m.loading {
		title += styleMuted().Render("  loading…")
	}
	return lipgloss.NewStyle().Bold(true).Width(m.width).Render(title)
}

func (m appModel) bodyView() string {
	h := m.height - 4
	if h < 1 {
		h = 1
	}
	if m.modal.Visible() {
		return lipgloss.Place(m.width, h, lipgloss.Center, lipgloss.Center, m.modal.View())
	}
	if m.root == nil {
		return lipgloss.Place(m.width, h, lipgloss.Center, lipgloss.Center, styleMuted().Render("No outline loaded"))
	}
	listW, detailW := m.paneWidths()
	left := lipgloss.NewStyle().Width(listW).Height(h).Render(m.list.View())
	if detailW <= 0 {
		return left
	}
	detail := renderMarkdown(nodeSummaryMarkdown(m.selected()), detailW-2)
	right := lipgloss.NewStyle().
		Width(detailW).
		Height(h).
		MaxHeight(h).
		BorderStyle(lipgloss.NormalBorder()).
		BorderLeft(true).
		BorderForeground(colorMuted).
		Render(detail)
	return lipgloss.JoinHorizontal(lipgloss.Top, left, right)
}

func (m appModel) editorLine() string {
	if m.editing != "" {
		if ed := m.editors[m.editing]; ed != nil {
			return ed.View()
		}
	}
	for _, ed := range m.editors {
		if ed.State() == fieldedit.Saving {
			return ed.View()
		}
	}
	return ""
}

func (m appModel) minibufferLine() string {
	if m.minibufferText == "" {
		return ""
	}
	if m.minibufferErr {
		return styleError().Render(m.minibufferText)
	}
	return styleChrome().Render(m.minibufferText)
}

func (m appModel) helpLine() string {
	var help string
	switch {
	case m.modal.Visible():
		help = "tab: next field   ctrl+s: save   esc: cancel"
	case m.editing != "":
		help = "enter: save   esc: cancel"
	default:
		help = "e: rename   s: settings   space: fold   r: reload   q: quit"
	}
	return styleMuted().Width(m.width).Render(help)
}
