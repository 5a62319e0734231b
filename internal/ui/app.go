package ui

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/kmataru/lantern/internal/event"
	"github.com/kmataru/lantern/internal/export"
	"github.com/kmataru/lantern/internal/ingest"
	"github.com/kmataru/lantern/internal/prefs"
	"github.com/kmataru/lantern/internal/store"
	"github.com/kmataru/lantern/internal/view"
)

// Options configures the UI.
type Options struct {
	Context    context.Context
	Pipeline   *ingest.Pipeline
	ViewName   string
	Filter     view.Filter // initial filter, already applied to the view
	ThemeName  string
	PrefsPath  string
	ExportDir  string
	StatusTick time.Duration
}

// Model is the root application state for Bubble Tea.
type Model struct {
	// Configuration
	ctx        context.Context
	pipeline   *ingest.Pipeline
	viewName   string
	prefsPath  string
	exportDir  string
	statusTick time.Duration

	// UI state
	keys     keyMap
	theme    Theme
	width    int
	height   int
	ready    bool
	follow   bool
	showHelp bool

	// Filter state
	filter       view.Filter
	editingQuery bool
	queryInput   textinput.Model

	// Mirrored view contents, maintained from subscriber messages
	entries  []store.Entry
	lines    []string
	degraded bool

	// Log pane
	viewport viewport.Model

	// Transient status notice (export result, filter errors)
	notice      string
	noticeErr   bool
	noticeUntil time.Time
}

// New creates a new Bubble Tea model.
func New(opts Options) Model {
	ctx := opts.Context
	if ctx == nil {
		ctx = context.Background()
	}

	themeName := opts.ThemeName
	if themeName == "" {
		themeName = "Nightfox"
	}

	prefsPath := opts.PrefsPath
	if prefsPath == "" {
		prefsPath = prefs.DefaultPath()
	}

	statusTick := opts.StatusTick
	if statusTick == 0 {
		statusTick = time.Second
	}

	input := textinput.New()
	input.Placeholder = "query"
	input.CharLimit = 256

	return Model{
		ctx:        ctx,
		pipeline:   opts.Pipeline,
		viewName:   opts.ViewName,
		prefsPath:  prefsPath,
		exportDir:  opts.ExportDir,
		statusTick: statusTick,
		keys:       DefaultKeyMap(),
		theme:      GetTheme(themeName),
		follow:     true,
		filter:     opts.Filter,
		queryInput: input,
	}
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	return tea.Batch(
		tea.EnterAltScreen,
		tickCmd(m.statusTick),
	)
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		headerHeight := 2
		footerHeight := 1
		if !m.ready {
			m.viewport = viewport.New(msg.Width, msg.Height-headerHeight-footerHeight)
			m.ready = true
		} else {
			m.viewport.Width = msg.Width
			m.viewport.Height = msg.Height - headerHeight - footerHeight
		}
		m.setContent()
		return m, nil

	case tickMsg:
		if !m.noticeUntil.IsZero() && time.Now().After(m.noticeUntil) {
			m.notice = ""
			m.noticeUntil = time.Time{}
		}
		return m, tea.Batch(tickCmd(m.statusTick), m.probeDegradedCmd())

	case viewResetMsg:
		m.entries = msg
		m.rebuildLines()
		m.setContent()
		if m.follow {
			m.viewport.GotoBottom()
		}
		return m, nil

	case viewAppendMsg:
		m.entries = append(m.entries, msg...)
		styles := m.theme.Styles()
		for _, e := range msg {
			m.lines = append(m.lines, styles.SeverityStyle(e.Record.Severity).Render(formatEntry(e)))
		}
		m.setContent()
		if m.follow {
			m.viewport.GotoBottom()
		}
		return m, nil

	case viewEvictMsg:
		m.dropEvicted(msg)
		m.setContent()
		return m, nil

	case degradedMsg:
		m.degraded = bool(msg)
		return m, nil

	case filterAppliedMsg:
		if msg.err != nil {
			m.setNotice(fmt.Sprintf("filter rejected: %v", msg.err), true)
			return m, nil
		}
		m.filter = msg.filter
		return m, nil

	case exportDoneMsg:
		if msg.err != nil {
			m.setNotice(fmt.Sprintf("export failed: %v", msg.err), true)
		} else {
			m.setNotice("exported "+msg.path, false)
		}
		return m, nil
	}

	return m, nil
}

// View implements tea.Model.
func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}
	if m.showHelp {
		return m.renderHelp()
	}

	var b strings.Builder
	b.WriteString(m.renderHeader())
	b.WriteString("\n")
	b.WriteString(m.viewport.View())
	b.WriteString("\n")
	b.WriteString(m.renderFooter())
	return b.String()
}

// handleKey processes keyboard input.
func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.showHelp {
		// Any key closes help
		m.showHelp = false
		return m, nil
	}

	if m.editingQuery {
		return m.handleQueryKey(msg)
	}

	switch {
	case key.Matches(msg, m.keys.Quit):
		return m, tea.Quit

	case key.Matches(msg, m.keys.Help):
		m.showHelp = true
		return m, nil

	case key.Matches(msg, m.keys.CycleTheme):
		m.theme = GetTheme(NextTheme(m.theme.Name))
		m.rebuildLines()
		m.setContent()
		m.savePrefs()
		return m, nil

	case key.Matches(msg, m.keys.CycleLevel):
		next := m.filter
		if next.MinSeverity >= event.Critical {
			next.MinSeverity = event.Trace
		} else {
			next.MinSeverity++
		}
		return m, m.applyFilterCmd(next)

	case key.Matches(msg, m.keys.EditQuery):
		m.editingQuery = true
		m.queryInput.SetValue(m.filter.Query)
		m.queryInput.CursorEnd()
		m.queryInput.Focus()
		return m, textinput.Blink

	case key.Matches(msg, m.keys.ToggleRegex):
		next := m.filter
		next.Regexp = !next.Regexp
		return m, m.applyFilterCmd(next)

	case key.Matches(msg, m.keys.ToggleCase):
		next := m.filter
		next.CaseSensitive = !next.CaseSensitive
		return m, m.applyFilterCmd(next)

	case key.Matches(msg, m.keys.ToggleFollow):
		m.follow = !m.follow
		if m.follow {
			m.viewport.GotoBottom()
		}
		return m, nil

	case key.Matches(msg, m.keys.Export):
		return m, m.exportCmd()

	case key.Matches(msg, m.keys.Clear):
		return m, m.clearCmd()

	case key.Matches(msg, m.keys.Top):
		m.follow = false
		m.viewport.GotoTop()
		return m, nil

	case key.Matches(msg, m.keys.Bottom):
		m.viewport.GotoBottom()
		return m, nil
	}

	// Manual scrolling leaves follow mode so the viewport stays put.
	switch {
	case key.Matches(msg, m.keys.Up), key.Matches(msg, m.keys.PageUp), key.Matches(msg, m.keys.HalfPageUp):
		m.follow = false
	}

	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	return m, cmd
}

// handleQueryKey processes keyboard input while the query line is focused.
func (m Model) handleQueryKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Confirm):
		m.editingQuery = false
		m.queryInput.Blur()
		next := m.filter
		next.Query = strings.TrimSpace(m.queryInput.Value())
		return m, m.applyFilterCmd(next)

	case key.Matches(msg, m.keys.Escape):
		m.editingQuery = false
		m.queryInput.Blur()
		return m, nil
	}

	var cmd tea.Cmd
	m.queryInput, cmd = m.queryInput.Update(msg)
	return m, cmd
}

// rebuildLines re-renders every mirrored entry with the current theme.
func (m *Model) rebuildLines() {
	styles := m.theme.Styles()
	m.lines = make([]string, 0, len(m.entries))
	for _, e := range m.entries {
		m.lines = append(m.lines, styles.SeverityStyle(e.Record.Severity).Render(formatEntry(e)))
	}
}

// dropEvicted removes evicted entries from the front of the mirror.
// Evictions are always oldest-first, so the evicted set is a prefix.
func (m *Model) dropEvicted(seqs []uint64) {
	if len(seqs) == 0 {
		return
	}
	evicted := make(map[uint64]struct{}, len(seqs))
	for _, s := range seqs {
		evicted[s] = struct{}{}
	}
	n := 0
	for n < len(m.entries) {
		if _, ok := evicted[m.entries[n].Seq]; !ok {
			break
		}
		n++
	}
	m.entries = m.entries[n:]
	m.lines = m.lines[n:]
}

func (m *Model) setContent() {
	if !m.ready {
		return
	}
	m.viewport.SetContent(strings.Join(m.lines, "\n"))
}

func (m *Model) setNotice(text string, isErr bool) {
	m.notice = text
	m.noticeErr = isErr
	m.noticeUntil = time.Now().Add(5 * time.Second)
}

func (m *Model) savePrefs() {
	if m.prefsPath == "" {
		return
	}
	_ = prefs.Save(m.prefsPath, prefs.Prefs{
		Theme: m.theme.Name,
		Level: strings.ToLower(m.filter.MinSeverity.String()),
	})
}

// Messages

type tickMsg time.Time

type viewResetMsg []store.Entry

type viewAppendMsg []store.Entry

type viewEvictMsg []uint64

type degradedMsg bool

type filterAppliedMsg struct {
	filter view.Filter
	err    error
}

type exportDoneMsg struct {
	path string
	err  error
}

// Commands

func tickCmd(d time.Duration) tea.Cmd {
	return tea.Tick(d, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m Model) applyFilterCmd(f view.Filter) tea.Cmd {
	pipeline, name := m.pipeline, m.viewName
	return func() tea.Msg {
		err := pipeline.SetFilter(name, f)
		return filterAppliedMsg{filter: f, err: err}
	}
}

func (m Model) exportCmd() tea.Cmd {
	pipeline, dir := m.pipeline, m.exportDir
	if dir == "" {
		dir = "."
	}
	return func() tea.Msg {
		path := filepath.Join(dir, "lantern-"+time.Now().Format("20060102-150405")+".json")
		err := export.Snapshot(pipeline.Store(), path)
		return exportDoneMsg{path: path, err: err}
	}
}

func (m Model) clearCmd() tea.Cmd {
	pipeline := m.pipeline
	return func() tea.Msg {
		pipeline.Clear()
		return nil
	}
}

func (m Model) probeDegradedCmd() tea.Cmd {
	pipeline, name := m.pipeline, m.viewName
	return func() tea.Msg {
		var degraded bool
		pipeline.Do(func() {
			if v, ok := pipeline.View(name); ok {
				degraded = v.Degraded()
			}
		})
		return degradedMsg(degraded)
	}
}

// forwarder relays coalesced view notifications onto the Bubble Tea
// message queue. Its methods run on the pipeline consumer loop.
type forwarder struct {
	send func(tea.Msg)
}

func (f forwarder) OnReset(entries []store.Entry)    { f.send(viewResetMsg(entries)) }
func (f forwarder) OnAppended(entries []store.Entry) { f.send(viewAppendMsg(entries)) }
func (f forwarder) OnEvicted(seqs []uint64)          { f.send(viewEvictMsg(seqs)) }

// Run starts the Bubble Tea program and blocks until the user quits or
// the context is cancelled.
func Run(opts Options) error {
	m := New(opts)
	ctx := opts.Context
	if ctx == nil {
		ctx = context.Background()
	}
	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx))

	var sub view.Subscription
	go opts.Pipeline.Do(func() {
		v, ok := opts.Pipeline.View(opts.ViewName)
		if !ok {
			return
		}
		fwd := forwarder{send: p.Send}
		sub = v.Subscribe(fwd)
		fwd.OnReset(v.Entries())
	})

	_, err := p.Run()

	opts.Pipeline.Do(func() {
		if v, ok := opts.Pipeline.View(opts.ViewName); ok {
			v.Unsubscribe(sub)
		}
	})
	return err
}
