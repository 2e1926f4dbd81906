// Package app contains the root application model.
package app

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textarea"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	zone "github.com/lrstanley/bubblezone"

	"github.com/zjrosen/agentdesk/internal/attach"
	"github.com/zjrosen/agentdesk/internal/bridge/channel"
	"github.com/zjrosen/agentdesk/internal/config"
	"github.com/zjrosen/agentdesk/internal/flags"
	"github.com/zjrosen/agentdesk/internal/keys"
	"github.com/zjrosen/agentdesk/internal/library"
	"github.com/zjrosen/agentdesk/internal/log"
	"github.com/zjrosen/agentdesk/internal/orchestrator"
	"github.com/zjrosen/agentdesk/internal/projection"
	"github.com/zjrosen/agentdesk/internal/pubsub"
	"github.com/zjrosen/agentdesk/internal/session"
	"github.com/zjrosen/agentdesk/internal/transport/wstransport"
	"github.com/zjrosen/agentdesk/internal/ui/commandpalette"
	"github.com/zjrosen/agentdesk/internal/ui/composer"
	"github.com/zjrosen/agentdesk/internal/ui/logoverlay"
	"github.com/zjrosen/agentdesk/internal/ui/styles"
	"github.com/zjrosen/agentdesk/internal/ui/toaster"
	"github.com/zjrosen/agentdesk/internal/ui/transcript"
	"github.com/zjrosen/agentdesk/internal/watcher"
)

// Services are the collaborators the root model drives. Optional fields may
// be nil.
type Services struct {
	Orchestrator *orchestrator.Orchestrator
	Channel      *channel.Channel
	Attach       *attach.Pipeline
	Prompts      library.PromptRepository
	Cwds         library.CwdRepository
	Flags        *flags.Registry
	Watcher      *watcher.Watcher
	// Connection reports WebSocket state; nil when running on the loopback.
	Connection *pubsub.Broker[wstransport.State]
	LoadConfig func() (config.Config, error)
	DetectDark func() bool
	ConfigPath string
}

// Options are per-launch settings from the command line.
type Options struct {
	Cwd         string
	Attachments []string
}

// Palette item ids.
const (
	cmdNewTask      = "new-task"
	cmdInsertPrompt = "insert-prompt"
	cmdThemeLight   = "theme-light"
	cmdThemeDark    = "theme-dark"
	cmdThemeSystem  = "theme-system"
)

type paletteKind int

const (
	paletteNone paletteKind = iota
	paletteCommands
	palettePrompts
)

// composerHeight is the input box (3 rows plus border) and the status row.
const composerHeight = 6

type sendDoneMsg struct {
	err     error
	started bool
	emitted bool
}

type attachDoneMsg struct {
	res attach.Result
}

type recentCwdMsg struct {
	cwd string
	err error
}

type promptsLoadedMsg struct {
	prompts []*library.Prompt
	err     error
}

type themeSavedMsg struct {
	theme string
	err   error
}

type configReloadedMsg struct {
	cfg config.Config
	err error
}

type logEntryMsg struct {
	entry string
}

// Model is the root application state.
type Model struct {
	svc Services
	h   orchestrator.Handles
	cfg config.Config

	ctx         context.Context
	cancel      context.CancelFunc
	unsubscribe func()

	sessions *pubsub.ContinuousListener[session.Session]
	buffer   *pubsub.ContinuousListener[string]
	changes  *pubsub.ContinuousListener[watcher.WatcherEvent]
	conn     *pubsub.ContinuousListener[wstransport.State]
	logFeed  *log.LogListener

	composer   composer.Model
	transcript transcript.Model
	toaster    toaster.Model
	palette    commandpalette.Model
	logs       logoverlay.Model
	paletteFor paletteKind
	prompts    map[string]*library.Prompt

	activeID    string
	startsInFly int
	connState   wstransport.State
	cwd         string
	mode        string
	attachments []string

	// awaitStart is set while a start from this model may still produce a
	// new session; the first matching one created after startBase advances
	// is adopted.
	awaitStart bool
	startBase  uint64

	width  int
	height int
}

// New wires the root model. Server events from svc.Channel are folded into
// the orchestrator's registry for the lifetime of the model.
func New(svc Services, cfg config.Config, opts Options) Model {
	ctx, cancel := context.WithCancel(context.Background())
	h := svc.Orchestrator.Handles()

	m := Model{
		svc:         svc,
		h:           h,
		cfg:         cfg,
		ctx:         ctx,
		cancel:      cancel,
		sessions:    pubsub.NewContinuousListener(ctx, h.Registry.Broker()),
		buffer:      pubsub.NewContinuousListener(ctx, h.Buffer.Broker()),
		composer:    composer.New(),
		toaster:     toaster.New(),
		logs:        logoverlay.New(logoverlay.DefaultCapacity),
		logFeed:     log.NewListener(ctx),
		cwd:         strings.TrimSpace(opts.Cwd),
		attachments: opts.Attachments,
		connState:   wstransport.StateConnected,
	}
	if svc.Channel != nil {
		m.unsubscribe = svc.Channel.Subscribe(h.Registry.Apply)
	}
	if svc.Watcher != nil && svc.LoadConfig != nil {
		m.changes = pubsub.NewContinuousListener(ctx, svc.Watcher.Broker())
	}
	if svc.Connection != nil {
		m.conn = pubsub.NewContinuousListener(ctx, svc.Connection)
		m.connState = wstransport.StateConnecting
	}
	if m.cwd == "" {
		m.cwd = strings.TrimSpace(cfg.Session.DefaultCwd)
	}

	m.mode = styles.Apply(cfg.UI.Theme, svc.DetectDark)
	m.transcript = transcript.New(
		svc.Flags.Enabled(flags.FlagMarkdownTranscript),
		styles.MarkdownStyle(cfg.UI.MarkdownStyle, m.mode),
	)
	svc.Orchestrator.SetAllowedTools(cfg.Session.AllowedTools)

	m.composer = m.composer.SetCwd(m.cwd).SetValue(h.Buffer.Value())
	return m.sync()
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	cmds := []tea.Cmd{
		textarea.Blink,
		m.sessions.Listen(),
		m.buffer.ListenLatest(),
	}
	if m.changes != nil {
		cmds = append(cmds, m.changes.ListenLatest())
	}
	if m.conn != nil {
		cmds = append(cmds, m.conn.ListenLatest())
	}
	if m.logFeed != nil {
		cmds = append(cmds, m.listenLogs())
	}
	if m.cwd == "" && m.svc.Cwds != nil {
		cmds = append(cmds, m.loadRecentCwd())
	}
	if len(m.attachments) > 0 {
		cmds = append(cmds, m.attachCmd(m.attachments))
	}
	return tea.Batch(cmds...)
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.composer = m.composer.SetWidth(msg.Width)
		m.transcript = m.transcript.SetSize(msg.Width, max(msg.Height-composerHeight-1, 1))
		m.palette = m.palette.SetSize(msg.Width, msg.Height)
		m.logs = m.logs.SetSize(msg.Width, msg.Height)
		return m, nil

	case tea.KeyMsg:
		if m.logs.Visible() {
			var cmd tea.Cmd
			m.logs, cmd = m.logs.Update(msg)
			return m, cmd
		}
		if m.paletteFor != paletteNone {
			var cmd tea.Cmd
			m.palette, cmd = m.palette.Update(msg)
			return m, cmd
		}
		return m.handleKey(msg)

	case tea.MouseMsg:
		if msg.Button == tea.MouseButtonWheelUp || msg.Button == tea.MouseButtonWheelDown {
			var cmd tea.Cmd
			m.transcript, cmd = m.transcript.Update(msg)
			return m, cmd
		}
		var cmd tea.Cmd
		m.composer, cmd = m.composer.Update(msg)
		return m, cmd

	case composer.ButtonPressedMsg:
		if msg.Action == projection.ActionStop {
			return m.stop()
		}
		return m.send()

	case pubsub.Event[session.Session]:
		if m.awaitStart && msg.Type == pubsub.CreatedEvent && m.isOwnStart(msg.Payload) {
			m.activeID = msg.Payload.ID
			m.awaitStart = false
			log.Info(log.CatUI, "Following new session", "id", m.activeID)
		}
		return m.sync(), m.sessions.Listen()

	case pubsub.Event[string]:
		m.composer = m.composer.SetValue(m.h.Buffer.Value())
		return m, m.buffer.ListenLatest()

	case pubsub.Event[watcher.WatcherEvent]:
		if msg.Payload.Removed {
			return m, m.changes.ListenLatest()
		}
		load := m.svc.LoadConfig
		return m, tea.Batch(m.changes.ListenLatest(), func() tea.Msg {
			cfg, err := load()
			return configReloadedMsg{cfg: cfg, err: err}
		})

	case pubsub.Event[wstransport.State]:
		m.connState = msg.Payload
		return m.sync(), m.conn.ListenLatest()

	case sendDoneMsg:
		if msg.started {
			m.startsInFly = max(m.startsInFly-1, 0)
			if !msg.emitted {
				m.awaitStart = false
			}
		}
		m = m.sync()
		if msg.err != nil {
			return m.showError(msg.err)
		}
		return m, nil

	case attachDoneMsg:
		return m.handleAttachDone(msg.res)

	case recentCwdMsg:
		if msg.err != nil {
			log.Warn(log.CatUI, "Failed to load recent working directories", "error", msg.err)
			return m, nil
		}
		if m.cwd == "" && msg.cwd != "" {
			m.cwd = msg.cwd
			m.composer = m.composer.SetCwd(m.cwd)
		}
		return m, nil

	case promptsLoadedMsg:
		return m.openPromptPicker(msg)

	case commandpalette.SelectMsg:
		kind := m.paletteFor
		m.paletteFor = paletteNone
		if kind == palettePrompts {
			return m.insertPrompt(msg.Item.ID)
		}
		return m.runCommand(msg.Item.ID)

	case commandpalette.CancelMsg:
		m.paletteFor = paletteNone
		return m, nil

	case themeSavedMsg:
		if msg.err != nil {
			log.ErrorErr(log.CatConfig, "Failed to save theme", msg.err, "theme", msg.theme)
			return m.toast("Theme applied but could not be saved", toaster.StyleWarn)
		}
		return m, nil

	case configReloadedMsg:
		return m.applyConfig(msg)

	case logEntryMsg:
		m.logs = m.logs.Append(msg.entry)
		return m, m.listenLogs()

	case logoverlay.CloseMsg:
		return m, nil

	case toaster.DismissMsg:
		m.toaster = m.toaster.Update(msg)
		return m, nil
	}

	var cmd tea.Cmd
	m.composer, cmd = m.composer.Update(msg)
	return m, cmd
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, keys.App.Quit):
		return m, tea.Quit
	case key.Matches(msg, keys.App.Palette):
		return m.openCommands()
	case key.Matches(msg, keys.App.NewTask):
		return m.newTask()
	case key.Matches(msg, keys.App.Logs):
		if m.logFeed == nil {
			return m.toast("Logs are only kept with --debug", toaster.StyleInfo)
		}
		m.logs = m.logs.Toggle()
		return m, nil
	case key.Matches(msg, keys.App.Stop):
		return m.stop()
	case key.Matches(msg, keys.App.ScrollUp):
		m.transcript = m.transcript.ScrollUp()
		return m, nil
	case key.Matches(msg, keys.App.ScrollDown):
		m.transcript = m.transcript.ScrollDown()
		return m, nil
	case msg.Paste:
		if m.svc.Flags.Enabled(flags.FlagPasteDrop) && m.svc.Attach != nil {
			if paths, ok := attach.ParseDroppedPaths(string(msg.Runes)); ok {
				log.Debug(log.CatUI, "Paste treated as file drop", "files", len(paths))
				return m, m.attachCmd(paths)
			}
		}
	case key.Matches(msg, keys.App.Send):
		return m.send()
	}
	return m.edit(msg)
}

// edit forwards input to the composer and writes the result back to the
// buffer only if nothing else changed it in between.
func (m Model) edit(msg tea.Msg) (tea.Model, tea.Cmd) {
	before := m.h.Buffer.Value()
	m.composer = m.composer.SetValue(before)

	var cmd tea.Cmd
	m.composer, cmd = m.composer.Update(msg)

	if after := m.composer.Value(); after != before && !m.h.Buffer.CompareAndSet(before, after) {
		m.composer = m.composer.SetValue(m.h.Buffer.Value())
	}
	return m, cmd
}

func (m Model) send() (tea.Model, tea.Cmd) {
	if strings.TrimSpace(m.h.Buffer.Value()) == "" {
		return m, nil
	}
	// Same gate as the send button; the buffer is left untouched.
	if v := m.view(); v.EntryDisabled || v.Starting {
		return m, nil
	}
	o := m.svc.Orchestrator
	ctx := m.ctx
	active := m.activeID
	cwd := m.cwd

	if active != "" {
		return m, func() tea.Msg {
			return sendDoneMsg{err: o.Send(ctx, active, "")}
		}
	}

	base := o.StartCount()
	m.startsInFly++
	m.awaitStart = true
	m.startBase = base
	m = m.sync()
	return m, func() tea.Msg {
		err := o.StartFromSurface(ctx, cwd)
		return sendDoneMsg{err: err, started: true, emitted: o.StartCount() > base}
	}
}

// isOwnStart reports whether s looks like the session created by this
// model's last start. Sessions the backend creates for other reasons, such as
// list replies or other clients, disagree on title or cwd.
func (m Model) isOwnStart(s session.Session) bool {
	o := m.svc.Orchestrator
	if o.StartCount() <= m.startBase {
		return false
	}
	start, ok := o.LastStart()
	if !ok {
		return false
	}
	if s.Title != "" && s.Title != start.Title {
		return false
	}
	return s.Cwd == "" || s.Cwd == start.Cwd
}

func (m Model) stop() (tea.Model, tea.Cmd) {
	v := m.view()
	if !v.ShowStop {
		return m, nil
	}
	o, ctx, id := m.svc.Orchestrator, m.ctx, m.activeID
	return m, func() tea.Msg {
		o.Stop(ctx, id)
		return nil
	}
}

func (m Model) newTask() (tea.Model, tea.Cmd) {
	m.activeID = ""
	m.awaitStart = false
	return m.sync(), nil
}

func (m Model) attachCmd(paths []string) tea.Cmd {
	p, ctx := m.svc.Attach, m.ctx
	if p == nil {
		return nil
	}
	return func() tea.Msg {
		return attachDoneMsg{res: p.Attach(ctx, paths)}
	}
}

func (m Model) handleAttachDone(res attach.Result) (tea.Model, tea.Cmd) {
	switch {
	case len(res.Failed) > 0 && len(res.Attached) == 0:
		return m.toast(fmt.Sprintf("Could not attach %s", describeFailures(res.Failed)), toaster.StyleError)
	case len(res.Failed) > 0:
		return m.toast(fmt.Sprintf("Attached %d file(s); skipped %s", len(res.Attached), describeFailures(res.Failed)), toaster.StyleWarn)
	case len(res.Attached) > 0:
		return m.toast(fmt.Sprintf("Attached %d file(s)", len(res.Attached)), toaster.StyleSuccess)
	}
	return m, nil
}

func describeFailures(failed []attach.Failure) string {
	names := make([]string, 0, len(failed))
	for _, f := range failed {
		names = append(names, f.Path)
	}
	return strings.Join(names, ", ")
}

// listenLogs waits for the next log entry. Log and buffer events share a
// payload type, so entries are rewrapped.
func (m Model) listenLogs() tea.Cmd {
	next := m.logFeed.Listen()
	return func() tea.Msg {
		if ev, ok := next().(pubsub.Event[string]); ok {
			return logEntryMsg{entry: ev.Payload}
		}
		return nil
	}
}

func (m Model) loadRecentCwd() tea.Cmd {
	repo, ctx := m.svc.Cwds, m.ctx
	return func() tea.Msg {
		recent, err := repo.Recent(ctx, 1)
		if err != nil || len(recent) == 0 {
			return recentCwdMsg{err: err}
		}
		return recentCwdMsg{cwd: recent[0]}
	}
}

func (m Model) openCommands() (tea.Model, tea.Cmd) {
	m.palette = commandpalette.New(commandpalette.Config{
		Title:       "Commands",
		Placeholder: "Type a command...",
		Items: []commandpalette.Item{
			{ID: cmdNewTask, Name: "New Task", Description: "Start a new session on the next send"},
			{ID: cmdInsertPrompt, Name: "Insert Prompt...", Description: "Append a saved prompt to the input"},
			{ID: cmdThemeLight, Name: "Light Mode", Description: "Use the light theme"},
			{ID: cmdThemeDark, Name: "Dark Mode", Description: "Use the dark theme"},
			{ID: cmdThemeSystem, Name: "System Theme", Description: "Follow the terminal background"},
		},
	}).SetSize(m.width, m.height)
	m.paletteFor = paletteCommands
	return m, nil
}

func (m Model) runCommand(id string) (tea.Model, tea.Cmd) {
	switch id {
	case cmdNewTask:
		return m.newTask()
	case cmdInsertPrompt:
		if m.svc.Prompts == nil {
			return m.toast("Prompt library is unavailable", toaster.StyleWarn)
		}
		repo, ctx := m.svc.Prompts, m.ctx
		return m, func() tea.Msg {
			prompts, err := repo.List(ctx)
			return promptsLoadedMsg{prompts: prompts, err: err}
		}
	case cmdThemeLight:
		return m.setTheme(config.ThemeLight)
	case cmdThemeDark:
		return m.setTheme(config.ThemeDark)
	case cmdThemeSystem:
		return m.setTheme(config.ThemeSystem)
	}
	return m, nil
}

func (m Model) openPromptPicker(msg promptsLoadedMsg) (tea.Model, tea.Cmd) {
	if msg.err != nil {
		log.ErrorErr(log.CatUI, "Failed to list prompts", msg.err)
		return m.toast("Failed to load saved prompts", toaster.StyleError)
	}
	if len(msg.prompts) == 0 {
		return m.toast("No saved prompts. Add one with: agentdesk prompts add", toaster.StyleInfo)
	}

	m.prompts = make(map[string]*library.Prompt, len(msg.prompts))
	items := make([]commandpalette.Item, 0, len(msg.prompts))
	for _, p := range msg.prompts {
		m.prompts[p.ID] = p
		first, _, _ := strings.Cut(strings.TrimSpace(p.Content), "\n")
		items = append(items, commandpalette.Item{ID: p.ID, Name: p.Title, Description: first})
	}
	m.palette = commandpalette.New(commandpalette.Config{
		Title:       "Insert Prompt",
		Placeholder: "Search prompts...",
		Items:       items,
	}).SetSize(m.width, m.height)
	m.paletteFor = palettePrompts
	return m, nil
}

func (m Model) insertPrompt(id string) (tea.Model, tea.Cmd) {
	p, ok := m.prompts[id]
	if !ok {
		return m, nil
	}
	m.composer = m.composer.SetValue(m.h.Buffer.InsertPrompt(p.Content))
	return m, nil
}

func (m Model) setTheme(theme string) (tea.Model, tea.Cmd) {
	m.cfg.UI.Theme = theme
	m = m.applyTheme()
	path := m.svc.ConfigPath
	if path == "" {
		return m, nil
	}
	return m, func() tea.Msg {
		return themeSavedMsg{theme: theme, err: config.SaveTheme(path, theme)}
	}
}

func (m Model) applyTheme() Model {
	m.mode = styles.Apply(m.cfg.UI.Theme, m.svc.DetectDark)
	m.transcript = m.transcript.SetStyle(styles.MarkdownStyle(m.cfg.UI.MarkdownStyle, m.mode))
	return m
}

func (m Model) applyConfig(msg configReloadedMsg) (tea.Model, tea.Cmd) {
	if msg.err != nil {
		log.ErrorErr(log.CatConfig, "Config reload failed", msg.err)
		return m.toast("Config reload failed: "+msg.err.Error(), toaster.StyleError)
	}
	prev := m.cfg
	m.cfg = msg.cfg
	if prev.UI.Theme != m.cfg.UI.Theme || prev.UI.MarkdownStyle != m.cfg.UI.MarkdownStyle {
		m = m.applyTheme()
	}
	m.svc.Orchestrator.SetAllowedTools(m.cfg.Session.AllowedTools)
	log.Info(log.CatConfig, "Config reloaded", "theme", m.cfg.UI.Theme, "allowed_tools", m.svc.Orchestrator.AllowedTools())
	return m.toast("Config reloaded", toaster.StyleInfo)
}

func (m Model) showError(err error) (tea.Model, tea.Cmd) {
	var ue *orchestrator.UserError
	if errors.As(err, &ue) {
		return m.toast(ue.Message, toaster.StyleError)
	}
	log.ErrorErr(log.CatUI, "Send failed", err)
	return m.toast("Send failed", toaster.StyleError)
}

func (m Model) toast(text string, style toaster.Style) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	m.toaster, cmd = m.toaster.Show(text, style, toaster.DefaultDuration)
	return m, cmd
}

func (m Model) view() projection.View {
	pending := m.h.Pending.Active() || m.startsInFly > 0
	disabled := m.connState != wstransport.StateConnected
	return projection.Derive(m.h.Registry, m.activeID, pending, disabled)
}

// sync re-derives the projection and pushes it to the child views.
func (m Model) sync() Model {
	v := m.view()
	m.composer = m.composer.SetView(v)
	m.transcript = m.transcript.SetSession(v.Active)
	return m
}

// View implements tea.Model.
func (m Model) View() string {
	body := lipgloss.JoinVertical(lipgloss.Left,
		m.transcript.View(),
		m.composer.View(),
		m.footer(),
	)
	if m.toaster.Visible() {
		body = m.toaster.Overlay(body, m.width, m.height)
	}
	if m.paletteFor != paletteNone {
		body = m.palette.Overlay(body)
	}
	body = m.logs.Overlay(body)
	return zone.Scan(body)
}

func (m Model) footer() string {
	conn := "offline"
	if m.conn != nil {
		conn = m.connState.String()
	}
	var help []string
	for _, b := range keys.App.ShortHelp() {
		help = append(help, b.Help().Key+" "+b.Help().Desc)
	}
	return styles.MutedStyle.Render(conn + " · " + strings.Join(help, " · "))
}

// ActiveID returns the session the composer targets.
func (m Model) ActiveID() string {
	return m.activeID
}

// Close releases subscriptions held by the model.
func (m *Model) Close() error {
	if m.unsubscribe != nil {
		m.unsubscribe()
		m.unsubscribe = nil
	}
	m.cancel()
	return nil
}
