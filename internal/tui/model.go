// Package tui provides the Bubble Tea control panel.
package tui

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/verte-zerg/fanpanel/internal/format"
	"github.com/verte-zerg/fanpanel/internal/model"
	"github.com/verte-zerg/fanpanel/internal/panel"
	"github.com/verte-zerg/fanpanel/internal/stats"
)

const refreshInterval = 250 * time.Millisecond

// Controller is the panel surface the UI drives.
type Controller interface {
	Snapshot() panel.Snapshot
	Connect(ctx context.Context, reuse bool) error
	StartData(ctx context.Context) error
	Disconnect() error
	Send(ctx context.Context, cmd panel.Command) error
	SetAsText(on bool)
	SetServiceUUID(uuid string)
	ResetHistory(ctx context.Context) error
}

// LogSource provides the lines shown in the log pane.
type LogSource interface {
	Lines() []string
	Clear()
}

type tickMsg time.Time

type actionMsg struct {
	op  string
	err error
}

var (
	titleStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#F0F0F0")).Bold(true)
	headerStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#6E6E6E"))
	okStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("#52C41A"))
	warnStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#C89A3A"))
	errorStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF4D4F"))
	cardStyle   = lipgloss.NewStyle().
			Padding(0, 1).
			Border(lipgloss.RoundedBorder(), true).
			BorderForeground(lipgloss.Color("#4A4A4A"))
	cardTitleStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#8C8C8C"))
	cardValueStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#F0F0F0")).Bold(true)
	logStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("#B8B8B8"))
)

// Model implements the Bubble Tea control panel.
type Model struct {
	ctx     context.Context
	ctrl    Controller
	logs    LogSource
	history stats.Source
	now     func() time.Time

	keys keyMap
	help help.Model
	snap panel.Snapshot
	busy bool

	logView     viewport.Model
	historyMode bool
	historyView viewport.Model

	inputMode bool
	input     textinput.Model

	width  int
	height int
}

// NewModel constructs the control panel UI.
func NewModel(ctx context.Context, ctrl Controller, logs LogSource, history stats.Source) *Model {
	input := textinput.New()
	input.Prompt = "Service UUID: "
	input.Placeholder = "0000fff0-0000-1000-8000-00805f9b34fb"
	input.CharLimit = 64

	m := &Model{
		ctx:         ctx,
		ctrl:        ctrl,
		logs:        logs,
		history:     history,
		now:         time.Now,
		keys:        defaultKeyMap(),
		help:        help.New(),
		logView:     viewport.New(0, 0),
		historyView: viewport.New(0, 0),
		input:       input,
	}
	m.refresh()
	return m
}

// Init implements tea.Model.
func (m *Model) Init() tea.Cmd {
	return tick()
}

func tick() tea.Cmd {
	return tea.Tick(refreshInterval, func(t time.Time) tea.Msg { return tickMsg(t) })
}

// Update implements tea.Model.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.updateLayout()
		return m, nil
	case tickMsg:
		m.refresh()
		return m, tick()
	case actionMsg:
		m.busy = false
		m.refresh()
		return m, nil
	case tea.KeyMsg:
		if m.inputMode {
			return m.updateInput(msg)
		}
		return m.handleKey(msg)
	}
	return m, nil
}

func (m *Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.Connect):
		return m.start("connect", func(ctx context.Context) error { return m.ctrl.Connect(ctx, false) })
	case key.Matches(msg, m.keys.Reconnect):
		return m.start("reconnect", func(ctx context.Context) error { return m.ctrl.Connect(ctx, true) })
	case key.Matches(msg, m.keys.Disconnect):
		return m, m.run("disconnect", func(context.Context) error { return m.ctrl.Disconnect() })
	case key.Matches(msg, m.keys.Start):
		return m.start("start", m.ctrl.StartData)
	case key.Matches(msg, m.keys.Power):
		return m, m.send(panel.CommandPower)
	case key.Matches(msg, m.keys.Standard):
		return m, m.send(panel.CommandStandard)
	case key.Matches(msg, m.keys.Turbo):
		return m, m.send(panel.CommandTurbo)
	case key.Matches(msg, m.keys.AsText):
		m.ctrl.SetAsText(!m.snap.AsText)
		m.refresh()
		return m, nil
	case key.Matches(msg, m.keys.Service):
		m.inputMode = true
		m.input.SetValue(m.snap.ServiceUUID)
		m.input.CursorEnd()
		return m, m.input.Focus()
	case key.Matches(msg, m.keys.History):
		m.historyMode = !m.historyMode
		if m.historyMode {
			m.renderHistory()
		}
		return m, nil
	case key.Matches(msg, m.keys.ClearLog):
		m.logs.Clear()
		m.refresh()
		return m, nil
	case key.Matches(msg, m.keys.Reset):
		return m, m.run("reset", m.ctrl.ResetHistory)
	}
	var cmd tea.Cmd
	if m.historyMode {
		m.historyView, cmd = m.historyView.Update(msg)
	} else {
		m.logView, cmd = m.logView.Update(msg)
	}
	return m, cmd
}

func (m *Model) updateInput(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEnter:
		m.ctrl.SetServiceUUID(m.input.Value())
		m.inputMode = false
		m.input.Blur()
		m.refresh()
		return m, nil
	case tea.KeyEsc:
		m.inputMode = false
		m.input.Blur()
		return m, nil
	case tea.KeyCtrlC:
		return m, tea.Quit
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// start runs a connection step and blocks further steps until it finishes.
func (m *Model) start(op string, fn func(context.Context) error) (tea.Model, tea.Cmd) {
	m.busy = true
	m.keys.apply(m.snap, m.busy)
	return m, m.run(op, fn)
}

func (m *Model) run(op string, fn func(context.Context) error) tea.Cmd {
	ctx := m.ctx
	return func() tea.Msg {
		return actionMsg{op: op, err: fn(ctx)}
	}
}

func (m *Model) send(cmd panel.Command) tea.Cmd {
	return m.run(string(cmd), func(ctx context.Context) error { return m.ctrl.Send(ctx, cmd) })
}

// refresh pulls the latest snapshot and log lines.
func (m *Model) refresh() {
	m.snap = m.ctrl.Snapshot()
	m.keys.apply(m.snap, m.busy)

	atBottom := m.logView.AtBottom()
	m.logView.SetContent(logStyle.Render(strings.Join(truncateLines(m.logs.Lines(), m.width), "\n")))
	if atBottom {
		m.logView.GotoBottom()
	}
}

func (m *Model) updateLayout() {
	if m.width <= 0 || m.height <= 0 {
		return
	}
	bodyHeight := m.height - lipgloss.Height(m.renderHeader()) - lipgloss.Height(m.renderCards()) - lipgloss.Height(m.renderFooter())
	if bodyHeight < 1 {
		bodyHeight = 1
	}
	m.logView.Width = m.width
	m.logView.Height = bodyHeight
	m.historyView.Width = m.width
	m.historyView.Height = bodyHeight + lipgloss.Height(m.renderCards())
	m.help.Width = m.width
	m.input.Width = m.width - lipgloss.Width(m.input.Prompt) - 1
	m.refresh()
	if m.historyMode {
		m.renderHistory()
	}
}

func (m *Model) renderHistory() {
	report, err := stats.BuildReport(m.ctx, m.history, model.HistoryConfig{Window: 7}, m.now())
	if err != nil {
		m.historyView.SetContent(errorStyle.Render(fmt.Sprintf("Failed to load history: %v", err)))
		return
	}
	var buf bytes.Buffer
	if err := stats.RenderSummary(&buf, report); err != nil {
		m.historyView.SetContent(errorStyle.Render(err.Error()))
		return
	}
	if err := stats.RenderBars(&buf, report, m.width, true); err != nil {
		m.historyView.SetContent(errorStyle.Render(err.Error()))
		return
	}
	if err := stats.RenderDayTable(&buf, report); err != nil {
		m.historyView.SetContent(errorStyle.Render(err.Error()))
		return
	}
	m.historyView.SetContent(strings.TrimRight(buf.String(), "\n"))
	m.historyView.GotoTop()
}

// View implements tea.Model.
func (m *Model) View() string {
	if m.width == 0 || m.height == 0 {
		return ""
	}
	header := m.renderHeader()
	footer := m.renderFooter()
	bodyHeight := m.height - lipgloss.Height(header) - lipgloss.Height(footer)
	var body string
	if m.historyMode {
		body = m.historyView.View()
	} else {
		body = m.renderCards() + "\n" + m.logView.View()
	}
	return strings.Join([]string{
		fitLines(header, m.width, lipgloss.Height(header)),
		fitLines(body, m.width, bodyHeight),
		fitLines(footer, m.width, lipgloss.Height(footer)),
	}, "\n")
}

func (m *Model) renderHeader() string {
	title := titleStyle.Render("Fan Panel")
	if m.historyMode {
		title += headerStyle.Render("  · usage history")
	}
	return title + "\n" + m.renderStatus()
}

func (m *Model) renderStatus() string {
	text := truncateLine("Status: "+m.snap.Status.Text, m.width)
	switch m.snap.Status.Level {
	case panel.LevelOK:
		return okStyle.Render(text)
	case panel.LevelWarn:
		return warnStyle.Render(text)
	case panel.LevelError:
		return errorStyle.Render(text)
	default:
		return headerStyle.Render(text)
	}
}

func (m *Model) renderCards() string {
	s := m.snap
	device := s.DeviceName
	if device == "" {
		device = format.Placeholder
	}
	id := s.DeviceID
	if id == "" {
		id = format.Placeholder
	}
	since := format.Placeholder
	if !s.OnSince.IsZero() {
		since = s.OnSince.Format("15:04")
	}
	cards := []string{
		card("Device", device, "ID "+id, s.State.String()),
		card("Battery", value(s, model.ChannelVoltage), "last "+orPlaceholder(s.LastVoltage), value(s, model.ChannelCharge)),
		card("Fan", value(s, model.ChannelPercent), value(s, model.ChannelState), "speed "+value(s, model.ChannelSpeed)),
		card("Usage", "today "+format.Minutes(s.Usage.Today), "yesterday "+format.Minutes(s.Usage.Yesterday), "on since "+since),
	}
	if m.width > 0 && lipgloss.Width(lipgloss.JoinHorizontal(lipgloss.Top, cards...)) > m.width {
		top := lipgloss.JoinHorizontal(lipgloss.Top, cards[0], cards[1])
		bottom := lipgloss.JoinHorizontal(lipgloss.Top, cards[2], cards[3])
		return lipgloss.JoinVertical(lipgloss.Left, top, bottom)
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, cards...)
}

func card(title, main string, rest ...string) string {
	lines := append([]string{cardTitleStyle.Render(title), cardValueStyle.Render(main)}, rest...)
	return cardStyle.Render(strings.Join(lines, "\n"))
}

func value(s panel.Snapshot, ch model.Channel) string {
	return orPlaceholder(s.Values[ch])
}

func orPlaceholder(v string) string {
	if v == "" {
		return format.Placeholder
	}
	return v
}

func (m *Model) renderFooter() string {
	if m.inputMode {
		return m.input.View() + "\n" + headerStyle.Render("enter: apply  esc: cancel")
	}
	mode := "hex"
	if m.snap.AsText {
		mode = "text"
	}
	return m.help.ShortHelpView(m.keys.ShortHelp()) + "\n" + headerStyle.Render("values: "+mode)
}
