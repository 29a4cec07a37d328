// Package chat is the terminal front-end: a status line, the active party's
// chat, an input line and a modal for notifications raised by the request
// and realtime clients.
package chat

import (
	"context"
	"errors"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"maple-party/internal/logging"
	"maple-party/internal/notify"
	"maple-party/internal/realtime"
)

const (
	messageLineLimit = 2_000
	logLineLimit     = 5_000
	inputCharLimit   = 1_000

	defaultWidth  = 80
	defaultHeight = 24
	// header, input, help and the frame around the body
	chromeHeight = 6
)

// Chat is the realtime client surface the view drives.
type Chat interface {
	Connect(ctx context.Context) error
	Disconnect()
	State() realtime.State
	JoinParty(partyRecruitID int64) error
	SendMessage(text string) error
	SubscribeNotify() error
}

type PartySource interface {
	PartyRecruitID() (int64, bool)
}

type Deps struct {
	Chat  Chat
	Party PartySource
	Feed  *Feed
	// Notifications is usually notify.Channel.Requests.
	Notifications <-chan notify.Request
	Logger        *logging.Logger
	// SubscribeNotify also listens on the user's notification queue after
	// every connect.
	SubscribeNotify bool
}

type stateMsg realtime.State
type chatMsg realtime.ChatMessage
type logMsg string
type notifyMsg notify.Request

type actionResultMsg struct {
	action string
	err    error
}

type Model struct {
	ctx  context.Context
	deps Deps

	keys     keyMap
	help     help.Model
	input    textinput.Model
	body     viewport.Model
	width    int
	height   int
	showLogs bool

	messages []string
	logLines []string

	state   realtime.State
	lastErr string

	modal   *notify.Request
	waiting []notify.Request

	logCh       chan string
	unsubscribe func()
	quitting    bool
}

func New(ctx context.Context, deps Deps) *Model {
	if deps.Chat == nil || deps.Feed == nil {
		panic("chat.New: chat client and feed are required")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	input := textinput.New()
	input.Placeholder = "Type a message"
	input.CharLimit = inputCharLimit
	input.Prompt = "> "
	input.Focus()

	m := &Model{
		ctx:    ctx,
		deps:   deps,
		keys:   newKeyMap(),
		help:   help.New(),
		input:  input,
		body:   viewport.New(defaultWidth, defaultHeight-chromeHeight),
		width:  defaultWidth,
		height: defaultHeight,
		state:  deps.Chat.State(),
		logCh:  make(chan string, 512),
	}
	if deps.Logger != nil {
		m.unsubscribe = deps.Logger.Subscribe(func(event logging.Event) {
			offerLatest(m.logCh, strings.TrimRight(logging.FormatEventANSI(event), "\n"))
		})
	}
	return m
}

func (m *Model) Init() tea.Cmd {
	return tea.Batch(
		textinput.Blink,
		waitFor(m.deps.Feed.States(), func(s realtime.State) tea.Msg { return stateMsg(s) }),
		waitFor(m.deps.Feed.Messages(), func(msg realtime.ChatMessage) tea.Msg { return chatMsg(msg) }),
		waitFor(m.deps.Notifications, func(r notify.Request) tea.Msg { return notifyMsg(r) }),
		waitFor(m.logFeed(), func(line string) tea.Msg { return logMsg(line) }),
		m.connectCmd(),
	)
}

func waitFor[T any](ch <-chan T, wrap func(T) tea.Msg) tea.Cmd {
	if ch == nil {
		return nil
	}
	return func() tea.Msg {
		v, ok := <-ch
		if !ok {
			return nil
		}
		return wrap(v)
	}
}

func (m *Model) logFeed() <-chan string {
	return m.logCh
}

func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.resize(msg.Width, msg.Height)
		return m, nil
	case stateMsg:
		cmd := m.applyState(realtime.State(msg))
		return m, tea.Batch(cmd, waitFor(m.deps.Feed.States(), func(s realtime.State) tea.Msg { return stateMsg(s) }))
	case chatMsg:
		m.appendMessage(realtime.ChatMessage(msg))
		return m, waitFor(m.deps.Feed.Messages(), func(msg realtime.ChatMessage) tea.Msg { return chatMsg(msg) })
	case logMsg:
		m.logLines = appendLinesWithLimit(m.logLines, string(msg), logLineLimit)
		if m.showLogs {
			m.refreshBody()
		}
		return m, waitFor(m.logFeed(), func(line string) tea.Msg { return logMsg(line) })
	case notifyMsg:
		m.enqueue(notify.Request(msg))
		return m, waitFor(m.deps.Notifications, func(r notify.Request) tea.Msg { return notifyMsg(r) })
	case actionResultMsg:
		m.applyResult(msg)
		return m, nil
	case tea.KeyMsg:
		return m.handleKey(msg)
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m *Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if key.Matches(msg, m.keys.Quit) {
		return m, m.quit()
	}
	if m.modal != nil {
		switch {
		case key.Matches(msg, m.keys.Accept):
			m.resolveModal(true)
		case key.Matches(msg, m.keys.Dismiss):
			m.resolveModal(false)
		}
		return m, nil
	}
	switch {
	case key.Matches(msg, m.keys.Send):
		return m, m.submit()
	case key.Matches(msg, m.keys.ToggleLog):
		m.showLogs = !m.showLogs
		m.refreshBody()
		return m, nil
	case key.Matches(msg, m.keys.Reconnect):
		return m, m.connectCmd()
	case key.Matches(msg, m.keys.Scroll):
		var cmd tea.Cmd
		m.body, cmd = m.body.Update(msg)
		return m, cmd
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// applyState records a connection change. A fresh connection re-joins the
// active party and re-subscribes to notifications.
func (m *Model) applyState(next realtime.State) tea.Cmd {
	reconnected := next.Connected && !m.state.Connected
	m.state = next
	if next.Error != "" {
		m.lastErr = next.Error
	} else if next.Connected {
		m.lastErr = ""
	}
	if !reconnected {
		return nil
	}
	return m.rejoinCmd()
}

func (m *Model) rejoinCmd() tea.Cmd {
	var cmds []tea.Cmd
	if m.deps.SubscribeNotify {
		cmds = append(cmds, func() tea.Msg {
			return actionResultMsg{action: "subscribe notifications", err: m.deps.Chat.SubscribeNotify()}
		})
	}
	if m.deps.Party != nil {
		if id, ok := m.deps.Party.PartyRecruitID(); ok {
			cmds = append(cmds, func() tea.Msg {
				return actionResultMsg{action: "join party", err: m.deps.Chat.JoinParty(id)}
			})
		}
	}
	return tea.Batch(cmds...)
}

func (m *Model) connectCmd() tea.Cmd {
	ctx := m.ctx
	return func() tea.Msg {
		return actionResultMsg{action: "connect", err: m.deps.Chat.Connect(ctx)}
	}
}

func (m *Model) submit() tea.Cmd {
	text := strings.TrimSpace(m.input.Value())
	if text == "" {
		return nil
	}
	if !m.state.Connected {
		m.lastErr = "not connected; message kept"
		return nil
	}
	m.input.Reset()
	return func() tea.Msg {
		return actionResultMsg{action: "send message", err: m.deps.Chat.SendMessage(text)}
	}
}

func (m *Model) applyResult(msg actionResultMsg) {
	if msg.err == nil {
		return
	}
	if errors.Is(msg.err, context.Canceled) || errors.Is(msg.err, realtime.ErrDisconnected) {
		return
	}
	m.lastErr = msg.action + ": " + msg.err.Error()
	if m.deps.Logger != nil {
		m.deps.Logger.Debug("chat action failed", logging.Field("action", msg.action), logging.Field("error", msg.err))
	}
}

func (m *Model) appendMessage(msg realtime.ChatMessage) {
	m.messages = appendLinesWithLimit(m.messages, formatMessage(msg), messageLineLimit)
	if !m.showLogs {
		m.refreshBody()
	}
}

func formatMessage(msg realtime.ChatMessage) string {
	stamp := ""
	if msg.Timestamp > 0 {
		stamp = timeStyle.Render(msg.Time().Format("15:04")) + " "
	}
	sender := msg.SenderName
	if sender == "" {
		sender = msg.SenderID
	}
	text := msg.Contents
	if msg.Deleted {
		text = mutedStyle.Render("(deleted)")
	}
	return stamp + senderStyle.Render(sender) + " " + text
}

func (m *Model) enqueue(req notify.Request) {
	if m.modal == nil {
		m.modal = &req
		return
	}
	m.waiting = append(m.waiting, req)
}

func (m *Model) resolveModal(accepted bool) {
	if m.modal == nil {
		return
	}
	m.modal.Resolve(accepted)
	m.modal = nil
	if len(m.waiting) > 0 {
		next := m.waiting[0]
		m.waiting = m.waiting[1:]
		m.modal = &next
	}
}

func (m *Model) quit() tea.Cmd {
	if m.quitting {
		return tea.Quit
	}
	m.quitting = true
	// Release callers blocked on pending notifications.
	for m.modal != nil {
		m.resolveModal(false)
	}
	m.deps.Chat.Disconnect()
	m.cleanup()
	return tea.Quit
}

func (m *Model) cleanup() {
	if m.unsubscribe != nil {
		m.unsubscribe()
		m.unsubscribe = nil
	}
}

func (m *Model) resize(width, height int) {
	m.width, m.height = width, height
	m.body.Width = max(width-panelStyle.GetHorizontalFrameSize(), 1)
	m.body.Height = max(height-chromeHeight, 1)
	m.input.Width = max(width-4, 1)
	m.help.Width = width
	m.refreshBody()
}

func (m *Model) refreshBody() {
	wasAtBottom := m.body.AtBottom()
	lines := m.messages
	if m.showLogs {
		lines = m.logLines
	}
	m.body.SetContent(truncateLines(strings.Join(lines, "\n"), m.body.Width))
	if wasAtBottom {
		m.body.GotoBottom()
	}
}

func offerLatest[T any](ch chan T, v T) {
	select {
	case ch <- v:
	default:
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- v:
		default:
		}
	}
}
