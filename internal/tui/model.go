package tui

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/tatianab/storyloop/internal/console"
	"github.com/tatianab/storyloop/internal/logging"
	"github.com/tatianab/storyloop/internal/story"
)

const (
	defaultCharDelay = 25 * time.Millisecond
	timeBarTick      = 100 * time.Millisecond
	logPollInterval  = 200 * time.Millisecond

	maxLogLines  = 300
	logHeight    = 6
	finishedMark = "▼"
)

// pauseDelays slow the typewriter down after punctuation.
var pauseDelays = map[rune]time.Duration{
	',': 300 * time.Millisecond,
	'、': 300 * time.Millisecond,
	'.': 500 * time.Millisecond,
	'!': 500 * time.Millisecond,
	'?': 500 * time.Millisecond,
	'。': 500 * time.Millisecond,
	'…': 500 * time.Millisecond,
}

var menuOptions = []string{"Continue", "Quit"}

var (
	userStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#EEEEEE")).
			Background(lipgloss.Color("#5F5F87")).
			Bold(true).
			PaddingLeft(1)

	gameStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFFFFF"))

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#888888")).
			Italic(true)

	stateStyle = lipgloss.NewStyle().
			Border(lipgloss.NormalBorder(), false, false, true, false).
			BorderForeground(lipgloss.Color("#3C3C3C")).
			Foreground(lipgloss.Color("#AAAAAA"))

	titleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFA500")).
			Bold(true)

	selectedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFA500")).
			Bold(true)

	disabledStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#5C5C5C")).
			Strikethrough(true)

	menuStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#5F5F87")).
			Padding(1, 4)
)

// Requests from the story goroutine. Each carries a buffered reply channel
// so the model never blocks answering.
type textMsg struct {
	text  string
	reply chan error
}

type selectMsg struct {
	options  []story.Option
	selected int
	prompt   string
	limit    time.Duration
	reply    chan selectReply
}

type selectReply struct {
	value any
	err   error
}

type endMsg struct{}

type typeTickMsg struct{ seq int }

type timeTickMsg struct{ seq int }

type logTickMsg struct{}

type consoleMsg struct {
	line string
	res  console.Result
}

type typing struct {
	runes []rune
	shown int
	done  bool
	reply chan error
}

type selection struct {
	options []story.Option
	cursor  int
	prompt  string
	limit   time.Duration
	elapsed time.Duration
	bar     progress.Model
	reply   chan selectReply
}

type model struct {
	width  int
	height int

	charDelay time.Duration
	log       logging.Logger

	story      viewport.Model
	transcript []string
	typing     *typing
	sel        *selection
	// seq invalidates ticks that belong to a finished request.
	seq int

	sink     *logging.Sink
	logs     viewport.Model
	logLines []string

	console     *console.Console
	input       textinput.Model
	consoleOpen bool

	menuOpen   bool
	menuCursor int

	ended bool
}

func newModel(charDelay time.Duration, sink *logging.Sink, con *console.Console, log logging.Logger) model {
	if log == nil {
		log = logging.Discard()
	}
	ti := textinput.New()
	ti.Placeholder = "/help"
	ti.Prompt = "> "
	ti.CharLimit = 256
	ti.Width = 60

	m := model{
		charDelay: charDelay,
		log:       log,
		sink:      sink,
		console:   con,
		input:     ti,
		story:     viewport.New(80, 16),
		logs:      viewport.New(80, logHeight),
	}
	m.resize(80, 24)
	return m
}

func (m model) Init() tea.Cmd {
	if m.sink == nil {
		return nil
	}
	return pollLogs()
}

func pollLogs() tea.Cmd {
	return tea.Tick(logPollInterval, func(time.Time) tea.Msg { return logTickMsg{} })
}

func (m *model) debug() bool {
	return m.console != nil
}

func (m *model) resize(width, height int) {
	m.width = width
	m.height = height
	m.story.Width = width
	m.logs.Width = width
	m.input.Width = max(width-4, 10)

	reserved := 6
	if m.debug() {
		reserved += logHeight + 2
	}
	if m.sel != nil {
		reserved += len(m.sel.options) + 2
	}
	m.story.Height = max(height-reserved, 3)
	m.story.SetContent(strings.Join(m.transcript, "\n\n"))
	m.story.GotoBottom()
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.resize(msg.Width, msg.Height)
		if m.sel != nil {
			m.sel.bar.Width = max(msg.Width-4, 10)
		}
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case textMsg:
		return m.startText(msg)

	case selectMsg:
		return m.startSelect(msg)

	case typeTickMsg:
		if m.typing == nil || msg.seq != m.seq || m.typing.done {
			return m, nil
		}
		m.typing.shown++
		if m.typing.shown >= len(m.typing.runes) {
			m.typing.done = true
			return m, nil
		}
		return m, m.typeTick(m.typing.runes[m.typing.shown-1])

	case timeTickMsg:
		if m.sel == nil || msg.seq != m.seq {
			return m, nil
		}
		m.sel.elapsed += timeBarTick
		if m.sel.elapsed >= m.sel.limit {
			m.log.Debug("select timed out", "option", m.sel.options[m.sel.cursor].Text)
			return m.choose(m.sel.cursor)
		}
		return m, timeTick(m.seq)

	case logTickMsg:
		if m.sink != nil {
			m.addLogs(m.sink.Drain()...)
		}
		return m, pollLogs()

	case consoleMsg:
		m.addLogs("> " + msg.line)
		m.addLogs(msg.res.Messages...)
		if msg.res.Exit {
			return m.quit()
		}
		return m, nil

	case endMsg:
		m.ended = true
		return m, nil
	}

	if m.consoleOpen {
		var cmd tea.Cmd
		m.input, cmd = m.input.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.Type == tea.KeyCtrlC {
		return m.quit()
	}
	if m.consoleOpen {
		return m.consoleKey(msg)
	}
	if msg.String() == "`" && m.debug() {
		m.consoleOpen = true
		return m, m.input.Focus()
	}
	if m.menuOpen {
		return m.menuKey(msg)
	}

	switch msg.String() {
	case "esc":
		m.menuOpen = true
		m.menuCursor = 0
		return m, nil
	case "q":
		return m.quit()
	}

	if m.ended {
		return m, tea.Quit
	}
	if m.typing != nil {
		if msg.Type == tea.KeyEnter || msg.Type == tea.KeySpace {
			return m.advanceText()
		}
		return m, nil
	}
	if m.sel != nil {
		return m.selectKey(msg)
	}
	return m, nil
}

func (m model) consoleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEsc:
		m.consoleOpen = false
		m.input.Blur()
		return m, nil
	case tea.KeyEnter:
		line := strings.TrimSpace(m.input.Value())
		m.input.Reset()
		if line == "" {
			return m, nil
		}
		con := m.console
		return m, func() tea.Msg {
			return consoleMsg{line: line, res: con.Exec(line)}
		}
	case tea.KeyTab:
		completed, suggestions := m.console.Complete(m.input.Value())
		m.input.SetValue(completed)
		m.input.CursorEnd()
		if len(suggestions) > 0 {
			m.addLogs(strings.Join(suggestions, "  "))
		}
		return m, nil
	case tea.KeyCtrlUp:
		if line, ok := m.console.History.Prev(); ok {
			m.input.SetValue(line)
			m.input.CursorEnd()
		}
		return m, nil
	case tea.KeyCtrlDown:
		line, _ := m.console.History.Next()
		m.input.SetValue(line)
		m.input.CursorEnd()
		return m, nil
	case tea.KeyUp, tea.KeyDown, tea.KeyPgUp, tea.KeyPgDown:
		var cmd tea.Cmd
		m.logs, cmd = m.logs.Update(msg)
		return m, cmd
	}
	if msg.String() == "`" {
		m.consoleOpen = false
		m.input.Blur()
		return m, nil
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m model) menuKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		m.menuOpen = false
	case "up", "k":
		m.menuCursor = (m.menuCursor + len(menuOptions) - 1) % len(menuOptions)
	case "down", "j":
		m.menuCursor = (m.menuCursor + 1) % len(menuOptions)
	case "enter":
		m.menuOpen = false
		if menuOptions[m.menuCursor] == "Quit" {
			return m.quit()
		}
	case "q":
		return m.quit()
	}
	return m, nil
}

func (m model) selectKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "up", "k":
		m.sel.cursor = m.nextEnabled(-1)
	case "down", "j":
		m.sel.cursor = m.nextEnabled(1)
	case "enter":
		return m.choose(m.sel.cursor)
	default:
		n, err := strconv.Atoi(msg.String())
		if err == nil && n >= 1 && n <= len(m.sel.options) && !m.sel.options[n-1].Disabled {
			return m.choose(n - 1)
		}
	}
	return m, nil
}

// nextEnabled walks from the cursor in dir, wrapping, to the next enabled
// option. Arrange guarantees there is at least one.
func (m *model) nextEnabled(dir int) int {
	n := len(m.sel.options)
	i := m.sel.cursor
	for range n {
		i = (i + dir + n) % n
		if !m.sel.options[i].Disabled {
			return i
		}
	}
	return m.sel.cursor
}

func (m model) startText(msg textMsg) (tea.Model, tea.Cmd) {
	m.seq++
	m.typing = &typing{runes: []rune(msg.text), reply: msg.reply}
	if m.charDelay < 0 || len(m.typing.runes) == 0 {
		m.typing.shown = len(m.typing.runes)
		m.typing.done = true
		return m, nil
	}
	return m, m.typeTick(0)
}

func (m *model) typeTick(last rune) tea.Cmd {
	delay := m.charDelay
	if d, ok := pauseDelays[last]; ok {
		delay = d
	}
	seq := m.seq
	return tea.Tick(delay, func(time.Time) tea.Msg { return typeTickMsg{seq: seq} })
}

// advanceText reveals the whole text on the first key and hands control
// back to the story on the second.
func (m model) advanceText() (tea.Model, tea.Cmd) {
	if !m.typing.done {
		m.typing.shown = len(m.typing.runes)
		m.typing.done = true
		return m, nil
	}
	m.appendTranscript(gameStyle.Width(m.width).Render(string(m.typing.runes)))
	m.typing.reply <- nil
	m.typing = nil
	m.seq++
	return m, nil
}

func (m model) startSelect(msg selectMsg) (tea.Model, tea.Cmd) {
	m.seq++
	m.sel = &selection{
		options: msg.options,
		cursor:  msg.selected,
		prompt:  msg.prompt,
		limit:   msg.limit,
		reply:   msg.reply,
	}
	m.resize(m.width, m.height)
	if msg.limit <= 0 {
		return m, nil
	}
	m.sel.bar = progress.New(progress.WithDefaultGradient(), progress.WithoutPercentage())
	m.sel.bar.Width = max(m.width-4, 10)
	return m, timeTick(m.seq)
}

func timeTick(seq int) tea.Cmd {
	return tea.Tick(timeBarTick, func(time.Time) tea.Msg { return timeTickMsg{seq: seq} })
}

func (m model) choose(i int) (tea.Model, tea.Cmd) {
	opt := m.sel.options[i]
	if m.sel.prompt != "" {
		m.appendTranscript(titleStyle.Render(m.sel.prompt))
	}
	m.appendTranscript(userStyle.Render("> " + opt.Text))
	m.sel.reply <- selectReply{value: opt.Value}
	m.sel = nil
	m.seq++
	m.resize(m.width, m.height)
	return m, nil
}

// quit releases the story goroutine before stopping the program.
func (m model) quit() (tea.Model, tea.Cmd) {
	if m.typing != nil {
		m.typing.reply <- story.ErrUIClosed
		m.typing = nil
	}
	if m.sel != nil {
		m.sel.reply <- selectReply{err: story.ErrUIClosed}
		m.sel = nil
	}
	m.seq++
	return m, tea.Quit
}

func (m *model) appendTranscript(s string) {
	m.transcript = append(m.transcript, s)
	m.story.SetContent(strings.Join(m.transcript, "\n\n"))
	m.story.GotoBottom()
}

func (m *model) addLogs(lines ...string) {
	if len(lines) == 0 {
		return
	}
	m.logLines = append(m.logLines, lines...)
	if over := len(m.logLines) - maxLogLines; over > 0 {
		m.logLines = m.logLines[over:]
	}
	m.logs.SetContent(strings.Join(m.logLines, "\n"))
	m.logs.GotoBottom()
}

func (m model) View() string {
	if m.menuOpen {
		return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, m.renderMenu())
	}

	var parts []string
	if m.debug() {
		parts = append(parts, stateStyle.Width(m.width).Render(m.logs.View()))
	}
	parts = append(parts, m.story.View())

	switch {
	case m.typing != nil:
		text := gameStyle.Width(m.width).Render(string(m.typing.runes[:m.typing.shown]))
		if m.typing.done {
			text += "\n" + lipgloss.PlaceHorizontal(m.width, lipgloss.Right, selectedStyle.Render(finishedMark))
		}
		parts = append(parts, "", text)
	case m.sel != nil:
		parts = append(parts, "", m.renderSelect())
	case m.ended:
		parts = append(parts, "", titleStyle.Render("The end."))
	}

	if m.consoleOpen {
		parts = append(parts, "", m.input.View())
	}
	parts = append(parts, "", helpStyle.Render(m.help()))
	return lipgloss.JoinVertical(lipgloss.Left, parts...)
}

func (m model) renderSelect() string {
	var b strings.Builder
	if m.sel.prompt != "" {
		b.WriteString(titleStyle.Render(m.sel.prompt) + "\n")
	}
	for i, opt := range m.sel.options {
		line := fmt.Sprintf("%d. %s", i+1, opt.Text)
		switch {
		case opt.Disabled:
			line = "  " + disabledStyle.Render(line)
		case i == m.sel.cursor:
			line = selectedStyle.Render("> " + line)
		default:
			line = "  " + line
		}
		b.WriteString(line + "\n")
	}
	if m.sel.limit > 0 {
		left := 1 - float64(m.sel.elapsed)/float64(m.sel.limit)
		b.WriteString(m.sel.bar.ViewAs(max(left, 0)))
	}
	return strings.TrimRight(b.String(), "\n")
}

func (m model) renderMenu() string {
	var b strings.Builder
	for i, opt := range menuOptions {
		if i == m.menuCursor {
			b.WriteString(selectedStyle.Render("> "+opt) + "\n")
		} else {
			b.WriteString("  " + opt + "\n")
		}
	}
	return menuStyle.Render(strings.TrimRight(b.String(), "\n"))
}

func (m model) help() string {
	switch {
	case m.consoleOpen:
		return "Enter: run  Tab: complete  C-up/C-down: history  Esc: close console"
	case m.ended:
		return "Press any key to quit."
	case m.typing != nil:
		return "Enter or space: continue  Esc: menu"
	case m.sel != nil:
		return "Up/down: move  Enter or number: choose  Esc: menu"
	}
	if m.debug() {
		return "`: console  Esc: menu  q: quit"
	}
	return "Esc: menu  q: quit"
}
