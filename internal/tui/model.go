package tui

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/goodtune/mediatimer/internal/policy"
	"github.com/goodtune/mediatimer/internal/usage"
)

// actionTimeout bounds a single tracker call made from the UI.
const actionTimeout = 5 * time.Second

// Controller is the part of usage.Tracker the UI drives.
type Controller interface {
	Start(ctx context.Context, c policy.Category) error
	Stop(ctx context.Context) error
	CompleteBreak(ctx context.Context) error
	AddManualTime(ctx context.Context, hours, minutes int, c policy.Category) (usage.Session, error)
	ClearHistory(ctx context.Context) error
	Status() usage.Snapshot
}

type eventMsg struct {
	event usage.Event
}

type resultMsg struct {
	action string
	err    error
}

// Listener forwards tracker events into the running program. The tracker
// delivers events with no lock held, so Send may block until Update reads
// while Update itself calls Status.
func Listener(p *tea.Program) usage.Listener {
	return usage.ListenerFunc(func(e usage.Event) {
		p.Send(eventMsg{event: e})
	})
}

// manualEntry is the inline form for recording time by hand.
type manualEntry struct {
	input    string // h:mm or minutes
	category policy.Category
}

var entryCategories = []policy.Category{policy.CategoryNormal, policy.CategoryMovie, policy.CategoryAdult}

func (e *manualEntry) nextCategory() {
	for i, c := range entryCategories {
		if c == e.category {
			e.category = entryCategories[(i+1)%len(entryCategories)]
			return
		}
	}
	e.category = policy.CategoryNormal
}

// parse reads "h:mm", "h:" or a bare minute count.
func (e *manualEntry) parse() (hours, minutes int, err error) {
	in := strings.TrimSpace(e.input)
	if in == "" {
		return 0, 0, fmt.Errorf("%w: enter h:mm or minutes", policy.ErrInvalidInput)
	}

	h, m, found := strings.Cut(in, ":")
	if !found {
		minutes, err = strconv.Atoi(h)
		return 0, minutes, err
	}
	if hours, err = strconv.Atoi(h); err != nil {
		return 0, 0, err
	}
	if m != "" {
		if minutes, err = strconv.Atoi(m); err != nil {
			return 0, 0, err
		}
	}
	return hours, minutes, nil
}

// Model is the bubbletea model of the terminal front end.
type Model struct {
	ctrl Controller
	bell io.Writer

	snap         usage.Snapshot
	banner       string
	alerting     bool
	err          error
	entry        *manualEntry
	confirmClear bool
	afterBreak   bool // keeps the break-over banner past the resumed start
	width        int
}

// New creates the model. bell receives a BEL for every tick an imminent
// break or limit is asserted; nil disables the audible alarm.
func New(ctrl Controller, bell io.Writer) Model {
	if bell == nil {
		bell = io.Discard
	}
	return Model{ctrl: ctrl, bell: bell, snap: ctrl.Status()}
}

func (m Model) Init() tea.Cmd {
	return nil
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if m.entry != nil {
			return m.updateEntry(msg)
		}
		return m.updateKey(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width

	case eventMsg:
		m.snap = m.ctrl.Status()
		return m.handleEvent(msg.event)

	case resultMsg:
		m.snap = m.ctrl.Status()
		m.err = msg.err
		if msg.err == nil && msg.action == "clear" {
			m.banner = "History cleared"
		}
	}
	return m, nil
}

func (m Model) updateKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	key := msg.String()
	if key != "y" {
		m.confirmClear = false
	}

	switch key {
	case "q", "ctrl+c":
		return m, tea.Quit
	case "n":
		return m, m.start(policy.CategoryNormal)
	case "a":
		return m, m.start(policy.CategoryAdult)
	case "m":
		return m, m.start(policy.CategoryMovie)
	case "s":
		return m, m.run("stop", m.ctrl.Stop)
	case "b":
		return m, m.run("break", m.ctrl.CompleteBreak)
	case "e":
		m.entry = &manualEntry{category: policy.CategoryNormal}
		m.err = nil
	case "x":
		m.confirmClear = true
		m.banner = "Press y to clear all history"
	case "y":
		if m.confirmClear {
			m.confirmClear = false
			m.banner = ""
			return m, m.run("clear", m.ctrl.ClearHistory)
		}
	}
	return m, nil
}

func (m Model) updateEntry(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	e := *m.entry
	switch msg.Type {
	case tea.KeyEsc:
		m.entry = nil
		return m, nil
	case tea.KeyTab:
		e.nextCategory()
	case tea.KeyBackspace:
		if len(e.input) > 0 {
			e.input = e.input[:len(e.input)-1]
		}
	case tea.KeyEnter:
		hours, minutes, err := e.parse()
		if err != nil {
			m.err = fmt.Errorf("%w: %v", policy.ErrInvalidInput, err)
			return m, nil
		}
		m.entry = nil
		category := e.category
		return m, m.run("manual", func(ctx context.Context) error {
			_, err := m.ctrl.AddManualTime(ctx, hours, minutes, category)
			return err
		})
	case tea.KeyRunes:
		for _, r := range msg.Runes {
			if (r >= '0' && r <= '9') || r == ':' {
				e.input += string(r)
			}
		}
	}
	m.entry = &e
	return m, nil
}

func (m Model) handleEvent(e usage.Event) (tea.Model, tea.Cmd) {
	switch e := e.(type) {
	case usage.ImminentBreak, usage.ImminentLimit:
		m.alerting = true
		return m, ringBell(m.bell)
	case usage.SessionStarted:
		m.alerting = false
		m.err = nil
		if m.afterBreak {
			m.afterBreak = false
		} else {
			m.banner = ""
		}
	case usage.LimitReached:
		m.alerting = false
		m.banner = fmt.Sprintf("Daily limit reached for %s", e.Category)
	case usage.BreakStarted:
		m.alerting = false
		m.banner = fmt.Sprintf("Break time! Step away for %s", Human(e.DurationSeconds))
	case usage.BreakCompleted:
		m.banner = "Break over, session resumed"
		m.afterBreak = true
	case usage.SessionCompleted:
		m.alerting = false
		if e.Session.Manual {
			m.banner = fmt.Sprintf("Added %s of %s", Human(e.Session.Duration), e.Session.Category)
		}
	case usage.Tick:
		if !m.imminent() {
			m.alerting = false
		}
	}
	return m, nil
}

// imminent reports whether the snapshot is inside a warning window.
func (m Model) imminent() bool {
	if m.snap.Phase != usage.PhaseRunning {
		return false
	}
	if u := m.snap.UntilBreakSeconds; u != nil && *u > 0 && *u <= policy.ImminentSeconds {
		return true
	}
	b := m.snap.Normal
	if m.snap.Category == policy.CategoryAdult {
		b = m.snap.Adult
	}
	return policy.Imminent(b.Remaining)
}

func (m Model) start(c policy.Category) tea.Cmd {
	return m.run("start", func(ctx context.Context) error {
		return m.ctrl.Start(ctx, c)
	})
}

func (m Model) run(action string, fn func(context.Context) error) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), actionTimeout)
		defer cancel()
		return resultMsg{action: action, err: fn(ctx)}
	}
}

func ringBell(w io.Writer) tea.Cmd {
	return func() tea.Msg {
		_, _ = io.WriteString(w, "\a")
		return nil
	}
}

func (m Model) View() string {
	var b strings.Builder

	b.WriteString(headerStyle.Render("Media Timer"))
	b.WriteString("\n")

	b.WriteString(boxStyle.Render(m.statusView()))
	b.WriteString("\n")
	b.WriteString(boxStyle.Render(m.budgetView()))
	b.WriteString("\n")
	b.WriteString(boxStyle.Render(m.todayView()))
	b.WriteString("\n")

	if m.banner != "" {
		style := bannerStyle
		if m.alerting || strings.HasPrefix(m.banner, "Daily limit") {
			style = alertStyle
		}
		b.WriteString(style.Render(m.banner))
		b.WriteString("\n")
	} else if m.alerting {
		b.WriteString(alertStyle.Render("Heads up!"))
		b.WriteString("\n")
	}

	if m.err != nil {
		b.WriteString(errorStyle.Render("Error: " + m.err.Error()))
		b.WriteString("\n")
	}

	if m.entry != nil {
		b.WriteString(fmt.Sprintf("Add time (h:mm or minutes): %s█  [%s %s]  tab: category  enter: save  esc: cancel\n",
			m.entry.input, Icon(m.entry.category), m.entry.category))
	} else {
		b.WriteString(footerStyle.Render("n normal • m movie • a adult • s stop • b end break • e add time • x clear history • q quit"))
		b.WriteString("\n")
	}

	return b.String()
}

func (m Model) statusView() string {
	s := m.snap
	switch s.Phase {
	case usage.PhaseRunning:
		line := fmt.Sprintf("%s %s %s  %s",
			runningStyle.Render("● RUNNING"), Icon(s.Category), s.Category, Clock(s.ElapsedSeconds))
		if s.UntilBreakSeconds != nil {
			line += labelStyle.Render(fmt.Sprintf("  break in %s", Clock(*s.UntilBreakSeconds)))
		}
		return line
	case usage.PhaseBreak:
		return fmt.Sprintf("%s  %s left", breakStyle.Render("☕ BREAK"), Clock(s.BreakRemainingSeconds))
	default:
		return idleStyle.Render("○ IDLE")
	}
}

func (m Model) budgetView() string {
	line := func(label string, b usage.Budget) string {
		return fmt.Sprintf("%s %s of %s (%.0f%%)",
			labelStyle.Render(label),
			thresholdStyle(b.Threshold).Render(Clock(b.Remaining)),
			Human(b.Limit),
			b.Percent)
	}

	lines := []string{"Remaining today"}
	if m.snap.Category == policy.CategoryAdult {
		lines = append(lines, line("Adult: ", m.snap.Adult), line("Normal:", m.snap.Normal))
	} else {
		lines = append(lines, line("Normal:", m.snap.Normal), line("Adult: ", m.snap.Adult))
	}
	return lipgloss.JoinVertical(lipgloss.Left, lines...)
}

func (m Model) todayView() string {
	lines := []string{"Today"}
	if len(m.snap.TodaySessions) == 0 {
		lines = append(lines, labelStyle.Render("No sessions yet"))
	}
	for _, s := range m.snap.TodaySessions {
		manual := ""
		if s.Manual {
			manual = " ✎"
		}
		lines = append(lines, fmt.Sprintf("%s %s  %-6s %s%s",
			labelStyle.Render(s.Timestamp.Format("15:04")), Icon(s.Category), s.Category, Human(s.Duration), manual))
	}

	total := m.snap.Today.NormalSeconds + m.snap.Today.AdultSeconds
	lines = append(lines, labelStyle.Render(fmt.Sprintf("Total %s", Human(total))))
	return lipgloss.JoinVertical(lipgloss.Left, lines...)
}
