package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/ShayCichocki/hubspoke/internal/orchestrator"
)

// EventMsg delivers one orchestrator event to the program.
type EventMsg struct {
	Event orchestrator.Event
}

// DoneMsg is sent once every rank has returned.
type DoneMsg struct {
	Err error
}

type logEntry struct {
	at  time.Time
	msg string
}

// RunApp is the bubbletea model of the run monitor.
type RunApp struct {
	ranks    *RankView
	spinner  spinner.Model
	bar      progress.Model
	logs     []logEntry
	done     bool
	err      error
	quitting bool
	width    int

	headerStyle  lipgloss.Style
	logTimeStyle lipgloss.Style
	logStyle     lipgloss.Style
	doneStyle    lipgloss.Style
	errorStyle   lipgloss.Style
	hintStyle    lipgloss.Style
}

// NewRunApp creates a monitor for a world of size ranks.
func NewRunApp(size int) *RunApp {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("205"))

	return &RunApp{
		ranks:   NewRankView(size),
		spinner: s,
		bar:     progress.New(progress.WithDefaultGradient(), progress.WithWidth(40)),

		headerStyle: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("205")),
		logTimeStyle: lipgloss.NewStyle().Foreground(lipgloss.Color("240")),
		logStyle:     lipgloss.NewStyle().Foreground(lipgloss.Color("252")),
		doneStyle:    lipgloss.NewStyle().Foreground(lipgloss.Color("34")).Bold(true),
		errorStyle:   lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true),
		hintStyle:    lipgloss.NewStyle().Foreground(lipgloss.Color("240")),
	}
}

// Init starts the spinner.
func (a *RunApp) Init() tea.Cmd {
	return a.spinner.Tick
}

// Update handles events, completion and key presses.
func (a *RunApp) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			a.quitting = !a.done
			return a, tea.Quit
		}

	case tea.WindowSizeMsg:
		a.width = msg.Width

	case EventMsg:
		a.apply(msg.Event)

	case DoneMsg:
		a.done = true
		a.err = msg.Err

	case spinner.TickMsg:
		if a.done {
			return a, nil
		}
		var cmd tea.Cmd
		a.spinner, cmd = a.spinner.Update(msg)
		return a, cmd
	}
	return a, nil
}

func (a *RunApp) apply(ev orchestrator.Event) {
	st := RankState{
		Rank:    ev.Rank,
		Role:    ev.Role,
		Known:   ev.Phase != "" && ev.Phase != "idle",
		Phase:   ev.Phase,
		Elapsed: ev.Elapsed,
	}
	switch ev.Type {
	case orchestrator.EventRankFailed:
		st.Failed = true
		st.Err = ev.Error
		a.log(ev.Timestamp, fmt.Sprintf("rank %d failed: %v", ev.Rank, ev.Error))
	case orchestrator.EventProgress:
		a.log(ev.Timestamp, ev.Message)
		return
	}
	a.ranks.Apply(st)
}

func (a *RunApp) log(at time.Time, msg string) {
	a.logs = append(a.logs, logEntry{at: at, msg: msg})
}

// Ranks exposes the rank states, mainly for tests.
func (a *RunApp) Ranks() []RankState {
	return a.ranks.Ranks()
}

// Done reports whether the run has finished, and its error.
func (a *RunApp) Done() (bool, error) {
	return a.done, a.err
}

// View renders the monitor.
func (a *RunApp) View() string {
	if a.quitting {
		return "Monitor closed; cancelling the run.\n"
	}

	var b strings.Builder
	title := "hubspoke run"
	if !a.done {
		title = a.spinner.View() + " " + title
	}
	b.WriteString(a.headerStyle.Render(title))
	b.WriteString("\n\n")
	b.WriteString(a.ranks.View())
	b.WriteString("\n")
	b.WriteString(a.bar.ViewAs(a.ranks.Progress()))
	b.WriteString("\n\n")

	start := 0
	if len(a.logs) > 8 {
		start = len(a.logs) - 8
	}
	for _, e := range a.logs[start:] {
		b.WriteString(fmt.Sprintf("  %s %s\n", a.logTimeStyle.Render(e.at.Format("15:04:05")), a.logStyle.Render(e.msg)))
	}

	b.WriteString("\n")
	switch {
	case a.done && a.err != nil:
		b.WriteString(a.errorStyle.Render(fmt.Sprintf("Error: %v", a.err)))
	case a.done:
		b.WriteString(a.doneStyle.Render("Run complete. Press q to exit."))
	default:
		b.WriteString(a.hintStyle.Render("Press q to close the monitor"))
	}
	b.WriteString("\n")
	return b.String()
}

// NewRunProgram creates the monitor program and its model.
func NewRunProgram(size int) (*tea.Program, *RunApp) {
	app := NewRunApp(size)
	return tea.NewProgram(app), app
}
