package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/vinayprograms/leadsynapse/internal/events"
)

type taskState int

const (
	taskPending taskState = iota
	taskRunning
	taskDone
)

type taskLine struct {
	name  string
	agent string
	state taskState
	tools int
	start time.Time
	took  time.Duration
}

// doneMsg ends the progress view.
type doneMsg struct{ err error }

type progressModel struct {
	spinner spinner.Model
	tasks   []*taskLine
	events  <-chan events.Event
	last    string
	err     error
	done    bool
}

func newProgressModel(tasks []string, ch <-chan events.Event) *progressModel {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = agentStyle
	m := &progressModel{spinner: sp, events: ch}
	for _, t := range tasks {
		m.tasks = append(m.tasks, &taskLine{name: t})
	}
	return m
}

func (m *progressModel) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.next())
}

func (m *progressModel) next() tea.Cmd {
	return func() tea.Msg {
		e, ok := <-m.events
		if !ok {
			return doneMsg{}
		}
		return e
	}
}

func (m *progressModel) task(name string) *taskLine {
	for _, t := range m.tasks {
		if t.name == name {
			return t
		}
	}
	t := &taskLine{name: name}
	m.tasks = append(m.tasks, t)
	return t
}

func (m *progressModel) apply(e events.Event) {
	switch e.Type {
	case events.TaskStarted:
		t := m.task(e.Task)
		t.agent, t.state, t.start = e.Agent, taskRunning, e.Time
	case events.ToolCalled:
		for _, t := range m.tasks {
			if t.state == taskRunning && t.agent == e.Agent {
				t.tools++
			}
		}
		m.last = fmt.Sprintf("%s → %s", e.Agent, e.Tool)
	case events.TaskCompleted:
		t := m.task(e.Task)
		t.state = taskDone
		if !t.start.IsZero() {
			t.took = e.Time.Sub(t.start)
		}
	case events.RunFailed:
		m.err = fmt.Errorf("%s", e.Message)
	}
}

func (m *progressModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			m.err = ErrCancelled
			return m, tea.Quit
		}
	case events.Event:
		m.apply(msg)
		if msg.Terminal() {
			m.done = true
			return m, tea.Quit
		}
		return m, m.next()
	case doneMsg:
		m.done = true
		return m, tea.Quit
	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m *progressModel) View() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("🚀 Lead Synapse Mark III") + "\n\n")
	for _, t := range m.tasks {
		var icon string
		switch t.state {
		case taskPending:
			icon = dimStyle.Render("○")
		case taskRunning:
			icon = m.spinner.View()
		case taskDone:
			icon = successStyle.Render("✓")
		}
		line := fmt.Sprintf("%s %s", icon, t.name)
		if t.agent != "" {
			line += " " + agentStyle.Render("("+t.agent+")")
		}
		if t.tools > 0 {
			line += " " + toolStyle.Render(fmt.Sprintf("%d tool calls", t.tools))
		}
		if t.took > 0 {
			line += " " + dimStyle.Render(t.took.Round(time.Second).String())
		}
		b.WriteString(line + "\n")
	}
	if m.last != "" && !m.done {
		b.WriteString("\n" + dimStyle.Render(m.last) + "\n")
	}
	if m.err != nil {
		b.WriteString("\n" + errorStyle.Render("❌ "+m.err.Error()) + "\n")
	}
	return b.String()
}

// ShowProgress renders per-task status from ch until the run finishes.
func ShowProgress(tasks []string, ch <-chan events.Event, opts ...tea.ProgramOption) error {
	m := newProgressModel(tasks, ch)
	if _, err := tea.NewProgram(m, opts...).Run(); err != nil {
		return err
	}
	if m.err == ErrCancelled {
		return ErrCancelled
	}
	return nil
}
