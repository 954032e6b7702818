package tui

import (
	"errors"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/vinayprograms/leadsynapse/internal/leads"
)

// ErrCancelled is returned when the operator leaves the form.
var ErrCancelled = errors.New("cancelled")

type formModel struct {
	inputs    []textinput.Model
	focus     int
	warning   string
	submitted bool
	cancelled bool
}

func newFormModel(in leads.Inputs) *formModel {
	labels := []struct{ prompt, value string }{
		{"Target Industry Domain: ", in.Domain},
		{"Target Geographic Area: ", in.Area},
	}
	m := &formModel{}
	for _, l := range labels {
		ti := textinput.New()
		ti.Prompt = l.prompt
		ti.SetValue(l.value)
		ti.CharLimit = 120
		ti.Width = 40
		m.inputs = append(m.inputs, ti)
	}
	m.inputs[0].Focus()
	return m
}

func (m *formModel) values() leads.Inputs {
	return leads.Inputs{Domain: m.inputs[0].Value(), Area: m.inputs[1].Value()}
}

func (m *formModel) Init() tea.Cmd {
	return textinput.Blink
}

func (m *formModel) setFocus(i int) {
	m.inputs[m.focus].Blur()
	m.focus = (i + len(m.inputs)) % len(m.inputs)
	m.inputs[m.focus].Focus()
}

func (m *formModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if key, ok := msg.(tea.KeyMsg); ok {
		switch key.String() {
		case "ctrl+c", "esc":
			m.cancelled = true
			return m, tea.Quit
		case "tab", "down":
			m.setFocus(m.focus + 1)
			return m, nil
		case "shift+tab", "up":
			m.setFocus(m.focus - 1)
			return m, nil
		case "enter":
			if m.focus < len(m.inputs)-1 {
				m.setFocus(m.focus + 1)
				return m, nil
			}
			if _, err := m.values().Validate(); err != nil {
				m.warning = leads.InputWarning
				return m, nil
			}
			m.submitted = true
			return m, tea.Quit
		}
	}

	var cmd tea.Cmd
	m.inputs[m.focus], cmd = m.inputs[m.focus].Update(msg)
	return m, cmd
}

func (m *formModel) View() string {
	if m.submitted || m.cancelled {
		return ""
	}
	var b strings.Builder
	b.WriteString(titleStyle.Render("Lead Generation Inputs") + "\n\n")
	for _, in := range m.inputs {
		b.WriteString(in.View() + "\n")
	}
	if m.warning != "" {
		b.WriteString("\n" + warnStyle.Render(m.warning) + "\n")
	}
	b.WriteString("\n" + dimStyle.Render("tab: next field • enter: ✨ Generate Leads • esc: cancel") + "\n")
	return b.String()
}

// AskInputs shows the input form pre-filled with in and returns the
// validated values.
func AskInputs(in leads.Inputs, opts ...tea.ProgramOption) (leads.Inputs, error) {
	m := newFormModel(in)
	if _, err := tea.NewProgram(m, opts...).Run(); err != nil {
		return leads.Inputs{}, err
	}
	if !m.submitted {
		return leads.Inputs{}, ErrCancelled
	}
	return m.values().Validate()
}
