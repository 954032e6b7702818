package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/fsnotify/fsnotify"
	"github.com/muesli/reflow/wordwrap"
)

// RenderFunc produces the pager content for a terminal width.
type RenderFunc func(width int) (string, error)

// fileChangedMsg is sent when a watched path changes.
type fileChangedMsg struct{}

type pagerModel struct {
	viewport viewport.Model
	title    string
	content  string
	ready    bool
	render   RenderFunc
	watcher  *fsnotify.Watcher
	updated  time.Time
	err      error
}

// Page shows the output of render in a scrollable pager. When watch is
// non-empty the content is re-rendered whenever a file in that directory
// changes.
func Page(title string, render RenderFunc, watch string, opts ...tea.ProgramOption) error {
	m := &pagerModel{title: title, render: render}
	if watch != "" {
		w, err := fsnotify.NewWatcher()
		if err != nil {
			return fmt.Errorf("failed to create watcher: %w", err)
		}
		defer w.Close()
		if err := w.Add(watch); err != nil {
			return fmt.Errorf("failed to watch %s: %w", watch, err)
		}
		m.watcher = w
	}

	opts = append([]tea.ProgramOption{tea.WithAltScreen(), tea.WithMouseCellMotion()}, opts...)
	_, err := tea.NewProgram(m, opts...).Run()
	return err
}

func (m *pagerModel) Init() tea.Cmd {
	if m.watcher != nil {
		return m.watch()
	}
	return nil
}

// watch waits for the next write or create in the watched directory.
func (m *pagerModel) watch() tea.Cmd {
	return func() tea.Msg {
		for {
			select {
			case event, ok := <-m.watcher.Events:
				if !ok {
					return nil
				}
				if event.Op&(fsnotify.Write|fsnotify.Create) != 0 {
					// let writes settle
					time.Sleep(100 * time.Millisecond)
					return fileChangedMsg{}
				}
			case _, ok := <-m.watcher.Errors:
				if !ok {
					return nil
				}
			}
		}
	}
}

func (m *pagerModel) refresh() {
	content, err := m.render(m.viewport.Width)
	if err != nil {
		m.err = err
		return
	}
	m.err = nil
	m.content = wrap(content, m.viewport.Width)
	m.viewport.SetContent(m.content)
	m.updated = time.Now()
}

func (m *pagerModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case fileChangedMsg:
		offset := m.viewport.YOffset
		m.refresh()
		m.viewport.SetYOffset(offset)
		cmds = append(cmds, m.watch())

	case tea.KeyMsg:
		switch msg.String() {
		case "q", "esc", "ctrl+c":
			return m, tea.Quit
		case "g":
			m.viewport.GotoTop()
		case "G":
			m.viewport.GotoBottom()
		}

	case tea.WindowSizeMsg:
		height := msg.Height - 2 // header and footer
		if !m.ready {
			m.viewport = viewport.New(msg.Width, height)
			m.viewport.YPosition = 1
			m.ready = true
		} else {
			m.viewport.Width = msg.Width
			m.viewport.Height = height
		}
		m.refresh()
	}

	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	cmds = append(cmds, cmd)
	return m, tea.Batch(cmds...)
}

func (m *pagerModel) View() string {
	if !m.ready {
		return "\n  Loading..."
	}

	title := titleStyle.Render(m.title)
	header := title + dimStyle.Render(strings.Repeat("─", max(0, m.viewport.Width-lipgloss.Width(title))))

	help := " q: quit │ g/G: top/bottom "
	if m.watcher != nil {
		help = " " + successStyle.Bold(true).Render("● LIVE") + " │" + help
	}
	if m.err != nil {
		help = " " + errorStyle.Render(m.err.Error()) + " │" + help
	}
	info := fmt.Sprintf(" %3.f%% ", m.viewport.ScrollPercent()*100)
	fill := strings.Repeat("─", max(0, m.viewport.Width-lipgloss.Width(help)-lipgloss.Width(info)))
	footer := dimStyle.Render(help) + dimStyle.Render(fill) + dimStyle.Render(info)

	return header + "\n" + m.viewport.View() + "\n" + footer
}

// wrap wraps each line to width, leaving lines that already fit untouched.
func wrap(content string, width int) string {
	if width <= 0 {
		return content
	}
	lines := strings.Split(content, "\n")
	out := make([]string, 0, len(lines))
	for _, line := range lines {
		if lipgloss.Width(line) <= width {
			out = append(out, line)
			continue
		}
		out = append(out, strings.Split(wordwrap.String(line, width), "\n")...)
	}
	return strings.Join(out, "\n")
}
