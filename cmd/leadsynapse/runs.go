package main

import (
	"errors"
	"fmt"
	"io"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/vinayprograms/leadsynapse/internal/session"
	"github.com/vinayprograms/leadsynapse/internal/tui"
)

var headerStyle = lipgloss.NewStyle().Bold(true).Padding(0, 1)
var cellStyle = lipgloss.NewStyle().Padding(0, 1)

// Run lists recent runs, or prints one run's timeline.
func (c *RunsCmd) Run(g *Globals) error {
	a, err := g.load()
	if err != nil {
		return err
	}
	sessions, err := openSessions(a)
	if err != nil {
		return err
	}
	defer sessions.Close()

	if c.ID != "" {
		sess, err := sessions.Get(c.ID)
		if errors.Is(err, session.ErrNotFound) {
			return fmt.Errorf("run %s not found", c.ID)
		}
		if err != nil {
			return err
		}
		tui.Timeline(a.out, sess, c.Verbose)
		return nil
	}

	list, err := sessions.List(c.Limit)
	if err != nil {
		return err
	}
	writeRunsTable(a.out, list)
	return nil
}

func writeRunsTable(w io.Writer, list []*session.Session) {
	if len(list) == 0 {
		fmt.Fprintln(w, "No runs yet.")
		return
	}
	t := table.New().
		Border(lipgloss.NormalBorder()).
		Headers("ID", "DOMAIN", "AREA", "STATUS", "STARTED").
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			return cellStyle
		})
	for _, s := range list {
		t.Row(s.ID, s.Inputs["domain"], s.Inputs["area"], s.Status,
			s.CreatedAt.Local().Format("2006-01-02 15:04"))
	}
	fmt.Fprintln(w, t)
}
