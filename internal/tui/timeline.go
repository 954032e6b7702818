package tui

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/vinayprograms/leadsynapse/internal/session"
)

var (
	seqStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("8")).
			Width(5).
			Align(lipgloss.Right)

	blockStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("8")).
			Italic(true)
)

const contentPreview = 120

// Timeline writes a session's event log. verbose adds task outputs and tool
// results.
func Timeline(w io.Writer, sess *session.Session, verbose bool) {
	fmt.Fprintf(w, "%s %s\n", headingStyle.Render("RUN"), sess.ID)
	fmt.Fprintf(w, "%s %s in %s\n", dimStyle.Render("inputs:"), sess.Inputs["domain"], sess.Inputs["area"])
	fmt.Fprintf(w, "%s %s\n", dimStyle.Render("status:"), statusStyle(sess.Status).Render(sess.Status))
	fmt.Fprintln(w, divider)

	var lastTask string
	for i := range sess.Events {
		e := &sess.Events[i]
		if e.Task != "" && e.Task != lastTask {
			fmt.Fprintf(w, "\n%s %s\n\n", headingStyle.Render("TASK:"), e.Task)
			lastTask = e.Task
		}
		formatEvent(w, e, verbose)
	}

	if sess.Error != "" {
		fmt.Fprintf(w, "\n%s %s\n", errorStyle.Render("error:"), sess.Error)
	}
	for task, path := range sess.Outputs {
		fmt.Fprintf(w, "%s %s → %s\n", dimStyle.Render("output:"), task, path)
	}
}

func formatEvent(w io.Writer, e *session.Event, verbose bool) {
	seq := seqStyle.Render(fmt.Sprintf("%d", e.SeqID))
	ts := dimStyle.Render(e.Timestamp.Format("15:04:05"))

	switch e.Type {
	case session.EventRunStart:
		fmt.Fprintf(w, "%s │ %s │ %s\n", seq, ts, headingStyle.Render("RUN START"))
	case session.EventRunEnd:
		fmt.Fprintf(w, "%s │ %s │ %s %s %s\n", seq, ts, headingStyle.Render("RUN END"),
			statusStyle(e.Content).Render(e.Content),
			dimStyle.Render(fmt.Sprintf("(%dms)", e.DurationMs)))
	case session.EventTaskStart:
		fmt.Fprintf(w, "%s │ %s │ %s %s\n", seq, ts, headingStyle.Render("TASK START"), agentStyle.Render(e.Agent))
	case session.EventTaskEnd:
		fmt.Fprintf(w, "%s │ %s │ %s\n", seq, ts, headingStyle.Render("TASK END"))
		if verbose && e.Content != "" {
			printBlock(w, e.Content)
		}
	case session.EventToolCall:
		fmt.Fprintf(w, "%s │ %s │ %s %s %s\n", seq, ts, toolStyle.Render("TOOL CALL:"), e.Tool,
			dimStyle.Render(truncate(e.Content, contentPreview)))
	case session.EventToolResult:
		if e.Error != "" {
			fmt.Fprintf(w, "%s │ %s │ %s %s %s\n", seq, ts, toolStyle.Render("TOOL RESULT:"), e.Tool,
				errorStyle.Render(e.Error))
			return
		}
		fmt.Fprintf(w, "%s │ %s │ %s %s %s\n", seq, ts, toolStyle.Render("TOOL RESULT:"), e.Tool,
			successStyle.Render("ok"))
		if verbose && e.Content != "" {
			printBlock(w, e.Content)
		}
	default:
		fmt.Fprintf(w, "%s │ %s │ %s\n", seq, ts, dimStyle.Render(e.Type))
	}
}

func printBlock(w io.Writer, content string) {
	for _, line := range strings.Split(strings.TrimRight(content, "\n"), "\n") {
		fmt.Fprintf(w, "      │          │   %s\n", blockStyle.Render(line))
	}
}

func truncate(s string, n int) string {
	s = strings.ReplaceAll(s, "\n", " ")
	if len([]rune(s)) <= n {
		return s
	}
	return string([]rune(s)[:n]) + "..."
}
