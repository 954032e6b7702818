package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/vinayprograms/leadsynapse/internal/events"
	"github.com/vinayprograms/leadsynapse/internal/leads"
	"github.com/vinayprograms/leadsynapse/internal/tui"
)

const defaultWidth = 100

// Run generates leads once and prints the report.
func (c *RunCmd) Run(g *Globals) error {
	a, err := g.load()
	if err != nil {
		return err
	}
	interactive := !c.Plain && !c.JSON && isTerminal(os.Stdin) && isTerminal(os.Stdout)

	in, err := c.inputs(interactive)
	if err != nil {
		return err
	}

	keys := leads.CheckKeys(a.cfg, a.creds)
	for _, w := range keys.Warnings {
		a.logger.Warn(w)
	}
	if !keys.OK() {
		return keys
	}

	ctx, stop := signalContext()
	defer stop()

	shutdownTelemetry, err := startTelemetry(ctx, a)
	if err != nil {
		return err
	}
	defer shutdownTelemetry()

	sessions, err := openSessions(a)
	if err != nil {
		return err
	}
	defer sessions.Close()

	bus := events.NewBus(0, 0)
	defer bus.Close()

	svc, err := newService(a, keys, sessions, bus)
	if err != nil {
		return err
	}

	runID := uuid.NewString()
	ch, cancel := bus.Subscribe(runID)
	defer cancel()

	type outcome struct {
		report *leads.Report
		err    error
	}
	done := make(chan outcome, 1)
	go func() {
		report, err := svc.Generate(ctx, runID, in)
		done <- outcome{report, err}
	}()

	if interactive {
		var tasks []string
		for _, t := range svc.Definition().Tasks {
			tasks = append(tasks, t.Name)
		}
		if err := tui.ShowProgress(tasks, ch); errors.Is(err, tui.ErrCancelled) {
			stop()
		} else if err != nil {
			a.logger.Warn("progress view failed", map[string]interface{}{"error": err.Error()})
		}
	} else if !c.JSON {
		printEvents(a.out, ch)
	}

	res := <-done
	if res.report == nil {
		return res.err
	}
	if err := writeReport(a.out, res.report, c.JSON, interactive); err != nil {
		return err
	}
	return res.err
}

// inputs returns the flag values, asking for missing ones when interactive.
func (c *RunCmd) inputs(interactive bool) (leads.Inputs, error) {
	in := leads.Inputs{Domain: c.Domain, Area: c.Area}
	if v, err := in.Validate(); err == nil {
		return v, nil
	}
	if !interactive {
		return leads.Inputs{}, errors.New(leads.InputWarning)
	}
	prefill := leads.DefaultInputs()
	if c.Domain != "" {
		prefill.Domain = c.Domain
	}
	if c.Area != "" {
		prefill.Area = c.Area
	}
	return tui.AskInputs(prefill)
}

// printEvents writes one line per progress event until the run ends.
func printEvents(w io.Writer, ch <-chan events.Event) {
	for e := range ch {
		ts := e.Time.Format(time.TimeOnly)
		switch e.Type {
		case events.RunStarted:
			fmt.Fprintf(w, "%s  run started: %s\n", ts, e.Message)
		case events.TaskStarted:
			fmt.Fprintf(w, "%s  %s started (%s)\n", ts, e.Task, e.Agent)
		case events.ToolCalled:
			fmt.Fprintf(w, "%s    %s → %s\n", ts, e.Agent, e.Tool)
		case events.TaskCompleted:
			fmt.Fprintf(w, "%s  %s completed\n", ts, e.Task)
		case events.RunCompleted:
			fmt.Fprintf(w, "%s  run completed\n", ts)
		case events.RunFailed:
			fmt.Fprintf(w, "%s  run failed: %s\n", ts, e.Message)
		}
	}
}

// writeReport prints the report as JSON or rendered markdown.
func writeReport(w io.Writer, rep *leads.Report, asJSON, color bool) error {
	if asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(rep)
	}
	style := "notty"
	if color {
		style = ""
	}
	r, err := tui.NewRenderer(termWidth(), style)
	if err != nil {
		return err
	}
	fmt.Fprint(w, r.Report(rep))
	fmt.Fprintf(w, "\noutput: %s  tokens: %d in / %d out\n", rep.OutputDir, rep.InputTokens, rep.OutputTokens)
	return nil
}

// isTerminal checks if the given file is a terminal.
func isTerminal(f *os.File) bool {
	fi, err := f.Stat()
	if err != nil {
		return false
	}
	return (fi.Mode() & os.ModeCharDevice) != 0
}

// termWidth reads COLUMNS, falling back to defaultWidth.
func termWidth() int {
	if n, err := strconv.Atoi(os.Getenv("COLUMNS")); err == nil && n > 20 {
		return n
	}
	return defaultWidth
}

