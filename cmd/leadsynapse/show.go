package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/vinayprograms/leadsynapse/internal/leads"
	"github.com/vinayprograms/leadsynapse/internal/tui"
)

// Run pages through a run's companies.md and people.md.
func (c *ShowCmd) Run(g *Globals) error {
	a, err := g.load()
	if err != nil {
		return err
	}
	dir := resolveRunDir(c.Dir, a.cfg.OutputDir())
	if fi, err := os.Stat(dir); err != nil || !fi.IsDir() {
		return fmt.Errorf("run directory not found: %s", c.Dir)
	}

	if !isTerminal(os.Stdout) {
		return writeReport(a.out, leads.BuildReport(dir, nil, nil), false, false)
	}

	render := func(width int) (string, error) {
		r, err := tui.NewRenderer(width, "")
		if err != nil {
			return "", err
		}
		return r.Report(leads.BuildReport(dir, nil, nil)), nil
	}
	watch := ""
	if c.Follow {
		watch = dir
	}
	return tui.Page(filepath.Base(dir), render, watch)
}

// resolveRunDir accepts a directory path or a run ID under outputDir.
func resolveRunDir(arg, outputDir string) string {
	if fi, err := os.Stat(arg); err == nil && fi.IsDir() {
		return arg
	}
	return filepath.Join(outputDir, arg)
}
