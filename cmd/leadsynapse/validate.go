package main

import (
	"fmt"

	"github.com/vinayprograms/leadsynapse/internal/config"
	"github.com/vinayprograms/leadsynapse/internal/credentials"
	"github.com/vinayprograms/leadsynapse/internal/leads"
)

// Run validates a crew definition against the registered tools.
func (c *ValidateCmd) Run(g *Globals) error {
	def, err := leads.LoadDefinition(c.File)
	if err != nil {
		return err
	}
	registry := leads.NewRegistry(config.Default(), credentials.New())
	if err := def.Validate(registry.Has); err != nil {
		return fmt.Errorf("invalid crew %q: %w", def.Name, err)
	}

	out := g.writer()
	source := c.File
	if source == "" {
		source = "built-in"
	}
	fmt.Fprintf(out, "Valid crew: %s (%s)\n", def.Name, source)
	fmt.Fprintf(out, "  Process: %s\n", def.Process)
	for _, a := range def.Agents {
		fmt.Fprintf(out, "  Agent %s: %s %v\n", a.Name, a.Role, a.Tools)
	}
	for _, t := range def.Tasks {
		fmt.Fprintf(out, "  Task %s → %s", t.Name, t.Agent)
		if t.OutputFile != "" {
			fmt.Fprintf(out, " (writes %s)", t.OutputFile)
		}
		fmt.Fprintln(out)
	}
	if vars := def.Variables(); len(vars) > 0 {
		fmt.Fprintf(out, "  Inputs: %v\n", vars)
	}
	return nil
}
