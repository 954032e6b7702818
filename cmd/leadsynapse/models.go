package main

import (
	"context"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/vinayprograms/leadsynapse/internal/llm"
)

// Run lists models known to the catwalk catalogue.
func (c *ModelsCmd) Run(g *Globals) error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	models, err := llm.ListAllModels(ctx, c.Provider)
	if err != nil {
		return fmt.Errorf("failed to fetch model catalogue: %w", err)
	}
	if len(models) == 0 {
		if c.Provider != "" {
			return fmt.Errorf("no models found for provider %q", c.Provider)
		}
		return fmt.Errorf("model catalogue is empty")
	}

	w := tabwriter.NewWriter(g.writer(), 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "PROVIDER\tMODEL\tCONTEXT\t$/1M IN\t$/1M OUT")
	for _, m := range models {
		fmt.Fprintf(w, "%s\t%s\t%d\t%.2f\t%.2f\n", m.Provider, m.ID, m.ContextWindow, m.CostPer1MIn, m.CostPer1MOut)
	}
	return w.Flush()
}
