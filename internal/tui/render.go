package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/glamour"

	"github.com/vinayprograms/leadsynapse/internal/leads"
)

// Renderer turns markdown into terminal output.
type Renderer struct {
	md *glamour.TermRenderer
}

// NewRenderer creates a renderer wrapping at width. style is a glamour
// standard style ("dark", "light", "notty") or "" for auto detection.
func NewRenderer(width int, style string) (*Renderer, error) {
	opts := []glamour.TermRendererOption{glamour.WithWordWrap(width)}
	if style == "" {
		opts = append(opts, glamour.WithAutoStyle())
	} else {
		opts = append(opts, glamour.WithStandardStyle(style))
	}
	md, err := glamour.NewTermRenderer(opts...)
	if err != nil {
		return nil, fmt.Errorf("create markdown renderer: %w", err)
	}
	return &Renderer{md: md}, nil
}

// Markdown renders src, falling back to the raw text on error.
func (r *Renderer) Markdown(src string) string {
	out, err := r.md.Render(src)
	if err != nil {
		return src
	}
	return out
}

// Report renders both result sections the way the web page lays them out,
// one after the other.
func (r *Renderer) Report(rep *leads.Report) string {
	var b strings.Builder
	b.WriteString(headingStyle.Render("🏢 Found Companies") + "\n")
	writeSection(&b, r, rep.Companies)
	b.WriteString("\n" + headingStyle.Render("👥 Identified Contacts") + "\n")
	writeSection(&b, r, rep.People)

	if rep.Error != "" {
		b.WriteString("\n" + errorStyle.Render("Error details: "+rep.Error) + "\n")
	}
	if rep.Raw != "" {
		b.WriteString("\n" + headingStyle.Render("Raw Crew Output (Debug Info)") + "\n")
		b.WriteString(rep.Raw + "\n")
	}
	return b.String()
}

func writeSection(b *strings.Builder, r *Renderer, s leads.Section) {
	switch {
	case s.Markdown != "":
		b.WriteString(r.Markdown(s.Markdown))
	case s.Error != "":
		b.WriteString(errorStyle.Render("❌ Error: "+s.Error) + "\n")
	default:
		b.WriteString(dimStyle.Render("(no output)") + "\n")
	}
}
