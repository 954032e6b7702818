// Package leads runs the Lead Synapse crew: find companies for a domain and
// area, then find decision makers at those companies.
package leads

import (
	_ "embed"
	"errors"
	"fmt"
	"strings"

	"github.com/vinayprograms/leadsynapse/internal/crew"
)

//go:embed crew.yaml
var crewYAML []byte

// Files written by the crew, relative to a run's output directory.
const (
	CompaniesFile = "companies.md"
	PeopleFile    = "people.md"
)

// Form defaults.
const (
	DefaultDomain = "Healthcare Technology"
	DefaultArea   = "New York City"
)

// User-facing messages.
const (
	InputWarning        = "Please enter both Domain and Area."
	CompaniesMissingMsg = "`companies.md` file not found. Task 1 might have failed."
	PeopleMissingMsg    = "`people.md` file not found. Task 2 might have failed or produced no output."
	CompaniesFailedMsg  = "Failed to generate company list due to an error."
	PeopleFailedMsg     = "Failed to generate contact list due to an error."
	Placeholder         = "*(Results will appear here after generation)*"
)

// ErrInvalidInput is returned when domain or area is empty.
var ErrInvalidInput = errors.New("please enter both domain and area")

// Inputs are the two form values interpolated into the task prompts.
type Inputs struct {
	Domain string `json:"domain"`
	Area   string `json:"area"`
}

// DefaultInputs returns the form defaults.
func DefaultInputs() Inputs {
	return Inputs{Domain: DefaultDomain, Area: DefaultArea}
}

// Validate returns the trimmed inputs, or ErrInvalidInput when either is blank.
func (in Inputs) Validate() (Inputs, error) {
	out := Inputs{
		Domain: strings.TrimSpace(in.Domain),
		Area:   strings.TrimSpace(in.Area),
	}
	if out.Domain == "" || out.Area == "" {
		return out, ErrInvalidInput
	}
	return out, nil
}

// Map returns the inputs keyed by their placeholder names.
func (in Inputs) Map() map[string]string {
	return map[string]string{"domain": in.Domain, "area": in.Area}
}

// DefaultDefinition parses the built-in crew.
func DefaultDefinition() (*crew.Definition, error) {
	return crew.ParseDefinition(crewYAML)
}

// LoadDefinition loads a crew from path, or the built-in crew when path is
// empty. Custom crews must still write companies.md and people.md.
func LoadDefinition(path string) (*crew.Definition, error) {
	if path == "" {
		return DefaultDefinition()
	}
	def, err := crew.LoadDefinition(path)
	if err != nil {
		return nil, err
	}
	if err := checkOutputs(def); err != nil {
		return nil, fmt.Errorf("crew %s: %w", path, err)
	}
	return def, nil
}

func checkOutputs(def *crew.Definition) error {
	have := make(map[string]bool)
	for _, t := range def.Tasks {
		have[t.OutputFile] = true
	}
	var errs []error
	for _, f := range []string{CompaniesFile, PeopleFile} {
		if !have[f] {
			errs = append(errs, fmt.Errorf("no task writes %s", f))
		}
	}
	return errors.Join(errs...)
}
