package leads

import (
	"errors"
	"os"
	"path/filepath"

	"github.com/vinayprograms/leadsynapse/internal/crew"
)

// Section is one results column.
type Section struct {
	Markdown string `json:"markdown,omitempty"`
	Error    string `json:"error,omitempty"`
}

// Shown reports whether the section has content to display.
func (s Section) Shown() bool {
	return s.Markdown != ""
}

// Report is what the operator sees after a run.
type Report struct {
	RunID        string  `json:"run_id"`
	Inputs       Inputs  `json:"inputs"`
	OutputDir    string  `json:"output_dir"`
	Status       string  `json:"status"`
	Companies    Section `json:"companies"`
	People       Section `json:"people"`
	Raw          string  `json:"raw,omitempty"` // set only when no file was displayed
	Error        string  `json:"error,omitempty"`
	InputTokens  int     `json:"input_tokens"`
	OutputTokens int     `json:"output_tokens"`
}

// Displayed reports whether either results file was shown.
func (r *Report) Displayed() bool {
	return r.Companies.Shown() || r.People.Shown()
}

// BuildReport reads the run's output files from dir. People are only read
// when companies.md exists. A kickoff error replaces both sections.
func BuildReport(dir string, result *crew.Result, kickoffErr error) *Report {
	r := &Report{OutputDir: dir, Status: string(crew.StatusComplete)}
	if result != nil {
		r.InputTokens = result.InputTokens
		r.OutputTokens = result.OutputTokens
	}

	if kickoffErr != nil {
		r.Status = string(crew.StatusFailed)
		r.Error = kickoffErr.Error()
		r.Companies.Error = CompaniesFailedMsg
		r.People.Error = PeopleFailedMsg
		return r
	}

	companies, err := readOutput(dir, CompaniesFile)
	switch {
	case err == nil:
		r.Companies.Markdown = companies
	case errors.Is(err, os.ErrNotExist):
		r.Companies.Error = CompaniesMissingMsg
	default:
		r.Companies.Error = err.Error()
	}

	if _, err := os.Stat(filepath.Join(dir, CompaniesFile)); err == nil {
		people, err := readOutput(dir, PeopleFile)
		switch {
		case err == nil:
			r.People.Markdown = people
		case errors.Is(err, os.ErrNotExist):
			r.People.Error = PeopleMissingMsg
		default:
			r.People.Error = err.Error()
		}
	}

	if !r.Displayed() && result != nil {
		r.Raw = result.Raw
	}
	return r
}

func readOutput(dir, name string) (string, error) {
	data, err := os.ReadFile(filepath.Join(dir, name))
	if err != nil {
		return "", err
	}
	return string(data), nil
}
