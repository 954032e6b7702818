package leads

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vinayprograms/leadsynapse/internal/crew"
	"github.com/vinayprograms/leadsynapse/internal/tools"
)

func TestDefaultDefinition(t *testing.T) {
	def, err := DefaultDefinition()
	require.NoError(t, err)

	assert.Equal(t, "lead_synapse", def.Name)
	assert.Equal(t, crew.ProcessSequential, def.Process)
	assert.Equal(t, []string{"area", "domain"}, def.Variables())

	require.Len(t, def.Tasks, 2)
	assert.Equal(t, "company_finder", def.Tasks[0].Agent)
	assert.Equal(t, CompaniesFile, def.Tasks[0].OutputFile)
	assert.Equal(t, "linkedin_prospector", def.Tasks[1].Agent)
	assert.Equal(t, PeopleFile, def.Tasks[1].OutputFile)
	assert.Equal(t, []string{"company_finder_task"}, def.Tasks[1].Context)

	assert.Equal(t, []string{tools.SerperToolName}, def.Agent("company_finder").Tools)
	assert.Equal(t, []string{tools.ExaToolName}, def.Agent("linkedin_prospector").Tools)
	assert.Equal(t, "Company Discovery Specialist", def.Agent("company_finder").Role)

	reg := tools.NewRegistry(tools.NewSerperTool(""), tools.NewExaTool(""))
	assert.NoError(t, def.Validate(reg.Has))
}

func TestInputs_Validate(t *testing.T) {
	tests := []struct {
		name    string
		in      Inputs
		want    Inputs
		wantErr bool
	}{
		{"defaults", DefaultInputs(), Inputs{"Healthcare Technology", "New York City"}, false},
		{"trimmed", Inputs{"  Fintech ", "\tLondon\n"}, Inputs{"Fintech", "London"}, false},
		{"empty domain", Inputs{"", "London"}, Inputs{"", "London"}, true},
		{"blank area", Inputs{"Fintech", "   "}, Inputs{"Fintech", ""}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.in.Validate()
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidInput)
			} else {
				assert.NoError(t, err)
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestInputs_Map(t *testing.T) {
	assert.Equal(t, map[string]string{"domain": "Fintech", "area": "Berlin"},
		Inputs{Domain: "Fintech", Area: "Berlin"}.Map())
}

func TestLoadDefinition(t *testing.T) {
	def, err := LoadDefinition("")
	require.NoError(t, err)
	assert.Equal(t, "lead_synapse", def.Name)

	dir := t.TempDir()
	path := filepath.Join(dir, "crew.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
name: custom
agents:
  - name: a
    role: researcher
    goal: find things
tasks:
  - name: only
    description: find {domain} in {area}
    agent: a
    output_file: companies.md
`), 0644))

	_, err = LoadDefinition(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no task writes people.md")

	_, err = LoadDefinition(filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err)
}
