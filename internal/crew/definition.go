// Package crew runs a sequential crew of tool-using agents.
package crew

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// ProcessSequential runs tasks one after another in declaration order.
const ProcessSequential = "sequential"

// Agent is a role, goal and backstory bundle plus the tools it may call.
type Agent struct {
	Name            string   `yaml:"name"`
	Role            string   `yaml:"role"`
	Goal            string   `yaml:"goal"`
	Backstory       string   `yaml:"backstory"`
	Tools           []string `yaml:"tools,omitempty"`
	Memory          bool     `yaml:"memory,omitempty"`
	AllowDelegation bool     `yaml:"allow_delegation,omitempty"`
	Verbose         bool     `yaml:"verbose,omitempty"`
}

// Task is a prompt executed by one agent. Its final answer is written to
// OutputFile when set.
type Task struct {
	Name           string   `yaml:"name"`
	Description    string   `yaml:"description"`
	ExpectedOutput string   `yaml:"expected_output"`
	Agent          string   `yaml:"agent"`
	Context        []string `yaml:"context,omitempty"`
	OutputFile     string   `yaml:"output_file,omitempty"`
}

// Definition is the declarative description of a crew.
type Definition struct {
	Name    string  `yaml:"name"`
	Process string  `yaml:"process"`
	Agents  []Agent `yaml:"agents"`
	Tasks   []Task  `yaml:"tasks"`
}

// ParseDefinition decodes a YAML crew definition. Unknown keys are rejected.
func ParseDefinition(data []byte) (*Definition, error) {
	var def Definition
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&def); err != nil {
		return nil, fmt.Errorf("parse crew definition: %w", err)
	}
	if def.Process == "" {
		def.Process = ProcessSequential
	}
	return &def, nil
}

// LoadDefinition reads and parses a crew definition file.
func LoadDefinition(path string) (*Definition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read crew definition: %w", err)
	}
	return ParseDefinition(data)
}

// Agent returns the named agent, or nil.
func (d *Definition) Agent(name string) *Agent {
	for i := range d.Agents {
		if d.Agents[i].Name == name {
			return &d.Agents[i]
		}
	}
	return nil
}

// Task returns the named task, or nil.
func (d *Definition) Task(name string) *Task {
	for i := range d.Tasks {
		if d.Tasks[i].Name == name {
			return &d.Tasks[i]
		}
	}
	return nil
}

// Validate checks the definition. hasTool reports whether a tool name can be
// resolved; nil skips the tool check. All problems are returned together.
func (d *Definition) Validate(hasTool func(string) bool) error {
	var errs []error
	if d.Name == "" {
		errs = append(errs, errors.New("crew name is required"))
	}
	if d.Process != ProcessSequential {
		errs = append(errs, fmt.Errorf("process %q not supported (only %q)", d.Process, ProcessSequential))
	}
	if len(d.Tasks) == 0 {
		errs = append(errs, errors.New("crew has no tasks"))
	}

	agents := make(map[string]bool)
	for _, a := range d.Agents {
		switch {
		case a.Name == "":
			errs = append(errs, errors.New("agent name is required"))
			continue
		case agents[a.Name]:
			errs = append(errs, fmt.Errorf("duplicate agent %q", a.Name))
		}
		agents[a.Name] = true
		if a.Role == "" || a.Goal == "" {
			errs = append(errs, fmt.Errorf("agent %q: role and goal are required", a.Name))
		}
		if a.AllowDelegation {
			errs = append(errs, fmt.Errorf("agent %q: delegation is not supported", a.Name))
		}
		for _, tool := range a.Tools {
			if hasTool != nil && !hasTool(tool) {
				errs = append(errs, fmt.Errorf("agent %q: unknown tool %q", a.Name, tool))
			}
		}
	}

	seen := make(map[string]bool)
	outputs := make(map[string]string)
	for _, t := range d.Tasks {
		if t.Name == "" {
			errs = append(errs, errors.New("task name is required"))
			continue
		}
		if seen[t.Name] {
			errs = append(errs, fmt.Errorf("duplicate task %q", t.Name))
		}
		if strings.TrimSpace(t.Description) == "" {
			errs = append(errs, fmt.Errorf("task %q: description is required", t.Name))
		}
		if !agents[t.Agent] {
			errs = append(errs, fmt.Errorf("task %q: unknown agent %q", t.Name, t.Agent))
		}
		for _, c := range t.Context {
			if !seen[c] {
				errs = append(errs, fmt.Errorf("task %q: context %q must name an earlier task", t.Name, c))
			}
		}
		if t.OutputFile != "" {
			clean := filepath.Clean(t.OutputFile)
			switch {
			case filepath.IsAbs(clean) || clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)):
				errs = append(errs, fmt.Errorf("task %q: output_file %q must be relative to the output directory", t.Name, t.OutputFile))
			case outputs[clean] != "":
				errs = append(errs, fmt.Errorf("task %q: output_file %q already written by %q", t.Name, t.OutputFile, outputs[clean]))
			default:
				outputs[clean] = t.Name
			}
		}
		seen[t.Name] = true
	}
	return errors.Join(errs...)
}

// Variables returns the sorted, de-duplicated placeholder names used by the
// task descriptions and expected outputs.
func (d *Definition) Variables() []string {
	set := make(map[string]bool)
	var names []string
	for _, t := range d.Tasks {
		for _, text := range []string{t.Description, t.ExpectedOutput} {
			for _, m := range placeholderRe.FindAllStringSubmatch(text, -1) {
				if !set[m[1]] {
					set[m[1]] = true
					names = append(names, m[1])
				}
			}
		}
	}
	sort.Strings(names)
	return names
}
