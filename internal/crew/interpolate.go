package crew

import (
	"fmt"
	"regexp"
	"strings"
)

var placeholderRe = regexp.MustCompile(`\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// ErrMissingInput is returned when a placeholder has no matching input.
type ErrMissingInput struct {
	Name string
	Task string
}

func (e *ErrMissingInput) Error() string {
	return fmt.Sprintf("task %q: missing input %q", e.Task, e.Name)
}

// interpolate replaces {name} placeholders with values from inputs.
func interpolate(task, text string, inputs map[string]string) (string, error) {
	var missing string
	out := placeholderRe.ReplaceAllStringFunc(text, func(m string) string {
		name := m[1 : len(m)-1]
		v, ok := inputs[name]
		if !ok {
			if missing == "" {
				missing = name
			}
			return m
		}
		return v
	})
	if missing != "" {
		return "", &ErrMissingInput{Name: missing, Task: task}
	}
	return out, nil
}

// stripFence removes a single markdown code fence wrapping the whole answer.
func stripFence(s string) string {
	trimmed := strings.TrimSpace(s)
	if !strings.HasPrefix(trimmed, "```") || !strings.HasSuffix(trimmed, "```") || len(trimmed) < 6 {
		return s
	}
	nl := strings.IndexByte(trimmed, '\n')
	if nl < 0 {
		return s
	}
	lang := strings.TrimSpace(trimmed[3:nl])
	if lang != "" && lang != "markdown" && lang != "md" {
		return s
	}
	body := trimmed[nl+1 : len(trimmed)-3]
	if strings.Contains(body, "```") {
		return s
	}
	return strings.TrimSpace(body) + "\n"
}
