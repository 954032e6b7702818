package crew

import (
	"fmt"
	"strings"
)

// TaskOutput is a completed task's final answer.
type TaskOutput struct {
	Name       string `json:"name"`
	Agent      string `json:"agent"`
	Raw        string `json:"raw"`
	OutputFile string `json:"output_file,omitempty"` // path written, empty when none
}

// promptBuilder builds the XML-structured user prompt for one task.
type promptBuilder struct {
	crewName string
	prior    []TaskOutput
	task     struct {
		id             string
		description    string
		expectedOutput string
	}
}

func newPromptBuilder(crewName string) *promptBuilder {
	return &promptBuilder{crewName: crewName}
}

func (b *promptBuilder) addPrior(out TaskOutput) {
	b.prior = append(b.prior, out)
}

func (b *promptBuilder) setTask(id, description, expectedOutput string) {
	b.task.id = id
	b.task.description = description
	b.task.expectedOutput = expectedOutput
}

func writeBlock(buf *strings.Builder, open, body, close string) {
	buf.WriteString(open)
	buf.WriteString("\n")
	buf.WriteString(body)
	if !strings.HasSuffix(body, "\n") {
		buf.WriteString("\n")
	}
	buf.WriteString(close)
	buf.WriteString("\n")
}

func (b *promptBuilder) build() string {
	var buf strings.Builder
	fmt.Fprintf(&buf, "<crew name=%q>\n", b.crewName)

	if len(b.prior) > 0 {
		buf.WriteString("\n<context>\n")
		for _, p := range b.prior {
			writeBlock(&buf, fmt.Sprintf("  <task id=%q agent=%q>", p.Name, p.Agent), p.Raw, "  </task>")
			buf.WriteString("\n")
		}
		buf.WriteString("</context>\n")
	}

	buf.WriteString("\n")
	fmt.Fprintf(&buf, "<current-task id=%q>\n", b.task.id)
	writeBlock(&buf, "<description>", b.task.description, "</description>")
	if b.task.expectedOutput != "" {
		writeBlock(&buf, "<expected-output>", b.task.expectedOutput, "</expected-output>")
	}
	buf.WriteString("</current-task>\n")
	buf.WriteString("\n</crew>")
	return buf.String()
}

// systemPrompt renders an agent's persona.
func systemPrompt(a *Agent) string {
	var buf strings.Builder
	fmt.Fprintf(&buf, "You are %s. %s\nYour personal goal is: %s\n", a.Role, strings.TrimSpace(a.Backstory), a.Goal)
	buf.WriteString("\nWork on the <current-task>. Outputs of earlier tasks, when present, are in <context>.")
	if len(a.Tools) > 0 {
		buf.WriteString(" Use the available tools to gather information before answering.")
	}
	buf.WriteString(" When you are done, reply with the final answer only, in the format described by <expected-output>, without commentary about your process.")
	return buf.String()
}
