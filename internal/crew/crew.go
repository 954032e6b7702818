package crew

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/vinayprograms/leadsynapse/internal/llm"
	"github.com/vinayprograms/leadsynapse/internal/logging"
	"github.com/vinayprograms/leadsynapse/internal/tools"
)

// Status represents the execution status.
type Status string

const (
	StatusRunning  Status = "running"
	StatusComplete Status = "complete"
	StatusFailed   Status = "failed"
)

// DefaultMaxIterations bounds the tool loop of a single task.
const DefaultMaxIterations = 20

// finalAnswerPrompt is sent when a task exhausts its tool budget.
const finalAnswerPrompt = "You have used the maximum number of tool calls for this task. " +
	"Using the information gathered so far, give your final answer now."

// Result is the outcome of a kickoff.
type Result struct {
	Status       Status       `json:"status"`
	Tasks        []TaskOutput `json:"tasks"`
	Raw          string       `json:"raw"` // last completed task's answer
	Error        string       `json:"error,omitempty"`
	InputTokens  int          `json:"input_tokens"`
	OutputTokens int          `json:"output_tokens"`
}

// Output returns the named task's output, or nil.
func (r *Result) Output(task string) *TaskOutput {
	for i := range r.Tasks {
		if r.Tasks[i].Name == task {
			return &r.Tasks[i]
		}
	}
	return nil
}

// Config controls kickoff behavior.
type Config struct {
	OutputDir     string        // base directory for task output files
	MaxIterations int           // LLM turns per task, default 20
	ToolTimeout   time.Duration // per tool call, 0 = none
	MaxTokens     int           // 0 = provider default
}

// Crew executes a validated definition.
type Crew struct {
	def      *Definition
	provider llm.Provider
	registry *tools.Registry
	cfg      Config
	logger   *logging.Logger

	// Callbacks. They may be invoked concurrently for tool events.
	OnTaskStart    func(task, agent string)
	OnTaskComplete func(task, agent, output string)
	OnToolCall     func(name string, args map[string]interface{}, result interface{}, agent string)
	OnToolError    func(name string, args map[string]interface{}, err error, agent string)
}

// New validates def against the registry and returns a crew ready to kick off.
func New(def *Definition, provider llm.Provider, registry *tools.Registry, cfg Config) (*Crew, error) {
	if provider == nil {
		return nil, fmt.Errorf("crew %s: no LLM provider", def.Name)
	}
	if registry == nil {
		registry = tools.NewRegistry()
	}
	if err := def.Validate(registry.Has); err != nil {
		return nil, fmt.Errorf("invalid crew %s: %w", def.Name, err)
	}
	if cfg.MaxIterations <= 0 {
		cfg.MaxIterations = DefaultMaxIterations
	}
	return &Crew{
		def:      def,
		provider: provider,
		registry: registry,
		cfg:      cfg,
		logger:   logging.New().WithComponent("crew"),
	}, nil
}

// SetLogger replaces the crew logger.
func (c *Crew) SetLogger(l *logging.Logger) {
	c.logger = l
}

// Definition returns the crew definition.
func (c *Crew) Definition() *Definition {
	return c.def
}

func (a *Agent) hasTool(name string) bool {
	for _, t := range a.Tools {
		if t == name {
			return true
		}
	}
	return false
}

// Kickoff runs every task in order. The first failing task stops the crew;
// its error is returned together with the partial result.
func (c *Crew) Kickoff(ctx context.Context, inputs map[string]string) (*Result, error) {
	start := time.Now()
	ctx, span := c.startKickoffSpan(ctx)
	c.logger.KickoffStart(c.def.Name, inputs)

	result := &Result{Status: StatusRunning}
	fail := func(err error) (*Result, error) {
		result.Status = StatusFailed
		result.Error = err.Error()
		c.logger.KickoffComplete(c.def.Name, time.Since(start), string(result.Status))
		endSpan(span, err, attribute.String("crew.status", string(result.Status)))
		return result, err
	}

	type prepared struct{ description, expected string }
	tasks := make([]prepared, len(c.def.Tasks))
	for i, t := range c.def.Tasks {
		desc, err := interpolate(t.Name, t.Description, inputs)
		if err != nil {
			return fail(err)
		}
		expected, err := interpolate(t.Name, t.ExpectedOutput, inputs)
		if err != nil {
			return fail(err)
		}
		tasks[i] = prepared{desc, expected}
	}

	for i := range c.def.Tasks {
		task := &c.def.Tasks[i]
		if err := ctx.Err(); err != nil {
			return fail(err)
		}
		out, in, outTok, err := c.runTask(ctx, task, tasks[i].description, tasks[i].expected, result.Tasks)
		result.InputTokens += in
		result.OutputTokens += outTok
		if err != nil {
			return fail(fmt.Errorf("task %s: %w", task.Name, err))
		}
		result.Tasks = append(result.Tasks, *out)
		result.Raw = out.Raw
	}

	result.Status = StatusComplete
	c.logger.KickoffComplete(c.def.Name, time.Since(start), string(result.Status))
	endSpan(span, nil,
		attribute.String("crew.status", string(result.Status)),
		attribute.Int("crew.input_tokens", result.InputTokens),
		attribute.Int("crew.output_tokens", result.OutputTokens),
	)
	return result, nil
}

// contextFor selects earlier outputs visible to a task: every earlier output
// for memory-enabled agents, otherwise only the declared context.
func contextFor(task *Task, agent *Agent, done []TaskOutput) []TaskOutput {
	if agent.Memory {
		return done
	}
	var out []TaskOutput
	for _, name := range task.Context {
		for _, d := range done {
			if d.Name == name {
				out = append(out, d)
			}
		}
	}
	return out
}

func (c *Crew) runTask(ctx context.Context, task *Task, description, expected string, done []TaskOutput) (out *TaskOutput, inTokens, outTokens int, err error) {
	start := time.Now()
	agent := c.def.Agent(task.Agent)
	ctx, span := startTaskSpan(ctx, task)
	iterations := 0
	defer func() {
		endSpan(span, err, attribute.Int("task.iterations", iterations))
	}()

	c.logger.TaskStart(task.Name, agent.Name)
	if c.OnTaskStart != nil {
		c.OnTaskStart(task.Name, agent.Name)
	}

	pb := newPromptBuilder(c.def.Name)
	for _, p := range contextFor(task, agent, done) {
		pb.addPrior(p)
	}
	pb.setTask(task.Name, description, expected)

	messages := []llm.Message{
		{Role: "system", Content: systemPrompt(agent)},
		{Role: "user", Content: pb.build()},
	}
	var toolDefs []llm.ToolDef
	if len(agent.Tools) > 0 {
		if toolDefs, err = c.registry.Definitions(agent.Tools...); err != nil {
			return nil, 0, 0, err
		}
	}

	var answer string
	for {
		iterations++
		req := llm.ChatRequest{
			Messages:  messages,
			Tools:     toolDefs,
			MaxTokens: c.cfg.MaxTokens,
		}
		final := iterations >= c.cfg.MaxIterations
		if final && len(toolDefs) > 0 {
			req.Tools = nil
			req.Messages = append(append([]llm.Message(nil), messages...), llm.Message{Role: "user", Content: finalAnswerPrompt})
		}

		resp, err := c.provider.Chat(ctx, req)
		if err != nil {
			return nil, inTokens, outTokens, fmt.Errorf("LLM error: %w", err)
		}
		inTokens += resp.InputTokens
		outTokens += resp.OutputTokens

		if len(resp.ToolCalls) == 0 || final {
			answer = resp.Content
			break
		}

		messages = append(messages, llm.Message{Role: "assistant", Content: resp.Content, ToolCalls: resp.ToolCalls})
		messages = append(messages, c.executeToolsParallel(ctx, agent, resp.ToolCalls)...)
	}

	answer = stripFence(answer)
	out = &TaskOutput{Name: task.Name, Agent: agent.Name, Raw: answer}
	if task.OutputFile != "" {
		path, err := c.writeOutput(task.OutputFile, answer)
		if err != nil {
			return nil, inTokens, outTokens, err
		}
		out.OutputFile = path
	}

	c.logger.TaskComplete(task.Name, time.Since(start), iterations)
	if c.OnTaskComplete != nil {
		c.OnTaskComplete(task.Name, agent.Name, answer)
	}
	return out, inTokens, outTokens, nil
}

func (c *Crew) writeOutput(name, content string) (string, error) {
	path := filepath.Join(c.cfg.OutputDir, name)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return "", fmt.Errorf("create output dir: %w", err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		return "", fmt.Errorf("write %s: %w", name, err)
	}
	return path, nil
}
