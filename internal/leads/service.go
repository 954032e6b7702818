package leads

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/vinayprograms/leadsynapse/internal/crew"
	"github.com/vinayprograms/leadsynapse/internal/events"
	"github.com/vinayprograms/leadsynapse/internal/llm"
	"github.com/vinayprograms/leadsynapse/internal/logging"
	"github.com/vinayprograms/leadsynapse/internal/session"
	"github.com/vinayprograms/leadsynapse/internal/tools"
)

// maxEventContent bounds tool output copied into the session log.
const maxEventContent = 2000

// Service runs the crew for a pair of inputs.
type Service struct {
	def      *crew.Definition
	provider llm.Provider
	registry *tools.Registry
	cfg      crew.Config
	sessions *session.Manager
	events   events.Publisher
	logger   *logging.Logger
}

// Option configures a Service.
type Option func(*Service)

// WithSessions persists every run.
func WithSessions(m *session.Manager) Option {
	return func(s *Service) { s.sessions = m }
}

// WithEvents publishes run progress.
func WithEvents(p events.Publisher) Option {
	return func(s *Service) { s.events = p }
}

// WithLogger replaces the service logger.
func WithLogger(l *logging.Logger) Option {
	return func(s *Service) { s.logger = l }
}

// NewService validates def against the registry. cfg.OutputDir is the base
// directory; each run writes to its own subdirectory.
func NewService(def *crew.Definition, provider llm.Provider, registry *tools.Registry, cfg crew.Config, opts ...Option) (*Service, error) {
	if def == nil {
		return nil, fmt.Errorf("no crew definition")
	}
	// Construct once so definition and provider errors surface at startup.
	if _, err := crew.New(def, provider, registry, cfg); err != nil {
		return nil, err
	}
	s := &Service{
		def:      def,
		provider: provider,
		registry: registry,
		cfg:      cfg,
		logger:   logging.New().WithComponent("leads"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Definition returns the crew the service runs.
func (s *Service) Definition() *crew.Definition {
	return s.def
}

// RunDir returns the output directory of a run.
func (s *Service) RunDir(runID string) string {
	return filepath.Join(s.cfg.OutputDir, runID)
}

func (s *Service) publish(e events.Event) {
	if s.events != nil {
		s.events.Publish(e)
	}
}

// Generate validates inputs and runs the crew. The report is returned even
// when the crew fails; the error is then the kickoff error.
func (s *Service) Generate(ctx context.Context, runID string, in Inputs) (*Report, error) {
	in, err := in.Validate()
	if err != nil {
		return nil, err
	}
	if runID == "" {
		runID = uuid.NewString()
	}
	logger := s.logger.WithTraceID(runID)
	dir := s.RunDir(runID)

	var sess *session.Session
	if s.sessions != nil {
		if sess, err = s.sessions.Create(runID, s.def.Name, in.Map()); err != nil {
			return nil, fmt.Errorf("create session: %w", err)
		}
		sess.AddEvent(session.Event{Type: session.EventRunStart})
	}
	s.publish(events.Event{RunID: runID, Type: events.RunStarted,
		Message: fmt.Sprintf("%s in %s", in.Domain, in.Area)})

	cfg := s.cfg
	cfg.OutputDir = dir
	c, err := crew.New(s.def, s.provider, s.registry, cfg)
	if err != nil {
		return nil, err
	}
	c.SetLogger(logger.WithComponent("crew"))
	s.hook(c, runID, sess)

	start := time.Now()
	result, kickoffErr := c.Kickoff(ctx, in.Map())
	report := BuildReport(dir, result, kickoffErr)
	report.RunID = runID
	report.Inputs = in

	if kickoffErr != nil {
		logger.Error("run failed", map[string]interface{}{"error": kickoffErr.Error()})
		s.publish(events.Event{RunID: runID, Type: events.RunFailed, Message: kickoffErr.Error()})
	} else {
		logger.Info("run complete", map[string]interface{}{
			"duration":  time.Since(start).String(),
			"displayed": report.Displayed(),
		})
		s.publish(events.Event{RunID: runID, Type: events.RunCompleted})
	}

	if sess != nil {
		s.finish(sess, result, report, time.Since(start))
	}
	return report, kickoffErr
}

func (s *Service) hook(c *crew.Crew, runID string, sess *session.Session) {
	record := func(e session.Event) {
		if sess != nil {
			sess.AddEvent(e)
		}
	}

	c.OnTaskStart = func(task, agent string) {
		record(session.Event{Type: session.EventTaskStart, Task: task, Agent: agent})
		s.publish(events.Event{RunID: runID, Type: events.TaskStarted, Task: task, Agent: agent})
	}
	c.OnTaskComplete = func(task, agent, output string) {
		record(session.Event{Type: session.EventTaskEnd, Task: task, Agent: agent, Content: truncate(output)})
		s.publish(events.Event{RunID: runID, Type: events.TaskCompleted, Task: task, Agent: agent})
	}
	c.OnToolCall = func(name string, args map[string]interface{}, result interface{}, agent string) {
		record(session.Event{Type: session.EventToolCall, Tool: name, Agent: agent, Content: argsJSON(args)})
		record(session.Event{Type: session.EventToolResult, Tool: name, Agent: agent, Content: truncate(fmt.Sprint(result))})
		s.publish(events.Event{RunID: runID, Type: events.ToolCalled, Tool: name, Agent: agent})
	}
	c.OnToolError = func(name string, args map[string]interface{}, err error, agent string) {
		record(session.Event{Type: session.EventToolCall, Tool: name, Agent: agent, Content: argsJSON(args)})
		record(session.Event{Type: session.EventToolResult, Tool: name, Agent: agent, Error: err.Error()})
		s.publish(events.Event{RunID: runID, Type: events.ToolCalled, Tool: name, Agent: agent, Message: err.Error()})
	}
}

func (s *Service) finish(sess *session.Session, result *crew.Result, report *Report, elapsed time.Duration) {
	if result != nil {
		for _, t := range result.Tasks {
			if t.OutputFile != "" {
				sess.SetOutput(t.Name, t.OutputFile)
			}
		}
	}
	status := session.StatusComplete
	if report.Status == string(crew.StatusFailed) {
		status = session.StatusFailed
	}
	var raw string
	if result != nil {
		raw = result.Raw
	}
	sess.AddEvent(session.Event{Type: session.EventRunEnd, Content: status, DurationMs: elapsed.Milliseconds()})
	sess.Finish(status, raw, report.Error)
	if err := s.sessions.Update(sess); err != nil {
		s.logger.Error("failed to save session", map[string]interface{}{
			"run_id": sess.ID,
			"error":  err.Error(),
		})
	}
}

func argsJSON(args map[string]interface{}) string {
	data, err := json.Marshal(args)
	if err != nil {
		return fmt.Sprint(args)
	}
	return string(data)
}

func truncate(s string) string {
	if len(s) <= maxEventContent {
		return s
	}
	return s[:maxEventContent] + "..."
}
