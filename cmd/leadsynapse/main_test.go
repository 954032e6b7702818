package main

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alecthomas/kong"
	aktelemetry "github.com/vinayprograms/agentkit/telemetry"

	"github.com/vinayprograms/leadsynapse/internal/config"
	"github.com/vinayprograms/leadsynapse/internal/events"
	"github.com/vinayprograms/leadsynapse/internal/leads"
	"github.com/vinayprograms/leadsynapse/internal/logging"
	"github.com/vinayprograms/leadsynapse/internal/session"
	"github.com/vinayprograms/leadsynapse/internal/telemetry"
	"github.com/vinayprograms/leadsynapse/internal/web"
)

func TestRunCmd_Flags(t *testing.T) {
	var cli CLI
	parser, err := kong.New(&cli)
	if err != nil {
		t.Fatal(err)
	}

	_, err = parser.Parse([]string{"run", "-d", "Fintech", "--area", "Berlin", "--plain"})
	if err != nil {
		t.Fatal(err)
	}

	if cli.Run.Domain != "Fintech" || cli.Run.Area != "Berlin" {
		t.Errorf("unexpected inputs %q / %q", cli.Run.Domain, cli.Run.Area)
	}
	if !cli.Run.Plain {
		t.Error("expected --plain to be set")
	}
	if cli.LogLevel != "info" {
		t.Errorf("expected default log level 'info', got %q", cli.LogLevel)
	}
}

func TestRunsCmd_Defaults(t *testing.T) {
	var cli CLI
	parser, err := kong.New(&cli)
	if err != nil {
		t.Fatal(err)
	}

	ctx, err := parser.Parse([]string{"runs"})
	if err != nil {
		t.Fatal(err)
	}
	if ctx.Command() != "runs" {
		t.Errorf("expected command 'runs', got %q", ctx.Command())
	}
	if cli.Runs.Limit != 20 {
		t.Errorf("expected default limit 20, got %d", cli.Runs.Limit)
	}
}

func TestServeCmd_Overrides(t *testing.T) {
	var cli CLI
	parser, err := kong.New(&cli)
	if err != nil {
		t.Fatal(err)
	}

	_, err = parser.Parse([]string{"--log-level", "debug", "serve", "--addr", ":9000", "--tailscale", "leads"})
	if err != nil {
		t.Fatal(err)
	}
	if cli.Serve.Addr != ":9000" || cli.Serve.Tailscale != "leads" {
		t.Errorf("unexpected serve flags %+v", cli.Serve)
	}
	if cli.LogLevel != "debug" {
		t.Errorf("expected log level 'debug', got %q", cli.LogLevel)
	}
}

func TestCLI_RejectsBadLogLevel(t *testing.T) {
	var cli CLI
	parser, err := kong.New(&cli)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := parser.Parse([]string{"--log-level", "loud", "version"}); err == nil {
		t.Error("expected error for unknown log level")
	}
}

func TestVersionCmd(t *testing.T) {
	var buf bytes.Buffer
	g := &Globals{out: &buf}
	if err := (&VersionCmd{}).Run(g); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), "leadsynapse version dev") {
		t.Errorf("unexpected version output %q", buf.String())
	}
}

func TestValidateCmd_BuiltIn(t *testing.T) {
	var buf bytes.Buffer
	if err := (&ValidateCmd{}).Run(&Globals{out: &buf}); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	for _, want := range []string{"Valid crew", "built-in", "company_finder", "writes companies.md", "writes people.md", "[area domain]"} {
		if !strings.Contains(out, want) {
			t.Errorf("expected %q in output:\n%s", want, out)
		}
	}
}

func TestValidateCmd_MissingOutput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "crew.yaml")
	crewYAML := `name: partial
agents:
  - name: finder
    role: Finder
    goal: Find
    backstory: Finds
    tools: [serper_search]
tasks:
  - name: find
    agent: finder
    description: Find {domain}
    expected_output: A list
    output_file: companies.md
`
	if err := os.WriteFile(path, []byte(crewYAML), 0644); err != nil {
		t.Fatal(err)
	}

	err := (&ValidateCmd{File: path}).Run(&Globals{out: &bytes.Buffer{}})
	if err == nil || !strings.Contains(err.Error(), "people.md") {
		t.Errorf("expected missing people.md error, got %v", err)
	}
}

// setupWorkspace points config and credentials lookup at a temp dir using
// the file session backend.
func setupWorkspace(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("HOME", dir)
	t.Chdir(dir)
	cfg := "[storage]\nbackend = \"file\"\npath = \"" + filepath.ToSlash(filepath.Join(dir, "state")) + "\"\n"
	if err := os.WriteFile(filepath.Join(dir, "leadsynapse.toml"), []byte(cfg), 0644); err != nil {
		t.Fatal(err)
	}
	return dir
}

func TestRunsCmd_ListAndTimeline(t *testing.T) {
	dir := setupWorkspace(t)

	store, err := session.NewFileStore(filepath.Join(dir, "state"))
	if err != nil {
		t.Fatal(err)
	}
	mgr := session.NewManager(store)
	sess, err := mgr.Create("run-1", "lead_synapse", map[string]string{"domain": "Fintech", "area": "Berlin"})
	if err != nil {
		t.Fatal(err)
	}
	sess.AddEvent(session.Event{Type: session.EventRunStart})
	sess.Finish(session.StatusComplete, "done", "")
	if err := mgr.Update(sess); err != nil {
		t.Fatal(err)
	}

	var buf bytes.Buffer
	if err := (&RunsCmd{Limit: 10}).Run(&Globals{out: &buf}); err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{"run-1", "Fintech", "Berlin", "complete"} {
		if !strings.Contains(buf.String(), want) {
			t.Errorf("expected %q in runs table:\n%s", want, buf.String())
		}
	}

	buf.Reset()
	if err := (&RunsCmd{ID: "run-1"}).Run(&Globals{out: &buf}); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), "RUN START") {
		t.Errorf("expected timeline output, got:\n%s", buf.String())
	}

	if err := (&RunsCmd{ID: "missing"}).Run(&Globals{out: &buf}); err == nil {
		t.Error("expected error for unknown run")
	}
}

func TestRunsCmd_Empty(t *testing.T) {
	setupWorkspace(t)

	var buf bytes.Buffer
	if err := (&RunsCmd{Limit: 10}).Run(&Globals{out: &buf}); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), "No runs yet.") {
		t.Errorf("unexpected output %q", buf.String())
	}
}

func TestRunCmd_InputsNonInteractive(t *testing.T) {
	in, err := (&RunCmd{Domain: " Fintech ", Area: "Berlin"}).inputs(false)
	if err != nil {
		t.Fatal(err)
	}
	if in.Domain != "Fintech" || in.Area != "Berlin" {
		t.Errorf("expected trimmed inputs, got %+v", in)
	}

	_, err = (&RunCmd{Domain: "Fintech"}).inputs(false)
	if err == nil || err.Error() != leads.InputWarning {
		t.Errorf("expected input warning, got %v", err)
	}
}

func TestPrintEvents(t *testing.T) {
	ch := make(chan events.Event, 4)
	now := time.Now()
	ch <- events.Event{Type: events.TaskStarted, Task: "company_finder_task", Agent: "company_finder", Time: now}
	ch <- events.Event{Type: events.ToolCalled, Agent: "company_finder", Tool: "serper_search", Time: now}
	ch <- events.Event{Type: events.RunFailed, Message: "boom", Time: now}
	close(ch)

	var buf bytes.Buffer
	printEvents(&buf, ch)
	out := buf.String()
	for _, want := range []string{"company_finder_task started (company_finder)", "serper_search", "run failed: boom"} {
		if !strings.Contains(out, want) {
			t.Errorf("expected %q in:\n%s", want, out)
		}
	}
}

func TestWriteReport(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, leads.CompaniesFile), []byte("# Companies\n\n- Acme Pay\n"), 0644); err != nil {
		t.Fatal(err)
	}
	rep := leads.BuildReport(dir, nil, nil)

	var buf bytes.Buffer
	if err := writeReport(&buf, rep, false, false); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), "Acme Pay") {
		t.Errorf("expected companies in report:\n%s", buf.String())
	}
	if !strings.Contains(buf.String(), "people.md") {
		t.Errorf("expected missing people notice:\n%s", buf.String())
	}

	buf.Reset()
	if err := writeReport(&buf, rep, true, false); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), `"status": "complete"`) {
		t.Errorf("expected JSON status, got:\n%s", buf.String())
	}
}

func TestResolveRunDir(t *testing.T) {
	dir := t.TempDir()
	if got := resolveRunDir(dir, "/out"); got != dir {
		t.Errorf("expected existing dir %q, got %q", dir, got)
	}
	if got := resolveRunDir("abc123", "/out"); got != filepath.Join("/out", "abc123") {
		t.Errorf("expected run ID under output dir, got %q", got)
	}
}

func clearKeys(t *testing.T) {
	t.Helper()
	for _, env := range []string{"OPENAI_API_KEY", "SERPER_API_KEY", "EXA_API_KEY", "GROQ_API_KEY"} {
		t.Setenv(env, "")
	}
}

func TestServe_StartsWithoutKeys(t *testing.T) {
	setupWorkspace(t)
	clearKeys(t)

	a, err := (&Globals{LogLevel: "error", out: &bytes.Buffer{}}).load()
	if err != nil {
		t.Fatal(err)
	}
	keys := leads.CheckKeys(a.cfg, a.creds)
	if keys.OK() {
		t.Fatal("expected missing keys")
	}
	if got := keys.Error(); !strings.Contains(got, "OPENAI_API_KEY") || !strings.Contains(got, "SERPER_API_KEY") || !strings.Contains(got, "EXA_API_KEY") {
		t.Errorf("error should list every missing key, got %q", got)
	}

	sessions, err := openSessions(a)
	if err != nil {
		t.Fatal(err)
	}
	defer sessions.Close()
	bus := events.NewBus(0, 0)
	defer bus.Close()

	r, err := newRunner(a, keys, sessions, bus)
	if err != nil {
		t.Fatalf("missing keys must not stop the server: %v", err)
	}
	defer r.Shutdown(context.Background())

	srv, err := web.New(a.cfg.Server, r, bus, web.WithSessions(sessions), web.WithKeys(keys))
	if err != nil {
		t.Fatal(err)
	}
	hs := httptest.NewServer(srv.Handler())
	defer hs.Close()

	resp, err := http.Get(hs.URL + "/")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("index status = %d", resp.StatusCode)
	}

	resp, err = http.PostForm(hs.URL+"/generate", url.Values{"domain": {"Fintech"}, "area": {"Berlin"}})
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("generate status = %d, want 503", resp.StatusCode)
	}
}

func TestStartTelemetry(t *testing.T) {
	var hits atomic.Int32
	collector := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/v1/traces" {
			hits.Add(1)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer collector.Close()

	a := &app{cfg: config.Default(), logger: logging.New()}
	a.cfg.Telemetry = config.TelemetryConfig{
		Enabled:  true,
		Endpoint: strings.TrimPrefix(collector.URL, "http://"),
		Insecure: true,
	}
	shutdown, err := startTelemetry(context.Background(), a)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() {
		telemetry.Setup(context.Background(), config.TelemetryConfig{}, version)
	})

	_, span := aktelemetry.GetTracer().StartSpan(context.Background(), "crew.kickoff")
	span.End()
	shutdown()

	if hits.Load() != 1 {
		t.Errorf("expected one export on shutdown, got %d", hits.Load())
	}
}
