package web

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vinayprograms/leadsynapse/internal/config"
	"github.com/vinayprograms/leadsynapse/internal/crew"
	"github.com/vinayprograms/leadsynapse/internal/events"
	"github.com/vinayprograms/leadsynapse/internal/leads"
	"github.com/vinayprograms/leadsynapse/internal/runner"
	"github.com/vinayprograms/leadsynapse/internal/session"
)

const companiesMD = "**Acme Health** - https://acme.example\n\n<script>alert(1)</script>\n"

// fakeGen writes both result files and publishes the same events the
// service does.
type fakeGen struct {
	bus *events.Bus
	dir string
}

func (f *fakeGen) RunDir(id string) string { return filepath.Join(f.dir, id) }

func (f *fakeGen) Generate(ctx context.Context, id string, in leads.Inputs) (*leads.Report, error) {
	f.bus.Publish(events.Event{RunID: id, Type: events.RunStarted})
	f.bus.Publish(events.Event{RunID: id, Type: events.TaskStarted, Task: "company_finder_task", Agent: "company_finder"})
	dir := f.RunDir(id)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}
	os.WriteFile(filepath.Join(dir, leads.CompaniesFile), []byte(companiesMD), 0644)
	os.WriteFile(filepath.Join(dir, leads.PeopleFile), []byte("[Jane Doe](https://www.linkedin.com/in/janedoe)\n"), 0644)
	report := leads.BuildReport(dir, &crew.Result{Raw: "raw"}, nil)
	report.RunID = id
	report.Inputs = in
	f.bus.Publish(events.Event{RunID: id, Type: events.RunCompleted})
	return report, nil
}

type testServer struct {
	srv    *Server
	http   *httptest.Server
	runner *runner.Runner
}

func newTestServer(t *testing.T, opts ...Option) *testServer {
	t.Helper()
	bus := events.NewBus(0, 0)
	r := runner.New(&fakeGen{bus: bus, dir: t.TempDir()}, 2, nil)
	t.Cleanup(func() { r.Shutdown(context.Background()) })

	opts = append([]Option{WithKeys(leads.KeyStatus{})}, opts...)
	s, err := New(config.Default().Server, r, bus, opts...)
	require.NoError(t, err)
	hs := httptest.NewServer(s.Handler())
	t.Cleanup(hs.Close)
	return &testServer{srv: s, http: hs, runner: r}
}

func noRedirect() *http.Client {
	return &http.Client{CheckRedirect: func(*http.Request, []*http.Request) error {
		return http.ErrUseLastResponse
	}}
}

func get(t *testing.T, url string) (int, string) {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, string(body)
}

func generate(t *testing.T, ts *testServer, domain, area string) *http.Response {
	t.Helper()
	resp, err := noRedirect().PostForm(ts.http.URL+"/generate", url.Values{"domain": {domain}, "area": {area}})
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func waitDone(t *testing.T, ts *testServer, id string) {
	t.Helper()
	require.Eventually(t, func() bool {
		run, err := ts.runner.Get(id)
		return err == nil && run.Done()
	}, 2*time.Second, 5*time.Millisecond)
}

func TestIndex(t *testing.T) {
	ts := newTestServer(t, WithKeys(leads.KeyStatus{Warnings: []string{"Optional API key 'GROQ_API_KEY' not found."}}))

	code, body := get(t, ts.http.URL+"/")
	assert.Equal(t, http.StatusOK, code)
	assert.Contains(t, body, "<title>Lead Synapse Mark III</title>")
	assert.Contains(t, body, "API Keys loaded successfully!")
	assert.Contains(t, body, "Optional API key &#39;GROQ_API_KEY&#39; not found.")
	assert.Contains(t, body, "Found Companies")
	assert.Contains(t, body, "Identified Contacts")
	assert.Contains(t, body, "<em>(Results will appear here after generation)</em>")
	assert.Contains(t, body, `value="Healthcare Technology"`)
	assert.Contains(t, body, `value="New York City"`)
}

func TestGenerate_EmptyInput(t *testing.T) {
	ts := newTestServer(t)

	resp := generate(t, ts, "Fintech", "  ")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	body, _ := io.ReadAll(resp.Body)
	assert.Contains(t, string(body), "Please enter both Domain and Area.")
	assert.Empty(t, ts.runner.Active())
}

func TestGenerate_MissingKeys(t *testing.T) {
	ts := newTestServer(t, WithKeys(leads.KeyStatus{Missing: []string{"EXA_API_KEY", "SERPER_API_KEY"}}))

	_, body := get(t, ts.http.URL+"/")
	assert.Contains(t, body, "Missing required API keys: EXA_API_KEY, SERPER_API_KEY")
	assert.NotContains(t, body, "API Keys loaded successfully!")

	resp := generate(t, ts, "Fintech", "Berlin")
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	assert.Empty(t, ts.runner.Active())
}

func TestGenerate_RunPage(t *testing.T) {
	ts := newTestServer(t)

	resp := generate(t, ts, "Fintech", "Berlin")
	require.Equal(t, http.StatusSeeOther, resp.StatusCode)
	loc := resp.Header.Get("Location")
	require.True(t, strings.HasPrefix(loc, "/runs/"), loc)
	id := strings.TrimPrefix(loc, "/runs/")
	waitDone(t, ts, id)

	code, body := get(t, ts.http.URL+loc)
	assert.Equal(t, http.StatusOK, code)
	assert.Contains(t, body, "Lead generation process completed!")
	assert.Contains(t, body, "<strong>Acme Health</strong>")
	assert.Contains(t, body, `href="https://www.linkedin.com/in/janedoe"`)
	assert.NotContains(t, body, "alert(1)")
	assert.NotContains(t, body, "Raw Crew Output")
	assert.NotContains(t, body, "EventSource")
	assert.Contains(t, body, `value="Fintech"`)
}

func TestRun_NotFound(t *testing.T) {
	ts := newTestServer(t)

	code, _ := get(t, ts.http.URL+"/runs/missing")
	assert.Equal(t, http.StatusNotFound, code)
	code, body := get(t, ts.http.URL+"/api/runs/missing")
	assert.Equal(t, http.StatusNotFound, code)
	assert.JSONEq(t, `{"error":"run not found"}`, body)
	code, _ = get(t, ts.http.URL+"/runs/missing/events")
	assert.Equal(t, http.StatusNotFound, code)
}

func TestEvents_Stream(t *testing.T) {
	ts := newTestServer(t)
	id, err := ts.runner.Start(leads.DefaultInputs())
	require.NoError(t, err)
	waitDone(t, ts, id)

	resp, err := http.Get(ts.http.URL + "/runs/" + id + "/events")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	out := string(body)
	assert.Contains(t, out, "event:run_started")
	assert.Contains(t, out, "event:task_started")
	assert.Contains(t, out, `"task":"company_finder_task"`)
	assert.Contains(t, out, "event:run_completed")
	assert.Less(t, strings.Index(out, "run_started"), strings.Index(out, "run_completed"))
}

func TestAPI_Runs(t *testing.T) {
	ts := newTestServer(t)
	id, err := ts.runner.Start(leads.Inputs{Domain: "Fintech", Area: "Berlin"})
	require.NoError(t, err)
	waitDone(t, ts, id)

	code, body := get(t, ts.http.URL+"/api/runs/"+id)
	require.Equal(t, http.StatusOK, code)
	var run runner.Run
	require.NoError(t, json.Unmarshal([]byte(body), &run))
	assert.Equal(t, runner.StateComplete, run.State)
	require.NotNil(t, run.Report)
	assert.Equal(t, companiesMD, run.Report.Companies.Markdown)

	code, body = get(t, ts.http.URL+"/api/runs")
	require.Equal(t, http.StatusOK, code)
	var list struct {
		Runs []runSummary `json:"runs"`
	}
	require.NoError(t, json.Unmarshal([]byte(body), &list))
	require.Len(t, list.Runs, 1)
	assert.Equal(t, "Berlin", list.Runs[0].Inputs["area"])

	code, _ = get(t, ts.http.URL+"/api/runs?limit=zero")
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestAPI_RunsFromSessions(t *testing.T) {
	store, err := session.NewFileStore(t.TempDir())
	require.NoError(t, err)
	mgr := session.NewManager(store)
	sess, err := mgr.Create("", "lead_synapse", map[string]string{"domain": "Fintech", "area": "Paris"})
	require.NoError(t, err)
	sess.Finish(session.StatusFailed, "", "task company_finder_task: LLM error: boom")
	require.NoError(t, mgr.Update(sess))

	ts := newTestServer(t, WithSessions(mgr))

	_, body := get(t, ts.http.URL+"/api/runs?limit=5")
	assert.Contains(t, body, `"status":"failed"`)
	assert.Contains(t, body, "Paris")

	_, body = get(t, ts.http.URL+"/")
	assert.Contains(t, body, "Fintech in Paris")
}

func TestHealthz(t *testing.T) {
	ts := newTestServer(t)
	code, body := get(t, ts.http.URL+"/healthz")
	assert.Equal(t, http.StatusOK, code)
	assert.JSONEq(t, `{"status":"ok"}`, body)
}

func TestServe_GracefulShutdown(t *testing.T) {
	cfg := config.Default().Server
	cfg.Addr = "127.0.0.1:0"
	cfg.MaxConnections = 4

	bus := events.NewBus(0, 0)
	r := runner.New(&fakeGen{bus: bus, dir: t.TempDir()}, 1, nil)
	defer r.Shutdown(context.Background())
	s, err := New(cfg, r, bus, WithKeys(leads.KeyStatus{}))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() { errc <- s.Serve(ctx) }()

	require.Eventually(t, func() bool { return s.Addr() != nil }, 2*time.Second, 5*time.Millisecond)
	code, _ := get(t, "http://"+s.Addr().String()+"/healthz")
	assert.Equal(t, http.StatusOK, code)

	cancel()
	select {
	case err := <-errc:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Serve did not return after cancel")
	}
}

func TestTailnetAddr(t *testing.T) {
	assert.Equal(t, ":8501", tailnetAddr(":8501"))
	assert.Equal(t, ":443", tailnetAddr("0.0.0.0:443"))
	assert.Equal(t, ":80", tailnetAddr("bogus"))
}

func TestRenderMarkdown(t *testing.T) {
	out := string(renderMarkdown("**Acme**\n[Jane](https://linkedin.com/in/jane)\n<img src=x onerror=alert(1)>"))
	assert.Contains(t, out, "<strong>Acme</strong>")
	assert.Contains(t, out, `target="_blank"`)
	assert.NotContains(t, out, "onerror")
}
