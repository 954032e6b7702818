package web

import (
	"errors"
	"html/template"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/vinayprograms/leadsynapse/internal/events"
	"github.com/vinayprograms/leadsynapse/internal/leads"
	"github.com/vinayprograms/leadsynapse/internal/runner"
	"github.com/vinayprograms/leadsynapse/internal/session"
)

// Progress notices shown while a run is in flight.
const (
	findingCompanies = "🔄 Task 1: Finding companies..."
	waitingCompanies = "*(Waiting for company list...)*"
)

const defaultListLimit = 20

const timeFormat = time.RFC3339

type section struct {
	HTML  template.HTML
	Error string
	Info  string
}

type pageData struct {
	Title     string
	Keys      leads.KeyStatus
	Warning   string
	Inputs    leads.Inputs
	Companies section
	People    section
	Recent    []*session.Session
	Run       *runner.Run
	Raw       string
}

func (s *Server) page() pageData {
	return pageData{
		Title:     Title,
		Keys:      s.keys,
		Inputs:    leads.DefaultInputs(),
		Companies: section{HTML: renderMarkdown(leads.Placeholder)},
		People:    section{HTML: renderMarkdown(leads.Placeholder)},
	}
}

func (s *Server) recent() []*session.Session {
	if s.sessions == nil {
		return nil
	}
	list, err := s.sessions.List(10)
	if err != nil {
		s.logger.Warn("failed to list sessions", map[string]interface{}{"error": err.Error()})
		return nil
	}
	return list
}

func (s *Server) handleIndex(c *gin.Context) {
	data := s.page()
	data.Recent = s.recent()
	c.HTML(http.StatusOK, "index.html", data)
}

func (s *Server) handleGenerate(c *gin.Context) {
	in := leads.Inputs{Domain: c.PostForm("domain"), Area: c.PostForm("area")}
	data := s.page()
	data.Inputs = in

	if !s.keys.OK() {
		c.HTML(http.StatusServiceUnavailable, "index.html", data)
		return
	}

	id, err := s.runner.Start(in)
	switch {
	case errors.Is(err, leads.ErrInvalidInput):
		data.Warning = leads.InputWarning
		c.HTML(http.StatusBadRequest, "index.html", data)
		return
	case errors.Is(err, runner.ErrShuttingDown):
		data.Warning = "Server is shutting down."
		c.HTML(http.StatusServiceUnavailable, "index.html", data)
		return
	case err != nil:
		s.logger.Error("failed to start run", map[string]interface{}{"error": err.Error()})
		c.HTML(http.StatusInternalServerError, "index.html", data)
		return
	}
	c.Redirect(http.StatusSeeOther, "/runs/"+id)
}

func (s *Server) getRun(c *gin.Context) (*runner.Run, bool) {
	run, err := s.runner.Get(c.Param("id"))
	if errors.Is(err, runner.ErrNotFound) {
		c.String(http.StatusNotFound, "run not found")
		return nil, false
	}
	if err != nil {
		c.String(http.StatusInternalServerError, err.Error())
		return nil, false
	}
	return run, true
}

func (s *Server) handleRun(c *gin.Context) {
	run, ok := s.getRun(c)
	if !ok {
		return
	}
	data := s.page()
	data.Run = run
	data.Inputs = run.Inputs

	if !run.Done() || run.Report == nil {
		data.Companies = section{Info: findingCompanies}
		data.People = section{HTML: renderMarkdown(waitingCompanies)}
		if run.Done() {
			data.Companies = section{Error: leads.CompaniesFailedMsg}
			data.People = section{Error: leads.PeopleFailedMsg}
		}
		c.HTML(http.StatusOK, "run.html", data)
		return
	}

	r := run.Report
	data.Companies = reportSection(r.Companies)
	data.People = reportSection(r.People)
	data.Raw = r.Raw
	c.HTML(http.StatusOK, "run.html", data)
}

func reportSection(sec leads.Section) section {
	out := section{Error: sec.Error}
	if sec.Markdown != "" {
		out.HTML = renderMarkdown(sec.Markdown)
	}
	return out
}

// handleEvents streams run progress as server-sent events. The stream ends
// after the terminal event.
func (s *Server) handleEvents(c *gin.Context) {
	run, ok := s.getRun(c)
	if !ok {
		return
	}
	c.Header("Cache-Control", "no-cache")
	c.Header("X-Accel-Buffering", "no")

	// Finished runs loaded from history have no events on the bus.
	if run.Done() && len(s.bus.History(run.ID)) == 0 {
		e := events.Event{RunID: run.ID, Type: events.RunCompleted, Time: run.FinishedAt}
		if run.State == runner.StateFailed {
			e.Type, e.Message = events.RunFailed, run.Error
		}
		c.SSEvent(string(e.Type), e)
		return
	}

	ch, cancel := s.bus.Subscribe(run.ID)
	defer cancel()
	c.Stream(func(w io.Writer) bool {
		select {
		case e, ok := <-ch:
			if !ok {
				return false
			}
			c.SSEvent(string(e.Type), e)
			return !e.Terminal()
		case <-c.Request.Context().Done():
			return false
		}
	})
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

type runSummary struct {
	ID        string            `json:"id"`
	Status    string            `json:"status"`
	Inputs    map[string]string `json:"inputs"`
	Error     string            `json:"error,omitempty"`
	CreatedAt string            `json:"created_at"`
}

func (s *Server) handleAPIRuns(c *gin.Context) {
	limit := defaultListLimit
	if v := c.Query("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid limit"})
			return
		}
		limit = n
	}

	var out []runSummary
	if s.sessions != nil {
		list, err := s.sessions.List(limit)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		for _, sess := range list {
			out = append(out, runSummary{
				ID:        sess.ID,
				Status:    sess.Status,
				Inputs:    sess.Inputs,
				Error:     sess.Error,
				CreatedAt: sess.CreatedAt.Format(timeFormat),
			})
		}
	} else {
		for i, run := range s.runner.Active() {
			if i == limit {
				break
			}
			out = append(out, runSummary{
				ID:        run.ID,
				Status:    string(run.State),
				Inputs:    run.Inputs.Map(),
				Error:     run.Error,
				CreatedAt: run.CreatedAt.Format(timeFormat),
			})
		}
	}
	if out == nil {
		out = []runSummary{}
	}
	c.JSON(http.StatusOK, gin.H{"runs": out})
}

func (s *Server) handleAPIRun(c *gin.Context) {
	run, err := s.runner.Get(c.Param("id"))
	if errors.Is(err, runner.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "run not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, run)
}
