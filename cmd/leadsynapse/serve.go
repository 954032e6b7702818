package main

import (
	"context"
	"fmt"
	"time"

	"github.com/vinayprograms/leadsynapse/internal/events"
	"github.com/vinayprograms/leadsynapse/internal/leads"
	"github.com/vinayprograms/leadsynapse/internal/runner"
	"github.com/vinayprograms/leadsynapse/internal/session"
	"github.com/vinayprograms/leadsynapse/internal/telemetry"
	"github.com/vinayprograms/leadsynapse/internal/web"
)

const shutdownTimeout = 30 * time.Second

// Run starts the web server and blocks until SIGINT or SIGTERM.
func (c *ServeCmd) Run(g *Globals) error {
	a, err := g.load()
	if err != nil {
		return err
	}
	if c.Addr != "" {
		a.cfg.Server.Addr = c.Addr
	}
	if c.Tailscale != "" {
		a.cfg.Server.Tailscale = c.Tailscale
	}

	ctx, stop := signalContext()
	defer stop()

	shutdownTelemetry, err := startTelemetry(ctx, a)
	if err != nil {
		return err
	}
	defer shutdownTelemetry()

	sessions, err := openSessions(a)
	if err != nil {
		return err
	}
	defer sessions.Close()

	bus := events.NewBus(0, 0)
	defer bus.Close()
	if a.cfg.Events.NATSURL != "" {
		sink, err := events.NewNATSSink(a.cfg.Events.NATSURL, a.cfg.Events.Subject)
		if err != nil {
			return err
		}
		bus.AddSink(sink)
		a.logger.Info("publishing run events to NATS", map[string]interface{}{
			"url":     a.cfg.Events.NATSURL,
			"subject": a.cfg.Events.Subject,
		})
	}

	keys := leads.CheckKeys(a.cfg, a.creds)
	for _, w := range keys.Warnings {
		a.logger.Warn(w)
	}
	if !keys.OK() {
		a.logger.Error("required API keys missing; generation disabled", map[string]interface{}{
			"missing": keys.Missing,
		})
	}

	r, err := newRunner(a, keys, sessions, bus)
	if err != nil {
		return err
	}

	srv, err := web.New(a.cfg.Server, r, bus,
		web.WithSessions(sessions),
		web.WithKeys(keys),
		web.WithStateDir(a.cfg.StoragePath()),
	)
	if err != nil {
		return err
	}

	fmt.Fprintf(a.out, "%s serving on %s\n", web.Title, displayAddr(a.cfg.Server.Addr, a.cfg.Server.Tailscale))
	serveErr := srv.Serve(ctx)

	sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := r.Shutdown(sctx); err != nil {
		a.logger.Warn("runs still active at shutdown", map[string]interface{}{"error": err.Error()})
	}
	return serveErr
}

func displayAddr(addr, tailnet string) string {
	if tailnet != "" {
		return "tailnet host " + tailnet
	}
	return addr
}

func openSessions(a *app) (*session.Manager, error) {
	store, err := session.Open(a.cfg.Storage.Backend, a.cfg.StoragePath())
	if err != nil {
		return nil, fmt.Errorf("failed to open session store: %w", err)
	}
	return session.NewManager(store), nil
}

// startTelemetry installs the tracer provider and returns a func that
// flushes it.
func startTelemetry(ctx context.Context, a *app) (func(), error) {
	shutdown, err := telemetry.Setup(ctx, a.cfg.Telemetry, version)
	if err != nil {
		return nil, err
	}
	return func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdown(sctx); err != nil {
			a.logger.Warn("telemetry shutdown failed", map[string]interface{}{"error": err.Error()})
		}
	}, nil
}

// newRunner builds the background runner for the web server. Missing keys
// do not stop the server: history stays browsable and generation is
// refused until the keys are set.
func newRunner(a *app, keys leads.KeyStatus, sessions *session.Manager, pub events.Publisher) (*runner.Runner, error) {
	svc, err := newService(a, keys, sessions, pub)
	if err != nil {
		return nil, err
	}
	return runner.New(svc, a.cfg.Server.MaxConcurrentRuns, sessions), nil
}

// newService wires the crew, LLM provider and search tools.
func newService(a *app, keys leads.KeyStatus, sessions *session.Manager, pub events.Publisher) (*leads.Service, error) {
	def, err := leads.LoadDefinition(a.cfg.Crew.Definition)
	if err != nil {
		return nil, err
	}
	provider := leads.Unavailable(keys)
	if keys.OK() {
		if provider, err = leads.NewProvider(a.cfg, a.creds); err != nil {
			return nil, fmt.Errorf("failed to create LLM provider: %w", err)
		}
	}
	opts := []leads.Option{leads.WithLogger(a.logger.WithComponent("leads"))}
	if sessions != nil {
		opts = append(opts, leads.WithSessions(sessions))
	}
	if pub != nil {
		opts = append(opts, leads.WithEvents(pub))
	}
	return leads.NewService(def, provider, leads.NewRegistry(a.cfg, a.creds), leads.CrewConfig(a.cfg), opts...)
}
