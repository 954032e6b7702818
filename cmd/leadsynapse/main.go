// Package main is the entry point for the leadsynapse CLI.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/alecthomas/kong"
	"github.com/joho/godotenv"

	"github.com/vinayprograms/leadsynapse/internal/config"
	"github.com/vinayprograms/leadsynapse/internal/credentials"
	"github.com/vinayprograms/leadsynapse/internal/logging"
)

// Build-time variables (set via ldflags)
var (
	version   = "dev"
	commit    = "unknown"
	buildTime = "unknown"
)

func main() {
	// .env only fills variables that are not already set
	_ = godotenv.Load()

	var cli CLI
	ctx := kong.Parse(&cli,
		kong.Name("leadsynapse"),
		kong.Description("Lead Synapse Mark III: automated lead generation using AI agents."),
		kong.UsageOnError(),
		kongVars(),
	)
	cli.Globals.out = os.Stdout
	err := ctx.Run(&cli.Globals)
	ctx.FatalIfErrorf(err)
}

// app bundles what every command loads first.
type app struct {
	cfg    *config.Config
	creds  *credentials.Credentials
	logger *logging.Logger
	out    io.Writer
}

func (g *Globals) writer() io.Writer {
	if g.out == nil {
		return os.Stdout
	}
	return g.out
}

// load reads config and credentials and configures logging.
func (g *Globals) load() (*app, error) {
	logging.Configure(os.Stderr, logging.FormatConsole, logging.ParseLevel(g.LogLevel))
	logger := logging.New().WithComponent("cli")

	cfg, err := config.Load(g.Config)
	if err != nil {
		return nil, err
	}

	var creds *credentials.Credentials
	var path string
	if g.Credentials != "" {
		creds, err = credentials.LoadFile(g.Credentials)
		path = g.Credentials
	} else {
		creds, path, err = credentials.Load()
	}
	if err != nil {
		return nil, err
	}
	creds.Apply()
	if path != "" {
		logger.Debug("credentials loaded", map[string]interface{}{"path": path})
	}
	return &app{cfg: cfg, creds: creds, logger: logger, out: g.writer()}, nil
}

// signalContext is cancelled on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

// Run prints version information.
func (c *VersionCmd) Run(g *Globals) error {
	fmt.Fprintf(g.writer(), "leadsynapse version %s (commit: %s, built: %s)\n", version, commit, buildTime)
	return nil
}
