package main

import (
	"io"

	"github.com/alecthomas/kong"
)

// CLI defines the command-line interface.
type CLI struct {
	Globals

	Serve    ServeCmd    `cmd:"" help:"Serve the web UI"`
	Run      RunCmd      `cmd:"" help:"Generate leads in the terminal"`
	Show     ShowCmd     `cmd:"" help:"Page through a run's results"`
	Runs     RunsCmd     `cmd:"" help:"List past runs or show one run's timeline"`
	Models   ModelsCmd   `cmd:"" help:"List models from the catwalk catalogue"`
	Validate ValidateCmd `cmd:"" help:"Validate a crew definition"`
	Version  VersionCmd  `cmd:"" help:"Show version information"`
}

// Globals are flags shared by every command.
type Globals struct {
	Config      string `short:"c" type:"path" help:"Config file path (default: ./leadsynapse.toml)"`
	LogLevel    string `default:"info" enum:"debug,info,warn,error" help:"Log level"`
	Credentials string `type:"path" help:"Credentials file path"`

	out io.Writer `kong:"-"`
}

// ServeCmd starts the web server.
type ServeCmd struct {
	Addr      string `help:"Listen address (overrides config)"`
	Tailscale string `help:"Serve on the tailnet under this hostname"`
}

// RunCmd runs the crew once in the terminal.
type RunCmd struct {
	Domain string `short:"d" help:"Target industry domain"`
	Area   string `short:"a" help:"Target geographic area"`
	Plain  bool   `help:"Disable the interactive progress view"`
	JSON   bool   `name:"json" help:"Print the report as JSON"`
}

// ShowCmd pages through a run directory.
type ShowCmd struct {
	Dir    string `arg:"" help:"Run output directory or run ID"`
	Follow bool   `short:"f" help:"Reload when the files change"`
}

// RunsCmd lists run history.
type RunsCmd struct {
	ID      string `arg:"" optional:"" help:"Run ID to show"`
	Limit   int    `short:"n" default:"20" help:"Maximum runs to list"`
	Verbose bool   `short:"v" help:"Include task outputs and tool results"`
}

// ModelsCmd lists known models.
type ModelsCmd struct {
	Provider string `arg:"" optional:"" help:"Only list models for this provider"`
}

// ValidateCmd validates a crew definition.
type ValidateCmd struct {
	File string `arg:"" optional:"" type:"path" help:"Crew YAML (default: built-in crew)"`
}

// VersionCmd shows version information.
type VersionCmd struct{}

// kongVars returns variables for kong (version info).
func kongVars() kong.Vars {
	return kong.Vars{
		"version": version,
	}
}
