package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/alecthomas/kong"

	"github.com/linuxmatters/livetake/internal/cli"
)

var (
	version = "0.1.0"
)

// versionFlag prints the version and exits before any command runs.
type versionFlag bool

func (v versionFlag) BeforeReset(app *kong.Kong, vars kong.Vars) error {
	cli.PrintVersion(vars["version"])
	app.Exit(0)
	return nil
}

// Globals are flags shared by every command.
type Globals struct {
	Version    versionFlag `short:"v" help:"Show version information"`
	Config     string      `short:"c" type:"path" env:"LIVETAKE_CONFIG" help:"Path to a TOML or YAML config file (optional)"`
	LogLevel   string      `name:"log-level" placeholder:"LEVEL" help:"Log level: debug, info, warn, error"`
	Plain      bool        `help:"Plain output: no progress UI, logs to stderr"`
	Ambience   string      `type:"path" placeholder:"DIR" help:"Ambience library directory"`
	RecordsDir string      `name:"records-dir" type:"path" placeholder:"DIR" help:"Directory for batch records and the catalogue"`
}

// CLI defines the command-line interface
type CLI struct {
	Globals

	Single   SingleCmd   `cmd:"" help:"Humanize one clip"`
	Batch    BatchCmd    `cmd:"" help:"Humanize every clip in a folder"`
	Clips    ClipsCmd    `cmd:"" help:"Humanize an explicit list of clips as one batch"`
	Compare  CompareCmd  `cmd:"" help:"Run folders under several profiles and compare the batches"`
	Records  RecordsCmd  `cmd:"" help:"List recorded batches or show one"`
	Profiles ProfilesCmd `cmd:"" help:"List or export scenario profiles"`
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cliArgs := &CLI{}
	kctx := kong.Parse(cliArgs,
		kong.Name("livetake"),
		kong.Description("Turn studio voice clips into believable live takes"),
		kong.UsageOnError(),
		kong.Vars{
			"version": version,
		},
		kong.Help(cli.StyledHelpPrinter(kong.HelpOptions{Compact: true})),
		kong.BindTo(ctx, (*context.Context)(nil)),
	)

	if err := kctx.Run(&cliArgs.Globals); err != nil {
		cli.PrintError(err.Error())
		code := 1
		if errors.Is(err, errBatchFailures) {
			code = 2
		}
		stop()
		os.Exit(code)
	}
}

// errBatchFailures marks a run that completed but had failed clips.
var errBatchFailures = errors.New("some clips failed")
