// Command animica is the node's CLI surface: operational inspection
// commands that talk directly to the in-process packages (no RPC round
// trip), mirroring spec.md §6's "CLI surface (illustrative, not
// exhaustive)": rand inspect-round, aicf enqueue-quantum, fees suggest.
// Exit codes follow the same table: 0 success, 1 domain error, 2 usage
// error, 3 timeout/unavailable.
package main

import (
	"fmt"
	"os"

	"github.com/ethereum/go-ethereum/log"
	"github.com/urfave/cli/v2"
	"go.uber.org/automaxprocs/maxprocs"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/animicaorg/animica/config"
)

// exitCode mirrors spec.md §6's CLI exit-code table.
type exitCode int

const (
	exitSuccess     exitCode = 0
	exitDomainError exitCode = 1
	exitUsageError  exitCode = 2
	exitUnavailable exitCode = 3
)

var configFlag = &cli.StringFlag{
	Name:    "config",
	Aliases: []string{"c"},
	Usage:   "path to a TOML config file (defaults + ANIMICA_* env vars apply regardless)",
}

var logFileFlag = &cli.StringFlag{
	Name:  "log.file",
	Usage: "rotate logs into this file instead of stderr (empty = stderr)",
}

var verbosityFlag = &cli.IntFlag{
	Name:  "verbosity",
	Usage: "log verbosity: 0=crit 1=error 2=warn 3=info 4=debug 5=trace",
	Value: 3,
}

func main() {
	if _, err := maxprocs.Set(maxprocs.Logger(func(format string, args ...interface{}) {
		log.Debug(fmt.Sprintf(format, args...))
	})); err != nil {
		log.Warn("animica: failed to set GOMAXPROCS from cgroup quota", "err", err)
	}

	app := &cli.App{
		Name:  "animica",
		Usage: "Animica node operational CLI",
		Flags: []cli.Flag{configFlag, logFileFlag, verbosityFlag},
		Before: func(ctx *cli.Context) error {
			setupLogging(ctx)
			return nil
		},
		Commands: []*cli.Command{
			randCommand,
			aicfCommand,
			feesCommand,
		},
	}

	if err := app.Run(os.Args); err != nil {
		if ce, ok := err.(*cliError); ok {
			fmt.Fprintln(os.Stderr, "error:", ce.msg)
			os.Exit(int(ce.code))
		}
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(int(exitUsageError))
	}
}

// setupLogging wires go-ethereum's structured logger to either stderr or
// a lumberjack-rotated file, at the requested verbosity.
func setupLogging(ctx *cli.Context) {
	var term log.Handler
	if path := ctx.String(logFileFlag.Name); path != "" {
		rotator := &lumberjack.Logger{
			Filename:   path,
			MaxSize:    100, // megabytes
			MaxBackups: 7,
			MaxAge:     28, // days
			Compress:   true,
		}
		term = log.NewTerminalHandler(rotator, false)
	} else {
		term = log.NewTerminalHandler(os.Stderr, true)
	}
	glogger := log.NewGlogHandler(term)
	glogger.Verbosity(log.FromLegacyLevel(ctx.Int(verbosityFlag.Name)))
	log.SetDefault(log.NewLogger(glogger))
}

// cliError carries a concrete process exit code alongside a message,
// letting subcommands signal domain vs. usage vs. unavailable failures
// distinctly, per spec.md §6's exit-code table.
type cliError struct {
	code exitCode
	msg  string
}

func (e *cliError) Error() string { return e.msg }

func domainErrorf(format string, args ...interface{}) error {
	return &cliError{code: exitDomainError, msg: fmt.Sprintf(format, args...)}
}

func usageErrorf(format string, args ...interface{}) error {
	return &cliError{code: exitUsageError, msg: fmt.Sprintf(format, args...)}
}

func unavailableErrorf(format string, args ...interface{}) error {
	return &cliError{code: exitUnavailable, msg: fmt.Sprintf(format, args...)}
}

// loadConfig resolves the layered config the same way a running node
// would (TOML file -> ANIMICA_* env overrides -> validation).
func loadConfig(ctx *cli.Context) (*config.Config, error) {
	cfg, err := config.Load(ctx.String(configFlag.Name))
	if err != nil {
		return nil, usageErrorf("config: %v", err)
	}
	return cfg, nil
}
