package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"runtime/debug"
	"strings"
	"syscall"

	cli "github.com/urfave/cli/v3"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/Abhishekkr206/WebBaseline/check"
	"github.com/Abhishekkr206/WebBaseline/config"
	"github.com/Abhishekkr206/WebBaseline/describe"
	"github.com/Abhishekkr206/WebBaseline/history"
	"github.com/Abhishekkr206/WebBaseline/misc"
	"github.com/Abhishekkr206/WebBaseline/report"
	"github.com/Abhishekkr206/WebBaseline/state"
)

// initializeAppContext prepares application context before command execution but
// after command line has been parsed
func initializeAppContext(ctx context.Context, cmd *cli.Command) (context.Context, error) {
	var err error

	if cmd.NArg() == 0 {
		// nothing to do, just return
		return ctx, nil
	}

	env := state.EnvFromContext(ctx)

	configFile := cmd.String("config")
	if env.Cfg, err = config.LoadConfiguration(configFile); err != nil {
		return ctx, fmt.Errorf("unable to prepare configuration: %w", err)
	}
	if cmd.IsSet("report") {
		env.Cfg.Reporting.Destination = cmd.String("report")
	}
	if cmd.Bool("debug") {
		if env.Rpt, err = env.Cfg.Reporting.Prepare(); err != nil {
			return ctx, fmt.Errorf("unable to prepare debug reporter: %w", err)
		}
		// save complete processed configuration if external configuration was provided
		if len(configFile) > 0 {
			// we do not want any of your secrets!
			if data, err := config.Dump(env.Cfg); err == nil {
				env.Rpt.StoreData(fmt.Sprintf("config/%s", filepath.Base(configFile)), data)
			}
		}
	}
	if env.Log, err = env.Cfg.Logging.Prepare(env.Rpt); err != nil {
		return ctx, fmt.Errorf("unable to prepare logs: %w", err)
	}
	env.RedirectStdLog()

	env.Log.Debug("Program started", zap.Strings("args", os.Args), zap.String("ver", misc.GetVersion()), zap.String("runtime", runtime.Version()), zap.String("hash", misc.GetGitHash()))

	if env.Rpt != nil {
		env.Log.Info("Creating debug report", zap.String("location", env.Rpt.Name()))
	}
	if len(configFile) == 0 && env.Log != nil {
		env.Log.Info("Using defaults (no configuration file)")
	}
	return ctx, nil
}

func destroyAppContext(ctx context.Context, cmd *cli.Command) (err error) {
	env := state.EnvFromContext(ctx)

	if env.Log != nil {
		env.Log.Debug("Program ended", zap.Duration("elapsed", env.Uptime()), zap.Strings("parsed args", cmd.Args().Slice()))
	}

	// close logging
	env.RestoreStdLog()

	// log is synced now and result can be used in report if necessary, errors
	// must be reported directly to stderr from now on
	if env.Rpt != nil {
		if er := env.Rpt.Close(); er != nil {
			err = multierr.Append(err, fmt.Errorf("unable to close debug report: %w", er))
		}
	}
	// reporting is closed now - remove empty panic file if any
	if env.Cfg != nil && len(env.Cfg.Logging.FileLogger.Destination) > 0 {
		debug.SetCrashOutput(nil, debug.CrashOptions{})
		fname := filepath.Join(filepath.Dir(env.Cfg.Logging.FileLogger.Destination), misc.GetAppName()+"-panic.log")
		if fi, er := os.Stat(fname); er == nil && fi.Size() == 0 {
			if er := os.Remove(fname); er != nil {
				err = multierr.Append(err, fmt.Errorf("unable to remove empty panic log file '%s': %w", fname, er))
			}
		}
	}
	return
}

// Ignore urfave/cli default error handling - for me cli.Exit() looks
// non-transparent and unnesessary. I will return regular errors from
// subcommands.
var errWasHandled bool

// this is called before appContext is destroyed, so we have a chance to
// properly log any error from subcommand
func exitErrHandler(ctx context.Context, _ *cli.Command, err error) {

	env := state.EnvFromContext(ctx)

	if env.Log != nil {
		env.Log.Error("Program ended with error", zap.Error(err))
		errWasHandled = true
	}
}

func usageErrorHandler(_ context.Context, _ *cli.Command, err error, _ bool) error {
	// do nothing special, error is reported either by exitErrHandler or on
	// exit directly to stderr.
	return err
}

func subcommandNotFoundHandler(ctx context.Context, _ *cli.Command, name string) {
	state.EnvFromContext(ctx).Log.Warn("Unknown command, nothing to do", zap.String("command", name))
}

func main() {

	// allow graceful shutdown on interrupt, watch mode relies on it to end
	// cleanly
	ctx, stop := signal.NotifyContext(state.ContextWithEnv(context.Background()), os.Interrupt, syscall.SIGTERM)

	app := &cli.Command{
		Name:            misc.GetAppName(),
		Usage:           "checks web sources against the Baseline browser support data",
		Version:         misc.GetVersion() + " (" + runtime.Version() + ") : " + misc.GetGitHash(),
		HideHelpCommand: true,
		Before:          initializeAppContext,
		After:           destroyAppContext,
		OnUsageError:    usageErrorHandler,
		ExitErrHandler:  exitErrHandler,
		CommandNotFound: subcommandNotFoundHandler,
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "config", Aliases: []string{"c"}, DefaultText: "", Usage: "load configuration from `FILE` (YAML)"},
			&cli.BoolFlag{Name: "debug", Aliases: []string{"d"}, Usage: "changes program behavior to help troubleshooting, produces report archive"},
			&cli.StringFlag{Name: "report", Usage: "with --debug write report archive to `FILE` instead of the configured destination"},
		},
		Commands: []*cli.Command{
			{
				Name:         "check",
				Usage:        "Scans source file(s) and reports web feature compatibility",
				OnUsageError: usageErrorHandler,
				Action:       check.Run,
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "format", Aliases: []string{"f"},
						Usage: "report output `TYPE` (supported types: " + strings.Join(report.Formats(), ", ") + ")"},
					&cli.StringFlag{Name: "output", Aliases: []string{"o"},
						Usage: "write report to `FILE` instead of STDOUT"},
					&cli.StringFlag{Name: "fail-on",
						Usage: "exit with an error when findings reach `TIER` (supported tiers: " + strings.Join(config.FailModeNames(), ", ") + ")"},
					&cli.StringFlag{Name: "dataset",
						Usage: "use web-features snapshot from `FILE` instead of the embedded one"},
					&cli.BoolFlag{Name: "watch", Aliases: []string{"w"},
						Usage: "keep running and re-check whenever sources change"},
					&cli.DurationFlag{Name: "debounce",
						Usage: "in watch mode wait `DURATION` for events to settle before re-checking"},
					&cli.BoolFlag{Name: "suggest", Aliases: []string{"s"},
						Usage: "ask the advisor for alternatives to limited availability findings"},
				},
				ArgsUsage: "SOURCE",
				CustomHelpTemplate: fmt.Sprintf(`%s
SOURCE:
    what to check, the following forms are supported:
        path to a file: "[path]styles.css"
        path to a directory: "[path]site" - recursively check every matching file under it (symbolic links are not followed)
        path to a zip bundle: "[path]site.zip" - check matching entries inside the bundle
        path inside a bundle: "[path]site.zip/css" - check only entries under that path

    When walking a directory only files with configured extensions are
    considered, bundles inside bundles are not supported. If absent -
    current working directory.
`, cli.CommandHelpTemplate),
			},
			{
				Name:         "describe",
				Usage:        "Explains Baseline status of individual features",
				OnUsageError: usageErrorHandler,
				Action:       describe.Run,
				Flags: []cli.Flag{
					&cli.BoolFlag{Name: "suggest", Aliases: []string{"s"},
						Usage: "ask the advisor for alternatives to weakly supported features"},
				},
				ArgsUsage: "KEY...",
				CustomHelpTemplate: fmt.Sprintf(`%s
KEY:
    feature keys ("css.properties.gap", "html.elements.dialog") or
    web-features ids ("grid", "container-queries"), any number of them.
`, cli.CommandHelpTemplate),
			},
			{
				Name:         "history",
				Usage:        "Shows results of past check runs",
				OnUsageError: usageErrorHandler,
				Action:       outputHistory,
				Flags: []cli.Flag{
					&cli.IntFlag{Name: "limit", Aliases: []string{"n"}, Value: 20,
						Usage: "show at most `N` most recent runs"},
				},
			},
			{
				Name:  "dumpconfig",
				Usage: "Dumps either default or actual configuration (YAML)",
				Flags: []cli.Flag{
					&cli.BoolFlag{Name: "default", Usage: "output default embedded configuration"},
				},
				OnUsageError: usageErrorHandler,
				Action:       outputConfiguration,
				ArgsUsage:    "DESTINATION",
				CustomHelpTemplate: fmt.Sprintf(`%s
DESTINATION:
    file name to write configuration to, if absent - STDOUT

Produces file with actual "active" configuration values wich is composition of
default values and values specified in configuration file. To see default
configuration embedded into the program use --default flag.
`, cli.CommandHelpTemplate),
			},
		},
	}

	var err error
	// NOTE: os.Exit is called at the end of main to set exit code, make sure
	// there are no other deffered functions after that
	defer func() {
		stop()
		if err != nil {
			// It may happen that log is either not set yet (argument parsing) or already closed,
			// report errors to stderr directly
			if !errWasHandled {
				fmt.Fprintf(os.Stderr, "Program ended with error: %v\n", err)
			}
			os.Exit(1)
		}
	}()
	err = app.Run(ctx, os.Args)
}

func outputConfiguration(ctx context.Context, cmd *cli.Command) error {

	env := state.EnvFromContext(ctx)
	if cmd.Args().Len() > 1 {
		env.Log.Warn("Malformed command line, too many destinations", zap.Strings("ignoring", cmd.Args().Slice()[1:]))
	}

	fname := cmd.Args().Get(0)

	var (
		err   error
		data  []byte
		state string
	)

	out := os.Stdout
	if len(fname) > 0 {
		out, err = os.Create(fname)
		if err != nil {
			return fmt.Errorf("unable to create destination file '%s': %w", fname, err)
		}
		defer out.Close()

	}

	if cmd.Bool("default") {
		state = "default"
		data, err = config.Prepare()
	} else {
		state = "actual"
		data, err = config.Dump(env.Cfg)
	}
	if err != nil {
		return fmt.Errorf("unable to get configuration: %w", err)
	}

	if len(fname) == 0 {
		fname = "STDOUT"
	}
	env.Log.Info("Outputing configuration", zap.String("state", state), zap.String("file", fname))

	_, err = out.Write(data)
	if err != nil {
		return fmt.Errorf("unable to write configuration: %w", err)
	}
	return nil
}

func outputHistory(ctx context.Context, cmd *cli.Command) error {

	env := state.EnvFromContext(ctx)

	store, err := history.Open(env.Cfg.History.Path, env.Log)
	if err != nil {
		return fmt.Errorf("unable to open run history: %w", err)
	}
	defer store.Close()

	runs, err := store.List(cmd.Int("limit"))
	if err != nil {
		return fmt.Errorf("unable to read run history: %w", err)
	}
	if len(runs) == 0 {
		env.Log.Info("Run history is empty", zap.String("path", env.Cfg.History.Path))
		return nil
	}
	return history.Write(os.Stdout, runs)
}
