package cli

import (
	"flag"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/matstage/matstage/internal/app"
)

// ExitError reports a fatal CLI problem together with the process exit
// code main should use for it.
type ExitError struct {
	Code    int
	Message string
}

// Error implements the error interface.
func (e *ExitError) Error() string {
	return e.Message
}

// Parse processes command-line arguments into an app.Config. The boolean
// result is true when the program should exit cleanly without running a
// campaign (help requested, no plan path given).
func Parse(args []string, output io.Writer) (*app.Config, bool, error) {
	slog.Debug("CLI parsing started.")
	flagSet := flag.NewFlagSet("matstage", flag.ContinueOnError)
	flagSet.SetOutput(output)

	// Usage/help text for the whole binary.
	flagSet.Usage = func() {
		fmt.Fprint(output, `
Matstage - a derivation and measurement driver for simulation job batches.

Usage:
  matstage [options] [PLAN_PATH]

Arguments:
  PLAN_PATH
    Path to a single .hcl plan file or a directory containing .hcl plan files.

Options:
`)
		flagSet.PrintDefaults()
	}

	planFlag := flagSet.String("plan", "", "Path to the plan file or directory.")
	pFlag := flagSet.String("p", "", "Path to the plan file or directory (shorthand).")
	dryRunFlag := flagSet.Bool("dry-run", false, "Stage follow-up jobs without executing or measuring them.")
	healthPortFlag := flagSet.Int("healthcheck-port", 0, "Port of the liveness endpoint. 0 disables it.")
	logFormatFlag := flagSet.String("log-format", "json", "Log output format, 'text' or 'json'.")
	logLevelFlag := flagSet.String("log-level", "info", "Logging level: 'debug', 'info', 'warn' or 'error'.")

	if err := flagSet.Parse(args); err != nil {
		if err == flag.ErrHelp {
			return nil, true, nil
		}
		return nil, false, &ExitError{Code: 2, Message: err.Error()}
	}
	slog.Debug("Flags parsed.")

	path := planPath(*planFlag, *pFlag, flagSet)
	slog.Debug("Plan path determined.", "path", path)

	if path == "" {
		slog.Debug("No plan path provided, printing usage and exiting.")
		flagSet.Usage()
		return nil, true, nil
	}

	logFormat, logLevel, err := validateLogOptions(*logFormatFlag, *logLevelFlag)
	if err != nil {
		return nil, false, &ExitError{Code: 2, Message: err.Error()}
	}
	slog.Debug("CLI validation passed.")

	config, err := app.NewConfig(app.Config{
		PlanPath:        path,
		HealthcheckPort: *healthPortFlag,
		LogFormat:       logFormat,
		LogLevel:        logLevel,
		DryRun:          *dryRunFlag,
	})
	if err != nil {
		return nil, false, &ExitError{Code: 2, Message: err.Error()}
	}

	slog.Debug("CLI parsing finished.", "config", config)
	return config, false, nil
}

// planPath resolves the plan path from its three sources. The long flag
// wins over the shorthand, and both win over a positional argument.
func planPath(plan, p string, flagSet *flag.FlagSet) string {
	switch {
	case plan != "":
		return plan
	case p != "":
		return p
	case flagSet.NArg() > 0:
		return flagSet.Arg(0)
	}
	return ""
}

// validateLogOptions lowercases and checks the log flags, so 'TEXT' and
// 'text' configure the same handler.
func validateLogOptions(format, level string) (string, string, error) {
	format = strings.ToLower(format)
	if format != "text" && format != "json" {
		return "", "", fmt.Errorf("invalid log-format: must be 'text' or 'json'")
	}
	level = strings.ToLower(level)
	switch level {
	case "debug", "info", "warn", "error":
	default:
		return "", "", fmt.Errorf("invalid log-level: must be 'debug', 'info', 'warn', or 'error'")
	}
	return format, level, nil
}
