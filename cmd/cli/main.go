package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/matstage/matstage/internal/app"
	"github.com/matstage/matstage/internal/cli"
	"github.com/matstage/matstage/internal/hcl"
)

func main() {
	// Bootstrap logger, replaced once the CLI options are known.
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo})))

	if err := run(os.Stdout, os.Args[1:]); err != nil {
		if exitErr, ok := err.(*cli.ExitError); ok {
			fmt.Fprintln(os.Stderr, exitErr.Message)
			os.Exit(exitErr.Code)
		}
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// run carries the whole program so tests can drive it without spawning a
// process. NewApp panics on malformed plans, so the recover turns that into
// an ordinary error for main to report.
func run(outW io.Writer, args []string) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("application startup panicked: %v", r)
		}
	}()

	appConfig, shouldExit, err := cli.Parse(args, outW)
	if err != nil {
		return err
	}
	if shouldExit {
		return nil
	}

	loader := hcl.NewLoader()
	matstageApp := app.NewApp(outW, appConfig, loader)

	return matstageApp.Run(context.Background(), appConfig)
}
