// ekaya-ingest loads the e-commerce dataset into PostgreSQL and answers the
// fixed sales reports over it.
//
// Usage:
//
//	ekaya-ingest [-config config.yaml] <command> [flags]
//
// Commands:
//
//	serve     run the HTTP API (default)
//	migrate   create the dataset relations
//	load      load the five input files
//	clear     delete every loaded row
//	status    show the active load run
//	report    print one of the reports
//
// Database connection: PG* environment variables or the database section of
// the config file.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/ekaya-inc/ekaya-ingest/pkg/apperrors"
)

// Version is set at build time via ldflags
var Version = "dev"

// errLoadFailed signals a load run that finished with status failed.
var errLoadFailed = errors.New("load finished with errors")

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := run(ctx, os.Args[1:], os.Stdout)
	stop()

	if err != nil {
		if !errors.Is(err, flag.ErrHelp) {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		os.Exit(exitCode(err))
	}
}

func run(ctx context.Context, args []string, stdout io.Writer) error {
	global := flag.NewFlagSet("ekaya-ingest", flag.ContinueOnError)
	configPath := global.String("config", "", "Path to the YAML config file (default: config.yaml if present)")
	global.Usage = func() { printUsage(global.Output()) }
	if err := global.Parse(args); err != nil {
		return err
	}

	name := "serve"
	rest := global.Args()
	if len(rest) > 0 {
		name, rest = rest[0], rest[1:]
	}

	cmd, ok := commands[name]
	if !ok {
		printUsage(os.Stderr)
		return fmt.Errorf("unknown command %q", name)
	}
	return cmd(ctx, *configPath, rest, stdout)
}

// exitCode maps failures onto distinct process exit codes for scripting.
func exitCode(err error) int {
	switch {
	case errors.Is(err, flag.ErrHelp):
		return 0
	case errors.Is(err, errLoadFailed):
		return 2
	case errors.Is(err, apperrors.ErrNotLoaded),
		errors.Is(err, apperrors.ErrAlreadyLoaded),
		errors.Is(err, apperrors.ErrLoadInProgress):
		return 3
	case errors.Is(err, apperrors.ErrInvalidParameter):
		return 64
	default:
		return 1
	}
}

func printUsage(w io.Writer) {
	fmt.Fprintf(w, `Usage: ekaya-ingest [-config path] <command> [flags]

Commands:
  serve                       Run the HTTP API (default)
  migrate                     Create the dataset relations
  load [-clear] [-dir d] [-delimiter c] [-format f]
                              Load the five input files
  clear                       Delete every loaded row
  status [-format f]          Show the active load run
  report <top-customers|top-categories|monthly-sales> [-n N] [-format f]
                              Print a report

Formats: table (default), json, yaml
`)
}
