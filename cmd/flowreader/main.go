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
)

const usageText = `flowreader reads process diagrams into ordered task tables.

Usage:
  flowreader <command> [flags] [args]

Commands:
  read <id>            read a diagram and print its task table
  render <id>          render a diagram (mermaid, ascii, png, svg)
  lint <id>            check structure and branch conditions
  route <id>           resolve the tasks a set of variables would run
  import <file>...     decode, check and store diagram files
  list                 list stored diagrams
  history <id>         show the read log of a diagram (libsql source)
  serve                serve MCP tools over stdio, with optional audit and metrics
  init                 write ~/.flowreader/settings.json
  version              print the version

Run "flowreader <command> -h" for command flags.
`

// cli carries the process environment into commands.
type cli struct {
	stdout   io.Writer
	stderr   io.Writer
	getenv   func(string) string
	settings string
}

// usageError marks errors caused by bad invocation.
type usageError struct{ msg string }

func (e *usageError) Error() string { return e.msg }

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	c := &cli{stdout: os.Stdout, stderr: os.Stderr, getenv: os.Getenv, settings: settingsPath()}
	if err := c.run(ctx, os.Args[1:]); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(0)
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		var uerr *usageError
		if errors.As(err, &uerr) {
			os.Exit(2)
		}
		os.Exit(1)
	}
}

func (c *cli) run(ctx context.Context, args []string) error {
	if len(args) == 0 {
		fmt.Fprint(c.stderr, usageText)
		return &usageError{msg: "no command given"}
	}

	name, rest := args[0], args[1:]
	switch name {
	case "read":
		return c.runRead(ctx, rest)
	case "render":
		return c.runRender(ctx, rest)
	case "lint":
		return c.runLint(ctx, rest)
	case "route":
		return c.runRoute(ctx, rest)
	case "import":
		return c.runImport(ctx, rest)
	case "list":
		return c.runList(ctx, rest)
	case "history":
		return c.runHistory(ctx, rest)
	case "serve":
		return c.runServe(ctx, rest)
	case "init":
		return c.runInit(rest)
	case "version", "-v", "--version":
		printVersion(c.stdout)
		return nil
	case "help", "-h", "--help":
		fmt.Fprint(c.stdout, usageText)
		return nil
	default:
		fmt.Fprint(c.stderr, usageText)
		return &usageError{msg: fmt.Sprintf("unknown command %q", name)}
	}
}

// flagSet creates a command FlagSet bound to the layered configuration.
func (c *cli) flagSet(name string) (*flag.FlagSet, *Config) {
	cfg := loadConfig(c.settings, c.getenv)
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(c.stderr)
	bindFlags(fs, &cfg)
	return fs, &cfg
}

// parse parses flags and checks the number of positional arguments.
func parse(fs *flag.FlagSet, args []string, minArgs, maxArgs int) error {
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return err
		}
		return &usageError{msg: err.Error()}
	}
	n := fs.NArg()
	if n < minArgs || (maxArgs >= 0 && n > maxArgs) {
		return &usageError{msg: fmt.Sprintf("%s: unexpected number of arguments: %d", fs.Name(), n)}
	}
	return nil
}
