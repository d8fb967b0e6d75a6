// Command pipebell posts a chat message for one pipeline lifecycle event.
//
// The event JSON is read from stdin (or from the file passed with --event); logging
// goes to stderr. The exit status is non-zero only if the configuration is invalid:
// failing to deliver the notification is logged but is not an error.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"

	arg "github.com/alexflint/go-arg"

	"github.com/Pix4D/pipebell/pipebell"
)

type options struct {
	Config   string `arg:"--config,env:PIPEBELL_CONFIG" help:"INI configuration file" placeholder:"FILE"`
	Event    string `arg:"--event" help:"file containing the event JSON [default: stdin]" placeholder:"FILE"`
	LogLevel string `arg:"--log-level" help:"one of debug, info, warn, error; overrides the configuration" placeholder:"LEVEL"`
}

func (options) Description() string {
	return "Posts a chat message for a pipeline lifecycle event (STARTED, SUCCEEDED, FAILED, CANCELED)."
}

func main() {
	if err := run(os.Stdin, os.Stderr, os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
}

func run(in io.Reader, logOut io.Writer, args []string) error {
	level := new(slog.LevelVar)
	log := pipebell.NewLogger(logOut, level)
	log.Info(pipebell.BuildInfo())

	var opts options
	parser, err := arg.NewParser(arg.Config{Program: "pipebell"}, &opts)
	if err != nil {
		return fmt.Errorf("pipebell: %s", err)
	}
	if len(args) > 0 {
		args = args[1:]
	}
	if err := parser.Parse(args); err != nil {
		if errors.Is(err, arg.ErrHelp) {
			parser.WriteHelp(logOut)
			return nil
		}
		return fmt.Errorf("pipebell: %s", err)
	}

	cfg, err := pipebell.LoadConfig(opts.Config, pipebell.Config{LogLevel: opts.LogLevel})
	if err != nil {
		return fmt.Errorf("pipebell: %s", err)
	}
	level.Set(cfg.Level())
	log.Debug("started", "config", cfg, "config-file", opts.Config)

	// From here on, the invocation always succeeds.
	event, err := readEvent(in, opts.Event)
	if err != nil {
		log.Error("reading event", "kind", "input", "error", err)
		return nil
	}

	notifier := pipebell.New(log, cfg, &http.Client{})
	notifier.Handle(context.Background(), event)
	return nil
}

// readEvent parses the event from the file at path or, if path is empty, from in.
func readEvent(in io.Reader, path string) (pipebell.Event, error) {
	if path != "" {
		fi, err := os.Open(path)
		if err != nil {
			return pipebell.Event{}, err
		}
		defer fi.Close()
		in = fi
	}
	return pipebell.ParseEvent(in)
}
