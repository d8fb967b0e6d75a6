// Command pipebell-lambda is the AWS Lambda flavor of pipebell: each Lambda
// invocation posts a chat message for the event it receives.
//
// The configuration is read at cold start from the environment (see
// [pipebell.LoadConfig]); PIPEBELL_CONFIG can point to a file bundled with the
// function.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"os"

	"github.com/aws/aws-lambda-go/lambda"

	"github.com/Pix4D/pipebell/pipebell"
)

func main() {
	level := new(slog.LevelVar)
	log := pipebell.NewLogger(os.Stderr, level)
	log.Info(pipebell.BuildInfo())

	cfg, err := pipebell.LoadConfig(os.Getenv(pipebell.EnvConfigFile), pipebell.Config{})
	if err != nil {
		// Failing the cold start makes the misconfiguration visible in the Lambda console.
		log.Error("loading configuration", "error", err)
		os.Exit(1)
	}
	level.Set(cfg.Level())
	log.Debug("started", "config", cfg)

	lambda.Start(newHandler(log, pipebell.New(log, cfg, &http.Client{})))
}

// newHandler returns the Lambda handler. It always returns nil, so that the
// platform never retries an invocation: failures are only logged.
func newHandler(
	log *slog.Logger,
	notifier *pipebell.Notifier,
) func(context.Context, json.RawMessage) error {
	return func(ctx context.Context, payload json.RawMessage) error {
		event, err := pipebell.ParseEvent(bytes.NewReader(payload))
		if err != nil {
			log.Error("reading event", "kind", "input", "error", err)
			return nil
		}
		notifier.Handle(ctx, event)
		return nil
	}
}
