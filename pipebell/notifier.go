// Package pipebell relays pipeline lifecycle events to a chat webhook.
//
// Each invocation of [Notifier.Handle] posts exactly one message, and never
// propagates a failure to its caller: all diagnostics go to the log.
package pipebell

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/Pix4D/pipebell/webhook"
)

// Notifier posts a chat message for each pipeline event.
// Use [New] to create an instance. A Notifier is safe for concurrent use: nothing
// in it is modified after New.
type Notifier struct {
	log        *slog.Logger
	client     *http.Client
	webhookURL string
	images     StatusImages
	timeout    time.Duration
}

// New returns a Notifier posting to the webhook of cfg, which is assumed to have
// been validated. If client is nil, a new http.Client is used.
func New(log *slog.Logger, cfg Config, client *http.Client) *Notifier {
	if client == nil {
		client = &http.Client{}
	}
	return &Notifier{
		log:        log.With("name", "notifier"),
		client:     client,
		webhookURL: cfg.WebhookURL,
		images:     cfg.Images.clone(),
		timeout:    cfg.Timeout,
	}
}

// NewLogger returns the logger used by pipebell, writing text to out. The level can
// be changed at any time via level, since the configured log level is known only
// after the configuration has been loaded.
func NewLogger(out io.Writer, level *slog.LevelVar) *slog.Logger {
	return slog.New(slog.NewTextHandler(out, &slog.HandlerOptions{Level: level}))
}

// MessageText returns the text of the chat message for a pipeline event.
// The pipeline and state are substituted verbatim. If image is empty, the second
// line of the text is empty.
func MessageText(state State, pipeline string, image string) string {
	return fmt.Sprintf("The pipeline %s has *%s*.\n%s", pipeline, state, image)
}

// image returns the image link for state. Unknown states never consult the table.
func (n *Notifier) image(state State) string {
	if !state.Known() {
		return ""
	}
	return n.images[state]
}

// Handle sends the notification for event, waits for the reply and logs it.
// Handle never fails from the point of view of the caller: transport errors,
// malformed events and even panics are logged and swallowed.
func (n *Notifier) Handle(ctx context.Context, event Event) {
	log := n.log.With("pipeline", event.Pipeline)
	defer func() {
		if r := recover(); r != nil {
			log.Error("handle", "kind", "panic", "error", fmt.Sprint(r))
		}
	}()

	log.Info("received", "event", event)
	if err := event.Validate(); err != nil {
		log.Warn("malformed event, sending anyway", "error", err)
	}

	meta, err := n.Send(ctx, event)
	if err != nil {
		args := []any{"kind", webhook.TransportErrorKind(err), "error", err}
		// A reply was received before the failure.
		if meta.StatusCode != 0 {
			args = append(args, "statusCode", meta.StatusCode, "bodyBytes", meta.BodyBytes)
		}
		log.Error("sending notification", args...)
		return
	}
	log.Info("response", "statusCode", meta.StatusCode, "bodyBytes", meta.BodyBytes)
}

// Send posts the message for event to the webhook and returns the response
// metadata. Differently from [Notifier.Handle], it returns the error.
// The status code and each chunk of the response body are logged as they arrive.
func (n *Notifier) Send(ctx context.Context, event Event) (webhook.ResponseMeta, error) {
	if n.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, n.timeout)
		defer cancel()
	}

	text := MessageText(event.State, event.Pipeline, n.image(event.State))
	n.log.Debug("sending", "text", text)

	receiver := webhook.Receiver{
		Status: func(statusCode int, status string) {
			if webhook.IsSuccess(statusCode) {
				n.log.Info("reply", "statusCode", statusCode)
				return
			}
			n.log.Warn("reply", "statusCode", statusCode, "status", status)
		},
		Chunk: func(chunk []byte) {
			n.log.Info("reply body", "chunk", string(chunk))
		},
	}
	meta, err := webhook.Post(ctx, n.client, n.webhookURL, text, receiver)
	if err != nil {
		return meta, fmt.Errorf("send: %w", err)
	}
	return meta, nil
}
