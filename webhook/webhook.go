// Package webhook implements the chat incoming-webhook API used by pipebell.
//
// Slack and Google Chat incoming webhooks both accept the same basic message: a JSON
// object with the single field "text". Both encode the secret in the webhook URL
// itself, so this package takes care of never leaking it in error messages.
package webhook

import (
	"bytes"
	"context"
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
)

// Message is the request for a basic text message.
type Message struct {
	Text string `json:"text"`
}

// ResponseMeta summarizes the reply to [Post].
type ResponseMeta struct {
	StatusCode int
	Status     string // For example "200 OK".
	BodyBytes  int    // Total size of the response body received.
}

// Receiver is notified by [Post] as the response arrives. Both fields are optional.
type Receiver struct {
	// Status is called once, as soon as the response headers are received.
	Status func(statusCode int, status string)
	// Chunk is called for each chunk of the response body, in arrival order.
	// The chunk is valid only for the duration of the call.
	Chunk func(chunk []byte)
}

const chunkSize = 16 * 1024

// Marshal returns the JSON encoding of msg, without trailing newline.
// Differently from json.Marshal, the characters <, > and & are not escaped, so that
// the text reaches the chat as written.
func Marshal(msg Message) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(msg); err != nil {
		return nil, err
	}
	return bytes.TrimSuffix(buf.Bytes(), []byte("\n")), nil
}

// Post sends the one-off message `text` to webhook `theURL` and streams the response
// to receiver.
//
// A reply with a non-2xx status code is not an error: the status is reported in
// ResponseMeta and to receiver.Status, the caller decides what to do with it.
// The returned error is either a transport error (DNS, connection, TLS, context
// deadline) or an error while reading the response body; in the latter case
// ResponseMeta contains what was received until then.
//
// If client is nil, a new http.Client is used.
//
// Implementation note: the Content-Length header is set by net/http from the
// length of the body reader; setting it in req.Header would be ignored.
//
// References:
// Slack: https://api.slack.com/messaging/webhooks
// Google Chat: https://developers.google.com/chat/how-tos/webhooks
func Post(
	ctx context.Context,
	client *http.Client,
	theURL string,
	text string,
	receiver Receiver,
) (ResponseMeta, error) {
	body, err := Marshal(Message{Text: text})
	if err != nil {
		return ResponseMeta{}, fmt.Errorf("webhook post: %s", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, theURL,
		bytes.NewReader(body))
	if err != nil {
		return ResponseMeta{},
			fmt.Errorf("webhook post: new request: %w", RedactErrorURL(err))
	}
	req.Header.Set("Content-Type", "application/json")
	req.ContentLength = int64(len(body))

	if client == nil {
		client = &http.Client{}
	}
	resp, err := client.Do(req)
	if err != nil {
		return ResponseMeta{}, fmt.Errorf("webhook post: send: %w", RedactErrorURL(err))
	}
	defer resp.Body.Close()

	meta := ResponseMeta{StatusCode: resp.StatusCode, Status: resp.Status}
	if receiver.Status != nil {
		receiver.Status(resp.StatusCode, resp.Status)
	}

	buf := make([]byte, chunkSize)
	for {
		n, err := resp.Body.Read(buf)
		if n > 0 {
			meta.BodyBytes += n
			if receiver.Chunk != nil {
				receiver.Chunk(buf[:n])
			}
		}
		if errors.Is(err, io.EOF) {
			return meta, nil
		}
		if err != nil {
			return meta, fmt.Errorf("webhook post: reading body: %w", RedactErrorURL(err))
		}
	}
}

// IsSuccess returns true if statusCode is in the 2xx range.
func IsSuccess(statusCode int) bool {
	return statusCode >= 200 && statusCode < 300
}

// Transport error kinds returned by [TransportErrorKind].
const (
	KindCanceled   = "canceled"
	KindTimeout    = "timeout"
	KindDNS        = "dns"
	KindTLS        = "tls"
	KindConnection = "connection"
	KindUnknown    = "unknown"
)

// TransportErrorKind classifies an error returned by [Post], for structured logging.
// It returns the empty string if err is nil.
func TransportErrorKind(err error) string {
	if err == nil {
		return ""
	}

	var dnsErr *net.DNSError
	var certErr *tls.CertificateVerificationError
	var recordErr tls.RecordHeaderError
	var authorityErr x509.UnknownAuthorityError
	var hostnameErr x509.HostnameError
	var netErr net.Error
	var opErr *net.OpError

	switch {
	case errors.Is(err, context.Canceled):
		return KindCanceled
	case errors.Is(err, context.DeadlineExceeded):
		return KindTimeout
	case errors.As(err, &dnsErr):
		return KindDNS
	case errors.As(err, &certErr), errors.As(err, &recordErr),
		errors.As(err, &authorityErr), errors.As(err, &hostnameErr):
		return KindTLS
	case errors.As(err, &netErr) && netErr.Timeout():
		return KindTimeout
	case errors.As(err, &opErr):
		return KindConnection
	}
	return KindUnknown
}

// RedactURL returns a _best effort_ redacted copy of theURL.
//
// Use this workaround only when you are forced to use an API that encodes
// secrets in the URL instead of setting them in the request header.
//
// Redaction is applied as follows:
// - removal of all query parameters (Google Chat: key and token)
// - removal of "username:password@" HTTP Basic Authentication
// - removal of the path after the first segment (Slack: /services/T/B/secret)
func RedactURL(theURL *url.URL) *url.URL {
	redacted := *theURL

	if redacted.RawQuery != "" {
		redacted.RawQuery = "REDACTED"
	}
	if _, ok := redacted.User.Password(); ok {
		redacted.User = url.UserPassword("REDACTED", "REDACTED")
	}
	first, rest, found := strings.Cut(strings.TrimPrefix(redacted.Path, "/"), "/")
	if found && rest != "" {
		redacted.Path = "/" + first + "/REDACTED"
		redacted.RawPath = ""
	}

	return &redacted
}

// RedactErrorURL returns a _best effort_ redacted copy of err. See
// RedactURL for caveats and limitations.
// In case err is not of type url.Error, then it returns the error untouched.
func RedactErrorURL(err error) error {
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		urlErr.URL = RedactURLString(urlErr.URL)
		return urlErr
	}
	return err
}

// RedactURLString returns a _best effort_ redacted copy of theURL. See
// RedactURL for caveats and limitations.
// In case theURL cannot be parsed, it returns a placeholder, since the parse
// error itself would contain the secret.
func RedactURLString(theURL string) string {
	urlo, err := url.Parse(theURL)
	if err != nil {
		return "<unparsable URL>"
	}
	return RedactURL(urlo).String()
}
