package pipebell

import (
	"fmt"
	"log/slog"
	"maps"
	"net/url"
	"os"
	"strings"
	"time"

	"dario.cat/mergo"
	"github.com/sasbury/mini"

	"github.com/Pix4D/pipebell/sets"
	"github.com/Pix4D/pipebell/webhook"
)

// StatusImages maps a known State to the link of the image decorating its message.
// Once passed to [New], it is never modified.
type StatusImages map[State]string

// DefaultImages returns a new copy of the built-in image table.
func DefaultImages() StatusImages {
	return StatusImages{
		StateStarted:   "https://media.giphy.com/media/mi6DsSSNKDbUY/giphy-downsized-large.gif",
		StateSucceeded: "https://media.giphy.com/media/XreQmk7ETCak0/giphy.gif",
		StateFailed:    "https://media.giphy.com/media/d2lcHJTG5Tscg/giphy.gif",
		StateCanceled:  "https://media.giphy.com/media/IzXmRTmKd0if6/giphy.gif",
	}
}

// Config is the configuration of pipebell.
type Config struct {
	//
	// Mandatory
	//
	WebhookURL string // SENSITIVE
	//
	// Optional
	//
	Images   StatusImages
	LogLevel string
	// Timeout of the webhook request. Zero means no timeout, other than the one
	// of the context passed to the Notifier.
	Timeout time.Duration
}

// Environment variables read by [LoadConfig].
const (
	EnvConfigFile = "PIPEBELL_CONFIG"
	EnvWebhookURL = "PIPEBELL_WEBHOOK_URL"
	EnvLogLevel   = "PIPEBELL_LOG_LEVEL"
	EnvTimeout    = "PIPEBELL_TIMEOUT"
)

// DefaultConfig returns the configuration defaults. The webhook URL has no default.
func DefaultConfig() Config {
	return Config{
		Images:   DefaultImages(),
		LogLevel: "info",
	}
}

// LoadConfig returns the validated configuration, built by layering, from lowest to
// highest precedence:
// - the defaults
// - the INI file at path, if path is not empty
// - the environment variables
// - overrides (normally coming from the command-line)
//
// Example of configuration file:
//
//	log_level = debug
//	timeout = 10s
//
//	[webhook]
//	url = https://hooks.slack.com/services/T00/B00/XXXX
//
//	[images]
//	started = https://example.com/rocket.gif
//	canceled =
//
// An empty image disables the image for that state.
func LoadConfig(path string, overrides Config) (Config, error) {
	cfg := DefaultConfig()

	layers := make([]Config, 0, 3)
	if path != "" {
		fileCfg, err := readConfigFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("config: %s", err)
		}
		layers = append(layers, fileCfg)
	}
	envCfg, err := configFromEnv()
	if err != nil {
		return Config{}, fmt.Errorf("config: %s", err)
	}
	layers = append(layers, envCfg, overrides)

	for _, layer := range layers {
		if err := mergo.Merge(&cfg, layer, mergo.WithOverride); err != nil {
			return Config{}, fmt.Errorf("config: merging: %s", err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// readConfigFile parses the INI configuration file at path.
func readConfigFile(path string) (Config, error) {
	ini, err := mini.LoadConfiguration(path)
	if err != nil {
		return Config{}, fmt.Errorf("reading %s: %w", path, err)
	}

	var cfg Config
	cfg.LogLevel = ini.String("log_level", "")
	cfg.WebhookURL = ini.StringFromSection("webhook", "url", "")
	if raw := ini.String("timeout", ""); raw != "" {
		cfg.Timeout, err = time.ParseDuration(raw)
		if err != nil {
			return Config{}, fmt.Errorf("%s: timeout: %s", path, err)
		}
	}

	const section = "images"
	keys := ini.KeysForSection(section)
	if len(keys) == 0 {
		return cfg, nil
	}
	known := sets.New[string](len(KnownStates()))
	for _, state := range KnownStates() {
		known.Add(strings.ToLower(string(state)))
	}
	have := sets.New[string](len(keys))
	for _, key := range keys {
		have.Add(strings.ToLower(key))
	}
	if unknown := have.Difference(known); unknown.Size() > 0 {
		return Config{}, fmt.Errorf("%s: [%s]: unknown keys: %s; want one of: %s",
			path, section, unknown, known)
	}
	cfg.Images = make(StatusImages, len(keys))
	for _, key := range keys {
		state := State(strings.ToUpper(key))
		cfg.Images[state] = ini.StringFromSection(section, key, "")
	}

	return cfg, nil
}

// configFromEnv returns the configuration found in the environment variables.
func configFromEnv() (Config, error) {
	cfg := Config{
		WebhookURL: os.Getenv(EnvWebhookURL),
		LogLevel:   os.Getenv(EnvLogLevel),
	}
	if raw := os.Getenv(EnvTimeout); raw != "" {
		timeout, err := time.ParseDuration(raw)
		if err != nil {
			return Config{}, fmt.Errorf("%s: %s", EnvTimeout, err)
		}
		cfg.Timeout = timeout
	}
	return cfg, nil
}

var logLevels = map[string]slog.Level{
	"debug": slog.LevelDebug,
	"info":  slog.LevelInfo,
	"warn":  slog.LevelWarn,
	"error": slog.LevelError,
}

// Validate verifies the configuration.
func (cfg Config) Validate() error {
	//
	// Validate mandatory fields.
	//
	if cfg.WebhookURL == "" {
		return fmt.Errorf("config: missing webhook URL (set %s or [webhook] url)",
			EnvWebhookURL)
	}
	// The url.Parse error would contain the secret, so we don't report it.
	theURL, err := url.Parse(cfg.WebhookURL)
	if err != nil {
		return fmt.Errorf("config: webhook URL: cannot be parsed")
	}
	if theURL.Scheme != "https" && theURL.Scheme != "http" {
		return fmt.Errorf("config: webhook URL %s: invalid scheme: %q",
			webhook.RedactURL(theURL), theURL.Scheme)
	}
	if theURL.Host == "" {
		return fmt.Errorf("config: webhook URL %s: missing host",
			webhook.RedactURL(theURL))
	}

	//
	// Validate optional fields.
	//
	if _, ok := logLevels[cfg.LogLevel]; !ok {
		return fmt.Errorf("config: invalid log_level: %s", cfg.LogLevel)
	}
	if cfg.Timeout < 0 {
		return fmt.Errorf("config: invalid timeout: %s", cfg.Timeout)
	}
	for state := range cfg.Images {
		if !state.Known() {
			return fmt.Errorf("config: images: unknown state: %s", state)
		}
	}

	return nil
}

// Level returns the slog level corresponding to LogLevel, or slog.LevelInfo if
// LogLevel is not valid.
func (cfg Config) Level() slog.Level {
	if level, ok := logLevels[cfg.LogLevel]; ok {
		return level
	}
	return slog.LevelInfo
}

// String renders Config, redacting the sensitive fields.
func (cfg Config) String() string {
	var bld strings.Builder

	fmt.Fprintln(&bld, "webhook_url:", redact(cfg.WebhookURL))
	fmt.Fprintln(&bld, "log_level:  ", cfg.LogLevel)
	fmt.Fprintln(&bld, "timeout:    ", cfg.Timeout)
	fmt.Fprint(&bld, "images:      ", len(cfg.Images))

	return bld.String()
}

// LogValue implements slog.LogValuer, redacting the sensitive fields.
func (cfg Config) LogValue() slog.Value {
	images := make([]slog.Attr, 0, len(cfg.Images))
	for _, state := range KnownStates() {
		if img, ok := cfg.Images[state]; ok {
			images = append(images, slog.String(strings.ToLower(string(state)), img))
		}
	}
	return slog.GroupValue(
		slog.String("webhook_url", redact(cfg.WebhookURL)),
		slog.String("log_level", cfg.LogLevel),
		slog.Duration("timeout", cfg.Timeout),
		slog.Attr{Key: "images", Value: slog.GroupValue(images...)})
}

// redact returns a redacted version of theURL, keeping the host to help
// troubleshooting. If theURL is empty, it returns the empty string.
func redact(theURL string) string {
	if theURL == "" {
		return ""
	}
	return webhook.RedactURLString(theURL)
}

// clone returns a copy of images, so that the caller can keep modifying its own.
func (images StatusImages) clone() StatusImages {
	return maps.Clone(images)
}
