package testhelp

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"dario.cat/mergo"
	"gotest.tools/v3/assert"
)

// WebhookTestURLOrSkip returns the webhook URL to use in integration tests, taken
// from environment variable PIPEBELL_TEST_WEBHOOK. If missing, it skips the test.
func WebhookTestURLOrSkip(t *testing.T) string {
	t.Helper()

	value := os.Getenv("PIPEBELL_TEST_WEBHOOK")
	if len(value) == 0 {
		t.Skip("Skipping integration test. Set PIPEBELL_TEST_WEBHOOK to a webhook URL to enable.")
	}
	return value
}

// WriteConfigFile writes contents to a file in a temporary directory and returns
// its path. The directory is removed at the end of the test.
func WriteConfigFile(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "pipebell.ini")
	assert.NilError(t, os.WriteFile(path, []byte(contents), 0o600))
	return path
}

// ToJSON returns the JSON encoding of thing.
func ToJSON(t *testing.T, thing any) []byte {
	t.Helper()
	buf, err := json.Marshal(thing)
	assert.NilError(t, err)
	return buf
}

// FromJSON unmarshals the JSON-encoded data into thing.
func FromJSON(t *testing.T, data []byte, thing any) {
	t.Helper()
	err := json.Unmarshal(data, thing)
	assert.NilError(t, err)
}

// MergeStructs merges b into a and returns the merged copy.
// Said in another way, a is the default and b is the override.
// Used to express succinctly the delta in the test cases.
// Since it is a test helper, it will panic in case of error.
func MergeStructs[T any](a, b T) T {
	if err := mergo.Merge(&a, b, mergo.WithOverride); err != nil {
		panic(err)
	}
	return a
}
