package logging

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog/log"
)

func TestSetupRejectsBadLevel(t *testing.T) {
	if _, err := Setup(Options{Level: "loud"}); err == nil {
		t.Fatal("expected error for unknown level")
	}
}

func TestSetupWritesJSONToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run.log")

	closer, err := Setup(Options{Level: "debug", File: path})
	if err != nil {
		t.Fatalf("Setup: %v", err)
	}
	if closer == nil {
		t.Fatal("expected a closer for the log file")
	}

	log.Info().Str("component", "test").Msg("hello")
	if err := closer.Close(); err != nil {
		t.Fatal(err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	line := string(data)
	if !strings.Contains(line, `"message":"hello"`) || !strings.Contains(line, `"component":"test"`) {
		t.Errorf("unexpected log line: %s", line)
	}
}

func TestSetupConsoleNeedsNoCloser(t *testing.T) {
	closer, err := Setup(Options{Level: "info"})
	if err != nil {
		t.Fatalf("Setup: %v", err)
	}
	if closer != nil {
		t.Error("console output must not return a closer")
	}
}
