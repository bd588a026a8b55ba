package analysis

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestChunkFromStreamLine(t *testing.T) {
	cases := []struct {
		name string
		line string
		text string
		ok   bool
	}{
		{
			name: "assistant message with text blocks",
			line: `{"type":"assistant","message":{"content":[{"type":"text","text":"Hello "},{"type":"text","text":"there"}]}}`,
			text: "Hello there",
			ok:   true,
		},
		{
			name: "text delta",
			line: `{"type":"content_block_delta","delta":{"type":"text_delta","text":"chunk"}}`,
			text: "chunk",
			ok:   true,
		},
		{
			name: "non-text delta skipped",
			line: `{"type":"content_block_delta","delta":{"type":"input_json_delta","partial_json":"{"}}`,
			ok:   false,
		},
		{
			name: "unrelated event skipped",
			line: `{"type":"system","subtype":"init"}`,
			ok:   false,
		},
		{name: "malformed line skipped", line: `{"type":"assistant",`, ok: false},
		{name: "blank line skipped", line: "   ", ok: false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			text, ok := chunkFromStreamLine([]byte(tc.line))
			if ok != tc.ok {
				t.Fatalf("ok = %v, want %v", ok, tc.ok)
			}
			if ok && text != tc.text {
				t.Errorf("text = %q, want %q", text, tc.text)
			}
		})
	}
}

// writeStub installs a shell script that stands in for the claude binary.
func writeStub(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "claude-stub.sh")
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"+body), 0o755); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestClaudeCLIWholeResponse(t *testing.T) {
	stub := writeStub(t, "echo '  the answer  '\n")
	backend := NewClaudeCLI(ClaudeCLIConfig{Binary: stub})

	got, err := backend.Analyze(context.Background(), Request{Prompt: "hi"})
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if got != "the answer" {
		t.Errorf("Expected trimmed answer, got %q", got)
	}
}

func TestClaudeCLIStreams(t *testing.T) {
	stub := writeStub(t, `echo '{"type":"system","subtype":"init"}'
echo '{"type":"assistant","message":{"content":[{"type":"text","text":"Hello "}]}}'
echo 'not json at all'
echo '{"type":"content_block_delta","delta":{"type":"text_delta","text":"world"}}'
`)
	backend := NewClaudeCLI(ClaudeCLIConfig{Binary: stub})

	var chunks []string
	got, err := backend.Analyze(context.Background(), Request{
		Prompt:  "hi",
		OnChunk: func(text string) { chunks = append(chunks, text) },
	})
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if got != "Hello world" {
		t.Errorf("Expected assembled answer, got %q", got)
	}
	if len(chunks) != 2 || chunks[0] != "Hello " || chunks[1] != "world" {
		t.Errorf("Unexpected chunks: %q", chunks)
	}
}

func TestClaudeCLIFailureCarriesStderr(t *testing.T) {
	stub := writeStub(t, "echo 'boom: model overloaded' >&2\nexit 3\n")
	backend := NewClaudeCLI(ClaudeCLIConfig{Binary: stub})

	_, err := backend.Analyze(context.Background(), Request{Prompt: "hi"})
	var unavailable *BackendUnavailableError
	if !errors.As(err, &unavailable) {
		t.Fatalf("Expected BackendUnavailableError, got %v", err)
	}
	if unavailable.Stderr != "boom: model overloaded" {
		t.Errorf("Stderr = %q", unavailable.Stderr)
	}
	if unavailable.Backend != "claudecli" {
		t.Errorf("Backend = %q", unavailable.Backend)
	}
}

func TestClaudeCLIProbeMissingBinary(t *testing.T) {
	backend := NewClaudeCLI(ClaudeCLIConfig{Binary: "opencodereview-no-such-claude"})

	err := backend.Probe(context.Background())
	var unavailable *BackendUnavailableError
	if !errors.As(err, &unavailable) {
		t.Fatalf("Expected BackendUnavailableError, got %v", err)
	}
}

func TestClaudeCLIProbeSucceeds(t *testing.T) {
	stub := writeStub(t, "echo '1.0.0 (stub)'\n")
	backend := NewClaudeCLI(ClaudeCLIConfig{Binary: stub})

	if err := backend.Probe(context.Background()); err != nil {
		t.Fatalf("Probe: %v", err)
	}
}
