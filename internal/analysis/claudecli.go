package analysis

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

const (
	defaultClaudeBinary  = "claude"
	defaultClaudeTimeout = 2 * time.Minute
	probeTimeout         = 5 * time.Second
)

// ClaudeCLIConfig configures the claude subprocess backend.
type ClaudeCLIConfig struct {
	Binary  string        // defaults to "claude"
	Timeout time.Duration // per-invocation ceiling, defaults to 2 minutes
}

// ClaudeCLI answers analysis requests by shelling out to the claude
// command. Streaming uses its line-delimited stream-json output format.
type ClaudeCLI struct {
	binary  string
	timeout time.Duration
}

// NewClaudeCLI builds the backend without touching the binary; call Probe
// to verify it is installed and responding.
func NewClaudeCLI(cfg ClaudeCLIConfig) *ClaudeCLI {
	if cfg.Binary == "" {
		cfg.Binary = defaultClaudeBinary
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultClaudeTimeout
	}
	return &ClaudeCLI{binary: cfg.Binary, timeout: cfg.Timeout}
}

func (b *ClaudeCLI) Name() string {
	return "claudecli"
}

// Probe runs `claude --version` to check the CLI is installed and working.
func (b *ClaudeCLI) Probe(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	out, err := exec.CommandContext(ctx, b.binary, "--version").CombinedOutput()
	if err != nil {
		return &BackendUnavailableError{
			Backend: b.Name(),
			Stderr:  strings.TrimSpace(string(out)),
			Err: fmt.Errorf("claude CLI not available (install with: npm install -g @anthropic-ai/claude-code): %w",
				err),
		}
	}
	return nil
}

// Analyze sends the request to the claude CLI. With OnChunk set the
// response is streamed; otherwise a single completed response is returned.
func (b *ClaudeCLI) Analyze(ctx context.Context, req Request) (string, error) {
	log.Debug().
		Str("backend", b.Name()).
		Int("prompt_len", len(req.FullPrompt())).
		Bool("stream", req.OnChunk != nil).
		Msg("Invoking claude CLI")

	if req.OnChunk != nil {
		return b.stream(ctx, req)
	}
	return b.whole(ctx, req)
}

func (b *ClaudeCLI) whole(ctx context.Context, req Request) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, b.binary, "--print", "--verbose", req.FullPrompt())
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return "", b.unavailable(stderr.String(), err)
	}
	return strings.TrimSpace(stdout.String()), nil
}

func (b *ClaudeCLI) stream(ctx context.Context, req Request) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, b.binary,
		"--print", "--verbose", "--output-format", "stream-json", req.FullPrompt())
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return "", b.unavailable("", err)
	}
	if err := cmd.Start(); err != nil {
		return "", b.unavailable(stderr.String(), err)
	}

	var full strings.Builder
	scanner := bufio.NewScanner(stdout)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		text, ok := chunkFromStreamLine(scanner.Bytes())
		if !ok || text == "" {
			continue
		}
		full.WriteString(text)
		req.OnChunk(text)
	}
	scanErr := scanner.Err()

	if err := cmd.Wait(); err != nil {
		return "", b.unavailable(stderr.String(), err)
	}
	if scanErr != nil {
		return "", b.unavailable(stderr.String(), scanErr)
	}
	return full.String(), nil
}

func (b *ClaudeCLI) unavailable(stderr string, err error) error {
	return &BackendUnavailableError{
		Backend: b.Name(),
		Stderr:  strings.TrimSpace(stderr),
		Err:     err,
	}
}

// streamEvent is the subset of the claude CLI stream-json protocol the
// reader cares about: whole assistant messages and incremental text deltas.
type streamEvent struct {
	Type    string `json:"type"`
	Message struct {
		Content []struct {
			Type string `json:"type"`
			Text string `json:"text"`
		} `json:"content"`
	} `json:"message"`
	Delta struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"delta"`
}

// chunkFromStreamLine extracts response text from one stream-json line.
// Malformed or unrelated lines are skipped rather than treated as errors.
func chunkFromStreamLine(line []byte) (string, bool) {
	line = bytes.TrimSpace(line)
	if len(line) == 0 {
		return "", false
	}

	var ev streamEvent
	if err := json.Unmarshal(line, &ev); err != nil {
		return "", false
	}

	switch ev.Type {
	case "assistant":
		var text strings.Builder
		for _, block := range ev.Message.Content {
			if block.Type == "text" {
				text.WriteString(block.Text)
			}
		}
		return text.String(), true
	case "content_block_delta":
		if ev.Delta.Type == "text_delta" {
			return ev.Delta.Text, true
		}
	}
	return "", false
}
