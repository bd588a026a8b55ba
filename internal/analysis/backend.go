// Package analysis asks an LLM backend about a code change. Backends take a
// prompt plus rendered diff context and return opaque text; nothing they
// produce is ever written to the review session automatically.
package analysis

import "context"

// Request is a single analysis invocation.
type Request struct {
	Prompt  string
	Context string // rendered diff context, prepended to the prompt

	// OnChunk, when set, receives response text incrementally as the
	// backend produces it. The complete answer is still returned from
	// Analyze once the stream ends.
	OnChunk func(text string)
}

// FullPrompt joins the context and the prompt into the text sent upstream.
func (r Request) FullPrompt() string {
	if r.Context == "" {
		return r.Prompt
	}
	return r.Context + "\n\n" + r.Prompt
}

// Backend produces an answer for an analysis request.
type Backend interface {
	Name() string
	Analyze(ctx context.Context, req Request) (string, error)
}
