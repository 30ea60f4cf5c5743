package manager

import "vlmd/internal/media"

// Request is one generation request after transport-level parsing and media
// resolution. Immutable once constructed.
type Request struct {
	// Prompt is the combined user text; never empty (the resolver
	// substitutes a default instruction for media-only requests).
	Prompt string
	// Media is the single resolved media reference, or nil for text-only
	// requests. The Manager takes ownership: owned temp files are removed
	// on every exit path.
	Media *media.Reference
	// Stream selects chunked delivery.
	Stream bool
}

// Chunk is one unit of a streaming generation: a text delta, a normal
// terminator carrying a finish reason, or an error terminator. The chunk
// sequence is monotonic; nothing follows a terminator.
type Chunk struct {
	Delta        string
	FinishReason string
	ErrMessage   string
}

// Terminal reports whether c ends the sequence.
func (c Chunk) Terminal() bool { return c.FinishReason != "" || c.ErrMessage != "" }

// FallbackReply replaces an empty generation result.
const FallbackReply = "Sorry, the model did not generate a valid reply."

// maxDecodeSteps is the hard iteration cap of the decode loop.
const maxDecodeSteps = 2047
