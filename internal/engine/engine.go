// Package engine defines the narrow contract between the serving core and
// the accelerator runtime. The runtime owns the tokenizer, embedding table,
// vision tower and decoder kernels; the core only sequences calls.
package engine

// MediaKind selects the vision path for an input.
type MediaKind int

const (
	KindImage MediaKind = iota
	KindVideo
)

func (k MediaKind) String() string {
	if k == KindVideo {
		return "video"
	}
	return "image"
}

// Limits are the fixed capacities of a loaded model. They never change for
// the lifetime of an Engine.
type Limits struct {
	// MaxInputTokens bounds the tokenized prompt length.
	MaxInputTokens int
	// MaxSequence bounds the accumulated history (prompt + generated).
	MaxSequence int
	// EndTokens are the end-of-turn token ids (e.g. im_end, eos).
	EndTokens []int32
	// ImagePadToken and VideoPadToken mark media placeholders in the
	// token stream for position-index computation.
	ImagePadToken int32
	VideoPadToken int32
	// PositionAxes is the number of rope axes (temporal/spatial).
	PositionAxes int
}

// IsEnd reports whether tok is an end-of-turn token.
func (l Limits) IsEnd(tok int32) bool {
	for _, e := range l.EndTokens {
		if tok == e {
			return true
		}
	}
	return false
}

// VisionFeatures is the result of running the vision tower. Grid holds the
// temporal/height/width extents of the encoded patches.
type VisionFeatures struct {
	Grid []int32
}

// Positions carries multi-axis position ids for a prefill pass.
type Positions struct {
	// IDs is one row per position axis.
	IDs [][]int32
	// Max is the largest position id; decode continues from Max+1.
	Max int32
}

// Engine is a loaded model. One Engine is shared by all workers; mutable
// per-request state lives in Sessions.
type Engine interface {
	Limits() Limits
	// NewSession creates an exclusive mutable decoding context. Sessions
	// are not safe for concurrent use.
	NewSession() (Session, error)
	Close() error
}

// Session is a stateful decoding context. All methods are fallible; any
// error leaves the session in an undefined state until the next Reset.
type Session interface {
	// Reset clears decoding history so no state leaks between requests.
	Reset() error
	// Encode tokenizes prompt text on the host. No device time is spent.
	Encode(text string) ([]int32, error)
	// Embed runs the embedding table over the token ids.
	Embed(tokens []int32) error
	// EncodeVision runs the vision tower over a local media file. Video
	// inputs are frame-subsampled by the runtime's configured ratio.
	EncodeVision(path string, kind MediaKind) (*VisionFeatures, error)
	// PositionIDs computes multi-axis position ids for a multimodal
	// prompt using the runtime's rope-index algorithm.
	PositionIDs(tokens []int32, grid []int32, padToken int32) (*Positions, error)
	// Prefill runs the first forward pass and returns the first token.
	Prefill(pos *Positions) (int32, error)
	// DecodeStep runs one autoregressive step at the given position.
	// ok=false means no new token yet; the sequence is not over.
	DecodeStep(pos int32) (tok int32, ok bool, err error)
	// HistoryLength is the accumulated sequence length on the device.
	HistoryLength() int
	// Render detokenizes, skipping special tokens. A partial multi-byte
	// glyph renders with an invalid-character marker.
	Render(tokens []int32) string
	Close() error
}
