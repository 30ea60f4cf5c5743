package manager

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"vlmd/internal/engine"
	"vlmd/internal/media"
)

// Session is the per-worker mutable handle to the engine. It is created
// once per worker and reset before every request; nothing but the engine
// handle and its limits survives across requests.
type Session struct {
	es     engine.Session
	limits engine.Limits
	// maxPos is the running position counter; decode continues at
	// maxPos+1 after prefill.
	maxPos int32
}

func newSession(eng engine.Engine) (*Session, error) {
	es, err := eng.NewSession()
	if err != nil {
		return nil, err
	}
	return &Session{es: es, limits: eng.Limits()}, nil
}

// reset clears decoding history and the position counter. Must run before
// every request on this worker.
func (s *Session) reset() error {
	s.maxPos = 0
	if err := s.es.Reset(); err != nil {
		return ErrEngine(fmt.Errorf("reset: %w", err))
	}
	return nil
}

// embed tokenizes and embeds the prompt. The length check runs before any
// device work so an oversized prompt never costs accelerator time.
func (s *Session) embed(prompt string) ([]int32, error) {
	tokens, err := s.es.Encode(prompt)
	if err != nil {
		return nil, ErrEngine(fmt.Errorf("tokenize: %w", err))
	}
	if len(tokens) > s.limits.MaxInputTokens {
		return nil, ErrValidation(fmt.Sprintf("input too long: %d tokens > max %d", len(tokens), s.limits.MaxInputTokens))
	}
	if err := s.es.Embed(tokens); err != nil {
		return nil, ErrEngine(fmt.Errorf("embed: %w", err))
	}
	return tokens, nil
}

// encodeVision runs the vision tower for image or video input.
func (s *Session) encodeVision(ref *media.Reference) (*engine.VisionFeatures, error) {
	kind := engine.KindImage
	if ref.Kind == media.KindVideo {
		kind = engine.KindVideo
	}
	feats, err := s.es.EncodeVision(ref.Path, kind)
	if err != nil {
		return nil, ErrEngine(fmt.Errorf("vision encode: %w", err))
	}
	return feats, nil
}

// positionIDs computes position indices for the prompt. Multimodal input
// delegates to the engine's multi-axis rope algorithm; text-only input is a
// plain ascending range replicated across the position axes.
func (s *Session) positionIDs(tokens []int32, feats *engine.VisionFeatures, kind media.Kind) (*engine.Positions, error) {
	if feats != nil {
		pad := s.limits.ImagePadToken
		if kind == media.KindVideo {
			pad = s.limits.VideoPadToken
		}
		pos, err := s.es.PositionIDs(tokens, feats.Grid, pad)
		if err != nil {
			return nil, ErrEngine(fmt.Errorf("position ids: %w", err))
		}
		return pos, nil
	}
	n := len(tokens)
	ids := make([][]int32, s.limits.PositionAxes)
	for a := range ids {
		row := make([]int32, n)
		for i := range row {
			row[i] = int32(i)
		}
		ids[a] = row
	}
	max := int32(0)
	if n > 0 {
		max = int32(n - 1)
	}
	return &engine.Positions{IDs: ids, Max: max}, nil
}

// prefill runs the first forward pass and primes the position counter.
func (s *Session) prefill(pos *engine.Positions) (int32, error) {
	tok, err := s.es.Prefill(pos)
	if err != nil {
		return 0, ErrEngine(fmt.Errorf("prefill: %w", err))
	}
	s.maxPos = pos.Max
	return tok, nil
}

// decodeStep advances the position counter and runs one autoregressive
// step. ok=false means the engine produced no token yet; the caller skips
// and loops.
func (s *Session) decodeStep() (int32, bool, error) {
	s.maxPos++
	tok, ok, err := s.es.DecodeStep(s.maxPos)
	if err != nil {
		return 0, false, ErrEngine(fmt.Errorf("decode step: %w", err))
	}
	return tok, ok, nil
}

func (s *Session) historyLength() int { return s.es.HistoryLength() }

func (s *Session) isEnd(tok int32) bool { return s.limits.IsEnd(tok) }

func (s *Session) close() {
	_ = s.es.Close()
}

// textBuffer accumulates raw token ids and releases text only when it
// decodes cleanly, so multi-byte glyphs never split across chunks.
type textBuffer struct {
	es      engine.Session
	pending []int32
}

// add buffers tok and returns a finished fragment, or "" while the decoded
// text still ends in an invalid-character marker.
func (b *textBuffer) add(tok int32) string {
	b.pending = append(b.pending, tok)
	text := b.es.Render(b.pending)
	if strings.ContainsRune(text, utf8.RuneError) {
		return ""
	}
	b.pending = b.pending[:0]
	return text
}
