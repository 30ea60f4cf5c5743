// Package stub provides a deterministic in-process engine used for
// development and tests. It echoes a canned reply token-by-token and honors
// the same limits and end-token protocol as the accelerator runtime.
package stub

import (
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"vlmd/internal/engine"
)

// Byte tokens occupy a range disjoint from word-token ids so Render can
// tell generated reply bytes apart from prompt vocabulary.
const byteBase int32 = 1 << 20

// Config tunes the stub. Zero values pick defaults.
type Config struct {
	MaxInputTokens int
	MaxSequence    int
	// VideoRatio mirrors the runtime's frame-subsampling ratio.
	VideoRatio float64
	// StepDelay slows every device-occupying call, useful for exercising
	// admission behavior in tests.
	StepDelay time.Duration
}

// Engine is a deterministic engine.Engine. It is safe for concurrent use;
// sessions are not.
type Engine struct {
	limits    engine.Limits
	ratio     float64
	stepDelay time.Duration

	mu    sync.Mutex
	vocab map[string]int32
	words []string
}

// New builds a stub engine with Qwen-style end and pad token ids.
func New(cfg Config) *Engine {
	if cfg.MaxInputTokens <= 0 {
		cfg.MaxInputTokens = 2048
	}
	if cfg.MaxSequence <= 0 {
		cfg.MaxSequence = 8192
	}
	if cfg.VideoRatio <= 0 {
		cfg.VideoRatio = 0.5
	}
	return &Engine{
		limits: engine.Limits{
			MaxInputTokens: cfg.MaxInputTokens,
			MaxSequence:    cfg.MaxSequence,
			EndTokens:      []int32{151645, 151643},
			ImagePadToken:  151655,
			VideoPadToken:  151656,
			PositionAxes:   3,
		},
		ratio:     cfg.VideoRatio,
		stepDelay: cfg.StepDelay,
		vocab:     make(map[string]int32),
	}
}

func (e *Engine) Limits() engine.Limits { return e.limits }

func (e *Engine) NewSession() (engine.Session, error) {
	return &session{eng: e, limits: e.limits}, nil
}

func (e *Engine) Close() error { return nil }

func (e *Engine) tokenize(text string) []int32 {
	e.mu.Lock()
	defer e.mu.Unlock()
	fields := strings.Fields(text)
	out := make([]int32, 0, len(fields))
	for _, f := range fields {
		id, ok := e.vocab[f]
		if !ok {
			id = int32(len(e.words))
			e.vocab[f] = id
			e.words = append(e.words, f)
		}
		out = append(out, id)
	}
	return out
}

func (e *Engine) word(id int32) string {
	e.mu.Lock()
	defer e.mu.Unlock()
	if id >= 0 && int(id) < len(e.words) {
		return e.words[id]
	}
	return ""
}

func (e *Engine) pause() {
	if e.stepDelay > 0 {
		time.Sleep(e.stepDelay)
	}
}

type session struct {
	eng    *Engine
	limits engine.Limits

	history int
	prompt  []int32
	vision  string
	reply   []byte
	cursor  int
	steps   int
}

func (s *session) Reset() error {
	s.history = 0
	s.prompt = nil
	s.vision = ""
	s.reply = nil
	s.cursor = 0
	s.steps = 0
	return nil
}

func (s *session) Encode(text string) ([]int32, error) {
	return s.eng.tokenize(text), nil
}

func (s *session) Embed(tokens []int32) error {
	s.eng.pause()
	s.prompt = append([]int32(nil), tokens...)
	s.history += len(tokens)
	return nil
}

func (s *session) EncodeVision(path string, kind engine.MediaKind) (*engine.VisionFeatures, error) {
	s.eng.pause()
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("vision input: %w", err)
	}
	s.vision = kind.String()
	grid := []int32{1, 16, 16}
	if kind == engine.KindVideo {
		frames := int32(float64(16) * s.eng.ratio)
		if frames < 1 {
			frames = 1
		}
		grid = []int32{frames, 16, 16}
	}
	return &engine.VisionFeatures{Grid: grid}, nil
}

func (s *session) PositionIDs(tokens []int32, grid []int32, padToken int32) (*engine.Positions, error) {
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

func (s *session) Prefill(pos *engine.Positions) (int32, error) {
	s.eng.pause()
	var b strings.Builder
	if s.vision != "" {
		fmt.Fprintf(&b, "The %s shows: ", s.vision)
	}
	words := make([]string, 0, len(s.prompt))
	for _, id := range s.prompt {
		if w := s.eng.word(id); w != "" {
			words = append(words, w)
		}
	}
	b.WriteString(strings.Join(words, " "))
	s.reply = []byte(b.String())
	s.cursor = 0
	s.history++
	return s.next(), nil
}

func (s *session) DecodeStep(pos int32) (int32, bool, error) {
	s.eng.pause()
	s.steps++
	// Periodic empty step: the runtime reports "no token yet" without
	// ending the sequence.
	if s.steps%5 == 3 && s.cursor < len(s.reply) {
		return 0, false, nil
	}
	s.history++
	return s.next(), true, nil
}

func (s *session) next() int32 {
	if s.cursor >= len(s.reply) {
		return s.limits.EndTokens[0]
	}
	tok := byteBase + int32(s.reply[s.cursor])
	s.cursor++
	return tok
}

func (s *session) HistoryLength() int { return s.history }

func (s *session) Render(tokens []int32) string {
	buf := make([]byte, 0, len(tokens))
	for _, t := range tokens {
		if t >= byteBase && t < byteBase+256 {
			buf = append(buf, byte(t-byteBase))
		}
	}
	return string(buf)
}

func (s *session) Close() error { return nil }
