package manager

import (
	"strings"
	"sync"
	"time"

	"vlmd/internal/engine"
)

// fakeEngine is a scriptable engine that records device occupancy so tests
// can assert that no two requests ever interleave on the accelerator.
type fakeEngine struct {
	limits    engine.Limits
	stepDelay time.Duration
	replyFor  func(prompt string) string

	embedErr    error
	visionErr   error
	prefillErr  error
	decodeErrAt int // 1-based decode step that fails; 0 = never
	noneEvery   int // every Nth decode step yields no token
	endless     bool

	mu        sync.Mutex
	sessions  int
	busy      int
	maxBusy   int
	deviceOps []string
}

const fakeTokBase int32 = 1000

func newFakeEngine() *fakeEngine {
	return &fakeEngine{
		limits: engine.Limits{
			MaxInputTokens: 64,
			MaxSequence:    4096,
			EndTokens:      []int32{999},
			ImagePadToken:  901,
			VideoPadToken:  902,
			PositionAxes:   3,
		},
		replyFor: func(prompt string) string { return "echo: " + prompt },
	}
}

func (e *fakeEngine) Limits() engine.Limits { return e.limits }

func (e *fakeEngine) NewSession() (engine.Session, error) {
	e.mu.Lock()
	e.sessions++
	e.mu.Unlock()
	return &fakeSession{eng: e}, nil
}

func (e *fakeEngine) Close() error { return nil }

func (e *fakeEngine) enter(op string) {
	e.mu.Lock()
	e.busy++
	if e.busy > e.maxBusy {
		e.maxBusy = e.busy
	}
	e.deviceOps = append(e.deviceOps, op)
	e.mu.Unlock()
	if e.stepDelay > 0 {
		time.Sleep(e.stepDelay)
	}
}

func (e *fakeEngine) exit() {
	e.mu.Lock()
	e.busy--
	e.mu.Unlock()
}

func (e *fakeEngine) opCount(op string) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	n := 0
	for _, o := range e.deviceOps {
		if o == op {
			n++
		}
	}
	return n
}

func (e *fakeEngine) sessionCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.sessions
}

func (e *fakeEngine) maxConcurrent() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.maxBusy
}

type fakeSession struct {
	eng     *fakeEngine
	words   []string
	history int
	vision  string
	reply   []byte
	cursor  int
	steps   int
}

func (s *fakeSession) Reset() error {
	s.words = nil
	s.history = 0
	s.vision = ""
	s.reply = nil
	s.cursor = 0
	s.steps = 0
	return nil
}

func (s *fakeSession) Encode(text string) ([]int32, error) {
	s.words = strings.Fields(text)
	out := make([]int32, len(s.words))
	for i := range out {
		out[i] = int32(i)
	}
	return out, nil
}

func (s *fakeSession) Embed(tokens []int32) error {
	s.eng.enter("embed")
	defer s.eng.exit()
	if s.eng.embedErr != nil {
		return s.eng.embedErr
	}
	s.history += len(tokens)
	return nil
}

func (s *fakeSession) EncodeVision(path string, kind engine.MediaKind) (*engine.VisionFeatures, error) {
	s.eng.enter("vision")
	defer s.eng.exit()
	if s.eng.visionErr != nil {
		return nil, s.eng.visionErr
	}
	s.vision = kind.String()
	return &engine.VisionFeatures{Grid: []int32{1, 4, 4}}, nil
}

func (s *fakeSession) PositionIDs(tokens []int32, grid []int32, padToken int32) (*engine.Positions, error) {
	max := int32(0)
	if len(tokens) > 0 {
		max = int32(len(tokens) - 1)
	}
	return &engine.Positions{Max: max}, nil
}

func (s *fakeSession) Prefill(pos *engine.Positions) (int32, error) {
	s.eng.enter("prefill")
	defer s.eng.exit()
	if s.eng.prefillErr != nil {
		return 0, s.eng.prefillErr
	}
	prompt := strings.Join(s.words, " ")
	text := s.eng.replyFor(prompt)
	if s.vision != "" {
		text = "[" + s.vision + "] " + text
	}
	s.reply = []byte(text)
	s.cursor = 0
	s.history++
	return s.next(), nil
}

func (s *fakeSession) DecodeStep(pos int32) (int32, bool, error) {
	s.eng.enter("decode")
	defer s.eng.exit()
	s.steps++
	if s.eng.decodeErrAt > 0 && s.steps >= s.eng.decodeErrAt {
		return 0, false, errTestDecode
	}
	if s.eng.noneEvery > 0 && s.steps%s.eng.noneEvery == 0 {
		return 0, false, nil
	}
	s.history++
	return s.next(), true, nil
}

func (s *fakeSession) next() int32 {
	if s.cursor >= len(s.reply) {
		if s.eng.endless {
			return fakeTokBase + int32('x')
		}
		return s.eng.limits.EndTokens[0]
	}
	tok := fakeTokBase + int32(s.reply[s.cursor])
	s.cursor++
	return tok
}

func (s *fakeSession) HistoryLength() int { return s.history }

func (s *fakeSession) Render(tokens []int32) string {
	buf := make([]byte, 0, len(tokens))
	for _, t := range tokens {
		if t >= fakeTokBase && t < fakeTokBase+256 {
			buf = append(buf, byte(t-fakeTokBase))
		}
	}
	return string(buf)
}

func (s *fakeSession) Close() error { return nil }

type testError string

func (e testError) Error() string { return string(e) }

const errTestDecode = testError("decode blew up")
