package httpapi

import (
	"context"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"vlmd/internal/manager"
	"vlmd/internal/media"
)

// fakeService is a scriptable Service for handler tests.
type fakeService struct {
	reply     string
	genErr    error
	streamErr error
	chunks    []manager.Chunk
	ready     bool
	workers   int

	mu      sync.Mutex
	lastReq manager.Request
}

func (s *fakeService) Generate(ctx context.Context, req manager.Request) (string, error) {
	s.mu.Lock()
	s.lastReq = req
	s.mu.Unlock()
	req.Media.Cleanup(zerolog.Nop())
	if s.genErr != nil {
		return "", s.genErr
	}
	return s.reply, nil
}

func (s *fakeService) GenerateStream(ctx context.Context, req manager.Request) (<-chan manager.Chunk, error) {
	s.mu.Lock()
	s.lastReq = req
	s.mu.Unlock()
	req.Media.Cleanup(zerolog.Nop())
	if s.streamErr != nil {
		return nil, s.streamErr
	}
	ch := make(chan manager.Chunk, len(s.chunks))
	for _, c := range s.chunks {
		ch <- c
	}
	close(ch)
	return ch, nil
}

func (s *fakeService) Warmup(ctx context.Context) error { return nil }
func (s *fakeService) Ready() bool                      { return s.ready }

func (s *fakeService) Workers() int {
	if s.workers == 0 {
		return 1
	}
	return s.workers
}

func (s *fakeService) last() manager.Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastReq
}

func newTestMux(t *testing.T, svc *fakeService, opts Options) http.Handler {
	t.Helper()
	if opts.Model == "" {
		opts.Model = "test-model"
	}
	res := media.NewResolver(time.Second, zerolog.Nop())
	return NewMux(svc, res, opts)
}
