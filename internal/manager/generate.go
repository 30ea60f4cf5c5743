package manager

import (
	"context"
	"fmt"
	"strings"

	"vlmd/internal/engine"
	"vlmd/internal/media"
)

// running holds the resources of one admitted request: the exclusive worker,
// its session, and the device gate. Everything through prefill has already
// run when a running is handed out.
type running struct {
	m           *Manager
	req         Request
	workerID    int
	sess        *Session
	releaseGate func()
	firstTok    int32
	buf         textBuffer
}

// prepare acquires a worker and the device gate, then drives the session
// through Reset, Embed, the vision path, PositionIndex and Prefill. On any
// failure every resource is released and owned media is removed; the
// originating error is returned for status mapping.
func (m *Manager) prepare(ctx context.Context, req Request) (*running, error) {
	workerID, err := m.acquireWorker(ctx)
	if err != nil {
		req.Media.Cleanup(m.log)
		return nil, err
	}
	sess, err := m.session(workerID)
	if err != nil {
		m.releaseWorker(workerID)
		req.Media.Cleanup(m.log)
		return nil, err
	}
	releaseGate, err := m.acquireDevice(ctx)
	if err != nil {
		m.releaseWorker(workerID)
		req.Media.Cleanup(m.log)
		return nil, err
	}

	fail := func(err error) (*running, error) {
		releaseGate()
		m.releaseWorker(workerID)
		req.Media.Cleanup(m.log)
		return nil, err
	}

	if err := sess.reset(); err != nil {
		return fail(err)
	}
	tokens, err := sess.embed(req.Prompt)
	if err != nil {
		return fail(err)
	}
	var feats *engine.VisionFeatures
	var kind media.Kind
	if req.Media != nil {
		f, err := sess.encodeVision(req.Media)
		if err != nil {
			return fail(err)
		}
		feats = f
		kind = req.Media.Kind
	}
	pos, err := sess.positionIDs(tokens, feats, kind)
	if err != nil {
		return fail(err)
	}
	firstTok, err := sess.prefill(pos)
	if err != nil {
		return fail(err)
	}

	return &running{
		m:           m,
		req:         req,
		workerID:    workerID,
		sess:        sess,
		releaseGate: releaseGate,
		firstTok:    firstTok,
		buf:         textBuffer{es: sess.es},
	}, nil
}

// finish releases everything prepare acquired, cleaning owned media first so
// no exit path leaks a temp file.
func (r *running) finish(mode, outcome string) {
	r.req.Media.Cleanup(r.m.log)
	r.releaseGate()
	r.m.releaseWorker(r.workerID)
	generationsTotal.WithLabelValues(mode, outcome).Inc()
}

// loop runs the decode state machine, feeding finished text fragments to
// emit. It terminates on an end-of-turn token, the engine's history bound,
// the hard iteration cap, or a context/emit failure.
func (r *running) loop(ctx context.Context, emit func(string) error) error {
	sess := r.sess
	if sess.isEnd(r.firstTok) {
		// First token already ends the turn: zero deltas is legal.
		return nil
	}
	generatedTokens.Inc()
	if frag := r.buf.add(r.firstTok); frag != "" {
		if err := emit(frag); err != nil {
			return err
		}
	}
	for step := 0; step < maxDecodeSteps; step++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		if sess.historyLength() >= sess.limits.MaxSequence {
			return nil
		}
		tok, ok, err := sess.decodeStep()
		if err != nil {
			return err
		}
		if !ok {
			// No new token yet; the buffer never advances.
			continue
		}
		if sess.isEnd(tok) {
			return nil
		}
		generatedTokens.Inc()
		if frag := r.buf.add(tok); frag != "" {
			if err := emit(frag); err != nil {
				return err
			}
		}
	}
	return nil
}

// Generate runs one request to completion and returns the assembled reply.
// An empty result is replaced by a fixed fallback message.
func (m *Manager) Generate(ctx context.Context, req Request) (string, error) {
	r, err := m.prepare(ctx, req)
	if err != nil {
		return "", err
	}
	outcome := "ok"
	defer func() { r.finish("sync", outcome) }()

	var sb strings.Builder
	err = r.loop(ctx, func(frag string) error {
		sb.WriteString(frag)
		return nil
	})
	if err != nil {
		outcome = "error"
		return "", err
	}
	text := strings.TrimSpace(sb.String())
	if text == "" {
		text = FallbackReply
	}
	return text, nil
}

// GenerateStream runs the state machine through prefill eagerly, so input
// errors still map to response statuses, then produces a lazy chunk
// sequence: zero or more deltas followed by exactly one terminator. The
// device gate stays held until the sequence ends.
func (m *Manager) GenerateStream(ctx context.Context, req Request) (<-chan Chunk, error) {
	r, err := m.prepare(ctx, req)
	if err != nil {
		return nil, err
	}
	ch := make(chan Chunk, 8)
	go func() {
		outcome := "ok"
		defer func() {
			if p := recover(); p != nil {
				outcome = "panic"
				m.log.Error().Interface("panic", p).Msg("generation panicked")
				trySend(ctx, ch, Chunk{ErrMessage: fmt.Sprintf("generation failed: %v", p)})
			}
			r.finish("stream", outcome)
			close(ch)
		}()
		err := r.loop(ctx, func(frag string) error {
			if !trySend(ctx, ch, Chunk{Delta: frag}) {
				return ctx.Err()
			}
			return nil
		})
		switch {
		case err == nil:
			trySend(ctx, ch, Chunk{FinishReason: "stop"})
		case ctx.Err() != nil:
			// Client gone: stop decoding, emit nothing further.
			outcome = "canceled"
		default:
			outcome = "error"
			m.log.Error().Err(err).Msg("streaming generation failed")
			trySend(ctx, ch, Chunk{ErrMessage: err.Error()})
		}
	}()
	return ch, nil
}

// trySend delivers c unless ctx is done first.
func trySend(ctx context.Context, ch chan<- Chunk, c Chunk) bool {
	select {
	case ch <- c:
		return true
	case <-ctx.Done():
		return false
	}
}
