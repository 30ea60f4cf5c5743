package manager

import (
	"context"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"vlmd/internal/media"
)

func TestGenerateEchoesPrompt(t *testing.T) {
	eng := newFakeEngine()
	m := newTestManager(t, eng, 1)
	out, err := m.Generate(context.Background(), Request{Prompt: "hello world"})
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if out != "echo: hello world" {
		t.Fatalf("unexpected output %q", out)
	}
}

func TestGenerateFallbackOnEmptyReply(t *testing.T) {
	eng := newFakeEngine()
	eng.replyFor = func(string) string { return "   " }
	m := newTestManager(t, eng, 1)
	out, err := m.Generate(context.Background(), Request{Prompt: "hi"})
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if out != FallbackReply {
		t.Fatalf("expected fallback reply, got %q", out)
	}
}

func TestGenerateInputTooLongFailsBeforeDevice(t *testing.T) {
	eng := newFakeEngine() // MaxInputTokens 64
	m := newTestManager(t, eng, 1)
	prompt := strings.Repeat("word ", 100)
	_, err := m.Generate(context.Background(), Request{Prompt: prompt})
	if err == nil || !IsValidation(err) {
		t.Fatalf("expected validation error, got %v", err)
	}
	for _, op := range []string{"embed", "vision", "prefill", "decode"} {
		if n := eng.opCount(op); n != 0 {
			t.Fatalf("expected no %s ops after rejected input, got %d", op, n)
		}
	}
}

func TestGenerateEngineErrorSurfaces(t *testing.T) {
	eng := newFakeEngine()
	eng.prefillErr = testError("prefill exploded")
	m := newTestManager(t, eng, 1)
	_, err := m.Generate(context.Background(), Request{Prompt: "hi"})
	if err == nil || !IsEngine(err) {
		t.Fatalf("expected engine error, got %v", err)
	}
	if !strings.Contains(err.Error(), "prefill exploded") {
		t.Fatalf("cause lost: %v", err)
	}
	// The failed request must release everything it held.
	if _, err := m.Generate(context.Background(), Request{Prompt: "hi"}); err == nil || !IsEngine(err) {
		t.Fatalf("second attempt should fail the same way, got %v", err)
	}
}

func TestGenerateWithMediaRunsVisionPath(t *testing.T) {
	eng := newFakeEngine()
	m := newTestManager(t, eng, 1)
	ref := &media.Reference{Path: "/tmp/does-not-matter.jpg", Kind: media.KindImage}
	out, err := m.Generate(context.Background(), Request{Prompt: "describe", Media: ref})
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if !strings.HasPrefix(out, "[image]") {
		t.Fatalf("vision path not exercised: %q", out)
	}
	if n := eng.opCount("vision"); n != 1 {
		t.Fatalf("expected 1 vision op, got %d", n)
	}
}

func TestGenerateSkipsEmptyDecodeSteps(t *testing.T) {
	eng := newFakeEngine()
	eng.noneEvery = 3
	m := newTestManager(t, eng, 1)
	out, err := m.Generate(context.Background(), Request{Prompt: "steady"})
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if out != "echo: steady" {
		t.Fatalf("token-less steps corrupted output: %q", out)
	}
}

func TestGenerateStopsAtSequenceLimit(t *testing.T) {
	eng := newFakeEngine()
	eng.endless = true
	eng.replyFor = func(string) string { return "" }
	eng.limits.MaxSequence = 10
	m := newTestManager(t, eng, 1)
	out, err := m.Generate(context.Background(), Request{Prompt: "go"})
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if len(out) == 0 || len(out) >= 10 {
		t.Fatalf("sequence limit not honored, got %d chars", len(out))
	}
}

func TestGenerateStopsAtDecodeCap(t *testing.T) {
	eng := newFakeEngine()
	eng.endless = true
	eng.replyFor = func(string) string { return "" }
	m := newTestManager(t, eng, 1)
	out, err := m.Generate(context.Background(), Request{Prompt: "go"})
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	// First token plus at most maxDecodeSteps loop iterations.
	if len(out) > maxDecodeSteps+1 {
		t.Fatalf("decode loop ran past the cap: %d tokens", len(out))
	}
}

func TestDeviceGateSerializesRequests(t *testing.T) {
	eng := newFakeEngine()
	eng.stepDelay = time.Millisecond
	m := newTestManager(t, eng, 3)

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := m.Generate(context.Background(), Request{Prompt: "load"}); err != nil {
				t.Errorf("generate: %v", err)
			}
		}()
	}
	wg.Wait()

	if got := eng.maxConcurrent(); got != 1 {
		t.Fatalf("device ops overlapped: max concurrency %d", got)
	}
	if got := eng.sessionCount(); got > 3 {
		t.Fatalf("more sessions than workers: %d", got)
	}
}

func TestGenerateRemovesOwnedMedia(t *testing.T) {
	for _, tc := range []struct {
		name string
		fail bool
	}{
		{name: "success"},
		{name: "failure", fail: true},
	} {
		t.Run(tc.name, func(t *testing.T) {
			eng := newFakeEngine()
			if tc.fail {
				eng.visionErr = testError("vision down")
			}
			m := newTestManager(t, eng, 1)
			ref := tempMediaRef(t)
			_, err := m.Generate(context.Background(), Request{Prompt: "p", Media: ref})
			if tc.fail && err == nil {
				t.Fatalf("expected failure")
			}
			if !tc.fail && err != nil {
				t.Fatalf("generate: %v", err)
			}
			if _, err := os.Stat(ref.Path); !os.IsNotExist(err) {
				t.Fatalf("owned temp file not removed: %v", err)
			}
		})
	}
}

func TestGenerateRetainsUnownedMedia(t *testing.T) {
	eng := newFakeEngine()
	m := newTestManager(t, eng, 1)
	ref := tempMediaRef(t)
	ref.Owned = false
	if _, err := m.Generate(context.Background(), Request{Prompt: "p", Media: ref}); err != nil {
		t.Fatalf("generate: %v", err)
	}
	if _, err := os.Stat(ref.Path); err != nil {
		t.Fatalf("caller-owned file removed: %v", err)
	}
}

func tempMediaRef(t *testing.T) *media.Reference {
	t.Helper()
	f, err := os.CreateTemp(t.TempDir(), "vlmd-test-*.jpg")
	if err != nil {
		t.Fatalf("temp file: %v", err)
	}
	f.Close()
	return &media.Reference{Path: f.Name(), Kind: media.KindImage, Owned: true}
}
