// Package manager drives one generation request through the per-worker
// inference session state machine under the process-wide device gate, and
// adapts the blocking token producer into a chunk sequence.
package manager

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"vlmd/internal/engine"
)

const defaultMaxWait = 120 * time.Second

// Config configures a Manager.
type Config struct {
	Engine engine.Engine
	// Workers bounds how many sessions exist, not how much generation
	// runs concurrently; the device gate serializes execution.
	Workers int
	// MaxWait bounds how long a request may wait for a worker slot
	// before it is rejected as too busy. Zero picks a default.
	MaxWait time.Duration
	Logger  zerolog.Logger
}

// Manager owns the worker pool, the session registry and the device gate.
type Manager struct {
	eng     engine.Engine
	limits  engine.Limits
	log     zerolog.Logger
	maxWait time.Duration

	// workers holds the free worker ids; receiving id grants exclusive
	// use of sessions[id].
	workers chan int
	// gate is the device admission semaphore: at most one in-flight
	// forward pass process-wide.
	gate chan struct{}

	mu       sync.Mutex
	sessions []*Session
	lastErr  error
	warmed   bool
}

// New builds a Manager. The engine must already be loaded.
func New(cfg Config) (*Manager, error) {
	if cfg.Engine == nil {
		return nil, ErrDependencyUnavailable("no inference engine configured")
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.MaxWait <= 0 {
		cfg.MaxWait = defaultMaxWait
	}
	m := &Manager{
		eng:      cfg.Engine,
		limits:   cfg.Engine.Limits(),
		log:      cfg.Logger,
		maxWait:  cfg.MaxWait,
		workers:  make(chan int, cfg.Workers),
		gate:     make(chan struct{}, 1),
		sessions: make([]*Session, cfg.Workers),
	}
	for i := 0; i < cfg.Workers; i++ {
		m.workers <- i
	}
	return m, nil
}

// Workers returns the worker-pool size.
func (m *Manager) Workers() int { return cap(m.workers) }

// Ready reports whether at least one session has been constructed without a
// lingering failure.
func (m *Manager) Ready() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.warmed && m.lastErr == nil
}

// LastError returns the most recent session construction failure, if any.
func (m *Manager) LastError() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastErr
}

// Warmup constructs the first worker's session so the cold-start cost is
// paid at boot rather than by the first request.
func (m *Manager) Warmup(ctx context.Context) error {
	id, err := m.acquireWorker(ctx)
	if err != nil {
		return err
	}
	defer m.releaseWorker(id)
	_, err = m.session(id)
	return err
}

// session returns the lazily-constructed session for a held worker id. The
// caller must own id via acquireWorker, which makes the slot access safe.
func (m *Manager) session(id int) (*Session, error) {
	if s := m.sessions[id]; s != nil {
		return s, nil
	}
	start := time.Now()
	m.log.Info().Int("worker", id).Msg("initializing inference session")
	s, err := newSession(m.eng)
	m.mu.Lock()
	if err != nil {
		m.lastErr = err
	} else {
		m.lastErr = nil
		m.warmed = true
	}
	m.mu.Unlock()
	if err != nil {
		m.log.Error().Int("worker", id).Err(err).Msg("session init failed")
		return nil, ErrEngine(fmt.Errorf("session init: %w", err))
	}
	m.sessions[id] = s
	sessionsCreated.Inc()
	m.log.Info().Int("worker", id).Dur("dur", time.Since(start)).Msg("inference session ready")
	return s, nil
}

// Close releases every constructed session and the engine.
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, s := range m.sessions {
		if s != nil {
			s.close()
			m.sessions[i] = nil
		}
	}
	return m.eng.Close()
}
