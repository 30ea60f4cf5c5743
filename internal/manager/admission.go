package manager

import (
	"context"
	"time"
)

// acquireWorker reserves a worker-pool slot, waiting up to maxWait.
// The returned id grants exclusive use of that worker's session.
func (m *Manager) acquireWorker(ctx context.Context) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	timer := time.NewTimer(m.maxWait)
	defer timer.Stop()
	select {
	case id := <-m.workers:
		return id, nil
	case <-ctx.Done():
		return 0, ctx.Err()
	case <-timer.C:
		return 0, tooBusyError{}
	}
}

func (m *Manager) releaseWorker(id int) {
	m.workers <- id
}

// acquireDevice takes the process-wide admission gate. The gate is held for
// the full Embed..Decode span of one request, so no two requests ever
// interleave on the accelerator. Waiters are served as the channel grants
// them; there is no priority scheme.
func (m *Manager) acquireDevice(ctx context.Context) (func(), error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	start := time.Now()
	select {
	case m.gate <- struct{}{}:
		gateWait.Observe(time.Since(start).Seconds())
		gateBusy.Set(1)
		return func() {
			gateBusy.Set(0)
			<-m.gate
		}, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
