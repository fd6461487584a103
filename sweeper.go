package otpgate

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/hexleaf/otpgate/internal/stores"
)

// sweeper periodically removes records whose retention window has lapsed so
// memory-backed deployments do not grow without bound. The Redis store
// expires keys natively, so its sweep is a no-op.
type sweeper struct {
	engine   *Engine
	store    stores.CodeStore
	interval time.Duration

	stopCh   chan struct{}
	doneCh   chan struct{}
	stopOnce sync.Once
}

func newSweeper(engine *Engine, store stores.CodeStore, interval time.Duration) *sweeper {
	return &sweeper{
		engine:   engine,
		store:    store,
		interval: interval,
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
}

func (s *sweeper) Start() {
	go s.run()
}

// Stop blocks until the sweep loop has exited. Idempotent.
func (s *sweeper) Stop() {
	s.stopOnce.Do(func() { close(s.stopCh) })
	<-s.doneCh
}

func (s *sweeper) run() {
	defer close(s.doneCh)

	s.sweep()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopCh:
			return
		case <-ticker.C:
			s.sweep()
		}
	}
}

func (s *sweeper) sweep() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	n, err := s.store.SweepExpired(ctx, time.Now())
	if err != nil {
		s.engine.emitAudit(ctx, auditEventSweepCompleted, false, "", "", err, nil)
		return
	}
	if n == 0 {
		return
	}

	if s.engine.metrics != nil {
		s.engine.metrics.Add(MetricRecordsSwept, uint64(n))
	}
	s.engine.emitAudit(ctx, auditEventSweepCompleted, true, "", "", nil, func() map[string]string {
		return map[string]string{"removed": strconv.Itoa(n)}
	})
}
