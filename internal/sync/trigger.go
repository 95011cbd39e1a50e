package sync

import (
	"context"
	"sync/atomic"
	"time"
)

// triggerTimeout bounds a background reconciliation pass.
const triggerTimeout = 2 * time.Minute

// Trigger runs background reconciliations after local mutations. Calls
// never block; while a triggered pass is pending, further triggers coalesce
// into it.
type Trigger struct {
	svc     *Service
	pending atomic.Bool
}

func NewTrigger(svc *Service) *Trigger {
	return &Trigger{svc: svc}
}

func (t *Trigger) Trigger() {
	if !t.pending.CompareAndSwap(false, true) {
		return
	}
	go func() {
		defer t.pending.Store(false)
		ctx, cancel := context.WithTimeout(context.Background(), triggerTimeout)
		defer cancel()
		res := t.svc.Sync(ctx)
		if !res.Success {
			t.svc.logger.Debugw("background sync did not complete", "message", res.Message)
		}
	}()
}
