package providers

import (
	"context"
	"time"

	"github.com/samber/do/v2"

	"github.com/contiapp/conti-server/internal/logger"
)

// SessionCleanupJob deletes expired refresh sessions on a fixed interval.
type SessionCleanupJob struct {
	cancel context.CancelFunc
	done   chan struct{}
}

// Shutdown stops the job and waits for a running prune to finish.
func (j *SessionCleanupJob) Shutdown() error {
	j.cancel()
	<-j.done
	return nil
}

// ProvideSessionCleanupJob starts the cleanup loop. The first prune runs
// immediately so a long-stopped server does not carry stale sessions.
func ProvideSessionCleanupJob(i do.Injector) (*SessionCleanupJob, error) {
	storeHandle := do.MustInvoke[*StoreHandle](i)
	log := do.MustInvoke[*logger.Logger](i)

	ctx, cancel := context.WithCancel(context.Background())
	job := &SessionCleanupJob{cancel: cancel, done: make(chan struct{})}

	prune := func() {
		count, err := storeHandle.PruneExpiredSessions(ctx, time.Now())
		switch {
		case err != nil && ctx.Err() == nil:
			log.Warn("Session cleanup failed", "error", err)
		case count > 0:
			log.Info("Pruned expired sessions", "deleted", count)
		}
	}

	go func() {
		defer close(job.done)
		ticker := time.NewTicker(sessionCleanupInterval)
		defer ticker.Stop()

		for prune(); ; {
			select {
			case <-ticker.C:
				prune()
			case <-ctx.Done():
				return
			}
		}
	}()

	log.Info("Session cleanup job started", "interval", sessionCleanupInterval)
	return job, nil
}
