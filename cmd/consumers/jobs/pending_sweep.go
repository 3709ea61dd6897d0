package jobs

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"fanpass/internal/service"
)

// Sweeper is the part of service.Sweeper the job drives
type Sweeper interface {
	RunOnce(ctx context.Context) service.SweepReport
}

// PendingSweepJob periodically completes payments whose webhook was lost
type PendingSweepJob struct {
	sweeper  Sweeper
	interval time.Duration
	ticker   *time.Ticker
	done     chan struct{}
	wg       sync.WaitGroup
	running  sync.Mutex
}

func NewPendingSweepJob(sweeper Sweeper, interval time.Duration) *PendingSweepJob {
	return &PendingSweepJob{
		sweeper:  sweeper,
		interval: interval,
		done:     make(chan struct{}),
	}
}

// Start runs a sweep immediately and then every interval
func (j *PendingSweepJob) Start(ctx context.Context) {
	slog.Info("Starting pending payment sweep job", "check_interval", j.interval.String())

	j.ticker = time.NewTicker(j.interval)

	j.wg.Add(1)
	go func() {
		defer j.wg.Done()

		j.sweep(ctx)
		for {
			select {
			case <-j.ticker.C:
				j.sweep(ctx)
			case <-ctx.Done():
				slog.Info("Pending payment sweep job stopped")
				return
			case <-j.done:
				slog.Info("Pending payment sweep job stopped")
				return
			}
		}
	}()
}

// Stop stops the ticker and waits for an in-flight sweep to finish
func (j *PendingSweepJob) Stop() {
	if j.ticker != nil {
		j.ticker.Stop()
	}
	close(j.done)
	j.wg.Wait()
}

func (j *PendingSweepJob) sweep(ctx context.Context) {
	// пропускаем тик, если прошлый проход еще идет
	if !j.running.TryLock() {
		slog.Warn("Previous sweep still running, skipping tick")
		return
	}
	defer j.running.Unlock()

	start := time.Now()
	report := j.sweeper.RunOnce(ctx)

	if report == (service.SweepReport{}) {
		slog.Debug("No pending payments to sweep")
		return
	}

	slog.Info("Pending payment sweep finished",
		"checked", report.Checked,
		"completed", report.Completed,
		"still_pending", report.StillPending,
		"repaired", report.Repaired,
		"failed", report.Failed,
		"elapsed", time.Since(start).String())
}
