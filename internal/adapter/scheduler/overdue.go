package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

const defaultSweepTimeout = 2 * time.Minute

// Sweeper is the statistics usecase's overdue reminder pass.
type Sweeper interface {
	NotifyOverdue(ctx context.Context, now time.Time) (int, error)
}

// OverdueSweep runs the overdue reminder pass on a cron schedule (UTC).
// Overlapping runs are skipped and panics are recovered.
type OverdueSweep struct {
	cron    *cron.Cron
	sweeper Sweeper
	log     *logrus.Logger
	clock   func() time.Time
	timeout time.Duration
}

func NewOverdueSweep(spec string, s Sweeper, log *logrus.Logger) (*OverdueSweep, error) {
	cl := cron.PrintfLogger(log)
	o := &OverdueSweep{
		cron: cron.New(
			cron.WithLocation(time.UTC),
			cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
		),
		sweeper: s,
		log:     log,
		clock:   func() time.Time { return time.Now().UTC() },
		timeout: defaultSweepTimeout,
	}
	if _, err := o.cron.AddFunc(spec, o.RunOnce); err != nil {
		return nil, fmt.Errorf("overdue sweep schedule %q: %w", spec, err)
	}
	return o, nil
}

func (o *OverdueSweep) Start() { o.cron.Start() }

// Stop prevents new runs and waits for a running one, or for ctx to end.
func (o *OverdueSweep) Stop(ctx context.Context) error {
	done := o.cron.Stop()
	select {
	case <-done.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (o *OverdueSweep) RunOnce() {
	ctx, cancel := context.WithTimeout(context.Background(), o.timeout)
	defer cancel()

	start := time.Now()
	sent, err := o.sweeper.NotifyOverdue(ctx, o.clock())
	entry := o.log.WithFields(logrus.Fields{"sent": sent, "took": time.Since(start).String()})
	if err != nil {
		entry.WithError(err).Error("overdue sweep failed")
		return
	}
	entry.Debug("overdue sweep done")
}
