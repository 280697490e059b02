package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bilgisen/wastewatch/internal/models"
)

// Start begins recurring runs every interval. Starting a running scheduler
// replaces its interval.
func (o *Orchestrator) Start(interval time.Duration) error {
	if interval <= 0 {
		return fmt.Errorf("scheduler interval must be positive, got %s", interval)
	}

	o.mu.Lock()
	defer o.mu.Unlock()
	if o.stop != nil {
		close(o.stop)
	}
	stop := make(chan struct{})
	o.stop = stop
	o.interval = interval
	o.nextRun = time.Now().Add(interval)

	go o.loop(stop, interval)

	o.log.Info().Dur("interval", interval).Msg("Scheduler started")
	return nil
}

// Stop prevents future scheduled runs. An executing run is left to finish.
func (o *Orchestrator) Stop() {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.stop == nil {
		return
	}
	close(o.stop)
	o.stop = nil
	o.nextRun = time.Time{}
	o.log.Info().Msg("Scheduler stopped")
}

// Wait blocks until scheduled runs already started have finished, or ctx ends.
func (o *Orchestrator) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		o.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (o *Orchestrator) Status() Status {
	o.mu.Lock()
	defer o.mu.Unlock()

	st := Status{
		Running:      o.stop != nil,
		IsProcessing: o.busy.Load(),
		LastRun:      o.lastRun,
	}
	if st.Running {
		st.IntervalMinutes = int(o.interval / time.Minute)
		st.Interval = describeInterval(o.interval)
		next := o.nextRun
		st.NextRun = &next
	}
	return st
}

func (o *Orchestrator) loop(stop <-chan struct{}, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case t := <-ticker.C:
			o.mu.Lock()
			if o.stop == stop {
				o.nextRun = t.Add(interval)
			}
			o.mu.Unlock()

			// A tick never waits for a run in progress.
			o.wg.Add(1)
			go func() {
				defer o.wg.Done()
				o.scheduledRun()
			}()
		}
	}
}

func (o *Orchestrator) scheduledRun() {
	ctx := context.Background()
	if o.cfg.RunTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.cfg.RunTimeout)
		defer cancel()
	}

	_, err := o.RunOnce(ctx, models.TriggerScheduled)
	if err != nil && !errors.Is(err, models.ErrRunInProgress) {
		o.log.Error().Err(err).Msg("Scheduled run failed")
	}
}

// describeInterval reads "Every 30 minutes"; intervals that are not whole
// minutes keep their exact duration.
func describeInterval(d time.Duration) string {
	if d%time.Minute == 0 {
		return fmt.Sprintf("Every %d minutes", int(d/time.Minute))
	}
	return "Every " + d.String()
}
