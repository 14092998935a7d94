// Package horizon keeps every recurring series materialized out to a rolling
// forward window. A nightly cron job walks all recurring roots and asks the
// series materializer to fill any missing occurrences; new subscriptions and
// feed reads never have to trigger generation themselves.
package horizon

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sethvargo/go-retry"
	"go.uber.org/multierr"

	"github.com/cadenza-app/cadenza/internal/series"
	"github.com/cadenza-app/cadenza/internal/store"
)

// Scheduler runs the rolling-horizon extension job.
type Scheduler struct {
	cron         *cron.Cron
	materializer *series.Materializer
	events       *store.EventStore
	horizonDays  int
	logger       *slog.Logger
}

// NewScheduler builds a scheduler that extends all recurring series to
// now+horizonDays on the given cron spec (standard 5-field syntax).
func NewScheduler(db *sql.DB, materializer *series.Materializer, spec string, horizonDays int, logger *slog.Logger) (*Scheduler, error) {
	s := &Scheduler{
		cron:         cron.New(),
		materializer: materializer,
		events:       store.NewEventStore(db),
		horizonDays:  horizonDays,
		logger:       logger,
	}

	_, err := s.cron.AddFunc(spec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
		defer cancel()
		if err := s.RunOnce(ctx); err != nil {
			s.logger.Error("horizon extension failed", "error", err)
		}
	})
	if err != nil {
		return nil, fmt.Errorf("invalid horizon cron spec %q: %w", spec, err)
	}
	return s, nil
}

// Start begins running the job on its schedule.
func (s *Scheduler) Start() {
	s.cron.Start()
	s.logger.Info("horizon scheduler started", "horizon_days", s.horizonDays)
}

// Stop halts the schedule and waits for a running job to finish.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
}

// RunOnce extends every recurring root to the horizon. A failure on one
// series does not stop the others; all errors are aggregated.
func (s *Scheduler) RunOnce(ctx context.Context) error {
	roots, err := s.events.ListRecurringRoots()
	if err != nil {
		return fmt.Errorf("list recurring roots: %w", err)
	}

	horizon := time.Now().AddDate(0, 0, s.horizonDays)

	var errs error
	var extended int
	for _, root := range roots {
		if ctx.Err() != nil {
			return multierr.Append(errs, ctx.Err())
		}
		n, err := s.extendRoot(ctx, root.ID, horizon)
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("series %d: %w", root.ID, err))
			continue
		}
		extended += n
	}

	s.logger.Info("horizon extension complete",
		"roots", len(roots),
		"events_created", extended,
		"horizon", horizon.Format("2006-01-02"))
	return errs
}

// extendRoot extends one series, retrying briefly on transient database
// contention (SQLite write locks under concurrent feed traffic).
func (s *Scheduler) extendRoot(ctx context.Context, rootID int64, horizon time.Time) (int, error) {
	var created int
	backoff := retry.WithMaxRetries(3, retry.NewExponential(100*time.Millisecond))

	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		events, err := s.materializer.Extend(rootID, horizon)
		if err != nil {
			var verr *series.ValidationError
			if errors.As(err, &verr) {
				// Root was deleted or rewritten mid-run; not retryable.
				return err
			}
			return retry.RetryableError(err)
		}
		created = len(events)
		return nil
	})
	return created, err
}
