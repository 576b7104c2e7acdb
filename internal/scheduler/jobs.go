package scheduler

import (
	"context"
	"time"

	"github.com/flurbudurbur/Hiatus/internal/domain"
	"github.com/flurbudurbur/Hiatus/internal/lifecycle"
	"github.com/flurbudurbur/Hiatus/internal/metrics"

	"github.com/asaskevich/EventBus"
	"github.com/dustin/go-humanize"
	"github.com/rs/zerolog"
)

const (
	JobCascade = "lifecycle-cascade"
	JobPurge   = "lifecycle-purge"
)

// Job is a sweep the scheduler can run on a schedule or on demand.
type Job interface {
	Sweep(ctx context.Context, now time.Time) domain.SweepReport
}

// CascadeSweepJob soft deletes the active content of accounts that have been
// deactivated for longer than the recovery window. Content that is already
// soft deleted keeps its own timestamp.
type CascadeSweepJob struct {
	Name  string
	Log   zerolog.Logger
	Store domain.EntityStore
	Clock lifecycle.Clock
	Bus   EventBus.Bus
}

func (j *CascadeSweepJob) Sweep(ctx context.Context, now time.Time) domain.SweepReport {
	now = lifecycle.Normalize(now)
	cutoff := j.Clock.Cutoff(now)
	filter := domain.ContentFilter{
		State:                      domain.StateActive,
		OwnerDeactivatedAtOrBefore: &cutoff,
	}

	return runSweep(j.Name, j.Log, j.Bus, cutoff, now, func(kind domain.EntityKind) (int64, error) {
		return j.Store.BulkUpdateState(ctx, kind, filter, domain.StateSoftDeleted, &now)
	})
}

// PurgeSweepJob hard deletes content that has been soft deleted for at least
// the recovery window.
type PurgeSweepJob struct {
	Name  string
	Log   zerolog.Logger
	Store domain.EntityStore
	Clock lifecycle.Clock
	Bus   EventBus.Bus
}

func (j *PurgeSweepJob) Sweep(ctx context.Context, now time.Time) domain.SweepReport {
	now = lifecycle.Normalize(now)
	cutoff := j.Clock.Cutoff(now)
	filter := domain.ContentFilter{
		State:             domain.StateSoftDeleted,
		DeletedAtOrBefore: &cutoff,
	}

	return runSweep(j.Name, j.Log, j.Bus, cutoff, now, func(kind domain.EntityKind) (int64, error) {
		return j.Store.BulkDelete(ctx, kind, filter)
	})
}

// runSweep runs stmt once per content kind. A failing kind is logged, counted
// and published, and the next kind still runs.
func runSweep(job string, log zerolog.Logger, bus EventBus.Bus, cutoff, now time.Time, stmt func(kind domain.EntityKind) (int64, error)) domain.SweepReport {
	start := time.Now()
	report := domain.SweepReport{Job: job, Cutoff: cutoff, StartedAt: now}

	for _, kind := range domain.ContentKinds {
		affected, err := stmt(kind)

		result := domain.SweepKindResult{Kind: kind, Affected: affected}
		evt := &domain.SweepEvent{Job: job, Kind: kind, Affected: affected, Cutoff: cutoff, At: now}

		if err != nil {
			result.Affected = 0
			result.Error = err.Error()
			evt.Affected = 0
			evt.Error = err.Error()

			metrics.SweepFailure(job, string(kind))
			log.Error().Err(err).Str("kind", string(kind)).Time("cutoff", cutoff).Msg("sweep statement failed")
			bus.Publish(domain.EventTopicSweepFailed, evt)
		} else {
			metrics.SweepRows(job, string(kind), affected)
			log.Debug().Str("kind", string(kind)).Int64("affected", affected).Msg("sweep statement done")
			bus.Publish(domain.EventTopicSweep, evt)
		}

		report.Kinds = append(report.Kinds, result)
	}

	report.Duration = time.Since(start)
	metrics.ObserveSweep(job, report.Duration)

	log.Info().
		Str("cutoff", humanize.Time(cutoff)).
		Str("affected", humanize.Comma(report.Affected())).
		Bool("failed", report.Failed()).
		Dur("took", report.Duration).
		Msg("sweep finished")

	return report
}
