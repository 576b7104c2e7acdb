package scheduler

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/flurbudurbur/Hiatus/internal/domain"
	"github.com/flurbudurbur/Hiatus/internal/lifecycle"
	"github.com/flurbudurbur/Hiatus/internal/logger"
	"github.com/flurbudurbur/Hiatus/pkg/errors"

	"github.com/asaskevich/EventBus"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"
)

var ErrJobNotFound = errors.New("job not found")

type Service interface {
	Start() error
	Stop()
	// AddJobWithSpec schedules job under identifier using a cron spec string (e.g., "0 3 * * *").
	AddJobWithSpec(job Job, spec string, identifier string) (int, error)
	RemoveJobByIdentifier(id string) error
	GetNextRun(id string) (time.Time, error)
	// RunNow runs the job immediately. If the job is already running, from the
	// schedule or another caller, it waits for that run and returns its report.
	RunNow(ctx context.Context, id string) (*domain.SweepReport, error)
	Jobs() []JobInfo
}

type JobInfo struct {
	Name    string    `json:"name"`
	Spec    string    `json:"spec"`
	NextRun time.Time `json:"next_run"`
	PrevRun time.Time `json:"prev_run,omitempty"`
}

type jobEntry struct {
	id   cron.EntryID
	spec string
	job  Job
}

type service struct {
	log    zerolog.Logger
	config *domain.Config
	store  domain.EntityStore
	clock  lifecycle.Clock
	bus    EventBus.Bus

	cron  *cron.Cron
	group singleflight.Group
	jobs  map[string]jobEntry
	m     sync.RWMutex

	ctx    context.Context
	cancel context.CancelFunc
}

func NewService(log logger.Logger, config *domain.Config, store domain.EntityStore, clock lifecycle.Clock, bus EventBus.Bus) Service {
	s := &service{
		log:    log.With().Str("module", "scheduler").Logger(),
		config: config,
		store:  store,
		clock:  clock,
		bus:    bus,
		jobs:   map[string]jobEntry{},
	}
	s.ctx, s.cancel = context.WithCancel(context.Background())

	cronLog := cron.PrintfLogger(&s.log)
	s.cron = cron.New(cron.WithChain(
		cron.Recover(cronLog),
	), cron.WithLogger(cronLog))

	return s
}

func (s *service) Start() error {
	s.log.Info().Msg("Starting scheduler service")

	if err := s.addAppJobs(); err != nil {
		// leave no half-configured schedule behind
		for _, id := range []string{JobCascade, JobPurge} {
			_ = s.RemoveJobByIdentifier(id)
		}
		return err
	}

	s.cron.Start()

	return nil
}

func (s *service) addAppJobs() error {
	cascade := &CascadeSweepJob{
		Name:  JobCascade,
		Log:   s.log.With().Str("job", JobCascade).Logger(),
		Store: s.store,
		Clock: s.clock,
		Bus:   s.bus,
	}
	if _, err := s.AddJobWithSpec(cascade, s.config.Lifecycle.CascadeSchedule, JobCascade); err != nil {
		return err
	}

	purge := &PurgeSweepJob{
		Name:  JobPurge,
		Log:   s.log.With().Str("job", JobPurge).Logger(),
		Store: s.store,
		Clock: s.clock,
		Bus:   s.bus,
	}
	if _, err := s.AddJobWithSpec(purge, s.config.Lifecycle.PurgeSchedule, JobPurge); err != nil {
		return err
	}

	s.log.Info().
		Int("recovery_window_days", s.config.Lifecycle.RecoveryWindowDays).
		Str("cascade", s.config.Lifecycle.CascadeSchedule).
		Str("purge", s.config.Lifecycle.PurgeSchedule).
		Msg("lifecycle sweeps scheduled")

	return nil
}

// Stop stops the schedule and waits for running jobs to finish.
func (s *service) Stop() {
	s.log.Info().Msg("Stopping scheduler service")
	<-s.cron.Stop().Done()
	s.cancel()
}

// run executes the job through the single-flight group shared with RunNow.
func (s *service) run(identifier string, job Job) (*domain.SweepReport, error) {
	v, err, shared := s.group.Do(identifier, func() (interface{}, error) {
		report := job.Sweep(s.ctx, s.clock.Now())
		return &report, nil
	})
	if err != nil {
		return nil, err
	}
	if shared {
		s.log.Debug().Str("identifier", identifier).Msg("joined a run already in progress")
	}

	return v.(*domain.SweepReport), nil
}

func (s *service) AddJobWithSpec(job Job, spec string, identifier string) (int, error) {
	s.m.Lock()
	defer s.m.Unlock()

	if _, exists := s.jobs[identifier]; exists {
		s.log.Warn().Str("identifier", identifier).Msg("Job with this identifier already exists, skipping add.")
		return 0, errors.New("job with identifier '%s' already exists", identifier)
	}

	generic := &GenericJob{
		Name: identifier,
		Log:  s.log.With().Str("job", identifier).Logger(),
		callback: func() {
			_, _ = s.run(identifier, job)
		},
	}

	entryID, err := s.cron.AddJob(spec, cron.NewChain(
		cron.SkipIfStillRunning(cron.PrintfLogger(&generic.Log))).Then(generic))
	if err != nil {
		s.log.Error().Err(err).Str("identifier", identifier).Str("spec", spec).Msg("Failed to add job with spec")
		return 0, errors.Wrap(err, "failed to add job '%s' with spec '%s'", identifier, spec)
	}

	s.log.Info().Str("identifier", identifier).Str("spec", spec).Int("entryID", int(entryID)).Msg("Scheduled job added")
	s.jobs[identifier] = jobEntry{id: entryID, spec: spec, job: job}
	return int(entryID), nil
}

func (s *service) RemoveJobByIdentifier(id string) error {
	s.m.Lock()
	defer s.m.Unlock()

	v, ok := s.jobs[id]
	if !ok {
		return nil
	}

	s.log.Debug().Msgf("scheduler.Remove: removing job: %v", id)

	s.cron.Remove(v.id)
	delete(s.jobs, id)

	return nil
}

func (s *service) GetNextRun(id string) (time.Time, error) {
	s.m.RLock()
	v, ok := s.jobs[id]
	s.m.RUnlock()
	if !ok {
		return time.Time{}, errors.Wrap(ErrJobNotFound, "job %s", id)
	}

	entry := s.cron.Entry(v.id)
	if !entry.Valid() {
		return time.Time{}, nil
	}

	return entry.Next, nil
}

func (s *service) RunNow(ctx context.Context, id string) (*domain.SweepReport, error) {
	s.m.RLock()
	v, ok := s.jobs[id]
	s.m.RUnlock()
	if !ok {
		return nil, errors.Wrap(ErrJobNotFound, "job %s", id)
	}

	s.log.Info().Str("identifier", id).Msg("running job on demand")

	type outcome struct {
		report *domain.SweepReport
		err    error
	}
	done := make(chan outcome, 1)
	go func() {
		report, err := s.run(id, v.job)
		done <- outcome{report, err}
	}()

	// the run itself is not tied to ctx, a caller giving up does not abort a
	// sweep other callers may have joined
	select {
	case o := <-done:
		return o.report, o.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (s *service) Jobs() []JobInfo {
	s.m.RLock()
	defer s.m.RUnlock()

	infos := make([]JobInfo, 0, len(s.jobs))
	for name, v := range s.jobs {
		entry := s.cron.Entry(v.id)
		infos = append(infos, JobInfo{
			Name:    name,
			Spec:    v.spec,
			NextRun: entry.Next,
			PrevRun: entry.Prev,
		})
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].Name < infos[j].Name })

	return infos
}

type GenericJob struct {
	Name string
	Log  zerolog.Logger

	callback func()
}

func (j *GenericJob) Run() {
	j.callback()
}
