// Package scheduler runs recurring agent turns such as price watches and
// periodic arbitrage scans. Jobs persist to a JSON file and fire through a
// robfig/cron engine.
package scheduler

import (
	"cmp"
	"context"
	"log/slog"
	"math"
	"slices"
	"sync"
	"time"

	robfigcron "github.com/robfig/cron/v3"

	"github.com/flipagent/flipagent/internal/schema"
)

// OnJobFunc runs a fired job and returns the agent's reply.
type OnJobFunc func(ctx context.Context, job Job) (string, error)

// Service owns the job file and, while Start runs, the cron engine.
type Service struct {
	path  string
	onJob OnJobFunc

	mu      sync.Mutex
	store   jobStore
	loaded  bool
	engine  *robfigcron.Cron
	entries map[string]robfigcron.EntryID
	runCtx  context.Context // set while Start runs
}

var _ schema.Scheduler = (*Service)(nil)

// NewService returns a Service backed by path (~/.flipagent/schedule/jobs.json).
func NewService(path string) *Service {
	return &Service{
		path:    path,
		entries: map[string]robfigcron.EntryID{},
		engine: robfigcron.New(robfigcron.WithChain(
			robfigcron.Recover(cronLogger{}),
			robfigcron.SkipIfStillRunning(cronLogger{}),
		)),
	}
}

// OnJob sets the callback for fired jobs. Call it before Start.
func (s *Service) OnJob(fn OnJobFunc) { s.onJob = fn }

// Start arms every enabled job and blocks until ctx is cancelled.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	s.loadLocked()
	now := time.Now()
	for i := range s.store.Jobs {
		if s.store.Jobs[i].Enabled {
			s.store.Jobs[i].State.NextRunAtMs = nextRun(s.store.Jobs[i].Schedule, now)
		}
	}
	s.saveLocked()
	s.runCtx = ctx
	for _, j := range s.store.Jobs {
		if j.Enabled {
			s.armLocked(j)
		}
	}
	armed := len(s.entries)
	s.mu.Unlock()

	s.engine.Start()
	slog.Info("Scheduler started", "armed", armed)
	<-ctx.Done()
	<-s.engine.Stop().Done()

	s.mu.Lock()
	for id := range s.entries {
		s.disarmLocked(id)
	}
	s.runCtx = nil
	s.mu.Unlock()
	return ctx.Err()
}

// AddJob stores a new job and arms it when the service is running.
func (s *Service) AddJob(spec schema.JobSpec) (string, error) {
	job, err := newJob(spec, time.Now())
	if err != nil {
		return "", err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.loadLocked()
	s.store.Jobs = append(s.store.Jobs, job)
	s.saveLocked()
	s.armLocked(job)

	slog.Info("Job scheduled", "id", job.ID, "name", job.Name, "kind", job.Schedule.Kind)
	return job.ID, nil
}

// ListJobs summarises the enabled jobs for the schedule tools.
func (s *Service) ListJobs() []schema.JobSummary {
	jobs := s.ListAllJobs(false)
	out := make([]schema.JobSummary, 0, len(jobs))
	for _, j := range jobs {
		out = append(out, schema.JobSummary{
			ID:          j.ID,
			Name:        j.Name,
			Kind:        j.Schedule.Kind,
			Message:     j.Payload.Message,
			NextRunAtMs: j.State.NextRunAtMs,
		})
	}
	return out
}

// ListAllJobs returns jobs ordered by next run; jobs without one sort last.
func (s *Service) ListAllJobs(includeDisabled bool) []Job {
	s.mu.Lock()
	s.loadLocked()
	jobs := slices.DeleteFunc(slices.Clone(s.store.Jobs), func(j Job) bool {
		return !includeDisabled && !j.Enabled
	})
	s.mu.Unlock()

	slices.SortStableFunc(jobs, func(a, b Job) int { return cmp.Compare(nextOrLast(a), nextOrLast(b)) })
	return jobs
}

// RemoveJob deletes a job and reports whether it existed.
func (s *Service) RemoveJob(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loadLocked()
	if !s.store.remove(id) {
		return false
	}
	s.disarmLocked(id)
	s.saveLocked()
	return true
}

// EnableJob toggles a job and returns its updated state.
func (s *Service) EnableJob(id string, enabled bool) (Job, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loadLocked()
	i := s.store.find(id)
	if i < 0 {
		return Job{}, false
	}

	j := &s.store.Jobs[i]
	now := time.Now()
	j.Enabled = enabled
	j.UpdatedAtMs = now.UnixMilli()
	j.State.NextRunAtMs = nil
	if enabled {
		j.State.NextRunAtMs = nextRun(j.Schedule, now)
		s.armLocked(*j)
	} else {
		s.disarmLocked(id)
	}
	s.saveLocked()
	return *j, true
}

// RunJob runs a job now, in the caller's goroutine. Disabled jobs run only
// when force is set.
func (s *Service) RunJob(ctx context.Context, id string, force bool) bool {
	s.mu.Lock()
	s.loadLocked()
	i := s.store.find(id)
	if i < 0 || (!force && !s.store.Jobs[i].Enabled) {
		s.mu.Unlock()
		return false
	}
	job := s.store.Jobs[i]
	s.mu.Unlock()

	s.execute(ctx, job)
	return true
}

// armLocked registers job with the engine. It is a no-op while stopped.
func (s *Service) armLocked(job Job) {
	s.disarmLocked(job.ID)
	if s.runCtx == nil {
		return
	}
	sched := engineSchedule(job.Schedule)
	if sched == nil {
		return
	}
	ctx, id := s.runCtx, job.ID
	s.entries[id] = s.engine.Schedule(sched, robfigcron.FuncJob(func() { s.fire(ctx, id) }))
}

func (s *Service) disarmLocked(id string) {
	if eid, ok := s.entries[id]; ok {
		s.engine.Remove(eid)
		delete(s.entries, id)
	}
}

// fire runs the stored version of the job so edits made after arming apply.
func (s *Service) fire(ctx context.Context, id string) {
	s.mu.Lock()
	i := s.store.find(id)
	if i < 0 || !s.store.Jobs[i].Enabled {
		s.mu.Unlock()
		return
	}
	job := s.store.Jobs[i]
	s.mu.Unlock()
	s.execute(ctx, job)
}

func (s *Service) execute(ctx context.Context, job Job) {
	started := time.Now()
	slog.Info("Job running", "id", job.ID, "name", job.Name)

	status := "ok"
	var lastErr *string
	if s.onJob != nil {
		if _, err := s.onJob(ctx, job); err != nil {
			status = "error"
			msg := err.Error()
			lastErr = &msg
			slog.Error("Job failed", "id", job.ID, "name", job.Name, "err", err)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.store.find(job.ID)
	if i < 0 {
		return
	}
	startedMs, now := started.UnixMilli(), time.Now()
	j := &s.store.Jobs[i]
	j.State.LastRunAtMs = &startedMs
	j.State.LastStatus = &status
	j.State.LastError = lastErr
	j.UpdatedAtMs = now.UnixMilli()
	j.State.NextRunAtMs = nextRun(j.Schedule, now)

	if j.Schedule.Kind == KindAt {
		if j.DeleteAfterRun {
			s.store.remove(job.ID)
		} else {
			j.Enabled = false
			j.State.NextRunAtMs = nil
		}
		s.disarmLocked(job.ID)
	}
	s.saveLocked()
}

func (s *Service) loadLocked() {
	if s.loaded {
		return
	}
	s.loaded = true
	st, err := readStore(s.path)
	if err != nil {
		slog.Warn("Job file unreadable, starting empty", "path", s.path, "err", err)
	}
	s.store = st
}

func (s *Service) saveLocked() {
	if err := writeStore(s.path, s.store); err != nil {
		slog.Warn("Job file not saved", "path", s.path, "err", err)
	}
}

func nextOrLast(j Job) int64 {
	if j.State.NextRunAtMs == nil {
		return math.MaxInt64
	}
	return *j.State.NextRunAtMs
}

// cronLogger routes engine events to slog.
type cronLogger struct{}

func (cronLogger) Info(msg string, kv ...any) { slog.Debug("cron: "+msg, kv...) }

func (cronLogger) Error(err error, msg string, kv ...any) {
	slog.Error("cron: "+msg, append(kv, "err", err)...)
}
