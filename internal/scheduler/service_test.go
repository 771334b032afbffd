package scheduler

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/flipagent/flipagent/internal/schema"
)

func newTestService(t *testing.T) (*Service, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "schedule", "jobs.json")
	return NewService(path), path
}

func every(name string, ms int64) schema.JobSpec {
	return schema.JobSpec{Name: name, Message: "scan ebay for lego", Kind: "every", EveryMs: ms}
}

// runService starts s and stops it at cleanup, waiting for Start to return
// so no job writes jobs.json after the temp dir is removed.
func runService(t *testing.T, s *Service) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = s.Start(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		select {
		case <-done:
		case <-time.After(5 * time.Second):
			t.Error("scheduler did not stop")
		}
	})
}

// ─── AddJob ────────────────────────────────────────────────────────────────

func TestAddJob_Every(t *testing.T) {
	s, _ := newTestService(t)
	id, err := s.AddJob(every("tick", 5000))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(id) != 8 {
		t.Fatalf("expected 8-char id, got %q", id)
	}
	jobs := s.ListAllJobs(false)
	if len(jobs) != 1 {
		t.Fatalf("expected 1 job, got %d", len(jobs))
	}
	if jobs[0].Schedule.EveryMs == nil || *jobs[0].Schedule.EveryMs != 5000 {
		t.Errorf("unexpected everyMs: %v", jobs[0].Schedule.EveryMs)
	}
	if jobs[0].SessionKey() != "schedule:"+id {
		t.Errorf("unexpected session key %q", jobs[0].SessionKey())
	}
}

func TestAddJob_KeepsOwner(t *testing.T) {
	s, _ := newTestService(t)
	spec := every("owned", 60000)
	spec.UserID = "telegram:42"
	if _, err := s.AddJob(spec); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	reloaded := NewService(s.path)
	jobs := reloaded.ListAllJobs(false)
	if len(jobs) != 1 || jobs[0].Payload.UserID != "telegram:42" {
		t.Fatalf("owner not persisted: %+v", jobs)
	}
}

func TestAddJob_Cron(t *testing.T) {
	s, _ := newTestService(t)
	_, err := s.AddJob(schema.JobSpec{
		Message: "daily profit report", Kind: "cron", CronExpr: "0 9 * * *", TZ: "UTC",
		Deliver: true, Channel: "telegram", To: "123",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	jobs := s.ListAllJobs(false)
	if !jobs[0].Payload.Deliver {
		t.Error("expected deliver=true")
	}
	if jobs[0].Payload.Channel == nil || *jobs[0].Payload.Channel != "telegram" {
		t.Errorf("unexpected channel: %v", jobs[0].Payload.Channel)
	}
	if jobs[0].Name != "daily profit report" {
		t.Errorf("name should default to the message, got %q", jobs[0].Name)
	}
}

func TestAddJob_Rejects(t *testing.T) {
	s, _ := newTestService(t)
	cases := []schema.JobSpec{
		{Message: "x", Kind: "weekly"},
		{Message: "x", Kind: "cron", CronExpr: "not a cron"},
		{Message: "x", Kind: "cron", CronExpr: "0 9 * * *", TZ: "Mars/Olympus"},
		{Message: "x", Kind: "every", EveryMs: 0},
		{Message: " ", Kind: "every", EveryMs: 1000},
	}
	for _, c := range cases {
		if _, err := s.AddJob(c); err == nil {
			t.Errorf("expected error for %+v", c)
		}
	}
}

// ─── RemoveJob / ListJobs ──────────────────────────────────────────────────

func TestRemoveJob(t *testing.T) {
	s, _ := newTestService(t)
	id, _ := s.AddJob(every("job", 1000))
	if !s.RemoveJob(id) {
		t.Fatal("expected RemoveJob to return true")
	}
	if s.RemoveJob(id) {
		t.Fatal("expected second RemoveJob to return false")
	}
}

func TestListJobs_OnlyEnabled(t *testing.T) {
	s, _ := newTestService(t)
	s.AddJob(every("a", 1000))
	id2, _ := s.AddJob(every("b", 2000))
	s.EnableJob(id2, false)

	summaries := s.ListJobs()
	if len(summaries) != 1 || summaries[0].Name != "a" {
		t.Fatalf("unexpected summaries: %+v", summaries)
	}
	if summaries[0].Message != "scan ebay for lego" {
		t.Errorf("unexpected message %q", summaries[0].Message)
	}
}

func TestListAllJobs_SortedByNextRun(t *testing.T) {
	s, _ := newTestService(t)
	s.AddJob(every("slow", 60000))
	s.AddJob(every("fast", 1000))

	jobs := s.ListAllJobs(false)
	if len(jobs) != 2 {
		t.Fatalf("expected 2 jobs, got %d", len(jobs))
	}
	if jobs[0].Name != "fast" {
		t.Error("jobs not sorted by NextRunAtMs ascending")
	}
}

// ─── Persistence ───────────────────────────────────────────────────────────

func TestPersistence_RoundTrip(t *testing.T) {
	s, path := newTestService(t)
	id, _ := s.AddJob(every("persist", 5000))

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read jobs.json: %v", err)
	}
	var st jobStore
	if err := json.Unmarshal(data, &st); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if st.Version != 1 || len(st.Jobs) != 1 || st.Jobs[0].ID != id {
		t.Fatalf("unexpected persisted store: %+v", st)
	}

	reloaded := NewService(path)
	if got := reloaded.ListAllJobs(false); len(got) != 1 || got[0].ID != id {
		t.Fatalf("reload lost the job: %+v", got)
	}
}

// ─── nextRun ───────────────────────────────────────────────────────────────

func TestNextRun(t *testing.T) {
	everyMs := int64(5000)
	if got := nextRun(Schedule{Kind: KindEvery, EveryMs: &everyMs}, time.UnixMilli(1_000_000)); got == nil || *got != 1_005_000 {
		t.Errorf("every: got %v", got)
	}

	past := time.Now().Add(-time.Hour).UnixMilli()
	if got := nextRun(Schedule{Kind: KindAt, AtMs: &past}, time.Now()); got != nil {
		t.Errorf("past at-job should have no next run, got %d", *got)
	}

	expr, tz := "0 12 * * *", "UTC"
	got := nextRun(Schedule{Kind: KindCron, Expr: &expr, TZ: &tz}, time.Now())
	if got == nil || *got <= time.Now().UnixMilli() {
		t.Fatal("cron next run should be in the future")
	}
	if h := time.UnixMilli(*got).UTC().Hour(); h != 12 {
		t.Errorf("cron next run at hour %d, want 12 UTC", h)
	}
}

func TestOnceSchedule(t *testing.T) {
	at := time.Now().Add(time.Minute)
	if got := once(at).Next(time.Now()); !got.Equal(at) {
		t.Errorf("Next before the instant = %v, want %v", got, at)
	}
	if got := once(at).Next(at.Add(time.Second)); !got.IsZero() {
		t.Errorf("Next after the instant = %v, want zero", got)
	}
}

// ─── Execution ─────────────────────────────────────────────────────────────

func TestRunJob_CallsOnJobAndUpdatesState(t *testing.T) {
	s, _ := newTestService(t)
	var called atomic.Int32
	s.OnJob(func(_ context.Context, job Job) (string, error) {
		called.Add(1)
		return "ok", nil
	})

	id, _ := s.AddJob(every("run", 10000))
	if !s.RunJob(context.Background(), id, false) {
		t.Fatal("RunJob returned false")
	}
	if called.Load() != 1 {
		t.Fatalf("onJob called %d times", called.Load())
	}

	jobs := s.ListAllJobs(false)
	if jobs[0].State.LastStatus == nil || *jobs[0].State.LastStatus != "ok" {
		t.Errorf("unexpected status: %v", jobs[0].State.LastStatus)
	}
}

func TestRunJob_AtDeleteAfterRun(t *testing.T) {
	s, _ := newTestService(t)
	future := time.Now().Add(time.Hour).UnixMilli()
	id, _ := s.AddJob(schema.JobSpec{Message: "buy", Kind: "at", AtMs: future, DeleteAfterRun: true})

	s.RunJob(context.Background(), id, true)
	if jobs := s.ListAllJobs(true); len(jobs) != 0 {
		t.Errorf("expected job deleted after run, got %d jobs", len(jobs))
	}
}

func TestRunJob_DisabledWithoutForce(t *testing.T) {
	s, _ := newTestService(t)
	id, _ := s.AddJob(every("j", 10000))
	s.EnableJob(id, false)
	if s.RunJob(context.Background(), id, false) {
		t.Fatal("disabled job must not run without force")
	}
}

func TestStart_FiresEveryJob(t *testing.T) {
	s, _ := newTestService(t)
	fired := make(chan string, 4)
	s.OnJob(func(_ context.Context, job Job) (string, error) {
		select {
		case fired <- job.ID:
		default:
		}
		return "", nil
	})

	runService(t, s)
	time.Sleep(20 * time.Millisecond)

	id, _ := s.AddJob(every("fast", 30))
	select {
	case got := <-fired:
		if got != id {
			t.Fatalf("fired %q, want %q", got, id)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("job added while running never fired")
	}
}

func TestStart_DisabledJobNotArmed(t *testing.T) {
	s, _ := newTestService(t)
	fired := make(chan string, 4)
	s.OnJob(func(_ context.Context, job Job) (string, error) {
		select {
		case fired <- job.ID:
		default:
		}
		return "", nil
	})
	id, _ := s.AddJob(every("paused", 30))
	s.EnableJob(id, false)

	runService(t, s)

	select {
	case got := <-fired:
		t.Fatalf("disabled job %q fired", got)
	case <-time.After(200 * time.Millisecond):
	}
}
