package scheduler

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	robfigcron "github.com/robfig/cron/v3"

	"github.com/flipagent/flipagent/internal/schema"
)

const (
	KindEvery = "every"
	KindCron  = "cron"
	KindAt    = "at"
)

type Schedule struct {
	Kind    string  `json:"kind"`
	AtMs    *int64  `json:"atMs,omitempty"`
	EveryMs *int64  `json:"everyMs,omitempty"`
	Expr    *string `json:"expr,omitempty"`
	TZ      *string `json:"tz,omitempty"` // IANA name, cron only
}

type Payload struct {
	Kind    string  `json:"kind"` // always "agent_turn"
	Message string  `json:"message"`
	Deliver bool    `json:"deliver"`
	Channel *string `json:"channel,omitempty"`
	To      *string `json:"to,omitempty"`
	UserID  string  `json:"userId,omitempty"`
}

type JobState struct {
	NextRunAtMs *int64  `json:"nextRunAtMs,omitempty"`
	LastRunAtMs *int64  `json:"lastRunAtMs,omitempty"`
	LastStatus  *string `json:"lastStatus,omitempty"`
	LastError   *string `json:"lastError,omitempty"`
}

// Job is one scheduled agent turn as persisted in jobs.json.
type Job struct {
	ID             string   `json:"id"`
	Name           string   `json:"name"`
	Enabled        bool     `json:"enabled"`
	Schedule       Schedule `json:"schedule"`
	Payload        Payload  `json:"payload"`
	State          JobState `json:"state"`
	CreatedAtMs    int64    `json:"createdAtMs"`
	UpdatedAtMs    int64    `json:"updatedAtMs"`
	DeleteAfterRun bool     `json:"deleteAfterRun"`
}

// SessionKey is the conversation a job's turns are recorded under.
func (j Job) SessionKey() string { return "schedule:" + j.ID }

var cronParser = robfigcron.NewParser(
	robfigcron.Minute | robfigcron.Hour | robfigcron.Dom | robfigcron.Month | robfigcron.Dow,
)

// newJob validates spec and builds an enabled job from it.
func newJob(spec schema.JobSpec, now time.Time) (Job, error) {
	if strings.TrimSpace(spec.Message) == "" {
		return Job{}, fmt.Errorf("job message is required")
	}
	sched, err := scheduleFromSpec(spec)
	if err != nil {
		return Job{}, err
	}

	name := spec.Name
	if name == "" {
		name = spec.Message
		if len(name) > 30 {
			name = name[:30]
		}
	}
	job := Job{
		ID:             uuid.NewString()[:8],
		Name:           name,
		Enabled:        true,
		Schedule:       sched,
		Payload:        Payload{Kind: "agent_turn", Message: spec.Message, Deliver: spec.Deliver, UserID: spec.UserID},
		CreatedAtMs:    now.UnixMilli(),
		UpdatedAtMs:    now.UnixMilli(),
		DeleteAfterRun: spec.DeleteAfterRun,
	}
	if spec.Channel != "" {
		job.Payload.Channel = &spec.Channel
	}
	if spec.To != "" {
		job.Payload.To = &spec.To
	}
	job.State.NextRunAtMs = nextRun(sched, now)
	return job, nil
}

func scheduleFromSpec(spec schema.JobSpec) (Schedule, error) {
	sched := Schedule{Kind: spec.Kind}
	switch spec.Kind {
	case KindEvery:
		if spec.EveryMs <= 0 {
			return sched, fmt.Errorf("every job needs a positive interval")
		}
		sched.EveryMs = &spec.EveryMs
	case KindCron:
		if _, err := cronParser.Parse(spec.CronExpr); err != nil {
			return sched, fmt.Errorf("invalid cron expression %q: %w", spec.CronExpr, err)
		}
		sched.Expr = &spec.CronExpr
		if spec.TZ != "" {
			if _, err := time.LoadLocation(spec.TZ); err != nil {
				return sched, fmt.Errorf("unknown timezone %q: %w", spec.TZ, err)
			}
			sched.TZ = &spec.TZ
		}
	case KindAt:
		sched.AtMs = &spec.AtMs
	default:
		return sched, fmt.Errorf("unknown schedule kind %q", spec.Kind)
	}
	return sched, nil
}

// engineSchedule adapts sched to the cron engine. It returns nil when the
// schedule can never fire.
func engineSchedule(sched Schedule) robfigcron.Schedule {
	switch sched.Kind {
	case KindEvery:
		if sched.EveryMs != nil && *sched.EveryMs > 0 {
			return interval(time.Duration(*sched.EveryMs) * time.Millisecond)
		}
	case KindAt:
		if sched.AtMs != nil && time.UnixMilli(*sched.AtMs).After(time.Now()) {
			return once(time.UnixMilli(*sched.AtMs))
		}
	case KindCron:
		if sched.Expr == nil {
			return nil
		}
		parsed, err := cronParser.Parse(*sched.Expr)
		if err != nil {
			return nil
		}
		return inLocation{parsed, location(sched.TZ)}
	}
	return nil
}

// nextRun is the first fire time strictly after now, or nil.
func nextRun(sched Schedule, now time.Time) *int64 {
	if sched.Kind == KindAt {
		if sched.AtMs != nil && *sched.AtMs > now.UnixMilli() {
			return sched.AtMs
		}
		return nil
	}
	es := engineSchedule(sched)
	if es == nil {
		return nil
	}
	next := es.Next(now).UnixMilli()
	return &next
}

func location(tz *string) *time.Location {
	if tz != nil && *tz != "" {
		if l, err := time.LoadLocation(*tz); err == nil {
			return l
		}
	}
	return time.Local
}

// interval fires every d after the previous run; unlike robfig's Every it
// keeps sub-second precision.
type interval time.Duration

func (d interval) Next(t time.Time) time.Time { return t.Add(time.Duration(d)) }

// once fires at a single instant. The engine treats the zero time as never.
type once time.Time

func (o once) Next(t time.Time) time.Time {
	if at := time.Time(o); t.Before(at) {
		return at
	}
	return time.Time{}
}

type inLocation struct {
	robfigcron.Schedule
	loc *time.Location
}

func (s inLocation) Next(t time.Time) time.Time { return s.Schedule.Next(t.In(s.loc)) }
