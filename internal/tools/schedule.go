package tools

import (
	"context"
	"fmt"
	"time"

	"github.com/flipagent/flipagent/internal/schema"
)

type scheduleTools struct {
	svc schema.Scheduler
}

type scheduleArgs struct {
	Message      string `json:"message"`
	EveryMinutes int64  `json:"every_minutes"`
	CronExpr     string `json:"cron_expr"`
	TZ           string `json:"tz"`
	At           string `json:"at"`
	Deliver      *bool  `json:"deliver"`
}

func (t scheduleTools) add(ctx context.Context, args scheduleArgs) (any, error) {
	tc := TurnCtx(ctx)
	spec := schema.JobSpec{
		Message: args.Message,
		Deliver: tc.Channel != "" && tc.ChatID != "",
		Channel: tc.Channel,
		To:      tc.ChatID,
		UserID:  tc.UserID,
	}
	if args.Deliver != nil {
		spec.Deliver = spec.Deliver && *args.Deliver
	}

	switch {
	case args.EveryMinutes > 0:
		spec.Kind = "every"
		spec.EveryMs = args.EveryMinutes * 60_000
	case args.CronExpr != "":
		spec.Kind = "cron"
		spec.CronExpr = args.CronExpr
		spec.TZ = args.TZ
	case args.At != "":
		dt, err := time.Parse(time.RFC3339, args.At)
		if err != nil {
			// Without an offset the time is local.
			dt, err = time.ParseInLocation("2006-01-02T15:04:05", args.At, time.Local)
			if err != nil {
				return nil, fmt.Errorf("invalid 'at' datetime %q: %w", args.At, err)
			}
		}
		spec.Kind = "at"
		spec.AtMs = dt.UnixMilli()
		spec.DeleteAfterRun = true
	default:
		return nil, fmt.Errorf("one of every_minutes, cron_expr or at is required")
	}

	id, err := t.svc.AddJob(spec)
	if err != nil {
		return nil, err
	}
	return map[string]any{"status": "scheduled", "jobId": id, "kind": spec.Kind}, nil
}

func (t scheduleTools) list(_ context.Context, _ struct{}) (any, error) {
	jobs := t.svc.ListJobs()
	if jobs == nil {
		jobs = []schema.JobSummary{}
	}
	return map[string]any{"count": len(jobs), "jobs": jobs}, nil
}

type cancelArgs struct {
	JobID string `json:"job_id"`
}

func (t scheduleTools) cancel(_ context.Context, args cancelArgs) (any, error) {
	if !t.svc.RemoveJob(args.JobID) {
		return nil, fmt.Errorf("job %s not found", args.JobID)
	}
	return map[string]any{"status": "cancelled", "jobId": args.JobID}, nil
}
