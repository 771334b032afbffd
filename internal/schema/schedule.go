package schema

// JobSpec describes a scheduled agent turn. Exactly one of EveryMs, CronExpr
// or AtMs is meaningful, selected by Kind ("every" | "cron" | "at").
type JobSpec struct {
	Name           string
	Message        string
	Kind           string
	EveryMs        int64
	CronExpr       string
	TZ             string
	AtMs           int64
	Deliver        bool
	Channel        string
	To             string
	UserID         string // credential owner the turn runs as
	DeleteAfterRun bool
}

// JobSummary is a lightweight view of a scheduled job used by the schedule tools.
type JobSummary struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Kind        string `json:"kind"`
	Message     string `json:"message"`
	NextRunAtMs *int64 `json:"nextRunAtMs,omitempty"`
}

// Scheduler is the interface the schedule tools use to manage jobs.
// Implemented by scheduler.Service. Defined here to avoid an import cycle.
type Scheduler interface {
	AddJob(spec JobSpec) (string, error)
	ListJobs() []JobSummary
	RemoveJob(id string) bool
}
