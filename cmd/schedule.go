package cmd

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/flipagent/flipagent/internal/config"
	"github.com/flipagent/flipagent/internal/dependency"
	"github.com/flipagent/flipagent/internal/scheduler"
	"github.com/flipagent/flipagent/internal/schema"
	"github.com/flipagent/flipagent/internal/shared/cmdutils"
)

var scheduleCmd = &cobra.Command{
	Use:   "schedule",
	Short: "Manage scheduled scans and price watches",
}

func init() {
	scheduleCmd.AddCommand(scheduleListCmd)
	scheduleCmd.AddCommand(scheduleAddCmd)
	scheduleCmd.AddCommand(scheduleRemoveCmd)
	scheduleCmd.AddCommand(scheduleEnableCmd)
	scheduleCmd.AddCommand(scheduleRunCmd)
}

var scheduleListAll bool

var scheduleListCmd = &cobra.Command{
	Use:   "list",
	Short: "List scheduled jobs",
	RunE: func(_ *cobra.Command, _ []string) error {
		svc := scheduler.NewService(config.SchedulePath())
		jobs := svc.ListAllJobs(scheduleListAll)
		if len(jobs) == 0 {
			fmt.Println("No scheduled jobs.")
			return nil
		}
		fmt.Printf("%-10s %-20s %-25s %-10s %-20s\n", "ID", "Name", "Schedule", "Status", "Next Run")
		fmt.Println(strings.Repeat("-", 88))
		for _, j := range jobs {
			status := "enabled"
			if !j.Enabled {
				status = "disabled"
			}
			nextRun := ""
			if j.State.NextRunAtMs != nil {
				nextRun = time.UnixMilli(*j.State.NextRunAtMs).Format("2006-01-02 15:04")
			}
			fmt.Printf("%-10s %-20s %-25s %-10s %-20s\n", j.ID, truncStr(j.Name, 19), truncStr(formatSchedule(j.Schedule), 24), status, nextRun)
		}
		return nil
	},
}

func init() {
	scheduleListCmd.Flags().BoolVarP(&scheduleListAll, "all", "a", false, "Include disabled jobs")
}

var (
	scheduleAddName    string
	scheduleAddMsg     string
	scheduleAddEvery   int
	scheduleAddCron    string
	scheduleAddTZ      string
	scheduleAddAt      string
	scheduleAddDeliver bool
	scheduleAddTo      string
	scheduleAddChannel string
	scheduleAddUser    string
)

var scheduleAddCmd = &cobra.Command{
	Use:     "add",
	Short:   "Add a scheduled job",
	Example: `  flipagent schedule add -n "airpods gap" -m "compare prices for AirPods Pro 2" --every 3600`,
	RunE: func(_ *cobra.Command, _ []string) error {
		spec, err := scheduleSpecFromFlags()
		if err != nil {
			return err
		}
		id, err := scheduler.NewService(config.SchedulePath()).AddJob(spec)
		if err != nil {
			return err
		}
		fmt.Printf("✓ Added job '%s' (%s)\n", spec.Name, id)
		return nil
	},
}

func scheduleSpecFromFlags() (schema.JobSpec, error) {
	if scheduleAddTZ != "" && scheduleAddCron == "" {
		return schema.JobSpec{}, fmt.Errorf("--tz can only be used with --cron")
	}
	spec := schema.JobSpec{
		Name:    scheduleAddName,
		Message: scheduleAddMsg,
		Deliver: scheduleAddDeliver,
		Channel: scheduleAddChannel,
		To:      scheduleAddTo,
		UserID:  scheduleAddUser,
	}

	switch {
	case scheduleAddEvery > 0:
		spec.Kind = "every"
		spec.EveryMs = int64(scheduleAddEvery) * 1000
	case scheduleAddCron != "":
		spec.Kind = "cron"
		spec.CronExpr = scheduleAddCron
		spec.TZ = scheduleAddTZ
	case scheduleAddAt != "":
		dt, err := time.ParseInLocation("2006-01-02T15:04:05", scheduleAddAt, time.Local)
		if err != nil {
			if dt, err = time.Parse(time.RFC3339, scheduleAddAt); err != nil {
				return schema.JobSpec{}, fmt.Errorf("invalid --at value %q: %w", scheduleAddAt, err)
			}
		}
		spec.Kind = "at"
		spec.AtMs = dt.UnixMilli()
		spec.DeleteAfterRun = true
	default:
		return schema.JobSpec{}, fmt.Errorf("must specify --every, --cron, or --at")
	}
	return spec, nil
}

func init() {
	scheduleAddCmd.Flags().StringVarP(&scheduleAddName, "name", "n", "", "Job name (required)")
	scheduleAddCmd.Flags().StringVarP(&scheduleAddMsg, "message", "m", "", "Message for agent (required)")
	scheduleAddCmd.Flags().IntVarP(&scheduleAddEvery, "every", "e", 0, "Run every N seconds")
	scheduleAddCmd.Flags().StringVar(&scheduleAddCron, "cron", "", "Cron expression (e.g. '0 9 * * *')")
	scheduleAddCmd.Flags().StringVar(&scheduleAddTZ, "tz", "", "IANA timezone for --cron")
	scheduleAddCmd.Flags().StringVar(&scheduleAddAt, "at", "", "Run once at ISO datetime")
	scheduleAddCmd.Flags().BoolVarP(&scheduleAddDeliver, "deliver", "d", false, "Deliver response to channel")
	scheduleAddCmd.Flags().StringVar(&scheduleAddTo, "to", "", "Recipient chat ID for delivery")
	scheduleAddCmd.Flags().StringVar(&scheduleAddChannel, "channel", "", "Channel for delivery (telegram, slack, webchat)")
	scheduleAddCmd.Flags().StringVarP(&scheduleAddUser, "user", "u", "", "Run as this credential owner (e.g. telegram:42); default is the console owner")

	_ = scheduleAddCmd.MarkFlagRequired("name")
	_ = scheduleAddCmd.MarkFlagRequired("message")
}

var scheduleRemoveCmd = &cobra.Command{
	Use:   "remove <job-id>",
	Short: "Remove a scheduled job",
	Args:  cobra.ExactArgs(1),
	RunE: func(_ *cobra.Command, args []string) error {
		if scheduler.NewService(config.SchedulePath()).RemoveJob(args[0]) {
			fmt.Printf("✓ Removed job %s\n", args[0])
		} else {
			fmt.Printf("Job %s not found\n", args[0])
		}
		return nil
	},
}

var scheduleDisable bool

var scheduleEnableCmd = &cobra.Command{
	Use:   "enable <job-id>",
	Short: "Enable (or disable) a job",
	Args:  cobra.ExactArgs(1),
	RunE: func(_ *cobra.Command, args []string) error {
		job, ok := scheduler.NewService(config.SchedulePath()).EnableJob(args[0], !scheduleDisable)
		if !ok {
			fmt.Printf("Job %s not found\n", args[0])
			return nil
		}
		action := "enabled"
		if scheduleDisable {
			action = "disabled"
		}
		fmt.Printf("✓ Job '%s' %s\n", job.Name, action)
		return nil
	},
}

func init() {
	scheduleEnableCmd.Flags().BoolVar(&scheduleDisable, "disable", false, "Disable instead of enable")
}

var scheduleRunForce bool

var scheduleRunCmd = &cobra.Command{
	Use:   "run <job-id>",
	Short: "Run a job now and print the agent's reply",
	Args:  cobra.ExactArgs(1),
	RunE: func(_ *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		container, err := dependency.New(cfg)
		if err != nil {
			return err
		}
		defer container.Close()

		loop := container.AgentLoop()
		svc := container.Scheduler()
		svc.OnJob(func(ctx context.Context, job scheduler.Job) (string, error) {
			resp := loop.ProcessAs(ctx, job.Payload.UserID, job.Payload.Message, job.SessionKey(), "cli", "direct")
			cmdutils.PrintResponse(resp)
			return resp, nil
		})

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
		defer cancel()

		if svc.RunJob(ctx, args[0], scheduleRunForce) {
			fmt.Println("✓ Job executed")
		} else {
			fmt.Printf("Failed to run job %s (not found or disabled; use --force)\n", args[0])
		}
		return nil
	},
}

func init() {
	scheduleRunCmd.Flags().BoolVarP(&scheduleRunForce, "force", "f", false, "Run even if disabled")
}

func formatSchedule(s scheduler.Schedule) string {
	switch s.Kind {
	case "every":
		if s.EveryMs != nil {
			return fmt.Sprintf("every %ds", *s.EveryMs/1000)
		}
	case "cron":
		if s.Expr != nil {
			if s.TZ != nil {
				return *s.Expr + " (" + *s.TZ + ")"
			}
			return *s.Expr
		}
	case "at":
		return "one-time"
	}
	return s.Kind
}
