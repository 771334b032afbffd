package cmd

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var channelsCmd = &cobra.Command{
	Use:   "channels",
	Short: "Inspect chat channels",
}

func init() {
	channelsCmd.AddCommand(channelsStatusCmd)
}

var channelsStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show which channels the gateway will start",
	RunE: func(_ *cobra.Command, _ []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		tg, sl, wc := cfg.Channels.Telegram, cfg.Channels.Slack, cfg.Channels.WebChat

		slack := "(tokens missing)"
		if sl.AppToken != "" && sl.BotToken != "" {
			slack = fmt.Sprintf("socket mode, group policy %s, DMs %s", sl.GroupPolicy, onOff(sl.DM.Enabled))
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "CHANNEL\tENABLED\tALLOWLIST\tDETAIL")
		fmt.Fprintf(w, "telegram\t%s\t%s\t%s\n", yesNo(tg.Enabled), allowlist(tg.AllowFrom), tokenHint(tg.Token))
		fmt.Fprintf(w, "slack\t%s\t%s\t%s\n", yesNo(sl.Enabled), allowlist(sl.GroupAllowFrom), slack)
		fmt.Fprintf(w, "webchat\t%s\t%s\tws://%s/ws\n", yesNo(wc.Enabled), tokenList(wc.Tokens), cfg.Gateway.Addr())
		return w.Flush()
	},
}

func yesNo(b bool) string {
	if b {
		return "✓"
	}
	return "✗"
}

func onOff(b bool) string {
	if b {
		return "on"
	}
	return "off"
}

func allowlist(ids []string) string {
	if len(ids) == 0 {
		return "anyone"
	}
	return fmt.Sprintf("%d ids", len(ids))
}

func tokenList(tokens []string) string {
	if len(tokens) == 0 {
		return "anyone"
	}
	return fmt.Sprintf("%d tokens", len(tokens))
}

func tokenHint(s string) string {
	switch {
	case s == "":
		return "(token missing)"
	case len(s) > 10:
		return s[:10] + "..."
	}
	return s
}
