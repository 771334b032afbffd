package cmd

import (
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/flipagent/flipagent/internal/bus"
	"github.com/flipagent/flipagent/internal/credentials"
	"github.com/flipagent/flipagent/internal/schema"
	"github.com/flipagent/flipagent/internal/store"
)

var credentialsUser string

var credentialsCmd = &cobra.Command{
	Use:   "credentials",
	Short: "Manage marketplace credentials",
}

func init() {
	credentialsCmd.PersistentFlags().StringVarP(&credentialsUser, "user", "u", bus.SenderIDCLI, "Owner user id: \"user\" for the console, else channel:id (telegram:42, slack:U123)")
	credentialsCmd.AddCommand(credentialsSetCmd)
	credentialsCmd.AddCommand(credentialsListCmd)
	credentialsCmd.AddCommand(credentialsRemoveCmd)
}

// openCredentials opens the data store and the sealed credential table on it.
func openCredentials() (*credentials.Store, func(), error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, err
	}
	if cfg.Storage.CredentialKey == "" {
		return nil, nil, fmt.Errorf("storage.credentialKey is not set, run `flipagent onboard` first")
	}
	data, err := store.Open(cfg.DatabasePath())
	if err != nil {
		return nil, nil, err
	}
	creds, err := credentials.New(data.DB(), cfg.Storage.CredentialKey)
	if err != nil {
		data.Close()
		return nil, nil, err
	}
	return creds, func() { data.Close() }, nil
}

func parseMarketplace(s string) (schema.Platform, error) {
	p, ok := schema.ParsePlatform(strings.ToLower(s))
	if !ok || p == schema.PlatformGeneral {
		return "", fmt.Errorf("unknown marketplace %q (amazon, ebay, walmart, aliexpress)", s)
	}
	return p, nil
}

var credentialsSetCmd = &cobra.Command{
	Use:   "set <marketplace> key=value...",
	Short: "Store credentials for a marketplace",
	Example: "  flipagent credentials set ebay access_token=v^1.1#i...\n" +
		"  flipagent credentials set aliexpress app_id=5012 api_key=abc",
	Args: cobra.MinimumNArgs(2),
	RunE: func(_ *cobra.Command, args []string) error {
		p, err := parseMarketplace(args[0])
		if err != nil {
			return err
		}
		values := schema.Credentials{}
		for _, kv := range args[1:] {
			k, v, ok := strings.Cut(kv, "=")
			if !ok || k == "" || v == "" {
				return fmt.Errorf("expected key=value, got %q", kv)
			}
			values[k] = v
		}

		creds, closeFn, err := openCredentials()
		if err != nil {
			return err
		}
		defer closeFn()

		if err := creds.Save(credentialsUser, p, values); err != nil {
			return err
		}
		fmt.Printf("✓ Saved %s credentials for %s\n", p.DisplayName(), credentialsUser)
		return nil
	},
}

var credentialsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List connected marketplaces (values masked)",
	RunE: func(_ *cobra.Command, _ []string) error {
		creds, closeFn, err := openCredentials()
		if err != nil {
			return err
		}
		defer closeFn()

		platforms, err := creds.Platforms(credentialsUser)
		if err != nil {
			return err
		}
		if len(platforms) == 0 {
			fmt.Printf("No credentials stored for %s.\n", credentialsUser)
			return nil
		}
		for _, p := range platforms {
			values, err := creds.Get(credentialsUser, p)
			if err != nil {
				fmt.Printf("%-12s (unreadable: %v)\n", p.DisplayName(), err)
				continue
			}
			keys := make([]string, 0, len(values))
			for k := range values {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			masked := make([]string, 0, len(keys))
			for _, k := range keys {
				masked = append(masked, k+"="+credentials.Mask(values[k]))
			}
			fmt.Printf("%-12s %s\n", p.DisplayName(), strings.Join(masked, " "))
		}
		return nil
	},
}

var credentialsRemoveCmd = &cobra.Command{
	Use:   "remove <marketplace>",
	Short: "Delete stored credentials for a marketplace",
	Args:  cobra.ExactArgs(1),
	RunE: func(_ *cobra.Command, args []string) error {
		p, err := parseMarketplace(args[0])
		if err != nil {
			return err
		}
		creds, closeFn, err := openCredentials()
		if err != nil {
			return err
		}
		defer closeFn()

		removed, err := creds.Delete(credentialsUser, p)
		if err != nil {
			return err
		}
		if removed {
			fmt.Printf("✓ Removed %s credentials for %s\n", p.DisplayName(), credentialsUser)
		} else {
			fmt.Printf("No %s credentials stored for %s\n", p.DisplayName(), credentialsUser)
		}
		return nil
	},
}
