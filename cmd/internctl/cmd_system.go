package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/celerix-dev/intern-connect/internal/engine"
	"github.com/celerix-dev/intern-connect/pkg/schema"
	"github.com/celerix-dev/intern-connect/pkg/sdk"
)

var migrateTo string

// healthCmd probes the backend without needing a session
var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Check whether the API is reachable",
	RunE: func(cmd *cobra.Command, args []string) error {
		k, err := openKit()
		if err != nil {
			return err
		}
		res := k.Client.HealthCheck(cmd.Context())
		if err := render(cmd.OutOrStdout(), map[string]any{
			"url":     k.Client.BaseURL(),
			"healthy": res.Healthy,
			"status":  res.Status,
			"error":   res.Error,
		}); err != nil {
			return err
		}
		if !res.Healthy {
			return fmt.Errorf("API unhealthy: %s", res.Error)
		}
		return nil
	},
}

// --- Theme ---

var themeCmd = &cobra.Command{
	Use:   "theme",
	Short: "Show the stored UI theme",
	RunE: func(cmd *cobra.Command, args []string) error {
		k, err := openKit()
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), k.Preferences.Theme())
		return nil
	},
}

var themeToggleCmd = &cobra.Command{
	Use:   "toggle",
	Short: "Switch between light and dark",
	RunE: func(cmd *cobra.Command, args []string) error {
		k, err := openKit()
		if err != nil {
			return err
		}
		t, err := k.Preferences.ToggleTheme()
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), t)
		return nil
	},
}

var themeSetCmd = &cobra.Command{
	Use:       "set <light|dark>",
	Short:     "Set the UI theme",
	Args:      cobra.ExactArgs(1),
	ValidArgs: []string{string(schema.ThemeLight), string(schema.ThemeDark)},
	RunE: func(cmd *cobra.Command, args []string) error {
		k, err := openKit()
		if err != nil {
			return err
		}
		if err := k.Preferences.SetTheme(schema.Theme(args[0])); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), args[0])
		return nil
	},
}

// --- Storage ---

var storageCmd = &cobra.Command{
	Use:   "storage",
	Short: "Inspect and move device-local storage",
}

var storageMigrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Copy every stored profile into another storage driver",
	Long: `Copy every profile from the configured storage driver into the driver named
by --to, in the same storage directory. Afterwards set INTERN_STORAGE_DRIVER
to the new driver.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if migrateTo == cfg.Storage.Driver {
			return fmt.Errorf("source and destination are both %q", migrateTo)
		}
		k, err := openKit()
		if err != nil {
			return err
		}
		dst, err := engine.Open(migrateTo, cfg.Storage.Dir)
		if err != nil {
			return err
		}
		defer dst.Close()

		n, err := engine.Migrate(k.Backend(), dst)
		if err != nil {
			return err
		}
		logger.Info("storage migrated",
			zap.String("from", cfg.Storage.Driver),
			zap.String("to", migrateTo),
			zap.Int("keys", n))
		fmt.Fprintf(cmd.OutOrStdout(), "Copied %d keys from %s to %s\n", n, cfg.Storage.Driver, migrateTo)
		return nil
	},
}

var storageProfilesCmd = &cobra.Command{
	Use:   "profiles",
	Short: "List stored profiles",
	RunE: func(cmd *cobra.Command, args []string) error {
		k, err := openKit()
		if err != nil {
			return err
		}
		profiles, err := k.Backend().Profiles()
		if err != nil {
			return err
		}
		return render(cmd.OutOrStdout(), profiles)
	},
}

// watchCmd follows the session until interrupted, printing every change,
// including logouts made by another internctl process.
var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Print session changes until interrupted",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		k, err := openKit()
		if err != nil {
			return err
		}

		unsubscribe := k.Session.Subscribe(func(s sdk.Snapshot) {
			if err := render(cmd.OutOrStdout(), snapshotDoc(s)); err != nil {
				logger.Warn("failed to print snapshot", zap.Error(err))
			}
		})
		defer unsubscribe()

		k.Session.Bootstrap(ctx)
		if err := k.Session.WatchStore(ctx); err != nil {
			return fmt.Errorf("cannot watch %s storage: %w", cfg.Storage.Driver, err)
		}
		<-ctx.Done()
		return nil
	},
}

// overviewCmd fetches the main screens concurrently.
var overviewCmd = &cobra.Command{
	Use:   "overview",
	Short: "Fetch dashboard, tasks, announcements and notifications at once",
	RunE: func(cmd *cobra.Command, args []string) error {
		k, err := session(cmd.Context())
		if err != nil {
			return err
		}
		doc, err := fetchOverview(cmd, k.Intern)
		if err != nil {
			return err
		}
		return render(cmd.OutOrStdout(), doc)
	},
}

func fetchOverview(cmd *cobra.Command, in *sdk.Intern) (map[string]any, error) {
	sections := []struct {
		name  string
		fetch func(context.Context) (*sdk.Response, error)
	}{
		{"dashboard", in.Dashboard},
		{"tasks", func(ctx context.Context) (*sdk.Response, error) { return in.Tasks(ctx, "pending") }},
		{"announcements", in.Announcements},
		{"notifications", in.Notifications},
	}

	results := make([]any, len(sections))
	g, ctx := errgroup.WithContext(cmd.Context())
	for i, s := range sections {
		g.Go(func() error {
			r, err := s.fetch(ctx)
			if err != nil {
				return fmt.Errorf("%s: %w", s.name, err)
			}
			var v any
			if err := r.Decode(&v); err != nil {
				return fmt.Errorf("%s: %w", s.name, err)
			}
			results[i] = v
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	doc := make(map[string]any, len(sections))
	for i, s := range sections {
		doc[s.name] = results[i]
	}
	return doc, nil
}

func init() {
	themeCmd.AddCommand(themeToggleCmd, themeSetCmd)

	storageMigrateCmd.Flags().StringVar(&migrateTo, "to", engine.DriverSQLite, "Destination driver (file, sqlite)")
	storageCmd.AddCommand(storageMigrateCmd, storageProfilesCmd)
}
