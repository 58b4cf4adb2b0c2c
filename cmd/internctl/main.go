package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"

	"github.com/celerix-dev/intern-connect/internal/config"
	"github.com/celerix-dev/intern-connect/internal/logging"
	"github.com/celerix-dev/intern-connect/pkg/sdk"
)

var (
	// Global flags
	verbose    bool
	configPath string
	apiURL     string
	profile    string
	output     string
	timeout    time.Duration

	cfg    *config.Config
	logger *zap.Logger
	kit    *sdk.Kit
)

// errNotLoggedIn is returned by commands that need a session when none is stored.
var errNotLoggedIn = errors.New("not logged in (run: internctl login)")

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "internctl",
	Short: "Command-line client for the intern management platform",
	Long: `internctl talks to the intern management API on behalf of one intern.

The session (bearer token and cached profile) is kept in device-local storage,
so a login survives between invocations. Select a storage profile with
--profile to keep several accounts side by side.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		closeKit()

		var err error
		if configPath != "" {
			cfg, err = config.LoadWithPath(configPath)
		} else {
			cfg, err = config.Load()
		}
		if err != nil {
			return err
		}
		if apiURL != "" {
			cfg.API.BaseURL = apiURL
		}
		if profile != "" {
			cfg.Storage.Profile = profile
		}
		if timeout > 0 {
			cfg.API.Timeout = timeout
		}

		level := cfg.Log.Level
		if verbose {
			level = zapcore.DebugLevel.String()
		}
		logger, err = logging.New(level, cfg.Log.Format)
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}

		switch output {
		case "json", "yaml":
		default:
			return fmt.Errorf("unsupported output format %q (json, yaml)", output)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		closeKit()
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Config file (.env, .yaml or .json)")
	rootCmd.PersistentFlags().StringVar(&apiURL, "api-url", "", "API origin (or set INTERN_API_URL)")
	rootCmd.PersistentFlags().StringVarP(&profile, "profile", "p", "", "Storage profile (or set INTERN_PROFILE)")
	rootCmd.PersistentFlags().StringVarP(&output, "output", "o", "json", "Output format: json or yaml")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 0, "Per-request timeout (default from config)")

	rootCmd.AddCommand(loginCmd)
	rootCmd.AddCommand(logoutCmd)
	rootCmd.AddCommand(whoamiCmd)
	rootCmd.AddCommand(registerCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(healthCmd)
	rootCmd.AddCommand(themeCmd)
	rootCmd.AddCommand(storageCmd)
	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(overviewCmd)

	rootCmd.AddCommand(dashboardCmd)
	rootCmd.AddCommand(tasksCmd)
	rootCmd.AddCommand(attendanceCmd)
	rootCmd.AddCommand(leaveCmd)
	rootCmd.AddCommand(messagesCmd)
	rootCmd.AddCommand(goalsCmd)
	rootCmd.AddCommand(certificatesCmd)
	rootCmd.AddCommand(announcementsCmd)
	rootCmd.AddCommand(notificationsCmd)
	rootCmd.AddCommand(profileCmd)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err := rootCmd.ExecuteContext(ctx)
	closeKit() // PersistentPostRun is skipped when a command fails
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// openKit builds the SDK from the loaded configuration. It is opened once per
// invocation and closed in PersistentPostRun.
func openKit() (*sdk.Kit, error) {
	if kit != nil {
		return kit, nil
	}
	k, err := sdk.New(sdk.Options{
		BaseURL:       cfg.API.BaseURL,
		Timeout:       cfg.API.Timeout,
		HealthTimeout: cfg.API.HealthTimeout,
		StorageDriver: cfg.Storage.Driver,
		StorageDir:    cfg.Storage.Dir,
		Profile:       cfg.Storage.Profile,
		Passphrase:    cfg.Storage.Passphrase,
		Logger:        logger,
	})
	if err != nil {
		return nil, err
	}
	kit = k
	return kit, nil
}

func closeKit() {
	if kit == nil {
		return
	}
	if err := kit.Close(); err != nil && logger != nil {
		logger.Warn("failed to close storage", zap.Error(err))
	}
	kit = nil
}

// session opens the kit and restores the stored session, failing when the
// device holds no valid login.
func session(ctx context.Context) (*sdk.Kit, error) {
	k, err := openKit()
	if err != nil {
		return nil, err
	}
	snap := k.Session.Bootstrap(ctx)
	if !snap.IsAuthenticated {
		return nil, errNotLoggedIn
	}
	logger.Debug("session restored", zap.String("intern_id", snap.User.InternID()))
	return k, nil
}

// render writes v to w in the selected output format. API responses are
// decoded first so both formats show the same document.
func render(w io.Writer, v any) error {
	if r, ok := v.(*sdk.Response); ok {
		var doc any
		if len(r.Data) > 0 {
			if err := r.Decode(&doc); err != nil {
				return err
			}
		}
		v = doc
	}

	switch output {
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return err
		}
		return enc.Close()
	default:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	}
}

// printResult renders an API response, or returns err unchanged.
func printResult(cmd *cobra.Command, r *sdk.Response, err error) error {
	if err != nil {
		return err
	}
	return render(cmd.OutOrStdout(), r)
}
