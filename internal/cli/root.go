package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/agentx-labs/regsync/internal/branding"
	"github.com/agentx-labs/regsync/internal/config"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	buildVersion string
	buildCommit  string
	buildDate    string
)

var (
	flagConfig   string
	flagNoCommit bool
)

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&flagConfig, "config", "", "config file (default ~/"+branding.HomeDir()+"/config.yaml)")
	pf.String("log-level", "info", "log level: debug, info, warn, error")
	pf.String("log-format", "console", "log format: console, json")

	f := rootCmd.Flags()
	f.BoolVar(&flagNoCommit, "no-commit", false, "do not record changes in git")
	f.Duration("manifest-timeout", 0, "timeout for each manifest request (default 30s)")
	f.Duration("artifact-timeout", 0, "timeout for each artifact download (default 1m0s)")
	f.String("metrics-file", "", "write Prometheus textfile metrics to this path after the run")
}

// flagKeys maps flags to the config keys they override.
var flagKeys = map[string]string{
	"log-level":        config.KeyLogLevel,
	"log-format":       config.KeyLogFormat,
	"manifest-timeout": config.KeyManifestTimeout,
	"artifact-timeout": config.KeyArtifactTimeout,
	"metrics-file":     config.KeyMetricsFile,
}

var rootCmd = &cobra.Command{
	Use:   branding.CLIName() + " <source-dir> <target-dir>",
	Short: branding.Description(),
	Long: branding.DisplayName() + ` reads plugin declarations from <source-dir>, fetches each plugin's
upstream manifest, and keeps <target-dir> up to date: one record per plugin
carrying the SHA-256 of its release artifact, plus a consolidated index.json.
Each updated record and each index change is committed to the git repository
containing <target-dir>.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	Args: func(cmd *cobra.Command, args []string) error {
		if len(args) < 2 {
			cmd.Usage()
			return &ConfigError{Err: fmt.Errorf("expected <source-dir> <target-dir>, got %d argument(s)", len(args))}
		}
		return nil
	},
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := config.Load(flagConfig); err != nil {
			return &ConfigError{Err: err}
		}
		return bindFlags(cmd)
	},
	RunE: runRoot,
}

// bindFlags layers explicitly set flags over the loaded configuration.
func bindFlags(cmd *cobra.Command) error {
	for name, key := range flagKeys {
		flag := cmd.Flags().Lookup(name)
		if flag == nil || !flag.Changed {
			continue
		}
		if err := viper.BindPFlag(key, flag); err != nil {
			return fmt.Errorf("binding flag --%s: %w", name, err)
		}
	}
	if flagNoCommit {
		viper.Set(config.KeyCommit, false)
	}
	return nil
}

// Execute runs the root command with build info injected via ldflags.
// SIGINT and SIGTERM cancel the running sync.
func Execute(version, commit, date string) error {
	buildVersion = version
	buildCommit = commit
	buildDate = date

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return err
	}
	return nil
}
