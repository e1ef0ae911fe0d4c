package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"runtime"

	"github.com/agentx-labs/regsync/internal/branding"
	"github.com/agentx-labs/regsync/internal/config"
	"github.com/spf13/cobra"
)

var (
	versionShort bool
	versionJSON  bool
)

func init() {
	versionCmd.Flags().BoolVar(&versionShort, "short", false, "Print version number only")
	versionCmd.Flags().BoolVar(&versionJSON, "json", false, "Print build and registry defaults as JSON")
	rootCmd.AddCommand(versionCmd)
}

// versionInfo is the build identity plus the defaults a sync run uses
// unless configured otherwise.
type versionInfo struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	Date      string `json:"date"`
	GoVersion string `json:"go_version"`
	Platform  string `json:"platform"`
	UserAgent string `json:"user_agent"`
	IndexFile string `json:"index_file"`
	Author    string `json:"commit_author"`
}

func currentVersionInfo() versionInfo {
	return versionInfo{
		Version:   buildVersion,
		Commit:    buildCommit,
		Date:      buildDate,
		GoVersion: runtime.Version(),
		Platform:  runtime.GOOS + "/" + runtime.GOARCH,
		UserAgent: userAgent(config.Get(config.KeyUserAgent)),
		IndexFile: branding.IndexFile(),
		Author:    fmt.Sprintf("%s <%s>", branding.AuthorName(), branding.AuthorEmail()),
	}
}

// userAgent returns the User-Agent header upstream hosts see. The default
// agent is tagged with the build version; a configured one is sent as is.
func userAgent(configured string) string {
	if configured != branding.UserAgent() || buildVersion == "" {
		return configured
	}
	return configured + "/" + buildVersion
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return printVersion(cmd.OutOrStdout(), currentVersionInfo())
	},
}

func printVersion(w io.Writer, info versionInfo) error {
	switch {
	case versionShort:
		fmt.Fprintln(w, info.Version)
	case versionJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if err := enc.Encode(info); err != nil {
			return fmt.Errorf("encoding version info: %w", err)
		}
	default:
		fmt.Fprintf(w, "%s %s (commit %s, built %s, %s %s)\n",
			branding.CLIName(), info.Version, info.Commit, info.Date, info.GoVersion, info.Platform)
	}
	return nil
}
