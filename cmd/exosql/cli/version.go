package cli

import (
	"encoding/json"
	"fmt"
	"runtime"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// buildInfo describes the binary and what it can talk to.
type buildInfo struct {
	Version    string   `json:"version"`
	Commit     string   `json:"commit"`
	Built      string   `json:"built"`
	GoVersion  string   `json:"go_version"`
	Platform   string   `json:"platform"`
	Drivers    []string `json:"drivers"`
	ConfigFile string   `json:"config_file,omitempty"`
}

func newVersionCmd(version, commit, date string) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		RunE: func(cmd *cobra.Command, args []string) error {
			info := buildInfo{
				Version:    version,
				Commit:     commit,
				Built:      date,
				GoVersion:  runtime.Version(),
				Platform:   runtime.GOOS + "/" + runtime.GOARCH,
				Drivers:    newRegistry(nil).Drivers(),
				ConfigFile: viper.ConfigFileUsed(),
			}

			if jsonOutput {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(info)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "exosql %s (%s, built %s)\n", info.Version, info.Commit, info.Built)
			fmt.Fprintf(out, "  go:       %s %s\n", info.GoVersion, info.Platform)
			fmt.Fprintf(out, "  drivers:  %s\n", strings.Join(info.Drivers, ", "))
			if info.ConfigFile != "" {
				fmt.Fprintf(out, "  config:   %s\n", info.ConfigFile)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output version info as JSON")

	return cmd
}
