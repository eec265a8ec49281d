package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/sqlfleet/deployctl/internal/config"
)

var rootCmd = &cobra.Command{
	Use:   "deployctl",
	Short: "Deploy SQL migrations and seeds across a fleet of target databases",
	Long: `deployctl discovers annotated SQL migrations and seeds on disk, validates
them against each target's registration table, plans their zero-downtime
execution across the Pre/Core/Post phases, and applies them concurrently
with bounded parallelism and per-target logging.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := config.Initialize(); err != nil {
			return fmt.Errorf("loading configuration: %w", err)
		}
		return bindPersistentFlagOverrides(cmd)
	},
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.String("groups", "", "path to a groups.yaml target inventory")
	flags.String("targets", "", "path to a targets.toml target inventory")
	flags.String("root", ".", "migration/seed root directory (expects Migrations/ and Seeds/ beneath it)")
	flags.String("log-dir", ".deploy/logs", "directory rotating per-target log files are written under")
	flags.Int("table-width", 0, "plan table width in columns (0 selects a default)")
	flags.Bool("whatif", false, "simulate without executing any SQL against the targets")
	flags.Int("max-parallelism", 0, "override the group's MaxParallelism (0 keeps the configured/group value)")
	flags.Int("max-parallelism-per-target", 0, "override the group's MaxParallelismPerTarget (0 keeps the configured/group value)")
	flags.Int("max-error-count", -1, "override MaxErrorCount (-1 keeps the configured value)")
	flags.Bool("allow-core-content", false, "allow plans that require executing content during the Core phase")
	flags.String("lock", "", "path to flock for the session's lifetime, serializing concurrent sessions against the same root")
}

// bindPersistentFlagOverrides layers any explicitly-set persistent flags
// over the file/env-resolved config.Options: flag beats env beats file
// beats default.
func bindPersistentFlagOverrides(cmd *cobra.Command) error {
	flags := cmd.Flags()
	if flags.Changed("whatif") {
		v, _ := flags.GetBool("whatif")
		config.Set("whatif", v)
	}
	if flags.Changed("max-parallelism") {
		v, _ := flags.GetInt("max-parallelism")
		config.Set("max-parallelism", v)
	}
	if flags.Changed("max-parallelism-per-target") {
		v, _ := flags.GetInt("max-parallelism-per-target")
		config.Set("max-parallelism-per-target", v)
	}
	if flags.Changed("max-error-count") {
		v, _ := flags.GetInt("max-error-count")
		config.Set("max-error-count", v)
	}
	if flags.Changed("allow-core-content") {
		v, _ := flags.GetBool("allow-core-content")
		config.Set("allow-content-in-core-phase", v)
	}
	return nil
}

// Execute runs the CLI, returning the error cobra would otherwise only
// print, so main can choose the process exit code.
func Execute() error {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return err
	}
	return nil
}
