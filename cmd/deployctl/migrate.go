package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sqlfleet/deployctl/internal/config"
	"github.com/sqlfleet/deployctl/internal/migration"
	"github.com/sqlfleet/deployctl/internal/whatif"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Plan, apply, and inspect SQL migrations",
}

var migratePlanCmd = &cobra.Command{
	Use:   "plan",
	Short: "Render the migration plan for every target without applying it",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runMigrate(cmd, true)
	},
}

var migrateApplyCmd = &cobra.Command{
	Use:   "apply",
	Short: "Apply pending migrations to every target",
	RunE: func(cmd *cobra.Command, args []string) error {
		if watch, _ := cmd.Flags().GetBool("watch"); watch {
			return watchAndApply(cmd)
		}
		return runMigrate(cmd, false)
	},
}

var migrateStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Print each target's currently registered migrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runMigrateStatus(cmd)
	},
}

func init() {
	migrateCmd.PersistentFlags().String("max-name", "", "inclusive upper bound on which migration names are discovered")
	migrateApplyCmd.Flags().Bool("watch", false, "re-run apply whenever a file under --root changes")
	migrateCmd.AddCommand(migratePlanCmd, migrateApplyCmd, migrateStatusCmd)
	rootCmd.AddCommand(migrateCmd)
}

// runMigrate discovers, plans, and (unless planOnly) applies migrations
// across every target in the resolved group.
func runMigrate(cmd *cobra.Command, planOnly bool) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	opts := config.Load()
	if planOnly {
		opts.IsWhatIfMode = true
	}

	group, err := loadGroup(cmd, opts)
	if err != nil {
		return err
	}

	root := migrationsRoot(cmd)
	maxName, _ := cmd.Flags().GetString("max-name")
	defined, err := migration.NewDiscoverer().Discover(root, maxName)
	if err != nil {
		return err
	}

	migrationConsole, _, err := buildConsoles(cmd)
	if err != nil {
		return err
	}

	phases := migration.AllPhases().Ordered()
	if len(opts.EnabledPhases) > 0 {
		phases = opts.EnabledPhases
	}

	store := whatif.NewStore()
	connect := migrationConnectionFactory(opts, store)

	lockPath, _ := cmd.Flags().GetString("lock")
	session := migration.NewSession(defined, group, connect, migrationConsole, phases, opts.AllowContentInCorePhase, opts.MaxErrorCount, lockPath)

	results, runErr := session.Run(ctx)
	failed := 0
	for _, r := range results {
		if r.Disposition == migration.Failed {
			failed++
		}
	}
	if failed > 0 {
		return fmt.Errorf("migrate: %d of %d targets failed", failed, len(results))
	}
	return runErr
}

func runMigrateStatus(cmd *cobra.Command) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	opts := config.Load()
	group, err := loadGroup(cmd, opts)
	if err != nil {
		return err
	}

	root := migrationsRoot(cmd)
	defined, err := migration.NewDiscoverer().Discover(root, "")
	if err != nil {
		return err
	}

	migrationConsole, _, err := buildConsoles(cmd)
	if err != nil {
		return err
	}

	connect := migrationConnectionFactory(opts, whatif.NewStore())
	session := migration.NewSession(defined, group, connect, migrationConsole, migration.AllPhases().Ordered(), opts.AllowContentInCorePhase, opts.MaxErrorCount, "")

	for _, t := range group.Targets {
		registered, err := session.GetRegisteredMigrations(ctx, t)
		if err != nil {
			return err
		}
		fmt.Printf("%s:\n", t.DisplayName())
		for _, m := range registered {
			fmt.Printf("  %s  %s\n", m.Name, m.State)
		}
	}
	return nil
}
