package main

import (
	"fmt"
	"math"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/sqlfleet/deployctl/internal/config"
	"github.com/sqlfleet/deployctl/internal/console"
	"github.com/sqlfleet/deployctl/internal/migration"
	"github.com/sqlfleet/deployctl/internal/seed"
	"github.com/sqlfleet/deployctl/internal/sqlconn"
	"github.com/sqlfleet/deployctl/internal/target"
	"github.com/sqlfleet/deployctl/internal/whatif"
)

// loadGroup resolves the --groups/--targets flags into a single
// TargetGroup, applying any --max-parallelism*/CLI overrides on top. The
// two inventory flags are mutually exclusive — exactly one source of
// targets is required.
func loadGroup(cmd *cobra.Command, opts config.Options) (target.Group, error) {
	groupsPath, _ := cmd.Flags().GetString("groups")
	targetsPath, _ := cmd.Flags().GetString("targets")

	switch {
	case groupsPath != "" && targetsPath != "":
		return target.Group{}, fmt.Errorf("--groups and --targets are mutually exclusive")
	case groupsPath != "":
		groups, err := target.LoadGroupsYAML(groupsPath)
		if err != nil {
			return target.Group{}, err
		}
		if len(groups) == 0 {
			return target.Group{}, fmt.Errorf("%s: no groups defined", groupsPath)
		}
		return applyParallelismOverrides(groups[0], opts), nil
	case targetsPath != "":
		g, err := target.LoadTargetsTOML(targetsPath)
		if err != nil {
			return target.Group{}, err
		}
		return applyParallelismOverrides(g, opts), nil
	default:
		return target.Group{}, fmt.Errorf("one of --groups or --targets is required")
	}
}

// applyParallelismOverrides layers a config/CLI parallelism value over the
// target group's own, but only when that value was actually configured —
// config.Load's unset default is math.MaxInt, which must not stomp a
// group file's deliberately lower MaxParallelism.
func applyParallelismOverrides(g target.Group, opts config.Options) target.Group {
	if opts.MaxParallelism > 0 && opts.MaxParallelism != math.MaxInt {
		g.MaxParallelism = opts.MaxParallelism
	}
	if opts.MaxParallelismPerTarget > 0 && opts.MaxParallelismPerTarget != math.MaxInt {
		g.MaxParallelismPerTarget = opts.MaxParallelismPerTarget
	}
	return g
}

// buildConsoles constructs the shared log Root plus the two typed
// consoles layered on it (migration.Console and seed.Console require
// incompatible OpenLog signatures, so one Root backs two concrete types).
func buildConsoles(cmd *cobra.Command) (*console.MigrationConsole, *console.SeedConsole, error) {
	logDir, _ := cmd.Flags().GetString("log-dir")
	width, _ := cmd.Flags().GetInt("table-width")
	root := console.NewRoot(logDir, width)
	return console.NewMigrationConsole(root), console.NewSeedConsole(root), nil
}

// whatIfSink prints one "would ..." line to stdout tagged with its
// target. The overlay's Connection is built once per target, before the
// session opens that target's per-phase log file, so its Sink can't be
// wired to the eventual migration.Log/seed.Log — it gets a console-level
// notifier instead.
func whatIfSink(t target.Target) whatif.Sink {
	return func(line string) { fmt.Printf("[%s] %s\n", t.DisplayName(), line) }
}

// migrationConnectionFactory builds the per-target migration.Connection a
// Session drives, wrapping the real sqlconn.Sql in the what-if overlay
// when the run is a simulation.
func migrationConnectionFactory(opts config.Options, store *whatif.Store) migration.ConnectionFactory {
	return func(t target.Target) migration.Connection {
		real := sqlconn.NewSql(t)
		if !opts.IsWhatIfMode {
			return real
		}
		return &whatif.Connection{Target: t, Real: real, Store: store, Log: whatIfSink(t)}
	}
}

// seedConnectionFactory mirrors migrationConnectionFactory for seed runs.
// The what-if seed overlay never touches a real connection at all: seeds
// simulate entirely from the logged "would ..." lines.
func seedConnectionFactory(opts config.Options) seed.ConnectionFactory {
	return func(t target.Target) seed.Connection {
		if opts.IsWhatIfMode {
			return &whatif.SeedConnection{Log: whatIfSink(t)}
		}
		return sqlconn.NewSeedSql(t)
	}
}

func migrationsRoot(cmd *cobra.Command) string {
	root, _ := cmd.Flags().GetString("root")
	return root
}

func seedsRoot(cmd *cobra.Command) string {
	return filepath.Join(migrationsRoot(cmd), "Seeds")
}
