package main

import (
	"context"
	"fmt"
	"math"

	"github.com/spf13/cobra"

	"github.com/sqlfleet/deployctl/internal/config"
	"github.com/sqlfleet/deployctl/internal/seed"
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Apply seed data modules",
}

var seedApplyCmd = &cobra.Command{
	Use:   "apply <name>",
	Short: "Apply a named seed to every target",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runSeedApply(cmd, args[0])
	},
}

var seedListCmd = &cobra.Command{
	Use:   "list",
	Short: "List the seeds discovered under --root/Seeds",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runSeedList(cmd)
	},
}

func init() {
	seedCmd.AddCommand(seedApplyCmd, seedListCmd)
	rootCmd.AddCommand(seedCmd)
}

func runSeedApply(cmd *cobra.Command, name string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	opts := config.Load()
	group, err := loadGroup(cmd, opts)
	if err != nil {
		return err
	}

	seeds, err := seed.NewDiscoverer().Discover(seedsRoot(cmd))
	if err != nil {
		return err
	}

	var toApply *seed.LoadedSeed
	for _, s := range seeds {
		if s.Name == name {
			toApply = s
			break
		}
	}
	if toApply == nil {
		return fmt.Errorf("seed apply: no seed named %q under %s", name, seedsRoot(cmd))
	}

	_, seedConsole, err := buildConsoles(cmd)
	if err != nil {
		return err
	}

	connect := seedConnectionFactory(opts)
	maxParallelism := group.MaxParallelismPerTarget
	if opts.MaxParallelismPerTarget > 0 && opts.MaxParallelismPerTarget != math.MaxInt {
		maxParallelism = opts.MaxParallelismPerTarget
	}

	session := seed.NewSession(*toApply, group, connect, seedConsole, maxParallelism)
	results, err := session.Run(ctx)
	if err != nil {
		return err
	}

	failed := 0
	for _, r := range results {
		if r.Err != nil {
			failed++
			fmt.Printf("%s: %v\n", r.Target, r.Err)
		}
	}
	if failed > 0 {
		return fmt.Errorf("seed apply: %d of %d targets failed", failed, len(results))
	}
	return nil
}

func runSeedList(cmd *cobra.Command) error {
	seeds, err := seed.NewDiscoverer().Discover(seedsRoot(cmd))
	if err != nil {
		return err
	}
	for _, s := range seeds {
		fmt.Printf("%s  (%d modules)\n", s.Name, len(s.Modules))
	}
	return nil
}
