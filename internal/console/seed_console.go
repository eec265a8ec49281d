package console

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/sqlfleet/deployctl/internal/seed"
)

// SeedConsole implements seed.Console and seed.Log, mirroring
// MigrationConsole's reporting shape for seed runs.
type SeedConsole struct {
	Root *Root
}

// NewSeedConsole constructs a SeedConsole sharing root.
func NewSeedConsole(root *Root) *SeedConsole {
	return &SeedConsole{Root: root}
}

type seedLog struct {
	lj *lumberjack.Logger
}

func (l *seedLog) WriteHeader(targetDisplayName, seedName string, startedAt time.Time) error {
	_, err := fmt.Fprintf(l.lj, "=== %s: seed %q started %s ===\n", targetDisplayName, seedName, startedAt.Format(time.RFC3339))
	return err
}

func (l *seedLog) WriteLine(s string) error {
	_, err := fmt.Fprintln(l.lj, s)
	return err
}

func (l *seedLog) Close() error {
	return l.lj.Close()
}

// OpenLog opens the rotating log file for one target's seed run.
func (c *SeedConsole) OpenLog(targetDisplayName, seedName string) (seed.Log, error) {
	lj, err := c.Root.openFile(sanitize(targetDisplayName), "seed-"+sanitize(seedName))
	if err != nil {
		return nil, err
	}
	return &seedLog{lj: lj}, nil
}

func (c *SeedConsole) ReportStarting(targetDisplayName, seedName string) {
	fmt.Fprintln(os.Stdout, mutedStyle.Render(fmt.Sprintf("-> %s: starting seed %q", targetDisplayName, seedName)))
}

func (c *SeedConsole) ReportApplying(targetDisplayName, seedName string, m *seed.SeedModule, workerId int) {
	fmt.Fprintf(os.Stdout, "   %s: applying %s/%s (worker %d)\n", targetDisplayName, seedName, m.Name, workerId)
}

func (c *SeedConsole) ReportApplied(targetDisplayName, seedName string, count int, elapsed time.Duration) {
	fmt.Fprintln(os.Stdout, passStyle.Render(fmt.Sprintf(
		"<- %s: applied %d module(s) of seed %q in %s", targetDisplayName, count, seedName, elapsed.Round(time.Millisecond),
	)))
}

func (c *SeedConsole) ReportProblem(targetDisplayName, seedName string, message string) {
	fmt.Fprintln(os.Stderr, errorStyle.Render(fmt.Sprintf("!! %s: seed %q: %s", targetDisplayName, seedName, message)))
}
