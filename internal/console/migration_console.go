package console

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/sqlfleet/deployctl/internal/migration"
)

// MigrationConsole implements migration.Console and migration.Log,
// reporting phase progress to stdout/stderr and mirroring every line to a
// rotating per-target, per-phase log file under Root.LogDir.
type MigrationConsole struct {
	Root *Root
}

// NewMigrationConsole constructs a MigrationConsole sharing root.
func NewMigrationConsole(root *Root) *MigrationConsole {
	return &MigrationConsole{Root: root}
}

type migrationLog struct {
	lj *lumberjack.Logger
}

func (l *migrationLog) WriteHeader(targetDisplayName string, phase migration.Phase, startedAt time.Time) error {
	_, err := fmt.Fprintf(l.lj, "=== %s: %s phase started %s ===\n", targetDisplayName, phase, startedAt.Format(time.RFC3339))
	return err
}

func (l *migrationLog) WriteLine(s string) error {
	_, err := fmt.Fprintln(l.lj, s)
	return err
}

func (l *migrationLog) Close() error {
	return l.lj.Close()
}

// OpenLog opens the rotating log file for one target's phase run.
func (c *MigrationConsole) OpenLog(targetDisplayName string, phase migration.Phase) (migration.Log, error) {
	lj, err := c.Root.openFile(sanitize(targetDisplayName), strings.ToLower(phase.String()))
	if err != nil {
		return nil, err
	}
	return &migrationLog{lj: lj}, nil
}

func (c *MigrationConsole) ReportStarting(targetDisplayName string, phase migration.Phase) {
	fmt.Fprintln(os.Stdout, mutedStyle.Render(fmt.Sprintf("-> %s: starting %s phase", targetDisplayName, phase)))
}

func (c *MigrationConsole) ReportApplying(targetDisplayName string, m *migration.Migration, phase migration.Phase) {
	fmt.Fprintf(os.Stdout, "   %s: applying %s (%s)\n", targetDisplayName, m.Name, phase)
}

func (c *MigrationConsole) ReportApplied(targetDisplayName string, phase migration.Phase, count int, elapsed time.Duration) {
	fmt.Fprintln(os.Stdout, passStyle.Render(fmt.Sprintf(
		"<- %s: applied %d migration(s) in %s (%s)", targetDisplayName, count, elapsed.Round(time.Millisecond), phase,
	)))
}

func (c *MigrationConsole) ReportProblem(targetDisplayName string, message string) {
	fmt.Fprintln(os.Stderr, errorStyle.Render(fmt.Sprintf("!! %s: %s", targetDisplayName, message)))
}

func (c *MigrationConsole) RenderPlanTable(plan *migration.Plan) string {
	return renderPlanTable(c.Root.Width, plan)
}
