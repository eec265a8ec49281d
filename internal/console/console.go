// Package console is the reporting collaborator: it receives structured
// calls from the migration and seed applicators and turns them into
// rotating per-target log files plus a rendered status feed, so the
// engine packages themselves never touch stdout or the filesystem
// directly.
package console

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"gopkg.in/natefinch/lumberjack.v2"
)

var (
	ColorAccent = lipgloss.Color("39")
	ColorWarn   = lipgloss.Color("214")
	ColorPass   = lipgloss.Color("42")
	ColorError  = lipgloss.Color("196")
	ColorMuted  = lipgloss.Color("240")
)

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(ColorAccent).Align(lipgloss.Center)
	passStyle   = lipgloss.NewStyle().Foreground(ColorPass)
	errorStyle  = lipgloss.NewStyle().Foreground(ColorError)
	mutedStyle  = lipgloss.NewStyle().Foreground(ColorMuted)
	borderStyle = lipgloss.NewStyle().Foreground(ColorMuted)
)

// Root holds the state the migration and seed console collaborators share:
// where rotating log files land, and how wide to render plan tables.
// MigrationConsole and SeedConsole each embed a *Root rather than
// implementing both migration.Console and seed.Console on one type,
// because the two interfaces declare an OpenLog method with incompatible
// parameter types (migration.Phase vs. a seed name string) and a single
// Go type cannot carry two methods with the same name.
type Root struct {
	LogDir string
	Width  int
}

// NewRoot constructs a Root, defaulting Width when the caller passes a
// non-positive value.
func NewRoot(logDir string, width int) *Root {
	if width <= 0 {
		width = 100
	}
	return &Root{LogDir: logDir, Width: width}
}

// openFile builds the rotating lumberjack logger for one log file, creating
// its parent directory. parts is a directory path ending in the bare file
// name (without extension).
func (r *Root) openFile(parts ...string) (*lumberjack.Logger, error) {
	dir := filepath.Join(r.LogDir, filepath.Join(parts[:len(parts)-1]...))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("console: creating log directory %q: %w", dir, err)
	}
	name := parts[len(parts)-1]
	return &lumberjack.Logger{
		Filename:   filepath.Join(dir, name+".log"),
		MaxSize:    20, // megabytes
		MaxBackups: 5,
		MaxAge:     30, // days
		Compress:   true,
	}, nil
}

var pathReplacer = strings.NewReplacer("/", "_", "\\", "_", ":", "_", " ", "_")

// sanitize maps a target's display name (e.g. "server/database") onto
// something safe to use as a path segment.
func sanitize(s string) string {
	return pathReplacer.Replace(s)
}
