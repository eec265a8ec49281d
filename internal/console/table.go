package console

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/sqlfleet/deployctl/internal/migration"
)

// renderPlanTable renders the fixed-width migration plan table logged
// before an applicator executes anything: Name, Check, Progress,
// DependsOn, and a three-phase plan grid (Pre | Core | Post). The Core
// column widens with "Pre>"/">Post" sub-columns only when the plan
// actually schedules Pre- or Post-phase content into the Core window.
func renderPlanTable(width int, plan *migration.Plan) string {
	showCorePre := plan.HasPreContentInCore
	showCorePost := plan.HasPostContentInCore

	headers := []string{"Name", "Check", "Progress", "DependsOn", "Pre"}
	if showCorePre {
		headers = append(headers, "Pre>")
	}
	headers = append(headers, "Core")
	if showCorePost {
		headers = append(headers, ">Post")
	}
	headers = append(headers, "Post")

	preSet := markSet(plan.Pre)
	postSet := markSet(plan.Post)

	corePreSet := map[string]bool{}
	coreSet := map[string]bool{}
	corePostSet := map[string]bool{}
	for _, item := range plan.Core {
		switch item.Phase {
		case migration.Pre:
			corePreSet[item.Migration.Name] = true
		case migration.Post:
			corePostSet[item.Migration.Name] = true
		default:
			coreSet[item.Migration.Name] = true
		}
	}

	rows := make([][]string, 0, len(plan.PendingMigrations))
	for _, m := range plan.PendingMigrations {
		row := []string{m.Name, checkCell(m), m.State.String(), dependsOnCell(m), mark(preSet[m.Name])}
		if showCorePre {
			row = append(row, mark(corePreSet[m.Name]))
		}
		row = append(row, mark(coreSet[m.Name]))
		if showCorePost {
			row = append(row, mark(corePostSet[m.Name]))
		}
		row = append(row, mark(postSet[m.Name]))
		rows = append(rows, row)
	}

	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(borderStyle).
		Width(width).
		Headers(headers...).
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			style := lipgloss.NewStyle().Padding(0, 1)
			if col == 1 && row >= 0 && row < len(rows) {
				return style.Foreground(checkColor(rows[row][1]))
			}
			return style
		})

	return t.String()
}

func markSet(migrations []*migration.Migration) map[string]bool {
	out := make(map[string]bool, len(migrations))
	for _, m := range migrations {
		out[m.Name] = true
	}
	return out
}

func mark(ok bool) string {
	if ok {
		return "x"
	}
	return ""
}

func checkCell(m *migration.Migration) string {
	hasError := false
	hasWarning := false
	for _, d := range m.Diagnostics {
		if d.IsError {
			hasError = true
		} else {
			hasWarning = true
		}
	}
	switch {
	case hasError:
		return "FAIL"
	case hasWarning:
		return "WARN"
	default:
		return "OK"
	}
}

func checkColor(cell string) lipgloss.Color {
	switch cell {
	case "FAIL":
		return ColorError
	case "WARN":
		return ColorWarn
	default:
		return ColorPass
	}
}

func dependsOnCell(m *migration.Migration) string {
	if len(m.DependsOn) == 0 {
		return "-"
	}
	names := make([]string, len(m.DependsOn))
	for i, ref := range m.DependsOn {
		names[i] = ref.Name
	}
	return strings.Join(names, ", ")
}
