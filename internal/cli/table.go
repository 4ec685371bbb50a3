package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
	"github.com/ignatij/goschedule/pkg/models"
)

var (
	bold       = color.New(color.Bold).SprintFunc()
	dim        = color.New(color.Faint).SprintFunc()
	boldRed    = color.New(color.Bold, color.FgRed).SprintFunc()
	green      = color.New(color.FgGreen).SprintFunc()
	cyan       = color.New(color.FgCyan).SprintFunc()
	yellow     = color.New(color.FgYellow).SprintFunc()
	boldYellow = color.New(color.Bold, color.FgYellow).SprintFunc()
)

// printSchedule renders a snapshot as a table. Critical tasks are highlighted; padding is
// applied before colouring so escape codes do not break the alignment.
func printSchedule(w io.Writer, snap *models.ScheduleSnapshot) {
	idWidth, nameWidth := len("TASK"), len("NAME")
	for _, ts := range snap.Tasks {
		idWidth = max(idWidth, len(ts.TaskID))
		nameWidth = max(nameWidth, len(indent(snap, ts))+len(ts.Name))
	}

	fmt.Fprintln(w, bold(fmt.Sprintf("%-*s  %-*s  %-10s  %-10s  %5s  %8s  %s",
		idWidth, "TASK", nameWidth, "NAME", "START", "END", "FLOAT", "PROGRESS", "STATUS")))
	for _, ts := range snap.Tasks {
		id := fmt.Sprintf("%-*s", idWidth, ts.TaskID)
		if ts.OnCriticalPath {
			id = boldRed(id)
		}
		fmt.Fprintf(w, "%s  %-*s  %-10s  %-10s  %5d  %7.2f%%  %s\n",
			id,
			nameWidth, indent(snap, ts)+ts.Name,
			ts.EarliestStart.Format(models.DateLayout),
			ts.EarliestFinish.Format(models.DateLayout),
			ts.TotalFloat,
			ts.Progress,
			statusLabel(ts.Status))
	}
	fmt.Fprintln(w)
	printSummary(w, snap)
}

// printSummary prints the project span, the critical chain and any warnings.
func printSummary(w io.Writer, snap *models.ScheduleSnapshot) {
	if snap == nil || len(snap.Tasks) == 0 {
		fmt.Fprintln(w, dim("Schedule is empty."))
		return
	}
	fmt.Fprintf(w, "Project %d: %s -> %s (%d days)\n", snap.ProjectID,
		snap.ProjectStart.Format(models.DateLayout), snap.ProjectFinish.Format(models.DateLayout), snap.DurationDays)
	fmt.Fprintf(w, "Critical path: %s\n", boldRed(strings.Join(snap.CriticalPath, " -> ")))
	if critical := snap.CriticalTasks(); len(critical) > len(snap.CriticalPath) {
		fmt.Fprintf(w, "Critical tasks: %s\n", strings.Join(critical, ", "))
	}
	for _, ts := range snap.Tasks {
		if len(ts.BlockedBy) > 0 {
			fmt.Fprintf(w, "%s %s waits on %s\n", yellow("blocked:"), ts.TaskID, strings.Join(ts.BlockedBy, ", "))
		}
	}
	for _, warning := range snap.Warnings {
		fmt.Fprintf(w, "%s %s\n", boldYellow("warning:"), warning.Message)
	}
}

func statusLabel(s models.TaskStatus) string {
	switch s {
	case models.CompletedTaskStatus:
		return green(string(s))
	case models.InProgressTaskStatus:
		return cyan(string(s))
	case models.BlockedTaskStatus:
		return yellow(string(s))
	case models.CancelledTaskStatus:
		return dim(string(s))
	}
	return string(s)
}

// indent nests a task name two spaces per ancestor.
func indent(snap *models.ScheduleSnapshot, ts models.TaskSchedule) string {
	depth := 0
	for parent := ts.ParentID; parent != "" && depth < len(snap.Tasks); depth++ {
		p, ok := snap.Task(parent)
		if !ok {
			break
		}
		parent = p.ParentID
	}
	return strings.Repeat("  ", depth)
}
