package cli

import (
	"fmt"
	"strings"
	"time"

	"github.com/ignatij/goschedule/internal/plan"
	"github.com/ignatij/goschedule/pkg/gantt"
	"github.com/ignatij/goschedule/pkg/models"
	"github.com/ignatij/goschedule/pkg/service"
	"github.com/spf13/cobra"
)

type opener func() (*session, error)

func projectCommand(open opener) *cobra.Command {
	projectCmd := &cobra.Command{Use: "project", Short: "Manage projects"}

	createCmd := &cobra.Command{
		Use:   "create [name]",
		Short: "Create a new project",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			start, err := dateFlag(cmd, "start")
			if err != nil {
				return err
			}
			var end *time.Time
			if cmd.Flags().Changed("end") {
				e, err := dateFlag(cmd, "end")
				if err != nil {
					return err
				}
				end = &e
			}
			s, err := open()
			if err != nil {
				return err
			}
			defer s.Close()
			id, err := s.svc.CreateProject(cmd.Context(), args[0], start, end)
			if err != nil {
				return fmt.Errorf("failed to create project: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Created project '%s' with ID %d\n", args[0], id)
			return nil
		},
	}
	createCmd.Flags().String("start", "", "Project start date (YYYY-MM-DD)")
	createCmd.Flags().String("end", "", "Optional project end date (YYYY-MM-DD)")
	_ = createCmd.MarkFlagRequired("start")

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List all projects",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := open()
			if err != nil {
				return err
			}
			defer s.Close()
			projects, err := s.svc.ListProjects(cmd.Context())
			if err != nil {
				return fmt.Errorf("failed to list projects: %w", err)
			}
			out := cmd.OutOrStdout()
			if len(projects) == 0 {
				fmt.Fprintf(out, "No projects found.\n")
				return nil
			}
			fmt.Fprintf(out, "Projects:\n")
			for _, p := range projects {
				fmt.Fprintf(out, "- ID: %d, Name: %s, Start: %s, Created: %s\n",
					p.ID, p.Name, p.StartDate.Format(models.DateLayout), p.CreatedAt.Format(time.RFC3339))
			}
			return nil
		},
	}

	projectCmd.AddCommand(createCmd, listCmd)
	return projectCmd
}

func taskCommand(open opener) *cobra.Command {
	taskCmd := &cobra.Command{Use: "task", Short: "Manage tasks"}

	addCmd := &cobra.Command{
		Use:   "add [project]",
		Short: "Add a task to a project",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			projectID, err := parseProjectID(args[0])
			if err != nil {
				return err
			}
			t := models.Task{}
			t.ID, _ = cmd.Flags().GetString("id")
			t.Name, _ = cmd.Flags().GetString("name")
			t.Progress, _ = cmd.Flags().GetFloat64("progress")
			if t.StartDate, err = dateFlag(cmd, "start"); err != nil {
				return err
			}
			if t.DueDate, err = dateFlag(cmd, "due"); err != nil {
				return err
			}
			if parent, _ := cmd.Flags().GetString("parent"); parent != "" {
				t.ParentID = &parent
			}
			if p, _ := cmd.Flags().GetString("priority"); p != "" {
				t.Priority = models.Priority(strings.ToUpper(p))
			}
			if st, _ := cmd.Flags().GetString("status"); st != "" {
				status, ok := models.ParseTaskStatus(st)
				if !ok {
					return fmt.Errorf("invalid status '%s'", st)
				}
				t.Status = status
			}

			s, err := open()
			if err != nil {
				return err
			}
			defer s.Close()
			id, snap, err := s.svc.ProposeTask(cmd.Context(), projectID, t)
			if err != nil {
				return fmt.Errorf("failed to add task: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Created task '%s' with ID %s\n", t.Name, id)
			printSummary(cmd.OutOrStdout(), snap)
			return nil
		},
	}
	addCmd.Flags().String("id", "", "Task ID (generated when empty)")
	addCmd.Flags().String("name", "", "Task name")
	addCmd.Flags().String("start", "", "Planned start (YYYY-MM-DD)")
	addCmd.Flags().String("due", "", "Planned finish (YYYY-MM-DD)")
	addCmd.Flags().String("parent", "", "Parent task ID")
	addCmd.Flags().String("priority", "", "LOW, MEDIUM, HIGH or URGENT")
	addCmd.Flags().String("status", "", "Initial status")
	addCmd.Flags().Float64("progress", 0, "Initial progress (0-100)")
	_ = addCmd.MarkFlagRequired("name")
	_ = addCmd.MarkFlagRequired("start")
	_ = addCmd.MarkFlagRequired("due")

	updateCmd := &cobra.Command{
		Use:   "update [project] [task]",
		Short: "Update task attributes",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			projectID, err := parseProjectID(args[0])
			if err != nil {
				return err
			}
			patch, err := taskPatch(cmd)
			if err != nil {
				return err
			}
			s, err := open()
			if err != nil {
				return err
			}
			defer s.Close()
			snap, err := s.svc.UpdateTask(cmd.Context(), projectID, args[1], patch)
			if err != nil {
				return fmt.Errorf("failed to update task: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Updated task %s\n", args[1])
			printSummary(cmd.OutOrStdout(), snap)
			return nil
		},
	}
	updateCmd.Flags().String("name", "", "Task name")
	updateCmd.Flags().String("start", "", "Planned start (YYYY-MM-DD)")
	updateCmd.Flags().String("due", "", "Planned finish (YYYY-MM-DD)")
	updateCmd.Flags().String("status", "", "Task status")
	updateCmd.Flags().String("priority", "", "Task priority")
	updateCmd.Flags().Float64("progress", 0, "Progress (0-100)")

	deleteCmd := &cobra.Command{
		Use:   "delete [project] [task]",
		Short: "Delete a task and its dependencies",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			projectID, err := parseProjectID(args[0])
			if err != nil {
				return err
			}
			s, err := open()
			if err != nil {
				return err
			}
			defer s.Close()
			snap, err := s.svc.DeleteTask(cmd.Context(), projectID, args[1])
			if err != nil {
				return fmt.Errorf("failed to delete task: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted task %s\n", args[1])
			printSummary(cmd.OutOrStdout(), snap)
			return nil
		},
	}

	parentCmd := &cobra.Command{
		Use:   "parent [project] [task] [parent]",
		Short: "Move a task under a parent, or detach it when no parent is given",
		Args:  cobra.RangeArgs(2, 3),
		RunE: func(cmd *cobra.Command, args []string) error {
			projectID, err := parseProjectID(args[0])
			if err != nil {
				return err
			}
			var parentID *string
			if len(args) == 3 {
				parentID = &args[2]
			}
			s, err := open()
			if err != nil {
				return err
			}
			defer s.Close()
			snap, err := s.svc.SetParent(cmd.Context(), projectID, args[1], parentID)
			if err != nil {
				return fmt.Errorf("failed to set parent: %w", err)
			}
			if parentID == nil {
				fmt.Fprintf(cmd.OutOrStdout(), "Detached task %s\n", args[1])
			} else {
				fmt.Fprintf(cmd.OutOrStdout(), "Moved task %s under %s\n", args[1], *parentID)
			}
			printSummary(cmd.OutOrStdout(), snap)
			return nil
		},
	}

	taskCmd.AddCommand(addCmd, updateCmd, deleteCmd, parentCmd)
	return taskCmd
}

func dependencyCommand(open opener) *cobra.Command {
	depCmd := &cobra.Command{Use: "dep", Short: "Manage dependencies"}

	addCmd := &cobra.Command{
		Use:   "add [project] [predecessor] [successor]",
		Short: "Propose a dependency between two tasks",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			projectID, err := parseProjectID(args[0])
			if err != nil {
				return err
			}
			typeFlag, _ := cmd.Flags().GetString("type")
			typ, err := models.ParseDependencyType(typeFlag)
			if err != nil {
				return err
			}
			lag, _ := cmd.Flags().GetInt("lag")
			s, err := open()
			if err != nil {
				return err
			}
			defer s.Close()
			id, snap, err := s.svc.ProposeEdge(cmd.Context(), projectID, args[1], args[2], typ, lag)
			if err != nil {
				return fmt.Errorf("dependency rejected: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Added %s dependency %s -> %s with ID %s\n", typ, args[1], args[2], id)
			printSummary(cmd.OutOrStdout(), snap)
			return nil
		},
	}
	addCmd.Flags().String("type", "FS", "FS, SS, FF or SF")
	addCmd.Flags().Int("lag", 0, "Lag in days; negative for lead time")

	rmCmd := &cobra.Command{
		Use:   "rm [project] [dependency]",
		Short: "Remove a dependency",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			projectID, err := parseProjectID(args[0])
			if err != nil {
				return err
			}
			s, err := open()
			if err != nil {
				return err
			}
			defer s.Close()
			snap, err := s.svc.RemoveEdge(cmd.Context(), projectID, args[1])
			if err != nil {
				return fmt.Errorf("failed to remove dependency: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed dependency %s\n", args[1])
			printSummary(cmd.OutOrStdout(), snap)
			return nil
		},
	}

	depCmd.AddCommand(addCmd, rmCmd)
	return depCmd
}

func scheduleCommand(open opener) *cobra.Command {
	return &cobra.Command{
		Use:   "schedule [project]",
		Short: "Show the computed schedule of a project",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			projectID, err := parseProjectID(args[0])
			if err != nil {
				return err
			}
			s, err := open()
			if err != nil {
				return err
			}
			defer s.Close()
			snap, err := s.svc.GetSchedule(cmd.Context(), projectID)
			if err != nil {
				return fmt.Errorf("failed to compute schedule: %w", err)
			}
			printSchedule(cmd.OutOrStdout(), snap)
			return nil
		},
	}
}

func ganttCommand(open opener) *cobra.Command {
	return &cobra.Command{
		Use:   "gantt [project]",
		Short: "Export the schedule as Gantt chart records (JSON)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			projectID, err := parseProjectID(args[0])
			if err != nil {
				return err
			}
			s, err := open()
			if err != nil {
				return err
			}
			defer s.Close()
			snap, err := s.svc.GetSchedule(cmd.Context(), projectID)
			if err != nil {
				return fmt.Errorf("failed to compute schedule: %w", err)
			}
			return gantt.Write(cmd.OutOrStdout(), snap)
		},
	}
}

func importCommand(open opener) *cobra.Command {
	return &cobra.Command{
		Use:   "import [plan.toml]",
		Short: "Create a project from a TOML plan file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := plan.Load(args[0])
			if err != nil {
				return err
			}
			s, err := open()
			if err != nil {
				return err
			}
			defer s.Close()
			res, err := plan.Import(cmd.Context(), s.svc, p)
			if res != nil {
				fmt.Fprintf(cmd.OutOrStdout(), "Imported project '%s' with ID %d: %d tasks, %d dependencies\n",
					p.Project.Name, res.ProjectID, len(res.TaskIDs), len(res.EdgeIDs))
			}
			if err != nil {
				return fmt.Errorf("import stopped: %w", err)
			}
			if res.Snapshot != nil {
				printSchedule(cmd.OutOrStdout(), res.Snapshot)
			}
			return nil
		},
	}
}

func refreshCommand(open opener) *cobra.Command {
	return &cobra.Command{
		Use:   "refresh [project...]",
		Short: "Recompute schedules as of today (all projects when none are given)",
		RunE: func(cmd *cobra.Command, args []string) error {
			ids := make([]int64, 0, len(args))
			for _, a := range args {
				id, err := parseProjectID(a)
				if err != nil {
					return err
				}
				ids = append(ids, id)
			}
			s, err := open()
			if err != nil {
				return err
			}
			defer s.Close()
			snaps, err := s.svc.RefreshSchedules(cmd.Context(), ids...)
			fmt.Fprintf(cmd.OutOrStdout(), "Refreshed %d schedules\n", len(snaps))
			if err != nil {
				return fmt.Errorf("refresh failed: %w", err)
			}
			return nil
		},
	}
}

func historyCommand(open opener) *cobra.Command {
	return &cobra.Command{
		Use:   "history [project]",
		Short: "Show the mutation log of a project",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			projectID, err := parseProjectID(args[0])
			if err != nil {
				return err
			}
			s, err := open()
			if err != nil {
				return err
			}
			defer s.Close()
			logs, err := s.svc.History(cmd.Context(), projectID)
			if err != nil {
				return fmt.Errorf("failed to load history: %w", err)
			}
			out := cmd.OutOrStdout()
			if len(logs) == 0 {
				fmt.Fprintf(out, "No mutations recorded.\n")
				return nil
			}
			for _, l := range logs {
				fmt.Fprintf(out, "%s  %-14s %-36s %s\n", l.LoggedAt.Format(time.RFC3339), l.Operation, l.Subject, l.Message)
			}
			return nil
		},
	}
}

func dateFlag(cmd *cobra.Command, name string) (time.Time, error) {
	s, _ := cmd.Flags().GetString(name)
	if s == "" {
		return time.Time{}, fmt.Errorf("--%s is required", name)
	}
	d, err := models.ParseDate(s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid --%s '%s': expected YYYY-MM-DD", name, s)
	}
	return d, nil
}

func taskPatch(cmd *cobra.Command) (service.TaskPatch, error) {
	var patch service.TaskPatch
	flags := cmd.Flags()
	if flags.Changed("name") {
		name, _ := flags.GetString("name")
		patch.Name = &name
	}
	for _, f := range []struct {
		name string
		dst  **time.Time
	}{{"start", &patch.StartDate}, {"due", &patch.DueDate}} {
		if !flags.Changed(f.name) {
			continue
		}
		d, err := dateFlag(cmd, f.name)
		if err != nil {
			return patch, err
		}
		*f.dst = &d
	}
	if flags.Changed("status") {
		s, _ := flags.GetString("status")
		status, ok := models.ParseTaskStatus(s)
		if !ok {
			return patch, fmt.Errorf("invalid status '%s'", s)
		}
		patch.Status = &status
	}
	if flags.Changed("priority") {
		p, _ := flags.GetString("priority")
		priority := models.Priority(strings.ToUpper(p))
		patch.Priority = &priority
	}
	if flags.Changed("progress") {
		progress, _ := flags.GetFloat64("progress")
		patch.Progress = &progress
	}
	return patch, nil
}
