package main

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/spf13/cobra"

	"github.com/tverenko/flowboard/internal/model"
)

func taskCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "task",
		Short: "Manage tasks on a running flowboard daemon",
	}
	cmd.AddCommand(taskAddCmd())
	cmd.AddCommand(taskListCmd())
	cmd.AddCommand(taskShowCmd())
	cmd.AddCommand(taskMoveCmd("start", "Move a backlog task to in_progress and run the coder"))
	cmd.AddCommand(taskMoveCmd("review", "Move an in-progress task to review"))
	cmd.AddCommand(taskMoveCmd("approve", "Approve a review task"))
	cmd.AddCommand(taskRejectCmd())
	return cmd
}

func taskAddCmd() *cobra.Command {
	var description string
	var dependsOn []string

	cmd := &cobra.Command{
		Use:          "add <title>",
		Short:        "Create a task in the backlog",
		SilenceUsage: true,
		Args:         cobra.MinimumNArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			title := strings.TrimSpace(strings.Join(args, " "))
			if description == "" {
				description = title
			}
			body := map[string]any{
				"title":       title,
				"description": description,
				"depends_on":  dependsOn,
			}
			var task model.Task
			if err := apiPost("/tasks", body, &task); err != nil {
				return err
			}
			fmt.Println(task.String())
			return nil
		},
	}
	cmd.Flags().StringVarP(&description, "description", "d", "", "task description (defaults to the title)")
	cmd.Flags().StringArrayVar(&dependsOn, "depends-on", nil, "task id that must be done first (repeatable)")
	return cmd
}

func taskListCmd() *cobra.Command {
	var stage string
	cmd := &cobra.Command{
		Use:          "list",
		Short:        "List tasks",
		SilenceUsage: true,
		Args:         cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			path := "/tasks"
			if stage != "" {
				if _, err := model.ParseStage(stage); err != nil {
					return err
				}
				path += "?stage=" + stage
			}
			var tasks []model.Task
			if err := apiGet(path, &tasks); err != nil {
				return err
			}
			for _, t := range tasks {
				fmt.Println(t.String())
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&stage, "stage", "", "filter by stage (backlog, in_progress, review, done)")
	return cmd
}

func taskShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:          "show <task-id>",
		Short:        "Show a task with its snippet, review notes, and history",
		SilenceUsage: true,
		Args:         cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			var task model.Task
			if err := apiGet("/tasks/"+args[0], &task); err != nil {
				return err
			}
			return printTask(task)
		},
	}
	return cmd
}

func taskMoveCmd(action, short string) *cobra.Command {
	return &cobra.Command{
		Use:          action + " <task-id>",
		Short:        short,
		SilenceUsage: true,
		Args:         cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			var task model.Task
			if err := apiPost("/tasks/"+args[0]+"/"+action, struct{}{}, &task); err != nil {
				return err
			}
			fmt.Println(task.String())
			return nil
		},
	}
}

func taskRejectCmd() *cobra.Command {
	var reason string
	cmd := &cobra.Command{
		Use:          "reject <task-id>",
		Short:        "Reject a review task back to the backlog",
		SilenceUsage: true,
		Args:         cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			if strings.TrimSpace(reason) == "" {
				return fmt.Errorf("a rejection reason is required")
			}
			var task model.Task
			if err := apiPost("/tasks/"+args[0]+"/reject", map[string]string{"reason": reason}, &task); err != nil {
				return err
			}
			fmt.Println(task.String())
			return nil
		},
	}
	cmd.Flags().StringVarP(&reason, "reason", "r", "", "why the task is being rejected")
	return cmd
}

// printTask renders the full task as markdown in the terminal.
func printTask(t model.Task) error {
	var sb strings.Builder
	fmt.Fprintf(&sb, "# %s — %s\n\n", t.ID, t.Title)
	fmt.Fprintf(&sb, "**Stage:** %s", t.Stage)
	if t.RetryCount > 0 {
		fmt.Fprintf(&sb, " (retries: %d)", t.RetryCount)
	}
	sb.WriteString("\n\n")
	fmt.Fprintf(&sb, "%s\n", t.Description)
	if len(t.DependsOn) > 0 {
		fmt.Fprintf(&sb, "\n**Depends on:** %s\n", strings.Join(t.DependsOn, ", "))
	}
	if t.CodeSnippet != "" {
		fmt.Fprintf(&sb, "\n## Snippet\n\n```\n%s\n```\n", t.CodeSnippet)
	}
	if t.ReviewNotes != "" {
		fmt.Fprintf(&sb, "\n## Review notes\n\n%s\n", t.ReviewNotes)
	}
	if len(t.History) > 0 {
		sb.WriteString("\n## History\n\n")
		for _, e := range t.History {
			from := ""
			if e.From != nil {
				from = string(*e.From) + " → "
			}
			line := fmt.Sprintf("- %s %s%s", e.Timestamp.Format("2006-01-02 15:04:05"), from, e.To)
			if e.Note != "" {
				line += fmt.Sprintf(" (%s)", e.Note)
			}
			sb.WriteString(line + "\n")
		}
	}

	out, err := glamour.Render(sb.String(), "auto")
	if err != nil {
		// Fall back to the raw markdown if the terminal renderer chokes.
		fmt.Println(sb.String())
		return nil
	}
	fmt.Print(out)
	return nil
}
