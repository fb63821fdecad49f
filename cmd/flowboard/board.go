package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/tverenko/flowboard/internal/board"
	"github.com/tverenko/flowboard/internal/model"
)

func boardCmd() *cobra.Command {
	return &cobra.Command{
		Use:          "board",
		Short:        "Print the board grouped by stage",
		SilenceUsage: true,
		Args:         cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			var snap board.Snapshot
			if err := apiGet("/board", &snap); err != nil {
				return err
			}
			printColumn(model.StageBacklog, snap.Backlog)
			printColumn(model.StageInProgress, snap.InProgress)
			printColumn(model.StageReview, snap.Review)
			printColumn(model.StageDone, snap.Done)
			return nil
		},
	}
}

func printColumn(stage model.Stage, tasks []model.Task) {
	fmt.Printf("── %s (%d) ──\n", strings.ToUpper(string(stage)), len(tasks))
	for _, t := range tasks {
		fmt.Println(" ", t.String())
	}
	fmt.Println()
}
