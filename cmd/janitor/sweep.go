package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
)

var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Promote maintenances to started or ended from their schedule",
	RunE:  runSweep,
}

func runSweep(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	a, _, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	started, startErr := a.Sweeper.PromoteStarted(ctx)
	ended, endErr := a.Sweeper.PromoteEnded(ctx)

	printTable([]string{"Transition", "Promoted"}, [][]string{
		{"started", fmt.Sprint(started)},
		{"ended", fmt.Sprint(ended)},
	})
	return errors.Join(startErr, endErr)
}
