package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Plan every sweep scenario and append the results to the grid log",
	RunE:  runSweep,
}

func init() {
	rootCmd.AddCommand(sweepCmd)
}

func runSweep(cmd *cobra.Command, _ []string) error {
	ctx, svc, in, cleanup, err := setup()
	if err != nil {
		return err
	}
	defer cleanup()

	path := svc.Config().Sweep.GridLog
	appending := false
	if st, err := os.Stat(path); err == nil && st.Size() > 0 {
		appending = true
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer closeQuietly(f)

	plans, err := svc.Sweep(ctx, in, f, appending)
	for _, p := range plans {
		if p != nil {
			fmt.Fprintf(cmd.OutOrStdout(), "%s: run %s\n", p.Name, p.RunID)
		}
	}
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "grid log: %s\n", path)
	return nil
}
