package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/kilianp07/depotcharge/core/model"
	"github.com/kilianp07/depotcharge/core/optimiser"
)

var (
	lpDate        string
	lpCategory    string
	lpFormulation string
	lpOut         string
)

var lpCmd = &cobra.Command{
	Use:   "lp",
	Short: "Write the linear program of one charging day in CPLEX LP format",
	Long: "Plans the horizon up to the given day to obtain the entering charge, " +
		"then formulates that day without solving it.",
	RunE: runLP,
}

func init() {
	lpCmd.Flags().StringVar(&lpDate, "date", "", "charging-window date (YYYY-MM-DD), defaults to the last day")
	lpCmd.Flags().StringVar(&lpCategory, "category", "opt", "scenario category")
	lpCmd.Flags().StringVar(&lpFormulation, "formulation", "Main", "Main, Tonext or Breach")
	lpCmd.Flags().StringVarP(&lpOut, "out", "o", "", "output file, stdout when empty")
	rootCmd.AddCommand(lpCmd)
}

func runLP(cmd *cobra.Command, _ []string) error {
	cat, err := model.ParseCategory(lpCategory)
	if err != nil {
		return err
	}
	f, err := optimiser.ParseFormulation(lpFormulation)
	if err != nil {
		return err
	}
	ctx, svc, in, cleanup, err := setup()
	if err != nil {
		return err
	}
	defer cleanup()

	var date time.Time
	if lpDate != "" {
		date, err = time.ParseInLocation(time.DateOnly, lpDate, svc.Config().Inputs.Location())
		if err != nil {
			return fmt.Errorf("date: %w", err)
		}
	}
	m, err := svc.Formulate(ctx, in, cat, date, f)
	if err != nil {
		return err
	}
	w := cmd.OutOrStdout()
	if lpOut != "" {
		file, err := os.Create(lpOut)
		if err != nil {
			return err
		}
		defer closeQuietly(file)
		w = file
	}
	return m.WriteLP(w)
}
