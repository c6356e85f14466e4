package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kilianp07/depotcharge/app"
)

var (
	planOut     string
	planPublish bool
)

var planCmd = &cobra.Command{
	Use:   "plan",
	Short: "Optimise the charging schedule over the input horizon",
	RunE:  runPlan,
}

func init() {
	planCmd.Flags().StringVarP(&planOut, "out", "o", "", "output directory (overrides output.dir)")
	planCmd.Flags().BoolVar(&planPublish, "publish", false, "publish the optimised plan over MQTT")
	rootCmd.AddCommand(planCmd)
}

func runPlan(cmd *cobra.Command, _ []string) error {
	ctx, svc, in, cleanup, err := setup()
	if err != nil {
		return err
	}
	defer cleanup()

	plan, err := svc.Plan(ctx, in)
	if err != nil {
		return err
	}
	dir := planOut
	if dir == "" {
		dir = svc.Config().Output.Dir
	}
	if _, err := svc.Write(plan, dir); err != nil {
		return err
	}
	if planPublish {
		if err := svc.Publish(ctx, plan); err != nil {
			return err
		}
	}
	for _, cat := range plan.Categories() {
		fmt.Fprintln(cmd.OutOrStdout(), app.Headline(cat, plan.Scenarios[cat]))
	}
	return nil
}
