package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ternarybob/longform/internal/models"
	"github.com/ternarybob/longform/internal/services/generation"
)

var (
	estimateDuration int
	estimateTier     string
)

var estimateCmd = &cobra.Command{
	Use:   "estimate",
	Short: "Print the credit cost of a generation",
	RunE: func(cmd *cobra.Command, args []string) error {
		planner := generation.NewPlanner(&config.Generation)
		calculator := generation.NewCreditCalculator(&config.Credits, planner)

		cost, err := calculator.Estimate(estimateDuration, models.ModelTier(estimateTier))
		if err != nil {
			return err
		}
		plan := planner.Plan(estimateDuration, nil)

		fmt.Fprintf(cmd.OutOrStdout(), "duration: %ds (%d min)\n", estimateDuration, cost.Minutes)
		fmt.Fprintf(cmd.OutOrStdout(), "tier:     %s (x%.2f)\n", cost.Tier, cost.Multiplier)
		fmt.Fprintf(cmd.OutOrStdout(), "chunked:  %t (%d chunks)\n", cost.Chunked, plan.ChunkCount)
		fmt.Fprintf(cmd.OutOrStdout(), "words:    %d expected\n", plan.ExpectedWords)
		fmt.Fprintf(cmd.OutOrStdout(), "credits:  %d\n", cost.Credits)
		return nil
	},
}

func init() {
	estimateCmd.Flags().IntVarP(&estimateDuration, "duration", "d", 600, "Target duration in seconds")
	estimateCmd.Flags().StringVarP(&estimateTier, "tier", "t", string(models.TierBalanced), "Model tier: fast, balanced, premium")
}
