package cmd

import (
	"github.com/spf13/cobra"

	"mindvault/internal/bootstrap"
	"mindvault/internal/usecase/review"
)

var queueCmd = &cobra.Command{
	Use:   "queue",
	Short: "Stage queue operations",
}

var queueStatsCmd = &cobra.Command{
	Use:   "stats <stage>",
	Short: "Print one stage queue's gauges",
	Args:  cobra.ExactArgs(1),
	RunE: withApp(func(cmd *cobra.Command, args []string, _ *bootstrap.App, svc *review.Service) error {
		stats, err := svc.QueueStats(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		return printJSON(cmd, stats)
	}),
}

var rewardsListCmd = &cobra.Command{
	Use:   "rewards",
	Short: "List distributed rewards",
	RunE: withApp(func(cmd *cobra.Command, _ []string, _ *bootstrap.App, svc *review.Service) error {
		owner, _ := cmd.Flags().GetString("owner")
		limit, _ := cmd.Flags().GetInt("limit")
		records, err := svc.ListRewards(cmd.Context(), owner, limit)
		if err != nil {
			return err
		}
		return printJSON(cmd, records)
	}),
}

func init() {
	queueCmd.AddCommand(queueStatsCmd)
	rootCmd.AddCommand(queueCmd)

	rewardsListCmd.Flags().String("owner", "", "Filter by owner user id")
	rewardsListCmd.Flags().Int("limit", 50, "Maximum records")
	rootCmd.AddCommand(rewardsListCmd)
}
