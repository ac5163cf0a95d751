package cmd

import (
	"github.com/spf13/cobra"

	"mindvault/internal/bootstrap"
	"mindvault/internal/errs"
	"mindvault/internal/usecase/review"
)

var expertCmd = &cobra.Command{
	Use:   "expert",
	Short: "Expert review operations",
}

var (
	expertID       string
	expertApprove  bool
	expertFeedback string
)

var expertDecideCmd = &cobra.Command{
	Use:   "decide <submission-id>",
	Short: "Record an expert decision on a pending submission",
	Args:  cobra.ExactArgs(1),
	RunE: withApp(func(cmd *cobra.Command, args []string, _ *bootstrap.App, svc *review.Service) error {
		if err := svc.RegisterWorkers(); err != nil {
			return errs.Wrap(err, "register stage workers")
		}
		err := svc.ProcessExpertDecision(cmd.Context(), review.ExpertDecisionInput{
			SubmissionID: args[0],
			ExpertID:     expertID,
			Approved:     expertApprove,
			Feedback:     expertFeedback,
		})
		if err != nil {
			return errs.Wrap(err, "process expert decision")
		}
		sub, err := svc.GetSubmission(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		return printJSON(cmd, sub)
	}),
}

func init() {
	expertDecideCmd.Flags().StringVar(&expertID, "expert", "", "Expert id")
	expertDecideCmd.Flags().BoolVar(&expertApprove, "approve", false, "Approve the submission (defaults to reject)")
	expertDecideCmd.Flags().StringVar(&expertFeedback, "feedback", "", "Expert feedback")

	expertCmd.AddCommand(expertDecideCmd)
	rootCmd.AddCommand(expertCmd)
}
