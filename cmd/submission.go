package cmd

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"mindvault/internal/bootstrap"
	"mindvault/internal/errs"
	"mindvault/internal/usecase/review"
)

var submissionCmd = &cobra.Command{
	Use:   "submission",
	Short: "Submission operations",
}

var (
	submissionOwner string
	submissionType  string
	submissionFiles []string
)

var submissionCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Register a disclosure and start the review pipeline",
	RunE: withApp(func(cmd *cobra.Command, _ []string, app *bootstrap.App, svc *review.Service) error {
		if err := app.InitSchema(cmd.Context()); err != nil {
			return errs.Wrap(err, "initialize schema")
		}
		if err := svc.RegisterWorkers(); err != nil {
			return errs.Wrap(err, "register stage workers")
		}

		files := make([]review.FileInput, 0, len(submissionFiles))
		for _, raw := range submissionFiles {
			f, err := parseFileSpec(raw)
			if err != nil {
				return err
			}
			files = append(files, f)
		}

		sub, err := svc.CreateSubmission(cmd.Context(), review.CreateSubmissionInput{
			OwnerID: submissionOwner,
			Type:    submissionType,
			Files:   files,
		})
		if err != nil {
			return errs.Wrap(err, "create submission")
		}
		return printJSON(cmd, sub)
	}),
}

var submissionShowCmd = &cobra.Command{
	Use:   "show <submission-id>",
	Short: "Print a submission",
	Args:  cobra.ExactArgs(1),
	RunE: withApp(func(cmd *cobra.Command, args []string, _ *bootstrap.App, svc *review.Service) error {
		sub, err := svc.GetSubmission(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		return printJSON(cmd, sub)
	}),
}

var submissionAuditCmd = &cobra.Command{
	Use:   "audit <submission-id>",
	Short: "Print a submission's audit trail",
	Args:  cobra.ExactArgs(1),
	RunE: withApp(func(cmd *cobra.Command, args []string, _ *bootstrap.App, svc *review.Service) error {
		entries, err := svc.ListAuditTrail(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		return printJSON(cmd, entries)
	}),
}

var submissionCertificateCmd = &cobra.Command{
	Use:   "certificate <submission-id>",
	Short: "Print a submission's attestation",
	Args:  cobra.ExactArgs(1),
	RunE: withApp(func(cmd *cobra.Command, args []string, _ *bootstrap.App, svc *review.Service) error {
		att, err := svc.GetCertificate(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		return printJSON(cmd, att)
	}),
}

// parseFileSpec reads "name:hash" or "name:hash:size".
func parseFileSpec(raw string) (review.FileInput, error) {
	parts := strings.Split(raw, ":")
	if len(parts) < 2 || len(parts) > 3 {
		return review.FileInput{}, fmt.Errorf("invalid file spec %q, want name:hash[:size]", raw)
	}
	f := review.FileInput{Name: parts[0], Hash: parts[1]}
	if len(parts) == 3 {
		size, err := strconv.ParseInt(parts[2], 10, 64)
		if err != nil {
			return review.FileInput{}, fmt.Errorf("invalid file size in %q", raw)
		}
		f.Size = size
	}
	return f, nil
}

func printJSON(cmd *cobra.Command, v any) error {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return errs.Wrap(err, "encode output")
	}
	_, err = fmt.Fprintln(cmd.OutOrStdout(), string(out))
	return err
}

func init() {
	submissionCreateCmd.Flags().StringVar(&submissionOwner, "owner", "", "Owner user id")
	submissionCreateCmd.Flags().StringVar(&submissionType, "type", "invention", "Submission type: invention, discovery or idea")
	submissionCreateCmd.Flags().StringArrayVar(&submissionFiles, "file", nil, "File manifest entry name:hash[:size] (repeatable)")

	submissionCmd.AddCommand(submissionCreateCmd)
	submissionCmd.AddCommand(submissionShowCmd)
	submissionCmd.AddCommand(submissionAuditCmd)
	submissionCmd.AddCommand(submissionCertificateCmd)
	rootCmd.AddCommand(submissionCmd)
}
