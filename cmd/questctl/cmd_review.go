package main

import (
	"errors"
	"fmt"
	"time"

	"agriquest/models"
	"agriquest/services"
	"agriquest/tracker"
	"agriquest/utils"

	"github.com/spf13/cobra"
)

// submitCmd sends evidence for review
var submitCmd = &cobra.Command{
	Use:   "submit <quest>",
	Short: "Submit photo evidence for an evidence-gated quest",
	Args:  cobra.ExactArgs(1),
	RunE:  runSubmit,
}

// reconcileCmd refreshes evidence status
var reconcileCmd = &cobra.Command{
	Use:   "reconcile",
	Short: "Refresh evidence status and revoke claims that lost their approval",
	Args:  cobra.NoArgs,
	RunE:  runReconcile,
}

// adminCmd is the parent command for reviewer actions
var adminCmd = &cobra.Command{
	Use:   "admin",
	Short: "Review evidence (needs ADMIN_KEY)",
	Long: `Reviewer commands against the authority.

Available subcommands:
  list   - List evidence records by status
  decide - Approve or reject a record
  reset  - Put a record back to pending
  delete - Delete a record`,
}

var adminListCmd = &cobra.Command{
	Use:   "list",
	Short: "List evidence records",
	Args:  cobra.NoArgs,
	RunE:  runAdminList,
}

var adminDecideCmd = &cobra.Command{
	Use:   "decide <id> <approved|rejected>",
	Short: "Approve or reject a record",
	Args:  cobra.ExactArgs(2),
	RunE:  runAdminDecide,
}

var adminResetCmd = &cobra.Command{
	Use:   "reset <id>",
	Short: "Put a record back to pending",
	Args:  cobra.ExactArgs(1),
	RunE:  runAdminReset,
}

var adminDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a record",
	Args:  cobra.ExactArgs(1),
	RunE:  runAdminDelete,
}

func runSubmit(cmd *cobra.Command, args []string) error {
	imagePath, _ := cmd.Flags().GetString("image")
	imageURL, _ := cmd.Flags().GetString("image-url")
	notes, _ := cmd.Flags().GetString("notes")
	if imagePath != "" && imageURL != "" {
		return errors.New("use either --image or --image-url")
	}

	payload := tracker.EvidencePayload{Notes: notes, ImageURL: imageURL}
	if imagePath != "" {
		dataURL, err := utils.ReadImageAsDataURL(imagePath)
		if err != nil {
			return err
		}
		payload.ImageData = dataURL
	}

	return withEngine(cmd.Context(), func(e *engine) error {
		resp, err := e.review.Submit(cmd.Context(), args[0], payload)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Submitted %s for review (%s, id %s)\n", models.QuestTitle(args[0]), resp.Status, resp.ID)
		return nil
	})
}

func runReconcile(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	return withEngine(cmd.Context(), func(e *engine) error {
		revoked, err := e.review.Reconcile(cmd.Context())
		if err != nil {
			return err
		}
		if len(revoked) == 0 {
			fmt.Fprintln(out, "All claims are in line with their evidence.")
			return nil
		}
		printRevocations(out, revoked)
		return nil
	})
}

func adminClient() (*services.ReviewClient, error) {
	if err := requireAdminKey(); err != nil {
		return nil, err
	}
	return services.NewReviewClient(cfg.ServerURL, cfg.AdminKey, utils.NewHTTPClient(cfg.HTTPTimeout)), nil
}

func runAdminList(cmd *cobra.Command, args []string) error {
	status, _ := cmd.Flags().GetString("status")
	client, err := adminClient()
	if err != nil {
		return err
	}
	items, err := client.List(cmd.Context(), status)
	if err != nil {
		return err
	}
	printEvidence(cmd.OutOrStdout(), items)
	return nil
}

func runAdminDecide(cmd *cobra.Command, args []string) error {
	decision := models.EvidenceStatus(args[1])
	if decision != models.EvidenceApproved && decision != models.EvidenceRejected {
		return fmt.Errorf("decision must be %q or %q", models.EvidenceApproved, models.EvidenceRejected)
	}
	client, err := adminClient()
	if err != nil {
		return err
	}
	if err := client.Decide(cmd.Context(), args[0], decision); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s %s at %s\n", args[0], decision, time.Now().Format(time.Kitchen))
	return nil
}

func runAdminReset(cmd *cobra.Command, args []string) error {
	client, err := adminClient()
	if err != nil {
		return err
	}
	if err := client.Reset(cmd.Context(), args[0]); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s is pending again\n", args[0])
	return nil
}

func runAdminDelete(cmd *cobra.Command, args []string) error {
	client, err := adminClient()
	if err != nil {
		return err
	}
	if err := client.Delete(cmd.Context(), args[0]); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s deleted\n", args[0])
	return nil
}
