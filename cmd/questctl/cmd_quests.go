package main

import (
	"errors"
	"fmt"

	"agriquest/tracker"

	"github.com/spf13/cobra"
)

// statusCmd shows the profile and quest progress
var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show points and quest progress",
	Long: `Show the local profile and every quest with its state.

When the authority is reachable the profile is merged with the remote copy
and evidence status is refreshed first; claims whose approval went away are
revoked and reported.`,
	Args: cobra.NoArgs,
	RunE: runStatus,
}

// toggleCmd flips a manual step
var toggleCmd = &cobra.Command{
	Use:   "toggle <quest> <step>",
	Short: "Mark a quest step done or not done (steps start at 1)",
	Args:  cobra.ExactArgs(2),
	RunE:  runToggle,
}

// claimCmd credits a finished quest
var claimCmd = &cobra.Command{
	Use:   "claim <quest>",
	Short: "Claim the reward of a finished quest",
	Args:  cobra.ExactArgs(1),
	RunE:  runClaim,
}

// eventCmd records telemetry
var eventCmd = &cobra.Command{
	Use:   "event <kind> [key=value...]",
	Short: "Record an app event (may auto-verify quest steps)",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runEvent,
}

// resetCmd signs out
var resetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Sign out: drop the local profile, events and step toggles",
	Args:  cobra.NoArgs,
	RunE:  runReset,
}

func runStatus(cmd *cobra.Command, args []string) error {
	showSteps, _ := cmd.Flags().GetBool("steps")
	out := cmd.OutOrStdout()
	p := newPrinter(lang)

	return withEngine(cmd.Context(), func(e *engine) error {
		printRevocations(out, e.refreshEvidence(cmd.Context()))

		printProfile(out, p, e.profiles.Profile(), e.quests.TotalAvailable())
		fmt.Fprintln(out)
		for _, qp := range e.quests.Overview() {
			printQuest(out, p, qp, showSteps)
		}
		return nil
	})
}

func runToggle(cmd *cobra.Command, args []string) error {
	step, err := parseStep(args[1])
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()

	return withEngine(cmd.Context(), func(e *engine) error {
		done, err := e.quests.ToggleStep(args[0], step)
		if err != nil {
			return err
		}
		qp, err := e.quests.Progress(args[0])
		if err != nil {
			return err
		}
		state := "not done"
		if done {
			state = "done"
		}
		fmt.Fprintf(out, "%s step %d %s (%d/%d)\n", qp.Quest.Title, step+1, state, qp.DoneCount, len(qp.Steps))
		if qp.State == tracker.QuestReadyToClaim {
			fmt.Fprintf(out, "Ready to claim: questctl claim %s\n", qp.Quest.ID)
		}
		return nil
	})
}

func runClaim(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	p := newPrinter(lang)

	return withEngine(cmd.Context(), func(e *engine) error {
		qp, err := e.quests.Progress(args[0])
		if err != nil {
			return err
		}
		if qp.State == tracker.QuestClaimed {
			fmt.Fprintln(out, "Already claimed.")
			return nil
		}
		if qp.Quest.RequiresEvidence {
			printRevocations(out, e.refreshEvidence(cmd.Context()))
		}

		profile, err := e.quests.Claim(args[0])
		if errors.Is(err, tracker.ErrEvidenceNotApproved) {
			return fmt.Errorf("%w; submit evidence with: questctl submit %s --image FILE", err, args[0])
		}
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "Claimed %s! Balance: %s\n", qp.Quest.Title, formatPoints(p, profile.Points))
		return nil
	})
}

func runEvent(cmd *cobra.Command, args []string) error {
	kind, err := parseEventKind(args[0])
	if err != nil {
		return err
	}
	data, err := parseEventData(args[1:])
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()

	return withEngine(cmd.Context(), func(e *engine) error {
		before := e.events.VerifiedSet(tracker.DefaultRules)
		if _, err := e.events.RecordEvent(kind, data); err != nil {
			return err
		}
		for _, id := range e.events.VerifiedSet(tracker.DefaultRules).Sorted() {
			if !before.Has(id) {
				fmt.Fprintf(out, "Verified: %s\n", id)
			}
		}
		return nil
	})
}

func runReset(cmd *cobra.Command, args []string) error {
	return withEngine(cmd.Context(), func(e *engine) error {
		profile := e.profiles.Reset()
		fmt.Fprintf(cmd.OutOrStdout(), "Signed out. New profile %s\n", profile.ID)
		return nil
	})
}
