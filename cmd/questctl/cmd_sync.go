package main

import (
	"context"
	"fmt"

	"agriquest/models"
	"agriquest/tracker"
	"agriquest/workers"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// syncCmd pushes queued changes
var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Push queued changes to the authority",
	Args:  cobra.NoArgs,
	RunE:  runSync,
}

// watchCmd keeps the background workers running
var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Keep syncing and polling evidence until interrupted",
	Long: `Run the sync worker, the connectivity probe and the evidence poller in
the foreground. Queued changes are pushed as soon as the authority becomes
reachable, and revoked rewards are reported as they happen.`,
	Args: cobra.NoArgs,
	RunE: runWatch,
}

func runSync(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	p := newPrinter(lang)

	return withEngine(cmd.Context(), func(e *engine) error {
		if !e.sync.Push(cmd.Context()) {
			return fmt.Errorf("authority at %s unreachable, %d change(s) stay queued",
				cfg.ServerURL, len(e.profiles.Profile().Pending))
		}
		fmt.Fprintf(out, "Synced. Balance: %s\n", formatPoints(p, e.profiles.Profile().Points))
		return nil
	})
}

func runWatch(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	out := cmd.OutOrStdout()
	p := newPrinter(lang)

	return withEngine(ctx, func(e *engine) error {
		monitor := workers.NewConnectivityMonitor(e.reviewAPI, e.clock, logger, cfg.ProbeInterval)
		poller := workers.NewEvidencePoller(e.review, e.clock, logger, cfg.PollInterval, func(r tracker.Revocation) {
			fmt.Fprintf(out, "Reward revoked: %s\n", r)
		})

		unsubscribe := e.profiles.Subscribe(func(profile models.Profile) {
			fmt.Fprintf(out, "Balance: %s, %d change(s) queued\n", formatPoints(p, profile.Points), len(profile.Pending))
		})
		defer unsubscribe()

		e.sync.EnsureOnlineSyncListener(monitor)
		monitor.OnOnline(func() {
			fmt.Fprintf(out, "Online (%s)\n", cfg.ServerURL)
			poller.Poke(ctx)
		})

		e.sync.Start(ctx)
		e.sync.Trigger()
		if err := monitor.Start(ctx); err != nil {
			return fmt.Errorf("start connectivity monitor: %w", err)
		}
		defer stopQuietly("connectivity monitor", monitor.Stop)
		if err := poller.Start(ctx); err != nil {
			return fmt.Errorf("start evidence poller: %w", err)
		}
		defer stopQuietly("evidence poller", poller.Stop)

		fmt.Fprintln(out, "Watching; press Ctrl+C to stop.")
		<-ctx.Done()

		flushCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), e.timeout)
		defer cancel()
		e.sync.Flush(flushCtx)
		return nil
	})
}

func stopQuietly(name string, stop func() error) {
	if err := stop(); err != nil {
		logger.Warn("failed to stop "+name, zap.Error(err))
	}
}
