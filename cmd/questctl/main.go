// Command questctl drives the local-first quest engine from a terminal:
// progress, claims and evidence live in a local store and are pushed to the
// review authority whenever it is reachable.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"agriquest/config"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	// Global flags
	serverURL string
	storePath string
	lang      string
	verbose   bool

	cfg    config.Client
	logger *zap.Logger
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "questctl",
	Short: "Farm quests, points and evidence review from the terminal",
	Long: `questctl tracks farm quests offline-first.

Every change is applied to the local store immediately and queued for the
review authority; the queue is pushed whenever the authority is reachable.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.LoadClient()
		if err != nil {
			return err
		}
		if serverURL != "" {
			c.ServerURL = serverURL
		}
		if storePath != "" {
			c.StorePath = storePath
		}
		level := c.LogLevel
		if verbose {
			level = "debug"
		}
		l, err := config.NewLogger(level)
		if err != nil {
			return err
		}
		cfg, logger = c, l
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", "", "Review authority URL (or set AGRIQUEST_SERVER_URL)")
	rootCmd.PersistentFlags().StringVar(&storePath, "store", "", "Local store file (or set AGRIQUEST_STORE)")
	rootCmd.PersistentFlags().StringVar(&lang, "lang", "en", "Language tag used to format numbers")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")

	statusCmd.Flags().Bool("steps", false, "List every step")
	submitCmd.Flags().String("image", "", "Image file to attach")
	submitCmd.Flags().String("image-url", "", "Already hosted image to attach")
	submitCmd.Flags().String("notes", "", "Notes for the reviewer")
	adminListCmd.Flags().String("status", "pending", "pending, approved, rejected or all")

	adminCmd.AddCommand(adminListCmd, adminDecideCmd, adminResetCmd, adminDeleteCmd)
	rootCmd.AddCommand(
		statusCmd,
		toggleCmd,
		claimCmd,
		eventCmd,
		submitCmd,
		syncCmd,
		reconcileCmd,
		watchCmd,
		resetCmd,
		adminCmd,
	)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}
