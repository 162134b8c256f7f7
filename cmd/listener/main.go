// Command listener connects to a minechat server, prints every message and
// appends it to a local history file, reconnecting until interrupted.
package main

import (
	"context"
	"fmt"
	"os"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/pankaj/minechat/config"
	"github.com/pankaj/minechat/listener"
	"github.com/pankaj/minechat/logger"
	"github.com/pankaj/minechat/shutdown"
)

var version = "0.1.0"

var rootCmd = &cobra.Command{
	Use:   "listener",
	Short: "Listen to a minechat server and keep the chat history",
	Long: `Connects to a minechat server, prints every message to stdout and appends
it to a history file. Reconnects with exponential backoff after network
failures and stops cleanly on Ctrl+C.

Every flag can also be set through a MINECHAT_* environment variable
(for example MINECHAT_HOST) or a .env file. Flags take precedence.`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
	Args:          cobra.NoArgs,
	RunE:          runListener,
}

func init() {
	config.RegisterFlags(rootCmd.Flags())
}

func main() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func runListener(cmd *cobra.Command, _ []string) error {
	envFile, err := cmd.Flags().GetString(config.KeyEnvFile)
	if err != nil {
		return err
	}
	if err := config.LoadDotenv(envFile); err != nil {
		return err
	}
	cfg, err := config.Load(cmd.Flags())
	if err != nil {
		return err
	}
	if err := logger.Configure(cfg.LogLevel, cfg.LogFile); err != nil {
		return err
	}
	defer logger.Close()

	coord := shutdown.New(cmd.Context())
	coord.Watch(os.Interrupt, syscall.SIGTERM)
	defer coord.Stop()

	if err := listener.Run(coord.Context(), cfg, cmd.OutOrStdout()); err != nil {
		logger.Error("Listener failed", "error", err)
		return err
	}
	logger.Info("Stopped", "reason", coord.Reason())
	return nil
}
