// Command chatcli is a terminal client for the drone site chat.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"drone_chat/internal/chatclient"
	"drone_chat/pkg/logger"
)

var version = "1.0.0"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "chatcli",
	Short: "Terminal client for the drone site chat",
	Long: `chatcli talks to the chat server as a site visitor or as an operator.

Examples:
  chatcli status
  chatcli chat --name Alice --email alice@example.com
  chatcli login --email ops@drones.test --password ...
  chatcli chat --token <access token>
  chatcli inbox --token <access token>`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.AddCommand(chatCmd)
	rootCmd.AddCommand(loginCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(inboxCmd)

	rootCmd.PersistentFlags().String("server", "http://localhost:8080", "chat server base url")
	rootCmd.PersistentFlags().String("log-level", "warn", "log level")
}

func newAPI(cmd *cobra.Command) *chatclient.API {
	server, _ := cmd.Flags().GetString("server")
	return chatclient.NewAPI(server)
}

func newLogger(cmd *cobra.Command) logger.Logger {
	level, _ := cmd.Flags().GetString("log-level")
	return logger.New(level).With("component", "chatcli")
}
