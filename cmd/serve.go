package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/ilnaes/ownpad/internal/config"
	"github.com/ilnaes/ownpad/internal/server"
	"github.com/spf13/cobra"
)

var envFile string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the room server",
	Long:  `Serve rooms over HTTP and websockets. Settings come from OWNPAD_* environment variables and the env file.`,
	Args:  cobra.NoArgs,
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringVar(&envFile, "env-file", ".env", "Env file to load before reading the environment")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(envFile)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return server.Run(ctx, cfg)
}
