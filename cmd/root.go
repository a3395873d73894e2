package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/nguyentranbao-ct/family-chat/internal/app"
	"github.com/nguyentranbao-ct/family-chat/internal/kafka"
	"github.com/nguyentranbao-ct/family-chat/internal/server"
	"github.com/nguyentranbao-ct/family-chat/pkg/logger"
)

var rootCmd = &cobra.Command{
	Use:           "family-chat",
	Short:         "Chat core of the family organizer",
	SilenceUsage:  true,
	SilenceErrors: true,
	Run: func(cmd *cobra.Command, args []string) {
		defer logger.Sync()
		app.Invoke(
			server.StartServer,
			kafka.StartConsumeMembershipEvents,
		).Run()
	},
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
