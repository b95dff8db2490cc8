package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/orris-inc/livedesk/internal/interfaces/cli/migrate"
	"github.com/orris-inc/livedesk/internal/interfaces/cli/server"
	"github.com/orris-inc/livedesk/internal/interfaces/cli/token"
	"github.com/orris-inc/livedesk/internal/shared/version"
)

func main() {
	rootCmd := &cobra.Command{
		Use:     "livedesk",
		Short:   "LiveDesk - live chat support routing",
		Long:    `LiveDesk routes support conversations to human agents and bots, tracks presence and message delivery, and keeps agent availability current.`,
		Version: version.Get().String(),
	}

	rootCmd.AddCommand(
		server.NewCommand(),
		migrate.NewCommand(),
		token.NewCommand(),
	)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
