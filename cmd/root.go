package cmd

import (
	"github.com/spf13/cobra"

	configx "github.com/tanpawarit/Chative-Travel-Router/pkg/config"
	logx "github.com/tanpawarit/Chative-Travel-Router/pkg/logger"
)

func Execute() error {
	return newRootCmd().Execute()
}

func newRootCmd() *cobra.Command {
	var envFile string

	rootCmd := &cobra.Command{
		Use:           "travel-router",
		Short:         "Conversational travel planner: routes each turn across hotel, activity and dining workers",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
			if envFile == "" {
				return nil
			}
			configx.SetEnvFile(envFile)
			logCfg, err := configx.New[logx.Config]("LOG")
			if err != nil {
				return err
			}
			logx.Init(*logCfg)
			return nil
		},
	}
	rootCmd.PersistentFlags().StringVar(&envFile, "env", "", "env file to load before reading configuration (default ./.env)")

	rootCmd.AddCommand(
		newChatCmd(),
		newServeCmd(),
		newCheckpointsCmd(),
	)

	return rootCmd
}
