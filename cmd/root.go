package cmd

import (
	"github.com/spf13/cobra"
)

var (
	// configFile is set by the --config flag
	configFile string
)

var rootCmd = &cobra.Command{
	Use:   "realmkeeper",
	Short: "Realmkeeper catalogues realms, nooks and the treasures stored in them",
	Long: `Realmkeeper is the backend of the realm catalogue. Realms are geofenced
areas, nooks are points inside a realm and treasures are the items kept in a
nook. It serves the HTTP API and ships maintenance tools.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "config.yaml", "path to the YAML config file")

	rootCmd.AddCommand(newServeCmd())
	rootCmd.AddCommand(newMigrateCmd())
	rootCmd.AddCommand(newDistanceCmd())
	rootCmd.AddCommand(newTokenCmd())
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}
