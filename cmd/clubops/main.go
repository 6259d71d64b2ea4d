package main

import (
	"os"

	"github.com/spf13/cobra"
)

var version = "dev"

var (
	noColor    bool
	configPath string
)

var rootCmd = &cobra.Command{
	Use:   "clubops",
	Short: "Operations backend for an unmanned golf simulator facility",
	Long: `clubops runs the operations backend for Clubhouse 24/7 Golf:
issue triage against the facility knowledge base, optional LLM analysis,
maintenance tickets, notifications, and the staff dashboard.`,
	SilenceUsage: true,
}

func main() {
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable colored output")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to config file (default ./config.yaml)")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(stopCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(versionCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the clubops version",
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Printf("clubops version %s\n", version)
	},
}
