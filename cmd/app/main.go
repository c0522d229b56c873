package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	Version = "dev"
	Commit  = "none"
)

func main() {
	var cfgPath string
	rootCmd := &cobra.Command{
		Use:           "pix-subscription",
		Short:         "Instant-payment checkout and subscription activation service",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVarP(&cfgPath, "config", "c", "config.yaml", "path to YAML config file")

	rootCmd.AddCommand(serveCmd(&cfgPath))
	rootCmd.AddCommand(migrateCmd(&cfgPath))
	rootCmd.AddCommand(plansCmd(&cfgPath))
	rootCmd.AddCommand(pollCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
