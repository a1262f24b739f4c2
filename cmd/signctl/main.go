package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/Lllllllleong/contractsigning/internal/config"
	"github.com/spf13/cobra"
)

var configPath string

func main() {
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, nil)))

	rootCmd := &cobra.Command{
		Use:           "signctl",
		Short:         "Operate the contract signing service",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "YAML config file (defaults to $SIGNING_CONFIG)")

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(stampCmd())
	rootCmd.AddCommand(inspectCmd())
	rootCmd.AddCommand(sweepCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func loadConfig() (*config.Config, error) {
	return config.Load(configPath)
}
