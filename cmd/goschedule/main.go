package main

import (
	"fmt"
	"os"

	"github.com/ignatij/goschedule/internal/cli"
	"github.com/ignatij/goschedule/internal/config"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:          "goschedule",
	Short:        "Dependency-aware construction scheduling",
	SilenceUsage: true,
}

func main() {
	v := config.New("")
	rootCmd.PersistentFlags().String("config", "", "config file (default .goschedule.yaml)")
	cobra.OnInitialize(func() {
		if cfgFile, _ := rootCmd.Flags().GetString("config"); cfgFile != "" {
			v.SetConfigFile(cfgFile)
		}
	})
	cli.SetupCLI(rootCmd, v)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
