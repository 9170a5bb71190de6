package cmd

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/kerbaras/mangago/pkg/config"
)

var (
	cfgFile string
	appCfg  *config.App
)

var rootCmd = &cobra.Command{
	Use:   "mangago",
	Short: "Download manga chapters as images, PDF, CBZ or EPUB",
	Long:  "Search for manga, download chapters with bounded concurrency, and assemble them into images, PDF, CBZ or EPUB artifacts",
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default $HOME/.mangago/config.yaml)")

	rootCmd.AddCommand(searchCmd)
	rootCmd.AddCommand(downloadCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(convertCmd)
}

func initConfig() {
	app, err := config.Load(cfgFile)
	cobra.CheckErr(err)
	appCfg = app
}

func truncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return s[:maxLen]
	}
	return s[:maxLen-3] + "..."
}
