package main

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/alphabot-ai/feedline/internal/config"
)

var (
	flagEnvFile string
	flagAPIURL  string
	flagVerbose bool
)

var rootCmd = &cobra.Command{
	Use:           "feedline [command] [flags]",
	Short:         "feedline: a thin client for the social feed API",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return config.LoadEnvFile(flagEnvFile)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagEnvFile, "env-file", ".env", "file to preload environment variables from")
	rootCmd.PersistentFlags().StringVar(&flagAPIURL, "api", "", "API base URL (default $FEEDLINE_API_URL or "+config.DefaultAPIURL+")")
	rootCmd.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "log requests to stderr")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, color.New(color.FgHiRed, color.Bold).Sprint("Error: ")+err.Error())
		os.Exit(1)
	}
}

// loadConfig applies command-line overrides on top of the environment.
func loadConfig() config.Config {
	cfg := config.Load()
	if flagAPIURL != "" {
		cfg.APIURL = flagAPIURL
	}
	if flagVerbose {
		cfg.Log.Level = "debug"
	}
	return cfg
}
