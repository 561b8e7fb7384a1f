package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	serverURL string
	token     string
)

var rootCmd = &cobra.Command{
	Use:          "memora-cli",
	Short:        "A CLI client for the Memora collection service",
	Long:         `A command-line interface for collecting web pages, building per-category knowledge bases and asking them questions.`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", envOr("MEMORA_SERVER", "http://localhost:8080"), "base URL of the collection service")
	rootCmd.PersistentFlags().StringVar(&token, "token", os.Getenv("MEMORA_TOKEN"), "bearer token (defaults to $MEMORA_TOKEN)")
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
