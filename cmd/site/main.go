package main

import (
	"log"
	"os"

	"github.com/spf13/cobra"

	"github.com/averagehelper/site/cmd/site/commands"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "site",
		Short: "average.name site server",
		Long:  `site serves average.name over HTTP and Gemini, and builds the Ways capsule content from Markdown.`,
	}

	// Add commands
	rootCmd.AddCommand(commands.NewServeCommand())
	rootCmd.AddCommand(commands.NewWaysCommand())
	rootCmd.AddCommand(commands.NewDomainsCommand())
	rootCmd.AddCommand(commands.NewVersionCommand())

	// Execute root command
	if err := rootCmd.Execute(); err != nil {
		log.Printf("Command execution failed: %v", err)
		os.Exit(1)
	}
}
