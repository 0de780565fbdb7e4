package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

// rootCmd represents the base command for the mailscribe application
var rootCmd = &cobra.Command{
	Use:   "mailscribe",
	Short: "MCP server for reading unread email and drafting replies",
	Long: `mailscribe is an MCP (Model Context Protocol) server that lets an AI
assistant read unread email from an IMAP inbox and author reply drafts.

Replies follow a writing-style guideline stored in a Google Doc and are
saved to the drafts folder - nothing is ever sent automatically.`,
	SilenceUsage: true,
}

// version will be set by main
var version = "dev"

// SetVersion sets the version for the root command
func SetVersion(v string) {
	version = v
	rootCmd.Version = v
}

// Execute is the main entry point for the CLI application
func Execute() {
	rootCmd.SetVersionTemplate(`{{printf "mailscribe version %s\n" .Version}}`)

	// If no subcommand is provided, run the serve command by default
	if len(os.Args) == 1 {
		os.Args = append(os.Args, "serve")
	}

	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.AddCommand(newServeCmd())
	rootCmd.AddCommand(newVersionCmd())
	rootCmd.AddCommand(newGenerateDocsCmd())
}
