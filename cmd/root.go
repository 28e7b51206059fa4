package cmd

import (
	"fmt"
	"os"

	"github.com/ralph-ui/ralph/internal/config"
	"github.com/spf13/cobra"
)

var Version = "0.1.0"

var rootCmd = &cobra.Command{
	Use:   "ralph",
	Short: "Multi-agent AI coding orchestrator",
	Long: `ralph drives one or many AI coding agents against a project.

It helps you:
  - Create and manage git worktrees for features
  - Define PRDs (Product Requirement Documents) with user stories
  - Run a single agent in a tight iterate-until-done loop ("ralph run")
  - Fan a PRD's ready stories out across a worktree pool, merging each
    story serially as it passes ("ralph run --prd <name>")
  - Race competitively-tagged stories across several agent variants and
    pick a winner by coverage, speed, diff size, or human review
  - Monitor progress across multiple loops and sessions`,
	Version: Version,
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.CompletionOptions.DisableDefaultCmd = true
}

// Helper functions for output
func printSuccess(msg string) {
	fmt.Fprintf(os.Stdout, "\033[32m✓\033[0m %s\n", msg)
}

func printError(msg string) {
	fmt.Fprintf(os.Stderr, "\033[31m✗\033[0m %s\n", msg)
}

func printInfo(msg string) {
	fmt.Fprintf(os.Stdout, "\033[36mℹ\033[0m %s\n", msg)
}

func printWarn(msg string) {
	fmt.Fprintf(os.Stdout, "\033[33m⚠\033[0m %s\n", msg)
}

func printAvailableLoops() {
	registry, err := config.LoadLoops()
	if err != nil || len(registry.Loops) == 0 {
		fmt.Fprintln(os.Stderr, "  (no loops registered)")
		return
	}
	for _, loop := range registry.Loops {
		status := "⚫"
		if loop.Status == "running" {
			status = "🟢"
		}
		fmt.Fprintf(os.Stderr, "  %s %s\n", status, loop.Name)
	}
}
