package cmd

import (
	"fmt"
	"os"

	"github.com/ralph-ui/ralph/internal/config"
	"github.com/ralph-ui/ralph/internal/loop"
	"github.com/ralph-ui/ralph/internal/prd"
	"github.com/ralph-ui/ralph/internal/session"
	"github.com/spf13/cobra"
)

var listCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List loops, PRDs and sessions",
	Long: `List all registered legacy loops, plus — when run inside a ralph
project — the .ralph-ui PRD store and any Session/Task state left by
"ralph run --prd".`,
	RunE: runList,
}

func init() {
	rootCmd.AddCommand(listCmd)
}

func runList(cmd *cobra.Command, args []string) error {
	loops, err := loop.ListAll()
	if err != nil {
		return fmt.Errorf("failed to list loops: %w", err)
	}

	if len(loops) == 0 {
		fmt.Println("No loops registered.")
	}
	for _, l := range loops {
		status := loop.GetStatus(l)
		icon := "⚫"
		if status == "running" {
			icon = "🟢"
		}
		fmt.Printf("%s %s\n", icon, l.Name)
	}

	cwd, _ := os.Getwd()
	projectRoot, err := config.FindProjectRoot(cwd)
	if err != nil {
		return nil
	}

	if prds, err := prd.ListStore(projectRoot); err == nil && len(prds) > 0 {
		fmt.Println("\nPRDs (.ralph-ui/prds):")
		for _, entry := range prds {
			fmt.Printf("  📄 %s\n", entry.ID)
		}
	}

	if sessions, err := session.List(projectRoot); err == nil && len(sessions) > 0 {
		fmt.Println("\nSessions (.ralph-ui/sessions):")
		for _, entry := range sessions {
			fmt.Printf("  🧵 %s\n", entry.ID)
		}
	}

	return nil
}
