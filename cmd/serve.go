package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ralph-ui/ralph/internal/agent"
	"github.com/ralph-ui/ralph/internal/config"
	"github.com/ralph-ui/ralph/internal/events"
	"github.com/ralph-ui/ralph/internal/orchestrator"
	"github.com/ralph-ui/ralph/internal/ptyreg"
	"github.com/ralph-ui/ralph/internal/recovery"
	"github.com/ralph-ui/ralph/internal/server"
	"github.com/spf13/cobra"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP/WebSocket server",
	Long: `Start the ralph HTTP/WebSocket server for the current project.

Runs startup recovery first (reclaiming any state left behind by a
crashed process), then serves /health, /api/version, /api/invoke,
/ws/events, and /ws/pty endpoints. When the RALPH_SERVER_TOKEN
environment variable is set, every route but /health requires it as a
bearer token; when it is unset, the server prints a warning and accepts
unauthenticated requests.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", ":7842", "address to listen on")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cwd, _ := os.Getwd()
	projectRoot, err := config.FindProjectRoot(cwd)
	if err != nil {
		return fmt.Errorf("not in a ralph project")
	}

	token := os.Getenv("RALPH_SERVER_TOKEN")
	if token == "" {
		printWarn("RALPH_SERVER_TOKEN is not set; the server will accept unauthenticated requests")
	}

	broadcaster := events.NewInProcess()
	registry := ptyreg.NewRegistry(30 * time.Minute)
	stopSweep := registry.StartSweeper(time.Minute)
	defer stopSweep()

	report, err := recovery.Run(projectRoot, recovery.Options{Broadcaster: broadcaster})
	if err != nil {
		return fmt.Errorf("startup recovery: %w", err)
	}
	if report.SessionsPaused > 0 || report.ExecutionsRecovered > 0 || report.AgentsIdled > 0 {
		printInfo(fmt.Sprintf("recovered %d session(s), %d execution(s), %d agent(s)",
			report.SessionsPaused, report.ExecutionsRecovered, report.AgentsIdled))
	}

	srv := server.New(token, broadcaster, registry)
	srv.HandleInvoke("run_prd", newRunPRDHandler(projectRoot, broadcaster))

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	printSuccess(fmt.Sprintf("listening on %s", serveAddr))
	if err := srv.Listen(ctx, serveAddr); err != nil {
		return fmt.Errorf("server: %w", err)
	}

	registry.Shutdown()
	return nil
}

// runPRDArgs is the /api/invoke "run_prd" command's argument shape.
type runPRDArgs struct {
	PRD           string `json:"prd"`
	Agent         string `json:"agent"`
	Model         string `json:"model"`
	TargetBranch  string `json:"target_branch"`
	MaxConcurrent int    `json:"max_concurrent"`
}

type runPRDResult struct {
	Started bool   `json:"started"`
	PRD     string `json:"prd"`
}

// newRunPRDHandler builds the "run_prd" /api/invoke command: it hands a
// .ralph-ui PRD to the Parallel Orchestrator and runs it to completion
// in the background, publishing progress over the same Broadcaster the
// /ws/events route streams, the way cmd/run.go's --prd path drives the
// same Orchestrator from the CLI.
func newRunPRDHandler(projectRoot string, broadcaster events.Broadcaster) server.InvokeHandler {
	return func(ctx context.Context, raw json.RawMessage) (any, error) {
		var args runPRDArgs
		if err := json.Unmarshal(raw, &args); err != nil {
			return nil, fmt.Errorf("invalid run_prd args: %w", err)
		}
		if args.PRD == "" {
			return nil, fmt.Errorf("run_prd: prd is required")
		}

		kind := args.Agent
		if kind == "" {
			kind = "claude"
		}
		plugin, err := agent.Get(agent.Kind(kind))
		if err != nil {
			return nil, err
		}

		targetBranch := args.TargetBranch
		if targetBranch == "" {
			targetBranch = "main"
		}

		orchCfg := config.DefaultOrchestratorConfig()
		if globalCfg, err := config.LoadGlobalConfig(); err == nil && globalCfg != nil && globalCfg.Orchestrator.MaxConcurrentWorktrees > 0 {
			orchCfg = globalCfg.Orchestrator
		}
		if args.MaxConcurrent > 0 {
			orchCfg.MaxConcurrentWorktrees = args.MaxConcurrent
		}

		orch := orchestrator.New(projectRoot, targetBranch, args.PRD, plugin, "<promise>COMPLETE</promise>", orchCfg)
		orch.Broadcaster = broadcaster

		// The HTTP request's context ends when the response is written;
		// the orchestrator run must outlive it, so it gets its own.
		go func() {
			if runErr := orch.Run(context.Background()); runErr != nil && runErr != orchestrator.ErrNoReadyStories {
				broadcaster.Publish(events.Event{
					Type:    events.TypeStatusChanged,
					Payload: map[string]any{"prd": args.PRD, "error": runErr.Error()},
				})
			}
		}()

		return runPRDResult{Started: true, PRD: args.PRD}, nil
	}
}
