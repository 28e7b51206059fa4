package cmd

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/ralph-ui/ralph/internal/agent"
	"github.com/ralph-ui/ralph/internal/config"
	"github.com/ralph-ui/ralph/internal/events"
	"github.com/ralph-ui/ralph/internal/orchestrator"
	"github.com/ralph-ui/ralph/internal/prd"
	"github.com/ralph-ui/ralph/internal/session"
	"github.com/spf13/cobra"
)

var runCmd = &cobra.Command{
	Use:     "run",
	Aliases: []string{"r"},
	Short:   "Start the AI agent loop",
	Long: `Start the AI agent loop for the current project.

Without --prd, this drives the legacy single-worktree loop against
.ralph/prd.json: pick the highest priority incomplete story, implement
it, commit, and move on until every story passes or --max-iterations is
spent.

With --prd <name>, it hands a .ralph-ui/prds/<name>.json PRD to the
Parallel Orchestrator instead: stories run concurrently in their own
git worktrees (one Ralph Execution Engine each), racing competitively
where a story opts in, and merge back as they pass.`,
	RunE: runAgent,
}

var (
	maxIterations int
	dryRun        bool
	once          bool

	runPRDName    string
	agentKind     string
	agentModel    string
	targetBranch  string
	maxConcurrent int
)

func init() {
	runCmd.Flags().IntVarP(&maxIterations, "max-iterations", "m", 10, "Maximum iterations")
	runCmd.Flags().BoolVar(&dryRun, "dry-run", false, "Show what would be done without executing")
	runCmd.Flags().BoolVar(&once, "once", false, "Run single iteration (HITL mode)")
	runCmd.Flags().StringVarP(&agentKind, "agent", "a", "claude", "Agent driver: claude, opencode, cursor, codex, gemini, qwen, droid")
	runCmd.Flags().StringVar(&agentModel, "model", "", "Model override passed to the agent driver")
	runCmd.Flags().StringVar(&runPRDName, "prd", "", "Run this .ralph-ui PRD through the Parallel Orchestrator instead of the legacy loop")
	runCmd.Flags().StringVar(&targetBranch, "target-branch", "main", "Branch the orchestrator merges completed stories into (--prd mode only)")
	runCmd.Flags().IntVar(&maxConcurrent, "max-concurrent", 0, "Override max_concurrent_worktrees (0 keeps the global config.toml's [orchestrator] value, --prd mode only)")
	rootCmd.AddCommand(runCmd)
}

func runAgent(cmd *cobra.Command, args []string) error {
	cwd, _ := os.Getwd()
	projectRoot, err := config.FindProjectRoot(cwd)
	if err != nil {
		return fmt.Errorf("not in a ralph project")
	}

	if runPRDName != "" {
		return runPRDOrchestrator(projectRoot)
	}

	worktreeName := filepath.Base(projectRoot)

	// Load PRD
	p, err := prd.Load(projectRoot)
	if err != nil {
		return fmt.Errorf("failed to load PRD: %w", err)
	}
	if p == nil {
		return fmt.Errorf("no PRD found. Create one with 'ralph prd --new'")
	}

	// Check if already running
	loop, _ := config.GetLoop(worktreeName)
	if loop != nil && loop.Status == "running" {
		return fmt.Errorf("loop is already running")
	}

	// Load config (project config overrides global config)
	globalCfg, _ := config.LoadGlobalConfig()
	projectCfg, _ := config.LoadProjectConfig(projectRoot)

	model := "claude-sonnet-4-20250514" // ultimate fallback
	if globalCfg != nil && globalCfg.Defaults.Model != "" {
		model = globalCfg.Defaults.Model
	}
	if projectCfg != nil && projectCfg.Agent.Model != "" {
		model = projectCfg.Agent.Model
	}
	if agentModel != "" {
		model = agentModel
	}

	// Use config max_iterations if flag wasn't explicitly set
	if !cmd.Flags().Changed("max-iterations") {
		if projectCfg != nil && projectCfg.Agent.MaxIterations > 0 {
			maxIterations = projectCfg.Agent.MaxIterations
		} else if globalCfg != nil && globalCfg.Defaults.MaxIterations > 0 {
			maxIterations = globalCfg.Defaults.MaxIterations
		}
	}

	// --once overrides max-iterations
	if once {
		maxIterations = 1
	}

	plugin, err := agent.Get(agent.Kind(agentKind))
	if err != nil {
		return fmt.Errorf("unknown agent %q: %w", agentKind, err)
	}

	printInfo(fmt.Sprintf("Starting agent loop for %s", worktreeName))
	printInfo(fmt.Sprintf("Agent: %s | Model: %s | Max iterations: %d", agentKind, model, maxIterations))

	if dryRun {
		printWarn("Dry run mode - not executing")
		story := p.GetCurrentStory()
		if story != nil {
			fmt.Printf("\nWould work on: %s. %s\n", story.ID, story.Title)
		}
		return nil
	}

	if !plugin.IsAvailable() {
		printWarn(fmt.Sprintf("agent %q not found on PATH; iterations will fail to start", agentKind))
	}

	// Create conversations directory
	conversationsDir := filepath.Join(projectRoot, ".ralph", "conversations")
	os.MkdirAll(conversationsDir, 0755)

	// The legacy Session/Task state machine tracks this loop as a single
	// long-running task, independent of the PRD's own per-story state.
	sess := session.New(worktreeName, projectRoot)
	task := sess.AddTask(fmt.Sprintf("legacy loop: %s", p.Name))
	if err := session.ActivateExclusively(projectRoot, sess); err != nil {
		printWarn(fmt.Sprintf("activating session: %v", err))
	}
	task.Transition(session.TaskInProgress)
	sess.Save(projectRoot)

	// Update loop status
	if loop == nil {
		loop = &config.Loop{
			Name:   worktreeName,
			Path:   projectRoot,
			Status: "running",
		}
	}
	loop.Status = "running"
	loop.Started = time.Now().Format(time.RFC3339)
	loop.PID = os.Getpid()
	config.SetLoop(loop)

	// Setup signal handling
	ctx, cancel := context.WithCancel(context.Background())
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigChan
		printWarn("\nReceived interrupt, stopping...")
		cancel()
	}()
	defer signal.Stop(sigChan)

	// Session log (summary)
	sessionLog := filepath.Join(projectRoot, ".ralph", "session.log")
	logFile, _ := os.OpenFile(sessionLog, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	defer logFile.Close()

	fmt.Fprintf(logFile, "\n=== Session started %s ===\n", time.Now().Format(time.RFC3339))
	fmt.Fprintf(logFile, "Agent: %s\n", agentKind)

	loopFailed := false

	// Main loop
	for iteration := 1; iteration <= maxIterations; iteration++ {
		select {
		case <-ctx.Done():
			break
		default:
		}

		// Reload PRD each iteration (agent may have updated it)
		p, _ = prd.Load(projectRoot)
		if p == nil || p.IsComplete() {
			printSuccess("All stories complete!")
			break
		}

		fmt.Println()
		fmt.Println(strings.Repeat("━", 60))
		printInfo(fmt.Sprintf("Iteration %d/%d", iteration, maxIterations))
		printInfo(fmt.Sprintf("Progress: %s", p.Progress()))
		fmt.Println(strings.Repeat("━", 60))

		// Create conversation log for this iteration
		convLogPath := filepath.Join(conversationsDir, fmt.Sprintf("iteration-%d.md", iteration))
		convLog, err := os.Create(convLogPath)
		if err != nil {
			printError(fmt.Sprintf("Failed to create conversation log: %v", err))
			continue
		}

		outputLogPath := filepath.Join(conversationsDir, fmt.Sprintf("iteration-%d.log", iteration))
		outputLog, err := os.Create(outputLogPath)
		if err != nil {
			printError(fmt.Sprintf("Failed to create output log: %v", err))
			outputLog = nil
		}

		// Write conversation header
		fmt.Fprintf(convLog, "# Iteration %d\n\n", iteration)
		fmt.Fprintf(convLog, "**Started:** %s\n", time.Now().Format(time.RFC3339))
		fmt.Fprintf(convLog, "**Agent:** %s\n", agentKind)
		fmt.Fprintf(convLog, "**Progress before:** %s\n\n", p.Progress())

		fmt.Fprintf(logFile, "[%s] Iteration %d started\n", time.Now().Format("15:04:05"), iteration)

		// Run agent iteration
		err = runAgentIteration(ctx, projectRoot, p, convLog, outputLog)

		// Write conversation footer
		p, _ = prd.Load(projectRoot) // Reload to get updated progress
		progressAfter := "unknown"
		if p != nil {
			progressAfter = p.Progress()
		}
		fmt.Fprintf(convLog, "\n\n---\n")
		fmt.Fprintf(convLog, "**Ended:** %s\n", time.Now().Format(time.RFC3339))
		fmt.Fprintf(convLog, "**Progress after:** %s\n", progressAfter)
		convLog.Close()
		if outputLog != nil {
			outputLog.Close()
		}

		if err != nil {
			if ctx.Err() != nil {
				loopFailed = true
				break // Interrupted
			}
			printError(fmt.Sprintf("Agent iteration failed: %v", err))
			fmt.Fprintf(logFile, "[%s] Error: %v\n", time.Now().Format("15:04:05"), err)
			continue
		}

		fmt.Fprintf(logFile, "[%s] Iteration %d completed, progress: %s\n",
			time.Now().Format("15:04:05"), iteration, progressAfter)

		// Brief pause between iterations (unless single iteration)
		if iteration < maxIterations && !once {
			printInfo("Pausing 5s before next iteration...")
			time.Sleep(5 * time.Second)
		}
	}

	// Update loop status
	loop.Status = "stopped"
	loop.Stopped = time.Now().Format(time.RFC3339)
	loop.PID = 0
	config.SetLoop(loop)

	fmt.Fprintf(logFile, "=== Session ended %s ===\n", time.Now().Format(time.RFC3339))

	// Final status
	p, _ = prd.Load(projectRoot)
	if p != nil {
		fmt.Println()
		fmt.Println(strings.Repeat("━", 60))
		printInfo(fmt.Sprintf("Final progress: %s", p.Progress()))
		fmt.Println(strings.Repeat("━", 60))

		if p.IsComplete() {
			printSuccess("All stories complete! Creating pull request...")
			if err := createPullRequest(projectRoot, p); err != nil {
				printWarn(fmt.Sprintf("Failed to create PR: %v", err))
			}
		} else {
			loopFailed = true
		}
	}

	if loopFailed {
		task.Transition(session.TaskFailed)
		sess.Status = session.StatusFailed
	} else {
		task.Transition(session.TaskCompleted)
		sess.Status = session.StatusCompleted
	}
	sess.Save(projectRoot)

	return nil
}

// runPRDOrchestrator hands a .ralph-ui PRD to the Parallel Orchestrator,
// tracking the run as a single Task in the legacy Session state machine
// so both flows leave a consistent audit trail.
func runPRDOrchestrator(projectRoot string) error {
	plugin, err := agent.Get(agent.Kind(agentKind))
	if err != nil {
		return fmt.Errorf("unknown agent %q: %w", agentKind, err)
	}
	if !plugin.IsAvailable() {
		printWarn(fmt.Sprintf("agent %q not found on PATH; every story will fail until it is installed", agentKind))
	}

	orchCfg := config.DefaultOrchestratorConfig()
	if globalCfg, err := config.LoadGlobalConfig(); err == nil && globalCfg != nil {
		if globalCfg.Orchestrator.MaxConcurrentWorktrees > 0 {
			orchCfg = globalCfg.Orchestrator
		}
	}
	if maxConcurrent > 0 {
		orchCfg.MaxConcurrentWorktrees = maxConcurrent
	}

	worktreeName := filepath.Base(projectRoot)
	loopName := fmt.Sprintf("%s/%s", worktreeName, runPRDName)
	sess := session.New(loopName, projectRoot)
	task := sess.AddTask(fmt.Sprintf("orchestrate PRD %s", runPRDName))
	if err := session.ActivateExclusively(projectRoot, sess); err != nil {
		printWarn(fmt.Sprintf("activating session: %v", err))
	}
	task.Transition(session.TaskInProgress)
	sess.Save(projectRoot)

	// Register a Loop entry so "ralph stop"/"ralph list" can see and
	// signal this run the same way they do the legacy loop.
	orchLoop := &config.Loop{
		Name:    loopName,
		Path:    projectRoot,
		Project: worktreeName,
		Feature: runPRDName,
		Branch:  targetBranch,
		Status:  "running",
		PID:     os.Getpid(),
	}
	config.SetLoop(orchLoop)
	defer func() {
		orchLoop.PID = 0
		orchLoop.Status = "stopped"
		config.SetLoop(orchLoop)
	}()

	orch := orchestrator.New(projectRoot, targetBranch, runPRDName, plugin, "<promise>COMPLETE</promise>", orchCfg)
	orch.Broadcaster = events.NewInProcess()

	ctx, cancel := context.WithCancel(context.Background())
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		printWarn("\nReceived interrupt, stopping orchestrator...")
		cancel()
	}()
	defer signal.Stop(sigChan)

	printInfo(fmt.Sprintf("Orchestrating PRD %s with agent %s (max concurrent worktrees: %d)", runPRDName, agentKind, orchCfg.MaxConcurrentWorktrees))

	runErr := orch.Run(ctx)

	failed := 0
	for storyID, err := range orch.Results() {
		if err != nil {
			failed++
			printError(fmt.Sprintf("story %s failed: %v", storyID, err))
			continue
		}
		printSuccess(fmt.Sprintf("story %s passed", storyID))
	}

	if runErr != nil && runErr != orchestrator.ErrNoReadyStories {
		task.Transition(session.TaskFailed)
		sess.Status = session.StatusFailed
		sess.Save(projectRoot)
		return fmt.Errorf("orchestrator: %w", runErr)
	}
	if failed > 0 {
		task.Transition(session.TaskFailed)
		sess.Status = session.StatusFailed
		sess.Save(projectRoot)
		return fmt.Errorf("orchestrator: %d stor(ies) failed", failed)
	}

	task.Transition(session.TaskCompleted)
	sess.Status = session.StatusCompleted
	sess.Save(projectRoot)
	printSuccess(fmt.Sprintf("PRD %s complete", runPRDName))
	return nil
}

func createPullRequest(projectRoot string, p *prd.PRD) error {
	// Check if gh is available
	if _, err := exec.LookPath("gh"); err != nil {
		return fmt.Errorf("gh CLI not found - install from https://cli.github.com")
	}

	// Get current branch
	branchCmd := exec.Command("git", "rev-parse", "--abbrev-ref", "HEAD")
	branchCmd.Dir = projectRoot
	branchOut, err := branchCmd.Output()
	if err != nil {
		return fmt.Errorf("failed to get branch: %w", err)
	}
	branch := strings.TrimSpace(string(branchOut))

	// Don't create PR from main/master
	if branch == "main" || branch == "master" {
		return fmt.Errorf("cannot create PR from %s branch", branch)
	}

	// Check for uncommitted changes and commit them
	statusCmd := exec.Command("git", "status", "--porcelain")
	statusCmd.Dir = projectRoot
	statusOut, _ := statusCmd.Output()
	if len(statusOut) > 0 {
		// Add tracked files only (excludes .ralph/, prd.json if in .gitignore)
		addCmd := exec.Command("git", "add", "-u")
		addCmd.Dir = projectRoot
		addCmd.Run()

		// Also add new files except ralph artifacts
		addNewCmd := exec.Command("git", "add", "--all", "--", ".", ":!.ralph/", ":!.ralph-ui/", ":!prd.json", ":!.ralph-*")
		addNewCmd.Dir = projectRoot
		addNewCmd.Run()

		commitCmd := exec.Command("git", "commit", "-m", fmt.Sprintf("feat: complete %s", p.Name))
		commitCmd.Dir = projectRoot
		commitCmd.Run()
	}

	// Push branch
	printInfo("Pushing branch...")
	pushCmd := exec.Command("git", "push", "-u", "origin", branch)
	pushCmd.Dir = projectRoot
	pushCmd.Stdout = os.Stdout
	pushCmd.Stderr = os.Stderr
	if err := pushCmd.Run(); err != nil {
		return fmt.Errorf("failed to push: %w", err)
	}

	// Build PR body
	var body strings.Builder
	body.WriteString(fmt.Sprintf("## %s\n\n", p.Name))
	if p.Description != "" {
		body.WriteString(p.Description)
		body.WriteString("\n\n")
	}
	body.WriteString("## Stories completed\n")
	for _, story := range p.UserStories {
		body.WriteString(fmt.Sprintf("- ✅ %s\n", story.Title))
	}
	body.WriteString("\n_Generated by ralph_ 🤖")

	// Create PR
	printInfo("Creating pull request...")
	prCmd := exec.Command("gh", "pr", "create",
		"--title", p.Name,
		"--body", body.String(),
	)
	prCmd.Dir = projectRoot
	prCmd.Stdout = os.Stdout
	prCmd.Stderr = os.Stderr

	if err := prCmd.Run(); err != nil {
		return fmt.Errorf("failed to create PR: %w", err)
	}

	printSuccess("Pull request created!")
	return nil
}

// buildAgentPrompt creates the prompt that lets the agent choose and implement a story
func buildAgentPrompt(projectRoot string, p *prd.PRD) string {
	// Build stories list
	var storiesList strings.Builder
	for _, story := range p.UserStories {
		status := "⬜ INCOMPLETE"
		if story.Passes {
			status = "✅ COMPLETE"
		}
		storiesList.WriteString(fmt.Sprintf("- [%s] %s: %s\n", story.ID, status, story.Title))
		if story.Description != "" {
			storiesList.WriteString(fmt.Sprintf("  Description: %s\n", story.Description))
		}
		if len(story.AcceptanceCriteria) > 0 {
			storiesList.WriteString("  Criteria:\n")
			for _, c := range story.AcceptanceCriteria {
				storiesList.WriteString(fmt.Sprintf("    - %s\n", c))
			}
		}
	}

	return fmt.Sprintf(`You are an autonomous coding agent working through a PRD (Product Requirement Document).

## Working Directory
%s

## PRD: %s
%s

## User Stories
%s

## Your Task
1. Review the PRD and choose the HIGHEST PRIORITY incomplete story (passes: false)
   - Prioritize: architectural decisions > integrations > core features > polish
   - NOT necessarily the first in the list - use your judgment

2. Implement that ONE story fully:
   - Write clean, production-quality code
   - Follow existing patterns in the codebase
   - Write tests to verify acceptance criteria
   - Run all feedback loops (tests, types, lint)

3. After implementation:
   - Run tests and fix any failures
   - Commit changes with message: feat(story-ID): description
   - Update .ralph/prd.json to set passes: true for the completed story

4. Append to .ralph/progress.txt:
   - Story completed
   - Key decisions made
   - Files changed
   - Any notes for next iteration

## Rules
- Work on ONE story per iteration
- Do NOT commit if tests fail
- Be thorough - a story is only "done" when fully working
- If blocked, document in progress.txt and move to next story

## Completion Check
If ALL stories have passes: true, output exactly:
<promise>COMPLETE</promise>

Now read .ralph/prd.json and .ralph/progress.txt, then begin work.
`, projectRoot, p.Name, p.Description, storiesList.String())
}

// runAgentIteration builds one iteration's prompt, dispatches it through
// the selected Agent Driver plugin (internal/agent), and streams its
// output to both the per-iteration markdown conversation log and a raw
// output log.
func runAgentIteration(ctx context.Context, projectRoot string, p *prd.PRD, convLog, outputLog *os.File) error {
	prompt := buildAgentPrompt(projectRoot, p)

	fmt.Fprintf(convLog, "## Prompt\n\n```\n%s\n```\n\n", prompt)
	fmt.Fprintf(convLog, "## Agent Output\n\n```\n")

	plugin, err := agent.Get(agent.Kind(agentKind))
	if err != nil {
		return fmt.Errorf("unknown agent %q: %w", agentKind, err)
	}

	printInfo(fmt.Sprintf("[%s]", agentKind))
	cmd, err := plugin.BuildCommand(ctx, agent.Spec{
		AgentType:    plugin.AgentType(),
		TaskID:       p.Name,
		WorktreePath: projectRoot,
		Prompt:       prompt,
		Model:        agentModel,
		SpawnMode:    agent.SpawnPiped,
	})
	if err != nil {
		return fmt.Errorf("building agent command: %w", err)
	}

	// Capture output
	stdout, _ := cmd.StdoutPipe()
	stderr, _ := cmd.StderrPipe()

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed to start agent: %w", err)
	}

	done := make(chan struct{}, 2)
	go streamLines(stdout, os.Stdout, convLog, outputLog, "", done)
	go streamLines(stderr, os.Stderr, convLog, outputLog, "[ERR] ", done)
	<-done
	<-done

	err = cmd.Wait()
	fmt.Fprintf(convLog, "```\n")

	return err
}

// streamLines reads r line by line, echoing each line as-is to echo,
// appending it (convLog-prefixed) to the markdown conversation log, and
// appending it raw to outputLog when non-nil. Meant to run in its own
// goroutine; signals done on completion.
func streamLines(r io.Reader, echo io.Writer, convLog, outputLog *os.File, convPrefix string, done chan<- struct{}) {
	defer func() { done <- struct{}{} }()
	if r == nil {
		return
	}
	reader := bufio.NewReader(r)
	for {
		line, err := reader.ReadString('\n')
		if len(line) > 0 {
			fmt.Fprint(echo, line)
			convLog.WriteString(convPrefix + line)
			if outputLog != nil {
				outputLog.WriteString(line)
			}
		}
		if err != nil {
			if err != io.EOF {
				fmt.Fprintf(os.Stderr, "stream read error: %v\n", err)
			}
			return
		}
	}
}

func findStory(p *prd.PRD, id string) *prd.Story {
	for i := range p.UserStories {
		if p.UserStories[i].ID == id {
			return &p.UserStories[i]
		}
	}
	return nil
}
