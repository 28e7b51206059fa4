package config

import "time"

// RetryConfig controls the Ralph Execution Engine's exponential backoff
// policy. Defaults mirror spec.md's retry table: start at 1s, double each
// attempt, cap at 30s.
type RetryConfig struct {
	MaxAttempts    int     `toml:"max_attempts" json:"max_attempts"`
	InitialDelayMs int     `toml:"initial_delay_ms" json:"initial_delay_ms"`
	Multiplier     float64 `toml:"multiplier" json:"multiplier"`
	MaxDelayMs     int     `toml:"max_delay_ms" json:"max_delay_ms"`
}

// DefaultRetryConfig returns the engine's default backoff policy.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:    3,
		InitialDelayMs: 1000,
		Multiplier:     2.0,
		MaxDelayMs:     30000,
	}
}

// Delay returns the backoff delay before the given attempt (1-indexed: the
// delay that precedes attempt number n, n>=2). Attempt 1 never waits.
func (r RetryConfig) Delay(attempt int) time.Duration {
	if attempt <= 1 {
		return 0
	}
	delayMs := float64(r.InitialDelayMs)
	for i := 1; i < attempt-1; i++ {
		delayMs *= r.Multiplier
	}
	if delayMs > float64(r.MaxDelayMs) {
		delayMs = float64(r.MaxDelayMs)
	}
	return time.Duration(delayMs) * time.Millisecond
}

// EngineConfig collects the runtime tunables the Ralph Execution Engine and
// File Store need beyond what lives in ralph.toml, unifying the two
// differently-named 120s stale-lock constants into one value per spec.md's
// open-question resolution.
type EngineConfig struct {
	StaleThresholdSecs int         `toml:"stale_threshold_secs" json:"stale_threshold_secs"`
	HeartbeatSecs      int         `toml:"heartbeat_secs" json:"heartbeat_secs"`
	PtyIdleTimeoutSecs int         `toml:"pty_idle_timeout_secs" json:"pty_idle_timeout_secs"`
	Retry              RetryConfig `toml:"retry" json:"retry"`
}

// DefaultEngineConfig returns spec.md's defaults: a 120s stale threshold
// shared by locks and execution heartbeats, a 30s heartbeat cadence, and a
// 30-minute PTY idle expiry.
func DefaultEngineConfig() EngineConfig {
	return EngineConfig{
		StaleThresholdSecs: 120,
		HeartbeatSecs:      30,
		PtyIdleTimeoutSecs: 1800,
		Retry:              DefaultRetryConfig(),
	}
}

func (c EngineConfig) StaleThreshold() time.Duration {
	return time.Duration(c.StaleThresholdSecs) * time.Second
}

func (c EngineConfig) HeartbeatInterval() time.Duration {
	return time.Duration(c.HeartbeatSecs) * time.Second
}

func (c EngineConfig) PtyIdleTimeout() time.Duration {
	return time.Duration(c.PtyIdleTimeoutSecs) * time.Second
}

// SelectionStrategy names a CompetitiveSelectionStrategy for the Parallel
// Orchestrator, per spec.md §4.5's table.
type SelectionStrategy string

const (
	FirstComplete SelectionStrategy = "first_complete"
	BestCoverage  SelectionStrategy = "best_coverage"
	MinimalCode   SelectionStrategy = "minimal_code"
	HumanReview   SelectionStrategy = "human_review"
)

// CompetitiveVariant names one of the N agent/model combinations the
// orchestrator races against the same story when competitive execution is
// enabled for it, per spec.md §4.5.
type CompetitiveVariant struct {
	AgentType string `toml:"agent_type" json:"agent_type"`
	Model     string `toml:"model" json:"model,omitempty"`
}

// OrchestratorConfig controls the Parallel Orchestrator's worktree pool and
// competitive-attempt selection.
type OrchestratorConfig struct {
	MaxConcurrentWorktrees int               `toml:"max_concurrent_worktrees" json:"max_concurrent_worktrees"`
	SelectionStrategy      SelectionStrategy `toml:"selection_strategy" json:"selection_strategy"`
	AutoResolveConflicts   bool              `toml:"auto_resolve_conflicts" json:"auto_resolve_conflicts"`

	// CompetitiveTag marks a story as eligible for competitive execution:
	// any story carrying this tag runs CompetitiveVariants in parallel
	// worktrees instead of a single execution.
	CompetitiveTag       string               `toml:"competitive_tag" json:"competitive_tag"`
	CompetitiveVariants  []CompetitiveVariant `toml:"competitive_variants" json:"competitive_variants,omitempty"`
	SelectionTimeoutSecs int                  `toml:"selection_timeout_secs" json:"selection_timeout_secs"`
}

func DefaultOrchestratorConfig() OrchestratorConfig {
	return OrchestratorConfig{
		MaxConcurrentWorktrees: 3,
		SelectionStrategy:      FirstComplete,
		AutoResolveConflicts:   false,
		CompetitiveTag:         "competitive",
		SelectionTimeoutSecs:   600,
	}
}

// SelectionTimeout returns the configured force-a-decision timeout,
// falling back to spec.md §4.5's 600s default when unset.
func (c OrchestratorConfig) SelectionTimeout() time.Duration {
	if c.SelectionTimeoutSecs <= 0 {
		return 600 * time.Second
	}
	return time.Duration(c.SelectionTimeoutSecs) * time.Second
}
