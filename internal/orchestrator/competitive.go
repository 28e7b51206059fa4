package orchestrator

import (
	"sort"
	"time"

	"github.com/ralph-ui/ralph/internal/config"
	"github.com/ralph-ui/ralph/internal/ralph"
)

// SelectWinner picks the winning CompetitiveAttempt per spec.md §4.5's
// scoring table. Only completed attempts (CompletedAt set) are eligible
// except under HumanReview, which this function never resolves on its
// own — callers must supply the operator's choice directly.
func SelectWinner(strategy config.SelectionStrategy, attempts []ralph.CompetitiveAttempt) *ralph.CompetitiveAttempt {
	var eligible []ralph.CompetitiveAttempt
	for _, a := range attempts {
		if a.CompletedAt != nil {
			eligible = append(eligible, a)
		}
	}
	if len(eligible) == 0 {
		return nil
	}

	switch strategy {
	case config.BestCoverage:
		sort.SliceStable(eligible, func(i, j int) bool {
			if eligible[i].CoveragePercent != eligible[j].CoveragePercent {
				return eligible[i].CoveragePercent > eligible[j].CoveragePercent
			}
			if eligible[i].StoriesComplete != eligible[j].StoriesComplete {
				return eligible[i].StoriesComplete > eligible[j].StoriesComplete
			}
			return eligible[i].CompletedAt.Before(*eligible[j].CompletedAt)
		})
	case config.MinimalCode:
		sort.SliceStable(eligible, func(i, j int) bool {
			if eligible[i].LinesChanged != eligible[j].LinesChanged {
				return eligible[i].LinesChanged < eligible[j].LinesChanged
			}
			if eligible[i].CoveragePercent != eligible[j].CoveragePercent {
				return eligible[i].CoveragePercent > eligible[j].CoveragePercent
			}
			return eligible[i].CompletedAt.Before(*eligible[j].CompletedAt)
		})
	case config.HumanReview:
		// No automatic winner; the caller surfaces all eligible
		// attempts to the operator and calls back with their pick.
		return nil
	case config.FirstComplete:
		fallthrough
	default:
		sort.SliceStable(eligible, func(i, j int) bool {
			if !eligible[i].CompletedAt.Equal(*eligible[j].CompletedAt) {
				return eligible[i].CompletedAt.Before(*eligible[j].CompletedAt)
			}
			return eligible[i].AttemptNumber < eligible[j].AttemptNumber
		})
	}

	winner := eligible[0]
	return &winner
}

// DefaultSelectionTimeout forces a winner decision even if not every
// attempt has finished, per spec.md §4.5.
const DefaultSelectionTimeout = 600 * time.Second
