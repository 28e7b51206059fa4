package prd

import "fmt"

// ValidateDAG reports an error if the stories' dependency graph contains a
// cycle or references an unknown story ID. Dependencies must form a DAG
// per the story model's invariant.
func (p *PRD) ValidateDAG() error {
	byID := make(map[string]*Story, len(p.UserStories))
	for i := range p.UserStories {
		byID[p.UserStories[i].ID] = &p.UserStories[i]
	}
	for _, s := range p.UserStories {
		for _, dep := range s.Dependencies {
			if _, ok := byID[dep]; !ok {
				return fmt.Errorf("story %s depends on unknown story %s", s.ID, dep)
			}
		}
	}

	const (
		unvisited = 0
		visiting  = 1
		done      = 2
	)
	state := make(map[string]int, len(p.UserStories))

	var visit func(id string) error
	visit = func(id string) error {
		switch state[id] {
		case done:
			return nil
		case visiting:
			return fmt.Errorf("dependency cycle detected at story %s", id)
		}
		state[id] = visiting
		for _, dep := range byID[id].Dependencies {
			if err := visit(dep); err != nil {
				return err
			}
		}
		state[id] = done
		return nil
	}

	for _, s := range p.UserStories {
		if err := visit(s.ID); err != nil {
			return err
		}
	}
	return nil
}

// ReadyStories returns the stories that are not yet passing and whose
// dependencies have all passed, in PRD order. The Parallel Orchestrator
// selects from this set to acquire worktrees.
func (p *PRD) ReadyStories() []Story {
	passes := make(map[string]bool, len(p.UserStories))
	for _, s := range p.UserStories {
		passes[s.ID] = s.Passes
	}

	var ready []Story
	for _, s := range p.UserStories {
		if s.Passes {
			continue
		}
		blocked := false
		for _, dep := range s.Dependencies {
			if !passes[dep] {
				blocked = true
				break
			}
		}
		if !blocked {
			ready = append(ready, s)
		}
	}
	return ready
}

// IsReady reports whether a single story's dependencies have all passed.
func (p *PRD) IsReady(storyID string) bool {
	for _, s := range p.ReadyStories() {
		if s.ID == storyID {
			return true
		}
	}
	return false
}
