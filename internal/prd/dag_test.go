package prd

import "testing"

func TestReadyStories(t *testing.T) {
	p := &PRD{
		UserStories: []Story{
			{ID: "a", Passes: true},
			{ID: "b", Dependencies: []string{"a"}},
			{ID: "c", Dependencies: []string{"b"}},
			{ID: "d"},
		},
	}

	ready := p.ReadyStories()
	ids := map[string]bool{}
	for _, s := range ready {
		ids[s.ID] = true
	}

	if !ids["b"] || !ids["d"] {
		t.Errorf("expected b and d ready, got %+v", ready)
	}
	if ids["c"] {
		t.Error("c should not be ready: its dependency b has not passed")
	}
	if ids["a"] {
		t.Error("a should not appear in ready set: it already passes")
	}
}

func TestValidateDAGDetectsCycle(t *testing.T) {
	p := &PRD{
		UserStories: []Story{
			{ID: "a", Dependencies: []string{"b"}},
			{ID: "b", Dependencies: []string{"a"}},
		},
	}
	if err := p.ValidateDAG(); err == nil {
		t.Error("expected cycle to be detected")
	}
}

func TestValidateDAGDetectsUnknownDependency(t *testing.T) {
	p := &PRD{
		UserStories: []Story{
			{ID: "a", Dependencies: []string{"missing"}},
		},
	}
	if err := p.ValidateDAG(); err == nil {
		t.Error("expected unknown dependency to be rejected")
	}
}

func TestValidateDAGAcceptsDiamond(t *testing.T) {
	p := &PRD{
		UserStories: []Story{
			{ID: "a"},
			{ID: "b", Dependencies: []string{"a"}},
			{ID: "c", Dependencies: []string{"a"}},
			{ID: "d", Dependencies: []string{"b", "c"}},
		},
	}
	if err := p.ValidateDAG(); err != nil {
		t.Errorf("expected diamond dependency graph to validate, got %v", err)
	}
}

func TestIsReady(t *testing.T) {
	p := &PRD{
		UserStories: []Story{
			{ID: "a", Passes: false},
			{ID: "b", Dependencies: []string{"a"}},
		},
	}
	if p.IsReady("b") {
		t.Error("b should not be ready while a hasn't passed")
	}
	if !p.IsReady("a") {
		t.Error("a has no dependencies and should be ready")
	}
}
