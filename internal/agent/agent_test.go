package agent

import "testing"

func TestRegistryHasAllSevenAgentKinds(t *testing.T) {
	kinds := []Kind{KindClaude, KindOpencode, KindCursor, KindCodex, KindGemini, KindQwen, KindDroid}
	for _, k := range kinds {
		if _, err := Get(k); err != nil {
			t.Errorf("expected plugin registered for %s: %v", k, err)
		}
	}
}

func TestGetUnknownKind(t *testing.T) {
	if _, err := Get(Kind("nonexistent")); err == nil {
		t.Error("expected error for unregistered kind")
	}
}

func TestClaudeParseOutputSystemInit(t *testing.T) {
	p, _ := Get(KindClaude)
	evt := p.ParseOutput(`{"type":"system","model":"claude-sonnet-4-20250514"}`)
	if evt.Type != EventSystemInit || evt.Model != "claude-sonnet-4-20250514" {
		t.Errorf("unexpected event: %+v", evt)
	}
}

func TestClaudeParseOutputAssistantText(t *testing.T) {
	p, _ := Get(KindClaude)
	evt := p.ParseOutput(`{"type":"assistant","message":{"content":[{"type":"text","text":"hello"}]}}`)
	if evt.Type != EventAssistantText || evt.Text != "hello" {
		t.Errorf("unexpected event: %+v", evt)
	}
}

func TestClaudeParseOutputFallsBackToRaw(t *testing.T) {
	p, _ := Get(KindClaude)
	evt := p.ParseOutput("not json at all")
	if evt.Type != EventRaw || evt.Text != "not json at all" {
		t.Errorf("unexpected event: %+v", evt)
	}
}

func TestCursorParseOutputAlwaysRaw(t *testing.T) {
	p, _ := Get(KindCursor)
	evt := p.ParseOutput(`{"type":"text"}`)
	if evt.Type != EventRaw {
		t.Errorf("expected cursor output to be opaque, got %+v", evt)
	}
}
