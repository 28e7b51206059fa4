package agent

import (
	"encoding/json"
	"os/exec"
	"strings"
	"sync"
)

// ParseModelList tries to interpret a list-models command's output as a
// JSON array of {id, name?, provider?}, and falls back to treating each
// non-empty line as a bare model ID when JSON parsing fails.
func ParseModelList(output []byte) []ModelInfo {
	var parsed []ModelInfo
	if err := json.Unmarshal(output, &parsed); err == nil {
		for i := range parsed {
			fillModelHeuristics(&parsed[i])
		}
		return parsed
	}

	var models []ModelInfo
	for _, line := range strings.Split(string(output), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		m := ModelInfo{ID: line}
		fillModelHeuristics(&m)
		models = append(models, m)
	}
	return models
}

// fillModelHeuristics derives Name and Provider from an ID when a plugin
// (or the fallback line parser) didn't already supply them.
func fillModelHeuristics(m *ModelInfo) {
	lower := strings.ToLower(m.ID)
	if m.Provider == "" {
		switch {
		case strings.HasPrefix(lower, "claude"):
			m.Provider = "anthropic"
		case strings.HasPrefix(lower, "gpt"), strings.HasPrefix(lower, "o1"), strings.HasPrefix(lower, "text-"):
			m.Provider = "openai"
		case strings.HasPrefix(lower, "gemini"):
			m.Provider = "google"
		default:
			m.Provider = "unknown"
		}
	}
	if m.Name == "" {
		m.Name = titleCaseKebab(m.ID)
	}
}

// titleCaseKebab renders a kebab/snake-ish model ID as a display name,
// e.g. "gpt-4o-mini" -> "Gpt 4o Mini".
func titleCaseKebab(id string) string {
	replaced := strings.NewReplacer("-", " ", "_", " ").Replace(id)
	words := strings.Fields(replaced)
	for i, w := range words {
		if w == "" {
			continue
		}
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}

// modelCache memoizes discovery results per agent kind so repeated
// iterations don't re-invoke a list-models subprocess every time.
type modelCache struct {
	mu    sync.Mutex
	byKind map[Kind][]ModelInfo
}

var discoveryCache = &modelCache{byKind: make(map[Kind][]ModelInfo)}

func (c *modelCache) get(kind Kind) ([]ModelInfo, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	models, ok := c.byKind[kind]
	return models, ok
}

func (c *modelCache) set(kind Kind, models []ModelInfo) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.byKind[kind] = models
}

// runListModels runs a list-models command and parses its output,
// returning the fallback list if the command isn't available or fails.
func runListModels(kind Kind, name string, args []string, fallback []ModelInfo) []ModelInfo {
	if cached, ok := discoveryCache.get(kind); ok {
		return cached
	}

	if _, err := exec.LookPath(name); err != nil {
		discoveryCache.set(kind, fallback)
		return fallback
	}

	out, err := exec.Command(name, args...).Output()
	if err != nil {
		discoveryCache.set(kind, fallback)
		return fallback
	}

	models := ParseModelList(out)
	if len(models) == 0 {
		models = fallback
	}
	discoveryCache.set(kind, models)
	return models
}
