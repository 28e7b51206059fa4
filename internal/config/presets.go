package config

// AltProviderPreset describes a Claude-compatible third-party endpoint. The
// driver injects these as environment variables into the agent child
// process in place of talking to Anthropic directly.
type AltProviderPreset struct {
	Name        string
	BaseURL     string
	OpusModel   string
	SonnetModel string
	HaikuModel  string
}

// AltProviderPresets catalogs the known Claude-compatible endpoints. Keys
// match the `agent.provider` value in ralph.toml / the global config.
var AltProviderPresets = map[string]AltProviderPreset{
	"zai": {
		Name:        "Z.AI",
		BaseURL:     "https://api.z.ai/api/anthropic",
		OpusModel:   "glm-4.6",
		SonnetModel: "glm-4.6",
		HaikuModel:  "glm-4.5-air",
	},
	"minimax": {
		Name:        "MiniMax",
		BaseURL:     "https://api.minimax.io/anthropic",
		OpusModel:   "MiniMax-M2",
		SonnetModel: "MiniMax-M2",
		HaikuModel:  "MiniMax-M2",
	},
	"minimax-cn": {
		Name:        "MiniMax-CN",
		BaseURL:     "https://api.minimaxi.com/anthropic",
		OpusModel:   "MiniMax-M2",
		SonnetModel: "MiniMax-M2",
		HaikuModel:  "MiniMax-M2",
	},
}

// APITimeoutMsRecommended is the API_TIMEOUT_MS value the driver recommends
// alongside an alternative provider preset, since third-party endpoints are
// frequently slower than Anthropic's own.
const APITimeoutMsRecommended = "300000"

// EnvVars returns the child-process environment variables for this preset,
// given an auth token sourced from config or the environment.
func (p AltProviderPreset) EnvVars(authToken string) map[string]string {
	return map[string]string{
		"ANTHROPIC_BASE_URL":           p.BaseURL,
		"ANTHROPIC_AUTH_TOKEN":         authToken,
		"ANTHROPIC_DEFAULT_OPUS_MODEL": p.OpusModel,
		"ANTHROPIC_DEFAULT_SONNET_MODEL": p.SonnetModel,
		"ANTHROPIC_DEFAULT_HAIKU_MODEL":  p.HaikuModel,
		"API_TIMEOUT_MS":                 APITimeoutMsRecommended,
	}
}
