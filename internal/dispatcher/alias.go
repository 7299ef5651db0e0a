package dispatcher

import "strings"

// defaultAliasMap maps short model names accepted on the wire to the
// canonical upstream model id. It mirrors the default mapping the original
// router process shipped with; deployments override or extend it via
// config's model_alias_map.
var defaultAliasMap = map[string]string{
	"claude-opus":    "us.anthropic.claude-opus-4-6-v1",
	"claude-sonnet":  "us.anthropic.claude-sonnet-4-6-v1",
	"claude-haiku":   "us.anthropic.claude-haiku-4-6-v1",
	"kimi-k25":       "moonshotai.kimi-k2.5",
	"gpt-5":          "gpt-5",
	"gpt-5-mini":     "gpt-5-mini",
}

// AliasMap resolves short model names to canonical upstream ids, falling
// back to the built-in table for any name the override map doesn't carry.
type AliasMap struct {
	overrides map[string]string
}

func NewAliasMap(overrides map[string]string) *AliasMap {
	return &AliasMap{overrides: overrides}
}

// Resolve returns the canonical model id for name. If neither the override
// map nor the built-in table has an entry, name is passed through
// unchanged — it may already be a canonical id.
func (a *AliasMap) Resolve(name string) string {
	if a.overrides != nil {
		if canonical, ok := a.overrides[name]; ok {
			return canonical
		}
	}
	if canonical, ok := defaultAliasMap[name]; ok {
		return canonical
	}
	return name
}

// All returns the merged alias table (built-in entries overridden by any
// configured override), for enumeration by GET /v1/models.
func (a *AliasMap) All() map[string]string {
	merged := make(map[string]string, len(defaultAliasMap)+len(a.overrides))
	for alias, canonical := range defaultAliasMap {
		merged[alias] = canonical
	}
	for alias, canonical := range a.overrides {
		merged[alias] = canonical
	}
	return merged
}

// IsAnthropicFamily reports whether a canonical model id should be routed
// to the Bedrock Converse backend rather than the OpenAI-HTTP backend.
func IsAnthropicFamily(canonicalModel string) bool {
	return strings.HasPrefix(canonicalModel, "anthropic.") ||
		strings.HasPrefix(canonicalModel, "us.anthropic.")
}
