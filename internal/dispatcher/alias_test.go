package dispatcher

import "testing"

func TestAliasMap_OverrideWinsOverDefault(t *testing.T) {
	a := NewAliasMap(map[string]string{"claude-opus": "custom.model.v2"})

	if got := a.Resolve("claude-opus"); got != "custom.model.v2" {
		t.Errorf("Resolve(claude-opus) = %q, want override", got)
	}
	if got := a.Resolve("claude-sonnet"); got != "us.anthropic.claude-sonnet-4-6-v1" {
		t.Errorf("Resolve(claude-sonnet) = %q, want default", got)
	}
}

func TestAliasMap_UnknownAliasPassesThrough(t *testing.T) {
	a := NewAliasMap(nil)
	if got := a.Resolve("some-canonical-id-already"); got != "some-canonical-id-already" {
		t.Errorf("Resolve(unknown) = %q, want passthrough", got)
	}
}

func TestAliasMap_All_MergesOverridesAndDefaults(t *testing.T) {
	a := NewAliasMap(map[string]string{"my-alias": "foo.bar"})
	all := a.All()

	if all["my-alias"] != "foo.bar" {
		t.Errorf("All()[my-alias] = %q, want foo.bar", all["my-alias"])
	}
	if all["claude-haiku"] != "us.anthropic.claude-haiku-4-6-v1" {
		t.Errorf("All()[claude-haiku] = %q, want default", all["claude-haiku"])
	}
}

func TestIsAnthropicFamily(t *testing.T) {
	cases := map[string]bool{
		"us.anthropic.claude-sonnet-4-6-v1": true,
		"anthropic.claude-v2":               true,
		"gpt-5":                             false,
		"moonshotai.kimi-k2.5":              false,
	}
	for model, want := range cases {
		if got := IsAnthropicFamily(model); got != want {
			t.Errorf("IsAnthropicFamily(%q) = %v, want %v", model, got, want)
		}
	}
}
