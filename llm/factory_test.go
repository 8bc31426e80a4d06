package llm

import (
	"strings"
	"testing"

	"github.com/richinex/symposium/config"
)

func TestParseProviderType(t *testing.T) {
	cases := []struct {
		in   string
		want ProviderType
	}{
		{"openai", ProviderOpenAI},
		{"OpenAI", ProviderOpenAI},
		{"gpt", ProviderOpenAI},
		{"anthropic", ProviderAnthropic},
		{"Claude", ProviderAnthropic},
		{"deepseek", ProviderDeepSeek},
		{"gemini", ProviderGemini},
		{"google", ProviderGemini},
	}
	for _, tc := range cases {
		got, err := ParseProviderType(tc.in)
		if err != nil {
			t.Errorf("%q: unexpected error: %v", tc.in, err)
			continue
		}
		if got != tc.want {
			t.Errorf("%q: expected %v, got %v", tc.in, tc.want, got)
		}
	}

	if _, err := ParseProviderType("mistral"); err == nil || !strings.Contains(err.Error(), "unknown provider") {
		t.Errorf("expected an unknown provider error, got %v", err)
	}
}

// The builder's fallback models and the config package's defaults are
// maintained by hand in two places; they must not drift apart.
func TestDefaultModelsMatchConfig(t *testing.T) {
	for _, key := range []string{"SYMPOSIUM_MODEL", "OPENAI_MODEL", "ANTHROPIC_MODEL", "DEEPSEEK_MODEL", "GEMINI_MODEL"} {
		t.Setenv(key, "")
	}

	for _, p := range []ProviderType{ProviderOpenAI, ProviderAnthropic, ProviderDeepSeek, ProviderGemini} {
		want, err := config.ModelFor(p.String())
		if err != nil {
			t.Fatalf("%s: config lookup failed: %v", p, err)
		}
		if got := p.DefaultModel(); got != want {
			t.Errorf("%s: builder default %q, config default %q", p, got, want)
		}
	}
}

func TestBuilderAppliesDefaults(t *testing.T) {
	provider, err := ProviderAnthropic.Model("").APIKey("test-key")
	if err != nil {
		t.Fatalf("build failed: %v", err)
	}
	if provider.Name() != "anthropic" {
		t.Errorf("expected anthropic, got %s", provider.Name())
	}
	if provider.Model() != ModelAnthropicClaudeSonnet4 {
		t.Errorf("expected the default model, got %s", provider.Model())
	}
}

func TestBuilderHonorsExplicitSettings(t *testing.T) {
	provider, err := ProviderOpenAI.
		Model("gpt-4o-mini").
		MaxTokens(512).
		Temperature(0.1).
		APIKey("test-key")
	if err != nil {
		t.Fatalf("build failed: %v", err)
	}
	if provider.Name() != "openai" || provider.Model() != "gpt-4o-mini" {
		t.Errorf("unexpected provider: %s %s", provider.Name(), provider.Model())
	}
}

func TestBuilderConstructsEveryProvider(t *testing.T) {
	for _, p := range []ProviderType{ProviderOpenAI, ProviderAnthropic, ProviderDeepSeek, ProviderGemini} {
		provider, err := p.Model("").APIKey("test-key")
		if err != nil {
			t.Fatalf("%s: build failed: %v", p, err)
		}
		if provider.Name() != p.String() {
			t.Errorf("expected %s, got %s", p, provider.Name())
		}
		if provider.Model() != p.DefaultModel() {
			t.Errorf("%s: expected default model %s, got %s", p, p.DefaultModel(), provider.Model())
		}
	}
}
