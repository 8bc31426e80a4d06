// Provider construction. The config package owns environment lookups
// (API keys, model overrides); callers resolve settings there and hand
// explicit values to the builder:
//
//	providerType, err := llm.ParseProviderType(cfg.LLM.Provider)
//	provider, err := providerType.
//	    Model(cfg.LLM.Model).
//	    MaxTokens(cfg.LLM.MaxTokens).
//	    Temperature(float32(cfg.LLM.Temperature)).
//	    APIKey(key)

package llm

import (
	"fmt"
	"strings"
)

// ProviderType identifies a supported LLM backend.
type ProviderType int

const (
	// ProviderOpenAI is the OpenAI backend.
	ProviderOpenAI ProviderType = iota
	// ProviderAnthropic is the Anthropic backend.
	ProviderAnthropic
	// ProviderDeepSeek is the DeepSeek backend.
	ProviderDeepSeek
	// ProviderGemini is the Google Gemini backend.
	ProviderGemini
)

// String returns the canonical provider name.
func (p ProviderType) String() string {
	switch p {
	case ProviderOpenAI:
		return "openai"
	case ProviderAnthropic:
		return "anthropic"
	case ProviderDeepSeek:
		return "deepseek"
	case ProviderGemini:
		return "gemini"
	default:
		return "unknown"
	}
}

// ParseProviderType resolves a provider name, case-insensitively. The
// accepted aliases ("claude", "google", "gpt") match the config package.
func ParseProviderType(s string) (ProviderType, error) {
	switch strings.ToLower(s) {
	case "openai", "gpt":
		return ProviderOpenAI, nil
	case "anthropic", "claude":
		return ProviderAnthropic, nil
	case "deepseek":
		return ProviderDeepSeek, nil
	case "gemini", "google":
		return ProviderGemini, nil
	default:
		return 0, fmt.Errorf("unknown provider: %s", s)
	}
}

// DefaultModel returns the model used when the builder is given none.
// The values mirror the config package's per-provider defaults.
func (p ProviderType) DefaultModel() string {
	switch p {
	case ProviderOpenAI:
		return ModelOpenAIGPT4o
	case ProviderAnthropic:
		return ModelAnthropicClaudeSonnet4
	case ProviderDeepSeek:
		return ModelDeepSeekChat
	case ProviderGemini:
		return ModelGeminiFlash25
	default:
		return ""
	}
}

// Model starts a builder for this provider. An empty model selects the
// provider default.
func (p ProviderType) Model(model string) *ProviderBuilder {
	return &ProviderBuilder{providerType: p, model: model}
}

// ProviderBuilder accumulates provider settings before construction.
type ProviderBuilder struct {
	providerType ProviderType
	model        string
	maxTokens    uint32
	temperature  *float32
}

// MaxTokens caps response length. Zero keeps the default of 4096.
func (b *ProviderBuilder) MaxTokens(tokens uint32) *ProviderBuilder {
	b.maxTokens = tokens
	return b
}

// Temperature sets the sampling temperature. Unset defaults to 0.7.
func (b *ProviderBuilder) Temperature(temp float32) *ProviderBuilder {
	b.temperature = &temp
	return b
}

// APIKey builds the provider with an explicit key, applying defaults
// for anything left unset.
func (b *ProviderBuilder) APIKey(key string) (Provider, error) {
	model := b.model
	if model == "" {
		model = b.providerType.DefaultModel()
	}

	maxTokens := b.maxTokens
	if maxTokens == 0 {
		maxTokens = 4096
	}

	temperature := float32(0.7)
	if b.temperature != nil {
		temperature = *b.temperature
	}

	switch b.providerType {
	case ProviderOpenAI:
		return NewOpenAIProvider(key, model, maxTokens, temperature), nil
	case ProviderAnthropic:
		return NewAnthropicProvider(key, model, maxTokens, temperature), nil
	case ProviderDeepSeek:
		return NewDeepSeekProvider(key, model, maxTokens, temperature), nil
	case ProviderGemini:
		return NewGeminiProvider(key, model, maxTokens, temperature), nil
	default:
		return nil, fmt.Errorf("unknown provider type: %v", b.providerType)
	}
}

// Per-provider default models, kept in step with the config package.
const (
	ModelOpenAIGPT4o            = "gpt-4o"
	ModelAnthropicClaudeSonnet4 = "claude-sonnet-4-20250514"
	ModelDeepSeekChat           = "deepseek-chat"
	ModelGeminiFlash25          = "gemini-2.5-flash"
)
