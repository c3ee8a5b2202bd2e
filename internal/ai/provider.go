// Package ai wraps the hosted LLM providers that back the chatbot's
// free-form fallback. Every provider answers one question at a time
// with the same campus-assistant system prompt.
package ai

import (
	"context"
	"fmt"
	"strings"
)

// systemPrompt keeps the providers on topic and short.
const systemPrompt = `You are a helpful campus assistant for a university attendance system.
Answer student questions about attendance, exams, policies and campus facilities.
Keep answers short and factual. If the question is outside campus life, say you
can only help with campus topics.`

const maxAnswerTokens = 300

// Provider is one hosted LLM backend.
type Provider interface {
	// Name identifies the provider's model for logging.
	Name() string
	// Answer returns a short free-form answer to the question.
	Answer(ctx context.Context, question string) (string, error)
}

// Config selects and authenticates a provider.
type Config struct {
	Provider     string
	OpenAIToken  string
	GeminiAPIKey string
	AnthropicKey string
}

// New builds the provider named in cfg. An empty provider name means
// the fallback is disabled; New returns nil, nil in that case.
func New(ctx context.Context, cfg Config) (Provider, error) {
	switch strings.ToLower(cfg.Provider) {
	case "":
		return nil, nil
	case "openai":
		if cfg.OpenAIToken == "" {
			return nil, fmt.Errorf("openai provider requires OPENAI_API_TOKEN")
		}
		return NewOpenAIProvider(cfg.OpenAIToken), nil
	case "gemini":
		if cfg.GeminiAPIKey == "" {
			return nil, fmt.Errorf("gemini provider requires GEMINI_API_KEY")
		}
		return NewGeminiProvider(ctx, cfg.GeminiAPIKey)
	case "anthropic":
		if cfg.AnthropicKey == "" {
			return nil, fmt.Errorf("anthropic provider requires ANTHROPIC_API_KEY")
		}
		return NewAnthropicProvider(cfg.AnthropicKey), nil
	default:
		return nil, fmt.Errorf("unknown ai provider %q (openai, gemini, anthropic)", cfg.Provider)
	}
}
