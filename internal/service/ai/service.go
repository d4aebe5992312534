package ai

import (
	"context"
	"fmt"

	"medbot/internal/config"
	"medbot/internal/models"

	"github.com/cloudwego/eino-ext/components/model/claude"
	"github.com/cloudwego/eino-ext/components/model/gemini"
	"github.com/cloudwego/eino-ext/components/model/openai"
	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"google.golang.org/genai"
)

// GroqBaseURL is Groq's OpenAI-compatible endpoint.
const GroqBaseURL = "https://api.groq.com/openai/v1"

// claudeMaxTokens is required up front by the claude client; per-call options
// still apply.
const claudeMaxTokens = 1000

var defaultModels = map[string]string{
	config.ProviderGroq:   "llama-3.1-70b-versatile",
	config.ProviderOpenAI: "gpt-4o-mini",
	config.ProviderClaude: "claude-3-5-haiku-latest",
	config.ProviderGemini: "gemini-2.0-flash",
}

// DefaultModel returns the model used for provider when none is configured.
func DefaultModel(provider string) string {
	return defaultModels[provider]
}

// NewChatModel builds the streaming chat model for the configured provider.
func NewChatModel(ctx context.Context, cfg config.ProviderConfig) (model.BaseChatModel, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("api key for provider %s not configured", cfg.Name)
	}
	modelName := cfg.Model
	if modelName == "" {
		modelName = DefaultModel(cfg.Name)
	}

	var (
		chatModel model.BaseChatModel
		err       error
	)
	switch cfg.Name {
	case config.ProviderGroq, config.ProviderOpenAI:
		baseURL := cfg.BaseURL
		if baseURL == "" && cfg.Name == config.ProviderGroq {
			baseURL = GroqBaseURL
		}
		chatModel, err = openai.NewChatModel(ctx, &openai.ChatModelConfig{
			BaseURL: baseURL,
			Model:   modelName,
			APIKey:  cfg.APIKey,
		})
	case config.ProviderGemini:
		var client *genai.Client
		client, err = genai.NewClient(ctx, &genai.ClientConfig{
			APIKey:  cfg.APIKey,
			Backend: genai.BackendGeminiAPI,
		})
		if err != nil {
			return nil, fmt.Errorf("create gemini client: %w", err)
		}
		chatModel, err = gemini.NewChatModel(ctx, &gemini.Config{
			Client: client,
			Model:  modelName,
		})
	case config.ProviderClaude:
		var baseURLPtr *string
		if cfg.BaseURL != "" {
			baseURLPtr = &cfg.BaseURL
		}
		chatModel, err = claude.NewChatModel(ctx, &claude.Config{
			APIKey:    cfg.APIKey,
			Model:     modelName,
			BaseURL:   baseURLPtr,
			MaxTokens: claudeMaxTokens,
		})
	default:
		return nil, fmt.Errorf("invalid provider: %s", cfg.Name)
	}
	if err != nil {
		return nil, fmt.Errorf("init %s chat model: %w", cfg.Name, err)
	}
	return chatModel, nil
}

// ConvertMessages prepends the system prompt to the conversation and maps it to
// eino messages. Unknown roles are sent as user turns.
func ConvertMessages(systemPrompt string, history []models.Message) []*schema.Message {
	messages := make([]*schema.Message, 0, len(history)+1)
	messages = append(messages, &schema.Message{
		Role:    schema.System,
		Content: systemPrompt,
	})
	for _, msg := range history {
		var role schema.RoleType
		switch msg.Role {
		case models.RoleUser:
			role = schema.User
		case models.RoleAssistant:
			role = schema.Assistant
		case models.RoleSystem:
			role = schema.System
		default:
			role = schema.User
		}

		messages = append(messages, &schema.Message{
			Role:    role,
			Content: msg.Content,
		})
	}
	return messages
}
