package relay

import (
	"context"
	"fmt"

	"google.golang.org/genai"

	"github.com/tailored-agentic-units/gateway/core/chat"
)

const (
	defaultModel       = "gemini-2.0-flash"
	defaultMaxTokens   = 512
	defaultTemperature = 0.7
)

// Config holds generation parameters for the Gemini-backed Generator.
type Config struct {
	Model       string  `json:"model,omitempty"`
	APIKey      string  `json:"api_key,omitempty"` // Usually left empty and supplied via GEMINI_API_KEY.
	MaxTokens   int32   `json:"max_tokens,omitempty"`
	Temperature float32 `json:"temperature,omitempty"`
}

// DefaultConfig returns the default generation configuration.
func DefaultConfig() Config {
	return Config{
		Model:       defaultModel,
		MaxTokens:   defaultMaxTokens,
		Temperature: defaultTemperature,
	}
}

// Merge applies non-zero values from source into c.
func (c *Config) Merge(source *Config) {
	if source.Model != "" {
		c.Model = source.Model
	}
	if source.APIKey != "" {
		c.APIKey = source.APIKey
	}
	if source.MaxTokens > 0 {
		c.MaxTokens = source.MaxTokens
	}
	if source.Temperature > 0 {
		c.Temperature = source.Temperature
	}
}

// GeminiGenerator calls the Gemini API with the conversation history as
// generation context and the resolved system prompt as the system
// instruction.
type GeminiGenerator struct {
	client *genai.Client
	cfg    Config
}

// NewGeminiGenerator creates a Generator backed by the Gemini API. A
// missing API key is a configuration error, reported before any call is
// attempted.
func NewGeminiGenerator(ctx context.Context, cfg Config) (*GeminiGenerator, error) {
	if cfg.APIKey == "" {
		return nil, ErrNoAPIKey
	}
	if cfg.Model == "" {
		cfg.Model = defaultModel
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}

	return &GeminiGenerator{client: client, cfg: cfg}, nil
}

func (g *GeminiGenerator) Generate(ctx context.Context, turns []chat.Turn, systemPrompt string) (string, error) {
	contents := make([]*genai.Content, 0, len(turns))
	for _, turn := range turns {
		contents = append(contents, genai.NewContentFromText(turn.Text, genai.Role(turn.Role)))
	}

	genCfg := &genai.GenerateContentConfig{
		MaxOutputTokens: g.cfg.MaxTokens,
		Temperature:     genai.Ptr(g.cfg.Temperature),
	}
	if systemPrompt != "" {
		genCfg.SystemInstruction = genai.NewContentFromText(systemPrompt, genai.RoleUser)
	}

	resp, err := g.client.Models.GenerateContent(ctx, g.cfg.Model, contents, genCfg)
	if err != nil {
		return "", fmt.Errorf("gemini generate: %w", err)
	}

	text := resp.Text()
	if text == "" {
		return "", fmt.Errorf("gemini returned an empty candidate")
	}
	return text, nil
}
