// Package ai generates in-character replies with the Gemini API.
package ai

import (
	"context"
	"fmt"
	"strings"
	"time"

	"google.golang.org/genai"

	"persona-nft/backend/pkg/logger"
	"persona-nft/backend/pkg/resilience"
)

// Config selects the model and sampling parameters
type Config struct {
	APIKey          string
	Model           string
	Temperature     float32
	MaxOutputTokens int32
	Timeout         time.Duration
}

// DefaultConfig returns the model settings used by the service
func DefaultConfig() Config {
	return Config{
		Model:           "gemini-1.5-flash",
		Temperature:     0.9,
		MaxOutputTokens: 200,
		Timeout:         30 * time.Second,
	}
}

// contentGenerator is implemented by *genai.Models
type contentGenerator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// GeminiGenerator implements Generator on the Gemini API
type GeminiGenerator struct {
	models  contentGenerator
	cfg     Config
	breaker *resilience.CircuitBreaker
	log     *logger.Logger
}

// NewGeminiGenerator creates a Gemini client. With no API key it still returns a
// generator whose every call fails with ErrMissingAPIKey.
func NewGeminiGenerator(ctx context.Context, cfg Config, log *logger.Logger) (*GeminiGenerator, error) {
	if log == nil {
		log = logger.Discard()
	}
	cfg = withDefaults(cfg)

	if cfg.APIKey == "" {
		log.Warn("Gemini API key is not configured; chat replies will fall back")
		return newGenerator(nil, cfg, log), nil
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}
	return newGenerator(client.Models, cfg, log), nil
}

func newGenerator(models contentGenerator, cfg Config, log *logger.Logger) *GeminiGenerator {
	breakerCfg := resilience.DefaultBreakerConfig("gemini")
	breakerCfg.IsFailure = func(err error) bool {
		switch Classify(err) {
		case CategoryGenericError, CategoryQuotaExceeded:
			return true
		default:
			return false
		}
	}

	return &GeminiGenerator{
		models:  models,
		cfg:     cfg,
		breaker: resilience.NewCircuitBreaker(breakerCfg, log),
		log:     log.Component("gemini"),
	}
}

func withDefaults(cfg Config) Config {
	def := DefaultConfig()
	if cfg.Model == "" {
		cfg.Model = def.Model
	}
	if cfg.Temperature <= 0 {
		cfg.Temperature = def.Temperature
	}
	if cfg.MaxOutputTokens <= 0 {
		cfg.MaxOutputTokens = def.MaxOutputTokens
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = def.Timeout
	}
	return cfg
}

// GenerateReply sends the persona prompt, the history and the new message as one request
func (g *GeminiGenerator) GenerateReply(ctx context.Context, req Request) (string, error) {
	if g.models == nil {
		return "", ErrMissingAPIKey
	}

	ctx, cancel := context.WithTimeout(ctx, g.cfg.Timeout)
	defer cancel()

	config := &genai.GenerateContentConfig{
		Temperature:     genai.Ptr(g.cfg.Temperature),
		MaxOutputTokens: g.cfg.MaxOutputTokens,
	}
	if req.SystemPrompt != "" {
		config.SystemInstruction = genai.NewContentFromText(req.SystemPrompt, genai.RoleUser)
	}

	contents := make([]*genai.Content, 0, len(req.History)+1)
	for _, turn := range req.History {
		role := genai.Role(genai.RoleUser)
		if turn.Speaker == SpeakerCharacter {
			role = genai.RoleModel
		}
		contents = append(contents, genai.NewContentFromText(turn.Text, role))
	}
	contents = append(contents, genai.NewContentFromText(req.Message, genai.RoleUser))

	var reply string
	start := time.Now()
	err := g.breaker.Execute(ctx, func(ctx context.Context) error {
		res, err := g.models.GenerateContent(ctx, g.cfg.Model, contents, config)
		if err != nil {
			return err
		}
		reply, err = replyText(res)
		return err
	})
	if err != nil {
		g.log.Warn("Generation failed", "model", g.cfg.Model, "category", string(Classify(err)), "error", err.Error())
		return "", err
	}

	g.log.Debug("Generation completed", "model", g.cfg.Model, "latency_ms", time.Since(start).Milliseconds())
	return reply, nil
}

func replyText(res *genai.GenerateContentResponse) (string, error) {
	if res == nil {
		return "", ErrEmptyResponse
	}
	if res.PromptFeedback != nil && res.PromptFeedback.BlockReason != "" {
		return "", fmt.Errorf("%w: prompt %s", ErrBlocked, res.PromptFeedback.BlockReason)
	}
	if len(res.Candidates) == 0 || res.Candidates[0] == nil {
		return "", ErrEmptyResponse
	}

	cand := res.Candidates[0]
	if cand.FinishReason == genai.FinishReasonSafety {
		return "", fmt.Errorf("%w: candidate finished with %s", ErrBlocked, cand.FinishReason)
	}
	if cand.Content == nil {
		return "", ErrEmptyResponse
	}

	var b strings.Builder
	for _, part := range cand.Content.Parts {
		if part != nil {
			b.WriteString(part.Text)
		}
	}
	text := strings.TrimSpace(b.String())
	if text == "" {
		return "", ErrEmptyResponse
	}
	return text, nil
}
