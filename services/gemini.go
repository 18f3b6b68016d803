package services

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"net/http"
	"strings"
	"time"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/vnkhanh/scholar-ai-backend/logger"
	"github.com/vnkhanh/scholar-ai-backend/models"
)

// ErrMissingAPIKey is returned when neither the request nor the server
// configuration supplies a provider key.
var ErrMissingAPIKey = errors.New("no generation API key configured")

// GenerateOptions carries the per-request overrides sent by the client.
type GenerateOptions struct {
	APIKey string
	Model  string
}

type GuideRequest struct {
	Transcript string
	Goals      string
	Difficulty string
	ExamDate   string
	Options    GenerateOptions
}

type Generator interface {
	Generate(ctx context.Context, req GuideRequest) (models.StudyGuide, error)
	Replan(ctx context.Context, g models.StudyGuide, reason string, opts GenerateOptions) ([]models.ScheduleEntry, error)
	Motivate(ctx context.Context, completed, total int, opts GenerateOptions) (string, error)
}

type GeminiConfig struct {
	APIKey  string
	Model   string
	Timeout time.Duration
}

type completeFunc func(ctx context.Context, apiKey, model, prompt string) (string, error)

// GeminiGenerator calls the Gemini API in JSON response mode. A client is
// built per call because the key may be overridden per request.
type GeminiGenerator struct {
	cfg        GeminiConfig
	log        *logger.Logger
	retryDelay time.Duration
	complete   completeFunc
	shuffle    func(n int, swap func(i, j int))
}

func NewGeminiGenerator(cfg GeminiConfig, log *logger.Logger) *GeminiGenerator {
	if cfg.Model == "" {
		cfg.Model = "gemini-2.0-flash"
	}
	return &GeminiGenerator{
		cfg:        cfg,
		log:        logger.OrNop(log),
		retryDelay: time.Second,
		complete:   geminiComplete,
		shuffle:    rand.Shuffle,
	}
}

// HasKey reports whether a call with opts would have a key to use.
func (g *GeminiGenerator) HasKey(opts GenerateOptions) bool {
	return g.resolve(opts).APIKey != ""
}

func (g *GeminiGenerator) resolve(opts GenerateOptions) GenerateOptions {
	if strings.TrimSpace(opts.APIKey) == "" {
		opts.APIKey = g.cfg.APIKey
	}
	if strings.TrimSpace(opts.Model) == "" {
		opts.Model = g.cfg.Model
	}
	return opts
}

func (g *GeminiGenerator) Generate(ctx context.Context, req GuideRequest) (models.StudyGuide, error) {
	text, err := g.call(ctx, req.Options, BuildGuidePrompt(req))
	if err != nil {
		return models.StudyGuide{}, err
	}
	guide, err := ParseGuide(text)
	if err != nil {
		return models.StudyGuide{}, err
	}
	shuffleAnswers(guide.Quiz, g.shuffle)
	if len(guide.Warnings) > 0 {
		g.log.Warn("generation output had malformed entries", "dropped", len(guide.Warnings))
	}
	return guide, nil
}

func (g *GeminiGenerator) Replan(ctx context.Context, guide models.StudyGuide, reason string, opts GenerateOptions) ([]models.ScheduleEntry, error) {
	text, err := g.call(ctx, opts, BuildReplanPrompt(guide, reason))
	if err != nil {
		return nil, err
	}
	return parseSchedule(text)
}

func (g *GeminiGenerator) Motivate(ctx context.Context, completed, total int, opts GenerateOptions) (string, error) {
	text, err := g.call(ctx, opts, BuildMotivationPrompt(completed, total))
	if err != nil {
		return "", err
	}
	return parseMessage(text)
}

// call sends prompt once and retries a single time on transient errors.
func (g *GeminiGenerator) call(ctx context.Context, opts GenerateOptions, prompt string) (string, error) {
	opts = g.resolve(opts)
	if opts.APIKey == "" {
		return "", ErrMissingAPIKey
	}
	if g.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.cfg.Timeout)
		defer cancel()
	}

	text, err := g.complete(ctx, opts.APIKey, opts.Model, prompt)
	if err != nil && isTransient(err) && ctx.Err() == nil {
		g.log.Warn("transient generation error, retrying once", "model", opts.Model, "error", err)
		select {
		case <-ctx.Done():
			return "", fmt.Errorf("generation: %w", ctx.Err())
		case <-time.After(g.retryDelay):
		}
		text, err = g.complete(ctx, opts.APIKey, opts.Model, prompt)
	}
	if err != nil {
		return "", fmt.Errorf("generation: %w", err)
	}
	return text, nil
}

func isTransient(err error) bool {
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		switch apiErr.Code {
		case http.StatusTooManyRequests, http.StatusInternalServerError,
			http.StatusServiceUnavailable, http.StatusGatewayTimeout:
			return true
		}
		return false
	}
	if st, ok := status.FromError(err); ok {
		switch st.Code() {
		case codes.Unavailable, codes.ResourceExhausted, codes.DeadlineExceeded, codes.Internal:
			return true
		}
	}
	return false
}

func geminiComplete(ctx context.Context, apiKey, modelName, prompt string) (string, error) {
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return "", fmt.Errorf("create gemini client: %w", err)
	}
	defer client.Close()

	model := client.GenerativeModel(modelName)
	model.ResponseMIMEType = "application/json"

	resp, err := model.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return "", err
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", fmt.Errorf("%w: no candidates", ErrMalformedResponse)
	}
	var b strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if t, ok := part.(genai.Text); ok {
			b.WriteString(string(t))
		}
	}
	if b.Len() == 0 {
		return "", fmt.Errorf("%w: empty candidate", ErrMalformedResponse)
	}
	return b.String(), nil
}

type ModelInfo struct {
	Name        string `json:"name"`
	DisplayName string `json:"display_name"`
	Description string `json:"description"`
	InputLimit  int32  `json:"input_token_limit"`
	OutputLimit int32  `json:"output_token_limit"`
}

// ListModels returns the models that support generateContent.
func (g *GeminiGenerator) ListModels(ctx context.Context, apiKey string) ([]ModelInfo, error) {
	opts := g.resolve(GenerateOptions{APIKey: apiKey})
	if opts.APIKey == "" {
		return nil, ErrMissingAPIKey
	}
	client, err := genai.NewClient(ctx, option.WithAPIKey(opts.APIKey))
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}
	defer client.Close()

	var out []ModelInfo
	it := client.ListModels(ctx)
	for {
		m, err := it.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("list models: %w", err)
		}
		if !supports(m.SupportedGenerationMethods, "generateContent") {
			continue
		}
		out = append(out, ModelInfo{
			Name:        strings.TrimPrefix(m.Name, "models/"),
			DisplayName: m.DisplayName,
			Description: m.Description,
			InputLimit:  m.InputTokenLimit,
			OutputLimit: m.OutputTokenLimit,
		})
	}
	return out, nil
}

func supports(methods []string, want string) bool {
	for _, m := range methods {
		if m == want {
			return true
		}
	}
	return false
}
