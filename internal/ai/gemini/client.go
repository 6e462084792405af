package gemini

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
	"google.golang.org/genai"

	"github.com/spigell/job-harvester/internal/logger"
	"github.com/spigell/job-harvester/internal/utils"
)

const (
	Provider = "gemini"

	defaultModel      = "gemini-2.5-flash"
	defaultMaxRetries = 3
	baseRetryDelay    = 2 * time.Second
	maxRetryDelay     = 30 * time.Second
)

var (
	wait = utils.WaitFor

	retryAfterPattern = regexp.MustCompile(`(?i)retry (?:after|in) (\d+(?:\.\d+)?)\s*s`)
)

type chatSession interface {
	SendMessage(ctx context.Context, parts ...genai.Part) (*genai.GenerateContentResponse, error)
}

type chatCreator interface {
	Create(ctx context.Context, model string, config *genai.GenerateContentConfig, history []*genai.Content) (chatSession, error)
}

type genaiChats struct {
	chats *genai.Chats
}

func (c genaiChats) Create(ctx context.Context, model string, config *genai.GenerateContentConfig, history []*genai.Content) (chatSession, error) {
	chat, err := c.chats.Create(ctx, model, config, history)
	if err != nil {
		return nil, err
	}
	return chat, nil
}

// Generator wraps the Google GenAI chat API. Every call opens a fresh chat, so
// generators are safe for concurrent use.
type Generator struct {
	chats      chatCreator
	model      string
	maxRetries int
	logger     *zap.Logger

	system       string
	temperature  *float32
	jsonResponse bool
	googleSearch bool
}

type Option func(*Generator)

func WithLogger(l *zap.Logger) Option {
	return func(g *Generator) { g.logger = l }
}

func WithMaxRetries(n int) Option {
	return func(g *Generator) {
		if n > 0 {
			g.maxRetries = n
		}
	}
}

// WithSystemInstruction sets the instruction used by GenerateContent.
func WithSystemInstruction(system string) Option {
	return func(g *Generator) { g.system = strings.TrimSpace(system) }
}

func WithTemperature(t float32) Option {
	return func(g *Generator) { g.temperature = &t }
}

// WithJSONResponse asks the model for an application/json answer.
// It cannot be combined with WithGoogleSearch.
func WithJSONResponse() Option {
	return func(g *Generator) { g.jsonResponse = true }
}

// WithGoogleSearch lets the model ground its answer with Google Search.
func WithGoogleSearch() Option {
	return func(g *Generator) { g.googleSearch = true }
}

// NewGenerator creates a new Generator configured for the Gemini API backend.
func NewGenerator(ctx context.Context, apiKey, model string, opts ...Option) (*Generator, error) {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return nil, errors.New("gemini api key is required")
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}

	return newGenerator(genaiChats{chats: client.Chats}, model, opts...)
}

func newGenerator(chats chatCreator, model string, opts ...Option) (*Generator, error) {
	if model = strings.TrimSpace(model); model == "" {
		model = defaultModel
	}

	g := &Generator{
		chats:      chats,
		model:      model,
		maxRetries: defaultMaxRetries,
	}
	for _, opt := range opts {
		opt(g)
	}

	if g.jsonResponse && g.googleSearch {
		return nil, errors.New("json responses are not supported together with google search grounding")
	}
	g.logger = logger.WithCommonFields(g.logger, Provider, g.model)

	return g, nil
}

// GenerateContent sends the prompt with the configured system instruction.
func (g *Generator) GenerateContent(ctx context.Context, prompt string) (string, error) {
	return g.Chat(ctx, g.system, prompt)
}

// Chat sends one message in a new chat and returns the joined text parts of the answer.
// Temporary API failures are retried up to maxRetries attempts.
func (g *Generator) Chat(ctx context.Context, system, message string) (string, error) {
	if g == nil || g.chats == nil {
		return "", errors.New("gemini generator is not initialized")
	}

	message = strings.TrimSpace(message)
	if message == "" {
		return "", errors.New("prompt must not be empty")
	}

	log := logger.WithFields(g.logger)
	config := g.config(system)
	attempts := max(g.maxRetries, 1)

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		chat, err := g.chats.Create(ctx, g.model, config, nil)
		if err != nil {
			return "", fmt.Errorf("create chat: %w", err)
		}

		resp, err := chat.SendMessage(ctx, genai.Part{Text: message})
		if err == nil {
			return responseText(resp)
		}
		lastErr = err

		delay, ok := retryDelay(err, attempt)
		if !ok || attempt == attempts {
			break
		}

		log.Warn("gemini request failed, retrying",
			zap.Int("attempt", attempt),
			zap.Duration("delay", delay),
			zap.Error(err),
		)
		if err := wait(ctx, delay); err != nil {
			return "", err
		}
	}

	return "", fmt.Errorf("generate content: %w", lastErr)
}

func (g *Generator) config(system string) *genai.GenerateContentConfig {
	config := &genai.GenerateContentConfig{Temperature: g.temperature}

	if system = strings.TrimSpace(system); system != "" {
		config.SystemInstruction = &genai.Content{Parts: []*genai.Part{{Text: system}}}
	}
	if g.jsonResponse {
		config.ResponseMIMEType = "application/json"
	}
	if g.googleSearch {
		config.Tools = []*genai.Tool{{GoogleSearch: &genai.GoogleSearch{}}}
	}

	return config
}

func (g *Generator) Provider() string {
	return Provider
}

func (g *Generator) Model() string {
	if g == nil {
		return ""
	}
	return g.model
}

func responseText(resp *genai.GenerateContentResponse) (string, error) {
	if resp == nil {
		return "", errors.New("gemini api returned no response")
	}

	var builder strings.Builder
	for _, candidate := range resp.Candidates {
		if candidate == nil || candidate.Content == nil {
			continue
		}
		for _, part := range candidate.Content.Parts {
			if part == nil {
				continue
			}
			text := strings.TrimSpace(part.Text)
			if text == "" {
				continue
			}
			if builder.Len() > 0 {
				builder.WriteString("\n")
			}
			builder.WriteString(text)
		}
	}

	output := strings.TrimSpace(builder.String())
	if output == "" {
		return "", errors.New("gemini api returned empty response")
	}

	return output, nil
}

// retryDelay reports whether err is worth another attempt and how long to wait.
// Quota errors asking for a pause longer than maxRetryDelay are not retried.
func retryDelay(err error, attempt int) (time.Duration, bool) {
	var apiErr genai.APIError
	if !errors.As(err, &apiErr) {
		return 0, false
	}

	switch {
	case apiErr.Code == http.StatusTooManyRequests:
		if d, ok := requestedDelay(apiErr); ok {
			return d, d <= maxRetryDelay
		}
		return backoff(attempt), true
	case apiErr.Code >= http.StatusInternalServerError:
		return backoff(attempt), true
	default:
		return 0, false
	}
}

func requestedDelay(apiErr genai.APIError) (time.Duration, bool) {
	for _, detail := range apiErr.Details {
		raw, ok := detail["retryDelay"].(string)
		if !ok {
			continue
		}
		if d, err := time.ParseDuration(raw); err == nil {
			return d, true
		}
	}

	if m := retryAfterPattern.FindStringSubmatch(apiErr.Message); m != nil {
		seconds, err := strconv.ParseFloat(m[1], 64)
		if err == nil {
			return time.Duration(seconds * float64(time.Second)), true
		}
	}

	return 0, false
}

func backoff(attempt int) time.Duration {
	delay := baseRetryDelay << (attempt - 1)
	if delay > maxRetryDelay {
		return maxRetryDelay
	}
	return delay
}
