package judge

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	retry "github.com/avast/retry-go/v4"
	"google.golang.org/genai"

	"github.com/jwpark-dev/facearena/pkg/logger"
	"github.com/jwpark-dev/facearena/pkg/metrics"
)

// Default Gemini client configuration constants.
const (
	defaultModel         = "gemini-2.5-flash"
	defaultRetryAttempts = 3
	defaultRetryDelay    = 500 * time.Millisecond
	imageMIMEType        = "image/jpeg"
)

// Option applies a configuration option to the Gemini judge.
type Option func(*Gemini)

// WithModel overrides the Gemini model name.
func WithModel(name string) Option {
	return func(g *Gemini) {
		if name != "" {
			g.model = name
		}
	}
}

// WithRetry sets the attempt budget and initial backoff delay.
func WithRetry(attempts uint, delay time.Duration) Option {
	return func(g *Gemini) {
		if attempts > 0 {
			g.attempts = attempts
		}
		if delay > 0 {
			g.delay = delay
		}
	}
}

// WithLogger sets a custom logger.
func WithLogger(l logger.Logger) Option {
	return func(g *Gemini) {
		if l != nil {
			g.logger = l
		}
	}
}

// Gemini implements Judge against the Gemini API.
type Gemini struct {
	client   *genai.Client
	model    string
	attempts uint
	delay    time.Duration
	logger   logger.Logger
}

// NewGemini creates a Gemini-backed judge.
func NewGemini(ctx context.Context, apiKey string, opts ...Option) (*Gemini, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}

	g := &Gemini{
		client:   client,
		model:    defaultModel,
		attempts: defaultRetryAttempts,
		delay:    defaultRetryDelay,
	}
	for _, opt := range opts {
		opt(g)
	}
	if g.logger == nil {
		g.logger = logger.Get().Named("judge")
	}
	return g, nil
}

// Evaluate scores a single face image.
func (g *Gemini) Evaluate(ctx context.Context, image []byte) (string, error) {
	return g.generate(ctx, singlePrompt, [][]byte{image})
}

// Compare scores 2..4 face images against each other in order.
func (g *Gemini) Compare(ctx context.Context, images [][]byte) (string, error) {
	if len(images) < 2 || len(images) > maxComparisonSubjects {
		return "", fmt.Errorf("comparison needs 2..%d images, got %d", maxComparisonSubjects, len(images))
	}
	return g.generate(ctx, comparisonPrompt(len(images)), images)
}

// generate runs one model call under the retry policy. Only overload-style
// failures are retried; anything else fails immediately.
func (g *Gemini) generate(ctx context.Context, prompt string, images [][]byte) (string, error) {
	parts := make([]*genai.Part, 0, len(images)+1)
	parts = append(parts, genai.NewPartFromText(prompt))
	for _, img := range images {
		parts = append(parts, genai.NewPartFromBytes(img, imageMIMEType))
	}
	contents := []*genai.Content{genai.NewContentFromParts(parts, genai.RoleUser)}

	var text string
	err := retry.Do(
		func() error {
			start := time.Now()
			resp, err := g.client.Models.GenerateContent(ctx, g.model, contents, nil)
			metrics.RecordJudgeLatency(float64(time.Since(start).Milliseconds()))
			if err != nil {
				metrics.RecordJudgeError()
				return err
			}
			text = resp.Text()
			if text == "" {
				metrics.RecordJudgeError()
				return ErrEmptyResponse
			}
			return nil
		},
		retry.Context(ctx),
		retry.Attempts(g.attempts),
		retry.Delay(g.delay),
		retry.DelayType(retry.BackOffDelay),
		retry.LastErrorOnly(true),
		retry.RetryIf(isOverloaded),
		retry.OnRetry(func(n uint, err error) {
			metrics.RecordJudgeRetry()
			g.logger.Warn(ctx, "model overloaded, retrying",
				logger.Int("attempt", int(n)+1),
				logger.Error(err),
			)
		}),
	)
	if err != nil {
		if isOverloaded(err) {
			return "", fmt.Errorf("%w: %w", ErrOverloaded, err)
		}
		return "", fmt.Errorf("generate content: %w", err)
	}
	return text, nil
}

// isOverloaded recognizes the transient overload signals the API emits.
func isOverloaded(err error) bool {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.Code == http.StatusTooManyRequests ||
			apiErr.Code == http.StatusServiceUnavailable
	}
	return false
}
