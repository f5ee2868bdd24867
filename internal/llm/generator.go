// Package llm adapts the Gemini API into a reply generator for support
// conversations.
//
// The Generator owns prompt assembly, the per-request timeout, proactive
// rate limiting, and the translation of provider failures into the
// package's error taxonomy. Failures that cannot be classified degrade
// into a canned apology instead of an error, so the chat flow keeps
// working while the provider misbehaves.
package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/time/rate"
	"google.golang.org/genai"

	"github.com/azamon/support-chat/internal/conversation"
)

// DefaultTimeout bounds one generation call.
const DefaultTimeout = 30 * time.Second

// Classified generation failures. Callers map these to client-facing
// responses; anything unclassified never surfaces as an error at all.
var (
	// ErrConfiguration indicates the provider rejected our credentials.
	ErrConfiguration = errors.New("invalid API key configuration")

	// ErrRateLimited indicates provider quota or rate limits were hit.
	ErrRateLimited = errors.New("service rate limit exceeded")

	// ErrTimeout indicates the generation call exceeded its deadline.
	ErrTimeout = errors.New("request timeout")
)

// Degraded fallback texts returned in place of a model reply.
const (
	fallbackEmptyReply = "I apologize, but I'm having trouble generating a response right now. " +
		"Please try again or contact our support team directly."

	fallbackProviderError = "I apologize, but I'm experiencing technical difficulties. " +
		"Please try again in a moment or email us at support@azamon.com for immediate assistance."
)

// Reply is a generated support-agent response. Degraded marks fallback text
// produced when the model could not deliver a usable reply.
type Reply struct {
	Text     string
	Degraded bool
}

// modelCaller is the seam between the Generator and the Gemini SDK, so unit
// tests can substitute a fake without network access.
type modelCaller interface {
	generate(ctx context.Context, model, prompt string) (string, error)
}

// Generator produces support-agent replies grounded in conversation history.
//
// Safe for concurrent use.
type Generator struct {
	caller  modelCaller
	model   string
	timeout time.Duration
	window  int
	limiter *rate.Limiter
	logger  *slog.Logger
}

// Options tunes a Generator. The zero value selects defaults.
type Options struct {
	Timeout       time.Duration // per-call deadline; <= 0 means DefaultTimeout
	HistoryWindow int           // history messages in the prompt; <= 0 means DefaultHistoryWindow
	Limiter       *rate.Limiter // proactive rate limiting; nil means a default limiter
	Logger        *slog.Logger  // nil means slog.Default()
}

// NewGenerator creates a Generator talking to the Gemini API with apiKey.
func NewGenerator(ctx context.Context, apiKey, model string, opts Options) (*Generator, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("%w: missing API key", ErrConfiguration)
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("creating Gemini client: %w", err)
	}

	return newGenerator(&geminiCaller{client: client}, model, opts), nil
}

func newGenerator(caller modelCaller, model string, opts Options) *Generator {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.HistoryWindow <= 0 {
		opts.HistoryWindow = DefaultHistoryWindow
	}
	if opts.Limiter == nil {
		opts.Limiter = rate.NewLimiter(10, 30)
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Generator{
		caller:  caller,
		model:   model,
		timeout: opts.Timeout,
		window:  opts.HistoryWindow,
		limiter: opts.Limiter,
		logger:  opts.Logger,
	}
}

// GenerateReply produces the agent's reply to userMessage given the
// conversation so far. Only the last few history messages reach the model.
//
// Classified failures (ErrConfiguration, ErrRateLimited, ErrTimeout) are
// returned as errors; any other provider failure and empty model output
// yield a degraded Reply with a nil error.
func (g *Generator) GenerateReply(ctx context.Context, history []conversation.Message, userMessage string) (Reply, error) {
	if err := g.limiter.Wait(ctx); err != nil {
		return Reply{}, fmt.Errorf("waiting for rate limiter: %w", err)
	}

	prompt := buildPrompt(history, userMessage, g.window)

	callCtx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	start := time.Now()
	text, err := g.caller.generate(callCtx, g.model, prompt)
	elapsed := time.Since(start)

	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			g.logger.Warn("generation timed out", "model", g.model, "elapsed", elapsed)
			return Reply{}, ErrTimeout
		}
		if classified := classifyProviderError(err); classified != nil {
			g.logger.Warn("generation failed", "model", g.model, "error", err)
			return Reply{}, classified
		}

		g.logger.Error("generation failed, degrading", "model", g.model, "error", err)
		return Reply{Text: fallbackProviderError, Degraded: true}, nil
	}

	text = strings.TrimSpace(text)
	if text == "" {
		g.logger.Warn("model returned empty reply, degrading", "model", g.model)
		return Reply{Text: fallbackEmptyReply, Degraded: true}, nil
	}

	g.logger.Debug("generated reply", "model", g.model, "elapsed", elapsed, "reply_len", len(text))
	return Reply{Text: text}, nil
}

// classifyProviderError maps provider failures onto the package sentinels by
// message content. The SDK does not expose stable error types for these
// cases, so substring matching is the contract we have.
func classifyProviderError(err error) error {
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "api key"):
		return ErrConfiguration
	case strings.Contains(msg, "quota"), strings.Contains(msg, "rate limit"):
		return ErrRateLimited
	case strings.Contains(msg, "timeout"):
		return ErrTimeout
	default:
		return nil
	}
}

// geminiCaller is the production modelCaller backed by the Gemini SDK.
type geminiCaller struct {
	client *genai.Client
}

func (c *geminiCaller) generate(ctx context.Context, model, prompt string) (string, error) {
	resp, err := c.client.Models.GenerateContent(ctx, model, genai.Text(prompt), nil)
	if err != nil {
		return "", err
	}
	return resp.Text(), nil
}
