package llm

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/flipsync/flipsync/core"
	"github.com/flipsync/flipsync/resilience"
)

// HTTPGateway is the default Gateway implementation: a generic chat-completion
// POST against an OpenAI-compatible endpoint. It sends the request's
// ModelHint, or the gateway's default model when no hint is given, and
// leaves HTTP-level retries to its resty client. A
// CircuitBreaker guards the provider call so a degraded provider fails fast
// instead of piling up timeouts across every agent calling Generate.
type HTTPGateway struct {
	client       *resty.Client
	baseURL      string
	apiKey       string
	defaultModel string
	logger       core.Logger
	telemetry    core.Telemetry
	breaker      *resilience.CircuitBreaker
}

// HTTPGatewayOption configures an HTTPGateway at construction time.
type HTTPGatewayOption func(*HTTPGateway)

func WithLogger(logger core.Logger) HTTPGatewayOption {
	return func(g *HTTPGateway) { g.logger = logger }
}

func WithTelemetry(t core.Telemetry) HTTPGatewayOption {
	return func(g *HTTPGateway) { g.telemetry = t }
}

func WithDefaultModel(model string) HTTPGatewayOption {
	return func(g *HTTPGateway) { g.defaultModel = model }
}

func WithHTTPTimeout(d time.Duration) HTTPGatewayOption {
	return func(g *HTTPGateway) { g.client.SetTimeout(d) }
}

// WithCircuitBreaker overrides the default breaker config for this gateway.
func WithCircuitBreaker(cb *resilience.CircuitBreaker) HTTPGatewayOption {
	return func(g *HTTPGateway) { g.breaker = cb }
}

// NewHTTPGateway builds a Gateway talking to baseURL (an OpenAI-compatible
// /chat/completions endpoint) authenticated with apiKey.
func NewHTTPGateway(baseURL, apiKey string, opts ...HTTPGatewayOption) *HTTPGateway {
	g := &HTTPGateway{
		client:       resty.New().SetTimeout(60 * time.Second).SetRetryCount(3).SetRetryWaitTime(time.Second),
		baseURL:      baseURL,
		apiKey:       apiKey,
		defaultModel: "gpt-4o-mini",
		logger:       core.NoOpLogger{},
		telemetry:    core.NoOpTelemetry{},
		breaker:      resilience.New(resilience.DefaultConfig("llm_gateway")),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatCompletionRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
}

type chatCompletionUsage struct {
	TotalTokens int `json:"total_tokens"`
}

type chatCompletionResponse struct {
	Model   string `json:"model"`
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
	Usage chatCompletionUsage `json:"usage"`
}

// Generate implements Gateway by issuing a single chat-completion call.
func (g *HTTPGateway) Generate(ctx context.Context, req Request) (Response, error) {
	ctx, span := g.telemetry.StartSpan(ctx, "llm.generate")
	defer span.End()

	model := req.ModelHint
	if model == "" {
		model = g.defaultModel
	}
	span.SetAttribute("llm.model", model)

	messages := make([]chatMessage, 0, 2)
	if req.SystemPrompt != "" {
		messages = append(messages, chatMessage{Role: "system", Content: req.SystemPrompt})
	}
	messages = append(messages, chatMessage{Role: "user", Content: req.Prompt})

	start := time.Now()
	var body chatCompletionResponse
	callErr := g.breaker.Execute(ctx, func(ctx context.Context) error {
		resp, err := g.client.R().
			SetContext(ctx).
			SetAuthToken(g.apiKey).
			SetBody(chatCompletionRequest{Model: model, Messages: messages}).
			SetResult(&body).
			Post(g.baseURL + "/chat/completions")
		if err != nil {
			return err
		}
		if resp.IsError() {
			return fmt.Errorf("llm provider returned status %d", resp.StatusCode())
		}
		return nil
	})
	elapsed := time.Since(start)

	if callErr != nil {
		span.RecordError(callErr)
		g.logger.ErrorWithContext(ctx, "llm generate failed", map[string]interface{}{
			"model": model,
			"error": callErr.Error(),
		})
		return Response{}, fmt.Errorf("llm generate: %w: %v", core.ErrUnavailable, callErr)
	}
	if len(body.Choices) == 0 {
		return Response{}, fmt.Errorf("llm generate: %w: empty choices", core.ErrUnavailable)
	}

	out := Response{
		Content:        body.Choices[0].Message.Content,
		Model:          body.Model,
		TokensUsed:     body.Usage.TotalTokens,
		LatencySeconds: elapsed.Seconds(),
		CostEstimate:   estimateCost(body.Model, body.Usage.TotalTokens),
	}
	span.SetAttribute("llm.tokens_used", out.TokensUsed)
	return out, nil
}

// perTokenCost is an approximate $/token table for cost estimation. Unknown
// models fall back to the "default" rate.
var perTokenCost = map[string]float64{
	"default": 0.000002,
	"gpt-4o":  0.000005,
}

func estimateCost(model string, tokens int) float64 {
	rate, ok := perTokenCost[model]
	if !ok {
		rate = perTokenCost["default"]
	}
	return rate * float64(tokens)
}
