package activities

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/orbital-labs/researchflow/internal/agents"
	"github.com/orbital-labs/researchflow/internal/metrics"
)

// Error taxonomy for agent invocations. The string values double as Temporal
// application error types so retry policies and workflow code can match on
// them across the activity boundary.
const (
	ErrTypeRateLimited   = "RateLimited"
	ErrTypeTimeout       = "Timeout"
	ErrTypeUnavailable   = "Unavailable"
	ErrTypeInvalidOutput = "InvalidOutput"
)

var (
	ErrRateLimited   = errors.New("agent service rate limited")
	ErrTimeout       = errors.New("agent invocation timed out")
	ErrUnavailable   = errors.New("agent service unavailable")
	ErrInvalidOutput = errors.New("agent returned invalid structured output")
)

// Usage reports token consumption for one invocation.
type Usage struct {
	Model        string `json:"model"`
	InputTokens  int    `json:"input_tokens"`
	OutputTokens int    `json:"output_tokens"`
}

// Invoker is the uniform call contract to the external LLM agent service.
// One Invoke per stage; the service resolves the role's model and tools.
type Invoker struct {
	baseURL string
	client  *http.Client
	logger  *zap.Logger
}

// NewInvoker creates an invoker against the agent service at baseURL.
func NewInvoker(baseURL string, timeout time.Duration, logger *zap.Logger) *Invoker {
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	return &Invoker{
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
		logger:  logger,
	}
}

type invokeRequest struct {
	Role         string         `json:"role"`
	Instructions string         `json:"instructions"`
	Schema       string         `json:"schema,omitempty"`
	ModelTier    string         `json:"model_tier,omitempty"`
	Input        map[string]any `json:"input"`
}

type invokeResponse struct {
	Output       json.RawMessage `json:"output"`
	Model        string          `json:"model"`
	InputTokens  int             `json:"input_tokens"`
	OutputTokens int             `json:"output_tokens"`
}

// Invoke sends role instructions plus a structured input payload to the agent
// service and returns its raw structured output. Callers decode and validate
// against their stage schema.
func (inv *Invoker) Invoke(ctx context.Context, role agents.Role, input map[string]any) (json.RawMessage, Usage, error) {
	start := time.Now()
	out, usage, err := inv.invoke(ctx, role, input)
	metrics.AgentInvocationDuration.WithLabelValues(role.Name).Observe(time.Since(start).Seconds())
	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	metrics.AgentInvocations.WithLabelValues(role.Name, outcome).Inc()
	if usage.InputTokens+usage.OutputTokens > 0 {
		metrics.AgentTokensUsed.WithLabelValues(role.Name).Add(float64(usage.InputTokens + usage.OutputTokens))
	}
	return out, usage, err
}

func (inv *Invoker) invoke(ctx context.Context, role agents.Role, input map[string]any) (json.RawMessage, Usage, error) {
	body, err := json.Marshal(invokeRequest{
		Role:         role.Name,
		Instructions: role.Instructions,
		Schema:       role.Schema,
		ModelTier:    role.ModelTier,
		Input:        input,
	})
	if err != nil {
		return nil, Usage{}, fmt.Errorf("marshal invoke request for %s: %w", role.Name, err)
	}

	url := fmt.Sprintf("%s/agents/invoke", inv.baseURL)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, Usage{}, fmt.Errorf("build invoke request for %s: %w", role.Name, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := inv.client.Do(req)
	if err != nil {
		if ctx.Err() != nil || isTimeout(err) {
			return nil, Usage{}, fmt.Errorf("invoke %s: %w", role.Name, ErrTimeout)
		}
		return nil, Usage{}, fmt.Errorf("invoke %s: %w", role.Name, ErrUnavailable)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, Usage{}, fmt.Errorf("invoke %s: %w", role.Name, ErrRateLimited)
	case resp.StatusCode == http.StatusRequestTimeout || resp.StatusCode == http.StatusGatewayTimeout:
		return nil, Usage{}, fmt.Errorf("invoke %s: %w", role.Name, ErrTimeout)
	case resp.StatusCode >= 500:
		return nil, Usage{}, fmt.Errorf("invoke %s: status %d: %w", role.Name, resp.StatusCode, ErrUnavailable)
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return nil, Usage{}, fmt.Errorf("invoke %s: unexpected status %d: %w", role.Name, resp.StatusCode, ErrInvalidOutput)
	}

	var ir invokeResponse
	if err := json.NewDecoder(resp.Body).Decode(&ir); err != nil {
		return nil, Usage{}, fmt.Errorf("decode %s response: %w", role.Name, ErrInvalidOutput)
	}
	if len(ir.Output) == 0 {
		return nil, Usage{}, fmt.Errorf("empty %s output: %w", role.Name, ErrInvalidOutput)
	}

	inv.logger.Debug("agent invocation completed",
		zap.String("role", role.Name),
		zap.String("model", ir.Model),
		zap.Int("input_tokens", ir.InputTokens),
		zap.Int("output_tokens", ir.OutputTokens),
	)
	return ir.Output, Usage{Model: ir.Model, InputTokens: ir.InputTokens, OutputTokens: ir.OutputTokens}, nil
}

func isTimeout(err error) bool {
	var ne interface{ Timeout() bool }
	return errors.As(err, &ne) && ne.Timeout()
}

// ErrType maps an invoker error to its application error type, or "" when
// the error is outside the taxonomy.
func ErrType(err error) string {
	switch {
	case errors.Is(err, ErrRateLimited):
		return ErrTypeRateLimited
	case errors.Is(err, ErrTimeout):
		return ErrTypeTimeout
	case errors.Is(err, ErrUnavailable):
		return ErrTypeUnavailable
	case errors.Is(err, ErrInvalidOutput):
		return ErrTypeInvalidOutput
	}
	return ""
}
