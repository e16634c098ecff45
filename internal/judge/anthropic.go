package judge

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/cluegrid/cluegrid/pkg/anthropic"
)

// DefaultTimeout bounds a single judge call end to end.
const DefaultTimeout = 7 * time.Second

const judgeMaxTokens = 1024

// AnthropicJudge adjudicates via the Anthropic API. Safe for concurrent use.
type AnthropicJudge struct {
	client  anthropic.Client
	model   string
	timeout time.Duration
	limiter *rate.Limiter
}

// NewAnthropicJudge builds an adapter around an Anthropic client. rps bounds
// outbound calls per second; zero or negative disables the limiter.
func NewAnthropicJudge(client anthropic.Client, model string, timeout time.Duration, rps float64) *AnthropicJudge {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	var limiter *rate.Limiter
	if rps > 0 {
		limiter = rate.NewLimiter(rate.Limit(rps), 1)
	}
	return &AnthropicJudge{
		client:  client,
		model:   model,
		timeout: timeout,
		limiter: limiter,
	}
}

// Judge runs exactly one model call under the configured timeout. No retries:
// grading latency is player-facing, and the caller's fail-closed policy
// handles the failure path.
func (j *AnthropicJudge) Judge(ctx context.Context, req Request) (*Verdict, *Failure) {
	req.Justification = truncateJustification(req.Justification)

	if j.limiter != nil {
		if err := j.limiter.Wait(ctx); err != nil {
			return nil, classifyFailure(err)
		}
	}

	ctx, cancel := context.WithTimeout(ctx, j.timeout)
	defer cancel()

	temperature := 0.0
	resp, err := j.client.CreateMessage(ctx, anthropic.MessageRequest{
		Model:       j.model,
		MaxTokens:   judgeMaxTokens,
		System:      systemPrompt,
		Messages:    []anthropic.Message{{Role: "user", Content: buildUserPrompt(req)}},
		Temperature: &temperature,
	})
	if err != nil {
		zap.L().Warn("judge call failed", zap.Error(err))
		return nil, classifyFailure(err)
	}

	resp.Usage.LogCost(j.model, "judge")

	verdict, err := parseVerdict(extractText(resp), j.model)
	if err != nil {
		zap.L().Warn("judge output unparseable", zap.Error(err))
		return nil, &Failure{ErrorType: "parse_error", ErrorMessage: err.Error()}
	}
	return verdict, nil
}

func classifyFailure(err error) *Failure {
	errType := "transport_error"
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		errType = "timeout"
	case errors.Is(err, context.Canceled):
		errType = "canceled"
	}
	return &Failure{ErrorType: errType, ErrorMessage: err.Error()}
}
