package synthesis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/liushuangls/go-anthropic/v2"
	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/ppiankov/snpscope/internal/llm"
	"github.com/ppiankov/snpscope/internal/metrics"
	"github.com/ppiankov/snpscope/internal/model"
)

// Error carries the provider's message for a failed synthesis call
type Error struct {
	Message string
	Err     error
}

func (e *Error) Error() string { return "synthesis: " + e.Message }

func (e *Error) Unwrap() error { return e.Err }

// ErrNoProvider is returned when no language model is configured
var ErrNoProvider = errors.New("no language model provider configured")

// Synthesizer sends the prompt to the language model and parses the answer
type Synthesizer struct {
	provider llm.Provider
	logger   *zap.Logger
}

// NewSynthesizer creates a synthesizer. provider may be nil, in which case
// every call fails with ErrNoProvider.
func NewSynthesizer(provider llm.Provider, logger *zap.Logger) *Synthesizer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Synthesizer{provider: provider, logger: logger}
}

// Synthesize makes one non-streaming call. Its failure is the only error
// the pipeline propagates.
func (s *Synthesizer) Synthesize(ctx context.Context, prompt string) (*model.Synthesis, error) {
	if s.provider == nil {
		return nil, &Error{Message: ErrNoProvider.Error(), Err: ErrNoProvider}
	}

	start := time.Now()
	resp, err := s.provider.Complete(ctx, llm.CompletionRequest{
		System:    SystemPrompt,
		Prompt:    prompt,
		MaxTokens: MaxTokens,
	})
	elapsed := time.Since(start)

	if err != nil {
		metrics.SynthesisDuration.WithLabelValues(s.provider.Name(), "error").Observe(elapsed.Seconds())
		s.logger.Error("synthesis failed",
			zap.String("provider", s.provider.Name()),
			zap.Duration("elapsed", elapsed),
			zap.Error(err))
		return nil, &Error{Message: providerMessage(err), Err: err}
	}
	if resp == nil || resp.Text == "" {
		metrics.SynthesisDuration.WithLabelValues(s.provider.Name(), "empty").Observe(elapsed.Seconds())
		return nil, &Error{Message: "empty response from " + s.provider.Name()}
	}
	metrics.SynthesisDuration.WithLabelValues(s.provider.Name(), "ok").Observe(elapsed.Seconds())

	syn := Parse(resp.Text)
	syn.Provider = s.provider.Name()
	syn.Model = resp.Model
	syn.TokensUsed = resp.TokensUsed

	s.logger.Info("synthesis complete",
		zap.String("provider", syn.Provider),
		zap.String("model", syn.Model),
		zap.Int("tokens", syn.TokensUsed),
		zap.Int("sections", len(syn.Sections)),
		zap.Duration("elapsed", elapsed))
	return syn, nil
}

// providerMessage digs the upstream message out of SDK error types
func providerMessage(err error) string {
	var anthropicErr *anthropic.APIError
	if errors.As(err, &anthropicErr) && anthropicErr.Message != "" {
		return anthropicErr.Message
	}
	var openaiErr *openai.APIError
	if errors.As(err, &openaiErr) && openaiErr.Message != "" {
		return openaiErr.Message
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return fmt.Sprintf("status %d: %v", reqErr.HTTPStatusCode, reqErr.Err)
	}
	return err.Error()
}
