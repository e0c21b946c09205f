package llm

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"teller/internal/domain"
	"teller/internal/infra/logger"
)

type flakyProvider struct {
	err   error
	calls int
}

func (f *flakyProvider) Chat(_ context.Context, _ domain.ChatRequest) (*domain.ChatResponse, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return &domain.ChatResponse{}, nil
}

func (f *flakyProvider) Name() string { return "flaky" }

func TestCircuitBreakerPassesThrough(t *testing.T) {
	inner := &flakyProvider{}
	p := WithCircuitBreaker(inner, logger.Discard())

	_, err := p.Chat(context.Background(), domain.ChatRequest{})
	require.NoError(t, err)
	assert.Equal(t, 1, inner.calls)
	assert.Equal(t, "flaky", p.Name())
}

func TestCircuitBreakerOpensAfterConsecutiveFailures(t *testing.T) {
	inner := &flakyProvider{err: errors.New("upstream down")}
	p := WithCircuitBreaker(inner, logger.Discard())

	for i := 0; i < int(cbMaxFailures); i++ {
		_, err := p.Chat(context.Background(), domain.ChatRequest{})
		require.Error(t, err)
	}
	callsBeforeOpen := inner.calls

	// Open circuit: the provider is no longer reached.
	_, err := p.Chat(context.Background(), domain.ChatRequest{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "circuit open")
	assert.Equal(t, callsBeforeOpen, inner.calls)
}
