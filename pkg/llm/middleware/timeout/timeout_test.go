package timeout

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nestwise/internal/mocks"
	"nestwise/pkg/llm"
	"nestwise/pkg/llm/llmerrors"
)

func TestWrapClassifiesDeadlineAsUnavailable(t *testing.T) {
	inner := mocks.NewMockLLMClient()
	inner.OnComplete(func(ctx context.Context, _ llm.CompletionRequest) (llm.CompletionResponse, error) {
		<-ctx.Done()
		return llm.CompletionResponse{}, ctx.Err()
	})

	client := Wrap(inner, 10*time.Millisecond)
	_, err := client.Complete(context.Background(), llm.NewCompletionRequest(nil))
	require.Error(t, err)
	assert.True(t, llmerrors.IsUnavailable(err))
}

func TestWrapPassesThroughSuccess(t *testing.T) {
	inner := mocks.NewMockLLMClient()
	inner.RespondWith("fine")

	client := Wrap(inner, time.Second)
	resp, err := client.Complete(context.Background(), llm.NewCompletionRequest(nil))
	require.NoError(t, err)
	assert.Equal(t, "fine", resp.Content)
	assert.Equal(t, "mock-model", client.GetModelName())
}

func TestWrapDisabledWithoutTimeout(t *testing.T) {
	inner := mocks.NewMockLLMClient()
	inner.OnComplete(func(ctx context.Context, _ llm.CompletionRequest) (llm.CompletionResponse, error) {
		_, hasDeadline := ctx.Deadline()
		assert.False(t, hasDeadline)
		return llm.CompletionResponse{Content: "ok"}, nil
	})

	client := Wrap(inner, 0)
	_, err := client.Complete(context.Background(), llm.NewCompletionRequest(nil))
	require.NoError(t, err)
}
