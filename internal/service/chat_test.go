package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/buddy-ai/buddyai/internal/llm"
	"github.com/buddy-ai/buddyai/internal/memory"
	"github.com/buddy-ai/buddyai/pkg/logger"
)

type fakeLLM struct {
	reply       string
	completeErr error
	embedErr    error

	lastPrompt string
	embedCalls int
}

func (f *fakeLLM) Complete(ctx context.Context, req *llm.CompletionRequest) (*llm.CompletionResponse, error) {
	if f.completeErr != nil {
		return nil, f.completeErr
	}
	f.lastPrompt = req.Messages[0].Content
	return &llm.CompletionResponse{Content: f.reply, Model: req.Model}, nil
}

func (f *fakeLLM) Embed(ctx context.Context, model, text string) ([]float32, error) {
	f.embedCalls++
	if f.embedErr != nil {
		return nil, f.embedErr
	}
	return []float32{1, 0}, nil
}

func (f *fakeLLM) Name() string     { return "fake" }
func (f *fakeLLM) Models() []string { return nil }

type fakeMemory struct {
	ready     bool
	retrieved []string
	saveErr   error

	saved []string
}

func (f *fakeMemory) Ready() bool { return f.ready }

func (f *fakeMemory) Save(ctx context.Context, text string) error {
	if f.saveErr != nil {
		return f.saveErr
	}
	f.saved = append(f.saved, text)
	return nil
}

func (f *fakeMemory) Retrieve(ctx context.Context, query string, k int) ([]string, error) {
	return f.retrieved, nil
}

func newService(llmClient llm.Client, mem Memory, retrieval bool) *ChatService {
	return NewChatService(llmClient, mem, retrieval, "phi3:mini", "nomic-embed-text", nil, logger.NewNop())
}

func TestChatWithoutMemoryUsesBasePrompt(t *testing.T) {
	fake := &fakeLLM{reply: "hello!"}
	svc := newService(fake, nil, false)

	answer, err := svc.Chat(context.Background(), "Hi")
	require.NoError(t, err)
	assert.Equal(t, "hello!", answer)
	assert.Equal(t, "\nUser: Hi\nBuddyAI:", fake.lastPrompt)
	assert.Equal(t, 0, fake.embedCalls)
	assert.True(t, svc.MemoryReady())
}

func TestChatEmbedsUnconditionallyWhenMemoryEnabled(t *testing.T) {
	fake := &fakeLLM{reply: "hello!"}
	mem := &fakeMemory{ready: true}
	svc := newService(fake, mem, false)

	_, err := svc.Chat(context.Background(), "Hi")
	require.NoError(t, err)
	assert.Equal(t, 1, fake.embedCalls)
	assert.Equal(t, "\nUser: Hi\nBuddyAI:", fake.lastPrompt)
	assert.Empty(t, mem.saved)
}

func TestChatEmbedFailureFailsRequest(t *testing.T) {
	fake := &fakeLLM{reply: "hello!", embedErr: errors.New("embedder down")}
	svc := newService(fake, &fakeMemory{ready: true}, false)

	_, err := svc.Chat(context.Background(), "Hi")
	require.Error(t, err)
}

func TestChatMemoryNotReady(t *testing.T) {
	fake := &fakeLLM{reply: "hello!"}
	svc := newService(fake, &fakeMemory{ready: false}, false)

	_, err := svc.Chat(context.Background(), "Hi")
	assert.ErrorIs(t, err, memory.ErrNotReady)
	assert.False(t, svc.MemoryReady())
}

func TestChatWithRetrievalInjectsMemoryContext(t *testing.T) {
	fake := &fakeLLM{reply: "you like cats"}
	mem := &fakeMemory{
		ready:     true,
		retrieved: []string{"User: i like cats", "Buddy: noted"},
	}
	svc := newService(fake, mem, true)

	answer, err := svc.Chat(context.Background(), "what do I like?")
	require.NoError(t, err)
	assert.Equal(t, "you like cats", answer)

	assert.Contains(t, fake.lastPrompt, "User: i like cats")
	assert.Contains(t, fake.lastPrompt, "Buddy: noted")
	assert.Contains(t, fake.lastPrompt, "what do I like?")

	// Both sides of the exchange are remembered.
	require.Len(t, mem.saved, 2)
	assert.Equal(t, "User: what do I like?", mem.saved[0])
	assert.Equal(t, "Buddy: you like cats", mem.saved[1])
}

func TestChatRetrievalSaveFailureFailsRequest(t *testing.T) {
	fake := &fakeLLM{reply: "hello!"}
	mem := &fakeMemory{ready: true, saveErr: errors.New("store down")}
	svc := newService(fake, mem, true)

	_, err := svc.Chat(context.Background(), "Hi")
	require.Error(t, err)
}

func TestChatCompletionFailure(t *testing.T) {
	fake := &fakeLLM{completeErr: errors.New("model unreachable")}
	svc := newService(fake, nil, false)

	_, err := svc.Chat(context.Background(), "Hi")
	require.Error(t, err)
}
