// Package service provides the chat pipeline behind the gateway.
package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/buddy-ai/buddyai/internal/events"
	"github.com/buddy-ai/buddyai/internal/llm"
	"github.com/buddy-ai/buddyai/internal/memory"
	"github.com/buddy-ai/buddyai/pkg/logger"
	"github.com/buddy-ai/buddyai/pkg/metrics"
)

// basePrompt is the conversation-style prefix used when retrieval is off.
const basePrompt = "\nUser: %s\nBuddyAI:"

// memoryPrompt injects retrieved memory as context when retrieval is on.
const memoryPrompt = `You are BuddyAI, a smart personal assistant with memory.

Follow these rules:
- Use the provided memory to answer the user.
- If memory contains relevant information, prioritize it.
- If memory does not contain relevant information, answer normally.
- Be concise, clear, and helpful.
- Do NOT invent facts that are not in memory.
- Maintain conversational tone.

Memory Context:
%s

User Question:
%s

BuddyAI Response:`

// retrieveK is how many remembered documents are injected as context.
const retrieveK = 3

// Memory is the slice of the vector store the pipeline needs.
type Memory interface {
	Ready() bool
	Save(ctx context.Context, text string) error
	Retrieve(ctx context.Context, query string, k int) ([]string, error)
}

// ChatService turns an incoming message into a generated reply.
type ChatService struct {
	llmClient  llm.Client
	memory     Memory
	retrieval  bool
	chatModel  string
	embedModel string
	publisher  *events.Publisher
	logger     *logger.Logger
}

// NewChatService creates the chat pipeline. memory may be nil (memory
// disabled); publisher may be nil (events disabled); retrieval selects the
// memory-augmented prompt path.
func NewChatService(
	llmClient llm.Client,
	mem Memory,
	retrieval bool,
	chatModel, embedModel string,
	publisher *events.Publisher,
	log *logger.Logger,
) *ChatService {
	return &ChatService{
		llmClient:  llmClient,
		memory:     mem,
		retrieval:  retrieval,
		chatModel:  chatModel,
		embedModel: embedModel,
		publisher:  publisher,
		logger:     log,
	}
}

// MemoryReady reports whether the pipeline's memory dependency is usable.
// True when memory is disabled.
func (s *ChatService) MemoryReady() bool {
	return s.memory == nil || s.memory.Ready()
}

// Chat runs one exchange: embed, optionally remember and retrieve, build the
// prompt, and complete. Upstream failures are returned to the caller as
// retryable errors; nothing here is fatal to the process.
func (s *ChatService) Chat(ctx context.Context, message string) (string, error) {
	start := time.Now()

	if s.memory != nil && !s.memory.Ready() {
		return "", memory.ErrNotReady
	}

	prompt, err := s.buildPrompt(ctx, message)
	if err != nil {
		s.recordExchange("error", start)
		return "", err
	}

	resp, err := s.llmClient.Complete(ctx, &llm.CompletionRequest{
		Model: s.chatModel,
		Messages: []llm.ChatMessage{
			{Role: "user", Content: prompt},
		},
	})
	if err != nil {
		metrics.RecordLLMCall(s.chatModel, "error", time.Since(start).Seconds(), 0, 0)
		s.recordExchange("error", start)
		return "", fmt.Errorf("completion failed: %w", err)
	}
	metrics.RecordLLMCall(resp.Model, "success", time.Since(start).Seconds(), resp.TokensIn, resp.TokensOut)

	answer := resp.Content

	if s.memory != nil && s.retrieval {
		// Remember the answer too; a failure here loses one memory, not
		// the reply.
		if err := s.memory.Save(ctx, "Buddy: "+answer); err != nil {
			s.logger.Warn("failed to save reply to memory", zap.Error(err))
		}
	}

	s.recordExchange("success", start)
	s.logger.Info("chat exchange completed",
		zap.String("model", resp.Model),
		zap.Int64("latency_ms", resp.LatencyMs),
		zap.Int("tokens_out", resp.TokensOut),
	)

	return answer, nil
}

func (s *ChatService) buildPrompt(ctx context.Context, message string) (string, error) {
	if s.memory == nil {
		return fmt.Sprintf(basePrompt, message), nil
	}

	if !s.retrieval {
		// The embedding result is unused on this path, but it is computed
		// all the same so the memory dependency stays exercised and its
		// failures stay visible.
		if _, err := s.llmClient.Embed(ctx, s.embedModel, message); err != nil {
			metrics.EmbeddingsTotal.WithLabelValues(s.embedModel, "error").Inc()
			return "", fmt.Errorf("failed to embed message: %w", err)
		}
		metrics.EmbeddingsTotal.WithLabelValues(s.embedModel, "success").Inc()
		return fmt.Sprintf(basePrompt, message), nil
	}

	if err := s.memory.Save(ctx, "User: "+message); err != nil {
		return "", fmt.Errorf("failed to save message to memory: %w", err)
	}

	memories, err := s.memory.Retrieve(ctx, message, retrieveK)
	if err != nil {
		return "", fmt.Errorf("failed to retrieve memory: %w", err)
	}

	return fmt.Sprintf(memoryPrompt, strings.Join(memories, "\n"), message), nil
}

func (s *ChatService) recordExchange(status string, start time.Time) {
	metrics.ChatExchangesTotal.WithLabelValues(status).Inc()

	if s.publisher == nil {
		return
	}
	s.publisher.PublishExchange(&events.ExchangeEvent{
		ID:        uuid.Must(uuid.NewV7()).String(),
		Model:     s.chatModel,
		Status:    status,
		LatencyMs: time.Since(start).Milliseconds(),
		Timestamp: time.Now(),
	})
}
