// Package exchange implements the chat exchange client: it appends the user
// message optimistically, performs one synchronous request against the chat
// gateway, and appends the reply to the conversation the exchange was issued
// for.
package exchange

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/buddy-ai/buddyai/internal/model"
	"github.com/buddy-ai/buddyai/pkg/logger"
)

// FallbackReply is shown whenever the gateway cannot produce an answer. The
// user always sees a reply; failures never surface as an error state.
const FallbackReply = "Sorry, I couldn't process that. Please try again."

var (
	// ErrEmptyMessage is returned for empty or whitespace-only input.
	ErrEmptyMessage = errors.New("message is empty")

	// ErrBusy is returned while another exchange is in flight. One exchange
	// at a time keeps replies from interleaving unpredictably.
	ErrBusy = errors.New("an exchange is already in flight")

	// ErrNoConversation is returned when there is no current conversation.
	ErrNoConversation = errors.New("no current conversation")
)

// Conversations is the slice of the conversation store the client needs.
type Conversations interface {
	Current() *model.Conversation
	Append(conversationID string, msg model.Message)
}

// Client performs chat exchanges against the gateway.
type Client struct {
	gatewayURL    string
	httpClient    *http.Client
	store         Conversations
	minReplyDelay time.Duration
	logger        *logger.Logger

	busy atomic.Bool
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient overrides the HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithMinReplyDelay sets the minimum delay between the user message and the
// displayed reply. Zero disables the pacing.
func WithMinReplyDelay(d time.Duration) Option {
	return func(c *Client) { c.minReplyDelay = d }
}

// WithLogger overrides the logger.
func WithLogger(log *logger.Logger) Option {
	return func(c *Client) { c.logger = log }
}

// New creates an exchange client for the gateway at gatewayURL.
func New(gatewayURL string, store Conversations, opts ...Option) *Client {
	c := &Client{
		gatewayURL:    strings.TrimRight(gatewayURL, "/"),
		httpClient:    &http.Client{Timeout: 2 * time.Minute},
		store:         store,
		minReplyDelay: time.Second,
		logger:        logger.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Busy reports whether an exchange is in flight.
func (c *Client) Busy() bool {
	return c.busy.Load()
}

// Send runs one full exchange and returns the assistant message that was
// appended. Empty input appends nothing and never reaches the gateway.
// Gateway failures of any kind produce the fallback reply instead of an
// error. The reply is appended to the conversation that was current when the
// exchange started, even if the user switched conversations meanwhile.
func (c *Client) Send(ctx context.Context, text string) (*model.Message, error) {
	if strings.TrimSpace(text) == "" {
		return nil, ErrEmptyMessage
	}
	if !c.busy.CompareAndSwap(false, true) {
		return nil, ErrBusy
	}
	defer c.busy.Store(false)

	conv := c.store.Current()
	if conv == nil {
		return nil, ErrNoConversation
	}
	conversationID := conv.ID

	c.store.Append(conversationID, model.Message{
		ID:        uuid.Must(uuid.NewV7()).String(),
		Text:      text,
		Sender:    model.SenderUser,
		Timestamp: time.Now(),
	})

	start := time.Now()
	replyText, err := c.request(ctx, text)
	if err != nil {
		c.logger.Warn("chat exchange failed", zap.Error(err))
		replyText = FallbackReply
	}

	// A near-instant reply reads as jarring; pad up to the configured floor.
	if remaining := c.minReplyDelay - time.Since(start); remaining > 0 {
		select {
		case <-time.After(remaining):
		case <-ctx.Done():
		}
	}

	reply := model.Message{
		ID:        uuid.Must(uuid.NewV7()).String(),
		Text:      replyText,
		Sender:    model.SenderAssistant,
		Timestamp: time.Now(),
	}
	c.store.Append(conversationID, reply)

	return &reply, nil
}

func (c *Client) request(ctx context.Context, text string) (string, error) {
	body, err := json.Marshal(model.ChatRequest{Message: text})
	if err != nil {
		return "", fmt.Errorf("failed to encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.gatewayURL+"/api/chat", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("gateway request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("gateway returned status %d", resp.StatusCode)
	}

	var chatResp model.ChatResponse
	if err := json.NewDecoder(resp.Body).Decode(&chatResp); err != nil {
		return "", fmt.Errorf("failed to decode response: %w", err)
	}
	if chatResp.Response == "" {
		return "", errors.New("response field missing or empty")
	}

	return chatResp.Response, nil
}
