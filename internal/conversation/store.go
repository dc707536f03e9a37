// Package conversation implements the multi-conversation session model:
// creation, switching, renaming, deletion, title derivation, and durable
// persistence of the conversation list.
package conversation

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	bolt "go.etcd.io/bbolt"
	"go.uber.org/zap"

	"github.com/buddy-ai/buddyai/internal/model"
	"github.com/buddy-ai/buddyai/pkg/logger"
)

const (
	// DefaultTitle is the placeholder title until the first user message.
	DefaultTitle = "New Conversation"

	// WelcomeText seeds every new conversation.
	WelcomeText = "Hey buddy! 👋 I'm your AI companion. I'll remember everything we talk about across all our chats!"

	// titleMaxLen is the auto-derived title prefix length.
	titleMaxLen = 30

	// storageKey namespaces the serialized conversation list, mirroring the
	// localStorage key of earlier builds.
	storageKey = "buddyai_chats"

	bucketName = "conversations"
)

// Store owns the ordered conversation list and the current conversation.
// The whole list persists as one JSON blob under a fixed key.
type Store struct {
	logger *logger.Logger

	mu            sync.RWMutex
	db            *bolt.DB
	conversations []*model.Conversation
	currentID     string
}

// Open loads the store from the bolt file at path. A missing or corrupt blob
// is discarded and a fresh conversation is created; startup never fails on
// bad data.
func Open(path string, log *logger.Logger) (*Store, error) {
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open conversation database: %w", err)
	}
	if err := db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(bucketName))
		return err
	}); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create bucket: %w", err)
	}

	s := &Store{
		db:     db,
		logger: log,
	}
	s.restore()
	return s, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

// restore loads the persisted list and resumes the active conversation,
// falling back to the first conversation, then to creating a new one.
func (s *Store) restore() {
	var blob []byte
	s.db.View(func(tx *bolt.Tx) error {
		if v := tx.Bucket([]byte(bucketName)).Get([]byte(storageKey)); v != nil {
			blob = append([]byte(nil), v...)
		}
		return nil
	})

	if blob != nil {
		var list []*model.Conversation
		if err := json.Unmarshal(blob, &list); err != nil {
			s.logger.Warn("discarding corrupt conversation data", zap.Error(err))
		} else {
			s.conversations = list
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, c := range s.conversations {
		if c.IsActive {
			s.currentID = c.ID
			break
		}
	}
	if s.currentID == "" && len(s.conversations) > 0 {
		s.currentID = s.conversations[0].ID
	}
	if len(s.conversations) == 0 {
		s.createLocked()
	}
}

// Create makes a new conversation with a seeded welcome message, marks it
// active and current, and persists.
func (s *Store) Create() *model.Conversation {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.createLocked()
}

func (s *Store) createLocked() *model.Conversation {
	now := time.Now()
	conv := &model.Conversation{
		ID:    uuid.Must(uuid.NewV7()).String(),
		Title: DefaultTitle,
		Messages: []model.Message{
			{
				ID:        uuid.Must(uuid.NewV7()).String(),
				Text:      WelcomeText,
				Sender:    model.SenderAssistant,
				Timestamp: now,
			},
		},
		CreatedAt: now,
		IsActive:  true,
	}

	for _, c := range s.conversations {
		c.IsActive = false
	}
	s.conversations = append(s.conversations, conv)
	s.currentID = conv.ID
	s.persistLocked()

	s.logger.Debug("conversation created", zap.String("conversation_id", conv.ID))
	return conv
}

// SwitchTo makes the conversation with the given id current. Unknown ids are
// a silent no-op. Active flags are not rewritten here; they sync on the next
// message append.
func (s *Store) SwitchTo(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.findLocked(id) == nil {
		return
	}
	s.currentID = id
}

// Rename sets a conversation's title to the trimmed value. Empty titles and
// unknown ids are silent no-ops.
func (s *Store) Rename(id, title string) {
	title = strings.TrimSpace(title)
	if title == "" {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	conv := s.findLocked(id)
	if conv == nil {
		return
	}
	conv.Title = title
	s.persistLocked()
}

// Delete removes a conversation. Deleting the current conversation switches
// to the first remaining one, or creates a fresh one when none remain.
func (s *Store) Delete(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := -1
	for i, c := range s.conversations {
		if c.ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		return
	}

	s.conversations = append(s.conversations[:idx], s.conversations[idx+1:]...)

	if id == s.currentID {
		if len(s.conversations) > 0 {
			s.currentID = s.conversations[0].ID
		} else {
			s.createLocked()
			return
		}
	}
	s.persistLocked()
}

// Append adds a message to the addressed conversation, marks it active and
// all others inactive, and persists. Replies from in-flight exchanges carry
// the conversation id they were issued for, so a reply never lands in a
// conversation the user has since switched away from.
//
// The first user-sent message also sets the title: the exact text when it is
// at most 30 characters, otherwise the first 30 plus "...". This fires once
// per conversation, and deliberately also after a manual rename, matching
// the reference behavior.
func (s *Store) Append(conversationID string, msg model.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()

	conv := s.findLocked(conversationID)
	if conv == nil {
		return
	}

	if msg.Sender == model.SenderUser && !conv.HasUserMessage() {
		conv.Title = deriveTitle(msg.Text)
	}

	conv.Messages = append(conv.Messages, msg)
	for _, c := range s.conversations {
		c.IsActive = c.ID == conv.ID
	}
	s.persistLocked()
}

// Current returns the current conversation, or nil when the list is empty.
func (s *Store) Current() *model.Conversation {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.findLocked(s.currentID)
}

// Get returns the conversation with the given id.
func (s *Store) Get(id string) (*model.Conversation, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	conv := s.findLocked(id)
	return conv, conv != nil
}

// List returns the conversations in creation order.
func (s *Store) List() []*model.Conversation {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*model.Conversation, len(s.conversations))
	copy(out, s.conversations)
	return out
}

func (s *Store) findLocked(id string) *model.Conversation {
	for _, c := range s.conversations {
		if c.ID == id {
			return c
		}
	}
	return nil
}

// persistLocked writes the full list as one blob. An empty list is never
// written, so initialization cannot clobber existing data. Persistence
// failures are logged, not raised; the in-memory session keeps working.
func (s *Store) persistLocked() {
	if len(s.conversations) == 0 || s.db == nil {
		return
	}

	blob, err := json.Marshal(s.conversations)
	if err != nil {
		s.logger.Error("failed to serialize conversations", zap.Error(err))
		return
	}

	err = s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket([]byte(bucketName)).Put([]byte(storageKey), blob)
	})
	if err != nil {
		s.logger.Error("failed to persist conversations", zap.Error(err))
	}
}

func deriveTitle(text string) string {
	runes := []rune(text)
	if len(runes) <= titleMaxLen {
		return text
	}
	return string(runes[:titleMaxLen]) + "..."
}
