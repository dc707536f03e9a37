// Package memory implements the vector memory subsystem: it embeds texts,
// persists them to a named collection on disk, and retrieves the k nearest
// documents for a query.
package memory

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/buddy-ai/buddyai/pkg/logger"
	"github.com/buddy-ai/buddyai/pkg/metrics"
)

// ErrNotReady is returned when the store is used before Init has completed.
var ErrNotReady = errors.New("memory store not ready")

// Embedder turns text into a fixed-dimension vector. Satisfied by llm.Client.
type Embedder interface {
	Embed(ctx context.Context, model, text string) ([]float32, error)
}

// Document is one remembered text with its embedding.
type Document struct {
	ID        string    `json:"id"`
	Content   string    `json:"content"`
	Embedding []float32 `json:"embedding"`
	CreatedAt time.Time `json:"createdAt"`
}

// Store is a persistent vector collection with cosine-similarity retrieval.
// It must be constructed, Init'd, and injected; callers that race Init get
// ErrNotReady instead of an uninitialized handle.
type Store struct {
	embedder   Embedder
	embedModel string
	collection string
	path       string
	logger     *logger.Logger

	mu    sync.RWMutex
	docs  []Document
	ready bool
}

// NewStore creates a store for the named collection under dir.
func NewStore(embedder Embedder, embedModel, dir, collection string, log *logger.Logger) *Store {
	return &Store{
		embedder:   embedder,
		embedModel: embedModel,
		collection: collection,
		path:       filepath.Join(dir, collection+".json"),
		logger:     log,
	}
}

// Init creates or loads the collection. Idempotent; safe to call again after
// a failure.
func (s *Store) Init() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ready {
		return nil
	}

	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("failed to create memory directory: %w", err)
	}

	data, err := os.ReadFile(s.path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		s.docs = nil
	case err != nil:
		return fmt.Errorf("failed to read collection %s: %w", s.collection, err)
	default:
		if err := json.Unmarshal(data, &s.docs); err != nil {
			return fmt.Errorf("failed to parse collection %s: %w", s.collection, err)
		}
	}

	s.ready = true
	metrics.MemoryDocuments.WithLabelValues(s.collection).Set(float64(len(s.docs)))
	s.logger.Info("memory collection ready",
		zap.String("collection", s.collection),
		zap.Int("documents", len(s.docs)),
	)
	return nil
}

// Ready reports whether Init has completed.
func (s *Store) Ready() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.ready
}

// Len returns the number of stored documents.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.docs)
}

// Save embeds text and appends it to the collection.
func (s *Store) Save(ctx context.Context, text string) error {
	if !s.Ready() {
		return ErrNotReady
	}

	vec, err := s.embedder.Embed(ctx, s.embedModel, text)
	if err != nil {
		metrics.MemoryOpsTotal.WithLabelValues("save", "error").Inc()
		return fmt.Errorf("failed to embed text: %w", err)
	}

	doc := Document{
		ID:        uuid.Must(uuid.NewV7()).String(),
		Content:   text,
		Embedding: vec,
		CreatedAt: time.Now(),
	}

	s.mu.Lock()
	s.docs = append(s.docs, doc)
	err = s.persistLocked()
	count := len(s.docs)
	s.mu.Unlock()

	if err != nil {
		metrics.MemoryOpsTotal.WithLabelValues("save", "error").Inc()
		return err
	}

	metrics.MemoryOpsTotal.WithLabelValues("save", "success").Inc()
	metrics.MemoryDocuments.WithLabelValues(s.collection).Set(float64(count))
	s.logger.Debug("memory saved", zap.String("collection", s.collection))
	return nil
}

// Retrieve returns the contents of the k documents nearest to query.
func (s *Store) Retrieve(ctx context.Context, query string, k int) ([]string, error) {
	if !s.Ready() {
		return nil, ErrNotReady
	}
	if k <= 0 {
		k = 3
	}

	vec, err := s.embedder.Embed(ctx, s.embedModel, query)
	if err != nil {
		metrics.MemoryOpsTotal.WithLabelValues("retrieve", "error").Inc()
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}

	s.mu.RLock()
	type scored struct {
		content string
		score   float64
	}
	results := make([]scored, 0, len(s.docs))
	for i := range s.docs {
		results = append(results, scored{
			content: s.docs[i].Content,
			score:   cosineSimilarity(vec, s.docs[i].Embedding),
		})
	}
	s.mu.RUnlock()

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].score > results[j].score
	})

	if k > len(results) {
		k = len(results)
	}
	texts := make([]string, k)
	for i := 0; i < k; i++ {
		texts[i] = results[i].content
	}

	metrics.MemoryOpsTotal.WithLabelValues("retrieve", "success").Inc()
	return texts, nil
}

// persistLocked writes the collection to disk. Caller holds s.mu.
func (s *Store) persistLocked() error {
	data, err := json.Marshal(s.docs)
	if err != nil {
		return fmt.Errorf("failed to marshal collection: %w", err)
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("failed to write collection: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("failed to replace collection file: %w", err)
	}
	return nil
}

func cosineSimilarity(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return -1
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return -1
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
