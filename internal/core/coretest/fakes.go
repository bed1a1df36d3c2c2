// Package coretest provides in-memory fakes for the core provider and store
// interfaces, for use in unit tests.
package coretest

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/insidelm/backend/internal/core"
	"github.com/insidelm/backend/internal/models"
)

// FakeEmbedder produces deterministic vectors derived from the text content,
// so the same text always embeds to the same vector. Set Err to simulate a
// provider outage.
type FakeEmbedder struct {
	Dim   int
	Err   error
	Calls int
}

func NewFakeEmbedder(dim int) *FakeEmbedder {
	if dim <= 0 {
		dim = 384
	}
	return &FakeEmbedder{Dim: dim}
}

func (e *FakeEmbedder) EmbedTexts(_ context.Context, texts []string) ([][]float32, error) {
	e.Calls++
	if e.Err != nil {
		return nil, e.Err
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = deterministicVector(t, e.Dim)
	}
	return out, nil
}

func deterministicVector(text string, dim int) []float32 {
	sum := sha256.Sum256([]byte(text))
	vec := make([]float32, dim)
	for i := range vec {
		b := sum[(i*4)%len(sum)]
		u := binary.BigEndian.Uint16([]byte{b, sum[(i*7+1)%len(sum)]})
		vec[i] = float32(u)/65535.0 - 0.5
	}
	return vec
}

// FakeLLM replies with queued responses in order, or with Response when the
// queue is empty. Set Err to make every call fail.
type FakeLLM struct {
	Response string
	Queue    []string
	Err      error

	Calls   int
	Prompts []string // final user message of each call
	Systems []string
}

func (l *FakeLLM) Complete(_ context.Context, systemPrompt string, turns []core.ChatTurn) (string, error) {
	l.Calls++
	l.Systems = append(l.Systems, systemPrompt)
	if len(turns) > 0 {
		l.Prompts = append(l.Prompts, turns[len(turns)-1].Content)
	}
	if l.Err != nil {
		return "", l.Err
	}
	if len(l.Queue) > 0 {
		resp := l.Queue[0]
		l.Queue = l.Queue[1:]
		return resp, nil
	}
	return l.Response, nil
}

// FakeStore is an in-memory core.Store. SearchFunc, when set, overrides the
// default similarity search; SearchCalls counts how many searches actually
// reached the store.
type FakeStore struct {
	mu sync.Mutex

	Books     map[string]models.Book
	Chunks    []models.DocumentChunk
	Notebooks map[string]models.Notebook
	Messages  []models.ChatMessage

	SearchFunc  func(queryVec []float32, bookIDs []string, topK int) ([]models.ChunkMatch, error)
	SearchCalls int

	BooksByIDsErr error
	SearchErr     error

	MemoryUpdates int
}

func NewFakeStore() *FakeStore {
	return &FakeStore{
		Books:     make(map[string]models.Book),
		Notebooks: make(map[string]models.Notebook),
	}
}

func (s *FakeStore) CreateBook(_ context.Context, book *models.Book) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	book.CreatedAt, book.UpdatedAt = now, now
	s.Books[book.ID] = *book
	return nil
}

func (s *FakeStore) GetBookByID(_ context.Context, id string) (*models.Book, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if b, ok := s.Books[id]; ok {
		return &b, nil
	}
	return nil, nil
}

func (s *FakeStore) GetBooksByIDs(_ context.Context, ids []string) ([]models.Book, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.BooksByIDsErr != nil {
		return nil, s.BooksByIDsErr
	}
	var out []models.Book
	for _, id := range ids {
		if b, ok := s.Books[id]; ok {
			out = append(out, b)
		}
	}
	return out, nil
}

func (s *FakeStore) GetBooksByGenre(_ context.Context, genre models.Genre) ([]models.Book, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Book
	for _, b := range s.Books {
		if b.Genre == genre {
			out = append(out, b)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *FakeStore) ListBooks(_ context.Context) ([]models.Book, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Book
	for _, b := range s.Books {
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *FakeStore) DeleteBook(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.Books, id)
	kept := s.Chunks[:0]
	for _, ch := range s.Chunks {
		if ch.BookID != id {
			kept = append(kept, ch)
		}
	}
	s.Chunks = kept
	return nil
}

func (s *FakeStore) InsertChunks(_ context.Context, chunks []models.DocumentChunk) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Chunks = append(s.Chunks, chunks...)
	return nil
}

func (s *FakeStore) SearchChunks(_ context.Context, queryVec []float32, bookIDs []string, topK int) ([]models.ChunkMatch, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.SearchCalls++
	if s.SearchErr != nil {
		return nil, s.SearchErr
	}
	if s.SearchFunc != nil {
		return s.SearchFunc(queryVec, bookIDs, topK)
	}

	allowed := make(map[string]bool, len(bookIDs))
	for _, id := range bookIDs {
		allowed[id] = true
	}
	var out []models.ChunkMatch
	for _, ch := range s.Chunks {
		if allowed[ch.BookID] {
			out = append(out, models.ChunkMatch{Chunk: ch, Similarity: 1})
		}
	}
	if len(out) > topK {
		out = out[:topK]
	}
	return out, nil
}

func (s *FakeStore) CreateNotebook(_ context.Context, nb *models.Notebook) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	nb.CreatedAt, nb.UpdatedAt = now, now
	s.Notebooks[nb.ID] = *nb
	return nil
}

func (s *FakeStore) GetNotebookByID(_ context.Context, id, userID string) (*models.Notebook, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	nb, ok := s.Notebooks[id]
	if !ok {
		return nil, nil
	}
	if userID != "" && nb.UserID != userID {
		return nil, nil
	}
	return &nb, nil
}

func (s *FakeStore) ListNotebooksByUser(_ context.Context, userID string) ([]models.Notebook, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Notebook
	for _, nb := range s.Notebooks {
		if nb.UserID == userID {
			out = append(out, nb)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *FakeStore) UpdateNotebookMemory(_ context.Context, id, summary string, facts []string, expect time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	nb, ok := s.Notebooks[id]
	if !ok {
		return false, fmt.Errorf("notebook not found: %s", id)
	}
	if !nb.UpdatedAt.Equal(expect) {
		return false, nil
	}
	nb.MemorySummary = summary
	nb.KeyFacts = facts
	nb.UpdatedAt = time.Now()
	s.Notebooks[id] = nb
	s.MemoryUpdates++
	return true, nil
}

func (s *FakeStore) SaveChatMessage(_ context.Context, msg *models.ChatMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	msg.Timestamp = time.Now()
	s.Messages = append(s.Messages, *msg)
	return nil
}

func (s *FakeStore) GetChatHistory(_ context.Context, notebookID string, limit int) ([]models.ChatMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.ChatMessage
	for _, m := range s.Messages {
		if m.NotebookID == notebookID {
			out = append(out, m)
		}
	}
	if len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out, nil
}

func (s *FakeStore) Close() error { return nil }

// FakeObjectClient is an in-memory core.ObjectClient keyed by bucket/key.
type FakeObjectClient struct {
	mu      sync.Mutex
	Objects map[string][]byte
	Deletes []string
	Err     error
}

func NewFakeObjectClient() *FakeObjectClient {
	return &FakeObjectClient{Objects: make(map[string][]byte)}
}

func (c *FakeObjectClient) UploadFile(_ context.Context, bucket, key string, data []byte, _ string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.Err != nil {
		return "", c.Err
	}
	c.Objects[bucket+"/"+key] = data
	return fmt.Sprintf("https://%s.s3.us-east-2.amazonaws.com/%s", bucket, key), nil
}

func (c *FakeObjectClient) GetFile(_ context.Context, bucket, key string) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.Err != nil {
		return nil, c.Err
	}
	data, ok := c.Objects[bucket+"/"+key]
	if !ok {
		return nil, fmt.Errorf("no such object %s/%s", bucket, key)
	}
	return data, nil
}

func (c *FakeObjectClient) DeleteFile(_ context.Context, bucket, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.Err != nil {
		return c.Err
	}
	c.Deletes = append(c.Deletes, bucket+"/"+key)
	delete(c.Objects, bucket+"/"+key)
	return nil
}

var (
	_ core.Store             = (*FakeStore)(nil)
	_ core.EmbeddingProvider = (*FakeEmbedder)(nil)
	_ core.LLMProvider       = (*FakeLLM)(nil)
	_ core.ObjectClient      = (*FakeObjectClient)(nil)
)
