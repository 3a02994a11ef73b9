package stores

import (
	"context"
	"fmt"
	"sync"
)

// InMemoryStore keeps conversation logs for the lifetime of the process.
// Each conversation has its own lock, so concurrent turns for different
// conversations never contend while appends for one conversation are
// serialized.
type InMemoryStore struct {
	mu     sync.RWMutex
	logs   map[string]*conversationLog
	closed bool
}

type conversationLog struct {
	mu    sync.Mutex
	turns []Turn
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{logs: make(map[string]*conversationLog)}
}

func (s *InMemoryStore) log(conversationID string) *conversationLog {
	s.mu.RLock()
	l, ok := s.logs[conversationID]
	s.mu.RUnlock()
	if ok {
		return l
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if l, ok = s.logs[conversationID]; ok {
		return l
	}
	l = &conversationLog{}
	s.logs[conversationID] = l
	return l
}

// Append records the turn at the end of the conversation. The sequence number
// is assigned under the per-conversation lock so duplicate delivery or retry
// cannot interleave half-written turns.
func (s *InMemoryStore) Append(ctx context.Context, conversationID string, turn Turn) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.RLock()
	closed := s.closed
	s.mu.RUnlock()
	if closed {
		return fmt.Errorf("store is closed")
	}

	l := s.log(conversationID)
	l.mu.Lock()
	defer l.mu.Unlock()

	turn.ConversationID = conversationID
	turn.Sequence = len(l.turns) + 1
	l.turns = append(l.turns, turn)
	return nil
}

// Recent returns at most limit of the most recently appended turns in
// insertion order. limit <= 0 returns the full log.
func (s *InMemoryStore) Recent(ctx context.Context, conversationID string, limit int) ([]Turn, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	l := s.log(conversationID)
	l.mu.Lock()
	defer l.mu.Unlock()

	turns := l.turns
	if limit > 0 && len(turns) > limit {
		turns = turns[len(turns)-limit:]
	}

	out := make([]Turn, len(turns))
	copy(out, turns)
	return out, nil
}

func (s *InMemoryStore) ListConversations(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]string, 0, len(s.logs))
	for id := range s.logs {
		ids = append(ids, id)
	}
	return ids, nil
}

func (s *InMemoryStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func (s *InMemoryStore) Ping() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return fmt.Errorf("store is closed")
	}
	return nil
}
