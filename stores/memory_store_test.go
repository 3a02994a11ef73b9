package stores

import (
	"context"
	"fmt"
	"sync"
	"testing"
)

func TestRecent_EmptyConversation(t *testing.T) {
	store := NewInMemoryStore()
	turns, err := store.Recent(context.Background(), "nobody", 50)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(turns) != 0 {
		t.Errorf("expected empty history, got %d turns", len(turns))
	}
}

func TestAppendRecent_RoundTrip(t *testing.T) {
	// Appending N turns then reading with limit >= N reproduces exactly the
	// N turns in insertion order.
	store := NewInMemoryStore()
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		err := store.Append(ctx, "conv", Turn{Role: RoleUser, Content: fmt.Sprintf("message %d", i)})
		if err != nil {
			t.Fatalf("append %d failed: %v", i, err)
		}
	}

	turns, err := store.Recent(ctx, "conv", 50)
	if err != nil {
		t.Fatalf("recent failed: %v", err)
	}
	if len(turns) != 5 {
		t.Fatalf("expected 5 turns, got %d", len(turns))
	}
	for i, turn := range turns {
		if turn.Content != fmt.Sprintf("message %d", i) {
			t.Errorf("turn %d out of order: %q", i, turn.Content)
		}
		if turn.Sequence != i+1 {
			t.Errorf("turn %d has sequence %d", i, turn.Sequence)
		}
	}
}

func TestRecent_NeverExceedsLimit(t *testing.T) {
	store := NewInMemoryStore()
	ctx := context.Background()

	for i := 0; i < 10; i++ {
		if err := store.Append(ctx, "conv", Turn{Role: RoleUser, Content: fmt.Sprintf("m%d", i)}); err != nil {
			t.Fatalf("append failed: %v", err)
		}
	}

	turns, err := store.Recent(ctx, "conv", 3)
	if err != nil {
		t.Fatalf("recent failed: %v", err)
	}
	if len(turns) != 3 {
		t.Fatalf("expected 3 turns, got %d", len(turns))
	}
	// Most recently appended, in original order.
	want := []string{"m7", "m8", "m9"}
	for i, turn := range turns {
		if turn.Content != want[i] {
			t.Errorf("expected %q at index %d, got %q", want[i], i, turn.Content)
		}
	}
}

func TestRecent_ZeroLimitReturnsAll(t *testing.T) {
	store := NewInMemoryStore()
	ctx := context.Background()

	for i := 0; i < 4; i++ {
		if err := store.Append(ctx, "conv", Turn{Role: RoleUser, Content: "x"}); err != nil {
			t.Fatalf("append failed: %v", err)
		}
	}

	turns, err := store.Recent(ctx, "conv", 0)
	if err != nil {
		t.Fatalf("recent failed: %v", err)
	}
	if len(turns) != 4 {
		t.Errorf("expected all 4 turns, got %d", len(turns))
	}
}

func TestAppend_IsolatedPerConversation(t *testing.T) {
	store := NewInMemoryStore()
	ctx := context.Background()

	if err := store.Append(ctx, "a", Turn{Role: RoleUser, Content: "for a"}); err != nil {
		t.Fatalf("append failed: %v", err)
	}
	if err := store.Append(ctx, "b", Turn{Role: RoleUser, Content: "for b"}); err != nil {
		t.Fatalf("append failed: %v", err)
	}

	turnsA, _ := store.Recent(ctx, "a", 0)
	turnsB, _ := store.Recent(ctx, "b", 0)
	if len(turnsA) != 1 || turnsA[0].Content != "for a" {
		t.Errorf("conversation a corrupted: %+v", turnsA)
	}
	if len(turnsB) != 1 || turnsB[0].Content != "for b" {
		t.Errorf("conversation b corrupted: %+v", turnsB)
	}
}

func TestAppend_ConcurrentSameConversation(t *testing.T) {
	// Concurrent appends for one conversation must serialize: no dropped
	// turns, no duplicate sequence numbers.
	store := NewInMemoryStore()
	ctx := context.Background()

	const n = 100
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := store.Append(ctx, "conv", Turn{Role: RoleUser, Content: "m"}); err != nil {
				t.Errorf("append failed: %v", err)
			}
		}()
	}
	wg.Wait()

	turns, err := store.Recent(ctx, "conv", 0)
	if err != nil {
		t.Fatalf("recent failed: %v", err)
	}
	if len(turns) != n {
		t.Fatalf("expected %d turns, got %d", n, len(turns))
	}
	seen := make(map[int]bool, n)
	for _, turn := range turns {
		if seen[turn.Sequence] {
			t.Errorf("duplicate sequence %d", turn.Sequence)
		}
		seen[turn.Sequence] = true
	}
}

func TestAppend_ConcurrentDistinctConversations(t *testing.T) {
	store := NewInMemoryStore()
	ctx := context.Background()

	const conversations = 20
	const perConversation = 10
	var wg sync.WaitGroup
	for c := 0; c < conversations; c++ {
		wg.Add(1)
		go func(c int) {
			defer wg.Done()
			id := fmt.Sprintf("conv-%d", c)
			for i := 0; i < perConversation; i++ {
				if err := store.Append(ctx, id, Turn{Role: RoleUser, Content: fmt.Sprintf("m%d", i)}); err != nil {
					t.Errorf("append failed: %v", err)
				}
			}
		}(c)
	}
	wg.Wait()

	for c := 0; c < conversations; c++ {
		id := fmt.Sprintf("conv-%d", c)
		turns, err := store.Recent(ctx, id, 0)
		if err != nil {
			t.Fatalf("recent failed for %s: %v", id, err)
		}
		if len(turns) != perConversation {
			t.Errorf("%s: expected %d turns, got %d", id, perConversation, len(turns))
		}
		for i, turn := range turns {
			if turn.Content != fmt.Sprintf("m%d", i) {
				t.Errorf("%s: turn %d out of order: %q", id, i, turn.Content)
			}
		}
	}
}

func TestAppend_CancelledContext(t *testing.T) {
	store := NewInMemoryStore()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := store.Append(ctx, "conv", Turn{Role: RoleUser, Content: "m"}); err == nil {
		t.Error("expected error for cancelled context")
	}
	turns, _ := store.Recent(context.Background(), "conv", 0)
	if len(turns) != 0 {
		t.Errorf("cancelled append must not leave a half-appended turn, got %d turns", len(turns))
	}
}

func TestAppend_AfterClose(t *testing.T) {
	store := NewInMemoryStore()
	if err := store.Close(); err != nil {
		t.Fatalf("close failed: %v", err)
	}
	if err := store.Append(context.Background(), "conv", Turn{Role: RoleUser, Content: "m"}); err == nil {
		t.Error("expected error appending to closed store")
	}
	if err := store.Ping(); err == nil {
		t.Error("expected ping to fail on closed store")
	}
}
