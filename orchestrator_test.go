package waiter

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/delaight/waiter/models"
	"github.com/delaight/waiter/retrieval"
	"github.com/delaight/waiter/stores"
	"github.com/delaight/waiter/tools"
)

// scriptedEngine replays a fixed sequence of rounds. Streaming splits text
// parts into word fragments so concatenation checks are meaningful.
type scriptedEngine struct {
	mu     sync.Mutex
	rounds []models.EngineResponse
	errs   []error
	served int
}

func (e *scriptedEngine) next() (models.EngineResponse, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.served >= len(e.rounds) {
		return models.EngineResponse{}, fmt.Errorf("engine script exhausted after %d rounds", e.served)
	}
	i := e.served
	e.served++
	if e.errs != nil && e.errs[i] != nil {
		return models.EngineResponse{}, e.errs[i]
	}
	return e.rounds[i], nil
}

func (e *scriptedEngine) Complete(_ context.Context, request models.EngineRequest, _ []models.Declaration, _ []stores.Turn) (models.EngineResponse, error) {
	return e.next()
}

func (e *scriptedEngine) CompleteStream(ctx context.Context, request models.EngineRequest, tools []models.Declaration, history []stores.Turn) (<-chan models.EngineResponse, <-chan error) {
	respChan := make(chan models.EngineResponse)
	errChan := make(chan error, 1)
	go func() {
		defer close(respChan)
		defer close(errChan)
		resp, err := e.next()
		if err != nil {
			errChan <- err
			return
		}
		for _, part := range resp.Parts {
			if part.ToolCall != nil {
				respChan <- models.EngineResponse{Parts: []models.Part{part}}
				continue
			}
			if part.Text == nil {
				continue
			}
			// Emit word-sized fragments, keeping separators.
			rest := *part.Text
			for len(rest) > 0 {
				cut := strings.IndexByte(rest, ' ')
				var fragment string
				if cut < 0 {
					fragment, rest = rest, ""
				} else {
					fragment, rest = rest[:cut+1], rest[cut+1:]
				}
				respChan <- models.EngineResponse{Parts: []models.Part{models.TextPart(fragment)}}
			}
		}
	}()
	return respChan, errChan
}

type stubIndex struct {
	docs []retrieval.DishDocument
}

func (s *stubIndex) Search(_ context.Context, _ string, topK int) ([]retrieval.DishDocument, error) {
	if topK > 0 && len(s.docs) > topK {
		return s.docs[:topK], nil
	}
	return s.docs, nil
}

func cheeseIndex() *stubIndex {
	return &stubIndex{docs: []retrieval.DishDocument{
		{Name: "Quattro Formaggi", Content: "Quattro Formaggi Pizza four cheeses"},
		{Name: "Cacio e Pepe", Content: "Cacio e Pepe Pasta pecorino, pepper"},
	}}
}

func toolCallResponse(id, name string, args map[string]any) models.EngineResponse {
	return models.EngineResponse{Parts: []models.Part{
		{ToolCall: &models.ToolCall{ID: id, Name: name, Args: args}},
	}}
}

func textResponse(text string) models.EngineResponse {
	return models.EngineResponse{Parts: []models.Part{models.TextPart(text)}}
}

func newTestOrchestrator(t *testing.T, engine *scriptedEngine, index retrieval.Index) (*Orchestrator, stores.MemoryStore) {
	t.Helper()
	store := stores.NewInMemoryStore()
	config := NewConfig().
		WithStore(store).
		WithEngine(engine).
		WithIndex(index).
		WithRegistry(tools.WaiterRegistry(index, tools.DefaultScheduler()))
	orchestrator, err := NewOrchestrator(config)
	if err != nil {
		t.Fatalf("failed to build orchestrator: %v", err)
	}
	return orchestrator, store
}

func allTurns(t *testing.T, store stores.MemoryStore, conversationID string) []stores.Turn {
	t.Helper()
	turns, err := store.Recent(context.Background(), conversationID, 0)
	if err != nil {
		t.Fatalf("failed to read turns: %v", err)
	}
	return turns
}

func TestHandleTurn_MenuLookupRoundTrip(t *testing.T) {
	engine := &scriptedEngine{rounds: []models.EngineResponse{
		toolCallResponse("call-1", "menu_lookup", map[string]any{"dish": "cheese"}),
		textResponse("We have Quattro Formaggi and Cacio e Pepe. Which would you like?"),
	}}
	orchestrator, store := newTestOrchestrator(t, engine, cheeseIndex())

	reply, err := orchestrator.HandleTurn(context.Background(), "conv-1", "I'd like something with cheese")
	if err != nil {
		t.Fatalf("turn failed: %v", err)
	}
	if !strings.Contains(reply, "Quattro Formaggi") || !strings.Contains(reply, "Cacio e Pepe") {
		t.Errorf("reply should mention both cheese dishes: %q", reply)
	}

	turns := allTurns(t, store, "conv-1")
	if len(turns) != 3 {
		t.Fatalf("expected user+tool+assistant turns, got %d", len(turns))
	}
	if turns[0].Role != stores.RoleUser || turns[1].Role != stores.RoleTool || turns[2].Role != stores.RoleAssistant {
		t.Errorf("unexpected roles: %s, %s, %s", turns[0].Role, turns[1].Role, turns[2].Role)
	}
	if turns[1].ToolName != "menu_lookup" {
		t.Errorf("tool turn should record tool name, got %q", turns[1].ToolName)
	}
	if !strings.Contains(turns[1].Content, "Quattro Formaggi") {
		t.Errorf("tool turn should carry the lookup output: %q", turns[1].Content)
	}
}

func TestHandleTurn_PlainReplySkipsTools(t *testing.T) {
	engine := &scriptedEngine{rounds: []models.EngineResponse{
		textResponse("Excellent choice! Shall I place the order?"),
	}}
	orchestrator, store := newTestOrchestrator(t, engine, cheeseIndex())

	// A proposed dish list is already on record from an earlier lookup.
	ctx := context.Background()
	for _, turn := range []stores.Turn{
		{Role: stores.RoleUser, Content: "I'd like something with cheese"},
		{Role: stores.RoleTool, ToolName: "menu_lookup", Content: `{"dishes":["Dish: Quattro Formaggi Dish with Ingredients: four cheeses","Dish: Cacio e Pepe Dish with Ingredients: pecorino, pepper"]}`},
		{Role: stores.RoleAssistant, Content: "We have Quattro Formaggi and Cacio e Pepe. Which would you like?"},
	} {
		if err := store.Append(ctx, "conv-2", turn); err != nil {
			t.Fatalf("failed to seed history: %v", err)
		}
	}

	reply, err := orchestrator.HandleTurn(ctx, "conv-2", "I'll take the first one")
	if err != nil {
		t.Fatalf("turn failed: %v", err)
	}
	if reply != "Excellent choice! Shall I place the order?" {
		t.Errorf("unexpected reply: %q", reply)
	}
	if engine.served != 1 {
		t.Errorf("confirming a proposed dish must not trigger a second lookup, got %d rounds", engine.served)
	}

	turns := allTurns(t, store, "conv-2")
	if len(turns) != 5 {
		t.Fatalf("expected seeded round plus user+assistant turns, got %d", len(turns))
	}
	if turns[3].Role != stores.RoleUser || turns[4].Role != stores.RoleAssistant {
		t.Errorf("unexpected trailing roles: %s, %s", turns[3].Role, turns[4].Role)
	}
}

func TestHandleTurn_PlaceOrder(t *testing.T) {
	engine := &scriptedEngine{rounds: []models.EngineResponse{
		toolCallResponse("call-1", "place_order", map[string]any{"meals": []any{"Quattro Formaggi"}}),
		textResponse("Thank you for your order. Your Quattro Formaggi arrives in 20 minutes."),
	}}
	orchestrator, store := newTestOrchestrator(t, engine, cheeseIndex())

	reply, err := orchestrator.HandleTurn(context.Background(), "conv-3", "Yes, order the Quattro Formaggi please")
	if err != nil {
		t.Fatalf("turn failed: %v", err)
	}
	if !strings.Contains(reply, "20 minutes") {
		t.Errorf("reply should quote the delivery estimate: %q", reply)
	}

	turns := allTurns(t, store, "conv-3")
	if len(turns) != 3 {
		t.Fatalf("expected user+tool+assistant turns, got %d", len(turns))
	}
	if !strings.Contains(turns[1].Content, "20") {
		t.Errorf("tool turn should carry the estimate: %q", turns[1].Content)
	}
	if engine.served != 2 {
		t.Errorf("expected exactly one round-trip, got %d rounds", engine.served)
	}
}

func TestHandleTurn_UnknownToolDegrades(t *testing.T) {
	engine := &scriptedEngine{rounds: []models.EngineResponse{
		toolCallResponse("call-1", "book_table", map[string]any{"seats": 4.0}),
	}}
	orchestrator, store := newTestOrchestrator(t, engine, cheeseIndex())

	reply, err := orchestrator.HandleTurn(context.Background(), "conv-4", "Book me a table")
	if err != nil {
		t.Fatalf("degraded turn should not error: %v", err)
	}
	if reply != DegradedReply {
		t.Errorf("expected degraded reply, got %q", reply)
	}

	turns := allTurns(t, store, "conv-4")
	if len(turns) != 2 {
		t.Fatalf("degraded turn must add exactly 2 turns, got %d", len(turns))
	}
	if turns[0].Role != stores.RoleUser || turns[1].Role != stores.RoleAssistant {
		t.Errorf("unexpected roles: %s, %s", turns[0].Role, turns[1].Role)
	}
	if turns[1].Content != DegradedReply {
		t.Errorf("assistant turn should carry the degraded reply: %q", turns[1].Content)
	}
	if engine.served != 1 {
		t.Errorf("no second round after a tool failure, got %d rounds", engine.served)
	}
}

func TestHandleTurn_EngineErrorAppendsNothing(t *testing.T) {
	engineErr := &models.EngineError{Code: models.EngineRateLimited, Err: errors.New("429")}
	engine := &scriptedEngine{
		rounds: []models.EngineResponse{{}},
		errs:   []error{engineErr},
	}
	orchestrator, store := newTestOrchestrator(t, engine, cheeseIndex())

	_, err := orchestrator.HandleTurn(context.Background(), "conv-5", "Hello")
	var ee *models.EngineError
	if !errors.As(err, &ee) {
		t.Fatalf("expected EngineError, got %v", err)
	}
	if !ee.Retryable() {
		t.Errorf("rate_limited should be retryable")
	}

	if turns := allTurns(t, store, "conv-5"); len(turns) != 0 {
		t.Fatalf("engine failure must append nothing, got %d turns", len(turns))
	}
}

func TestHandleTurn_Validation(t *testing.T) {
	engine := &scriptedEngine{}
	orchestrator, _ := newTestOrchestrator(t, engine, cheeseIndex())

	_, err := orchestrator.HandleTurn(context.Background(), "conv-6", "   ")
	var ve *models.ValidationError
	if !errors.As(err, &ve) || ve.Field != "message" {
		t.Fatalf("expected message validation error, got %v", err)
	}

	_, err = orchestrator.HandleTurn(context.Background(), "", "hello")
	if !errors.As(err, &ve) || ve.Field != "conversation_id" {
		t.Fatalf("expected conversation_id validation error, got %v", err)
	}
	if engine.served != 0 {
		t.Errorf("validation failures must not reach the engine")
	}
}

func TestHandleTurnStream_MatchesBufferedReply(t *testing.T) {
	script := func() []models.EngineResponse {
		return []models.EngineResponse{
			toolCallResponse("call-1", "menu_lookup", map[string]any{"dish": "cheese"}),
			textResponse("We have Quattro Formaggi and Cacio e Pepe today."),
		}
	}

	buffered, _ := newTestOrchestrator(t, &scriptedEngine{rounds: script()}, cheeseIndex())
	want, err := buffered.HandleTurn(context.Background(), "conv-7", "something with cheese")
	if err != nil {
		t.Fatalf("buffered turn failed: %v", err)
	}

	streaming, store := newTestOrchestrator(t, &scriptedEngine{rounds: script()}, cheeseIndex())
	fragments, errChan := streaming.HandleTurnStream(context.Background(), "conv-7", "something with cheese")

	var got strings.Builder
	for fragment := range fragments {
		got.WriteString(fragment)
	}
	if err := <-errChan; err != nil {
		t.Fatalf("stream failed: %v", err)
	}

	if got.String() != want {
		t.Errorf("streamed reply differs from buffered reply:\n stream %q\n buffer %q", got.String(), want)
	}

	turns := allTurns(t, store, "conv-7")
	if len(turns) != 3 {
		t.Fatalf("expected user+tool+assistant turns after stream, got %d", len(turns))
	}
	if turns[2].Content != want {
		t.Errorf("stored assistant turn should match the full reply: %q", turns[2].Content)
	}
}

func TestHandleTurnStream_DegradedMatchesBuffered(t *testing.T) {
	// First round carries lead-in text alongside a tool call that will fail.
	script := func() []models.EngineResponse {
		return []models.EngineResponse{{Parts: []models.Part{
			models.TextPart("One moment while I check. "),
			{ToolCall: &models.ToolCall{ID: "call-1", Name: "book_table", Args: map[string]any{"seats": 4.0}}},
		}}}
	}

	buffered, bufferedStore := newTestOrchestrator(t, &scriptedEngine{rounds: script()}, cheeseIndex())
	want, err := buffered.HandleTurn(context.Background(), "conv-10", "Book me a table")
	if err != nil {
		t.Fatalf("buffered turn failed: %v", err)
	}
	if want != "One moment while I check. "+DegradedReply {
		t.Errorf("reply should keep the lead-in text ahead of the degraded tail: %q", want)
	}

	streaming, store := newTestOrchestrator(t, &scriptedEngine{rounds: script()}, cheeseIndex())
	fragments, errChan := streaming.HandleTurnStream(context.Background(), "conv-10", "Book me a table")

	var got strings.Builder
	for fragment := range fragments {
		got.WriteString(fragment)
	}
	if err := <-errChan; err != nil {
		t.Fatalf("stream failed: %v", err)
	}
	if got.String() != want {
		t.Errorf("streamed reply differs from buffered reply:\n stream %q\n buffer %q", got.String(), want)
	}

	for _, s := range []stores.MemoryStore{bufferedStore, store} {
		turns := allTurns(t, s, "conv-10")
		if len(turns) != 2 {
			t.Fatalf("degraded turn must add exactly 2 turns, got %d", len(turns))
		}
		if turns[1].Content != want {
			t.Errorf("stored assistant turn should match the full reply: %q", turns[1].Content)
		}
	}
}

func TestHandleTurnStream_CancellationIsNotAnEngineError(t *testing.T) {
	// Enough words to overrun the fragment buffer with nobody reading.
	engine := &scriptedEngine{rounds: []models.EngineResponse{
		textResponse(strings.Repeat("ciao ", 2*streamBuffer)),
	}}
	orchestrator, store := newTestOrchestrator(t, engine, cheeseIndex())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, errChan := orchestrator.HandleTurnStream(ctx, "conv-11", "hello")

	err := <-errChan
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected the context cancellation, got %v", err)
	}
	var ee *models.EngineError
	if errors.As(err, &ee) {
		t.Errorf("consumer cancellation must not masquerade as an engine failure: %v", err)
	}

	if turns := allTurns(t, store, "conv-11"); len(turns) != 0 {
		t.Fatalf("canceled turn must append nothing, got %d turns", len(turns))
	}
}

func TestHandleTurnStream_EngineErrorAppendsNothing(t *testing.T) {
	engine := &scriptedEngine{
		rounds: []models.EngineResponse{{}},
		errs:   []error{&models.EngineError{Code: models.EngineTimeout, Err: errors.New("deadline")}},
	}
	orchestrator, store := newTestOrchestrator(t, engine, cheeseIndex())

	fragments, errChan := orchestrator.HandleTurnStream(context.Background(), "conv-8", "hello")
	for range fragments {
	}
	var ee *models.EngineError
	if err := <-errChan; !errors.As(err, &ee) {
		t.Fatalf("expected EngineError, got %v", err)
	}

	if turns := allTurns(t, store, "conv-8"); len(turns) != 0 {
		t.Fatalf("engine failure must append nothing, got %d turns", len(turns))
	}
}

func TestHandleTurn_SerializesSameConversation(t *testing.T) {
	engine := &scriptedEngine{rounds: []models.EngineResponse{
		textResponse("first"),
		textResponse("second"),
	}}
	orchestrator, store := newTestOrchestrator(t, engine, cheeseIndex())

	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := orchestrator.HandleTurn(context.Background(), "conv-9", "hello"); err != nil {
				t.Errorf("turn failed: %v", err)
			}
		}()
	}
	wg.Wait()

	turns := allTurns(t, store, "conv-9")
	if len(turns) != 4 {
		t.Fatalf("expected 4 turns from 2 serialized turns, got %d", len(turns))
	}
	// Serialized turns never interleave: user then assistant, twice.
	for i, turn := range turns {
		wantRole := stores.RoleUser
		if i%2 == 1 {
			wantRole = stores.RoleAssistant
		}
		if turn.Role != wantRole {
			t.Errorf("turn %d: expected role %s, got %s", i, wantRole, turn.Role)
		}
	}
}
