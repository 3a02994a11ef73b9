// Package waiter orchestrates conversational ordering turns: it assembles
// prompts from conversation memory and the dish index, drives the completion
// engine, dispatches tool calls, and records resolved turns.
package waiter

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"

	"github.com/delaight/waiter/models"
	"github.com/delaight/waiter/prompt"
	"github.com/delaight/waiter/stores"
)

// Reply sent in place of the assistant's answer when a tool call fails. The
// turn stays usable; the customer just repeats or rephrases.
const DegradedReply = "I'm sorry, I couldn't complete that just now. Could you repeat your request?"

// streamBuffer bounds the fragment channel so a stalled consumer applies
// backpressure to the engine read loop.
const streamBuffer = 32

// Orchestrator runs one conversational turn at a time per conversation.
type Orchestrator struct {
	config *Config

	mu       sync.Mutex
	inFlight map[string]*sync.Mutex
}

func NewOrchestrator(config *Config) (*Orchestrator, error) {
	if config.Store == nil {
		return nil, fmt.Errorf("orchestrator requires a memory store")
	}
	if config.Engine == nil {
		return nil, fmt.Errorf("orchestrator requires a completion engine")
	}
	if config.Registry == nil {
		return nil, fmt.Errorf("orchestrator requires a tool registry")
	}
	if config.Index == nil {
		return nil, fmt.Errorf("orchestrator requires a retrieval index")
	}
	return &Orchestrator{
		config:   config,
		inFlight: map[string]*sync.Mutex{},
	}, nil
}

// HandleTurn runs one buffered turn and returns the assistant's full reply.
// The user turn, any tool turns, and the assistant turn are appended to
// memory only when the turn resolves; an engine failure appends nothing, so
// the caller can retry without double-recording.
func (o *Orchestrator) HandleTurn(ctx context.Context, conversationID, message string) (string, error) {
	if strings.TrimSpace(message) == "" {
		return "", &models.ValidationError{Field: "message"}
	}
	if conversationID == "" {
		return "", &models.ValidationError{Field: "conversation_id"}
	}

	unlock := o.lockConversation(conversationID)
	defer unlock()

	reply, pending, err := o.runTurn(ctx, conversationID, message, nil)
	if err != nil {
		return "", err
	}
	if err := o.flush(ctx, conversationID, pending); err != nil {
		return "", err
	}
	return reply, nil
}

// HandleTurnStream runs one turn, emitting reply fragments as the engine
// produces them. The fragment channel closes when the turn resolves; the
// error channel carries at most one terminal failure. Concatenating the
// fragments yields exactly the reply HandleTurn would have returned.
func (o *Orchestrator) HandleTurnStream(ctx context.Context, conversationID, message string) (<-chan string, <-chan error) {
	fragments := make(chan string, streamBuffer)
	errChan := make(chan error, 1)

	if strings.TrimSpace(message) == "" {
		errChan <- &models.ValidationError{Field: "message"}
		close(fragments)
		close(errChan)
		return fragments, errChan
	}
	if conversationID == "" {
		errChan <- &models.ValidationError{Field: "conversation_id"}
		close(fragments)
		close(errChan)
		return fragments, errChan
	}

	go func() {
		defer close(fragments)
		defer close(errChan)

		unlock := o.lockConversation(conversationID)
		defer unlock()

		emit := func(fragment string) bool {
			select {
			case fragments <- fragment:
				return true
			case <-ctx.Done():
				return false
			}
		}

		_, pending, err := o.runTurn(ctx, conversationID, message, emit)
		if err != nil {
			errChan <- err
			return
		}
		if err := o.flush(ctx, conversationID, pending); err != nil {
			errChan <- err
		}
	}()

	return fragments, errChan
}

// runTurn executes the engine rounds for one turn without touching the store.
// It returns the full reply text and the turns to append at resolution. When
// emit is non-nil, text fragments are forwarded as they arrive.
func (o *Orchestrator) runTurn(ctx context.Context, conversationID, message string, emit func(string) bool) (string, []stores.Turn, error) {
	history, err := o.history(ctx, conversationID)
	if err != nil {
		return "", nil, err
	}

	docs, err := o.config.Index.Search(ctx, message, o.config.ContextTopK)
	if err != nil {
		// The menu index being down degrades context, not the turn.
		log.Printf("Dish context lookup failed for conversation %s: %v", conversationID, err)
	}

	request := models.EngineRequest{
		System: o.config.SystemPrompt,
		User:   prompt.Assemble(message, docs),
	}
	declarations := o.config.Registry.Declarations()

	first, err := o.completeRound(ctx, request, declarations, history, emit)
	if err != nil {
		return "", nil, err
	}

	pending := []stores.Turn{{Role: stores.RoleUser, Content: message}}
	reply := first.Text()

	calls := first.ToolCalls()
	if len(calls) == 0 {
		pending = append(pending, stores.Turn{Role: stores.RoleAssistant, Content: reply})
		return reply, pending, nil
	}

	// One pending tool call per round, no fan-out.
	call := calls[0]
	if len(calls) > 1 {
		log.Printf("Engine requested %d tool calls; resolving only the first", len(calls))
	}

	output, err := o.config.Registry.Invoke(ctx, call.Name, call.Args)
	if err != nil {
		var toolErr *models.ToolError
		if errors.As(err, &toolErr) {
			log.Printf("Tool %s failed in conversation %s (%s): %v", call.Name, conversationID, toolErr.Code, toolErr.Err)
			// Any first-round text already reached the stream, so it stays
			// part of the reply; only the degraded tail still needs emitting.
			degraded := reply + DegradedReply
			if emit != nil && !emit(DegradedReply) {
				return "", nil, fmt.Errorf("turn canceled mid-stream: %w", ctx.Err())
			}
			pending = append(pending, stores.Turn{Role: stores.RoleAssistant, Content: degraded})
			return degraded, pending, nil
		}
		return "", nil, err
	}
	results := []models.ToolResult{{ToolID: call.ID, ToolName: call.Name, Output: output}}
	toolTurns := []stores.Turn{{Role: stores.RoleTool, ToolName: call.Name, Content: output}}

	// Second round: hand the tool outputs back. The user turn joins the
	// history so the engine sees the full exchange.
	followUp := models.EngineRequest{
		System:      o.config.SystemPrompt,
		ToolResults: results,
	}
	second, err := o.completeRound(ctx, followUp, declarations, append(history, pending[0]), emit)
	if err != nil {
		return "", nil, err
	}
	if extra := second.ToolCalls(); len(extra) > 0 {
		// One round-trip per turn; anything further is dropped.
		log.Printf("Engine requested %d further tool call(s) after the round-trip; ignoring", len(extra))
	}

	reply += second.Text()
	pending = append(pending, toolTurns...)
	pending = append(pending, stores.Turn{Role: stores.RoleAssistant, Content: reply})
	return reply, pending, nil
}

// completeRound runs one engine round, buffered or streamed depending on
// whether emit is set, and returns the accumulated response.
func (o *Orchestrator) completeRound(ctx context.Context, request models.EngineRequest, declarations []models.Declaration, history []stores.Turn, emit func(string) bool) (models.EngineResponse, error) {
	if emit == nil {
		return o.config.Engine.Complete(ctx, request, declarations, history)
	}

	respChan, errChan := o.config.Engine.CompleteStream(ctx, request, declarations, history)
	var accumulated models.EngineResponse
	for respChan != nil || errChan != nil {
		select {
		case resp, ok := <-respChan:
			if !ok {
				respChan = nil
				continue
			}
			for _, part := range resp.Parts {
				if part.Text != nil && *part.Text != "" {
					if !emit(*part.Text) {
						return models.EngineResponse{}, fmt.Errorf("turn canceled mid-stream: %w", ctx.Err())
					}
				}
			}
			accumulated.Parts = append(accumulated.Parts, resp.Parts...)
		case err, ok := <-errChan:
			if !ok {
				errChan = nil
				continue
			}
			if err != nil {
				return models.EngineResponse{}, err
			}
		}
	}
	return accumulated, nil
}

func (o *Orchestrator) history(ctx context.Context, conversationID string) ([]stores.Turn, error) {
	turns, err := o.config.Store.Recent(ctx, conversationID, o.config.RetrieveSize)
	if err != nil {
		return nil, fmt.Errorf("failed to load conversation history: %w", err)
	}
	return stores.TrimWindow(turns), nil
}

// flush appends the resolved turns in order. Appends are serialized per
// conversation by the in-flight lock, so sequences stay contiguous.
func (o *Orchestrator) flush(ctx context.Context, conversationID string, pending []stores.Turn) error {
	for _, turn := range pending {
		if err := o.config.Store.Append(ctx, conversationID, turn); err != nil {
			return fmt.Errorf("failed to record turn: %w", err)
		}
	}
	return nil
}

// lockConversation serializes turns per conversation id.
func (o *Orchestrator) lockConversation(conversationID string) func() {
	o.mu.Lock()
	lock, ok := o.inFlight[conversationID]
	if !ok {
		lock = &sync.Mutex{}
		o.inFlight[conversationID] = lock
	}
	o.mu.Unlock()

	lock.Lock()
	return lock.Unlock
}
