// Package openai adapts the OpenAI chat completions API to the
// engine.CompletionEngine contract, including tool calling and streaming.
package openai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"

	goopenai "github.com/sashabaranov/go-openai"

	"github.com/delaight/waiter/engine"
	"github.com/delaight/waiter/models"
	"github.com/delaight/waiter/stores"
)

const defaultModel = "gpt-4o-mini"

// Engine is a CompletionEngine over the OpenAI chat completions API.
type Engine struct {
	client *goopenai.Client
	model  string
}

func NewEngine(apiKey, model string) *Engine {
	if model == "" {
		model = defaultModel
	}
	return &Engine{client: goopenai.NewClient(apiKey), model: model}
}

// NewEngineWithClient is used by tests to point the adapter at a stub server.
func NewEngineWithClient(client *goopenai.Client, model string) *Engine {
	if model == "" {
		model = defaultModel
	}
	return &Engine{client: client, model: model}
}

func (e *Engine) Complete(ctx context.Context, request models.EngineRequest, tools []models.Declaration, history []stores.Turn) (models.EngineResponse, error) {
	if err := engine.ValidateRequest(request); err != nil {
		return models.EngineResponse{}, err
	}

	resp, err := e.client.CreateChatCompletion(ctx, e.buildRequest(request, tools, history, false))
	if err != nil {
		return models.EngineResponse{}, mapError(err)
	}
	if len(resp.Choices) == 0 {
		return models.EngineResponse{}, &models.EngineError{
			Code: models.EngineInvalidRequest,
			Err:  errors.New("completion response contained no choices"),
		}
	}
	return messageToResponse(resp.Choices[0].Message), nil
}

func (e *Engine) CompleteStream(ctx context.Context, request models.EngineRequest, tools []models.Declaration, history []stores.Turn) (<-chan models.EngineResponse, <-chan error) {
	if err := engine.ValidateRequest(request); err != nil {
		return engine.FailStream(err)
	}

	stream, err := e.client.CreateChatCompletionStream(ctx, e.buildRequest(request, tools, history, true))
	if err != nil {
		return engine.FailStream(mapError(err))
	}

	respChan := make(chan models.EngineResponse)
	errChan := make(chan error, 1)

	go func() {
		defer close(respChan)
		defer close(errChan)
		defer stream.Close()

		// Tool call fragments arrive split across deltas; accumulate by
		// index and emit once the stream ends.
		calls := map[int]*models.ToolCall{}
		callArgs := map[int]string{}
		var order []int

		for {
			chunk, err := stream.Recv()
			if errors.Is(err, io.EOF) {
				break
			}
			if err != nil {
				errChan <- mapError(err)
				return
			}
			if len(chunk.Choices) == 0 {
				continue
			}
			delta := chunk.Choices[0].Delta

			if delta.Content != "" {
				select {
				case respChan <- models.EngineResponse{Parts: []models.Part{models.TextPart(delta.Content)}}:
				case <-ctx.Done():
					errChan <- mapError(ctx.Err())
					return
				}
			}

			for _, tc := range delta.ToolCalls {
				idx := 0
				if tc.Index != nil {
					idx = *tc.Index
				}
				call, seen := calls[idx]
				if !seen {
					call = &models.ToolCall{}
					calls[idx] = call
					order = append(order, idx)
				}
				if tc.ID != "" {
					call.ID = tc.ID
				}
				if tc.Function.Name != "" {
					call.Name = tc.Function.Name
				}
				callArgs[idx] += tc.Function.Arguments
			}
		}

		for _, idx := range order {
			call := calls[idx]
			call.Args = map[string]any{}
			if raw := callArgs[idx]; raw != "" {
				if err := json.Unmarshal([]byte(raw), &call.Args); err != nil {
					log.Printf("Discarding unparseable tool call arguments for %s: %v", call.Name, err)
				}
			}
			select {
			case respChan <- models.EngineResponse{Parts: []models.Part{{ToolCall: call}}}:
			case <-ctx.Done():
				errChan <- mapError(ctx.Err())
				return
			}
		}
	}()

	return respChan, errChan
}

func (e *Engine) buildRequest(request models.EngineRequest, tools []models.Declaration, history []stores.Turn, stream bool) goopenai.ChatCompletionRequest {
	messages := []goopenai.ChatCompletionMessage{}
	if request.System != "" {
		messages = append(messages, goopenai.ChatCompletionMessage{
			Role:    goopenai.ChatMessageRoleSystem,
			Content: request.System,
		})
	}
	messages = append(messages, historyMessages(history)...)

	if len(request.ToolResults) > 0 {
		// Replay the assistant's tool calls, then answer each with a tool
		// message correlated by call ID.
		assistant := goopenai.ChatCompletionMessage{Role: goopenai.ChatMessageRoleAssistant}
		for _, tr := range request.ToolResults {
			assistant.ToolCalls = append(assistant.ToolCalls, goopenai.ToolCall{
				ID:   tr.ToolID,
				Type: goopenai.ToolTypeFunction,
				Function: goopenai.FunctionCall{
					Name:      tr.ToolName,
					Arguments: "{}",
				},
			})
		}
		messages = append(messages, assistant)
		for _, tr := range request.ToolResults {
			messages = append(messages, goopenai.ChatCompletionMessage{
				Role:       goopenai.ChatMessageRoleTool,
				Content:    tr.Output,
				ToolCallID: tr.ToolID,
			})
		}
	} else {
		messages = append(messages, goopenai.ChatCompletionMessage{
			Role:    goopenai.ChatMessageRoleUser,
			Content: request.User,
		})
	}

	req := goopenai.ChatCompletionRequest{
		Model:    e.model,
		Messages: messages,
		Stream:   stream,
	}
	for _, decl := range tools {
		req.Tools = append(req.Tools, goopenai.Tool{
			Type: goopenai.ToolTypeFunction,
			Function: &goopenai.FunctionDefinition{
				Name:        decl.Name,
				Description: decl.Description,
				Parameters:  decl.Parameters,
			},
		})
	}
	return req
}

// historyMessages renders persisted turns. Tool turns from earlier turns are
// replayed as plain user text since the originating call IDs are not kept.
func historyMessages(history []stores.Turn) []goopenai.ChatCompletionMessage {
	messages := make([]goopenai.ChatCompletionMessage, 0, len(history))
	for _, turn := range history {
		switch turn.Role {
		case stores.RoleUser:
			messages = append(messages, goopenai.ChatCompletionMessage{
				Role:    goopenai.ChatMessageRoleUser,
				Content: turn.Content,
			})
		case stores.RoleAssistant:
			messages = append(messages, goopenai.ChatCompletionMessage{
				Role:    goopenai.ChatMessageRoleAssistant,
				Content: turn.Content,
			})
		case stores.RoleTool:
			messages = append(messages, goopenai.ChatCompletionMessage{
				Role:    goopenai.ChatMessageRoleUser,
				Content: fmt.Sprintf("Result of %s: %s", turn.ToolName, turn.Content),
			})
		default:
			log.Printf("Skipping history turn with unknown role %q", turn.Role)
		}
	}
	return messages
}

func messageToResponse(msg goopenai.ChatCompletionMessage) models.EngineResponse {
	var resp models.EngineResponse
	if msg.Content != "" {
		resp.Parts = append(resp.Parts, models.TextPart(msg.Content))
	}
	for _, tc := range msg.ToolCalls {
		call := models.ToolCall{ID: tc.ID, Name: tc.Function.Name, Args: map[string]any{}}
		if tc.Function.Arguments != "" {
			if err := json.Unmarshal([]byte(tc.Function.Arguments), &call.Args); err != nil {
				log.Printf("Discarding unparseable tool call arguments for %s: %v", call.Name, err)
			}
		}
		resp.Parts = append(resp.Parts, models.Part{ToolCall: &call})
	}
	return resp
}

// mapError classifies provider failures into the engine error taxonomy.
func mapError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return &models.EngineError{Code: models.EngineTimeout, Err: err}
	}

	var apiErr *goopenai.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.HTTPStatusCode {
		case http.StatusTooManyRequests:
			return &models.EngineError{Code: models.EngineRateLimited, Err: err}
		case http.StatusRequestTimeout, http.StatusGatewayTimeout:
			return &models.EngineError{Code: models.EngineTimeout, Err: err}
		case http.StatusBadRequest, http.StatusUnauthorized, http.StatusNotFound, http.StatusUnprocessableEntity:
			return &models.EngineError{Code: models.EngineInvalidRequest, Err: err}
		}
	}

	var reqErr *goopenai.RequestError
	if errors.As(err, &reqErr) && reqErr.HTTPStatusCode == http.StatusTooManyRequests {
		return &models.EngineError{Code: models.EngineRateLimited, Err: err}
	}

	// Network-level failures are treated as timeouts: the turn may be
	// retried without side effects.
	return &models.EngineError{Code: models.EngineTimeout, Err: err}
}
