// Package gemini adapts the Gemini API to the engine.CompletionEngine
// contract via the official Go SDK.
package gemini

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"

	"google.golang.org/genai"

	"github.com/delaight/waiter/engine"
	"github.com/delaight/waiter/models"
	"github.com/delaight/waiter/stores"
)

const defaultModel = "gemini-2.0-flash"

// Engine is a CompletionEngine over the Gemini API.
type Engine struct {
	client *genai.Client
	model  string
}

// NewEngine creates the adapter. The client reads GEMINI_API_KEY from the
// environment when config is nil.
func NewEngine(ctx context.Context, model string) (*Engine, error) {
	client, err := genai.NewClient(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}
	if model == "" {
		model = defaultModel
	}
	return &Engine{client: client, model: model}, nil
}

func (e *Engine) Complete(ctx context.Context, request models.EngineRequest, tools []models.Declaration, history []stores.Turn) (models.EngineResponse, error) {
	if err := engine.ValidateRequest(request); err != nil {
		return models.EngineResponse{}, err
	}

	contents := buildContents(request, history)
	resp, err := e.client.Models.GenerateContent(ctx, e.model, contents, buildConfig(request.System, tools))
	if err != nil {
		return models.EngineResponse{}, mapError(err)
	}
	return candidateToResponse(resp), nil
}

func (e *Engine) CompleteStream(ctx context.Context, request models.EngineRequest, tools []models.Declaration, history []stores.Turn) (<-chan models.EngineResponse, <-chan error) {
	if err := engine.ValidateRequest(request); err != nil {
		return engine.FailStream(err)
	}

	contents := buildContents(request, history)
	stream := e.client.Models.GenerateContentStream(ctx, e.model, contents, buildConfig(request.System, tools))

	respChan := make(chan models.EngineResponse)
	errChan := make(chan error, 1)

	go func() {
		defer close(respChan)
		defer close(errChan)

		for chunk, err := range stream {
			if err != nil {
				errChan <- mapError(err)
				return
			}
			resp := candidateToResponse(chunk)
			if len(resp.Parts) == 0 {
				continue
			}
			select {
			case respChan <- resp:
			case <-ctx.Done():
				errChan <- mapError(ctx.Err())
				return
			}
		}
	}()

	return respChan, errChan
}

func buildConfig(system string, tools []models.Declaration) *genai.GenerateContentConfig {
	config := &genai.GenerateContentConfig{}
	if system != "" {
		config.SystemInstruction = genai.NewContentFromText(system, genai.RoleUser)
	}
	if len(tools) > 0 {
		declarations := make([]*genai.FunctionDeclaration, len(tools))
		for i, decl := range tools {
			declarations[i] = &genai.FunctionDeclaration{
				Name:        decl.Name,
				Description: decl.Description,
				Parameters:  parametersToSchema(decl.Parameters),
			}
		}
		config.Tools = []*genai.Tool{{FunctionDeclarations: declarations}}
	}
	return config
}

func buildContents(request models.EngineRequest, history []stores.Turn) []*genai.Content {
	var contents []*genai.Content
	for _, turn := range history {
		switch turn.Role {
		case stores.RoleUser:
			contents = append(contents, genai.NewContentFromText(turn.Content, genai.RoleUser))
		case stores.RoleAssistant:
			contents = append(contents, genai.NewContentFromText(turn.Content, genai.RoleModel))
		case stores.RoleTool:
			contents = append(contents, &genai.Content{
				Role: genai.RoleUser,
				Parts: []*genai.Part{{FunctionResponse: &genai.FunctionResponse{
					Name:     turn.ToolName,
					Response: map[string]any{"output": turn.Content},
				}}},
			})
		default:
			log.Printf("Skipping history turn with unknown role %q", turn.Role)
		}
	}

	if len(request.ToolResults) > 0 {
		for _, tr := range request.ToolResults {
			contents = append(contents, &genai.Content{
				Role: genai.RoleUser,
				Parts: []*genai.Part{{FunctionResponse: &genai.FunctionResponse{
					ID:       tr.ToolID,
					Name:     tr.ToolName,
					Response: map[string]any{"output": tr.Output},
				}}},
			})
		}
	} else {
		contents = append(contents, genai.NewContentFromText(request.User, genai.RoleUser))
	}
	return contents
}

func candidateToResponse(resp *genai.GenerateContentResponse) models.EngineResponse {
	var out models.EngineResponse
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return out
	}
	for _, part := range resp.Candidates[0].Content.Parts {
		if part.Text != "" {
			out.Parts = append(out.Parts, models.TextPart(part.Text))
		}
		if part.FunctionCall != nil {
			args := part.FunctionCall.Args
			if args == nil {
				args = map[string]any{}
			}
			out.Parts = append(out.Parts, models.Part{ToolCall: &models.ToolCall{
				ID:   part.FunctionCall.ID,
				Name: part.FunctionCall.Name,
				Args: args,
			}})
		}
	}
	return out
}

// parametersToSchema converts the JSON-schema parameter map into the SDK's
// typed schema. Only the subset the tool declarations use is handled.
func parametersToSchema(params models.Parameters) *genai.Schema {
	schema := &genai.Schema{
		Type:       genai.TypeObject,
		Required:   params.Required,
		Properties: map[string]*genai.Schema{},
	}
	for name, raw := range params.Properties {
		prop, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		schema.Properties[name] = propertyToSchema(prop)
	}
	return schema
}

func propertyToSchema(prop map[string]any) *genai.Schema {
	out := &genai.Schema{}
	if t, ok := prop["type"].(string); ok {
		out.Type = schemaType(t)
	}
	if desc, ok := prop["description"].(string); ok {
		out.Description = desc
	}
	if enum, ok := prop["enum"].([]string); ok {
		out.Enum = enum
	}
	if items, ok := prop["items"].(map[string]any); ok {
		out.Items = propertyToSchema(items)
	}
	return out
}

func schemaType(t string) genai.Type {
	switch t {
	case "string":
		return genai.TypeString
	case "integer":
		return genai.TypeInteger
	case "number":
		return genai.TypeNumber
	case "boolean":
		return genai.TypeBoolean
	case "array":
		return genai.TypeArray
	case "object":
		return genai.TypeObject
	default:
		return genai.TypeUnspecified
	}
}

// mapError classifies SDK failures into the engine error taxonomy.
func mapError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return &models.EngineError{Code: models.EngineTimeout, Err: err}
	}

	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.Code {
		case http.StatusTooManyRequests:
			return &models.EngineError{Code: models.EngineRateLimited, Err: err}
		case http.StatusRequestTimeout, http.StatusGatewayTimeout:
			return &models.EngineError{Code: models.EngineTimeout, Err: err}
		case http.StatusBadRequest, http.StatusUnauthorized, http.StatusNotFound:
			return &models.EngineError{Code: models.EngineInvalidRequest, Err: err}
		}
	}

	return &models.EngineError{Code: models.EngineTimeout, Err: err}
}
