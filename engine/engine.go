// Package engine defines the completion engine contract and shared plumbing
// for the provider adapters in the subpackages.
package engine

import (
	"context"
	"errors"

	"github.com/delaight/waiter/models"
	"github.com/delaight/waiter/stores"
)

// CompletionEngine is one conversational model provider. Complete runs a
// single buffered round; CompleteStream emits partial responses on the first
// channel and at most one terminal failure on the second, closing both when
// the round ends.
type CompletionEngine interface {
	Complete(ctx context.Context, request models.EngineRequest, tools []models.Declaration, history []stores.Turn) (models.EngineResponse, error)
	CompleteStream(ctx context.Context, request models.EngineRequest, tools []models.Declaration, history []stores.Turn) (<-chan models.EngineResponse, <-chan error)
}

// FailStream returns an already-terminated stream pair carrying err, for
// adapters that fail before the provider request goes out.
func FailStream(err error) (<-chan models.EngineResponse, <-chan error) {
	respChan := make(chan models.EngineResponse)
	errChan := make(chan error, 1)
	errChan <- err
	close(respChan)
	close(errChan)
	return respChan, errChan
}

// ValidateRequest rejects rounds that carry neither a user prompt nor tool
// results.
func ValidateRequest(request models.EngineRequest) error {
	if request.User == "" && len(request.ToolResults) == 0 {
		return &models.EngineError{
			Code: models.EngineInvalidRequest,
			Err:  errors.New("request must carry either a user message or tool results"),
		}
	}
	return nil
}
