// Package controllers exposes the ordering assistant over HTTP: buffered
// chat, SSE streaming, websocket chat, history, menu browsing and speech.
package controllers

import (
	"errors"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	waiter "github.com/delaight/waiter"
	"github.com/delaight/waiter/models"
	"github.com/delaight/waiter/stores"
)

// ChatController serves the conversational endpoints.
type ChatController struct {
	Orchestrator *waiter.Orchestrator
	Store        stores.MemoryStore
}

func NewChatController(orchestrator *waiter.Orchestrator, store stores.MemoryStore) *ChatController {
	return &ChatController{Orchestrator: orchestrator, Store: store}
}

// Chat handles POST /chat: one buffered turn.
func (ctrl *ChatController) Chat(c *gin.Context) {
	var req models.ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	conversationID := req.ConversationID
	if conversationID == "" {
		conversationID = uuid.NewString()
	}

	text, err := ctrl.Orchestrator.HandleTurn(c.Request.Context(), conversationID, req.Message)
	if err != nil {
		writeTurnError(c, err)
		return
	}
	c.JSON(http.StatusOK, models.ChatResponse{Text: text, ConversationID: conversationID})
}

// ChatStream handles GET /chat/stream?message=&conversationId=: SSE reply
// fragments. A client disconnect cancels the engine call through the request
// context.
func (ctrl *ChatController) ChatStream(c *gin.Context) {
	message := c.Query("message")
	if message == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing message parameter"})
		return
	}
	conversationID := c.Query("conversationId")
	if conversationID == "" {
		conversationID = uuid.NewString()
	}

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Conversation-Id", conversationID)

	fragments, errChan := ctrl.Orchestrator.HandleTurnStream(c.Request.Context(), conversationID, message)
	for fragment := range fragments {
		c.SSEvent("message", fragment)
		c.Writer.Flush()
	}
	if err := <-errChan; err != nil {
		log.Printf("[HTTP %s] Stream failed: %v", conversationID, err)
		c.SSEvent("error", err.Error())
		c.Writer.Flush()
		return
	}
	c.SSEvent("done", conversationID)
	c.Writer.Flush()
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

type wsOutbound struct {
	Type           string `json:"type"` // "fragment" | "done" | "error"
	Text           string `json:"text,omitempty"`
	ConversationID string `json:"conversation_id,omitempty"`
	Error          string `json:"error,omitempty"`
}

// ChatWS handles GET /chat/ws: a websocket session carrying one turn per
// inbound message, fragments streamed back as they arrive.
func (ctrl *ChatController) ChatWS(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Printf("WebSocket upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	conversationID := c.Query("conversationId")
	if conversationID == "" {
		conversationID = uuid.NewString()
	}

	for {
		var req models.ChatRequest
		if err := conn.ReadJSON(&req); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("[WS %s] Read failed: %v", conversationID, err)
			}
			return
		}
		if req.ConversationID != "" {
			conversationID = req.ConversationID
		}

		fragments, errChan := ctrl.Orchestrator.HandleTurnStream(c.Request.Context(), conversationID, req.Message)
		for fragment := range fragments {
			if err := conn.WriteJSON(wsOutbound{Type: "fragment", Text: fragment}); err != nil {
				log.Printf("[WS %s] Write failed: %v", conversationID, err)
				return
			}
		}
		if err := <-errChan; err != nil {
			log.Printf("[WS %s] Turn failed: %v", conversationID, err)
			if werr := conn.WriteJSON(wsOutbound{Type: "error", Error: err.Error()}); werr != nil {
				return
			}
			continue
		}
		if err := conn.WriteJSON(wsOutbound{Type: "done", ConversationID: conversationID}); err != nil {
			return
		}
	}
}

// History handles GET /chat/history/:conversationID.
func (ctrl *ChatController) History(c *gin.Context) {
	conversationID := c.Param("conversationID")

	turns, err := ctrl.Store.Recent(c.Request.Context(), conversationID, 0)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"conversation_id": conversationID, "history": turns})
}

// Conversations handles GET /chat/conversations.
func (ctrl *ChatController) Conversations(c *gin.Context) {
	ids, err := ctrl.Store.ListConversations(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"conversations": ids})
}

// writeTurnError maps orchestration failures onto HTTP statuses. Engine
// failures carry a retryable flag so clients know a retry may succeed.
func writeTurnError(c *gin.Context, err error) {
	var validationErr *models.ValidationError
	if errors.As(err, &validationErr) {
		c.JSON(http.StatusBadRequest, gin.H{"error": validationErr.Error()})
		return
	}

	var engineErr *models.EngineError
	if errors.As(err, &engineErr) {
		status := http.StatusBadGateway
		switch engineErr.Code {
		case models.EngineRateLimited:
			status = http.StatusTooManyRequests
		case models.EngineTimeout:
			status = http.StatusGatewayTimeout
		}
		c.JSON(status, gin.H{
			"error":     engineErr.Error(),
			"code":      engineErr.Code,
			"retryable": engineErr.Retryable(),
		})
		return
	}

	c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
}
