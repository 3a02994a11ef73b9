package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	waiter "github.com/delaight/waiter"
	"github.com/delaight/waiter/models"
	"github.com/delaight/waiter/speech"
)

// SpeechController runs a turn and returns the reply as spoken audio.
type SpeechController struct {
	Orchestrator *waiter.Orchestrator
	Synthesizer  speech.Synthesizer
}

func NewSpeechController(orchestrator *waiter.Orchestrator, synthesizer speech.Synthesizer) *SpeechController {
	return &SpeechController{Orchestrator: orchestrator, Synthesizer: synthesizer}
}

// Speech handles POST /speech: one buffered turn, reply rendered as MP3.
func (ctrl *SpeechController) Speech(c *gin.Context) {
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

	audio, err := ctrl.Synthesizer.Synthesize(c.Request.Context(), text)
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}
	c.Header("X-Conversation-Id", conversationID)
	c.Data(http.StatusOK, "audio/mpeg", audio)
}
