// Package routes wires the controllers onto a gin router.
package routes

import (
	"github.com/gin-gonic/gin"

	"github.com/delaight/waiter/controllers"
)

// Register mounts all endpoints. speechCtrl may be nil when no synthesizer
// is configured.
func Register(router *gin.Engine, chatCtrl *controllers.ChatController, menuCtrl *controllers.MenuController, speechCtrl *controllers.SpeechController) {
	router.POST("/chat", chatCtrl.Chat)
	router.GET("/chat/stream", chatCtrl.ChatStream)
	router.GET("/chat/ws", chatCtrl.ChatWS)
	router.GET("/chat/history/:conversationID", chatCtrl.History)
	router.GET("/chat/conversations", chatCtrl.Conversations)

	router.GET("/menu/top", menuCtrl.TopDishes)

	if speechCtrl != nil {
		router.POST("/speech", speechCtrl.Speech)
	}
}
