package main

import (
	"context"
	"log"
	"net/http"
	"os"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"

	waiter "github.com/delaight/waiter"
	"github.com/delaight/waiter/controllers"
	"github.com/delaight/waiter/engine"
	"github.com/delaight/waiter/engine/gemini"
	"github.com/delaight/waiter/engine/openai"
	"github.com/delaight/waiter/retrieval"
	"github.com/delaight/waiter/routes"
	"github.com/delaight/waiter/speech"
	"github.com/delaight/waiter/stores"
	"github.com/delaight/waiter/tools"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}
	ctx := context.Background()

	store, err := stores.NewStore(stores.NewStoreConfig(
		envOr("STORE_TYPE", "memory"),
		os.Getenv("STORE_CONNECTION"),
	))
	if err != nil {
		log.Fatalf("Failed to create store: %v", err)
	}
	defer store.Close()

	index, loader := buildIndex(ctx)
	if loader != nil {
		defer loader.StopRefresh()
	}

	completionEngine := buildEngine(ctx)
	registry := tools.WaiterRegistry(index, tools.DefaultScheduler())

	config := waiter.NewConfig().
		WithStore(store).
		WithEngine(completionEngine).
		WithIndex(index).
		WithRegistry(registry)
	orchestrator, err := waiter.NewOrchestrator(config)
	if err != nil {
		log.Fatalf("Failed to create orchestrator: %v", err)
	}

	chatCtrl := controllers.NewChatController(orchestrator, store)
	menuCtrl := controllers.NewMenuController(index)
	var speechCtrl *controllers.SpeechController
	if key := os.Getenv("ELEVENLABS_API_KEY"); key != "" {
		speechCtrl = controllers.NewSpeechController(orchestrator, speech.NewElevenLabs(key))
	}

	router := gin.Default()
	router.Use(corsMiddleware())
	routes.Register(router, chatCtrl, menuCtrl, speechCtrl)

	port := envOr("PORT", "8080")
	log.Printf("Waiter listening on :%s", port)
	if err := router.Run(":" + port); err != nil {
		log.Fatalf("Server failed: %v", err)
	}
}

// buildIndex creates the dish index. With PGVECTOR_DSN set the durable
// Postgres index is used; otherwise the CSV menu is loaded into an in-memory
// index, optionally refreshed on DISH_REFRESH_CRON.
func buildIndex(ctx context.Context) (retrieval.Index, *retrieval.Loader) {
	embedder := retrieval.NewOpenAIEmbedder(os.Getenv("OPENAI_API_KEY"))

	if dsn := os.Getenv("PGVECTOR_DSN"); dsn != "" {
		index, err := retrieval.NewPgVectorIndex(dsn, embedder)
		if err != nil {
			log.Fatalf("Failed to open pgvector index: %v", err)
		}
		return index, nil
	}

	index := retrieval.NewMemoryIndex(embedder)
	loader := retrieval.NewLoader(envOr("DISH_FILE", "dishes.csv"), index)
	if err := loader.Load(ctx); err != nil {
		log.Fatalf("Failed to load dish file: %v", err)
	}
	if spec := os.Getenv("DISH_REFRESH_CRON"); spec != "" {
		if err := loader.StartRefresh(spec); err != nil {
			log.Fatalf("Failed to schedule dish refresh: %v", err)
		}
	}
	return index, loader
}

func buildEngine(ctx context.Context) engine.CompletionEngine {
	switch envOr("ENGINE", "openai") {
	case "gemini":
		e, err := gemini.NewEngine(ctx, os.Getenv("GEMINI_MODEL"))
		if err != nil {
			log.Fatalf("Failed to create Gemini engine: %v", err)
		}
		return e
	default:
		return openai.NewEngine(os.Getenv("OPENAI_API_KEY"), os.Getenv("OPENAI_MODEL"))
	}
}

func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type, Authorization")
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
