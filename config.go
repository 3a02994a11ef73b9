package waiter

import (
	"github.com/delaight/waiter/engine"
	"github.com/delaight/waiter/prompt"
	"github.com/delaight/waiter/retrieval"
	"github.com/delaight/waiter/stores"
	"github.com/delaight/waiter/tools"
)

// Default number of recent turns handed to the engine per round.
const DefaultRetrieveSize = 50

// Config wires the orchestrator's collaborators. Build one with NewConfig and
// the With* setters, then pass it to NewOrchestrator.
type Config struct {
	Store        stores.MemoryStore
	Engine       engine.CompletionEngine
	Index        retrieval.Index
	Registry     *tools.Registry
	SystemPrompt string
	// RetrieveSize caps the history window per engine round. <= 0 means the
	// full log.
	RetrieveSize int
	// ContextTopK caps the dish documents embedded in the user prompt.
	// <= 0 embeds every match.
	ContextTopK int
}

// NewConfig returns a config with an in-memory store and the stock waiter
// system prompt. Engine, Index and Registry must still be provided.
func NewConfig() *Config {
	return &Config{
		Store:        stores.NewInMemoryStore(),
		SystemPrompt: prompt.SystemPrompt,
		RetrieveSize: DefaultRetrieveSize,
	}
}

func (c *Config) WithStore(store stores.MemoryStore) *Config {
	c.Store = store
	return c
}

func (c *Config) WithEngine(e engine.CompletionEngine) *Config {
	c.Engine = e
	return c
}

func (c *Config) WithIndex(index retrieval.Index) *Config {
	c.Index = index
	return c
}

func (c *Config) WithRegistry(registry *tools.Registry) *Config {
	c.Registry = registry
	return c
}

func (c *Config) WithSystemPrompt(system string) *Config {
	c.SystemPrompt = system
	return c
}

func (c *Config) WithRetrieveSize(size int) *Config {
	c.RetrieveSize = size
	return c
}

func (c *Config) WithContextTopK(topK int) *Config {
	c.ContextTopK = topK
	return c
}
