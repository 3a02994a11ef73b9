package stores

import (
	"fmt"
)

// NewStore creates a memory store from the configuration.
func NewStore(config *StoreConfig) (MemoryStore, error) {
	switch config.Type {
	case "memory":
		return NewInMemoryStore(), nil
	case "sqlite":
		return NewSQLiteStore(config)
	case "postgres":
		return NewPostgresStore(config)
	default:
		return nil, fmt.Errorf("unsupported store type: %s", config.Type)
	}
}
