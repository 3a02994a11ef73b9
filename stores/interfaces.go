package stores

import (
	"context"

	"gorm.io/gorm"
)

// Turn roles within a conversation.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleTool      = "tool"
)

// Turn is one message unit in a conversation. Turns are immutable once
// appended; Sequence gives the insertion order within a conversation.
type Turn struct {
	gorm.Model
	ConversationID string `gorm:"index;not null" json:"conversation_id"`
	Sequence       int    `gorm:"not null" json:"sequence"`
	Role           string `gorm:"not null" json:"role"` // "user", "assistant", "tool"
	Content        string `gorm:"type:text" json:"content"`
	// ToolName is set on tool turns to record which domain action produced
	// the content.
	ToolName string `gorm:"index" json:"tool_name,omitempty"`
}

// Conversation holds metadata for one customer session.
type Conversation struct {
	gorm.Model
	ConversationID string `gorm:"uniqueIndex;not null"`
	TurnCount      int    `gorm:"default:0"`
	Turns          []Turn `gorm:"foreignKey:ConversationID;references:ConversationID"`
}

// MemoryStore is the per-conversation turn log. Append is atomic: either the
// full turn is recorded or none of it. Appends for the same conversation are
// serialized; appends for different conversations never block each other.
type MemoryStore interface {
	// Append records a turn at the end of the conversation.
	Append(ctx context.Context, conversationID string, turn Turn) error
	// Recent returns at most limit of the most recently appended turns, in
	// insertion order. limit <= 0 returns the full log.
	Recent(ctx context.Context, conversationID string, limit int) ([]Turn, error)

	ListConversations(ctx context.Context) ([]string, error)

	Close() error
	Ping() error
}

// StoreConfig selects and configures a MemoryStore backend.
type StoreConfig struct {
	Type       string `json:"type"`       // "memory", "sqlite", "postgres"
	Connection string `json:"connection"` // connection string (unused for memory)
}

func NewStoreConfig(storeType, connection string) *StoreConfig {
	return &StoreConfig{Type: storeType, Connection: connection}
}
