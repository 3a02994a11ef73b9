package stores

import (
	"context"
	"fmt"
	"log"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// SQLiteStore implements MemoryStore on a SQLite database. It is the durable
// counterpart of InMemoryStore, reachable through the same two operations.
type SQLiteStore struct {
	db   *gorm.DB
	path string
}

func NewSQLiteStore(config *StoreConfig) (*SQLiteStore, error) {
	if config.Type != "sqlite" {
		return nil, fmt.Errorf("invalid store type for SQLite store: %s", config.Type)
	}

	store := &SQLiteStore{path: config.Connection}
	if err := store.connect(); err != nil {
		return nil, fmt.Errorf("failed to connect to SQLite database: %w", err)
	}
	return store, nil
}

// NewSQLiteStoreSimple creates a SQLite store with just a file path.
func NewSQLiteStoreSimple(dbPath string) (*SQLiteStore, error) {
	return NewSQLiteStore(NewStoreConfig("sqlite", dbPath))
}

func (s *SQLiteStore) connect() error {
	db, err := gorm.Open(sqlite.Open(s.path), &gorm.Config{})
	if err != nil {
		return fmt.Errorf("failed to open SQLite database: %w", err)
	}
	s.db = db

	if err := s.db.AutoMigrate(&Conversation{}, &Turn{}); err != nil {
		return fmt.Errorf("failed to migrate database schema: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Close() error {
	if s.db == nil {
		return nil
	}
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (s *SQLiteStore) Ping() error {
	if s.db == nil {
		return fmt.Errorf("database connection is nil")
	}
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Ping()
}

// Append records a turn inside a single transaction: sequence assignment,
// turn insert, and conversation counter update commit together or not at all.
func (s *SQLiteStore) Append(ctx context.Context, conversationID string, turn Turn) error {
	if s.db == nil {
		return fmt.Errorf("database connection is nil")
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&Conversation{}).Where("conversation_id = ?", conversationID).Count(&count).Error; err != nil {
			log.Printf("Warning: error checking for conversation %s: %v", conversationID, err)
		} else if count == 0 {
			if err := tx.Create(&Conversation{ConversationID: conversationID}).Error; err != nil {
				return fmt.Errorf("failed to create conversation record: %w", err)
			}
		}

		if err := tx.Model(&Turn{}).Where("conversation_id = ?", conversationID).Count(&count).Error; err != nil {
			return fmt.Errorf("failed to count existing turns: %w", err)
		}
		seq := int(count) + 1

		turn.ConversationID = conversationID
		turn.Sequence = seq
		if err := tx.Create(&turn).Error; err != nil {
			return fmt.Errorf("failed to create turn record: %w", err)
		}

		if err := tx.Model(&Conversation{}).Where("conversation_id = ?", conversationID).Update("turn_count", seq).Error; err != nil {
			return fmt.Errorf("failed to update conversation turn count: %w", err)
		}
		return nil
	})
}

// Recent retrieves at most limit of the most recent turns in sequence order.
// limit <= 0 returns all turns.
func (s *SQLiteStore) Recent(ctx context.Context, conversationID string, limit int) ([]Turn, error) {
	if s.db == nil {
		return nil, fmt.Errorf("database connection is nil")
	}

	query := s.db.WithContext(ctx).Where("conversation_id = ?", conversationID).Order("sequence ASC")

	if limit > 0 {
		var count int64
		if err := s.db.WithContext(ctx).Model(&Turn{}).Where("conversation_id = ?", conversationID).Count(&count).Error; err != nil {
			return nil, fmt.Errorf("failed to count turns: %w", err)
		}
		if count > int64(limit) {
			query = query.Offset(int(count) - limit)
		}
	}

	var turns []Turn
	if err := query.Find(&turns).Error; err != nil {
		return nil, fmt.Errorf("failed to fetch turns: %w", err)
	}
	return turns, nil
}

func (s *SQLiteStore) ListConversations(ctx context.Context) ([]string, error) {
	if s.db == nil {
		return nil, fmt.Errorf("database connection is nil")
	}

	var convs []Conversation
	if err := s.db.WithContext(ctx).Order("updated_at DESC").Find(&convs).Error; err != nil {
		return nil, fmt.Errorf("failed to fetch conversations: %w", err)
	}

	ids := make([]string, len(convs))
	for i, c := range convs {
		ids[i] = c.ConversationID
	}
	return ids, nil
}
