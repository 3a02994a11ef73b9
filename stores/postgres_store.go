package stores

import (
	"context"
	"fmt"
	"log"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// PostgresStore implements MemoryStore on PostgreSQL.
type PostgresStore struct {
	db  *gorm.DB
	dsn string
}

func NewPostgresStore(config *StoreConfig) (*PostgresStore, error) {
	if config.Type != "postgres" {
		return nil, fmt.Errorf("invalid store type for Postgres store: %s", config.Type)
	}

	store := &PostgresStore{dsn: config.Connection}
	if err := store.connect(); err != nil {
		return nil, fmt.Errorf("failed to connect to Postgres database: %w", err)
	}
	return store, nil
}

// NewPostgresStoreSimple creates a Postgres store from a DSN string.
func NewPostgresStoreSimple(dsn string) (*PostgresStore, error) {
	return NewPostgresStore(NewStoreConfig("postgres", dsn))
}

func (s *PostgresStore) connect() error {
	db, err := gorm.Open(postgres.Open(s.dsn), &gorm.Config{})
	if err != nil {
		return fmt.Errorf("failed to open Postgres database: %w", err)
	}
	s.db = db

	if err := s.db.AutoMigrate(&Conversation{}, &Turn{}); err != nil {
		return fmt.Errorf("failed to migrate database schema: %w", err)
	}
	return nil
}

func (s *PostgresStore) Close() error {
	if s.db == nil {
		return nil
	}
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (s *PostgresStore) Ping() error {
	if s.db == nil {
		return fmt.Errorf("database connection is nil")
	}
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Ping()
}

// Append records a turn inside a single transaction. The row lock taken by
// the counter update serializes concurrent appends for one conversation
// without blocking other conversations.
func (s *PostgresStore) Append(ctx context.Context, conversationID string, turn Turn) error {
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
func (s *PostgresStore) Recent(ctx context.Context, conversationID string, limit int) ([]Turn, error) {
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

func (s *PostgresStore) ListConversations(ctx context.Context) ([]string, error) {
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
