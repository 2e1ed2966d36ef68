package store

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"

	dbconfig "gigrelay/pkg/database"
	"gigrelay/pkg/interfaces"
	"gigrelay/pkg/types"
)

// Manager implements the MessageStore interface over SQLite. Writes are
// funneled through a single goroutine; reads run concurrently on the pool.
type Manager struct {
	db           *sql.DB
	config       *dbconfig.Config
	writeChannel chan writeOperation
	shutdown     chan struct{}
	wg           sync.WaitGroup
	closed       bool
	mu           sync.RWMutex
}

// writeOperation represents a queued database write
type writeOperation struct {
	operation func(*sql.DB) error
	result    chan error
}

// NewManager opens the database, applies pragmas, and ensures the baseline
// schema exists.
func NewManager(config *dbconfig.Config) (*Manager, error) {
	db, err := sql.Open("sqlite3", config.DatabasePath+"?_busy_timeout=5000&_journal_mode=WAL&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(config.MaxConnections)
	db.SetConnMaxLifetime(config.ConnMaxLifetime)
	db.SetConnMaxIdleTime(config.ConnMaxIdleTime)

	if err := dbconfig.ApplySQLiteOptimizations(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to apply SQLite optimizations: %w", err)
	}

	if err := dbconfig.InitializeSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	manager := &Manager{
		db:           db,
		config:       config,
		writeChannel: make(chan writeOperation, 100),
		shutdown:     make(chan struct{}),
	}

	manager.wg.Add(1)
	go manager.writeLoop()

	return manager, nil
}

// writeLoop processes all write operations in a single goroutine. Failed
// writes retry exactly once after a short backoff.
func (m *Manager) writeLoop() {
	defer m.wg.Done()

	for {
		select {
		case op := <-m.writeChannel:
			err := op.operation(m.db)
			if err != nil {
				log.Printf("Store write failed, retrying: %v", err)
				time.Sleep(500 * time.Millisecond)
				err = op.operation(m.db)
				if err != nil {
					log.Printf("Store write failed after retry: %v", err)
				}
			}
			op.result <- err

		case <-m.shutdown:
			log.Println("Store write loop shutting down")
			return
		}
	}
}

// executeWrite queues a write operation and waits for completion
func (m *Manager) executeWrite(operation func(*sql.DB) error) error {
	m.mu.RLock()
	if m.closed {
		m.mu.RUnlock()
		return fmt.Errorf("message store is closed")
	}
	m.mu.RUnlock()

	result := make(chan error, 1)

	select {
	case m.writeChannel <- writeOperation{operation: operation, result: result}:
		return <-result
	case <-time.After(30 * time.Second):
		return fmt.Errorf("write operation timeout")
	case <-m.shutdown:
		return fmt.Errorf("message store is shutting down")
	}
}

// AppendMessage persists an accepted message. Enrichment fields are joined
// at delivery time and never stored.
func (m *Manager) AppendMessage(ctx context.Context, message *types.StoredMessage) error {
	return m.executeWrite(func(db *sql.DB) error {
		query := `
			INSERT INTO messages (message_id, gig_id, user_id, recipient_id, text, timestamp, read)
			VALUES (?, ?, ?, ?, ?, ?, ?)
		`

		var recipient sql.NullString
		if message.RecipientID != "" {
			recipient = sql.NullString{String: message.RecipientID, Valid: true}
		}

		_, err := db.ExecContext(ctx, query,
			message.MessageID,
			message.GigID,
			message.UserID,
			recipient,
			message.Text,
			message.Timestamp,
			message.Read,
		)
		if err != nil {
			return fmt.Errorf("failed to insert message: %w", err)
		}

		return nil
	})
}

// FindMessageByID retrieves a message by its durable id.
func (m *Manager) FindMessageByID(ctx context.Context, messageID string) (*types.StoredMessage, error) {
	query := `
		SELECT message_id, gig_id, user_id, recipient_id, text, timestamp, read
		FROM messages
		WHERE message_id = ?
	`
	return m.scanMessage(m.db.QueryRowContext(ctx, query, messageID))
}

// FindRecentMessage returns the newest message matching (gigID, senderID,
// text) with a timestamp at or after since. Backs the windowed duplicate
// check; uses the idx_messages_dedup index.
func (m *Manager) FindRecentMessage(ctx context.Context, gigID, senderID, text string, since int64) (*types.StoredMessage, error) {
	query := `
		SELECT message_id, gig_id, user_id, recipient_id, text, timestamp, read
		FROM messages
		WHERE gig_id = ? AND user_id = ? AND text = ? AND timestamp >= ?
		ORDER BY timestamp DESC
		LIMIT 1
	`
	return m.scanMessage(m.db.QueryRowContext(ctx, query, gigID, senderID, text, since))
}

// ConversationHistory retrieves all messages for a gig in chronological
// order.
func (m *Manager) ConversationHistory(ctx context.Context, gigID string) ([]*types.StoredMessage, error) {
	query := `
		SELECT message_id, gig_id, user_id, recipient_id, text, timestamp, read
		FROM messages
		WHERE gig_id = ?
		ORDER BY timestamp ASC
	`

	rows, err := m.db.QueryContext(ctx, query, gigID)
	if err != nil {
		return nil, fmt.Errorf("failed to query conversation history: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var messages []*types.StoredMessage

	for rows.Next() {
		var message types.StoredMessage
		var recipient sql.NullString

		err := rows.Scan(
			&message.MessageID,
			&message.GigID,
			&message.UserID,
			&recipient,
			&message.Text,
			&message.Timestamp,
			&message.Read,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan message row: %w", err)
		}

		if recipient.Valid {
			message.RecipientID = recipient.String
		}

		messages = append(messages, &message)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating message rows: %w", err)
	}

	return messages, nil
}

// GetProfile retrieves a sender display profile.
func (m *Manager) GetProfile(ctx context.Context, userID string) (*types.Profile, error) {
	query := `SELECT user_id, name, avatar FROM profiles WHERE user_id = ?`

	var profile types.Profile
	var avatar sql.NullString

	err := m.db.QueryRowContext(ctx, query, userID).Scan(&profile.UserID, &profile.Name, &avatar)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, interfaces.ErrProfileNotFound
		}
		return nil, fmt.Errorf("failed to query profile: %w", err)
	}

	if avatar.Valid {
		profile.Avatar = avatar.String
	}

	return &profile, nil
}

// UpsertProfile creates or replaces a display profile.
func (m *Manager) UpsertProfile(ctx context.Context, profile *types.Profile) error {
	return m.executeWrite(func(db *sql.DB) error {
		query := `
			INSERT INTO profiles (user_id, name, avatar)
			VALUES (?, ?, ?)
			ON CONFLICT(user_id) DO UPDATE SET name = excluded.name, avatar = excluded.avatar
		`

		var avatar sql.NullString
		if profile.Avatar != "" {
			avatar = sql.NullString{String: profile.Avatar, Valid: true}
		}

		if _, err := db.ExecContext(ctx, query, profile.UserID, profile.Name, avatar); err != nil {
			return fmt.Errorf("failed to upsert profile: %w", err)
		}

		return nil
	})
}

// HealthCheck validates database connectivity
func (m *Manager) HealthCheck(ctx context.Context) error {
	if err := m.db.PingContext(ctx); err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}

	if _, err := m.db.QueryContext(ctx, "SELECT COUNT(*) FROM messages LIMIT 1"); err != nil {
		return fmt.Errorf("database read test failed: %w", err)
	}

	return nil
}

// GetDB returns the underlying database connection for migrations
func (m *Manager) GetDB() *sql.DB {
	return m.db
}

// Close shuts down the store after the write loop drains.
func (m *Manager) Close() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	m.mu.Unlock()

	close(m.shutdown)
	m.wg.Wait()

	if err := m.db.Close(); err != nil {
		return fmt.Errorf("failed to close database: %w", err)
	}

	return nil
}

// scanMessage scans a single-row query, mapping sql.ErrNoRows to the
// interface sentinel.
func (m *Manager) scanMessage(row *sql.Row) (*types.StoredMessage, error) {
	var message types.StoredMessage
	var recipient sql.NullString

	err := row.Scan(
		&message.MessageID,
		&message.GigID,
		&message.UserID,
		&recipient,
		&message.Text,
		&message.Timestamp,
		&message.Read,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, interfaces.ErrMessageNotFound
		}
		return nil, fmt.Errorf("failed to query message: %w", err)
	}

	if recipient.Valid {
		message.RecipientID = recipient.String
	}

	return &message, nil
}
