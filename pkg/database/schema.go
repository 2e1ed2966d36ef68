package database

import (
	"database/sql"
	"fmt"
)

// Baseline schema. Migrations evolve it; InitializeSchema bootstraps a fresh
// database so the relay can start without a migrations directory.
const baselineSchema = `
	CREATE TABLE IF NOT EXISTS messages (
		message_id   TEXT PRIMARY KEY,
		gig_id       TEXT NOT NULL,
		user_id      TEXT NOT NULL,
		recipient_id TEXT,
		text         TEXT NOT NULL,
		timestamp    INTEGER NOT NULL,
		read         INTEGER NOT NULL DEFAULT 0
	);

	CREATE INDEX IF NOT EXISTS idx_messages_gig_time ON messages(gig_id, timestamp);
	CREATE INDEX IF NOT EXISTS idx_messages_dedup ON messages(gig_id, user_id, timestamp);

	CREATE TABLE IF NOT EXISTS profiles (
		user_id TEXT PRIMARY KEY,
		name    TEXT NOT NULL,
		avatar  TEXT
	);
`

// InitializeSchema creates the baseline tables and indexes if absent.
func InitializeSchema(db *sql.DB) error {
	if _, err := db.Exec(baselineSchema); err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}
	return nil
}

// SchemaValidator provides database schema validation for deployment checks.
type SchemaValidator struct {
	db *sql.DB
}

// NewSchemaValidator creates a new schema validator
func NewSchemaValidator(db *sql.DB) *SchemaValidator {
	return &SchemaValidator{db: db}
}

// ValidateTablesExist verifies that all required tables exist
func (v *SchemaValidator) ValidateTablesExist() error {
	requiredTables := map[string]string{
		"messages": "Message data storage",
		"profiles": "Sender display profiles",
	}

	for table, description := range requiredTables {
		exists, err := v.tableExists(table)
		if err != nil {
			return fmt.Errorf("error checking table %s (%s): %w", table, description, err)
		}
		if !exists {
			return fmt.Errorf("required table %s (%s) does not exist", table, description)
		}
	}

	return nil
}

// ValidateTableStructure verifies table columns match the Go structs that
// scan them.
func (v *SchemaValidator) ValidateTableStructure() error {
	messageColumns := map[string]string{
		"message_id":   "TEXT",
		"gig_id":       "TEXT",
		"user_id":      "TEXT",
		"recipient_id": "TEXT",
		"text":         "TEXT",
		"timestamp":    "INTEGER",
		"read":         "INTEGER",
	}
	if err := v.validateColumns("messages", messageColumns); err != nil {
		return fmt.Errorf("messages table structure invalid: %w", err)
	}

	profileColumns := map[string]string{
		"user_id": "TEXT",
		"name":    "TEXT",
		"avatar":  "TEXT",
	}
	if err := v.validateColumns("profiles", profileColumns); err != nil {
		return fmt.Errorf("profiles table structure invalid: %w", err)
	}

	return nil
}

// ValidateIndexes verifies the indexes that back history reads and the
// windowed duplicate check.
func (v *SchemaValidator) ValidateIndexes() error {
	requiredIndexes := []string{
		"idx_messages_gig_time",
		"idx_messages_dedup",
	}

	for _, index := range requiredIndexes {
		exists, err := v.indexExists(index)
		if err != nil {
			return fmt.Errorf("failed to check index %s: %w", index, err)
		}
		if !exists {
			return fmt.Errorf("required index %s does not exist", index)
		}
	}

	return nil
}

func (v *SchemaValidator) validateColumns(table string, expected map[string]string) error {
	rows, err := v.db.Query(fmt.Sprintf("PRAGMA table_info(%s)", table))
	if err != nil {
		return err
	}
	defer func() { _ = rows.Close() }()

	found := make(map[string]string)
	for rows.Next() {
		var cid int
		var name, colType string
		var notNull, pk int
		var defaultValue sql.NullString

		if err := rows.Scan(&cid, &name, &colType, &notNull, &defaultValue, &pk); err != nil {
			return err
		}
		found[name] = colType
	}
	if err := rows.Err(); err != nil {
		return err
	}

	for column, colType := range expected {
		actual, ok := found[column]
		if !ok {
			return fmt.Errorf("column %s missing", column)
		}
		if actual != colType {
			return fmt.Errorf("column %s has type %s, expected %s", column, actual, colType)
		}
	}

	return nil
}

func (v *SchemaValidator) tableExists(tableName string) (bool, error) {
	var count int
	err := v.db.QueryRow(
		"SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name=?",
		tableName,
	).Scan(&count)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (v *SchemaValidator) indexExists(indexName string) (bool, error) {
	var count int
	err := v.db.QueryRow(
		"SELECT COUNT(*) FROM sqlite_master WHERE type='index' AND name=?",
		indexName,
	).Scan(&count)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}
