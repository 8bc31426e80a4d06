// SQLite conversation journal.
//
// Information Hiding:
// - Connection management and schema hidden behind ConversationJournal
// - Message serialization (tool calls, results) hidden in row mapping
// - Thread-safe via sql.DB's built-in connection pooling

package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/richinex/symposium/conversation"
)

// timeLayout is the text encoding for timestamps. RFC3339Nano sorts
// lexicographically within a single writer, which is all the journal needs.
const timeLayout = time.RFC3339Nano

// SqliteJournal implements ConversationJournal on a SQLite database file.
// Thread-safe: sql.DB handles connection pooling and concurrent access.
type SqliteJournal struct {
	db *sql.DB
}

// OpenSqlite opens or creates a SQLite database at the given path.
// Creates parent directories if they don't exist.
func OpenSqlite(path string) (*SqliteJournal, error) {
	dir := filepath.Dir(path)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite database: %w", err)
	}

	journal := &SqliteJournal{db: db}
	if err := journal.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return journal, nil
}

// NewSqliteInMemory creates an in-memory database (useful for testing).
func NewSqliteInMemory() (*SqliteJournal, error) {
	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory SQLite: %w", err)
	}

	journal := &SqliteJournal{db: db}
	if err := journal.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return journal, nil
}

// Close closes the database connection.
func (s *SqliteJournal) Close() error {
	return s.db.Close()
}

func (s *SqliteJournal) createSchema() error {
	schema := `
		CREATE TABLE IF NOT EXISTS conversations (
			conversation_id TEXT PRIMARY KEY,
			step TEXT NOT NULL DEFAULT '',
			terminated INTEGER NOT NULL DEFAULT 0,
			termination_reason TEXT NOT NULL DEFAULT '',
			values_json TEXT NOT NULL DEFAULT '{}',
			pending_json TEXT NOT NULL DEFAULT '[]',
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL
		);

		CREATE TABLE IF NOT EXISTS messages (
			conversation_id TEXT NOT NULL,
			ordinal INTEGER NOT NULL,
			message_id TEXT NOT NULL,
			speaker TEXT NOT NULL,
			role TEXT NOT NULL,
			kind TEXT NOT NULL,
			step TEXT NOT NULL DEFAULT '',
			content TEXT NOT NULL,
			tool_calls TEXT,
			tool_result TEXT,
			created_at TEXT NOT NULL,
			PRIMARY KEY (conversation_id, ordinal),
			FOREIGN KEY (conversation_id) REFERENCES conversations(conversation_id) ON DELETE CASCADE
		);

		CREATE INDEX IF NOT EXISTS idx_messages_conversation
		ON messages(conversation_id, ordinal);

		CREATE TABLE IF NOT EXISTS checkpoints (
			checkpoint_id TEXT PRIMARY KEY,
			conversation_id TEXT NOT NULL,
			step TEXT NOT NULL,
			key TEXT NOT NULL,
			proposed TEXT NOT NULL,
			state TEXT NOT NULL,
			decided_by TEXT NOT NULL DEFAULT '',
			committed TEXT NOT NULL DEFAULT '',
			note TEXT NOT NULL DEFAULT '',
			created_at TEXT NOT NULL,
			decided_at TEXT NOT NULL,
			FOREIGN KEY (conversation_id) REFERENCES conversations(conversation_id) ON DELETE CASCADE
		);

		CREATE INDEX IF NOT EXISTS idx_checkpoints_conversation
		ON checkpoints(conversation_id, created_at);
	`

	_, err := s.db.Exec(schema)
	if err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}

func (s *SqliteJournal) ensureConversation(ctx context.Context, id string) error {
	now := time.Now().UTC().Format(timeLayout)
	_, err := s.db.ExecContext(ctx,
		"INSERT OR IGNORE INTO conversations (conversation_id, created_at, updated_at) VALUES (?, ?, ?)",
		id, now, now,
	)
	if err != nil {
		return fmt.Errorf("failed to ensure conversation: %w", err)
	}
	return nil
}

// SaveConversation persists the complete state of a conversation: the
// state row is upserted and the message rows rewritten in one transaction.
func (s *SqliteJournal) SaveConversation(ctx context.Context, view conversation.View) error {
	if err := s.ensureConversation(ctx, view.ConversationID); err != nil {
		return err
	}

	valuesJSON, err := json.Marshal(view.Values)
	if err != nil {
		return fmt.Errorf("failed to encode values: %w", err)
	}
	pending := view.PendingCheckpoints
	if pending == nil {
		pending = []string{}
	}
	pendingJSON, err := json.Marshal(pending)
	if err != nil {
		return fmt.Errorf("failed to encode pending checkpoints: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	// Rollback after Commit is a no-op.
	defer func() { _ = tx.Rollback() }()

	terminated := 0
	if view.Terminated {
		terminated = 1
	}
	_, err = tx.ExecContext(ctx, `
		UPDATE conversations
		SET step = ?, terminated = ?, termination_reason = ?, values_json = ?, pending_json = ?, updated_at = ?
		WHERE conversation_id = ?`,
		view.Step, terminated, view.TerminationReason,
		string(valuesJSON), string(pendingJSON),
		time.Now().UTC().Format(timeLayout),
		view.ConversationID,
	)
	if err != nil {
		return fmt.Errorf("failed to update conversation: %w", err)
	}

	_, err = tx.ExecContext(ctx, "DELETE FROM messages WHERE conversation_id = ?", view.ConversationID)
	if err != nil {
		return fmt.Errorf("failed to clear old messages: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO messages
		(conversation_id, ordinal, message_id, speaker, role, kind, step, content, tool_calls, tool_result, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare insert statement: %w", err)
	}
	defer stmt.Close()

	for _, msg := range view.Messages {
		calls, result, err := encodeMessagePayloads(msg)
		if err != nil {
			return err
		}
		_, err = stmt.ExecContext(ctx,
			view.ConversationID, msg.Ordinal, msg.ID, msg.Speaker, msg.Role,
			string(msg.Kind), msg.Step, msg.Content, calls, result,
			msg.CreatedAt.UTC().Format(timeLayout))
		if err != nil {
			return fmt.Errorf("failed to insert message %d: %w", msg.Ordinal, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

// SaveMessage persists one appended message. Keyed on ordinal, so replays
// overwrite rather than duplicate.
func (s *SqliteJournal) SaveMessage(ctx context.Context, conversationID string, msg conversation.Message) error {
	if err := s.ensureConversation(ctx, conversationID); err != nil {
		return err
	}

	calls, result, err := encodeMessagePayloads(msg)
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO messages
		(conversation_id, ordinal, message_id, speaker, role, kind, step, content, tool_calls, tool_result, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		conversationID, msg.Ordinal, msg.ID, msg.Speaker, msg.Role,
		string(msg.Kind), msg.Step, msg.Content, calls, result,
		msg.CreatedAt.UTC().Format(timeLayout))
	if err != nil {
		return fmt.Errorf("failed to insert message: %w", err)
	}

	_, err = s.db.ExecContext(ctx,
		"UPDATE conversations SET updated_at = ? WHERE conversation_id = ?",
		time.Now().UTC().Format(timeLayout), conversationID)
	if err != nil {
		return fmt.Errorf("failed to touch conversation: %w", err)
	}
	return nil
}

// LoadConversation rebuilds a persisted view.
func (s *SqliteJournal) LoadConversation(ctx context.Context, id string) (conversation.View, error) {
	var (
		view        conversation.View
		terminated  int
		valuesJSON  string
		pendingJSON string
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT conversation_id, step, terminated, termination_reason, values_json, pending_json
		FROM conversations WHERE conversation_id = ?`, id).
		Scan(&view.ConversationID, &view.Step, &terminated, &view.TerminationReason, &valuesJSON, &pendingJSON)
	if err == sql.ErrNoRows {
		return conversation.View{}, fmt.Errorf("%w: %s", ErrUnknownConversation, id)
	}
	if err != nil {
		return conversation.View{}, fmt.Errorf("failed to load conversation: %w", err)
	}
	view.Terminated = terminated != 0

	if err := json.Unmarshal([]byte(valuesJSON), &view.Values); err != nil {
		return conversation.View{}, fmt.Errorf("corrupt values for %s: %w", id, err)
	}
	if err := json.Unmarshal([]byte(pendingJSON), &view.PendingCheckpoints); err != nil {
		return conversation.View{}, fmt.Errorf("corrupt pending checkpoints for %s: %w", id, err)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT ordinal, message_id, speaker, role, kind, step, content, tool_calls, tool_result, created_at
		FROM messages WHERE conversation_id = ? ORDER BY ordinal ASC`, id)
	if err != nil {
		return conversation.View{}, fmt.Errorf("failed to query messages: %w", err)
	}
	defer rows.Close()

	view.Messages = []conversation.Message{}
	for rows.Next() {
		msg, err := scanMessage(rows)
		if err != nil {
			return conversation.View{}, err
		}
		view.Messages = append(view.Messages, msg)
	}
	if err := rows.Err(); err != nil {
		return conversation.View{}, fmt.Errorf("error iterating messages: %w", err)
	}

	return view, nil
}

// ListConversations lists stored conversations, most recently updated first.
func (s *SqliteJournal) ListConversations(ctx context.Context) ([]ConversationSummary, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT c.conversation_id, c.step, c.terminated, c.termination_reason, c.updated_at,
		       (SELECT COUNT(*) FROM messages m WHERE m.conversation_id = c.conversation_id)
		FROM conversations c
		ORDER BY c.updated_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to query conversations: %w", err)
	}
	defer rows.Close()

	summaries := []ConversationSummary{}
	for rows.Next() {
		var (
			sum        ConversationSummary
			terminated int
			updated    string
		)
		if err := rows.Scan(&sum.ID, &sum.Step, &terminated, &sum.Reason, &updated, &sum.Messages); err != nil {
			return nil, fmt.Errorf("failed to scan conversation: %w", err)
		}
		sum.Terminated = terminated != 0
		if ts, err := time.Parse(timeLayout, updated); err == nil {
			sum.UpdatedAt = ts
		}
		summaries = append(summaries, sum)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating conversations: %w", err)
	}

	return summaries, nil
}

// DeleteConversation removes a conversation, its messages, and its
// checkpoint records.
func (s *SqliteJournal) DeleteConversation(ctx context.Context, id string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, table := range []string{"messages", "checkpoints", "conversations"} {
		if _, err := tx.ExecContext(ctx,
			fmt.Sprintf("DELETE FROM %s WHERE conversation_id = ?", table), id); err != nil {
			return fmt.Errorf("failed to delete from %s: %w", table, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// Exists checks whether a conversation is stored.
func (s *SqliteJournal) Exists(ctx context.Context, id string) (bool, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM conversations WHERE conversation_id = ?", id).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("failed to check conversation existence: %w", err)
	}
	return count > 0, nil
}

// RecordCheckpointDecision appends a checkpoint audit record.
func (s *SqliteJournal) RecordCheckpointDecision(ctx context.Context, rec CheckpointRecord) error {
	if err := s.ensureConversation(ctx, rec.ConversationID); err != nil {
		return err
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO checkpoints
		(checkpoint_id, conversation_id, step, key, proposed, state, decided_by, committed, note, created_at, decided_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.ConversationID, rec.Step, rec.Key, rec.Proposed, rec.State,
		rec.DecidedBy, rec.Committed, rec.Note,
		rec.CreatedAt.UTC().Format(timeLayout),
		rec.DecidedAt.UTC().Format(timeLayout))
	if err != nil {
		return fmt.Errorf("failed to record checkpoint: %w", err)
	}
	return nil
}

// CheckpointHistory returns a conversation's checkpoint records in
// request order.
func (s *SqliteJournal) CheckpointHistory(ctx context.Context, conversationID string) ([]CheckpointRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT checkpoint_id, conversation_id, step, key, proposed, state, decided_by, committed, note, created_at, decided_at
		FROM checkpoints WHERE conversation_id = ?
		ORDER BY created_at ASC`, conversationID)
	if err != nil {
		return nil, fmt.Errorf("failed to query checkpoints: %w", err)
	}
	defer rows.Close()

	records := []CheckpointRecord{}
	for rows.Next() {
		var (
			rec              CheckpointRecord
			created, decided string
		)
		err := rows.Scan(&rec.ID, &rec.ConversationID, &rec.Step, &rec.Key, &rec.Proposed,
			&rec.State, &rec.DecidedBy, &rec.Committed, &rec.Note, &created, &decided)
		if err != nil {
			return nil, fmt.Errorf("failed to scan checkpoint: %w", err)
		}
		if ts, err := time.Parse(timeLayout, created); err == nil {
			rec.CreatedAt = ts
		}
		if ts, err := time.Parse(timeLayout, decided); err == nil {
			rec.DecidedAt = ts
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating checkpoints: %w", err)
	}

	return records, nil
}

// encodeMessagePayloads serializes tool calls and the tool result to
// nullable JSON columns.
func encodeMessagePayloads(msg conversation.Message) (interface{}, interface{}, error) {
	var calls, result interface{}
	if len(msg.ToolCalls) > 0 {
		data, err := json.Marshal(msg.ToolCalls)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to encode tool calls: %w", err)
		}
		calls = string(data)
	}
	if msg.ToolResult != nil {
		data, err := json.Marshal(msg.ToolResult)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to encode tool result: %w", err)
		}
		result = string(data)
	}
	return calls, result, nil
}

// scanMessage rebuilds one message row.
func scanMessage(rows *sql.Rows) (conversation.Message, error) {
	var (
		msg           conversation.Message
		kind          string
		calls, result sql.NullString
		created       string
	)
	err := rows.Scan(&msg.Ordinal, &msg.ID, &msg.Speaker, &msg.Role, &kind,
		&msg.Step, &msg.Content, &calls, &result, &created)
	if err != nil {
		return conversation.Message{}, fmt.Errorf("failed to scan message: %w", err)
	}
	msg.Kind = conversation.Kind(kind)

	if calls.Valid && calls.String != "" {
		if err := json.Unmarshal([]byte(calls.String), &msg.ToolCalls); err != nil {
			return conversation.Message{}, fmt.Errorf("corrupt tool calls on message %d: %w", msg.Ordinal, err)
		}
	}
	if result.Valid && result.String != "" {
		var tr conversation.ToolResult
		if err := json.Unmarshal([]byte(result.String), &tr); err != nil {
			return conversation.Message{}, fmt.Errorf("corrupt tool result on message %d: %w", msg.Ordinal, err)
		}
		msg.ToolResult = &tr
	}
	if ts, err := time.Parse(timeLayout, created); err == nil {
		msg.CreatedAt = ts
	}

	return msg, nil
}

// Verify SqliteJournal implements the journal interface.
var _ ConversationJournal = (*SqliteJournal)(nil)
