package repository

import (
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"agentchat/internal/domain"
)

// ConversationRepository handles conversation and message persistence.
type ConversationRepository struct {
	db *DB
}

// NewConversationRepository creates a new conversation repository
func NewConversationRepository(db *DB) *ConversationRepository {
	return &ConversationRepository{db: db}
}

// GetOrCreate returns the conversation for a session id, creating it with
// the given mode when absent.
func (r *ConversationRepository) GetOrCreate(sessionID, mode string) (*domain.Conversation, error) {
	conv, err := r.GetBySessionID(sessionID)
	if err != nil {
		return nil, err
	}
	if conv != nil {
		return conv, nil
	}

	if mode == "" {
		mode = domain.ModeAgent
	}
	now := time.Now()
	conv = &domain.Conversation{
		ID:        uuid.New().String(),
		SessionID: sessionID,
		Mode:      mode,
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
	}

	_, err = r.db.Exec(`
		INSERT INTO conversations (id, session_id, mode, is_active, created_at, updated_at)
		VALUES (?, ?, ?, 1, ?, ?)
	`, conv.ID, conv.SessionID, conv.Mode, conv.CreatedAt, conv.UpdatedAt)
	if err != nil {
		return nil, err
	}

	return conv, nil
}

// GetBySessionID retrieves a conversation by session id, nil when absent.
func (r *ConversationRepository) GetBySessionID(sessionID string) (*domain.Conversation, error) {
	return r.scanConversation(r.db.QueryRow(`
		SELECT id, session_id, mode, title, is_active, created_at, updated_at
		FROM conversations WHERE session_id = ?
	`, sessionID))
}

// Get retrieves a conversation by id, nil when absent.
func (r *ConversationRepository) Get(id string) (*domain.Conversation, error) {
	return r.scanConversation(r.db.QueryRow(`
		SELECT id, session_id, mode, title, is_active, created_at, updated_at
		FROM conversations WHERE id = ?
	`, id))
}

func (r *ConversationRepository) scanConversation(row *sql.Row) (*domain.Conversation, error) {
	conv := &domain.Conversation{}
	var title sql.NullString

	err := row.Scan(&conv.ID, &conv.SessionID, &conv.Mode, &title,
		&conv.IsActive, &conv.CreatedAt, &conv.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if title.Valid {
		conv.Title = title.String
	}
	return conv, nil
}

// List returns all conversations, most recently updated first.
func (r *ConversationRepository) List() ([]*domain.Conversation, error) {
	rows, err := r.db.Query(`
		SELECT id, session_id, mode, title, is_active, created_at, updated_at
		FROM conversations ORDER BY updated_at DESC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var conversations []*domain.Conversation
	for rows.Next() {
		conv := &domain.Conversation{}
		var title sql.NullString
		if err := rows.Scan(&conv.ID, &conv.SessionID, &conv.Mode, &title,
			&conv.IsActive, &conv.CreatedAt, &conv.UpdatedAt); err != nil {
			return nil, err
		}
		if title.Valid {
			conv.Title = title.String
		}
		conversations = append(conversations, conv)
	}
	return conversations, rows.Err()
}

// Touch updates a conversation's updated_at timestamp.
func (r *ConversationRepository) Touch(id string) error {
	_, err := r.db.Exec(`UPDATE conversations SET updated_at = ? WHERE id = ?`, time.Now(), id)
	return err
}

// SetTitleIfEmpty sets the conversation title once; an existing title is
// never overwritten.
func (r *ConversationRepository) SetTitleIfEmpty(id, title string) error {
	_, err := r.db.Exec(`
		UPDATE conversations SET title = ?
		WHERE id = ? AND (title IS NULL OR title = '')
	`, title, id)
	return err
}

// Deactivate marks a conversation as inactive.
func (r *ConversationRepository) Deactivate(id string) error {
	res, err := r.db.Exec(`UPDATE conversations SET is_active = 0, updated_at = ? WHERE id = ?`, time.Now(), id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// Delete removes a conversation and, via cascade, its messages.
func (r *ConversationRepository) Delete(id string) error {
	res, err := r.db.Exec(`DELETE FROM conversations WHERE id = ?`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// AppendMessage persists one message for a conversation.
func (r *ConversationRepository) AppendMessage(message *domain.Message) error {
	if message.ID == "" {
		message.ID = uuid.New().String()
	}
	if message.CreatedAt.IsZero() {
		message.CreatedAt = time.Now()
	}

	var toolCallsJSON sql.NullString
	if len(message.ToolCalls) > 0 {
		b, err := json.Marshal(message.ToolCalls)
		if err != nil {
			return err
		}
		toolCallsJSON = sql.NullString{String: string(b), Valid: true}
	}

	var metadataJSON sql.NullString
	if len(message.Metadata) > 0 {
		b, err := json.Marshal(message.Metadata)
		if err != nil {
			return err
		}
		metadataJSON = sql.NullString{String: string(b), Valid: true}
	}

	_, err := r.db.Exec(`
		INSERT INTO messages (id, conversation_id, role, content, tool_calls,
			prompt_tokens, completion_tokens, total_tokens, cost_usd, metadata, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, message.ID, message.ConversationID, message.Role, message.Content, toolCallsJSON,
		message.PromptTokens, message.CompletionTokens, message.TotalTokens,
		message.CostUSD, metadataJSON, message.CreatedAt)

	return err
}

// LoadHistory retrieves all messages for a conversation, oldest first.
func (r *ConversationRepository) LoadHistory(conversationID string) ([]domain.Message, error) {
	rows, err := r.db.Query(`
		SELECT id, conversation_id, role, content, tool_calls,
			prompt_tokens, completion_tokens, total_tokens, cost_usd, metadata, created_at
		FROM messages WHERE conversation_id = ?
		ORDER BY created_at ASC
	`, conversationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var messages []domain.Message
	for rows.Next() {
		var (
			message       domain.Message
			toolCallsJSON sql.NullString
			metadataJSON  sql.NullString
		)
		if err := rows.Scan(&message.ID, &message.ConversationID, &message.Role,
			&message.Content, &toolCallsJSON, &message.PromptTokens,
			&message.CompletionTokens, &message.TotalTokens, &message.CostUSD,
			&metadataJSON, &message.CreatedAt); err != nil {
			return nil, err
		}
		if toolCallsJSON.Valid && toolCallsJSON.String != "" {
			json.Unmarshal([]byte(toolCallsJSON.String), &message.ToolCalls)
		}
		if metadataJSON.Valid && metadataJSON.String != "" {
			json.Unmarshal([]byte(metadataJSON.String), &message.Metadata)
		}
		messages = append(messages, message)
	}

	return messages, rows.Err()
}

// CountMessages returns the number of messages across all conversations.
func (r *ConversationRepository) CountMessages() (int, error) {
	var count int
	err := r.db.QueryRow(`SELECT COUNT(*) FROM messages`).Scan(&count)
	return count, err
}
