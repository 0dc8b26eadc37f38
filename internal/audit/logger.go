// internal/audit/logger.go

// Package audit records every classification and generation interaction for
// later inspection. The primary copy goes to postgres; when elasticsearch is
// configured the entry is also indexed for free-text search over history.
package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"crew-orchestrator/internal/common/database"
	"crew-orchestrator/internal/common/logger"
	"crew-orchestrator/internal/models"
)

const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// Entry is a single recorded interaction.
type Entry struct {
	ID           string               `json:"id"`
	Endpoint     string               `json:"endpoint"`
	Prompt       string               `json:"prompt"`
	Response     string               `json:"response"`
	Model        string               `json:"model"`
	Status       string               `json:"status"`
	ErrorMessage string               `json:"errorMessage,omitempty"`
	GroupContext *models.GroupContext `json:"groupContext,omitempty"`
	CreatedAt    time.Time            `json:"createdAt"`
}

type Logger struct {
	db     *sql.DB
	es     *database.ElasticsearchClient
	index  string
	logger logger.Logger
}

func NewLogger(db *sql.DB, es *database.ElasticsearchClient, index string, log logger.Logger) *Logger {
	return &Logger{
		db:     db,
		es:     es,
		index:  index,
		logger: log.WithFields(map[string]interface{}{"component": "audit"}),
	}
}

// CreateLog persists one interaction entry. The returned error is
// informational; callers on the dispatch path swallow it.
func (l *Logger) CreateLog(ctx context.Context, endpoint, prompt, response, model, status, errorMessage string, groupCtx *models.GroupContext) error {
	entry := Entry{
		ID:           uuid.NewString(),
		Endpoint:     endpoint,
		Prompt:       prompt,
		Response:     response,
		Model:        model,
		Status:       status,
		ErrorMessage: errorMessage,
		GroupContext: groupCtx,
		CreatedAt:    time.Now().UTC(),
	}

	// Absent group context stores NULL, not empty strings.
	var groupID, userID sql.NullString
	if groupCtx != nil {
		groupID = sql.NullString{String: groupCtx.GroupID, Valid: true}
		userID = sql.NullString{String: groupCtx.UserID, Valid: true}
	}

	query := `INSERT INTO interaction_logs (id, endpoint, prompt, response, model, status, error_message, group_id, user_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`
	_, err := l.db.ExecContext(ctx, query,
		entry.ID, entry.Endpoint, entry.Prompt, entry.Response,
		entry.Model, entry.Status, entry.ErrorMessage, groupID, userID, entry.CreatedAt,
	)
	if err != nil {
		l.logger.Error("audit log insert failed", map[string]interface{}{
			"endpoint": endpoint,
			"error":    err.Error(),
		})
		return fmt.Errorf("audit log insert failed: %w", err)
	}

	l.indexEntry(ctx, &entry)

	return nil
}

// indexEntry mirrors the entry into elasticsearch. Index failures are logged
// and dropped, search is a convenience, not the record of truth.
func (l *Logger) indexEntry(ctx context.Context, entry *Entry) {
	if l.es == nil {
		return
	}

	doc, err := json.Marshal(entry)
	if err != nil {
		return
	}

	if err := l.es.IndexDocument(ctx, l.index, entry.ID, doc); err != nil {
		l.logger.Warn("audit log index failed", map[string]interface{}{
			"endpoint": entry.Endpoint,
			"error":    err.Error(),
		})
	}
}
