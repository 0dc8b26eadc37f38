// internal/templates/store.go

// Package templates resolves prompt template text by key. Templates live in
// postgres and are cached in redis so hot keys (intent detection runs on
// every dispatch) skip the database.
package templates

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"crew-orchestrator/internal/common/logger"
)

const cacheKeyPrefix = "tpl:"

type Store struct {
	db       *sql.DB
	redis    *redis.Client
	cacheTTL time.Duration
	logger   logger.Logger
}

func NewStore(db *sql.DB, rdb *redis.Client, cacheTTL time.Duration, log logger.Logger) *Store {
	return &Store{
		db:       db,
		redis:    rdb,
		cacheTTL: cacheTTL,
		logger:   log.WithFields(map[string]interface{}{"component": "template-store"}),
	}
}

// GetTemplateContent returns the template text for key, or an empty string if
// no template with that key exists. Cache failures degrade to a database read.
func (s *Store) GetTemplateContent(ctx context.Context, key string) (string, error) {
	cacheKey := cacheKeyPrefix + key

	if s.redis != nil {
		if val, err := s.redis.Get(ctx, cacheKey).Result(); err == nil {
			return val, nil
		}
	}

	var content string
	query := `SELECT content FROM prompt_templates WHERE template_key = $1`
	err := s.db.QueryRowContext(ctx, query, key).Scan(&content)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", nil
		}
		return "", fmt.Errorf("template lookup failed: %w", err)
	}

	if s.redis != nil {
		if err := s.redis.Set(ctx, cacheKey, content, s.cacheTTL).Err(); err != nil {
			s.logger.Warn("template cache write failed", map[string]interface{}{
				"key":   key,
				"error": err.Error(),
			})
		}
	}

	return content, nil
}

// Invalidate drops the cached copy of a template.
func (s *Store) Invalidate(ctx context.Context, key string) error {
	if s.redis == nil {
		return nil
	}
	return s.redis.Del(ctx, cacheKeyPrefix+key).Err()
}
