// internal/templates/store_test.go
package templates

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"crew-orchestrator/internal/common/logger"
)

func newTestStore(t *testing.T) (*Store, sqlmock.Sqlmock, *miniredis.Miniredis) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})

	store := NewStore(db, rdb, 5*time.Minute, logger.NewTestLogger(t))
	return store, mock, mr
}

func TestStore_GetTemplateContent_FromDatabase(t *testing.T) {
	store, mock, mr := newTestStore(t)

	mock.ExpectQuery(`SELECT content FROM prompt_templates`).
		WithArgs("detect_intent").
		WillReturnRows(sqlmock.NewRows([]string{"content"}).AddRow("classify the message"))

	content, err := store.GetTemplateContent(context.Background(), "detect_intent")
	require.NoError(t, err)
	assert.Equal(t, "classify the message", content)

	// Database hit populates the cache.
	cached, err := mr.Get("tpl:detect_intent")
	require.NoError(t, err)
	assert.Equal(t, "classify the message", cached)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_GetTemplateContent_CacheHitSkipsDatabase(t *testing.T) {
	store, mock, mr := newTestStore(t)

	require.NoError(t, mr.Set("tpl:detect_intent", "cached template"))

	content, err := store.GetTemplateContent(context.Background(), "detect_intent")
	require.NoError(t, err)
	assert.Equal(t, "cached template", content)

	// No query was expected; any DB access would fail ExpectationsWereMet.
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_GetTemplateContent_MissingKey(t *testing.T) {
	store, mock, _ := newTestStore(t)

	mock.ExpectQuery(`SELECT content FROM prompt_templates`).
		WithArgs("nope").
		WillReturnRows(sqlmock.NewRows([]string{"content"}))

	content, err := store.GetTemplateContent(context.Background(), "nope")
	require.NoError(t, err)
	assert.Empty(t, content)
}

func TestStore_Invalidate(t *testing.T) {
	store, _, mr := newTestStore(t)

	require.NoError(t, mr.Set("tpl:detect_intent", "stale"))
	require.NoError(t, store.Invalidate(context.Background(), "detect_intent"))
	assert.False(t, mr.Exists("tpl:detect_intent"))
}
