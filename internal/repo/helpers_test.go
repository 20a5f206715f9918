package repo

import (
	"bytes"
	"testing"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

// openedDB pairs a database with the pool size observed right after Open.
type openedDB struct {
	*gorm.DB
	maxOpen int
}

// newTestDB opens a private in-memory SQLite database through OpenSQLite and
// migrates only the given models, so tests can also exercise missing tables.
func newTestDB(t *testing.T, models ...any) *gorm.DB {
	t.Helper()
	db, err := OpenSQLite("file:" + uuid.NewString() + "?mode=memory&cache=shared")
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	if len(models) == 0 {
		return db
	}
	if err := db.AutoMigrate(models...); err != nil {
		t.Fatalf("migrate %T: %v", models[0], err)
	}
	return db
}

func strptr(s string) *string { return &s }

// captureGlobalLog redirects the global zerolog logger into a buffer.
func captureGlobalLog(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	prev := log.Logger
	t.Cleanup(func() { log.Logger = prev })
	log.Logger = zerolog.New(&buf)
	return &buf
}
