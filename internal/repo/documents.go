// Package repo implements the document store gateway over GORM. This file
// holds the collection-agnostic operations every collection shares:
// get-by-id, conditional create, put (upsert), list-all and partial update.
//
// Error semantics:
//   - A missing record yields ErrNotFound (gorm.ErrRecordNotFound).
//   - A create that collides with an existing primary or unique key yields
//     ErrDuplicate.
//   - Any other driver error is returned unchanged so callers can tell a
//     failure apart from absence.
package repo

import (
	"context"
	"errors"
	"strings"

	"gorm.io/gorm"
)

// ErrNotFound is returned when a requested record does not exist.
// It aliases gorm.ErrRecordNotFound for convenience and consistency
// across the service layer and handlers.
var ErrNotFound = gorm.ErrRecordNotFound

// ErrDuplicate indicates that a conditional create lost against an existing
// record with the same primary or unique key.
var ErrDuplicate = errors.New("duplicate")

func getDoc[T any](ctx context.Context, db *gorm.DB, column, value string) (*T, error) {
	var out T
	if err := db.WithContext(ctx).Where(column+" = ?", value).First(&out).Error; err != nil {
		return nil, err
	}
	return &out, nil
}

func listDocs[T any](ctx context.Context, db *gorm.DB) ([]T, error) {
	out := []T{}
	err := db.WithContext(ctx).Order("created_at asc").Order("id asc").Find(&out).Error
	return out, err
}

// createDoc inserts doc only if no row with the same key exists.
func createDoc[T any](ctx context.Context, db *gorm.DB, doc *T) error {
	if err := db.WithContext(ctx).Create(doc).Error; err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return err
	}
	return nil
}

// putDoc writes every column of doc, inserting it when absent.
func putDoc[T any](ctx context.Context, db *gorm.DB, doc *T) error {
	return db.WithContext(ctx).Save(doc).Error
}

// patchDoc updates only the given columns of the record with the given id.
func patchDoc[T any](ctx context.Context, db *gorm.DB, id string, fields map[string]any) error {
	res := db.WithContext(ctx).Model(new(T)).Where("id = ?", id).Updates(fields)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// isUniqueViolation detects unique-constraint violations across drivers
// that may not map to gorm.ErrDuplicatedKey.
func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	// SQLite: "UNIQUE constraint failed" / "constraint failed: UNIQUE"
	// Postgres: "duplicate key value violates unique constraint"
	low := strings.ToLower(err.Error())
	return strings.Contains(low, "unique constraint") ||
		strings.Contains(low, "constraint failed: unique") ||
		strings.Contains(low, "duplicate key")
}
