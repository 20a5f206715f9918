// Package repo implements the document store gateway over GORM. This file
// provides small aggregate queries used for conditional responses (weak
// ETag generation) in the HTTP layer.
package repo

import (
	"context"
	"time"

	"gorm.io/gorm"
)

// CollectionStats returns the total number of rows in model's table and the
// greatest UpdatedAt among them. When the table is empty the count is 0 and
// maxUpdatedAt is nil.
//
// model must be a pointer to a GORM model with an updated_at column, for
// example &domain.Movie{}.
func CollectionStats(ctx context.Context, db *gorm.DB, model any) (count int64, maxUpdatedAt *time.Time, err error) {
	q := db.WithContext(ctx).Model(model)

	if err = q.Count(&count).Error; err != nil {
		return 0, nil, err
	}
	if count == 0 {
		return 0, nil, nil
	}

	// Get latest updated_at (avoid MAX() -> TEXT in SQLite)
	var row struct {
		UpdatedAt time.Time
	}
	if err = db.WithContext(ctx).Model(model).Select("updated_at").Order("updated_at DESC").Limit(1).Scan(&row).Error; err != nil {
		return 0, nil, err
	}
	return count, &row.UpdatedAt, nil
}
