// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides small aggregate queries used for
// conditional responses (ETag generation) in the HTTP layer.
package repo

import (
	"context"
	"time"

	"gorm.io/gorm"
)

// SettlementsStats returns the number of settlements involving addr and the
// newest CreatedAt among them. With no rows, maxCreatedAt is nil.
//
// Settlements are append-only, so (count, newest) changes whenever the
// listing would.
func SettlementsStats(ctx context.Context, db *gorm.DB, addr string) (count int64, maxCreatedAt *time.Time, err error) {
	if err = involving(db.WithContext(ctx), addr).Count(&count).Error; err != nil {
		return 0, nil, err
	}
	if count == 0 {
		return 0, nil, nil
	}

	// Get latest created_at (avoid MAX() -> TEXT in SQLite)
	var row struct {
		CreatedAt time.Time
	}
	if err = involving(db.WithContext(ctx), addr).
		Select("created_at").Order("created_at DESC").Limit(1).
		Scan(&row).Error; err != nil {
		return 0, nil, err
	}
	return count, &row.CreatedAt, nil
}
