// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file stores the per-user daily usage record.
package repo

import (
	"context"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/tbourn/go-chat-ledger/internal/domain"
)

// GetUsage returns the usage row for addr, or a zero record if absent.
func GetUsage(ctx context.Context, db *gorm.DB, addr string) (domain.DailyUsage, error) {
	return getUsage(db.WithContext(ctx), addr)
}

// GetUsageForUpdate is GetUsage with a row lock.
func GetUsageForUpdate(ctx context.Context, db *gorm.DB, addr string) (domain.DailyUsage, error) {
	return getUsage(forUpdate(db.WithContext(ctx)), addr)
}

func getUsage(q *gorm.DB, addr string) (domain.DailyUsage, error) {
	var u domain.DailyUsage
	err := q.Where("address = ?", addr).First(&u).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return domain.DailyUsage{Address: addr}, nil
	}
	return u, err
}

// SaveUsage upserts the whole usage record.
func SaveUsage(ctx context.Context, db *gorm.DB, u *domain.DailyUsage) error {
	return db.WithContext(ctx).
		Clauses(clause.OnConflict{UpdateAll: true}).
		Create(u).Error
}
