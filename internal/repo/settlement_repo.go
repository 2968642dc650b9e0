// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file stores settlement records.
package repo

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tbourn/go-chat-ledger/internal/domain"
)

// CreateSettlement assigns an id and timestamp when unset and inserts s.
func CreateSettlement(ctx context.Context, db *gorm.DB, s *domain.Settlement) error {
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	if s.CreatedAt.IsZero() {
		s.CreatedAt = time.Now().UTC()
	}
	return db.WithContext(ctx).Create(s).Error
}

// GetSettlement fetches a settlement by id or returns ErrNotFound.
func GetSettlement(ctx context.Context, db *gorm.DB, id string) (*domain.Settlement, error) {
	var s domain.Settlement
	err := db.WithContext(ctx).Where("id = ?", id).First(&s).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// involving scopes a query to settlements where addr took part in any role.
func involving(db *gorm.DB, addr string) *gorm.DB {
	return db.Model(&domain.Settlement{}).
		Where("user_address = ? OR caller = ? OR creator = ? OR counterparty = ?", addr, addr, addr, addr)
}

// CountSettlements returns the number of settlements involving addr.
func CountSettlements(ctx context.Context, db *gorm.DB, addr string) (int64, error) {
	var total int64
	err := involving(db.WithContext(ctx), addr).Count(&total).Error
	return total, err
}

// ListSettlementsPage returns settlements involving addr, newest first
// (CreatedAt DESC, ID DESC).
func ListSettlementsPage(ctx context.Context, db *gorm.DB, addr string, offset, limit int) ([]domain.Settlement, error) {
	var out []domain.Settlement
	err := involving(db.WithContext(ctx), addr).
		Order("created_at DESC, id DESC").
		Offset(offset).
		Limit(limit).
		Find(&out).Error
	return out, err
}
