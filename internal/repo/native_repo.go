// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file holds native-currency bookkeeping: pending
// creator accruals, the global creator pool totals, and the outbound
// transfer outbox.
package repo

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/tbourn/go-chat-ledger/internal/domain"
)

// GetPending returns the pending accrual of addr (zero if absent).
func GetPending(ctx context.Context, db *gorm.DB, addr string) (domain.PendingNative, error) {
	return getPending(db.WithContext(ctx), addr)
}

// GetPendingForUpdate is GetPending with a row lock.
func GetPendingForUpdate(ctx context.Context, db *gorm.DB, addr string) (domain.PendingNative, error) {
	return getPending(forUpdate(db.WithContext(ctx)), addr)
}

func getPending(q *gorm.DB, addr string) (domain.PendingNative, error) {
	var p domain.PendingNative
	err := q.Where("address = ?", addr).First(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return domain.PendingNative{Address: addr}, nil
	}
	return p, err
}

// SavePending upserts the pending accrual of addr.
func SavePending(ctx context.Context, db *gorm.DB, addr string, amount domain.Amount) error {
	row := domain.PendingNative{Address: addr, Amount: amount, UpdatedAt: time.Now().UTC()}
	return db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "address"}},
			DoUpdates: clause.AssignmentColumns([]string{"amount", "updated_at"}),
		}).
		Create(&row).Error
}

// GetPoolForUpdate returns the locked singleton pool row (zero if absent).
func GetPoolForUpdate(ctx context.Context, db *gorm.DB) (domain.NativePool, error) {
	var p domain.NativePool
	err := forUpdate(db.WithContext(ctx)).Where("id = ?", domain.PoolRowID).First(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return domain.NativePool{ID: domain.PoolRowID}, nil
	}
	return p, err
}

// GetPool returns the singleton pool row (zero if absent).
func GetPool(ctx context.Context, db *gorm.DB) (domain.NativePool, error) {
	var p domain.NativePool
	err := db.WithContext(ctx).Where("id = ?", domain.PoolRowID).First(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return domain.NativePool{ID: domain.PoolRowID}, nil
	}
	return p, err
}

// SavePool upserts the pool totals.
func SavePool(ctx context.Context, db *gorm.DB, p domain.NativePool) error {
	p.ID = domain.PoolRowID
	p.UpdatedAt = time.Now().UTC()
	return db.WithContext(ctx).
		Clauses(clause.OnConflict{UpdateAll: true}).
		Create(&p).Error
}

// CreateNativeTransfer appends an outbound transfer to the outbox.
func CreateNativeTransfer(ctx context.Context, db *gorm.DB, to string, amount domain.Amount, reason, settlementID string) (*domain.NativeTransfer, error) {
	t := &domain.NativeTransfer{
		ID:           uuid.NewString(),
		To:           to,
		Amount:       amount,
		Reason:       reason,
		SettlementID: settlementID,
		CreatedAt:    time.Now().UTC(),
	}
	return t, db.WithContext(ctx).Create(t).Error
}

// ListNativeTransfers returns transfers to addr, oldest first. An empty addr
// lists all transfers.
func ListNativeTransfers(ctx context.Context, db *gorm.DB, addr string) ([]domain.NativeTransfer, error) {
	var out []domain.NativeTransfer
	q := db.WithContext(ctx).Order("created_at ASC, id ASC")
	if addr != "" {
		q = q.Where("recipient = ?", addr)
	}
	err := q.Find(&out).Error
	return out, err
}
