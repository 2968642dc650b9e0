// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides the balance, supply and spender tables
// of the fungible ledger.
//
// Functions accept a *gorm.DB so they compose inside a caller's transaction.
// The *ForUpdate variants add SELECT ... FOR UPDATE on dialects that support
// row locks; SQLite ignores the clause and relies on its single writer.
//
// Missing rows are not errors here: an address that was never credited has a
// zero balance, and the supply row starts at zero.
package repo

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/tbourn/go-chat-ledger/internal/domain"
)

// ErrNotFound aliases gorm.ErrRecordNotFound for callers of this package.
var ErrNotFound = gorm.ErrRecordNotFound

func forUpdate(db *gorm.DB) *gorm.DB {
	return db.Clauses(clause.Locking{Strength: "UPDATE"})
}

// GetAccount returns the account row for addr, or a zero-balance account if
// none exists yet.
func GetAccount(ctx context.Context, db *gorm.DB, addr string) (domain.Account, error) {
	return getAccount(db.WithContext(ctx), addr)
}

// GetAccountForUpdate is GetAccount with a row lock.
func GetAccountForUpdate(ctx context.Context, db *gorm.DB, addr string) (domain.Account, error) {
	return getAccount(forUpdate(db.WithContext(ctx)), addr)
}

func getAccount(q *gorm.DB, addr string) (domain.Account, error) {
	var acc domain.Account
	err := q.Where("address = ?", addr).First(&acc).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return domain.Account{Address: addr}, nil
	}
	return acc, err
}

// SaveBalance upserts the balance of addr.
func SaveBalance(ctx context.Context, db *gorm.DB, addr string, bal domain.Amount) error {
	now := time.Now().UTC()
	acc := domain.Account{Address: addr, Balance: bal, CreatedAt: now, UpdatedAt: now}
	return db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "address"}},
			DoUpdates: clause.AssignmentColumns([]string{"balance", "updated_at"}),
		}).
		Create(&acc).Error
}

// ListAccounts returns every account ordered by address.
func ListAccounts(ctx context.Context, db *gorm.DB) ([]domain.Account, error) {
	var out []domain.Account
	err := db.WithContext(ctx).Order("address ASC").Find(&out).Error
	return out, err
}

// GetSupply returns the singleton supply row (zero if absent).
func GetSupply(ctx context.Context, db *gorm.DB) (domain.TokenSupply, error) {
	return getSupply(db.WithContext(ctx))
}

// GetSupplyForUpdate is GetSupply with a row lock.
func GetSupplyForUpdate(ctx context.Context, db *gorm.DB) (domain.TokenSupply, error) {
	return getSupply(forUpdate(db.WithContext(ctx)))
}

func getSupply(q *gorm.DB) (domain.TokenSupply, error) {
	var s domain.TokenSupply
	err := q.Where("id = ?", domain.SupplyRowID).First(&s).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return domain.TokenSupply{ID: domain.SupplyRowID}, nil
	}
	return s, err
}

// SaveSupply upserts the supply total.
func SaveSupply(ctx context.Context, db *gorm.DB, total domain.Amount) error {
	row := domain.TokenSupply{ID: domain.SupplyRowID, Total: total, UpdatedAt: time.Now().UTC()}
	return db.WithContext(ctx).
		Clauses(clause.OnConflict{UpdateAll: true}).
		Create(&row).Error
}

// IsAuthorizedSpender reports whether addr may debit on behalf of users.
func IsAuthorizedSpender(ctx context.Context, db *gorm.DB, addr string) (bool, error) {
	var row domain.AuthorizedSpender
	err := db.WithContext(ctx).Where("address = ?", addr).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return row.Allowed, nil
}

// SetAuthorizedSpender upserts the spender flag. Revocation keeps the row.
func SetAuthorizedSpender(ctx context.Context, db *gorm.DB, addr string, allowed bool) error {
	row := domain.AuthorizedSpender{Address: addr, Allowed: allowed, UpdatedAt: time.Now().UTC()}
	return db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "address"}},
			DoUpdates: clause.AssignmentColumns([]string{"allowed", "updated_at"}),
		}).
		Create(&row).Error
}
