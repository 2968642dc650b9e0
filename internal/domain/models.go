// Package domain defines the persistence models of the token ledger: balances,
// supply, spender authorizations, chatbot ownership, daily usage, native
// currency accruals, and the settlement records produced by every paid or
// free action. These types are mapped with GORM and shared by the repository,
// service and HTTP layers.
package domain

import "time"

// Account is one row of the fungible balance table. Rows are created on the
// first credit and never deleted; a zero balance is a valid terminal state.
type Account struct {
	Address   string    `json:"address"    gorm:"type:varchar(42);primaryKey"`
	Balance   Amount    `json:"balance"    gorm:"not null"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName returns the database table name for Account.
func (Account) TableName() string { return "accounts" }

// SupplyRowID is the primary key of the singleton supply row.
const SupplyRowID = 1

// TokenSupply holds the monotonic totalSupply counter (minted minus burned).
type TokenSupply struct {
	ID        uint      `gorm:"primaryKey;autoIncrement:false"`
	Total     Amount    `gorm:"not null"`
	UpdatedAt time.Time
}

// TableName returns the database table name for TokenSupply.
func (TokenSupply) TableName() string { return "token_supply" }

// AuthorizedSpender marks an address that may debit on behalf of users.
type AuthorizedSpender struct {
	Address   string `gorm:"type:varchar(42);primaryKey"`
	Allowed   bool   `gorm:"not null;default:false"`
	UpdatedAt time.Time
}

// TableName returns the database table name for AuthorizedSpender.
func (AuthorizedSpender) TableName() string { return "authorized_spenders" }

// ChatbotOwner maps an externally defined content id to its creator address.
// ContentID is opaque: there is no foreign key to any catalog.
type ChatbotOwner struct {
	ContentID uint64    `json:"content_id" gorm:"primaryKey;autoIncrement:false"`
	Owner     string    `json:"owner"      gorm:"type:varchar(42);not null"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName returns the database table name for ChatbotOwner.
func (ChatbotOwner) TableName() string { return "chatbot_owners" }

// DailyUsage tracks the free-message counter and the daily-claim cycle of one
// user. Days are UTC epoch days (unix seconds / 86400).
//
// LastClaimDay is nil until the first successful claim.
type DailyUsage struct {
	Address      string `gorm:"type:varchar(42);primaryKey"`
	Used         int    `gorm:"not null;default:0"`
	LastResetDay int64  `gorm:"not null;default:0"`
	LastClaimDay *int64
	UpdatedAt    time.Time
}

// TableName returns the database table name for DailyUsage.
func (DailyUsage) TableName() string { return "daily_usage" }

// PendingNative is the native-currency amount owed to an address and not yet
// withdrawn. It only grows through purchases and only shrinks by withdrawal.
type PendingNative struct {
	Address   string    `json:"address"    gorm:"type:varchar(42);primaryKey"`
	Amount    Amount    `json:"amount"     gorm:"not null"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName returns the database table name for PendingNative.
func (PendingNative) TableName() string { return "pending_native" }

// PoolRowID is the primary key of the singleton creator-pool row.
const PoolRowID = 1

// NativePool aggregates the global creator pool fed by purchases.
type NativePool struct {
	ID        uint   `gorm:"primaryKey;autoIncrement:false"`
	Accrued   Amount `gorm:"not null"`
	Withdrawn Amount `gorm:"not null"`
	UpdatedAt time.Time
}

// TableName returns the database table name for NativePool.
func (NativePool) TableName() string { return "native_pool" }

// NativeTransfer is an outbound native-currency send recorded in the same
// transaction as the ledger mutation that caused it.
type NativeTransfer struct {
	ID           string    `json:"id"            gorm:"type:char(36);primaryKey"`
	To           string    `json:"to"            gorm:"column:recipient;type:varchar(42);not null;index"`
	Amount       Amount    `json:"amount"        gorm:"not null"`
	Reason       string    `json:"reason"        gorm:"type:varchar(32);not null"`
	SettlementID string    `json:"settlement_id" gorm:"type:char(36);index"`
	CreatedAt    time.Time `json:"created_at"`
}

// TableName returns the database table name for NativeTransfer.
func (NativeTransfer) TableName() string { return "native_transfers" }
