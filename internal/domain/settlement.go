package domain

import "time"

// SettlementKind classifies a settlement record.
type SettlementKind string

const (
	KindMessage    SettlementKind = "message"
	KindPurchase   SettlementKind = "purchase"
	KindWithdrawal SettlementKind = "withdrawal"
	KindClaim      SettlementKind = "claim"
	KindMint       SettlementKind = "mint"
	KindBurn       SettlementKind = "burn"
	KindTransfer   SettlementKind = "transfer"
)

// Settlement is the caller-observable record of one state-mutating call.
// Which amount columns are meaningful depends on Kind:
//
//   - message:    User, ContentID, Free, Charged, Creator, CreatorPaid, PlatformPaid
//   - purchase:   User (buyer), NativeAmount, TokensMinted, PlatformCut, PoolCut
//   - withdrawal: User (creator), PaidOut
//   - claim/mint: User (recipient), TokensMinted
//   - burn:       User, Charged
//   - transfer:   User (from), Counterparty (to), Charged
type Settlement struct {
	ID           string         `json:"id"                     gorm:"type:char(36);primaryKey"`
	Kind         SettlementKind `json:"kind"                   gorm:"type:varchar(16);not null;index"`
	Caller       string         `json:"caller"                 gorm:"type:varchar(42);not null;index"`
	User         string         `json:"user"                   gorm:"column:user_address;type:varchar(42);not null;index:idx_settlement_user,priority:1"`
	Counterparty string         `json:"counterparty,omitempty" gorm:"type:varchar(42)"`
	ContentID    *uint64        `json:"content_id,omitempty"`
	Free         bool           `json:"free"`
	Charged      Amount         `json:"charged"                gorm:"not null"`
	Creator      string         `json:"creator,omitempty"      gorm:"type:varchar(42);index"`
	CreatorPaid  Amount         `json:"creator_paid"           gorm:"not null"`
	PlatformPaid Amount         `json:"platform_paid"          gorm:"not null"`
	NativeAmount Amount         `json:"native_amount"          gorm:"not null"`
	TokensMinted Amount         `json:"tokens_minted"          gorm:"not null"`
	PlatformCut  Amount         `json:"platform_cut"           gorm:"not null"`
	PoolCut      Amount         `json:"pool_cut"               gorm:"not null"`
	PaidOut      Amount         `json:"paid_out"               gorm:"not null"`
	CreatedAt    time.Time      `json:"created_at"             gorm:"index:idx_settlement_user,priority:2"`
}

// TableName returns the database table name for Settlement.
func (Settlement) TableName() string { return "settlements" }
