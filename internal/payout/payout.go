// Package payout sends native currency out of the ledger. Senders run inside
// the caller's database transaction, so a failed send rolls back every ledger
// effect that preceded it.
package payout

import (
	"context"
	"errors"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"gorm.io/gorm"

	"github.com/tbourn/go-chat-ledger/internal/domain"
	"github.com/tbourn/go-chat-ledger/internal/repo"
)

// Transfer reasons recorded with each outbound send.
const (
	ReasonPlatformCut = "platform_cut"
	ReasonWithdrawal  = "withdrawal"
)

// ErrZeroTransfer is returned for sends of zero value.
var ErrZeroTransfer = errors.New("zero-value transfer")

// Transfer is one outbound native-currency send.
type Transfer struct {
	To           common.Address
	Amount       *uint256.Int
	Reason       string
	SettlementID string
}

// Payer performs a native-currency send as part of tx.
type Payer interface {
	Send(ctx context.Context, tx *gorm.DB, t Transfer) error
}

// PayerFunc adapts a function to Payer.
type PayerFunc func(ctx context.Context, tx *gorm.DB, t Transfer) error

// Send implements Payer.
func (f PayerFunc) Send(ctx context.Context, tx *gorm.DB, t Transfer) error { return f(ctx, tx, t) }

// OutboxPayer records sends in the native_transfers table. A relay outside
// this service broadcasts them; the row commits or rolls back with the ledger
// mutation that produced it.
type OutboxPayer struct{}

// Send implements Payer.
func (OutboxPayer) Send(ctx context.Context, tx *gorm.DB, t Transfer) error {
	if t.Amount == nil || t.Amount.IsZero() {
		return ErrZeroTransfer
	}
	_, err := repo.CreateNativeTransfer(ctx, tx, domain.AddressKey(t.To), domain.NewAmount(t.Amount), t.Reason, t.SettlementID)
	return err
}
