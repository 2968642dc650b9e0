package services

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/tbourn/go-chat-ledger/internal/domain"
	"github.com/tbourn/go-chat-ledger/internal/payout"
	"github.com/tbourn/go-chat-ledger/internal/repo"
	"github.com/tbourn/go-chat-ledger/internal/units"
)

// BuyTokens converts value (native base units received from caller) into
// tokens at ExchangeRate and mints them to caller. PlatformNativePct of value
// is paid out to the platform immediately; the remainder accrues to the
// global creator pool. If the platform payout fails nothing is minted.
//
// value is taken as already received. The engine holds no native funds, so
// whatever fronts it must have confirmed the payment before calling.
func (e *Engine) BuyTokens(ctx context.Context, caller common.Address, value *uint256.Int) (*domain.Settlement, error) {
	return e.BuyTokensFor(ctx, caller, caller, value)
}

// BuyTokensFor is BuyTokens with the tokens minted to buyer. A caller other
// than buyer must be an authorized spender, typically the payment gateway
// that confirmed buyer's payment.
func (e *Engine) BuyTokensFor(ctx context.Context, caller, buyer common.Address, value *uint256.Int) (*domain.Settlement, error) {
	ctx, span := otel.Tracer("services/PurchaseSettlement").Start(ctx, "BuyTokens",
		trace.WithAttributes(
			attribute.String("caller", caller.Hex()),
			attribute.String("buyer", buyer.Hex()),
		),
	)
	defer span.End()

	if buyer == domain.ZeroAddress {
		return nil, ErrInvalidAddress
	}
	if value == nil || value.IsZero() {
		return nil, ErrInvalidAmount
	}
	if value.Lt(e.Eco.MinPurchase) {
		return nil, ErrBelowMinimum
	}

	tokensOut, err := units.Mul(value, uint256.NewInt(e.Eco.ExchangeRate))
	if err != nil {
		return nil, err
	}
	platformCut, poolCut, err := units.Split(value, e.Eco.PlatformNativePct)
	if err != nil {
		return nil, err
	}

	return e.settle(ctx, domain.KindPurchase, caller, addrKeys(buyer, e.Eco.Pool), func(tx *gorm.DB, s *domain.Settlement) error {
		if err := requireSelfOrSpender(ctx, tx, caller, buyer); err != nil {
			return err
		}
		if err := mintTo(ctx, tx, buyer, tokensOut); err != nil {
			return err
		}
		if !poolCut.IsZero() {
			if err := accruePool(ctx, tx, e.Eco.Pool, poolCut); err != nil {
				return err
			}
		}
		if !platformCut.IsZero() {
			err := e.payer().Send(ctx, tx, payout.Transfer{
				To:           e.Eco.Platform,
				Amount:       platformCut,
				Reason:       payout.ReasonPlatformCut,
				SettlementID: s.ID,
			})
			if err != nil {
				return fmt.Errorf("%w: %v", ErrTransferFailed, err)
			}
		}

		s.User = domain.AddressKey(buyer)
		s.NativeAmount = domain.NewAmount(value)
		s.TokensMinted = domain.NewAmount(tokensOut)
		s.PlatformCut = domain.NewAmount(platformCut)
		s.PoolCut = domain.NewAmount(poolCut)
		return nil
	})
}

// accruePool adds amount to the pending balance of the pool beneficiary and
// to the pool's accrued total.
func accruePool(ctx context.Context, tx *gorm.DB, beneficiary common.Address, amount *uint256.Int) error {
	key := domain.AddressKey(beneficiary)
	p, err := repo.GetPendingForUpdate(ctx, tx, key)
	if err != nil {
		return err
	}
	pending, err := units.Add(p.Amount.Int(), amount)
	if err != nil {
		return err
	}
	if err := repo.SavePending(ctx, tx, key, domain.NewAmount(pending)); err != nil {
		return err
	}

	pool, err := repo.GetPoolForUpdate(ctx, tx)
	if err != nil {
		return err
	}
	accrued, err := units.Add(pool.Accrued.Int(), amount)
	if err != nil {
		return err
	}
	pool.Accrued = domain.NewAmount(accrued)
	return repo.SavePool(ctx, tx, pool)
}
