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

const withdrawalTracer = "services/RewardWithdrawal"

// PoolStats summarizes the global creator pool.
type PoolStats struct {
	Beneficiary string        `json:"beneficiary"`
	Accrued     domain.Amount `json:"accrued"`
	Withdrawn   domain.Amount `json:"withdrawn"`
	Pending     domain.Amount `json:"pending"`
}

// ClaimNativeEarnings pays out the caller's whole pending accrual. The
// accrual is zeroed before the payout is issued and both happen in one
// transaction, so a failed payout restores it.
func (e *Engine) ClaimNativeEarnings(ctx context.Context, caller common.Address) (*domain.Settlement, error) {
	ctx, span := otel.Tracer(withdrawalTracer).Start(ctx, "ClaimNativeEarnings",
		trace.WithAttributes(attribute.String("caller", caller.Hex())),
	)
	defer span.End()

	if caller == domain.ZeroAddress {
		return nil, ErrInvalidAddress
	}

	return e.settle(ctx, domain.KindWithdrawal, caller, addrKeys(caller), func(tx *gorm.DB, s *domain.Settlement) error {
		key := domain.AddressKey(caller)
		p, err := repo.GetPendingForUpdate(ctx, tx, key)
		if err != nil {
			return err
		}
		if p.Amount.IsZero() {
			return ErrNothingToClaim
		}
		amount := p.Amount.Int()

		if err := repo.SavePending(ctx, tx, key, domain.NewAmount(units.Zero())); err != nil {
			return err
		}
		if err := recordPoolWithdrawal(ctx, tx, amount); err != nil {
			return err
		}

		err = e.payer().Send(ctx, tx, payout.Transfer{
			To:           caller,
			Amount:       amount,
			Reason:       payout.ReasonWithdrawal,
			SettlementID: s.ID,
		})
		if err != nil {
			return fmt.Errorf("%w: %v", ErrTransferFailed, err)
		}

		s.User = key
		s.PaidOut = domain.NewAmount(amount)
		return nil
	})
}

// recordPoolWithdrawal grows the pool's withdrawn total. Accruals and
// withdrawals are tracked separately so accrued - withdrawn is what remains
// owed.
func recordPoolWithdrawal(ctx context.Context, tx *gorm.DB, amount *uint256.Int) error {
	pool, err := repo.GetPoolForUpdate(ctx, tx)
	if err != nil {
		return err
	}
	withdrawn, err := units.Add(pool.Withdrawn.Int(), amount)
	if err != nil {
		return err
	}
	pool.Withdrawn = domain.NewAmount(withdrawn)
	return repo.SavePool(ctx, tx, pool)
}

// PendingEarnings returns the native amount addr could withdraw now.
func (e *Engine) PendingEarnings(ctx context.Context, addr common.Address) (*uint256.Int, error) {
	ctx, span := otel.Tracer(withdrawalTracer).Start(ctx, "PendingEarnings",
		trace.WithAttributes(attribute.String("address", addr.Hex())),
	)
	defer span.End()

	p, err := repo.GetPending(ctx, e.DB, domain.AddressKey(addr))
	if err != nil {
		return nil, err
	}
	return p.Amount.Int(), nil
}

// PoolStats returns the global pool totals and the beneficiary's pending
// balance.
func (e *Engine) PoolStats(ctx context.Context) (PoolStats, error) {
	ctx, span := otel.Tracer(withdrawalTracer).Start(ctx, "PoolStats")
	defer span.End()

	pool, err := repo.GetPool(ctx, e.DB)
	if err != nil {
		return PoolStats{}, err
	}
	key := domain.AddressKey(e.Eco.Pool)
	p, err := repo.GetPending(ctx, e.DB, key)
	if err != nil {
		return PoolStats{}, err
	}
	return PoolStats{
		Beneficiary: key,
		Accrued:     pool.Accrued,
		Withdrawn:   pool.Withdrawn,
		Pending:     p.Amount,
	}, nil
}
