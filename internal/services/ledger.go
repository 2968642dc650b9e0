package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/tbourn/go-chat-ledger/internal/domain"
	"github.com/tbourn/go-chat-ledger/internal/repo"
	"github.com/tbourn/go-chat-ledger/internal/units"
)

const ledgerTracer = "services/Ledger"

// Mint credits amount to `to` and grows the total supply. Owner only.
func (e *Engine) Mint(ctx context.Context, caller, to common.Address, amount *uint256.Int) (*domain.Settlement, error) {
	ctx, span := otel.Tracer(ledgerTracer).Start(ctx, "Mint",
		trace.WithAttributes(
			attribute.String("caller", caller.Hex()),
			attribute.String("to", to.Hex()),
		),
	)
	defer span.End()

	if err := e.requireOwner(caller); err != nil {
		return nil, err
	}
	if amount == nil || amount.IsZero() {
		return nil, ErrInvalidAmount
	}
	if to == domain.ZeroAddress {
		return nil, ErrInvalidAddress
	}

	return e.settle(ctx, domain.KindMint, caller, addrKeys(to), func(tx *gorm.DB, s *domain.Settlement) error {
		if err := mintTo(ctx, tx, to, amount); err != nil {
			return err
		}
		s.User = domain.AddressKey(to)
		s.TokensMinted = domain.NewAmount(amount)
		return nil
	})
}

// Transfer moves amount from `from` to `to`. The caller must be `from` or an
// authorized spender.
func (e *Engine) Transfer(ctx context.Context, caller, from, to common.Address, amount *uint256.Int) (*domain.Settlement, error) {
	ctx, span := otel.Tracer(ledgerTracer).Start(ctx, "Transfer",
		trace.WithAttributes(
			attribute.String("caller", caller.Hex()),
			attribute.String("from", from.Hex()),
			attribute.String("to", to.Hex()),
		),
	)
	defer span.End()

	if amount == nil || amount.IsZero() {
		return nil, ErrInvalidAmount
	}
	if to == domain.ZeroAddress {
		return nil, ErrInvalidAddress
	}

	return e.settle(ctx, domain.KindTransfer, caller, addrKeys(from, to), func(tx *gorm.DB, s *domain.Settlement) error {
		if err := requireSelfOrSpender(ctx, tx, caller, from); err != nil {
			return err
		}
		if err := debit(ctx, tx, from, amount); err != nil {
			return err
		}
		if err := credit(ctx, tx, to, amount); err != nil {
			return err
		}
		s.User = domain.AddressKey(from)
		s.Counterparty = domain.AddressKey(to)
		s.Charged = domain.NewAmount(amount)
		return nil
	})
}

// Burn destroys amount of the caller's own tokens and shrinks the supply.
func (e *Engine) Burn(ctx context.Context, caller common.Address, amount *uint256.Int) (*domain.Settlement, error) {
	ctx, span := otel.Tracer(ledgerTracer).Start(ctx, "Burn",
		trace.WithAttributes(attribute.String("caller", caller.Hex())),
	)
	defer span.End()

	if caller == domain.ZeroAddress {
		return nil, ErrInvalidAddress
	}
	if amount == nil || amount.IsZero() {
		return nil, ErrInvalidAmount
	}

	return e.settle(ctx, domain.KindBurn, caller, addrKeys(caller), func(tx *gorm.DB, s *domain.Settlement) error {
		if err := debit(ctx, tx, caller, amount); err != nil {
			return err
		}
		supply, err := repo.GetSupplyForUpdate(ctx, tx)
		if err != nil {
			return err
		}
		total, err := units.Sub(supply.Total.Int(), amount)
		if err != nil {
			// Only reachable if balances and supply have diverged.
			return fmt.Errorf("supply below burn amount: %w", ErrInsufficientBalance)
		}
		if err := repo.SaveSupply(ctx, tx, domain.NewAmount(total)); err != nil {
			return err
		}
		s.User = domain.AddressKey(caller)
		s.Charged = domain.NewAmount(amount)
		return nil
	})
}

// DebitForMessage is the spender-only entry point of MessageSettlement: an
// authorized backend identity settles a message on behalf of user.
func (e *Engine) DebitForMessage(ctx context.Context, caller, user common.Address, contentID uint64) (*domain.Settlement, error) {
	ok, err := isSpender(ctx, e.DB, caller)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrUnauthorized
	}
	return e.SendMessage(ctx, caller, user, contentID)
}

// BalanceOf returns the token balance of addr (zero if never credited).
func (e *Engine) BalanceOf(ctx context.Context, addr common.Address) (*uint256.Int, error) {
	ctx, span := otel.Tracer(ledgerTracer).Start(ctx, "BalanceOf",
		trace.WithAttributes(attribute.String("address", addr.Hex())),
	)
	defer span.End()

	acc, err := repo.GetAccount(ctx, e.DB, domain.AddressKey(addr))
	if err != nil {
		return nil, err
	}
	return acc.Balance.Int(), nil
}

// TotalSupply returns minted minus burned.
func (e *Engine) TotalSupply(ctx context.Context) (*uint256.Int, error) {
	ctx, span := otel.Tracer(ledgerTracer).Start(ctx, "TotalSupply")
	defer span.End()

	s, err := repo.GetSupply(ctx, e.DB)
	if err != nil {
		return nil, err
	}
	return s.Total.Int(), nil
}

// IsAuthorizedSpender reports whether addr may debit on behalf of users.
func (e *Engine) IsAuthorizedSpender(ctx context.Context, addr common.Address) (bool, error) {
	return isSpender(ctx, e.DB, addr)
}

// ---- in-transaction primitives ----

// credit adds amount to addr's balance.
func credit(ctx context.Context, tx *gorm.DB, addr common.Address, amount *uint256.Int) error {
	key := domain.AddressKey(addr)
	acc, err := repo.GetAccountForUpdate(ctx, tx, key)
	if err != nil {
		return err
	}
	bal, err := units.Add(acc.Balance.Int(), amount)
	if err != nil {
		return err
	}
	return repo.SaveBalance(ctx, tx, key, domain.NewAmount(bal))
}

// debit subtracts amount from addr's balance, failing with
// ErrInsufficientBalance rather than going negative.
func debit(ctx context.Context, tx *gorm.DB, addr common.Address, amount *uint256.Int) error {
	key := domain.AddressKey(addr)
	acc, err := repo.GetAccountForUpdate(ctx, tx, key)
	if err != nil {
		return err
	}
	bal, err := units.Sub(acc.Balance.Int(), amount)
	if errors.Is(err, units.ErrUnderflow) {
		return ErrInsufficientBalance
	}
	if err != nil {
		return err
	}
	return repo.SaveBalance(ctx, tx, key, domain.NewAmount(bal))
}

// mintTo credits amount to addr and grows the supply by the same amount.
func mintTo(ctx context.Context, tx *gorm.DB, addr common.Address, amount *uint256.Int) error {
	supply, err := repo.GetSupplyForUpdate(ctx, tx)
	if err != nil {
		return err
	}
	total, err := units.Add(supply.Total.Int(), amount)
	if err != nil {
		return err
	}
	if err := credit(ctx, tx, addr, amount); err != nil {
		return err
	}
	return repo.SaveSupply(ctx, tx, domain.NewAmount(total))
}

// ---- authorization ----

func (e *Engine) requireOwner(caller common.Address) error {
	if caller == domain.ZeroAddress || caller != e.Eco.Owner {
		return ErrUnauthorized
	}
	return nil
}

func isSpender(ctx context.Context, db *gorm.DB, addr common.Address) (bool, error) {
	if addr == domain.ZeroAddress {
		return false, nil
	}
	return repo.IsAuthorizedSpender(ctx, db, domain.AddressKey(addr))
}

// requireSelfOrSpender allows the account holder or an authorized spender.
func requireSelfOrSpender(ctx context.Context, db *gorm.DB, caller, holder common.Address) error {
	if caller == domain.ZeroAddress {
		return ErrUnauthorized
	}
	if holder == domain.ZeroAddress {
		return ErrInvalidAddress
	}
	if caller == holder {
		return nil
	}
	ok, err := isSpender(ctx, db, caller)
	if err != nil {
		return err
	}
	if !ok {
		return ErrUnauthorized
	}
	return nil
}
