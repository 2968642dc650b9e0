package services

import (
	"context"
	"strconv"

	"github.com/ethereum/go-ethereum/common"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/tbourn/go-chat-ledger/internal/domain"
	"github.com/tbourn/go-chat-ledger/internal/repo"
)

// DailyLimits echoes the daily entitlement configuration.
type DailyLimits struct {
	FreeMessages int           `json:"free_messages"`
	ClaimAmount  domain.Amount `json:"claim_amount"`
	MessageCost  domain.Amount `json:"message_cost"`
}

// PurchaseInfo echoes the purchase quote parameters.
type PurchaseInfo struct {
	Rate            uint64        `json:"rate"`
	MinPurchase     domain.Amount `json:"min_purchase"`
	PlatformAddress string        `json:"platform_address"`
	PlatformShare   uint64        `json:"platform_share"`
	PoolShare       uint64        `json:"pool_share"`
}

// SetAuthorizedSpender grants or revokes addr's right to settle messages on
// behalf of users. Owner only.
func (e *Engine) SetAuthorizedSpender(ctx context.Context, caller, addr common.Address, allowed bool) error {
	ctx, span := otel.Tracer("services/Admin").Start(ctx, "SetAuthorizedSpender",
		trace.WithAttributes(
			attribute.String("caller", caller.Hex()),
			attribute.String("spender", addr.Hex()),
			attribute.String("allowed", strconv.FormatBool(allowed)),
		),
	)
	defer span.End()

	if err := e.requireOwner(caller); err != nil {
		return err
	}
	if addr == domain.ZeroAddress {
		return ErrInvalidAddress
	}
	return e.serialized(ctx, addrKeys(addr), func() error {
		return e.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			return repo.SetAuthorizedSpender(ctx, tx, domain.AddressKey(addr), allowed)
		})
	})
}

// DailyLimits returns the free allowance, claim amount and message cost.
func (e *Engine) DailyLimits() DailyLimits {
	return DailyLimits{
		FreeMessages: e.Eco.FreeMessages,
		ClaimAmount:  domain.NewAmount(e.Eco.DailyClaimAmount),
		MessageCost:  domain.NewAmount(e.Eco.MessageCost),
	}
}

// PurchaseInfo returns the exchange rate, minimum purchase and platform
// payout parameters.
func (e *Engine) PurchaseInfo() PurchaseInfo {
	return PurchaseInfo{
		Rate:            e.Eco.ExchangeRate,
		MinPurchase:     domain.NewAmount(e.Eco.MinPurchase),
		PlatformAddress: domain.AddressKey(e.Eco.Platform),
		PlatformShare:   e.Eco.PlatformNativePct,
		PoolShare:       e.Eco.PoolNativePct,
	}
}
