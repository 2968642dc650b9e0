package services

import (
	"context"

	"github.com/ethereum/go-ethereum/common"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/tbourn/go-chat-ledger/internal/domain"
	"github.com/tbourn/go-chat-ledger/internal/repo"
)

const entitlementTracer = "services/Entitlement"

// UsageView is the daily entitlement state of one user as of today. The lazy
// reset is applied to the view but not persisted.
type UsageView struct {
	Address      string `json:"address"`
	Day          int64  `json:"day"`
	Used         int    `json:"used"`
	Remaining    int    `json:"remaining"`
	Allowance    int    `json:"allowance"`
	CanClaim     bool   `json:"can_claim"`
	LastClaimDay *int64 `json:"last_claim_day,omitempty"`
}

// refresh resets the free-message counter when today is past the last reset
// day. A clock that moves backwards never triggers a reset.
func refresh(u *domain.DailyUsage, today int64) {
	if today > u.LastResetDay {
		u.Used = 0
		u.LastResetDay = today
	}
}

func canClaim(u domain.DailyUsage, today int64) bool {
	return u.LastClaimDay == nil || *u.LastClaimDay < today
}

// CanClaim reports whether user may claim the daily reward today.
func (e *Engine) CanClaim(ctx context.Context, user common.Address) (bool, error) {
	ctx, span := otel.Tracer(entitlementTracer).Start(ctx, "CanClaim",
		trace.WithAttributes(attribute.String("user", user.Hex())),
	)
	defer span.End()

	u, err := repo.GetUsage(ctx, e.DB, domain.AddressKey(user))
	if err != nil {
		return false, err
	}
	return canClaim(u, e.today()), nil
}

// ClaimDailyReward mints DailyClaimAmount to the caller once per UTC day.
func (e *Engine) ClaimDailyReward(ctx context.Context, caller common.Address) (*domain.Settlement, error) {
	ctx, span := otel.Tracer(entitlementTracer).Start(ctx, "ClaimDailyReward",
		trace.WithAttributes(attribute.String("caller", caller.Hex())),
	)
	defer span.End()

	if caller == domain.ZeroAddress {
		return nil, ErrInvalidAddress
	}

	return e.settle(ctx, domain.KindClaim, caller, addrKeys(caller), func(tx *gorm.DB, s *domain.Settlement) error {
		today := e.today()
		u, err := repo.GetUsageForUpdate(ctx, tx, domain.AddressKey(caller))
		if err != nil {
			return err
		}
		if !canClaim(u, today) {
			return ErrAlreadyClaimed
		}
		if err := mintTo(ctx, tx, caller, e.Eco.DailyClaimAmount); err != nil {
			return err
		}
		refresh(&u, today)
		u.LastClaimDay = &today
		if err := repo.SaveUsage(ctx, tx, &u); err != nil {
			return err
		}
		s.User = domain.AddressKey(caller)
		s.TokensMinted = domain.NewAmount(e.Eco.DailyClaimAmount)
		return nil
	})
}

// Usage returns today's entitlement view for user.
func (e *Engine) Usage(ctx context.Context, user common.Address) (UsageView, error) {
	ctx, span := otel.Tracer(entitlementTracer).Start(ctx, "Usage",
		trace.WithAttributes(attribute.String("user", user.Hex())),
	)
	defer span.End()

	key := domain.AddressKey(user)
	u, err := repo.GetUsage(ctx, e.DB, key)
	if err != nil {
		return UsageView{}, err
	}
	today := e.today()
	refresh(&u, today)

	remaining := e.Eco.FreeMessages - u.Used
	if remaining < 0 {
		remaining = 0
	}
	return UsageView{
		Address:      key,
		Day:          today,
		Used:         u.Used,
		Remaining:    remaining,
		Allowance:    e.Eco.FreeMessages,
		CanClaim:     canClaim(u, today),
		LastClaimDay: u.LastClaimDay,
	}, nil
}
