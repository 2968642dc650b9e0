package services

import (
	"context"
	"errors"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/tbourn/go-chat-ledger/internal/domain"
	"github.com/tbourn/go-chat-ledger/internal/repo"
	"github.com/tbourn/go-chat-ledger/internal/utils"
)

const historyTracer = "services/SettlementHistory"

// MaxPageSize caps the page size of settlement listings.
const MaxPageSize = 100

// ListSettlements returns paginated settlements in which addr took part as
// user, caller, creator or counterparty, newest first.
func (e *Engine) ListSettlements(ctx context.Context, addr common.Address, page, pageSize int) ([]domain.Settlement, int64, error) {
	ctx, span := otel.Tracer(historyTracer).Start(ctx, "ListSettlements",
		trace.WithAttributes(
			attribute.String("address", addr.Hex()),
			attribute.Int("page", page),
			attribute.Int("page_size", pageSize),
		),
	)
	defer span.End()

	page, pageSize = utils.ClampPage(page, pageSize, MaxPageSize)
	offset := utils.Offset(page, pageSize)

	key := domain.AddressKey(addr)
	total, err := repo.CountSettlements(ctx, e.DB, key)
	if err != nil {
		return nil, 0, err
	}
	if total == 0 {
		return []domain.Settlement{}, 0, nil
	}

	items, err := repo.ListSettlementsPage(ctx, e.DB, key, offset, pageSize)
	return items, total, err
}

// GetSettlement returns one settlement by id.
func (e *Engine) GetSettlement(ctx context.Context, id string) (*domain.Settlement, error) {
	ctx, span := otel.Tracer(historyTracer).Start(ctx, "GetSettlement",
		trace.WithAttributes(attribute.String("settlement.id", id)),
	)
	defer span.End()

	s, err := repo.GetSettlement(ctx, e.DB, id)
	if errors.Is(err, repo.ErrNotFound) {
		return nil, ErrSettlementNotFound
	}
	return s, err
}

// SettlementsStats returns the count and newest timestamp of addr's
// settlements, for conditional GETs.
func (e *Engine) SettlementsStats(ctx context.Context, addr common.Address) (int64, *time.Time, error) {
	return repo.SettlementsStats(ctx, e.DB, domain.AddressKey(addr))
}
