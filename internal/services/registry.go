package services

import (
	"context"
	"errors"
	"strconv"

	"github.com/ethereum/go-ethereum/common"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/tbourn/go-chat-ledger/internal/domain"
	"github.com/tbourn/go-chat-ledger/internal/repo"
)

// RegisterChatbot sets the creator of contentID. Owner only. Re-registration
// overwrites; the zero address marks the content as unregistered. Content ids
// are opaque and not checked against any catalog.
func (e *Engine) RegisterChatbot(ctx context.Context, caller common.Address, contentID uint64, owner common.Address) error {
	ctx, span := otel.Tracer("services/Registry").Start(ctx, "RegisterChatbot",
		trace.WithAttributes(
			attribute.String("caller", caller.Hex()),
			attribute.String("content_id", strconv.FormatUint(contentID, 10)),
			attribute.String("owner", owner.Hex()),
		),
	)
	defer span.End()

	if err := e.requireOwner(caller); err != nil {
		return err
	}
	// Messages on contentID hold the same key while they pay the creator.
	return e.serialized(ctx, []string{chatbotKey(contentID)}, func() error {
		return e.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			return repo.UpsertChatbotOwner(ctx, tx, contentID, domain.AddressKey(owner))
		})
	})
}

// SetChatbotOwner is RegisterChatbot under its ownership-transfer name.
func (e *Engine) SetChatbotOwner(ctx context.Context, caller common.Address, contentID uint64, owner common.Address) error {
	return e.RegisterChatbot(ctx, caller, contentID, owner)
}

// ChatbotOwner returns the creator of contentID, or the zero address when
// the content is unregistered.
func (e *Engine) ChatbotOwner(ctx context.Context, contentID uint64) (common.Address, error) {
	return chatbotOwner(ctx, e.DB, contentID)
}

func chatbotOwner(ctx context.Context, db *gorm.DB, contentID uint64) (common.Address, error) {
	row, err := repo.GetChatbotOwner(ctx, db, contentID)
	if errors.Is(err, repo.ErrNotFound) {
		return domain.ZeroAddress, nil
	}
	if err != nil {
		return domain.ZeroAddress, err
	}
	return common.HexToAddress(row.Owner), nil
}
