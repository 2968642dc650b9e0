package services

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/ethereum/go-ethereum/common"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/tbourn/go-chat-ledger/internal/domain"
	"github.com/tbourn/go-chat-ledger/internal/repo"
	"github.com/tbourn/go-chat-ledger/internal/units"
)

// SendMessage settles one outgoing chat message of user on contentID.
//
// The first FreeMessages messages of a UTC day are free and only consume
// allowance. After that each message costs MessageCost: the creator of
// contentID receives CreatorRewardPct of it and the platform the remainder,
// or the platform receives all of it when the content is unregistered.
//
// The caller must be user or an authorized spender. Any failure leaves the
// balance and the usage counter untouched.
//
// The creator is resolved before locking to pick the accounts to lock. If a
// re-registration lands in between, the attempt is abandoned and repeated up
// to maxCreatorAttempts times before ErrCreatorChanged is returned.
func (e *Engine) SendMessage(ctx context.Context, caller, user common.Address, contentID uint64) (*domain.Settlement, error) {
	ctx, span := otel.Tracer("services/MessageSettlement").Start(ctx, "SendMessage",
		trace.WithAttributes(
			attribute.String("caller", caller.Hex()),
			attribute.String("user", user.Hex()),
			attribute.String("content_id", strconv.FormatUint(contentID, 10)),
		),
	)
	defer span.End()

	if user == domain.ZeroAddress {
		return nil, ErrInvalidAddress
	}

	for attempt := 1; ; attempt++ {
		creator, err := chatbotOwner(ctx, e.DB, contentID)
		if err != nil {
			return nil, err
		}
		s, err := e.sendMessage(ctx, caller, user, contentID, creator)
		if errors.Is(err, errCreatorMoved) {
			if attempt < maxCreatorAttempts {
				continue
			}
			return nil, ErrCreatorChanged
		}
		return s, err
	}
}

// maxCreatorAttempts bounds how often SendMessage re-resolves a creator that
// changed before its locks were taken.
const maxCreatorAttempts = 3

var errCreatorMoved = fmt.Errorf("%w: moved before lock", ErrCreatorChanged)

// sendMessage settles one message with the creator expected to be creator.
// It returns errCreatorMoved when the registry disagrees under the lock.
func (e *Engine) sendMessage(ctx context.Context, caller, user common.Address, contentID uint64, creator common.Address) (*domain.Settlement, error) {
	keys := addrKeys(user, e.Eco.Platform)
	if creator != domain.ZeroAddress {
		keys = append(keys, domain.AddressKey(creator))
	}
	keys = append(keys, chatbotKey(contentID))

	return e.settle(ctx, domain.KindMessage, caller, keys, func(tx *gorm.DB, s *domain.Settlement) error {
		if err := requireSelfOrSpender(ctx, tx, caller, user); err != nil {
			return err
		}

		userKey := domain.AddressKey(user)
		cid := contentID
		s.User = userKey
		s.ContentID = &cid

		u, err := repo.GetUsageForUpdate(ctx, tx, userKey)
		if err != nil {
			return err
		}
		refresh(&u, e.today())

		if u.Used < e.Eco.FreeMessages {
			u.Used++
			s.Free = true
			return repo.SaveUsage(ctx, tx, &u)
		}

		cost := e.Eco.MessageCost
		current, err := chatbotOwner(ctx, tx, contentID)
		if err != nil {
			return err
		}
		if current != creator {
			return errCreatorMoved
		}
		creatorShare, platformShare := units.Zero(), cost
		if creator != domain.ZeroAddress {
			creatorShare, platformShare, err = units.Split(cost, e.Eco.CreatorRewardPct)
			if err != nil {
				return err
			}
			s.Creator = domain.AddressKey(creator)
		}

		if err := debit(ctx, tx, user, cost); err != nil {
			return err
		}
		if !creatorShare.IsZero() {
			if err := credit(ctx, tx, creator, creatorShare); err != nil {
				return err
			}
		}
		if err := credit(ctx, tx, e.Eco.Platform, platformShare); err != nil {
			return err
		}
		// Persist the reset so the next paid message does not redo it.
		if err := repo.SaveUsage(ctx, tx, &u); err != nil {
			return err
		}

		s.Charged = domain.NewAmount(cost)
		s.CreatorPaid = domain.NewAmount(creatorShare)
		s.PlatformPaid = domain.NewAmount(platformShare)
		return nil
	})
}
