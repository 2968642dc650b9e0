package services

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/tbourn/go-chat-ledger/internal/config"
	"github.com/tbourn/go-chat-ledger/internal/domain"
	"github.com/tbourn/go-chat-ledger/internal/events"
	"github.com/tbourn/go-chat-ledger/internal/locks"
	"github.com/tbourn/go-chat-ledger/internal/observability"
	"github.com/tbourn/go-chat-ledger/internal/payout"
	"github.com/tbourn/go-chat-ledger/internal/repo"
)

// Engine executes every ledger operation. Mutations are applied one at a
// time in a total order: a process-wide mutex serializes them, per-address
// and per-chatbot locks from Locker extend the guarantee across replicas, and each call runs
// in a single database transaction that commits or rolls back as a unit.
//
// Zero-valued optional fields fall back to defaults: a LocalLocker, the
// OutboxPayer, a NoopEmitter and time.Now.
type Engine struct {
	DB  *gorm.DB
	Eco config.Economics

	Locker  locks.Locker
	Payer   payout.Payer
	Emitter events.Emitter
	Now     func() time.Time

	mu          sync.Mutex
	defaultLock locks.Locker
	lockOnce    sync.Once
}

// NewEngine returns an engine over db with the given economics and default
// collaborators.
func NewEngine(db *gorm.DB, eco config.Economics) *Engine {
	return &Engine{
		DB:      db,
		Eco:     eco,
		Locker:  locks.NewLocalLocker(),
		Payer:   payout.OutboxPayer{},
		Emitter: events.NoopEmitter{},
		Now:     time.Now,
	}
}

func (e *Engine) now() time.Time {
	if e.Now == nil {
		return time.Now().UTC()
	}
	return e.Now().UTC()
}

// today is the current UTC epoch day.
func (e *Engine) today() int64 { return EpochDay(e.now()) }

func (e *Engine) locker() locks.Locker {
	if e.Locker != nil {
		return e.Locker
	}
	e.lockOnce.Do(func() { e.defaultLock = locks.NewLocalLocker() })
	return e.defaultLock
}

func (e *Engine) payer() payout.Payer {
	if e.Payer == nil {
		return payout.OutboxPayer{}
	}
	return e.Payer
}

func (e *Engine) emitter() events.Emitter {
	if e.Emitter == nil {
		return events.NoopEmitter{}
	}
	return e.Emitter
}

// settle runs fn as one serialized, locked transaction and persists the
// settlement it returns. The settlement id is allocated before fn runs so
// outbound transfers can reference it. The record is emitted only after
// commit.
func (e *Engine) settle(ctx context.Context, kind domain.SettlementKind, caller common.Address, lockKeys []string,
	fn func(tx *gorm.DB, s *domain.Settlement) error) (*domain.Settlement, error) {
	start := time.Now()
	s := &domain.Settlement{
		ID:        uuid.NewString(),
		Kind:      kind,
		Caller:    domain.AddressKey(caller),
		CreatedAt: e.now(),
	}

	err := e.serialized(ctx, lockKeys, func() error {
		return e.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			if err := fn(tx, s); err != nil {
				return err
			}
			return repo.CreateSettlement(ctx, tx, s)
		})
	})

	observability.ObserveSettlement(string(kind), ErrorCode(err), start)
	if err != nil {
		log.Ctx(ctx).Debug().Err(err).
			Str("kind", string(kind)).
			Str("caller", s.Caller).
			Msg("settlement rejected")
		return nil, err
	}
	observability.ObserveFlows(*s)
	e.emitter().Emit(ctx, *s)
	return s, nil
}

// serialized runs fn under the engine mutex and the Locker keys.
func (e *Engine) serialized(ctx context.Context, keys []string, fn func() error) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	unlock, err := locks.LockAll(ctx, e.locker(), keys...)
	if err != nil {
		return err
	}
	defer unlock()
	return fn()
}

// addrKeys maps addresses to their lock keys.
func addrKeys(addrs ...common.Address) []string {
	keys := make([]string, 0, len(addrs))
	for _, a := range addrs {
		keys = append(keys, domain.AddressKey(a))
	}
	return keys
}

// chatbotKey is the lock key guarding the creator mapping of contentID.
func chatbotKey(contentID uint64) string {
	return "chatbot:" + strconv.FormatUint(contentID, 10)
}

// EpochDay is floor(unix seconds / 86400): the UTC calendar day of t.
func EpochDay(t time.Time) int64 {
	sec := t.Unix()
	day := sec / 86400
	if sec < 0 && sec%86400 != 0 {
		day--
	}
	return day
}
