// Package events publishes settlement records to interested observers after
// they have been committed.
package events

import (
	"context"
	"sync"

	"github.com/rs/zerolog"

	"github.com/tbourn/go-chat-ledger/internal/domain"
)

// Emitter receives committed settlements. Implementations must not block.
type Emitter interface {
	Emit(ctx context.Context, s domain.Settlement)
}

// NoopEmitter discards all settlements.
type NoopEmitter struct{}

// Emit implements Emitter.
func (NoopEmitter) Emit(context.Context, domain.Settlement) {}

// LogEmitter writes each settlement as a structured log line using the
// request-scoped logger when the context carries one.
type LogEmitter struct {
	Logger zerolog.Logger
}

// Emit implements Emitter.
func (e LogEmitter) Emit(ctx context.Context, s domain.Settlement) {
	l := zerolog.Ctx(ctx)
	if l.GetLevel() == zerolog.Disabled {
		l = &e.Logger
	}
	ev := l.Info().
		Str("settlement_id", s.ID).
		Str("kind", string(s.Kind)).
		Str("caller", s.Caller).
		Str("user", s.User)
	switch s.Kind {
	case domain.KindMessage:
		ev = ev.Bool("free", s.Free).
			Str("charged", s.Charged.Human()).
			Str("creator", s.Creator).
			Str("creator_paid", s.CreatorPaid.Human()).
			Str("platform_paid", s.PlatformPaid.Human())
		if s.ContentID != nil {
			ev = ev.Uint64("content_id", *s.ContentID)
		}
	case domain.KindPurchase:
		ev = ev.Str("native_amount", s.NativeAmount.Human()).
			Str("tokens_minted", s.TokensMinted.Human()).
			Str("platform_cut", s.PlatformCut.Human()).
			Str("pool_cut", s.PoolCut.Human())
	case domain.KindWithdrawal:
		ev = ev.Str("paid_out", s.PaidOut.Human())
	case domain.KindClaim, domain.KindMint:
		ev = ev.Str("tokens_minted", s.TokensMinted.Human())
	case domain.KindBurn, domain.KindTransfer:
		ev = ev.Str("amount", s.Charged.Human()).Str("counterparty", s.Counterparty)
	}
	ev.Msg("settlement")
}

// Multi fans a settlement out to several emitters in order.
type Multi []Emitter

// Emit implements Emitter.
func (m Multi) Emit(ctx context.Context, s domain.Settlement) {
	for _, e := range m {
		if e != nil {
			e.Emit(ctx, s)
		}
	}
}

// Recorder keeps every settlement in memory. It backs tests and local
// debugging.
type Recorder struct {
	mu  sync.Mutex
	all []domain.Settlement
}

// Emit implements Emitter.
func (r *Recorder) Emit(_ context.Context, s domain.Settlement) {
	r.mu.Lock()
	r.all = append(r.all, s)
	r.mu.Unlock()
}

// Settlements returns a copy of what has been recorded.
func (r *Recorder) Settlements() []domain.Settlement {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]domain.Settlement, len(r.all))
	copy(out, r.all)
	return out
}
