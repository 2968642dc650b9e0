package observability

import (
	"time"

	"github.com/holiman/uint256"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/tbourn/go-chat-ledger/internal/domain"
	"github.com/tbourn/go-chat-ledger/internal/units"
)

// Settlement outcomes used as the "result" label.
const (
	ResultOK     = "ok"
	ResultFailed = "failed"
)

var (
	// SettlementsTotal counts settlement attempts by kind and outcome. The
	// outcome is "ok" or the error code of the failure.
	SettlementsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ledger_settlements_total",
			Help: "Settlement attempts by kind and result.",
		},
		[]string{"kind", "result"},
	)

	// SettlementDuration observes end-to-end settlement latency, including
	// lock acquisition and commit.
	SettlementDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ledger_settlement_duration_seconds",
			Help:    "Duration of settlement operations.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"kind"},
	)

	// FreeMessagesTotal counts messages served from the daily allowance.
	FreeMessagesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "ledger_free_messages_total",
			Help: "Messages settled on the free daily allowance.",
		},
	)

	// TokensMovedTotal accumulates token volume in whole tokens by flow
	// (minted, burned, creator, platform, transfer). Floats lose precision for
	// large totals; this is for dashboards, the ledger is authoritative.
	TokensMovedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ledger_tokens_moved_total",
			Help: "Token volume by flow, in whole tokens.",
		},
		[]string{"flow"},
	)

	// NativeMovedTotal accumulates native-currency volume by flow
	// (received, platform, pool, withdrawn).
	NativeMovedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ledger_native_moved_total",
			Help: "Native currency volume by flow, in whole units.",
		},
		[]string{"flow"},
	)

	// LockAcquireTotal counts per-address lock attempts by result.
	LockAcquireTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ledger_lock_acquire_total",
			Help: "Lock acquisition attempts by result.",
		},
		[]string{"result"},
	)

	// LockAcquireDuration observes time spent waiting for per-address locks.
	LockAcquireDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "ledger_lock_acquire_duration_seconds",
			Help:    "Duration of lock acquisition.",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0},
		},
	)
)

func init() {
	prometheus.MustRegister(
		SettlementsTotal, SettlementDuration, FreeMessagesTotal,
		TokensMovedTotal, NativeMovedTotal,
		LockAcquireTotal, LockAcquireDuration,
	)
}

// ObserveSettlement records one settlement attempt. result is ResultOK or an
// error code.
func ObserveSettlement(kind, result string, start time.Time) {
	SettlementsTotal.WithLabelValues(kind, result).Inc()
	SettlementDuration.WithLabelValues(kind).Observe(time.Since(start).Seconds())
}

// ObserveLock records one lock acquisition attempt.
func ObserveLock(err error, start time.Time) {
	result := ResultOK
	if err != nil {
		result = ResultFailed
	}
	LockAcquireTotal.WithLabelValues(result).Inc()
	LockAcquireDuration.Observe(time.Since(start).Seconds())
}

// AddTokens adds v (base units) to the token volume of flow.
func AddTokens(flow string, v *uint256.Int) {
	TokensMovedTotal.WithLabelValues(flow).Add(units.Float64(v))
}

// AddNative adds v (base units) to the native volume of flow.
func AddNative(flow string, v *uint256.Int) {
	NativeMovedTotal.WithLabelValues(flow).Add(units.Float64(v))
}

// ObserveFlows adds the volumes carried by a committed settlement.
func ObserveFlows(s domain.Settlement) {
	switch s.Kind {
	case domain.KindMessage:
		if s.Free {
			FreeMessagesTotal.Inc()
			return
		}
		AddTokens("creator", s.CreatorPaid.Int())
		AddTokens("platform", s.PlatformPaid.Int())
	case domain.KindPurchase:
		AddTokens("minted", s.TokensMinted.Int())
		AddNative("received", s.NativeAmount.Int())
		AddNative("platform", s.PlatformCut.Int())
		AddNative("pool", s.PoolCut.Int())
	case domain.KindWithdrawal:
		AddNative("withdrawn", s.PaidOut.Int())
	case domain.KindClaim, domain.KindMint:
		AddTokens("minted", s.TokensMinted.Int())
	case domain.KindBurn:
		AddTokens("burned", s.Charged.Int())
	case domain.KindTransfer:
		AddTokens("transfer", s.Charged.Int())
	}
}
