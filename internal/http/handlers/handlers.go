// Package handlers provides HTTP handler implementations for the public API.
//
// Handlers are transport-thin: they resolve the caller from X-Caller-Address,
// parse addresses and base-unit amounts, call the settlement engine and
// translate results into HTTP responses.
package handlers

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gin-gonic/gin"
	"github.com/holiman/uint256"
	"gorm.io/gorm"

	"github.com/tbourn/go-chat-ledger/internal/domain"
	"github.com/tbourn/go-chat-ledger/internal/http/middleware"
	"github.com/tbourn/go-chat-ledger/internal/services"
	"github.com/tbourn/go-chat-ledger/internal/units"
	"github.com/tbourn/go-chat-ledger/internal/utils"
)

// LedgerService is the settlement engine surface consumed by the handlers.
// *services.Engine implements it.
type LedgerService interface {
	// Mutations. caller is the authenticated address.
	Mint(ctx context.Context, caller, to common.Address, amount *uint256.Int) (*domain.Settlement, error)
	Transfer(ctx context.Context, caller, from, to common.Address, amount *uint256.Int) (*domain.Settlement, error)
	Burn(ctx context.Context, caller common.Address, amount *uint256.Int) (*domain.Settlement, error)
	SendMessage(ctx context.Context, caller, user common.Address, contentID uint64) (*domain.Settlement, error)
	ClaimDailyReward(ctx context.Context, caller common.Address) (*domain.Settlement, error)
	BuyTokensFor(ctx context.Context, caller, buyer common.Address, value *uint256.Int) (*domain.Settlement, error)
	ClaimNativeEarnings(ctx context.Context, caller common.Address) (*domain.Settlement, error)
	SetAuthorizedSpender(ctx context.Context, caller, addr common.Address, allowed bool) error
	RegisterChatbot(ctx context.Context, caller common.Address, contentID uint64, owner common.Address) error

	// Reads.
	BalanceOf(ctx context.Context, addr common.Address) (*uint256.Int, error)
	TotalSupply(ctx context.Context) (*uint256.Int, error)
	IsAuthorizedSpender(ctx context.Context, addr common.Address) (bool, error)
	ChatbotOwner(ctx context.Context, contentID uint64) (common.Address, error)
	Usage(ctx context.Context, user common.Address) (services.UsageView, error)
	PendingEarnings(ctx context.Context, addr common.Address) (*uint256.Int, error)
	PoolStats(ctx context.Context) (services.PoolStats, error)
	DailyLimits() services.DailyLimits
	PurchaseInfo() services.PurchaseInfo
	ListSettlements(ctx context.Context, addr common.Address, page, pageSize int) ([]domain.Settlement, int64, error)
	GetSettlement(ctx context.Context, id string) (*domain.Settlement, error)
	SettlementsStats(ctx context.Context, addr common.Address) (int64, *time.Time, error)
}

// Handlers groups the ledger endpoints.
type Handlers struct {
	svc LedgerService

	// idemDB stores Idempotency-Key records; nil disables replays.
	idemDB  *gorm.DB
	idemTTL time.Duration
	// idemMu makes lookup, settle and record atomic for keyed requests.
	idemMu sync.Mutex
}

// New constructs Handlers. idemDB may be nil; idemTTL defaults to 24h.
func New(svc LedgerService, idemDB *gorm.DB, idemTTL time.Duration) *Handlers {
	if idemTTL <= 0 {
		idemTTL = 24 * time.Hour
	}
	return &Handlers{svc: svc, idemDB: idemDB, idemTTL: idemTTL}
}

//
// DTOs
//

// Pagination carries pagination metadata for list responses.
type Pagination struct {
	Page       int   `json:"page"`
	PageSize   int   `json:"page_size"`
	Total      int64 `json:"total"`
	TotalPages int   `json:"total_pages"`
	HasNext    bool  `json:"has_next"`
}

//
// Helpers
//

// requireCaller returns the X-Caller-Address or answers 401.
func requireCaller(c *gin.Context) (common.Address, bool) {
	addr, ok := middleware.Caller(c)
	if !ok {
		fail(c, http.StatusUnauthorized, ErrCodeUnauthorized, middleware.HeaderCaller+" required")
		return common.Address{}, false
	}
	return addr, true
}

// parseAddress parses s or answers 400 invalid_address. Empty input yields
// def when def is non-zero.
func parseAddress(c *gin.Context, field, s string, def common.Address) (common.Address, bool) {
	s = strings.TrimSpace(s)
	if s == "" && def != domain.ZeroAddress {
		return def, true
	}
	addr, err := domain.ParseAddress(s)
	if err != nil {
		fail(c, http.StatusBadRequest, ErrCodeInvalidAddress, "invalid "+field)
		return common.Address{}, false
	}
	return addr, true
}

// parseAmount parses a base-unit decimal string or answers 400.
func parseAmount(c *gin.Context, field, s string) (*uint256.Int, bool) {
	v, err := units.ParseBase(strings.TrimSpace(s))
	if err != nil {
		code := ErrCodeInvalidAmount
		if services.ErrorCode(err) == ErrCodeOverflow {
			code = ErrCodeOverflow
		}
		fail(c, http.StatusBadRequest, code, "invalid "+field+": base-unit integer expected")
		return nil, false
	}
	return v, true
}

// parseContentID parses the :id path parameter.
func parseContentID(c *gin.Context) (uint64, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "chatbot id must be an unsigned integer")
		return 0, false
	}
	return id, true
}

// clampPagination parses and bounds page and page_size query params.
func clampPagination(c *gin.Context) (page, pageSize int) {
	return utils.ClampPage(
		utils.AtoiDefault(c.Query("page"), 1),
		utils.AtoiDefault(c.Query("page_size"), utils.DefaultPageSize),
		services.MaxPageSize,
	)
}
