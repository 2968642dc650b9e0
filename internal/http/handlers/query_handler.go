// Read-only HTTP handlers: balances, supply, entitlement, earnings, registry,
// configuration echo and settlement history. None of them require a caller.
package handlers

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-chat-ledger/internal/domain"
	"github.com/tbourn/go-chat-ledger/internal/http/middleware"
	"github.com/tbourn/go-chat-ledger/internal/services"
	"github.com/tbourn/go-chat-ledger/internal/utils"
)

// BalanceResponse is a token balance in base units plus its decimal form.
type BalanceResponse struct {
	Address   string        `json:"address"`
	Balance   domain.Amount `json:"balance" swaggertype:"string" example:"9999000000000000000"`
	Formatted string        `json:"formatted" example:"9.999"`
}

// SupplyResponse is the circulating token supply.
type SupplyResponse struct {
	TotalSupply domain.Amount `json:"total_supply" swaggertype:"string" example:"10000000000000000000"`
	Formatted   string        `json:"formatted" example:"10"`
}

// EarningsResponse is the native amount an address may withdraw.
type EarningsResponse struct {
	Address   string        `json:"address"`
	Pending   domain.Amount `json:"pending" swaggertype:"string" example:"3000000000000000"`
	Formatted string        `json:"formatted" example:"0.003"`
}

// ListSettlementsResponse wraps a page of settlements and pagination info.
type ListSettlementsResponse struct {
	Settlements []domain.Settlement `json:"settlements"`
	Pagination  Pagination          `json:"pagination"`
}

// GetBalance godoc
// @ID          balanceOf
// @Summary     Token balance
// @Tags        Ledger
// @Produce     json
// @Param       address  path  string  true  "Account address"
// @Success     200  {object}  handlers.BalanceResponse
// @Failure     400  {object}  handlers.ErrorResponse  "Invalid address"
// @Router      /balances/{address} [get]
func (h *Handlers) GetBalance(c *gin.Context) {
	addr, okAddr := parseAddress(c, "address", c.Param("address"), domain.ZeroAddress)
	if !okAddr {
		return
	}
	bal, err := h.svc.BalanceOf(c.Request.Context(), addr)
	if err != nil {
		failErr(c, err)
		return
	}
	amt := domain.NewAmount(bal)
	ok(c, http.StatusOK, BalanceResponse{Address: domain.AddressKey(addr), Balance: amt, Formatted: amt.Human()})
}

// GetSupply godoc
// @ID          totalSupply
// @Summary     Total token supply
// @Tags        Ledger
// @Produce     json
// @Success     200  {object}  handlers.SupplyResponse
// @Router      /supply [get]
func (h *Handlers) GetSupply(c *gin.Context) {
	total, err := h.svc.TotalSupply(c.Request.Context())
	if err != nil {
		failErr(c, err)
		return
	}
	amt := domain.NewAmount(total)
	ok(c, http.StatusOK, SupplyResponse{TotalSupply: amt, Formatted: amt.Human()})
}

// GetSpender godoc
// @ID          isAuthorizedSpender
// @Summary     Spender status
// @Tags        Ledger
// @Produce     json
// @Param       address  path  string  true  "Address"
// @Success     200  {object}  handlers.SpenderResponse
// @Failure     400  {object}  handlers.ErrorResponse  "Invalid address"
// @Router      /spenders/{address} [get]
func (h *Handlers) GetSpender(c *gin.Context) {
	addr, okAddr := parseAddress(c, "address", c.Param("address"), domain.ZeroAddress)
	if !okAddr {
		return
	}
	allowed, err := h.svc.IsAuthorizedSpender(c.Request.Context(), addr)
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, SpenderResponse{Address: domain.AddressKey(addr), Authorized: allowed})
}

// GetUsage godoc
// @ID          dailyUsage
// @Summary     Daily entitlement view
// @Description Free messages used and remaining today (UTC) and whether the daily reward can be claimed.
// @Tags        Entitlement
// @Produce     json
// @Param       address  path  string  true  "User address"
// @Success     200  {object}  services.UsageView
// @Failure     400  {object}  handlers.ErrorResponse  "Invalid address"
// @Router      /usage/{address} [get]
func (h *Handlers) GetUsage(c *gin.Context) {
	addr, okAddr := parseAddress(c, "address", c.Param("address"), domain.ZeroAddress)
	if !okAddr {
		return
	}
	v, err := h.svc.Usage(c.Request.Context(), addr)
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, v)
}

// GetEarnings godoc
// @ID          pendingEarnings
// @Summary     Pending native earnings
// @Tags        Earnings
// @Produce     json
// @Param       address  path  string  true  "Beneficiary address"
// @Success     200  {object}  handlers.EarningsResponse
// @Failure     400  {object}  handlers.ErrorResponse  "Invalid address"
// @Router      /earnings/{address} [get]
func (h *Handlers) GetEarnings(c *gin.Context) {
	addr, okAddr := parseAddress(c, "address", c.Param("address"), domain.ZeroAddress)
	if !okAddr {
		return
	}
	p, err := h.svc.PendingEarnings(c.Request.Context(), addr)
	if err != nil {
		failErr(c, err)
		return
	}
	amt := domain.NewAmount(p)
	ok(c, http.StatusOK, EarningsResponse{Address: domain.AddressKey(addr), Pending: amt, Formatted: amt.Human()})
}

// GetPool godoc
// @ID          poolStats
// @Summary     Creator pool totals
// @Tags        Earnings
// @Produce     json
// @Success     200  {object}  services.PoolStats
// @Router      /pool [get]
func (h *Handlers) GetPool(c *gin.Context) {
	st, err := h.svc.PoolStats(c.Request.Context())
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, st)
}

// GetChatbot godoc
// @ID          chatbotOwner
// @Summary     Chatbot creator
// @Description Returns the creator paid for messages to the chatbot; the zero address when unregistered.
// @Tags        Registry
// @Produce     json
// @Param       id  path  int  true  "Chatbot content id"
// @Success     200  {object}  handlers.ChatbotResponse
// @Failure     400  {object}  handlers.ErrorResponse  "Invalid id"
// @Router      /chatbots/{id} [get]
func (h *Handlers) GetChatbot(c *gin.Context) {
	id, okID := parseContentID(c)
	if !okID {
		return
	}
	owner, err := h.svc.ChatbotOwner(c.Request.Context(), id)
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, ChatbotResponse{ID: id, Owner: domain.AddressKey(owner), Registered: owner != domain.ZeroAddress})
}

// GetLimits godoc
// @ID          getDailyLimits
// @Summary     Daily limits
// @Tags        Config
// @Produce     json
// @Success     200  {object}  services.DailyLimits
// @Router      /limits [get]
func (h *Handlers) GetLimits(c *gin.Context) {
	ok(c, http.StatusOK, h.svc.DailyLimits())
}

// GetPurchaseInfo godoc
// @ID          getPurchaseInfo
// @Summary     Purchase parameters
// @Tags        Config
// @Produce     json
// @Success     200  {object}  services.PurchaseInfo
// @Router      /purchase-info [get]
func (h *Handlers) GetPurchaseInfo(c *gin.Context) {
	ok(c, http.StatusOK, h.svc.PurchaseInfo())
}

// ListSettlements godoc
// @ID          listSettlements
// @Summary     Settlement history (paginated)
// @Description Settlements the address took part in, newest first. Defaults to the caller. Supports weak ETag via If-None-Match and may return 304.
// @Tags        Settlements
// @Produce     json
//
// @Param       X-Caller-Address  header  string  false  "Caller address"
// @Param       address           query   string  false  "Address (defaults to the caller)"
// @Param       If-None-Match     header  string  false  "Return 304 if ETag matches"
// @Param       page              query   int     false  "Page number"     minimum(1) default(1)
// @Param       page_size         query   int     false  "Items per page"  minimum(1) maximum(100) default(20)
//
// @Success     200  {object}  handlers.ListSettlementsResponse
// @Header      200  {string}  ETag  "Weak ETag for current result"
// @Success     304  {string}  string  "Not Modified"
// @Failure     400  {object}  handlers.ErrorResponse  "Bad request"
// @Router      /settlements [get]
func (h *Handlers) ListSettlements(c *gin.Context) {
	ctx := c.Request.Context()

	raw := c.Query("address")
	if raw == "" {
		if caller, has := middleware.Caller(c); has {
			raw = domain.AddressKey(caller)
		}
	}
	if raw == "" {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "address query parameter or X-Caller-Address required")
		return
	}
	addr, okAddr := parseAddress(c, "address", raw, domain.ZeroAddress)
	if !okAddr {
		return
	}
	page, pageSize := clampPagination(c)

	// ETag pre-check (best effort).
	if count, maxTS, err := h.svc.SettlementsStats(ctx, addr); err == nil {
		var ts int64
		if maxTS != nil {
			ts = maxTS.UnixNano()
		}
		etag := fmt.Sprintf(`W/"settlements:%s:%d:%d:%d:%d"`, domain.AddressKey(addr), count, ts, page, pageSize)
		c.Header("ETag", etag)
		if inm := c.GetHeader("If-None-Match"); inm != "" && inm == etag {
			c.Status(http.StatusNotModified)
			return
		}
	}

	items, total, err := h.svc.ListSettlements(ctx, addr, page, pageSize)
	if err != nil {
		failErr(c, err)
		return
	}
	totalPages := utils.TotalPages(total, pageSize)
	ok(c, http.StatusOK, ListSettlementsResponse{
		Settlements: items,
		Pagination: Pagination{
			Page:       page,
			PageSize:   pageSize,
			Total:      total,
			TotalPages: totalPages,
			HasNext:    page < totalPages,
		},
	})
}

// GetSettlement godoc
// @ID          getSettlement
// @Summary     One settlement
// @Tags        Settlements
// @Produce     json
// @Param       id  path  string  true  "Settlement id (UUID)"  format(uuid)
// @Success     200  {object}  domain.Settlement
// @Failure     404  {object}  handlers.ErrorResponse  "Not found"
// @Router      /settlements/{id} [get]
func (h *Handlers) GetSettlement(c *gin.Context) {
	s, err := h.svc.GetSettlement(c.Request.Context(), c.Param("id"))
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, s)
}

var _ LedgerService = (*services.Engine)(nil)
