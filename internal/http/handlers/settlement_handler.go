// Settlement HTTP handlers.
//
// This file exposes the state-mutating endpoints available to any caller:
//   - POST /messages           (settle one chatbot message)
//   - POST /rewards/daily      (daily token claim)
//   - POST /purchases          (buy tokens with native currency)
//   - POST /earnings/withdraw  (withdraw accrued native earnings)
//   - POST /transfers          (token transfer)
//   - POST /burn               (burn own tokens)
//
// Every endpoint answers 201 with the settlement record. When the client sends
// an Idempotency-Key and the same caller already used it on the same route,
// the recorded settlement is returned with 200 and Idempotency-Replayed: true
// instead of settling again.
package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-chat-ledger/internal/domain"
	"github.com/tbourn/go-chat-ledger/internal/http/middleware"
	"github.com/tbourn/go-chat-ledger/internal/repo"
)

// PostMessageRequest is the JSON payload for settling a message.
type PostMessageRequest struct {
	// User pays for the message. Defaults to the caller; a different user
	// requires the caller to be an authorized spender.
	User string `json:"user,omitempty" example:"0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed"`
	// ContentID identifies the chatbot being messaged.
	ContentID *uint64 `json:"content_id" binding:"required" example:"42"`
}

// BuyTokensRequest is the JSON payload for a token purchase.
type BuyTokensRequest struct {
	// Value is the attached native amount in base units (wei).
	Value string `json:"value" binding:"required" example:"10000000000000000"`
	// Buyer defaults to the caller. Any other buyer requires the caller to be
	// an authorized spender.
	Buyer string `json:"buyer,omitempty" example:"0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed"`
}

// TransferRequest is the JSON payload for a token transfer.
type TransferRequest struct {
	// From defaults to the caller.
	From   string `json:"from,omitempty" example:"0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed"`
	To     string `json:"to" binding:"required" example:"0xfB6916095ca1df60bB79Ce92cE3Ea74c37c5d359"`
	Amount string `json:"amount" binding:"required" example:"1000000000000000000"`
}

// BurnRequest is the JSON payload for burning tokens.
type BurnRequest struct {
	Amount string `json:"amount" binding:"required" example:"1000000000000000000"`
}

// settle runs fn for the caller, honouring Idempotency-Key replays.
func (h *Handlers) settle(c *gin.Context, caller common.Address, fn func(ctx context.Context) (*domain.Settlement, error)) {
	ctx := c.Request.Context()
	key, keyed := middleware.GetIdempotencyKey(c)
	if !keyed || h.idemDB == nil {
		s, err := fn(ctx)
		if err != nil {
			failErr(c, err)
			return
		}
		ok(c, http.StatusCreated, s)
		return
	}

	h.idemMu.Lock()
	defer h.idemMu.Unlock()

	who := domain.AddressKey(caller)
	scope := middleware.IdempotencyScope(c)
	now := time.Now().UTC()

	if rec, err := repo.GetIdempotency(ctx, h.idemDB, who, scope, key, now); err == nil {
		if prev, err := h.svc.GetSettlement(ctx, rec.SettlementID); err == nil {
			c.Header(middleware.HeaderIdempotencyReplayed, "true")
			ok(c, http.StatusOK, prev)
			return
		}
	}

	s, err := fn(ctx)
	if err != nil {
		// Failures are not recorded: the client may retry with the same key.
		failErr(c, err)
		return
	}

	lg := middleware.LoggerFrom(c)
	if _, err := repo.CreateIdempotency(ctx, h.idemDB, who, scope, key, s.ID, http.StatusCreated, h.idemTTL); err != nil && !errors.Is(err, repo.ErrDuplicate) {
		lg.Warn().Err(err).Str("settlement_id", s.ID).Msg("idempotency record not stored")
	}
	if n, err := repo.DeleteExpiredIdempotency(ctx, h.idemDB, now); err == nil && n > 0 {
		lg.Debug().Int64("deleted", n).Msg("expired idempotency records purged")
	}
	ok(c, http.StatusCreated, s)
}

// PostMessage godoc
// @ID          postMessage
// @Summary     Settle a chatbot message
// @Description Consumes one free daily message or charges MESSAGE_COST, split between the chatbot creator and the platform. Supports Idempotency-Key.
// @Tags        Settlements
// @Accept      json
// @Produce     json
//
// @Param       X-Caller-Address  header  string  true   "Caller address"  example(0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed)
// @Param       Idempotency-Key   header  string  false  "Idempotency key for safe retries"  example(7a8d9f4c-1b2a-4c3d-8e9f-0123456789ab)
// @Param       body              body    handlers.PostMessageRequest  true  "Message payload"
//
// @Success     201  {object}  domain.Settlement
// @Success     200  {object}  domain.Settlement  "Idempotent replay"
// @Header      200  {string}  Idempotency-Replayed  "true when served from a stored settlement"
// @Failure     400  {object}  handlers.ErrorResponse  "Bad request"
// @Failure     401  {object}  handlers.ErrorResponse  "Missing caller"
// @Failure     402  {object}  handlers.ErrorResponse  "Insufficient balance"
// @Failure     403  {object}  handlers.ErrorResponse  "Not the user or an authorized spender"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /messages [post]
func (h *Handlers) PostMessage(c *gin.Context) {
	caller, okCaller := requireCaller(c)
	if !okCaller {
		return
	}
	var req PostMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "content_id required")
		return
	}
	user, okUser := parseAddress(c, "user", req.User, caller)
	if !okUser {
		return
	}
	h.settle(c, caller, func(ctx context.Context) (*domain.Settlement, error) {
		return h.svc.SendMessage(ctx, caller, user, *req.ContentID)
	})
}

// ClaimDailyReward godoc
// @ID          claimDailyReward
// @Summary     Claim the daily token reward
// @Description Mints DAILY_CLAIM_AMOUNT to the caller once per UTC day.
// @Tags        Settlements
// @Produce     json
//
// @Param       X-Caller-Address  header  string  true  "Caller address"
//
// @Success     201  {object}  domain.Settlement
// @Failure     401  {object}  handlers.ErrorResponse  "Missing caller"
// @Failure     409  {object}  handlers.ErrorResponse  "Already claimed today"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /rewards/daily [post]
func (h *Handlers) ClaimDailyReward(c *gin.Context) {
	caller, okCaller := requireCaller(c)
	if !okCaller {
		return
	}
	h.settle(c, caller, func(ctx context.Context) (*domain.Settlement, error) {
		return h.svc.ClaimDailyReward(ctx, caller)
	})
}

// BuyTokens godoc
// @ID          buyTokens
// @Summary     Buy tokens with native currency
// @Description Mints value × EXCHANGE_RATE tokens to the buyer (default: the caller), forwards the platform share of value and accrues the rest to the creator pool. The value is trusted as received; buying for another address requires an authorized spender. Supports Idempotency-Key.
// @Tags        Settlements
// @Accept      json
// @Produce     json
//
// @Param       X-Caller-Address  header  string  true   "Caller address"
// @Param       Idempotency-Key   header  string  false  "Idempotency key for safe retries"
// @Param       body              body    handlers.BuyTokensRequest  true  "Purchase payload"
//
// @Success     201  {object}  domain.Settlement
// @Success     200  {object}  domain.Settlement  "Idempotent replay"
// @Failure     400  {object}  handlers.ErrorResponse  "Invalid amount or below minimum"
// @Failure     401  {object}  handlers.ErrorResponse  "Missing caller"
// @Failure     403  {object}  handlers.ErrorResponse  "Buyer is not the caller and the caller is not an authorized spender"
// @Failure     502  {object}  handlers.ErrorResponse  "Platform payout failed"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /purchases [post]
func (h *Handlers) BuyTokens(c *gin.Context) {
	caller, okCaller := requireCaller(c)
	if !okCaller {
		return
	}
	var req BuyTokensRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "value required")
		return
	}
	value, okValue := parseAmount(c, "value", req.Value)
	if !okValue {
		return
	}
	buyer, okBuyer := parseAddress(c, "buyer", req.Buyer, caller)
	if !okBuyer {
		return
	}
	h.settle(c, caller, func(ctx context.Context) (*domain.Settlement, error) {
		return h.svc.BuyTokensFor(ctx, caller, buyer, value)
	})
}

// WithdrawEarnings godoc
// @ID          withdrawEarnings
// @Summary     Withdraw accrued native earnings
// @Description Pays out the caller's whole pending native balance.
// @Tags        Settlements
// @Produce     json
//
// @Param       X-Caller-Address  header  string  true  "Caller address"
//
// @Success     201  {object}  domain.Settlement
// @Failure     401  {object}  handlers.ErrorResponse  "Missing caller"
// @Failure     409  {object}  handlers.ErrorResponse  "Nothing to claim"
// @Failure     502  {object}  handlers.ErrorResponse  "Payout failed; the accrual is kept"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /earnings/withdraw [post]
func (h *Handlers) WithdrawEarnings(c *gin.Context) {
	caller, okCaller := requireCaller(c)
	if !okCaller {
		return
	}
	h.settle(c, caller, func(ctx context.Context) (*domain.Settlement, error) {
		return h.svc.ClaimNativeEarnings(ctx, caller)
	})
}

// Transfer godoc
// @ID          transferTokens
// @Summary     Transfer tokens
// @Description Moves tokens between addresses. Moving from another holder requires an authorized spender.
// @Tags        Settlements
// @Accept      json
// @Produce     json
//
// @Param       X-Caller-Address  header  string  true  "Caller address"
// @Param       body              body    handlers.TransferRequest  true  "Transfer payload"
//
// @Success     201  {object}  domain.Settlement
// @Failure     400  {object}  handlers.ErrorResponse  "Bad request"
// @Failure     402  {object}  handlers.ErrorResponse  "Insufficient balance"
// @Failure     403  {object}  handlers.ErrorResponse  "Unauthorized"
// @Router      /transfers [post]
func (h *Handlers) Transfer(c *gin.Context) {
	caller, okCaller := requireCaller(c)
	if !okCaller {
		return
	}
	var req TransferRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "to and amount required")
		return
	}
	from, okFrom := parseAddress(c, "from", req.From, caller)
	if !okFrom {
		return
	}
	to, okTo := parseAddress(c, "to", req.To, domain.ZeroAddress)
	if !okTo {
		return
	}
	amount, okAmt := parseAmount(c, "amount", req.Amount)
	if !okAmt {
		return
	}
	h.settle(c, caller, func(ctx context.Context) (*domain.Settlement, error) {
		return h.svc.Transfer(ctx, caller, from, to, amount)
	})
}

// Burn godoc
// @ID          burnTokens
// @Summary     Burn own tokens
// @Tags        Settlements
// @Accept      json
// @Produce     json
//
// @Param       X-Caller-Address  header  string  true  "Caller address"
// @Param       body              body    handlers.BurnRequest  true  "Burn payload"
//
// @Success     201  {object}  domain.Settlement
// @Failure     400  {object}  handlers.ErrorResponse  "Bad request"
// @Failure     402  {object}  handlers.ErrorResponse  "Insufficient balance"
// @Router      /burn [post]
func (h *Handlers) Burn(c *gin.Context) {
	caller, okCaller := requireCaller(c)
	if !okCaller {
		return
	}
	var req BurnRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "amount required")
		return
	}
	amount, okAmt := parseAmount(c, "amount", req.Amount)
	if !okAmt {
		return
	}
	h.settle(c, caller, func(ctx context.Context) (*domain.Settlement, error) {
		return h.svc.Burn(ctx, caller, amount)
	})
}
