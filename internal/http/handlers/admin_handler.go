// Admin HTTP handlers. Every endpoint here requires the caller to be the
// configured owner; the engine answers 403 otherwise.
//
//   - POST /admin/mint
//   - PUT  /admin/spenders/{address}
//   - PUT  /admin/chatbots/{id}
package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-chat-ledger/internal/domain"
)

// MintRequest is the JSON payload for minting reward tokens.
type MintRequest struct {
	To     string `json:"to" binding:"required" example:"0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed"`
	Amount string `json:"amount" binding:"required" example:"10000000000000000000"`
}

// SetSpenderRequest grants or revokes spender rights.
type SetSpenderRequest struct {
	Allowed *bool `json:"allowed" binding:"required" example:"true"`
}

// RegisterChatbotRequest maps a chatbot to its creator. The zero address
// unregisters it.
type RegisterChatbotRequest struct {
	Owner string `json:"owner" binding:"required" example:"0xfB6916095ca1df60bB79Ce92cE3Ea74c37c5d359"`
}

// SpenderResponse reports an address's spender status.
type SpenderResponse struct {
	Address    string `json:"address"`
	Authorized bool   `json:"authorized"`
}

// ChatbotResponse reports the creator a chatbot pays.
type ChatbotResponse struct {
	ID         uint64 `json:"id"`
	Owner      string `json:"owner"`
	Registered bool   `json:"registered"`
}

// Mint godoc
// @ID          mintRewards
// @Summary     Mint reward tokens
// @Description Owner only. Mints amount base units to the recipient.
// @Tags        Admin
// @Accept      json
// @Produce     json
//
// @Param       X-Caller-Address  header  string  true  "Owner address"
// @Param       body              body    handlers.MintRequest  true  "Mint payload"
//
// @Success     201  {object}  domain.Settlement
// @Failure     400  {object}  handlers.ErrorResponse  "Bad request"
// @Failure     403  {object}  handlers.ErrorResponse  "Not the owner"
// @Router      /admin/mint [post]
func (h *Handlers) Mint(c *gin.Context) {
	caller, okCaller := requireCaller(c)
	if !okCaller {
		return
	}
	var req MintRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "to and amount required")
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
		return h.svc.Mint(ctx, caller, to, amount)
	})
}

// SetSpender godoc
// @ID          authorizeSpender
// @Summary     Grant or revoke spender rights
// @Description Owner only. An authorized spender may settle messages and transfers on behalf of users.
// @Tags        Admin
// @Accept      json
// @Produce     json
//
// @Param       X-Caller-Address  header  string  true  "Owner address"
// @Param       address           path    string  true  "Spender address"
// @Param       body              body    handlers.SetSpenderRequest  true  "Spender flag"
//
// @Success     200  {object}  handlers.SpenderResponse
// @Failure     400  {object}  handlers.ErrorResponse  "Bad request"
// @Failure     403  {object}  handlers.ErrorResponse  "Not the owner"
// @Router      /admin/spenders/{address} [put]
func (h *Handlers) SetSpender(c *gin.Context) {
	caller, okCaller := requireCaller(c)
	if !okCaller {
		return
	}
	addr, okAddr := parseAddress(c, "address", c.Param("address"), domain.ZeroAddress)
	if !okAddr {
		return
	}
	var req SetSpenderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "allowed required")
		return
	}
	if err := h.svc.SetAuthorizedSpender(c.Request.Context(), caller, addr, *req.Allowed); err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, SpenderResponse{Address: domain.AddressKey(addr), Authorized: *req.Allowed})
}

// RegisterChatbot godoc
// @ID          registerChatbot
// @Summary     Register or reassign a chatbot
// @Description Owner only. Sets the creator paid for messages to the chatbot; the zero address unregisters it.
// @Tags        Admin
// @Accept      json
// @Produce     json
//
// @Param       X-Caller-Address  header  string  true  "Owner address"
// @Param       id                path    int     true  "Chatbot content id"
// @Param       body              body    handlers.RegisterChatbotRequest  true  "Creator address"
//
// @Success     200  {object}  handlers.ChatbotResponse
// @Failure     400  {object}  handlers.ErrorResponse  "Bad request"
// @Failure     403  {object}  handlers.ErrorResponse  "Not the owner"
// @Router      /admin/chatbots/{id} [put]
func (h *Handlers) RegisterChatbot(c *gin.Context) {
	caller, okCaller := requireCaller(c)
	if !okCaller {
		return
	}
	id, okID := parseContentID(c)
	if !okID {
		return
	}
	var req RegisterChatbotRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "owner required")
		return
	}
	owner, okOwner := parseAddress(c, "owner", req.Owner, domain.ZeroAddress)
	if !okOwner {
		return
	}
	if err := h.svc.RegisterChatbot(c.Request.Context(), caller, id, owner); err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, ChatbotResponse{ID: id, Owner: domain.AddressKey(owner), Registered: owner != domain.ZeroAddress})
}
