// Package middleware contains shared Gin middleware used by the HTTP layer.
//
// This file resolves the caller of a request. The ledger authorizes by EVM
// address: the address in X-Caller-Address is the identity that mints, pays
// for messages, buys tokens or withdraws earnings. Verifying that the caller
// controls the address (signatures, sessions) is the job of an upstream
// gateway; this middleware only parses and normalizes it.
package middleware

import (
	"net/http"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-chat-ledger/internal/domain"
)

// HeaderCaller is the request header carrying the caller address.
const HeaderCaller = "X-Caller-Address"

const ctxKeyCaller = "caller"

// CallerIdentity parses X-Caller-Address and stores the address in the Gin
// context. Requests without the header pass through anonymously; a malformed
// address is rejected with 400.
func CallerIdentity() gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := c.GetHeader(HeaderCaller)
		if raw == "" {
			c.Next()
			return
		}
		addr, err := domain.ParseAddress(raw)
		if err != nil || addr == domain.ZeroAddress {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
				"request_id": c.Writer.Header().Get(requestIDHeader),
				"code":       "invalid_address",
				"message":    "invalid " + HeaderCaller,
			})
			return
		}
		c.Set(ctxKeyCaller, addr)
		c.Next()
	}
}

// Caller returns the address set by CallerIdentity.
func Caller(c *gin.Context) (common.Address, bool) {
	v, ok := c.Get(ctxKeyCaller)
	if !ok {
		return common.Address{}, false
	}
	a, ok := v.(common.Address)
	return a, ok
}

// callerKey is the checksummed caller address, or "" when anonymous.
func callerKey(c *gin.Context) string {
	if a, ok := Caller(c); ok {
		return domain.AddressKey(a)
	}
	return ""
}
