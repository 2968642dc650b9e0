package domain

import (
	"errors"
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

// ErrInvalidAddress is returned for strings that are not 20-byte hex addresses.
var ErrInvalidAddress = errors.New("invalid address")

// ZeroAddress is the unset address. A chatbot mapped to it is unregistered.
var ZeroAddress = common.Address{}

// ParseAddress validates and normalizes a hex address ("0x…", 40 hex digits).
func ParseAddress(s string) (common.Address, error) {
	s = strings.TrimSpace(s)
	if !common.IsHexAddress(s) {
		return common.Address{}, ErrInvalidAddress
	}
	return common.HexToAddress(s), nil
}

// AddressKey is the canonical persisted form of an address (EIP-55 checksum).
func AddressKey(a common.Address) string { return a.Hex() }
