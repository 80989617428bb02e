// Package domain holds the identifier types shared across the auction
// engine. Typed IDs keep listing identifiers and account addresses from
// being mixed up at compile time.
package domain

import (
	"strconv"
	"strings"

	dErrors "gavel/pkg/domain-errors"
)

// ListingID identifies one auctionable item. IDs are assigned monotonically
// by the listing store and are never reused.
type ListingID uint64

// ParseListingID constructs a ListingID from external input.
//
// Errors: CodeInvalidInput when the value is empty, non-numeric, or zero.
func ParseListingID(s string) (ListingID, error) {
	if s == "" {
		return 0, dErrors.New(dErrors.CodeInvalidInput, "listing id cannot be empty")
	}
	n, err := strconv.ParseUint(s, 10, 64)
	if err != nil || n == 0 {
		return 0, dErrors.New(dErrors.CodeInvalidInput, "invalid listing id")
	}
	return ListingID(n), nil
}

func (id ListingID) String() string {
	return strconv.FormatUint(uint64(id), 10)
}

// Address identifies an account on the shared ledger: a 0x-prefixed,
// 40-hex-digit string, lowercased on parse. The zero value is "no address"
// and marks a listing that has never received a valid bid.
type Address string

// AddressNone is the explicit no-address value.
const AddressNone Address = ""

const addressHexLen = 40

// ParseAddress constructs an Address from external input.
//
// Usage: call from handlers and adapters at trust boundaries; direct casting
// bypasses validation.
func ParseAddress(s string) (Address, error) {
	if s == "" {
		return AddressNone, dErrors.New(dErrors.CodeInvalidInput, "address cannot be empty")
	}
	s = strings.ToLower(s)
	hex, ok := strings.CutPrefix(s, "0x")
	if !ok || len(hex) != addressHexLen {
		return AddressNone, dErrors.New(dErrors.CodeInvalidInput, "invalid address")
	}
	for _, c := range hex {
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return AddressNone, dErrors.New(dErrors.CodeInvalidInput, "invalid address")
		}
	}
	return Address(s), nil
}

// IsNone reports whether the address is the no-address value.
func (a Address) IsNone() bool { return a == AddressNone }

func (a Address) String() string { return string(a) }
