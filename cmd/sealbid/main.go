// Command sealbid produces a sealed bid envelope for one listing and
// bidder, encrypted to the engine's BID_SEALING_KEY. Bidders run this (or
// equivalent tooling) so the bid amount never travels in the clear.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/shopspring/decimal"

	"gavel/internal/oracle"
	"gavel/internal/platform/config"
	"gavel/pkg/domain"
)

func main() {
	listingID := flag.String("listing", "", "listing id the bid targets")
	bidder := flag.String("bidder", "", "bidder address (0x...)")
	amount := flag.String("amount", "", "bid amount")
	flag.Parse()

	id, err := domain.ParseListingID(*listingID)
	if err != nil {
		fmt.Fprintln(os.Stderr, "invalid -listing:", err)
		os.Exit(2)
	}
	addr, err := domain.ParseAddress(*bidder)
	if err != nil {
		fmt.Fprintln(os.Stderr, "invalid -bidder:", err)
		os.Exit(2)
	}
	value, err := decimal.NewFromString(*amount)
	if err != nil || !value.IsPositive() {
		fmt.Fprintln(os.Stderr, "invalid -amount: must be a positive decimal")
		os.Exit(2)
	}

	cfg := config.FromEnv()
	if cfg.BidSealingKey == "" {
		fmt.Fprintln(os.Stderr, "BID_SEALING_KEY is not set")
		os.Exit(2)
	}
	verifier, err := oracle.NewSealedBidVerifier(cfg.BidSealingKey)
	if err != nil {
		fmt.Fprintln(os.Stderr, "sealing key:", err)
		os.Exit(2)
	}

	sealed, err := verifier.Seal(value, id, addr)
	if err != nil {
		fmt.Fprintln(os.Stderr, "seal bid:", err)
		os.Exit(1)
	}
	fmt.Println(sealed)
}
