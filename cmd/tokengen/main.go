// Command tokengen issues an access token for an account address, signed
// with the server's JWT_SIGNING_KEY. Tokens are handed to callers
// out-of-band; the engine has no signup flow.
package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"gavel/internal/platform/config"
	"gavel/internal/platform/token"
	"gavel/pkg/domain"
)

func main() {
	address := flag.String("address", "", "account address the token identifies (0x...)")
	ttl := flag.Duration("ttl", 24*time.Hour, "token lifetime")
	flag.Parse()

	addr, err := domain.ParseAddress(*address)
	if err != nil {
		fmt.Fprintln(os.Stderr, "invalid -address:", err)
		os.Exit(2)
	}

	cfg := config.FromEnv()
	signed, err := token.NewService(cfg.JWTSigningKey).Issue(addr, *ttl)
	if err != nil {
		fmt.Fprintln(os.Stderr, "issue token:", err)
		os.Exit(1)
	}
	fmt.Println(signed)
}
