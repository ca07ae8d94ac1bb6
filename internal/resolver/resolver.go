package resolver

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/xssnick/tonutils-go/address"
	"github.com/xssnick/tonutils-go/ton"
	"github.com/xssnick/tonutils-go/ton/dns"
	"go.uber.org/zap"
)

var ErrNoWalletRecord = errors.New("domain has no wallet record")

// Resolver turns party identifiers into wallet addresses. Plain addresses
// pass through after validation; *.ton and *.t.me names go through the
// on-chain DNS root.
type Resolver struct {
	client *dns.Client
	log    *zap.Logger
}

func New(api ton.APIClientWrapped, log *zap.Logger) (*Resolver, error) {
	root, err := dns.RootContractAddr(api)
	if err != nil {
		return nil, fmt.Errorf("resolve dns root contract: %w", err)
	}
	return &Resolver{
		client: dns.NewDNSClient(api, root),
		log:    log,
	}, nil
}

// IsDomain reports whether the identifier needs DNS resolution.
func IsDomain(identifier string) bool {
	return strings.HasSuffix(identifier, ".ton") || strings.HasSuffix(identifier, ".t.me")
}

// Resolve returns the friendly wallet address for an identifier. A nil
// Resolver accepts plain addresses and rejects domains, so the API keeps
// working without a TON connection.
func (r *Resolver) Resolve(ctx context.Context, identifier string) (string, error) {
	identifier = strings.TrimSpace(identifier)

	if !IsDomain(identifier) {
		addr, err := address.ParseAddr(identifier)
		if err != nil {
			return "", fmt.Errorf("invalid wallet address %q: %w", identifier, err)
		}
		return addr.String(), nil
	}

	if r == nil {
		return "", fmt.Errorf("dns resolution unavailable for %q: no TON connection", identifier)
	}

	domain, err := r.client.Resolve(ctx, identifier)
	if err != nil {
		return "", fmt.Errorf("resolve %q: %w", identifier, err)
	}

	wallet := domain.GetWalletRecord()
	if wallet == nil {
		return "", fmt.Errorf("%q: %w", identifier, ErrNoWalletRecord)
	}

	r.log.Debug("resolved domain",
		zap.String("domain", identifier),
		zap.String("wallet", wallet.String()),
	)
	return wallet.String(), nil
}
