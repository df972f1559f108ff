package hyperliquid

import (
	"context"
	"fmt"
	"time"

	"WalletPulse/internal/domain/models"
	xhttp "WalletPulse/pkg/http"
)

// InfoClient fetches clearinghouse state for a wallet over the Hyperliquid
// REST info endpoint. The WebSocket stream only pushes on change; the REST
// side answers "what is the position right now", which is what the collector
// needs to seed a fresh process before the first push arrives.
type InfoClient struct {
	infoURL     string
	wallets     []string
	instruments map[string]bool
	client      *xhttp.Client
}

// NewInfoClient builds a REST fetcher for the given wallets and instruments.
func NewInfoClient(infoURL string, wallets, instruments []string, timeout time.Duration) *InfoClient {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	instr := make(map[string]bool, len(instruments))
	for _, i := range instruments {
		instr[i] = true
	}
	return &InfoClient{
		infoURL:     infoURL,
		wallets:     wallets,
		instruments: instr,
		client:      xhttp.NewClient(xhttp.WithTimeout(timeout)),
	}
}

type infoRequest struct {
	Type string `json:"type"`
	User string `json:"user"`
}

// Fetch retrieves one wallet's current clearinghouse state and expands it
// into per-instrument observations.
func (c *InfoClient) Fetch(ctx context.Context, wallet string) ([]*models.PositionObservation, error) {
	var st hlClearinghouse
	err := c.client.SendAndParse(ctx, &xhttp.RequestOptions{
		Method: xhttp.MethodPost,
		URL:    c.infoURL,
		Headers: map[string]string{
			"Content-Type": "application/json",
		},
		Body: infoRequest{Type: "clearinghouseState", User: wallet},
	}, &st)
	if err != nil {
		return nil, fmt.Errorf("info clearinghouseState %s: %w", wallet, err)
	}
	return expandClearinghouse(wallet, &st, c.instruments), nil
}

// FetchAll retrieves every tracked wallet. Per-wallet failures are skipped so
// one dead wallet cannot block the seed pass; the error reports how many.
func (c *InfoClient) FetchAll(ctx context.Context) ([]*models.PositionObservation, error) {
	out := make([]*models.PositionObservation, 0, len(c.wallets)*len(c.instruments))
	failed := 0
	for _, w := range c.wallets {
		obs, err := c.Fetch(ctx, w)
		if err != nil {
			failed++
			continue
		}
		out = append(out, obs...)
	}
	if failed == len(c.wallets) && failed > 0 {
		return nil, fmt.Errorf("info fetch failed for all %d wallets", failed)
	}
	if failed > 0 {
		return out, fmt.Errorf("info fetch failed for %d of %d wallets", failed, len(c.wallets))
	}
	return out, nil
}
