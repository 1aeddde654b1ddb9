// Package quote fetches best-effort market snapshots from Yahoo Finance.
package quote

import (
	"context"
	"strings"

	"github.com/piquette/finance-go"
	"github.com/piquette/finance-go/quote"
	"github.com/rotisserie/eris"
	"github.com/shopspring/decimal"
)

// Snapshot is a point-in-time view of a listed symbol.
type Snapshot struct {
	Symbol           string
	Name             string
	Currency         string
	Price            decimal.Decimal
	ChangePercent    decimal.Decimal
	FiftyTwoWeekLow  decimal.Decimal
	FiftyTwoWeekHigh decimal.Decimal
	Volume           int64
}

// Client returns market snapshots.
type Client interface {
	Snapshot(ctx context.Context, symbol string) (*Snapshot, error)
}

// Fetcher is the upstream lookup. It matches quote.Get.
type Fetcher func(symbol string) (*finance.Quote, error)

type yahooClient struct {
	fetch Fetcher
}

// NewClient creates a client backed by finance-go.
func NewClient() Client {
	return &yahooClient{fetch: quote.Get}
}

// NewClientWithFetcher creates a client with a custom upstream, for tests.
func NewClientWithFetcher(f Fetcher) Client {
	return &yahooClient{fetch: f}
}

// Snapshot looks up symbol. finance-go has no context support, so the call
// runs in a goroutine and ctx only bounds how long we wait for it.
func (c *yahooClient) Snapshot(ctx context.Context, symbol string) (*Snapshot, error) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	if symbol == "" {
		return nil, eris.New("quote: empty symbol")
	}

	type result struct {
		q   *finance.Quote
		err error
	}
	ch := make(chan result, 1)
	go func() {
		q, err := c.fetch(symbol)
		ch <- result{q, err}
	}()

	select {
	case <-ctx.Done():
		return nil, eris.Wrapf(ctx.Err(), "quote: %s", symbol)
	case r := <-ch:
		if r.err != nil {
			return nil, eris.Wrapf(r.err, "quote: get %s", symbol)
		}
		if r.q == nil {
			return nil, eris.Errorf("quote: no data for %s", symbol)
		}
		return fromQuote(r.q), nil
	}
}

func fromQuote(q *finance.Quote) *Snapshot {
	return &Snapshot{
		Symbol:           q.Symbol,
		Name:             q.ShortName,
		Currency:         q.CurrencyID,
		Price:            decimal.NewFromFloat(q.RegularMarketPrice).Round(2),
		ChangePercent:    decimal.NewFromFloat(q.RegularMarketChangePercent).Round(2),
		FiftyTwoWeekLow:  decimal.NewFromFloat(q.FiftyTwoWeekLow).Round(2),
		FiftyTwoWeekHigh: decimal.NewFromFloat(q.FiftyTwoWeekHigh).Round(2),
		Volume:           int64(q.RegularMarketVolume),
	}
}
