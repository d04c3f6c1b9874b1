package ranker

import (
	"sort"

	"github.com/shopspring/decimal"

	"github.com/alejandrodnm/rotabot/internal/domain"
)

// listing is a symbol that passed the cheap filters, waiting for its candles
// and book.
type listing struct {
	rules  domain.SymbolRules
	volume decimal.Decimal
}

// filterEligible keeps the tradable pairs quoted in the base asset whose 24h
// quote volume is above the floor. The result is sorted by volume descending.
func filterEligible(cfg Config, rules []domain.SymbolRules, tickers []domain.Ticker) []listing {
	volume := make(map[string]decimal.Decimal, len(tickers))
	for _, t := range tickers {
		volume[t.Symbol] = t.QuoteVolume
	}

	out := make([]listing, 0, len(rules))
	for _, r := range rules {
		if !r.Trading || r.Quote != cfg.BaseAsset {
			continue
		}
		v, ok := volume[r.Symbol]
		if !ok || !v.GreaterThan(cfg.MinQuoteVolume) {
			continue
		}
		out = append(out, listing{rules: r, volume: v})
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].volume.GreaterThan(out[j].volume)
	})
	return out
}
