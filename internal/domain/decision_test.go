package domain

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type viewSpec struct {
	symbol    string
	notional  string
	margin    string
	drop      string
	held      string // actual hold hours
	remaining string // remaining hold hours
	rebuyCost string
}

func makeView(s viewSpec) OrderView {
	orDefault := func(v, def string) decimal.Decimal {
		if v == "" {
			return d(def)
		}
		return d(v)
	}
	notional := orDefault(s.notional, "0.01")
	cost := orDefault(s.rebuyCost, s.notional)
	return OrderView{
		Order:              OpenOrder{Symbol: s.symbol, Side: SideSell},
		Rules:              SymbolRules{Symbol: s.symbol, Trading: true},
		Outstanding:        decimal.NewFromInt(1),
		Notional:           notional,
		CurrentPrice:       cost,
		CurrentNotional:    cost,
		SellMarginPercent:  orDefault(s.margin, "2"),
		PriceDropPercent:   orDefault(s.drop, "10"),
		ActualHoldHours:    orDefault(s.held, "5"),
		RemainingHoldHours: orDefault(s.remaining, "1"),
	}
}

func makeSnapshot(free, total string, specs ...viewSpec) PortfolioSnapshot {
	s := PortfolioSnapshot{FreeBalance: d(free), TotalBalance: d(total)}
	for _, sp := range specs {
		s.Views = append(s.Views, makeView(sp))
	}
	s.LockedBySymbol = make(map[string]decimal.Decimal)
	for _, v := range s.Views {
		s.LockedBySymbol[v.Symbol()] = s.LockedBySymbol[v.Symbol()].Add(v.Notional)
		s.LockedTotal = s.LockedTotal.Add(v.Notional)
	}
	s.DistinctSymbols = len(s.LockedBySymbol)
	s.MinRequiredOrders = MinRequiredOrders(s.FreeBalance, DefaultDecisionConfig().OrderCountUnit)
	return s
}

func TestDecide_IdleCapitalRebuysAll(t *testing.T) {
	s := makeSnapshot("0.5", "0.6",
		viewSpec{symbol: "ETHBTC", notional: "0.06", margin: "2"},
		viewSpec{symbol: "ADABTC", notional: "0.04", margin: "0.1"},
	)

	got := Decide(s, DefaultDecisionConfig())

	assert.Equal(t, ActionRebuy, got.Kind)
	assert.Equal(t, 2, got.Rule)
	assert.True(t, got.IgnoreHold)
	require.Len(t, got.Orders, 1, "only orders passing the minimum profit test")
	assert.Equal(t, "ETHBTC", got.Orders[0].Symbol())
}

func TestDecide_ForbiddenPairWins(t *testing.T) {
	cfg := DefaultDecisionConfig()
	cfg.ForbiddenPairs = map[string]bool{"LUNABTC": true}
	s := makeSnapshot("0.5", "0.6",
		viewSpec{symbol: "ETHBTC", notional: "0.05"},
		viewSpec{symbol: "LUNABTC", notional: "0.05"},
	)

	got := Decide(s, cfg)

	assert.Equal(t, ActionSplit, got.Kind)
	assert.Equal(t, 1, got.Rule)
	assert.Equal(t, "LUNABTC", got.Symbols())
}

func TestDecide_DelistedSymbolSplits(t *testing.T) {
	s := makeSnapshot("0.01", "0.05", viewSpec{symbol: "XYZBTC", notional: "0.04"})
	s.Views[0].Rules.Trading = false

	got := Decide(s, DefaultDecisionConfig())

	assert.Equal(t, ActionSplit, got.Kind)
	assert.Equal(t, 1, got.Rule)
}

func TestDecide_StaleSplitPicksLowestMargin(t *testing.T) {
	s := makeSnapshot("0.01", "0.05",
		viewSpec{symbol: "ETHBTC", notional: "0.02", margin: "4", held: "30"},
		viewSpec{symbol: "ADABTC", notional: "0.02", margin: "1.5", held: "48"},
		viewSpec{symbol: "DOTBTC", notional: "0.0005", margin: "0.2", held: "48"},
	)

	got := Decide(s, DefaultDecisionConfig())

	assert.Equal(t, ActionSplit, got.Kind)
	assert.Equal(t, 3, got.Rule)
	assert.Equal(t, "ADABTC", got.Symbols(), "orders at or below the split minimum are skipped")
}

func TestDecide_StaleFallsThroughToExtract(t *testing.T) {
	// Diversified enough for rule 3: distinct (2) is not below total × 100 (1.1).
	s := makeSnapshot("0.001", "0.011",
		viewSpec{symbol: "ETHBTC", notional: "0.005", margin: "1", drop: "10", held: "30"},
		viewSpec{symbol: "ADABTC", notional: "0.005", margin: "1", drop: "30", held: "30"},
	)

	got := Decide(s, DefaultDecisionConfig())

	assert.Equal(t, ActionExtract, got.Kind)
	assert.Equal(t, 4, got.Rule)
	assert.Equal(t, "ADABTC,ETHBTC", got.Symbols(), "most underwater first")
}

func TestDecide_StaleSplitWithoutTargetIsNoop(t *testing.T) {
	// Rule 3 conditions hold but no order is above the split minimum.
	s := makeSnapshot("0.0001", "0.02",
		viewSpec{symbol: "ETHBTC", notional: "0.0008", margin: "1", held: "30"},
	)

	got := Decide(s, DefaultDecisionConfig())

	assert.Equal(t, ActionSplit, got.Kind)
	assert.Equal(t, 3, got.Rule, "first matching rule wins even without a target")
	assert.Empty(t, got.Orders)
	assert.True(t, got.Noop())
}

func TestDecide_IdleCapitalWithoutProfitableOrderIsNoop(t *testing.T) {
	s := makeSnapshot("0.5", "0.6",
		viewSpec{symbol: "ETHBTC", notional: "0.1", margin: "0.1", drop: "2"},
	)

	got := Decide(s, DefaultDecisionConfig())

	assert.Equal(t, ActionRebuy, got.Kind)
	assert.Equal(t, 2, got.Rule, "the near-money split below must not run")
	assert.Empty(t, got.Orders)
	assert.True(t, got.Noop())
}

func TestDecide_NearMoneyWithoutTargetIsNoop(t *testing.T) {
	s := makeSnapshot("0.05", "0.07",
		viewSpec{symbol: "ETHBTC", notional: "0.02", drop: "10"},
	)

	got := Decide(s, DefaultDecisionConfig())

	assert.Equal(t, ActionSplit, got.Kind)
	assert.Equal(t, 5, got.Rule)
	assert.True(t, got.Noop())
}

func TestDecide_UnfundedDiversifyIsNoop(t *testing.T) {
	got := Decide(makeSnapshot("0", "0"), DefaultDecisionConfig())

	assert.Equal(t, ActionDiversify, got.Kind)
	assert.Equal(t, 6, got.Rule)
	assert.False(t, got.Acquire)
	assert.True(t, got.Noop())
}

func TestExtractCount(t *testing.T) {
	cfg := DefaultDecisionConfig()
	assert.Equal(t, 1, ExtractCount(d("0"), cfg))
	assert.Equal(t, 2, ExtractCount(d("0.0005"), cfg))
	assert.Equal(t, 3, ExtractCount(d("1"), cfg))
}

func TestDecide_NearMoneySplit(t *testing.T) {
	s := makeSnapshot("0.05", "0.07",
		viewSpec{symbol: "ETHBTC", notional: "0.02", drop: "2"},
	)

	got := Decide(s, DefaultDecisionConfig())

	assert.Equal(t, ActionSplit, got.Kind)
	assert.Equal(t, 5, got.Rule)
	assert.Equal(t, "ETHBTC", got.Symbols())
}

func TestDecide_DiversifySplitsAndAcquires(t *testing.T) {
	s := makeSnapshot("0.01", "0.03",
		viewSpec{symbol: "ETHBTC", notional: "0.01", drop: "10"},
		viewSpec{symbol: "ADABTC", notional: "0.01", drop: "30"},
	)
	require.Equal(t, 5, s.MinRequiredOrders)

	got := Decide(s, DefaultDecisionConfig())

	assert.Equal(t, ActionDiversify, got.Kind)
	assert.Equal(t, 6, got.Rule)
	assert.True(t, got.Acquire)
	assert.Equal(t, "ETHBTC", got.Symbols())
}

func TestDecide_DiversifyAcquireOnly(t *testing.T) {
	s := makeSnapshot("0.001", "0.001")

	got := Decide(s, DefaultDecisionConfig())

	assert.Equal(t, ActionDiversify, got.Kind)
	assert.Equal(t, 6, got.Rule, "the near-money split needs an open order")
	assert.True(t, got.Acquire)
	assert.Empty(t, got.Orders)
	assert.False(t, got.Noop())
}

func TestDecide_CancelLargestWhenStuck(t *testing.T) {
	s := makeSnapshot("0.001", "0.05",
		viewSpec{symbol: "ETHBTC", notional: "0.02", remaining: "-3", rebuyCost: "0.015"},
		viewSpec{symbol: "ADABTC", notional: "0.02", remaining: "-1", rebuyCost: "0.018"},
	)

	got := Decide(s, DefaultDecisionConfig())

	assert.Equal(t, ActionCancel, got.Kind)
	assert.Equal(t, 7, got.Rule)
	assert.Equal(t, "ADABTC", got.Symbols())
}

func TestDecide_DefaultRebuyWithinBudget(t *testing.T) {
	s := makeSnapshot("0.012", "0.06",
		viewSpec{symbol: "ETHBTC", notional: "0.02", remaining: "-2", rebuyCost: "0.01"},
		viewSpec{symbol: "ADABTC", notional: "0.02", remaining: "-2", rebuyCost: "0.01"},
		viewSpec{symbol: "DOTBTC", notional: "0.01", remaining: "4", rebuyCost: "0.001"},
	)
	s.MinRequiredOrders = 1

	got := Decide(s, DefaultDecisionConfig())

	assert.Equal(t, ActionRebuy, got.Kind)
	assert.Equal(t, 8, got.Rule)
	assert.False(t, got.IgnoreHold)
	assert.Equal(t, "ETHBTC", got.Symbols(), "second order no longer fits the remaining budget")
}

func TestDecide_NothingToDo(t *testing.T) {
	// Orders still inside their hold: no rule matches.
	s := makeSnapshot("0.001", "0.05",
		viewSpec{symbol: "ETHBTC", notional: "0.02", remaining: "5", rebuyCost: "0.0005"},
		viewSpec{symbol: "ADABTC", notional: "0.02", remaining: "5", rebuyCost: "0.0005"},
	)
	got := Decide(s, DefaultDecisionConfig())
	assert.Equal(t, ActionNone, got.Kind)
	assert.Equal(t, 0, got.Rule)
	assert.Equal(t, "none", got.Kind.String())
	assert.False(t, got.Noop())
}
