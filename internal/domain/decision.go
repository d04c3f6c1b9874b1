package domain

import (
	"fmt"
	"sort"
	"strings"

	"github.com/shopspring/decimal"
)

// ActionKind is the single capital-reallocation action chosen for a cycle.
type ActionKind int

const (
	ActionNone ActionKind = iota
	ActionSplit
	ActionRebuy
	ActionExtract
	ActionDiversify // split (optional) followed by an acquisition
	ActionCancel
)

func (k ActionKind) String() string {
	switch k {
	case ActionSplit:
		return "split"
	case ActionRebuy:
		return "rebuy"
	case ActionExtract:
		return "extract"
	case ActionDiversify:
		return "diversify"
	case ActionCancel:
		return "cancel"
	default:
		return "none"
	}
}

// ParseActionKind is the inverse of String. Unknown names map to ActionNone.
func ParseActionKind(s string) ActionKind {
	for k := ActionNone; k <= ActionCancel; k++ {
		if k.String() == s {
			return k
		}
	}
	return ActionNone
}

// Decision is the outcome of Decide: one action plus its targets.
type Decision struct {
	Kind   ActionKind
	Rule   int // 1..8 in priority order, 0 for none
	Reason string
	Orders []OrderView
	// IgnoreHold lets a rebuy skip the hold-time guard (idle-capital rebuy).
	IgnoreHold bool
	// Acquire asks for a new position after the optional split.
	Acquire bool
}

// Noop reports whether the matched rule left nothing to act on.
func (d Decision) Noop() bool {
	return d.Kind != ActionNone && len(d.Orders) == 0 && !d.Acquire
}

// Symbols lists the target symbols, comma separated.
func (d Decision) Symbols() string {
	syms := make([]string, 0, len(d.Orders))
	for _, v := range d.Orders {
		syms = append(syms, v.Symbol())
	}
	return strings.Join(syms, ",")
}

// DecisionConfig holds the thresholds of the priority rules.
type DecisionConfig struct {
	ForbiddenPairs map[string]bool

	IdleCapitalMultiple decimal.Decimal // rule 2: free > multiple × locked
	OrdersPerValue      decimal.Decimal // rules 3, 5: distinct < total value × this
	StaleHoldHours      decimal.Decimal // rules 3, 4
	SplitMinNotional    decimal.Decimal // rule 3
	NearMoneyDrop       decimal.Decimal // rule 5: drop % below this
	DiversifyDrop       decimal.Decimal // rule 6: drop % below this
	MinProfitPercent    decimal.Decimal // rebuy sell-margin floor

	ExtractMaxMargin   decimal.Decimal // rule 4: sell margin % below this
	ExtractMinNotional decimal.Decimal
	ExtractMaxNotional decimal.Decimal
	ExtractMaxOrders   int
	SplitUnit          decimal.Decimal // extract count unit

	AcquireUnit    decimal.Decimal // rule 6: free balance needed to acquire
	OrderCountUnit decimal.Decimal // free balance per required distinct order
}

// DefaultDecisionConfig returns the production thresholds.
func DefaultDecisionConfig() DecisionConfig {
	return DecisionConfig{
		ForbiddenPairs:      map[string]bool{},
		IdleCapitalMultiple: decimal.NewFromInt(3),
		OrdersPerValue:      decimal.NewFromInt(100),
		StaleHoldHours:      decimal.NewFromInt(24),
		SplitMinNotional:    decimal.RequireFromString("0.001"),
		NearMoneyDrop:       decimal.NewFromInt(5),
		DiversifyDrop:       decimal.NewFromInt(20),
		MinProfitPercent:    decimal.RequireFromString("0.5"),
		ExtractMaxMargin:    decimal.NewFromInt(3),
		ExtractMinNotional:  decimal.RequireFromString("0.0005"),
		ExtractMaxNotional:  decimal.RequireFromString("0.01"),
		ExtractMaxOrders:    3,
		SplitUnit:           decimal.RequireFromString("0.0002"),
		AcquireUnit:         decimal.RequireFromString("0.0005"),
		OrderCountUnit:      decimal.RequireFromString("0.002"),
	}
}

// Decide evaluates the priority rules in order and returns the first whose
// condition holds, even when it finds no viable target: such a decision is a
// no-op for the cycle (see Decision.Noop). Only the default rebuy yields
// ActionNone when nothing is eligible. It is a pure function of the snapshot.
func Decide(s PortfolioSnapshot, cfg DecisionConfig) Decision {
	rules := []func(PortfolioSnapshot, DecisionConfig) (Decision, bool){
		ruleForbidden,
		ruleIdleCapital,
		ruleStaleSplit,
		ruleStaleExtract,
		ruleNearMoneySplit,
		ruleDiversify,
		ruleCancel,
		ruleRebuyEligible,
	}
	for i, rule := range rules {
		if d, ok := rule(s, cfg); ok {
			d.Rule = i + 1
			return d
		}
	}
	return Decision{Kind: ActionNone, Reason: "nothing to do"}
}

func ruleForbidden(s PortfolioSnapshot, cfg DecisionConfig) (Decision, bool) {
	for _, v := range s.Views {
		if cfg.ForbiddenPairs[v.Symbol()] || !v.Rules.Trading {
			return Decision{
				Kind:   ActionSplit,
				Reason: fmt.Sprintf("%s is delisted or forbidden", v.Symbol()),
				Orders: []OrderView{v},
			}, true
		}
	}
	return Decision{}, false
}

func ruleIdleCapital(s PortfolioSnapshot, cfg DecisionConfig) (Decision, bool) {
	if len(s.Views) == 0 || !s.FreeBalance.GreaterThan(cfg.IdleCapitalMultiple.Mul(s.LockedTotal)) {
		return Decision{}, false
	}
	var targets []OrderView
	for _, v := range s.Views {
		if v.SellMarginPercent.GreaterThanOrEqual(cfg.MinProfitPercent) {
			targets = append(targets, v)
		}
	}
	return Decision{
		Kind:       ActionRebuy,
		Reason:     "idle capital: free balance exceeds locked notional",
		Orders:     targets,
		IgnoreHold: true,
	}, true
}

func underDiversified(s PortfolioSnapshot, cfg DecisionConfig) bool {
	return decimal.NewFromInt(int64(s.DistinctSymbols)).LessThan(s.TotalBalance.Mul(cfg.OrdersPerValue))
}

func ruleStaleSplit(s PortfolioSnapshot, cfg DecisionConfig) (Decision, bool) {
	if !underDiversified(s, cfg) || !s.AllHeldLongerThan(cfg.StaleHoldHours) {
		return Decision{}, false
	}
	var pick *OrderView
	for i, v := range s.Views {
		if !v.Notional.GreaterThan(cfg.SplitMinNotional) {
			continue
		}
		if pick == nil || v.SellMarginPercent.LessThan(pick.SellMarginPercent) {
			pick = &s.Views[i]
		}
	}
	return Decision{
		Kind:   ActionSplit,
		Reason: "all orders stale: split lowest-margin order",
		Orders: single(pick),
	}, true
}

// ExtractCount bounds how many orders one extract cycle may touch.
func ExtractCount(free decimal.Decimal, cfg DecisionConfig) int {
	n := 1
	if cfg.SplitUnit.IsPositive() && free.IsPositive() {
		n += int(free.Div(cfg.SplitUnit.Mul(two)).Floor().IntPart())
	}
	if cfg.ExtractMaxOrders > 0 && n > cfg.ExtractMaxOrders {
		n = cfg.ExtractMaxOrders
	}
	return n
}

func ruleStaleExtract(s PortfolioSnapshot, cfg DecisionConfig) (Decision, bool) {
	if !s.AllHeldLongerThan(cfg.StaleHoldHours) {
		return Decision{}, false
	}
	var targets []OrderView
	for _, v := range s.Views {
		if v.SellMarginPercent.LessThan(cfg.ExtractMaxMargin) &&
			v.Notional.GreaterThanOrEqual(cfg.ExtractMinNotional) &&
			v.Notional.LessThanOrEqual(cfg.ExtractMaxNotional) {
			targets = append(targets, v)
		}
	}
	sort.SliceStable(targets, func(i, j int) bool {
		return targets[i].PriceDropPercent.GreaterThan(targets[j].PriceDropPercent)
	})
	if n := ExtractCount(s.FreeBalance, cfg); len(targets) > n {
		targets = targets[:n]
	}
	return Decision{
		Kind:   ActionExtract,
		Reason: "all orders stale: extract most underwater orders",
		Orders: targets,
	}, true
}

// highestNotionalBelowDrop returns the largest order whose drop is under maxDrop.
func highestNotionalBelowDrop(s PortfolioSnapshot, maxDrop decimal.Decimal) *OrderView {
	var pick *OrderView
	for i, v := range s.Views {
		if !v.PriceDropPercent.LessThan(maxDrop) {
			continue
		}
		if pick == nil || v.Notional.GreaterThan(pick.Notional) {
			pick = &s.Views[i]
		}
	}
	return pick
}

// single wraps an optional pick.
func single(v *OrderView) []OrderView {
	if v == nil {
		return nil
	}
	return []OrderView{*v}
}

// ruleNearMoneySplit turns over an existing position, so it needs at least
// one open order.
func ruleNearMoneySplit(s PortfolioSnapshot, cfg DecisionConfig) (Decision, bool) {
	if len(s.Views) == 0 || !s.FreeBalance.GreaterThan(s.TotalBalance.Div(two)) || !underDiversified(s, cfg) {
		return Decision{}, false
	}
	return Decision{
		Kind:   ActionSplit,
		Reason: "idle liquidity: split near-the-money order",
		Orders: single(highestNotionalBelowDrop(s, cfg.NearMoneyDrop)),
	}, true
}

func ruleDiversify(s PortfolioSnapshot, cfg DecisionConfig) (Decision, bool) {
	if s.DistinctSymbols > s.MinRequiredOrders {
		return Decision{}, false
	}
	return Decision{
		Kind:    ActionDiversify,
		Reason:  "too few distinct positions",
		Orders:  single(highestNotionalBelowDrop(s, cfg.DiversifyDrop)),
		Acquire: s.FreeBalance.GreaterThanOrEqual(cfg.AcquireUnit),
	}, true
}

func ruleCancel(s PortfolioSnapshot, _ DecisionConfig) (Decision, bool) {
	if !s.AllOverdue() || !s.NoneAffordable() {
		return Decision{}, false
	}
	pick := s.Views[0]
	for _, v := range s.Views[1:] {
		if v.CurrentNotional.GreaterThan(pick.CurrentNotional) {
			pick = v
		}
	}
	return Decision{
		Kind:   ActionCancel,
		Reason: "all orders overdue and none affordable",
		Orders: []OrderView{pick},
	}, true
}

func ruleRebuyEligible(s PortfolioSnapshot, cfg DecisionConfig) (Decision, bool) {
	budget := s.FreeBalance
	var targets []OrderView
	for _, v := range s.Views {
		cost := v.RebuyCost()
		if v.SellMarginPercent.LessThan(cfg.MinProfitPercent) || !v.HoldElapsed() || cost.GreaterThan(budget) {
			continue
		}
		budget = budget.Sub(cost)
		targets = append(targets, v)
	}
	if len(targets) == 0 {
		return Decision{}, false
	}
	return Decision{
		Kind:   ActionRebuy,
		Reason: "orders past their hold with enough margin",
		Orders: targets,
	}, true
}
