package notify

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/shopspring/decimal"

	"github.com/alejandrodnm/rotabot/internal/domain"
)

// Console implements ports.Notifier.
type Console struct {
	out   io.Writer
	base  string
	table bool
}

// NewConsole creates a notifier writing to stdout. With table=false each
// cycle prints a single line.
func NewConsole(base string, table bool) *Console {
	return &Console{out: os.Stdout, base: base, table: table}
}

// NewConsoleWriter creates a notifier for tests.
func NewConsoleWriter(w io.Writer, base string, table bool) *Console {
	return &Console{out: w, base: base, table: table}
}

// Notify prints the cycle in the configured mode.
func (c *Console) Notify(_ context.Context, r domain.CycleReport) error {
	if c.table {
		c.printFull(r)
	} else {
		c.printCompact(r)
	}
	return nil
}

// printCompact prints the essentials in one line.
func (c *Console) printCompact(r domain.CycleReport) {
	var sb strings.Builder
	fmt.Fprintf(&sb, "[%s] %d orders | %s", r.StartedAt.Local().Format("15:04:05"), len(r.Views), actionLabel(r))
	if r.OrdersPlaced > 0 {
		fmt.Fprintf(&sb, " placed:%d", r.OrdersPlaced)
	}
	fmt.Fprintf(&sb, " | value %s %s (%s)", r.ValueAfter.StringFixed(domain.Scale), c.base, signed(r.ValueDelta()))
	if r.SoftError != "" {
		fmt.Fprintf(&sb, " | soft: %s", r.SoftError)
	}
	fmt.Fprintln(c.out, sb.String())
}

// printFull prints the order table followed by the decision.
func (c *Console) printFull(r domain.CycleReport) {
	fmt.Fprintf(c.out, "\n[%s] cycle %s  %d open sell orders  %s\n",
		r.StartedAt.Local().Format("15:04:05"), shortID(r.ID), len(r.Views), r.Duration().Round(time.Millisecond))

	if len(r.Views) > 0 {
		c.printViews(r.Views)
	}

	fmt.Fprintf(c.out, "  decision: %s\n", actionLabel(r))
	if r.Reason != "" {
		fmt.Fprintf(c.out, "  reason:   %s\n", r.Reason)
	}
	if r.OrdersPlaced > 0 {
		fmt.Fprintf(c.out, "  placed:   %d orders\n", r.OrdersPlaced)
	}
	fmt.Fprintf(c.out, "  value:    %s -> %s %s (%s)\n",
		r.ValueBefore.StringFixed(domain.Scale), r.ValueAfter.StringFixed(domain.Scale), c.base, signed(r.ValueDelta()))
	if r.SoftError != "" {
		fmt.Fprintf(c.out, "  soft:     %s\n", r.SoftError)
	}
	fmt.Fprintln(c.out)
}

func (c *Console) printViews(views []domain.OrderView) {
	table := tablewriter.NewWriter(c.out)
	table.Header("Symbol", "Notional", "Limit", "Current", "Target", "Margin%", "Drop%", "Vol%", "Hold h", "Left h")

	for _, v := range views {
		table.Append(
			v.Symbol(),
			v.Notional.StringFixed(domain.Scale),
			v.Order.Price.String(),
			priceOrDash(v.CurrentPrice),
			v.TargetPrice.String(),
			v.SellMarginPercent.StringFixed(2),
			v.PriceDropPercent.StringFixed(2),
			v.VolatilityPercent.StringFixed(2),
			fmt.Sprintf("%s/%s", v.ActualHoldHours.StringFixed(1), v.RequiredHoldHours.StringFixed(1)),
			holdLeft(v),
		)
	}

	table.Render()
}

// PrintHistory prints the stored cycles, newest first.
func (c *Console) PrintHistory(cycles []domain.CycleReport) {
	if len(cycles) == 0 {
		fmt.Fprintln(c.out, "no cycles recorded")
		return
	}

	fmt.Fprintf(c.out, "\n=== LAST %d CYCLES ===\n", len(cycles))
	table := tablewriter.NewWriter(c.out)
	table.Header("Started", "Action", "Rule", "Symbols", "Placed", "Value", "Delta", "Soft error")

	regressions := 0
	for _, r := range cycles {
		if r.ValueDelta().IsNegative() {
			regressions++
		}
		table.Append(
			r.StartedAt.Local().Format("01-02 15:04:05"),
			r.Action.String(),
			ruleLabel(r.Rule),
			truncate(r.Symbols, 30),
			fmt.Sprintf("%d", r.OrdersPlaced),
			r.ValueAfter.StringFixed(domain.Scale),
			signed(r.ValueDelta()),
			truncate(r.SoftError, 30),
		)
	}
	table.Render()

	first, last := cycles[len(cycles)-1], cycles[0]
	fmt.Fprintf(c.out, "  value %s -> %s %s (%s) over %s\n",
		first.ValueBefore.StringFixed(domain.Scale), last.ValueAfter.StringFixed(domain.Scale), c.base,
		signed(last.ValueAfter.Sub(first.ValueBefore)), last.FinishedAt.Sub(first.StartedAt).Round(time.Minute))
	if regressions > 0 {
		fmt.Fprintf(c.out, "  ⚠ %d cycles closed below their starting value\n", regressions)
	}
	fmt.Fprintln(c.out)
}

// PrintPositions prints the tracked sell orders, worst drop first.
func (c *Console) PrintPositions(positions []domain.PositionRecord) {
	if len(positions) == 0 {
		fmt.Fprintln(c.out, "no positions tracked")
		return
	}

	fmt.Fprintf(c.out, "\n=== POSITIONS (%d) ===\n", len(positions))
	table := tablewriter.NewWriter(c.out)
	table.Header("Order", "Symbol", "Limit", "Notional", "Drop%", "Worst%", "Placed", "Last seen")

	for _, p := range positions {
		table.Append(
			fmt.Sprintf("%d", p.OrderID),
			p.Symbol,
			p.LimitPrice.String(),
			p.Notional.StringFixed(domain.Scale),
			fmt.Sprintf("%.2f", p.DropPct),
			fmt.Sprintf("%.2f", p.WorstDrop),
			p.PlacedAt.Local().Format("01-02 15:04"),
			p.LastSeen.Local().Format("01-02 15:04"),
		)
	}
	table.Render()
	fmt.Fprintln(c.out)
}

// --- helpers ---

func actionLabel(r domain.CycleReport) string {
	if r.Action == domain.ActionNone {
		return "none"
	}
	label := fmt.Sprintf("%s (rule %d)", r.Action, r.Rule)
	if r.Symbols != "" {
		label += " " + r.Symbols
	}
	return label
}

func ruleLabel(rule int) string {
	if rule == 0 {
		return "-"
	}
	return fmt.Sprintf("%d", rule)
}

func signed(d decimal.Decimal) string {
	if d.IsNegative() {
		return d.StringFixed(domain.Scale)
	}
	return "+" + d.StringFixed(domain.Scale)
}

func priceOrDash(p decimal.Decimal) string {
	if p.IsZero() {
		return "-"
	}
	return p.String()
}

func holdLeft(v domain.OrderView) string {
	if v.HoldElapsed() {
		return "due"
	}
	return v.RemainingHoldHours.StringFixed(1)
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
