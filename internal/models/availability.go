package models

import (
	"fmt"
	"sort"
	"strings"
)

// Availability is a symbol's trading-availability decision, computed by the
// Recovery Coordinator and consulted by the Executor's admission pipeline.
type Availability struct {
	Blocked bool
	Reason  string
}

// AvailabilityTable is the per-process Symbol Availability Table (spec §3.4).
type AvailabilityTable map[string]Availability

// Blocked reports whether symbol is currently blocked, and why.
func (t AvailabilityTable) Blocked(symbol string) (bool, string) {
	a, ok := t[symbol]
	if !ok {
		return false, ""
	}
	return a.Blocked, a.Reason
}

// SymbolSummary is one per-symbol line of a ReconciliationReport.
type SymbolSummary struct {
	Symbol          string
	PositionSize    string
	LiveOrderCount  int
}

// Discrepancy is one anomaly surfaced by the Recovery Coordinator (spec §4.6
// item 5): a WatchedOrder whose exchange order can't be found open, or an
// orphan exit leg with no corresponding WatchedOrder.
type Discrepancy struct {
	Symbol string
	Kind   string // "missing_order", "orphan_exit_leg"
	Detail string
}

// ReconciliationReport is the Recovery Coordinator's startup output (spec
// §4.6). It is observability only, never a control surface.
type ReconciliationReport struct {
	WatchedSymbols   []string
	PositionSymbols  []string
	OrphanSymbols    []string
	Discrepancies    []Discrepancy
	Summaries        []SymbolSummary
}

// String renders a human-readable summary suitable for a notifier message,
// in the teacher's style of a compact multi-line status string.
func (r ReconciliationReport) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Reconciliation: %d watched, %d positions, %d orphan symbols\n",
		len(r.WatchedSymbols), len(r.PositionSymbols), len(r.OrphanSymbols))

	summaries := append([]SymbolSummary(nil), r.Summaries...)
	sort.Slice(summaries, func(i, j int) bool { return summaries[i].Symbol < summaries[j].Symbol })
	for _, s := range summaries {
		fmt.Fprintf(&b, "  %s: position=%s live_orders=%d\n", s.Symbol, s.PositionSize, s.LiveOrderCount)
	}
	if len(r.Discrepancies) > 0 {
		fmt.Fprintf(&b, "Discrepancies (%d):\n", len(r.Discrepancies))
		for _, d := range r.Discrepancies {
			fmt.Fprintf(&b, "  [%s] %s: %s\n", d.Kind, d.Symbol, d.Detail)
		}
	}
	return b.String()
}
