package payoff

import (
	"fmt"

	"note-lifecycle-lab/internal/domain"
)

// AverageTicker labels the synthetic average-of selection.
const AverageTicker = "Average of Basket"

// UnderlyingPerformance is one underlying at one date. A nil Value means no
// usable price.
type UnderlyingPerformance struct {
	Ticker string
	Value  *float64
}

// Selection is the basket performance chosen by a basket rule.
type Selection struct {
	Ticker      string
	Performance float64
}

// Aggregate selects the basket performance under rule. Entries with a nil
// value are skipped. It returns (nil, nil) when every entry is nil.
// Ties resolve to the first entry in basket order.
func Aggregate(rule domain.BasketRule, perfs []UnderlyingPerformance) (*Selection, error) {
	var (
		sel   *Selection
		sum   float64
		count int
	)
	for _, p := range perfs {
		if p.Value == nil {
			continue
		}
		v := *p.Value
		sum += v
		count++
		switch rule {
		case domain.BasketWorstOf, "":
			if sel == nil || v < sel.Performance {
				sel = &Selection{Ticker: p.Ticker, Performance: v}
			}
		case domain.BasketBestOf:
			if sel == nil || v > sel.Performance {
				sel = &Selection{Ticker: p.Ticker, Performance: v}
			}
		case domain.BasketAverageOf:
		default:
			return nil, fmt.Errorf("%w: %q", domain.ErrUnknownBasketRule, rule)
		}
	}
	if count == 0 {
		return nil, nil
	}
	if rule == domain.BasketAverageOf {
		return &Selection{Ticker: AverageTicker, Performance: sum / float64(count)}, nil
	}
	return sel, nil
}

// Worst returns the worst individual performance, ignoring nil entries.
func Worst(perfs []UnderlyingPerformance) *Selection {
	sel, _ := Aggregate(domain.BasketWorstOf, perfs)
	return sel
}
