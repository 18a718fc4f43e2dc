package payoff

import (
	"note-lifecycle-lab/internal/calendar"
	"note-lifecycle-lab/internal/domain"
)

var d = calendar.MustParse

func ptr(v float64) *float64 { return &v }

// prices builds a snapshot from ticker -> date -> level, with adjusted close
// equal to close.
func prices(levels map[string]map[string]float64) Snapshot {
	s := make(Snapshot, len(levels))
	for ticker, byDate := range levels {
		for date, lvl := range byDate {
			s[ticker] = append(s[ticker], &domain.PricePoint{
				Ticker: ticker, Date: d(date), Close: lvl, AdjustedClose: lvl,
			})
		}
	}
	return s
}

// quarterlyNote is a two-name worst-of note: trade 2024-01-02, observations
// each quarter, final observation 2025-01-02. Barriers 70, coupon 2.
func quarterlyNote() *domain.Product {
	return &domain.Product{
		ISIN:                     "XS0000000001",
		Name:                     "Quarterly worst-of",
		Currency:                 "EUR",
		TradeDate:                d("2024-01-02"),
		FinalObservationDate:     d("2025-01-02"),
		MaturityDate:             d("2025-01-09"),
		Template:                 domain.TemplateMemoryAutocall,
		CapitalProtectionBarrier: 70,
		CouponBarrier:            70,
		CouponPerPeriod:          2,
		Observations: []domain.ObservationDate{
			{Date: d("2024-04-02")},
			{Date: d("2024-07-02")},
			{Date: d("2024-10-02")},
			{Date: d("2025-01-02")},
		},
		Underlyings: []domain.Underlying{
			{Ticker: "AAA", InitialLevel: 100},
			{Ticker: "BBB", InitialLevel: 50},
		},
	}
}

// path returns levels for AAA and BBB on trade date and each observation.
func path(aaa, bbb [4]float64) Snapshot {
	dates := []string{"2024-04-02", "2024-07-02", "2024-10-02", "2025-01-02"}
	m := map[string]map[string]float64{
		"AAA": {"2024-01-02": 100},
		"BBB": {"2024-01-02": 50},
	}
	for i, date := range dates {
		m["AAA"][date] = aaa[i]
		m["BBB"][date] = bbb[i]
	}
	return prices(m)
}
