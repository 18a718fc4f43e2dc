package idhash

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"

	"note-lifecycle-lab/internal/domain"
)

// ComputeTermsFingerprint computes a deterministic hash of a product's terms.
// Evaluator-owned fields (status, autocall date, adjusted levels, last price
// info) are excluded, so the value changes only when the terms change.
// Formula: SHA256(isin|trade|final|maturity|template|rule|features|barriers|coupon|participation|obs...|underlyings...)
// Returns hex-encoded hash (64 characters).
func ComputeTermsFingerprint(p *domain.Product) string {
	var b strings.Builder

	fmt.Fprintf(&b, "%s|%s|%s|%s|%s|%s|%t,%t,%t,%t|%g|%g|%g|%g",
		p.ISIN,
		p.TradeDate,
		p.FinalObservationDate,
		p.MaturityDate,
		p.Template,
		p.Rule(),
		p.Features.CouponMemory,
		p.Features.AutocallMemory,
		p.Features.OneStar,
		p.Features.LowStrike,
		p.CapitalProtectionBarrier,
		p.CouponBarrier,
		p.CouponPerPeriod,
		p.UpsideParticipation,
	)

	for _, o := range p.Observations {
		autocall := "-"
		if o.AutocallLevel != nil {
			autocall = fmt.Sprintf("%g", *o.AutocallLevel)
		}
		fmt.Fprintf(&b, "|obs:%s,%g,%s,%g", o.Date, o.CouponBarrier, autocall, o.CouponPerPeriod)
	}
	for _, u := range p.Underlyings {
		fmt.Fprintf(&b, "|und:%s,%g", u.Ticker, u.InitialLevel)
	}

	hash := sha256.Sum256([]byte(b.String()))
	return hex.EncodeToString(hash[:])
}
