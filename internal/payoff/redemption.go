package payoff

import (
	"math"

	"note-lifecycle-lab/internal/domain"
)

// epsilon absorbs float noise in inclusive barrier comparisons.
const epsilon = 1e-9

// atOrAbove reports v >= threshold with inclusive tolerance.
func atOrAbove(v, threshold float64) bool {
	return v >= threshold-epsilon
}

// RedemptionRule names the branch that produced a redemption.
type RedemptionRule string

const (
	RuleOneStar      RedemptionRule = "one_star"
	RuleAboveBarrier RedemptionRule = "above_barrier"
	RuleTwinWin      RedemptionRule = "twin_win"
	RuleLowStrike    RedemptionRule = "low_strike"
	RuleClassic      RedemptionRule = "classic"
)

// RedemptionMode distinguishes a settled redemption from a what-if one.
type RedemptionMode string

const (
	ModeFinal      RedemptionMode = "final"
	ModeIndicative RedemptionMode = "indicative"
)

// RedemptionInput is everything the redemption policy reads.
type RedemptionInput struct {
	Mode                     RedemptionMode
	Template                 domain.Template
	Features                 domain.Features
	CapitalProtectionBarrier float64 // percent of initial
	Participation            float64 // twin-barrier upside participation, percent
	Performances             []UnderlyingPerformance
	// Autocalled marks redemption on an autocall date; the twin-barrier
	// payoff only applies when the note runs to maturity.
	Autocalled bool
}

// Redemption is capital returned as percent of notional.
type Redemption struct {
	Mode             RedemptionMode
	Rule             RedemptionRule
	Percent          float64
	WorstTicker      string
	WorstPerformance float64
}

// Redeem applies the redemption policy. Rules are tried in order:
// one-star, worst at or above barrier, low-strike leverage, classic 1:1.
// It returns nil when no underlying has a usable performance.
func Redeem(in RedemptionInput) *Redemption {
	worst := Worst(in.Performances)
	if worst == nil {
		return nil
	}
	r := &Redemption{Mode: in.Mode, WorstTicker: worst.Ticker, WorstPerformance: worst.Performance}
	threshold := in.CapitalProtectionBarrier - 100

	if in.Features.OneStar {
		for _, p := range in.Performances {
			if p.Value != nil && atOrAbove(*p.Value, 0) {
				r.Rule, r.Percent = RuleOneStar, 100
				return r
			}
		}
	}

	if atOrAbove(worst.Performance, threshold) {
		if in.Template == domain.TemplateTwinBarrier && !in.Autocalled {
			r.Rule, r.Percent = RuleTwinWin, twinWin(worst.Performance, in.Participation)
			return r
		}
		r.Rule, r.Percent = RuleAboveBarrier, 100
		return r
	}

	if in.Features.LowStrike {
		// Loss below the barrier, leveraged by 1/(barrier/100). Not floored.
		leverage := 100 / in.CapitalProtectionBarrier
		loss := (worst.Performance - threshold) * leverage
		r.Rule, r.Percent = RuleLowStrike, 100+loss
		return r
	}

	r.Rule, r.Percent = RuleClassic, 100+worst.Performance
	return r
}

func twinWin(worst, participation float64) float64 {
	if worst < 0 {
		return 100 + math.Abs(worst)
	}
	if participation <= 0 {
		participation = 100
	}
	return 100 + worst*participation/100
}
