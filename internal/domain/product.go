package domain

import (
	"errors"
	"fmt"
	"strings"

	"note-lifecycle-lab/internal/calendar"
)

// Product validation errors.
var (
	ErrInvalidProduct      = errors.New("invalid product")
	ErrUnknownTemplate     = errors.New("unknown template")
	ErrUnknownBasketRule   = errors.New("unknown basket rule")
	ErrIncompatibleFeature = errors.New("feature not supported by template")
)

// Template is the payoff family of a note. The set is closed.
type Template string

const (
	// TemplateStandard is a one-directional-barrier autocallable ("Orion").
	TemplateStandard Template = "standard"
	// TemplateTwinBarrier pays the absolute performance above the barrier at maturity ("TwinWin").
	TemplateTwinBarrier Template = "twin_barrier"
	// TemplateMemoryAutocall is a worst-of memory autocallable ("Phoenix").
	TemplateMemoryAutocall Template = "memory_autocall"
)

var templateAliases = map[string]Template{
	"standard":                TemplateStandard,
	"orion":                   TemplateStandard,
	"one-directional-barrier": TemplateStandard,
	"twin_barrier":            TemplateTwinBarrier,
	"twin-barrier":            TemplateTwinBarrier,
	"twinwin":                 TemplateTwinBarrier,
	"memory_autocall":         TemplateMemoryAutocall,
	"standard-autocallable":   TemplateMemoryAutocall,
	"phoenix":                 TemplateMemoryAutocall,
}

// ParseTemplate resolves a template tag, accepting legacy aliases.
func ParseTemplate(s string) (Template, error) {
	t, ok := templateAliases[strings.ToLower(strings.TrimSpace(s))]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownTemplate, s)
	}
	return t, nil
}

// Canonical reports whether t is one of the Template constants. Aliases are
// resolved by ParseTemplate and never compare equal to a constant.
func (t Template) Canonical() bool {
	switch t {
	case TemplateStandard, TemplateTwinBarrier, TemplateMemoryAutocall:
		return true
	}
	return false
}

// UnmarshalText implements encoding.TextUnmarshaler so fixtures may use aliases.
func (t *Template) UnmarshalText(b []byte) error {
	parsed, err := ParseTemplate(string(b))
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// BasketRule selects which performance governs coupon and autocall tests.
type BasketRule string

const (
	BasketWorstOf   BasketRule = "worst_of"
	BasketBestOf    BasketRule = "best_of"
	BasketAverageOf BasketRule = "average_of"
)

// ParseBasketRule resolves a basket rule; empty input means worst-of.
func ParseBasketRule(s string) (BasketRule, error) {
	switch strings.ToLower(strings.ReplaceAll(strings.TrimSpace(s), "-", "_")) {
	case "", "worst_of", "worst":
		return BasketWorstOf, nil
	case "best_of", "best":
		return BasketBestOf, nil
	case "average_of", "average", "avg":
		return BasketAverageOf, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownBasketRule, s)
	}
}

// Canonical reports whether r is one of the BasketRule constants.
func (r BasketRule) Canonical() bool {
	switch r {
	case BasketWorstOf, BasketBestOf, BasketAverageOf:
		return true
	}
	return false
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (r *BasketRule) UnmarshalText(b []byte) error {
	parsed, err := ParseBasketRule(string(b))
	if err != nil {
		return err
	}
	*r = parsed
	return nil
}

// Features are the payoff toggles of a note.
type Features struct {
	CouponMemory   bool `json:"coupon_memory" yaml:"coupon_memory"`
	AutocallMemory bool `json:"autocall_memory" yaml:"autocall_memory"`
	OneStar        bool `json:"one_star" yaml:"one_star"`
	LowStrike      bool `json:"low_strike" yaml:"low_strike"`
}

// Status is the lifecycle state of a note. Transitions are
// pending -> live -> autocalled|matured and never go back.
type Status string

const (
	StatusPending    Status = "pending"
	StatusLive       Status = "live"
	StatusAutocalled Status = "autocalled"
	StatusMatured    Status = "matured"
)

// Terminal reports whether no further observation dates are processed.
func (s Status) Terminal() bool {
	return s == StatusAutocalled || s == StatusMatured
}

// ObservationDate is one scheduled observation. Barrier levels are percent of
// initial (70 means 70% of initial). A nil AutocallLevel marks a non-call date.
type ObservationDate struct {
	Date            calendar.Date `json:"date" yaml:"date"`
	CouponBarrier   float64       `json:"coupon_barrier,omitempty" yaml:"coupon_barrier,omitempty"`
	AutocallLevel   *float64      `json:"autocall_level,omitempty" yaml:"autocall_level,omitempty"`
	CouponPerPeriod float64       `json:"coupon_per_period,omitempty" yaml:"coupon_per_period,omitempty"`
}

// Underlying is one basket constituent.
type Underlying struct {
	Ticker        string         `json:"ticker" yaml:"ticker"`
	Name          string         `json:"name,omitempty" yaml:"name,omitempty"`
	InitialLevel  float64        `json:"initial_level" yaml:"initial_level"`
	AdjustedLevel float64        `json:"adjusted_level,omitempty" yaml:"adjusted_level,omitempty"`
	Unadjusted    bool           `json:"unadjusted,omitempty" yaml:"unadjusted,omitempty"`
	LastPriceInfo *LastPriceInfo `json:"last_price_info,omitempty" yaml:"-"`
}

// ReferenceLevel returns the adjusted level when known, else the raw level.
func (u *Underlying) ReferenceLevel() float64 {
	if u.AdjustedLevel > 0 {
		return u.AdjustedLevel
	}
	return u.InitialLevel
}

// Product holds the terms of a structured note plus fields written back by
// the evaluator (Status, AutocallDate, underlying snapshots).
type Product struct {
	ISIN                     string            `json:"isin" yaml:"isin"`
	Name                     string            `json:"name,omitempty" yaml:"name,omitempty"`
	Currency                 string            `json:"currency,omitempty" yaml:"currency,omitempty"`
	TradeDate                calendar.Date     `json:"trade_date" yaml:"trade_date"`
	FinalObservationDate     calendar.Date     `json:"final_observation_date" yaml:"final_observation_date"`
	MaturityDate             calendar.Date     `json:"maturity_date" yaml:"maturity_date"`
	Template                 Template          `json:"template" yaml:"template"`
	Features                 Features          `json:"features" yaml:"features"`
	BasketRule               BasketRule        `json:"basket_rule,omitempty" yaml:"basket_rule,omitempty"`
	CapitalProtectionBarrier float64           `json:"capital_protection_barrier" yaml:"capital_protection_barrier"`
	CouponBarrier            float64           `json:"coupon_barrier" yaml:"coupon_barrier"`
	CouponPerPeriod          float64           `json:"coupon_per_period" yaml:"coupon_per_period"`
	UpsideParticipation      float64           `json:"upside_participation,omitempty" yaml:"upside_participation,omitempty"`
	Observations             []ObservationDate `json:"observations" yaml:"observations"`
	Underlyings              []Underlying      `json:"underlyings" yaml:"underlyings"`

	Status       Status        `json:"status,omitempty" yaml:"-"`
	AutocallDate calendar.Date `json:"autocall_date,omitempty" yaml:"-"`
}

// Rule returns the basket rule, defaulting to worst-of.
func (p *Product) Rule() BasketRule {
	if p.BasketRule == "" {
		return BasketWorstOf
	}
	return p.BasketRule
}

// CouponBarrierAt returns the coupon barrier applicable to an observation.
func (p *Product) CouponBarrierAt(o ObservationDate) float64 {
	if o.CouponBarrier > 0 {
		return o.CouponBarrier
	}
	return p.CouponBarrier
}

// CouponAt returns the coupon per period applicable to an observation.
func (p *Product) CouponAt(o ObservationDate) float64 {
	if o.CouponPerPeriod > 0 {
		return o.CouponPerPeriod
	}
	return p.CouponPerPeriod
}

// Participation returns the twin-barrier upside participation in percent.
func (p *Product) Participation() float64 {
	if p.UpsideParticipation > 0 {
		return p.UpsideParticipation
	}
	return 100
}

// Tickers returns basket tickers in basket order.
func (p *Product) Tickers() []string {
	out := make([]string, len(p.Underlyings))
	for i, u := range p.Underlyings {
		out[i] = u.Ticker
	}
	return out
}

// Clone returns a deep copy so callers can evaluate against a stable snapshot.
func (p *Product) Clone() *Product {
	c := *p
	c.Observations = make([]ObservationDate, len(p.Observations))
	for i, o := range p.Observations {
		c.Observations[i] = o
		if o.AutocallLevel != nil {
			lvl := *o.AutocallLevel
			c.Observations[i].AutocallLevel = &lvl
		}
	}
	c.Underlyings = make([]Underlying, len(p.Underlyings))
	for i, u := range p.Underlyings {
		c.Underlyings[i] = u
		if u.LastPriceInfo != nil {
			info := *u.LastPriceInfo
			c.Underlyings[i].LastPriceInfo = &info
		}
	}
	return &c
}

// ValidateTerms checks the static terms: identity, basket, barriers and the
// template/feature combination. Schedule ordering is checked by the evaluator.
func (p *Product) ValidateTerms() error {
	if strings.TrimSpace(p.ISIN) == "" {
		return fmt.Errorf("%w: missing isin", ErrInvalidProduct)
	}
	if len(p.Underlyings) == 0 {
		return fmt.Errorf("%w: %s has an empty basket", ErrInvalidProduct, p.ISIN)
	}
	seen := make(map[string]struct{}, len(p.Underlyings))
	for _, u := range p.Underlyings {
		if u.Ticker == "" {
			return fmt.Errorf("%w: %s has an underlying without ticker", ErrInvalidProduct, p.ISIN)
		}
		if u.InitialLevel <= 0 {
			return fmt.Errorf("%w: %s/%s initial level must be positive", ErrInvalidProduct, p.ISIN, u.Ticker)
		}
		if _, dup := seen[u.Ticker]; dup {
			return fmt.Errorf("%w: %s lists %s twice", ErrInvalidProduct, p.ISIN, u.Ticker)
		}
		seen[u.Ticker] = struct{}{}
	}
	if p.CapitalProtectionBarrier <= 0 {
		return fmt.Errorf("%w: %s capital protection barrier must be positive", ErrInvalidProduct, p.ISIN)
	}
	// Payoff dispatch matches the constants, so an alias here would skip
	// both the feature checks and the template-specific redemption.
	if !p.Template.Canonical() {
		return fmt.Errorf("%w: %q (resolve aliases with ParseTemplate)", ErrUnknownTemplate, p.Template)
	}
	if p.BasketRule != "" && !p.BasketRule.Canonical() {
		return fmt.Errorf("%w: %q (resolve aliases with ParseBasketRule)", ErrUnknownBasketRule, p.BasketRule)
	}
	return p.validateFeatures()
}

func (p *Product) validateFeatures() error {
	f := p.Features
	switch p.Template {
	case TemplateMemoryAutocall:
	case TemplateStandard:
		if f.AutocallMemory {
			return fmt.Errorf("%w: autocall memory on %s", ErrIncompatibleFeature, p.Template)
		}
	case TemplateTwinBarrier:
		if f.AutocallMemory || f.CouponMemory || f.OneStar || f.LowStrike {
			return fmt.Errorf("%w: %s supports no memory, one-star or low-strike features", ErrIncompatibleFeature, p.Template)
		}
	default:
		return fmt.Errorf("%w: %q", ErrUnknownTemplate, p.Template)
	}
	if f.LowStrike && p.CapitalProtectionBarrier >= 100 {
		return fmt.Errorf("%w: low strike needs a capital protection barrier below 100", ErrIncompatibleFeature)
	}
	return nil
}
