package payoff

import "note-lifecycle-lab/internal/domain"

// MemoryTracker carries state across observation dates: the missed-coupon
// counter and the set of underlyings locked above their autocall level.
// Each feature only accumulates when enabled.
type MemoryTracker struct {
	couponMemory   bool
	autocallMemory bool
	basket         []string
	missed         int
	locked         map[string]struct{}
}

// NewMemoryTracker creates a tracker for a basket in basket order.
func NewMemoryTracker(f domain.Features, basket []string) *MemoryTracker {
	return &MemoryTracker{
		couponMemory:   f.CouponMemory,
		autocallMemory: f.AutocallMemory,
		basket:         basket,
		locked:         make(map[string]struct{}, len(basket)),
	}
}

// SettleCoupon records a coupon decision and returns the amount paid.
// A cleared date pays base*(1+missed) and resets the counter; a missed date
// pays nothing and, with coupon memory, increments it.
func (m *MemoryTracker) SettleCoupon(cleared bool, base float64) float64 {
	if cleared {
		paid := base * float64(1+m.missed)
		m.missed = 0
		return paid
	}
	if m.couponMemory {
		m.missed++
	}
	return 0
}

// MissedCoupons returns the current missed-coupon counter.
func (m *MemoryTracker) MissedCoupons() int {
	return m.missed
}

// AutocallMemory reports whether per-underlying autocall memory is enabled.
func (m *MemoryTracker) AutocallMemory() bool {
	return m.autocallMemory
}

// Lock adds an underlying to the locked set. Locks are never released.
func (m *MemoryTracker) Lock(ticker string) {
	m.locked[ticker] = struct{}{}
}

// FullyLocked reports whether every basket underlying has been locked.
func (m *MemoryTracker) FullyLocked() bool {
	for _, t := range m.basket {
		if _, ok := m.locked[t]; !ok {
			return false
		}
	}
	return len(m.basket) > 0
}

// Locked returns locked underlyings in basket order.
func (m *MemoryTracker) Locked() []string {
	var out []string
	for _, t := range m.basket {
		if _, ok := m.locked[t]; ok {
			out = append(out, t)
		}
	}
	return out
}
