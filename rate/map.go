package rate

import (
	"sort"
	"time"
)

const (
	hoursPerDay  = 24
	hoursPerWeek = 7 * hoursPerDay
)

// Map resolves the rate that applies in each usage tier and hour slot of a
// tariff. The slot grid is 24 hours wide, or 168 when any rate has a weekly
// window.
type Map struct {
	tiers  []float64
	weekly bool
	slots  [][]*Rate
}

// Portion is usage billed against a single rate.
type Portion struct {
	Rate *Rate
	KWh  float64
}

// Analyze builds the Map for a set of rates. More specific rates win: a rate
// with a tier overrides one without, then a weekly window, then a daily one.
func Analyze(rates []*Rate) *Map {
	m := &Map{tiers: []float64{0}}
	for _, r := range rates {
		if r.WeeklyBegin >= 0 {
			m.weekly = true
		}
		if r.TierThreshold > 0 && !contains(m.tiers, r.TierThreshold) {
			m.tiers = append(m.tiers, r.TierThreshold)
		}
	}
	sort.Float64s(m.tiers)

	width := hoursPerDay
	if m.weekly {
		width = hoursPerWeek
	}
	m.slots = make([][]*Rate, len(m.tiers))
	for i := range m.slots {
		m.slots[i] = make([]*Rate, width)
	}

	ordered := make([]*Rate, len(rates))
	copy(ordered, rates)
	sort.SliceStable(ordered, func(i, j int) bool {
		return m.priority(ordered[i]) < m.priority(ordered[j])
	})
	for _, r := range ordered {
		m.fill(r)
	}
	// A tier falls back to the tier below it wherever it sets no rate.
	for i := 1; i < len(m.slots); i++ {
		for slot, r := range m.slots[i] {
			if r == nil {
				m.slots[i][slot] = m.slots[i-1][slot]
			}
		}
	}
	return m
}

func (m *Map) priority(r *Rate) int {
	p := 0
	if r.DailyBegin >= 0 {
		p = r.DailyBegin
	}
	if r.WeeklyBegin >= 0 {
		p += r.WeeklyBegin * hoursPerDay
	}
	if r.TierThreshold > 0 {
		p += m.tierIndex(r.TierThreshold) * hoursPerWeek
	}
	return p
}

func (m *Map) fill(r *Rate) {
	ti := m.tierIndex(r.TierThreshold)
	days := []int{0}
	if m.weekly {
		days = span(r.WeeklyBegin-1, r.WeeklyEnd-1, 0, 6, r.WeeklyBegin == NoTime)
	}
	hours := span(r.DailyBegin, r.DailyEnd, MinHour, MaxHour, r.DailyBegin == NoTime)
	for _, d := range days {
		for _, h := range hours {
			m.slots[ti][d*hoursPerDay+h] = r
		}
	}
}

// span lists the slots from begin to end inclusive, wrapping past hi.
func span(begin, end, lo, hi int, all bool) []int {
	if all {
		begin, end = lo, hi
	}
	var out []int
	if end >= begin {
		for v := begin; v <= end; v++ {
			out = append(out, v)
		}
		return out
	}
	for v := begin; v <= hi; v++ {
		out = append(out, v)
	}
	for v := lo; v <= end; v++ {
		out = append(out, v)
	}
	return out
}

func (m *Map) tierIndex(threshold float64) int {
	if threshold <= 0 {
		return 0
	}
	for i, t := range m.tiers {
		if t == threshold {
			return i
		}
	}
	return 0
}

// Covered reports whether every tier and hour slot has a rate, counting
// rates inherited from lower tiers.
func (m *Map) Covered() bool {
	for _, row := range m.slots {
		for _, r := range row {
			if r == nil {
				return false
			}
		}
	}
	return true
}

// Weekly reports whether the map distinguishes days of the week.
func (m *Map) Weekly() bool { return m.weekly }

// Tiers returns the ascending tier thresholds, always starting with 0.
func (m *Map) Tiers() []float64 {
	out := make([]float64, len(m.tiers))
	copy(out, m.tiers)
	return out
}

// TimeIndex returns the slot index of t.
func (m *Map) TimeIndex(t time.Time) int {
	t = t.UTC()
	i := t.Hour()
	if m.weekly {
		i += hoursPerDay * (isoWeekday(t) - 1)
	}
	return i
}

// At returns the rate for a tier and slot, or nil for a gap.
func (m *Map) At(tier, slot int) *Rate {
	if tier < 0 || tier >= len(m.slots) || slot < 0 || slot >= len(m.slots[tier]) {
		return nil
	}
	return m.slots[tier][slot]
}

// Split divides kwh of usage in one slot across tiers, given the usage
// already accumulated today. Non-positive usage is billed in the base tier.
func (m *Map) Split(slot int, kwh, cumulative float64) []Portion {
	if len(m.tiers) == 1 || kwh <= 0 {
		return []Portion{{Rate: m.At(0, slot), KWh: kwh}}
	}
	var out []Portion
	remaining, accumulated := kwh, cumulative
	ti := 0
	for remaining > 0 {
		if ti+1 >= len(m.tiers) {
			out = append(out, Portion{Rate: m.At(ti, slot), KWh: remaining})
			break
		}
		next := m.tiers[ti+1]
		switch {
		case accumulated >= next:
			ti++
		case remaining+accumulated > next:
			amt := next - accumulated
			out = append(out, Portion{Rate: m.At(ti, slot), KWh: amt})
			remaining -= amt
			accumulated += amt
			ti++
		default:
			out = append(out, Portion{Rate: m.At(ti, slot), KWh: remaining})
			remaining = 0
		}
	}
	return out
}

// UsageCharge prices kwh used by one customer at t, typically opposite in
// sign to kwh. Slots without a rate contribute nothing.
func (m *Map) UsageCharge(t time.Time, kwh, cumulative float64) float64 {
	var total float64
	for _, p := range m.Split(m.TimeIndex(t), kwh, cumulative) {
		if p.Rate != nil {
			total += p.KWh * p.Rate.Value(t)
		}
	}
	return total
}

// MaxCurtailment returns how much of kwh used at t may be curtailed.
func (m *Map) MaxCurtailment(t time.Time, kwh, cumulative float64) float64 {
	var total float64
	for _, p := range m.Split(m.TimeIndex(t), kwh, cumulative) {
		if p.Rate != nil {
			total += p.KWh * p.Rate.MaxCurtailment
		}
	}
	return total
}

// HasCurtailment reports whether any rate declares a curtailment ratio.
func HasCurtailment(rates []*Rate) bool {
	for _, r := range rates {
		if r.MaxCurtailment > 0 {
			return true
		}
	}
	return false
}

func contains(xs []float64, v float64) bool {
	for _, x := range xs {
		if x == v {
			return true
		}
	}
	return false
}
