package engine

import "sync"

// Volatility multipliers for each regime level.
const (
	NormalVolatility = 1.0
	HighVolatility   = 1.5
	ShockVolatility  = 3.0
)

// VolatilityLevel classifies the regime's volatility multiplier.
type VolatilityLevel int

const (
	VolatilityNormal  VolatilityLevel = 0
	VolatilityHigh    VolatilityLevel = 1
	VolatilityExtreme VolatilityLevel = 2
)

func (v VolatilityLevel) String() string {
	switch v {
	case VolatilityNormal:
		return "Normal"
	case VolatilityHigh:
		return "High"
	case VolatilityExtreme:
		return "Extreme"
	default:
		return "Unknown"
	}
}

// ClassifyVolatility maps a multiplier onto its level.
func ClassifyVolatility(multiplier float64) VolatilityLevel {
	switch {
	case multiplier < (NormalVolatility+HighVolatility)/2:
		return VolatilityNormal
	case multiplier < (HighVolatility+ShockVolatility)/2:
		return VolatilityHigh
	default:
		return VolatilityExtreme
	}
}

// TrendState classifies the signed trend bias.
type TrendState int

const (
	TrendStronglyBearish TrendState = -2
	TrendBearish         TrendState = -1
	TrendNeutral         TrendState = 0
	TrendBullish         TrendState = 1
	TrendStronglyBullish TrendState = 2
)

func (t TrendState) String() string {
	switch t {
	case TrendStronglyBearish:
		return "Strongly Bearish"
	case TrendBearish:
		return "Bearish"
	case TrendNeutral:
		return "Neutral"
	case TrendBullish:
		return "Bullish"
	case TrendStronglyBullish:
		return "Strongly Bullish"
	default:
		return "Unknown"
	}
}

// ClassifyTrend maps a trend bias onto its descriptor.
func ClassifyTrend(trend float64) TrendState {
	switch {
	case trend > 0.5:
		return TrendStronglyBullish
	case trend > 0.15:
		return TrendBullish
	case trend >= -0.15:
		return TrendNeutral
	case trend >= -0.5:
		return TrendBearish
	default:
		return TrendStronglyBearish
	}
}

// RegimeState is a consistent copy of the regime's volatility and trend.
type RegimeState struct {
	Volatility float64 `json:"volatility"`
	Trend      float64 `json:"trend"`
	Level      string  `json:"level"`
	Descriptor string  `json:"descriptor"`
}

// Regime is the process-wide market condition read on every tick.
type Regime struct {
	mu         sync.RWMutex
	volatility float64
	trend      float64
	events     []Event
	limit      int // 0 = unbounded
}

// NewRegime creates a regime at normal volatility with the given trend.
// eventLimit caps the event log (oldest dropped first); 0 keeps everything.
func NewRegime(trend float64, eventLimit int) *Regime {
	return &Regime{
		volatility: NormalVolatility,
		trend:      clampTrend(trend),
		limit:      eventLimit,
	}
}

// State returns the current volatility and trend.
func (r *Regime) State() RegimeState {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return RegimeState{
		Volatility: r.volatility,
		Trend:      r.trend,
		Level:      ClassifyVolatility(r.volatility).String(),
		Descriptor: ClassifyTrend(r.trend).String(),
	}
}

// Volatility returns the current volatility multiplier.
func (r *Regime) Volatility() float64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.volatility
}

// Trend returns the current trend bias.
func (r *Regime) Trend() float64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.trend
}

// Events returns a copy of the event log, oldest first.
func (r *Regime) Events() []Event {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Event, len(r.events))
	copy(out, r.events)
	return out
}

func (r *Regime) set(volatility, trend float64) {
	r.mu.Lock()
	r.volatility = volatility
	r.trend = clampTrend(trend)
	r.mu.Unlock()
}

func (r *Regime) setTrend(trend float64) {
	r.mu.Lock()
	r.trend = clampTrend(trend)
	r.mu.Unlock()
}

func (r *Regime) setVolatility(volatility float64) {
	r.mu.Lock()
	r.volatility = volatility
	r.mu.Unlock()
}

func (r *Regime) record(e Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
	if r.limit > 0 && len(r.events) > r.limit {
		drop := len(r.events) - r.limit
		r.events = append(r.events[:0:0], r.events[drop:]...)
	}
}

func clampTrend(t float64) float64 {
	return clamp(t, -1, 1)
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
