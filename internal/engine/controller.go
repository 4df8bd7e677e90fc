package engine

import (
	"fmt"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/ndrandal/marketsim/internal/catalog"
)

// Scheduler runs fn once after d. fn must not run before After returns.
type Scheduler interface {
	After(d time.Duration, fn func())
}

// RegimeParams tunes the regime controller. Probabilities are per evaluation.
type RegimeParams struct {
	ShockProb      float64
	ReversalProb   float64
	ShiftProb      float64
	RotationProb   float64
	FlashCrashProb float64

	// ShiftNormalProb is the chance a volatility shift lands on Normal rather than High.
	ShiftNormalProb float64
	DriftStep       float64
	DriftLimit      float64

	ShockTrend          float64
	ShockNegativeWeight float64
	// Shock decays wait a whole number of regime periods in [min, max].
	ShockDecayMinPeriods int
	ShockDecayMaxPeriods int
	Period               time.Duration

	ReversalMin float64
	ReversalMax float64

	RotationBias float64

	FlashTrend         float64
	FlashRecoveryTrend float64
	FlashRecoveryDelay time.Duration
	FlashRestoreDelay  time.Duration
}

// DefaultRegimeParams returns the stock regime tuning.
func DefaultRegimeParams() RegimeParams {
	return RegimeParams{
		ShockProb:            0.05,
		ReversalProb:         0.10,
		ShiftProb:            0.20,
		RotationProb:         0.08,
		FlashCrashProb:       0.01,
		ShiftNormalProb:      0.7,
		DriftStep:            0.1,
		DriftLimit:           0.5,
		ShockTrend:           0.7,
		ShockNegativeWeight:  0.65,
		ShockDecayMinPeriods: 2,
		ShockDecayMaxPeriods: 5,
		Period:               60 * time.Second,
		ReversalMin:          0.3,
		ReversalMax:          0.9,
		RotationBias:         0.3,
		FlashTrend:           -1.0,
		FlashRecoveryTrend:   -0.3,
		FlashRecoveryDelay:   5 * time.Second,
		FlashRestoreDelay:    20 * time.Second,
	}
}

// Controller advances the regime on its own timer and on triggered events.
type Controller struct {
	mu     sync.Mutex
	regime *Regime
	rng    *RNG
	params RegimeParams
	sched  Scheduler
	now    func() time.Time
	log    zerolog.Logger

	// open shock / flash-crash windows; volatility shifts wait for them to close
	windows int
	// shock halvings still scheduled
	pendingDecays int
	// open flash crashes and the trend before the first of them
	flashOpen int
	flashPrev float64
	// bumped by settleWindows; recoveries from an older generation are stale
	gen uint64

	refresh   func(reason string)
	applyBias func(map[catalog.Sector]float64)
	emit      func(Event)
	sectors   []catalog.Sector
}

// Advance evaluates one regime period. Each transition is sampled
// independently except that reversal and drift only apply when no shock fired.
func (c *Controller) Advance() {
	c.mu.Lock()
	defer c.mu.Unlock()

	p := c.params
	switch {
	case c.rng.Chance(p.ShockProb):
		c.shock()
	case c.rng.Chance(p.ReversalProb):
		c.reverse()
	default:
		c.drift()
	}

	if c.rng.Chance(p.ShiftProb) {
		c.shiftVolatility()
	}
	if c.rng.Chance(p.RotationProb) {
		c.rotate()
	}
	if c.rng.Chance(p.FlashCrashProb) {
		c.flashCrash()
	}

	st := c.regime.State()
	c.log.Debug().
		Float64("volatility", st.Volatility).
		Float64("trend", st.Trend).
		Str("level", st.Level).
		Str("descriptor", st.Descriptor).
		Msg("market conditions updated")
}

// Trigger forces a single transition. It returns false for kinds that
// cannot be triggered directly (decays and recoveries).
func (c *Controller) Trigger(kind EventKind) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch kind {
	case EventShock:
		c.shock()
	case EventReversal:
		c.reverse()
	case EventVolatilityShift:
		c.shiftVolatility()
	case EventSectorRotation:
		c.rotate()
	case EventFlashCrash:
		c.flashCrash()
	default:
		return false
	}
	return true
}

// settleWindows closes every open shock and flash-crash window as if
// their cancelled recoveries had all run. Recoveries already queued on
// the scheduler become no-ops.
func (c *Controller) settleWindows() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.gen++
	if c.windows == 0 {
		return
	}
	kind := EventShockDecay
	trend := c.regime.Trend()
	if c.flashOpen > 0 {
		kind = EventFlashRecovery
		trend = c.flashPrev
	}
	for i := 0; i < c.pendingDecays; i++ {
		trend /= 2
	}
	c.windows, c.pendingDecays, c.flashOpen = 0, 0, 0
	c.regime.set(NormalVolatility, clampTrend(trend))
	c.record(kind, "Simulation stopped: pending recoveries settled")
}

// after schedules fn under c.mu unless the windows were settled first.
func (c *Controller) after(d time.Duration, fn func()) {
	gen := c.gen
	c.sched.After(d, func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		if c.gen != gen {
			return
		}
		fn()
	})
}

func (c *Controller) drift() {
	p := c.params
	t := c.regime.Trend() + c.rng.Uniform(-p.DriftStep, p.DriftStep)
	c.regime.setTrend(clamp(t, -p.DriftLimit, p.DriftLimit))
}

func (c *Controller) reverse() {
	p := c.params
	prev := c.regime.Trend()
	c.regime.setTrend(-prev * c.rng.Uniform(p.ReversalMin, p.ReversalMax))
	c.record(EventReversal, fmt.Sprintf("Trend reversal: momentum exhausted, bias %.2f -> %.2f", prev, c.regime.Trend()))
}

func (c *Controller) shiftVolatility() {
	if c.windows > 0 {
		return
	}
	prev := c.regime.Volatility()
	next := HighVolatility
	if c.rng.Chance(c.params.ShiftNormalProb) {
		next = NormalVolatility
	}
	if next == prev {
		return
	}
	c.regime.setVolatility(next)
	c.record(EventVolatilityShift, fmt.Sprintf("Volatility regime shifted from %s to %s",
		ClassifyVolatility(prev), ClassifyVolatility(next)))
}

func (c *Controller) shock() {
	p := c.params
	trend := p.ShockTrend
	if c.rng.WeightedPick([]float64{p.ShockNegativeWeight, 1 - p.ShockNegativeWeight}) == 0 {
		trend = -trend
	}
	c.windows++
	c.pendingDecays += 2
	c.regime.set(ShockVolatility, trend)

	direction := "selloff"
	if trend > 0 {
		direction = "rally"
	}
	c.record(EventShock, fmt.Sprintf("Market shock: volatility spike with sharp %s", direction))

	c.after(c.decayDelay(), func() {
		c.pendingDecays--
		c.regime.set(HighVolatility, c.regime.Trend()/2)
		c.record(EventShockDecay, "Shock easing: volatility elevated, trend fading")

		c.after(c.decayDelay(), func() {
			c.pendingDecays--
			c.regime.set(NormalVolatility, c.regime.Trend()/2)
			c.windows--
			c.record(EventShockDecay, "Shock absorbed: volatility back to normal")
		})
	})
}

func (c *Controller) decayDelay() time.Duration {
	p := c.params
	return time.Duration(c.rng.IntRange(p.ShockDecayMinPeriods, p.ShockDecayMaxPeriods)) * p.Period
}

func (c *Controller) rotate() {
	out, under := splitSectors(c.rng, c.sectors)
	biases := make(map[catalog.Sector]float64, len(out)+len(under))
	for _, s := range out {
		biases[s] = c.params.RotationBias
	}
	for _, s := range under {
		biases[s] = -c.params.RotationBias
	}
	c.applyBias(biases)

	e := c.event(EventSectorRotation, fmt.Sprintf("Sector rotation: into %s, out of %s",
		joinSectors(out), joinSectors(under)))
	e.Outperformers = out
	e.Underperformers = under
	c.publish(e)
}

func (c *Controller) flashCrash() {
	p := c.params
	prevTrend := c.regime.Trend()
	if c.flashOpen == 0 {
		c.flashPrev = prevTrend
	}
	c.flashOpen++
	c.windows++
	c.regime.set(ShockVolatility, p.FlashTrend)
	c.record(EventFlashCrash, "Flash crash: liquidity vanished, prices gapping lower")

	// out-of-band tick so the crash is visible before the next scheduled refresh
	c.refresh(string(EventFlashCrash))

	c.after(p.FlashRecoveryDelay, func() {
		c.regime.set(HighVolatility, p.FlashRecoveryTrend)
		c.record(EventFlashRecovery, "Flash crash: buyers stepping in, partial recovery")

		c.after(p.FlashRestoreDelay, func() {
			c.regime.set(NormalVolatility, prevTrend)
			c.flashOpen--
			c.windows--
			c.record(EventFlashRecovery, "Flash crash: orderly trading resumed")
		})
	})
}

func (c *Controller) event(kind EventKind, desc string) Event {
	return newEvent(kind, c.now(), desc, c.regime.State())
}

func (c *Controller) record(kind EventKind, desc string) {
	c.publish(c.event(kind, desc))
}

func (c *Controller) publish(e Event) {
	c.regime.record(e)
	c.log.Info().
		Str("kind", string(e.Kind)).
		Float64("volatility", e.Volatility).
		Float64("trend", e.Trend).
		Msg(e.Description)
	if c.emit != nil {
		c.emit(e)
	}
}

// splitSectors partitions sectors into disjoint outperforming and
// underperforming sets of a third each.
func splitSectors(rng *RNG, sectors []catalog.Sector) (out, under []catalog.Sector) {
	k := int(math.Floor(float64(len(sectors)) / 3))
	if k == 0 {
		return nil, nil
	}
	perm := rng.Perm(len(sectors))
	for _, i := range perm[:k] {
		out = append(out, sectors[i])
	}
	for _, i := range perm[k : 2*k] {
		under = append(under, sectors[i])
	}
	return out, under
}

func joinSectors(ss []catalog.Sector) string {
	names := make([]string, len(ss))
	for i, s := range ss {
		names[i] = string(s)
	}
	return strings.Join(names, ", ")
}
