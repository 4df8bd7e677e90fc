package engine

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/ndrandal/marketsim/internal/catalog"
)

// InitialTrend is the regime's trend bias at start-up.
const InitialTrend = 0.1

// Options configures an Engine. Zero durations, Regime, Listings, Indices,
// Selected and Now fall back to DefaultOptions; InitialTrend,
// SectorBiasDecay and EventLogLimit are used as given, zero included.
type Options struct {
	TickInterval   time.Duration
	RegimeInterval time.Duration
	Regime         RegimeParams
	InitialTrend   float64
	// SectorBiasDecay is the share of a rotation bias left after each tick.
	SectorBiasDecay float64
	// EventLogLimit caps the regime event log; 0 keeps every event.
	EventLogLimit int
	Selected      string

	Listings []catalog.Listing
	Indices  []catalog.IndexListing

	Logger *zerolog.Logger
	// Scheduler overrides the clock for deferred regime tasks.
	Scheduler Scheduler
	Now       func() time.Time
}

// DefaultOptions returns the stock simulation settings over the DAX catalog.
func DefaultOptions() Options {
	return Options{
		TickInterval:    3 * time.Second,
		RegimeInterval:  60 * time.Second,
		Regime:          DefaultRegimeParams(),
		InitialTrend:    InitialTrend,
		SectorBiasDecay: 0.85,
		Selected:        catalog.DefaultSelected,
		Listings:        catalog.Instruments(),
		Indices:         catalog.Indices(),
	}
}

// Snapshot is the market state published after every refresh.
type Snapshot struct {
	Time        time.Time    `json:"time"`
	Reason      string       `json:"reason"`
	Instruments []Instrument `json:"instruments"`
	Indices     []Index      `json:"indices"`
	Regime      RegimeState  `json:"regime"`
}

// Engine owns the market state and the clock driving it.
type Engine struct {
	opts    Options
	log     zerolog.Logger
	rng     *RNG
	store   *Store
	regime  *Regime
	ctrl    *Controller
	history *History
	clock   *Clock
	now     func() time.Time

	ticks atomic.Uint64

	obsMu   sync.RWMutex
	onTick  []func(Snapshot)
	onEvent []func(Event)
}

// New builds an engine. It does not start the clock.
func New(rng *RNG, opts Options) *Engine {
	def := DefaultOptions()
	if opts.TickInterval <= 0 {
		opts.TickInterval = def.TickInterval
	}
	if opts.RegimeInterval <= 0 {
		opts.RegimeInterval = def.RegimeInterval
	}
	if opts.Regime == (RegimeParams{}) {
		opts.Regime = def.Regime
	}
	opts.Regime.Period = opts.RegimeInterval
	if opts.Listings == nil {
		opts.Listings = def.Listings
	}
	if opts.Indices == nil {
		opts.Indices = def.Indices
	}
	if opts.Selected == "" {
		opts.Selected = def.Selected
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	log := zerolog.Nop()
	if opts.Logger != nil {
		log = opts.Logger.With().Str("component", "engine").Logger()
	}

	e := &Engine{
		opts:    opts,
		log:     log,
		rng:     rng,
		store:   NewStore(rng, opts.Listings, opts.Indices, opts.Selected, opts.SectorBiasDecay),
		regime:  NewRegime(opts.InitialTrend, opts.EventLogLimit),
		history: NewHistory(rng),
		clock:   NewClock(),
		now:     opts.Now,
	}

	sched := opts.Scheduler
	if sched == nil {
		sched = e.clock
	}
	e.ctrl = &Controller{
		regime:    e.regime,
		rng:       rng,
		params:    opts.Regime,
		sched:     sched,
		now:       opts.Now,
		log:       log,
		refresh:   e.refresh,
		applyBias: e.store.ApplySectorBias,
		emit:      e.notifyEvent,
		sectors:   sectorsOf(opts.Listings),
	}
	return e
}

// sectorsOf returns the catalog sectors, or the distinct sectors of a
// custom listing set in first-seen order.
func sectorsOf(listings []catalog.Listing) []catalog.Sector {
	all := catalog.Sectors()
	known := make(map[catalog.Sector]bool, len(all))
	for _, s := range all {
		known[s] = true
	}
	var out []catalog.Sector
	seen := make(map[catalog.Sector]bool)
	custom := false
	for _, l := range listings {
		if l.Sector == "" || seen[l.Sector] {
			continue
		}
		seen[l.Sector] = true
		out = append(out, l.Sector)
		if !known[l.Sector] {
			custom = true
		}
	}
	if !custom {
		return all
	}
	return out
}

// Start begins the tick and regime loops. Calling it again restarts them.
func (e *Engine) Start() {
	e.clock.Start(e.opts.TickInterval, e.opts.RegimeInterval, e.Tick, e.AdvanceRegime)
	e.log.Info().
		Dur("tick", e.opts.TickInterval).
		Dur("regime", e.opts.RegimeInterval).
		Msg("simulation started")
}

// Stop halts both loops, cancels pending shock and flash-crash recoveries
// and settles the regime those recoveries would have restored.
func (e *Engine) Stop() {
	e.clock.Stop()
	e.ctrl.settleWindows()
	e.log.Info().Uint64("ticks", e.ticks.Load()).Msg("simulation stopped")
}

// Running reports whether the clock is active.
func (e *Engine) Running() bool { return e.clock.Running() }

// Tick refreshes every price once under the current regime.
func (e *Engine) Tick() { e.refresh("tick") }

// AdvanceRegime evaluates one regime period.
func (e *Engine) AdvanceRegime() { e.ctrl.Advance() }

// Trigger forces a regime transition of the given kind and reports whether
// the kind can be triggered.
func (e *Engine) Trigger(kind EventKind) bool { return e.ctrl.Trigger(kind) }

// TriggerShock forces a volatility shock.
func (e *Engine) TriggerShock() { e.ctrl.Trigger(EventShock) }

// TriggerReversal forces a trend reversal.
func (e *Engine) TriggerReversal() { e.ctrl.Trigger(EventReversal) }

// TriggerRotation forces a sector rotation.
func (e *Engine) TriggerRotation() { e.ctrl.Trigger(EventSectorRotation) }

// TriggerFlashCrash forces a flash crash and its out-of-band refresh.
func (e *Engine) TriggerFlashCrash() { e.ctrl.Trigger(EventFlashCrash) }

func (e *Engine) refresh(reason string) {
	st := e.regime.State()
	e.store.Refresh(st)
	e.ticks.Add(1)

	e.obsMu.RLock()
	obs := e.onTick
	e.obsMu.RUnlock()
	if len(obs) == 0 {
		return
	}
	snap := Snapshot{
		Time:        e.now(),
		Reason:      reason,
		Instruments: e.store.Instruments(),
		Indices:     e.store.Indices(),
		Regime:      st,
	}
	for _, fn := range obs {
		fn(snap)
	}
}

func (e *Engine) notifyEvent(ev Event) {
	e.obsMu.RLock()
	obs := e.onEvent
	e.obsMu.RUnlock()
	for _, fn := range obs {
		fn(ev)
	}
}

// OnTick registers fn to receive every refreshed snapshot. Observers run
// synchronously on the refreshing goroutine and must not block.
func (e *Engine) OnTick(fn func(Snapshot)) {
	e.obsMu.Lock()
	e.onTick = append(e.onTick[:len(e.onTick):len(e.onTick)], fn)
	e.obsMu.Unlock()
}

// OnEvent registers fn to receive every regime event. The same rules as
// OnTick apply; fn must not call back into the engine's trigger methods.
func (e *Engine) OnEvent(fn func(Event)) {
	e.obsMu.Lock()
	e.onEvent = append(e.onEvent[:len(e.onEvent):len(e.onEvent)], fn)
	e.obsMu.Unlock()
}

// Instruments returns the current instrument snapshot.
func (e *Engine) Instruments() []Instrument { return e.store.Instruments() }

// Indices returns the current index snapshot.
func (e *Engine) Indices() []Index { return e.store.Indices() }

// Instrument looks up one instrument by symbol.
func (e *Engine) Instrument(symbol string) (Instrument, bool) { return e.store.Instrument(symbol) }

// Selected returns the selected symbol.
func (e *Engine) Selected() string { return e.store.Selected() }

// SetSelected points the selection at symbol without validating it.
func (e *Engine) SetSelected(symbol string) { e.store.SetSelected(symbol) }

// History returns the series for symbol over tf, generated from the
// instrument's current price on first request and cached afterwards.
// Unknown symbols yield an empty series.
func (e *Engine) History(symbol string, tf Timeframe) []Point {
	in, ok := e.store.Instrument(symbol)
	if !ok || tf.Points() == 0 {
		return []Point{}
	}
	return e.history.Series(symbol, tf, in.Price, in.Volatility, e.now())
}

// InvalidateHistory drops the cached series for symbol so the next request
// regenerates from the live price.
func (e *Engine) InvalidateHistory(symbol string) int { return e.history.Invalidate(symbol) }

// HistoryCacheSize reports the number of cached series.
func (e *Engine) HistoryCacheSize() int { return e.history.Len() }

// Events returns the regime event log, oldest first.
func (e *Engine) Events() []Event { return e.regime.Events() }

// Regime returns the current regime state.
func (e *Engine) Regime() RegimeState { return e.regime.State() }

// VolatilityLevel returns the human-readable volatility classification.
func (e *Engine) VolatilityLevel() string { return ClassifyVolatility(e.regime.Volatility()).String() }

// TrendDescriptor returns the human-readable trend classification.
func (e *Engine) TrendDescriptor() string { return ClassifyTrend(e.regime.Trend()).String() }

// TickCount reports refreshes since construction, out-of-band ones included.
func (e *Engine) TickCount() uint64 { return e.ticks.Load() }
