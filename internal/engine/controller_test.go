package engine

import (
	"math"
	"testing"
	"time"

	"pgregory.net/rapid"

	"github.com/ndrandal/marketsim/internal/catalog"
)

type deferred struct {
	after time.Duration
	fn    func()
}

// manualScheduler queues deferred tasks until the test runs them.
type manualScheduler struct {
	tasks []deferred
}

func (m *manualScheduler) After(d time.Duration, fn func()) {
	m.tasks = append(m.tasks, deferred{d, fn})
}

type fataler interface {
	Helper()
	Fatal(args ...any)
}

// runNext fires the oldest queued task and returns its delay.
func (m *manualScheduler) runNext(t fataler) time.Duration {
	t.Helper()
	if len(m.tasks) == 0 {
		t.Fatal("no deferred task queued")
	}
	task := m.tasks[0]
	m.tasks = m.tasks[1:]
	task.fn()
	return task.after
}

var testNow = time.Date(2025, 3, 14, 11, 30, 0, 0, time.UTC)

func newTestEngine(seed int64) (*Engine, *manualScheduler) {
	sched := &manualScheduler{}
	opts := DefaultOptions()
	opts.Scheduler = sched
	opts.Now = func() time.Time { return testNow }
	return New(NewRNG(seed), opts), sched
}

func lastEvent(t *testing.T, e *Engine) Event {
	t.Helper()
	events := e.Events()
	if len(events) == 0 {
		t.Fatal("event log empty")
	}
	return events[len(events)-1]
}

func TestClassifyVolatility(t *testing.T) {
	tests := []struct {
		in   float64
		want string
	}{
		{NormalVolatility, "Normal"},
		{HighVolatility, "High"},
		{ShockVolatility, "Extreme"},
		{1.2, "Normal"},
		{2.0, "High"},
	}
	for _, tt := range tests {
		if got := ClassifyVolatility(tt.in).String(); got != tt.want {
			t.Errorf("ClassifyVolatility(%v) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestClassifyTrend(t *testing.T) {
	tests := []struct {
		in   float64
		want string
	}{
		{1, "Strongly Bullish"},
		{0.3, "Bullish"},
		{0.1, "Neutral"},
		{-0.15, "Neutral"},
		{-0.3, "Bearish"},
		{-0.7, "Strongly Bearish"},
	}
	for _, tt := range tests {
		if got := ClassifyTrend(tt.in).String(); got != tt.want {
			t.Errorf("ClassifyTrend(%v) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestInitialRegime(t *testing.T) {
	e, _ := newTestEngine(42)
	st := e.Regime()
	if st.Volatility != NormalVolatility || st.Trend != InitialTrend {
		t.Fatalf("initial regime = %+v", st)
	}
	if e.VolatilityLevel() != "Normal" || e.TrendDescriptor() != "Neutral" {
		t.Fatalf("descriptors = %q / %q", e.VolatilityLevel(), e.TrendDescriptor())
	}
}

func TestRegimeBoundsUnderAdvance(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		e, sched := newTestEngine(rapid.Int64().Draw(rt, "seed"))
		steps := rapid.IntRange(1, 300).Draw(rt, "steps")
		for i := 0; i < steps; i++ {
			if rapid.Bool().Draw(rt, "advance") {
				e.AdvanceRegime()
			} else {
				kind := rapid.SampledFrom([]EventKind{
					EventShock, EventReversal, EventVolatilityShift, EventSectorRotation, EventFlashCrash,
				}).Draw(rt, "trigger")
				e.Trigger(kind)
			}
			if len(sched.tasks) > 0 && rapid.Bool().Draw(rt, "fire") {
				sched.runNext(rt)
			}

			st := e.Regime()
			if st.Trend < -1 || st.Trend > 1 {
				rt.Fatalf("trend %f out of [-1, 1]", st.Trend)
			}
			switch st.Volatility {
			case NormalVolatility, HighVolatility, ShockVolatility:
			default:
				rt.Fatalf("volatility %f is not a regime level", st.Volatility)
			}
		}
	})
}

func TestShockDecaysTwice(t *testing.T) {
	e, sched := newTestEngine(42)
	e.TriggerShock()

	st := e.Regime()
	if st.Volatility != ShockVolatility || math.Abs(st.Trend) != 0.7 {
		t.Fatalf("after shock: %+v", st)
	}
	if got := lastEvent(t, e).Kind; got != EventShock {
		t.Fatalf("last event = %s", got)
	}

	d := sched.runNext(t)
	if d < 2*time.Minute || d > 5*time.Minute {
		t.Fatalf("first decay delay %v outside 2-5 regime periods", d)
	}
	st = e.Regime()
	if st.Volatility != HighVolatility || math.Abs(st.Trend) != 0.35 {
		t.Fatalf("after first decay: %+v", st)
	}

	sched.runNext(t)
	st = e.Regime()
	if st.Volatility != NormalVolatility || math.Abs(st.Trend) != 0.175 {
		t.Fatalf("after second decay: %+v", st)
	}
	if len(sched.tasks) != 0 {
		t.Fatalf("%d tasks left after decays", len(sched.tasks))
	}
	if n := len(e.Events()); n != 3 {
		t.Fatalf("events = %d, want 3", n)
	}
}

func TestShockSignBiasedNegative(t *testing.T) {
	neg := 0
	for seed := int64(0); seed < 400; seed++ {
		e, _ := newTestEngine(seed)
		e.TriggerShock()
		if e.Regime().Trend < 0 {
			neg++
		}
	}
	if neg < 200 {
		t.Fatalf("negative shocks = %d/400, want a majority", neg)
	}
}

func TestVolatilityShiftWaitsForShockWindow(t *testing.T) {
	e, sched := newTestEngine(42)
	e.TriggerShock()
	for i := 0; i < 20; i++ {
		e.Trigger(EventVolatilityShift)
	}
	if v := e.Regime().Volatility; v != ShockVolatility {
		t.Fatalf("volatility shifted to %f inside shock window", v)
	}
	sched.runNext(t)
	sched.runNext(t)

	shifted := false
	for i := 0; i < 50 && !shifted; i++ {
		e.Trigger(EventVolatilityShift)
		shifted = e.Regime().Volatility == HighVolatility
	}
	if !shifted {
		t.Fatal("volatility never shifted once the window closed")
	}
}

func TestReversal(t *testing.T) {
	e, _ := newTestEngine(42)
	e.TriggerReversal()
	tr := e.Regime().Trend
	if tr > -InitialTrend*0.3+1e-9 || tr < -InitialTrend*0.9-1e-9 {
		t.Fatalf("trend after reversal = %f, want in [-0.09, -0.03]", tr)
	}
	if got := lastEvent(t, e).Kind; got != EventReversal {
		t.Fatalf("last event = %s", got)
	}
}

func TestSectorRotation(t *testing.T) {
	e, _ := newTestEngine(42)
	e.TriggerRotation()

	ev := lastEvent(t, e)
	if ev.Kind != EventSectorRotation {
		t.Fatalf("last event = %s", ev.Kind)
	}
	third := len(catalog.Sectors()) / 3
	if len(ev.Outperformers) != third || len(ev.Underperformers) != third {
		t.Fatalf("rotation sizes %d/%d, want %d each", len(ev.Outperformers), len(ev.Underperformers), third)
	}

	bias := map[catalog.Sector]float64{}
	for _, s := range ev.Outperformers {
		bias[s] = 0.3
	}
	for _, s := range ev.Underperformers {
		bias[s] = -0.3
	}
	for _, in := range e.Instruments() {
		if in.SectorBias != bias[in.Sector] {
			t.Errorf("%s (%s): bias %f, want %f", in.Symbol, in.Sector, in.SectorBias, bias[in.Sector])
		}
	}
}

func TestRotationDisjoint(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		rng := NewRNG(rapid.Int64().Draw(rt, "seed"))
		n := rapid.IntRange(0, 30).Draw(rt, "sectors")
		sectors := make([]catalog.Sector, n)
		for i := range sectors {
			sectors[i] = catalog.Sector(rune('A' + i))
		}
		out, under := splitSectors(rng, sectors)
		if len(out) != n/3 || len(under) != n/3 {
			rt.Fatalf("sizes %d/%d for %d sectors", len(out), len(under), n)
		}
		seen := make(map[catalog.Sector]bool)
		for _, s := range out {
			seen[s] = true
		}
		for _, s := range under {
			if seen[s] {
				rt.Fatalf("sector %s both outperforming and underperforming", s)
			}
		}
	})
}

func TestFlashCrash(t *testing.T) {
	e, sched := newTestEngine(42)
	var reasons []string
	e.OnTick(func(s Snapshot) { reasons = append(reasons, s.Reason) })
	before, _ := e.Instrument("SAP.DE")

	e.TriggerFlashCrash()

	st := e.Regime()
	if st.Trend != -1 || st.Volatility != ShockVolatility {
		t.Fatalf("after flash crash: %+v", st)
	}
	if len(reasons) != 1 || reasons[0] != string(EventFlashCrash) {
		t.Fatalf("refreshes = %v, want one out-of-band flash_crash refresh", reasons)
	}
	if e.TickCount() != 1 {
		t.Fatalf("tick count = %d", e.TickCount())
	}
	after, _ := e.Instrument("SAP.DE")
	if after.Price == before.Price && after.Change == before.Change {
		t.Fatal("store not refreshed by flash crash")
	}

	if d := sched.runNext(t); d != 5*time.Second {
		t.Fatalf("recovery delay = %v", d)
	}
	st = e.Regime()
	if st.Trend != -0.3 || st.Volatility != HighVolatility {
		t.Fatalf("after recovery: %+v", st)
	}

	if d := sched.runNext(t); d != 20*time.Second {
		t.Fatalf("restore delay = %v", d)
	}
	st = e.Regime()
	if st.Trend != InitialTrend || st.Volatility != NormalVolatility {
		t.Fatalf("after restore: %+v", st)
	}
}

func TestStopSettlesShock(t *testing.T) {
	e, sched := newTestEngine(42)
	e.TriggerShock()
	sched.runNext(t)

	e.Stop()
	st := e.Regime()
	if st.Volatility != NormalVolatility || math.Abs(st.Trend) != 0.175 {
		t.Fatalf("after stop: %+v, want Normal with the remaining decay applied", st)
	}
	if got := lastEvent(t, e).Kind; got != EventShockDecay {
		t.Fatalf("last event = %s", got)
	}

	events := len(e.Events())
	sched.runNext(t)
	if e.Regime() != st || len(e.Events()) != events {
		t.Fatalf("cancelled decay still ran: %+v", e.Regime())
	}
}

func TestStopSettlesFlashCrashMidRecovery(t *testing.T) {
	e, sched := newTestEngine(42)
	e.TriggerFlashCrash()
	sched.runNext(t)
	if e.Regime().Trend != -0.3 {
		t.Fatalf("after recovery: %+v", e.Regime())
	}

	e.Stop()
	st := e.Regime()
	if st.Volatility != NormalVolatility || st.Trend != InitialTrend {
		t.Fatalf("after stop: %+v, want prior trend at Normal volatility", st)
	}
	sched.runNext(t)
	if e.Regime() != st {
		t.Fatalf("cancelled restore still ran: %+v", e.Regime())
	}
}

func TestStopWithoutWindowsKeepsRegime(t *testing.T) {
	e, _ := newTestEngine(42)
	e.TriggerReversal()
	st := e.Regime()
	events := len(e.Events())

	e.Stop()
	if e.Regime() != st || len(e.Events()) != events {
		t.Fatalf("stop changed a settled regime: %+v", e.Regime())
	}
}

func TestTriggerRejectsFollowUpKinds(t *testing.T) {
	e, _ := newTestEngine(42)
	for _, k := range []EventKind{EventShockDecay, EventFlashRecovery, "bogus"} {
		if e.Trigger(k) {
			t.Errorf("Trigger(%s) = true", k)
		}
	}
	if n := len(e.Events()); n != 0 {
		t.Fatalf("events = %d after rejected triggers", n)
	}
}

func TestParseTrigger(t *testing.T) {
	tests := []struct {
		in      string
		want    EventKind
		wantErr bool
	}{
		{"shock", EventShock, false},
		{"Flash-Crash", EventFlashCrash, false},
		{"rotation", EventSectorRotation, false},
		{"trend_reversal", EventReversal, false},
		{"shock_decay", "", true},
		{"", "", true},
	}
	for _, tt := range tests {
		got, err := ParseTrigger(tt.in)
		if (err != nil) != tt.wantErr || got != tt.want {
			t.Errorf("ParseTrigger(%q) = %q, %v", tt.in, got, err)
		}
	}
}

func TestEventLogLimit(t *testing.T) {
	opts := DefaultOptions()
	opts.Scheduler = &manualScheduler{}
	opts.EventLogLimit = 3
	e := New(NewRNG(42), opts)

	for i := 0; i < 5; i++ {
		e.TriggerReversal()
	}
	events := e.Events()
	if len(events) != 3 {
		t.Fatalf("events = %d, want 3", len(events))
	}
	if events[2].Trend != e.Regime().Trend {
		t.Fatal("newest event evicted instead of oldest")
	}
}

func TestEventsCarryIDs(t *testing.T) {
	e, _ := newTestEngine(42)
	var got []Event
	e.OnEvent(func(ev Event) { got = append(got, ev) })
	e.TriggerReversal()
	e.TriggerReversal()
	if len(got) != 2 {
		t.Fatalf("observed %d events", len(got))
	}
	if got[0].ID == "" || got[0].ID == got[1].ID {
		t.Fatalf("event IDs %q, %q", got[0].ID, got[1].ID)
	}
	if !got[0].Time.Equal(testNow) {
		t.Fatalf("event time = %v", got[0].Time)
	}
}
