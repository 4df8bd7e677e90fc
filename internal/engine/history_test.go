package engine

import (
	"reflect"
	"testing"
	"time"
)

func TestHistoryUnknownSymbol(t *testing.T) {
	e, _ := newTestEngine(42)
	pts := e.History("ZZZZ", Timeframe1W)
	if pts == nil || len(pts) != 0 {
		t.Fatalf("History(ZZZZ) = %v, want empty non-nil", pts)
	}
	if e.HistoryCacheSize() != 0 {
		t.Fatal("unknown symbol should not be cached")
	}
}

func TestHistoryWeekHasEightAscendingPoints(t *testing.T) {
	e, _ := newTestEngine(42)
	pts := e.History("SAP.DE", Timeframe1W)
	if len(pts) != 8 {
		t.Fatalf("points = %d, want 8", len(pts))
	}
	for i := 1; i < len(pts); i++ {
		if !pts[i-1].Timestamp.Before(pts[i].Timestamp) {
			t.Fatalf("point %d at %v not before point %d at %v", i-1, pts[i-1].Timestamp, i, pts[i].Timestamp)
		}
	}
	if !pts[7].Timestamp.Equal(testNow) {
		t.Fatalf("last point at %v, want now", pts[7].Timestamp)
	}
	if pts[0].Label != testNow.AddDate(0, 0, -7).Format("Mon") {
		t.Fatalf("first label = %q", pts[0].Label)
	}
}

func TestHistoryEndsAtCurrentPrice(t *testing.T) {
	e, _ := newTestEngine(42)
	in, _ := e.Instrument("BAYN.DE")
	for _, tf := range Timeframes {
		pts := e.History("BAYN.DE", tf)
		if got := pts[len(pts)-1].Price; got != in.Price {
			t.Errorf("%s: last price %f, want %f", tf, got, in.Price)
		}
		for _, p := range pts {
			if p.Price < historyFloor {
				t.Errorf("%s: price %f below floor", tf, p.Price)
			}
			if p.Volume < historyMinVolume || p.Volume > historyMaxVolume {
				t.Errorf("%s: volume %d out of range", tf, p.Volume)
			}
		}
	}
}

func TestHistoryPointCounts(t *testing.T) {
	want := map[Timeframe]int{
		Timeframe1D:  25,
		Timeframe1W:  8,
		Timeframe1M:  31,
		Timeframe3M:  13,
		Timeframe1Y:  13,
		TimeframeAll: 11,
	}
	e, _ := newTestEngine(42)
	for tf, n := range want {
		if got := len(e.History("SAP.DE", tf)); got != n {
			t.Errorf("%s: %d points, want %d", tf, got, n)
		}
	}
	if e.HistoryCacheSize() != len(want) {
		t.Fatalf("cache size = %d, want %d", e.HistoryCacheSize(), len(want))
	}
}

func TestHistoryCached(t *testing.T) {
	e, _ := newTestEngine(42)
	first := e.History("SAP.DE", Timeframe1M)
	e.Tick()
	e.Tick()
	second := e.History("SAP.DE", Timeframe1M)
	if !reflect.DeepEqual(first, second) {
		t.Fatal("cached series changed between calls")
	}

	// callers get copies
	second[0].Price = -1
	if e.History("SAP.DE", Timeframe1M)[0].Price == -1 {
		t.Fatal("cache shared with caller")
	}
}

func TestHistoryInvalidate(t *testing.T) {
	e, _ := newTestEngine(42)
	e.History("SAP.DE", Timeframe1W)
	e.History("SAP.DE", Timeframe1D)
	e.History("BMW.DE", Timeframe1D)
	for i := 0; i < 5; i++ {
		e.Tick()
	}

	if n := e.InvalidateHistory("SAP.DE"); n != 2 {
		t.Fatalf("invalidated %d series, want 2", n)
	}
	if e.HistoryCacheSize() != 1 {
		t.Fatalf("cache size = %d, want 1", e.HistoryCacheSize())
	}
	in, _ := e.Instrument("SAP.DE")
	pts := e.History("SAP.DE", Timeframe1W)
	if pts[len(pts)-1].Price != in.Price {
		t.Fatalf("regenerated series ends at %f, want live %f", pts[len(pts)-1].Price, in.Price)
	}
}

func TestTimeframeLabels(t *testing.T) {
	at := time.Date(2025, 3, 14, 11, 30, 0, 0, time.UTC)
	tests := []struct {
		tf   Timeframe
		want string
	}{
		{Timeframe1D, "11:30"},
		{Timeframe1W, "Fri"},
		{Timeframe1M, "14/03"},
		{Timeframe3M, "14/03"},
		{Timeframe1Y, "Mar"},
		{TimeframeAll, "2025"},
	}
	for _, tt := range tests {
		if got := at.Format(tt.tf.layout()); got != tt.want {
			t.Errorf("%s label = %q, want %q", tt.tf, got, tt.want)
		}
	}
}

func TestParseTimeframe(t *testing.T) {
	tests := []struct {
		in      string
		want    Timeframe
		wantErr bool
	}{
		{"1W", Timeframe1W, false},
		{"1w", Timeframe1W, false},
		{"intraday", Timeframe1D, false},
		{"all", TimeframeAll, false},
		{"quarterly", Timeframe3M, false},
		{"5Y", "", true},
		{"", "", true},
	}
	for _, tt := range tests {
		got, err := ParseTimeframe(tt.in)
		if (err != nil) != tt.wantErr || got != tt.want {
			t.Errorf("ParseTimeframe(%q) = %q, %v", tt.in, got, err)
		}
	}
}
