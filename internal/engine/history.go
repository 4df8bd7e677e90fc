package engine

import (
	"fmt"
	"strings"
	"sync"
	"time"
)

// Timeframe identifies a historical chart window.
type Timeframe string

const (
	Timeframe1D  Timeframe = "1D"
	Timeframe1W  Timeframe = "1W"
	Timeframe1M  Timeframe = "1M"
	Timeframe3M  Timeframe = "3M"
	Timeframe1Y  Timeframe = "1Y"
	TimeframeAll Timeframe = "ALL"
)

// Timeframes lists every timeframe from shortest to longest.
var Timeframes = []Timeframe{Timeframe1D, Timeframe1W, Timeframe1M, Timeframe3M, Timeframe1Y, TimeframeAll}

var timeframeAliases = map[string]Timeframe{
	"1D": Timeframe1D, "INTRADAY": Timeframe1D, "DAY": Timeframe1D,
	"1W": Timeframe1W, "WEEK": Timeframe1W, "WEEKLY": Timeframe1W,
	"1M": Timeframe1M, "MONTH": Timeframe1M, "MONTHLY": Timeframe1M,
	"3M": Timeframe3M, "QUARTER": Timeframe3M, "QUARTERLY": Timeframe3M,
	"1Y": Timeframe1Y, "YEAR": Timeframe1Y, "YEARLY": Timeframe1Y,
	"ALL": TimeframeAll, "MAX": TimeframeAll, "ALL-TIME": TimeframeAll,
}

// ParseTimeframe accepts the canonical identifiers and a few spelled-out
// aliases, case-insensitively.
func ParseTimeframe(s string) (Timeframe, error) {
	tf, ok := timeframeAliases[strings.ToUpper(strings.TrimSpace(s))]
	if !ok {
		return "", fmt.Errorf("unknown timeframe %q", s)
	}
	return tf, nil
}

// Points returns the number of backward steps the timeframe spans.
func (tf Timeframe) Points() int {
	switch tf {
	case Timeframe1D:
		return 24
	case Timeframe1W:
		return 7
	case Timeframe1M:
		return 30
	case Timeframe3M, Timeframe1Y:
		return 12
	case TimeframeAll:
		return 10
	default:
		return 0
	}
}

// step moves t back n units of the timeframe.
func (tf Timeframe) step(t time.Time, n int) time.Time {
	switch tf {
	case Timeframe1D:
		return t.Add(-time.Duration(n) * time.Hour)
	case Timeframe1W, Timeframe1M:
		return t.AddDate(0, 0, -n)
	case Timeframe3M:
		return t.AddDate(0, 0, -7*n)
	case Timeframe1Y:
		return t.AddDate(0, -n, 0)
	default:
		return t.AddDate(-n, 0, 0)
	}
}

func (tf Timeframe) layout() string {
	switch tf {
	case Timeframe1D:
		return "15:04"
	case Timeframe1W:
		return "Mon"
	case Timeframe1M, Timeframe3M:
		return "02/01"
	case Timeframe1Y:
		return "Jan"
	default:
		return "2006"
	}
}

// Point is one sample of a historical series.
type Point struct {
	Timestamp time.Time `json:"timestamp"`
	Label     string    `json:"time"`
	Price     float64   `json:"price"`
	Volume    int64     `json:"volume"`
}

const (
	historyFloor       = 0.1
	historyTrendRange  = 0.4
	historyJitterRange = 0.2
	historyMinVolume   = 100_000
	historyMaxVolume   = 1_099_999
)

type historyKey struct {
	symbol    string
	timeframe Timeframe
}

// History generates and caches backdated price series.
type History struct {
	mu    sync.Mutex
	rng   *RNG
	cache map[historyKey][]Point
}

// NewHistory returns an empty history cache.
func NewHistory(rng *RNG) *History {
	return &History{rng: rng, cache: make(map[historyKey][]Point)}
}

// Series returns the cached series for (symbol, tf), generating it from
// price and volatility on first request. The series ends at price at now.
func (h *History) Series(symbol string, tf Timeframe, price, volatility float64, now time.Time) []Point {
	key := historyKey{symbol, tf}

	h.mu.Lock()
	defer h.mu.Unlock()
	pts, ok := h.cache[key]
	if !ok {
		pts = h.generate(tf, price, volatility, now)
		h.cache[key] = pts
	}
	out := make([]Point, len(pts))
	copy(out, pts)
	return out
}

// Invalidate drops every cached series for symbol and reports how many went.
func (h *History) Invalidate(symbol string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	n := 0
	for _, tf := range Timeframes {
		key := historyKey{symbol, tf}
		if _, ok := h.cache[key]; ok {
			delete(h.cache, key)
			n++
		}
	}
	return n
}

// Len reports the number of cached series.
func (h *History) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.cache)
}

// generate walks backward from the current price, so the newest point
// is exactly price and older points accumulate the reversed moves.
func (h *History) generate(tf Timeframe, price, volatility float64, now time.Time) []Point {
	n := tf.Points()
	pts := make([]Point, n+1)
	overall := h.rng.Uniform(-historyTrendRange, historyTrendRange)

	p := price
	for i := n; i >= 0; i-- {
		at := tf.step(now, n-i)
		pts[i] = Point{
			Timestamp: at,
			Label:     at.Format(tf.layout()),
			Price:     p,
			Volume:    int64(h.rng.IntRange(historyMinVolume, historyMaxVolume)),
		}
		trend := overall + h.rng.Uniform(-historyJitterRange, historyJitterRange)
		// stepping back in time undoes a forward move
		p = roundPrice(p-PriceChange(h.rng, p, volatility, trend), p)
		if p < historyFloor {
			p = historyFloor
		}
	}
	return pts
}
