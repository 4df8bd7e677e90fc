package engine

import (
	"math"
	"sync"

	"github.com/ndrandal/marketsim/internal/catalog"
)

const (
	// sector amplification of the trend bias
	cyclicalAmplifier = 1.2
	financialDampener = 0.8
	minSectorBias     = 0.005
	defaultVolatility = 1.0
)

// Instrument is the live state of a tradable symbol.
type Instrument struct {
	Symbol        string         `json:"symbol"`
	Name          string         `json:"name"`
	Sector        catalog.Sector `json:"sector,omitempty"`
	Price         float64        `json:"price"`
	Change        float64        `json:"change"`
	ChangePercent float64        `json:"changePercent"`
	Volume        string         `json:"volume"`
	Volatility    float64        `json:"volatility"`
	// SectorBias is the transient trend offset left by a sector rotation.
	SectorBias float64 `json:"sectorBias"`
}

// Index is the live state of a market index.
type Index struct {
	Name          string  `json:"name"`
	Value         float64 `json:"value"`
	Change        float64 `json:"change"`
	ChangePercent float64 `json:"changePercent"`
	Volatility    float64 `json:"volatility"`
}

// Store holds the current snapshot of every instrument and index.
type Store struct {
	mu          sync.RWMutex
	rng         *RNG
	instruments []Instrument
	indices     []Index
	bySymbol    map[string]int
	selected    string
	biasDecay   float64
}

// NewStore seeds a store from catalog listings. biasDecay is the fraction
// of a sector bias left after each refresh (0 consumes it in one tick).
func NewStore(rng *RNG, listings []catalog.Listing, indices []catalog.IndexListing, selected string, biasDecay float64) *Store {
	s := &Store{
		rng:         rng,
		instruments: make([]Instrument, len(listings)),
		indices:     make([]Index, len(indices)),
		bySymbol:    make(map[string]int, len(listings)),
		selected:    selected,
		biasDecay:   clamp(biasDecay, 0, 1),
	}
	for i, l := range listings {
		vol := l.Volatility
		if vol <= 0 {
			vol = defaultVolatility
		}
		s.instruments[i] = Instrument{
			Symbol:        l.Symbol,
			Name:          l.Name,
			Sector:        l.Sector,
			Price:         l.Price,
			Change:        l.Change,
			ChangePercent: l.ChangePercent,
			Volume:        l.Volume,
			Volatility:    vol,
		}
		s.bySymbol[l.Symbol] = i
	}
	for i, ix := range indices {
		vol := ix.Volatility
		if vol <= 0 {
			vol = defaultVolatility
		}
		s.indices[i] = Index{
			Name:          ix.Name,
			Value:         ix.Value,
			Change:        ix.Change,
			ChangePercent: ix.ChangePercent,
			Volatility:    vol,
		}
	}
	return s
}

// Refresh advances every index and instrument one step under st.
func (s *Store) Refresh(st RegimeState) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.indices {
		ix := &s.indices[i]
		delta := PriceChange(s.rng, ix.Value, ix.Volatility*st.Volatility, st.Trend)
		ix.Value = applyChange(ix.Value, delta)
		ix.Change = roundPrice(ix.Change+delta, ix.Value)
		ix.ChangePercent = changePercent(ix.Value, ix.Change)
	}

	for i := range s.instruments {
		in := &s.instruments[i]
		trend := effectiveTrend(st.Trend, in.SectorBias, in.Sector)
		prev := in.Price
		delta := PriceChange(s.rng, prev, in.Volatility*st.Volatility, trend)
		in.Price = applyChange(prev, delta)
		in.Change = roundPrice(in.Change+delta, in.Price)
		in.ChangePercent = changePercent(in.Price, in.Change)
		in.Volume = s.nextVolume(in.Volume, delta, prev, st.Volatility)

		in.SectorBias *= s.biasDecay
		if math.Abs(in.SectorBias) < minSectorBias {
			in.SectorBias = 0
		}
	}
}

// effectiveTrend combines the regime trend with a rotation bias and the
// sector's sensitivity, clamped to the trend range.
func effectiveTrend(trend, sectorBias float64, sector catalog.Sector) float64 {
	return clampTrend((trend + sectorBias) * sectorAmplifier(sector))
}

func sectorAmplifier(sector catalog.Sector) float64 {
	switch sector {
	case catalog.SectorTechnology, catalog.SectorAutomotive:
		return cyclicalAmplifier
	case catalog.SectorFinancialServices:
		return financialDampener
	default:
		return 1
	}
}

// nextVolume grows the traded volume with the size of the move and the
// regime volatility.
func (s *Store) nextVolume(volume string, delta, price, volatility float64) string {
	base := parseVolume(volume)
	if price <= 0 {
		return formatVolume(base)
	}
	growth := float64(base) * math.Abs(delta) / price * s.rng.Float64() * volatility
	return formatVolume(base + int64(math.Round(growth)))
}

// ApplySectorBias sets the rotation bias for instruments in the given
// sectors and clears it for everyone else.
func (s *Store) ApplySectorBias(biases map[catalog.Sector]float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.instruments {
		s.instruments[i].SectorBias = biases[s.instruments[i].Sector]
	}
}

// Instruments returns a copy of every instrument.
func (s *Store) Instruments() []Instrument {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Instrument, len(s.instruments))
	copy(out, s.instruments)
	return out
}

// Indices returns a copy of every index.
func (s *Store) Indices() []Index {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Index, len(s.indices))
	copy(out, s.indices)
	return out
}

// Instrument returns the instrument for symbol.
func (s *Store) Instrument(symbol string) (Instrument, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	i, ok := s.bySymbol[symbol]
	if !ok {
		return Instrument{}, false
	}
	return s.instruments[i], true
}

// Selected returns the symbol the chart is pointed at.
func (s *Store) Selected() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.selected
}

// SetSelected changes the selected symbol. Unknown symbols are accepted.
func (s *Store) SetSelected(symbol string) {
	s.mu.Lock()
	s.selected = symbol
	s.mu.Unlock()
}
