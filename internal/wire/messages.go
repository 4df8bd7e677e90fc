package wire

import (
	"time"

	"github.com/ndrandal/marketsim/internal/engine"
)

// MsgType names a stream message.
type MsgType string

const (
	MsgDirectory MsgType = "directory"
	MsgQuote     MsgType = "quote"
	MsgIndex     MsgType = "index"
	MsgRegime    MsgType = "regime"
	MsgStatus    MsgType = "status"
)

// Status codes carried by MsgStatus.
const (
	StatusStarted  = "started"
	StatusStopped  = "stopped"
	StatusSelected = "selected"
)

// Message is the universal stream message. Not all fields are used for
// every message type.
type Message struct {
	Type      MsgType
	Timestamp int64 // unix milliseconds
	Reason    string

	// quote, index and directory
	Symbol        string
	Name          string
	Sector        string
	Price         float64
	Change        float64
	ChangePercent float64
	Volume        string
	Volatility    float64
	SectorBias    float64

	// regime
	EventID         string
	Kind            string
	Description     string
	Trend           float64
	Level           string
	Descriptor      string
	Outperformers   []string
	Underperformers []string

	// status
	Status string
}

// Millis converts t to the wire timestamp.
func Millis(t time.Time) int64 {
	return t.UnixMilli()
}

// Directory describes an instrument a client subscribed to.
func Directory(in engine.Instrument, at time.Time) Message {
	return Message{
		Type:       MsgDirectory,
		Timestamp:  Millis(at),
		Symbol:     in.Symbol,
		Name:       in.Name,
		Sector:     string(in.Sector),
		Price:      in.Price,
		Volume:     in.Volume,
		Volatility: in.Volatility,
	}
}

// Quote carries one instrument's state after a refresh.
func Quote(in engine.Instrument, at time.Time, reason string) Message {
	return Message{
		Type:          MsgQuote,
		Timestamp:     Millis(at),
		Reason:        reason,
		Symbol:        in.Symbol,
		Price:         in.Price,
		Change:        in.Change,
		ChangePercent: in.ChangePercent,
		Volume:        in.Volume,
		SectorBias:    in.SectorBias,
	}
}

// IndexValue carries one index's state after a refresh.
func IndexValue(ix engine.Index, at time.Time, reason string) Message {
	return Message{
		Type:          MsgIndex,
		Timestamp:     Millis(at),
		Reason:        reason,
		Name:          ix.Name,
		Price:         ix.Value,
		Change:        ix.Change,
		ChangePercent: ix.ChangePercent,
	}
}

// Regime carries a regime event.
func Regime(ev engine.Event) Message {
	m := Message{
		Type:        MsgRegime,
		Timestamp:   Millis(ev.Time),
		EventID:     ev.ID,
		Kind:        string(ev.Kind),
		Description: ev.Description,
		Volatility:  ev.Volatility,
		Trend:       ev.Trend,
		Level:       engine.ClassifyVolatility(ev.Volatility).String(),
		Descriptor:  engine.ClassifyTrend(ev.Trend).String(),
	}
	for _, s := range ev.Outperformers {
		m.Outperformers = append(m.Outperformers, string(s))
	}
	for _, s := range ev.Underperformers {
		m.Underperformers = append(m.Underperformers, string(s))
	}
	return m
}

// Status carries a simulation lifecycle change or a selection update.
func Status(status, symbol string, at time.Time) Message {
	return Message{Type: MsgStatus, Timestamp: Millis(at), Status: status, Symbol: symbol}
}
