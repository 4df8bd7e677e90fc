package wire

import (
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"
)

// Prices travel as strings carrying the precision the engine rounds to:
// three decimals below 10, two otherwise.

// EncodeJSON encodes a Message into JSON bytes.
func EncodeJSON(m *Message) ([]byte, error) {
	obj := msgToMap(m)
	if obj == nil {
		return nil, fmt.Errorf("unsupported message type: %q", m.Type)
	}
	return json.Marshal(obj)
}

func msgToMap(m *Message) map[string]any {
	switch m.Type {
	case MsgDirectory:
		return map[string]any{
			"type":       string(m.Type),
			"timestamp":  m.Timestamp,
			"symbol":     m.Symbol,
			"name":       m.Name,
			"sector":     m.Sector,
			"price":      FormatPrice(m.Price),
			"volume":     m.Volume,
			"volatility": m.Volatility,
		}

	case MsgQuote:
		return map[string]any{
			"type":          string(m.Type),
			"timestamp":     m.Timestamp,
			"reason":        m.Reason,
			"symbol":        m.Symbol,
			"price":         FormatPrice(m.Price),
			"change":        formatChange(m.Change, m.Price),
			"changePercent": m.ChangePercent,
			"volume":        m.Volume,
			"sectorBias":    m.SectorBias,
		}

	case MsgIndex:
		return map[string]any{
			"type":          string(m.Type),
			"timestamp":     m.Timestamp,
			"reason":        m.Reason,
			"name":          m.Name,
			"value":         FormatPrice(m.Price),
			"change":        formatChange(m.Change, m.Price),
			"changePercent": m.ChangePercent,
		}

	case MsgRegime:
		obj := map[string]any{
			"type":        string(m.Type),
			"timestamp":   m.Timestamp,
			"id":          m.EventID,
			"kind":        m.Kind,
			"description": m.Description,
			"volatility":  m.Volatility,
			"trend":       m.Trend,
			"level":       m.Level,
			"descriptor":  m.Descriptor,
		}
		if len(m.Outperformers) > 0 || len(m.Underperformers) > 0 {
			obj["outperformers"] = m.Outperformers
			obj["underperformers"] = m.Underperformers
		}
		return obj

	case MsgStatus:
		return map[string]any{
			"type":      string(m.Type),
			"timestamp": m.Timestamp,
			"status":    m.Status,
			"symbol":    m.Symbol,
		}
	}
	return nil
}

// jsonMessage is the union of every field EncodeJSON writes.
type jsonMessage struct {
	Type            MsgType  `json:"type"`
	Timestamp       int64    `json:"timestamp"`
	Reason          string   `json:"reason"`
	Symbol          string   `json:"symbol"`
	Name            string   `json:"name"`
	Sector          string   `json:"sector"`
	Price           string   `json:"price"`
	Value           string   `json:"value"`
	Change          string   `json:"change"`
	ChangePercent   float64  `json:"changePercent"`
	Volume          string   `json:"volume"`
	Volatility      float64  `json:"volatility"`
	SectorBias      float64  `json:"sectorBias"`
	ID              string   `json:"id"`
	Kind            string   `json:"kind"`
	Description     string   `json:"description"`
	Trend           float64  `json:"trend"`
	Level           string   `json:"level"`
	Descriptor      string   `json:"descriptor"`
	Outperformers   []string `json:"outperformers"`
	Underperformers []string `json:"underperformers"`
	Status          string   `json:"status"`
}

// DecodeJSON parses a message produced by EncodeJSON.
func DecodeJSON(data []byte) (*Message, error) {
	var j jsonMessage
	if err := json.Unmarshal(data, &j); err != nil {
		return nil, fmt.Errorf("decode message: %w", err)
	}
	m := &Message{
		Type:            j.Type,
		Timestamp:       j.Timestamp,
		Reason:          j.Reason,
		Symbol:          j.Symbol,
		Name:            j.Name,
		Sector:          j.Sector,
		ChangePercent:   j.ChangePercent,
		Volume:          j.Volume,
		Volatility:      j.Volatility,
		SectorBias:      j.SectorBias,
		EventID:         j.ID,
		Kind:            j.Kind,
		Description:     j.Description,
		Trend:           j.Trend,
		Level:           j.Level,
		Descriptor:      j.Descriptor,
		Outperformers:   j.Outperformers,
		Underperformers: j.Underperformers,
		Status:          j.Status,
	}

	var err error
	switch m.Type {
	case MsgDirectory, MsgQuote:
		m.Price, err = parseNumber(j.Price)
	case MsgIndex:
		m.Price, err = parseNumber(j.Value)
	case MsgRegime, MsgStatus:
	default:
		return nil, fmt.Errorf("unsupported message type: %q", j.Type)
	}
	if err != nil {
		return nil, fmt.Errorf("decode %s price: %w", m.Type, err)
	}
	if j.Change != "" {
		if m.Change, err = parseNumber(j.Change); err != nil {
			return nil, fmt.Errorf("decode %s change: %w", m.Type, err)
		}
	}
	return m, nil
}

func places(price float64) int32 {
	if price < 10 {
		return 3
	}
	return 2
}

// FormatPrice renders a price with three decimals below 10 and two otherwise.
func FormatPrice(price float64) string {
	return decimal.NewFromFloat(price).StringFixed(places(price))
}

// formatChange uses the precision of the price the change belongs to.
func formatChange(change, price float64) string {
	return decimal.NewFromFloat(change).StringFixed(places(price))
}

func parseNumber(s string) (float64, error) {
	if s == "" {
		return 0, nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, err
	}
	f, _ := d.Float64()
	return f, nil
}
