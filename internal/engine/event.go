package engine

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ndrandal/marketsim/internal/catalog"
)

// EventKind identifies a regime transition.
type EventKind string

const (
	EventShock           EventKind = "volatility_shock"
	EventShockDecay      EventKind = "shock_decay"
	EventReversal        EventKind = "trend_reversal"
	EventVolatilityShift EventKind = "volatility_shift"
	EventSectorRotation  EventKind = "sector_rotation"
	EventFlashCrash      EventKind = "flash_crash"
	EventFlashRecovery   EventKind = "flash_recovery"
)

var triggerNames = map[string]EventKind{
	"shock":            EventShock,
	"reversal":         EventReversal,
	"volatility-shift": EventVolatilityShift,
	"rotation":         EventSectorRotation,
	"flash-crash":      EventFlashCrash,
}

// ParseTrigger maps a short trigger name ("shock", "reversal",
// "volatility-shift", "rotation", "flash-crash") or a full event kind onto
// a kind that can be triggered manually.
func ParseTrigger(name string) (EventKind, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	if k, ok := triggerNames[name]; ok {
		return k, nil
	}
	for _, k := range triggerNames {
		if string(k) == name {
			return k, nil
		}
	}
	return "", fmt.Errorf("unknown trigger %q", name)
}

// Event is an entry in the regime log.
type Event struct {
	ID              string           `json:"id"`
	Kind            EventKind        `json:"kind"`
	Time            time.Time        `json:"time"`
	Description     string           `json:"description"`
	Volatility      float64          `json:"volatility"`
	Trend           float64          `json:"trend"`
	Outperformers   []catalog.Sector `json:"outperformers,omitempty"`
	Underperformers []catalog.Sector `json:"underperformers,omitempty"`
}

func newEvent(kind EventKind, at time.Time, desc string, st RegimeState) Event {
	return Event{
		ID:          uuid.NewString(),
		Kind:        kind,
		Time:        at,
		Description: desc,
		Volatility:  st.Volatility,
		Trend:       st.Trend,
	}
}
