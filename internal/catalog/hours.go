package catalog

import "time"

// Xetra trading session, local Frankfurt time.
const (
	openMinute  = 9 * 60
	closeMinute = 17*60 + 30
)

var frankfurt = loadFrankfurt()

func loadFrankfurt() *time.Location {
	loc, err := time.LoadLocation("Europe/Berlin")
	if err != nil {
		// tzdata missing: CET is close enough for a simulated session.
		return time.FixedZone("CET", 3600)
	}
	return loc
}

// MarketStatus describes the trading session relative to a point in time.
type MarketStatus struct {
	Open      bool      `json:"open"`
	LocalTime time.Time `json:"localTime"`
	NextOpen  time.Time `json:"nextOpen"`
	NextClose time.Time `json:"nextClose"`
}

// IsMarketOpen reports whether t falls inside the weekday trading session.
func IsMarketOpen(t time.Time) bool {
	lt := t.In(frankfurt)
	if lt.Weekday() == time.Saturday || lt.Weekday() == time.Sunday {
		return false
	}
	m := lt.Hour()*60 + lt.Minute()
	return m >= openMinute && m < closeMinute
}

// Status returns the session state at t along with the next open and close.
func Status(t time.Time) MarketStatus {
	lt := t.In(frankfurt)
	st := MarketStatus{Open: IsMarketOpen(t), LocalTime: lt}

	day := time.Date(lt.Year(), lt.Month(), lt.Day(), 0, 0, 0, 0, frankfurt)
	for i := 0; i < 8; i++ {
		d := day.AddDate(0, 0, i)
		if d.Weekday() == time.Saturday || d.Weekday() == time.Sunday {
			continue
		}
		open := d.Add(openMinute * time.Minute)
		cls := d.Add(closeMinute * time.Minute)
		if st.NextOpen.IsZero() && open.After(lt) {
			st.NextOpen = open
		}
		if st.NextClose.IsZero() && cls.After(lt) {
			st.NextClose = cls
		}
		if !st.NextOpen.IsZero() && !st.NextClose.IsZero() {
			break
		}
	}
	return st
}
