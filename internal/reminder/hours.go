package reminder

import "time"

// Gate allows a run only while the local hour is in [StartHour, EndHour).
type Gate struct {
	StartHour int
	EndHour   int
	Location  *time.Location
}

func DefaultGate(loc *time.Location) Gate {
	return Gate{StartHour: 8, EndHour: 19, Location: loc}
}

func (g Gate) Allowed(t time.Time) bool {
	if g.Location != nil {
		t = t.In(g.Location)
	}

	h := t.Hour()

	return h >= g.StartHour && h < g.EndHour
}
