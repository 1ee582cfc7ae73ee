package hub

// Status classifies how a refresh attempt concluded.
type Status int

const (
	// StatusOK: new data landed via the intended path.
	StatusOK Status = iota
	// StatusDegraded: new data landed, but only after silently dropping to
	// a weaker path (delta sync failed, a tier fell over).
	StatusDegraded
	// StatusFailed: no new data; every applicable path failed.
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusDegraded:
		return "degraded"
	case StatusFailed:
		return "failed"
	default:
		return "ok"
	}
}

// Outcome is the typed result of one refresh attempt. Degradations that used
// to vanish into logs are assertable here.
type Outcome struct {
	Status Status
	// Reason names the degradation, e.g. "delta sync failed".
	Reason string
	Err    error
}

func okOutcome() Outcome             { return Outcome{Status: StatusOK} }
func degraded(reason string) Outcome { return Outcome{Status: StatusDegraded, Reason: reason} }
func failed(err error) Outcome       { return Outcome{Status: StatusFailed, Err: err} }
