package rating

import "time"

// Period is one fixed-length rating window. Matches processed while a
// period is active tag the resulting states with its id so external
// persistence can group rating history by period boundary.
type Period struct {
	ID          string     `json:"period_id"`
	Description string     `json:"description,omitempty"`
	StartedAt   time.Time  `json:"started_at"`
	EndedAt     *time.Time `json:"ended_at,omitempty"`
}

// Periods is the rating-period bookkeeper. It is a plain value owned by a
// single caller; like the rest of the engine it provides no synchronization
// of its own.
type Periods struct {
	list    []Period
	current int // index into list, -1 when no period is active
}

func NewPeriods() *Periods {
	return &Periods{current: -1}
}

// Start opens a new period and makes it current. Reusing an existing id is
// rejected so history stays unambiguous.
func (p *Periods) Start(id, description string) (Period, error) {
	for _, pd := range p.list {
		if pd.ID == id {
			return Period{}, ErrPeriodExists
		}
	}
	pd := Period{ID: id, Description: description, StartedAt: time.Now().UTC()}
	p.list = append(p.list, pd)
	p.current = len(p.list) - 1
	return pd, nil
}

// End closes the named period. Ending the current period leaves no period
// active.
func (p *Periods) End(id string) (Period, error) {
	for i := range p.list {
		if p.list[i].ID != id {
			continue
		}
		now := time.Now().UTC()
		p.list[i].EndedAt = &now
		if p.current == i {
			p.current = -1
		}
		return p.list[i], nil
	}
	return Period{}, ErrPeriodMissing
}

// Current returns the active period, if any.
func (p *Periods) Current() (Period, bool) {
	if p.current < 0 {
		return Period{}, false
	}
	return p.list[p.current], true
}

// Tag stamps s with the active period id. With no active period the state
// passes through unchanged.
func (p *Periods) Tag(s State) State {
	if cur, ok := p.Current(); ok {
		s.PeriodID = cur.ID
	}
	return s
}

// List returns a copy of all known periods in creation order.
func (p *Periods) List() []Period {
	out := make([]Period, len(p.list))
	copy(out, p.list)
	return out
}
