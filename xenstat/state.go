package xenstat

// DomainState holds the run-state flags of a domain. The hypervisor normally sets
// only one of them, but nothing here relies on that.
type DomainState struct {
	Running  bool `json:"running"`
	Blocked  bool `json:"blocked"`
	Paused   bool `json:"paused"`
	Shutdown bool `json:"shutdown"`
	Crashed  bool `json:"crashed"`
	Dying    bool `json:"dying"`
}

// libxenstat evaluates each predicate as (state & FLAG) == FLAG.
func decodeState(d DomainData) DomainState {
	return DomainState{
		Running:  d.Running() != 0,
		Blocked:  d.Blocked() != 0,
		Paused:   d.Paused() != 0,
		Shutdown: d.Shutdown() != 0,
		Crashed:  d.Crashed() != 0,
		Dying:    d.Dying() != 0,
	}
}

// Print formats the state like the STATE column of xentop: one character per
// flag in the order dying, shutdown, blocked, crashed, paused, running.
func (s DomainState) Print() string {
	buf := [6]byte{
		flagChar(s.Dying, 'd'),
		flagChar(s.Shutdown, 's'),
		flagChar(s.Blocked, 'b'),
		flagChar(s.Crashed, 'c'),
		flagChar(s.Paused, 'p'),
		flagChar(s.Running, 'r'),
	}
	return string(buf[:])
}

func (s DomainState) String() string {
	return s.Print()
}

func flagChar(set bool, c byte) byte {
	if set {
		return c
	}
	return '-'
}
