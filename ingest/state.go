package ingest

import "fmt"

type State int

const (
	StateIdle State = iota
	StateFetching
	StateParsing
	StateNormalizing
	StateWriting
	StateDone
	StateFailed
	StateCancelled
)

var stateNames = [...]string{
	StateIdle:        "idle",
	StateFetching:    "fetching",
	StateParsing:     "parsing",
	StateNormalizing: "normalizing",
	StateWriting:     "writing",
	StateDone:        "done",
	StateFailed:      "failed",
	StateCancelled:   "cancelled",
}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return "unknown"
	}
	return stateNames[s]
}

func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *State) UnmarshalText(text []byte) error {
	for i, name := range stateNames {
		if name == string(text) {
			*s = State(i)
			return nil
		}
	}
	return fmt.Errorf("unknown run state %q", text)
}

// IsTerminal reports whether a run in state s has finished.
func (s State) IsTerminal() bool {
	return s == StateDone || s == StateFailed || s == StateCancelled
}
