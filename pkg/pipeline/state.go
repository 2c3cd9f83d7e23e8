package pipeline

// State is a step of a pipeline run.
type State int

const (
	StateOpening State = iota
	StateStreamSelecting
	StateDecoderOpening
	StateRunning
	StateDraining
	StateClosed
	StateFailed
)

var stateNames = [...]string{
	StateOpening:         "opening",
	StateStreamSelecting: "stream-selecting",
	StateDecoderOpening:  "decoder-opening",
	StateRunning:         "running",
	StateDraining:        "draining",
	StateClosed:          "closed",
	StateFailed:          "failed",
}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return "unknown"
	}
	return stateNames[s]
}
