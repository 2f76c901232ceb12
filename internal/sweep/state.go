package sweep

// State is the position of a Controller in its per-step cycle:
//
//	Idle → Capturing → Analyzing → Extracting → Accumulated → (Capturing | Done)
type State int32

const (
	StateIdle State = iota
	StateCapturing
	StateAnalyzing
	StateExtracting
	StateAccumulated
	StateDone
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateCapturing:
		return "capturing"
	case StateAnalyzing:
		return "analyzing"
	case StateExtracting:
		return "extracting"
	case StateAccumulated:
		return "accumulated"
	case StateDone:
		return "done"
	default:
		return "unknown"
	}
}

// Observer is notified of every state transition. step is the zero-based
// step index, or -1 for Idle and Done.
type Observer func(state State, step int, frequency float64)
