package pipeline

// State is the stage an upload is in.
type State string

const (
	StateIdle       State = "Idle"
	StateExtracting State = "Extracting"
	StateScoring    State = "Scoring"
	StateEnriching  State = "Enriching"
	StateMerging    State = "Merging"
	StateDone       State = "Done"
	StateFailed     State = "Failed"
)

// Terminal reports whether no further transition follows.
func (s State) Terminal() bool {
	return s == StateDone || s == StateFailed
}
