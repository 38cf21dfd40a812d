package domain

// JobState represents the current state of a Job.
type JobState string

const (
	JobStateQueued      JobState = "queued"
	JobStateResolving   JobState = "resolving"
	JobStateDownloading JobState = "downloading"
	JobStateMerging     JobState = "merging"
	JobStateCompleted   JobState = "completed"
	JobStateFailed      JobState = "failed"
)

var stateOrder = map[JobState]int{
	JobStateQueued:      0,
	JobStateResolving:   1,
	JobStateDownloading: 2,
	JobStateMerging:     3,
	JobStateCompleted:   4,
}

// IsTerminal reports whether no further transitions are possible from s.
func (s JobState) IsTerminal() bool {
	return s == JobStateCompleted || s == JobStateFailed
}

// CanTransition reports whether a Job may move from one state to another.
// Transitions only go forward one step at a time; Failed is reachable from
// any active (resolving, downloading, merging) state.
func CanTransition(from, to JobState) bool {
	if from.IsTerminal() {
		return false
	}
	if to == JobStateFailed {
		return from != JobStateQueued
	}
	f, ok1 := stateOrder[from]
	t, ok2 := stateOrder[to]
	return ok1 && ok2 && t == f+1
}

// Phase is the label carried by a StatusEvent.
type Phase string

const (
	PhaseQueued      Phase = "queued"
	PhaseResolving   Phase = "resolving"
	PhaseDownloading Phase = "downloading"
	PhaseMerging     Phase = "merging"
	PhaseCompleted   Phase = "completed"
	PhaseFailed      Phase = "failed"
)
