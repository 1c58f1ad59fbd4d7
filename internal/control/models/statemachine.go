package models

// ValidTransitions is the task state machine. Dependency enforcement is a
// separate check applied only when entering in_progress; merging can fall
// back to in_progress only when a merge fails.
var ValidTransitions = map[TaskStatus][]TaskStatus{
	TaskStatusTodo:       {TaskStatusInProgress, TaskStatusCancelled},
	TaskStatusInProgress: {TaskStatusInReview, TaskStatusTodo, TaskStatusCancelled},
	TaskStatusInReview:   {TaskStatusInApproval, TaskStatusInProgress, TaskStatusCancelled},
	TaskStatusInApproval: {TaskStatusMerging, TaskStatusInProgress, TaskStatusCancelled},
	TaskStatusMerging:    {TaskStatusDone, TaskStatusInProgress},
	TaskStatusDone:       {},
	TaskStatusCancelled:  {},
}

// CanTransition reports whether from→to is an edge of the state machine.
func CanTransition(from, to TaskStatus) bool {
	for _, allowed := range ValidTransitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

// AllowedTransitions returns the states reachable from the given status.
func AllowedTransitions(from TaskStatus) []TaskStatus {
	return ValidTransitions[from]
}

// ValidStatus reports whether s is a known task status.
func ValidStatus(s TaskStatus) bool {
	_, ok := ValidTransitions[s]
	return ok
}

// TerminalStatus reports whether s is a sink state.
func TerminalStatus(s TaskStatus) bool {
	return s == TaskStatusDone || s == TaskStatusCancelled
}
