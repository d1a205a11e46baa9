package attempt

// transitions is the status graph. Monotonic except the Paused⇄InProgress
// cycle; Abandoned/Expired are reachable from any non-terminal state (the
// service drives those through Expire/Abandon rather than this table's
// regular operations).
var transitions = map[Status][]Status{
	StatusNotStarted: {StatusInProgress, StatusAbandoned, StatusExpired},
	StatusInProgress: {StatusPaused, StatusCompleted, StatusAbandoned, StatusExpired},
	StatusPaused:     {StatusInProgress, StatusCompleted, StatusAbandoned, StatusExpired},
}

// CanTransition reports whether from→to is an edge of the status graph.
// Terminal states have no outgoing edges.
func CanTransition(from, to Status) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}
