package cortex

// Priority is the ordinal importance of a queued request. Higher priority
// requests are dequeued first; requests of equal priority are served in
// submission order.
type Priority int

const (
	PriorityLow      Priority = 1
	PriorityNormal   Priority = 2
	PriorityHigh     Priority = 3
	PriorityCritical Priority = 4
)

// priorityBands is the number of distinct priority levels the queue tracks.
const priorityBands = 4

func (p Priority) String() string {
	switch p {
	case PriorityLow:
		return "low"
	case PriorityNormal:
		return "normal"
	case PriorityHigh:
		return "high"
	case PriorityCritical:
		return "critical"
	default:
		return "unknown"
	}
}

// valid reports whether p is one of the four defined levels.
func (p Priority) valid() bool {
	return p >= PriorityLow && p <= PriorityCritical
}
