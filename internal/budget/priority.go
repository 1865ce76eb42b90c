package budget

// Priority orders work by how badly the colony needs it this tick. Callers
// pass one of these tokens to ShouldRun before doing anything expensive.
type Priority uint8

const (
	// Critical work always runs. Reserved for operations whose omission
	// causes systemic collapse, e.g. producing the first worker.
	Critical Priority = iota
	High
	Medium
	Low
)

func (p Priority) String() string {
	switch p {
	case Critical:
		return "critical"
	case High:
		return "high"
	case Medium:
		return "medium"
	case Low:
		return "low"
	}
	return "unknown"
}
