package arena

// Stats is a snapshot of arena usage.
type Stats struct {
	SizeInUse   int     // Bytes consumed, including headers and padding
	Capacity    int     // Total capacity in bytes
	Remaining   int     // RemainingCapacity of the arena currently allocated from
	NumArenas   int     // Number of arenas
	NumSlots    int     // Number of live allocations
	Utilization float64 // Ratio of used to total capacity (0.0-1.0)
}

func utilization(used, capacity int) float64 {
	if capacity == 0 {
		return 0
	}
	return float64(used) / float64(capacity)
}
