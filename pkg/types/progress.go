package types

import "time"

// Progress is one indexing progress publication
type Progress struct {
	// FilesQueued is the running count of files observed in flight
	FilesQueued  int       `json:"files_queued"`
	IndexedCount int       `json:"indexed_count"`
	TotalCount   int       `json:"total_count"`
	Percent      int       `json:"percent"`
	InFlight     []string  `json:"in_flight,omitempty"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// ComputePercent returns indexed*100/total, or 0 when total is 0
func ComputePercent(indexed, total int) int {
	if total <= 0 {
		return 0
	}
	return indexed * 100 / total
}
