package domain

import "time"

type SweepKindResult struct {
	Kind     EntityKind `json:"kind"`
	Affected int64      `json:"affected"`
	Error    string     `json:"error,omitempty"`
}

// SweepReport is the outcome of one cascade or purge run.
type SweepReport struct {
	Job       string            `json:"job"`
	Cutoff    time.Time         `json:"cutoff"`
	StartedAt time.Time         `json:"started_at"`
	Duration  time.Duration     `json:"duration"`
	Kinds     []SweepKindResult `json:"kinds"`
}

func (r SweepReport) Affected() int64 {
	var n int64
	for _, k := range r.Kinds {
		n += k.Affected
	}
	return n
}

func (r SweepReport) Failed() bool {
	for _, k := range r.Kinds {
		if k.Error != "" {
			return true
		}
	}
	return false
}
