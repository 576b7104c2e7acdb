package domain

import "time"

// Event bus topics.
const (
	EventTopicTransition  = "lifecycle:transition"
	EventTopicSweep       = "lifecycle:sweep"
	EventTopicSweepFailed = "lifecycle:sweep_failed"
	EventTopicRestore     = "lifecycle:restore"
)

type TransitionEvent struct {
	Kind     EntityKind     `json:"kind"`
	ID       string         `json:"id"`
	From     LifecycleState `json:"from"`
	To       LifecycleState `json:"to"`
	CallerID string         `json:"caller_id,omitempty"`
	At       time.Time      `json:"at"`
}

type SweepEvent struct {
	Job      string     `json:"job"`
	Kind     EntityKind `json:"kind"`
	Affected int64      `json:"affected"`
	Cutoff   time.Time  `json:"cutoff"`
	Error    string     `json:"error,omitempty"`
	At       time.Time  `json:"at"`
}

type RestoreEvent struct {
	TaskID    string    `json:"task_id"`
	AccountID string    `json:"account_id"`
	Restored  int64     `json:"restored"`
	Skipped   int64     `json:"skipped"`
	Error     string    `json:"error,omitempty"`
	At        time.Time `json:"at"`
}
