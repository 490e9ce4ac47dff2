package domain

import "time"

type RunState string

const (
	RunStateRunning   RunState = "running"
	RunStateCompleted RunState = "completed"
	RunStatePartial   RunState = "partial"
	RunStateFailed    RunState = "failed"
)

// one recorded problem inside an otherwise surviving run
type RunFailure struct {
	Stage  string `json:"stage"`
	Unit   string `json:"unit"`
	Reason string `json:"reason"`
}

// RunSummary is the side channel for the asynchronous trigger: the caller
// gets a run ID back immediately and reads this record for completion.
type RunSummary struct {
	RunID              string       `json:"run_id"`
	State              RunState     `json:"state"`
	RangeStart         time.Time    `json:"range_start"`
	RangeEnd           time.Time    `json:"range_end"`
	RowsFetched        int          `json:"rows_fetched"`
	RowsMerged         int          `json:"rows_merged"`
	WindowsFailed      int          `json:"windows_failed"`
	ThumbnailsResolved int          `json:"thumbnails_resolved"`
	ThumbnailsMissing  int          `json:"thumbnails_missing"`
	RecordsWritten     int          `json:"records_written"`
	RecordsFailed      int          `json:"records_failed"`
	Failures           []RunFailure `json:"failures,omitempty"`
	StartedAt          time.Time    `json:"started_at"`
	FinishedAt         *time.Time   `json:"finished_at,omitempty"`
}

func (s *RunSummary) AddFailure(stage, unit, reason string) {
	s.Failures = append(s.Failures, RunFailure{Stage: stage, Unit: unit, Reason: reason})
}
