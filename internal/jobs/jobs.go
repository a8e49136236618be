// Package jobs models the lifecycle of a tag enrichment job.
//
//	pending ──► running ──► done
//	                   └──► failed
//
// done and failed are terminal. There is no automatic retry: a failed job stays
// failed, and Attempts is exposed for any external retry policy to read.
package jobs

import "fmt"

// Status is the lifecycle state of a TagJob.
type Status string

const (
	StatusPending Status = "pending"
	StatusRunning Status = "running"
	StatusDone    Status = "done"
	StatusFailed  Status = "failed"
)

// allowedTransitions lists the legal next states for each status.
var allowedTransitions = map[Status][]Status{
	StatusPending: {StatusRunning},
	StatusRunning: {StatusDone, StatusFailed},
}

// ParseStatus parses a persisted status string.
func ParseStatus(s string) (Status, error) {
	switch st := Status(s); st {
	case StatusPending, StatusRunning, StatusDone, StatusFailed:
		return st, nil
	}
	return "", fmt.Errorf("unknown job status %q", s)
}

// Terminal reports whether no transition leaves s.
func (s Status) Terminal() bool {
	return s == StatusDone || s == StatusFailed
}

// CanTransition reports whether from -> to is a legal state change.
func CanTransition(from, to Status) bool {
	for _, next := range allowedTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// TagJob is one unit of asynchronous tag enrichment for a bookmark.
type TagJob struct {
	ID         string `json:"id"`
	BookmarkID string `json:"bookmark_id"`
	Status     Status `json:"status"`
	Attempts   int    `json:"attempts"`
	CreatedAt  int64  `json:"created_at"`
	UpdatedAt  int64  `json:"updated_at"`
}
