package task

import "fmt"

// Status is the lifecycle state reported by the backend for a pipeline.
type Status string

const (
	// StatusNew is a submitted pipeline that has not started.
	StatusNew        Status = "NEW"
	StatusProcessing Status = "PROCESSING"
	StatusResolved   Status = "RESOLVED"
	StatusFailed     Status = "FAILED"
)

// ParseStatus validates a status string from the backend.
func ParseStatus(s string) (Status, error) {
	switch st := Status(s); st {
	case StatusNew, StatusProcessing, StatusResolved, StatusFailed:
		return st, nil
	default:
		return "", fmt.Errorf("unknown pipeline status %q", s)
	}
}

// Terminal reports whether no further transitions can happen.
func (s Status) Terminal() bool {
	return s == StatusResolved || s == StatusFailed
}

func (s Status) String() string {
	return string(s)
}
