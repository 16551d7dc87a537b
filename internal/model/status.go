package model

import "fmt"

const (
	StatusPending    = "pending"
	StatusPulling    = "pulling"
	StatusRendering  = "rendering"
	StatusRendered   = "rendered"
	StatusPublishing = "publishing"
	StatusPublished  = "published"
	StatusSkipped    = "skipped"
	StatusFailed     = "failed"
)

var allowedTransitions = map[string]map[string]bool{
	"": {
		StatusPending: true,
		StatusSkipped: true,
	},
	StatusPending: {
		StatusPulling: true,
		StatusSkipped: true,
		StatusFailed:  true,
	},
	StatusPulling: {
		StatusRendering: true,
		StatusSkipped:   true, // eligibility decided after pull+scan
		StatusFailed:    true,
	},
	StatusRendering: {
		StatusRendered: true,
		StatusFailed:   true,
	},
	StatusRendered: {
		StatusPublishing: true,
		StatusRendered:   true, // publish disabled for this run
	},
	StatusPublishing: {
		StatusPublished: true,
		StatusRendered:  true, // publish failed, render result stands
	},
	StatusPublished: {},
	StatusSkipped:   {},
	StatusFailed:    {},
}

func IsKnownStatus(status string) bool {
	_, ok := allowedTransitions[status]
	return ok
}

func CanTransition(from, to string) bool {
	next, ok := allowedTransitions[from]
	if !ok {
		return false
	}
	return next[to]
}

func TransitionOutcome(o *ProjectOutcome, toStatus string, reason string) error {
	from := o.Status
	if !CanTransition(from, toStatus) {
		return fmt.Errorf("invalid project status transition: %q -> %q (project=%s)", from, toStatus, o.Name)
	}
	o.Status = toStatus
	o.Reason = reason
	return nil
}
