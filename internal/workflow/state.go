// Package workflow implements the child-submits, parent-reviews handshake
// layered on the daily log ledger.
package workflow

import "github.com/dukerupert/hearthquest/internal/model"

// State describes where one (child, date) sits in the review handshake.
type State string

const (
	// StateInProgress: at least one mission is still unchecked.
	StateInProgress State = "in_progress"
	// StateAwaitingRequest: every mission is checked but the child has not
	// asked for review yet.
	StateAwaitingRequest State = "awaiting_request"
	// StatePendingParentReview: review requested, no result recorded.
	StatePendingParentReview State = "pending_parent_review"
	// StateDayAccepted: the parent closed the day as a success.
	StateDayAccepted State = "day_accepted"
	// StateDayRejected: the parent closed the day as a failure.
	StateDayRejected State = "day_rejected"
)

// ComputeState derives the workflow state for one child and date from the
// mission list and that day's logs. Pure function: the state is never stored,
// so it can never drift from the ledger.
func ComputeState(missions []model.Mission, logs []model.DailyLog) State {
	byMission := make(map[int64]model.DailyLog, len(logs))
	for _, l := range logs {
		byMission[l.MissionID] = l

		if l.ValidationResult != nil {
			if *l.ValidationResult == model.ResultSuccess {
				return StateDayAccepted
			}
			return StateDayRejected
		}
	}

	for _, l := range logs {
		if l.ValidationRequested {
			return StatePendingParentReview
		}
	}

	if len(missions) == 0 {
		return StateInProgress
	}
	for _, m := range missions {
		l, ok := byMission[m.ID]
		if !ok || !l.ChildCompleted {
			return StateInProgress
		}
	}
	return StateAwaitingRequest
}
