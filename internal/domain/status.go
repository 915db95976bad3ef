package domain

import "fmt"

// DataStatus is the lifecycle status shared by movies, movie info records and contributions.
type DataStatus string

const (
	StatusWaiting           DataStatus = "WAITING"
	StatusAccepted          DataStatus = "ACCEPTED"
	StatusRejected          DataStatus = "REJECTED"
	StatusEdited            DataStatus = "EDITED"
	StatusDeleted           DataStatus = "DELETED"
	StatusAmendmentAccepted DataStatus = "AMENDMENT_ACCEPTED"
)

// AllStatuses lists every status in declaration order.
var AllStatuses = []DataStatus{
	StatusWaiting,
	StatusAccepted,
	StatusRejected,
	StatusEdited,
	StatusDeleted,
	StatusAmendmentAccepted,
}

// Valid reports whether s is a known status.
func (s DataStatus) Valid() bool {
	for _, known := range AllStatuses {
		if s == known {
			return true
		}
	}
	return false
}

// Terminal reports whether no moderator action can move s any further.
func (s DataStatus) Terminal() bool {
	return s != StatusWaiting && s.Valid()
}

// CanTransition reports whether a moderator action may move a record from one status to another.
// Every transition leaves WAITING and none is reversible.
func CanTransition(from, to DataStatus) bool {
	return from == StatusWaiting && to.Terminal()
}

// Transition returns the target status or an ErrState error when the move is not allowed.
func Transition(from, to DataStatus) (DataStatus, error) {
	if !CanTransition(from, to) {
		return from, fmt.Errorf("%w: cannot move from %s to %s", ErrState, from, to)
	}
	return to, nil
}

// ParseDataStatus converts a raw string (for example a query parameter) into a DataStatus.
func ParseDataStatus(raw string) (DataStatus, error) {
	s := DataStatus(raw)
	if !s.Valid() {
		return "", fmt.Errorf("%w: unknown status %q", ErrValidation, raw)
	}
	return s, nil
}

// Decision is a moderator verdict on a WAITING movie or contribution.
type Decision string

const (
	DecisionAccept Decision = "ACCEPT"
	DecisionReject Decision = "REJECT"
)

// Valid reports whether d is ACCEPT or REJECT.
func (d Decision) Valid() bool {
	return d == DecisionAccept || d == DecisionReject
}
