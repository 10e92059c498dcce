// Package lifecycle holds the order status machine and turns each status
// change into the set of events and rooms it must be published to.
package lifecycle

import (
	"fmt"

	"github.com/goevery/tracker/internal/ierr"
)

type Status string

const (
	StatusPending        Status = "PENDING"
	StatusConfirmed      Status = "CONFIRMED"
	StatusPreparing      Status = "PREPARING"
	StatusReadyForPickup Status = "READY_FOR_PICKUP"
	StatusOutForDelivery Status = "OUT_FOR_DELIVERY"
	StatusDelivered      Status = "DELIVERED"
	StatusCancelled      Status = "CANCELLED"
)

var transitions = map[Status][]Status{
	StatusPending:        {StatusConfirmed, StatusCancelled},
	StatusConfirmed:      {StatusPreparing, StatusCancelled},
	StatusPreparing:      {StatusReadyForPickup, StatusCancelled},
	StatusReadyForPickup: {StatusOutForDelivery, StatusCancelled},
	StatusOutForDelivery: {StatusDelivered, StatusCancelled},
	StatusDelivered:      nil,
	StatusCancelled:      nil,
}

func ParseStatus(value string) (Status, error) {
	status := Status(value)
	if !status.IsValid() {
		return "", ierr.New(ierr.ErrorCodeInvalidArgument, fmt.Errorf("unknown order status %q", value))
	}

	return status, nil
}

func (s Status) IsValid() bool {
	_, ok := transitions[s]

	return ok
}

func (s Status) IsTerminal() bool {
	return s.IsValid() && len(transitions[s]) == 0
}

func (s Status) CanTransitionTo(next Status) bool {
	for _, allowed := range transitions[s] {
		if allowed == next {
			return true
		}
	}

	return false
}

// ValidateTransition rejects unknown statuses with InvalidArgument and
// transitions missing from the table with FailedPrecondition.
func ValidateTransition(from Status, to Status) error {
	if !from.IsValid() {
		return ierr.New(ierr.ErrorCodeInvalidArgument, fmt.Errorf("unknown order status %q", from))
	}

	if !to.IsValid() {
		return ierr.New(ierr.ErrorCodeInvalidArgument, fmt.Errorf("unknown order status %q", to))
	}

	if !from.CanTransitionTo(to) {
		return ierr.New(ierr.ErrorCodeFailedPrecondition, fmt.Errorf("illegal transition %s -> %s", from, to))
	}

	return nil
}
