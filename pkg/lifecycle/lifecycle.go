// Package lifecycle holds the application status machine: the six statuses,
// which action may run from which status, and the guard used before writes.
package lifecycle

import (
	"fmt"
	"strings"

	"cashadvance/pkg/apperr"
)

type Status string

const (
	Pending   Status = "PENDING"
	Approved  Status = "APPROVED"
	Rejected  Status = "REJECTED"
	Disbursed Status = "DISBURSED"
	Repaid    Status = "REPAID"
	Cancelled Status = "CANCELLED"
)

// AutoApprover is recorded as approvedBy when an application is approved on creation.
const AutoApprover = "Auto-System"

var all = []Status{Pending, Approved, Rejected, Disbursed, Repaid, Cancelled}

// Statuses returns every status in lifecycle order.
func Statuses() []Status {
	out := make([]Status, len(all))
	copy(out, all)
	return out
}

func (s Status) Valid() bool {
	for _, v := range all {
		if s == v {
			return true
		}
	}
	return false
}

func (s Status) IsTerminal() bool {
	return s == Repaid || s == Cancelled || s == Rejected
}

// Parse accepts a status name in any case.
func Parse(v string) (Status, error) {
	s := Status(strings.ToUpper(strings.TrimSpace(v)))
	if !s.Valid() {
		return "", apperr.Validation(fmt.Sprintf("unknown status %q", v))
	}
	return s, nil
}

type Action string

const (
	Approve  Action = "approve"
	Update   Action = "update"
	Disburse Action = "disburse"
	Repay    Action = "repay"
	Cancel   Action = "cancel"
	Reject   Action = "reject"
)

type rule struct {
	from []Status
	to   Status
}

var rules = map[Action]rule{
	Approve:  {from: []Status{Pending}, to: Approved},
	Update:   {from: []Status{Pending}, to: Pending},
	Disburse: {from: []Status{Approved}, to: Disbursed},
	Repay:    {from: []Status{Disbursed}, to: Repaid},
	Cancel:   {from: []Status{Pending}, to: Cancelled},
	Reject:   {from: []Status{Pending, Approved}, to: Rejected},
}

// Allowed returns the statuses the action may start from.
func Allowed(a Action) []Status {
	r, ok := rules[a]
	if !ok {
		return nil
	}
	out := make([]Status, len(r.from))
	copy(out, r.from)
	return out
}

// Target returns the status an action moves to.
func Target(a Action) Status {
	return rules[a].to
}

// Check is the guard evaluated against the current status before any write.
// Edits of a non-pending application are validation failures; every other
// refused action is a state failure.
func Check(a Action, current Status) error {
	r, ok := rules[a]
	if !ok {
		return apperr.Internal(fmt.Errorf("unknown lifecycle action %q", a))
	}
	for _, s := range r.from {
		if s == current {
			return nil
		}
	}
	if a == Update {
		return apperr.Validation(fmt.Sprintf("application can only be updated while %s (current status %s)", Pending, current))
	}
	return apperr.State(fmt.Sprintf("cannot %s application in status %s", a, current))
}
