package orders

import "fmt"

// Status is the business outcome of the confirmation.
type Status string

const (
	StatusPendingCall Status = "PENDING_CALL"
	StatusConfirmed   Status = "CONFIRMED"
	StatusDeclined    Status = "DECLINED"
	StatusNoAnswer    Status = "NO_ANSWER"
	StatusExpired     Status = "EXPIRED"
)

// Terminal reports whether no further transition may leave this status.
// NO_ANSWER is not terminal: the retry sweep may reopen it.
func (s Status) Terminal() bool {
	return s == StatusConfirmed || s == StatusDeclined || s == StatusExpired
}

// CallStatus tracks the call leg lifecycle.
type CallStatus string

const (
	CallStatusUnset     CallStatus = ""
	CallStatusPending   CallStatus = "PENDING"
	CallStatusCompleted CallStatus = "COMPLETED"
	CallStatusNoAnswer  CallStatus = "NO_ANSWER"
	CallStatusFailed    CallStatus = "FAILED"
)

// Failed reports whether the leg ended without reaching the customer.
func (c CallStatus) Failed() bool {
	return c == CallStatusNoAnswer || c == CallStatusFailed
}

// State is the joint (Status, CallStatus) pair. Only pairs listed in
// validStates may be persisted.
type State struct {
	Status     Status
	CallStatus CallStatus
}

func (s State) String() string {
	cs := string(s.CallStatus)
	if cs == "" {
		cs = "UNSET"
	}
	return string(s.Status) + "/" + cs
}

var validStates = map[Status][]CallStatus{
	StatusPendingCall: {CallStatusUnset, CallStatusPending, CallStatusCompleted, CallStatusNoAnswer, CallStatusFailed},
	StatusConfirmed:   {CallStatusCompleted},
	StatusDeclined:    {CallStatusCompleted},
	StatusNoAnswer:    {CallStatusNoAnswer, CallStatusFailed},
	StatusExpired:     {CallStatusFailed},
}

// Validate rejects joint states outside the table.
func (s State) Validate() error {
	allowed, ok := validStates[s.Status]
	if !ok {
		return fmt.Errorf("%w: unknown status %q", ErrInvalidState, s.Status)
	}
	for _, cs := range allowed {
		if cs == s.CallStatus {
			return nil
		}
	}
	return fmt.Errorf("%w: %s", ErrInvalidState, s)
}

// Transition is a guarded joint state change. From lists every state the
// change may start from; the store applies it with a conditional update so
// that a concurrent callback that already moved the order makes it a no-op.
// A nil To field keeps the current value.
type Transition struct {
	Name         string
	From         []State
	ToStatus     *Status
	ToCallStatus *CallStatus
}

// Allows reports whether the transition may start from s.
func (t Transition) Allows(s State) bool {
	for _, f := range t.From {
		if f == s {
			return true
		}
	}
	return false
}

// Target returns the state reached from s.
func (t Transition) Target(s State) State {
	out := s
	if t.ToStatus != nil {
		out.Status = *t.ToStatus
	}
	if t.ToCallStatus != nil {
		out.CallStatus = *t.ToCallStatus
	}
	return out
}

// validate checks that every source and every target is a valid joint state.
func (t Transition) validate() error {
	if t.Name == "" || len(t.From) == 0 {
		return fmt.Errorf("transition %q: name and sources are required", t.Name)
	}
	for _, f := range t.From {
		if err := f.Validate(); err != nil {
			return fmt.Errorf("transition %q source: %w", t.Name, err)
		}
		if err := t.Target(f).Validate(); err != nil {
			return fmt.Errorf("transition %q target from %s: %w", t.Name, f, err)
		}
	}
	return nil
}

func mustTransition(t Transition) Transition {
	if err := t.validate(); err != nil {
		panic(err)
	}
	return t
}

func statusPtr(s Status) *Status             { return &s }
func callStatusPtr(c CallStatus) *CallStatus { return &c }

func pendingCall(cs ...CallStatus) []State {
	out := make([]State, 0, len(cs))
	for _, c := range cs {
		out = append(out, State{Status: StatusPendingCall, CallStatus: c})
	}
	return out
}

// liveLeg are the states in which a call leg may still be in progress.
var liveLeg = pendingCall(CallStatusUnset, CallStatusPending, CallStatusCompleted)

// The joint transition table.
var (
	TransitionCallPlaced = mustTransition(Transition{
		Name:         "call_placed",
		From:         liveLeg,
		ToCallStatus: callStatusPtr(CallStatusPending),
	})
	TransitionInvalidNumber = mustTransition(Transition{
		Name:         "invalid_number",
		From:         liveLeg,
		ToStatus:     statusPtr(StatusNoAnswer),
		ToCallStatus: callStatusPtr(CallStatusNoAnswer),
	})
	TransitionTooOld = mustTransition(Transition{
		Name:         "too_old",
		From:         pendingCall(CallStatusUnset, CallStatusPending, CallStatusCompleted, CallStatusNoAnswer, CallStatusFailed),
		ToStatus:     statusPtr(StatusExpired),
		ToCallStatus: callStatusPtr(CallStatusFailed),
	})
	TransitionConfirm = mustTransition(Transition{
		Name:         "confirm",
		From:         liveLeg,
		ToStatus:     statusPtr(StatusConfirmed),
		ToCallStatus: callStatusPtr(CallStatusCompleted),
	})
	TransitionDecline = mustTransition(Transition{
		Name:         "decline",
		From:         liveLeg,
		ToStatus:     statusPtr(StatusDeclined),
		ToCallStatus: callStatusPtr(CallStatusCompleted),
	})
	TransitionReprompt = mustTransition(Transition{
		Name: "reprompt",
		From: liveLeg,
	})
	TransitionNoResponse = mustTransition(Transition{
		Name:         "no_response",
		From:         liveLeg,
		ToStatus:     statusPtr(StatusNoAnswer),
		ToCallStatus: callStatusPtr(CallStatusFailed),
	})
	TransitionLegInProgress = mustTransition(Transition{
		Name:         "leg_in_progress",
		From:         pendingCall(CallStatusUnset, CallStatusPending),
		ToCallStatus: callStatusPtr(CallStatusPending),
	})
	TransitionLegCompleted = mustTransition(Transition{
		Name: "leg_completed",
		From: append(pendingCall(CallStatusUnset, CallStatusPending, CallStatusCompleted),
			State{Status: StatusConfirmed, CallStatus: CallStatusCompleted},
			State{Status: StatusDeclined, CallStatus: CallStatusCompleted},
		),
		ToCallStatus: callStatusPtr(CallStatusCompleted),
	})
	TransitionLegFailed = mustTransition(Transition{
		Name:         "leg_failed",
		From:         pendingCall(CallStatusUnset, CallStatusPending),
		ToStatus:     statusPtr(StatusNoAnswer),
		ToCallStatus: callStatusPtr(CallStatusNoAnswer),
	})
	TransitionRetryAttempted = mustTransition(Transition{
		Name: "retry_attempted",
		From: append(pendingCall(CallStatusNoAnswer, CallStatusFailed),
			State{Status: StatusNoAnswer, CallStatus: CallStatusNoAnswer},
			State{Status: StatusNoAnswer, CallStatus: CallStatusFailed},
		),
		ToStatus:     statusPtr(StatusPendingCall),
		ToCallStatus: callStatusPtr(CallStatusPending),
	})
	TransitionMarkExpired = mustTransition(Transition{
		Name: "mark_expired",
		From: append(pendingCall(CallStatusUnset, CallStatusPending, CallStatusCompleted, CallStatusNoAnswer, CallStatusFailed),
			State{Status: StatusNoAnswer, CallStatus: CallStatusNoAnswer},
			State{Status: StatusNoAnswer, CallStatus: CallStatusFailed},
		),
		ToStatus:     statusPtr(StatusExpired),
		ToCallStatus: callStatusPtr(CallStatusFailed),
	})
)
