package domain

import (
	"errors"
	"fmt"
	"time"
)

type FlowState string

const (
	FlowIdle                 FlowState = "IDLE"
	FlowCreatingCheckout     FlowState = "CREATING_CHECKOUT"
	FlowPlacingOrder         FlowState = "PLACING_ORDER"
	FlowAwaitingAvailability FlowState = "AWAITING_AVAILABILITY"
	FlowRedirecting          FlowState = "REDIRECTING_TO_GATEWAY"
	FlowPollingPayment       FlowState = "POLLING_PAYMENT_STATUS"
	FlowSucceeded            FlowState = "SUCCEEDED"
	FlowFailed               FlowState = "FAILED"
	FlowTimedOut             FlowState = "TIMED_OUT"
	// FlowUnconfirmed: the order was created but never became readable.
	FlowUnconfirmed FlowState = "UNCONFIRMED"
)

var transitions = map[FlowState][]FlowState{
	FlowIdle:                 {FlowCreatingCheckout, FlowPlacingOrder, FlowPollingPayment},
	FlowCreatingCheckout:     {FlowPlacingOrder, FlowFailed},
	FlowPlacingOrder:         {FlowAwaitingAvailability, FlowFailed},
	FlowAwaitingAvailability: {FlowSucceeded, FlowRedirecting, FlowUnconfirmed, FlowFailed},
	FlowRedirecting:          {FlowPollingPayment, FlowFailed, FlowIdle},
	FlowPollingPayment:       {FlowSucceeded, FlowFailed, FlowTimedOut},
	FlowSucceeded:            {FlowIdle},
	FlowFailed:               {FlowIdle, FlowRedirecting},
	FlowTimedOut:             {FlowIdle, FlowPollingPayment, FlowRedirecting},
	FlowUnconfirmed:          {FlowIdle},
}

func (s FlowState) IsTerminal() bool {
	switch s {
	case FlowSucceeded, FlowFailed, FlowTimedOut, FlowUnconfirmed:
		return true
	}
	return false
}

// IsBusy reports whether a flow step is in progress.
func (s FlowState) IsBusy() bool {
	switch s {
	case FlowCreatingCheckout, FlowPlacingOrder, FlowAwaitingAvailability, FlowPollingPayment:
		return true
	}
	return false
}

func (s FlowState) CanTransitionTo(next FlowState) bool {
	for _, allowed := range transitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// View names the screen a UI should show for the state.
func (s FlowState) View() string {
	switch s {
	case FlowSucceeded:
		return "order-success"
	case FlowFailed:
		return "payment-failed"
	case FlowTimedOut, FlowUnconfirmed:
		return "orders"
	case FlowRedirecting:
		return "gateway"
	case FlowPollingPayment:
		return "payment-confirmation"
	default:
		return "checkout"
	}
}

func (s FlowState) String() string {
	return string(s)
}

var ErrIllegalTransition = errors.New("illegal flow transition")

type TransitionError struct {
	From   FlowState
	To     FlowState
	Reason string
}

func (e *TransitionError) Error() string {
	if e.Reason == "" {
		return fmt.Sprintf("illegal flow transition %s -> %s", e.From, e.To)
	}
	return fmt.Sprintf("illegal flow transition %s -> %s: %s", e.From, e.To, e.Reason)
}

func (e *TransitionError) Unwrap() error {
	return ErrIllegalTransition
}

// Flow is a snapshot of one checkout attempt.
type Flow struct {
	State         FlowState     `json:"state"`
	View          string        `json:"view"`
	CheckoutID    string        `json:"checkoutId,omitempty"`
	OrderID       int64         `json:"orderId,omitempty"`
	PaymentMethod PaymentMethod `json:"paymentMethod,omitempty"`
	RedirectURL   string        `json:"redirectUrl,omitempty"`
	Reason        string        `json:"reason,omitempty"`
	Details       []string      `json:"details,omitempty"`
	Attempts      int           `json:"attempts,omitempty"`
	UpdatedAt     time.Time     `json:"updatedAt"`
}

func NewFlow() Flow {
	return Flow{State: FlowIdle, View: FlowIdle.View(), UpdatedAt: time.Now()}
}

// Event requests a transition. Zero-valued fields keep the current value.
type Event struct {
	To            FlowState
	CheckoutID    string
	OrderID       int64
	PaymentMethod PaymentMethod
	RedirectURL   string
	Reason        string
	Details       []string
	Attempts      int
}

// Next is the only way to change a Flow. It rejects edges that are not in the
// transition table and states that would be missing the data they need.
func (f Flow) Next(ev Event) (Flow, error) {
	if !f.State.CanTransitionTo(ev.To) {
		return f, &TransitionError{From: f.State, To: ev.To}
	}

	next := Flow{
		State:         ev.To,
		View:          ev.To.View(),
		CheckoutID:    f.CheckoutID,
		OrderID:       f.OrderID,
		PaymentMethod: f.PaymentMethod,
		Reason:        ev.Reason,
		Details:       ev.Details,
		Attempts:      ev.Attempts,
		UpdatedAt:     time.Now(),
	}
	if ev.To == FlowIdle {
		next = NewFlow()
	}
	if ev.CheckoutID != "" {
		next.CheckoutID = ev.CheckoutID
	}
	if ev.OrderID != 0 {
		next.OrderID = ev.OrderID
	}
	if ev.PaymentMethod != "" {
		next.PaymentMethod = ev.PaymentMethod
	}
	if ev.To == FlowRedirecting {
		next.RedirectURL = ev.RedirectURL
	}

	if reason := missingData(next); reason != "" {
		return f, &TransitionError{From: f.State, To: ev.To, Reason: reason}
	}
	return next, nil
}

func missingData(f Flow) string {
	switch f.State {
	case FlowPlacingOrder:
		if f.CheckoutID == "" {
			return "checkout id required"
		}
	case FlowAwaitingAvailability, FlowPollingPayment, FlowSucceeded, FlowTimedOut, FlowUnconfirmed:
		if f.OrderID <= 0 {
			return "order id required"
		}
	case FlowRedirecting:
		if f.OrderID <= 0 {
			return "order id required"
		}
		if f.RedirectURL == "" {
			return "redirect url required"
		}
	case FlowFailed:
		if f.Reason == "" {
			return "failure reason required"
		}
	}
	return ""
}
