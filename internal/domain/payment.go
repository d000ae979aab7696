package domain

import (
	"encoding/json"
	"errors"
	"strings"
	"time"
)

type PaymentMethod string

const (
	PaymentMethodCOD   PaymentMethod = "COD"
	PaymentMethodVNPay PaymentMethod = "VNPAY"
	PaymentMethodCard  PaymentMethod = "CARD"
)

func (m PaymentMethod) Valid() bool {
	switch m {
	case PaymentMethodCOD, PaymentMethodVNPay, PaymentMethodCard:
		return true
	}
	return false
}

// RequiresRedirect reports whether the method goes through an external gateway.
func (m PaymentMethod) RequiresRedirect() bool {
	return m.Valid() && m != PaymentMethodCOD
}

type PaymentStatus string

const (
	PaymentStatusPending   PaymentStatus = "PENDING"
	PaymentStatusPaid      PaymentStatus = "PAID"
	PaymentStatusSuccess   PaymentStatus = "SUCCESS"
	PaymentStatusFailed    PaymentStatus = "FAILED"
	PaymentStatusCancelled PaymentStatus = "CANCELLED"
)

func (s PaymentStatus) normalized() PaymentStatus {
	return PaymentStatus(strings.ToUpper(strings.TrimSpace(string(s))))
}

func (s PaymentStatus) IsPaid() bool {
	n := s.normalized()
	return n == PaymentStatusPaid || n == PaymentStatusSuccess
}

func (s PaymentStatus) IsFailed() bool {
	n := s.normalized()
	return n == PaymentStatusFailed || n == PaymentStatusCancelled
}

func (s PaymentStatus) IsTerminal() bool {
	return s.IsPaid() || s.IsFailed()
}

// IsPending treats an empty status as pending.
func (s PaymentStatus) IsPending() bool {
	n := s.normalized()
	return n == "" || n == PaymentStatusPending
}

func (s PaymentStatus) String() string {
	return string(s)
}

var ErrInvalidPaymentSession = errors.New("invalid payment initiation response")

type PaymentSession struct {
	PaymentID   string        `json:"paymentId"`
	RedirectURL string        `json:"redirectUrl,omitempty"`
	Status      PaymentStatus `json:"status,omitempty"`
	Successful  *bool         `json:"successful,omitempty"`
	ExpiresAt   *time.Time    `json:"expiresAt,omitempty"`
}

// ParsePaymentSession requires a paymentId and at least one of redirectUrl or status.
func ParsePaymentSession(raw json.RawMessage) (*PaymentSession, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(Unwrap(raw), &fields); err != nil {
		return nil, ErrInvalidPaymentSession
	}

	id, ok := idString(fields["paymentId"])
	if !ok {
		return nil, &ValidationError{Op: ErrInvalidPaymentSession.Error(), Reasons: []string{"Missing paymentId"}}
	}

	session := &PaymentSession{PaymentID: id}
	if v, ok := fields["redirectUrl"]; ok {
		_ = json.Unmarshal(v, &session.RedirectURL)
	}
	if v, ok := fields["status"]; ok {
		_ = json.Unmarshal(v, &session.Status)
	}
	if v, ok := fields["successful"]; ok && !isNull(v) {
		var b bool
		if json.Unmarshal(v, &b) == nil {
			session.Successful = &b
		}
	}
	if v, ok := fields["expiresAt"]; ok && !isNull(v) {
		var t time.Time
		if json.Unmarshal(v, &t) == nil {
			session.ExpiresAt = &t
		}
	}

	if session.RedirectURL == "" && session.Status == "" {
		return nil, &ValidationError{Op: ErrInvalidPaymentSession.Error(), Reasons: []string{"Missing redirectUrl and status"}}
	}
	return session, nil
}

// PendingPayment marks a redirect payment that has not been reconciled yet.
type PendingPayment struct {
	OrderID     int64     `json:"orderId"`
	PaymentID   string    `json:"paymentId"`
	InitiatedAt time.Time `json:"initiatedAt"`
}
