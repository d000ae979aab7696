package service

import "errors"

var (
	ErrCheckoutNotReady = errors.New("checkout is not ready yet, please submit again")
	ErrNoCheckout       = errors.New("no active checkout")
	ErrNoAddress        = errors.New("no shipping address selected")
	ErrNoRedirect       = errors.New("payment initiation returned no redirect url")
	ErrNotGatewayReturn = errors.New("request is not a payment gateway return")
	ErrNoPendingPayment = errors.New("no pending payment to reconcile")
	ErrFlowBusy         = errors.New("checkout flow already in progress")
	ErrInvalidProduct   = errors.New("product id must be positive")
)
