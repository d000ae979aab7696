package service

import (
	"context"
	"errors"
	"net/url"
	"testing"
	"time"

	"github.com/fjod/go_cart/checkout-client/internal/backend"
	"github.com/fjod/go_cart/checkout-client/internal/domain"
	"github.com/fjod/go_cart/checkout-client/internal/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type flowFixture struct {
	flow  *CheckoutFlow
	shop  *fakeShop
	rec   *fakeRecorder
	pub   *fakePublisher
	clock *fakeClock
}

func setupFlow(t *testing.T) *flowFixture {
	t.Helper()
	shop := newFakeShop()
	shop.products[1] = domain.Product{ID: 1, Name: "Mug", Price: domain.Amount(10)}
	shop.cart = []domain.CartItem{{ProductID: 1, Quantity: 2}}
	shop.checkoutResp = validCheckoutJSON
	shop.orderResp = `{"orderId":42}`
	shop.initiateResp = `{"paymentId":"pay-9","redirectUrl":"https://gateway.example/pay?token=abc"}`
	shop.addresses[7] = savedAddress()

	rc, _ := setupTestRedis(t)
	rec := &fakeRecorder{}
	pub := &fakePublisher{}
	clock := &fakeClock{}
	id := fakeIdentity("u1")
	log := logger.Nop()

	cart := NewCartSynchronizer(shop, rc, id, rec, log)
	checkouts := NewCheckoutInitiator(shop, log)
	orders := NewOrderPlacer(shop, checkouts, availabilityPolicy(clock), rec, log)
	payments := NewPaymentReconciler(shop, rc, id, paymentPolicy(clock), "vnp_ResponseCode", rec, log)
	addresses := NewAddressBook(shop)

	flow := NewCheckoutFlow(cart, checkouts, orders, payments, addresses, id, pub, rec, FlowDelays{}, log)
	flow.sleep = func(context.Context, time.Duration) error { return nil }
	return &flowFixture{flow: flow, shop: shop, rec: rec, pub: pub, clock: clock}
}

func submitRequest(method domain.PaymentMethod) SubmitRequest {
	return SubmitRequest{
		PaymentMethod: method,
		AddressID:     7,
		Email:         "jane@example.com",
		Phone:         "0901234567",
	}
}

// orderSequence answers GetOrder with the given payment statuses in order,
// repeating the last one.
func orderSequence(statuses ...domain.PaymentStatus) func(int) (*domain.Order, error) {
	return func(call int) (*domain.Order, error) {
		i := call - 1
		if i >= len(statuses) {
			i = len(statuses) - 1
		}
		return orderWithStatus(42, statuses[i]), nil
	}
}

func TestSubmit_CODSucceeds(t *testing.T) {
	fx := setupFlow(t)
	fx.shop.getOrder = orderSequence(domain.PaymentStatusPending)

	flow, err := fx.flow.Submit(context.Background(), submitRequest(domain.PaymentMethodCOD))

	require.NoError(t, err)
	assert.Equal(t, domain.FlowSucceeded, flow.State)
	assert.Equal(t, "order-success", flow.View)
	assert.Equal(t, int64(42), flow.OrderID)
	assert.Equal(t, domain.PaymentMethodCOD, flow.PaymentMethod)
	assert.Equal(t, []string{
		"IDLE>CREATING_CHECKOUT",
		"CREATING_CHECKOUT>PLACING_ORDER",
		"PLACING_ORDER>AWAITING_AVAILABILITY",
		"AWAITING_AVAILABILITY>SUCCEEDED",
	}, fx.rec.transitions)
	assert.Zero(t, fx.shop.initiateCalls)
	assert.Equal(t, []domain.PaymentMethod{domain.PaymentMethodCOD}, fx.shop.paymentMethods)
	require.Len(t, fx.shop.orderReqs, 1)
	assert.Equal(t, []domain.OrderLine{{ProductID: 1, Quantity: 2, Price: 10}}, fx.shop.orderReqs[0].Items)
	assert.Nil(t, fx.flow.checkouts.Current(), "checkout is consumed by the order")

	require.Len(t, fx.pub.events, 4)
	last := fx.pub.events[3]
	assert.Equal(t, "SUCCEEDED", last.To)
	assert.Equal(t, int64(42), last.OrderID)
	assert.Equal(t, "u1", last.UserKey)
}

func TestSubmit_PublishFailureDoesNotBreakFlow(t *testing.T) {
	fx := setupFlow(t)
	fx.shop.getOrder = orderSequence(domain.PaymentStatusPending)
	fx.pub.err = errors.New("broker unavailable")

	flow, err := fx.flow.Submit(context.Background(), submitRequest(domain.PaymentMethodCOD))

	require.NoError(t, err)
	assert.Equal(t, domain.FlowSucceeded, flow.State)
}

func TestSubmit_RedirectThenReturnPaid(t *testing.T) {
	fx := setupFlow(t)
	ctx := context.Background()
	fx.shop.getOrder = orderSequence(domain.PaymentStatusPending, domain.PaymentStatusPaid)

	flow, err := fx.flow.Submit(ctx, submitRequest(domain.PaymentMethodVNPay))
	require.NoError(t, err)
	assert.Equal(t, domain.FlowRedirecting, flow.State)
	assert.Equal(t, "https://gateway.example/pay?token=abc", flow.RedirectURL)
	assert.Equal(t, 1, fx.shop.initiateCalls)

	flow, err = fx.flow.HandleReturn(ctx, url.Values{"vnp_ResponseCode": {"00"}})
	require.NoError(t, err)
	assert.Equal(t, domain.FlowSucceeded, flow.State)
	assert.Equal(t, int64(42), flow.OrderID)
	assert.Equal(t, 1, flow.Attempts)
	assert.Empty(t, flow.RedirectURL)

	_, err = fx.flow.payments.Pending(ctx)
	assert.ErrorIs(t, err, ErrNoPendingPayment)
}

func TestSubmit_RedirectAlreadyPaidSkipsGateway(t *testing.T) {
	fx := setupFlow(t)
	fx.shop.getOrder = orderSequence(domain.PaymentStatusPaid)

	flow, err := fx.flow.Submit(context.Background(), submitRequest(domain.PaymentMethodCard))

	require.NoError(t, err)
	assert.Equal(t, domain.FlowSucceeded, flow.State)
	assert.Zero(t, fx.shop.initiateCalls)
}

func TestSubmit_InitiateWithoutRedirectFails(t *testing.T) {
	fx := setupFlow(t)
	fx.shop.getOrder = orderSequence(domain.PaymentStatusPending)
	fx.shop.initiateResp = `{"paymentId":"pay-9","status":"PENDING"}`

	flow, err := fx.flow.Submit(context.Background(), submitRequest(domain.PaymentMethodVNPay))

	require.NoError(t, err)
	assert.Equal(t, domain.FlowFailed, flow.State)
	assert.Equal(t, ErrNoRedirect.Error(), flow.Reason)
	assert.Equal(t, int64(42), flow.OrderID)
}

func TestHandleReturn_FailedPaymentThenRetry(t *testing.T) {
	fx := setupFlow(t)
	ctx := context.Background()
	fx.shop.getOrder = orderSequence(
		domain.PaymentStatusPending,
		domain.PaymentStatusPending,
		domain.PaymentStatusPending,
		domain.PaymentStatusFailed,
	)

	_, err := fx.flow.Submit(ctx, submitRequest(domain.PaymentMethodVNPay))
	require.NoError(t, err)

	flow, err := fx.flow.HandleReturn(ctx, url.Values{"vnp_ResponseCode": {"24"}, "orderId": {"42"}})
	require.NoError(t, err)
	assert.Equal(t, domain.FlowFailed, flow.State)
	assert.Equal(t, "payment-failed", flow.View)
	assert.Equal(t, 3, flow.Attempts)
	assert.Equal(t, "Payment FAILED. You can retry the payment.", flow.Reason)

	flow, err = fx.flow.RetryPayment(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, domain.FlowRedirecting, flow.State)
	assert.Equal(t, int64(42), flow.OrderID)
	assert.Equal(t, 2, fx.shop.initiateCalls)
}

func TestHandleReturn_PendingForeverTimesOut(t *testing.T) {
	fx := setupFlow(t)
	ctx := context.Background()
	fx.shop.getOrder = orderSequence(domain.PaymentStatusPending)

	_, err := fx.flow.Submit(ctx, submitRequest(domain.PaymentMethodVNPay))
	require.NoError(t, err)

	flow, err := fx.flow.HandleReturn(ctx, url.Values{"vnp_ResponseCode": {"00"}})

	require.NoError(t, err)
	assert.Equal(t, domain.FlowTimedOut, flow.State)
	assert.Equal(t, "orders", flow.View)
	assert.Equal(t, 60, flow.Attempts)
	assert.Equal(t, msgTimedOut, flow.Reason)

	flow, err = fx.flow.RetryPayment(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, domain.FlowRedirecting, flow.State)
}

func TestHandleReturn_NotAGatewayReturn(t *testing.T) {
	fx := setupFlow(t)

	flow, err := fx.flow.HandleReturn(context.Background(), url.Values{"orderId": {"42"}})

	assert.ErrorIs(t, err, ErrNotGatewayReturn)
	assert.Equal(t, domain.FlowIdle, flow.State)
	assert.Zero(t, fx.shop.getOrderCalls)
}

func TestHandleReturn_NoOrderToReconcile(t *testing.T) {
	fx := setupFlow(t)

	_, err := fx.flow.HandleReturn(context.Background(), url.Values{"vnp_ResponseCode": {"00"}})

	assert.ErrorIs(t, err, ErrNoPendingPayment)
}

func TestSubmit_UnconfirmedOrder(t *testing.T) {
	fx := setupFlow(t)

	flow, err := fx.flow.Submit(context.Background(), submitRequest(domain.PaymentMethodVNPay))

	require.NoError(t, err)
	assert.Equal(t, domain.FlowUnconfirmed, flow.State)
	assert.Equal(t, "orders", flow.View)
	assert.Equal(t, 6, flow.Attempts)
	assert.Equal(t, int64(42), flow.OrderID)
	assert.Zero(t, fx.shop.initiateCalls)
}

func TestSubmit_InvalidCartFailsBeforeCheckout(t *testing.T) {
	fx := setupFlow(t)
	fx.shop.cart = nil

	flow, err := fx.flow.Submit(context.Background(), submitRequest(domain.PaymentMethodCOD))

	require.NoError(t, err)
	assert.Equal(t, domain.FlowFailed, flow.State)
	assert.Equal(t, "invalid cart", flow.Reason)
	assert.Equal(t, []string{"Cart is empty"}, flow.Details)
	assert.Empty(t, fx.shop.checkoutReqs)
	assert.Empty(t, fx.shop.orderReqs)
}

func TestSubmit_MalformedCheckoutFails(t *testing.T) {
	fx := setupFlow(t)
	fx.shop.checkoutResp = `{"id":"c-1","items":[],"totalAmount":20}`

	flow, err := fx.flow.Submit(context.Background(), submitRequest(domain.PaymentMethodCOD))

	require.NoError(t, err)
	assert.Equal(t, domain.FlowFailed, flow.State)
	assert.Equal(t, []string{"Missing checkout status"}, flow.Details)
	assert.Empty(t, fx.shop.orderReqs)
}

func TestSubmit_RetryReusesCheckout(t *testing.T) {
	fx := setupFlow(t)
	ctx := context.Background()
	fx.shop.getOrder = orderSequence(domain.PaymentStatusPending)

	req := submitRequest(domain.PaymentMethodCOD)
	req.AddressID = 999
	flow, err := fx.flow.Submit(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, domain.FlowFailed, flow.State)
	assert.Equal(t, "Address not found", flow.Reason)
	assert.Equal(t, "c-1", flow.CheckoutID)

	flow, err = fx.flow.Submit(ctx, submitRequest(domain.PaymentMethodCOD))
	require.NoError(t, err)
	assert.Equal(t, domain.FlowSucceeded, flow.State)
	assert.Len(t, fx.shop.checkoutReqs, 1)
	assert.Contains(t, fx.rec.transitions, "FAILED>IDLE")
	assert.Contains(t, fx.rec.transitions, "IDLE>PLACING_ORDER")
}

func TestSubmit_NewAddressIsSaved(t *testing.T) {
	fx := setupFlow(t)
	fx.shop.getOrder = orderSequence(domain.PaymentStatusPending)
	addr := savedAddress()
	addr.ID = 0
	req := submitRequest(domain.PaymentMethodCOD)
	req.AddressID = 0
	req.NewAddress = &addr

	flow, err := fx.flow.Submit(context.Background(), req)

	require.NoError(t, err)
	assert.Equal(t, domain.FlowSucceeded, flow.State)
	assert.Equal(t, int64(101), fx.shop.orderReqs[0].ShippingAddressID)
}

func TestSubmit_OrderRejectedByServer(t *testing.T) {
	fx := setupFlow(t)
	fx.shop.orderErr = &backend.APIError{StatusCode: 409, Message: "Checkout already used"}

	flow, err := fx.flow.Submit(context.Background(), submitRequest(domain.PaymentMethodCOD))

	require.NoError(t, err)
	assert.Equal(t, domain.FlowFailed, flow.State)
	assert.Equal(t, "Checkout already used", flow.Reason)
	assert.NotNil(t, fx.flow.checkouts.Current(), "checkout is kept for a retry")
}

func TestSubmit_InvalidPaymentMethod(t *testing.T) {
	fx := setupFlow(t)

	flow, err := fx.flow.Submit(context.Background(), submitRequest("BITCOIN"))

	var vErr *domain.ValidationError
	require.ErrorAs(t, err, &vErr)
	assert.Equal(t, domain.FlowIdle, flow.State)
	assert.Zero(t, fx.shop.getCartCalls)
}

func TestSubmit_Busy(t *testing.T) {
	fx := setupFlow(t)
	fx.flow.busy.Store(true)

	_, err := fx.flow.Submit(context.Background(), submitRequest(domain.PaymentMethodCOD))
	assert.ErrorIs(t, err, ErrFlowBusy)

	_, err = fx.flow.HandleReturn(context.Background(), url.Values{"vnp_ResponseCode": {"00"}})
	assert.ErrorIs(t, err, ErrFlowBusy)
}

func TestRetryPayment_RequiresFailedFlow(t *testing.T) {
	fx := setupFlow(t)

	_, err := fx.flow.RetryPayment(context.Background(), 42)

	assert.ErrorIs(t, err, domain.ErrIllegalTransition)
	assert.Zero(t, fx.shop.initiateCalls)
}

func TestReset(t *testing.T) {
	fx := setupFlow(t)
	ctx := context.Background()
	fx.shop.orderErr = errors.New("boom")

	flow, err := fx.flow.Submit(ctx, submitRequest(domain.PaymentMethodCOD))
	require.NoError(t, err)
	require.Equal(t, domain.FlowFailed, flow.State)

	flow, err = fx.flow.Reset(ctx)

	require.NoError(t, err)
	assert.Equal(t, domain.FlowIdle, flow.State)
	assert.Empty(t, flow.CheckoutID)
	assert.Nil(t, fx.flow.checkouts.Current())
}
