package http

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jyush98/jason-co-ecom-sub003/internal/checkout"
	"github.com/jyush98/jason-co-ecom-sub003/internal/domain"
	"github.com/jyush98/jason-co-ecom-sub003/internal/pricing"
	"github.com/jyush98/jason-co-ecom-sub003/internal/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockCheckout struct {
	session  *checkout.Session
	order    *domain.Order
	quote    *pricing.Result
	err      error
	quoteErr error

	calls       []string
	shipping    domain.Address
	billing     *domain.Address
	methodID    string
	token       string
	promoCode   string
	notes       string
	reference   string
	failReason  string
	sessionUser string
}

func (m *mockCheckout) respond(call, userID string) (*checkout.Session, error) {
	m.calls = append(m.calls, call)
	m.sessionUser = userID
	if m.err != nil {
		return nil, m.err
	}
	return m.session, nil
}

func (m *mockCheckout) Start(_ context.Context, userID string) (*checkout.Session, error) {
	return m.respond("start", userID)
}

func (m *mockCheckout) Get(_ context.Context, userID string, _ uuid.UUID) (*checkout.Session, error) {
	return m.respond("get", userID)
}

func (m *mockCheckout) SetAddress(_ context.Context, userID string, _ uuid.UUID, shipping domain.Address, billing *domain.Address) (*checkout.Session, error) {
	m.shipping, m.billing = shipping, billing
	return m.respond("address", userID)
}

func (m *mockCheckout) SelectShipping(_ context.Context, userID string, _ uuid.UUID, methodID string) (*checkout.Session, error) {
	m.methodID = methodID
	return m.respond("shipping", userID)
}

func (m *mockCheckout) SetPayment(_ context.Context, userID string, _ uuid.UUID, token string) (*checkout.Session, error) {
	m.token = token
	return m.respond("payment", userID)
}

func (m *mockCheckout) SetPromo(_ context.Context, userID string, _ uuid.UUID, code string) (*checkout.Session, error) {
	m.promoCode = code
	return m.respond("promo", userID)
}

func (m *mockCheckout) SetNotes(_ context.Context, userID string, _ uuid.UUID, notes string) (*checkout.Session, error) {
	m.notes = notes
	return m.respond("notes", userID)
}

func (m *mockCheckout) Advance(_ context.Context, userID string, _ uuid.UUID) (*checkout.Session, error) {
	return m.respond("advance", userID)
}

func (m *mockCheckout) Back(_ context.Context, userID string, _ uuid.UUID) (*checkout.Session, error) {
	return m.respond("back", userID)
}

func (m *mockCheckout) Quote(_ context.Context, _ string, _ uuid.UUID) (*pricing.Result, error) {
	m.calls = append(m.calls, "quote")
	if m.quoteErr != nil {
		return nil, m.quoteErr
	}
	return m.quote, nil
}

func (m *mockCheckout) PlaceOrder(_ context.Context, _ string, _ uuid.UUID) (*domain.Order, error) {
	m.calls = append(m.calls, "place")
	if m.err != nil {
		return nil, m.err
	}
	return m.order, nil
}

func (m *mockCheckout) ConfirmPayment(_ context.Context, reference string) (*domain.Order, error) {
	m.calls = append(m.calls, "confirm")
	m.reference = reference
	if m.err != nil {
		return nil, m.err
	}
	return m.order, nil
}

func (m *mockCheckout) FailPayment(_ context.Context, reference, reason string) (*domain.Order, error) {
	m.calls = append(m.calls, "fail")
	m.reference, m.failReason = reference, reason
	if m.err != nil {
		return nil, m.err
	}
	return m.order, nil
}

func testSession() *checkout.Session {
	return &checkout.Session{ID: uuid.New(), UserID: "u1", Step: checkout.StepAddress}
}

func sessionRequest(method string, body *bytes.Reader, id uuid.UUID) *http.Request {
	var req *http.Request
	if body == nil {
		req = httptest.NewRequest(method, "/", nil)
	} else {
		req = httptest.NewRequest(method, "/", body)
	}
	return withURLParam(asUser(req, "u1"), "session_id", id.String())
}

func TestStart_Created(t *testing.T) {
	sess := testSession()
	handler := NewCheckoutHandler(&mockCheckout{session: sess}, 5*time.Second)
	rec := httptest.NewRecorder()

	handler.Start(rec, asUser(httptest.NewRequest(http.MethodPost, "/", nil), "u1"))

	require.Equal(t, http.StatusCreated, rec.Code)
	var got checkout.Session
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&got))
	assert.Equal(t, sess.ID, got.ID)
	assert.Equal(t, checkout.StepAddress, got.Step)
}

func TestStart_EmptyCart(t *testing.T) {
	handler := NewCheckoutHandler(&mockCheckout{err: &domain.EmptyCartError{}}, 5*time.Second)
	rec := httptest.NewRecorder()

	handler.Start(rec, asUser(httptest.NewRequest(http.MethodPost, "/", nil), "u1"))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSessionEndpoints_InvalidSessionID(t *testing.T) {
	svc := &mockCheckout{session: testSession()}
	handler := NewCheckoutHandler(svc, 5*time.Second)
	rec := httptest.NewRecorder()

	req := withURLParam(asUser(httptest.NewRequest(http.MethodPost, "/", nil), "u1"), "session_id", "not-a-uuid")
	handler.Advance(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Empty(t, svc.calls)
}

func TestGet_AttachesQuoteOnceShippingChosen(t *testing.T) {
	sess := testSession()
	sess.Step = checkout.StepPayment
	sess.Form.ShippingMethodID = "standard"
	svc := &mockCheckout{session: sess, quote: &pricing.Result{Subtotal: 24000, Total: 27420}}
	handler := NewCheckoutHandler(svc, 5*time.Second)
	rec := httptest.NewRecorder()

	handler.Get(rec, sessionRequest(http.MethodGet, nil, sess.ID))

	require.Equal(t, http.StatusOK, rec.Code)
	var resp struct {
		Quote *pricing.Result `json:"quote"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	require.NotNil(t, resp.Quote)
	assert.Equal(t, domain.Money(27420), resp.Quote.Total)
}

func TestGet_QuoteFailureStillReturnsSession(t *testing.T) {
	sess := testSession()
	sess.Form.ShippingMethodID = "standard"
	svc := &mockCheckout{session: sess, quoteErr: &domain.EmptyCartError{}}
	handler := NewCheckoutHandler(svc, 5*time.Second)
	rec := httptest.NewRecorder()

	handler.Get(rec, sessionRequest(http.MethodGet, nil, sess.ID))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NotContains(t, rec.Body.String(), `"quote"`)
}

func TestSetAddress_PassesBothAddresses(t *testing.T) {
	sess := testSession()
	svc := &mockCheckout{session: sess}
	handler := NewCheckoutHandler(svc, 5*time.Second)
	body := jsonBody(t, AddressRequestDTO{
		ShippingAddress: domain.Address{FirstName: "Ada", State: "NY"},
		BillingAddress:  &domain.Address{FirstName: "Ada", State: "NJ"},
	})
	rec := httptest.NewRecorder()

	handler.SetAddress(rec, sessionRequest(http.MethodPut, body, sess.ID))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "NY", svc.shipping.State)
	require.NotNil(t, svc.billing)
	assert.Equal(t, "NJ", svc.billing.State)
}

func TestSetPayment_AppliesPromoWhenGiven(t *testing.T) {
	sess := testSession()
	svc := &mockCheckout{session: sess}
	handler := NewCheckoutHandler(svc, 5*time.Second)
	code := "WELCOME10"
	rec := httptest.NewRecorder()

	handler.SetPayment(rec, sessionRequest(http.MethodPut, jsonBody(t, PaymentRequestDTO{PaymentToken: "tok_success", PromoCode: &code}), sess.ID))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{"payment", "promo"}, svc.calls)
	assert.Equal(t, "tok_success", svc.token)
	assert.Equal(t, "WELCOME10", svc.promoCode)
}

func TestSetPayment_StoresOrderNotes(t *testing.T) {
	sess := testSession()
	svc := &mockCheckout{session: sess}
	handler := NewCheckoutHandler(svc, 5*time.Second)
	rec := httptest.NewRecorder()

	notes := "Leave with the doorman"
	handler.SetPayment(rec, sessionRequest(http.MethodPut, jsonBody(t, PaymentRequestDTO{PaymentToken: "tok_success", OrderNotes: &notes}), sess.ID))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{"payment", "notes"}, svc.calls)
	assert.Equal(t, notes, svc.notes)
}

func TestAdvance_StepNotReady(t *testing.T) {
	sess := testSession()
	handler := NewCheckoutHandler(&mockCheckout{err: &checkout.StepNotReadyError{Step: checkout.StepShipping, Reason: "no shipping method selected"}}, 5*time.Second)
	rec := httptest.NewRecorder()

	handler.Advance(rec, sessionRequest(http.MethodPost, nil, sess.ID))

	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	resp := decodeError(t, rec)
	assert.Equal(t, "step_not_ready", resp.Code)
	assert.Equal(t, "shipping", resp.Details)
}

func TestPlace_StatusReflectsPaymentOutcome(t *testing.T) {
	tests := []struct {
		name       string
		status     domain.OrderStatus
		wantStatus int
	}{
		{"confirmed", domain.OrderStatusConfirmed, http.StatusCreated},
		{"awaiting action", domain.OrderStatusPending, http.StatusAccepted},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o := &domain.Order{OrderNumber: "JC-20260115-AB12", Status: tt.status, TotalPrice: 27420}
			handler := NewCheckoutHandler(&mockCheckout{order: o}, 5*time.Second)
			rec := httptest.NewRecorder()

			handler.Place(rec, sessionRequest(http.MethodPost, nil, uuid.New()))

			require.Equal(t, tt.wantStatus, rec.Code)
			var got domain.Order
			require.NoError(t, json.NewDecoder(rec.Body).Decode(&got))
			assert.Equal(t, "JC-20260115-AB12", got.OrderNumber)
		})
	}
}

func TestPlace_Declined(t *testing.T) {
	handler := NewCheckoutHandler(&mockCheckout{err: &domain.PaymentDeclinedError{Reason: "card declined"}}, 5*time.Second)
	rec := httptest.NewRecorder()

	handler.Place(rec, sessionRequest(http.MethodPost, nil, uuid.New()))

	assert.Equal(t, http.StatusPaymentRequired, rec.Code)
	assert.True(t, decodeError(t, rec).Retryable)
}

func TestPaymentWebhook(t *testing.T) {
	tests := []struct {
		name       string
		body       PaymentWebhookDTO
		err        error
		wantStatus int
		wantCall   string
	}{
		{"succeeded confirms", PaymentWebhookDTO{ReferenceID: "TXN-1", Status: "succeeded"}, nil, http.StatusOK, "confirm"},
		{"failed fails", PaymentWebhookDTO{ReferenceID: "TXN-1", Status: "failed", Reason: "expired"}, nil, http.StatusOK, "fail"},
		{"unknown status", PaymentWebhookDTO{ReferenceID: "TXN-1", Status: "refunded"}, nil, http.StatusBadRequest, ""},
		{"missing reference", PaymentWebhookDTO{Status: "succeeded"}, nil, http.StatusBadRequest, ""},
		{"unknown reference", PaymentWebhookDTO{ReferenceID: "TXN-404", Status: "succeeded"}, repository.ErrOrderNotFound, http.StatusNotFound, "confirm"},
		{"already moved on", PaymentWebhookDTO{ReferenceID: "TXN-1", Status: "failed"}, &domain.InvalidTransitionError{From: domain.OrderStatusShipped, To: domain.OrderStatusFailed}, http.StatusConflict, "fail"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &mockCheckout{
				order: &domain.Order{OrderNumber: "JC-20260115-AB12", Status: domain.OrderStatusConfirmed},
				err:   tt.err,
			}
			handler := NewCheckoutHandler(svc, 5*time.Second)
			rec := httptest.NewRecorder()

			handler.PaymentWebhook(rec, httptest.NewRequest(http.MethodPost, "/", jsonBody(t, tt.body)))

			assert.Equal(t, tt.wantStatus, rec.Code)
			if tt.wantCall == "" {
				assert.Empty(t, svc.calls)
				return
			}
			assert.Equal(t, []string{tt.wantCall}, svc.calls)
			assert.Equal(t, tt.body.ReferenceID, svc.reference)
		})
	}
}

func TestPaymentWebhook_RejectsUnknownFields(t *testing.T) {
	svc := &mockCheckout{}
	handler := NewCheckoutHandler(svc, 5*time.Second)
	rec := httptest.NewRecorder()

	body := bytes.NewBufferString(`{"reference_id":"TXN-1","status":"succeeded","amount":100}`)
	handler.PaymentWebhook(rec, httptest.NewRequest(http.MethodPost, "/", body))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Empty(t, svc.calls)
}
