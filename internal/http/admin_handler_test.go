package http

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/jyush98/jason-co-ecom-sub003/internal/domain"
	"github.com/jyush98/jason-co-ecom-sub003/internal/order"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseOrderFilter(t *testing.T) {
	f, err := parseOrderFilter(url.Values{
		"status":   {"shipped"},
		"from":     {"2026-01-01"},
		"to":       {"2026-01-31"},
		"customer": {"lovelace"},
		"limit":    {"20"},
		"offset":   {"40"},
	})
	require.NoError(t, err)

	assert.Equal(t, domain.OrderStatusShipped, f.Status)
	assert.Equal(t, time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC), f.From)
	assert.Equal(t, time.Date(2026, 1, 31, 23, 59, 59, 999999999, time.UTC), f.To)
	assert.Equal(t, "lovelace", f.Customer)
	assert.Equal(t, 20, f.Limit)
	assert.Equal(t, 40, f.Offset)
}

func TestParseOrderFilter_RFC3339(t *testing.T) {
	f, err := parseOrderFilter(url.Values{"to": {"2026-01-31T12:00:00Z"}})
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 1, 31, 12, 0, 0, 0, time.UTC), f.To)
}

func TestParseOrderFilter_Errors(t *testing.T) {
	tests := []struct {
		name  string
		query url.Values
	}{
		{"unknown status", url.Values{"status": {"lost"}}},
		{"bad date", url.Values{"from": {"01/02/2026"}}},
		{"inverted range", url.Values{"from": {"2026-02-01"}, "to": {"2026-01-01"}}},
		{"negative limit", url.Values{"limit": {"-1"}}},
		{"bad offset", url.Values{"offset": {"ten"}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := parseOrderFilter(tt.query)
			assert.Error(t, err)
		})
	}
}

func TestAdminListOrders_BadFilter(t *testing.T) {
	svc := &mockOrderService{}
	handler := NewAdminHandler(svc, 5*time.Second)
	rec := httptest.NewRecorder()

	handler.ListOrders(rec, httptest.NewRequest(http.MethodGet, "/?status=lost", nil))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAdminUpdateStatus(t *testing.T) {
	svc := &mockOrderService{views: []*order.View{testView(domain.OrderStatusProcessing)}}
	handler := NewAdminHandler(svc, 5*time.Second)
	rec := httptest.NewRecorder()

	body := bytes.NewBufferString(`{"status":"processing","expected_status":"confirmed","reason":"picked"}`)
	req := withURLParam(httptest.NewRequest(http.MethodPatch, "/", body), "order_number", "JC-20260115-AB12")
	handler.UpdateStatus(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, order.StatusUpdate{
		OrderNumber:  "JC-20260115-AB12",
		ExpectedFrom: domain.OrderStatusConfirmed,
		To:           domain.OrderStatusProcessing,
		Actor:        order.ActorAdmin,
		Reason:       "picked",
	}, svc.lastUpdate)
}

func TestAdminUpdateStatus_PassesTrackingNumber(t *testing.T) {
	svc := &mockOrderService{views: []*order.View{testView(domain.OrderStatusShipped)}}
	handler := NewAdminHandler(svc, 5*time.Second)
	rec := httptest.NewRecorder()

	body := bytes.NewBufferString(`{"status":"shipped","tracking_number":"1Z999AA10123456784"}`)
	req := withURLParam(httptest.NewRequest(http.MethodPatch, "/", body), "order_number", "JC-20260115-AB12")
	handler.UpdateStatus(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, domain.OrderStatusShipped, svc.lastUpdate.To)
	assert.Equal(t, "1Z999AA10123456784", svc.lastUpdate.TrackingNumber)
}

func TestAdminUpdateNotes(t *testing.T) {
	view := testView(domain.OrderStatusConfirmed)
	view.InternalNotes = "VIP"
	svc := &mockOrderService{views: []*order.View{view}}
	handler := NewAdminHandler(svc, 5*time.Second)
	rec := httptest.NewRecorder()

	req := withURLParam(httptest.NewRequest(http.MethodPut, "/", bytes.NewBufferString(`{"internal_notes":"VIP"}`)), "order_number", "JC-20260115-AB12")
	handler.UpdateNotes(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "JC-20260115-AB12", svc.lastNumber)
	assert.Equal(t, "VIP", svc.lastNotes)
	assert.Contains(t, rec.Body.String(), `"internal_notes":"VIP"`)
}

func TestAdminUpdateNotes_TooLong(t *testing.T) {
	handler := NewAdminHandler(&mockOrderService{err: order.ErrNotesTooLong}, 5*time.Second)
	rec := httptest.NewRecorder()

	req := withURLParam(httptest.NewRequest(http.MethodPut, "/", bytes.NewBufferString(`{"internal_notes":"x"}`)), "order_number", "JC-20260115-AB12")
	handler.UpdateNotes(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAdminUpdateStatus_Errors(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		err        error
		wantStatus int
	}{
		{"unknown target", `{"status":"teleported"}`, nil, http.StatusBadRequest},
		{"unknown expected", `{"status":"shipped","expected_status":"nope"}`, nil, http.StatusBadRequest},
		{"illegal edge", `{"status":"pending"}`, &domain.InvalidTransitionError{From: domain.OrderStatusShipped, To: domain.OrderStatusPending}, http.StatusConflict},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := NewAdminHandler(&mockOrderService{err: tt.err}, 5*time.Second)
			rec := httptest.NewRecorder()

			req := withURLParam(httptest.NewRequest(http.MethodPatch, "/", bytes.NewBufferString(tt.body)), "order_number", "JC-20260115-AB12")
			handler.UpdateStatus(rec, req)

			assert.Equal(t, tt.wantStatus, rec.Code)
		})
	}
}

func TestAdminExport(t *testing.T) {
	svc := &mockOrderService{rows: []order.ExportRow{{OrderNumber: "JC-20260115-AB12", Customer: "Ada Lovelace", Total: 27420}}}
	handler := NewAdminHandler(svc, 5*time.Second)
	rec := httptest.NewRecorder()

	handler.Export(rec, httptest.NewRequest(http.MethodGet, "/?status=confirmed", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"customer":"Ada Lovelace"`)
	assert.Equal(t, domain.OrderStatusConfirmed, svc.lastFilter.Status)
}

func TestAdminHistory(t *testing.T) {
	svc := &mockOrderService{history: []domain.StatusChange{
		{OrderNumber: "JC-20260115-AB12", From: domain.OrderStatusPending, To: domain.OrderStatusConfirmed, ChangedBy: "payment"},
	}}
	handler := NewAdminHandler(svc, 5*time.Second)
	rec := httptest.NewRecorder()

	handler.History(rec, withURLParam(httptest.NewRequest(http.MethodGet, "/", nil), "order_number", "JC-20260115-AB12"))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"from_status":"pending"`)
	assert.Equal(t, "JC-20260115-AB12", svc.lastNumber)
}
