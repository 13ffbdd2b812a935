package pos

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRouter(repo *memoryRepo) http.Handler {
	r := chi.NewRouter()
	NewHandler(discardLogger(), newTestService(repo)).MountRoutes(r)
	return r
}

func postCheckout(t *testing.T, h http.Handler, body string, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/pos/checkout", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func TestHandleCheckoutSuccess(t *testing.T) {
	repo := newMemoryRepo(map[string]int{"P1": 5, "P2": 3})
	rec := postCheckout(t, newTestRouter(repo), `{"items":[{"product_id":"P1","quantity":2,"price":10.00},{"product_id":"P2","quantity":1,"price":5}]}`, nil)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"total_amount":25.00`)
	body := decodeBody(t, rec)
	assert.NotEmpty(t, body["invoice_id"])
	assert.NotEmpty(t, body["invoice_date"])
	assert.Equal(t, "PENDING", body["status"])
	assert.Equal(t, 3, repo.stockOf("P1"))
}

func TestHandleCheckoutErrors(t *testing.T) {
	cases := []struct {
		name   string
		body   string
		status int
		code   string
	}{
		{name: "empty cart", body: `{"items":[]}`, status: http.StatusBadRequest, code: "validation_error"},
		{name: "missing items", body: `{}`, status: http.StatusBadRequest, code: "validation_error"},
		{name: "missing price", body: `{"items":[{"product_id":"P1","quantity":1}]}`, status: http.StatusBadRequest, code: "validation_error"},
		{name: "fractional quantity", body: `{"items":[{"product_id":"P1","quantity":1.5,"price":1}]}`, status: http.StatusBadRequest, code: "malformed_request"},
		{name: "not json", body: `items=1`, status: http.StatusBadRequest, code: "malformed_request"},
		{name: "insufficient stock", body: `{"items":[{"product_id":"P1","quantity":10,"price":10}]}`, status: http.StatusConflict, code: "insufficient_stock"},
		{name: "unknown product", body: `{"items":[{"product_id":"P9","quantity":1,"price":1}]}`, status: http.StatusNotFound, code: "not_found"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			repo := newMemoryRepo(map[string]int{"P1": 5})
			rec := postCheckout(t, newTestRouter(repo), tc.body, nil)
			require.Equal(t, tc.status, rec.Code)
			body := decodeBody(t, rec)
			assert.Equal(t, tc.code, body["code"])
			assert.Equal(t, 5, repo.stockOf("P1"))
			assert.Equal(t, 0, repo.invoiceCount())
		})
	}
}

func TestHandleCheckoutReportsItemIndex(t *testing.T) {
	repo := newMemoryRepo(map[string]int{"P1": 5, "P2": 1})
	rec := postCheckout(t, newTestRouter(repo), `{"items":[{"product_id":"P1","quantity":1,"price":1},{"product_id":"P2","quantity":2,"price":1}]}`, nil)

	require.Equal(t, http.StatusConflict, rec.Code)
	body := decodeBody(t, rec)
	assert.EqualValues(t, 1, body["item"])
	assert.Equal(t, "P2", body["product_id"])
	assert.EqualValues(t, 1, body["available"])
}

func TestHandleCheckoutIdempotentReplay(t *testing.T) {
	repo := newMemoryRepo(map[string]int{"P1": 5})
	router := newTestRouter(repo)
	body := `{"items":[{"product_id":"P1","quantity":1,"price":"2.50"}]}`
	headers := map[string]string{IdempotencyHeader: "abc-123"}

	first := postCheckout(t, router, body, headers)
	require.Equal(t, http.StatusOK, first.Code)
	assert.Empty(t, first.Header().Get(ReplayedHeader))

	second := postCheckout(t, router, body, headers)
	require.Equal(t, http.StatusOK, second.Code)
	assert.Equal(t, "true", second.Header().Get(ReplayedHeader))
	assert.Equal(t, decodeBody(t, first)["invoice_id"], decodeBody(t, second)["invoice_id"])
	assert.Equal(t, 4, repo.stockOf("P1"))
}

func TestHandleGetInvoice(t *testing.T) {
	repo := newMemoryRepo(map[string]int{"P1": 5})
	router := newTestRouter(repo)
	rec := postCheckout(t, router, `{"items":[{"product_id":"P1","quantity":3,"price":1.25}]}`, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	id := decodeBody(t, rec)["invoice_id"].(string)

	req := httptest.NewRequest(http.MethodGet, "/pos/invoices/"+id, nil)
	got := httptest.NewRecorder()
	router.ServeHTTP(got, req)
	require.Equal(t, http.StatusOK, got.Code)
	assert.Contains(t, got.Body.String(), `"subtotal":3.75`)

	missing := httptest.NewRecorder()
	router.ServeHTTP(missing, httptest.NewRequest(http.MethodGet, "/pos/invoices/none", nil))
	assert.Equal(t, http.StatusNotFound, missing.Code)
}
