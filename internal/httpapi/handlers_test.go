package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"dukaanpos/backend/internal/domain"
	"dukaanpos/backend/internal/ledger"
	"dukaanpos/backend/internal/messaging"
	"dukaanpos/backend/internal/service"
	"dukaanpos/backend/internal/store/memory"
)

type echoTranslator struct{}

func (echoTranslator) ToLocalLanguage(_ context.Context, text string) (string, error) {
	return text, nil
}

func (echoTranslator) Rewrite(_ context.Context, message string, _ string) (string, error) {
	return message, nil
}

type echoTranscriber struct{}

func (echoTranscriber) Transcribe(context.Context, string, string) (string, error) {
	return "transcript", nil
}

// newTestAPI builds a full API with an in-memory store, real AuthManager and
// real Service so handler tests exercise the complete request path.
func newTestAPI(t *testing.T) *API {
	t.Helper()

	repo := memory.NewSeeded()
	book := ledger.NewBook(repo, nil, nil)
	composer := messaging.NewComposer(echoTranslator{}, echoTranscriber{}, nil, "")
	svc := service.New(repo, book, composer, nil, nil)
	auth := NewAuthManager("test-secret-key", time.Hour, repo)

	return New(svc, auth, "*", nil)
}

// doJSON issues an authenticated JSON request against the API.
func doJSON(t *testing.T, api *API, method string, path string, token string, csrf string, payload any) *httptest.ResponseRecorder {
	t.Helper()

	var body *bytes.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			t.Fatalf("marshal payload: %v", err)
		}
		body = bytes.NewReader(raw)
	} else {
		body = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, body)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if csrf != "" {
		req.Header.Set("X-CSRF-Token", csrf)
	}
	rec := httptest.NewRecorder()
	api.Handler().ServeHTTP(rec, req)
	return rec
}

func TestHandleHealth(t *testing.T) {
	api := newTestAPI(t)
	handler := api.Handler()

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var body map[string]any
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body["ok"] != true {
		t.Fatalf("expected ok:true, got %v", body["ok"])
	}
}

func TestHandleLogin_Success(t *testing.T) {
	api := newTestAPI(t)
	handler := api.Handler()

	payload, _ := json.Marshal(map[string]string{
		"username": "admin",
		"password": "admin123",
	})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (body: %s)", rec.Code, rec.Body.String())
	}

	var body map[string]any
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body["access_token"] == "" || body["access_token"] == nil {
		t.Fatalf("expected access_token in response, got %v", body)
	}
}

func TestHandleLogin_InvalidCredentials(t *testing.T) {
	api := newTestAPI(t)
	handler := api.Handler()

	payload, _ := json.Marshal(map[string]string{
		"username": "admin",
		"password": "wrongpassword",
	})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d (body: %s)", rec.Code, rec.Body.String())
	}
}

func TestHandleOrders_RequiresAuth(t *testing.T) {
	api := newTestAPI(t)
	handler := api.Handler()

	req := httptest.NewRequest(http.MethodGet, "/api/v1/orders", nil)
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestHandleOrders_WithValidToken(t *testing.T) {
	api := newTestAPI(t)
	token := loginAsAdmin(t, api)

	rec := doJSON(t, api, http.MethodGet, "/api/v1/orders", token, "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (body: %s)", rec.Code, rec.Body.String())
	}

	var body domain.OrderListResponse
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if len(body.Orders) == 0 {
		t.Fatalf("expected seeded orders in response")
	}
}

func TestEditFlowOverHTTP(t *testing.T) {
	api := newTestAPI(t)
	token := loginAsAdmin(t, api)
	csrf := fetchCSRFToken(t, api)

	rec := doJSON(t, api, http.MethodPost, "/api/v1/orders/ord-1003/edit", token, csrf, domain.BeginEditRequest{Field: "status"})
	if rec.Code != http.StatusOK {
		t.Fatalf("begin edit: expected 200, got %d (body: %s)", rec.Code, rec.Body.String())
	}

	rec = doJSON(t, api, http.MethodPost, "/api/v1/orders/ord-1003/edit/value", token, csrf, domain.SetEditValueRequest{Value: "completed"})
	if rec.Code != http.StatusOK {
		t.Fatalf("set value: expected 200, got %d (body: %s)", rec.Code, rec.Body.String())
	}

	rec = doJSON(t, api, http.MethodPost, "/api/v1/orders/ord-1003/edit/save", token, csrf, domain.SaveEditRequest{})
	if rec.Code != http.StatusOK {
		t.Fatalf("save: expected 200, got %d (body: %s)", rec.Code, rec.Body.String())
	}

	var saved domain.OrderResponse
	if err := json.NewDecoder(rec.Body).Decode(&saved); err != nil {
		t.Fatalf("decode save response: %v", err)
	}
	if saved.Order.Status != domain.OrderStatusCompleted {
		t.Fatalf("expected completed order in save response, got %s", saved.Order.Status)
	}
}

func TestCancellationConfirmationOverHTTP(t *testing.T) {
	api := newTestAPI(t)
	token := loginAsAdmin(t, api)
	csrf := fetchCSRFToken(t, api)

	rec := doJSON(t, api, http.MethodPost, "/api/v1/orders/ord-1001/edit", token, csrf, domain.BeginEditRequest{Field: "status"})
	if rec.Code != http.StatusOK {
		t.Fatalf("begin edit: expected 200, got %d", rec.Code)
	}
	rec = doJSON(t, api, http.MethodPost, "/api/v1/orders/ord-1001/edit/value", token, csrf, domain.SetEditValueRequest{Value: "cancelled"})
	if rec.Code != http.StatusOK {
		t.Fatalf("set value: expected 200, got %d", rec.Code)
	}

	// Unconfirmed cancellation answers 409 and flags the confirmation.
	rec = doJSON(t, api, http.MethodPost, "/api/v1/orders/ord-1001/edit/save", token, csrf, domain.SaveEditRequest{Confirm: false})
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409 without confirmation, got %d (body: %s)", rec.Code, rec.Body.String())
	}
	var conflict map[string]any
	if err := json.NewDecoder(rec.Body).Decode(&conflict); err != nil {
		t.Fatalf("decode conflict body: %v", err)
	}
	if conflict["confirmation_required"] != true {
		t.Fatalf("expected confirmation_required flag, got %v", conflict)
	}

	// The declined save reset the draft, so stage the value again.
	rec = doJSON(t, api, http.MethodPost, "/api/v1/orders/ord-1001/edit/value", token, csrf, domain.SetEditValueRequest{Value: "cancelled"})
	if rec.Code != http.StatusOK {
		t.Fatalf("re-set value: expected 200, got %d", rec.Code)
	}
	rec = doJSON(t, api, http.MethodPost, "/api/v1/orders/ord-1001/edit/save", token, csrf, domain.SaveEditRequest{Confirm: true})
	if rec.Code != http.StatusOK {
		t.Fatalf("confirmed save: expected 200, got %d (body: %s)", rec.Code, rec.Body.String())
	}
}

func TestAdjustmentOverHTTP(t *testing.T) {
	api := newTestAPI(t)
	token := loginAsAdmin(t, api)
	csrf := fetchCSRFToken(t, api)

	rec := doJSON(t, api, http.MethodPost, "/api/v1/orders/ord-1001/adjustments", token, csrf, domain.OrderAdjustmentRequest{
		Items: []domain.AdjustmentLineRequest{{ProductID: "prod-rice", Quantity: "1"}},
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d (body: %s)", rec.Code, rec.Body.String())
	}

	var resp domain.OrderAdjustmentResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if resp.Adjustment.RefundAmount.IsZero() {
		t.Fatalf("expected non-zero refund, got %s", resp.Adjustment.RefundAmount)
	}
}

func TestRecordPaymentOverHTTP(t *testing.T) {
	api := newTestAPI(t)
	token := loginAsAdmin(t, api)
	csrf := fetchCSRFToken(t, api)

	rec := doJSON(t, api, http.MethodPost, "/api/v1/credits/customers/cust-ahmed/payments", token, csrf, map[string]any{
		"amount": "5000",
		"method": "cash",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d (body: %s)", rec.Code, rec.Body.String())
	}

	var resp domain.LedgerMutationResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if resp.Customer.CurrentBalance.String() != "-7500" {
		t.Fatalf("expected refreshed balance -7500, got %s", resp.Customer.CurrentBalance)
	}
}

func TestReminderDeepLinkOverHTTP(t *testing.T) {
	api := newTestAPI(t)
	token := loginAsAdmin(t, api)
	csrf := fetchCSRFToken(t, api)

	rec := doJSON(t, api, http.MethodPost, "/api/v1/credits/customers/cust-ahmed/reminder/deep-link", token, csrf, domain.DeepLinkRequest{Message: "salam"})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (body: %s)", rec.Code, rec.Body.String())
	}

	var resp domain.DeepLinkResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if resp.URL == "" || resp.Phone == "" {
		t.Fatalf("expected url and phone in response, got %+v", resp)
	}
}

func TestSyncBalancesOverHTTP(t *testing.T) {
	api := newTestAPI(t)
	token := loginAsAdmin(t, api)
	csrf := fetchCSRFToken(t, api)

	rec := doJSON(t, api, http.MethodPost, "/api/v1/credits/sync-balances", token, csrf, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (body: %s)", rec.Code, rec.Body.String())
	}

	var resp domain.SyncBalancesResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if resp.CustomersSynced != 3 {
		t.Fatalf("expected 3 customers synced, got %d", resp.CustomersSynced)
	}
}

func TestAuditLogsRequireAdminRole(t *testing.T) {
	api := newTestAPI(t)
	token := loginAs(t, api, "operator", "operator123")

	rec := doJSON(t, api, http.MethodGet, "/api/v1/audit-logs", token, "", nil)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for operator, got %d", rec.Code)
	}
}
