package httpapi

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"gestorpro/backend/internal/domain"
	"gestorpro/backend/internal/remote"
	"gestorpro/backend/internal/replica"
	"gestorpro/backend/internal/service"
	"gestorpro/backend/internal/store/memory"
)

const testAdminPassword = "super-secret-password"

func newTestAPI(t *testing.T) (http.Handler, string) {
	t.Helper()

	repo := memory.NewSeeded()
	svc := service.New(repo)
	synchronizer := replica.New(repo, remote.NewMemory(), "")
	auth := NewAuthManager(strings.Repeat("x", 32), time.Hour, testAdminPassword)
	api := New(svc, synchronizer, auth, "http://127.0.0.1:3000")

	login, err := auth.Login(domain.LoginRequest{Username: "admin", Password: testAdminPassword})
	if err != nil {
		t.Fatalf("login failed: %v", err)
	}
	return api.Handler(), login.AccessToken
}

func doRequest(t *testing.T, handler http.Handler, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body failed: %v", err)
		}
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, dest any) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), dest); err != nil {
		t.Fatalf("decode response failed: %v (%s)", err, rec.Body.String())
	}
}

func TestLoginEndpoint(t *testing.T) {
	handler, _ := newTestAPI(t)

	rec := doRequest(t, handler, http.MethodPost, "/api/v1/auth/login", "", domain.LoginRequest{
		Username: "admin",
		Password: testAdminPassword,
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var resp domain.LoginResponse
	decodeBody(t, rec, &resp)
	if resp.AccessToken == "" {
		t.Fatalf("expected access token in response")
	}

	rec = doRequest(t, handler, http.MethodPost, "/api/v1/auth/login", "", domain.LoginRequest{
		Username: "admin",
		Password: "wrong",
	})
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for wrong password, got %d", rec.Code)
	}
}

func TestEndpointsRequireBearerToken(t *testing.T) {
	handler, _ := newTestAPI(t)

	rec := doRequest(t, handler, http.MethodGet, "/api/v1/products", "", nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", rec.Code)
	}

	rec = doRequest(t, handler, http.MethodGet, "/api/v1/products", "not-a-jwt", nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 with bad token, got %d", rec.Code)
	}
}

func TestProductLifecycleOverHTTP(t *testing.T) {
	handler, token := newTestAPI(t)

	rec := doRequest(t, handler, http.MethodPost, "/api/v1/products", token, domain.ProductCreateRequest{
		Name:            "Aceite 1L",
		Category:        "Alimentos",
		PriceCents:      3200,
		InitialQuantity: 6,
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	var created struct {
		Product domain.Product `json:"product"`
	}
	decodeBody(t, rec, &created)
	if created.Product.ID == "" || created.Product.Quantity != 6 {
		t.Fatalf("unexpected created product: %+v", created.Product)
	}

	newPrice := int64(3500)
	rec = doRequest(t, handler, http.MethodPatch, "/api/v1/products/"+created.Product.ID, token, domain.ProductUpdateRequest{
		PriceCents: &newPrice,
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 on patch, got %d: %s", rec.Code, rec.Body.String())
	}

	rec = doRequest(t, handler, http.MethodGet, "/api/v1/products/"+created.Product.ID+"/movements", token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 on movements, got %d", rec.Code)
	}
	var history struct {
		Movements []domain.StockMovement `json:"movements"`
	}
	decodeBody(t, rec, &history)
	if len(history.Movements) != 1 {
		t.Fatalf("expected one opening movement, got %d", len(history.Movements))
	}

	rec = doRequest(t, handler, http.MethodDelete, "/api/v1/products/"+created.Product.ID, token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 on delete, got %d", rec.Code)
	}
	rec = doRequest(t, handler, http.MethodGet, "/api/v1/products/"+created.Product.ID, token, nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 after delete, got %d", rec.Code)
	}
}

func TestStockEntryAndReversalOverHTTP(t *testing.T) {
	handler, token := newTestAPI(t)

	rec := doRequest(t, handler, http.MethodGet, "/api/v1/products", token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var listing struct {
		Products []domain.Product `json:"products"`
	}
	decodeBody(t, rec, &listing)
	if len(listing.Products) == 0 {
		t.Fatalf("seeded store should list products")
	}
	product := listing.Products[0]

	rec = doRequest(t, handler, http.MethodPost, "/api/v1/stock/entries", token, domain.StockEntryRequest{
		ProductID: product.ID,
		Units:     9,
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201 on entry, got %d: %s", rec.Code, rec.Body.String())
	}
	var entry domain.StockEntryResponse
	decodeBody(t, rec, &entry)
	if entry.Product.Quantity != product.Quantity+9 {
		t.Fatalf("expected quantity %d, got %d", product.Quantity+9, entry.Product.Quantity)
	}

	rec = doRequest(t, handler, http.MethodDelete, "/api/v1/movements/"+entry.Movement.ID, token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 on reversal, got %d: %s", rec.Code, rec.Body.String())
	}
	var reversal domain.ReversalResponse
	decodeBody(t, rec, &reversal)
	if reversal.Product == nil || reversal.Product.Quantity != product.Quantity {
		t.Fatalf("reversal should restore quantity %d: %+v", product.Quantity, reversal.Product)
	}
}

func TestCheckoutConsignmentFlow(t *testing.T) {
	handler, token := newTestAPI(t)

	rec := doRequest(t, handler, http.MethodGet, "/api/v1/products", token, nil)
	var listing struct {
		Products []domain.Product `json:"products"`
	}
	decodeBody(t, rec, &listing)
	product := listing.Products[0]

	// Consignment without a client is rejected before anything moves.
	rec = doRequest(t, handler, http.MethodPost, "/api/v1/checkout", token, domain.SaleRequest{
		Kind:  domain.MovementConsignment,
		Lines: []domain.CartLine{{ProductID: product.ID, Units: 1}},
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for missing client, got %d: %s", rec.Code, rec.Body.String())
	}

	rec = doRequest(t, handler, http.MethodPost, "/api/v1/checkout", token, domain.SaleRequest{
		Kind:       domain.MovementConsignment,
		ClientName: "Maria Lopez",
		Lines:      []domain.CartLine{{ProductID: product.ID, Units: 2}},
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	var sale domain.SaleResponse
	decodeBody(t, rec, &sale)
	if sale.Debt == nil {
		t.Fatalf("consignment response must include the debt")
	}

	path := fmt.Sprintf("/api/v1/clients/%s/payments", "Maria%20Lopez")
	rec = doRequest(t, handler, http.MethodPost, path, token, domain.PaymentRequest{AmountCents: sale.Debt.AmountCents})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 on payment, got %d: %s", rec.Code, rec.Body.String())
	}
	var payment domain.PaymentResponse
	decodeBody(t, rec, &payment)
	if payment.OutstandingCents != 0 {
		t.Fatalf("expected debt settled, outstanding %d", payment.OutstandingCents)
	}
}

func TestConfigPatchIgnoresUnknownFields(t *testing.T) {
	handler, token := newTestAPI(t)

	rec := doRequest(t, handler, http.MethodPatch, "/api/v1/config", token, map[string]any{
		"shop_name":             "Tienda Azul",
		"some_future_field":     true,
		"another_unknown_field": 42,
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("config patch must tolerate unknown fields, got %d: %s", rec.Code, rec.Body.String())
	}
	var resp struct {
		Config domain.SystemConfig `json:"config"`
	}
	decodeBody(t, rec, &resp)
	if resp.Config.ShopName != "Tienda Azul" {
		t.Fatalf("patch not applied: %+v", resp.Config)
	}
}

func TestSyncEndpoints(t *testing.T) {
	handler, token := newTestAPI(t)

	rec := doRequest(t, handler, http.MethodPost, "/api/v1/sync/push", token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 on push, got %d: %s", rec.Code, rec.Body.String())
	}
	var push replica.PushResult
	decodeBody(t, rec, &push)
	if push.ObjectID == "" {
		t.Fatalf("push must report the object id")
	}

	rec = doRequest(t, handler, http.MethodPost, "/api/v1/sync/check", token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 on check, got %d: %s", rec.Code, rec.Body.String())
	}
	var check replica.CheckResult
	decodeBody(t, rec, &check)
	if !check.RemoteFound || check.RemoteNewer {
		t.Fatalf("just-pushed remote must be found and not newer: %+v", check)
	}

	// Pull is gated: no decision, no restore.
	rec = doRequest(t, handler, http.MethodPost, "/api/v1/sync/pull", token, map[string]any{})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for pull without decision, got %d: %s", rec.Code, rec.Body.String())
	}

	rec = doRequest(t, handler, http.MethodPost, "/api/v1/sync/pull", token, map[string]any{
		"decision": check.Decision,
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 on decided pull, got %d: %s", rec.Code, rec.Body.String())
	}

	rec = doRequest(t, handler, http.MethodGet, "/api/v1/sync/status", token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 on status, got %d", rec.Code)
	}
	var status replica.Status
	decodeBody(t, rec, &status)
	if status.State != replica.StateIdle || status.Backend != "memory" {
		t.Fatalf("unexpected status: %+v", status)
	}
}

func TestBackupExportEndpoint(t *testing.T) {
	handler, token := newTestAPI(t)

	rec := doRequest(t, handler, http.MethodGet, "/api/v1/backup/export", token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 on export, got %d", rec.Code)
	}
	disposition := rec.Header().Get("Content-Disposition")
	if !strings.Contains(disposition, "gestor-pro-backup-") {
		t.Fatalf("unexpected content disposition %q", disposition)
	}

	var snap domain.Snapshot
	decodeBody(t, rec, &snap)
	if len(snap.Products) == 0 || snap.Timestamp.IsZero() {
		t.Fatalf("export should carry the seeded snapshot")
	}

	rec = doRequest(t, handler, http.MethodPost, "/api/v1/backup/import", token, snap)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 on import, got %d: %s", rec.Code, rec.Body.String())
	}
}
