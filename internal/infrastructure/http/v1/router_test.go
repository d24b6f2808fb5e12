package v1_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stockcore/internal/app"
	"stockcore/internal/core/id"
	"stockcore/internal/core/types"
	"stockcore/internal/domain/auth"
	"stockcore/internal/domain/catalog"
	"stockcore/internal/domain/events"
	v1 "stockcore/internal/infrastructure/http/v1"
	"stockcore/internal/infrastructure/http/v1/middleware"
	"stockcore/internal/infrastructure/storage/memory"
	"stockcore/pkg/logger"
)

type harness struct {
	router *gin.Engine
	events *events.Recorder

	product   id.ID
	warehouse id.ID
	locA      id.ID
	remote    id.ID
	remoteLoc id.ID
}

func newHarness(t *testing.T, validator middleware.TokenValidator) *harness {
	t.Helper()
	h := &harness{
		events:    &events.Recorder{},
		product:   id.New(),
		warehouse: id.New(),
		locA:      id.New(),
		remote:    id.New(),
		remoteLoc: id.New(),
	}

	dir := memory.NewDirectory()
	dir.PutProduct(catalog.Product{ID: h.product, SKU: "SKU-1", Name: "Widget", CostPrice: types.MustMoney("2.50")})
	dir.PutWarehouse(catalog.Warehouse{ID: h.warehouse, Code: "WH1", Active: true})
	dir.PutWarehouse(catalog.Warehouse{ID: h.remote, Code: "WH2", Active: true})
	dir.PutLocation(catalog.Location{ID: h.locA, WarehouseID: h.warehouse, Code: "A-01", Zone: catalog.ZoneStorage, Active: true})
	dir.PutLocation(catalog.Location{ID: h.remoteLoc, WarehouseID: h.remote, Code: "R-01", Zone: catalog.ZoneStorage, Active: true})

	core := app.NewCore(app.MemoryStorage(dir), h.events)
	cfg := v1.RouterConfig{
		Logger:             logger.Nop(),
		Services:           core.Services(),
		StorageDriver:      "memory",
		ExpiringWindowDays: 30,
	}
	if validator != nil {
		cfg.TokenValidator = validator
	}
	h.router = v1.NewRouter(cfg)
	return h
}

// do sends a request; headers come in name, value pairs.
func (h *harness) do(t *testing.T, method, path string, body any, headers ...string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	w := httptest.NewRecorder()
	h.router.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

func (h *harness) adjust(t *testing.T, loc id.ID, delta float64) *httptest.ResponseRecorder {
	t.Helper()
	return h.do(t, http.MethodPost, "/api/v1/stock/adjustments", map[string]any{
		"productId":   h.product,
		"warehouseId": h.warehouse,
		"locationId":  loc,
		"delta":       delta,
		"notes":       "opening balance",
	}, middleware.HeaderActorID, "clerk")
}

func TestHealth(t *testing.T) {
	h := newHarness(t, nil)

	w := h.do(t, http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, "memory", body["driver"])

	w = h.do(t, http.MethodGet, "/health/live", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestTrace_EchoesRequestID(t *testing.T) {
	h := newHarness(t, nil)

	w := h.do(t, http.MethodGet, "/health/live", nil, middleware.HeaderRequestID, "req-42")
	assert.Equal(t, "req-42", w.Header().Get(middleware.HeaderRequestID))
	assert.NotEmpty(t, w.Header().Get(middleware.HeaderTraceID))
}

func TestStock_AdjustThenLevels(t *testing.T) {
	h := newHarness(t, nil)

	w := h.adjust(t, h.locA, 10)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	mv := decode(t, w)
	assert.Equal(t, "ADJUSTMENT", mv["kind"])
	assert.Equal(t, "clerk", mv["actorId"])
	assert.InDelta(t, 10, mv["delta"], 0.0001)
	assert.InDelta(t, 10, mv["quantityAfter"], 0.0001)

	w = h.do(t, http.MethodGet, "/api/v1/stock/levels?productId="+h.product.String(), nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	items := decode(t, w)["items"].([]any)
	require.Len(t, items, 1)
	level := items[0].(map[string]any)
	assert.InDelta(t, 10, level["quantity"], 0.0001)
	assert.InDelta(t, 0, level["reserved"], 0.0001)
	assert.InDelta(t, 10, level["available"], 0.0001)

	w = h.do(t, http.MethodGet, "/api/v1/stock/movements?kind=ADJUSTMENT&productId="+h.product.String(), nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Len(t, decode(t, w)["items"], 1)

	w = h.do(t, http.MethodPost, "/api/v1/stock/verify", map[string]any{
		"productId":   h.product,
		"warehouseId": h.warehouse,
		"locationId":  h.locA,
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, true, decode(t, w)["consistent"])

	from := time.Now().UTC().Add(-time.Hour).Format(time.RFC3339)
	w = h.do(t, http.MethodGet, "/api/v1/stock/turnover?fromDate="+from+"&productId="+h.product.String(), nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	turnover := decode(t, w)
	assert.InDelta(t, 0, turnover["openingBalance"], 0.0001)
	assert.InDelta(t, 10, turnover["receipt"], 0.0001)
	assert.InDelta(t, 10, turnover["closingBalance"], 0.0001)

	w = h.do(t, http.MethodGet, "/api/v1/stock/turnover", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestErrors_RenderedAsJSON(t *testing.T) {
	h := newHarness(t, nil)

	tests := []struct {
		name   string
		method string
		path   string
		body   any
		status int
		code   string
	}{
		{
			name:   "malformed id",
			method: http.MethodGet,
			path:   "/api/v1/documents/transfers/not-a-uuid",
			status: http.StatusBadRequest,
			code:   "VALIDATION_ERROR",
		},
		{
			name:   "unknown document",
			method: http.MethodGet,
			path:   "/api/v1/documents/transfers/" + id.New().String(),
			status: http.StatusNotFound,
			code:   "NOT_FOUND",
		},
		{
			name:   "missing delta",
			method: http.MethodPost,
			path:   "/api/v1/stock/adjustments",
			body:   map[string]any{"productId": h.product, "warehouseId": h.warehouse},
			status: http.StatusBadRequest,
			code:   "VALIDATION_ERROR",
		},
		{
			name:   "unknown product",
			method: http.MethodPost,
			path:   "/api/v1/stock/adjustments",
			body:   map[string]any{"productId": id.New(), "warehouseId": h.warehouse, "delta": 1},
			status: http.StatusNotFound,
			code:   "NOT_FOUND",
		},
		{
			name:   "unknown movement kind",
			method: http.MethodGet,
			path:   "/api/v1/stock/movements?kind=TELEPORT",
			status: http.StatusBadRequest,
			code:   "VALIDATION_ERROR",
		},
		{
			name:   "drives stock negative",
			method: http.MethodPost,
			path:   "/api/v1/stock/adjustments",
			body:   map[string]any{"productId": h.product, "warehouseId": h.warehouse, "locationId": h.locA, "delta": -1},
			status: http.StatusUnprocessableEntity,
			code:   "INSUFFICIENT_STOCK",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := h.do(t, tt.method, tt.path, tt.body)
			require.Equal(t, tt.status, w.Code, w.Body.String())
			body := decode(t, w)
			assert.Equal(t, tt.code, body["code"])
			assert.NotEmpty(t, body["message"])
			assert.IsType(t, map[string]any{}, body["details"])
		})
	}
}

func TestTransfer_LifecycleOverHTTP(t *testing.T) {
	h := newHarness(t, nil)
	require.Equal(t, http.StatusCreated, h.adjust(t, h.locA, 10).Code)

	w := h.do(t, http.MethodPost, "/api/v1/documents/transfers", map[string]any{
		"fromWarehouseId": h.warehouse,
		"toWarehouseId":   h.remote,
		"items": []map[string]any{{
			"productId":      h.product,
			"fromLocationId": h.locA,
			"toLocationId":   h.remoteLoc,
			"quantity":       "6",
		}},
	}, middleware.HeaderActorID, "clerk")
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	doc := decode(t, w)
	assert.Equal(t, "DRAFT", doc["status"])
	assert.NotEmpty(t, doc["number"])
	base := "/api/v1/documents/transfers/" + doc["id"].(string)

	for _, step := range []struct {
		action string
		actor  string
		status string
	}{
		{"submit", "clerk", "PENDING_APPROVAL"},
		{"approve", "manager", "APPROVED"},
		{"ship", "driver", "IN_TRANSIT"},
		{"receive", "receiver", "COMPLETED"},
	} {
		w = h.do(t, http.MethodPost, base+"/"+step.action, nil, middleware.HeaderActorID, step.actor)
		require.Equal(t, http.StatusOK, w.Code, "%s: %s", step.action, w.Body.String())
		assert.Equal(t, step.status, decode(t, w)["status"], step.action)
	}

	// a second ship is not a legal transition from COMPLETED
	w = h.do(t, http.MethodPost, base+"/ship", nil)
	require.Equal(t, http.StatusConflict, w.Code, w.Body.String())
	assert.Equal(t, "INVALID_STATE_TRANSITION", decode(t, w)["code"])

	w = h.do(t, http.MethodGet, "/api/v1/stock/levels?warehouseId="+h.remote.String(), nil)
	require.Equal(t, http.StatusOK, w.Code)
	items := decode(t, w)["items"].([]any)
	require.Len(t, items, 1)
	assert.InDelta(t, 6, items[0].(map[string]any)["quantity"], 0.0001)

	w = h.do(t, http.MethodGet, "/api/v1/documents/transfers?status=completed", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Len(t, decode(t, w)["items"], 1)

	assert.NotEmpty(t, h.events.Events(events.TypeDocumentTransitioned))
}

func TestTransfer_RejectRequiresReason(t *testing.T) {
	h := newHarness(t, nil)
	require.Equal(t, http.StatusCreated, h.adjust(t, h.locA, 5).Code)

	w := h.do(t, http.MethodPost, "/api/v1/documents/transfers", map[string]any{
		"fromWarehouseId": h.warehouse,
		"toWarehouseId":   h.remote,
		"items":           []map[string]any{{"productId": h.product, "fromLocationId": h.locA, "quantity": 1}},
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	base := "/api/v1/documents/transfers/" + decode(t, w)["id"].(string)
	require.Equal(t, http.StatusOK, h.do(t, http.MethodPost, base+"/submit", nil).Code)

	w = h.do(t, http.MethodPost, base+"/reject", map[string]any{})
	assert.Equal(t, http.StatusBadRequest, w.Code, w.Body.String())

	w = h.do(t, http.MethodPost, base+"/reject", map[string]any{"reason": "not needed"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	doc := decode(t, w)
	assert.Equal(t, "REJECTED", doc["status"])
	assert.Equal(t, "not needed", doc["rejectionReason"])
}

func TestAuth_BearerToken(t *testing.T) {
	jwtService := auth.NewJWTService(auth.DefaultJWTConfig("test-secret"))
	h := newHarness(t, jwtService)

	// health stays open
	assert.Equal(t, http.StatusOK, h.do(t, http.MethodGet, "/health", nil).Code)

	w := h.adjust(t, h.locA, 1)
	require.Equal(t, http.StatusUnauthorized, w.Code, w.Body.String())
	assert.Equal(t, "UNAUTHORIZED", decode(t, w)["code"])

	w = h.do(t, http.MethodGet, "/api/v1/stock/levels", nil, "Authorization", "Token abc")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = h.do(t, http.MethodGet, "/api/v1/stock/levels", nil, "Authorization", "Bearer garbage")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	actorID := id.New().String()
	token, _, err := jwtService.GenerateAccessToken(actorID, "picker@example.com")
	require.NoError(t, err)

	w = h.do(t, http.MethodPost, "/api/v1/stock/adjustments", map[string]any{
		"productId":   h.product,
		"warehouseId": h.warehouse,
		"locationId":  h.locA,
		"delta":       3,
	}, "Authorization", "Bearer "+token, middleware.HeaderActorID, "spoofed")
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.Equal(t, actorID, decode(t, w)["actorId"])
}
