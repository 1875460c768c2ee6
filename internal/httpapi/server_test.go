package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Abiet55/testtestbot/internal/auth"
	"github.com/Abiet55/testtestbot/internal/catalog"
	"github.com/Abiet55/testtestbot/internal/feedback"
	"github.com/Abiet55/testtestbot/internal/order"
)

const (
	testUser  = "100"
	testAdmin = "900"
)

func newTestServer(t *testing.T) (*Server, *order.MemoryStore) {
	t.Helper()

	cat := catalog.NewMemory()
	require.NoError(t, cat.Upsert(context.Background(), "Gold", 500))

	store := order.NewMemoryStore()
	admins := auth.NewAllowlist([]int64{900})
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	workflow := order.NewWorkflow(cat, store, admins, "Pay to account 0100-0000.", logger)
	queue := order.NewQueue(store)
	fb := feedback.NewMemoryStore()

	return NewServer(workflow, queue, store, cat, fb, admins, logger), store
}

func doJSON(t *testing.T, s *Server, method, path, userHeader, adminHeader string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(b)
	}

	req := httptest.NewRequest(method, path, reader)
	if userHeader != "" {
		req.Header.Set("X-User-ID", userHeader)
	}
	if adminHeader != "" {
		req.Header.Set("X-Admin-ID", adminHeader)
	}

	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	return rec
}

func createOrder(t *testing.T, s *Server) order.Order {
	t.Helper()
	rec := doJSON(t, s, http.MethodPost, "/orders", testUser, "", map[string]any{"service": "Gold"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var o order.Order
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &o))
	return o
}

func TestListServices(t *testing.T) {
	s, _ := newTestServer(t)

	rec := doJSON(t, s, http.MethodGet, "/services", "", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Services []catalog.Service `json:"services"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, []catalog.Service{{Name: "Gold", Price: 500}}, resp.Services)
}

func TestOrderLifecycleOverHTTP(t *testing.T) {
	s, _ := newTestServer(t)
	o := createOrder(t, s)

	rec := doJSON(t, s, http.MethodPost, orderPath(o.ID, "payment-info"), testUser, "", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), "0100-0000")

	rec = doJSON(t, s, http.MethodPost, orderPath(o.ID, "proof"), testUser, "", map[string]any{"reference": "receipt-1"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = doJSON(t, s, http.MethodGet, "/admin/orders/pending", "", testAdmin, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"submitted"`)

	rec = doJSON(t, s, http.MethodPost, adminOrderPath(o.ID, "approve"), "", testAdmin, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), `"status":"approved"`)
}

func TestCreateOrderUnknownService(t *testing.T) {
	s, _ := newTestServer(t)

	rec := doJSON(t, s, http.MethodPost, "/orders", testUser, "", map[string]any{"service": "Platinum"})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSubmitProofWrongStateIsUnprocessable(t *testing.T) {
	s, _ := newTestServer(t)
	o := createOrder(t, s)

	rec := doJSON(t, s, http.MethodPost, orderPath(o.ID, "proof"), testUser, "", map[string]any{"reference": "receipt-1"})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestDoubleApproveIsUnprocessable(t *testing.T) {
	s, _ := newTestServer(t)
	o := createOrder(t, s)

	doJSON(t, s, http.MethodPost, orderPath(o.ID, "payment-info"), testUser, "", nil)
	doJSON(t, s, http.MethodPost, orderPath(o.ID, "proof"), testUser, "", map[string]any{"reference": "r"})
	rec := doJSON(t, s, http.MethodPost, adminOrderPath(o.ID, "approve"), "", testAdmin, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, s, http.MethodPost, adminOrderPath(o.ID, "approve"), "", testAdmin, nil)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestAdminEndpointsRequireAllowlistedID(t *testing.T) {
	s, _ := newTestServer(t)

	rec := doJSON(t, s, http.MethodGet, "/admin/orders/pending", "", "555", nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = doJSON(t, s, http.MethodGet, "/admin/orders/pending", "", "", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestUpsertAndRemoveService(t *testing.T) {
	s, _ := newTestServer(t)

	rec := doJSON(t, s, http.MethodPut, "/admin/services/Silver", "", testAdmin, map[string]any{"price": 300})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, s, http.MethodPut, "/admin/services/Silver", "", testAdmin, map[string]any{"price": 0})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doJSON(t, s, http.MethodDelete, "/admin/services/Silver", "", testAdmin, nil)
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = doJSON(t, s, http.MethodDelete, "/admin/services/Silver", "", testAdmin, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestNonPositiveIdentityHeadersRejected(t *testing.T) {
	s, _ := newTestServer(t)
	o := createOrder(t, s)

	// A zero user id must not fall through to the unscoped list filter.
	rec := doJSON(t, s, http.MethodGet, "/orders", "0", "", nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.NotContains(t, rec.Body.String(), `"user_id":100`)

	rec = doJSON(t, s, http.MethodGet, "/orders", "-1", "", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doJSON(t, s, http.MethodGet, orderPath(o.ID, ""), "0", "", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doJSON(t, s, http.MethodGet, "/admin/orders/pending", "", "0", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestForeignOrderReadsAsNotFound(t *testing.T) {
	s, _ := newTestServer(t)
	o := createOrder(t, s)

	rec := doJSON(t, s, http.MethodGet, orderPath(o.ID, ""), "200", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestOrderHistoryEndpoint(t *testing.T) {
	s, _ := newTestServer(t)
	o := createOrder(t, s)
	doJSON(t, s, http.MethodPost, orderPath(o.ID, "cancel"), testUser, "", nil)

	rec := doJSON(t, s, http.MethodGet, orderPath(o.ID, "history"), testUser, "", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Events []order.Event `json:"events"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Events, 2)
	assert.Equal(t, order.StatusCancelled, resp.Events[1].To)
}

func TestFeedbackFlow(t *testing.T) {
	s, _ := newTestServer(t)

	rec := doJSON(t, s, http.MethodPost, "/feedback", testUser, "", map[string]any{"text": "verification is slow"})
	require.Equal(t, http.StatusCreated, rec.Code)

	var fb feedback.Feedback
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &fb))

	rec = doJSON(t, s, http.MethodGet, "/admin/feedback/pending", "", testAdmin, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "verification is slow")

	rec = doJSON(t, s, http.MethodPost, adminFeedbackResolvePath(fb.ID), "", testAdmin, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func orderPath(id int64, suffix string) string {
	p := "/orders/" + itoa(id)
	if suffix != "" {
		p += "/" + suffix
	}
	return p
}

func adminOrderPath(id int64, suffix string) string {
	return "/admin/orders/" + itoa(id) + "/" + suffix
}

func adminFeedbackResolvePath(id int64) string {
	return "/admin/feedback/" + itoa(id) + "/resolve"
}

func itoa(id int64) string {
	return strconv.FormatInt(id, 10)
}
