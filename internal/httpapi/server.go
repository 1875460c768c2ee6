package httpapi

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/Abiet55/testtestbot/internal/catalog"
	"github.com/Abiet55/testtestbot/internal/feedback"
	"github.com/Abiet55/testtestbot/internal/order"
)

// Server is the command boundary: it parses structured requests, resolves
// caller identity from headers, and translates workflow errors into status
// codes. The core never parses free text and never trusts this layer for
// admin authorization; the workflow re-checks.
type Server struct {
	workflow *order.Workflow
	queue    *order.Queue
	orders   order.Store
	catalog  catalog.Catalog
	feedback feedback.Store
	auth     order.Authorizer
	logger   *slog.Logger
	mux      *http.ServeMux
}

func NewServer(workflow *order.Workflow, queue *order.Queue, orders order.Store, cat catalog.Catalog, fb feedback.Store, auth order.Authorizer, logger *slog.Logger) *Server {
	s := &Server{
		workflow: workflow,
		queue:    queue,
		orders:   orders,
		catalog:  cat,
		feedback: fb,
		auth:     auth,
		logger:   logger,
		mux:      http.NewServeMux(),
	}

	s.routes()
	return s
}

func (s *Server) routes() {
	s.mux.HandleFunc("GET /services", s.listServices)

	s.mux.HandleFunc("POST /orders", s.createOrder)
	s.mux.HandleFunc("GET /orders", s.listOrders)
	s.mux.HandleFunc("GET /orders/{orderID}", s.getOrder)
	s.mux.HandleFunc("GET /orders/{orderID}/history", s.orderHistory)
	s.mux.HandleFunc("POST /orders/{orderID}/payment-info", s.requestPaymentInfo)
	s.mux.HandleFunc("POST /orders/{orderID}/proof", s.submitProof)
	s.mux.HandleFunc("POST /orders/{orderID}/cancel", s.cancelOrder)
	s.mux.HandleFunc("POST /feedback", s.submitFeedback)

	s.mux.HandleFunc("PUT /admin/services/{name}", s.upsertService)
	s.mux.HandleFunc("DELETE /admin/services/{name}", s.removeService)
	s.mux.HandleFunc("GET /admin/orders/pending", s.listPendingOrders)
	s.mux.HandleFunc("POST /admin/orders/{orderID}/approve", s.approveOrder)
	s.mux.HandleFunc("POST /admin/orders/{orderID}/reject", s.rejectOrder)
	s.mux.HandleFunc("POST /admin/orders/{orderID}/cancel", s.adminCancelOrder)
	s.mux.HandleFunc("GET /admin/feedback/pending", s.listPendingFeedback)
	s.mux.HandleFunc("POST /admin/feedback/{feedbackID}/resolve", s.resolveFeedback)
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

// HandleFunc exposes the mux for extra routes wired at startup (the
// websocket feed).
func (s *Server) HandleFunc(pattern string, handler func(http.ResponseWriter, *http.Request)) {
	s.mux.HandleFunc(pattern, handler)
}

func (s *Server) listServices(w http.ResponseWriter, r *http.Request) {
	services, err := s.catalog.List(r.Context())
	if err != nil {
		s.logger.Error("list services", "err", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"services": services})
}

func (s *Server) createOrder(w http.ResponseWriter, r *http.Request) {
	userID, err := s.userIDFromRequest(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	var req struct {
		Service string `json:"service"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	o, err := s.workflow.Create(r.Context(), userID, req.Service)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, o)
}

func (s *Server) listOrders(w http.ResponseWriter, r *http.Request) {
	userID, err := s.userIDFromRequest(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	orders, err := s.orders.List(r.Context(), order.Filter{UserID: userID})
	if err != nil {
		s.logger.Error("list orders", "err", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"orders": orders})
}

func (s *Server) getOrder(w http.ResponseWriter, r *http.Request) {
	userID, err := s.userIDFromRequest(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	id, err := orderIDFromRequest(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid order id")
		return
	}

	o, err := s.ownedOrder(r, id, userID)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, o)
}

func (s *Server) orderHistory(w http.ResponseWriter, r *http.Request) {
	userID, err := s.userIDFromRequest(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	id, err := orderIDFromRequest(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid order id")
		return
	}

	if _, err := s.ownedOrder(r, id, userID); err != nil {
		s.writeDomainError(w, err)
		return
	}

	events, err := s.orders.History(r.Context(), id)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"events": events})
}

func (s *Server) requestPaymentInfo(w http.ResponseWriter, r *http.Request) {
	userID, err := s.userIDFromRequest(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	id, err := orderIDFromRequest(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid order id")
		return
	}

	o, err := s.workflow.RequestPaymentInfo(r.Context(), id, userID)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"order":        o,
		"instructions": s.workflow.PaymentInstructions(),
	})
}

func (s *Server) submitProof(w http.ResponseWriter, r *http.Request) {
	userID, err := s.userIDFromRequest(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	id, err := orderIDFromRequest(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid order id")
		return
	}

	var req struct {
		Reference string `json:"reference"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	o, err := s.workflow.SubmitProof(r.Context(), id, userID, req.Reference)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, o)
}

func (s *Server) cancelOrder(w http.ResponseWriter, r *http.Request) {
	userID, err := s.userIDFromRequest(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	id, err := orderIDFromRequest(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid order id")
		return
	}

	o, err := s.workflow.CancelByUser(r.Context(), id, userID)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, o)
}

func (s *Server) submitFeedback(w http.ResponseWriter, r *http.Request) {
	userID, err := s.userIDFromRequest(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	var req struct {
		Text string `json:"text"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	fb, err := s.feedback.Add(r.Context(), userID, req.Text)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, fb)
}

func (s *Server) upsertService(w http.ResponseWriter, r *http.Request) {
	if _, ok := s.requireAdmin(w, r); !ok {
		return
	}

	var req struct {
		Price int64 `json:"price"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	name := r.PathValue("name")
	if err := s.catalog.Upsert(r.Context(), name, req.Price); err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, catalog.Service{Name: name, Price: req.Price})
}

func (s *Server) removeService(w http.ResponseWriter, r *http.Request) {
	if _, ok := s.requireAdmin(w, r); !ok {
		return
	}

	if err := s.catalog.Remove(r.Context(), r.PathValue("name")); err != nil {
		s.writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) listPendingOrders(w http.ResponseWriter, r *http.Request) {
	if _, ok := s.requireAdmin(w, r); !ok {
		return
	}

	orders, err := s.queue.ListPending(r.Context())
	if err != nil {
		s.logger.Error("list pending orders", "err", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"orders": orders})
}

func (s *Server) approveOrder(w http.ResponseWriter, r *http.Request) {
	adminID, ok := s.requireAdmin(w, r)
	if !ok {
		return
	}
	id, err := orderIDFromRequest(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid order id")
		return
	}

	o, err := s.workflow.Approve(r.Context(), id, adminID)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, o)
}

func (s *Server) rejectOrder(w http.ResponseWriter, r *http.Request) {
	adminID, ok := s.requireAdmin(w, r)
	if !ok {
		return
	}
	id, err := orderIDFromRequest(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid order id")
		return
	}

	var req struct {
		Reason string `json:"reason"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	o, err := s.workflow.Reject(r.Context(), id, adminID, req.Reason)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, o)
}

func (s *Server) adminCancelOrder(w http.ResponseWriter, r *http.Request) {
	adminID, ok := s.requireAdmin(w, r)
	if !ok {
		return
	}
	id, err := orderIDFromRequest(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid order id")
		return
	}

	o, err := s.workflow.CancelByAdmin(r.Context(), id, adminID)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, o)
}

func (s *Server) listPendingFeedback(w http.ResponseWriter, r *http.Request) {
	if _, ok := s.requireAdmin(w, r); !ok {
		return
	}

	pending, err := s.feedback.ListPending(r.Context())
	if err != nil {
		s.logger.Error("list pending feedback", "err", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"feedback": pending})
}

func (s *Server) resolveFeedback(w http.ResponseWriter, r *http.Request) {
	if _, ok := s.requireAdmin(w, r); !ok {
		return
	}

	id, err := strconv.ParseInt(r.PathValue("feedbackID"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid feedback id")
		return
	}

	if err := s.feedback.Resolve(r.Context(), id); err != nil {
		s.writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ownedOrder scopes a read to the calling user; orders belonging to someone
// else read as not found.
func (s *Server) ownedOrder(r *http.Request, id, userID int64) (*order.Order, error) {
	o, err := s.orders.Get(r.Context(), id)
	if err != nil {
		return nil, err
	}
	if o.UserID != userID {
		return nil, order.ErrOrderNotFound
	}
	return o, nil
}

func (s *Server) userIDFromRequest(r *http.Request) (int64, error) {
	value := r.Header.Get("X-User-ID")
	if value == "" {
		return 0, errors.New("missing X-User-ID header")
	}
	userID, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return 0, err
	}
	// Zero is the store's "any user" filter value; never accept it as an
	// identity.
	if userID <= 0 {
		return 0, errors.New("invalid X-User-ID header")
	}
	return userID, nil
}

func (s *Server) requireAdmin(w http.ResponseWriter, r *http.Request) (int64, bool) {
	value := r.Header.Get("X-Admin-ID")
	if value == "" {
		writeError(w, http.StatusBadRequest, "missing X-Admin-ID header")
		return 0, false
	}
	adminID, err := strconv.ParseInt(value, 10, 64)
	if err != nil || adminID <= 0 {
		writeError(w, http.StatusBadRequest, "invalid X-Admin-ID header")
		return 0, false
	}
	if !s.auth.IsAdmin(adminID) {
		writeError(w, http.StatusForbidden, "admin access required")
		return 0, false
	}
	return adminID, true
}

func orderIDFromRequest(r *http.Request) (int64, error) {
	return strconv.ParseInt(r.PathValue("orderID"), 10, 64)
}

func (s *Server) writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, order.ErrInvalidArgument),
		errors.Is(err, catalog.ErrInvalidService),
		errors.Is(err, feedback.ErrInvalidFeedback):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, order.ErrUnauthorized):
		writeError(w, http.StatusForbidden, err.Error())
	case errors.Is(err, order.ErrOrderNotFound),
		errors.Is(err, catalog.ErrServiceNotFound),
		errors.Is(err, feedback.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, order.ErrConflict):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, order.ErrInvalidTransition):
		writeError(w, http.StatusUnprocessableEntity, err.Error())
	default:
		s.logger.Error("request failed", "err", err)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
