package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/opensource-commerce/tern/internal/cache"
	"github.com/opensource-commerce/tern/internal/checkout"
	"github.com/opensource-commerce/tern/internal/domain"
	"github.com/opensource-commerce/tern/internal/repository"
	"github.com/opensource-commerce/tern/internal/rules"
)

// Handler holds dependencies for API handlers.
type Handler struct {
	repo        domain.Repository
	cache       domain.Cache
	checkout    *checkout.Service
	ruleCache   *cache.CachedRuleStore
	version     string
	evalTimeout time.Duration
}

// NewHandler creates a new API handler. ruleCache may be nil when rule
// caching is disabled; rule writes then skip invalidation.
func NewHandler(repo domain.Repository, cacheStore domain.Cache, svc *checkout.Service, ruleCache *cache.CachedRuleStore, version string, evalTimeout time.Duration) *Handler {
	if evalTimeout == 0 {
		evalTimeout = 15 * time.Second
	}
	return &Handler{
		repo:        repo,
		cache:       cacheStore,
		checkout:    svc,
		ruleCache:   ruleCache,
		version:     version,
		evalTimeout: evalTimeout,
	}
}

// EvaluateRequest is the request body for POST /evaluate.
type EvaluateRequest struct {
	Line           domain.LineItem     `json:"line"`
	Customer       domain.CustomerInfo `json:"customer"`
	OrderReference string              `json:"orderReference,omitempty"`
}

// EvaluateResponse is the response for POST /evaluate.
type EvaluateResponse struct {
	*domain.EvaluationResult
	Metadata struct {
		TraceID string `json:"traceId"`
		TotalMs int64  `json:"totalMs"`
		Version string `json:"version"`
	} `json:"metadata"`
}

// Evaluate handles POST /evaluate requests.
func (h *Handler) Evaluate(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	traceID := GetTraceID(r.Context())

	ctx, cancel := context.WithTimeout(r.Context(), h.evalTimeout)
	defer cancel()

	var req EvaluateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid JSON request body",
		})
		return
	}

	result, err := h.checkout.EvaluateCart(ctx, req.Line, req.Customer, req.OrderReference)
	if err != nil {
		h.writeEvaluateError(w, err)
		return
	}

	resp := EvaluateResponse{EvaluationResult: result}
	resp.Metadata.TraceID = traceID
	resp.Metadata.TotalMs = time.Since(start).Milliseconds()
	resp.Metadata.Version = h.version

	writeJSON(w, http.StatusOK, resp)
}

// writeEvaluateError maps evaluation failures onto HTTP statuses.
func (h *Handler) writeEvaluateError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, checkout.ErrInvalidLineItem):
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})

	case errors.Is(err, rules.ErrRuleMustHaveConditions),
		errors.Is(err, rules.ErrInvalidRuleDefinition),
		errors.Is(err, rules.ErrUnsupportedOperator):
		writeJSON(w, http.StatusUnprocessableEntity, map[string]string{"error": err.Error()})

	case errors.Is(err, rules.ErrEngineUnavailable):
		writeJSON(w, http.StatusBadGateway, map[string]string{"error": err.Error()})

	case errors.Is(err, context.DeadlineExceeded):
		writeJSON(w, http.StatusGatewayTimeout, map[string]string{"error": "evaluation timed out"})

	default:
		slog.Error("cart evaluation failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "evaluation failed"})
	}
}

// Health returns server health status.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	status := "healthy"

	// Check repository health
	if h.repo != nil {
		if err := h.repo.Ping(r.Context()); err != nil {
			status = "degraded"
		}
	}

	// Check cache health
	if h.cache != nil {
		if err := h.cache.Ping(r.Context()); err != nil {
			status = "degraded"
		}
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"status":  status,
		"version": h.version,
	})
}

// Ready returns whether the server is ready to accept traffic.
func (h *Handler) Ready(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"ready": "true",
	})
}

// RuleRequest is the request body for creating or updating a rule.
// Pointer fields distinguish absent values from zero values so the
// stored defaults (salience 10, stackable, active) apply on create.
type RuleRequest struct {
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	Salience    *int            `json:"salience,omitempty"`
	Stackable   *bool           `json:"stackable,omitempty"`
	IsActive    *bool           `json:"isActive,omitempty"`
	Conditions  json.RawMessage `json:"conditions"`
	Actions     json.RawMessage `json:"actions"`
	ValidFrom   *time.Time      `json:"validFrom,omitempty"`
	ValidUntil  *time.Time      `json:"validUntil,omitempty"`
}

// validate checks a rule request and returns the normalized rule.
func (req *RuleRequest) validate() (*domain.PromotionRule, string) {
	if req.Name == "" {
		return nil, "name is required"
	}

	salience := 10
	if req.Salience != nil {
		salience = *req.Salience
	}
	if salience < 1 || salience > 100 {
		return nil, "salience must be between 1 and 100"
	}

	if req.ValidFrom != nil && req.ValidUntil != nil && !req.ValidUntil.After(*req.ValidFrom) {
		return nil, "validUntil must be after validFrom"
	}

	// Run the stored definitions through the translators so malformed
	// rules are rejected at write time, not during evaluation.
	if _, err := rules.TranslateConditions(req.Conditions); err != nil {
		return nil, "invalid conditions: " + err.Error()
	}
	actions, err := rules.TranslateActions(req.Actions)
	if err != nil {
		return nil, "invalid actions: " + err.Error()
	}
	if len(actions) == 0 {
		return nil, "at least one action is required"
	}

	rule := &domain.PromotionRule{
		Name:        req.Name,
		Description: req.Description,
		Salience:    salience,
		Stackable:   true,
		IsActive:    true,
		Conditions:  req.Conditions,
		Actions:     req.Actions,
		ValidFrom:   req.ValidFrom,
		ValidUntil:  req.ValidUntil,
	}
	if req.Stackable != nil {
		rule.Stackable = *req.Stackable
	}
	if req.IsActive != nil {
		rule.IsActive = *req.IsActive
	}
	return rule, ""
}

// CreateRule handles POST /rules.
func (h *Handler) CreateRule(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req RuleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid JSON request body",
		})
		return
	}

	rule, problem := req.validate()
	if problem != "" {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]string{"error": problem})
		return
	}

	if err := h.repo.CreateRule(ctx, rule); err != nil {
		slog.Error("failed to create rule", "name", rule.Name, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to create rule",
		})
		return
	}

	h.invalidateRules(ctx)

	slog.Info("rule created", "id", rule.ID, "name", rule.Name, "salience", rule.Salience)
	writeJSON(w, http.StatusCreated, rule)
}

// GetRule handles GET /rules/{id}.
func (h *Handler) GetRule(w http.ResponseWriter, r *http.Request) {
	id, ok := ruleID(w, r)
	if !ok {
		return
	}

	rule, err := h.repo.GetRule(r.Context(), id)
	if errors.Is(err, repository.ErrNotFound) {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "rule not found"})
		return
	}
	if err != nil {
		slog.Error("failed to get rule", "id", id, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to get rule"})
		return
	}

	writeJSON(w, http.StatusOK, rule)
}

// UpdateRule handles PUT /rules/{id}.
func (h *Handler) UpdateRule(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, ok := ruleID(w, r)
	if !ok {
		return
	}

	var req RuleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid JSON request body",
		})
		return
	}

	rule, problem := req.validate()
	if problem != "" {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]string{"error": problem})
		return
	}
	rule.ID = id

	err := h.repo.UpdateRule(ctx, rule)
	if errors.Is(err, repository.ErrNotFound) {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "rule not found"})
		return
	}
	if err != nil {
		slog.Error("failed to update rule", "id", id, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to update rule"})
		return
	}

	h.invalidateRules(ctx)

	slog.Info("rule updated", "id", id)
	writeJSON(w, http.StatusOK, rule)
}

// DeleteRule handles DELETE /rules/{id}.
func (h *Handler) DeleteRule(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, ok := ruleID(w, r)
	if !ok {
		return
	}

	err := h.repo.DeleteRule(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "rule not found"})
		return
	}
	if err != nil {
		slog.Error("failed to delete rule", "id", id, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to delete rule"})
		return
	}

	h.invalidateRules(ctx)

	slog.Info("rule deleted", "id", id)
	writeJSON(w, http.StatusOK, map[string]string{"message": "rule deleted"})
}

// ListRules handles GET /rules.
func (h *Handler) ListRules(w http.ResponseWriter, r *http.Request) {
	ruleList, err := h.repo.ListRules(r.Context())
	if err != nil {
		slog.Error("failed to list rules", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to list rules"})
		return
	}

	if ruleList == nil {
		ruleList = []*domain.PromotionRule{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"rules": ruleList,
		"count": len(ruleList),
	})
}

// ListApplications handles GET /rules/{id}/applications.
func (h *Handler) ListApplications(w http.ResponseWriter, r *http.Request) {
	id, ok := ruleID(w, r)
	if !ok {
		return
	}

	apps, err := h.repo.ListApplications(r.Context(), id)
	if err != nil {
		slog.Error("failed to list applications", "rule_id", id, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to list applications"})
		return
	}

	if apps == nil {
		apps = []*domain.RuleApplication{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"applications": apps,
		"count":        len(apps),
	})
}

// ListProducts handles GET /products.
func (h *Handler) ListProducts(w http.ResponseWriter, r *http.Request) {
	products, err := h.repo.ListProducts(r.Context())
	if err != nil {
		slog.Error("failed to list products", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to list products"})
		return
	}
	if products == nil {
		products = []*domain.Product{}
	}
	writeJSON(w, http.StatusOK, products)
}

// GetProduct handles GET /products/{id}.
func (h *Handler) GetProduct(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid product id"})
		return
	}

	product, err := h.repo.GetProduct(r.Context(), id)
	if errors.Is(err, repository.ErrNotFound) {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "product not found"})
		return
	}
	if err != nil {
		slog.Error("failed to get product", "id", id, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to get product"})
		return
	}

	writeJSON(w, http.StatusOK, product)
}

// ListCustomers handles GET /customers.
func (h *Handler) ListCustomers(w http.ResponseWriter, r *http.Request) {
	customers, err := h.repo.ListCustomers(r.Context())
	if err != nil {
		slog.Error("failed to list customers", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to list customers"})
		return
	}
	if customers == nil {
		customers = []*domain.Customer{}
	}
	writeJSON(w, http.StatusOK, customers)
}

// GetCustomer handles GET /customers/{id}.
func (h *Handler) GetCustomer(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid customer id"})
		return
	}

	customer, err := h.repo.GetCustomer(r.Context(), id)
	if errors.Is(err, repository.ErrNotFound) {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "customer not found"})
		return
	}
	if err != nil {
		slog.Error("failed to get customer", "id", id, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to get customer"})
		return
	}

	writeJSON(w, http.StatusOK, customer)
}

// ListCategories handles GET /categories.
func (h *Handler) ListCategories(w http.ResponseWriter, r *http.Request) {
	categories, err := h.repo.ListCategories(r.Context())
	if err != nil {
		slog.Error("failed to list categories", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to list categories"})
		return
	}
	if categories == nil {
		categories = []*domain.Category{}
	}
	writeJSON(w, http.StatusOK, categories)
}

func (h *Handler) invalidateRules(ctx context.Context) {
	if h.ruleCache != nil {
		h.ruleCache.Invalidate(ctx)
	}
}

func ruleID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid rule id"})
		return 0, false
	}
	return id, true
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
