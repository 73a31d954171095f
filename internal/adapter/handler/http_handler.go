package handler

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/rl1809/cart-sync/internal/core/domain"
	"github.com/rl1809/cart-sync/internal/core/service"
	"github.com/rl1809/cart-sync/internal/core/store"
	"github.com/rl1809/cart-sync/internal/port"
)

type CartHandler struct {
	cart      *store.CartStore
	stock     *store.StockStore
	coalescer *service.WriteCoalescer
	validator *service.CartValidator
	triggers  *service.TriggerOrchestrator
	logger    *zap.Logger
}

func NewCartHandler(cart *store.CartStore, stock *store.StockStore, coalescer *service.WriteCoalescer, validator *service.CartValidator, triggers *service.TriggerOrchestrator, logger *zap.Logger) *CartHandler {
	return &CartHandler{
		cart:      cart,
		stock:     stock,
		coalescer: coalescer,
		validator: validator,
		triggers:  triggers,
		logger:    logger,
	}
}

func (h *CartHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Get("/health", h.HealthCheck)
	r.Route("/api", func(r chi.Router) {
		r.Get("/cart", h.GetCart)
		r.Post("/cart", h.SaveCart)
		r.Post("/cart/sync", h.Sync)
		r.Get("/cart/validation", h.QuickValidation)
		r.Post("/cart/validate", h.Validate)
		r.Put("/cart/items/{itemID}", h.UpdateItem)
		r.Delete("/cart/items/{itemID}", h.RemoveItem)
		r.Post("/lifecycle/foreground", h.Foreground)
		r.Post("/lifecycle/background", h.Background)
		r.Post("/lifecycle/focus", h.Focus)
	})
	return r
}

type UpdateItemRequest struct {
	Quantity     float64         `json:"quantity"`
	Unit         string          `json:"unit,omitempty"`
	Name         string          `json:"name,omitempty"`
	CategoryID   string          `json:"category_id,omitempty"`
	ImageURL     string          `json:"image_url,omitempty"`
	Price        decimal.Decimal `json:"price"`
	RewardPoints decimal.Decimal `json:"reward_points"`
}

type SaveCartRequest struct {
	Items []domain.CartLine `json:"items"`
}

type StatusResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// UpdateItem validates the quantity, applies the optimistic local change and
// schedules the debounced write. It responds before any network write fires.
func (h *CartHandler) UpdateItem(w http.ResponseWriter, r *http.Request) {
	itemID := chi.URLParam(r, "itemID")

	var req UpdateItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, StatusResponse{Success: false, Message: "invalid request body"})
		return
	}

	unit := domain.MeasurementUnit(req.Unit)
	if unit != domain.UnitByWeight && unit != domain.UnitByCount {
		// no unit supplied; infer from the category label
		unit = domain.GuessUnit(req.CategoryID)
	}

	if err := domain.ValidateQuantity(req.Quantity, unit); err != nil {
		writeJSON(w, http.StatusBadRequest, StatusResponse{Success: false, Message: err.Error()})
		return
	}

	line, ok := h.cart.Line(itemID)
	if !ok {
		line = domain.CartLine{
			ID:           itemID,
			CategoryID:   req.CategoryID,
			Name:         req.Name,
			ImageURL:     req.ImageURL,
			Price:        req.Price,
			RewardPoints: req.RewardPoints,
			Unit:         unit,
		}
	}
	line.Unit = unit
	line.Quantity = req.Quantity

	prior := h.cart.Snapshot()
	h.cart.SetLine(line)
	h.coalescer.ScheduleUpdate(itemID, line, req.Quantity, unit, session(r), prior, h.rollback)

	writeJSON(w, http.StatusAccepted, StatusResponse{Success: true, Message: "update scheduled"})
}

func (h *CartHandler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	itemID := chi.URLParam(r, "itemID")

	if _, ok := h.cart.Line(itemID); !ok {
		writeJSON(w, http.StatusNotFound, StatusResponse{Success: false, Message: "item not in cart"})
		return
	}

	prior := h.cart.Snapshot()
	h.cart.Remove(itemID)
	h.coalescer.ScheduleRemove(itemID, session(r), prior, h.rollback)

	writeJSON(w, http.StatusAccepted, StatusResponse{Success: true, Message: "removal scheduled"})
}

// SaveCart is the immediate bulk path, e.g. merging a guest cart after login.
// Unlike the item endpoints it reports the write outcome synchronously.
func (h *CartHandler) SaveCart(w http.ResponseWriter, r *http.Request) {
	var req SaveCartRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, StatusResponse{Success: false, Message: "invalid request body"})
		return
	}

	for i, line := range req.Items {
		if line.Unit != domain.UnitByWeight && line.Unit != domain.UnitByCount {
			req.Items[i].Unit = domain.GuessUnit(line.CategoryID)
		}
		if err := domain.ValidateQuantity(line.Quantity, req.Items[i].Unit); err != nil {
			writeJSON(w, http.StatusBadRequest, StatusResponse{Success: false, Message: err.Error()})
			return
		}
	}

	prior := h.cart.Snapshot()
	for _, line := range req.Items {
		h.cart.SetLine(line)
	}

	if err := h.coalescer.BatchSave(r.Context(), req.Items, session(r), prior, h.rollback); err != nil {
		writeJSON(w, http.StatusBadGateway, StatusResponse{Success: false, Message: "cart save failed"})
		return
	}
	writeJSON(w, http.StatusOK, StatusResponse{Success: true, Message: "cart saved"})
}

func (h *CartHandler) GetCart(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"items":   h.cart.Lines(),
		"pending": h.coalescer.PendingCount(),
	})
}

func (h *CartHandler) Sync(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.coalescer.SyncAll(r.Context()))
}

func (h *CartHandler) QuickValidation(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.validator.QuickValidate())
}

type ValidateRequest struct {
	AutoCorrect bool `json:"auto_correct"`
}

func (h *CartHandler) Validate(w http.ResponseWriter, r *http.Request) {
	var req ValidateRequest
	if r.Body != nil {
		// body is optional; a bare POST validates without correcting
		_ = json.NewDecoder(r.Body).Decode(&req)
	}

	report := h.validator.ValidateAndCorrect(r.Context(), service.Options{
		AutoCorrect: req.AutoCorrect,
		Force:       true,
		Source:      service.SourceManual,
	})
	writeJSON(w, http.StatusOK, report)
}

func (h *CartHandler) Foreground(w http.ResponseWriter, r *http.Request) {
	h.triggers.HandleAppForeground()
	writeJSON(w, http.StatusAccepted, StatusResponse{Success: true, Message: "validation scheduled"})
}

func (h *CartHandler) Background(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.triggers.HandleAppBackground(r.Context()))
}

func (h *CartHandler) Focus(w http.ResponseWriter, r *http.Request) {
	h.triggers.HandleScreenFocus()
	writeJSON(w, http.StatusAccepted, StatusResponse{Success: true, Message: "validation scheduled"})
}

func (h *CartHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *CartHandler) rollback(prior *store.Snapshot, err error) {
	h.cart.Restore(prior)
	h.logger.Warn("cart write rolled back", zap.Error(err))
}

func session(r *http.Request) port.Session {
	userID := r.Header.Get("X-User-ID")
	if userID == "" {
		userID = "guest"
	}
	return port.Session{
		UserID:        userID,
		Authenticated: r.Header.Get("Authorization") != "",
	}
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
