package cart

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	validator "github.com/go-playground/validator/v10"

	"github.com/glowkart/backend-cart/internal/catalog"
	"github.com/glowkart/backend-cart/internal/common"
)

// Handler wires cart ledgers to HTTP.
type Handler struct {
	Carts    *Manager
	Catalog  *catalog.Service
	Validate *validator.Validate
}

// Create mints or resumes a session cart.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	if h.Carts == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "cart manager not configured", nil)
		return
	}
	var payload struct {
		CartID string `json:"cartId"`
	}
	_ = json.NewDecoder(r.Body).Decode(&payload)
	cartID := strings.TrimSpace(payload.CartID)
	if cartID == "" {
		cartID = h.Carts.NewCartID()
	}
	ledger := h.Carts.Open(r.Context(), cartID)
	common.JSON(w, http.StatusCreated, map[string]any{
		"data": map[string]any{
			"cartId":         ledger.ID(),
			"shippingMethod": ledger.ShippingMethod(),
			"itemCount":      ledger.TotalItems(),
		},
	})
}

// Get returns cart contents plus the derived summary.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	ledger, ok := h.open(w, r)
	if !ok {
		return
	}
	h.render(w, ledger)
}

// Summary returns only the derived order summary.
func (h *Handler) Summary(w http.ResponseWriter, r *http.Request) {
	ledger, ok := h.open(w, r)
	if !ok {
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": ledger.Summary()})
}

type addItemPayload struct {
	ProductID string            `json:"productId" validate:"required"`
	Quantity  *int              `json:"quantity" validate:"omitempty,min=1"`
	Options   map[string]string `json:"options"`
}

// AddItem resolves the product snapshot and merges it into the ledger.
func (h *Handler) AddItem(w http.ResponseWriter, r *http.Request) {
	cartID, ok := h.cartID(w, r)
	if !ok {
		return
	}
	if h.Catalog == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "catalog not configured", nil)
		return
	}
	var payload addItemPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid payload", nil)
		return
	}
	if err := h.validate(payload); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", err.Error(), nil)
		return
	}
	qty := 1
	if payload.Quantity != nil {
		qty = *payload.Quantity
	}

	product, err := h.Catalog.Snapshot(r.Context(), payload.ProductID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	err = h.Carts.Mutate(r.Context(), cartID, func(ledger *Ledger) error {
		_, err := ledger.AddItem(r.Context(), Snapshot{
			ProductID:     product.ID,
			Name:          product.Name,
			Brand:         product.Brand,
			Image:         product.Image,
			Price:         product.Price,
			OriginalPrice: product.OriginalPrice,
		}, Options(payload.Options), qty)
		if err != nil {
			return err
		}
		h.render(w, ledger)
		return nil
	})
	if err != nil {
		h.writeError(w, err)
	}
}

// UpdateItem patches quantity and/or options on one line. Unknown line ids
// are accepted as no-ops.
func (h *Handler) UpdateItem(w http.ResponseWriter, r *http.Request) {
	cartID, ok := h.cartID(w, r)
	if !ok {
		return
	}
	itemID := chi.URLParam(r, "itemId")
	var payload struct {
		Quantity *int               `json:"quantity"`
		Options  *map[string]string `json:"options"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid payload", nil)
		return
	}
	if payload.Quantity == nil && payload.Options == nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "quantity or options is required", nil)
		return
	}
	err := h.Carts.Mutate(r.Context(), cartID, func(ledger *Ledger) error {
		if payload.Quantity != nil {
			ledger.UpdateQuantity(r.Context(), itemID, *payload.Quantity)
		}
		if payload.Options != nil {
			ledger.UpdateOptions(r.Context(), itemID, Options(*payload.Options))
		}
		h.render(w, ledger)
		return nil
	})
	if err != nil {
		h.writeError(w, err)
	}
}

// RemoveItem deletes a line. Unknown line ids are accepted as no-ops.
func (h *Handler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	cartID, ok := h.cartID(w, r)
	if !ok {
		return
	}
	err := h.Carts.Mutate(r.Context(), cartID, func(ledger *Ledger) error {
		ledger.RemoveItem(r.Context(), chi.URLParam(r, "itemId"))
		h.render(w, ledger)
		return nil
	})
	if err != nil {
		h.writeError(w, err)
	}
}

// SetShippingMethod replaces the cart's shipping method.
func (h *Handler) SetShippingMethod(w http.ResponseWriter, r *http.Request) {
	cartID, ok := h.cartID(w, r)
	if !ok {
		return
	}
	var payload struct {
		Method string `json:"method" validate:"required"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid payload", nil)
		return
	}
	if err := h.validate(payload); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", err.Error(), nil)
		return
	}
	err := h.Carts.Mutate(r.Context(), cartID, func(ledger *Ledger) error {
		if _, err := ledger.SetShippingMethod(r.Context(), payload.Method); err != nil {
			return err
		}
		h.render(w, ledger)
		return nil
	})
	if err != nil {
		h.writeError(w, err)
	}
}

// Contains reports whether a line with the given identity exists; used by
// wishlist-to-cart flows to avoid duplicate-add confusion.
func (h *Handler) Contains(w http.ResponseWriter, r *http.Request) {
	ledger, ok := h.open(w, r)
	if !ok {
		return
	}
	var payload struct {
		ProductID string            `json:"productId" validate:"required"`
		Options   map[string]string `json:"options"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid payload", nil)
		return
	}
	if err := h.validate(payload); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", err.Error(), nil)
		return
	}
	present := ledger.HasItem(payload.ProductID, Options(payload.Options))
	common.JSON(w, http.StatusOK, map[string]any{"data": map[string]any{"present": present}})
}

// Clear empties the cart and resets the shipping method.
func (h *Handler) Clear(w http.ResponseWriter, r *http.Request) {
	cartID, ok := h.cartID(w, r)
	if !ok {
		return
	}
	err := h.Carts.Mutate(r.Context(), cartID, func(ledger *Ledger) error {
		ledger.Clear(r.Context())
		h.render(w, ledger)
		return nil
	})
	if err != nil {
		h.writeError(w, err)
	}
}

func (h *Handler) cartID(w http.ResponseWriter, r *http.Request) (string, bool) {
	if h.Carts == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "cart manager not configured", nil)
		return "", false
	}
	cartID := strings.TrimSpace(chi.URLParam(r, "id"))
	if cartID == "" {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid cart id", nil)
		return "", false
	}
	return cartID, true
}

func (h *Handler) open(w http.ResponseWriter, r *http.Request) (*Ledger, bool) {
	cartID, ok := h.cartID(w, r)
	if !ok {
		return nil, false
	}
	return h.Carts.Open(r.Context(), cartID), true
}

func (h *Handler) render(w http.ResponseWriter, ledger *Ledger) {
	items := ledger.Items()
	if items == nil {
		items = []LineItem{}
	}
	common.JSON(w, http.StatusOK, map[string]any{
		"data": map[string]any{
			"cartId":         ledger.ID(),
			"shippingMethod": ledger.ShippingMethod(),
			"items":          items,
			"summary":        ledger.Summary(),
		},
	})
}

func (h *Handler) validate(payload any) error {
	if h.Validate == nil {
		return nil
	}
	return h.Validate.Struct(payload)
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	if err == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "unknown error", nil)
		return
	}
	var appErr *common.AppError
	if errors.As(err, &appErr) {
		status := appErr.HTTPStatus
		if status == 0 {
			status = http.StatusBadRequest
		}
		code := appErr.Code
		if code == "" {
			code = "BAD_REQUEST"
		}
		common.JSONError(w, status, code, appErr.Message, appErr.Details)
		return
	}
	switch {
	case errors.Is(err, ErrInvalidQuantity):
		common.JSONError(w, http.StatusBadRequest, "INVALID_QUANTITY", err.Error(), nil)
	case errors.Is(err, ErrInvalidPrice):
		common.JSONError(w, http.StatusBadRequest, "INVALID_PRICE", err.Error(), nil)
	case errors.Is(err, ErrInvalidShippingMethod):
		common.JSONError(w, http.StatusBadRequest, "INVALID_SHIPPING_METHOD", err.Error(), nil)
	case errors.Is(err, ErrInvalidInput):
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", err.Error(), nil)
	case errors.Is(err, catalog.ErrNotFound):
		common.JSONError(w, http.StatusNotFound, "NOT_FOUND", err.Error(), nil)
	default:
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", err.Error(), nil)
	}
}
