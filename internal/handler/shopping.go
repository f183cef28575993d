package handler

import (
	"log/slog"
	"net/http"

	"go.uber.org/multierr"

	"github.com/dukerupert/larder/internal/inventory"
	"github.com/dukerupert/larder/internal/model"
	"github.com/dukerupert/larder/internal/shopping"
)

type ShoppingHandler struct {
	shop   *shopping.Service
	inv    *inventory.Service
	logger *slog.Logger
}

func NewShoppingHandler(shop *shopping.Service, inv *inventory.Service, logger *slog.Logger) *ShoppingHandler {
	return &ShoppingHandler{shop: shop, inv: inv, logger: logger}
}

func (h *ShoppingHandler) List(w http.ResponseWriter, r *http.Request) {
	entries, err := h.shop.List(r.Context(), session(r))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, emptyIfNil(entries))
}

func (h *ShoppingHandler) QuickAdd(w http.ResponseWriter, r *http.Request) {
	var req shopping.Item
	if !decodeJSON(w, r, &req) {
		return
	}
	e, err := h.shop.QuickAdd(r.Context(), session(r), req)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, e)
}

func (h *ShoppingHandler) Update(w http.ResponseWriter, r *http.Request) {
	var req shopping.EntryPatch
	if !decodeJSON(w, r, &req) {
		return
	}
	e, err := h.shop.Update(r.Context(), session(r), r.PathValue("id"), req)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, e)
}

func (h *ShoppingHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.shop.Delete(r.Context(), session(r), r.PathValue("id")); err != nil {
		writeError(w, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type checkoutResponse struct {
	Created []model.Batch `json:"created"`
	Errors  []string      `json:"errors"`
}

// Checkout answers 200 with the per-entry failures listed as long as at
// least one entry made it into inventory.
func (h *ShoppingHandler) Checkout(w http.ResponseWriter, r *http.Request) {
	var req struct {
		IDs []string `json:"ids"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	created, err := h.shop.Checkout(r.Context(), session(r), req.IDs)
	if err != nil && len(created) == 0 {
		errs := multierr.Errors(err)
		writeError(w, h.logger, errs[0])
		return
	}

	resp := checkoutResponse{Created: emptyIfNil(created), Errors: []string{}}
	for _, e := range multierr.Errors(err) {
		resp.Errors = append(resp.Errors, e.Error())
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *ShoppingHandler) Scan(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Code string `json:"code"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	e, err := h.shop.ScanAdd(r.Context(), session(r), req.Code)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, e)
}

func (h *ShoppingHandler) AcceptAlert(w http.ResponseWriter, r *http.Request) {
	e, err := h.shop.AcceptAlert(r.Context(), session(r), r.PathValue("id"))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	if e == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	writeJSON(w, http.StatusOK, e)
}

func (h *ShoppingHandler) DismissAlert(w http.ResponseWriter, r *http.Request) {
	if err := h.shop.DismissAlert(r.Context(), session(r), r.PathValue("id")); err != nil {
		writeError(w, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *ShoppingHandler) RegisterBarcode(w http.ResponseWriter, r *http.Request) {
	var req model.BarcodeProduct
	if !decodeJSON(w, r, &req) {
		return
	}
	p, err := h.shop.RegisterBarcode(r.Context(), session(r), req)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (h *ShoppingHandler) LookupBarcode(w http.ResponseWriter, r *http.Request) {
	p, err := h.shop.LookupBarcode(r.Context(), session(r), r.PathValue("code"))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// BarcodeStock resolves a scanned code and lists who holds the product.
func (h *ShoppingHandler) BarcodeStock(w http.ResponseWriter, r *http.Request) {
	sess := session(r)
	p, err := h.shop.LookupBarcode(r.Context(), sess, r.PathValue("code"))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	groups, err := h.inv.OwnerGroups(r.Context(), sess, p.Name)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"product": p, "owners": groups})
}
