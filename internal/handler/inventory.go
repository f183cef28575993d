package handler

import (
	"cmp"
	"log/slog"
	"net/http"
	"time"

	"github.com/dukerupert/larder/internal/inventory"
)

type InventoryHandler struct {
	inv    *inventory.Service
	logger *slog.Logger
}

func NewInventoryHandler(inv *inventory.Service, logger *slog.Logger) *InventoryHandler {
	return &InventoryHandler{inv: inv, logger: logger}
}

func (h *InventoryHandler) Snapshot(w http.ResponseWriter, r *http.Request) {
	sections, err := h.inv.Snapshot(r.Context(), session(r), r.URL.Query().Get("q"))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, emptyIfNil(sections))
}

func (h *InventoryHandler) AddBatch(w http.ResponseWriter, r *http.Request) {
	var req inventory.NewBatch
	if !decodeJSON(w, r, &req) {
		return
	}
	b, err := h.inv.AddBatch(r.Context(), session(r), req)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, b)
}

func (h *InventoryHandler) EditBatch(w http.ResponseWriter, r *http.Request) {
	var req inventory.BatchPatch
	if !decodeJSON(w, r, &req) {
		return
	}
	b, err := h.inv.EditBatch(r.Context(), session(r), r.PathValue("id"), req)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	if b == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	writeJSON(w, http.StatusOK, b)
}

func (h *InventoryHandler) DeleteBatch(w http.ResponseWriter, r *http.Request) {
	if err := h.inv.DeleteBatch(r.Context(), session(r), r.PathValue("id")); err != nil {
		writeError(w, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *InventoryHandler) Adjust(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Delta int `json:"delta"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	b, err := h.inv.AdjustQuantity(r.Context(), session(r), r.PathValue("id"), req.Delta)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	if b == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	writeJSON(w, http.StatusOK, b)
}

func (h *InventoryHandler) Transfer(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Amount      int    `json:"amount"`
		TargetOwner string `json:"target_owner"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	b, err := h.inv.Transfer(r.Context(), session(r), r.PathValue("id"), req.Amount, req.TargetOwner)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, b)
}

func (h *InventoryHandler) CompleteSetup(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Category  string     `json:"category"`
		ExpiresAt *time.Time `json:"expires_at"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	b, err := h.inv.CompleteSetup(r.Context(), session(r), r.PathValue("id"), req.Category, req.ExpiresAt)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, b)
}

func (h *InventoryHandler) Consume(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name    string `json:"name"`
		OwnerID string `json:"owner_id"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	sess := session(r)
	owner, err := h.inv.ConsumeOne(r.Context(), sess, req.Name, cmp.Or(req.OwnerID, sess.UserID))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"owner_id": owner})
}

func (h *InventoryHandler) Group(w http.ResponseWriter, r *http.Request) {
	sess := session(r)
	q := r.URL.Query()
	v, err := h.inv.Group(r.Context(), sess, q.Get("name"), cmp.Or(q.Get("owner"), sess.UserID))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

func (h *InventoryHandler) DeleteGroup(w http.ResponseWriter, r *http.Request) {
	sess := session(r)
	q := r.URL.Query()
	n, err := h.inv.DeleteGroup(r.Context(), sess, q.Get("name"), cmp.Or(q.Get("owner"), sess.UserID))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"deleted": n})
}

func (h *InventoryHandler) SetThreshold(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name      string `json:"name"`
		OwnerID   string `json:"owner_id"`
		Threshold *int   `json:"threshold"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	sess := session(r)
	n, err := h.inv.SetGroupThreshold(r.Context(), sess, req.Name, cmp.Or(req.OwnerID, sess.UserID), req.Threshold)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"changed": n})
}

func (h *InventoryHandler) Owners(w http.ResponseWriter, r *http.Request) {
	groups, err := h.inv.OwnerGroups(r.Context(), session(r), r.URL.Query().Get("name"))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, groups)
}

func (h *InventoryHandler) Alerts(w http.ResponseWriter, r *http.Request) {
	pendingOnly := r.URL.Query().Get("pending") == "true"
	alerts, err := h.inv.Alerts(r.Context(), session(r), pendingOnly)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, emptyIfNil(alerts))
}
