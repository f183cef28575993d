package handler

import (
	"log/slog"
	"net/http"

	"github.com/dukerupert/larder/internal/family"
)

type FamilyHandler struct {
	families *family.Service
	logger   *slog.Logger
}

func NewFamilyHandler(families *family.Service, logger *slog.Logger) *FamilyHandler {
	return &FamilyHandler{families: families, logger: logger}
}

func (h *FamilyHandler) Me(w http.ResponseWriter, r *http.Request) {
	sess := session(r)
	u, err := h.families.EnsureUser(r.Context(), sess.UserID, sess.UserName)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, u)
}

func (h *FamilyHandler) UpdateMe(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name  *string `json:"name"`
		Color *string `json:"color"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	u, err := h.families.UpdateProfile(r.Context(), session(r), req.Name, req.Color)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, u)
}

func (h *FamilyHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name        string `json:"name"`
		MemberLimit int    `json:"member_limit"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	f, err := h.families.Create(r.Context(), session(r), req.Name, req.MemberLimit)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, f)
}

func (h *FamilyHandler) Join(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Code string `json:"code"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	f, err := h.families.Join(r.Context(), session(r), req.Code)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, f)
}

func (h *FamilyHandler) Current(w http.ResponseWriter, r *http.Request) {
	v, err := h.families.Current(r.Context(), session(r))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

func (h *FamilyHandler) UpdateSettings(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name        *string `json:"name"`
		MemberLimit *int    `json:"member_limit"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	f, err := h.families.UpdateSettings(r.Context(), session(r), req.Name, req.MemberLimit)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, f)
}
