package handlers

import (
	"net/http"
	"strconv"

	"adoptd/internal/models"
)

func (a *API) handleListUsers(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := withTimeout(r.Context())
	defer cancel()

	var users []models.User
	if err := a.store.ORM.WithContext(ctx).Preload("Roles").Order("email").Find(&users).Error; err != nil {
		respondStoreError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"users": users})
}

func (a *API) handleListRoles(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := withTimeout(r.Context())
	defer cancel()

	var roles []models.Role
	if err := a.store.ORM.WithContext(ctx).Preload("Permissions").Order("name").Find(&roles).Error; err != nil {
		respondStoreError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"roles": roles})
}

func (a *API) handleListAuditLogs(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	ctx, cancel := withTimeout(r.Context())
	defer cancel()

	entries, err := a.audit.List(ctx, limit)
	if err != nil {
		respondStoreError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"audit_logs": entries})
}
