package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"adoptd/internal/models"
)

func (a *API) handleListCustomers(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := withTimeout(r.Context())
	defer cancel()

	var customers []models.Customer
	if err := a.store.ORM.WithContext(ctx).Order("name").Find(&customers).Error; err != nil {
		respondStoreError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"customers": customers})
}

func (a *API) handleCreateCustomer(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name  string `json:"name"`
		Notes string `json:"notes"`
	}
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err)
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		respondError(w, http.StatusBadRequest, errors.New("name is required"))
		return
	}

	ctx, cancel := withTimeout(r.Context())
	defer cancel()

	customer := models.Customer{ID: uuid.New(), Name: req.Name, Notes: req.Notes}
	if err := a.store.ORM.WithContext(ctx).Create(&customer).Error; err != nil {
		respondStoreError(w, err)
		return
	}

	a.audit.Record(ctx, "customer.create", "customer", customer.ID.String(), map[string]any{"name": customer.Name})
	respondJSON(w, http.StatusCreated, map[string]any{"customer": customer})
}

func (a *API) handleGetCustomer(w http.ResponseWriter, r *http.Request) {
	id, err := urlUUID(r, "customerID")
	if err != nil {
		respondError(w, http.StatusBadRequest, err)
		return
	}

	ctx, cancel := withTimeout(r.Context())
	defer cancel()

	var customer models.Customer
	err = a.store.ORM.WithContext(ctx).
		Preload("Products.Product").
		Preload("Products.SelectedOutcomes").
		Preload("Products.SelectedReleases").
		Preload("Solutions.Solution").
		First(&customer, "id = ?", id).Error
	if err != nil {
		respondStoreError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"customer": customer})
}

func (a *API) handleUpdateCustomer(w http.ResponseWriter, r *http.Request) {
	id, err := urlUUID(r, "customerID")
	if err != nil {
		respondError(w, http.StatusBadRequest, err)
		return
	}

	var req struct {
		Name  *string `json:"name"`
		Notes *string `json:"notes"`
	}
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err)
		return
	}

	updates := map[string]any{}
	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			respondError(w, http.StatusBadRequest, errors.New("name must not be empty"))
			return
		}
		updates["name"] = name
	}
	if req.Notes != nil {
		updates["notes"] = *req.Notes
	}
	if len(updates) == 0 {
		respondError(w, http.StatusBadRequest, errors.New("no fields to update"))
		return
	}

	ctx, cancel := withTimeout(r.Context())
	defer cancel()

	orm := a.store.ORM.WithContext(ctx)
	var customer models.Customer
	if err := orm.First(&customer, "id = ?", id).Error; err != nil {
		respondStoreError(w, err)
		return
	}
	if err := orm.Model(&customer).Updates(updates).Error; err != nil {
		respondStoreError(w, err)
		return
	}

	a.audit.Record(ctx, "customer.update", "customer", id.String(), updates)
	respondJSON(w, http.StatusOK, map[string]any{"customer": customer})
}

func (a *API) handleDeleteCustomer(w http.ResponseWriter, r *http.Request) {
	id, err := urlUUID(r, "customerID")
	if err != nil {
		respondError(w, http.StatusBadRequest, err)
		return
	}

	ctx, cancel := withTimeout(r.Context())
	defer cancel()

	res := a.store.ORM.WithContext(ctx).Delete(&models.Customer{}, "id = ?", id)
	if res.Error != nil {
		respondStoreError(w, res.Error)
		return
	}
	if res.RowsAffected == 0 {
		respondStoreError(w, gorm.ErrRecordNotFound)
		return
	}

	a.audit.Record(ctx, "customer.delete", "customer", id.String(), nil)
	respondJSON(w, http.StatusOK, map[string]any{"deleted": true})
}
