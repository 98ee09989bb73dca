package handlers

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"adoptd/internal/models"
	"adoptd/internal/workbook"
)

const maxWorkbookUpload = 20 << 20 // 20 MiB

func (a *API) handleListProducts(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := withTimeout(r.Context())
	defer cancel()

	var products []models.Product
	if err := a.store.ORM.WithContext(ctx).Order("name").Find(&products).Error; err != nil {
		respondStoreError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"products": products})
}

func (a *API) handleCreateProduct(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name        string `json:"name"`
		Description string `json:"description"`
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

	product := models.Product{ID: uuid.New(), Name: req.Name, Description: req.Description}
	if err := a.store.ORM.WithContext(ctx).Create(&product).Error; err != nil {
		respondStoreError(w, err)
		return
	}

	a.audit.Record(ctx, "product.create", "product", product.ID.String(), map[string]any{"name": product.Name})
	respondJSON(w, http.StatusCreated, map[string]any{"product": product})
}

func (a *API) handleGetProduct(w http.ResponseWriter, r *http.Request) {
	id, err := urlUUID(r, "productID")
	if err != nil {
		respondError(w, http.StatusBadRequest, err)
		return
	}

	ctx, cancel := withTimeout(r.Context())
	defer cancel()

	product, err := a.fetchProduct(ctx, id)
	if err != nil {
		respondStoreError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"product": product})
}

func (a *API) handleUpdateProduct(w http.ResponseWriter, r *http.Request) {
	id, err := urlUUID(r, "productID")
	if err != nil {
		respondError(w, http.StatusBadRequest, err)
		return
	}

	var req struct {
		Name        *string `json:"name"`
		Description *string `json:"description"`
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
	if req.Description != nil {
		updates["description"] = *req.Description
	}
	if len(updates) == 0 {
		respondError(w, http.StatusBadRequest, errors.New("no fields to update"))
		return
	}

	ctx, cancel := withTimeout(r.Context())
	defer cancel()

	orm := a.store.ORM.WithContext(ctx)
	var product models.Product
	if err := orm.First(&product, "id = ?", id).Error; err != nil {
		respondStoreError(w, err)
		return
	}
	if err := orm.Model(&product).Updates(updates).Error; err != nil {
		respondStoreError(w, err)
		return
	}

	a.audit.Record(ctx, "product.update", "product", id.String(), updates)
	respondJSON(w, http.StatusOK, map[string]any{"product": product})
}

func (a *API) handleDeleteProduct(w http.ResponseWriter, r *http.Request) {
	id, err := urlUUID(r, "productID")
	if err != nil {
		respondError(w, http.StatusBadRequest, err)
		return
	}

	ctx, cancel := withTimeout(r.Context())
	defer cancel()

	res := a.store.ORM.WithContext(ctx).Delete(&models.Product{}, "id = ?", id)
	if res.Error != nil {
		respondStoreError(w, res.Error)
		return
	}
	if res.RowsAffected == 0 {
		respondStoreError(w, gorm.ErrRecordNotFound)
		return
	}

	a.audit.Record(ctx, "product.delete", "product", id.String(), nil)
	respondJSON(w, http.StatusOK, map[string]any{"deleted": true})
}

func (a *API) handleExportProduct(w http.ResponseWriter, r *http.Request) {
	id, err := urlUUID(r, "productID")
	if err != nil {
		respondError(w, http.StatusBadRequest, err)
		return
	}

	ctx, cancel := withTimeout(r.Context())
	defer cancel()

	product, err := a.fetchProduct(ctx, id)
	if err != nil {
		respondStoreError(w, err)
		return
	}

	f, err := workbook.ExportProduct(product)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err)
		return
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		respondError(w, http.StatusInternalServerError, err)
		return
	}

	key := fmt.Sprintf("exports/products/%s/%d.xlsx", product.ID, time.Now().Unix())
	a.audit.Record(ctx, "product.export", "product", id.String(), nil)

	if r.URL.Query().Get("presign") == "true" {
		url, err := a.presignWorkbook(ctx, key, buf.Bytes())
		if err != nil {
			respondError(w, http.StatusFailedDependency, err)
			return
		}
		respondJSON(w, http.StatusOK, map[string]any{
			"url":        url,
			"expires_in": int(presignTTL.Seconds()),
		})
		return
	}

	a.archiveWorkbook(ctx, key, buf.Bytes())
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", product.Name+".xlsx"))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

func (a *API) handleImportProduct(w http.ResponseWriter, r *http.Request) {
	file, _, err := workbookUpload(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, err)
		return
	}
	defer file.Close()

	ctx, cancel := withTimeout(r.Context())
	defer cancel()

	result, err := workbook.ImportProduct(ctx, a.store.ORM, file)
	if err != nil {
		respondError(w, http.StatusUnprocessableEntity, err)
		return
	}

	a.audit.Record(ctx, "product.import", "product", result.ProductID.String(), map[string]any{
		"tasks_created": result.TasksCreated,
		"tasks_updated": result.TasksUpdated,
		"warnings":      len(result.Warnings),
	})
	respondJSON(w, http.StatusOK, result)
}

func (a *API) fetchProduct(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	var product models.Product
	err := a.store.ORM.WithContext(ctx).
		Preload("Outcomes").
		Preload("Releases").
		Preload("Attributes").
		Preload("Tasks", func(db *gorm.DB) *gorm.DB { return db.Order("sequence_number") }).
		Preload("Tasks.Outcomes").
		Preload("Tasks.Releases").
		Preload("Tasks.TelemetryAttributes").
		First(&product, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &product, nil
}

// workbookUpload pulls the uploaded xlsx out of a multipart form, accepting
// either a "file" or "workbook" field name.
func workbookUpload(r *http.Request) (multipart.File, string, error) {
	if err := r.ParseMultipartForm(maxWorkbookUpload); err != nil {
		return nil, "", fmt.Errorf("parse upload: %w", err)
	}
	for _, field := range []string{"file", "workbook"} {
		file, header, err := r.FormFile(field)
		if err == nil {
			return file, header.Filename, nil
		}
	}
	return nil, "", errors.New("multipart field \"file\" is required")
}

const presignTTL = 15 * time.Minute

// presignWorkbook uploads the workbook to object storage and returns a
// presigned download URL. Unlike archiveWorkbook this path is load-bearing,
// so a missing bucket or a failed upload is an error.
func (a *API) presignWorkbook(ctx context.Context, key string, data []byte) (string, error) {
	if a.store.S3 == nil || a.config.WorkbookBucket == "" {
		return "", errors.New("object storage not configured")
	}
	err := a.store.S3.PutObject(ctx, a.config.WorkbookBucket, key,
		"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
		bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", err
	}
	return a.store.S3.PresignGet(ctx, a.config.WorkbookBucket, key, presignTTL)
}

// archiveWorkbook keeps a copy of generated workbooks in object storage when
// a bucket is configured. Failure to archive never fails the request.
func (a *API) archiveWorkbook(ctx context.Context, key string, data []byte) {
	if a.store.S3 == nil || a.config.WorkbookBucket == "" {
		return
	}
	err := a.store.S3.PutObject(ctx, a.config.WorkbookBucket, key,
		"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
		bytes.NewReader(data), int64(len(data)))
	if err != nil {
		log.Warn().Err(err).Str("key", key).Msg("workbook archive failed")
	}
}
