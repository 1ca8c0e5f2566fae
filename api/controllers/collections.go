package controllers

import (
	"fmt"
	"net/http"

	"github.com/google/uuid"

	"github.com/angelmondragon/shopfront-backend/api/responses"
	"github.com/angelmondragon/shopfront-backend/api/validators"
	"github.com/angelmondragon/shopfront-backend/internal/catalog"
	pkgerrors "github.com/angelmondragon/shopfront-backend/pkg/errors"
	"github.com/angelmondragon/shopfront-backend/pkg/logger"
)

type createCollectionRequest struct {
	Name     string `json:"name" validate:"required,max=255"`
	ImageURL string `json:"image_url" validate:"required,image_url"`
	IsActive *bool  `json:"is_active"`
}

type updateCollectionRequest struct {
	Name     *string `json:"name" validate:"omitempty,max=255"`
	ImageURL *string `json:"image_url" validate:"omitempty,image_url"`
	IsActive *bool   `json:"is_active"`
}

type collectionIDsRequest struct {
	IDs []uuid.UUID `json:"ids"`
}

type bulkResult struct {
	Updated int64  `json:"updated"`
	Detail  string `json:"detail"`
}

func unavailable(logg *logger.Logger, w http.ResponseWriter, r *http.Request) {
	responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "catalog service unavailable"))
}

// CollectionList pages through active collections, newest first.
func CollectionList(svc catalog.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			unavailable(logg, w, r)
			return
		}
		params, err := pageParams(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		page, err := svc.ListCollections(r.Context(), params)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, page)
	}
}

func CollectionDetail(svc catalog.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			unavailable(logg, w, r)
			return
		}
		slug, err := pathSlug(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		detail, err := svc.GetCollectionBySlug(r.Context(), slug)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, detail)
	}
}

// CollectionProducts pages through the active products of one collection.
func CollectionProducts(svc catalog.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			unavailable(logg, w, r)
			return
		}
		slug, err := pathSlug(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		params, err := pageParams(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		page, err := svc.ListCollectionProducts(r.Context(), slug, params)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, page)
	}
}

func AdminListCollections(svc catalog.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			unavailable(logg, w, r)
			return
		}
		params, err := pageParams(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		page, err := svc.AdminListCollections(r.Context(), params)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, page)
	}
}

func AdminCreateCollection(svc catalog.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			unavailable(logg, w, r)
			return
		}
		var payload createCollectionRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		detail, err := svc.CreateCollection(r.Context(), catalog.CollectionInput{
			Name:     validators.SanitizeString(payload.Name, 255),
			ImageURL: payload.ImageURL,
			IsActive: payload.IsActive,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, detail)
	}
}

// AdminUpdateCollection renames, re-images or toggles a collection. Omitted fields are untouched.
func AdminUpdateCollection(svc catalog.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			unavailable(logg, w, r)
			return
		}
		id, err := pathUUID(r, "collectionId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var payload updateCollectionRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if payload.Name == nil && payload.ImageURL == nil && payload.IsActive == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "no changes provided"))
			return
		}
		update := catalog.CollectionUpdate{ImageURL: payload.ImageURL, IsActive: payload.IsActive}
		if payload.Name != nil {
			name := validators.SanitizeString(*payload.Name, 255)
			update.Name = &name
		}
		detail, err := svc.UpdateCollection(r.Context(), id, update)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, detail)
	}
}

// AdminSetCollectionActive backs both the activate and deactivate endpoints.
func AdminSetCollectionActive(svc catalog.Service, logg *logger.Logger, active bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			unavailable(logg, w, r)
			return
		}
		id, err := pathUUID(r, "collectionId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		detail, err := svc.SetCollectionActive(r.Context(), id, active)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, detail)
	}
}

func AdminBulkSetCollectionsActive(svc catalog.Service, logg *logger.Logger, active bool) http.HandlerFunc {
	verb := "deactivated"
	if active {
		verb = "activated"
	}
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			unavailable(logg, w, r)
			return
		}
		var payload collectionIDsRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		updated, err := svc.SetCollectionsActive(r.Context(), payload.IDs, active)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, bulkResult{
			Updated: updated,
			Detail:  fmt.Sprintf("%d collection(s) %s successfully.", updated, verb),
		})
	}
}

func AdminDeleteCollection(svc catalog.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			unavailable(logg, w, r)
			return
		}
		id, err := pathUUID(r, "collectionId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if err := svc.DeleteCollection(r.Context(), id); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]bool{"deleted": true})
	}
}
