package controllers

import (
	"context"
	"net/http"

	"github.com/technoshop/technoshop-backend/api/responses"
	"github.com/technoshop/technoshop-backend/api/validators"
	"github.com/technoshop/technoshop-backend/internal/catalog"
	pkgerrors "github.com/technoshop/technoshop-backend/pkg/errors"
	"github.com/technoshop/technoshop-backend/pkg/logger"
	"github.com/technoshop/technoshop-backend/pkg/types"
)

func BrandList(svc catalog.Service, logg *logger.Logger) http.HandlerFunc {
	if svc == nil {
		return unavailable("catalog", logg)
	}
	return listEntries(svc.ListBrands, logg)
}

func BrandCreate(svc catalog.Service, logg *logger.Logger) http.HandlerFunc {
	if svc == nil {
		return unavailable("catalog", logg)
	}
	return createEntry(svc.CreateBrand, logg)
}

func BrandDelete(svc catalog.Service, logg *logger.Logger) http.HandlerFunc {
	if svc == nil {
		return unavailable("catalog", logg)
	}
	return deleteEntry("brandId", svc.DeleteBrand, logg)
}

func CategoryList(svc catalog.Service, logg *logger.Logger) http.HandlerFunc {
	if svc == nil {
		return unavailable("catalog", logg)
	}
	return listEntries(svc.ListCategories, logg)
}

func CategoryCreate(svc catalog.Service, logg *logger.Logger) http.HandlerFunc {
	if svc == nil {
		return unavailable("catalog", logg)
	}
	return createEntry(svc.CreateCategory, logg)
}

func CategoryDelete(svc catalog.Service, logg *logger.Logger) http.HandlerFunc {
	if svc == nil {
		return unavailable("catalog", logg)
	}
	return deleteEntry("categoryId", svc.DeleteCategory, logg)
}

func listEntries(list func(context.Context) ([]catalog.Entry, error), logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		entries, err := list(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, entries)
	}
}

func createEntry(create func(context.Context, catalog.CreateInput) (*catalog.Entry, error), logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body catalog.CreateInput
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		entry, err := create(r.Context(), body)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, entry)
	}
}

func deleteEntry(param string, remove func(context.Context, types.ObjectID) error, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := validators.ParsePathObjectID(r, param)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if err := remove(r.Context(), id); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]string{"status": "deleted"})
	}
}

func unavailable(name string, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, name+" service unavailable"))
	}
}
