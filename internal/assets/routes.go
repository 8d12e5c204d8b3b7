package assets

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

func SetupRoutes() http.Handler {
	r := chi.NewRouter()

	r.Get("/assets", ListAssetsHandler)
	r.Get("/assets/{id}", GetAssetHandler)
	r.Get("/asset-types", AssetTypesHandler)
	r.Get("/categories", CategoriesHandler)
	r.Get("/locations/{id}", GetLocationHandler)

	return r
}
