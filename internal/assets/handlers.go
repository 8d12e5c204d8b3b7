package assets

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/wprdc/asset-registry/internal/db"
	"gorm.io/gorm"
)

const defaultPageLimit = 20

// AssetListItem is the compact serialization used for list responses.
type AssetListItem struct {
	ID           uint     `json:"id"`
	Name         string   `json:"name"`
	AssetTypes   []string `json:"asset_types"`
	Category     *string  `json:"category,omitempty"`
	LocationName *string  `json:"location,omitempty"`
	DoNotDisplay *bool    `json:"do_not_display,omitempty"`
}

func toListItem(a Asset) AssetListItem {
	item := AssetListItem{
		ID:           a.ID,
		Name:         a.Name,
		AssetTypes:   []string{},
		DoNotDisplay: a.DoNotDisplay,
	}
	for _, t := range a.AssetTypes {
		item.AssetTypes = append(item.AssetTypes, t.Name)
	}
	if c := a.CategoryOf(); c != nil {
		item.Category = &c.Name
	}
	if a.Location != nil {
		item.LocationName = &a.Location.Name
	}
	return item
}

// GeoJSONFeature serializes one asset as a GeoJSON Feature; geometry is
// null when the asset's location has no coordinates.
type GeoJSONFeature struct {
	Type       string         `json:"type"`
	Geometry   *geoJSONPoint  `json:"geometry"`
	Properties map[string]any `json:"properties"`
}

type geoJSONPoint struct {
	Type        string     `json:"type"`
	Coordinates [2]float64 `json:"coordinates"` // lon, lat
}

type geoJSONCollection struct {
	Type     string           `json:"type"`
	Features []GeoJSONFeature `json:"features"`
}

func toFeature(a Asset) GeoJSONFeature {
	f := GeoJSONFeature{
		Type: "Feature",
		Properties: map[string]any{
			"id":   a.ID,
			"name": a.Name,
		},
	}
	types := []string{}
	for _, t := range a.AssetTypes {
		types = append(types, t.Name)
	}
	f.Properties["asset_types"] = types
	if c := a.CategoryOf(); c != nil {
		f.Properties["category"] = c.Name
	}
	if a.Location != nil && a.Location.Latitude != nil && a.Location.Longitude != nil {
		f.Geometry = &geoJSONPoint{
			Type:        "Point",
			Coordinates: [2]float64{*a.Location.Longitude, *a.Location.Latitude},
		}
	}
	return f
}

func wantsGeoJSON(r *http.Request) bool {
	fmtParam := r.URL.Query().Get("fmt")
	return fmtParam == "geojson" || fmtParam == "geo"
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, "Failed to encode response", http.StatusInternalServerError)
	}
}

// ListAssetsHandler supports limit/offset pagination and name search.
func ListAssetsHandler(w http.ResponseWriter, r *http.Request) {
	limit := defaultPageLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}
	offset := 0
	if v := r.URL.Query().Get("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			offset = n
		}
	}

	query := db.DB.Model(&Asset{})
	if search := r.URL.Query().Get("search"); search != "" {
		query = query.Where("name ILIKE ?", "%"+search+"%")
	}

	var count int64
	if err := query.Count(&count).Error; err != nil {
		http.Error(w, "DB error: "+err.Error(), http.StatusInternalServerError)
		return
	}

	var assets []Asset
	err := query.
		Preload("AssetTypes").
		Preload("AssetTypes.Category").
		Preload("Location").
		Limit(limit).Offset(offset).
		Order("id").
		Find(&assets).Error
	if err != nil {
		http.Error(w, "DB error: "+err.Error(), http.StatusInternalServerError)
		return
	}

	if wantsGeoJSON(r) {
		fc := geoJSONCollection{Type: "FeatureCollection", Features: []GeoJSONFeature{}}
		for _, a := range assets {
			fc.Features = append(fc.Features, toFeature(a))
		}
		writeJSON(w, fc)
		return
	}

	results := []AssetListItem{}
	for _, a := range assets {
		results = append(results, toListItem(a))
	}
	writeJSON(w, map[string]any{
		"count":   count,
		"results": results,
	})
}

func GetAssetHandler(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, "Invalid asset id", http.StatusBadRequest)
		return
	}

	var asset Asset
	err = db.DB.
		Preload("AssetTypes").
		Preload("AssetTypes.Category").
		Preload("Location").
		Preload("Organization").
		Preload("Services").
		Preload("HardToCountPopulation").
		Preload("Tags").
		Preload("DataSource").
		First(&asset, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		http.Error(w, "Asset not found", http.StatusNotFound)
		return
	}
	if err != nil {
		http.Error(w, "DB error: "+err.Error(), http.StatusInternalServerError)
		return
	}

	if wantsGeoJSON(r) {
		writeJSON(w, toFeature(asset))
		return
	}
	writeJSON(w, asset)
}

func AssetTypesHandler(w http.ResponseWriter, r *http.Request) {
	var types []AssetType
	if err := db.DB.Preload("Category").Find(&types).Error; err != nil {
		http.Error(w, "DB error: "+err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, types)
}

func CategoriesHandler(w http.ResponseWriter, r *http.Request) {
	var categories []Category
	if err := db.DB.Find(&categories).Error; err != nil {
		http.Error(w, "DB error: "+err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, categories)
}

func GetLocationHandler(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, "Invalid location id", http.StatusBadRequest)
		return
	}

	var location Location
	err = db.DB.First(&location, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		http.Error(w, "Location not found", http.StatusNotFound)
		return
	}
	if err != nil {
		http.Error(w, "DB error: "+err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, location)
}
