package assets

import (
	"testing"
)

func sp(s string) *string   { return &s }
func fp(f float64) *float64 { return &f }

func TestLocationFullAddress(t *testing.T) {
	l := Location{
		StreetAddress: sp("4400 Forbes Ave"),
		City:          sp("Pittsburgh"),
		State:         sp("PA"),
		ZipCode:       sp("15213"),
	}
	if got := l.FullAddress(); got != "4400 Forbes Ave, Pittsburgh, PA 15213" {
		t.Errorf("FullAddress() = %q", got)
	}

	l.Municipality = sp("Oakland")
	if got := l.FullAddress(); got != "4400 Forbes Ave, Oakland, Pittsburgh, PA 15213" {
		t.Errorf("FullAddress() with municipality = %q", got)
	}

	if got := (&Location{City: sp("Pittsburgh")}).FullAddress(); got != "" {
		t.Errorf("FullAddress() without street = %q", got)
	}
}

func TestLocationDeriveNameFromAddress(t *testing.T) {
	l := Location{
		StreetAddress: sp("100 Main St"),
		City:          sp("Pittsburgh"),
		State:         sp("PA"),
		ZipCode:       sp("15213"),
	}
	l.Derive()
	if l.Name != "100 Main St, Pittsburgh, PA 15213" {
		t.Errorf("Name = %q", l.Name)
	}
}

func TestLocationDeriveNameFromCoordinates(t *testing.T) {
	l := Location{Latitude: fp(40.4406), Longitude: fp(-79.9959)}
	l.Derive()
	if l.Name != "(40.4406, -79.9959)" {
		t.Errorf("Name = %q", l.Name)
	}
	if l.Geom == nil || *l.Geom != "POINT(-79.9959 40.4406)" {
		t.Errorf("Geom = %v", l.Geom)
	}
}

func TestLocationDeriveGeomNilWithoutBothCoordinates(t *testing.T) {
	stale := "POINT(0 0)"
	l := Location{Latitude: fp(40.4406), Geom: &stale}
	l.Derive()
	if l.Geom != nil {
		t.Errorf("Geom = %q, want nil with only one coordinate", *l.Geom)
	}
}

func TestLocationDeriveKeepsManualName(t *testing.T) {
	l := Location{
		ID:            7,
		Name:          "The Old Mill Annex",
		StreetAddress: sp("100 Main St"),
		City:          sp("Pittsburgh"),
		State:         sp("PA"),
	}
	l.Derive()
	if l.Name != "The Old Mill Annex" {
		t.Errorf("manual name overwritten: %q", l.Name)
	}
}

func TestLocationDeriveUnnamedFallback(t *testing.T) {
	l := Location{}
	l.Derive()
	if l.Name != "<Unnamed location>" {
		t.Errorf("Name = %q", l.Name)
	}
}

func TestAssetCategoryOf(t *testing.T) {
	cat := &Category{ID: 1, Name: "community", Title: "Community"}
	a := Asset{AssetTypes: []AssetType{{Name: "library", Category: cat}}}
	if got := a.CategoryOf(); got == nil || got.Name != "community" {
		t.Errorf("CategoryOf() = %v", got)
	}
	if got := (&Asset{}).CategoryOf(); got != nil {
		t.Errorf("CategoryOf() on untyped asset = %v", got)
	}
}
