package assets

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"gorm.io/gorm"
)

// Localizability codes.
const (
	FixedLocale   = "FIX"
	MobileLocale  = "MOB"
	VirtualLocale = "VIR"
)

type Category struct {
	ID    uint   `gorm:"primaryKey" json:"id"`
	Name  string `json:"name"`
	Title string `json:"title"`
}

type AssetType struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	Name       string    `gorm:"uniqueIndex" json:"name"`
	Title      string    `json:"title"`
	CategoryID *uint     `json:"-"`
	Category   *Category `gorm:"foreignKey:CategoryID" json:"category,omitempty"`
}

type Tag struct {
	ID   uint   `gorm:"primaryKey" json:"id"`
	Name string `gorm:"uniqueIndex" json:"name"`
}

type ProvidedService struct {
	ID   uint   `gorm:"primaryKey" json:"id"`
	Name string `gorm:"uniqueIndex" json:"name"`
}

type TargetPopulation struct {
	ID   uint   `gorm:"primaryKey" json:"id"`
	Name string `gorm:"uniqueIndex" json:"name"`
}

type DataSource struct {
	ID   uint    `gorm:"primaryKey" json:"id"`
	Name string  `json:"name"`
	URL  *string `json:"url,omitempty"`
}

// Location is a physical place, shared by reference among zero or more
// Assets and Organizations. Its lifetime is independent of any one Asset.
type Location struct {
	ID            uint    `gorm:"primaryKey" json:"id"`
	Name          string  `json:"name"` // derived, see BeforeSave
	StreetAddress *string `json:"street_address,omitempty"`
	Unit          *string `json:"unit,omitempty"`
	UnitType      *string `json:"unit_type,omitempty"`
	Municipality  *string `json:"municipality,omitempty"`
	City          *string `json:"city,omitempty"`
	State         *string `json:"state,omitempty"`
	ZipCode       *string `json:"zip_code,omitempty"`
	ParcelID      *string `json:"parcel_id,omitempty"`
	Residence     *bool   `json:"residence,omitempty"`

	AvailableTransportation *string `json:"available_transportation,omitempty"`
	ParentLocationID        *uint   `json:"parent_location_id,omitempty"`

	Latitude  *float64 `json:"latitude,omitempty"`
	Longitude *float64 `json:"longitude,omitempty"`
	// Geom is always derived from (latitude, longitude); never
	// independently settable.
	Geom                *string `json:"geom,omitempty"`
	GeocodingProperties *string `json:"geocoding_properties,omitempty"`
	// IffyGeocoding, when true, flags this Location's geocoordinates for
	// review (e.g. several assets sharing near-identical coordinates, or a
	// street address whose neighbors all carry unit numbers). False means
	// someone decided the coordinates are unambiguously correct.
	IffyGeocoding *bool `json:"iffy_geocoding,omitempty"`
}

// FullAddress renders the postal address parts, or "" when there is no
// street address.
func (l *Location) FullAddress() string {
	if l.StreetAddress == nil || *l.StreetAddress == "" {
		return ""
	}
	parts := []string{*l.StreetAddress}
	if strOr(l.Unit) != "" || strOr(l.UnitType) != "" {
		parts = append(parts, fmt.Sprintf("%s %s", strOr(l.Unit), strOr(l.UnitType)))
	}
	if strOr(l.Municipality) != "" {
		parts = append(parts, *l.Municipality)
	}
	parts = append(parts, fmt.Sprintf("%s, %s %s", strOr(l.City), strOr(l.State), strOr(l.ZipCode)))
	out := parts[0]
	for _, p := range parts[1:] {
		out += ", " + p
	}
	return out
}

// Derive fills the derived name and geom columns. The name prefers the
// full address, then bare coordinates. Parcel IDs are deliberately not
// used: they aren't human-readable and can be less precise than a street
// address (many house numbers can share one giant parcel).
func (l *Location) Derive() {
	if l.ID == 0 || l.Name == "" {
		if addr := l.FullAddress(); addr != "" {
			l.Name = addr
		} else if l.Latitude != nil && l.Longitude != nil {
			l.Name = fmt.Sprintf("(%v, %v)", *l.Latitude, *l.Longitude)
		} else {
			l.Name = "<Unnamed location>"
		}
	}
	if l.Latitude != nil && l.Longitude != nil {
		point := fmt.Sprintf("POINT(%v %v)", *l.Longitude, *l.Latitude)
		l.Geom = &point
	} else {
		l.Geom = nil
	}
}

func (l *Location) BeforeSave(tx *gorm.DB) error {
	l.Derive()
	return nil
}

// Organization is a contact entity, optionally tied to one Location and
// shared by reference among Assets.
type Organization struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	Name       *string   `json:"name,omitempty"`
	LocationID *uint     `json:"-"`
	Location   *Location `gorm:"foreignKey:LocationID" json:"location,omitempty"`
	Email      *string   `json:"email,omitempty"`
	Phone      *string   `json:"phone,omitempty"`
}

// Asset is one canonical, merged real-world entity: a place, service, or
// organization presence.
type Asset struct {
	ID             uint    `gorm:"primaryKey" json:"id"`
	Name           string  `json:"name"`
	Localizability *string `json:"localizability,omitempty"` // FIX, MOB, or VIR

	URL   *string `json:"url,omitempty"`
	Email *string `json:"email,omitempty"`
	Phone *string `json:"phone,omitempty"`

	HoursOfOperation        *string `json:"hours_of_operation,omitempty"`
	HolidayHoursOfOperation *string `json:"holiday_hours_of_operation,omitempty"`
	Periodicity             *string `json:"periodicity,omitempty"`
	Capacity                *int    `json:"capacity,omitempty"`
	WifiNetwork             *string `json:"wifi_network,omitempty"`
	WifiNotes               *string `json:"wifi_notes,omitempty"`

	ChildFriendly      *bool `json:"child_friendly,omitempty"`
	InternetAccess     *bool `json:"internet_access,omitempty"`
	ComputersAvailable *bool `json:"computers_available,omitempty"`
	Accessibility      *bool `json:"accessibility,omitempty"`
	OpenToPublic       *bool `json:"open_to_public,omitempty"`
	Sensitive          *bool `json:"sensitive,omitempty"`
	DoNotDisplay       *bool `json:"do_not_display,omitempty"`

	AssetTypes []AssetType `gorm:"many2many:assets.asset_asset_types" json:"asset_types"`

	LocationID     *uint         `json:"-"`
	Location       *Location     `gorm:"foreignKey:LocationID" json:"location,omitempty"`
	OrganizationID *uint         `json:"-"`
	Organization   *Organization `gorm:"foreignKey:OrganizationID" json:"organization,omitempty"`

	Services              []ProvidedService  `gorm:"many2many:assets.asset_services" json:"services"`
	HardToCountPopulation []TargetPopulation `gorm:"many2many:assets.asset_populations" json:"hard_to_count_population"`
	DataSourceID          *uint              `json:"-"`
	DataSource            *DataSource        `gorm:"foreignKey:DataSourceID" json:"data_source,omitempty"`

	Tags []Tag `gorm:"many2many:assets.asset_tags" json:"tags"`

	EtlNotes             *string `json:"etl_notes,omitempty"`
	Notes                *string `json:"notes,omitempty"`
	PrimaryKeyFromRocket *string `json:"primary_key_from_rocket,omitempty"`
	SynthesizedKey       *string `json:"synthesized_key,omitempty"`

	DateEntered time.Time `gorm:"autoCreateTime" json:"date_entered"`
	LastUpdated time.Time `gorm:"autoUpdateTime" json:"last_updated"`

	RawAssets []RawAsset `gorm:"foreignKey:AssetID" json:"-"`
}

// CategoryOf returns the category of the asset's first asset type, when
// loaded.
func (a *Asset) CategoryOf() *Category {
	if len(a.AssetTypes) == 0 {
		return nil
	}
	return a.AssetTypes[0].Category
}

// RawAsset is one ingested, unreconciled source record. Location and
// Organization information is represented flat, mirroring the source CSV,
// so no information is lost before reconciliation: Locations and
// Organizations may be shared between Assets, and single-valued fields
// like latitude/longitude would otherwise force an automerge-or-overwrite
// choice at ingest time.
type RawAsset struct {
	ID             uint    `gorm:"primaryKey" json:"id"`
	Name           string  `json:"name"`
	Localizability *string `json:"localizability,omitempty"`

	URL   *string `json:"url,omitempty"`
	Email *string `json:"email,omitempty"`
	Phone *string `json:"phone,omitempty"`

	HoursOfOperation        *string `json:"hours_of_operation,omitempty"`
	HolidayHoursOfOperation *string `json:"holiday_hours_of_operation,omitempty"`
	Periodicity             *string `json:"periodicity,omitempty"`
	Capacity                *int    `json:"capacity,omitempty"`
	WifiNetwork             *string `json:"wifi_network,omitempty"`
	WifiNotes               *string `json:"wifi_notes,omitempty"`

	ChildFriendly      *bool `json:"child_friendly,omitempty"`
	InternetAccess     *bool `json:"internet_access,omitempty"`
	ComputersAvailable *bool `json:"computers_available,omitempty"`
	Accessibility      *bool `json:"accessibility,omitempty"`
	OpenToPublic       *bool `json:"open_to_public,omitempty"`
	Sensitive          *bool `json:"sensitive,omitempty"`
	DoNotDisplay       *bool `json:"do_not_display,omitempty"`

	AssetTypes            []AssetType        `gorm:"many2many:assets.raw_asset_asset_types" json:"asset_types"`
	Services              []ProvidedService  `gorm:"many2many:assets.raw_asset_services" json:"services"`
	HardToCountPopulation []TargetPopulation `gorm:"many2many:assets.raw_asset_populations" json:"hard_to_count_population"`
	Tags                  []Tag              `gorm:"many2many:assets.raw_asset_tags" json:"tags"`

	// BEGIN flattened Location
	StreetAddress           *string  `json:"street_address,omitempty"`
	Municipality            *string  `json:"municipality,omitempty"`
	City                    *string  `json:"city,omitempty"`
	State                   *string  `json:"state,omitempty"`
	ZipCode                 *string  `json:"zip_code,omitempty"`
	ParcelID                *string  `json:"parcel_id,omitempty"`
	Residence               *bool    `json:"residence,omitempty"`
	AvailableTransportation *string  `json:"available_transportation,omitempty"`
	ParentLocation          *string  `json:"parent_location,omitempty"` // just a name in the source data
	Latitude                *float64 `json:"latitude,omitempty"`
	Longitude               *float64 `json:"longitude,omitempty"`
	Geom                    *string  `json:"geom,omitempty"`
	GeocodingProperties     *string  `json:"geocoding_properties,omitempty"`
	// END flattened Location

	// BEGIN flattened Organization
	OrganizationName  *string `json:"organization_name,omitempty"`
	OrganizationEmail *string `json:"organization_email,omitempty"`
	OrganizationPhone *string `json:"organization_phone,omitempty"`
	// END flattened Organization

	DataSourceID *uint       `json:"-"`
	DataSource   *DataSource `gorm:"foreignKey:DataSourceID" json:"data_source,omitempty"`

	// RawAssetNotes is named to distinguish it from the Asset-level notes
	// field, which must not be produced by merging these.
	RawAssetNotes *string `json:"raw_asset_notes,omitempty"`

	EtlNotes             *string `json:"etl_notes,omitempty"`
	PrimaryKeyFromRocket *string `json:"primary_key_from_rocket,omitempty"`
	SynthesizedKey       *string `json:"synthesized_key,omitempty"`

	// AssetID is a weak back-reference to the merged Asset; deleting the
	// Asset nulls it rather than cascading.
	AssetID *uint `gorm:"constraint:OnDelete:SET NULL" json:"asset_id,omitempty"`
}

// MergeReport is the persisted record of one upload run: the full narrative
// that was shown to the operator, in order.
type MergeReport struct {
	ID        uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	Mode      string         `json:"mode"`
	Filename  string         `json:"filename"`
	Lines     pq.StringArray `gorm:"type:text[]" json:"lines"`
	CreatedAt time.Time      `json:"created_at"`
}

func (Category) TableName() string         { return "assets.categories" }
func (AssetType) TableName() string        { return "assets.asset_types" }
func (Tag) TableName() string              { return "assets.tags" }
func (ProvidedService) TableName() string  { return "assets.services" }
func (TargetPopulation) TableName() string { return "assets.target_populations" }
func (DataSource) TableName() string       { return "assets.data_sources" }
func (Location) TableName() string         { return "assets.locations" }
func (Organization) TableName() string     { return "assets.organizations" }
func (Asset) TableName() string            { return "assets.assets" }
func (RawAsset) TableName() string         { return "assets.raw_assets" }
func (MergeReport) TableName() string      { return "assets.merge_reports" }

func strOr(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}
