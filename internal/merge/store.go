package merge

import (
	"errors"

	"github.com/wprdc/asset-registry/internal/assets"
)

// ErrNotFound is returned by Store lookups when no record matches.
var ErrNotFound = errors.New("record not found")

// AssetChanges carries the pending many-to-many replacements for one asset.
// Set* false means "relation untouched"; an empty list with Set* true
// clears the relation. Names for the get-or-create relations stay names
// until commit so that a dry run never creates lookup records.
type AssetChanges struct {
	SetAssetTypes bool
	AssetTypes    []assets.AssetType

	SetTags  bool
	TagNames []string

	SetServices  bool
	ServiceNames []string

	SetPopulations  bool
	PopulationNames []string
}

// Store is the slice of the entity store the merge workflow needs. The
// production implementation runs on the shared gorm handle; tests use an
// in-memory one.
type Store interface {
	RawAssetByID(id uint) (*assets.RawAsset, error)
	RawAssetsByIDs(ids []uint) ([]*assets.RawAsset, error)
	AssetByID(id uint) (*assets.Asset, error)
	LocationByID(id uint) (*assets.Location, error)
	OrganizationByID(id uint) (*assets.Organization, error)
	AssetTypeByName(name string) (*assets.AssetType, error)

	SaveAsset(a *assets.Asset, ch AssetChanges) error
	SaveLocation(l *assets.Location) error
	SaveOrganization(o *assets.Organization) error
	SaveRawAsset(ra *assets.RawAsset) error
	SaveReport(rep *assets.MergeReport) error
}
