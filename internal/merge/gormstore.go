package merge

import (
	"context"
	"errors"
	"log"
	"strings"
	"time"

	"github.com/wprdc/asset-registry/internal/assets"
	"github.com/wprdc/asset-registry/internal/db"
	"github.com/wprdc/asset-registry/internal/geocoding"
	"golang.org/x/text/unicode/norm"
	"gorm.io/gorm"
)

// GormStore is the production Store, running on the shared gorm handle.
// The optional geocoder fills in coordinates for locations that arrive
// with an address but none.
type GormStore struct {
	DB       *gorm.DB
	Geocoder *geocoding.Client
}

func NewStore(geocoder *geocoding.Client) *GormStore {
	return &GormStore{DB: db.DB, Geocoder: geocoder}
}

func mapNotFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}

func (s *GormStore) RawAssetByID(id uint) (*assets.RawAsset, error) {
	var ra assets.RawAsset
	if err := s.DB.First(&ra, "id = ?", id).Error; err != nil {
		return nil, mapNotFound(err)
	}
	return &ra, nil
}

func (s *GormStore) RawAssetsByIDs(ids []uint) ([]*assets.RawAsset, error) {
	var ras []*assets.RawAsset
	if err := s.DB.Where("id IN ?", ids).Find(&ras).Error; err != nil {
		return nil, err
	}
	return ras, nil
}

func (s *GormStore) AssetByID(id uint) (*assets.Asset, error) {
	var a assets.Asset
	err := s.DB.
		Preload("AssetTypes").
		Preload("AssetTypes.Category").
		Preload("Tags").
		Preload("Services").
		Preload("HardToCountPopulation").
		Preload("Location").
		Preload("Organization").
		First(&a, "id = ?", id).Error
	if err != nil {
		return nil, mapNotFound(err)
	}
	return &a, nil
}

func (s *GormStore) LocationByID(id uint) (*assets.Location, error) {
	var l assets.Location
	if err := s.DB.First(&l, "id = ?", id).Error; err != nil {
		return nil, mapNotFound(err)
	}
	return &l, nil
}

func (s *GormStore) OrganizationByID(id uint) (*assets.Organization, error) {
	var o assets.Organization
	if err := s.DB.First(&o, "id = ?", id).Error; err != nil {
		return nil, mapNotFound(err)
	}
	return &o, nil
}

func (s *GormStore) AssetTypeByName(name string) (*assets.AssetType, error) {
	var at assets.AssetType
	err := s.DB.Preload("Category").First(&at, "name = ?", canonicalName(name)).Error
	if err != nil {
		return nil, mapNotFound(err)
	}
	return &at, nil
}

// canonicalName collapses whitespace and applies Unicode NFC so that
// spreadsheet-mangled names still match their records.
func canonicalName(s string) string {
	return norm.NFC.String(strings.Join(strings.Fields(strings.TrimSpace(s)), " "))
}

func (s *GormStore) getOrCreateTag(tx *gorm.DB, name string) (*assets.Tag, error) {
	t := assets.Tag{Name: canonicalName(name)}
	if err := tx.Where("name = ?", t.Name).FirstOrCreate(&t).Error; err != nil {
		return nil, err
	}
	return &t, nil
}

func (s *GormStore) getOrCreateService(tx *gorm.DB, name string) (*assets.ProvidedService, error) {
	svc := assets.ProvidedService{Name: canonicalName(name)}
	if err := tx.Where("name = ?", svc.Name).FirstOrCreate(&svc).Error; err != nil {
		return nil, err
	}
	return &svc, nil
}

func (s *GormStore) getOrCreatePopulation(tx *gorm.DB, name string) (*assets.TargetPopulation, error) {
	p := assets.TargetPopulation{Name: canonicalName(name)}
	if err := tx.Where("name = ?", p.Name).FirstOrCreate(&p).Error; err != nil {
		return nil, err
	}
	return &p, nil
}

// SaveAsset persists the asset row, applies the pending relation
// replacements, and notifies save listeners. Assets not linked to by any
// RawAsset are hidden on save.
func (s *GormStore) SaveAsset(a *assets.Asset, ch AssetChanges) error {
	var linked int64
	s.DB.Model(&assets.RawAsset{}).Where("asset_id = ?", a.ID).Count(&linked)
	if linked == 0 {
		hide := true
		a.DoNotDisplay = &hide
	}

	err := s.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit("AssetTypes", "Tags", "Services", "HardToCountPopulation").Save(a).Error; err != nil {
			return err
		}
		if ch.SetAssetTypes {
			if err := tx.Model(a).Association("AssetTypes").Replace(ch.AssetTypes); err != nil {
				return err
			}
			a.AssetTypes = ch.AssetTypes
		}
		if ch.SetTags {
			var tags []assets.Tag
			for _, name := range ch.TagNames {
				t, err := s.getOrCreateTag(tx, name)
				if err != nil {
					return err
				}
				tags = append(tags, *t)
			}
			if err := tx.Model(a).Association("Tags").Replace(tags); err != nil {
				return err
			}
			a.Tags = tags
		}
		if ch.SetServices {
			var services []assets.ProvidedService
			for _, name := range ch.ServiceNames {
				svc, err := s.getOrCreateService(tx, name)
				if err != nil {
					return err
				}
				services = append(services, *svc)
			}
			if err := tx.Model(a).Association("Services").Replace(services); err != nil {
				return err
			}
			a.Services = services
		}
		if ch.SetPopulations {
			var pops []assets.TargetPopulation
			for _, name := range ch.PopulationNames {
				p, err := s.getOrCreatePopulation(tx, name)
				if err != nil {
					return err
				}
				pops = append(pops, *p)
			}
			if err := tx.Model(a).Association("HardToCountPopulation").Replace(pops); err != nil {
				return err
			}
			a.HardToCountPopulation = pops
		}
		return nil
	})
	if err != nil {
		return err
	}

	assets.NotifyAssetSaved(a)
	return nil
}

func (s *GormStore) SaveLocation(l *assets.Location) error {
	if s.Geocoder != nil && l.Latitude == nil && l.Longitude == nil {
		if addr := l.FullAddress(); addr != "" {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			lat, lon, err := s.Geocoder.Geocode(ctx, addr)
			if err != nil {
				log.Printf("geocoding %q failed: %v", addr, err)
			} else {
				l.Latitude = &lat
				l.Longitude = &lon
			}
		}
	}
	return s.DB.Save(l).Error
}

func (s *GormStore) SaveOrganization(o *assets.Organization) error {
	return s.DB.Save(o).Error
}

func (s *GormStore) SaveRawAsset(ra *assets.RawAsset) error {
	return s.DB.Omit("AssetTypes", "Tags", "Services", "HardToCountPopulation").Save(ra).Error
}

func (s *GormStore) SaveReport(rep *assets.MergeReport) error {
	return s.DB.Create(rep).Error
}
