package assets

import (
	"log"

	"github.com/wprdc/asset-registry/internal/db"
)

func Init() {
	if err := db.EnsureSchema(db.DB, "assets"); err != nil {
		log.Fatal("Failed to create assets schema: ", err)
	}

	if err := db.DB.AutoMigrate(
		&Category{}, &AssetType{}, &Tag{}, &ProvidedService{}, &TargetPopulation{},
		&DataSource{}, &Location{}, &Organization{}, &Asset{}, &RawAsset{},
		&MergeReport{},
	); err != nil {
		log.Fatal("Failed to auto-migrate tables", err)
	}
}
