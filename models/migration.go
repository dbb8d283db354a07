package models

import (
	"github.com/mmdatafocus/catalog_backend/config"
)

func MigrateTable() error {
	db := config.GetDB()

	return db.AutoMigrate(
		&Area{}, &Concept{},
		&CatalogImportRun{}, &CatalogImportError{},
	)
}
