package config

import (
	"os"
	"strings"
)

// CatalogImportAsync queues import runs on Pub/Sub instead of processing them inside the request.
//
// Set via env:
// - CATALOG_IMPORT_ASYNC=true
func CatalogImportAsync() bool {
	return EnvBoolDefault("CATALOG_IMPORT_ASYNC", false)
}

// CatalogImportArchive stores every pasted import text in the GCS bucket (GCS_BUCKET).
func CatalogImportArchive() bool {
	return EnvBoolDefault("CATALOG_IMPORT_ARCHIVE", false)
}

func EnvBoolDefault(key string, def bool) bool {
	val := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	switch val {
	case "true", "1", "yes", "y", "on":
		return true
	case "false", "0", "no", "n", "off":
		return false
	default:
		return def
	}
}
