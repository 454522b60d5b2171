package requests

import "github.com/jp-address-parser/app/models"

// MaxBatchAddresses caps a single batch job.
const MaxBatchAddresses = 20000

// ParseAddressRequest parses one address.
type ParseAddressRequest struct {
	Address  string `json:"address" binding:"required"`
	UseCache *bool  `json:"use_cache,omitempty"`
}

// CacheEnabled defaults to true when use_cache is omitted.
func (r ParseAddressRequest) CacheEnabled() bool {
	return r.UseCache == nil || *r.UseCache
}

// BatchParseRequest starts a background batch job.
type BatchParseRequest struct {
	Addresses []string `json:"addresses" binding:"required,min=1,max=20000"`
}

// GazetteerRow is one prefecture/city/town triple. Town may be empty for a
// city without town data.
type GazetteerRow struct {
	Prefecture string `json:"prefecture" binding:"required"`
	City       string `json:"city" binding:"required"`
	Town       string `json:"town"`
}

// SeedGazetteerRequest loads rows into a writable gazetteer source.
type SeedGazetteerRequest struct {
	Rows    []GazetteerRow `json:"rows" binding:"required,min=1,dive"`
	Replace bool           `json:"replace,omitempty"`
}

// Towns converts the request rows.
func (r SeedGazetteerRequest) Towns() []models.GazetteerTown {
	towns := make([]models.GazetteerTown, len(r.Rows))
	for i, row := range r.Rows {
		towns[i] = models.NewGazetteerTown(row.Prefecture, row.City, row.Town)
	}
	return towns
}
