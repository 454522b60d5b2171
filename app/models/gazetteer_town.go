package models

import (
	"crypto/sha1"
	"encoding/hex"
)

// GazetteerTown is one prefecture/city/town row as stored in the search index,
// the Postgres table and the importer CSV.
type GazetteerTown struct {
	ID         string `json:"id" bson:"_id,omitempty"`
	Prefecture string `json:"prefecture" bson:"prefecture"`
	City       string `json:"city" bson:"city"`
	Town       string `json:"town" bson:"town"`
}

// NewGazetteerTown fills in a stable ID derived from the three names so that
// re-importing the same row overwrites rather than duplicates.
func NewGazetteerTown(pref, city, town string) GazetteerTown {
	sum := sha1.Sum([]byte(pref + "|" + city + "|" + town))
	return GazetteerTown{
		ID:         hex.EncodeToString(sum[:8]),
		Prefecture: pref,
		City:       city,
		Town:       town,
	}
}

// Path returns the names from prefecture down, skipping empty levels.
func (t GazetteerTown) Path() []string {
	path := make([]string, 0, 3)
	for _, name := range []string{t.Prefecture, t.City, t.Town} {
		if name != "" {
			path = append(path, name)
		}
	}
	return path
}
