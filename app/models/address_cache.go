package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// AddressCache is the persisted parse result for one raw address.
type AddressCache struct {
	ID             primitive.ObjectID `bson:"_id,omitempty" json:"id,omitempty"`
	RawFingerprint string             `bson:"raw_fingerprint" json:"raw_fingerprint"`
	RawAddress     string             `bson:"raw_address" json:"raw_address"`
	Record         AddressRecord      `bson:"record" json:"record"`
	RulesVersion   string             `bson:"rules_version" json:"rules_version"`
	CreatedAt      time.Time          `bson:"created_at" json:"created_at"`
	LastAccessed   time.Time          `bson:"last_accessed" json:"last_accessed"`
	AccessCount    int                `bson:"access_count" json:"access_count"`
}

// NewAddressCache wraps a successfully parsed record.
func NewAddressCache(fingerprint string, record *AddressRecord, rulesVersion string) *AddressCache {
	now := time.Now()
	return &AddressCache{
		RawFingerprint: fingerprint,
		RawAddress:     record.FullAddress,
		Record:         *record,
		RulesVersion:   rulesVersion,
		CreatedAt:      now,
		LastAccessed:   now,
		AccessCount:    1,
	}
}

// UpdateAccess bumps the access stats.
func (ac *AddressCache) UpdateAccess() {
	ac.LastAccessed = time.Now()
	ac.AccessCount++
}

// IsExpired reports whether the entry is older than ttl.
func (ac *AddressCache) IsExpired(ttl time.Duration) bool {
	return time.Since(ac.CreatedAt) > ttl
}

// IsCurrent reports whether the entry was produced by the given rules version.
// Entries from older rules are treated as misses.
func (ac *AddressCache) IsCurrent(rulesVersion string) bool {
	return ac.RulesVersion == rulesVersion
}
