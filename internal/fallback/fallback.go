// Package fallback embeds the static seed data served when the remote
// price API is unreachable or returns nothing.
package fallback

import (
	_ "embed"
	"encoding/json"
	"time"

	"tldwatch/internal/pricing"
)

//go:embed seed.json
var seedJSON []byte

//go:embed tlds.json
var tldsJSON []byte

// TLDInfo describes one entry of the TLD directory.
type TLDInfo struct {
	TLD         string `json:"tld"`
	Type        string `json:"type"`
	Description string `json:"description,omitempty"`
	Category    string `json:"category,omitempty"`
}

// PriceChanges returns the embedded seed observations materialised as
// entities. The embedded data is validated at build time by tests, so a
// decode failure here indicates a corrupted binary and panics.
func PriceChanges(now time.Time) []*pricing.PriceChange {
	var records []pricing.Record
	if err := json.Unmarshal(seedJSON, &records); err != nil {
		panic("fallback: decode seed data: " + err.Error())
	}

	changes := make([]*pricing.PriceChange, 0, len(records))
	for _, rec := range records {
		changes = append(changes, pricing.FromRecord(rec, now))
	}
	return changes
}

// TLDs returns the embedded TLD directory.
func TLDs() []TLDInfo {
	var infos []TLDInfo
	if err := json.Unmarshal(tldsJSON, &infos); err != nil {
		panic("fallback: decode tld directory: " + err.Error())
	}
	return infos
}
