package cache

import (
	"fmt"
	"hash/fnv"
	"strings"
)

// CacheKey identifies a cached Places API record.
type CacheKey struct {
	// Resource is the record kind (e.g. "details").
	Resource string

	// ID is the place identifier.
	ID string

	// FieldMask is the field mask the record was fetched with. Records
	// fetched with different masks never share a key.
	FieldMask string
}

// String generates a deterministic cache key string.
// Format: places:resource:id[:fm=hash]
//
// Example:
//
//	places:details:ChIJN1t_tDeuEmsRUsoyG83frY4:fm=5d41402a
func (k CacheKey) String() string {
	parts := []string{"places"}

	if resource := strings.Trim(k.Resource, ":"); resource != "" {
		parts = append(parts, resource)
	}

	if k.ID != "" {
		parts = append(parts, k.ID)
	}

	if k.FieldMask != "" {
		h := fnv.New32a()
		h.Write([]byte(k.FieldMask))
		parts = append(parts, fmt.Sprintf("fm=%08x", h.Sum32()))
	}

	return strings.Join(parts, ":")
}

// DetailKey returns the key of a place details record.
func DetailKey(placeID, fieldMask string) CacheKey {
	return CacheKey{Resource: "details", ID: placeID, FieldMask: fieldMask}
}
