// Package extract reads template fields out of page regions.
package extract

import "context"

// CacheKey identifies one recognition: the same pixels of the same page read by the same
// engine with the same settings.
type CacheKey struct {
	FileHash string
	Page     int
	Field    string
	Region   string
	Crop     string // pixel rectangle in the raster; changes with DPI
	Engine   string
	Settings string // engine options plus preprocessing
}

// CachedText is what a FieldCache stores per key.
type CachedText struct {
	Text       string
	Confidence float64
}

// FieldCache persists raw recognitions across runs. Implementations must be safe for concurrent use.
type FieldCache interface {
	Get(ctx context.Context, key CacheKey) (CachedText, bool, error)
	Put(ctx context.Context, key CacheKey, value CachedText) error
}
