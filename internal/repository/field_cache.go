package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	entsql "entgo.io/ent/dialect/sql"

	"github.com/joseph-ayodele/invoice-reconciler/internal/common"
	"github.com/joseph-ayodele/invoice-reconciler/internal/extract"
)

// FieldCache stores raw recognitions so repeated runs skip OCR of unchanged pages.
type FieldCache struct {
	store *Store
	log   *slog.Logger
}

var _ extract.FieldCache = (*FieldCache)(nil)

var cacheKeyColumns = []string{"file_hash", "page_index", "field", "region", "crop", "engine", "settings"}

func NewFieldCache(store *Store, log *slog.Logger) *FieldCache {
	if log == nil {
		log = slog.Default()
	}
	return &FieldCache{store: store, log: log}
}

func keyPredicate(k extract.CacheKey) *entsql.Predicate {
	return entsql.And(
		entsql.EQ("file_hash", k.FileHash),
		entsql.EQ("page_index", k.Page),
		entsql.EQ("field", k.Field),
		entsql.EQ("region", k.Region),
		entsql.EQ("crop", k.Crop),
		entsql.EQ("engine", k.Engine),
		entsql.EQ("settings", k.Settings),
	)
}

func (c *FieldCache) Get(ctx context.Context, k extract.CacheKey) (extract.CachedText, bool, error) {
	t := c.store.builder().Table(fieldCacheTable)
	query, args := c.store.builder().Select("raw_text", "confidence").From(t).
		Where(keyPredicate(k)).
		Query()

	var v extract.CachedText
	err := c.store.db.QueryRowContext(ctx, query, args...).Scan(&v.Text, &v.Confidence)
	if errors.Is(err, sql.ErrNoRows) {
		return extract.CachedText{}, false, nil
	}
	if err != nil {
		return extract.CachedText{}, false, fmt.Errorf("%w: field cache get: %w", common.ErrDatabase, err)
	}
	return v, true, nil
}

func (c *FieldCache) Put(ctx context.Context, k extract.CacheKey, v extract.CachedText) error {
	query, args := c.store.builder().Insert(fieldCacheTable).
		Columns(append(cacheKeyColumns, "raw_text", "confidence", "updated_at")...).
		Values(k.FileHash, k.Page, k.Field, k.Region, k.Crop, k.Engine, k.Settings, v.Text, v.Confidence, time.Now().UTC()).
		OnConflict(
			entsql.ConflictColumns(cacheKeyColumns...),
			entsql.ResolveWithNewValues(),
		).
		Query()
	if _, err := c.store.db.ExecContext(ctx, query, args...); err != nil {
		c.log.Error("field cache put failed", "field", k.Field, "page", k.Page, "err", err)
		return fmt.Errorf("%w: field cache put: %w", common.ErrDatabase, err)
	}
	return nil
}
