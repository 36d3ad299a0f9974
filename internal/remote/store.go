// Package remote implements the record store backed by a shared SQL
// database through gorm. Only a fixed whitelist of collections is stored.
package remote

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"

	"cms-go/internal/cms"
)

// Supported lists the collections the remote backend accepts.
var Supported = []string{cms.CollectionJobs, cms.CollectionBlog}

const (
	// DefaultMaxRecordBytes bounds the serialized size of a single record.
	DefaultMaxRecordBytes int64 = 1024 * 1024
	// DefaultMaxCollectionBytes bounds the serialized size of one collection.
	DefaultMaxCollectionBytes int64 = 50 * 1024 * 1024
)

// Options configures a Store.
type Options struct {
	URL       string
	AccessKey string
	// Offline forces the store to report itself as not enabled.
	Offline bool
	// Realtime publishes a cms.ChangeEvent through Notifier after each write.
	Realtime           bool
	Notifier           cms.Notifier
	RetryAttempts      int
	RetryDelay         time.Duration
	MaxRecordBytes     int64
	// MaxCollectionBytes bounds the sum of record sizes in one collection.
	// Writes that would exceed it are rolled back.
	MaxCollectionBytes int64
	Clock              cms.Clock
	IDs                cms.IDGenerator
	Logger             cms.Logger
}

// Store is the remote record backend. It must be initialized before use.
type Store struct {
	opts   Options
	clock  cms.Clock
	ids    cms.IDGenerator
	logger cms.Logger
	sleep  sleepFunc

	mu sync.RWMutex
	db *gorm.DB
}

var _ cms.RemoteBackend = (*Store)(nil)

// NewStore creates an uninitialized store.
func NewStore(opts Options) *Store {
	s := &Store{opts: opts, clock: opts.Clock, ids: opts.IDs, logger: opts.Logger, sleep: sleepContext}
	if s.clock == nil {
		s.clock = cms.RealClock{}
	}
	if s.ids == nil {
		s.ids = cms.TimestampIDGenerator{Clock: s.clock}
	}
	if s.logger == nil {
		s.logger = cms.NewNopLogger()
	}
	if s.opts.Notifier == nil {
		s.opts.Notifier = cms.NopNotifier{}
	}
	if s.opts.RetryAttempts < 0 {
		s.opts.RetryAttempts = 0
	}
	if s.opts.MaxRecordBytes <= 0 {
		s.opts.MaxRecordBytes = DefaultMaxRecordBytes
	}
	if s.opts.MaxCollectionBytes <= 0 {
		s.opts.MaxCollectionBytes = DefaultMaxCollectionBytes
	}
	return s
}

// Initialize validates the configuration, connects and creates the tables.
// Calling it again after success is a no-op.
func (s *Store) Initialize(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db != nil {
		return nil
	}

	if s.opts.Offline {
		return fmt.Errorf("remote storage is forced offline: %w", cms.ErrNotEnabled)
	}
	if s.opts.URL == "" {
		return fmt.Errorf("remote url is not configured: %w", cms.ErrNotEnabled)
	}

	dialector, err := Dialector(s.opts.URL, s.opts.AccessKey)
	if err != nil {
		return err
	}

	var db *gorm.DB
	err = retry(ctx, s.opts.RetryAttempts, s.opts.RetryDelay, s.sleep, func() error {
		var err error
		db, err = gorm.Open(dialector, &gorm.Config{
			Logger:         gormlogger.Discard,
			NowFunc:        func() time.Time { return s.clock.Now().UTC() },
			TranslateError: true,
		})
		if err != nil {
			return err
		}
		sqlDB, err := db.DB()
		if err != nil {
			return err
		}
		if err := sqlDB.PingContext(ctx); err != nil {
			sqlDB.Close()
			return err
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("connecting to remote storage: %w", err)
	}

	if db.Dialector.Name() == "sqlite" {
		// A single connection avoids SQLITE_BUSY between pooled writers.
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.SetMaxOpenConns(1)
		}
	}

	if err := db.WithContext(ctx).AutoMigrate(&ContentItem{}, &CollectionMetadata{}, &ConfigEntry{}); err != nil {
		if sqlDB, derr := db.DB(); derr == nil {
			sqlDB.Close()
		}
		return fmt.Errorf("creating remote tables: %w", err)
	}

	s.db = db
	s.logger.Info("remote storage initialized", "dialect", db.Dialector.Name())
	return nil
}

// SupportedCollections lists the collections this backend accepts.
func (s *Store) SupportedCollections() []string {
	return slices.Clone(Supported)
}

// Close releases the connection. The store can be initialized again.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db == nil {
		return nil
	}
	sqlDB, err := s.db.DB()
	s.db = nil
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (s *Store) Create(ctx context.Context, collection string, item cms.Item) (cms.Item, error) {
	db, err := s.conn("create", collection)
	if err != nil {
		return nil, err
	}

	record := item.Clone()
	if record == nil {
		record = cms.Item{}
	}
	delete(record, cms.FieldID)
	delete(record, cms.FieldCreatedAt)
	delete(record, cms.FieldUpdatedAt)
	if err := cms.ApplyDefaultStatus(record); err != nil {
		return nil, fmt.Errorf("create %s: %w", collection, err)
	}

	now := s.clock.Now().UTC()
	record[cms.FieldID] = s.ids.New()
	record[cms.FieldCreatedAt] = cms.FormatTime(now)
	record[cms.FieldUpdatedAt] = cms.FormatTime(now)

	row, normalized, err := s.toRow(collection, record)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", collection, err)
	}

	err = s.do(ctx, func() error {
		return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			if err := tx.Create(row).Error; err != nil {
				return err
			}
			if err := s.checkCollectionSize(tx, collection); err != nil {
				return err
			}
			return s.refreshMetadata(tx, collection)
		})
	})
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", collection, err)
	}

	s.logger.Info("remote record created", "collection", collection, "id", normalized.ID())
	s.publish(ctx, cms.ChangeCreated, collection, normalized.ID())
	return normalized, nil
}

func (s *Store) Read(ctx context.Context, collection, id string) (cms.Item, error) {
	db, err := s.conn("read", collection)
	if err != nil {
		return nil, err
	}
	if err := cms.ValidateName("id", id); err != nil {
		return nil, fmt.Errorf("read: %w", err)
	}

	var row ContentItem
	err = s.do(ctx, func() error {
		return db.WithContext(ctx).
			Where("collection_name = ? AND item_id = ?", collection, id).
			Take(&row).Error
	})
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read %s/%s: %w", collection, id, err)
	}
	return decodeRow(&row)
}

func (s *Store) Update(ctx context.Context, collection, id string, partial cms.Item) (cms.Item, error) {
	db, err := s.conn("update", collection)
	if err != nil {
		return nil, err
	}
	if err := cms.ValidateName("id", id); err != nil {
		return nil, fmt.Errorf("update: %w", err)
	}

	var updated cms.Item
	err = s.do(ctx, func() error {
		return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			var row ContentItem
			err := tx.Where("collection_name = ? AND item_id = ?", collection, id).Take(&row).Error
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return cms.ErrNotFound
			}
			if err != nil {
				return err
			}
			existing, err := decodeRow(&row)
			if err != nil {
				return err
			}

			merged := existing.Clone()
			for k, v := range partial {
				switch k {
				case cms.FieldID, cms.FieldCreatedAt, cms.FieldUpdatedAt:
					continue
				}
				merged[k] = v
			}
			if err := cms.ApplyDefaultStatus(merged); err != nil {
				return err
			}
			prev := existing.UpdatedAt()
			if row.UpdatedAt.After(prev) {
				prev = row.UpdatedAt
			}
			merged[cms.FieldUpdatedAt] = cms.FormatTime(cms.NextTimestamp(prev, s.clock.Now()))

			next, normalized, err := s.toRow(collection, merged)
			if err != nil {
				return err
			}
			err = tx.Model(&ContentItem{}).
				Where("collection_name = ? AND item_id = ?", collection, id).
				Updates(map[string]any{
					"data":       next.Data,
					"status":     next.Status,
					"size_bytes": next.SizeBytes,
					"updated_at": next.UpdatedAt,
				}).Error
			if err != nil {
				return err
			}
			if err := s.checkCollectionSize(tx, collection); err != nil {
				return err
			}
			updated = normalized
			return s.refreshMetadata(tx, collection)
		})
	})
	if err != nil {
		return nil, fmt.Errorf("update %s/%s: %w", collection, id, err)
	}

	s.logger.Info("remote record updated", "collection", collection, "id", id)
	s.publish(ctx, cms.ChangeUpdated, collection, id)
	return updated, nil
}

func (s *Store) Delete(ctx context.Context, collection, id string) (bool, error) {
	db, err := s.conn("delete", collection)
	if err != nil {
		return false, err
	}
	if err := cms.ValidateName("id", id); err != nil {
		return false, fmt.Errorf("delete: %w", err)
	}

	var deleted bool
	err = s.do(ctx, func() error {
		return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			res := tx.Where("collection_name = ? AND item_id = ?", collection, id).Delete(&ContentItem{})
			if res.Error != nil {
				return res.Error
			}
			deleted = res.RowsAffected > 0
			if !deleted {
				return nil
			}
			return s.refreshMetadata(tx, collection)
		})
	})
	if err != nil {
		return false, fmt.Errorf("delete %s/%s: %w", collection, id, err)
	}

	if deleted {
		s.logger.Info("remote record deleted", "collection", collection, "id", id)
		s.publish(ctx, cms.ChangeDeleted, collection, id)
	}
	return deleted, nil
}

// List fetches the collection newest first. The status filter runs in the
// database; the remaining filters are applied to the fetched records.
func (s *Store) List(ctx context.Context, collection string, filters *cms.Filters) ([]cms.Item, error) {
	db, err := s.conn("list", collection)
	if err != nil {
		return nil, err
	}

	var rows []ContentItem
	err = s.do(ctx, func() error {
		q := db.WithContext(ctx).Where("collection_name = ?", collection)
		if filters != nil && filters.Status != "" {
			q = q.Where("status = ?", string(filters.Status))
		}
		return q.Order("created_at desc").Order("item_id").Find(&rows).Error
	})
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", collection, err)
	}

	items := make([]cms.Item, 0, len(rows))
	for i := range rows {
		it, err := decodeRow(&rows[i])
		if err != nil {
			return nil, fmt.Errorf("list %s: %w", collection, err)
		}
		items = append(items, it)
	}

	if filters == nil {
		return items, nil
	}
	rest := *filters
	rest.Status = ""
	return cms.ApplyFilters(items, &rest), nil
}

func (s *Store) Metadata(ctx context.Context, collection string) (*cms.CollectionMetadata, error) {
	db, err := s.conn("metadata", collection)
	if err != nil {
		return nil, err
	}

	var row CollectionMetadata
	err = s.do(ctx, func() error {
		return db.WithContext(ctx).Where("collection_name = ?", collection).Take(&row).Error
	})
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return &cms.CollectionMetadata{Name: collection}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("metadata %s: %w", collection, err)
	}
	return &cms.CollectionMetadata{
		Name:         collection,
		Count:        int(row.Count),
		LastModified: row.LastModified.UTC(),
		Size:         row.SizeBytes,
	}, nil
}

func (s *Store) Clear(ctx context.Context, collection string) error {
	db, err := s.conn("clear", collection)
	if err != nil {
		return err
	}

	err = s.do(ctx, func() error {
		return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			if err := tx.Where("collection_name = ?", collection).Delete(&ContentItem{}).Error; err != nil {
				return err
			}
			return tx.Where("collection_name = ?", collection).Delete(&CollectionMetadata{}).Error
		})
	})
	if err != nil {
		return fmt.Errorf("clear %s: %w", collection, err)
	}

	s.logger.Info("remote collection cleared", "collection", collection)
	s.publish(ctx, cms.ChangeDeleted, collection, "")
	return nil
}

// ConfigValue returns a system configuration value and whether it is set.
func (s *Store) ConfigValue(ctx context.Context, key string) (any, bool, error) {
	db, err := s.initialized()
	if err != nil {
		return nil, false, err
	}

	var row ConfigEntry
	err = s.do(ctx, func() error {
		return db.WithContext(ctx).Where("key = ?", key).Take(&row).Error
	})
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("reading config %s: %w", key, err)
	}
	var v any
	if err := json.Unmarshal(row.Value, &v); err != nil {
		return nil, false, fmt.Errorf("decoding config %s: %w", key, err)
	}
	return v, true, nil
}

// SetConfigValue stores a system configuration value.
func (s *Store) SetConfigValue(ctx context.Context, key string, value any) error {
	db, err := s.initialized()
	if err != nil {
		return err
	}
	entry, err := configEntry(key, value)
	if err != nil {
		return err
	}
	return s.do(ctx, func() error {
		return db.WithContext(ctx).Clauses(clause.OnConflict{UpdateAll: true}).Create(entry).Error
	})
}

// Media is kept by the local backend only.

func (s *Store) UploadMedia(context.Context, *cms.MediaFile) (cms.Item, error) {
	return nil, fmt.Errorf("upload media: remote storage does not manage media: %w", cms.ErrNotSupported)
}

func (s *Store) DeleteMedia(context.Context, string) (bool, error) {
	return false, fmt.Errorf("delete media: remote storage does not manage media: %w", cms.ErrNotSupported)
}

func (s *Store) ReplaceMedia(context.Context, string, *cms.MediaFile) (cms.Item, error) {
	return nil, fmt.Errorf("replace media: remote storage does not manage media: %w", cms.ErrNotSupported)
}

// conn validates collection against the whitelist and returns the
// connection. Name and whitelist checks come first so they fail the same way
// whether or not the store is initialized.
func (s *Store) conn(op, collection string) (*gorm.DB, error) {
	if err := cms.ValidateName("collection", collection); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if !slices.Contains(Supported, collection) {
		return nil, fmt.Errorf("%s %s: remote storage only supports %v: %w", op, collection, Supported, cms.ErrUnsupportedCollection)
	}
	db, err := s.initialized()
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", op, collection, err)
	}
	return db, nil
}

func (s *Store) initialized() (*gorm.DB, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.db == nil {
		return nil, fmt.Errorf("remote storage is not initialized: %w", cms.ErrNotEnabled)
	}
	return s.db, nil
}

func (s *Store) do(ctx context.Context, fn func() error) error {
	return retry(ctx, s.opts.RetryAttempts, s.opts.RetryDelay, s.sleep, fn)
}

// checkCollectionSize fails with ErrStorageLimitExceeded when the records of
// collection, as written so far inside tx, exceed MaxCollectionBytes.
func (s *Store) checkCollectionSize(tx *gorm.DB, collection string) error {
	var size int64
	err := tx.Model(&ContentItem{}).
		Select("COALESCE(SUM(size_bytes), 0)").
		Where("collection_name = ?", collection).
		Scan(&size).Error
	if err != nil {
		return err
	}
	if size > s.opts.MaxCollectionBytes {
		return fmt.Errorf("collection %s would be %d bytes, limit is %d: %w",
			collection, size, s.opts.MaxCollectionBytes, cms.ErrStorageLimitExceeded)
	}
	return nil
}

// refreshMetadata recomputes the bookkeeping row of collection inside tx.
func (s *Store) refreshMetadata(tx *gorm.DB, collection string) error {
	var agg struct {
		Count int64
		Size  int64
	}
	err := tx.Model(&ContentItem{}).
		Select("COUNT(*) AS count, COALESCE(SUM(size_bytes), 0) AS size").
		Where("collection_name = ?", collection).
		Scan(&agg).Error
	if err != nil {
		return err
	}

	meta := CollectionMetadata{
		CollectionName: collection,
		Count:          agg.Count,
		SizeBytes:      agg.Size,
		LastModified:   s.clock.Now().UTC(),
	}
	return tx.Clauses(clause.OnConflict{UpdateAll: true}).Create(&meta).Error
}

// toRow serializes record and enforces the per-record size limit.
func (s *Store) toRow(collection string, record cms.Item) (*ContentItem, cms.Item, error) {
	normalized, err := cms.Normalize(record)
	if err != nil {
		return nil, nil, err
	}
	data, err := json.Marshal(normalized)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", cms.ErrSerialization, err)
	}
	if size := int64(len(data)); size > s.opts.MaxRecordBytes {
		return nil, nil, fmt.Errorf("record %s is %d bytes, limit is %d: %w",
			normalized.ID(), size, s.opts.MaxRecordBytes, cms.ErrStorageLimitExceeded)
	}

	now := s.clock.Now().UTC()
	created := normalized.CreatedAt()
	if created.IsZero() {
		created = now
	}
	updated := normalized.UpdatedAt()
	if updated.IsZero() {
		updated = created
	}

	return &ContentItem{
		CollectionName: collection,
		ItemID:         normalized.ID(),
		Data:           datatypes.JSON(data),
		Status:         string(normalized.Status()),
		SizeBytes:      int64(len(data)),
		CreatedAt:      created.UTC(),
		UpdatedAt:      updated.UTC(),
	}, normalized, nil
}

func decodeRow(row *ContentItem) (cms.Item, error) {
	var it cms.Item
	if err := json.Unmarshal(row.Data, &it); err != nil {
		return nil, fmt.Errorf("decoding %s/%s: %w", row.CollectionName, row.ItemID, err)
	}
	if it == nil {
		it = cms.Item{}
	}
	return it, nil
}

func configEntry(key string, value any) (*ConfigEntry, error) {
	if err := cms.ValidateName("config key", key); err != nil {
		return nil, err
	}
	data, err := json.Marshal(value)
	if err != nil {
		return nil, fmt.Errorf("config %s: %w: %v", key, cms.ErrSerialization, err)
	}
	return &ConfigEntry{Key: key, Value: datatypes.JSON(data)}, nil
}

func (s *Store) publish(ctx context.Context, change, collection, id string) {
	if !s.opts.Realtime {
		return
	}
	event := cms.ChangeEvent{Type: change, Collection: collection, ItemID: id, At: s.clock.Now().UTC()}
	if err := s.opts.Notifier.Publish(ctx, event); err != nil {
		s.logger.Warn("failed to publish change", "collection", collection, "id", id, "error", err)
	}
}
