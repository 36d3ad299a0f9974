package local

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"cms-go/internal/cms"
	"cms-go/internal/thumbnail"
)

// Key layout inside the key-value store.
const (
	collectionKeyPrefix = "cms_collection_"
	metadataKeyPrefix   = "cms_meta_"
	systemConfigKey     = "cms_system_config"
	statsKey            = "cms_stats"
	companyKey          = "cms_company"
)

// DefaultMaxStorageBytes bounds the serialized size of one collection.
const DefaultMaxStorageBytes int64 = 5 * 1024 * 1024

// Thumbnailer renders a preview image for an upload.
type Thumbnailer func(data []byte, mimeType string) ([]byte, error)

// Options configures a Store. Zero values select defaults.
type Options struct {
	MaxStorageBytes int64
	MaxUploadBytes  int64
	Clock           cms.Clock
	IDs             cms.IDGenerator
	Logger          cms.Logger
	Thumbnailer     Thumbnailer
}

// Store is the local record backend. Each collection is one JSON array under
// its own key; writes rewrite the whole array. Media binaries go to a Vault.
type Store struct {
	// mu serializes read-modify-write cycles on the kv store.
	mu sync.Mutex

	kv         cms.KeyValueStore
	vault      cms.Vault
	finder     cms.ReferenceFinder
	clock      cms.Clock
	ids        cms.IDGenerator
	logger     cms.Logger
	thumbnails Thumbnailer
	maxStorage int64
	maxUpload  int64
}

var _ cms.LocalBackend = (*Store)(nil)

// NewStore creates a local store over kv, keeping media binaries in vault.
func NewStore(kv cms.KeyValueStore, vault cms.Vault, opts Options) *Store {
	s := &Store{
		kv:         kv,
		vault:      vault,
		clock:      opts.Clock,
		ids:        opts.IDs,
		logger:     opts.Logger,
		thumbnails: opts.Thumbnailer,
		maxStorage: opts.MaxStorageBytes,
		maxUpload:  opts.MaxUploadBytes,
	}
	if s.clock == nil {
		s.clock = cms.RealClock{}
	}
	if s.ids == nil {
		s.ids = cms.TimestampIDGenerator{Clock: s.clock}
	}
	if s.logger == nil {
		s.logger = cms.NewNopLogger()
	}
	if s.thumbnails == nil {
		s.thumbnails = thumbnail.Generate
	}
	if s.maxStorage <= 0 {
		s.maxStorage = DefaultMaxStorageBytes
	}
	if s.maxUpload <= 0 || s.maxUpload > MaxUploadCeiling {
		s.maxUpload = DefaultMaxUploadBytes
	}
	s.finder = cms.NewReferenceTracker(s, nil, s, s.logger)
	return s
}

// SetReferenceFinder replaces the finder consulted before media deletes.
func (s *Store) SetReferenceFinder(finder cms.ReferenceFinder) {
	s.finder = finder
}

func collectionKey(name string) string { return collectionKeyPrefix + name }
func metadataKey(name string) string   { return metadataKeyPrefix + name }

func (s *Store) Create(ctx context.Context, collection string, item cms.Item) (cms.Item, error) {
	if err := cms.ValidateName("collection", collection); err != nil {
		return nil, fmt.Errorf("create: %w", err)
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

	now := cms.FormatTime(s.clock.Now())
	record[cms.FieldID] = s.ids.New()
	record[cms.FieldCreatedAt] = now
	record[cms.FieldUpdatedAt] = now

	normalized, err := cms.Normalize(record)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", collection, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	items, err := s.load(ctx, collection)
	if err != nil {
		return nil, err
	}
	if err := s.save(ctx, collection, append(items, normalized)); err != nil {
		return nil, fmt.Errorf("create %s: %w", collection, err)
	}

	s.logger.Info("record created", "collection", collection, "id", normalized.ID())
	return normalized, nil
}

func (s *Store) Read(ctx context.Context, collection, id string) (cms.Item, error) {
	if err := validate(collection, id); err != nil {
		return nil, fmt.Errorf("read: %w", err)
	}

	items, err := s.load(ctx, collection)
	if err != nil {
		return nil, err
	}
	if i := indexOf(items, id); i >= 0 {
		return items[i], nil
	}
	return nil, nil
}

func (s *Store) Update(ctx context.Context, collection, id string, partial cms.Item) (cms.Item, error) {
	if err := validate(collection, id); err != nil {
		return nil, fmt.Errorf("update: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	items, err := s.load(ctx, collection)
	if err != nil {
		return nil, err
	}
	i := indexOf(items, id)
	if i < 0 {
		return nil, fmt.Errorf("update %s/%s: %w", collection, id, cms.ErrNotFound)
	}

	existing := items[i]
	merged := existing.Clone()
	for k, v := range partial {
		switch k {
		case cms.FieldID, cms.FieldCreatedAt, cms.FieldUpdatedAt:
			continue
		}
		merged[k] = v
	}
	if err := cms.ApplyDefaultStatus(merged); err != nil {
		return nil, fmt.Errorf("update %s/%s: %w", collection, id, err)
	}
	merged[cms.FieldUpdatedAt] = cms.FormatTime(cms.NextTimestamp(existing.UpdatedAt(), s.clock.Now()))

	normalized, err := cms.Normalize(merged)
	if err != nil {
		return nil, fmt.Errorf("update %s/%s: %w", collection, id, err)
	}
	items[i] = normalized
	if err := s.save(ctx, collection, items); err != nil {
		return nil, fmt.Errorf("update %s/%s: %w", collection, id, err)
	}

	s.logger.Info("record updated", "collection", collection, "id", id)
	return normalized, nil
}

func (s *Store) Delete(ctx context.Context, collection, id string) (bool, error) {
	if err := validate(collection, id); err != nil {
		return false, fmt.Errorf("delete: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	items, err := s.load(ctx, collection)
	if err != nil {
		return false, err
	}
	i := indexOf(items, id)
	if i < 0 {
		return false, nil
	}
	items = append(items[:i], items[i+1:]...)
	if err := s.save(ctx, collection, items); err != nil {
		return false, fmt.Errorf("delete %s/%s: %w", collection, id, err)
	}

	s.logger.Info("record deleted", "collection", collection, "id", id)
	return true, nil
}

func (s *Store) List(ctx context.Context, collection string, filters *cms.Filters) ([]cms.Item, error) {
	if err := cms.ValidateName("collection", collection); err != nil {
		return nil, fmt.Errorf("list: %w", err)
	}
	items, err := s.load(ctx, collection)
	if err != nil {
		return nil, err
	}
	return cms.ApplyFilters(items, filters), nil
}

func (s *Store) Metadata(ctx context.Context, collection string) (*cms.CollectionMetadata, error) {
	if err := cms.ValidateName("collection", collection); err != nil {
		return nil, fmt.Errorf("metadata: %w", err)
	}

	meta := &cms.CollectionMetadata{Name: collection}
	ok, err := s.getJSON(ctx, metadataKey(collection), meta)
	if err != nil {
		return nil, fmt.Errorf("reading metadata for %s: %w", collection, err)
	}
	if !ok {
		return &cms.CollectionMetadata{Name: collection}, nil
	}
	return meta, nil
}

// Collections lists the collections holding stored records, sorted. It
// includes collections outside cms.KnownCollections.
func (s *Store) Collections(ctx context.Context) ([]string, error) {
	keys, err := s.kv.Keys(ctx, collectionKeyPrefix)
	if err != nil {
		return nil, fmt.Errorf("listing collections: %w", err)
	}
	names := make([]string, 0, len(keys))
	for _, k := range keys {
		names = append(names, strings.TrimPrefix(k, collectionKeyPrefix))
	}
	return names, nil
}

func (s *Store) Clear(ctx context.Context, collection string) error {
	if err := cms.ValidateName("collection", collection); err != nil {
		return fmt.Errorf("clear: %w", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.kv.Delete(ctx, collectionKey(collection)); err != nil {
		return fmt.Errorf("clearing %s: %w", collection, err)
	}
	if err := s.kv.Delete(ctx, metadataKey(collection)); err != nil {
		return fmt.Errorf("clearing metadata for %s: %w", collection, err)
	}
	s.logger.Info("collection cleared", "collection", collection)
	return nil
}

// ConfigValue returns a system configuration value and whether it is set.
func (s *Store) ConfigValue(ctx context.Context, key string) (any, bool, error) {
	cfg, err := s.systemConfig(ctx)
	if err != nil {
		return nil, false, err
	}
	v, ok := cfg[key]
	return v, ok, nil
}

// SetConfigValue stores a system configuration value.
func (s *Store) SetConfigValue(ctx context.Context, key string, value any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cfg, err := s.systemConfig(ctx)
	if err != nil {
		return err
	}
	cfg[key] = value
	return s.setJSON(ctx, systemConfigKey, cfg)
}

func (s *Store) systemConfig(ctx context.Context) (map[string]any, error) {
	cfg := map[string]any{}
	if _, err := s.getJSON(ctx, systemConfigKey, &cfg); err != nil {
		return nil, fmt.Errorf("reading system config: %w", err)
	}
	if cfg == nil {
		cfg = map[string]any{}
	}
	return cfg, nil
}

// load returns the records of a collection; a missing key is an empty collection.
func (s *Store) load(ctx context.Context, collection string) ([]cms.Item, error) {
	var items []cms.Item
	if _, err := s.getJSON(ctx, collectionKey(collection), &items); err != nil {
		return nil, fmt.Errorf("loading %s: %w", collection, err)
	}
	if items == nil {
		items = []cms.Item{}
	}
	return items, nil
}

// save persists a whole collection and refreshes its metadata. Nothing is
// written when the serialized collection exceeds the size limit.
func (s *Store) save(ctx context.Context, collection string, items []cms.Item) error {
	data, err := json.Marshal(items)
	if err != nil {
		return fmt.Errorf("%w: %v", cms.ErrSerialization, err)
	}
	if size := int64(len(data)); size > s.maxStorage {
		return fmt.Errorf("collection %s would be %d bytes, limit is %d: %w",
			collection, size, s.maxStorage, cms.ErrStorageLimitExceeded)
	}

	if err := s.kv.Set(ctx, collectionKey(collection), data); err != nil {
		return fmt.Errorf("writing %s: %w", collection, err)
	}

	meta := cms.CollectionMetadata{
		Name:         collection,
		Count:        len(items),
		LastModified: s.clock.Now().UTC(),
		Size:         int64(len(data)),
	}
	if err := s.setJSON(ctx, metadataKey(collection), meta); err != nil {
		return fmt.Errorf("writing metadata for %s: %w", collection, err)
	}
	return nil
}

func (s *Store) getJSON(ctx context.Context, key string, v any) (bool, error) {
	data, err := s.kv.Get(ctx, key)
	if err != nil {
		return false, err
	}
	if data == nil {
		return false, nil
	}
	if err := json.Unmarshal(data, v); err != nil {
		return false, fmt.Errorf("decoding %s: %w", key, err)
	}
	return true, nil
}

func (s *Store) setJSON(ctx context.Context, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("%w: %v", cms.ErrSerialization, err)
	}
	return s.kv.Set(ctx, key, data)
}

func validate(collection, id string) error {
	if err := cms.ValidateName("collection", collection); err != nil {
		return err
	}
	return cms.ValidateName("id", id)
}

func indexOf(items []cms.Item, id string) int {
	for i, it := range items {
		if it.ID() == id {
			return i
		}
	}
	return -1
}
