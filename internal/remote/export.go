package remote

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"cms-go/internal/cms"
)

// Export snapshots the whitelisted collections and the system config.
func (s *Store) Export(ctx context.Context) (*cms.ExportPackage, error) {
	db, err := s.initialized()
	if err != nil {
		return nil, fmt.Errorf("export: %w", err)
	}

	pkg := cms.NewExportPackage(s.clock.Now())
	for _, c := range Supported {
		items, err := s.List(ctx, c, nil)
		if err != nil {
			return nil, fmt.Errorf("export: %w", err)
		}
		pkg.Data.SetCollection(c, items)
	}

	var entries []ConfigEntry
	if err := s.do(ctx, func() error { return db.WithContext(ctx).Order("key").Find(&entries).Error }); err != nil {
		return nil, fmt.Errorf("export: reading config: %w", err)
	}
	if len(entries) > 0 {
		pkg.Data.Config = make(map[string]any, len(entries))
		for _, e := range entries {
			var v any
			if err := json.Unmarshal(e.Value, &v); err != nil {
				return nil, fmt.Errorf("export: decoding config %s: %w", e.Key, err)
			}
			pkg.Data.Config[e.Key] = v
		}
	}

	s.logger.Info("exported remote data")
	return pkg, nil
}

// Import replaces each whitelisted collection present in pkg inside its own
// transaction. Collections outside the whitelist are ignored.
func (s *Store) Import(ctx context.Context, pkg *cms.ExportPackage) (*cms.ImportResult, error) {
	if err := pkg.Validate(); err != nil {
		return nil, fmt.Errorf("import: %w", err)
	}
	db, err := s.initialized()
	if err != nil {
		return nil, fmt.Errorf("import: %w", err)
	}

	result := &cms.ImportResult{}
	for _, c := range cms.KnownCollections {
		items, ok := pkg.Data.Collection(c)
		if !ok {
			continue
		}
		if !slices.Contains(Supported, c) {
			s.logger.Debug("ignoring collection not stored remotely", "collection", c, "records", len(items))
			continue
		}

		if err := s.replace(ctx, db, c, items); err != nil {
			result.Fail(len(items), "%s: %v", c, err)
			s.logger.Warn("remote collection import failed", "collection", c, "error", err)
			continue
		}
		result.Imported += len(items)
		s.publish(ctx, cms.ChangeImported, c, "")
	}

	for key, value := range pkg.Data.Config {
		if err := s.SetConfigValue(ctx, key, value); err != nil {
			result.Fail(0, "config %s: %v", key, err)
		}
	}

	result.Finish()
	s.logger.Info("imported remote data", "imported", result.Imported, "skipped", result.Skipped)
	return result, nil
}

func (s *Store) replace(ctx context.Context, db *gorm.DB, collection string, items []cms.Item) error {
	rows := make([]*ContentItem, 0, len(items))
	seen := make(map[string]bool, len(items))
	for i, it := range items {
		id := it.ID()
		if id == "" {
			return fmt.Errorf("record %d has no id: %w", i, cms.ErrInvalidArgument)
		}
		if seen[id] {
			return fmt.Errorf("duplicate id %s: %w", id, cms.ErrInvalidArgument)
		}
		seen[id] = true

		record := it.Clone()
		if err := cms.ApplyDefaultStatus(record); err != nil {
			return fmt.Errorf("record %s: %w", id, err)
		}
		row, _, err := s.toRow(collection, record)
		if err != nil {
			return fmt.Errorf("record %s: %w", id, err)
		}
		rows = append(rows, row)
	}

	return s.do(ctx, func() error {
		return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			if err := tx.Where("collection_name = ?", collection).Delete(&ContentItem{}).Error; err != nil {
				return err
			}
			if len(rows) > 0 {
				if err := tx.Clauses(clause.OnConflict{UpdateAll: true}).CreateInBatches(rows, 100).Error; err != nil {
					return err
				}
			}
			if err := s.checkCollectionSize(tx, collection); err != nil {
				return err
			}
			return s.refreshMetadata(tx, collection)
		})
	})
}
